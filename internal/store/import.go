package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"homedash/internal/model"
)

// ImportReport counts what Import wrote.
type ImportReport struct {
	Events   int
	Todos    int
	Settings bool
}

type legacyEvent struct {
	ID        string `json:"id"`
	Calendar  string `json:"calendar"`
	Details   string `json:"details"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	EndDate   string `json:"endDate"`
	EndTime   string `json:"endTime"`
	AllDay    bool   `json:"allDay"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type legacyTodo struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	DueDate     string `json:"dueDate"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	CompletedAt string `json:"completedAt"`
	CompletedBy string `json:"completedBy"`
}

type legacySettings struct {
	UpdatedAt string                `json:"updatedAt"`
	Filters   *model.FilterSettings `json:"filters"`
}

// Import upserts the JSON exports events.json, todos.json and
// calendar-settings.json found in dir. Missing files are skipped. All
// writes happen in one transaction.
func (s *Store) Import(ctx context.Context, dir string) (ImportReport, error) {
	var report ImportReport

	var events struct {
		Events []legacyEvent `json:"events"`
	}
	var todos struct {
		Todos []legacyTodo `json:"todos"`
	}
	var settings struct {
		Settings *legacySettings `json:"settings"`
	}
	for name, dst := range map[string]any{
		"events.json":            &events,
		"todos.json":             &todos,
		"calendar-settings.json": &settings,
	} {
		if err := readJSON(filepath.Join(dir, name), dst); err != nil {
			return report, err
		}
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	evRepo := NewEvents(tx, Calendars{})
	for _, e := range events.Events {
		if e.ID == "" {
			continue
		}
		created := legacyStamp(e.CreatedAt)
		updated := created
		if e.UpdatedAt != "" {
			updated = legacyStamp(e.UpdatedAt)
		}
		ev := model.PersistedEvent{
			ID:        e.ID,
			Calendar:  NormalizeName(e.Calendar),
			Details:   e.Details,
			Date:      truncate(e.Date, 10),
			Time:      truncate(e.Time, 5),
			EndDate:   truncate(e.EndDate, 10),
			EndTime:   truncate(e.EndTime, 5),
			CreatedBy: e.CreatedBy,
			CreatedAt: created,
			UpdatedAt: updated,
		}
		ev.AllDay = ev.Time == ""
		if err := evRepo.insert(ctx, ev, true); err != nil {
			return report, fmt.Errorf("import event %s: %w", e.ID, err)
		}
		report.Events++
	}

	todoRepo := NewTodos(tx)
	for _, t := range todos.Todos {
		if t.ID == "" {
			continue
		}
		created := legacyStamp(t.CreatedAt)
		updated := created
		if t.UpdatedAt != "" {
			updated = legacyStamp(t.UpdatedAt)
		}
		todo := model.Todo{
			ID:          t.ID,
			Text:        t.Text,
			DueDate:     truncate(t.DueDate, 10),
			CreatedBy:   t.CreatedBy,
			CreatedAt:   created,
			UpdatedAt:   updated,
			CompletedBy: t.CompletedBy,
		}
		if t.CompletedAt != "" {
			todo.CompletedAt = legacyStamp(t.CompletedAt)
		}
		if err := todoRepo.insert(ctx, todo, true); err != nil {
			return report, fmt.Errorf("import todo %s: %w", t.ID, err)
		}
		report.Todos++
	}

	if ls := settings.Settings; ls != nil && ls.Filters != nil {
		next := model.Settings{Version: 1, UpdatedAt: legacyStamp(ls.UpdatedAt), Filters: ls.Filters.Clone()}
		if err := NewSettings(tx).save(ctx, next); err != nil {
			return report, fmt.Errorf("import settings: %w", err)
		}
		report.Settings = true
	}

	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("commit import: %w", err)
	}
	return report, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// legacyStamp parses an ISO timestamp, defaulting to now.
func legacyStamp(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", model.DateLayout} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return clock()
}

func truncate(v string, n int) string {
	if len(v) > n {
		return v[:n]
	}
	return v
}
