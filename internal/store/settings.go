package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"homedash/internal/apperr"
	"homedash/internal/model"
)

// FilterPatch is a partial FilterSettings. Map entries are only applied
// to keys the current filters already know, and only when they hold a
// JSON boolean.
type FilterPatch struct {
	IncludeCustom          *bool                      `json:"includeCustom"`
	UseUpcomingKeywords    *bool                      `json:"useUpcomingKeywords"`
	HideDailySchoolDetails *bool                      `json:"hideDailySchoolDetails"`
	IncludeSources         map[string]json.RawMessage `json:"includeSources"`
	IncludeCalendars       map[string]json.RawMessage `json:"includeCalendars"`
}

// SettingsPatch is the body of a settings update.
type SettingsPatch struct {
	Filters *FilterPatch `json:"filters"`
}

// MergeFilters applies patch to a copy of current.
func MergeFilters(current model.FilterSettings, patch *FilterPatch) model.FilterSettings {
	next := current.Clone()
	if patch == nil {
		return next
	}
	if patch.IncludeCustom != nil {
		next.IncludeCustom = *patch.IncludeCustom
	}
	if patch.UseUpcomingKeywords != nil {
		next.UseUpcomingKeywords = *patch.UseUpcomingKeywords
	}
	if patch.HideDailySchoolDetails != nil {
		next.HideDailySchoolDetails = *patch.HideDailySchoolDetails
	}
	mergeKnown(next.IncludeSources, patch.IncludeSources)
	mergeKnown(next.IncludeCalendars, patch.IncludeCalendars)
	return next
}

func mergeKnown(dst map[string]bool, src map[string]json.RawMessage) {
	for key := range dst {
		raw, ok := src[key]
		if !ok || string(raw) == "null" {
			continue
		}
		var v bool
		if err := json.Unmarshal(raw, &v); err == nil {
			dst[key] = v
		}
	}
}

type settingsRow struct {
	ID        string `db:"id"`
	Filters   string `db:"filters"`
	UpdatedAt string `db:"updated_at"`
}

// Settings stores the singleton calendar filter record.
type Settings struct {
	db Querier
}

func NewSettings(db Querier) *Settings {
	return &Settings{db: db}
}

// Get returns the stored settings, or defaults when none were saved.
func (s *Settings) Get(ctx context.Context) (model.Settings, error) {
	var row settingsRow
	err := sqlxGet(ctx, s.db, &row, `SELECT id, filters, updated_at FROM calendar_settings WHERE id = ?`, model.SettingsID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(clock()), nil
	}
	if err != nil {
		return model.Settings{}, apperr.Persistence("Unable to load settings", err)
	}

	filters := model.DefaultFilters()
	if err := json.Unmarshal([]byte(row.Filters), &filters); err != nil {
		return model.Settings{}, apperr.Persistence("Unable to load settings", err)
	}
	return model.Settings{Version: 1, UpdatedAt: parseStamp(row.UpdatedAt), Filters: filters.Clone()}, nil
}

// Update merges patch into the stored filters. Only admins may call it.
func (s *Settings) Update(ctx context.Context, patch SettingsPatch, session model.Session) (model.Settings, error) {
	if !session.IsAdmin() {
		return model.Settings{}, apperr.Forbidden("Admin required")
	}
	current, err := s.Get(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	next := model.Settings{
		Version:   1,
		UpdatedAt: clock(),
		Filters:   MergeFilters(current.Filters, patch.Filters),
	}
	if err := s.save(ctx, next); err != nil {
		return model.Settings{}, apperr.Persistence("Unable to update settings", err)
	}
	return next, nil
}

func (s *Settings) save(ctx context.Context, settings model.Settings) error {
	data, err := json.Marshal(settings.Filters)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO calendar_settings (id, filters, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET filters = excluded.filters, updated_at = excluded.updated_at
	`), model.SettingsID, string(data), stamp(settings.UpdatedAt))
	return err
}
