package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"homedash/internal/apperr"
	"homedash/internal/model"
)

// EventDraft is the body of an event creation request.
type EventDraft struct {
	Details  string `json:"details"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	EndDate  string `json:"endDate"`
	EndTime  string `json:"endTime"`
	Calendar string `json:"calendar"`
}

// EventPatch carries only the fields a client sent.
type EventPatch struct {
	ID       string           `json:"id"`
	Details  Optional[string] `json:"details"`
	Date     Optional[string] `json:"date"`
	Time     Optional[string] `json:"time"`
	EndDate  Optional[string] `json:"endDate"`
	EndTime  Optional[string] `json:"endTime"`
	Calendar Optional[string] `json:"calendar"`
}

// touchesSchedule reports whether the patch names a date, time or calendar field.
func (p EventPatch) touchesSchedule() bool {
	return p.Date.Set || p.Time.Set || p.EndDate.Set || p.EndTime.Set || p.Calendar.Set
}

type eventRow struct {
	ID        string `db:"id"`
	Calendar  string `db:"calendar"`
	Details   string `db:"details"`
	Date      string `db:"date"`
	Time      string `db:"time"`
	EndDate   string `db:"end_date"`
	EndTime   string `db:"end_time"`
	AllDay    bool   `db:"all_day"`
	CreatedBy string `db:"created_by"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r eventRow) Convert() model.PersistedEvent {
	return model.PersistedEvent{
		ID:        r.ID,
		Calendar:  r.Calendar,
		Details:   r.Details,
		Date:      r.Date,
		Time:      r.Time,
		EndDate:   r.EndDate,
		EndTime:   r.EndTime,
		AllDay:    r.AllDay,
		CreatedBy: r.CreatedBy,
		CreatedAt: parseStamp(r.CreatedAt),
		UpdatedAt: parseStamp(r.UpdatedAt),
	}
}

func toEventRow(e model.PersistedEvent) eventRow {
	return eventRow{
		ID:        e.ID,
		Calendar:  e.Calendar,
		Details:   e.Details,
		Date:      e.Date,
		Time:      e.Time,
		EndDate:   e.EndDate,
		EndTime:   e.EndTime,
		AllDay:    e.AllDay,
		CreatedBy: e.CreatedBy,
		CreatedAt: stamp(e.CreatedAt),
		UpdatedAt: stamp(e.UpdatedAt),
	}
}

const eventColumns = `id, calendar, details, date, time, end_date, end_time, all_day, created_by, created_at, updated_at`

// Events is the repository of user-authored calendar events.
type Events struct {
	db        Querier
	calendars Calendars
}

func NewEvents(db Querier, calendars Calendars) *Events {
	return &Events{db: db, calendars: calendars}
}

// Calendars returns the allow-list the repository enforces.
func (s *Events) Calendars() Calendars {
	return s.calendars
}

func (s *Events) List(ctx context.Context) ([]model.PersistedEvent, error) {
	var rows []eventRow
	err := sqlxSelect(ctx, s.db, &rows, `SELECT `+eventColumns+` FROM events ORDER BY date, time, created_at`)
	if err != nil {
		return nil, apperr.Persistence("Unable to load events", err)
	}
	out := make([]model.PersistedEvent, len(rows))
	for i, r := range rows {
		out[i] = r.Convert()
	}
	return out, nil
}

// Get returns the event with id or a NotFound error.
func (s *Events) Get(ctx context.Context, id string) (model.PersistedEvent, error) {
	var row eventRow
	err := sqlxGet(ctx, s.db, &row, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PersistedEvent{}, apperr.NotFound("Event not found")
	}
	if err != nil {
		return model.PersistedEvent{}, apperr.Persistence("Unable to load events", err)
	}
	return row.Convert(), nil
}

// Create validates draft and stores a new event owned by session.User.
func (s *Events) Create(ctx context.Context, draft EventDraft, session model.Session) (model.PersistedEvent, error) {
	details := strings.TrimSpace(draft.Details)
	calendar := NormalizeName(draft.Calendar)
	date, dateOK := parseDateValue(draft.Date)

	if details == "" || date == "" || calendar == "" {
		if !dateOK && details != "" && calendar != "" {
			return model.PersistedEvent{}, apperr.Validation("Invalid date")
		}
		return model.PersistedEvent{}, apperr.Validation("Missing required fields")
	}

	ev := model.PersistedEvent{
		Calendar: calendar,
		Details:  details,
		Date:     date,
	}
	var ok bool
	if ev.Time, ok = parseTimeValue(draft.Time); !ok {
		return model.PersistedEvent{}, apperr.Validation("Invalid time")
	}
	if ev.EndDate, ok = parseDateValue(draft.EndDate); !ok {
		return model.PersistedEvent{}, apperr.Validation("Invalid date")
	}
	if ev.EndTime, ok = parseTimeValue(draft.EndTime); !ok {
		return model.PersistedEvent{}, apperr.Validation("Invalid time")
	}
	if err := normalizeSpan(&ev); err != nil {
		return model.PersistedEvent{}, err
	}

	if !s.calendars.Allowed(calendar) {
		return model.PersistedEvent{}, apperr.Validation("Invalid calendar")
	}
	if !session.IsAdmin() && calendar != session.User && calendar != CalendarFamily && calendar != CalendarMeals {
		return model.PersistedEvent{}, apperr.Forbidden("Not allowed for this calendar")
	}

	now := clock()
	ev.ID = uuid.NewString()
	ev.AllDay = ev.Time == ""
	ev.CreatedBy = session.User
	ev.CreatedAt = now
	ev.UpdatedAt = now

	if err := s.insert(ctx, ev, false); err != nil {
		return model.PersistedEvent{}, apperr.Persistence("Unable to save event", err)
	}
	return ev, nil
}

// Update applies the provided fields of patch. Admins may change any
// field; other users may only edit the details of meals events they
// created.
func (s *Events) Update(ctx context.Context, patch EventPatch, session model.Session) (model.PersistedEvent, error) {
	id := strings.TrimSpace(patch.ID)
	if id == "" {
		return model.PersistedEvent{}, apperr.Validation("Missing event id")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return model.PersistedEvent{}, err
	}

	if !session.IsAdmin() {
		if existing.Calendar != CalendarMeals {
			return model.PersistedEvent{}, apperr.Forbidden("Admin required")
		}
		if existing.CreatedBy != session.User {
			return model.PersistedEvent{}, apperr.Forbidden("Only the author may edit this meal")
		}
		if patch.touchesSchedule() {
			return model.PersistedEvent{}, apperr.Forbidden("Not allowed for this calendar")
		}
	}

	next := existing
	var ok bool
	if patch.Details.Set {
		next.Details = strings.TrimSpace(patch.Details.Value)
		if next.Details == "" {
			return model.PersistedEvent{}, apperr.Validation("Missing required fields")
		}
	}
	if patch.Date.Set {
		next.Date, ok = parseDateValue(patch.Date.Value)
		if !ok || next.Date == "" {
			return model.PersistedEvent{}, apperr.Validation("Invalid date")
		}
	}
	if patch.Time.Set {
		if next.Time, ok = parseTimeValue(patch.Time.Value); !ok {
			return model.PersistedEvent{}, apperr.Validation("Invalid time")
		}
	}
	if patch.EndDate.Set {
		if next.EndDate, ok = parseDateValue(patch.EndDate.Value); !ok {
			return model.PersistedEvent{}, apperr.Validation("Invalid date")
		}
	}
	if patch.EndTime.Set {
		if next.EndTime, ok = parseTimeValue(patch.EndTime.Value); !ok {
			return model.PersistedEvent{}, apperr.Validation("Invalid time")
		}
	}
	if patch.Calendar.Set {
		next.Calendar = NormalizeName(patch.Calendar.Value)
		if !s.calendars.Allowed(next.Calendar) {
			return model.PersistedEvent{}, apperr.Validation("Invalid calendar")
		}
	}
	if err := normalizeSpan(&next); err != nil {
		return model.PersistedEvent{}, err
	}

	next.AllDay = next.Time == ""
	next.UpdatedAt = clock()

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE events
		SET calendar = ?, details = ?, date = ?, time = ?, end_date = ?, end_time = ?, all_day = ?, updated_at = ?
		WHERE id = ?
	`), next.Calendar, next.Details, next.Date, next.Time, next.EndDate, next.EndTime, next.AllDay, stamp(next.UpdatedAt), next.ID)
	if err != nil {
		return model.PersistedEvent{}, apperr.Persistence("Unable to update event", err)
	}
	return next, nil
}

// Delete removes the event. Admins may delete anything; other users only
// meals events.
func (s *Events) Delete(ctx context.Context, id string, session model.Session) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.Validation("Missing event id")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !session.IsAdmin() && existing.Calendar != CalendarMeals {
		return apperr.Forbidden("Admin required")
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM events WHERE id = ?`), id); err != nil {
		return apperr.Persistence("Unable to delete event", err)
	}
	return nil
}

// insert writes ev; with upsert an existing row with the same id is replaced.
func (s *Events) insert(ctx context.Context, ev model.PersistedEvent, upsert bool) error {
	q := `INSERT INTO events (` + eventColumns + `)
		VALUES (:id, :calendar, :details, :date, :time, :end_date, :end_time, :all_day, :created_by, :created_at, :updated_at)`
	if upsert {
		q += ` ON CONFLICT (id) DO UPDATE SET
			calendar = excluded.calendar, details = excluded.details, date = excluded.date,
			time = excluded.time, end_date = excluded.end_date, end_time = excluded.end_time,
			all_day = excluded.all_day, created_by = excluded.created_by,
			created_at = excluded.created_at, updated_at = excluded.updated_at`
	}
	_, err := sqlxNamedExec(ctx, s.db, q, toEventRow(ev))
	return err
}

// normalizeSpan fills endDate from date when only endTime is given and
// rejects ends before the start.
func normalizeSpan(ev *model.PersistedEvent) error {
	if ev.EndTime != "" && ev.EndDate == "" {
		ev.EndDate = ev.Date
	}
	if ev.EndDate == "" {
		return nil
	}
	if ev.EndDate < ev.Date {
		return apperr.Validation("End date is before start date")
	}
	if ev.EndDate == ev.Date && ev.EndTime != "" && ev.Time != "" && ev.EndTime < ev.Time {
		return apperr.Validation("End time is before start time")
	}
	return nil
}
