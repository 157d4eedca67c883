package model

import "time"

// Source tags where a CalendarEvent came from. It drives styling and the
// per-source visibility filters.
type Source string

const (
	SourceCustom    Source = "custom"
	SourceSchool    Source = "school"
	SourceHockey    Source = "hockey"
	SourceQGenda    Source = "qgenda"
	SourceLetter    Source = "letter"
	SourceGenerated Source = "generated"
)

// Remote sources that can be backed by an ICS feed.
var RemoteSources = []Source{SourceSchool, SourceHockey, SourceLetter, SourceQGenda}

// Strip ordering: letter-day marker first, then its add-ons, then everything else.
const (
	PriorityLetterDay = 0
	PriorityAddOn     = 1
	PriorityNormal    = 2
)

// Categories for derived events.
const (
	CategorySummerBreak = "summer-break"
	CategoryLetterDay   = "letter-day"
	CategoryAddOn       = "add-on"
)

// CalendarEvent is the uniform in-memory representation used by the merge
// engine and the renderers. It is never persisted by the store; the
// calendar cache keeps parsed remote events in this shape.
type CalendarEvent struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	IsUTC       bool      `json:"isUtc"`
	Source      Source    `json:"source"`
	CalendarKey string    `json:"calendarKey,omitempty"`
	Category    string    `json:"category,omitempty"`
	Priority    int       `json:"priority"`
}

// MultiDay reports whether the event ends on a different calendar day than it starts.
func (e CalendarEvent) MultiDay() bool {
	return DayKey(e.Start) != DayKey(e.End.In(e.Start.Location()))
}

// DayKey formats t as YYYY-MM-DD in t's own location.
func DayKey(t time.Time) string {
	return t.Format(DateLayout)
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// PersistedEvent is the store-of-record shape of a user-authored event.
type PersistedEvent struct {
	ID        string    `json:"id"`
	Calendar  string    `json:"calendar"`
	Details   string    `json:"details"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	EndDate   string    `json:"endDate,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	AllDay    bool      `json:"allDay"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Todo is a shared to-do item.
type Todo struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	DueDate     string    `json:"dueDate"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
	CompletedBy string    `json:"completedBy,omitempty"`
}

// Completed reports whether the todo has been checked off.
func (t Todo) Completed() bool {
	return !t.CompletedAt.IsZero()
}
