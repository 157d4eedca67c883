package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendarEventMultiDay(t *testing.T) {
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	ev := CalendarEvent{Start: start, End: start}
	assert.False(t, ev.MultiDay())

	ev.End = start.AddDate(0, 0, 2)
	assert.True(t, ev.MultiDay())
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.False(t, Session{User: "dave"}.Expired(now), "no exp never expires")
	assert.True(t, Session{Exp: now.Add(-time.Second).UnixMilli()}.Expired(now))
	assert.False(t, Session{Exp: now.Add(time.Hour).UnixMilli()}.Expired(now))
	assert.True(t, Session{Role: RoleAdmin}.IsAdmin())
	assert.False(t, Session{Role: RoleUser}.IsAdmin())
}

func TestFilterSettingsClone(t *testing.T) {
	f := DefaultFilters()
	c := f.Clone()
	c.IncludeSources["school"] = false
	c.IncludeCalendars["meals"] = true

	assert.True(t, f.IncludeSources["school"])
	assert.False(t, f.IncludeCalendars["meals"])
	assert.True(t, f.SourceEnabled(SourceSchool))
	assert.False(t, f.SourceEnabled(SourceLetter))
	assert.False(t, f.SourceEnabled(SourceGenerated))
}

func TestTodoCompleted(t *testing.T) {
	assert.False(t, Todo{}.Completed())
	assert.True(t, Todo{CompletedAt: time.Now()}.Completed())
}
