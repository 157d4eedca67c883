package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("Missing required fields"), http.StatusBadRequest},
		{Unauthorized("Unauthorized"), http.StatusUnauthorized},
		{Forbidden("Admin required"), http.StatusForbidden},
		{NotFound("Event not found"), http.StatusNotFound},
		{Upstream("Calendar fetch failed", nil), http.StatusBadGateway},
		{Persistence("Unable to save event", errors.New("disk full")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), tt.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("loading events: %w", Persistence("Unable to load events", cause))

	assert.True(t, Is(err, KindPersistence))
	assert.False(t, Is(err, KindNotFound))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Unable to load events", Message(err, "fallback"))
	assert.Equal(t, "fallback", Message(errors.New("x"), "fallback"))
}
