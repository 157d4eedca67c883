package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homedash/internal/apperr"
)

const sampleICS = "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nSUMMARY:Game\r\nDTSTART:20240316T170000\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func TestFetchDirect(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	body, err := NewFetcher("").Fetch(context.Background(), srv.URL+"/feed.ics")
	require.NoError(t, err)
	assert.Equal(t, sampleICS, body)
	assert.Equal(t, "HomeCalendar/1.0", ua)
}

func TestFetchFallsBackToProxy(t *testing.T) {
	var proxied atomic.Value
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>blocked</html>"))
	}))
	defer origin.Close()
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Store(r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer proxy.Close()

	target := origin.URL + "/feed.ics?token=a&b=c"
	body, err := NewFetcher(proxy.URL+"/raw?url=").Fetch(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, sampleICS, body)
	assert.Equal(t, target, proxied.Load())
}

func TestFetchFailsWhenNeitherYieldsICS(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	_, err := NewFetcher(down.URL+"/raw?url=").Fetch(context.Background(), down.URL+"/feed.ics")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	_, err = NewFetcher("").Fetch(context.Background(), down.URL+"/feed.ics")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/path/private.ics?token=abcd"))
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com?token=abcd"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
