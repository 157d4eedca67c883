package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"homedash/internal/apperr"
	appLog "homedash/internal/log"
)

const (
	userAgent    = "HomeCalendar/1.0"
	maxBodyBytes = 10 << 20
	calendarMark = "BEGIN:VCALENDAR"
)

// ErrFetchFailed is returned when neither the direct request nor the
// proxy produced an ICS payload.
var ErrFetchFailed = errors.New("calendar fetch failed")

// Getter is the subset of *http.Client used by Fetcher.
type Getter interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves ICS feeds, first directly and then through a CORS
// relay that takes the escaped target URL as its query suffix.
type Fetcher struct {
	client      Getter
	proxyPrefix string
}

// NewFetcher creates a Fetcher. An empty proxyPrefix disables the relay.
func NewFetcher(proxyPrefix string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		proxyPrefix: proxyPrefix,
	}
}

// WithClient swaps the HTTP client, mostly for tests.
func (f *Fetcher) WithClient(c Getter) *Fetcher {
	f.client = c
	return f
}

// Fetch returns the ICS text at target.
func (f *Fetcher) Fetch(ctx context.Context, target string) (string, error) {
	if target == "" {
		return "", errors.New("source URL is empty")
	}

	appLog.Debug("ics fetch start", "url", redactURL(target))

	body, directErr := f.get(ctx, target)
	if directErr == nil {
		appLog.Debug("ics fetch success", "url", redactURL(target), "via", "direct")
		return body, nil
	}

	if f.proxyPrefix == "" {
		appLog.Warn("ics fetch failed", "url", redactURL(target), "err", directErr.Error())
		return "", apperr.Upstream("Unable to load calendar", fmt.Errorf("%w: %w", ErrFetchFailed, directErr))
	}

	appLog.Debug("ics direct fetch failed, trying proxy", "url", redactURL(target), "err", directErr.Error())

	body, proxyErr := f.get(ctx, f.proxyPrefix+url.QueryEscape(target))
	if proxyErr != nil {
		appLog.Warn("ics fetch failed", "url", redactURL(target), "direct", directErr.Error(), "proxy", proxyErr.Error())
		return "", apperr.Upstream("Unable to load calendar", fmt.Errorf("%w: %w", ErrFetchFailed, proxyErr))
	}

	appLog.Debug("ics fetch success", "url", redactURL(target), "via", "proxy")
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar, text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.New(resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	body := string(data)
	if !strings.Contains(body, calendarMark) {
		return "", errors.New("response is not an ICS payload")
	}
	return body, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
func redactURL(u string) string {
	// Calendar URLs routinely embed private tokens in paths and queries.
	// Example:
	//   https://example.com/path/to/private.ics?token=abcd
	// -> https://example.com/...(redacted)
	const redactedSuffix = "/...(redacted)"

	scheme, rest, found := strings.Cut(u, "://")
	if !found {
		return "ics://...(redacted)"
	}
	host, _, _ := strings.Cut(rest, "/")
	host, _, _ = strings.Cut(host, "?")
	return scheme + "://" + host + redactedSuffix
}
