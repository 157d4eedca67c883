package ics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homedash/internal/apperr"
	"homedash/internal/blob"
	"homedash/internal/model"
)

type stubFetcher struct {
	calls atomic.Int32
	body  string
	err   error
	gate  chan struct{}
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.body, s.err
}

type failingBlobs struct{ blob.Store }

func (failingBlobs) Put(context.Context, string, []byte) error { return errors.New("disk full") }

var cacheNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T, f TextFetcher) (*SourceCache, blob.Store) {
	t.Helper()
	blobs, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	c := NewSourceCache(f, blobs, []SourceSpec{
		{ID: "school", URL: "https://school.example/feed.ics", TTL: 24 * time.Hour},
		{ID: "qgenda"},
	}, time.UTC).WithClock(func() time.Time { return cacheNow })
	return c, blobs
}

func seed(t *testing.T, blobs blob.Store, fetchedAt time.Time) {
	t.Helper()
	data, err := json.Marshal(Result{
		Source:    "school",
		FetchedAt: fetchedAt.UnixMilli(),
		Events:    []model.CalendarEvent{{Summary: "Cached", Start: fetchedAt, End: fetchedAt, Source: model.SourceSchool}},
	})
	require.NoError(t, err)
	require.NoError(t, blobs.Put(context.Background(), BlobKey("school"), data))
}

func TestFetchSourceFreshCacheSkipsNetwork(t *testing.T) {
	f := &stubFetcher{body: sampleICS}
	c, blobs := newTestCache(t, f)
	seed(t, blobs, cacheNow.Add(-23*time.Hour))

	res, err := c.FetchSource(context.Background(), "school", false)
	require.NoError(t, err)
	assert.Zero(t, f.calls.Load())
	assert.False(t, res.Stale)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Cached", res.Events[0].Summary)
}

func TestFetchSourceExpiredCacheFetches(t *testing.T) {
	f := &stubFetcher{body: sampleICS}
	c, blobs := newTestCache(t, f)
	seed(t, blobs, cacheNow.Add(-25*time.Hour))

	res, err := c.FetchSource(context.Background(), "school", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.calls.Load())
	assert.Equal(t, cacheNow.UnixMilli(), res.FetchedAt)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Game", res.Events[0].Summary)
	assert.Equal(t, model.Source("school"), res.Events[0].Source)

	// persisted for the next process
	data, err := blobs.Get(context.Background(), BlobKey("school"))
	require.NoError(t, err)
	var stored Result
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, cacheNow.UnixMilli(), stored.FetchedAt)
	assert.False(t, stored.Stale)
}

func TestFetchSourceForceBypassesTTL(t *testing.T) {
	f := &stubFetcher{body: sampleICS}
	c, blobs := newTestCache(t, f)
	seed(t, blobs, cacheNow.Add(-time.Minute))

	_, err := c.FetchSource(context.Background(), "school", true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestFetchSourceStaleFallback(t *testing.T) {
	f := &stubFetcher{err: apperr.Upstream("Unable to load calendar", ErrFetchFailed)}
	c, blobs := newTestCache(t, f)
	seed(t, blobs, cacheNow.Add(-48*time.Hour))

	res, err := c.FetchSource(context.Background(), "school", false)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, cacheNow.Add(-48*time.Hour).UnixMilli(), res.FetchedAt)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Cached", res.Events[0].Summary)
}

func TestFetchSourceFailsWithoutCache(t *testing.T) {
	f := &stubFetcher{err: errors.New("connection refused")}
	c, _ := newTestCache(t, f)

	_, err := c.FetchSource(context.Background(), "school", false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestFetchSourceUnknownAndUnconfigured(t *testing.T) {
	c, _ := newTestCache(t, &stubFetcher{body: sampleICS})

	_, err := c.FetchSource(context.Background(), "weather", false)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Invalid source", apperr.Message(err, ""))

	_, err = c.FetchSource(context.Background(), "qgenda", false)
	assert.Equal(t, "Calendar not configured", apperr.Message(err, ""))
	assert.False(t, c.Configured("qgenda"))
	assert.True(t, c.Configured("school"))
	assert.Equal(t, []string{"school", "qgenda"}, c.Sources())
}

func TestFetchSourceBlobWriteFailureStillReturns(t *testing.T) {
	f := &stubFetcher{body: sampleICS}
	inner, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	c := NewSourceCache(f, failingBlobs{inner}, []SourceSpec{{ID: "school", URL: "https://school.example/feed.ics"}}, time.UTC).
		WithClock(func() time.Time { return cacheNow })

	res, err := c.FetchSource(context.Background(), "school", false)
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)

	// memory copy serves the next call
	_, err = c.FetchSource(context.Background(), "school", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestFetchSourceCollapsesConcurrentLoads(t *testing.T) {
	f := &stubFetcher{body: sampleICS, gate: make(chan struct{})}
	c, _ := newTestCache(t, f)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchSource(context.Background(), "school", false)
			assert.NoError(t, err)
		}()
	}
	// let the goroutines pile up on the in-flight fetch
	assert.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.LessOrEqual(t, f.calls.Load(), int32(2))
}
