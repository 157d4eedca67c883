package ics

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"homedash/internal/apperr"
	"homedash/internal/blob"
	appLog "homedash/internal/log"
	"homedash/internal/model"
)

// DefaultTTL is the freshness window used when a source sets none.
const DefaultTTL = 24 * time.Hour

// TextFetcher is what SourceCache needs from Fetcher.
type TextFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// SourceSpec describes one remote calendar known to the cache.
type SourceSpec struct {
	ID  string
	URL string
	TTL time.Duration
}

// Result is a per-source cache entry as served to clients. FetchedAt is
// Unix milliseconds. Events must be treated as read-only.
type Result struct {
	Source    string                `json:"source"`
	FetchedAt int64                 `json:"fetchedAt"`
	Events    []model.CalendarEvent `json:"events"`
	Stale     bool                  `json:"stale,omitempty"`
}

// FetchedTime returns FetchedAt as a time.Time.
func (r Result) FetchedTime() time.Time {
	return time.UnixMilli(r.FetchedAt)
}

// SourceCache serves parsed remote calendars with a per-source TTL,
// an in-process copy and a durable copy in a blob store. A failed
// refresh falls back to any cached entry, marked stale.
type SourceCache struct {
	fetcher TextFetcher
	blobs   blob.Store
	loc     *time.Location
	now     func() time.Time

	order   []string
	sources map[string]SourceSpec

	mu    sync.RWMutex
	mem   map[string]Result
	group singleflight.Group
}

// NewSourceCache builds a cache over the given sources. blobs may be nil,
// in which case entries live only in memory.
func NewSourceCache(fetcher TextFetcher, blobs blob.Store, sources []SourceSpec, loc *time.Location) *SourceCache {
	if loc == nil {
		loc = time.Local
	}
	c := &SourceCache{
		fetcher: fetcher,
		blobs:   blobs,
		loc:     loc,
		now:     time.Now,
		sources: make(map[string]SourceSpec, len(sources)),
		mem:     make(map[string]Result),
	}
	for _, s := range sources {
		if s.TTL <= 0 {
			s.TTL = DefaultTTL
		}
		if _, dup := c.sources[s.ID]; !dup {
			c.order = append(c.order, s.ID)
		}
		c.sources[s.ID] = s
	}
	return c
}

// WithClock replaces the time source.
func (c *SourceCache) WithClock(now func() time.Time) *SourceCache {
	c.now = now
	return c
}

// Sources returns configured source ids in configuration order.
func (c *SourceCache) Sources() []string {
	return append([]string(nil), c.order...)
}

// Configured reports whether id is known and has a URL.
func (c *SourceCache) Configured(id string) bool {
	s, ok := c.sources[id]
	return ok && s.URL != ""
}

// BlobKey is the durable storage key for a source.
func BlobKey(id string) string {
	return "calendar/" + id + ".json"
}

// FetchSource returns the events of source id. A fresh entry is served
// without network access unless force is set.
func (c *SourceCache) FetchSource(ctx context.Context, id string, force bool) (Result, error) {
	spec, ok := c.sources[id]
	if !ok {
		return Result{}, apperr.Validation("Invalid source")
	}
	if spec.URL == "" {
		return Result{}, apperr.E(apperr.KindInternal, "Calendar not configured", nil)
	}

	key := id + ":" + strconv.FormatBool(force)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), spec, force)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (c *SourceCache) load(ctx context.Context, spec SourceSpec, force bool) (Result, error) {
	cached, haveCache := c.cached(ctx, spec.ID)
	now := c.now()

	if haveCache && !force && now.Sub(cached.FetchedTime()) < spec.TTL {
		return cached, nil
	}

	text, err := c.fetcher.Fetch(ctx, spec.URL)
	if err != nil {
		if haveCache {
			appLog.Warn("calendar refresh failed, serving stale cache", "source", spec.ID, "err", err.Error())
			cached.Stale = true
			return cached, nil
		}
		appLog.Error("calendar unavailable", err, "source", spec.ID)
		if apperr.Is(err, apperr.KindUpstream) {
			return Result{}, err
		}
		return Result{}, apperr.Upstream("Unable to load calendar", err)
	}

	res := Result{
		Source:    spec.ID,
		FetchedAt: now.UnixMilli(),
		Events:    ParseIn(text, model.Source(spec.ID), c.loc),
	}

	c.mu.Lock()
	c.mem[spec.ID] = res
	c.mu.Unlock()

	if c.blobs != nil {
		if data, err := json.Marshal(res); err != nil {
			appLog.Error("calendar cache encode failed", err, "source", spec.ID)
		} else if err := c.blobs.Put(ctx, BlobKey(spec.ID), data); err != nil {
			appLog.Error("calendar cache write failed", err, "source", spec.ID)
		}
	}

	appLog.Info("calendar refreshed", "source", spec.ID, "events", len(res.Events), "forced", force)
	return res, nil
}

// cached returns the in-memory entry, falling back to the blob store.
func (c *SourceCache) cached(ctx context.Context, id string) (Result, bool) {
	c.mu.RLock()
	res, ok := c.mem[id]
	c.mu.RUnlock()
	if ok {
		return res, true
	}
	if c.blobs == nil {
		return Result{}, false
	}

	data, err := c.blobs.Get(ctx, BlobKey(id))
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			appLog.Error("calendar cache read failed", err, "source", id)
		}
		return Result{}, false
	}
	if err := json.Unmarshal(data, &res); err != nil {
		appLog.Error("calendar cache decode failed", err, "source", id)
		return Result{}, false
	}
	res.Source = id
	res.Stale = false
	for i := range res.Events {
		res.Events[i].Start = res.Events[i].Start.In(c.loc)
		res.Events[i].End = res.Events[i].End.In(c.loc)
	}

	c.mu.Lock()
	if _, raced := c.mem[id]; !raced {
		c.mem[id] = res
	}
	c.mu.Unlock()
	return res, true
}
