// Package scheduler keeps the remote calendar caches warm on a cron
// schedule so page loads rarely wait on the network.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"homedash/internal/ics"
	appLog "homedash/internal/log"
)

// DefaultTimeout bounds one refresh run.
const DefaultTimeout = 2 * time.Minute

// Refresher is the part of ics.SourceCache the scheduler drives.
type Refresher interface {
	Sources() []string
	Configured(id string) bool
	FetchSource(ctx context.Context, id string, force bool) (ics.Result, error)
}

// Scheduler refreshes every configured source on a cron spec.
type Scheduler struct {
	cron    *cron.Cron
	sources Refresher
	spec    string
	timeout time.Duration

	wg sync.WaitGroup
}

// New validates spec (standard five-field cron syntax) and prepares a
// scheduler evaluated in loc.
func New(sources Refresher, spec string, loc *time.Location) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		sources: sources,
		spec:    spec,
		timeout: DefaultTimeout,
	}, nil
}

// RunOnce refreshes all configured sources concurrently without forcing,
// so only expired entries hit the network. It returns the per-source
// failures; one failing source never stops the others.
func (s *Scheduler) RunOnce(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	var g errgroup.Group
	for _, id := range s.sources.Sources() {
		if !s.sources.Configured(id) {
			continue
		}
		g.Go(func() error {
			res, err := s.sources.FetchSource(ctx, id, false)
			if err != nil {
				mu.Lock()
				failed[id] = err
				mu.Unlock()
				return nil
			}
			appLog.Debug("scheduler: source ready", "source", id, "events", len(res.Events), "stale", res.Stale)
			return nil
		})
	}
	_ = g.Wait()

	for id, err := range failed {
		appLog.Error("scheduler: refresh failed", err, "source", id)
	}
	return failed
}

// Start runs one refresh in the background and registers the cron job.
// Jobs stop when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()

	if _, err := s.cron.AddFunc(s.spec, func() {
		if ctx.Err() != nil {
			return
		}
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("registering refresh job: %w", err)
	}
	s.cron.Start()
	appLog.Info("scheduler started", "refresh", s.spec)
	return nil
}

// Stop halts the cron and waits for running refreshes.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	appLog.Info("scheduler stopped")
}
