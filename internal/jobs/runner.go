// Package jobs runs batch jobs at most once at a time per name, in-process
// and across processes.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"trendloop/internal/observability"
)

var (
	// ErrJobRunning is returned when another process holds the job's lock.
	ErrJobRunning = errors.New("job already running")

	// ErrJobAbandoned is returned when a run exceeds the max runtime.
	ErrJobAbandoned = errors.New("job abandoned after max runtime")
)

// Locker is a cross-process mutual exclusion on job names.
type Locker interface {
	// Acquire takes the lock for ttl. It returns ErrJobRunning when the
	// lock is held elsewhere. The returned func releases the lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

// Func is the body of a job.
type Func func(ctx context.Context) error

// Runner coalesces concurrent in-process triggers of one job name and
// guards every run with an optional lock and a max runtime.
type Runner struct {
	group      singleflight.Group
	locker     Locker
	maxRuntime time.Duration
	log        zerolog.Logger

	// draining holds names whose abandoned run has not returned yet.
	mu       sync.Mutex
	draining map[string]bool
}

// NewRunner creates a runner. locker may be nil for single-process use;
// maxRuntime <= 0 disables the guard.
func NewRunner(locker Locker, maxRuntime time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		locker:     locker,
		maxRuntime: maxRuntime,
		log:        log.With().Str("component", "jobs").Logger(),
		draining:   make(map[string]bool),
	}
}

// Run executes fn under name. Callers arriving while a run is in flight
// share its result instead of starting another.
func (r *Runner) Run(ctx context.Context, name string, fn Func) error {
	ch := r.group.DoChan(name, func() (interface{}, error) {
		return nil, r.run(ctx, name, fn)
	})
	select {
	case res := <-ch:
		if res.Shared {
			r.log.Debug().Str("job", name).Msg("joined in-flight run")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(ctx context.Context, name string, fn Func) error {
	start := time.Now()
	log := r.log.With().Str("job", name).Logger()

	if r.isDraining(name) {
		observability.RecordJobRun(name, "locked", time.Since(start))
		log.Info().Msg("abandoned run still draining, skipping")
		return ErrJobRunning
	}

	release := func() {}
	if r.locker != nil {
		unlock, err := r.locker.Acquire(ctx, name, r.lockTTL())
		if err != nil {
			if errors.Is(err, ErrJobRunning) {
				observability.RecordJobRun(name, "locked", time.Since(start))
				log.Info().Msg("job locked elsewhere, skipping")
			}
			return err
		}
		release = func() {
			// The run context may be cancelled by now.
			if err := unlock(context.Background()); err != nil {
				log.Warn().Err(err).Msg("release lock failed")
			}
		}
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if r.maxRuntime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.maxRuntime)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- fn(runCtx)
	}()

	log.Info().Msg("job started")
	select {
	case err := <-done:
		cancel()
		release()
		took := time.Since(start)
		if err != nil {
			observability.RecordJobRun(name, "error", took)
			log.Error().Err(err).Dur("took", took).Msg("job failed")
			return fmt.Errorf("job %s: %w", name, err)
		}
		observability.RecordJobRun(name, "ok", took)
		log.Info().Dur("took", took).Msg("job complete")
		return nil

	case <-runCtx.Done():
		// fn is still running; the name stays held until it returns.
		r.setDraining(name, true)
		go func() {
			<-done
			cancel()
			release()
			r.setDraining(name, false)
			log.Info().Dur("took", time.Since(start)).Msg("abandoned run returned")
		}()

		took := time.Since(start)
		if ctx.Err() != nil {
			observability.RecordJobRun(name, "cancelled", took)
			return ctx.Err()
		}
		observability.RecordJobRun(name, "abandoned", took)
		log.Error().Dur("max_runtime", r.maxRuntime).Msg("job abandoned")
		return fmt.Errorf("job %s: %w", name, ErrJobAbandoned)
	}
}

func (r *Runner) isDraining(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draining[name]
}

func (r *Runner) setDraining(name string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.draining[name] = true
		return
	}
	delete(r.draining, name)
}

// lockTTL bounds the lock by the max runtime so a crashed holder frees it.
func (r *Runner) lockTTL() time.Duration {
	if r.maxRuntime > 0 {
		return r.maxRuntime
	}
	return time.Hour
}
