package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/logging"
)

// heldLocker is an in-memory Locker.
type heldLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func newHeldLocker() *heldLocker {
	return &heldLocker{held: map[string]bool{}}
}

func (l *heldLocker) Acquire(_ context.Context, name string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, ErrJobRunning
	}
	l.held[name] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
		l.released++
		return nil
	}, nil
}

func TestRunner_RunsAndReleases(t *testing.T) {
	locker := newHeldLocker()
	r := NewRunner(locker, time.Second, logging.Nop())

	var calls int
	err := r.Run(context.Background(), "learning", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, locker.released)
}

func TestRunner_WrapsJobError(t *testing.T) {
	r := NewRunner(nil, 0, logging.Nop())
	boom := errors.New("boom")

	err := r.Run(context.Background(), "learning", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRunner_RejectsWhenLockedElsewhere(t *testing.T) {
	locker := newHeldLocker()
	locker.held["learning"] = true
	r := NewRunner(locker, time.Second, logging.Nop())

	var called bool
	err := r.Run(context.Background(), "learning", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.False(t, called)
}

func TestRunner_ConcurrentCallersShareOneRun(t *testing.T) {
	r := NewRunner(newHeldLocker(), time.Second, logging.Nop())

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return nil
	}

	errs := make(chan error, 2)
	go func() { errs <- r.Run(context.Background(), "learning", fn) }()
	<-started
	go func() { errs <- r.Run(context.Background(), "learning", fn) }()

	// Give the second caller time to join the in-flight run.
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunner_DifferentNamesRunIndependently(t *testing.T) {
	r := NewRunner(newHeldLocker(), time.Second, logging.Nop())

	var calls atomic.Int32
	fn := func(context.Context) error {
		calls.Add(1)
		return nil
	}
	require.NoError(t, r.Run(context.Background(), "a", fn))
	require.NoError(t, r.Run(context.Background(), "b", fn))
	assert.Equal(t, int32(2), calls.Load())
}

func (l *heldLocker) releases() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

func TestRunner_AbandonsAfterMaxRuntime(t *testing.T) {
	locker := newHeldLocker()
	r := NewRunner(locker, 20*time.Millisecond, logging.Nop())

	block := make(chan struct{})
	err := r.Run(context.Background(), "learning", func(context.Context) error {
		<-block
		return nil
	})
	assert.ErrorIs(t, err, ErrJobAbandoned)

	// The lock stays held while the abandoned body is still running.
	assert.Zero(t, locker.releases())
	var called bool
	err = r.Run(context.Background(), "learning", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.False(t, called)

	close(block)
	assert.Eventually(t, func() bool {
		return r.Run(context.Background(), "learning", func(context.Context) error {
			called = true
			return nil
		}) == nil
	}, time.Second, 5*time.Millisecond)
	assert.True(t, called)
	assert.Equal(t, 2, locker.releases())
}

func TestRunner_JobSeesDeadline(t *testing.T) {
	r := NewRunner(nil, time.Second, logging.Nop())

	err := r.Run(context.Background(), "learning", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}
