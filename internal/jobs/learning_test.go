package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/config"
	"trendloop/internal/domain"
	"trendloop/internal/logging"
	"trendloop/internal/storage/memory"
)

var now = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func tradeRow(unitID string, metric float64, bucket string, at time.Time) domain.EvidenceRow {
	return domain.EvidenceRow{
		UnitID:     unitID,
		Source:     domain.EvidenceTrade,
		PatternKey: "S3.buy_flag.add",
		Category:   "add",
		Scope:      map[string]string{domain.ScopeBucket: bucket},
		Metric:     metric,
		At:         at,
	}
}

func TestLearningJob_MinesAndReplacesOverrides(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Learning.MinSamples = 5

	facts := memory.NewFactStore()
	lessons := memory.NewLessonStore()
	ovr := memory.NewOverrideStore()

	var rows []domain.EvidenceRow
	for i := 0; i < 10; i++ {
		rows = append(rows, tradeRow(fmt.Sprintf("w%d", i), 1, "small", now.Add(-time.Hour)))
		rows = append(rows, tradeRow(fmt.Sprintf("l%d", i), -1, "large", now.Add(-time.Hour)))
	}
	// Outside the lookback window.
	for i := 0; i < 10; i++ {
		rows = append(rows, tradeRow(fmt.Sprintf("old%d", i), 5, "small", now.Add(-cfg.Learning.Lookback-time.Hour)))
	}
	require.NoError(t, facts.InsertEvidence(ctx, rows))

	// A stale override set is replaced wholesale.
	require.NoError(t, ovr.ReplaceGating(ctx, []domain.GatingOverride{{ID: "stale", PatternKey: "S1.buy_signal.entry", Category: "entry"}}))

	job := NewLearningJob(cfg, facts, lessons, ovr, logging.Nop())
	job.WithClock(func() time.Time { return now })

	res, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, res.EvidenceRows)
	assert.Equal(t, 3, res.Lessons)
	assert.Zero(t, res.Gating)
	assert.Equal(t, 2, res.Posture)

	stored, err := lessons.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	gating, err := ovr.MatchingGating(ctx, map[string]string{})
	require.NoError(t, err)
	assert.Empty(t, gating)

	small, err := ovr.MatchingPosture(ctx, map[string]string{domain.ScopeBucket: "small"})
	require.NoError(t, err)
	require.Len(t, small, 1)
	assert.Equal(t, domain.PostureA, small[0].Target)
	assert.Greater(t, small[0].Direction, 0.0)

	large, err := ovr.MatchingPosture(ctx, map[string]string{domain.ScopeBucket: "large"})
	require.NoError(t, err)
	require.Len(t, large, 1)
	assert.Less(t, large[0].Direction, 0.0)
}

func TestLearningJob_ThroughRunner(t *testing.T) {
	cfg := config.Default()
	job := NewLearningJob(cfg, memory.NewFactStore(), memory.NewLessonStore(), memory.NewOverrideStore(), logging.Nop())
	r := NewRunner(newHeldLocker(), time.Second, logging.Nop())

	require.NoError(t, r.Run(context.Background(), LearningJobName, job.Func()))
}

// slowLessons blocks Upsert until released.
type slowLessons struct {
	*memory.LessonStore
	release chan struct{}
}

func (s *slowLessons) Upsert(ctx context.Context, lessons []domain.Lesson) error {
	<-s.release
	return s.LessonStore.Upsert(ctx, lessons)
}

func TestLearningJob_AbandonedRunDoesNotReplaceNewerOverrides(t *testing.T) {
	ctx := context.Background()
	ovr := memory.NewOverrideStore()
	lessons := &slowLessons{LessonStore: memory.NewLessonStore(), release: make(chan struct{})}
	job := NewLearningJob(config.Default(), memory.NewFactStore(), lessons, ovr, logging.Nop())

	locker := newHeldLocker()
	r := NewRunner(locker, 20*time.Millisecond, logging.Nop())
	err := r.Run(ctx, LearningJobName, job.Func())
	require.ErrorIs(t, err, ErrJobAbandoned)

	// A newer pass lands while the abandoned one is still stuck.
	fresh := []domain.GatingOverride{{ID: "fresh", PatternKey: "S1.buy_signal.entry", Category: "entry"}}
	require.NoError(t, ovr.ReplaceGating(ctx, fresh))

	close(lessons.release)
	assert.Eventually(t, func() bool { return locker.releases() == 1 }, time.Second, 5*time.Millisecond)

	gating, err := ovr.MatchingGating(ctx, map[string]string{})
	require.NoError(t, err)
	require.Len(t, gating, 1)
	assert.Equal(t, "fresh", gating[0].ID)
}
