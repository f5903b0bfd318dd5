package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trendloop/internal/config"
	"trendloop/internal/learning"
	"trendloop/internal/observability"
	"trendloop/internal/overrides"
	"trendloop/internal/storage"
)

// LearningJobName is the lock and metrics name of the learning job.
const LearningJobName = "learning"

// LearningResult summarizes one learning run.
type LearningResult struct {
	EvidenceRows int
	Episodes     int
	Lessons      int
	Gating       int
	Posture      int
}

// LearningJob mines lessons from recent evidence and replaces the
// override sets the tick loop reads.
type LearningJob struct {
	lookback time.Duration

	facts     storage.FactStore
	lessons   storage.LessonStore
	overrides storage.OverrideStore

	miner        *learning.Miner
	materializer *overrides.Materializer

	log zerolog.Logger
	now func() time.Time
}

// NewLearningJob creates the job.
func NewLearningJob(cfg *config.Config, facts storage.FactStore, lessons storage.LessonStore, ovr storage.OverrideStore, log zerolog.Logger) *LearningJob {
	return &LearningJob{
		lookback:     cfg.Learning.Lookback,
		facts:        facts,
		lessons:      lessons,
		overrides:    ovr,
		miner:        learning.NewMiner(cfg.Learning, log),
		materializer: overrides.NewMaterializer(cfg.Overrides, cfg.State, log),
		log:          log.With().Str("component", "learning_job").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets the clock used for the lookback window and lesson decay.
func (j *LearningJob) WithClock(now func() time.Time) *LearningJob {
	j.now = now
	return j
}

// Run executes one learning pass.
func (j *LearningJob) Run(ctx context.Context) (*LearningResult, error) {
	now := j.now()
	since := time.Time{}
	if j.lookback > 0 {
		since = now.Add(-j.lookback)
	}

	rows, err := j.facts.EvidenceSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}
	episodes, err := j.facts.EpisodesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load episodes: %w", err)
	}

	lessons := j.miner.Mine(rows, now)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := j.lessons.Upsert(ctx, lessons); err != nil {
		return nil, fmt.Errorf("store lessons: %w", err)
	}

	// An abandoned run must not overwrite overrides from a newer one.
	gating, posture := j.materializer.Materialize(lessons, episodes, now)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := j.overrides.ReplaceGating(ctx, gating); err != nil {
		return nil, fmt.Errorf("store gating overrides: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := j.overrides.ReplacePosture(ctx, posture); err != nil {
		return nil, fmt.Errorf("store posture overrides: %w", err)
	}

	res := &LearningResult{
		EvidenceRows: len(rows),
		Episodes:     len(episodes),
		Lessons:      len(lessons),
		Gating:       len(gating),
		Posture:      len(posture),
	}
	observability.RecordLearning(res.Lessons, res.Gating, res.Posture, now)
	j.log.Info().
		Time("since", since).
		Int("evidence_rows", res.EvidenceRows).
		Int("episodes", res.Episodes).
		Int("lessons", res.Lessons).
		Int("gating_overrides", res.Gating).
		Int("posture_overrides", res.Posture).
		Msg("learning pass complete")
	return res, nil
}

// Func adapts the job to the runner.
func (j *LearningJob) Func() Func {
	return func(ctx context.Context) error {
		_, err := j.Run(ctx)
		return err
	}
}
