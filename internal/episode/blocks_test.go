package episode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/config"
	"trendloop/internal/decision"
	"trendloop/internal/domain"
)

func closedEp(class domain.EpisodeClass, entered, reached bool) domain.Episode {
	return domain.Episode{
		Class:         class,
		Entered:       entered,
		TargetReached: reached,
		Outcome:       domain.ClassifyOutcome(entered, reached),
	}
}

func TestApplyBlocks(t *testing.T) {
	var rec domain.BlockRecord

	assert.False(t, ApplyBlocks(&rec, []domain.Episode{closedEp(domain.EpisodeS1Entry, false, false)}, t0), "skips never block")
	assert.Empty(t, rec.Blocked)

	assert.True(t, ApplyBlocks(&rec, []domain.Episode{closedEp(domain.EpisodeS1Entry, true, false)}, t0))
	assert.True(t, rec.IsBlocked(domain.EpisodeS1Entry))
	assert.True(t, rec.IsBlocked(domain.EpisodeS2Retest))
	assert.Equal(t, t0, rec.UpdatedAt)

	// S2 reaching target clears only S2.
	assert.True(t, ApplyBlocks(&rec, []domain.Episode{closedEp(domain.EpisodeS2Retest, false, true)}, t0))
	assert.True(t, rec.IsBlocked(domain.EpisodeS1Entry))
	assert.False(t, rec.IsBlocked(domain.EpisodeS2Retest))

	// S2 failure blocks S2 only.
	ApplyBlocks(&rec, []domain.Episode{closedEp(domain.EpisodeS2Retest, true, false)}, t0)
	assert.True(t, rec.IsBlocked(domain.EpisodeS2Retest))

	// S1 reaching target clears S1 and what S1 caused, not the S2-caused block.
	ApplyBlocks(&rec, []domain.Episode{closedEp(domain.EpisodeS1Entry, false, true)}, t0)
	assert.False(t, rec.IsBlocked(domain.EpisodeS1Entry))
	assert.True(t, rec.IsBlocked(domain.EpisodeS2Retest))

	// S3 failures never block.
	assert.False(t, ApplyBlocks(&rec, []domain.Episode{closedEp(domain.EpisodeS3Dip, true, false)}, t0))
}

// An entered S1 episode that fails blocks later S1 and S2 signals until an
// S1 episode reaches its target.
func TestEpisodeBlockScenario(t *testing.T) {
	r := newRecorder()
	p := newPos()
	p.AllocationUSD = 1000
	planner := decision.NewPlanner(config.Default().Decision)
	block := domain.BlockRecord{Key: p.Key}
	buy := domain.Flags{BuySignal: true}

	r.Observe(p, tick(0, domain.StateS0, domain.StateS1, 10, buy, domain.Scores{TS: 0.7}))
	r.MarkEntered(p, domain.EpisodeS1Entry)
	closed := r.Observe(p, tick(1, domain.StateS1, domain.StateS0, 8, domain.Flags{EmergencyExit: true}, domain.Scores{}))
	require.Len(t, closed, 1)
	require.Equal(t, domain.OutcomeFailure, closed[0].Outcome)
	ApplyBlocks(&block, closed, t0)

	plan := func(state domain.State, fl domain.Flags) decision.Plan {
		return planner.Plan(decision.Input{
			Output:   domain.StateOutput{State: state, Flags: fl},
			Features: domain.Features{Price: 10, ATR: 1, Timestamp: t0},
			A:        0.5,
			Position: p,
			Block:    block,
		})
	}

	s1 := plan(domain.StateS1, buy)
	assert.True(t, s1.Empty())
	assert.Equal(t, decision.GateEpisodeBlocked, s1.Suppressed[0].Gate)
	s2 := plan(domain.StateS2, domain.Flags{BuyFlag: true})
	assert.True(t, s2.Empty())
	assert.Equal(t, decision.GateEpisodeBlocked, s2.Suppressed[0].Gate)

	// A later S1 episode that reaches S3 unblocks both. It was never
	// entered while blocked, so it closes as missed.
	r.Observe(p, tick(2, domain.StateS0, domain.StateS1, 10, buy, domain.Scores{}))
	r.Observe(p, tick(3, domain.StateS1, domain.StateS2, 11, domain.Flags{}, domain.Scores{}))
	closed = r.Observe(p, tick(4, domain.StateS2, domain.StateS3, 12, domain.Flags{}, domain.Scores{}))
	require.NotEmpty(t, closed)
	for _, ep := range closed {
		require.Equal(t, domain.OutcomeMissed, ep.Outcome, ep.Class)
	}
	assert.True(t, ApplyBlocks(&block, closed, t0))

	assert.False(t, block.IsBlocked(domain.EpisodeS1Entry))
	assert.False(t, block.IsBlocked(domain.EpisodeS2Retest))
	assert.Len(t, plan(domain.StateS1, buy).Actions, 1)
}
