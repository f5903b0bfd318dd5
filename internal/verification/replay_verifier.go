package verification

import (
	"context"

	"trendloop/internal/metrics"
	"trendloop/internal/replay"
	"trendloop/internal/storage"
)

// ReplayVerifier re-runs recorded frames in a fresh session and compares
// the trades it produces with stored ones.
type ReplayVerifier struct {
	opts replay.SessionOptions
}

// NewReplayVerifier creates a verifier. opts must match the run being
// verified, including the learning cadence.
func NewReplayVerifier(opts replay.SessionOptions) *ReplayVerifier {
	return &ReplayVerifier{opts: opts}
}

// VerifyAll replays frames and verifies every completed trade in stored.
func (v *ReplayVerifier) VerifyAll(ctx context.Context, stored storage.PositionStore, frames []replay.Frame) (*VerificationReport, error) {
	expected, err := metrics.NewAggregator(stored).Trades(ctx)
	if err != nil {
		return nil, err
	}

	replayed, err := v.replay(ctx, frames)
	if err != nil {
		return nil, err
	}
	return CompareSets(expected, replayed), nil
}

// VerifyDeterminism replays frames twice and compares the two runs.
func (v *ReplayVerifier) VerifyDeterminism(ctx context.Context, frames []replay.Frame) (*VerificationReport, error) {
	first, err := v.replay(ctx, frames)
	if err != nil {
		return nil, err
	}
	second, err := v.replay(ctx, frames)
	if err != nil {
		return nil, err
	}
	return CompareSets(first, second), nil
}

func (v *ReplayVerifier) replay(ctx context.Context, frames []replay.Frame) ([]metrics.Trade, error) {
	session, cleanup, err := replay.NewSession(ctx, v.opts)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := session.Run(ctx, frames); err != nil {
		return nil, err
	}
	return metrics.NewAggregator(session.Stores.Positions).Trades(ctx)
}
