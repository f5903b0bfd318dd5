package orchestrator

import (
	"context"
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/stateengine"
)

// snapshot classifies the tick's driver features into the shared regime
// snapshot. Driver states carry over between ticks; a failed fetch yields
// an empty snapshot so every position falls back to the neutral base.
func (o *Orchestrator) snapshot(ctx context.Context, at time.Time) domain.RegimeSnapshot {
	snap := domain.RegimeSnapshot{
		Outputs:  make(map[domain.Driver]map[domain.RegimeTimeframe]domain.StateOutput),
		Buckets:  make(map[string]map[domain.RegimeTimeframe]domain.StateOutput),
		Ordering: make(map[string]domain.BucketOrdering),
	}

	raw, err := o.drivers.Drivers(ctx, at)
	if err != nil {
		o.log.Warn().Err(err).Msg("driver features unavailable, regime neutral")
		return snap
	}

	for drv, byTF := range raw.Drivers {
		if drv == domain.DriverBucket {
			continue
		}
		snap.Outputs[drv] = o.classifyDriver("driver:"+string(drv), byTF)
	}
	for bucket, byTF := range raw.Buckets {
		snap.Buckets[bucket] = o.classifyDriver("bucket:"+bucket, byTF)
	}
	snap.Intent = raw.Intent
	for bucket, ord := range raw.Ordering {
		snap.Ordering[bucket] = ord
	}
	return snap
}

// classifyDriver bootstraps drivers straight into S3 when first seen in full
// bullish order, so a restart re-seeds ordered drivers on its first tick.
func (o *Orchestrator) classifyDriver(prefix string, byTF map[domain.RegimeTimeframe]domain.Features) map[domain.RegimeTimeframe]domain.StateOutput {
	outs := make(map[domain.RegimeTimeframe]domain.StateOutput, len(byTF))
	for tf, f := range byTF {
		id := prefix + "/" + string(tf)
		out := o.engine.Classify(o.driverStates[id], f, stateengine.Inputs{DirectBootstrap: true})
		o.driverStates[id] = out
		outs[tf] = out
	}
	return outs
}
