package episode

import (
	"time"

	"trendloop/internal/domain"
)

// blockedBy lists the classes an entered failure of a class blocks.
var blockedBy = map[domain.EpisodeClass][]domain.EpisodeClass{
	domain.EpisodeS1Entry:  {domain.EpisodeS1Entry, domain.EpisodeS2Retest},
	domain.EpisodeS2Retest: {domain.EpisodeS2Retest},
}

// ApplyBlocks folds closed episodes into the block record and reports
// whether it changed.
//
// An entered failure blocks its class (S1 also blocks S2). A class whose
// episode reaches its target unblocks itself and everything its own
// failure had blocked. Skipped episodes never set a block.
func ApplyBlocks(rec *domain.BlockRecord, closed []domain.Episode, at time.Time) bool {
	changed := false
	for _, ep := range closed {
		switch {
		case ep.Outcome == domain.OutcomeFailure:
			for _, c := range blockedBy[ep.Class] {
				if rec.Blocked == nil {
					rec.Blocked = make(map[domain.EpisodeClass]domain.EpisodeClass)
				}
				if cause, ok := rec.Blocked[c]; !ok || cause != ep.Class {
					rec.Blocked[c] = ep.Class
					changed = true
				}
			}
		case ep.TargetReached:
			// Missed counts too: a blocked class is never entered, so it
			// can only clear through a missed episode.
			for blocked, cause := range rec.Blocked {
				if blocked == ep.Class || cause == ep.Class {
					delete(rec.Blocked, blocked)
					changed = true
				}
			}
		}
	}
	if changed {
		rec.UpdatedAt = at
	}
	return changed
}
