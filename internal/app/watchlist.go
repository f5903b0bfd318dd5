package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"trendloop/internal/domain"
	"trendloop/internal/feed"
	"trendloop/internal/ledger"
	"trendloop/internal/storage"
)

// RegisterWatchlist opens a position for every entry not yet managed.
// Malformed entries are logged and skipped. Returns the number registered.
func RegisterWatchlist(ctx context.Context, l *ledger.Ledger, entries []feed.WatchEntry, now time.Time, log zerolog.Logger) int {
	var added int
	for _, e := range entries {
		kind := e.Kind
		if kind == "" {
			kind = domain.InstrumentCrypto
		}
		p, err := ledger.NewPosition(e.Key(), e.Ticker, domain.ClassifyInstrument(kind, e.Bucket), e.AllocationUSD, now)
		if err != nil {
			log.Warn().Err(err).Str("position", e.Key().String()).Msg("watchlist entry rejected")
			continue
		}
		if err := l.Open(ctx, p); err != nil {
			if !errors.Is(err, storage.ErrDuplicateKey) {
				log.Error().Err(err).Str("position", e.Key().String()).Msg("register position failed")
			}
			continue
		}
		added++
	}
	return added
}
