// Package feed serves indicator snapshots to the tick loop, either from a
// JSON file an external indicator pipeline rewrites between ticks or from
// a snapshot set in memory by a replay.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trendloop/internal/domain"
)

// ErrNoData is returned when the snapshot carries no features for a position.
var ErrNoData = errors.New("no feature data")

// Snapshot is the document format of the feed file.
type Snapshot struct {
	At        time.Time                                               `json:"at"`
	Watchlist []WatchEntry                                            `json:"watchlist,omitempty"`
	Positions []FeatureDoc                                            `json:"positions"`
	Drivers   map[domain.Driver]map[domain.RegimeTimeframe]FeatureDoc `json:"drivers,omitempty"`
	Buckets   map[string]map[domain.RegimeTimeframe]FeatureDoc        `json:"buckets,omitempty"`
	Intent    domain.IntentCounts                                     `json:"intent"`
	Ordering  map[string]domain.BucketOrdering                        `json:"ordering,omitempty"`
}

// WatchEntry declares a position the pilot should manage.
type WatchEntry struct {
	Token         string                `json:"token"`
	Chain         string                `json:"chain"`
	Timeframe     string                `json:"timeframe"`
	Ticker        string                `json:"ticker"`
	Kind          domain.InstrumentKind `json:"kind"`
	Bucket        string                `json:"bucket"`
	AllocationUSD float64               `json:"allocation_usd"`
}

// Key returns the position key of the entry.
func (w WatchEntry) Key() domain.PositionKey {
	return domain.PositionKey{Token: w.Token, Chain: w.Chain, Timeframe: w.Timeframe}
}

// FeatureDoc is one indicator snapshot. EMA and slope keys are periods.
type FeatureDoc struct {
	Token        string          `json:"token,omitempty"`
	Chain        string          `json:"chain,omitempty"`
	Timeframe    string          `json:"timeframe,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Bar          int64           `json:"bar"`
	Price        float64         `json:"price"`
	ATR          float64         `json:"atr"`
	EMA          map[int]float64 `json:"ema"`
	Slope        map[int]float64 `json:"slope"`
	SupportLevel float64         `json:"support_level,omitempty"`
}

// Features converts the document to the engine input.
func (d FeatureDoc) Features() domain.Features {
	return domain.Features{
		Token:        d.Token,
		Chain:        d.Chain,
		Timeframe:    d.Timeframe,
		Timestamp:    d.Timestamp,
		Bar:          d.Bar,
		Price:        d.Price,
		ATR:          d.ATR,
		EMA:          d.EMA,
		Slope:        d.Slope,
		SupportLevel: d.SupportLevel,
	}
}

// Static serves one snapshot held in memory until replaced.
type Static struct {
	mu       sync.RWMutex
	loaded   bool
	snapshot Snapshot
	features map[domain.PositionKey]domain.Features
}

// NewStatic creates an empty source.
func NewStatic() *Static {
	return &Static{features: make(map[domain.PositionKey]domain.Features)}
}

// Set replaces the served snapshot.
func (s *Static) Set(snap Snapshot) {
	features := make(map[domain.PositionKey]domain.Features, len(snap.Positions))
	for _, doc := range snap.Positions {
		key := domain.PositionKey{Token: doc.Token, Chain: doc.Chain, Timeframe: doc.Timeframe}
		features[key] = doc.Features()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.snapshot = snap
	s.features = features
}

// Watchlist returns the declared positions of the current snapshot.
func (s *Static) Watchlist() []WatchEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WatchEntry, len(s.snapshot.Watchlist))
	copy(out, s.snapshot.Watchlist)
	return out
}

// Features returns the current features of a position.
func (s *Static) Features(_ context.Context, key domain.PositionKey) (domain.Features, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feat, ok := s.features[key]
	if !ok {
		return domain.Features{}, fmt.Errorf("%w: %s", ErrNoData, key)
	}
	return feat, nil
}

// Drivers returns the driver features of the current snapshot.
func (s *Static) Drivers(_ context.Context, _ time.Time) (domain.RegimeFeatures, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return domain.RegimeFeatures{}, fmt.Errorf("%w: feed never loaded", ErrNoData)
	}

	out := domain.RegimeFeatures{
		Drivers:  make(map[domain.Driver]map[domain.RegimeTimeframe]domain.Features, len(s.snapshot.Drivers)),
		Buckets:  make(map[string]map[domain.RegimeTimeframe]domain.Features, len(s.snapshot.Buckets)),
		Intent:   s.snapshot.Intent,
		Ordering: make(map[string]domain.BucketOrdering, len(s.snapshot.Ordering)),
	}
	for drv, byTF := range s.snapshot.Drivers {
		out.Drivers[drv] = convert(byTF)
	}
	for bucket, byTF := range s.snapshot.Buckets {
		out.Buckets[bucket] = convert(byTF)
	}
	for bucket, o := range s.snapshot.Ordering {
		out.Ordering[bucket] = o
	}
	return out, nil
}

func convert(byTF map[domain.RegimeTimeframe]FeatureDoc) map[domain.RegimeTimeframe]domain.Features {
	out := make(map[domain.RegimeTimeframe]domain.Features, len(byTF))
	for tf, doc := range byTF {
		out[tf] = doc.Features()
	}
	return out
}

// File serves the snapshot of a file, re-parsing it only when its
// modification time changes. A parse failure keeps the last good snapshot.
type File struct {
	*Static

	path string
	log  zerolog.Logger

	mu      sync.Mutex
	modTime time.Time
}

// NewFile creates a feed over path. The file is read lazily.
func NewFile(path string, log zerolog.Logger) *File {
	return &File{
		Static: NewStatic(),
		path:   path,
		log:    log.With().Str("component", "feed").Logger(),
	}
}

// Refresh re-reads the file if it changed since the last read.
func (f *File) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return fmt.Errorf("stat feed %s: %w", f.path, err)
	}
	if !f.modTime.IsZero() && info.ModTime().Equal(f.modTime) {
		return nil
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read feed %s: %w", f.path, err)
	}
	snap, err := Parse(raw)
	if err != nil {
		return fmt.Errorf("parse feed %s: %w", f.path, err)
	}
	f.Static.Set(snap)
	f.modTime = info.ModTime()

	f.log.Debug().Time("at", snap.At).Int("positions", len(snap.Positions)).Msg("feed refreshed")
	return nil
}

// Drivers refreshes the file and returns the driver features. It is the
// first call of every tick.
func (f *File) Drivers(ctx context.Context, at time.Time) (domain.RegimeFeatures, error) {
	if err := f.Refresh(ctx); err != nil {
		f.log.Warn().Err(err).Msg("feed refresh failed, serving last snapshot")
	}
	return f.Static.Drivers(ctx, at)
}

// Parse decodes a snapshot document.
func Parse(raw []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, err
	}
	for i, doc := range snap.Positions {
		if doc.Token == "" || doc.Chain == "" || doc.Timeframe == "" {
			return Snapshot{}, fmt.Errorf("position %d: token, chain and timeframe are required", i)
		}
	}
	return snap, nil
}
