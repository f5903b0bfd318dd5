package domain

import "time"

// Features is the indicator snapshot for one (token, chain, timeframe) bar.
// Produced by the indicator layer; already aligned and gap-handled.
type Features struct {
	Token     string
	Chain     string
	Timeframe string
	Timestamp time.Time
	Bar       int64 // monotonic bar index within the timeframe

	Price float64
	ATR   float64
	EMA   map[int]float64 // period -> value
	Slope map[int]float64 // period -> fractional change per bar

	// SupportLevel is the nearest support/resistance level, 0 when unknown.
	SupportLevel float64
}

// EMAValue returns the EMA for period and whether it is present and positive.
func (f Features) EMAValue(period int) (float64, bool) {
	v, ok := f.EMA[period]
	return v, ok && v > 0
}

// SlopeValue returns the slope for period and whether it is present.
func (f Features) SlopeValue(period int) (float64, bool) {
	v, ok := f.Slope[period]
	return v, ok
}

// Key returns the position key the snapshot belongs to.
func (f Features) Key() PositionKey {
	return PositionKey{Token: f.Token, Chain: f.Chain, Timeframe: f.Timeframe}
}
