package domain

// Driver identifies a macro instrument feeding the regime aggregator.
type Driver string

const (
	DriverBTC           Driver = "btc"
	DriverAlt           Driver = "alt"
	DriverBucket        Driver = "bucket"
	DriverBTCDominance  Driver = "btc_dominance"
	DriverUSDTDominance Driver = "usdt_dominance"
)

// Drivers lists every driver in canonical order.
var Drivers = []Driver{DriverBTC, DriverAlt, DriverBucket, DriverBTCDominance, DriverUSDTDominance}

// RegimeTimeframe is one of the three driver horizons.
type RegimeTimeframe string

const (
	RegimeMacro RegimeTimeframe = "macro"
	RegimeMeso  RegimeTimeframe = "meso"
	RegimeMicro RegimeTimeframe = "micro"
)

// RegimeTimeframes lists the horizons in canonical order.
var RegimeTimeframes = []RegimeTimeframe{RegimeMacro, RegimeMeso, RegimeMicro}

// IntentCounts are qualitative signal counts feeding the intent delta.
type IntentCounts struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
	Mocks int `json:"mocks"`
}

// BucketOrdering describes where the token's bucket ranks among buckets.
type BucketOrdering struct {
	Rank       float64 `json:"rank"`  // 0 = leading bucket, 1 = lagging
	Slope      float64 `json:"slope"` // rank momentum, [-1,1]
	Confidence float64 `json:"confidence"`
}

// RegimeSnapshot is computed once per tick and shared read-only.
// Buckets holds the per-bucket composite outputs keyed by bucket name.
type RegimeSnapshot struct {
	Outputs  map[Driver]map[RegimeTimeframe]StateOutput `json:"outputs"`
	Buckets  map[string]map[RegimeTimeframe]StateOutput `json:"buckets"`
	Intent   IntentCounts                               `json:"intent"`
	Ordering map[string]BucketOrdering                  `json:"ordering"`
}

// Output returns the driver output for a timeframe; the bucket driver is
// resolved against the given bucket.
func (s RegimeSnapshot) Output(d Driver, bucket string, tf RegimeTimeframe) (StateOutput, bool) {
	if d == DriverBucket {
		byTF, ok := s.Buckets[bucket]
		if !ok {
			return StateOutput{}, false
		}
		out, ok := byTF[tf]
		return out, ok
	}
	byTF, ok := s.Outputs[d]
	if !ok {
		return StateOutput{}, false
	}
	out, ok := byTF[tf]
	return out, ok
}

// RegimeFeatures is the raw driver input of one tick. The orchestrator
// classifies it into a RegimeSnapshot.
type RegimeFeatures struct {
	Drivers  map[Driver]map[RegimeTimeframe]Features
	Buckets  map[string]map[RegimeTimeframe]Features
	Intent   IntentCounts
	Ordering map[string]BucketOrdering
}
