package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name        string
		chain       string
		token       string
		timeframe   string
		entryTimeMs int64
		wantLen     int // hash length should be 64
	}{
		{
			name:        "solana hourly",
			chain:       "solana",
			token:       "So11111111111111111111111111111111111111112",
			timeframe:   "1h",
			entryTimeMs: 1704067234567,
			wantLen:     64,
		},
		{
			name:        "base 15m",
			chain:       "base",
			token:       "0x4200000000000000000000000000000000000006",
			timeframe:   "15m",
			entryTimeMs: 1704067300000,
			wantLen:     64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.chain, tt.token, tt.timeframe, tt.entryTimeMs)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTradeID(tt.chain, tt.token, tt.timeframe, tt.entryTimeMs)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DistinctEntries(t *testing.T) {
	a := ComputeTradeID("solana", "tok", "1h", 1000)
	b := ComputeTradeID("solana", "tok", "1h", 1001)
	c := ComputeTradeID("solana", "tok", "4h", 1000)
	if a == b || a == c {
		t.Errorf("expected distinct ids, got %s %s %s", a, b, c)
	}
}

func TestComputeLessonID(t *testing.T) {
	a := ComputeLessonID("gating", "S1.buy_signal.entry", "entry", "chain=solana")
	if len(a) != 64 {
		t.Fatalf("length = %d, want 64", len(a))
	}
	if a != ComputeLessonID("gating", "S1.buy_signal.entry", "entry", "chain=solana") {
		t.Error("ComputeLessonID() not deterministic")
	}
	if a == ComputeLessonID("gating", "S1.buy_signal.entry", "entry", "") {
		t.Error("scope must change the id")
	}
	if ComputeOverrideID("posture", a, "A") == ComputeOverrideID("posture", a, "E") {
		t.Error("target must change the override id")
	}
}
