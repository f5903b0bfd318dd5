package memory

import (
	"context"
	"testing"

	"trendloop/internal/domain"
)

func TestOverrideStore_MatchingIsSubsetOfContext(t *testing.T) {
	store := NewOverrideStore()
	ctx := context.Background()

	gating := []domain.GatingOverride{
		{ID: "g-global", PatternKey: "S1.buy_signal.entry", Multipliers: map[string]float64{domain.ThresholdTS: 0.9}},
		{ID: "g-sol", PatternKey: "S1.buy_signal.entry", Scope: map[string]string{"chain": "solana"}, Multipliers: map[string]float64{domain.ThresholdTS: 0.85}},
		{ID: "g-base", PatternKey: "S1.buy_signal.entry", Scope: map[string]string{"chain": "base"}, Multipliers: map[string]float64{domain.ThresholdTS: 1.1}},
	}
	if err := store.ReplaceGating(ctx, gating); err != nil {
		t.Fatalf("ReplaceGating failed: %v", err)
	}

	got, err := store.MatchingGating(ctx, map[string]string{"chain": "solana", "timeframe": "1h"})
	if err != nil {
		t.Fatalf("MatchingGating failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(got))
	}
	for _, o := range got {
		if o.ID == "g-base" {
			t.Errorf("base-scoped override must not match a solana context")
		}
	}
}

func TestOverrideStore_ReplacePosture(t *testing.T) {
	store := NewOverrideStore()
	ctx := context.Background()

	first := []domain.PostureOverride{{ID: "p1", Target: domain.PostureA, Direction: 0.5, Confidence: 0.5}}
	if err := store.ReplacePosture(ctx, first); err != nil {
		t.Fatalf("ReplacePosture failed: %v", err)
	}
	if err := store.ReplacePosture(ctx, nil); err != nil {
		t.Fatalf("ReplacePosture failed: %v", err)
	}
	got, _ := store.MatchingPosture(ctx, nil)
	if len(got) != 0 {
		t.Errorf("Expected empty set after replace, got %d", len(got))
	}
}
