package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

func TestFactStore_EvidenceSince(t *testing.T) {
	store := NewFactStore()
	ctx := context.Background()
	base := time.Unix(10_000, 0).UTC()

	rows := []domain.EvidenceRow{
		{UnitID: "t1", Source: domain.EvidenceTrade, PatternKey: "S1.buy_signal.entry", Category: "entry", Metric: 1, At: base.Add(2 * time.Hour)},
		{UnitID: "t1", Source: domain.EvidenceTrade, PatternKey: "S1.buy_signal.entry", Category: "entry", Metric: 1, At: base},
		{UnitID: "t2", Source: domain.EvidenceTrade, PatternKey: "S1.buy_signal.entry", Category: "entry", Metric: -1, At: base.Add(-time.Hour)},
	}
	if err := store.InsertEvidence(ctx, rows); err != nil {
		t.Fatalf("InsertEvidence failed: %v", err)
	}

	got, err := store.EvidenceSince(ctx, base)
	if err != nil {
		t.Fatalf("EvidenceSince failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(got))
	}
	if !got[0].At.Equal(base) {
		t.Errorf("Expected ascending order, first At = %v", got[0].At)
	}
}

func TestFactStore_InvalidEvidence(t *testing.T) {
	store := NewFactStore()
	err := store.InsertEvidence(context.Background(), []domain.EvidenceRow{{PatternKey: "x"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestFactStore_TradeFactDuplicate(t *testing.T) {
	store := NewFactStore()
	ctx := context.Background()

	f := domain.TradeFact{TradeID: "trade1", ClosedAt: time.Unix(1, 0)}
	if err := store.InsertTradeFact(ctx, f); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.InsertTradeFact(ctx, f); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.TradeFact(ctx, "trade1")
	if err != nil || got.TradeID != "trade1" {
		t.Errorf("TradeFact lookup failed: %v", err)
	}
}

func TestFactStore_EpisodesSince(t *testing.T) {
	store := NewFactStore()
	ctx := context.Background()
	base := time.Unix(10_000, 0).UTC()

	for i, id := range []string{"e2", "e1", "e0"} {
		f := domain.EpisodeFact{
			Episode: domain.Episode{
				ID:       id,
				Class:    domain.EpisodeS1Entry,
				Outcome:  domain.OutcomeMissed,
				ClosedAt: base.Add(time.Duration(2-i) * time.Hour),
			},
			PatternKey: "S1.buy_signal.entry",
			Category:   "entry",
		}
		if err := store.InsertEpisodeFact(ctx, f); err != nil {
			t.Fatalf("InsertEpisodeFact failed: %v", err)
		}
	}
	if err := store.InsertEpisodeFact(ctx, domain.EpisodeFact{Episode: domain.Episode{ID: "e1"}}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.EpisodesSince(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("EpisodesSince failed: %v", err)
	}
	if len(got) != 2 || got[0].Episode.ID != "e1" || got[1].Episode.ID != "e2" {
		t.Errorf("unexpected episodes: %+v", got)
	}
}
