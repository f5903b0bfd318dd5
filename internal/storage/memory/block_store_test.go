package memory

import (
	"context"
	"testing"

	"trendloop/internal/domain"
)

func TestBlockStore_EmptyByDefault(t *testing.T) {
	store := NewBlockStore()
	key := domain.PositionKey{Token: "tok", Chain: "solana", Timeframe: "1h"}

	rec, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Key != key || rec.IsBlocked(domain.EpisodeS1Entry) {
		t.Errorf("expected empty record, got %+v", rec)
	}
}

func TestBlockStore_PutAndGet(t *testing.T) {
	store := NewBlockStore()
	ctx := context.Background()
	key := domain.PositionKey{Token: "tok", Chain: "solana", Timeframe: "1h"}

	rec := domain.BlockRecord{
		Key: key,
		Blocked: map[domain.EpisodeClass]domain.EpisodeClass{
			domain.EpisodeS1Entry:  domain.EpisodeS1Entry,
			domain.EpisodeS2Retest: domain.EpisodeS1Entry,
		},
	}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	delete(rec.Blocked, domain.EpisodeS2Retest)

	got, _ := store.Get(ctx, key)
	if !got.IsBlocked(domain.EpisodeS1Entry) || !got.IsBlocked(domain.EpisodeS2Retest) {
		t.Errorf("expected S1 and S2 blocked, got %+v", got.Blocked)
	}
}
