package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

func testPosition(token string) *domain.Position {
	return &domain.Position{
		Key:           domain.PositionKey{Token: token, Chain: "solana", Timeframe: "1h"},
		Ticker:        "TOK",
		Status:        domain.StatusWatchlist,
		AllocationUSD: 1000,
		UpdatedAt:     time.Unix(1000, 0).UTC(),
	}
}

func TestPositionStore_InsertAndGet(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	p := testPosition("tok1")
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.Get(ctx, p.Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AllocationUSD != 1000 {
		t.Errorf("AllocationUSD mismatch: got %f, want %f", got.AllocationUSD, 1000.0)
	}
}

func TestPositionStore_DuplicateKey(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	p := testPosition("tok1")
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Insert(ctx, p)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPositionStore_NotFound(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	_, err := store.Get(ctx, domain.PositionKey{Token: "missing"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	err = store.Update(ctx, testPosition("missing"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on update, got %v", err)
	}
}

func TestPositionStore_ReadsDoNotAlias(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	p := testPosition("tok1")
	p.History.TrimPool.USDBasis = 100
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := store.Get(ctx, p.Key)
	got.History.TrimPool.USDBasis = 0
	got.History.LastActions = map[domain.SignalClass]domain.LastAction{domain.SignalTrim: {}}

	again, _ := store.Get(ctx, p.Key)
	if again.History.TrimPool.USDBasis != 100 {
		t.Errorf("stored position mutated through read: basis %f", again.History.TrimPool.USDBasis)
	}
	if len(again.History.LastActions) != 0 {
		t.Errorf("stored history mutated through read")
	}
}

func TestPositionStore_UpdateAndList(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	for _, tok := range []string{"b", "a", "c"} {
		if err := store.Insert(ctx, testPosition(tok)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	p, _ := store.Get(ctx, domain.PositionKey{Token: "a", Chain: "solana", Timeframe: "1h"})
	p.Quantity = 42
	if err := store.Update(ctx, p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 positions, got %d", len(list))
	}
	if list[0].Key.Token != "a" || list[0].Quantity != 42 {
		t.Errorf("unexpected first position: %+v", list[0].Key)
	}
}
