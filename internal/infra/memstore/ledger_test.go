package memstore

import (
	"context"
	"testing"
	"time"

	"spawn_warning_bot/internal/domain/notification"
	"spawn_warning_bot/internal/domain/spawn"
)

func TestLedgerRepositoryKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()
	base := time.Date(2025, 9, 19, 16, 0, 0, 0, time.UTC)

	// inserted out of time order
	keys := []notification.Key{
		notification.NewKey(spawn.SourceField, "Ego", base.Add(30*time.Minute)),
		notification.NewKey(spawn.SourceWeekly, "Clemantis", base),
		notification.NewKey(spawn.SourceField, "Venatus", base.Add(10*time.Minute)),
	}
	for _, k := range keys {
		if err := repo.MarkSent(ctx, k); err != nil {
			t.Fatalf("MarkSent: %v", err)
		}
	}
	if err := repo.MarkSent(ctx, keys[0]); err != nil {
		t.Fatalf("MarkSent duplicate: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 3 {
		t.Fatalf("count = %d", n)
	}

	if n, _ := repo.DeleteOldest(ctx, 1); n != 1 {
		t.Fatalf("DeleteOldest = %d", n)
	}
	got := repo.Keys()
	if len(got) != 2 || got[0] != keys[1] || got[1] != keys[2] {
		t.Fatalf("keys = %v", got)
	}
	if sent, _ := repo.IsSent(ctx, keys[0]); sent {
		t.Fatal("evicted key still reported as sent")
	}

	if n, _ := repo.DeleteOldest(ctx, 10); n != 2 {
		t.Fatalf("DeleteOldest past end = %d", n)
	}
}
