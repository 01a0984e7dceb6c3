package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"spawn_warning_bot/internal/domain/notification"
	"spawn_warning_bot/internal/domain/spawn"
	"spawn_warning_bot/internal/infra/memstore"
)

func TestLedgerMarkSentIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memstore.NewLedgerRepository()
	ledger := NewLedgerService(repo, testLogger())
	key := notification.NewKey(spawn.SourceField, "Ego", time.Date(2025, 9, 19, 16, 32, 0, 0, testZone))

	sent, err := ledger.IsSent(ctx, key)
	if err != nil || sent {
		t.Fatalf("IsSent before mark = %v, %v", sent, err)
	}
	for i := 0; i < 2; i++ {
		if err := ledger.MarkSent(ctx, key); err != nil {
			t.Fatalf("MarkSent #%d: %v", i, err)
		}
	}
	sent, err = ledger.IsSent(ctx, key)
	if err != nil || !sent {
		t.Fatalf("IsSent after mark = %v, %v", sent, err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}

func TestLedgerRefusesKeysThatDoNotRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memstore.NewLedgerRepository()
	ledger := NewLedgerService(repo, testLogger())
	at := time.Date(2025, 9, 19, 16, 32, 0, 0, testZone)

	for _, key := range []notification.Key{
		notification.NewKey(spawn.SourceField, "Ego|Venatus", at),
		notification.NewKey("FIELDS", "Ego", at),
	} {
		if err := ledger.MarkSent(ctx, key); err == nil {
			t.Errorf("MarkSent(%s) accepted", key)
		}
	}
	if n, _ := repo.Count(ctx); n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}
}

func TestLedgerPurgeByEntityRemovesAllSources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memstore.NewLedgerRepository()
	ledger := NewLedgerService(repo, testLogger())
	at := time.Date(2025, 9, 19, 16, 32, 0, 0, testZone)

	keys := []notification.Key{
		notification.NewKey(spawn.SourceField, "Ego", at),
		notification.NewKey(spawn.SourceField, "Ego", at.Add(time.Hour)),
		notification.NewKey(spawn.SourceWeekly, "Ego", at),
		notification.NewKey(spawn.SourceField, "Livera", at),
		notification.NewKey(spawn.SourceWeekly, "Egomaniac", at),
	}
	for _, k := range keys {
		if err := ledger.MarkSent(ctx, k); err != nil {
			t.Fatalf("MarkSent: %v", err)
		}
	}

	removed, err := ledger.PurgeByEntity(ctx, "Ego")
	if err != nil {
		t.Fatalf("PurgeByEntity: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	for _, k := range repo.Keys() {
		if k.Entity == "Ego" {
			t.Fatalf("key %s survived purge", k)
		}
	}
	if n, _ := repo.Count(ctx); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
}

func TestLedgerTrimEvictsOldestInsertedToRetention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memstore.NewLedgerRepository()
	ledger := NewLedgerService(repo, testLogger())
	base := time.Date(2025, 9, 19, 0, 0, 0, 0, testZone)

	// insert in reverse timestamp order so insertion order and time order disagree
	for i := 9; i >= 0; i-- {
		k := notification.NewKey(spawn.SourceField, fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := ledger.MarkSent(ctx, k); err != nil {
			t.Fatalf("MarkSent: %v", err)
		}
	}

	removed, err := ledger.Trim(ctx, 10)
	if err != nil || removed != 0 {
		t.Fatalf("Trim at cap = %d, %v; want no eviction", removed, err)
	}

	removed, err = ledger.Trim(ctx, 8)
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if removed != 4 {
		t.Fatalf("removed = %d, want 4 (10 down to 6)", removed)
	}
	remaining := repo.Keys()
	if len(remaining) != 6 {
		t.Fatalf("remaining = %d, want 6", len(remaining))
	}
	// t9..t6 were inserted first and must be gone
	if remaining[0].Entity != "t5" || remaining[5].Entity != "t0" {
		t.Fatalf("unexpected survivors: first %s, last %s", remaining[0].Entity, remaining[5].Entity)
	}

	if _, err := ledger.Trim(ctx, 0); err == nil {
		t.Fatal("expected error for non-positive cap")
	}
}

func TestRetentionTarget(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct{ max, want int64 }{{5000, 3750}, {8, 6}, {1, 0}} {
		if got := RetentionTarget(tc.max); got != tc.want {
			t.Fatalf("RetentionTarget(%d) = %d, want %d", tc.max, got, tc.want)
		}
	}
}
