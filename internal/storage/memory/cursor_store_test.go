package memory

import (
	"context"
	"errors"
	"testing"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

const testEventType = "0x2::vault::DepositMade"

func TestCursorStore_GetMissing(t *testing.T) {
	store := NewCursorStore()

	_, err := store.Get(context.Background(), testEventType)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCursorStore_UpsertMovesPosition(t *testing.T) {
	store := NewCursorStore()
	ctx := context.Background()

	first, err := store.Upsert(ctx, testEventType, domain.Position{TxDigest: "d1", EventSeq: 0})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	second, err := store.Upsert(ctx, testEventType, domain.Position{TxDigest: "d2", EventSeq: 3})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}

	got, err := store.Get(ctx, testEventType)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Position != (domain.Position{TxDigest: "d2", EventSeq: 3}) {
		t.Errorf("Position mismatch: got %v", got.Position)
	}

	cursors, _ := store.List(ctx)
	if len(cursors) != 1 {
		t.Errorf("Expected one row per event type, got %d", len(cursors))
	}
}

func TestCursorStore_UpsertInvalid(t *testing.T) {
	store := NewCursorStore()

	_, err := store.Upsert(context.Background(), "", domain.Position{TxDigest: "d1"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestCursorStore_ListAndDelete(t *testing.T) {
	store := NewCursorStore()
	ctx := context.Background()

	for _, et := range []string{"b::m::Withdrawn", "a::m::VaultCreated"} {
		if _, err := store.Upsert(ctx, et, domain.Position{TxDigest: "d"}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	cursors, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cursors) != 2 || cursors[0].EventType != "a::m::VaultCreated" {
		t.Fatalf("Unexpected list order: %+v", cursors)
	}

	if err := store.Delete(ctx, "a::m::VaultCreated"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "a::m::VaultCreated"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}
