package migrate

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStateStoreRecordAndList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	if err := store.RecordApplied(ctx, 2, "second", "bbb", true, ""); err != nil {
		t.Fatalf("RecordApplied: %v", err)
	}
	if err := store.RecordApplied(ctx, 1, "first", "aaa", true, ""); err != nil {
		t.Fatalf("RecordApplied: %v", err)
	}

	applied, err := store.ListApplied(ctx)
	if err != nil {
		t.Fatalf("ListApplied: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied, got %d", len(applied))
	}
	if applied[0].Version != 1 || applied[1].Version != 2 {
		t.Fatalf("applied must be ordered by version: %+v", applied)
	}

	last, err := store.GetLastApplied(ctx)
	if err != nil {
		t.Fatalf("GetLastApplied: %v", err)
	}
	if last == nil || last.Version != 2 {
		t.Fatalf("last = %+v, want version 2", last)
	}

	has, err := store.HasApplied(ctx, 1)
	if err != nil || !has {
		t.Fatalf("HasApplied(1) = %v, %v", has, err)
	}
	has, err = store.HasApplied(ctx, 3)
	if err != nil || has {
		t.Fatalf("HasApplied(3) = %v, %v", has, err)
	}
}

func TestMemoryStateStoreIdempotentReRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	if err := store.RecordApplied(ctx, 1, "init", "aaa", false, "boom"); err != nil {
		t.Fatalf("RecordApplied: %v", err)
	}
	// Re-recording the same version and checksum keeps the first outcome.
	if err := store.RecordApplied(ctx, 1, "init", "aaa", true, ""); err != nil {
		t.Fatalf("idempotent re-record must not error: %v", err)
	}

	applied, err := store.ListApplied(ctx)
	if err != nil {
		t.Fatalf("ListApplied: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("expected 1 record, got %d", len(applied))
	}
	if applied[0].Success || applied[0].Error != "boom" {
		t.Fatalf("first outcome must be retained, got %+v", applied[0])
	}
}

func TestMemoryStateStoreChecksumConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	if err := store.RecordApplied(ctx, 1, "init", "aaa", true, ""); err != nil {
		t.Fatalf("RecordApplied: %v", err)
	}

	err := store.RecordApplied(ctx, 1, "init", "bbb", true, "")
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
	var conflict *StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %T", err)
	}
	if conflict.Recorded != "aaa" || conflict.Attempted != "bbb" {
		t.Fatalf("conflict = %+v", conflict)
	}

	// The stored record must be untouched.
	applied, err := store.ListApplied(ctx)
	if err != nil {
		t.Fatalf("ListApplied: %v", err)
	}
	if len(applied) != 1 || applied[0].Checksum != "aaa" {
		t.Fatalf("state mutated on conflict: %+v", applied)
	}
}

func TestFailedMigrationCountsAsApplied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	if err := store.RecordApplied(ctx, 1, "init", "aaa", false, "syntax error"); err != nil {
		t.Fatalf("RecordApplied: %v", err)
	}
	has, err := store.HasApplied(ctx, 1)
	if err != nil {
		t.Fatalf("HasApplied: %v", err)
	}
	if !has {
		t.Fatal("a failed migration is still recorded as applied")
	}
}
