package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
)

func migrationFile(version int, name, sql string) File {
	return File{
		Version:  version,
		Name:     name,
		Path:     fmt.Sprintf("migrations/V%d__%s.sql", version, name),
		Checksum: Checksum(sql),
		SQL:      sql,
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestPlanSelectsPendingInOrder(t *testing.T) {
	migrations := []File{
		migrationFile(1, "one", "SELECT 1;"),
		migrationFile(2, "two", "SELECT 2;"),
		migrationFile(3, "three", "SELECT 3;"),
	}
	applied := map[int]struct{}{2: {}}

	pending := Plan(migrations, applied)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].Version != 1 || pending[1].Version != 3 {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestRunnerAppliesInOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	var executed []int
	exec := func(_ context.Context, sql string, version int) error {
		executed = append(executed, version)
		return nil
	}
	runner := NewRunner(store, exec, "main", "analytics", quietLogger())

	migrations := []File{
		migrationFile(1, "one", "SELECT 1;"),
		migrationFile(2, "two", "SELECT 2;"),
		migrationFile(3, "three", "SELECT 3;"),
	}
	if err := runner.Apply(ctx, migrations, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(executed) != 3 || executed[0] != 1 || executed[1] != 2 || executed[2] != 3 {
		t.Fatalf("executed = %v, want [1 2 3]", executed)
	}

	applied, err := store.ListApplied(ctx)
	if err != nil {
		t.Fatalf("ListApplied: %v", err)
	}
	if len(applied) != 3 {
		t.Fatalf("expected 3 recorded, got %d", len(applied))
	}
	for _, a := range applied {
		if !a.Success {
			t.Fatalf("record %d not marked successful: %+v", a.Version, a)
		}
	}
}

func TestPlanSortsUnorderedInput(t *testing.T) {
	migrations := []File{
		migrationFile(3, "three", "SELECT 3;"),
		migrationFile(1, "one", "SELECT 1;"),
		migrationFile(2, "two", "SELECT 2;"),
	}

	pending := Plan(migrations, nil)
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	for i, want := range []int{1, 2, 3} {
		if pending[i].Version != want {
			t.Fatalf("position %d: version = %d, want %d", i, pending[i].Version, want)
		}
	}
}

func TestRunnerAppliesUnorderedInputAscending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	var executed []int
	exec := func(_ context.Context, _ string, version int) error {
		executed = append(executed, version)
		return nil
	}
	runner := NewRunner(store, exec, "main", "default", quietLogger())

	migrations := []File{
		migrationFile(3, "three", "SELECT 3;"),
		migrationFile(1, "one", "SELECT 1;"),
		migrationFile(2, "two", "SELECT 2;"),
	}
	if err := runner.Apply(ctx, migrations, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []int{1, 2, 3}
	if len(executed) != 3 || executed[0] != want[0] || executed[1] != want[1] || executed[2] != want[2] {
		t.Fatalf("executed = %v, want %v", executed, want)
	}
}

func TestRunnerSubstitutesPlaceholders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	var got string
	exec := func(_ context.Context, sql string, _ int) error {
		got = sql
		return nil
	}
	runner := NewRunner(store, exec, "prod", "billing", quietLogger())

	migrations := []File{migrationFile(1, "init", "CREATE TABLE ${catalog}.${schema}.t (id BIGINT);")}
	if err := runner.Apply(ctx, migrations, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := "CREATE TABLE prod.billing.t (id BIGINT);"
	if got != want {
		t.Fatalf("executed sql = %q, want %q", got, want)
	}
}

func TestRunnerFailFast(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	exec := func(_ context.Context, _ string, version int) error {
		if version == 2 {
			return errors.New("table already exists")
		}
		return nil
	}
	runner := NewRunner(store, exec, "main", "default", quietLogger())

	migrations := []File{
		migrationFile(1, "one", "SELECT 1;"),
		migrationFile(2, "two", "SELECT 2;"),
		migrationFile(3, "three", "SELECT 3;"),
	}

	err := runner.Apply(ctx, migrations, false)
	if err == nil || !strings.Contains(err.Error(), "V2__two") {
		t.Fatalf("expected failure naming V2__two, got %v", err)
	}

	applied, listErr := store.ListApplied(ctx)
	if listErr != nil {
		t.Fatalf("ListApplied: %v", listErr)
	}
	if len(applied) != 2 {
		t.Fatalf("expected exactly 2 records (success then failure), got %d", len(applied))
	}
	if !applied[0].Success {
		t.Fatalf("migration 1 should be recorded successful: %+v", applied[0])
	}
	if applied[1].Success || applied[1].Error == "" {
		t.Fatalf("migration 2 should be recorded failed with an error: %+v", applied[1])
	}
}

func TestRunnerChecksumDriftAbortsBeforeExecution(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()
	if err := store.RecordApplied(ctx, 1, "one", Checksum("SELECT 1;"), true, ""); err != nil {
		t.Fatal(err)
	}

	executions := 0
	exec := func(_ context.Context, _ string, _ int) error {
		executions++
		return nil
	}
	runner := NewRunner(store, exec, "main", "default", quietLogger())

	migrations := []File{
		migrationFile(1, "one", "SELECT 1; -- edited after apply"),
		migrationFile(2, "two", "SELECT 2;"),
	}

	err := runner.Apply(ctx, migrations, false)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if executions != 0 {
		t.Fatalf("nothing may execute when any checksum drifted, got %d executions", executions)
	}
}

func TestRunnerDryRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	exec := func(_ context.Context, _ string, _ int) error {
		t.Fatal("dry run must not execute")
		return nil
	}
	var buf strings.Builder
	runner := NewRunner(store, exec, "main", "default", log.New(&buf, "", 0))

	migrations := []File{migrationFile(1, "one", "SELECT 1;")}
	if err := runner.Apply(ctx, migrations, true); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(buf.String(), "would apply V1__one") {
		t.Fatalf("dry run must log the plan, got %q", buf.String())
	}

	applied, err := store.ListApplied(ctx)
	if err != nil {
		t.Fatalf("ListApplied: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("dry run must not record anything, got %+v", applied)
	}
}
