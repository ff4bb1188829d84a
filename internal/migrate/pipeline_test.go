package migrate

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/charlieyou/ucmt/internal/codegen"
	"github.com/charlieyou/ucmt/internal/schema"
)

// Exercises the full path: diff an empty catalog against one declared
// table, generate the migration, parse it back off disk, and apply it.
func TestDiffGenerateApplyPipeline(t *testing.T) {
	ctx := context.Background()

	target := schema.NewSchema()
	target.Tables["users"] = &schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: "BIGINT"},
			{Name: "email", Type: "STRING", Nullable: true},
		},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}, Rely: true},
	}

	changes := schema.Diff(schema.NewSchema(), target)
	if len(changes) != 1 || changes[0].Type != schema.ChangeCreateTable {
		t.Fatalf("expected a single create_table change, got %v", changes)
	}

	sql, err := codegen.NewGenerator().Generate(changes, "create users")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "migrations/V1__create_users.sql", []byte(sql), 0o644); err != nil {
		t.Fatal(err)
	}
	migrations, err := ParseDir(fsys, "migrations")
	if err != nil {
		t.Fatalf("ParseDir: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Version != 1 {
		t.Fatalf("migrations = %+v", migrations)
	}

	store := NewMemoryStateStore()
	var executedSQL string
	exec := func(_ context.Context, stmt string, _ int) error {
		executedSQL = stmt
		return nil
	}
	runner := NewRunner(store, exec, "test_catalog", "test_schema", quietLogger())
	if err := runner.Apply(ctx, migrations, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if strings.Contains(executedSQL, "${") {
		t.Fatalf("placeholders must be fully substituted:\n%s", executedSQL)
	}
	if !strings.Contains(executedSQL, "CREATE TABLE IF NOT EXISTS test_catalog.test_schema.users (") {
		t.Fatalf("executed SQL missing substituted create statement:\n%s", executedSQL)
	}

	has, err := store.HasApplied(ctx, 1)
	if err != nil {
		t.Fatalf("HasApplied: %v", err)
	}
	if !has {
		t.Fatal("migration 1 must be recorded as applied")
	}
}
