package cli

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/charlieyou/ucmt/internal/schema"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"add users table":     "add_users_table",
		"Add Users!":          "add_users",
		"  spaced   out  ":    "spaced_out",
		"v2-rollout (phase1)": "v2_rollout_phase1",
		"!!!":                 "migration",
		"":                    "migration",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNextVersion(t *testing.T) {
	fsys := afero.NewMemMapFs()

	version, err := nextVersion(fsys, "migrations")
	if err != nil {
		t.Fatalf("nextVersion on missing dir: %v", err)
	}
	if version != 1 {
		t.Fatalf("missing dir: version = %d, want 1", version)
	}

	if err := afero.WriteFile(fsys, "migrations/V001__init.sql", []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fsys, "migrations/V007__later.sql", []byte("SELECT 7;"), 0o644); err != nil {
		t.Fatal(err)
	}

	version, err = nextVersion(fsys, "migrations")
	if err != nil {
		t.Fatalf("nextVersion: %v", err)
	}
	if version != 8 {
		t.Fatalf("version = %d, want 8", version)
	}
}

func TestDescribeChange(t *testing.T) {
	change := schema.Change{
		Type:        schema.ChangeDropColumn,
		TableName:   "users",
		Destructive: true,
	}
	if got := describeChange(change); got != "drop_column: users [destructive]" {
		t.Fatalf("describeChange = %q", got)
	}

	change = schema.Change{
		Type:        schema.ChangeAlterPartitioning,
		TableName:   "logs",
		Unsupported: true,
		Message:     "cannot change partitioning",
	}
	if got := describeChange(change); got != "alter_partitioning: logs [unsupported] (cannot change partitioning)" {
		t.Fatalf("describeChange = %q", got)
	}
}
