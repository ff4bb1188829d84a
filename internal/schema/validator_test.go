package schema

import "testing"

func TestValidateInSync(t *testing.T) {
	declared := singleTableSchema(&Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: "BIGINT"},
			{Name: "email", Type: "STRING", Nullable: true},
		},
	})
	observed := singleTableSchema(&Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: "bigint"},
			{Name: "email", Type: "string", Nullable: true},
			{Name: "extra", Type: "STRING", Nullable: true},
		},
	})

	result := Validate(declared, observed)
	if !result.OK {
		t.Fatalf("expected OK despite extra observed column, got %+v", result.Issues)
	}
}

func TestValidateReportsIssues(t *testing.T) {
	declared := NewSchema()
	declared.Tables["users"] = &Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: "BIGINT"},
			{Name: "email", Type: "STRING", Nullable: true},
			{Name: "age", Type: "INT", Nullable: true},
		},
	}
	declared.Tables["orders"] = &Table{
		Name:    "orders",
		Columns: []Column{{Name: "id", Type: "BIGINT"}},
	}

	observed := singleTableSchema(&Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: "BIGINT", Nullable: true},
			{Name: "email", Type: "INT", Nullable: true},
		},
	})

	result := Validate(declared, observed)
	if result.OK {
		t.Fatal("expected validation failure")
	}

	kinds := make(map[IssueKind]int)
	for _, issue := range result.Issues {
		kinds[issue.Kind]++
	}
	if kinds[IssueMissingTable] != 1 {
		t.Fatalf("expected 1 missing_table, got %d", kinds[IssueMissingTable])
	}
	if kinds[IssueMissingColumn] != 1 {
		t.Fatalf("expected 1 missing_column, got %d", kinds[IssueMissingColumn])
	}
	if kinds[IssueTypeMismatch] != 1 {
		t.Fatalf("expected 1 type_mismatch, got %d", kinds[IssueTypeMismatch])
	}
	if kinds[IssueConstraintMismatch] != 1 {
		t.Fatalf("expected 1 constraint_mismatch, got %d", kinds[IssueConstraintMismatch])
	}
}
