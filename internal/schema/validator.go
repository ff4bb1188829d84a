package schema

import "fmt"

// IssueKind classifies a validation finding.
type IssueKind string

const (
	IssueMissingTable       IssueKind = "missing_table"
	IssueMissingColumn      IssueKind = "missing_column"
	IssueTypeMismatch       IssueKind = "type_mismatch"
	IssueConstraintMismatch IssueKind = "constraint_mismatch"
)

// Issue is a single mismatch between the declared and observed schemas.
type Issue struct {
	Table   string
	Column  string
	Kind    IssueKind
	Message string
}

// ValidationResult reports whether the observed schema satisfies the
// declared one. OK is true iff Issues is empty.
type ValidationResult struct {
	OK     bool
	Issues []Issue
}

// Validate compares the declared schema against an observed one. Only
// declared tables and columns are checked; extra objects in the database
// are ignored and never fail validation.
func Validate(declared, observed *Schema) ValidationResult {
	var issues []Issue

	for _, tableName := range declared.TableNames() {
		declaredTable := declared.Table(tableName)
		observedTable := observed.Table(tableName)

		if observedTable == nil {
			issues = append(issues, Issue{
				Table:   tableName,
				Kind:    IssueMissingTable,
				Message: fmt.Sprintf("table %q not found in database", tableName),
			})
			continue
		}

		for _, declaredCol := range declaredTable.Columns {
			observedCol := observedTable.Column(declaredCol.Name)

			if observedCol == nil {
				issues = append(issues, Issue{
					Table:   tableName,
					Column:  declaredCol.Name,
					Kind:    IssueMissingColumn,
					Message: fmt.Sprintf("column %q missing from table %q", declaredCol.Name, tableName),
				})
				continue
			}

			if declaredCol.NormalizedType() != observedCol.NormalizedType() {
				issues = append(issues, Issue{
					Table:  tableName,
					Column: declaredCol.Name,
					Kind:   IssueTypeMismatch,
					Message: fmt.Sprintf("column %q type mismatch: expected %s, got %s",
						declaredCol.Name, declaredCol.Type, observedCol.Type),
				})
				continue
			}

			if declaredCol.Nullable != observedCol.Nullable {
				issues = append(issues, Issue{
					Table:  tableName,
					Column: declaredCol.Name,
					Kind:   IssueConstraintMismatch,
					Message: fmt.Sprintf("column %q nullable mismatch: expected %s, got %s",
						declaredCol.Name, nullability(declaredCol.Nullable), nullability(observedCol.Nullable)),
				})
			}
		}
	}

	return ValidationResult{OK: len(issues) == 0, Issues: issues}
}

func nullability(nullable bool) string {
	if nullable {
		return "nullable"
	}
	return "NOT NULL"
}
