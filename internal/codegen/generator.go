package codegen

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charlieyou/ucmt/internal/schema"
)

// Table names in generated SQL always use the placeholder tokens; the
// runner substitutes real catalog/schema names at apply time.
func fqn(tableName string) string {
	return "${catalog}.${schema}." + tableName
}

// Generator renders classified schema changes into a migration document.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Generate renders the whole batch. If any change is unsupported the entire
// batch is rejected: partial migrations are worse than none.
func (g *Generator) Generate(changes []schema.Change, description string) (string, error) {
	var unsupported []schema.Change
	for _, change := range changes {
		if change.Unsupported {
			unsupported = append(unsupported, change)
		}
	}
	if len(unsupported) > 0 {
		return "", &UnsupportedChangesError{Changes: unsupported}
	}

	var b strings.Builder
	b.WriteString("-- Migration: Auto-generated\n")
	fmt.Fprintf(&b, "-- Description: %s\n", description)
	fmt.Fprintf(&b, "-- Generated: %s\n", g.now().Format(time.RFC3339))
	b.WriteString("\n-- Variable substitution: ${catalog}, ${schema}\n\n")

	var destructive []schema.Change
	for _, change := range changes {
		if change.Destructive {
			destructive = append(destructive, change)
		}
	}
	if len(destructive) > 0 {
		b.WriteString("-- WARNING: This migration contains destructive changes:\n")
		for _, change := range destructive {
			fmt.Fprintf(&b, "--   - %s: %s\n", change.Type, change.TableName)
		}
		b.WriteString("\n")
	}

	for _, change := range changes {
		fmt.Fprintf(&b, "-- %s: %s\n", change.Type, change.TableName)
		if change.RequiresColumnMapping {
			b.WriteString("-- Requires: delta.columnMapping.mode = 'name'\n")
		}
		stmt, err := renderChange(change)
		if err != nil {
			return "", err
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}

	return b.String(), nil
}

func renderChange(change schema.Change) (string, error) {
	switch detail := change.Detail.(type) {
	case schema.CreateTableDetail:
		return renderCreateTable(detail.Table), nil
	case schema.DropTableDetail:
		// Never emitted as executable SQL; operators drop tables by hand.
		return fmt.Sprintf("-- DROP TABLE IF EXISTS %s;", fqn(change.TableName)), nil
	case schema.AddColumnDetail:
		return renderAddColumn(change.TableName, detail.Column)
	case schema.DropColumnDetail:
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;",
			fqn(change.TableName), detail.ColumnName), nil
	case schema.AlterColumnTypeDetail:
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;",
			fqn(change.TableName), detail.ColumnName, detail.ToType), nil
	case schema.AlterColumnNullabilityDetail:
		if detail.ToNullable {
			return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;",
				fqn(change.TableName), detail.ColumnName), nil
		}
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;",
			fqn(change.TableName), detail.ColumnName), nil
	case schema.AlterColumnDefaultDetail:
		if detail.ToDefault != "" {
			return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;",
				fqn(change.TableName), detail.ColumnName, detail.ToDefault), nil
		}
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;",
			fqn(change.TableName), detail.ColumnName), nil
	case schema.SetPrimaryKeyDetail:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT pk_%s PRIMARY KEY (%s)%s;",
			fqn(change.TableName), change.TableName,
			strings.Join(detail.Constraint.Columns, ", "),
			relySuffix(detail.Constraint.Rely)), nil
	case schema.DropPrimaryKeyDetail:
		return fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY IF EXISTS;", fqn(change.TableName)), nil
	case schema.AddCheckConstraintDetail:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);",
			fqn(change.TableName), detail.Constraint.Name, detail.Constraint.Expression), nil
	case schema.DropCheckConstraintDetail:
		return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;",
			fqn(change.TableName), detail.ConstraintName), nil
	case schema.AlterClusteringDetail:
		return renderAlterClustering(change.TableName, detail), nil
	case schema.AlterTablePropertiesDetail:
		return fmt.Sprintf("ALTER TABLE %s SET TBLPROPERTIES (%s);",
			fqn(change.TableName), renderProperties(detail.Properties)), nil
	default:
		return "", fmt.Errorf("%w: no generator for change %q", ErrCodegen, change.Type)
	}
}

func renderCreateTable(table *schema.Table) string {
	colDefs := make([]string, 0, len(table.Columns)+1)
	for _, col := range table.Columns {
		def := fmt.Sprintf("    %s %s", col.Name, col.Type)
		if col.Generated != "" {
			def += " GENERATED " + col.Generated
		}
		if !col.Nullable {
			def += " NOT NULL"
		}
		if col.Default != "" {
			def += " DEFAULT " + col.Default
		}
		if col.Comment != "" {
			def += fmt.Sprintf(" COMMENT '%s'", escapeString(col.Comment))
		}
		colDefs = append(colDefs, def)
	}

	if table.PrimaryKey != nil {
		colDefs = append(colDefs, fmt.Sprintf("    CONSTRAINT pk_%s PRIMARY KEY (%s)%s",
			table.Name,
			strings.Join(table.PrimaryKey.Columns, ", "),
			relySuffix(table.PrimaryKey.Rely)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n%s\n) USING DELTA",
		fqn(table.Name), strings.Join(colDefs, ",\n"))

	// Clustering and partitioning are mutually exclusive; clustering wins.
	if len(table.LiquidClustering) > 0 {
		fmt.Fprintf(&b, "\nCLUSTER BY (%s)", strings.Join(table.LiquidClustering, ", "))
	} else if len(table.PartitionedBy) > 0 {
		fmt.Fprintf(&b, "\nPARTITIONED BY (%s)", strings.Join(table.PartitionedBy, ", "))
	}

	if len(table.TableProperties) > 0 {
		fmt.Fprintf(&b, "\nTBLPROPERTIES (%s)", renderProperties(table.TableProperties))
	}

	if table.Comment != "" {
		fmt.Fprintf(&b, "\nCOMMENT '%s'", escapeString(table.Comment))
	}

	b.WriteString(";")
	return b.String()
}

func renderAddColumn(tableName string, col schema.Column) (string, error) {
	def := fmt.Sprintf("%s %s", col.Name, col.Type)
	if !col.Nullable {
		if col.Default == "" {
			return "", fmt.Errorf("%w: cannot add non-nullable column %q without a default; existing rows would violate NOT NULL",
				ErrCodegen, col.Name)
		}
		def += " NOT NULL"
	}
	if col.Default != "" {
		def += " DEFAULT " + col.Default
	}
	if col.Comment != "" {
		def += fmt.Sprintf(" COMMENT '%s'", escapeString(col.Comment))
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s;", fqn(tableName), def), nil
}

func renderAlterClustering(tableName string, detail schema.AlterClusteringDetail) string {
	const optimizeNote = "\n-- Note: Run OPTIMIZE to apply clustering changes"
	if len(detail.ToColumns) == 0 {
		return fmt.Sprintf("ALTER TABLE %s CLUSTER BY NONE;%s", fqn(tableName), optimizeNote)
	}
	return fmt.Sprintf("ALTER TABLE %s CLUSTER BY (%s);%s",
		fqn(tableName), strings.Join(detail.ToColumns, ", "), optimizeNote)
}

func renderProperties(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("'%s' = '%s'", escapeString(key), escapeString(props[key])))
	}
	return strings.Join(pairs, ", ")
}

func relySuffix(rely bool) string {
	if rely {
		return " RELY"
	}
	return " NORELY"
}

func escapeString(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
