package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrIntrospection marks a failure reading live database state.
var ErrIntrospection = errors.New("schema introspection error")

// Querier is the read-only slice of the database client the introspector
// needs.
type Querier interface {
	Query(ctx context.Context, stmt string) ([]map[string]any, error)
}

// keptPropertyPrefixes filters introspected table properties down to the
// knobs the declared schema manages; everything else is engine bookkeeping.
var keptPropertyPrefixes = []string{
	"delta.enableChangeDataFeed",
	"delta.autoOptimize",
	"delta.columnMapping",
	"delta.minReaderVersion",
	"delta.minWriterVersion",
}

const checkConstraintPrefix = "delta.constraints."

// Introspector builds a Schema from a live catalog via information_schema
// and table metadata queries.
type Introspector struct {
	db      Querier
	catalog string
	schema  string
}

func NewIntrospector(db Querier, catalog, schemaName string) *Introspector {
	return &Introspector{db: db, catalog: catalog, schema: schemaName}
}

// Introspect reads the current state of every managed and external table.
func (in *Introspector) Introspect(ctx context.Context) (*Schema, error) {
	names, err := in.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	out := NewSchema()
	for _, name := range names {
		table, err := in.introspectTable(ctx, name)
		if err != nil {
			return nil, err
		}
		out.Tables[name] = table
	}
	return out, nil
}

func (in *Introspector) tableNames(ctx context.Context) ([]string, error) {
	stmt := fmt.Sprintf(`SELECT table_name
FROM %s.information_schema.tables
WHERE table_schema = '%s'
  AND table_type IN ('MANAGED', 'EXTERNAL')
  AND table_name NOT LIKE '\_%%'`, in.catalog, escapeLiteral(in.schema))

	rows, err := in.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %v", ErrIntrospection, err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, rowString(row, "table_name"))
	}
	return names, nil
}

func (in *Introspector) introspectTable(ctx context.Context, tableName string) (*Table, error) {
	columns, err := in.columns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	pk, err := in.primaryKey(ctx, tableName)
	if err != nil {
		return nil, err
	}
	checks, properties, err := in.tableProperties(ctx, tableName)
	if err != nil {
		return nil, err
	}
	clustering, partitioning, err := in.layout(ctx, tableName)
	if err != nil {
		return nil, err
	}

	return &Table{
		Name:             tableName,
		Columns:          columns,
		PrimaryKey:       pk,
		CheckConstraints: checks,
		LiquidClustering: clustering,
		PartitionedBy:    partitioning,
		TableProperties:  properties,
	}, nil
}

func (in *Introspector) columns(ctx context.Context, tableName string) ([]Column, error) {
	stmt := fmt.Sprintf(`SELECT column_name, full_data_type, is_nullable, column_default, comment
FROM %s.information_schema.columns
WHERE table_schema = '%s'
  AND table_name = '%s'
ORDER BY ordinal_position`, in.catalog, escapeLiteral(in.schema), escapeLiteral(tableName))

	rows, err := in.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: columns of %s: %v", ErrIntrospection, tableName, err)
	}

	columns := make([]Column, 0, len(rows))
	for _, row := range rows {
		name := rowString(row, "column_name")
		fk, err := in.foreignKey(ctx, tableName, name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, Column{
			Name:       name,
			Type:       rowString(row, "full_data_type"),
			Nullable:   rowString(row, "is_nullable") == "YES",
			Default:    rowString(row, "column_default"),
			ForeignKey: fk,
			Comment:    rowString(row, "comment"),
		})
	}
	return columns, nil
}

func (in *Introspector) primaryKey(ctx context.Context, tableName string) (*PrimaryKey, error) {
	stmt := fmt.Sprintf(`SELECT tc.enforced, kcu.column_name
FROM %[1]s.information_schema.table_constraints tc
JOIN %[1]s.information_schema.key_column_usage kcu
  ON tc.constraint_catalog = kcu.constraint_catalog
  AND tc.constraint_schema = kcu.constraint_schema
  AND tc.constraint_name = kcu.constraint_name
WHERE tc.table_schema = '%[2]s'
  AND tc.table_name = '%[3]s'
  AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.ordinal_position`, in.catalog, escapeLiteral(in.schema), escapeLiteral(tableName))

	rows, err := in.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: primary key of %s: %v", ErrIntrospection, tableName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make([]string, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, rowString(row, "column_name"))
	}
	return &PrimaryKey{
		Columns: columns,
		Rely:    rowString(rows[0], "enforced") == "YES",
	}, nil
}

func (in *Introspector) foreignKey(ctx context.Context, tableName, columnName string) (*ForeignKey, error) {
	stmt := fmt.Sprintf(`SELECT ccu.table_name AS referenced_table, ccu.column_name AS referenced_column
FROM %[1]s.information_schema.referential_constraints rc
JOIN %[1]s.information_schema.key_column_usage kcu
  ON rc.constraint_catalog = kcu.constraint_catalog
  AND rc.constraint_schema = kcu.constraint_schema
  AND rc.constraint_name = kcu.constraint_name
JOIN %[1]s.information_schema.constraint_column_usage ccu
  ON rc.unique_constraint_catalog = ccu.constraint_catalog
  AND rc.unique_constraint_schema = ccu.constraint_schema
  AND rc.unique_constraint_name = ccu.constraint_name
WHERE kcu.table_schema = '%[2]s'
  AND kcu.table_name = '%[3]s'
  AND kcu.column_name = '%[4]s'`,
		in.catalog, escapeLiteral(in.schema), escapeLiteral(tableName), escapeLiteral(columnName))

	rows, err := in.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: foreign key of %s.%s: %v", ErrIntrospection, tableName, columnName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &ForeignKey{
		Table:  rowString(rows[0], "referenced_table"),
		Column: rowString(rows[0], "referenced_column"),
	}, nil
}

func (in *Introspector) tableProperties(ctx context.Context, tableName string) ([]CheckConstraint, map[string]string, error) {
	stmt := fmt.Sprintf("SHOW TBLPROPERTIES %s.%s.%s", in.catalog, in.schema, tableName)
	rows, err := in.db.Query(ctx, stmt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: properties of %s: %v", ErrIntrospection, tableName, err)
	}

	var checks []CheckConstraint
	props := make(map[string]string)
	for _, row := range rows {
		key := rowString(row, "key")
		value := rowString(row, "value")
		if strings.HasPrefix(key, checkConstraintPrefix) {
			checks = append(checks, CheckConstraint{
				Name:       strings.TrimPrefix(key, checkConstraintPrefix),
				Expression: value,
			})
			continue
		}
		for _, prefix := range keptPropertyPrefixes {
			if strings.HasPrefix(key, prefix) {
				props[key] = value
				break
			}
		}
	}
	return checks, props, nil
}

func (in *Introspector) layout(ctx context.Context, tableName string) (clustering, partitioning []string, err error) {
	stmt := fmt.Sprintf("DESCRIBE DETAIL %s.%s.%s", in.catalog, in.schema, tableName)
	rows, err := in.db.Query(ctx, stmt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: detail of %s: %v", ErrIntrospection, tableName, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rowStrings(rows[0], "clusteringColumns"), rowStrings(rows[0], "partitionColumns"), nil
}

func escapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func rowString(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func rowStrings(row map[string]any, key string) []string {
	switch v := row[key].(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		// DESCRIBE DETAIL renders array columns as ["a","b"] over SQL
		// transports that lack native arrays.
		trimmed := strings.Trim(strings.TrimSpace(v), "[]")
		if trimmed == "" {
			return nil
		}
		parts := strings.Split(trimmed, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			out = append(out, strings.Trim(strings.TrimSpace(part), `"`))
		}
		return out
	default:
		return nil
	}
}
