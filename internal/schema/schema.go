package schema

import (
	"sort"
	"strings"
)

// MaxClusteringColumns is the engine limit on liquid clustering keys.
const MaxClusteringColumns = 4

// columnMappingProperty must be set to "name" before columns can be dropped
// or renamed without a physical rewrite.
const columnMappingProperty = "delta.columnMapping.mode"

// ForeignKey is an informational reference to another table's column.
// The engine never enforces it; it exists for query hints and BI tooling.
type ForeignKey struct {
	Table  string
	Column string
}

// PrimaryKey is an informational constraint. Uniqueness is not enforced by
// the engine; RELY only tells the optimizer it may trust it.
type PrimaryKey struct {
	Columns []string
	Rely    bool
}

// Equal reports whether two primary keys match. Column order and the RELY
// flag are both significant.
func (p *PrimaryKey) Equal(other *PrimaryKey) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Rely != other.Rely || len(p.Columns) != len(other.Columns) {
		return false
	}
	for i, col := range p.Columns {
		if col != other.Columns[i] {
			return false
		}
	}
	return true
}

// CheckConstraint is a named boolean expression. Unlike primary and foreign
// keys these ARE enforced by the engine at write time.
type CheckConstraint struct {
	Name       string
	Expression string
}

// Column is a single column definition. Type text preserves its declared
// case; comparisons go through NormalizedType.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	Default    string
	Generated  string
	Check      string
	ForeignKey *ForeignKey
	Comment    string
}

// NormalizedType returns the uppercase form used for comparisons.
func (c Column) NormalizedType() string {
	return strings.ToUpper(strings.TrimSpace(c.Type))
}

// Table is a single table definition. Column order matters for generated
// SQL but not for equality, which keys columns by name.
type Table struct {
	Name             string
	Columns          []Column
	PrimaryKey       *PrimaryKey
	CheckConstraints []CheckConstraint
	LiquidClustering []string
	PartitionedBy    []string
	TableProperties  map[string]string
	Comment          string
}

// Column returns the named column, or nil when absent.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumnMapping reports whether column mapping mode is enabled, a
// prerequisite for DROP COLUMN and RENAME COLUMN.
func (t *Table) HasColumnMapping() bool {
	return t.TableProperties[columnMappingProperty] == "name"
}

// Schema is a set of tables keyed by name.
type Schema struct {
	Tables map[string]*Table
}

// NewSchema returns an empty schema, the "current" state in offline mode.
func NewSchema() *Schema {
	return &Schema{Tables: make(map[string]*Table)}
}

// Table returns the named table, or nil when absent.
func (s *Schema) Table(name string) *Table {
	if s == nil || s.Tables == nil {
		return nil
	}
	return s.Tables[name]
}

// TableNames returns all table names sorted ascending.
func (s *Schema) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stringSetEqual compares two column lists ignoring order. Sorted copies
// keep the comparison symmetric even if a list carries duplicates.
func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
