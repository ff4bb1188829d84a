package schema

import (
	"fmt"
	"sort"
	"strings"
)

// wideningAllowed lists numeric conversions that cannot lose precision or
// range. Anything else, short of an exact type match, is unsupported.
var wideningAllowed = map[[2]string]struct{}{
	{"TINYINT", "SMALLINT"}: {},
	{"TINYINT", "INT"}:      {},
	{"TINYINT", "BIGINT"}:   {},
	{"SMALLINT", "INT"}:     {},
	{"SMALLINT", "BIGINT"}:  {},
	{"INT", "BIGINT"}:       {},
	{"FLOAT", "DOUBLE"}:     {},
}

// changeOrder buckets changes so that creates run before alters and alters
// before drops. Unknown kinds sort last.
var changeOrder = map[ChangeType]int{
	ChangeCreateTable:            0,
	ChangeAddColumn:              1,
	ChangeAlterColumnType:        2,
	ChangeAlterColumnNullability: 2,
	ChangeAlterColumnDefault:     2,
	ChangeSetPrimaryKey:          3,
	ChangeAddForeignKey:          3,
	ChangeAddCheckConstraint:     3,
	ChangeAlterClustering:        4,
	ChangeAlterTableProperties:   4,
	ChangeDropCheckConstraint:    5,
	ChangeDropForeignKey:         5,
	ChangeDropPrimaryKey:         5,
	ChangeDropColumn:             6,
	ChangeDropTable:              7,
}

// Diff compares the current state (source) against the declared state
// (target) and returns an ordered change list. Tables present only in the
// source are left alone: the differ builds toward the declared schema and
// never prunes tables it does not know about.
func Diff(source, target *Schema) []Change {
	changes := make([]Change, 0)

	for _, name := range target.TableNames() {
		targetTable := target.Table(name)
		sourceTable := source.Table(name)
		if sourceTable == nil {
			changes = append(changes, Change{
				Type:      ChangeCreateTable,
				TableName: name,
				Detail:    CreateTableDetail{Table: targetTable},
			})
			continue
		}
		changes = append(changes, diffTable(sourceTable, targetTable)...)
	}

	return orderChanges(changes)
}

func diffTable(source, target *Table) []Change {
	changes := make([]Change, 0)
	changes = append(changes, diffColumns(source, target)...)
	changes = append(changes, diffConstraints(source, target)...)
	changes = append(changes, diffClustering(source, target)...)
	changes = append(changes, diffPartitioning(source, target)...)
	changes = append(changes, diffProperties(source, target)...)
	return changes
}

func diffColumns(source, target *Table) []Change {
	changes := make([]Change, 0)

	sourceCols := make(map[string]Column, len(source.Columns))
	for _, col := range source.Columns {
		sourceCols[col.Name] = col
	}
	targetCols := make(map[string]Column, len(target.Columns))
	for _, col := range target.Columns {
		targetCols[col.Name] = col
	}

	for _, name := range sortedKeys(targetCols) {
		if _, ok := sourceCols[name]; !ok {
			changes = append(changes, Change{
				Type:      ChangeAddColumn,
				TableName: source.Name,
				Detail:    AddColumnDetail{Column: targetCols[name]},
			})
		}
	}

	for _, name := range sortedKeys(sourceCols) {
		if _, ok := targetCols[name]; !ok {
			changes = append(changes, Change{
				Type:                  ChangeDropColumn,
				TableName:             source.Name,
				Detail:                DropColumnDetail{ColumnName: name},
				Destructive:           true,
				RequiresColumnMapping: true,
			})
		}
	}

	for _, name := range sortedKeys(sourceCols) {
		if _, ok := targetCols[name]; ok {
			changes = append(changes, diffColumn(source.Name, sourceCols[name], targetCols[name])...)
		}
	}

	return changes
}

func diffColumn(tableName string, source, target Column) []Change {
	changes := make([]Change, 0)

	if source.NormalizedType() != target.NormalizedType() {
		ok, message := ValidateTypeChange(source.Type, target.Type)
		changes = append(changes, Change{
			Type:      ChangeAlterColumnType,
			TableName: tableName,
			Detail: AlterColumnTypeDetail{
				ColumnName: source.Name,
				FromType:   source.Type,
				ToType:     target.Type,
			},
			Unsupported: !ok,
			Message:     message,
		})
	}

	if source.Nullable != target.Nullable {
		changes = append(changes, Change{
			Type:      ChangeAlterColumnNullability,
			TableName: tableName,
			Detail: AlterColumnNullabilityDetail{
				ColumnName:   source.Name,
				FromNullable: source.Nullable,
				ToNullable:   target.Nullable,
			},
		})
	}

	if source.Default != target.Default {
		changes = append(changes, Change{
			Type:      ChangeAlterColumnDefault,
			TableName: tableName,
			Detail: AlterColumnDefaultDetail{
				ColumnName:  source.Name,
				FromDefault: source.Default,
				ToDefault:   target.Default,
			},
		})
	}

	return changes
}

// ValidateTypeChange reports whether a column type change can be performed
// in place. Only exact matches and the widening allow-list qualify: a
// parameterized type such as DECIMAL(p,s) has no widening path, so any
// precision or scale change is unsupported.
func ValidateTypeChange(fromType, toType string) (bool, string) {
	from := strings.ToUpper(strings.TrimSpace(fromType))
	to := strings.ToUpper(strings.TrimSpace(toType))
	if from == to {
		return true, ""
	}
	if _, ok := wideningAllowed[[2]string{baseType(from), baseType(to)}]; ok {
		return true, ""
	}
	return false, fmt.Sprintf(
		"type change from %s to %s is not supported; only widening conversions are allowed",
		fromType, toType,
	)
}

// baseType strips any parenthesized suffix, e.g. DECIMAL(10,2) -> DECIMAL.
func baseType(t string) string {
	if i := strings.Index(t, "("); i >= 0 {
		return strings.TrimSpace(t[:i])
	}
	return t
}

func diffConstraints(source, target *Table) []Change {
	changes := make([]Change, 0)

	if !source.PrimaryKey.Equal(target.PrimaryKey) {
		if source.PrimaryKey != nil {
			changes = append(changes, Change{
				Type:      ChangeDropPrimaryKey,
				TableName: source.Name,
				Detail:    DropPrimaryKeyDetail{Constraint: *source.PrimaryKey},
			})
		}
		if target.PrimaryKey != nil {
			changes = append(changes, Change{
				Type:      ChangeSetPrimaryKey,
				TableName: source.Name,
				Detail:    SetPrimaryKeyDetail{Constraint: *target.PrimaryKey},
			})
		}
	}

	sourceChecks := make(map[string]CheckConstraint, len(source.CheckConstraints))
	for _, cc := range source.CheckConstraints {
		sourceChecks[cc.Name] = cc
	}
	targetChecks := make(map[string]CheckConstraint, len(target.CheckConstraints))
	for _, cc := range target.CheckConstraints {
		targetChecks[cc.Name] = cc
	}

	for _, name := range sortedKeys(targetChecks) {
		if _, ok := sourceChecks[name]; !ok {
			changes = append(changes, Change{
				Type:      ChangeAddCheckConstraint,
				TableName: source.Name,
				Detail:    AddCheckConstraintDetail{Constraint: targetChecks[name]},
			})
		}
	}

	for _, name := range sortedKeys(sourceChecks) {
		if _, ok := targetChecks[name]; !ok {
			changes = append(changes, Change{
				Type:      ChangeDropCheckConstraint,
				TableName: source.Name,
				Detail:    DropCheckConstraintDetail{ConstraintName: name},
			})
		}
	}

	return changes
}

func diffClustering(source, target *Table) []Change {
	if stringSetEqual(source.LiquidClustering, target.LiquidClustering) {
		return nil
	}
	// ToColumns preserves the declared order; an empty list means "remove
	// clustering".
	return []Change{{
		Type:      ChangeAlterClustering,
		TableName: source.Name,
		Detail: AlterClusteringDetail{
			FromColumns: source.LiquidClustering,
			ToColumns:   target.LiquidClustering,
		},
	}}
}

func diffPartitioning(source, target *Table) []Change {
	// Compared as sets: a reorder alone is not a change. A real difference
	// is always unsupported because the storage format cannot repartition
	// existing data in place.
	if stringSetEqual(source.PartitionedBy, target.PartitionedBy) {
		return nil
	}
	return []Change{{
		Type:      ChangeAlterPartitioning,
		TableName: source.Name,
		Detail: AlterPartitioningDetail{
			FromColumns: source.PartitionedBy,
			ToColumns:   target.PartitionedBy,
		},
		Unsupported: true,
		Message: fmt.Sprintf(
			"cannot change partitioning for table %q: current %v, desired %v; "+
				"partition columns cannot be changed in place, the table must be recreated",
			source.Name, source.PartitionedBy, target.PartitionedBy,
		),
	}}
}

func diffProperties(source, target *Table) []Change {
	// Merge-only: properties present in the source but absent from the
	// target are never dropped.
	changed := make(map[string]string)
	for key, value := range target.TableProperties {
		if source.TableProperties[key] != value {
			changed[key] = value
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return []Change{{
		Type:      ChangeAlterTableProperties,
		TableName: source.Name,
		Detail:    AlterTablePropertiesDetail{Properties: changed},
	}}
}

func orderChanges(changes []Change) []Change {
	sort.SliceStable(changes, func(i, j int) bool {
		return orderOf(changes[i].Type) < orderOf(changes[j].Type)
	})
	return changes
}

func orderOf(t ChangeType) int {
	if order, ok := changeOrder[t]; ok {
		return order
	}
	return 99
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
