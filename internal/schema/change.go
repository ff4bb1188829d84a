package schema

// ChangeType describes a single kind of schema change.
type ChangeType string

const (
	ChangeCreateTable            ChangeType = "create_table"
	ChangeDropTable              ChangeType = "drop_table"
	ChangeAddColumn              ChangeType = "add_column"
	ChangeDropColumn             ChangeType = "drop_column"
	ChangeAlterColumnType        ChangeType = "alter_column_type"
	ChangeAlterColumnNullability ChangeType = "alter_column_nullability"
	ChangeAlterColumnDefault     ChangeType = "alter_column_default"
	ChangeSetPrimaryKey          ChangeType = "set_primary_key"
	ChangeDropPrimaryKey         ChangeType = "drop_primary_key"
	ChangeAddForeignKey          ChangeType = "add_foreign_key"
	ChangeDropForeignKey         ChangeType = "drop_foreign_key"
	ChangeAddCheckConstraint     ChangeType = "add_check_constraint"
	ChangeDropCheckConstraint    ChangeType = "drop_check_constraint"
	ChangeAlterClustering        ChangeType = "alter_clustering"
	ChangeAlterPartitioning      ChangeType = "alter_partitioning"
	ChangeAlterTableProperties   ChangeType = "alter_table_properties"
)

// Change is a single classified difference between two schemas.
type Change struct {
	Type      ChangeType
	TableName string
	Detail    Detail

	// Destructive changes may lose data; Unsupported changes cannot be
	// rendered and block code generation for the whole batch. Message is
	// set whenever Unsupported is.
	Destructive           bool
	Unsupported           bool
	RequiresColumnMapping bool
	Message               string
}

// Detail carries the per-kind payload of a Change. The generator type
// switches on the concrete type, one variant per change kind.
type Detail interface {
	isDetail()
}

type CreateTableDetail struct {
	Table *Table
}

type DropTableDetail struct{}

type AddColumnDetail struct {
	Column Column
}

type DropColumnDetail struct {
	ColumnName string
}

type AlterColumnTypeDetail struct {
	ColumnName string
	FromType   string
	ToType     string
}

type AlterColumnNullabilityDetail struct {
	ColumnName   string
	FromNullable bool
	ToNullable   bool
}

type AlterColumnDefaultDetail struct {
	ColumnName  string
	FromDefault string
	ToDefault   string
}

type SetPrimaryKeyDetail struct {
	Constraint PrimaryKey
}

type DropPrimaryKeyDetail struct {
	Constraint PrimaryKey
}

type AddCheckConstraintDetail struct {
	Constraint CheckConstraint
}

type DropCheckConstraintDetail struct {
	ConstraintName string
}

type AlterClusteringDetail struct {
	FromColumns []string
	ToColumns   []string
}

type AlterPartitioningDetail struct {
	FromColumns []string
	ToColumns   []string
}

type AlterTablePropertiesDetail struct {
	Properties map[string]string
}

func (CreateTableDetail) isDetail()            {}
func (DropTableDetail) isDetail()              {}
func (AddColumnDetail) isDetail()              {}
func (DropColumnDetail) isDetail()             {}
func (AlterColumnTypeDetail) isDetail()        {}
func (AlterColumnNullabilityDetail) isDetail() {}
func (AlterColumnDefaultDetail) isDetail()     {}
func (SetPrimaryKeyDetail) isDetail()          {}
func (DropPrimaryKeyDetail) isDetail()         {}
func (AddCheckConstraintDetail) isDetail()     {}
func (DropCheckConstraintDetail) isDetail()    {}
func (AlterClusteringDetail) isDetail()        {}
func (AlterPartitioningDetail) isDetail()      {}
func (AlterTablePropertiesDetail) isDetail()   {}
