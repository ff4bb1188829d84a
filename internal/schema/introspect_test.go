package schema

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

// fakeQuerier serves canned results keyed by statement substring, first
// match wins in declaration order.
type fakeQuerier struct {
	responses []queryResponse
}

type queryResponse struct {
	contains string
	rows     []map[string]any
}

func (f *fakeQuerier) Query(_ context.Context, stmt string) ([]map[string]any, error) {
	for _, r := range f.responses {
		if strings.Contains(stmt, r.contains) {
			return r.rows, nil
		}
	}
	return nil, nil
}

func TestIntrospectorBuildsSchema(t *testing.T) {
	db := &fakeQuerier{responses: []queryResponse{
		{
			contains: "information_schema.tables",
			rows:     []map[string]any{{"table_name": "users"}},
		},
		{
			contains: "information_schema.columns",
			rows: []map[string]any{
				{"column_name": "id", "full_data_type": "bigint", "is_nullable": "NO", "column_default": nil, "comment": nil},
				{"column_name": "email", "full_data_type": "string", "is_nullable": "YES", "column_default": nil, "comment": "login address"},
			},
		},
		{
			contains: "PRIMARY KEY",
			rows:     []map[string]any{{"enforced": "YES", "column_name": "id"}},
		},
		{
			contains: "SHOW TBLPROPERTIES",
			rows: []map[string]any{
				{"key": "delta.columnMapping.mode", "value": "name"},
				{"key": "delta.constraints.email_not_blank", "value": "length(email) > 0"},
				{"key": "delta.lastCommitTimestamp", "value": "1724968800000"},
			},
		},
		{
			contains: "DESCRIBE DETAIL",
			rows: []map[string]any{{
				"clusteringColumns": `["email"]`,
				"partitionColumns":  "[]",
			}},
		},
	}}

	s, err := NewIntrospector(db, "main", "default").Introspect(context.Background())
	if err != nil {
		t.Fatalf("Introspect: %v", err)
	}

	users := s.Table("users")
	if users == nil {
		t.Fatalf("users not introspected, tables = %v", s.TableNames())
	}
	if len(users.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(users.Columns))
	}
	if id := users.Column("id"); id == nil || id.Nullable {
		t.Fatalf("id = %+v", id)
	}
	if email := users.Column("email"); email == nil || !email.Nullable || email.Comment != "login address" {
		t.Fatalf("email = %+v", email)
	}
	if users.PrimaryKey == nil || !users.PrimaryKey.Rely || !reflect.DeepEqual(users.PrimaryKey.Columns, []string{"id"}) {
		t.Fatalf("primary key = %+v", users.PrimaryKey)
	}
	if !users.HasColumnMapping() {
		t.Fatal("column mapping property must be kept")
	}
	if _, ok := users.TableProperties["delta.lastCommitTimestamp"]; ok {
		t.Fatal("engine bookkeeping properties must be filtered out")
	}
	if len(users.CheckConstraints) != 1 || users.CheckConstraints[0].Name != "email_not_blank" {
		t.Fatalf("check constraints = %+v", users.CheckConstraints)
	}
	if !reflect.DeepEqual(users.LiquidClustering, []string{"email"}) {
		t.Fatalf("clustering = %v", users.LiquidClustering)
	}
	if len(users.PartitionedBy) != 0 {
		t.Fatalf("partitioning = %v", users.PartitionedBy)
	}
}
