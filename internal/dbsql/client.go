package dbsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Client executes statements against a Databricks SQL warehouse.
type Client interface {
	Execute(ctx context.Context, stmt string) error
	Query(ctx context.Context, stmt string) ([]map[string]any, error)
}

// DatabricksClient wraps database/sql over the "databricks" driver.
type DatabricksClient struct {
	dsn string
	db  *sql.DB
}

// NewDatabricksClient builds a client from workspace credentials. The
// token is embedded in the DSN understood by the databricks driver.
func NewDatabricksClient(host, httpPath, token string) *DatabricksClient {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimSuffix(host, "/")
	return &DatabricksClient{
		dsn: fmt.Sprintf("token:%s@%s:443%s", token, host, httpPath),
	}
}

func (c *DatabricksClient) Connect(ctx context.Context) error {
	if c.db != nil {
		return fmt.Errorf("already connected")
	}
	db, err := sql.Open("databricks", c.dsn)
	if err != nil {
		return fmt.Errorf("open databricks connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping databricks warehouse: %w", err)
	}
	c.db = db
	return nil
}

func (c *DatabricksClient) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *DatabricksClient) Execute(ctx context.Context, stmt string) error {
	if c.db == nil {
		return fmt.Errorf("not connected")
	}
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("execute statement: %w", err)
	}
	return nil
}

func (c *DatabricksClient) Query(ctx context.Context, stmt string) ([]map[string]any, error) {
	if c.db == nil {
		return nil, fmt.Errorf("not connected")
	}
	rows, err := c.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// SplitStatements splits a migration script on semicolons and drops
// segments that are empty or contain only comments.
func SplitStatements(script string) []string {
	var out []string
	for _, segment := range strings.Split(script, ";") {
		if !hasExecutableContent(segment) {
			continue
		}
		out = append(out, strings.TrimSpace(segment))
	}
	return out
}

func hasExecutableContent(segment string) bool {
	for _, line := range strings.Split(segment, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return true
	}
	return false
}
