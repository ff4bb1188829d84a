package migrate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charlieyou/ucmt/internal/config"
)

// identPattern is the only shape of identifier ever interpolated into
// ledger SQL. The SQL transport has no parameterized identifiers, so
// anything else is rejected up front.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const appliedAtLayout = "2006-01-02 15:04:05"

// Execer is the slice of the database client the ledger needs.
type Execer interface {
	Execute(ctx context.Context, stmt string) error
	Query(ctx context.Context, stmt string) ([]map[string]any, error)
}

// DeltaStateStore persists the ledger in a Delta table inside the managed
// catalog itself, created on first use.
type DeltaStateStore struct {
	db  Execer
	fqn string
}

// NewDeltaStateStore validates identifiers, bootstraps the ledger table if
// absent, and returns the store.
func NewDeltaStateStore(ctx context.Context, db Execer, catalog, schemaName, table string) (*DeltaStateStore, error) {
	for _, ident := range []string{catalog, schemaName, table} {
		if !identPattern.MatchString(ident) {
			return nil, fmt.Errorf("%w: invalid identifier %q for migration state table", config.ErrConfig, ident)
		}
	}

	store := &DeltaStateStore{
		db:  db,
		fqn: fmt.Sprintf("%s.%s.%s", catalog, schemaName, table),
	}
	if err := store.ensureTable(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *DeltaStateStore) ensureTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    version INT NOT NULL,
    name STRING,
    checksum STRING NOT NULL,
    applied_at TIMESTAMP NOT NULL,
    success BOOLEAN NOT NULL,
    error STRING
) USING DELTA`, s.fqn)
	if err := s.db.Execute(ctx, stmt); err != nil {
		return fmt.Errorf("create migration state table %s: %w", s.fqn, err)
	}
	return nil
}

func (s *DeltaStateStore) ListApplied(ctx context.Context) ([]AppliedMigration, error) {
	stmt := fmt.Sprintf("SELECT version, name, checksum, applied_at, success, error FROM %s ORDER BY version", s.fqn)
	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	out := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		out = append(out, AppliedMigration{
			Version:   toInt(row["version"]),
			Name:      toString(row["name"]),
			Checksum:  toString(row["checksum"]),
			AppliedAt: toTime(row["applied_at"]),
			Success:   toBool(row["success"]),
			Error:     toString(row["error"]),
		})
	}
	return out, nil
}

func (s *DeltaStateStore) GetLastApplied(ctx context.Context) (*AppliedMigration, error) {
	applied, err := s.ListApplied(ctx)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, nil
	}
	last := applied[len(applied)-1]
	return &last, nil
}

func (s *DeltaStateStore) HasApplied(ctx context.Context, version int) (bool, error) {
	stmt := fmt.Sprintf("SELECT version FROM %s WHERE version = %d", s.fqn, version)
	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return false, fmt.Errorf("check applied migration %d: %w", version, err)
	}
	return len(rows) > 0, nil
}

func (s *DeltaStateStore) RecordApplied(ctx context.Context, version int, name, checksum string, success bool, errText string) error {
	stmt := fmt.Sprintf("SELECT checksum FROM %s WHERE version = %d", s.fqn, version)
	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return fmt.Errorf("read migration state for version %d: %w", version, err)
	}
	if len(rows) > 0 {
		recorded := toString(rows[0]["checksum"])
		if recorded != checksum {
			return &StateConflictError{
				Version:   version,
				Recorded:  recorded,
				Attempted: checksum,
			}
		}
		return nil
	}

	errValue := "NULL"
	if errText != "" {
		errValue = fmt.Sprintf("'%s'", escapeLiteral(errText))
	}
	insert := fmt.Sprintf(`INSERT INTO %s (version, name, checksum, applied_at, success, error)
VALUES (%d, '%s', '%s', '%s', %t, %s)`,
		s.fqn, version, escapeLiteral(name), escapeLiteral(checksum),
		time.Now().UTC().Format(appliedAtLayout), success, errValue)
	if err := s.db.Execute(ctx, insert); err != nil {
		return fmt.Errorf("record migration %d: %w", version, err)
	}
	return nil
}

func escapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func toString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	default:
		return fmt.Sprint(value)
	}
}

func toInt(v any) int {
	switch value := v.(type) {
	case int:
		return value
	case int32:
		return int(value)
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}

func toBool(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		return strings.EqualFold(value, "true")
	default:
		return false
	}
}

func toTime(v any) time.Time {
	switch value := v.(type) {
	case time.Time:
		return value
	case string:
		if parsed, err := time.Parse(appliedAtLayout, value); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
