package migrate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
)

// PendingMigration is a migration selected for execution by Plan.
type PendingMigration struct {
	Version  int
	Name     string
	Path     string
	Checksum string
	SQL      string
}

// Plan selects the migrations whose versions are absent from the applied
// set, in ascending version order regardless of input order.
func Plan(migrations []File, applied map[int]struct{}) []PendingMigration {
	pending := make([]PendingMigration, 0, len(migrations))
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		pending = append(pending, PendingMigration{
			Version:  m.Version,
			Name:     m.Name,
			Path:     m.Path,
			Checksum: m.Checksum,
			SQL:      m.SQL,
		})
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})
	return pending
}

// Executor runs one migration's SQL against the warehouse.
type Executor func(ctx context.Context, sql string, version int) error

// Runner applies pending migrations in order, recording each outcome in
// the state store before surfacing failures.
type Runner struct {
	store   StateStore
	exec    Executor
	catalog string
	schema  string
	logger  *log.Logger
}

func NewRunner(store StateStore, exec Executor, catalog, schemaName string, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		store:   store,
		exec:    exec,
		catalog: catalog,
		schema:  schemaName,
		logger:  logger,
	}
}

// Apply verifies checksums for every already-applied migration, then runs
// the pending ones in version order. Nothing executes if any checksum has
// drifted. With dryRun set, the plan is logged and no SQL runs.
func (r *Runner) Apply(ctx context.Context, migrations []File, dryRun bool) error {
	applied, err := r.store.ListApplied(ctx)
	if err != nil {
		return err
	}

	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		byVersion[a.Version] = a
	}
	for _, m := range migrations {
		recorded, ok := byVersion[m.Version]
		if !ok {
			continue
		}
		if recorded.Checksum != m.Checksum {
			return &ChecksumMismatchError{
				Version:  m.Version,
				Name:     m.Name,
				Recorded: recorded.Checksum,
				Actual:   m.Checksum,
			}
		}
	}

	appliedSet := make(map[int]struct{}, len(byVersion))
	for version := range byVersion {
		appliedSet[version] = struct{}{}
	}
	pending := Plan(migrations, appliedSet)
	if len(pending) == 0 {
		r.logger.Printf("no pending migrations")
		return nil
	}

	if dryRun {
		for _, p := range pending {
			r.logger.Printf("would apply V%d__%s (%s)", p.Version, p.Name, p.Path)
		}
		return nil
	}

	for _, p := range pending {
		r.logger.Printf("applying V%d__%s", p.Version, p.Name)
		sql := r.substitute(p.SQL)
		if execErr := r.exec(ctx, sql, p.Version); execErr != nil {
			if recordErr := r.store.RecordApplied(ctx, p.Version, p.Name, p.Checksum, false, execErr.Error()); recordErr != nil {
				r.logger.Printf("failed to record migration %d failure: %v", p.Version, recordErr)
			}
			return fmt.Errorf("migration V%d__%s failed: %w", p.Version, p.Name, execErr)
		}
		if err := r.store.RecordApplied(ctx, p.Version, p.Name, p.Checksum, true, ""); err != nil {
			return err
		}
		r.logger.Printf("applied V%d__%s", p.Version, p.Name)
	}
	return nil
}

func (r *Runner) substitute(sql string) string {
	sql = strings.ReplaceAll(sql, "${catalog}", r.catalog)
	return strings.ReplaceAll(sql, "${schema}", r.schema)
}
