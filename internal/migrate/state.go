package migrate

import (
	"context"
	"sort"
	"sync"
	"time"
)

// AppliedMigration is one row of the migration ledger. "Applied" means
// recorded at least once, success or not: a failed migration still blocks
// the same version from being silently retried with different content.
type AppliedMigration struct {
	Version   int
	Name      string
	Checksum  string
	AppliedAt time.Time
	Success   bool
	Error     string
}

// StateStore is the persistent ledger of executed migrations.
//
// Recording the same version twice with the same checksum is a no-op that
// retains the first outcome unconditionally. Recording it with a different
// checksum fails with a StateConflictError and must not mutate state.
type StateStore interface {
	ListApplied(ctx context.Context) ([]AppliedMigration, error)
	GetLastApplied(ctx context.Context) (*AppliedMigration, error)
	HasApplied(ctx context.Context, version int) (bool, error)
	RecordApplied(ctx context.Context, version int, name, checksum string, success bool, errText string) error
}

// MemoryStateStore keeps the ledger in process memory. It exists for tests
// and dry runs; production uses the Delta-backed store.
type MemoryStateStore struct {
	mu      sync.Mutex
	applied map[int]AppliedMigration
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{applied: make(map[int]AppliedMigration)}
}

func (s *MemoryStateStore) ListApplied(context.Context) ([]AppliedMigration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AppliedMigration, 0, len(s.applied))
	for _, m := range s.applied {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *MemoryStateStore) GetLastApplied(context.Context) (*AppliedMigration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *AppliedMigration
	for version := range s.applied {
		if last == nil || version > last.Version {
			m := s.applied[version]
			last = &m
		}
	}
	return last, nil
}

func (s *MemoryStateStore) HasApplied(_ context.Context, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.applied[version]
	return ok, nil
}

func (s *MemoryStateStore) RecordApplied(_ context.Context, version int, name, checksum string, success bool, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.applied[version]; ok {
		if existing.Checksum != checksum {
			return &StateConflictError{
				Version:   version,
				Recorded:  existing.Checksum,
				Attempted: checksum,
			}
		}
		// First outcome wins, including its success flag and error text.
		return nil
	}

	s.applied[version] = AppliedMigration{
		Version:   version,
		Name:      name,
		Checksum:  checksum,
		AppliedAt: time.Now().UTC(),
		Success:   success,
		Error:     errText,
	}
	return nil
}
