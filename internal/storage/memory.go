package storage

import (
	"context"
	"sync"

	"github.com/hombenai/herd-bot/internal/models"
)

// MemoryStore holds the snapshot in memory. It exists for tests; production
// deployments use the file or Postgres backend.
type MemoryStore struct {
	mu   sync.Mutex
	snap *models.Snapshot

	// FailSave, when set, is returned from Save without committing. Tests
	// use it to exercise the registry's persist-before-commit rollback.
	FailSave error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: models.NewSnapshot()}
}

func (s *MemoryStore) Load(ctx context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.snap = snap.Clone()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Seed replaces the stored snapshot, bypassing Save semantics.
func (s *MemoryStore) Seed(snap *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap.Clone()
}
