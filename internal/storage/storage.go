package storage

import (
	"context"

	"github.com/hombenai/herd-bot/internal/models"
)

// Store is the durable document store behind the registry. Load returns the
// last saved snapshot (empty on first run); Save must replace it atomically
// so a concurrent Load never observes a partially written state.
type Store interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Save(ctx context.Context, snap *models.Snapshot) error
	Close() error
}
