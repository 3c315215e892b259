package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hombenai/herd-bot/internal/models"
	"github.com/hombenai/herd-bot/internal/storage"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	reg, err := New(context.Background(), store, zap.NewNop())
	require.NoError(t, err)
	return reg, store
}

func TestUpsertUser(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice"))
	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice"))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "Alice", snap.Users["u1"].Name)

	// Display name refreshes on later contact.
	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice B."))
	snap, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", snap.Users["u1"].Name)
}

func TestEnrollListNoDuplicates(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice"))
	for i := 0; i < 3; i++ {
		_, err := reg.Enroll(ctx, "u1", "12", "Bessie", "photo-1")
		require.NoError(t, err)
	}

	animals, err := reg.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, animals, 1)
	assert.Equal(t, "12", animals[0].ID)
	assert.Equal(t, "Bessie", animals[0].Name)
	assert.Equal(t, "u1", animals[0].OwnerID)
	assert.NotEmpty(t, animals[0].Tag)
}

func TestEnrollCollision(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice"))
	require.NoError(t, reg.UpsertUser(ctx, "u2", "Bob"))
	_, err := reg.Enroll(ctx, "u1", "12", "Bessie", "photo-1")
	require.NoError(t, err)

	// Another owner landing on the same class id is rejected.
	_, err = reg.Enroll(ctx, "u2", "12", "Daisy", "photo-2")
	assert.ErrorIs(t, err, ErrClassTaken)

	// The same owner re-enrolling overwrites name and photo.
	animal, err := reg.Enroll(ctx, "u1", "12", "Bessie II", "photo-3")
	require.NoError(t, err)
	assert.Equal(t, "Bessie II", animal.Name)
	assert.Equal(t, "photo-3", animal.PhotoRef)

	animals, err := reg.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, animals, 1)
	assert.Equal(t, "Bessie II", animals[0].Name)
}

func TestRemove(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice"))
	require.NoError(t, reg.UpsertUser(ctx, "u2", "Bob"))
	_, err := reg.Enroll(ctx, "u1", "12", "Bessie", "photo-1")
	require.NoError(t, err)

	// Not the owner: rejected, nothing changes.
	assert.ErrorIs(t, reg.Remove(ctx, "u2", "12"), ErrNotOwner)
	animals, err := reg.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, animals, 1)

	// Unknown animal.
	assert.ErrorIs(t, reg.Remove(ctx, "u1", "99"), ErrUnknownAnimal)

	require.NoError(t, reg.Remove(ctx, "u1", "12"))
	animals, err = reg.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, animals)

	_, _, found := reg.Lookup("12")
	assert.False(t, found)
}

func TestRemoveClearsMissingFlag(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice"))
	_, err := reg.Enroll(ctx, "u1", "12", "Bessie", "photo-1")
	require.NoError(t, err)
	_, _, err = reg.MarkMissing(ctx, "u1", "12")
	require.NoError(t, err)

	require.NoError(t, reg.Remove(ctx, "u1", "12"))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Missing)
}

func TestMarkMissingIdempotent(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice"))
	_, err := reg.Enroll(ctx, "u1", "12", "Bessie", "photo-1")
	require.NoError(t, err)

	animal, newly, err := reg.MarkMissing(ctx, "u1", "12")
	require.NoError(t, err)
	assert.True(t, newly)
	assert.Equal(t, "Bessie", animal.Name)

	animal, newly, err = reg.MarkMissing(ctx, "u1", "12")
	require.NoError(t, err)
	assert.False(t, newly)
	assert.Equal(t, "Bessie", animal.Name)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"12"}, snap.Missing)

	_, _, err = reg.MarkMissing(ctx, "u2", "12")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestPersistFailureRollsBack(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice"))

	store.FailSave = errors.New("disk full")
	_, err := reg.Enroll(ctx, "u1", "12", "Bessie", "photo-1")
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)

	// In-memory state still matches the last durable snapshot.
	store.FailSave = nil
	animals, err := reg.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, animals)
	_, _, found := reg.Lookup("12")
	assert.False(t, found)
}

func TestListCompactsStoredDuplicates(t *testing.T) {
	store := storage.NewMemoryStore()
	seed := models.NewSnapshot()
	seed.Users["u1"] = &models.User{ID: "u1", Name: "Alice", Cows: []string{"12", "12", "7", "12"}}
	seed.Animals["12"] = &models.Animal{ID: "12", Name: "Bessie", OwnerID: "u1", PhotoRef: "p1", Tag: "t1"}
	seed.Animals["7"] = &models.Animal{ID: "7", Name: "Daisy", OwnerID: "u1", PhotoRef: "p2", Tag: "t2"}
	store.Seed(seed)

	reg, err := New(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	animals, err := reg.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, animals, 2)
	assert.Equal(t, "12", animals[0].ID)
	assert.Equal(t, "7", animals[1].ID)

	// Compaction was persisted.
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"12", "7"}, snap.Users["u1"].Cows)
}

func TestListSkipsDanglingIDs(t *testing.T) {
	store := storage.NewMemoryStore()
	seed := models.NewSnapshot()
	seed.Users["u1"] = &models.User{ID: "u1", Name: "Alice", Cows: []string{"12", "99"}}
	seed.Animals["12"] = &models.Animal{ID: "12", Name: "Bessie", OwnerID: "u1", PhotoRef: "p1", Tag: "t1"}
	store.Seed(seed)

	reg, err := New(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	animals, err := reg.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, animals, 1)
	assert.Equal(t, "12", animals[0].ID)
}

func TestUsersSnapshot(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.UpsertUser(ctx, "u2", "Bob"))
	require.NoError(t, reg.UpsertUser(ctx, "u1", "Alice"))

	users := reg.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "u2", users[1].ID)
}
