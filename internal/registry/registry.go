package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hombenai/herd-bot/internal/models"
	"github.com/hombenai/herd-bot/internal/storage"
)

// Registry owns the users, animals and missing-set documents. All mutations
// run under one mutex, are applied to a clone of the current snapshot,
// persisted through the store, and only then committed to memory. A failed
// save therefore leaves the registry at the last durable snapshot.
type Registry struct {
	mu     sync.Mutex
	snap   *models.Snapshot
	store  storage.Store
	logger *zap.Logger

	newTag func() string
}

func New(ctx context.Context, store storage.Store, logger *zap.Logger) (*Registry, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry snapshot: %w", err)
	}
	return &Registry{
		snap:   snap,
		store:  store,
		logger: logger,
		newTag: func() string { return uuid.New().String() },
	}, nil
}

// UpsertUser creates the user on first contact and refreshes the display
// name on every later one. Repeating the same call is a no-op.
func (r *Registry) UpsertUser(ctx context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.snap.Users[id]; ok && u.Name == name {
		return nil
	}

	next := r.snap.Clone()
	if u, ok := next.Users[id]; ok {
		u.Name = name
	} else {
		next.Users[id] = &models.User{ID: id, Name: name}
	}
	return r.commit(ctx, "upsert user", next)
}

// Enroll records an animal under the identifier's class id. A same-owner
// re-enrollment overwrites name and photo; a collision with another owner's
// animal is rejected with ErrClassTaken. The owner's list gains the id at
// most once no matter how often enrollment is repeated.
func (r *Registry) Enroll(ctx context.Context, ownerID, classID, name, photoRef string) (models.Animal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.snap.Animals[classID]; ok && existing.OwnerID != ownerID {
		return models.Animal{}, ErrClassTaken
	}

	next := r.snap.Clone()
	animal := &models.Animal{
		ID:       classID,
		Name:     name,
		OwnerID:  ownerID,
		PhotoRef: photoRef,
		Tag:      r.newTag(),
	}
	next.Animals[classID] = animal

	owner, ok := next.Users[ownerID]
	if !ok {
		owner = &models.User{ID: ownerID}
		next.Users[ownerID] = owner
	}
	if !contains(owner.Cows, classID) {
		owner.Cows = append(owner.Cows, classID)
	}

	if err := r.commit(ctx, "enroll", next); err != nil {
		return models.Animal{}, err
	}
	return *animal, nil
}

// List returns the user's animals in enrollment order, deduplicated. If the
// stored list had accumulated duplicates it is compacted and the compacted
// list persisted; ids that no longer resolve to an animal are skipped.
func (r *Registry) List(ctx context.Context, userID string) ([]models.Animal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.snap.Users[userID]
	if !ok {
		return nil, nil
	}

	deduped := dedupe(u.Cows)
	if len(deduped) != len(u.Cows) {
		next := r.snap.Clone()
		next.Users[userID].Cows = deduped
		if err := r.commit(ctx, "compact list", next); err != nil {
			// Reads still succeed; the compaction retries on the next List.
			r.logger.Warn("failed to persist compacted animal list",
				zap.Error(err),
				zap.String("user_id", userID))
		}
	}

	animals := make([]models.Animal, 0, len(deduped))
	for _, id := range deduped {
		a, ok := r.snap.Animals[id]
		if !ok {
			r.logger.Error("animal in user list has no record",
				zap.String("user_id", userID),
				zap.String("animal_id", id))
			continue
		}
		animals = append(animals, *a)
	}
	return animals, nil
}

// Remove deletes an animal the user owns. The id is also dropped from the
// missing set so no later broadcast can refer to a deleted record.
func (r *Registry) Remove(ctx context.Context, userID, classID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOwnership(userID, classID); err != nil {
		return err
	}

	next := r.snap.Clone()
	delete(next.Animals, classID)
	owner := next.Users[userID]
	owner.Cows = remove(owner.Cows, classID)
	next.Missing = remove(next.Missing, classID)

	return r.commit(ctx, "remove", next)
}

// MarkMissing flags an owned animal as missing and returns its record for
// broadcasting. It is idempotent: re-flagging reports newly=false and the
// set keeps a single entry, so the caller knows not to re-broadcast.
func (r *Registry) MarkMissing(ctx context.Context, userID, classID string) (animal models.Animal, newly bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOwnership(userID, classID); err != nil {
		return models.Animal{}, false, err
	}

	if r.snap.IsMissing(classID) {
		return *r.snap.Animals[classID], false, nil
	}

	next := r.snap.Clone()
	next.Missing = append(next.Missing, classID)
	if err := r.commit(ctx, "mark missing", next); err != nil {
		return models.Animal{}, false, err
	}
	return *r.snap.Animals[classID], true, nil
}

// Lookup resolves a class id to its animal and the owner's display name.
func (r *Registry) Lookup(classID string) (models.Animal, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.snap.Animals[classID]
	if !ok {
		return models.Animal{}, "", false
	}
	ownerName := ""
	if owner, ok := r.snap.Users[a.OwnerID]; ok {
		ownerName = owner.Name
	}
	return *a, ownerName, true
}

// Users returns a snapshot of all known users, ordered by id.
func (r *Registry) Users() []models.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]models.User, 0, len(r.snap.Users))
	for _, u := range r.snap.Users {
		uc := *u
		uc.Cows = append([]string(nil), u.Cows...)
		users = append(users, uc)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// checkOwnership validates that classID exists and belongs to userID.
// Callers must hold the mutex.
func (r *Registry) checkOwnership(userID, classID string) error {
	if _, ok := r.snap.Animals[classID]; !ok {
		return ErrUnknownAnimal
	}
	u, ok := r.snap.Users[userID]
	if !ok || !contains(u.Cows, classID) {
		return ErrNotOwner
	}
	return nil
}

// commit persists next and swaps it in. Callers must hold the mutex.
func (r *Registry) commit(ctx context.Context, op string, next *models.Snapshot) error {
	if err := r.store.Save(ctx, next); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	r.snap = next
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
