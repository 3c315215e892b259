package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOwner is returned when a user acts on an animal they don't own.
	ErrNotOwner = errors.New("animal does not belong to this user")

	// ErrUnknownAnimal is returned when the animal id doesn't exist.
	ErrUnknownAnimal = errors.New("animal not found")

	// ErrClassTaken is returned when an enrollment's class id already
	// belongs to a different owner. The identifier's output space is
	// shared, so this is a real collision, not a programming error.
	ErrClassTaken = errors.New("class id already enrolled by another owner")
)

// PersistenceError wraps a store failure. The operation that hit it was
// aborted and in-memory state still matches the last durable snapshot.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("registry %s: persistence failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
