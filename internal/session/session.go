package session

import (
	"sync"
	"time"
)

// State says how the next photo or text from a user is interpreted.
type State int

const (
	// StateIdle: photos run the identify flow, text gets a hint reply.
	StateIdle State = iota
	// StateAwaitingName: the next text is the name of the animal being added.
	StateAwaitingName
	// StateAwaitingPhoto: the next accepted photo enrolls the animal under
	// the pending name.
	StateAwaitingPhoto
)

// Session is one user's conversation position. Ephemeral: it lives for the
// process lifetime only and is never persisted.
type Session struct {
	State       State
	PendingName string
}

type entry struct {
	session Session
	touched time.Time
}

// Table holds every user's session. Sessions idle for longer than ttl are
// reset to Idle lazily on next access; ttl <= 0 disables eviction.
type Table struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*entry
}

func NewTable(ttl time.Duration) *Table {
	return &Table{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Get returns the user's current session, creating an Idle one for a user
// seen for the first time.
func (t *Table) Get(userID string) Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(userID).session
}

// AwaitName moves the user to StateAwaitingName, dropping any pending name.
func (t *Table) AwaitName(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.get(userID)
	e.session = Session{State: StateAwaitingName}
}

// SetPendingName records the entered name and moves to StateAwaitingPhoto.
func (t *Table) SetPendingName(userID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.get(userID)
	e.session = Session{State: StateAwaitingPhoto, PendingName: name}
}

// Reset returns the user to Idle.
func (t *Table) Reset(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.get(userID)
	e.session = Session{}
}

// get fetches or creates the entry, applying ttl eviction and refreshing the
// activity timestamp. Callers must hold the mutex.
func (t *Table) get(userID string) *entry {
	now := t.now()
	e, ok := t.sessions[userID]
	if !ok {
		e = &entry{}
		t.sessions[userID] = e
	} else if t.ttl > 0 && now.Sub(e.touched) > t.ttl {
		e.session = Session{}
	}
	e.touched = now
	return e
}
