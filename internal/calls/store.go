package calls

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time for the store and the janitor so tests can advance
// it manually.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// createAttempts bounds code redraws on collision. Exhausting it means the
// code space is effectively full, which is not a realistic operating
// condition; the caller treats it as fatal.
const createAttempts = 50

// Store is the authoritative in-memory call table. The table mutex guards
// the code-to-session map and the occupant index; every session carries its
// own mutex, so operations on different codes never contend.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	occupants map[string]string // clientID -> code, member or pending joiner
	clock     Clock
	newCode   func() (string, error)
}

// NewStore creates an empty call table. A nil clock means wall-clock time.
func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{
		sessions:  make(map[string]*Session),
		occupants: make(map[string]string),
		clock:     clock,
		newCode:   newCode,
	}
}

// Now exposes the store's clock.
func (st *Store) Now() time.Time { return st.clock.Now() }

// Create inserts a session with creatorID as sole member and returns its
// code and room key. Codes colliding with a live session are redrawn, never
// overwritten.
func (st *Store) Create(creatorID string) (code, key string, err error) {
	now := st.clock.Now()
	key = uuid.NewString()

	st.mu.Lock()
	defer st.mu.Unlock()

	for i := 0; i < createAttempts; i++ {
		code, err = st.newCode()
		if err != nil {
			return "", "", err
		}
		if _, taken := st.sessions[code]; taken {
			continue
		}
		st.sessions[code] = &Session{
			Code:         code,
			Key:          key,
			CreatorID:    creatorID,
			Members:      []string{creatorID},
			CreatedAt:    now,
			LastActivity: now,
		}
		st.occupants[creatorID] = code
		return code, key, nil
	}
	return "", "", fmt.Errorf("call code space exhausted after %d attempts", createAttempts)
}

// With runs fn with exclusive access to the session for code. The table
// lock is released before the session lock is taken, so long operations on
// one call never block the table. Returns ErrNotFound for unknown or
// already-deleted codes.
func (st *Store) With(code string, fn func(*Session) error) error {
	st.mu.RLock()
	sess := st.sessions[code]
	st.mu.RUnlock()
	if sess == nil {
		return ErrNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return ErrNotFound
	}
	return fn(sess)
}

// Bind reserves clientID as an occupant of the session for code. An endpoint
// occupies at most one session at a time, whether as member or as pending
// joiner; binding while held by another session fails and reports that
// session's code. Re-binding the same code is a no-op.
func (st *Store) Bind(clientID, code string) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if cur, ok := st.occupants[clientID]; ok && cur != code {
		return cur, false
	}
	st.occupants[clientID] = code
	return code, true
}

// Release drops clientID's occupancy of code. A mismatched or absent binding
// is left alone, so a stale release can never free a newer reservation.
func (st *Store) Release(clientID, code string) {
	st.mu.Lock()
	if st.occupants[clientID] == code {
		delete(st.occupants, clientID)
	}
	st.mu.Unlock()
}

// BoundTo reports the code of the session clientID currently occupies.
func (st *Store) BoundTo(clientID string) (string, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	code, ok := st.occupants[clientID]
	return code, ok
}

// Delete removes a session from the table, together with every occupancy it
// still holds. Deleting an absent code is a no-op.
func (st *Store) Delete(code string) {
	st.mu.Lock()
	sess := st.sessions[code]
	delete(st.sessions, code)
	for id, c := range st.occupants {
		if c == code {
			delete(st.occupants, id)
		}
	}
	st.mu.Unlock()

	if sess != nil {
		sess.mu.Lock()
		sess.closed = true
		sess.mu.Unlock()
	}
}

// ForEach visits every live session, holding only that session's lock
// during fn. fn must not call back into the store for the same session.
func (st *Store) ForEach(fn func(*Session)) {
	st.mu.RLock()
	all := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		all = append(all, sess)
	}
	st.mu.RUnlock()

	for _, sess := range all {
		sess.mu.Lock()
		if !sess.closed {
			fn(sess)
		}
		sess.mu.Unlock()
	}
}

// ForEachSnapshot visits a read-only copy of every live session, for
// callers outside this package.
func (st *Store) ForEachSnapshot(fn func(Snapshot)) {
	st.ForEach(func(sess *Session) {
		fn(sess.snapshot())
	})
}

// Get returns a read-only snapshot of the session for code.
func (st *Store) Get(code string) (Snapshot, bool) {
	var snap Snapshot
	err := st.With(code, func(sess *Session) error {
		snap = sess.snapshot()
		return nil
	})
	return snap, err == nil
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
