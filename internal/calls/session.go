package calls

import (
	"sync"
	"time"
)

// Status reports whether a call is waiting for its second member or active.
// Derived from the member count; stored nowhere, computed on read.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
)

// maxMembers is fixed: a call connects exactly two peers.
const maxMembers = 2

// Session is one two-party call. All mutable fields are guarded by mu;
// callers reach a session only through Store.With and never hold the
// pointer past a single operation.
type Session struct {
	mu     sync.Mutex
	closed bool // set when the session leaves the table; With treats it as gone

	Code          string   // human-shareable lookup code, 6 uppercase alphanumerics
	Key           string   // transport room key; the code is never used for addressing
	CreatorID     string
	Members       []string // insertion order, unique, len <= maxMembers
	PendingJoiner string   // empty when nobody awaits approval
	CreatedAt     time.Time
	LastActivity  time.Time
}

func (s *Session) status() Status {
	if len(s.Members) >= maxMembers {
		return StatusActive
	}
	return StatusWaiting
}

func (s *Session) isMember(id string) bool {
	for _, m := range s.Members {
		if m == id {
			return true
		}
	}
	return false
}

// otherMember returns the member that is not id. Only meaningful on a full
// session with id as one of the two members.
func (s *Session) otherMember(id string) (string, bool) {
	for _, m := range s.Members {
		if m != id {
			return m, true
		}
	}
	return "", false
}

func (s *Session) removeMember(id string) bool {
	for i, m := range s.Members {
		if m == id {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Session) touch(now time.Time) {
	s.LastActivity = now
}

// Snapshot is a read-only copy of a session for the HTTP ops surface.
// The room key is deliberately absent: the lookup endpoint must not turn
// a guessable code into a transport address.
type Snapshot struct {
	Code             string    `json:"code"`
	CreatorID        string    `json:"creator_id"`
	Members          []string  `json:"members"`
	PendingJoiner    string    `json:"pending_joiner,omitempty"`
	Status           Status    `json:"status"`
	ParticipantCount int       `json:"participant_count"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivity     time.Time `json:"last_activity"`
}

// snapshot copies the session; caller must hold s.mu.
func (s *Session) snapshot() Snapshot {
	members := make([]string, len(s.Members))
	copy(members, s.Members)
	return Snapshot{
		Code:             s.Code,
		CreatorID:        s.CreatorID,
		Members:          members,
		PendingJoiner:    s.PendingJoiner,
		Status:           s.status(),
		ParticipantCount: len(s.Members),
		CreatedAt:        s.CreatedAt,
		LastActivity:     s.LastActivity,
	}
}
