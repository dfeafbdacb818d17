package calls

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*Store, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	return NewStore(clk), clk
}

func TestStoreCreate_SoleMemberAndUniqueKey(t *testing.T) {
	st, _ := newTestStore()

	code, key, err := st.Create("alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("code %q: want %d characters", code, codeLength)
	}
	if key == "" || key == code {
		t.Fatalf("room key %q must be set and distinct from the code", key)
	}

	snap, ok := st.Get(code)
	if !ok {
		t.Fatalf("session %q not found after create", code)
	}
	if len(snap.Members) != 1 || snap.Members[0] != "alice" {
		t.Fatalf("members = %v, want [alice]", snap.Members)
	}
	if snap.CreatorID != "alice" {
		t.Fatalf("creator = %q, want alice", snap.CreatorID)
	}
	if snap.Status != StatusWaiting {
		t.Fatalf("status = %q, want waiting", snap.Status)
	}
}

func TestStoreCreate_RedrawsOnCollision(t *testing.T) {
	st, _ := newTestStore()
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	st.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	first, _, err := st.Create("alice")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, _, err := st.Create("bob")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first != "AAAAAA" || second != "BBBBBB" {
		t.Fatalf("codes = %q, %q: collision must redraw, never overwrite", first, second)
	}
	if st.Len() != 2 {
		t.Fatalf("len = %d, want 2", st.Len())
	}
}

func TestStoreCreate_ExhaustionFails(t *testing.T) {
	st, _ := newTestStore()
	st.newCode = func() (string, error) { return "SAMECD", nil }

	if _, _, err := st.Create("alice"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, _, err := st.Create("bob"); err == nil {
		t.Fatalf("expected error when every draw collides")
	}
}

func TestStoreDelete_Idempotent(t *testing.T) {
	st, _ := newTestStore()
	code, _, _ := st.Create("alice")

	st.Delete(code)
	st.Delete(code) // second delete is a no-op
	st.Delete("NOSUCH")

	if _, ok := st.Get(code); ok {
		t.Fatalf("session %q still visible after delete", code)
	}
	if st.Len() != 0 {
		t.Fatalf("len = %d, want 0", st.Len())
	}
}

func TestStoreWith_NotFoundAfterDelete(t *testing.T) {
	st, _ := newTestStore()
	code, _, _ := st.Create("alice")

	// Simulate the race where a handle resolves before deletion and locks
	// after: a closed session must read as gone.
	st.mu.RLock()
	sess := st.sessions[code]
	st.mu.RUnlock()
	st.Delete(code)

	if !sess.closed {
		t.Fatalf("deleted session not marked closed")
	}
	err := st.With(code, func(*Session) error { return nil })
	if err != ErrNotFound {
		t.Fatalf("With after delete = %v, want ErrNotFound", err)
	}
}

func TestStoreForEach_VisitsEveryLiveSession(t *testing.T) {
	st, _ := newTestStore()
	a, _, _ := st.Create("alice")
	b, _, _ := st.Create("bob")
	st.Delete(b)

	var seen []string
	st.ForEach(func(sess *Session) { seen = append(seen, sess.Code) })
	if len(seen) != 1 || seen[0] != a {
		t.Fatalf("visited %v, want [%s]", seen, a)
	}
}

func TestStoreBind_SingleOccupancy(t *testing.T) {
	st, _ := newTestStore()
	code, _, _ := st.Create("alice") // creating binds the creator

	if other, ok := st.Bind("alice", "ZZZZZZ"); ok || other != code {
		t.Fatalf("second bind = (%q, %v), want refused with %q", other, ok, code)
	}
	if _, ok := st.Bind("alice", code); !ok {
		t.Fatalf("re-binding the same code must be a no-op success")
	}

	st.Release("alice", "ZZZZZZ") // mismatched code must not free the slot
	if bound, ok := st.BoundTo("alice"); !ok || bound != code {
		t.Fatalf("bound = (%q, %v) after mismatched release, want %q", bound, ok, code)
	}

	st.Release("alice", code)
	if _, ok := st.BoundTo("alice"); ok {
		t.Fatalf("binding survived its release")
	}
}

func TestStoreDelete_SweepsOccupants(t *testing.T) {
	st, _ := newTestStore()
	code, _, _ := st.Create("alice")
	st.Bind("bob", code)

	st.Delete(code)

	for _, id := range []string{"alice", "bob"} {
		if bound, ok := st.BoundTo(id); ok {
			t.Fatalf("%s still bound to %q after delete", id, bound)
		}
	}
}

func TestNewCode_AlphabetAndLength(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := newCode()
		if err != nil {
			t.Fatalf("newCode: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("code %q: want length %d", code, codeLength)
		}
		for _, r := range code {
			if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}
