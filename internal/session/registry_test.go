package session

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
)

func newTestSession() *Session {
	return New(&fakeTransport{}, "test", 4)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(0)
	if got := r.Len(); got != 0 {
		t.Errorf("new registry Len() = %d, want 0", got)
	}
	if got := len(r.Members()); got != 0 {
		t.Errorf("new registry has %d members, want 0", got)
	}
}

func TestAddDuplicate(t *testing.T) {
	r := NewRegistry(0)
	s := newTestSession()
	defer s.Close()

	if err := r.Add(s); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(s); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("second Add = %v, want ErrDuplicateSession", err)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d after duplicate add, want 1", got)
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	r := NewRegistry(0)
	s := newTestSession()
	defer s.Close()

	if r.Remove(s) {
		t.Error("Remove of absent session reported true")
	}
	if err := r.Add(s); err != nil {
		t.Fatal(err)
	}
	if !r.Remove(s) {
		t.Error("Remove of member reported false")
	}
	if r.Remove(s) {
		t.Error("double Remove reported true")
	}
	if got := r.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestAddMaxConnections(t *testing.T) {
	const maxConns = 2
	r := NewRegistry(maxConns)

	var sessions []*Session
	for i := 0; i < maxConns; i++ {
		s := newTestSession()
		defer s.Close()
		if err := r.Add(s); err != nil {
			t.Fatalf("Add[%d]: %v", i, err)
		}
		sessions = append(sessions, s)
	}

	extra := newTestSession()
	defer extra.Close()
	if err := r.Add(extra); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("Add over limit = %v, want ErrTooManyConnections", err)
	}

	r.Remove(sessions[0])
	if err := r.Add(extra); err != nil {
		t.Fatalf("Add after removal: %v", err)
	}
	if got := r.Len(); got != maxConns {
		t.Errorf("Len() = %d, want %d", got, maxConns)
	}
}

func TestMembershipCountTracksConnects(t *testing.T) {
	r := NewRegistry(0)
	rng := rand.New(rand.NewSource(42))

	var live []*Session
	connects, disconnects := 0, 0
	for step := 0; step < 500; step++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			s := newTestSession()
			defer s.Close()
			if err := r.Add(s); err != nil {
				t.Fatalf("step %d Add: %v", step, err)
			}
			live = append(live, s)
			connects++
		} else {
			i := rng.Intn(len(live))
			r.Remove(live[i])
			live = append(live[:i], live[i+1:]...)
			disconnects++
		}

		if got, want := r.Len(), connects-disconnects; got != want {
			t.Fatalf("step %d: Len() = %d, want %d", step, got, want)
		}
		if r.Len() < 0 {
			t.Fatalf("step %d: negative membership", step)
		}
	}
}

func TestConcurrentAddRemoveMembers(t *testing.T) {
	r := NewRegistry(0)
	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s := newTestSession()
				if err := r.Add(s); err != nil {
					t.Errorf("Add: %v", err)
				}
				for _, m := range r.Members() {
					_ = m.Alive()
				}
				r.Remove(s)
				r.Remove(s)
				s.Close()
			}
		}()
	}
	wg.Wait()

	if got := r.Len(); got != 0 {
		t.Errorf("Len() = %d after balanced add/remove, want 0", got)
	}
}

func TestMembersReturnsCopy(t *testing.T) {
	r := NewRegistry(0)
	a, b := newTestSession(), newTestSession()
	defer a.Close()
	defer b.Close()
	r.Add(a)
	r.Add(b)

	members := r.Members()
	r.Remove(a)

	if len(members) != 2 {
		t.Errorf("snapshot changed after Remove: %d members, want 2", len(members))
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(0)
	a, b := newTestSession(), newTestSession()
	r.Add(a)
	r.Add(b)

	r.CloseAll()

	if a.Alive() || b.Alive() {
		t.Error("CloseAll should close every member")
	}
	if r.Len() != 2 {
		t.Errorf("CloseAll should not change membership, Len() = %d", r.Len())
	}
}
