package bancho

import "testing"

func newTestSession(id string, userID int32, username string) *Session {
	return NewSession(id, userID, username, "")
}

func TestRegistryCreateAndGetAllIndexes(t *testing.T) {
	r := NewRegistry()
	sess := newTestSession("sess-1", 100, "Cookiezi")
	r.Create(sess, NewFrame(nil))

	cases := []UserQuery{
		ByID("sess-1"),
		ByUserID(100),
		ByUsername("Cookiezi"),
	}
	for _, q := range cases {
		got, ok := r.Get(q)
		if !ok || got != sess {
			t.Fatalf("Get(%+v) = %v, %v, want sess, true", q, got, ok)
		}
	}
}

func TestRegistryGetMiss(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get(ByUserID(1)); ok {
		t.Fatal("Get on empty registry should miss")
	}
}

func TestRegistryCreateDisplacesExistingUser(t *testing.T) {
	r := NewRegistry()
	old := newTestSession("sess-old", 7, "cookiezi")
	r.Create(old, NewFrame(nil))

	logout := NewFrame([]byte{0xDE, 0xAD})
	fresh := newTestSession("sess-new", 7, "cookiezi")
	r.Create(fresh, logout)

	if _, ok := r.Get(ByID("sess-old")); ok {
		t.Fatal("old session should have been removed from the session-id index")
	}
	got, ok := r.Get(ByUserID(7))
	if !ok || got != fresh {
		t.Fatalf("ByUserID(7) should resolve to the displacing session, got %v, %v", got, ok)
	}
	if old.Queue.Len() != 1 {
		t.Fatalf("displaced session should have received a logout frame, Queue.Len() = %d", old.Queue.Len())
	}
}

func TestRegistryDelete(t *testing.T) {
	r := NewRegistry()
	sess := newTestSession("sess-1", 1, "user")
	r.Create(sess, NewFrame(nil))

	if !r.Delete(ByID("sess-1")) {
		t.Fatal("Delete should report true for an existing session")
	}
	if r.Delete(ByID("sess-1")) {
		t.Fatal("second Delete of the same session should report false")
	}
	if r.Len() != 0 {
		t.Fatalf("Len() after delete = %d, want 0", r.Len())
	}
	if _, ok := r.Get(ByUserID(1)); ok {
		t.Fatal("secondary index should be scrubbed on Delete")
	}
}

func TestRegistryForEachEarlyStop(t *testing.T) {
	r := NewRegistry()
	r.Create(newTestSession("s1", 1, "a"), NewFrame(nil))
	r.Create(newTestSession("s2", 2, "b"), NewFrame(nil))
	r.Create(newTestSession("s3", 3, "c"), NewFrame(nil))

	seen := 0
	r.ForEach(func(s *Session) bool {
		seen++
		return seen < 2
	})
	if seen != 2 {
		t.Fatalf("ForEach should have stopped after 2 visits, saw %d", seen)
	}
}

func TestRegistrySnapshotLen(t *testing.T) {
	r := NewRegistry()
	r.Create(newTestSession("s1", 1, "a"), NewFrame(nil))
	r.Create(newTestSession("s2", 2, "b"), NewFrame(nil))

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() len = %d, want 2", len(snap))
	}
}

func TestSafeUsernameFolding(t *testing.T) {
	if got := SafeUsername("Cookie Zi"); got != "cookie_zi" {
		t.Fatalf("SafeUsername = %q, want %q", got, "cookie_zi")
	}
}
