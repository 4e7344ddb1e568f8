package bancho

import (
	"sync"
)

// UserQuery names one of the four ways a caller may address a session.
type UserQuery struct {
	SessionID       string
	UserID          int32
	Username        string // safe form, see SafeUsername
	UsernameUnicode string
	Kind            queryKind
}

type queryKind int

const (
	queryNone queryKind = iota
	querySessionID
	queryUserID
	queryUsername
	queryUsernameUnicode
)

// ByID builds a query addressed by opaque session id.
func ByID(id string) UserQuery { return UserQuery{SessionID: id, Kind: querySessionID} }

// ByUserID builds a query addressed by numeric user id.
func ByUserID(id int32) UserQuery { return UserQuery{UserID: id, Kind: queryUserID} }

// ByUsername builds a query addressed by safe-form username.
func ByUsername(name string) UserQuery {
	return UserQuery{Username: SafeUsername(name), Kind: queryUsername}
}

// ByUsernameUnicode builds a query addressed by the unicode display name.
func ByUsernameUnicode(name string) UserQuery {
	return UserQuery{UsernameUnicode: name, Kind: queryUsernameUnicode}
}

// Registry is the multi-indexed live-user store: a primary map keyed by
// session id owning records, with three secondary maps storing pointers
// to the same records. One write-lease guards all four indexes together
// so a broadcast traversing any index never observes a half-inserted
// record, directly mirroring the teacher's ClientManager.
type Registry struct {
	mu              sync.RWMutex
	bySessionID     map[string]*Session
	byUserID        map[int32]*Session
	byUsername      map[string]*Session
	byUsernameUni   map[string]*Session
}

// NewRegistry returns an empty registry with room for a modest initial
// population, avoiding rehash churn on the common case.
func NewRegistry() *Registry {
	return &Registry{
		bySessionID:   make(map[string]*Session, 256),
		byUserID:      make(map[int32]*Session, 256),
		byUsername:    make(map[string]*Session, 256),
		byUsernameUni: make(map[string]*Session, 256),
	}
}

// Create inserts a session into all four indexes. If a session with the
// same UserID already exists, it is displaced: a Logout frame is pushed
// onto its queue before it's removed (I3). The displaced session is
// returned (nil if there wasn't one) so the caller can finish tearing it
// down — channel membership in particular, which this registry knows
// nothing about.
func (r *Registry) Create(sess *Session, logoutFrame Frame) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var displaced *Session
	if old, ok := r.byUserID[sess.UserID]; ok {
		old.Queue.Push(logoutFrame)
		r.removeLocked(old)
		displaced = old
	}

	r.bySessionID[sess.SessionID] = sess
	r.byUserID[sess.UserID] = sess
	r.byUsername[SafeUsername(sess.Username())] = sess
	if uni := sess.UsernameUnicode(); uni != "" {
		r.byUsernameUni[uni] = sess
	}
	return displaced
}

// Get resolves a query against the appropriate index under a shared lease.
func (r *Registry) Get(q UserQuery) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(q)
}

func (r *Registry) getLocked(q UserQuery) (*Session, bool) {
	switch q.Kind {
	case querySessionID:
		s, ok := r.bySessionID[q.SessionID]
		return s, ok
	case queryUserID:
		s, ok := r.byUserID[q.UserID]
		return s, ok
	case queryUsername:
		s, ok := r.byUsername[q.Username]
		return s, ok
	case queryUsernameUnicode:
		s, ok := r.byUsernameUni[q.UsernameUnicode]
		return s, ok
	default:
		return nil, false
	}
}

// Delete removes a session from all indexes; reports whether anything was
// removed.
func (r *Registry) Delete(q UserQuery) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.getLocked(q)
	if !ok {
		return false
	}
	r.removeLocked(sess)
	return true
}

func (r *Registry) removeLocked(sess *Session) {
	delete(r.bySessionID, sess.SessionID)
	delete(r.byUserID, sess.UserID)
	delete(r.byUsername, SafeUsername(sess.Username()))
	if uni := sess.UsernameUnicode(); uni != "" {
		delete(r.byUsernameUni, uni)
	}
}

// ForEach iterates a snapshot of all sessions under a shared lease,
// stopping early if fn returns false. Used for broadcast traversal.
func (r *Registry) ForEach(fn func(*Session) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.bySessionID {
		if !fn(s) {
			return
		}
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySessionID)
}

// Snapshot returns a slice copy of every live session pointer, for use by
// the snapshot writer and admin dump; the caller must not mutate the
// slice's session contents outside the normal service API.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.bySessionID))
	for _, s := range r.bySessionID {
		out = append(out, s)
	}
	return out
}
