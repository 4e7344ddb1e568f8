package bancho

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// ChannelAppender is the minimal channel-log operation the session
// service needs to route a channel-addressed EnqueueBanchoPackets call.
// It is satisfied by internal/chat's registry wrapper; kept as a narrow
// interface here so this package never imports internal/chat (which
// itself imports this package for Session/Queue/Frame).
type ChannelAppender interface {
	AppendByID(channelID int64, payload []byte) (msgID int64, err error)
	AppendByName(name string, payload []byte) (msgID int64, err error)

	// RemoveUserFromChannel drops userID's membership (every platform) from
	// the channel addressed by id, reporting its post-removal info, or
	// ok=false if the id no longer resolves to a channel.
	RemoveUserFromChannel(channelID int64, userID int32) (info ChannelInfo, ok bool)
}

// CreateSessionDto carries the fields needed to mint a new Session.
type CreateSessionDto struct {
	UserID          int32
	Username        string
	UsernameUnicode string
	Privileges      int64
	ClientVersion   string
	UTCOffset       int8
	DisplayCity     bool
	ConnectionInfo  ConnectionInfo
}

// FieldMask selects which identity fields GetUserSessionWithFields returns.
type FieldMask uint8

const (
	FieldSessionID FieldMask = 1 << iota
	FieldUserID
	FieldUsername
	FieldUsernameUnicode
)

// SessionFields is the masked projection GetUserSessionWithFields returns.
type SessionFields struct {
	SessionID       string
	UserID          int32
	Username        string
	UsernameUnicode string
}

// StatusUpdate is the set of fields CHANGE_ACTION mutates in one call.
type StatusUpdate struct {
	OnlineStatus OnlineStatus
	Description  string
	BeatmapID    int32
	BeatmapMD5   string
	Mods         Mods
	Mode         GameMode
}

// ChannelInfo is the projection ChannelUpdateNotify encodes into a
// ChannelInfo wire frame; owned by this package (rather than chat) since
// the frame builder lives here.
type ChannelInfo struct {
	Name        string
	Description string
	MemberCount int16
}

// AllSessionsDump is the admin/debug snapshot, one JSON-encoded entry per
// secondary index, mirroring the source's four-arrays dump.
type AllSessionsDump struct {
	BySessionID     []string `json:"by_session_id"`
	ByUserID        []string `json:"by_user_id"`
	ByUsername      []string `json:"by_username"`
	ByUsernameUnicode []string `json:"by_username_unicode"`
	Len             int      `json:"len"`
}

// SessionService is the public operation surface over the session
// registry; every method has a Local implementation (this file) and a
// Remote adapter (service_remote.go) sharing this exact signature.
type SessionService interface {
	BroadcastBanchoPackets(payload []byte)
	EnqueueBanchoPackets(to Target, payload []byte) error
	BatchEnqueueBanchoPackets(targets []Target, payload []byte)
	DequeueBanchoPackets(to Target) ([]byte, error)
	CreateUserSession(dto CreateSessionDto) (*Session, error)
	DeleteUserSession(q UserQuery) error
	CheckUserSessionExists(q UserQuery) (int32, error)
	GetUserSession(q UserQuery) (*Session, error)
	GetUserSessionWithFields(q UserQuery, mask FieldMask) (SessionFields, error)
	GetAllSessions() AllSessionsDump
	SendUserStatsPacket(q UserQuery, to Target) error
	BatchSendUserStatsPacket(queries []UserQuery, to Target) error
	SendAllPresences(to Target) error
	BatchSendPresences(queries []UserQuery, to Target) error
	UpdatePresenceFilter(q UserQuery, filter PresenceFilter) error
	UpdateUserBanchoStatus(q UserQuery, update StatusUpdate) error
	ChannelUpdateNotify(info ChannelInfo, targets []Target) (fails []Target, err error)
}

// SessionServiceLocal executes every operation directly against an
// in-process Registry, the Local arm of the transport shell.
type SessionServiceLocal struct {
	Registry *Registry
	Channels ChannelAppender // nil disables channel-addressed enqueue
	IDGen    func() string

	notifyRound atomic.Int64 // source of ChannelUpdateNotify's per-round dedup token
}

// NewSessionServiceLocal builds a local session service over registry.
// channels may be nil if this process has no chat module wired.
func NewSessionServiceLocal(registry *Registry, channels ChannelAppender) *SessionServiceLocal {
	return &SessionServiceLocal{
		Registry: registry,
		Channels: channels,
		IDGen:    NewSessionID,
	}
}

func (s *SessionServiceLocal) resolveSession(q UserQuery) (*Session, error) {
	sess, ok := s.Registry.Get(q)
	if !ok {
		return nil, ErrSessionNotExists
	}
	return sess, nil
}

// BroadcastBanchoPackets wraps payload in one shared frame and pushes it
// onto every live session's queue under the registry's read lease.
func (s *SessionServiceLocal) BroadcastBanchoPackets(payload []byte) {
	frame := NewSharedFrame(payload)
	s.Registry.ForEach(func(sess *Session) bool {
		sess.Queue.Push(frame)
		return true
	})
}

func (s *SessionServiceLocal) enqueueTarget(to Target, frame Frame) error {
	if to.IsChannel() {
		if s.Channels == nil {
			return NewInvalidArgument("channel-addressed enqueue: no channel service wired")
		}
		var err error
		if to.Kind == TargetKindChannelID {
			_, err = s.Channels.AppendByID(to.ChannelID, frame.Bytes())
		} else {
			_, err = s.Channels.AppendByName(to.ChannelName, frame.Bytes())
		}
		return err
	}
	q, _ := to.AsUserQuery()
	sess, err := s.resolveSession(q)
	if err != nil {
		return err
	}
	sess.Queue.Push(frame)
	return nil
}

// EnqueueBanchoPackets routes payload to a single session's queue or a
// channel's message log depending on the target kind.
func (s *SessionServiceLocal) EnqueueBanchoPackets(to Target, payload []byte) error {
	return s.enqueueTarget(to, NewFrame(payload))
}

// BatchEnqueueBanchoPackets shares one frame across many targets,
// silently skipping any that don't resolve (broadcast semantics).
func (s *SessionServiceLocal) BatchEnqueueBanchoPackets(targets []Target, payload []byte) {
	frame := NewSharedFrame(payload)
	for _, t := range targets {
		_ = s.enqueueTarget(t, frame)
	}
}

// DequeueBanchoPackets drains the addressed session's outbound queue. A
// channel-addressed target is InvalidArgument — channels have no single
// draining reader, only per-user cursors (see DESIGN.md Open Question 2).
func (s *SessionServiceLocal) DequeueBanchoPackets(to Target) ([]byte, error) {
	if to.IsChannel() {
		return nil, NewInvalidArgument(fmt.Sprintf("cannot dequeue a channel target: %+v", to))
	}
	q, _ := to.AsUserQuery()
	sess, err := s.resolveSession(q)
	if err != nil {
		return nil, err
	}
	return sess.Queue.DrainAll(), nil
}

// CreateUserSession mints a new session id and inserts it into the
// registry, displacing any existing session for the same user id (I3).
func (s *SessionServiceLocal) CreateUserSession(dto CreateSessionDto) (*Session, error) {
	if dto.Username == "" {
		return nil, NewInvalidArgument("username required")
	}
	sess := NewSession(s.IDGen(), dto.UserID, dto.Username, dto.UsernameUnicode)
	sess.SetPrivileges(dto.Privileges)
	sess.SetIdentity(dto.ClientVersion, dto.UTCOffset, dto.DisplayCity)
	sess.SetConnectionInfo(dto.ConnectionInfo)
	if displaced := s.Registry.Create(sess, NewFrame(BuildLogoutFrame(dto.UserID))); displaced != nil {
		s.leaveAllChannels(displaced)
	}
	return sess, nil
}

// DeleteUserSession removes the addressed session from every index and
// every channel it had joined, the same cleanup a second-login
// displacement or an inactivity eviction performs.
func (s *SessionServiceLocal) DeleteUserSession(q UserQuery) error {
	sess, err := s.resolveSession(q)
	if err != nil {
		return ErrSessionNotExists
	}
	s.leaveAllChannels(sess)
	s.Registry.Delete(ByID(sess.SessionID))
	return nil
}

// leaveAllChannels removes sess from every channel it joined on the
// Bancho platform and broadcasts each affected channel's updated member
// count. Called by every path that destroys a session — logout,
// inactivity eviction, and second-login displacement — not just an
// explicit CHANNEL_PART.
func (s *SessionServiceLocal) leaveAllChannels(sess *Session) {
	if s.Channels == nil {
		return
	}
	for _, chID := range sess.JoinedChannelIDs() {
		sess.ForgetCursor(chID)
		info, ok := s.Channels.RemoveUserFromChannel(chID, sess.UserID)
		if !ok {
			continue
		}
		_, _ = s.ChannelUpdateNotify(info, nil)
	}
}

// CheckUserSessionExists touches last_active and returns the user id if
// the session resolves.
func (s *SessionServiceLocal) CheckUserSessionExists(q UserQuery) (int32, error) {
	sess, err := s.resolveSession(q)
	if err != nil {
		return 0, err
	}
	sess.Touch()
	return sess.UserID, nil
}

// GetUserSession resolves a query to a session handle.
func (s *SessionServiceLocal) GetUserSession(q UserQuery) (*Session, error) {
	return s.resolveSession(q)
}

// GetUserSessionWithFields resolves a query and projects only the
// requested identity fields.
func (s *SessionServiceLocal) GetUserSessionWithFields(q UserQuery, mask FieldMask) (SessionFields, error) {
	sess, err := s.resolveSession(q)
	if err != nil {
		return SessionFields{}, err
	}
	var out SessionFields
	if mask&FieldSessionID != 0 {
		out.SessionID = sess.SessionID
	}
	if mask&FieldUserID != 0 {
		out.UserID = sess.UserID
	}
	if mask&FieldUsername != 0 {
		out.Username = sess.Username()
	}
	if mask&FieldUsernameUnicode != 0 {
		out.UsernameUnicode = sess.UsernameUnicode()
	}
	return out, nil
}

// GetAllSessions dumps a JSON-per-entry projection of each index.
func (s *SessionServiceLocal) GetAllSessions() AllSessionsDump {
	sessions := s.Registry.Snapshot()
	dump := AllSessionsDump{
		BySessionID:       make([]string, 0, len(sessions)),
		ByUserID:          make([]string, 0, len(sessions)),
		ByUsername:        make([]string, 0, len(sessions)),
		ByUsernameUnicode: make([]string, 0, len(sessions)),
		Len:               len(sessions),
	}
	for _, sess := range sessions {
		entry := struct {
			SessionID string `json:"session_id"`
			UserID    int32  `json:"user_id"`
			Username  string `json:"username"`
		}{sess.SessionID, sess.UserID, sess.Username()}
		b, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		dump.BySessionID = append(dump.BySessionID, string(b))
		dump.ByUserID = append(dump.ByUserID, string(b))
		dump.ByUsername = append(dump.ByUsername, string(b))
		if sess.UsernameUnicode() != "" {
			dump.ByUsernameUnicode = append(dump.ByUsernameUnicode, string(b))
		}
	}
	return dump
}

// SendUserStatsPacket builds the stats frame for q and enqueues it to to.
func (s *SessionServiceLocal) SendUserStatsPacket(q UserQuery, to Target) error {
	sess, err := s.resolveSession(q)
	if err != nil {
		return err
	}
	return s.EnqueueBanchoPackets(to, BuildUserStatsFrame(sess))
}

// sessionIsTarget reports whether sess is the session `to` addresses —
// used to silently drop self-notifications in the batch send paths (see
// DESIGN.md Open Question 1).
func (s *SessionServiceLocal) sessionIsTarget(sess *Session, to Target) bool {
	switch to.Kind {
	case TargetKindSessionID:
		return sess.SessionID == to.SessionID
	case TargetKindUserID:
		return sess.UserID == to.UserID
	case TargetKindUsername:
		return SafeUsername(sess.Username()) == to.Username
	case TargetKindUsernameUnicode:
		return sess.UsernameUnicode() == to.UsernameUnicode
	default:
		return false
	}
}

// BatchSendUserStatsPacket aggregates stats frames for every query,
// skipping any session that equals `to`, then enqueues the combined blob
// in a single push.
func (s *SessionServiceLocal) BatchSendUserStatsPacket(queries []UserQuery, to Target) error {
	if len(queries) == 0 {
		return nil
	}
	var combined []byte
	for _, q := range queries {
		sess, err := s.resolveSession(q)
		if err != nil {
			continue
		}
		if s.sessionIsTarget(sess, to) {
			continue
		}
		combined = append(combined, BuildUserStatsFrame(sess)...)
	}
	if combined == nil {
		return nil
	}
	return s.EnqueueBanchoPackets(to, combined)
}

// presenceSuppressed reports whether to's own PresenceFilter is None,
// meaning the recipient has opted out of every incoming presence frame.
// A channel-addressed or otherwise unresolvable target is never suppressed.
func (s *SessionServiceLocal) presenceSuppressed(to Target) bool {
	q, ok := to.AsUserQuery()
	if !ok {
		return false
	}
	sess, err := s.resolveSession(q)
	if err != nil {
		return false
	}
	return PresenceFilter(sess.PresenceFilter.Load()) == PresenceNone
}

// SendAllPresences builds a presence frame for every session except the
// recipient and enqueues the combined blob to to, unless to's own filter
// is PresenceNone.
func (s *SessionServiceLocal) SendAllPresences(to Target) error {
	if s.presenceSuppressed(to) {
		return nil
	}
	var combined []byte
	s.Registry.ForEach(func(sess *Session) bool {
		if s.sessionIsTarget(sess, to) {
			return true
		}
		combined = append(combined, BuildUserPresenceFrame(sess)...)
		return true
	})
	if combined == nil {
		return nil
	}
	return s.EnqueueBanchoPackets(to, combined)
}

// BatchSendPresences is SendAllPresences restricted to an explicit query
// list, same self-filter and same PresenceNone suppression.
func (s *SessionServiceLocal) BatchSendPresences(queries []UserQuery, to Target) error {
	if len(queries) == 0 || s.presenceSuppressed(to) {
		return nil
	}
	var combined []byte
	for _, q := range queries {
		sess, err := s.resolveSession(q)
		if err != nil {
			continue
		}
		if s.sessionIsTarget(sess, to) {
			continue
		}
		combined = append(combined, BuildUserPresenceFrame(sess)...)
	}
	if combined == nil {
		return nil
	}
	return s.EnqueueBanchoPackets(to, combined)
}

// UpdatePresenceFilter sets which presence updates the session receives.
func (s *SessionServiceLocal) UpdatePresenceFilter(q UserQuery, filter PresenceFilter) error {
	sess, err := s.resolveSession(q)
	if err != nil {
		return err
	}
	sess.PresenceFilter.Store(int32(filter))
	return nil
}

// UpdateUserBanchoStatus applies every status field under the session's
// local lock (BanchoStatus.UpdateAll is itself a sequence of independent
// atomic stores, so the lock keeps concurrent callers of this method from
// interleaving their field writes) and broadcasts the fresh stats frame
// to everyone.
func (s *SessionServiceLocal) UpdateUserBanchoStatus(q UserQuery, update StatusUpdate) error {
	sess, err := s.resolveSession(q)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.BanchoStatus.UpdateAll(update.OnlineStatus, update.Description, update.BeatmapID, update.BeatmapMD5, update.Mods, update.Mode)
	sess.mu.Unlock()
	s.BroadcastBanchoPackets(BuildUserStatsFrame(sess))
	return nil
}

// ChannelUpdateNotify builds a ChannelInfo frame and pushes it to every
// listed target, or to every live session if targets is empty; unresolved
// targets are reported back rather than silently dropped. Every call
// draws a fresh round from notifyRound, and a broadcast skips a session
// that has already recorded an equal or later round for this channel (see
// Session.ObserveNotifyRound). Because each call draws a new round, a
// repeated notify for the same channel is delivered again.
func (s *SessionServiceLocal) ChannelUpdateNotify(info ChannelInfo, targets []Target) ([]Target, error) {
	frame := NewSharedFrame(BuildChannelInfoFrame(info.Name, info.Description, info.MemberCount))
	round := s.notifyRound.Add(1)

	if len(targets) == 0 {
		s.Registry.ForEach(func(sess *Session) bool {
			if sess.ObserveNotifyRound(info.Name, round) {
				sess.Queue.Push(frame)
			}
			return true
		})
		return nil, nil
	}

	var fails []Target
	for _, t := range targets {
		if err := s.enqueueTarget(t, frame); err != nil {
			fails = append(fails, t)
		}
	}
	return fails, nil
}

// NewSessionID mints a lexicographically-sortable session token: a
// millisecond timestamp prefix followed by random tail bits, so a sort
// over ids recovers creation order (used by notify_index-style
// idempotency checks elsewhere).
func NewSessionID() string {
	now := time.Now().UnixMilli()
	tail := randomUint64()
	return fmt.Sprintf("%016x%016x", uint64(now), tail)
}
