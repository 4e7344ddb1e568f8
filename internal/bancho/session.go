package bancho

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// GameMode enumerates the competitive modes a Session can carry stats for.
// Wire values match the client protocol; note the deliberate gap at 7 —
// StandardAutopilot is 8, not 7.
type GameMode uint8

const (
	ModeStandard GameMode = iota
	ModeTaiko
	ModeFruits
	ModeMania
	ModeStandardRelax
	ModeTaikoRelax
	ModeFruitsRelax
	_ // gap: no mode 7 in the client protocol
	ModeStandardAutopilot
	_
	_
	_
	ModeStandardScoreV2
)

// modeCount is the number of addressable mode-stat slots (index by GameMode).
const modeCount = ModeStandardScoreV2 + 1

// OnlineStatus is the client-visible activity state.
type OnlineStatus int32

const (
	StatusIdle OnlineStatus = iota
	StatusAfk
	StatusPlaying
	StatusEditing
	StatusModding
	StatusMultiplayer
	StatusWatching
	StatusUnknown
	StatusTesting
	StatusSubmitting
	StatusPaused
	StatusLobby
	StatusMultiplaying
	StatusDirect
)

// Mods is the active-mods bitmask.
type Mods uint32

const (
	ModNoFail    Mods = 1 << 0
	ModEasy      Mods = 1 << 1
	ModHidden    Mods = 1 << 3
	ModHardRock  Mods = 1 << 4
	ModSuddenDth Mods = 1 << 5
	ModRelax     Mods = 1 << 7
	ModHalfTime  Mods = 1 << 8
	ModNightcore Mods = 1 << 9
	ModFlashLt   Mods = 1 << 10
	ModAuto      Mods = 1 << 11
	ModSpunOut   Mods = 1 << 12
	ModAutopilot Mods = 1 << 13
	ModPerfect   Mods = 1 << 14
	ModScoreV2   Mods = 1 << 29
)

// PresenceFilter controls which presence updates a session receives.
type PresenceFilter int32

const (
	PresenceNone PresenceFilter = iota
	PresenceAll
	PresenceFriends
)

// ModeStats is one mode's competitive snapshot.
type ModeStats struct {
	Rank        uint32
	PP          float32
	Accuracy    float32
	TotalScore  uint64
	RankedScore uint64
	Playcount   uint32
	Playtime    uint64
	MaxCombo    uint32
	TotalHits   uint32
}

// BanchoStatus is the independently-atomic set of "what is this user
// doing right now" fields, each its own cell so the broadcast path can
// read one field from many sessions without contending on a shared lock.
type BanchoStatus struct {
	OnlineStatus atomic.Int32
	Description  *AtomicValue[string]
	BeatmapID    atomic.Int32
	BeatmapMD5   *AtomicValue[string]
	Mods         atomic.Uint32
	Mode         atomic.Uint32
}

func newBanchoStatus() *BanchoStatus {
	return &BanchoStatus{
		Description: NewAtomicValue(""),
		BeatmapMD5:  NewAtomicValue(""),
	}
}

// UpdateAll sets every status field; callers needing a consistent
// multi-field update must serialize through
// SessionServiceLocal.UpdateUserBanchoStatus, which holds the
// session-local lock, rather than calling this directly from concurrent
// producers.
func (s *BanchoStatus) UpdateAll(online OnlineStatus, description string, beatmapID int32, beatmapMD5 string, mods Mods, mode GameMode) {
	s.OnlineStatus.Store(int32(online))
	s.Description.Store(description)
	s.BeatmapID.Store(beatmapID)
	s.BeatmapMD5.Store(beatmapMD5)
	s.Mods.Store(uint32(mods))
	s.Mode.Store(uint32(mode))
}

// ConnectionInfo carries the source address and resolved geolocation used
// for the presence packet; resolved by an out-of-core collaborator (§6).
type ConnectionInfo struct {
	IP        string
	Country   string
	Longitude float32
	Latitude  float32
}

// Session is one live logged-in client's state and outbound queue. The
// registry is the sole owner of every Session; callers only ever hold a
// pointer obtained from a registry lookup.
type Session struct {
	SessionID string // time-prefixed 128-bit token, lexicographically sortable
	UserID    int32

	mu              sync.Mutex // guards the fields below this line
	username        string
	usernameUnicode string
	privileges      int64
	clientVersion   string
	utcOffset       int8
	displayCity     bool
	blockNonFriend  bool
	connectionInfo  ConnectionInfo

	BanchoStatus    *BanchoStatus
	PresenceFilter  atomic.Int32
	modeStats       [modeCount]*ModeStats
	modeStatsMu     sync.RWMutex
	Queue           *Queue
	lastActive      atomic.Int64 // unix nanos
	notifyMu        sync.Mutex
	channelNotify   map[string]int64 // channel name -> last-observed notify round
	cursorMu        sync.Mutex
	channelCursors  map[int64]int64 // channel id -> last-read msg id
}

// NewSession constructs a session record with its queue and status cells
// initialized; the caller supplies the already-generated session id.
func NewSession(sessionID string, userID int32, username, usernameUnicode string) *Session {
	s := &Session{
		SessionID:       sessionID,
		UserID:          userID,
		username:        username,
		usernameUnicode: usernameUnicode,
		BanchoStatus:    newBanchoStatus(),
		Queue:           NewQueue(),
		channelNotify:   make(map[string]int64),
		channelCursors:  make(map[int64]int64),
	}
	s.PresenceFilter.Store(int32(PresenceAll))
	s.Touch()
	return s
}

// Username returns the display name as given at login.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// UsernameUnicode returns the optional unicode display name.
func (s *Session) UsernameUnicode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usernameUnicode
}

// SafeUsername derives the ASCII-folded, lowercased, underscore-joined
// form used as the registry's secondary index key.
func SafeUsername(username string) string {
	return strings.ReplaceAll(strings.ToLower(username), " ", "_")
}

// SetIdentity updates the mutable client-declared identity fields under
// the session-local lock, giving callers multi-field atomicity the
// independent atomic cells can't.
func (s *Session) SetIdentity(clientVersion string, utcOffset int8, displayCity bool) {
	s.mu.Lock()
	s.clientVersion = clientVersion
	s.utcOffset = utcOffset
	s.displayCity = displayCity
	s.mu.Unlock()
}

// ConnectionInfo returns a copy of the resolved connection metadata.
func (s *Session) ConnectionInfo() ConnectionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionInfo
}

// SetConnectionInfo stores resolved connection metadata.
func (s *Session) SetConnectionInfo(info ConnectionInfo) {
	s.mu.Lock()
	s.connectionInfo = info
	s.mu.Unlock()
}

// Privileges returns the capability bitmask.
func (s *Session) Privileges() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.privileges
}

// SetPrivileges sets the capability bitmask (assigned once at creation).
func (s *Session) SetPrivileges(p int64) {
	s.mu.Lock()
	s.privileges = p
	s.mu.Unlock()
}

// SetBlockNonFriendDMs toggles the DM filter flag.
func (s *Session) SetBlockNonFriendDMs(v bool) {
	s.mu.Lock()
	s.blockNonFriend = v
	s.mu.Unlock()
}

// BlockNonFriendDMs reports the current DM filter flag.
func (s *Session) BlockNonFriendDMs() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockNonFriend
}

// Touch refreshes last-active to now; called on every dispatched frame and
// on explicit keep-alive checks.
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the last-touch timestamp.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// ObserveNotifyRound reports whether round is newer than the last notify
// round this session observed for channel, recording it as observed if so.
// ChannelUpdateNotify uses this to skip a target that already saw the
// current fan-out round for that channel.
func (s *Session) ObserveNotifyRound(channel string, round int64) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if last, ok := s.channelNotify[channel]; ok && last >= round {
		return false
	}
	s.channelNotify[channel] = round
	return true
}

// ModeStats returns the stored stats for a mode, or nil if never reported.
func (s *Session) ModeStats(mode GameMode) *ModeStats {
	if int(mode) >= len(s.modeStats) {
		return nil
	}
	s.modeStatsMu.RLock()
	defer s.modeStatsMu.RUnlock()
	return s.modeStats[mode]
}

// SetModeStats records a mode's stats snapshot.
func (s *Session) SetModeStats(mode GameMode, stats ModeStats) {
	if int(mode) >= len(s.modeStats) {
		return
	}
	s.modeStatsMu.Lock()
	s.modeStats[mode] = &stats
	s.modeStatsMu.Unlock()
}

// CurrentModeStats returns the stats for whatever mode BanchoStatus.Mode
// currently names, matching the "stats packet reads the active mode's
// slot" behavior.
func (s *Session) CurrentModeStats() *ModeStats {
	mode := GameMode(s.BanchoStatus.Mode.Load())
	return s.ModeStats(mode)
}

// Cursor returns the last-read message id for a channel, and whether one
// was ever recorded.
func (s *Session) Cursor(channelID int64) (int64, bool) {
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()
	id, ok := s.channelCursors[channelID]
	return id, ok
}

// SetCursor advances the read cursor for a channel.
func (s *Session) SetCursor(channelID, msgID int64) {
	s.cursorMu.Lock()
	s.channelCursors[channelID] = msgID
	s.cursorMu.Unlock()
}

// JoinedChannelIDs returns the channel ids this session has a cursor for
// (i.e. has joined at least once on the Bancho platform).
func (s *Session) JoinedChannelIDs() []int64 {
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()
	ids := make([]int64, 0, len(s.channelCursors))
	for id := range s.channelCursors {
		ids = append(ids, id)
	}
	return ids
}

// ForgetCursor drops a channel's read cursor, used on part/kick.
func (s *Session) ForgetCursor(channelID int64) {
	s.cursorMu.Lock()
	delete(s.channelCursors, channelID)
	s.cursorMu.Unlock()
}
