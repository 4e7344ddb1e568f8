package bancho

import (
	"encoding/gob"
	"fmt"
	"os"
)

// snapshotVersion is bumped whenever the on-disk shape changes; the format
// is treated as opaque with no cross-version compatibility guarantee.
const snapshotVersion = 1

// sessionSnapshot is the serializable projection of a Session. Only the
// fields needed to reconstruct public-query-visible state are kept; the
// outbound queue is NOT persisted (queued-but-undelivered frames are lost
// across a restart, consistent with the engine being in-memory
// authoritative).
type sessionSnapshot struct {
	SessionID       string
	UserID          int32
	Username        string
	UsernameUnicode string
	Privileges      int64
	ClientVersion   string
	UTCOffset       int8
	DisplayCity     bool
	ConnectionInfo  ConnectionInfo
	OnlineStatus    int32
	Description     string
	BeatmapID       int32
	BeatmapMD5      string
	Mods            uint32
	Mode            uint32
	PresenceFilter  int32
	ChannelCursors  map[int64]int64
}

// registrySnapshot is the whole-state blob written at shutdown.
type registrySnapshot struct {
	Version  int
	Sessions []sessionSnapshot
}

func toSnapshot(s *Session) sessionSnapshot {
	s.cursorMu.Lock()
	cursors := make(map[int64]int64, len(s.channelCursors))
	for k, v := range s.channelCursors {
		cursors[k] = v
	}
	s.cursorMu.Unlock()

	return sessionSnapshot{
		SessionID:       s.SessionID,
		UserID:          s.UserID,
		Username:        s.Username(),
		UsernameUnicode: s.UsernameUnicode(),
		Privileges:      s.Privileges(),
		ConnectionInfo:  s.ConnectionInfo(),
		OnlineStatus:    s.BanchoStatus.OnlineStatus.Load(),
		Description:     s.BanchoStatus.Description.Load(),
		BeatmapID:       s.BanchoStatus.BeatmapID.Load(),
		BeatmapMD5:      s.BanchoStatus.BeatmapMD5.Load(),
		Mods:            s.BanchoStatus.Mods.Load(),
		Mode:            s.BanchoStatus.Mode.Load(),
		PresenceFilter:  s.PresenceFilter.Load(),
		ChannelCursors:  cursors,
	}
}

func fromSnapshot(ss sessionSnapshot) *Session {
	s := NewSession(ss.SessionID, ss.UserID, ss.Username, ss.UsernameUnicode)
	s.SetPrivileges(ss.Privileges)
	s.SetConnectionInfo(ss.ConnectionInfo)
	s.BanchoStatus.UpdateAll(
		OnlineStatus(ss.OnlineStatus),
		ss.Description,
		ss.BeatmapID,
		ss.BeatmapMD5,
		Mods(ss.Mods),
		GameMode(ss.Mode),
	)
	s.PresenceFilter.Store(ss.PresenceFilter)
	for chID, msgID := range ss.ChannelCursors {
		s.SetCursor(chID, msgID)
	}
	return s
}

// SaveSnapshot serializes every live session to path as one opaque,
// version-tagged gob blob. No pack library offers a whole-state binary
// dump format for an arbitrary struct graph; gob is the stdlib answer to
// exactly this and is what Go programs reach for absent a pack example.
func SaveSnapshot(r *Registry, path string) error {
	sessions := r.Snapshot()
	snap := registrySnapshot{
		Version:  snapshotVersion,
		Sessions: make([]sessionSnapshot, 0, len(sessions)),
	}
	for _, s := range sessions {
		snap.Sessions = append(snap.Sessions, toSnapshot(s))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot rehydrates a registry from a previously written snapshot
// file. A version mismatch is reported as an error rather than silently
// ignored or partially applied.
func LoadSnapshot(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	var snap registrySnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d unsupported (want %d)", snap.Version, snapshotVersion)
	}

	r := NewRegistry()
	for _, ss := range snap.Sessions {
		sess := fromSnapshot(ss)
		r.Create(sess, Frame{})
	}
	return r, nil
}
