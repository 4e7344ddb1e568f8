package chat

import (
	"sync"

	"github.com/bnchfan/bancho-core/internal/bancho"
)

// ChannelQuery names one of the two ways a caller may address a channel.
type ChannelQuery struct {
	ID   int64
	Name string
	byID bool
}

// ByChannelID builds a query addressed by numeric channel id.
func ByChannelID(id int64) ChannelQuery { return ChannelQuery{ID: id, byID: true} }

// ByChannelName builds a query addressed by the external channel name.
func ByChannelName(name string) ChannelQuery { return ChannelQuery{Name: name} }

// Registry is the id/name-indexed room store plus the user->channels
// reverse map, mirroring the session registry's single-writer-lock-over-
// multiple-indexes shape (itself grounded on the teacher's ClientManager).
type Registry struct {
	mu       sync.RWMutex
	byID     map[int64]*Channel
	byName   map[string]*Channel
	nextID   int64
	userJoin map[int32]map[Platform]map[int64]struct{} // user -> platform -> joined channel ids
}

// NewRegistry returns an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[int64]*Channel, 32),
		byName:   make(map[string]*Channel, 32),
		nextID:   1,
		userJoin: make(map[int32]map[Platform]map[int64]struct{}, 256),
	}
}

// CreateChannel inserts a new channel with a freshly assigned id, used at
// service start for configured public rooms and dynamically for
// multiplayer/spectator rooms.
func (r *Registry) CreateChannel(name, description string, typ ChannelType, logCapacity int) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	ch := NewChannel(id, name, description, typ, logCapacity)
	r.byID[id] = ch
	r.byName[name] = ch
	return ch
}

// Get resolves a query under a shared lease.
func (r *Registry) Get(q ChannelQuery) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if q.byID {
		ch, ok := r.byID[q.ID]
		return ch, ok
	}
	ch, ok := r.byName[q.Name]
	return ch, ok
}

// DeleteChannel removes a dynamic channel from both indexes; callers must
// only do this once Channel.IsEmpty() is true.
func (r *Registry) DeleteChannel(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, ch.ID)
	delete(r.byName, ch.Name)
}

// PublicChannels returns every Public-typed room currently registered.
func (r *Registry) PublicChannels() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Channel, 0, len(r.byID))
	for _, ch := range r.byID {
		if ch.Type == ChannelPublic {
			out = append(out, ch)
		}
	}
	return out
}

// recordJoin updates the user->channels reverse map in lockstep with a
// channel's membership change.
func (r *Registry) recordJoin(userID int32, platform Platform, channelID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byPlatform, ok := r.userJoin[userID]
	if !ok {
		byPlatform = make(map[Platform]map[int64]struct{})
		r.userJoin[userID] = byPlatform
	}
	set, ok := byPlatform[platform]
	if !ok {
		set = make(map[int64]struct{})
		byPlatform[platform] = set
	}
	set[channelID] = struct{}{}
}

func (r *Registry) recordLeave(userID int32, platform Platform, channelID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if byPlatform, ok := r.userJoin[userID]; ok {
		if set, ok := byPlatform[platform]; ok {
			delete(set, channelID)
		}
	}
}

// UserChannels returns the channel ids a user has joined on platform.
func (r *Registry) UserChannels(userID int32, platform Platform) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byPlatform, ok := r.userJoin[userID]
	if !ok {
		return nil
	}
	set, ok := byPlatform[platform]
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// leaveChannel removes userID's membership from ch on the given platforms
// (every platform when platforms is nil), updates the reverse join index
// to match, tears ch down if it's now empty and non-public, and reports
// ch's post-removal info. Shared by ServiceLocal's explicit part/kick path
// and RemoveUserFromChannel's session-destruction path below.
func (r *Registry) leaveChannel(ch *Channel, userID int32, platforms []Platform) bancho.ChannelInfo {
	if platforms == nil {
		ch.RemoveUser(userID)
		platforms = allPlatforms
	} else {
		ch.RemoveUserPlatforms(userID, platforms)
	}
	for _, p := range platforms {
		r.recordLeave(userID, p, ch.ID)
	}
	info := bancho.ChannelInfo{
		Name:        ch.Name,
		Description: ch.Description,
		MemberCount: int16(ch.MemberCount(PlatformBancho)),
	}
	if ch.Type != ChannelPublic && ch.IsEmpty() {
		r.DeleteChannel(ch)
	}
	return info
}

// RemoveUserFromChannel implements bancho.ChannelAppender's destruction-path
// membership cleanup: removes userID from every platform of the channel
// addressed by id, reporting its updated info, or ok=false if the id no
// longer resolves to a channel.
func (r *Registry) RemoveUserFromChannel(channelID int64, userID int32) (bancho.ChannelInfo, bool) {
	ch, ok := r.Get(ByChannelID(channelID))
	if !ok {
		return bancho.ChannelInfo{}, false
	}
	return r.leaveChannel(ch, userID, nil), true
}

// AppendByID implements bancho.ChannelAppender for an id-addressed target.
func (r *Registry) AppendByID(channelID int64, payload []byte) (int64, error) {
	ch, ok := r.Get(ByChannelID(channelID))
	if !ok {
		return 0, ErrChannelNotExists
	}
	return ch.PushMessage(0, payload, nowNanos()), nil
}

// AppendByName implements bancho.ChannelAppender for a name-addressed target.
func (r *Registry) AppendByName(name string, payload []byte) (int64, error) {
	ch, ok := r.Get(ByChannelName(name))
	if !ok {
		return 0, ErrChannelNotExists
	}
	return ch.PushMessage(0, payload, nowNanos()), nil
}
