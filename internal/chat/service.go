package chat

import (
	"sync"

	"github.com/bnchfan/bancho-core/internal/bancho"
)

// MessageTargetKind discriminates a chat send's destination.
type MessageTargetKind int

const (
	MessageTargetChannel MessageTargetKind = iota
	MessageTargetUser
)

// MessageTarget is either a channel or a single user.
type MessageTarget struct {
	Kind    MessageTargetKind
	Channel ChannelQuery
	User    bancho.UserQuery
}

// ToChannel builds a channel-addressed message target.
func ToChannel(q ChannelQuery) MessageTarget { return MessageTarget{Kind: MessageTargetChannel, Channel: q} }

// ToUser builds a user-addressed message target.
func ToUser(q bancho.UserQuery) MessageTarget { return MessageTarget{Kind: MessageTargetUser, User: q} }

// allPlatforms is the default fan-out set when a caller doesn't name one.
var allPlatforms = []Platform{PlatformBancho, PlatformLazer, PlatformWeb}

func hasPlatform(platforms []Platform, want Platform) bool {
	for _, p := range platforms {
		if p == want {
			return true
		}
	}
	return false
}

// Service is the public chat operation surface; Local and Remote share
// this signature, mirroring SessionService's transport-shell split.
type Service interface {
	CreateQueue(userID int32) error
	RemoveQueue(userID int32) error
	GetPublicChannels() ([]bancho.ChannelInfo, error)
	AddUserIntoChannel(query ChannelQuery, userID int32, platforms []Platform) error
	RemoveUserFromChannel(query ChannelQuery, userID int32) error
	RemoveUserPlatformsFromChannel(query ChannelQuery, userID int32, platforms []Platform) error
	SendMessage(senderID int32, content string, target MessageTarget, platforms []Platform) error
	PullChatPackets(query bancho.UserQuery) ([]byte, error)
}

// ServiceLocal executes every chat operation directly against a channel
// Registry and the session service needed to reach individual queues.
type ServiceLocal struct {
	Channels *Registry
	Sessions bancho.SessionService

	offlineMu     sync.Mutex
	offlineQueues map[int32]*bancho.Queue // buffers for users without a live bancho session
}

// NewServiceLocal builds a local chat service over channels and sessions.
func NewServiceLocal(channels *Registry, sessions bancho.SessionService) *ServiceLocal {
	return &ServiceLocal{
		Channels:      channels,
		Sessions:      sessions,
		offlineQueues: make(map[int32]*bancho.Queue),
	}
}

// CreateQueue opens a buffering queue for a user who hasn't (yet) got a
// bancho session, so chat already addressed to them isn't dropped.
func (s *ServiceLocal) CreateQueue(userID int32) error {
	s.offlineMu.Lock()
	defer s.offlineMu.Unlock()
	if _, ok := s.offlineQueues[userID]; !ok {
		s.offlineQueues[userID] = bancho.NewQueue()
	}
	return nil
}

// RemoveQueue closes and discards a user's buffering queue.
func (s *ServiceLocal) RemoveQueue(userID int32) error {
	s.offlineMu.Lock()
	defer s.offlineMu.Unlock()
	delete(s.offlineQueues, userID)
	return nil
}

// GetPublicChannels lists the currently known public rooms.
func (s *ServiceLocal) GetPublicChannels() ([]bancho.ChannelInfo, error) {
	chans := s.Channels.PublicChannels()
	out := make([]bancho.ChannelInfo, 0, len(chans))
	for _, ch := range chans {
		out = append(out, bancho.ChannelInfo{
			Name:        ch.Name,
			Description: ch.Description,
			MemberCount: int16(ch.MemberCount(PlatformBancho)),
		})
	}
	return out, nil
}

func (s *ServiceLocal) channelInfoNotify(info bancho.ChannelInfo) {
	_, _ = s.Sessions.ChannelUpdateNotify(info, nil)
}

// AddUserIntoChannel joins userID into query's channel on every listed
// platform; a Bancho join also pushes ChannelJoin to the user's own queue
// and broadcasts a ChannelInfo update to the whole registry.
func (s *ServiceLocal) AddUserIntoChannel(query ChannelQuery, userID int32, platforms []Platform) error {
	ch, ok := s.Channels.Get(query)
	if !ok {
		return ErrChannelNotExists
	}
	ch.AddUser(userID, platforms)
	for _, p := range platforms {
		s.Channels.recordJoin(userID, p, ch.ID)
	}

	if hasPlatform(platforms, PlatformBancho) {
		if sess, err := s.Sessions.GetUserSession(bancho.ByUserID(userID)); err == nil {
			sess.Queue.Push(bancho.NewFrame(bancho.BuildChannelJoinFrame(ch.Name)))
			sess.SetCursor(ch.ID, 0)
		}
		s.channelInfoNotify(bancho.ChannelInfo{
			Name:        ch.Name,
			Description: ch.Description,
			MemberCount: int16(ch.MemberCount(PlatformBancho)),
		})
	}
	return nil
}

func (s *ServiceLocal) removeFromChannel(query ChannelQuery, userID int32, platforms []Platform, all bool) error {
	ch, ok := s.Channels.Get(query)
	if !ok {
		return ErrChannelNotExists
	}
	var info bancho.ChannelInfo
	if all {
		info = s.Channels.leaveChannel(ch, userID, nil)
	} else {
		info = s.Channels.leaveChannel(ch, userID, platforms)
	}

	removedBancho := all || hasPlatform(platforms, PlatformBancho)
	if removedBancho {
		if sess, err := s.Sessions.GetUserSession(bancho.ByUserID(userID)); err == nil {
			sess.Queue.Push(bancho.NewFrame(bancho.BuildChannelKickFrame(ch.Name)))
			sess.ForgetCursor(ch.ID)
		}
		s.channelInfoNotify(info)
	}
	return nil
}

// RemoveUserFromChannel removes userID from every platform of query's channel.
func (s *ServiceLocal) RemoveUserFromChannel(query ChannelQuery, userID int32) error {
	return s.removeFromChannel(query, userID, nil, true)
}

// RemoveUserPlatformsFromChannel removes userID from only the listed platforms.
func (s *ServiceLocal) RemoveUserPlatformsFromChannel(query ChannelQuery, userID int32, platforms []Platform) error {
	return s.removeFromChannel(query, userID, platforms, false)
}

// senderDisplayName resolves a user id's username for SendMessage frames.
func (s *ServiceLocal) senderDisplayName(senderID int32) string {
	if sess, err := s.Sessions.GetUserSession(bancho.ByUserID(senderID)); err == nil {
		return sess.Username()
	}
	return ""
}

// SendMessage appends to a channel's log or pushes directly onto a user's
// queue depending on target, restricted to the Bancho platform fan-out —
// Lazer/Web are accepted as destinations but nothing is delivered to them,
// and a platform list without Bancho sends nothing at all.
func (s *ServiceLocal) SendMessage(senderID int32, content string, target MessageTarget, platforms []Platform) error {
	if len(platforms) == 0 {
		platforms = allPlatforms
	}
	if !hasPlatform(platforms, PlatformBancho) {
		return nil
	}

	sender := s.senderDisplayName(senderID)

	switch target.Kind {
	case MessageTargetChannel:
		ch, ok := s.Channels.Get(target.Channel)
		if !ok {
			return ErrChannelNotExists
		}
		frame := bancho.BuildSendMessageFrame(sender, senderID, ch.Name, content)
		ch.PushMessage(senderID, frame, nowNanos())
		return nil
	case MessageTargetUser:
		sess, err := s.Sessions.GetUserSession(target.User)
		if err != nil {
			return err
		}
		targetName := sess.Username()
		frame := bancho.BuildSendMessageFrame(sender, senderID, targetName, content)
		sess.Queue.Push(bancho.NewFrame(frame))
		return nil
	default:
		return bancho.NewInvalidArgument("unknown message target kind")
	}
}

// PullChatPackets drains the user's own outbound queue, then walks every
// Bancho-joined channel's log from the user's cursor and appends new
// messages, advancing each cursor to the last message returned.
func (s *ServiceLocal) PullChatPackets(query bancho.UserQuery) ([]byte, error) {
	sess, err := s.Sessions.GetUserSession(query)
	if err != nil {
		return nil, err
	}

	data := sess.Queue.DrainAll()

	for _, chID := range sess.JoinedChannelIDs() {
		ch, ok := s.Channels.Get(ByChannelID(chID))
		if !ok {
			continue
		}
		cursor, _ := sess.Cursor(chID)
		messages, newCursor := ch.ReceiveSince(cursor)
		for _, m := range messages {
			data = append(data, m.Payload...)
		}
		if newCursor != cursor {
			sess.SetCursor(chID, newCursor)
		}
	}

	return data, nil
}
