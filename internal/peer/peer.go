// Package peer selects between the Local and Remote arms of
// SessionService/ChatService, re-expressing the source's
// BanchoStateServiceImpl enum dispatch (Remote(..)|Local(..)) as two Go
// interface implementations chosen at construction time rather than a
// runtime match.
package peer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bnchfan/bancho-core/internal/bancho"
	"github.com/bnchfan/bancho-core/internal/chat"
	"github.com/bnchfan/bancho-core/internal/transport"
)

// Dial connects to every known peer RPC address, logging and skipping any
// that fail rather than aborting startup over one unreachable partition.
func Dial(addrs []string) []*transport.Client {
	clients := make([]*transport.Client, 0, len(addrs))
	for _, addr := range addrs {
		c, err := transport.Dial(addr)
		if err != nil {
			slog.Warn("peer dial failed, continuing without it", "addr", addr, "err", err)
			continue
		}
		clients = append(clients, c)
		slog.Info("connected to peer", "addr", addr)
	}
	return clients
}

// Sessions composes a local SessionService with a set of remote peers: a
// single-target lookup tries local first, falling through the peers in
// order on SessionNotExists, while broadcast/batch operations fan out to
// local and every reachable peer.
type Sessions struct {
	Local  bancho.SessionService
	Remote []bancho.SessionService
}

// NewSessions wires a local implementation against dialed peer clients.
func NewSessions(local bancho.SessionService, peers []*transport.Client) *Sessions {
	remotes := make([]bancho.SessionService, len(peers))
	for i, c := range peers {
		remotes[i] = bancho.NewSessionServiceRemote(c)
	}
	return &Sessions{Local: local, Remote: remotes}
}

func (s *Sessions) all() []bancho.SessionService {
	out := make([]bancho.SessionService, 0, len(s.Remote)+1)
	out = append(out, s.Local)
	out = append(out, s.Remote...)
	return out
}

func isNotExists(err error) bool {
	return errors.Is(err, bancho.ErrSessionNotExists)
}

func (s *Sessions) BroadcastBanchoPackets(payload []byte) {
	for _, svc := range s.all() {
		svc.BroadcastBanchoPackets(payload)
	}
}

func (s *Sessions) EnqueueBanchoPackets(to bancho.Target, payload []byte) error {
	var lastErr error = bancho.ErrSessionNotExists
	for _, svc := range s.all() {
		err := svc.EnqueueBanchoPackets(to, payload)
		if err == nil || !isNotExists(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Sessions) BatchEnqueueBanchoPackets(targets []bancho.Target, payload []byte) {
	for _, svc := range s.all() {
		svc.BatchEnqueueBanchoPackets(targets, payload)
	}
}

func (s *Sessions) DequeueBanchoPackets(to bancho.Target) ([]byte, error) {
	var lastErr error = bancho.ErrSessionNotExists
	for _, svc := range s.all() {
		data, err := svc.DequeueBanchoPackets(to)
		if err == nil || !isNotExists(err) {
			return data, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// CreateUserSession always mints locally: a freshly-authenticated client
// connects to the partition it dialed, never to a peer it can't reach.
func (s *Sessions) CreateUserSession(dto bancho.CreateSessionDto) (*bancho.Session, error) {
	return s.Local.CreateUserSession(dto)
}

func (s *Sessions) DeleteUserSession(q bancho.UserQuery) error {
	var lastErr error = bancho.ErrSessionNotExists
	for _, svc := range s.all() {
		err := svc.DeleteUserSession(q)
		if err == nil || !isNotExists(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Sessions) CheckUserSessionExists(q bancho.UserQuery) (int32, error) {
	var lastErr error = bancho.ErrSessionNotExists
	for _, svc := range s.all() {
		id, err := svc.CheckUserSessionExists(q)
		if err == nil || !isNotExists(err) {
			return id, err
		}
		lastErr = err
	}
	return 0, lastErr
}

func (s *Sessions) GetUserSession(q bancho.UserQuery) (*bancho.Session, error) {
	var lastErr error = bancho.ErrSessionNotExists
	for _, svc := range s.all() {
		sess, err := svc.GetUserSession(q)
		if err == nil || !isNotExists(err) {
			return sess, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Sessions) GetUserSessionWithFields(q bancho.UserQuery, mask bancho.FieldMask) (bancho.SessionFields, error) {
	var lastErr error = bancho.ErrSessionNotExists
	for _, svc := range s.all() {
		f, err := svc.GetUserSessionWithFields(q, mask)
		if err == nil || !isNotExists(err) {
			return f, err
		}
		lastErr = err
	}
	return bancho.SessionFields{}, lastErr
}

// GetAllSessions only ever reports the local partition's view: a cluster
// debug dump across every peer is an administrative aggregation left to
// the caller, not this composite.
func (s *Sessions) GetAllSessions() bancho.AllSessionsDump {
	return s.Local.GetAllSessions()
}

func (s *Sessions) SendUserStatsPacket(q bancho.UserQuery, to bancho.Target) error {
	var lastErr error = bancho.ErrSessionNotExists
	for _, svc := range s.all() {
		err := svc.SendUserStatsPacket(q, to)
		if err == nil || !isNotExists(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Sessions) BatchSendUserStatsPacket(queries []bancho.UserQuery, to bancho.Target) error {
	for _, svc := range s.all() {
		if err := svc.BatchSendUserStatsPacket(queries, to); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sessions) SendAllPresences(to bancho.Target) error {
	for _, svc := range s.all() {
		if err := svc.SendAllPresences(to); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sessions) BatchSendPresences(queries []bancho.UserQuery, to bancho.Target) error {
	for _, svc := range s.all() {
		if err := svc.BatchSendPresences(queries, to); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sessions) UpdatePresenceFilter(q bancho.UserQuery, filter bancho.PresenceFilter) error {
	var lastErr error = bancho.ErrSessionNotExists
	for _, svc := range s.all() {
		err := svc.UpdatePresenceFilter(q, filter)
		if err == nil || !isNotExists(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Sessions) UpdateUserBanchoStatus(q bancho.UserQuery, update bancho.StatusUpdate) error {
	var lastErr error = bancho.ErrSessionNotExists
	for _, svc := range s.all() {
		err := svc.UpdateUserBanchoStatus(q, update)
		if err == nil || !isNotExists(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Sessions) ChannelUpdateNotify(info bancho.ChannelInfo, targets []bancho.Target) ([]bancho.Target, error) {
	var fails []bancho.Target
	for _, svc := range s.all() {
		f, err := svc.ChannelUpdateNotify(info, targets)
		if err != nil {
			return nil, err
		}
		fails = append(fails, f...)
	}
	return fails, nil
}

var _ bancho.SessionService = (*Sessions)(nil)

// Channels composes a local chat.Service the same way Sessions does for
// SessionService: the fan-out channel registry always lives on the
// partition it was created on, so chat operations route to the single
// owning Local and otherwise forward to the one peer configured for it.
// Unlike Sessions, chat has no multi-peer broadcast path — there is one
// chat module per deployment in this engine's supported topology, so
// Channels wraps exactly one delegate chosen at construction.
type Channels struct {
	delegate chat.Service
}

// NewChannels wraps local if owner is true, otherwise the dialed peer.
func NewChannels(local *chat.ServiceLocal, peer *transport.Client, owner bool) (*Channels, error) {
	if owner {
		return &Channels{delegate: local}, nil
	}
	if peer == nil {
		return nil, fmt.Errorf("peer: chat module not owned locally and no peer configured")
	}
	return &Channels{delegate: chat.NewServiceRemote(peer)}, nil
}

func (c *Channels) CreateQueue(userID int32) error { return c.delegate.CreateQueue(userID) }
func (c *Channels) RemoveQueue(userID int32) error { return c.delegate.RemoveQueue(userID) }
func (c *Channels) GetPublicChannels() ([]bancho.ChannelInfo, error) {
	return c.delegate.GetPublicChannels()
}
func (c *Channels) AddUserIntoChannel(query chat.ChannelQuery, userID int32, platforms []chat.Platform) error {
	return c.delegate.AddUserIntoChannel(query, userID, platforms)
}
func (c *Channels) RemoveUserFromChannel(query chat.ChannelQuery, userID int32) error {
	return c.delegate.RemoveUserFromChannel(query, userID)
}
func (c *Channels) RemoveUserPlatformsFromChannel(query chat.ChannelQuery, userID int32, platforms []chat.Platform) error {
	return c.delegate.RemoveUserPlatformsFromChannel(query, userID, platforms)
}
func (c *Channels) SendMessage(senderID int32, content string, target chat.MessageTarget, platforms []chat.Platform) error {
	return c.delegate.SendMessage(senderID, content, target, platforms)
}
func (c *Channels) PullChatPackets(query bancho.UserQuery) ([]byte, error) {
	return c.delegate.PullChatPackets(query)
}

var _ chat.Service = (*Channels)(nil)
