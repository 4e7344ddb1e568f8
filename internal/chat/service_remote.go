package chat

import (
	"sync"
	"time"

	"github.com/bnchfan/bancho-core/internal/bancho"
	"github.com/bnchfan/bancho-core/internal/transport"
)

// publicChannelCacheTTL matches the Rust source's CachedAtomic default.
const publicChannelCacheTTL = 300 * time.Second

type rpcClient interface {
	Call(method string, req any, resp any) error
}

// publicChannelCache is a stale-tolerant TTL cache: a fresh fetch failure
// falls back to whatever was last cached rather than surfacing an error,
// matching the Rust source's CachedValue::fetch fallback behavior.
type publicChannelCache struct {
	mu       sync.Mutex
	value    []bancho.ChannelInfo
	fetched  time.Time
	hasValue bool
}

func (c *publicChannelCache) get(fetchNew func() ([]bancho.ChannelInfo, error)) ([]bancho.ChannelInfo, error) {
	c.mu.Lock()
	fresh := c.hasValue && time.Since(c.fetched) < publicChannelCacheTTL
	cached := c.value
	hadValue := c.hasValue
	c.mu.Unlock()

	if fresh {
		return cached, nil
	}

	v, err := fetchNew()
	if err != nil {
		if hadValue {
			return cached, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.value = v
	c.fetched = time.Now()
	c.hasValue = true
	c.mu.Unlock()
	return v, nil
}

// ServiceRemote forwards every Service method to a peer over RPC, caching
// GetPublicChannels locally since public rooms change rarely and the
// contract explicitly allows serving a stale list on fetch failure.
type ServiceRemote struct {
	Client rpcClient
	cache  publicChannelCache
}

// NewServiceRemote wraps an already-dialed transport client.
func NewServiceRemote(client *transport.Client) *ServiceRemote {
	return &ServiceRemote{Client: client}
}

func translateStatus(err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*transport.StatusError); ok {
		switch se.Status {
		case "NotFound":
			return ErrChannelNotExists
		default:
			return bancho.NewRpcError(se.Status, err)
		}
	}
	return bancho.NewRpcError("transport", err)
}

type userIDReq struct{ UserID int32 }

func (s *ServiceRemote) CreateQueue(userID int32) error {
	return translateStatus(s.Client.Call("ChatService.CreateQueue", userIDReq{UserID: userID}, nil))
}

func (s *ServiceRemote) RemoveQueue(userID int32) error {
	return translateStatus(s.Client.Call("ChatService.RemoveQueue", userIDReq{UserID: userID}, nil))
}

type publicChannelsResp struct{ Channels []bancho.ChannelInfo }

func (s *ServiceRemote) GetPublicChannels() ([]bancho.ChannelInfo, error) {
	return s.cache.get(func() ([]bancho.ChannelInfo, error) {
		var resp publicChannelsResp
		if err := s.Client.Call("ChatService.GetPublicChannels", struct{}{}, &resp); err != nil {
			return nil, translateStatus(err)
		}
		return resp.Channels, nil
	})
}

type channelMembershipReq struct {
	Query     ChannelQuery
	UserID    int32
	Platforms []Platform
}

func (s *ServiceRemote) AddUserIntoChannel(query ChannelQuery, userID int32, platforms []Platform) error {
	return translateStatus(s.Client.Call("ChatService.AddUserIntoChannel", channelMembershipReq{Query: query, UserID: userID, Platforms: platforms}, nil))
}

func (s *ServiceRemote) RemoveUserFromChannel(query ChannelQuery, userID int32) error {
	return translateStatus(s.Client.Call("ChatService.RemoveUserFromChannel", channelMembershipReq{Query: query, UserID: userID}, nil))
}

func (s *ServiceRemote) RemoveUserPlatformsFromChannel(query ChannelQuery, userID int32, platforms []Platform) error {
	return translateStatus(s.Client.Call("ChatService.RemoveUserPlatformsFromChannel", channelMembershipReq{Query: query, UserID: userID, Platforms: platforms}, nil))
}

type sendMessageReq struct {
	SenderID  int32
	Content   string
	Target    MessageTarget
	Platforms []Platform
}

func (s *ServiceRemote) SendMessage(senderID int32, content string, target MessageTarget, platforms []Platform) error {
	return translateStatus(s.Client.Call("ChatService.SendMessage", sendMessageReq{SenderID: senderID, Content: content, Target: target, Platforms: platforms}, nil))
}

type pullReq struct{ Query bancho.UserQuery }
type pullResp struct{ Data []byte }

func (s *ServiceRemote) PullChatPackets(query bancho.UserQuery) ([]byte, error) {
	var resp pullResp
	if err := s.Client.Call("ChatService.PullChatPackets", pullReq{Query: query}, &resp); err != nil {
		return nil, translateStatus(err)
	}
	return resp.Data, nil
}
