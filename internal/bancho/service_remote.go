package bancho

import (
	"github.com/bnchfan/bancho-core/internal/transport"
)

// rpcClient is the subset of transport.Client the remote service needs;
// declared as an interface so tests can stub it without a live socket.
type rpcClient interface {
	Call(method string, req any, resp any) error
}

// SessionServiceRemote forwards every SessionService method to a peer
// over the typed RPC transport, translating the peer's well-known status
// codes back into local error kinds at the boundary.
type SessionServiceRemote struct {
	Client rpcClient
}

// NewSessionServiceRemote wraps an already-dialed transport client.
func NewSessionServiceRemote(client *transport.Client) *SessionServiceRemote {
	return &SessionServiceRemote{Client: client}
}

func translateStatus(err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*transport.StatusError); ok {
		switch se.Status {
		case "NotFound":
			return ErrSessionNotExists
		case "InvalidArgument":
			return NewInvalidArgument(se.Status)
		default:
			return NewRpcError(se.Status, err)
		}
	}
	return NewRpcError("transport", err)
}

type broadcastReq struct{ Payload []byte }

func (s *SessionServiceRemote) BroadcastBanchoPackets(payload []byte) {
	_ = s.Client.Call("SessionService.BroadcastBanchoPackets", broadcastReq{Payload: payload}, nil)
}

type enqueueReq struct {
	To      Target
	Payload []byte
}

func (s *SessionServiceRemote) EnqueueBanchoPackets(to Target, payload []byte) error {
	return translateStatus(s.Client.Call("SessionService.EnqueueBanchoPackets", enqueueReq{To: to, Payload: payload}, nil))
}

type batchEnqueueReq struct {
	Targets []Target
	Payload []byte
}

func (s *SessionServiceRemote) BatchEnqueueBanchoPackets(targets []Target, payload []byte) {
	_ = s.Client.Call("SessionService.BatchEnqueueBanchoPackets", batchEnqueueReq{Targets: targets, Payload: payload}, nil)
}

type dequeueReq struct{ To Target }
type dequeueResp struct{ Data []byte }

func (s *SessionServiceRemote) DequeueBanchoPackets(to Target) ([]byte, error) {
	var resp dequeueResp
	if err := s.Client.Call("SessionService.DequeueBanchoPackets", dequeueReq{To: to}, &resp); err != nil {
		return nil, translateStatus(err)
	}
	return resp.Data, nil
}

type createSessionResp struct {
	SessionID       string
	UserID          int32
	Username        string
	UsernameUnicode string
	Privileges      int64
}

func (s *SessionServiceRemote) CreateUserSession(dto CreateSessionDto) (*Session, error) {
	var resp createSessionResp
	if err := s.Client.Call("SessionService.CreateUserSession", dto, &resp); err != nil {
		return nil, translateStatus(err)
	}
	sess := NewSession(resp.SessionID, resp.UserID, resp.Username, resp.UsernameUnicode)
	sess.SetPrivileges(resp.Privileges)
	return sess, nil
}

type userQueryReq struct{ Query UserQuery }

func (s *SessionServiceRemote) DeleteUserSession(q UserQuery) error {
	return translateStatus(s.Client.Call("SessionService.DeleteUserSession", userQueryReq{Query: q}, nil))
}

type checkExistsResp struct{ UserID int32 }

func (s *SessionServiceRemote) CheckUserSessionExists(q UserQuery) (int32, error) {
	var resp checkExistsResp
	if err := s.Client.Call("SessionService.CheckUserSessionExists", userQueryReq{Query: q}, &resp); err != nil {
		return 0, translateStatus(err)
	}
	return resp.UserID, nil
}

// GetUserSession has no wire-friendly way to return a live *Session handle
// across a process boundary; remote callers get a detached copy built
// from GetUserSessionWithFields(all fields) instead of a registry-backed
// handle, which is the honest shape of "read-through cache" the transport
// shell promises.
func (s *SessionServiceRemote) GetUserSession(q UserQuery) (*Session, error) {
	fields, err := s.GetUserSessionWithFields(q, FieldSessionID|FieldUserID|FieldUsername|FieldUsernameUnicode)
	if err != nil {
		return nil, err
	}
	return NewSession(fields.SessionID, fields.UserID, fields.Username, fields.UsernameUnicode), nil
}

type fieldsReq struct {
	Query UserQuery
	Mask  FieldMask
}

func (s *SessionServiceRemote) GetUserSessionWithFields(q UserQuery, mask FieldMask) (SessionFields, error) {
	var resp SessionFields
	if err := s.Client.Call("SessionService.GetUserSessionWithFields", fieldsReq{Query: q, Mask: mask}, &resp); err != nil {
		return SessionFields{}, translateStatus(err)
	}
	return resp, nil
}

func (s *SessionServiceRemote) GetAllSessions() AllSessionsDump {
	var resp AllSessionsDump
	_ = s.Client.Call("SessionService.GetAllSessions", struct{}{}, &resp)
	return resp
}

type sendStatsReq struct {
	Query UserQuery
	To    Target
}

func (s *SessionServiceRemote) SendUserStatsPacket(q UserQuery, to Target) error {
	return translateStatus(s.Client.Call("SessionService.SendUserStatsPacket", sendStatsReq{Query: q, To: to}, nil))
}

type batchSendReq struct {
	Queries []UserQuery
	To      Target
}

func (s *SessionServiceRemote) BatchSendUserStatsPacket(queries []UserQuery, to Target) error {
	return translateStatus(s.Client.Call("SessionService.BatchSendUserStatsPacket", batchSendReq{Queries: queries, To: to}, nil))
}

type sendToReq struct{ To Target }

func (s *SessionServiceRemote) SendAllPresences(to Target) error {
	return translateStatus(s.Client.Call("SessionService.SendAllPresences", sendToReq{To: to}, nil))
}

func (s *SessionServiceRemote) BatchSendPresences(queries []UserQuery, to Target) error {
	return translateStatus(s.Client.Call("SessionService.BatchSendPresences", batchSendReq{Queries: queries, To: to}, nil))
}

type updateFilterReq struct {
	Query  UserQuery
	Filter PresenceFilter
}

func (s *SessionServiceRemote) UpdatePresenceFilter(q UserQuery, filter PresenceFilter) error {
	return translateStatus(s.Client.Call("SessionService.UpdatePresenceFilter", updateFilterReq{Query: q, Filter: filter}, nil))
}

type updateStatusReq struct {
	Query  UserQuery
	Update StatusUpdate
}

func (s *SessionServiceRemote) UpdateUserBanchoStatus(q UserQuery, update StatusUpdate) error {
	return translateStatus(s.Client.Call("SessionService.UpdateUserBanchoStatus", updateStatusReq{Query: q, Update: update}, nil))
}

type channelNotifyReq struct {
	Info    ChannelInfo
	Targets []Target
}
type channelNotifyResp struct{ Fails []Target }

func (s *SessionServiceRemote) ChannelUpdateNotify(info ChannelInfo, targets []Target) ([]Target, error) {
	var resp channelNotifyResp
	if err := s.Client.Call("SessionService.ChannelUpdateNotify", channelNotifyReq{Info: info, Targets: targets}, &resp); err != nil {
		return nil, translateStatus(err)
	}
	return resp.Fails, nil
}
