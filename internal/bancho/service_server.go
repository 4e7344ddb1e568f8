package bancho

import (
	"errors"

	"github.com/bnchfan/bancho-core/internal/transport"
)

// statusFor maps a core Error's Kind onto the RPC's well-known status
// codes, the inverse of translateStatus on the Remote side.
func statusFor(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindSessionNotExists:
			return "NotFound"
		case KindInvalidArgument:
			return "InvalidArgument"
		}
	}
	return "Internal"
}

// RegisterSessionService binds every SessionService method onto server
// under the "SessionService.*" method namespace, so a peer dialing in can
// reach this process's Local implementation exactly as the Remote adapter
// expects.
func RegisterSessionService(server *transport.Server, svc SessionService) {
	server.Handle("SessionService.BroadcastBanchoPackets", func(payload []byte) (any, string, error) {
		var req broadcastReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		svc.BroadcastBanchoPackets(req.Payload)
		return nil, "", nil
	})

	server.Handle("SessionService.EnqueueBanchoPackets", func(payload []byte) (any, string, error) {
		var req enqueueReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.EnqueueBanchoPackets(req.To, req.Payload); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("SessionService.BatchEnqueueBanchoPackets", func(payload []byte) (any, string, error) {
		var req batchEnqueueReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		svc.BatchEnqueueBanchoPackets(req.Targets, req.Payload)
		return nil, "", nil
	})

	server.Handle("SessionService.DequeueBanchoPackets", func(payload []byte) (any, string, error) {
		var req dequeueReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		data, err := svc.DequeueBanchoPackets(req.To)
		if err != nil {
			return nil, statusFor(err), nil
		}
		return dequeueResp{Data: data}, "", nil
	})

	server.Handle("SessionService.CreateUserSession", func(payload []byte) (any, string, error) {
		var dto CreateSessionDto
		if err := transport.Decode(payload, &dto); err != nil {
			return nil, "", err
		}
		sess, err := svc.CreateUserSession(dto)
		if err != nil {
			return nil, statusFor(err), nil
		}
		return createSessionResp{
			SessionID:       sess.SessionID,
			UserID:          sess.UserID,
			Username:        sess.Username(),
			UsernameUnicode: sess.UsernameUnicode(),
			Privileges:      sess.Privileges(),
		}, "", nil
	})

	server.Handle("SessionService.DeleteUserSession", func(payload []byte) (any, string, error) {
		var req userQueryReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.DeleteUserSession(req.Query); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("SessionService.CheckUserSessionExists", func(payload []byte) (any, string, error) {
		var req userQueryReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		id, err := svc.CheckUserSessionExists(req.Query)
		if err != nil {
			return nil, statusFor(err), nil
		}
		return checkExistsResp{UserID: id}, "", nil
	})

	server.Handle("SessionService.GetUserSessionWithFields", func(payload []byte) (any, string, error) {
		var req fieldsReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		fields, err := svc.GetUserSessionWithFields(req.Query, req.Mask)
		if err != nil {
			return nil, statusFor(err), nil
		}
		return fields, "", nil
	})

	server.Handle("SessionService.GetAllSessions", func(payload []byte) (any, string, error) {
		return svc.GetAllSessions(), "", nil
	})

	server.Handle("SessionService.SendUserStatsPacket", func(payload []byte) (any, string, error) {
		var req sendStatsReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.SendUserStatsPacket(req.Query, req.To); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("SessionService.BatchSendUserStatsPacket", func(payload []byte) (any, string, error) {
		var req batchSendReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.BatchSendUserStatsPacket(req.Queries, req.To); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("SessionService.SendAllPresences", func(payload []byte) (any, string, error) {
		var req sendToReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.SendAllPresences(req.To); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("SessionService.BatchSendPresences", func(payload []byte) (any, string, error) {
		var req batchSendReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.BatchSendPresences(req.Queries, req.To); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("SessionService.UpdatePresenceFilter", func(payload []byte) (any, string, error) {
		var req updateFilterReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.UpdatePresenceFilter(req.Query, req.Filter); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("SessionService.UpdateUserBanchoStatus", func(payload []byte) (any, string, error) {
		var req updateStatusReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.UpdateUserBanchoStatus(req.Query, req.Update); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("SessionService.ChannelUpdateNotify", func(payload []byte) (any, string, error) {
		var req channelNotifyReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		fails, err := svc.ChannelUpdateNotify(req.Info, req.Targets)
		if err != nil {
			return nil, statusFor(err), nil
		}
		return channelNotifyResp{Fails: fails}, "", nil
	})
}
