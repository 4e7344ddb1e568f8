package chat

import (
	"errors"

	"github.com/bnchfan/bancho-core/internal/bancho"
	"github.com/bnchfan/bancho-core/internal/transport"
)

func statusFor(err error) string {
	if errors.Is(err, ErrChannelNotExists) {
		return "NotFound"
	}
	var e *bancho.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case bancho.KindSessionNotExists:
			return "NotFound"
		case bancho.KindInvalidArgument:
			return "InvalidArgument"
		}
	}
	return "Internal"
}

// RegisterChatService binds every Service method onto server under the
// "ChatService.*" method namespace, the counterpart to ServiceRemote.
func RegisterChatService(server *transport.Server, svc Service) {
	server.Handle("ChatService.CreateQueue", func(payload []byte) (any, string, error) {
		var req userIDReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.CreateQueue(req.UserID); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("ChatService.RemoveQueue", func(payload []byte) (any, string, error) {
		var req userIDReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.RemoveQueue(req.UserID); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("ChatService.GetPublicChannels", func(payload []byte) (any, string, error) {
		chans, err := svc.GetPublicChannels()
		if err != nil {
			return nil, statusFor(err), nil
		}
		return publicChannelsResp{Channels: chans}, "", nil
	})

	server.Handle("ChatService.AddUserIntoChannel", func(payload []byte) (any, string, error) {
		var req channelMembershipReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.AddUserIntoChannel(req.Query, req.UserID, req.Platforms); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("ChatService.RemoveUserFromChannel", func(payload []byte) (any, string, error) {
		var req channelMembershipReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.RemoveUserFromChannel(req.Query, req.UserID); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("ChatService.RemoveUserPlatformsFromChannel", func(payload []byte) (any, string, error) {
		var req channelMembershipReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.RemoveUserPlatformsFromChannel(req.Query, req.UserID, req.Platforms); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("ChatService.SendMessage", func(payload []byte) (any, string, error) {
		var req sendMessageReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		if err := svc.SendMessage(req.SenderID, req.Content, req.Target, req.Platforms); err != nil {
			return nil, statusFor(err), nil
		}
		return nil, "", nil
	})

	server.Handle("ChatService.PullChatPackets", func(payload []byte) (any, string, error) {
		var req pullReq
		if err := transport.Decode(payload, &req); err != nil {
			return nil, "", err
		}
		data, err := svc.PullChatPackets(req.Query)
		if err != nil {
			return nil, statusFor(err), nil
		}
		return pullResp{Data: data}, "", nil
	})
}
