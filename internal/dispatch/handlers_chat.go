package dispatch

import (
	"fmt"

	"github.com/bnchfan/bancho-core/internal/bancho"
	"github.com/bnchfan/bancho-core/internal/chat"
)

// handleChannelJoin joins the caller into the named channel on the Bancho
// platform; the join itself pushes ChannelJoin + broadcasts ChannelInfo
// (see chat.ServiceLocal.AddUserIntoChannel), so this handler only needs
// to decode the name and invoke the service.
func handleChannelJoin(ctx Context, h *Handler) error {
	r, err := newReader(ctx)
	if err != nil {
		return err
	}
	name, err := r.ReadString()
	if err != nil {
		return bancho.NewInvalidPacketPayload("CHANNEL_JOIN: decode name", err)
	}
	return h.Chat.AddUserIntoChannel(chat.ByChannelName(name), ctx.UserID, []chat.Platform{chat.PlatformBancho})
}

// handleChannelPart removes the caller from the named channel's Bancho
// platform membership.
func handleChannelPart(ctx Context, h *Handler) error {
	r, err := newReader(ctx)
	if err != nil {
		return err
	}
	name, err := r.ReadString()
	if err != nil {
		return bancho.NewInvalidPacketPayload("CHANNEL_PART: decode name", err)
	}
	return h.Chat.RemoveUserPlatformsFromChannel(chat.ByChannelName(name), ctx.UserID, []chat.Platform{chat.PlatformBancho})
}

// handleSendPublicMessage reads {content, channel} and appends the
// message to that channel's log.
func handleSendPublicMessage(ctx Context, h *Handler) error {
	r, err := newReader(ctx)
	if err != nil {
		return err
	}
	content, err := r.ReadString()
	if err != nil {
		return bancho.NewInvalidPacketPayload("SEND_PUBLIC_MESSAGE: decode content", err)
	}
	channelName, err := r.ReadString()
	if err != nil {
		return bancho.NewInvalidPacketPayload("SEND_PUBLIC_MESSAGE: decode channel", err)
	}
	return h.Chat.SendMessage(ctx.UserID, content, chat.ToChannel(chat.ByChannelName(channelName)), nil)
}

// handleSendPrivateMessage reads {content, target username} and pushes
// the message directly onto the target's own session queue.
func handleSendPrivateMessage(ctx Context, h *Handler) error {
	r, err := newReader(ctx)
	if err != nil {
		return err
	}
	content, err := r.ReadString()
	if err != nil {
		return bancho.NewInvalidPacketPayload("SEND_PRIVATE_MESSAGE: decode content", err)
	}
	targetName, err := r.ReadString()
	if err != nil {
		return bancho.NewInvalidPacketPayload("SEND_PRIVATE_MESSAGE: decode target", err)
	}
	if targetName == "" {
		return bancho.NewInvalidArgument(fmt.Sprintf("SEND_PRIVATE_MESSAGE: empty target for sender %d", ctx.UserID))
	}
	return h.Chat.SendMessage(ctx.UserID, content, chat.ToUser(bancho.ByUsername(targetName)), nil)
}
