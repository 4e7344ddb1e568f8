package dispatch

import (
	"errors"
	"testing"

	"github.com/bnchfan/bancho-core/internal/bancho"
	"github.com/bnchfan/bancho-core/internal/chat"
	"github.com/bnchfan/bancho-core/internal/protocol"
)

func newTestHandler(t *testing.T) (*Handler, *bancho.Registry, *chat.Registry) {
	t.Helper()
	sessReg := bancho.NewRegistry()
	chanReg := chat.NewRegistry()
	sessions := bancho.NewSessionServiceLocal(sessReg, chanReg)
	chatSvc := chat.NewServiceLocal(chanReg, sessions)
	return NewHandler(sessions, chatSvc), sessReg, chanReg
}

func mustSession(t *testing.T, h *Handler, userID int32, username string) *bancho.Session {
	t.Helper()
	sess, err := h.Sessions.CreateUserSession(bancho.CreateSessionDto{UserID: userID, Username: username})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}
	return sess
}

func TestDispatchUnknownOpcodeIsIgnored(t *testing.T) {
	h, _, _ := newTestHandler(t)
	if err := h.Dispatch(Context{Opcode: ClientOpcode(65535)}); err != nil {
		t.Fatalf("Dispatch on an unhandled opcode should not error, got %v", err)
	}
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	h, _, chanReg := newTestHandler(t)
	mustSession(t, h, 1, "joiner")
	chanReg.CreateChannel("#osu", "", chat.ChannelPublic, 10)

	w := protocol.NewWriter(16)
	w.WriteString("#osu")

	err := h.Dispatch(Context{SessionID: "s1", UserID: 1, Opcode: OpChannelJoin, Payload: w.Bytes()})
	if err != nil {
		t.Fatalf("Dispatch(OpChannelJoin): %v", err)
	}
	ch, _ := chanReg.Get(chat.ByChannelName("#osu"))
	if ch.MemberCount(chat.PlatformBancho) != 1 {
		t.Fatalf("routed handler should have joined the channel, MemberCount = %d", ch.MemberCount(chat.PlatformBancho))
	}
}

func TestRequirePayloadMissing(t *testing.T) {
	h, _, _ := newTestHandler(t)
	mustSession(t, h, 1, "user")

	err := h.Dispatch(Context{UserID: 1, Opcode: OpChannelJoin, Payload: nil})
	if err == nil {
		t.Fatal("a payload-requiring opcode with nil Payload should error")
	}
}

func TestHandleChannelPartRemovesMembership(t *testing.T) {
	h, _, chanReg := newTestHandler(t)
	mustSession(t, h, 1, "user")
	ch := chanReg.CreateChannel("#osu", "", chat.ChannelPublic, 10)
	if err := h.Chat.AddUserIntoChannel(chat.ByChannelID(ch.ID), 1, []chat.Platform{chat.PlatformBancho}); err != nil {
		t.Fatalf("AddUserIntoChannel: %v", err)
	}

	w := protocol.NewWriter(16)
	w.WriteString("#osu")
	if err := h.Dispatch(Context{UserID: 1, Opcode: OpChannelPart, Payload: w.Bytes()}); err != nil {
		t.Fatalf("Dispatch(OpChannelPart): %v", err)
	}
	if ch.MemberCount(chat.PlatformBancho) != 0 {
		t.Fatalf("handler should have removed bancho membership, MemberCount = %d", ch.MemberCount(chat.PlatformBancho))
	}
}

func TestHandleSendPublicMessageAppendsToChannelLog(t *testing.T) {
	h, _, chanReg := newTestHandler(t)
	mustSession(t, h, 1, "sender")
	ch := chanReg.CreateChannel("#osu", "", chat.ChannelPublic, 10)

	w := protocol.NewWriter(32)
	w.WriteString("hello")
	w.WriteString("#osu")
	if err := h.Dispatch(Context{UserID: 1, Opcode: OpSendPublicMessage, Payload: w.Bytes()}); err != nil {
		t.Fatalf("Dispatch(OpSendPublicMessage): %v", err)
	}
	msgs, _ := ch.ReceiveSince(0)
	if len(msgs) != 1 {
		t.Fatalf("channel log should have one message, got %d", len(msgs))
	}
}

func TestHandleSendPrivateMessagePushesToTarget(t *testing.T) {
	h, _, _ := newTestHandler(t)
	mustSession(t, h, 1, "sender")
	target := mustSession(t, h, 2, "target")

	w := protocol.NewWriter(32)
	w.WriteString("hi there")
	w.WriteString("target")
	if err := h.Dispatch(Context{UserID: 1, Opcode: OpSendPrivateMessage, Payload: w.Bytes()}); err != nil {
		t.Fatalf("Dispatch(OpSendPrivateMessage): %v", err)
	}
	if target.Queue.Len() != 1 {
		t.Fatalf("target should have received exactly one frame, Queue.Len() = %d", target.Queue.Len())
	}
}

func TestHandleSendPrivateMessageRejectsEmptyTarget(t *testing.T) {
	h, _, _ := newTestHandler(t)
	mustSession(t, h, 1, "sender")

	w := protocol.NewWriter(32)
	w.WriteString("hi there")
	w.WriteString("")
	if err := h.Dispatch(Context{UserID: 1, Opcode: OpSendPrivateMessage, Payload: w.Bytes()}); err == nil {
		t.Fatal("an empty target username should error")
	}
}

func TestHandleRequestStatusUpdateBroadcasts(t *testing.T) {
	h, _, _ := newTestHandler(t)
	self := mustSession(t, h, 1, "self")
	other := mustSession(t, h, 2, "other")

	if err := h.Dispatch(Context{UserID: 1, Opcode: OpRequestStatusUpdate}); err != nil {
		t.Fatalf("Dispatch(OpRequestStatusUpdate): %v", err)
	}
	if self.Queue.Len() != 1 || other.Queue.Len() != 1 {
		t.Fatalf("status re-announce should broadcast to everyone, self=%d other=%d", self.Queue.Len(), other.Queue.Len())
	}
}

func TestHandlePresenceRequestAll(t *testing.T) {
	h, _, _ := newTestHandler(t)
	caller := mustSession(t, h, 1, "caller")
	mustSession(t, h, 2, "other")

	if err := h.Dispatch(Context{UserID: 1, Opcode: OpPresenceRequestAll}); err != nil {
		t.Fatalf("Dispatch(OpPresenceRequestAll): %v", err)
	}
	if caller.Queue.Len() != 1 {
		t.Fatalf("caller should receive one combined presence push, Queue.Len() = %d", caller.Queue.Len())
	}
}

func TestHandleStatsRequestDecodesIDList(t *testing.T) {
	h, _, _ := newTestHandler(t)
	caller := mustSession(t, h, 1, "caller")
	mustSession(t, h, 2, "other")

	w := protocol.NewWriter(32)
	w.WriteInt32List([]int32{2})
	if err := h.Dispatch(Context{UserID: 1, Opcode: OpStatsRequest, Payload: w.Bytes()}); err != nil {
		t.Fatalf("Dispatch(OpStatsRequest): %v", err)
	}
	if caller.Queue.Len() != 1 {
		t.Fatalf("caller should receive the requested stats push, Queue.Len() = %d", caller.Queue.Len())
	}
}

func TestHandlePresenceRequestDecodesIDList(t *testing.T) {
	h, _, _ := newTestHandler(t)
	caller := mustSession(t, h, 1, "caller")
	mustSession(t, h, 2, "other")

	w := protocol.NewWriter(32)
	w.WriteInt32List([]int32{2})
	if err := h.Dispatch(Context{UserID: 1, Opcode: OpPresenceRequest, Payload: w.Bytes()}); err != nil {
		t.Fatalf("Dispatch(OpPresenceRequest): %v", err)
	}
	if caller.Queue.Len() != 1 {
		t.Fatalf("caller should receive the requested presence push, Queue.Len() = %d", caller.Queue.Len())
	}
}

func TestHandleChangeActionUpdatesStatus(t *testing.T) {
	h, _, _ := newTestHandler(t)
	sess := mustSession(t, h, 1, "user")

	w := protocol.NewWriter(64)
	w.WriteByte(byte(bancho.StatusPlaying))
	w.WriteString("grinding")
	w.WriteString("md5hash")
	w.WriteUint32(uint32(bancho.ModHidden))
	w.WriteByte(byte(bancho.ModeStandard))
	w.WriteInt32(123)

	if err := h.Dispatch(Context{UserID: 1, Opcode: OpChangeAction, Payload: w.Bytes()}); err != nil {
		t.Fatalf("Dispatch(OpChangeAction): %v", err)
	}
	if sess.BanchoStatus.Description.Load() != "grinding" {
		t.Fatalf("Description = %q, want %q", sess.BanchoStatus.Description.Load(), "grinding")
	}
}

func TestHandleReceiveUpdatesClampsOutOfRangeFilter(t *testing.T) {
	h, _, _ := newTestHandler(t)
	sess := mustSession(t, h, 1, "user")

	w := protocol.NewWriter(8)
	w.WriteInt32(999)
	if err := h.Dispatch(Context{UserID: 1, Opcode: OpReceiveUpdates, Payload: w.Bytes()}); err != nil {
		t.Fatalf("Dispatch(OpReceiveUpdates): %v", err)
	}
	if got := bancho.PresenceFilter(sess.PresenceFilter.Load()); got != bancho.PresenceNone {
		t.Fatalf("out-of-range filter should clamp to PresenceNone, got %d", got)
	}
}

func TestHandleToggleBlockNonFriendDMs(t *testing.T) {
	h, _, _ := newTestHandler(t)
	sess := mustSession(t, h, 1, "user")

	w := protocol.NewWriter(8)
	w.WriteInt32(1)
	if err := h.Dispatch(Context{UserID: 1, Opcode: OpToggleBlockNonFriendDMs, Payload: w.Bytes()}); err != nil {
		t.Fatalf("Dispatch(OpToggleBlockNonFriendDMs): %v", err)
	}
	if !sess.BlockNonFriendDMs() {
		t.Fatal("toggle with flag=1 should set BlockNonFriendDMs")
	}
}

func TestHandleLogoutRemovesSession(t *testing.T) {
	h, sessReg, chanReg := newTestHandler(t)
	ch := chanReg.CreateChannel("#osu", "", chat.ChannelPublic, 10)
	sess := mustSession(t, h, 1, "user")
	if err := h.Chat.AddUserIntoChannel(chat.ByChannelName("#osu"), 1, []chat.Platform{chat.PlatformBancho}); err != nil {
		t.Fatalf("AddUserIntoChannel: %v", err)
	}

	if err := h.Dispatch(Context{UserID: 1, Opcode: OpLogout}); err != nil {
		t.Fatalf("Dispatch(OpLogout): %v", err)
	}
	if _, ok := sessReg.Get(bancho.ByID(sess.SessionID)); ok {
		t.Fatal("session should be removed from the registry after logout")
	}
	if ch.MemberCount(chat.PlatformBancho) != 0 {
		t.Fatalf("logout should remove the user from every channel it joined, member count = %d", ch.MemberCount(chat.PlatformBancho))
	}
	if ids := chanReg.UserChannels(1, chat.PlatformBancho); len(ids) != 0 {
		t.Fatalf("logout should clear the reverse join index too, got %v", ids)
	}
}

func TestHandleLogoutUnknownUser(t *testing.T) {
	h, _, _ := newTestHandler(t)
	err := h.Dispatch(Context{UserID: 404, Opcode: OpLogout})
	if !errors.Is(err, bancho.ErrSessionNotExists) {
		t.Fatalf("logout for an unknown user: got %v, want ErrSessionNotExists", err)
	}
}
