package dispatch

import (
	"log/slog"

	"github.com/bnchfan/bancho-core/internal/bancho"
	"github.com/bnchfan/bancho-core/internal/chat"
	"github.com/bnchfan/bancho-core/internal/protocol"
)

// Context carries everything a handler needs: the caller's identity and
// the decoded inbound frame. Handlers never see raw connection state.
type Context struct {
	SessionID string
	UserID    int32
	Opcode    ClientOpcode
	Payload   []byte // nil when the frame carried no payload
}

// HandlerFunc performs one opcode's side effects against the session and
// chat services, returning an error the caller logs and otherwise ignores
// (§4.4/§7: a single bad frame never aborts the batch).
type HandlerFunc func(ctx Context, h *Handler) error

// Handler owns the opcode dispatch table and the two services every
// handler operates over.
type Handler struct {
	Sessions bancho.SessionService
	Chat     chat.Service
	table    map[ClientOpcode]HandlerFunc
}

// NewHandler builds a dispatch table over the given services. The table
// is constructed once; handlers are plain functions, not methods, so
// adding an opcode means adding one map entry, never touching a switch.
func NewHandler(sessions bancho.SessionService, chatSvc chat.Service) *Handler {
	return &Handler{
		Sessions: sessions,
		Chat:     chatSvc,
		table:    buildTable(),
	}
}

func buildTable() map[ClientOpcode]HandlerFunc {
	return map[ClientOpcode]HandlerFunc{
		OpChannelJoin:             handleChannelJoin,
		OpChannelPart:             handleChannelPart,
		OpSendPublicMessage:       handleSendPublicMessage,
		OpSendPrivateMessage:      handleSendPrivateMessage,
		OpRequestStatusUpdate:     handleRequestStatusUpdate,
		OpPresenceRequestAll:      handlePresenceRequestAll,
		OpStatsRequest:            handleStatsRequest,
		OpChangeAction:            handleChangeAction,
		OpReceiveUpdates:          handleReceiveUpdates,
		OpToggleBlockNonFriendDMs: handleToggleBlockNonFriendDMs,
		OpLogout:                  handleLogout,
		OpPresenceRequest:         handlePresenceRequest,
	}
}

// Dispatch routes one decoded frame to its handler. An unknown opcode is
// warned about and dropped; a handler error is logged here so callers can
// loop over a batch of frames without per-call error handling.
func (h *Handler) Dispatch(ctx Context) error {
	fn, ok := h.table[ctx.Opcode]
	if !ok {
		slog.Warn("unhandled opcode", "opcode", ctx.Opcode, "session_id", ctx.SessionID)
		return nil
	}
	if err := fn(ctx, h); err != nil {
		slog.Warn("dispatch handler error", "opcode", ctx.Opcode, "session_id", ctx.SessionID, "err", err)
		return err
	}
	return nil
}

// requirePayload returns PacketPayloadNotExists if ctx carries no payload,
// matching the decode-failure taxonomy in §4.4/§7.
func requirePayload(ctx Context) ([]byte, error) {
	if ctx.Payload == nil {
		return nil, bancho.NewPacketPayloadNotExists("opcode requires a payload but none was sent")
	}
	return ctx.Payload, nil
}

func newReader(ctx Context) (*protocol.Reader, error) {
	payload, err := requirePayload(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.NewReader(payload), nil
}
