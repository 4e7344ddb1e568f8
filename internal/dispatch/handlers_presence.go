package dispatch

import (
	"github.com/bnchfan/bancho-core/internal/bancho"
)

// handleRequestStatusUpdate broadcasts the caller's own current stats
// frame to everyone — used by a client that wants to re-announce itself.
func handleRequestStatusUpdate(ctx Context, h *Handler) error {
	sess, err := h.Sessions.GetUserSession(bancho.ByUserID(ctx.UserID))
	if err != nil {
		return err
	}
	h.Sessions.BroadcastBanchoPackets(bancho.BuildUserStatsFrame(sess))
	return nil
}

// handlePresenceRequestAll enqueues a presence frame for every other
// session onto the caller's own queue.
func handlePresenceRequestAll(ctx Context, h *Handler) error {
	return h.Sessions.SendAllPresences(bancho.TargetUserID(ctx.UserID))
}

// handleStatsRequest decodes a list of user ids and enqueues each of
// their stats frames to the caller.
func handleStatsRequest(ctx Context, h *Handler) error {
	r, err := newReader(ctx)
	if err != nil {
		return err
	}
	ids, err := r.ReadInt32List()
	if err != nil {
		return bancho.NewInvalidPacketPayload("STATS_REQUEST: decode user ids", err)
	}
	queries := make([]bancho.UserQuery, len(ids))
	for i, id := range ids {
		queries[i] = bancho.ByUserID(id)
	}
	return h.Sessions.BatchSendUserStatsPacket(queries, bancho.TargetUserID(ctx.UserID))
}

// handlePresenceRequest is STATS_REQUEST's presence-frame counterpart.
func handlePresenceRequest(ctx Context, h *Handler) error {
	r, err := newReader(ctx)
	if err != nil {
		return err
	}
	ids, err := r.ReadInt32List()
	if err != nil {
		return bancho.NewInvalidPacketPayload("PRESENCE_REQUEST: decode user ids", err)
	}
	queries := make([]bancho.UserQuery, len(ids))
	for i, id := range ids {
		queries[i] = bancho.ByUserID(id)
	}
	return h.Sessions.BatchSendPresences(queries, bancho.TargetUserID(ctx.UserID))
}

// handleChangeAction decodes the client's new activity and mutates +
// broadcasts it.
func handleChangeAction(ctx Context, h *Handler) error {
	r, err := newReader(ctx)
	if err != nil {
		return err
	}
	status, err := r.ReadByte()
	if err != nil {
		return bancho.NewInvalidPacketPayload("CHANGE_ACTION: decode status", err)
	}
	description, err := r.ReadString()
	if err != nil {
		return bancho.NewInvalidPacketPayload("CHANGE_ACTION: decode description", err)
	}
	beatmapMD5, err := r.ReadString()
	if err != nil {
		return bancho.NewInvalidPacketPayload("CHANGE_ACTION: decode beatmap md5", err)
	}
	mods, err := r.ReadUint32()
	if err != nil {
		return bancho.NewInvalidPacketPayload("CHANGE_ACTION: decode mods", err)
	}
	mode, err := r.ReadByte()
	if err != nil {
		return bancho.NewInvalidPacketPayload("CHANGE_ACTION: decode mode", err)
	}
	beatmapID, err := r.ReadInt32()
	if err != nil {
		return bancho.NewInvalidPacketPayload("CHANGE_ACTION: decode beatmap id", err)
	}

	update := bancho.StatusUpdate{
		OnlineStatus: bancho.OnlineStatus(status),
		Description:  description,
		BeatmapID:    beatmapID,
		BeatmapMD5:   beatmapMD5,
		Mods:         bancho.Mods(mods),
		Mode:         bancho.GameMode(mode),
	}
	return h.Sessions.UpdateUserBanchoStatus(bancho.ByUserID(ctx.UserID), update)
}

// handleReceiveUpdates decodes the requested presence filter level.
func handleReceiveUpdates(ctx Context, h *Handler) error {
	r, err := newReader(ctx)
	if err != nil {
		return err
	}
	filter, err := r.ReadInt32()
	if err != nil {
		return bancho.NewInvalidPacketPayload("RECEIVE_UPDATES: decode filter", err)
	}
	if filter < int32(bancho.PresenceNone) || filter > int32(bancho.PresenceFriends) {
		filter = int32(bancho.PresenceNone)
	}
	return h.Sessions.UpdatePresenceFilter(bancho.ByUserID(ctx.UserID), bancho.PresenceFilter(filter))
}

// handleToggleBlockNonFriendDMs decodes the boolean DM filter toggle.
func handleToggleBlockNonFriendDMs(ctx Context, h *Handler) error {
	r, err := newReader(ctx)
	if err != nil {
		return err
	}
	v, err := r.ReadInt32()
	if err != nil {
		return bancho.NewInvalidPacketPayload("TOGGLE_BLOCK_NON_FRIEND_DMS: decode flag", err)
	}
	sess, err := h.Sessions.GetUserSession(bancho.ByUserID(ctx.UserID))
	if err != nil {
		return err
	}
	sess.SetBlockNonFriendDMs(v == 1)
	return nil
}

// handleLogout removes the caller's session from the registry. The
// caller's HTTP-layer response is an empty body for a token that no
// longer resolves.
func handleLogout(ctx Context, h *Handler) error {
	return h.Sessions.DeleteUserSession(bancho.ByUserID(ctx.UserID))
}
