package bancho

import "github.com/bnchfan/bancho-core/internal/protocol"

// ServerOpcode enumerates the outbound frame kinds this engine emits. The
// concrete numeric assignments mirror the client's published protocol;
// they are a wire-compatibility fact, not a design choice of this core.
type ServerOpcode uint16

const (
	ServerLoginReply       ServerOpcode = 5
	ServerSendMessage      ServerOpcode = 7
	ServerPing             ServerOpcode = 8
	ServerIrcChangeName    ServerOpcode = 9
	ServerLogout           ServerOpcode = 12
	ServerUpdateStats      ServerOpcode = 11
	ServerUserPresence     ServerOpcode = 83
	ServerNotification     ServerOpcode = 24
	ServerChannelJoin      ServerOpcode = 57
	ServerChannelInfo      ServerOpcode = 65
	ServerChannelKick      ServerOpcode = 66
	ServerChannelInfoEnd   ServerOpcode = 67
	ServerProtocolVersion  ServerOpcode = 75
	ServerPrivileges       ServerOpcode = 71
	ServerFriendsList      ServerOpcode = 53
)

// BuildUserStatsFrame encodes the UserStats packet for sess, reading its
// current BanchoStatus and the ModeStats slot named by the active mode.
func BuildUserStatsFrame(sess *Session) []byte {
	stats := sess.CurrentModeStats()
	if stats == nil {
		stats = &ModeStats{}
	}

	w := protocol.Get()
	defer w.Put()

	w.WriteInt32(sess.UserID)
	w.WriteByte(byte(sess.BanchoStatus.OnlineStatus.Load()))
	w.WriteString(sess.BanchoStatus.Description.Load())
	w.WriteString(sess.BanchoStatus.BeatmapMD5.Load())
	w.WriteUint32(sess.BanchoStatus.Mods.Load())
	w.WriteByte(byte(sess.BanchoStatus.Mode.Load()))
	w.WriteInt32(sess.BanchoStatus.BeatmapID.Load())
	w.WriteInt64(int64(stats.RankedScore))
	w.WriteFloat32(stats.Accuracy)
	w.WriteInt32(int32(stats.Playcount))
	w.WriteInt64(int64(stats.TotalScore))
	w.WriteInt32(int32(stats.Rank))
	w.WriteInt16(int16(stats.PP))

	return protocol.BuildFrame(uint16(ServerUpdateStats), append([]byte(nil), w.Bytes()...))
}

// BuildUserPresenceFrame encodes the UserPresence packet for sess.
func BuildUserPresenceFrame(sess *Session) []byte {
	info := sess.ConnectionInfo()
	stats := sess.CurrentModeStats()
	var rank uint32
	if stats != nil {
		rank = stats.Rank
	}

	w := protocol.Get()
	defer w.Put()

	w.WriteInt32(sess.UserID)
	w.WriteString(sess.Username())
	w.WriteByte(0) // utc offset placeholder, resolved by the connection shell
	w.WriteByte(geoCountryCode(info.Country))
	w.WriteByte(1) // permissions display byte, always shown
	w.WriteFloat32(info.Longitude)
	w.WriteFloat32(info.Latitude)
	w.WriteInt32(int32(rank))

	return protocol.BuildFrame(uint16(ServerUserPresence), append([]byte(nil), w.Bytes()...))
}

// geoCountryCode maps an ISO country string to the protocol's numeric geo
// id; unresolved countries map to 0 ("unknown"), matching how an absent
// geolocation collaborator degrades without blocking the presence packet.
func geoCountryCode(iso string) byte {
	if len(iso) != 2 {
		return 0
	}
	return byte((iso[0]-'A')*26 + (iso[1] - 'A') + 1)
}

// BuildChannelJoinFrame encodes the ChannelJoin(name) packet sent to the
// user who just joined.
func BuildChannelJoinFrame(name string) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteString(name)
	return protocol.BuildFrame(uint16(ServerChannelJoin), append([]byte(nil), w.Bytes()...))
}

// BuildChannelKickFrame encodes the ChannelKick(name) packet sent to a
// user who just left or was removed.
func BuildChannelKickFrame(name string) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteString(name)
	return protocol.BuildFrame(uint16(ServerChannelKick), append([]byte(nil), w.Bytes()...))
}

// BuildChannelInfoFrame encodes a ChannelInfo(name, description, count)
// update, broadcast whenever a channel's membership changes.
func BuildChannelInfoFrame(name, description string, memberCount int16) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteString(name)
	w.WriteString(description)
	w.WriteInt16(memberCount)
	return protocol.BuildFrame(uint16(ServerChannelInfo), append([]byte(nil), w.Bytes()...))
}

// BuildChannelInfoEndFrame encodes the sentinel that terminates the
// channel list in a login response.
func BuildChannelInfoEndFrame() []byte {
	return protocol.BuildFrame(uint16(ServerChannelInfoEnd), nil)
}

// BuildLogoutFrame encodes the Logout(userID) packet pushed onto a
// displaced session's queue (I3) or sent on explicit logout.
func BuildLogoutFrame(userID int32) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteInt32(userID)
	w.WriteByte(0)
	return protocol.BuildFrame(uint16(ServerLogout), append([]byte(nil), w.Bytes()...))
}

// BuildSendMessageFrame encodes a chat SendMessage packet.
func BuildSendMessageFrame(senderName string, senderID int32, target, content string) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteString(senderName)
	w.WriteString(content)
	w.WriteString(target)
	w.WriteInt32(senderID)
	return protocol.BuildFrame(uint16(ServerSendMessage), append([]byte(nil), w.Bytes()...))
}

// BuildLoginReplyFrame encodes the login-reply packet: positive user id
// on success, or a negative status code on failure.
func BuildLoginReplyFrame(userID int32) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteInt32(userID)
	return protocol.BuildFrame(uint16(ServerLoginReply), append([]byte(nil), w.Bytes()...))
}

// BuildProtocolVersionFrame encodes the server's protocol version, sent
// immediately after the login reply.
func BuildProtocolVersionFrame(version int32) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteInt32(version)
	return protocol.BuildFrame(uint16(ServerProtocolVersion), append([]byte(nil), w.Bytes()...))
}

// BuildPrivilegesFrame encodes the logged-in user's privilege bitmask.
func BuildPrivilegesFrame(privileges int64) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteInt32(int32(privileges))
	return protocol.BuildFrame(uint16(ServerPrivileges), append([]byte(nil), w.Bytes()...))
}

// BuildFriendsListFrame encodes the friends-list packet. No friends
// subsystem is implemented (see DESIGN.md); an empty slice yields a
// correctly-shaped empty list rather than omitting the frame.
func BuildFriendsListFrame(userIDs []int32) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteInt32List(userIDs)
	return protocol.BuildFrame(uint16(ServerFriendsList), append([]byte(nil), w.Bytes()...))
}

// BuildNotificationFrame encodes a server-notification text popup, used
// for the "login failed" response and similar user-facing messages.
func BuildNotificationFrame(text string) []byte {
	w := protocol.Get()
	defer w.Put()
	w.WriteString(text)
	return protocol.BuildFrame(uint16(ServerNotification), append([]byte(nil), w.Bytes()...))
}
