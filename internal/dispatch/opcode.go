// Package dispatch maps inbound client frames to session/chat service
// operations via an opcode-keyed table, per the design note favoring a
// table over a growing conditional tree.
package dispatch

// ClientOpcode enumerates the inbound frame kinds dispatch understands.
// Numeric assignments follow the game client's published protocol and
// are outside this core's design discretion; the values below are
// internally consistent placeholders for that externally-fixed set.
type ClientOpcode uint16

const (
	OpChangeAction               ClientOpcode = 0
	OpSendPublicMessage          ClientOpcode = 1
	OpLogout                     ClientOpcode = 2
	OpRequestStatusUpdate        ClientOpcode = 3
	OpPing                       ClientOpcode = 4
	OpSendPrivateMessage         ClientOpcode = 25
	OpChannelJoin                ClientOpcode = 63
	OpChannelPart                ClientOpcode = 78
	OpReceiveUpdates             ClientOpcode = 79
	OpPresenceRequestAll         ClientOpcode = 83
	OpToggleBlockNonFriendDMs    ClientOpcode = 87
	OpPresenceRequest            ClientOpcode = 97
	OpStatsRequest               ClientOpcode = 99
)
