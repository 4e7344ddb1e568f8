package chat

import (
	"errors"
	"time"
)

// ErrChannelNotExists mirrors bancho.KindChannelNotExists for callers that
// only depend on this package (e.g. the registry's ChannelAppender arm).
var ErrChannelNotExists = errors.New("ChannelNotExists: channel not found")

func nowNanos() int64 {
	return time.Now().UnixNano()
}
