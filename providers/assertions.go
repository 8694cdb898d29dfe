package providers

import (
	"github.com/orchestra-mcp/presence/src/bridge"
	"github.com/orchestra-mcp/presence/src/broadcast"
	"github.com/orchestra-mcp/presence/src/freeze"
	"github.com/orchestra-mcp/presence/src/hub"
	"github.com/orchestra-mcp/presence/src/presence"
	"github.com/orchestra-mcp/presence/src/rooms"
	"github.com/orchestra-mcp/presence/src/service"
	"github.com/orchestra-mcp/presence/src/stream"
)

// Compile-time interface assertions.
var (
	_ broadcast.Pusher    = (*hub.Hub)(nil)
	_ broadcast.Pusher    = (*stream.Adapter)(nil)
	_ broadcast.Members   = (*rooms.Index)(nil)
	_ broadcast.Relay     = (*bridge.RedisBridge)(nil)
	_ bridge.Bridge       = (*bridge.RedisBridge)(nil)
	_ bridge.Target       = (*service.Service)(nil)
	_ presence.RoomLeaver = (*service.Service)(nil)
	_ freeze.Notifier     = (*service.Service)(nil)
)
