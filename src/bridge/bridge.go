package bridge

import "github.com/orchestra-mcp/presence/src/types"

// Bridge defines the interface for cross-instance event relay.
// Delivery across instances is best effort; nothing here makes the
// per-process state linearizable.
type Bridge interface {
	// Publish sends an event to all other instances via the bridge.
	Publish(ev types.BroadcastEvent) error

	// Start begins listening for events from other instances.
	Start() error

	// Stop shuts down the bridge connection.
	Stop() error

	// Available reports whether the bridge is connected and operational.
	Available() bool
}

// Target is implemented by the service to receive relayed events. It must
// deliver locally without relaying again.
type Target interface {
	ApplyRemote(ev types.BroadcastEvent)
}
