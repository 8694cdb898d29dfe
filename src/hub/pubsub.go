package hub

import (
	"fmt"

	"github.com/orchestra-mcp/presence/src/types"
)

// Push delivers a broadcast event to one client. It satisfies
// broadcast.Pusher.
func (h *Hub) Push(clientID string, ev types.BroadcastEvent) error {
	return h.SendToClient(clientID, types.EventMessage(ev))
}

// Notify delivers an ephemeral notice to one client.
func (h *Hub) Notify(clientID string, n types.Notice) error {
	return h.SendToClient(clientID, types.NoticeMessage(n))
}

// SendToClient sends a message directly to a specific client.
func (h *Hub) SendToClient(clientID string, msg types.Message) error {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	if err := client.enqueue(msg); err != nil {
		return fmt.Errorf("client %s: %w", clientID, err)
	}
	return nil
}

// Disconnect closes a client's socket, e.g. after its identity was swept.
func (h *Hub) Disconnect(clientID string) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	client.conn.Close()
	return true
}
