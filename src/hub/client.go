package hub

import (
	"sync"
	"time"

	"github.com/orchestra-mcp/presence/src/types"
)

// Client wraps a WebSocket connection and manages message flow.
type Client struct {
	ID       string
	Identity string
	TabID    string

	conn        types.Conn
	hub         *Hub
	Send        chan types.Message
	connectedAt time.Time
	userAgent   string
	mu          sync.Mutex
	done        chan struct{}
	closed      bool
}

// NewClient creates a new WebSocket client wrapper. sendBuffer <= 0
// defaults to 256.
func NewClient(id string, conn types.Conn, h *Hub, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		ID:          id,
		conn:        conn,
		hub:         h,
		Send:        make(chan types.Message, sendBuffer),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// WithIdentity records who opened the socket and from which tab.
func (c *Client) WithIdentity(identity, tabID, userAgent string) *Client {
	c.Identity = identity
	c.TabID = tabID
	c.userAgent = userAgent
	return c
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	return types.ClientInfo{
		ID:          c.ID,
		Identity:    c.Identity,
		ConnectedAt: c.connectedAt,
		UserAgent:   c.userAgent,
	}
}

// ReadPump reads request frames from the WebSocket and routes them to the
// hub. It returns when the connection fails, unregistering the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		var req types.Request
		if err := c.conn.ReadJSON(&req); err != nil {
			return
		}
		select {
		case c.hub.incoming <- inbound{clientID: c.ID, req: req}:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// enqueue performs a non-blocking send unless the client is closed.
func (c *Client) enqueue(msg types.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientNotFound
	}
	select {
	case c.Send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}
