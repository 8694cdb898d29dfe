package hub

import (
	"sync"

	"github.com/orchestra-mcp/presence/src/types"
	"github.com/rs/zerolog"
)

// RequestHandler executes an inbound frame for a client and returns the
// reply frame.
type RequestHandler func(clientID string, req types.Request) types.Message

// Hub owns the WebSocket clients of this process. Room membership lives in
// the shared index; the hub only delivers.
type Hub struct {
	clients    map[string]*Client
	maxClients int

	register   chan *Client
	unregister chan *Client
	incoming   chan inbound

	handler   RequestHandler
	onConnect []func(string)
	onDisconn []func(string)

	mu     sync.RWMutex
	logger zerolog.Logger
	done   chan struct{}
	once   sync.Once
}

type inbound struct {
	clientID string
	req      types.Request
}

// New creates a new Hub instance. maxClients <= 0 means unlimited.
func New(maxClients int, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		maxClients: maxClients,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan inbound, 256),
		logger:     logger.With().Str("component", "hub").Logger(),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.incoming:
			h.handleRequest(in)
		case <-h.done:
			return
		}
	}
}

// Stop halts the hub event loop.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Register queues a client for registration.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Full reports whether the connection cap is reached. Registration is
// asynchronous, so concurrent upgrades that all pass this check can push
// the count slightly past the cap; treat it as a soft limit.
func (h *Hub) Full() bool {
	if h.maxClients <= 0 {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) >= h.maxClients
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	callbacks := h.onConnect
	h.mu.Unlock()

	h.logger.Info().Str("client_id", c.ID).Str("identity", c.Identity).Msg("client registered")

	for _, cb := range callbacks {
		cb(c.ID)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.ID]; !ok || cur != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	callbacks := h.onDisconn
	h.mu.Unlock()

	c.Close()
	h.logger.Info().Str("client_id", c.ID).Msg("client unregistered")

	for _, cb := range callbacks {
		cb(c.ID)
	}
}

func (h *Hub) handleRequest(in inbound) {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()

	if handler == nil {
		h.logger.Debug().Str("action", in.req.Action).Msg("no handler")
		return
	}
	reply := handler(in.clientID, in.req)
	if err := h.SendToClient(in.clientID, reply); err != nil {
		h.logger.Debug().Err(err).Str("client_id", in.clientID).Msg("reply dropped")
	}
}
