// Package hubtest provides an in-memory types.Conn for socket tests.
package hubtest

import (
	"errors"
	"sync"

	"github.com/orchestra-mcp/presence/src/types"
)

// ErrClosed is returned by reads after Close.
var ErrClosed = errors.New("connection closed")

// Conn implements types.Conn without a real WebSocket. Frames queued with
// Send are returned by ReadJSON; everything written is recorded.
type Conn struct {
	mu       sync.Mutex
	written  []types.Message
	readCh   chan types.Request
	closed   bool
	closedCh chan struct{}
}

func NewConn() *Conn {
	return &Conn{
		readCh:   make(chan types.Request, 16),
		closedCh: make(chan struct{}),
	}
}

// Send queues an inbound frame.
func (c *Conn) Send(req types.Request) { c.readCh <- req }

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if msg, ok := v.(types.Message); ok {
		c.written = append(c.written, msg)
	}
	return nil
}

func (c *Conn) ReadJSON(v any) error {
	select {
	case req := <-c.readCh:
		if ptr, ok := v.(*types.Request); ok {
			*ptr = req
		}
		return nil
	case <-c.closedCh:
		return ErrClosed
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Written returns a copy of every frame written so far.
func (c *Conn) Written() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Message(nil), c.written...)
}

// Events returns the written frames named event.
func (c *Conn) Events(event string) []types.Message {
	var out []types.Message
	for _, m := range c.Written() {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}
