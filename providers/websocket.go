package providers

import (
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/orchestra-mcp/presence/src/hub"
	"github.com/valyala/fasthttp"
)

// WebSocketHandler returns the raw fasthttp handler for /ws upgrades.
// Fiber v3 does not expose *fasthttp.RequestCtx to route handlers.
func (s *Server) WebSocketHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
			return
		}
		if s.hub.Full() {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"unavailable","message":"connection limit reached"}`)
			return
		}

		clientID := uuid.New().String()
		identity := string(ctx.QueryArgs().Peek("identity"))
		tabID := string(ctx.QueryArgs().Peek("tabId"))
		userAgent := string(ctx.UserAgent())
		h := s.hub
		svc := s.service
		sock := s.cfg.Socket

		err := s.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			wc := &fasthttpConn{conn: conn, writeTimeout: sock.WriteTimeout}
			client := hub.NewClient(clientID, wc, h, sock.SendBuffer).
				WithIdentity(identity, tabID, userAgent)
			h.Register(client)

			stop := make(chan struct{})
			defer close(stop)
			wc.expectPongs(sock.PingInterval, func() { svc.KeepAlive(clientID) })
			go wc.keepAlive(sock.PingInterval, stop)
			go client.WritePump()
			client.ReadPump()
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

// fasthttpConn wraps fasthttp/websocket.Conn to satisfy types.Conn.
type fasthttpConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (f *fasthttpConn) WriteJSON(v any) error {
	if err := f.conn.SetWriteDeadline(deadline(f.writeTimeout)); err != nil {
		return err
	}
	return f.conn.WriteJSON(v)
}

func (f *fasthttpConn) ReadJSON(v any) error { return f.conn.ReadJSON(v) }
func (f *fasthttpConn) Close() error         { return f.conn.Close() }

// expectPongs arms a read deadline of two ping intervals that every pong
// extends and reports through onPong. A silent peer fails its next read and
// is torn down.
func (f *fasthttpConn) expectPongs(interval time.Duration, onPong func()) {
	if interval <= 0 {
		return
	}
	_ = f.conn.SetReadDeadline(time.Now().Add(2 * interval))
	f.conn.SetPongHandler(func(string) error {
		onPong()
		return f.conn.SetReadDeadline(time.Now().Add(2 * interval))
	})
}

// keepAlive pings the peer every interval until stop closes.
func (f *fasthttpConn) keepAlive(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := f.conn.WriteControl(websocket.PingMessage, nil, deadline(f.writeTimeout)); err != nil {
				return
			}
		}
	}
}
