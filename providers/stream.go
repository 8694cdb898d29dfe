package providers

import (
	"bufio"
	"strconv"
	"time"

	"github.com/orchestra-mcp/presence/src/stream"
	"github.com/valyala/fasthttp"
)

// StreamHandler returns the raw fasthttp handler for /stream. The response
// is a server-sent event stream: a connection frame, the room's buffered
// events, then live events with a ping comment every heartbeat interval.
func (s *Server) StreamHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		args := ctx.QueryArgs()
		sess, err := s.service.OpenStream(
			string(args.Peek("identity")),
			string(args.Peek("tabId")),
			string(args.Peek("roomId")),
			parseSince(string(args.Peek("since"))),
		)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"malformed","message":"roomId must name a team_ or challenge_ room"}`)
			return
		}

		ctx.SetContentType("text/event-stream")
		ctx.Response.Header.Set("Cache-Control", "no-cache")
		ctx.Response.Header.Set("Connection", "keep-alive")
		ctx.Response.Header.Set("X-Accel-Buffering", "no")

		svc := s.service
		done := s.done
		interval := s.cfg.Stream.HeartbeatInterval
		logger := s.logger.With().Str("stream_id", sess.Sub.ID).Logger()

		ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
			defer svc.CloseStream(sess.Sub.ID)

			hello := stream.ConnectionFrame{Type: "connection", ClientID: sess.Sub.ID, Identity: sess.Identity}
			if err := stream.WriteFrame(w, hello); err != nil {
				return
			}
			for _, ev := range sess.Replay {
				if err := stream.WriteFrame(w, ev); err != nil {
					return
				}
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case ev := <-sess.Sub.Events:
					if err := stream.WriteFrame(w, ev); err != nil {
						logger.Debug().Err(err).Msg("stream client gone")
						return
					}
				case <-ticker.C:
					if err := stream.WriteComment(w, "ping"); err != nil {
						logger.Debug().Err(err).Msg("stream client gone")
						return
					}
					if !svc.KeepAlive(sess.Sub.ID) {
						return
					}
				case <-sess.Sub.Done():
					return
				case <-done:
					return
				}
			}
		})
	}
}

// parseSince reads a unix-millisecond cursor; anything else means "all".
func parseSince(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
