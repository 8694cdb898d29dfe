package providers

import (
	"context"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/presence/config"
	"github.com/orchestra-mcp/presence/src/bridge"
	"github.com/orchestra-mcp/presence/src/hub"
	"github.com/orchestra-mcp/presence/src/service"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Server owns the hub, the service and the HTTP surface of one instance.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	service  *service.Service
	bridge   bridge.Bridge
	app      *fiber.App
	http     *fasthttp.Server
	upgrader websocket.FastHTTPUpgrader
	logger   zerolog.Logger

	// done ends open push streams on shutdown.
	done chan struct{}
}

// NewServer builds an instance from cfg. Nothing runs until Activate.
func NewServer(cfg *config.Config, logger zerolog.Logger) *Server {
	h := hub.New(cfg.Socket.MaxConnections, logger)
	s := &Server{
		cfg:     cfg,
		hub:     h,
		service: service.New(cfg, h, logger),
		app:     fiber.New(),
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  cfg.Socket.ReadBufferSize,
			WriteBufferSize: cfg.Socket.WriteBufferSize,
		},
		logger: logger.With().Str("component", "server").Logger(),
		done:   make(chan struct{}),
	}
	s.RegisterRoutes(s.app)
	s.http = &fasthttp.Server{
		Name:         "presenced",
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Service exposes the state container.
func (s *Server) Service() *service.Service { return s.service }

// App exposes the fiber application serving the JSON routes.
func (s *Server) App() *fiber.App { return s.app }

// Handler routes the two long-lived endpoints to raw fasthttp handlers and
// everything else to fiber.
func (s *Server) Handler() fasthttp.RequestHandler {
	routes := s.app.Handler()
	ws := s.WebSocketHandler()
	sse := s.StreamHandler()
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/ws":
			ws(ctx)
		case "/stream":
			sse(ctx)
		default:
			routes(ctx)
		}
	}
}

// Activate starts the hub loop, the janitor and, when enabled, the Redis
// relay. A relay that cannot connect leaves the instance standalone.
func (s *Server) Activate(ctx context.Context) {
	go s.hub.Run()
	go s.service.RunJanitor(ctx)
	if s.cfg.Redis.Enabled {
		s.initBridge()
	}
	s.logger.Info().Str("addr", s.cfg.Server.Addr).Msg("presence server activated")
}

func (s *Server) initBridge() {
	rb := bridge.NewRedisBridge(s.cfg.Redis, s.service, s.logger)
	if err := rb.Start(); err != nil {
		s.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		return
	}
	s.bridge = rb
	s.service.AttachRelay(rb)
	s.logger.Info().Str("redis_addr", s.cfg.Redis.Addr).Msg("redis bridge connected")
}

// ListenAndServe blocks serving HTTP on the configured address.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe(s.cfg.Server.Addr)
}

// Deactivate ends streams, stops accepting requests, then stops the relay
// and the hub.
func (s *Server) Deactivate(ctx context.Context) error {
	close(s.done)
	err := s.http.ShutdownWithContext(ctx)
	if s.bridge != nil {
		if berr := s.bridge.Stop(); berr != nil {
			s.logger.Error().Err(berr).Msg("bridge stop error")
		}
		s.bridge = nil
	}
	s.hub.Stop()
	s.logger.Info().Msg("presence server stopped")
	return err
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
