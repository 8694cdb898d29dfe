package providers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/presence/src/service"
	"github.com/orchestra-mcp/presence/src/types"
)

// RegisterRoutes registers the JSON routes. /ws and /stream are served by
// raw fasthttp handlers, see Handler.
func (s *Server) RegisterRoutes(group fiber.Router) {
	group.Get("/healthz", s.handleHealth)
	group.Get("/ws/info", s.handleInfo)
	group.Get("/api/rooms", s.handleRooms)
	group.Get("/api/snapshot", s.handleSnapshot)
	group.Post("/api/presence", s.handlePresence)
	group.Post("/api/control", s.handleControl)
}

type controlRequest struct {
	Key     string                `json:"key"`
	Action  service.ControlAction `json:"action"`
	EventID string                `json:"eventId,omitempty"`
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handlePresence(c fiber.Ctx) error {
	var req types.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed", "message": err.Error()})
	}
	res, err := s.service.HandleRequest(req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleSnapshot(c fiber.Ctx) error {
	snap := s.service.Snapshot(c.Query("eventId"), c.Query("challengeId"), parseSince(c.Query("since")))
	return c.JSON(snap)
}

func (s *Server) handleControl(c fiber.Ctx) error {
	var req controlRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed", "message": err.Error()})
	}
	res, err := s.service.Control(req.Key, req.Action, req.EventID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// writeError maps service errors to HTTP. Unauthorized callers get the
// same 404 as an unknown route.
func writeError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	case service.IsMalformed(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed", "message": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": err.Error()})
}
