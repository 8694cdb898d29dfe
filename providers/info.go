package providers

import "github.com/gofiber/fiber/v3"

func (s *Server) handleInfo(c fiber.Ctx) error {
	info := s.service.Info()
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  "/ws",
		"stream":    "/stream",
		"online":    info.Online,
		"clients":   info.Clients,
		"sockets":   info.Sockets,
		"streams":   info.Streams,
		"rooms":     len(info.Rooms),
	})
}

// handleRooms lists rooms with their member counts and buffered events.
func (s *Server) handleRooms(c fiber.Ctx) error {
	info := s.service.Info()
	rooms := make([]fiber.Map, 0, len(info.Rooms))
	for id, n := range info.Rooms {
		rooms = append(rooms, fiber.Map{"room": id, "members": n, "buffered": info.Buffered[id]})
	}
	return c.JSON(fiber.Map{"rooms": rooms, "count": len(rooms)})
}
