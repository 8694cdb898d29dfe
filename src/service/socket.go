package service

import (
	"errors"
	"time"

	"github.com/orchestra-mcp/presence/src/broadcast"
	"github.com/orchestra-mcp/presence/src/types"
)

// HandleSocket executes a frame received on a persistent channel. The
// socket itself is the transport, so any transportId in the frame is
// replaced by the client id. Every frame counts as activity of the socket's
// identity; heartbeats and disconnects manage that themselves.
func (s *Service) HandleSocket(clientID string, req types.Request) types.Message {
	req.TransportID = clientID
	switch req.Action {
	case "connect", "heartbeat", "disconnect":
	default:
		s.registry.Touch(clientID)
	}
	res, err := s.HandleRequest(req)
	if err != nil {
		s.logger.Debug().Err(err).Str("client_id", clientID).Str("action", req.Action).Msg("socket request failed")
		return types.Message{
			Event: types.NoticeError,
			Data: map[string]any{
				"action": req.Action,
				"code":   errorCode(err),
				"error":  err.Error(),
			},
			Timestamp: time.Now(),
		}
	}
	return types.Message{
		Event:     types.NoticeAck,
		Room:      req.RoomID,
		Data:      map[string]any{"action": req.Action, "result": res},
		Timestamp: time.Now(),
	}
}

// errorCode names the failure class of err for clients.
func errorCode(err error) string {
	switch {
	case IsMalformed(err):
		return "malformed"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, broadcast.ErrDeliveryFailed):
		return "delivery_failed"
	}
	return "internal"
}

// IsMalformed reports whether err was caused by a bad request.
func IsMalformed(err error) bool {
	return errors.Is(err, types.ErrUnknownAction) ||
		errors.Is(err, types.ErrMissingField) ||
		errors.Is(err, broadcast.ErrMalformedEvent) ||
		errors.Is(err, ErrInvalidRoom) ||
		errors.Is(err, ErrUnknownTransport) ||
		errors.Is(err, ErrUnknownControlAction)
}
