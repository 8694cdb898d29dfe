package service

import (
	"errors"

	"github.com/orchestra-mcp/presence/src/freeze"
)

var (
	ErrInvalidRoom          = errors.New("invalid room")
	ErrUnknownTransport     = errors.New("unknown transport")
	ErrUnknownControlAction = errors.New("unknown control action")

	// ErrUnauthorized is returned for a missing or wrong admin key.
	ErrUnauthorized = freeze.ErrUnauthorized
)
