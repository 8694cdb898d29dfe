package presence

import "errors"

var (
	ErrUnknownIdentity       = errors.New("unknown identity")
	ErrRegistryInconsistency = errors.New("registry inconsistency")
)
