package broadcast

import "errors"

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrDeliveryFailed = errors.New("delivery failed for every member")
)
