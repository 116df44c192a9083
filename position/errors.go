package position

import "errors"

var (
	// ErrInvalidOrder wraps every buy/sell validation failure. The store is
	// left untouched when it is returned.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNotFound is returned when a sell or close names no open position.
	ErrNotFound = errors.New("position not found")
)
