package domain

import "errors"

// Core accounting errors. Callers check these with errors.Is; the concrete
// error values carry the offending payload via %w wrapping.
var (
	// ErrInvalidOrder marks a malformed fill (non-positive amount/rate,
	// unknown side). The trade is left untouched; retrying the same payload
	// is pointless.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrDirectionConflict marks an attempt to flip the direction of a trade
	// after the first fill has fixed it.
	ErrDirectionConflict = errors.New("trade direction already set")

	// ErrUnknownInterestMode marks an interest computation on a borrowed
	// amount whose mode has no configured period policy. Guessing a policy
	// would silently misprice the position, so processing stops.
	ErrUnknownInterestMode = errors.New("no period policy for interest mode")
)
