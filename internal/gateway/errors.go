package gateway

import (
	"errors"
	"fmt"
)

// Errors the rest of the storefront is allowed to see. Raw transport and
// status-code errors are normalized into these at the gateway boundary so
// business logic never branches on HTTP details.
var (
	// ErrValidation covers bad input the server rejected. Not retried; shown
	// to the user for correction.
	ErrValidation = errors.New("validation failed")

	// ErrSeatConflict means another booking took one of the requested seats.
	// The caller should re-prompt seat selection, not retry blindly.
	ErrSeatConflict = errors.New("seat already reserved")

	// ErrForbidden means the server rejected a credential that is not expired
	// by local inspection. A permission problem, not a session problem: no
	// refresh, no logout.
	ErrForbidden = errors.New("access denied")

	// ErrNotFound covers missing orders/bookings/references.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable covers network failures and server errors. Safe to
	// retry later.
	ErrUnavailable = errors.New("service temporarily unavailable")
)

// errorBody is the core API's error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError carries the server's own code and message alongside the taxonomy
// sentinel it unwraps to.
type APIError struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

func (e *APIError) Unwrap() error {
	return e.kind
}
