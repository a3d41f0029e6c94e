package session

import (
	"errors"
	"fmt"

	"tenant-console/internal/gateway"
)

// AuthError is a credential rejected by the auth service (bad password, duplicate email, ...)
// or an OAuth callback that reported failure. Message is safe to show to the user.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// authError maps a gateway failure of a session-establishing call.
// Transport failures pass through unchanged so callers can tell "rejected" from "unreachable".
func authError(op, fallback string, err error) error {
	var te *gateway.TransportError
	if errors.As(err, &te) {
		return err
	}
	msg := fallback
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return &AuthError{Op: op, Message: msg, Err: err}
}
