package invitation

import (
	"errors"
	"net/http"

	"tenant-console/internal/gateway"
)

var (
	ErrExpired         = errors.New("invitation expired")
	ErrAlreadyResolved = errors.New("invitation already resolved")
	ErrEmailMismatch   = errors.New("invitation is addressed to a different email")
	ErrNotFound        = errors.New("invitation not found")
)

// remoteError maps a tenant-service rejection onto the invitation taxonomy.
// The second result is false for anything it does not recognize.
func remoteError(err error) (error, bool) {
	switch gateway.StatusCode(err) {
	case http.StatusConflict:
		return ErrAlreadyResolved, true
	case http.StatusGone:
		return ErrExpired, true
	case http.StatusNotFound:
		return ErrNotFound, true
	case http.StatusForbidden:
		return ErrEmailMismatch, true
	default:
		return err, false
	}
}
