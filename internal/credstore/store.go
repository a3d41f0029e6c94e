package credstore

import (
	"context"
	"errors"
)

// Persisted keys. Only the session package writes them.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("credential store closed")

// Store is a string-valued key/value store for client credentials.
// Set writes all values or none.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
