// Package gatewaytest wires a gateway.Client to an httptest server and a fake session.
package gatewaytest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tenant-console/internal/auth"
	"tenant-console/internal/gateway"
	"tenant-console/pkg/logger"
)

// Creds is an in-memory gateway.Credentials.
type Creds struct {
	mu      sync.Mutex
	token   string
	id      auth.Identity
	live    bool
	expired int
}

func NewCreds(token string, id auth.Identity) *Creds {
	return &Creds{token: token, id: id, live: true}
}

func (c *Creds) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Creds) Current() (auth.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, c.live
}

func (c *Creds) Expire(_ context.Context, rejected string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rejected != c.token {
		return
	}
	c.expired++
	c.live = false
	c.token = ""
}

// Expired counts teardowns.
func (c *Creds) Expired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// NewClient points every service at one test server and binds a live session for
// user u-42 / a@b.com.
func NewClient(t testing.TB, h http.Handler) (*gateway.Client, *Creds) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := gateway.New(gateway.Config{
		AuthURL:     srv.URL,
		TenantsURL:  srv.URL,
		MembersURL:  srv.URL,
		ProjectsURL: srv.URL,
		Timeout:     5 * time.Second,
	}, logger.Discard())
	creds := NewCreds("tok-1", auth.Identity{UserID: "u-42", Email: "a@b.com"})
	c.Bind(creds)
	return c, creds
}
