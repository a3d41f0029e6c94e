// Package callback receives the OAuth provider's redirect on a loopback port.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"tenant-console/internal/auth"
	"tenant-console/internal/session"
	"tenant-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

const Path = "/oauth2/callback"

// ErrTimeout is returned when no redirect arrived in time.
var ErrTimeout = errors.New("timed out waiting for the oauth redirect")

type Completer interface {
	CompleteOAuthCallback(ctx context.Context, p session.CallbackParams) (auth.Identity, error)
}

// Outcome is the result of one redirect.
type Outcome struct {
	Identity auth.Identity
	Err      error
}

type Handler struct {
	comp     Completer
	log      *slog.Logger
	outcomes chan Outcome
	claimed  atomic.Bool
}

func NewHandler(comp Completer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{comp: comp, log: log, outcomes: make(chan Outcome, 1)}
}

// Outcomes delivers the first redirect's result. Later redirects are refused with 409
// and never reach the session.
func (h *Handler) Outcomes() <-chan Outcome { return h.outcomes }

func (h *Handler) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(h.log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET(Path, h.complete)
	return r
}

func (h *Handler) complete(c *gin.Context) {
	if !h.claimed.CompareAndSwap(false, true) {
		h.log.Warn("ignoring repeated oauth redirect")
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "sign-in was already handled, return to the terminal"})
		return
	}
	params := session.ParseCallback(c.Request.URL.Query())
	id, err := h.comp.CompleteOAuthCallback(c.Request.Context(), params)
	h.publish(Outcome{Identity: id, Err: err})

	if err != nil {
		_ = c.Error(err)
		var authErr *session.AuthError
		switch {
		case session.IsInvalidToken(err):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "the identity provider returned an unusable token"})
		case errors.As(err, &authErr):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": authErr.Message})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not complete sign-in"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "authenticated",
		"email":   id.Email,
		"message": "You can close this window and return to the terminal.",
	})
}

func (h *Handler) publish(o Outcome) {
	select {
	case h.outcomes <- o:
	default:
	}
}

// Serve answers redirects on ln until the first one arrives, ctx ends, or timeout passes.
// The listener is closed before Serve returns.
func (h *Handler) Serve(ctx context.Context, ln net.Listener, timeout time.Duration) (auth.Identity, error) {
	srv := &http.Server{
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	served := make(chan error, 1)
	go func() {
		h.log.Info("oauth callback listening", "addr", ln.Addr().String())
		served <- srv.Serve(ln)
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			h.log.Error("callback shutdown failed", "err", err)
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-h.outcomes:
		return o.Identity, o.Err
	case err := <-served:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return auth.Identity{}, fmt.Errorf("callback server: %w", err)
		}
		return auth.Identity{}, errors.New("callback server stopped")
	case <-timer.C:
		return auth.Identity{}, ErrTimeout
	case <-ctx.Done():
		return auth.Identity{}, ctx.Err()
	}
}
