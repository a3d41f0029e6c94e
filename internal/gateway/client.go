package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tenant-console/internal/auth"
	"tenant-console/pkg/logger"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Identity headers for endpoints scoped by the acting user rather than the addressed resource.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderTenantID  = "X-Tenant-Id"
)

// Credentials is the session as seen by the gateway. The session package implements it.
type Credentials interface {
	AccessToken() string
	Current() (auth.Identity, bool)
	// Expire tears the session down after a backend rejected the credential `rejected`.
	Expire(ctx context.Context, rejected string)
}

// Service selects which backend a call goes to.
type Service int

const (
	AuthService Service = iota
	TenantService
	MemberService
	ProjectService
)

// Actor selects which identity headers a call carries.
type Actor uint8

const (
	ActorUserID Actor = 1 << iota
	ActorEmail
)

// Call describes one request. Identity headers are filled from the bound credentials,
// never from the caller, so every call site sends the same identity.
type Call struct {
	Op      string
	Service Service
	Method  string
	Path    string
	Query   map[string]string
	Body    any

	// Public calls carry no credential (login, register).
	Public   bool
	Actor    Actor
	TenantID string
}

type Config struct {
	AuthURL     string
	TenantsURL  string
	MembersURL  string
	ProjectsURL string
	Timeout     time.Duration
}

// Client is the single path from the console to the backing services.
// It never retries; a rejected credential tears the session down exactly once per response.
type Client struct {
	http  *resty.Client
	bases map[Service]string
	log   *slog.Logger

	mu    sync.RWMutex
	creds Credentials
}

func New(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		bases: map[Service]string{
			AuthService:    strings.TrimRight(cfg.AuthURL, "/"),
			TenantService:  strings.TrimRight(cfg.TenantsURL, "/"),
			MemberService:  strings.TrimRight(cfg.MembersURL, "/"),
			ProjectService: strings.TrimRight(cfg.ProjectsURL, "/"),
		},
		log: log,
	}

	c.http = resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if r.Header.Get(logger.HeaderRequestID) == "" {
				r.SetHeader(logger.HeaderRequestID, uuid.NewString())
			}
			return nil
		}).
		OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			c.afterResponse(r)
			return nil
		})
	return c
}

// Bind attaches the session whose credential is sent on authenticated calls.
func (c *Client) Bind(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

func (c *Client) credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// afterResponse is the only place that reacts to a rejected credential.
func (c *Client) afterResponse(r *resty.Response) {
	req := r.Request
	c.log.Debug("gateway call",
		"method", req.Method,
		"url", req.URL,
		"status", r.StatusCode(),
		"duration_ms", r.Time().Milliseconds(),
		"request_id", req.Header.Get(logger.HeaderRequestID),
	)

	if r.StatusCode() != http.StatusUnauthorized || req.Token == "" {
		return
	}
	creds := c.credentials()
	if creds == nil {
		return
	}
	c.log.Warn("credential rejected, ending session", "url", req.URL)
	creds.Expire(context.WithoutCancel(req.Context()), req.Token)
}

// Do performs call and decodes a JSON success body into out (which may be nil).
func (c *Client) Do(ctx context.Context, call Call, out any) error {
	base, ok := c.bases[call.Service]
	if !ok || base == "" {
		return fmt.Errorf("%s: no base url for service %d", call.Op, call.Service)
	}

	r := c.http.R().SetContext(ctx)
	if !call.Public {
		creds := c.credentials()
		if creds == nil {
			return fmt.Errorf("%s: %w", call.Op, ErrNoSession)
		}
		id, ok := creds.Current()
		token := creds.AccessToken()
		if !ok || token == "" {
			return fmt.Errorf("%s: %w", call.Op, ErrNoSession)
		}
		r.SetAuthToken(token)
		if call.Actor&ActorUserID != 0 {
			r.SetHeader(HeaderUserID, id.UserID)
		}
		if call.Actor&ActorEmail != 0 {
			r.SetHeader(HeaderUserEmail, id.Email)
		}
	}
	if call.TenantID != "" {
		r.SetHeader(HeaderTenantID, call.TenantID)
	}
	if len(call.Query) > 0 {
		r.SetQueryParams(call.Query)
	}
	if call.Body != nil {
		r.SetBody(call.Body)
	}

	resp, err := r.Execute(call.Method, base+call.Path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", call.Op, ctxErr)
		}
		return &TransportError{Op: call.Op, Err: err}
	}

	if resp.StatusCode() == http.StatusUnauthorized && !call.Public {
		return fmt.Errorf("%s: %w", call.Op, ErrSessionExpired)
	}
	if resp.IsError() {
		return &APIError{Op: call.Op, StatusCode: resp.StatusCode(), Message: errorMessage(resp.Body())}
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &TransportError{Op: call.Op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// IsSessionExpired reports whether err came from a rejected credential.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
