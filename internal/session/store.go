package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"tenant-console/internal/audit"
	"tenant-console/internal/auth"
	"tenant-console/internal/credstore"
	"tenant-console/internal/gateway"
	"tenant-console/internal/rbac"
	"tenant-console/pkg/fsm"
	"tenant-console/pkg/logger"
)

type State string

const (
	Unauthenticated State = "unauthenticated"
	Authenticating  State = "authenticating"
	Authenticated   State = "authenticated"
)

// Reason says why a session ended.
type Reason string

const (
	ReasonLogout  Reason = "logout"
	ReasonExpired Reason = "expired"
)

// Authenticator performs the credential exchanges. gateway.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (gateway.TokenPair, error)
	Register(ctx context.Context, email, password, role string) (gateway.TokenPair, error)
}

// CallbackParams are the query parameters of an OAuth redirect.
type CallbackParams struct {
	Token        string
	RefreshToken string
	Error        string
}

// ParseCallback reads token, refreshToken and error from a redirect query.
func ParseCallback(q url.Values) CallbackParams {
	return CallbackParams{
		Token:        strings.TrimSpace(q.Get("token")),
		RefreshToken: strings.TrimSpace(q.Get("refreshToken")),
		Error:        strings.TrimSpace(q.Get("error")),
	}
}

type Option func(*Store)

func WithAudit(a *audit.Service) Option {
	return func(s *Store) { s.audit = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store owns the live session and is the only writer of the credential store.
//
// Session-establishing operations and teardown are serialized by mu; a decode failure
// or a failed exchange never writes credentials.
type Store struct {
	mu    sync.Mutex
	state *fsm.Machine[State]
	creds credstore.Store
	api   Authenticator
	audit *audit.Service
	log   *slog.Logger

	idMu     sync.RWMutex
	identity auth.Identity
	token    string
	refresh  string
	live     bool

	listenersMu sync.Mutex
	listeners   []func(Reason)
}

func NewStore(creds credstore.Store, api Authenticator, opts ...Option) *Store {
	s := &Store{
		state: fsm.New(Unauthenticated).
			Allow(Unauthenticated, Authenticating, Authenticated).
			Allow(Authenticating, Authenticated, Unauthenticated).
			Allow(Authenticated, Authenticating, Unauthenticated),
		creds: creds,
		api:   api,
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.state.OnTransition(func(from, to State) {
		s.log.Debug("session state", "from", from, "to", to)
	})
	return s
}

// OnTeardown registers fn to run after a session ends. fn runs outside the store's locks.
func (s *Store) OnTeardown(fn func(Reason)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) State() State { return s.state.Current() }

// Current returns the live identity.
func (s *Store) Current() (auth.Identity, bool) {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	return s.identity, s.live
}

func (s *Store) AccessToken() string {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	return s.token
}

func (s *Store) RefreshToken() string {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	return s.refresh
}

// Restore rebuilds the session from persisted credentials without contacting the network.
// An undecodable token is discarded together with its refresh token.
func (s *Store) Restore(ctx context.Context) (auth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.Current(); ok {
		return id, true
	}

	tok, ok, err := s.creds.Get(ctx, credstore.KeyToken)
	if err != nil {
		s.log.Warn("restore: read token failed", "err", err)
		return auth.Identity{}, false
	}
	if !ok || tok == "" {
		return auth.Identity{}, false
	}

	claims, err := auth.Decode(tok)
	if err != nil {
		s.log.Warn("restore: discarding stored token", "err", err)
		if err := s.creds.Delete(ctx, credstore.KeyToken, credstore.KeyRefreshToken); err != nil {
			s.log.Error("restore: discard failed", "err", err)
		}
		return auth.Identity{}, false
	}
	refresh, _, err := s.creds.Get(ctx, credstore.KeyRefreshToken)
	if err != nil {
		s.log.Warn("restore: read refresh token failed", "err", err)
	}

	id := claims.Identity()
	s.setIdentity(id, tok, refresh)
	s.transition(Authenticated)
	s.audit.Record(ctx, audit.Event{Type: audit.EventSessionEstablished, UserID: id.UserID, Email: id.Email, Message: "restored"})
	return id, true
}

// Login exchanges credentials for a token pair and establishes the session.
func (s *Store) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return auth.Identity{}, &AuthError{Op: "login", Message: "email and password are required"}
	}
	return s.exchange(ctx, "login", func() (gateway.TokenPair, error) {
		pair, err := s.api.Login(ctx, email, password)
		if err != nil {
			return pair, authError("login", "Login failed", err)
		}
		return pair, nil
	})
}

// Register creates an account and establishes the session. role defaults to USER.
func (s *Store) Register(ctx context.Context, email, password, role string) (auth.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return auth.Identity{}, &AuthError{Op: "register", Message: "email and password are required"}
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		role = rbac.GlobalUser
	}
	if !rbac.ValidGlobalRole(role) {
		return auth.Identity{}, &AuthError{Op: "register", Message: fmt.Sprintf("unsupported role %q", role)}
	}
	return s.exchange(ctx, "register", func() (gateway.TokenPair, error) {
		pair, err := s.api.Register(ctx, email, password, role)
		if err != nil {
			return pair, authError("register", "Registration failed", err)
		}
		return pair, nil
	})
}

// CompleteOAuthCallback establishes the session from an OAuth redirect.
// The token goes through the same validation as Login.
func (s *Store) CompleteOAuthCallback(ctx context.Context, p CallbackParams) (auth.Identity, error) {
	if p.Error != "" {
		return auth.Identity{}, &AuthError{Op: "oauth", Message: "authentication failed: " + p.Error}
	}
	if p.Token == "" {
		return auth.Identity{}, &AuthError{Op: "oauth", Message: "no authentication token received from server"}
	}
	return s.exchange(ctx, "oauth", func() (gateway.TokenPair, error) {
		return gateway.TokenPair{Token: p.Token, RefreshToken: p.RefreshToken}, nil
	})
}

func (s *Store) exchange(ctx context.Context, op string, obtain func() (gateway.TokenPair, error)) (auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.state.Transition(Authenticating); err != nil {
		return auth.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := obtain()
	if err != nil {
		s.settle()
		return auth.Identity{}, err
	}

	id, err := s.establish(ctx, op, pair)
	if err != nil {
		s.settle()
		return auth.Identity{}, err
	}
	return id, nil
}

// establish decodes, persists, then publishes. Nothing is written unless the token decodes.
func (s *Store) establish(ctx context.Context, op string, pair gateway.TokenPair) (auth.Identity, error) {
	claims, err := auth.Decode(pair.Token)
	if err != nil {
		logger.From(ctx).Warn("rejecting token", "op", op, "err", err)
		return auth.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	values := map[string]string{credstore.KeyToken: pair.Token}
	if pair.RefreshToken != "" {
		values[credstore.KeyRefreshToken] = pair.RefreshToken
	}
	if err := s.creds.Set(ctx, values); err != nil {
		return auth.Identity{}, fmt.Errorf("%s: persist credentials: %w", op, err)
	}
	if pair.RefreshToken == "" {
		// A refresh token from an earlier session must not outlive it.
		if err := s.creds.Delete(ctx, credstore.KeyRefreshToken); err != nil {
			s.log.Warn("drop stale refresh token failed", "err", err)
		}
	}

	id := claims.Identity()
	s.setIdentity(id, pair.Token, pair.RefreshToken)
	s.transition(Authenticated)
	s.log.Info("session established", "op", op, "user_id", id.UserID)
	s.audit.Record(ctx, audit.Event{Type: audit.EventSessionEstablished, UserID: id.UserID, Email: id.Email, TenantID: id.TenantID, Message: op})
	return id, nil
}

// settle leaves Authenticating after a failed exchange, keeping any session that was live before.
func (s *Store) settle() {
	next := Unauthenticated
	if _, ok := s.Current(); ok {
		next = Authenticated
	}
	s.transition(next)
}

// Logout clears the session and persisted credentials. It never fails.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	ended := s.teardown(ctx, ReasonLogout)
	s.mu.Unlock()
	if ended {
		s.notify(ReasonLogout)
	}
}

// Expire ends the session after a backend rejected the credential `rejected`.
// A rejection of a credential that is no longer current is ignored; an empty rejected
// value ends whatever session is live.
func (s *Store) Expire(ctx context.Context, rejected string) {
	s.mu.Lock()
	if rejected != "" && rejected != s.AccessToken() {
		s.mu.Unlock()
		s.log.Debug("ignoring rejection of a superseded credential", "token", logger.TokenHint(rejected))
		return
	}
	ended := s.teardown(ctx, ReasonExpired)
	s.mu.Unlock()
	if ended {
		s.notify(ReasonExpired)
	}
}

// teardown reports whether a live session was ended. Persisted credentials are cleared either way.
func (s *Store) teardown(ctx context.Context, reason Reason) bool {
	if err := s.creds.Delete(ctx, credstore.KeyToken, credstore.KeyRefreshToken); err != nil {
		s.log.Error("clear credentials failed", "reason", reason, "err", err)
	}

	id, wasLive := s.Current()
	s.setIdentity(auth.Identity{}, "", "")
	if s.state.Current() == Authenticated {
		s.transition(Unauthenticated)
	}
	if !wasLive {
		return false
	}

	typ := audit.EventSessionEnded
	if reason == ReasonExpired {
		typ = audit.EventSessionExpired
	}
	s.log.Info("session ended", "reason", reason, "user_id", id.UserID)
	s.audit.Record(ctx, audit.Event{Type: typ, UserID: id.UserID, Email: id.Email, Message: string(reason)})
	return true
}

func (s *Store) transition(to State) {
	if err := s.state.Transition(to); err != nil {
		s.log.Error("session state", "err", err)
	}
}

func (s *Store) setIdentity(id auth.Identity, token, refresh string) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.identity = id
	s.token = token
	s.refresh = refresh
	s.live = id.UserID != ""
}

func (s *Store) notify(r Reason) {
	s.listenersMu.Lock()
	ls := append([]func(Reason){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range ls {
		fn(r)
	}
}

// Compile-time check that the store can back the gateway.
var _ gateway.Credentials = (*Store)(nil)

// IsInvalidToken reports whether err is a token decode failure.
func IsInvalidToken(err error) bool { return errors.Is(err, auth.ErrInvalidToken) }
