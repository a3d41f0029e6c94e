package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"tenant-console/internal/audit"
	"tenant-console/internal/auth"
	"tenant-console/internal/auth/authtest"
	"tenant-console/internal/credstore"
	"tenant-console/internal/gateway"
	"tenant-console/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	pair gateway.TokenPair
	err  error

	calls    int
	lastRole string
}

func (f *fakeAuth) Login(context.Context, string, string) (gateway.TokenPair, error) {
	f.calls++
	return f.pair, f.err
}

func (f *fakeAuth) Register(_ context.Context, _, _, role string) (gateway.TokenPair, error) {
	f.calls++
	f.lastRole = role
	return f.pair, f.err
}

func newStore(api Authenticator) (*Store, *credstore.MemoryStore, *audit.MemoryRepo) {
	creds := credstore.NewMemoryStore()
	repo := audit.NewMemoryRepo()
	s := NewStore(creds, api, WithAudit(audit.NewService(repo)), WithLogger(logger.Discard()))
	return s, creds, repo
}

func TestLogin_EstablishesAndPersists(t *testing.T) {
	tok := authtest.UserToken(t, "a@b.com", "u-42")
	s, creds, repo := newStore(&fakeAuth{pair: gateway.TokenPair{Token: tok, RefreshToken: "r-1"}})

	id, err := s.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{Email: "a@b.com", UserID: "u-42"}, id)
	assert.Equal(t, Authenticated, s.State())
	assert.Equal(t, tok, s.AccessToken())
	assert.Equal(t, "r-1", s.RefreshToken())

	assert.Equal(t, map[string]string{credstore.KeyToken: tok, credstore.KeyRefreshToken: "r-1"}, creds.Snapshot())

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, audit.EventSessionEstablished, evs[0].Type)
	assert.Equal(t, "u-42", evs[0].UserID)
}

func TestLogin_TokenWithoutUserIDWritesNothing(t *testing.T) {
	tok := authtest.Token(t, map[string]any{"sub": "a@b.com"})
	s, creds, _ := newStore(&fakeAuth{pair: gateway.TokenPair{Token: tok, RefreshToken: "r-1"}})

	_, err := s.Login(context.Background(), "a@b.com", "pw")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.True(t, IsInvalidToken(err))
	assert.Equal(t, Unauthenticated, s.State())
	assert.Empty(t, creds.Snapshot())
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestLogin_RejectedCredentialsKeepPreviousSession(t *testing.T) {
	api := &fakeAuth{pair: gateway.TokenPair{Token: authtest.UserToken(t, "a@b.com", "u-1"), RefreshToken: "r-1"}}
	s, creds, _ := newStore(api)
	_, err := s.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	before := creds.Snapshot()

	api.err = &gateway.APIError{Op: "login", StatusCode: http.StatusUnauthorized, Message: "Bad credentials"}
	_, err = s.Login(context.Background(), "c@d.com", "nope")

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Bad credentials", authErr.Message)
	assert.Equal(t, Authenticated, s.State())
	id, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, before, creds.Snapshot())
}

func TestLogin_FallbackMessageAndTransportPassthrough(t *testing.T) {
	api := &fakeAuth{err: &gateway.APIError{Op: "login", StatusCode: http.StatusInternalServerError}}
	s, _, _ := newStore(api)

	_, err := s.Login(context.Background(), "a@b.com", "pw")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Login failed", authErr.Message)

	api.err = &gateway.TransportError{Op: "login", Err: errors.New("connection refused")}
	_, err = s.Login(context.Background(), "a@b.com", "pw")
	var te *gateway.TransportError
	assert.ErrorAs(t, err, &te)
	assert.False(t, errors.As(err, &authErr))
	assert.Equal(t, Unauthenticated, s.State())
}

func TestLogin_RequiresInput(t *testing.T) {
	api := &fakeAuth{}
	s, _, _ := newStore(api)
	_, err := s.Login(context.Background(), " ", "pw")
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Zero(t, api.calls)
}

func TestRegister_DefaultsRoleAndValidates(t *testing.T) {
	api := &fakeAuth{pair: gateway.TokenPair{Token: authtest.UserToken(t, "a@b.com", "u-7")}}
	s, _, _ := newStore(api)

	id, err := s.Register(context.Background(), "a@b.com", "pw", "")
	require.NoError(t, err)
	assert.Equal(t, "u-7", id.UserID)
	assert.Equal(t, "USER", api.lastRole)

	_, err = s.Register(context.Background(), "a@b.com", "pw", "TENANT_ADMIN")
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, api.calls)
}

func TestLogin_WithoutRefreshTokenDropsStaleOne(t *testing.T) {
	api := &fakeAuth{pair: gateway.TokenPair{Token: authtest.UserToken(t, "a@b.com", "u-1"), RefreshToken: "old"}}
	s, creds, _ := newStore(api)
	_, err := s.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	api.pair = gateway.TokenPair{Token: authtest.UserToken(t, "a@b.com", "u-1")}
	_, err = s.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	_, ok, _ := creds.Get(context.Background(), credstore.KeyRefreshToken)
	assert.False(t, ok)
	assert.Empty(t, s.RefreshToken())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	tok := authtest.Token(t, map[string]any{"sub": "a@b.com", "userId": "u-42", "tenantId": "t-1"})
	s, creds, _ := newStore(&fakeAuth{})
	require.NoError(t, creds.Set(ctx, map[string]string{credstore.KeyToken: tok, credstore.KeyRefreshToken: "r"}))

	id, ok := s.Restore(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-42", id.UserID)
	assert.Equal(t, "t-1", id.TenantID)
	assert.Equal(t, Authenticated, s.State())
	assert.Equal(t, "r", s.RefreshToken())
}

func TestRestore_DiscardsUndecodableToken(t *testing.T) {
	ctx := context.Background()
	s, creds, _ := newStore(&fakeAuth{})
	noUser := authtest.Token(t, map[string]any{"sub": "a@b.com"})
	require.NoError(t, creds.Set(ctx, map[string]string{credstore.KeyToken: noUser, credstore.KeyRefreshToken: "r"}))

	_, ok := s.Restore(ctx)
	assert.False(t, ok)
	assert.Equal(t, Unauthenticated, s.State())
	assert.Empty(t, creds.Snapshot())
}

func TestRestore_NothingStored(t *testing.T) {
	s, _, _ := newStore(&fakeAuth{})
	_, ok := s.Restore(context.Background())
	assert.False(t, ok)
	assert.Equal(t, Unauthenticated, s.State())
}

func TestRestoreLogoutRestore_NoResurrection(t *testing.T) {
	ctx := context.Background()
	s, creds, repo := newStore(&fakeAuth{})
	require.NoError(t, creds.Set(ctx, map[string]string{credstore.KeyToken: authtest.UserToken(t, "a@b.com", "u-1"), credstore.KeyRefreshToken: "r"}))

	var reasons []Reason
	s.OnTeardown(func(r Reason) { reasons = append(reasons, r) })

	_, ok := s.Restore(ctx)
	require.True(t, ok)
	s.Logout(ctx)
	_, ok = s.Restore(ctx)

	assert.False(t, ok)
	assert.Equal(t, Unauthenticated, s.State())
	assert.Empty(t, creds.Snapshot())
	assert.Equal(t, []Reason{ReasonLogout}, reasons)

	evs := repo.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, audit.EventSessionEnded, evs[1].Type)
}

func TestLogout_WithoutSessionNeverFails(t *testing.T) {
	s, _, _ := newStore(&fakeAuth{})
	called := false
	s.OnTeardown(func(Reason) { called = true })
	s.Logout(context.Background())
	assert.Equal(t, Unauthenticated, s.State())
	assert.False(t, called, "no session ended, nothing to announce")
}

func TestLogout_ClearsRedisCredentialsWhileAnotherWriterHoldsLease(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	open := func() *Store {
		creds := credstore.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "console")
		t.Cleanup(func() { _ = creds.Close() })
		return NewStore(creds, &fakeAuth{pair: gateway.TokenPair{Token: authtest.UserToken(t, "a@b.com", "u-42"), RefreshToken: "r-1"}}, WithLogger(logger.Discard()))
	}

	s := open()
	_, err := s.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	require.NoError(t, mr.Set("console:writer", "another-console"))
	s.Logout(ctx)
	assert.Equal(t, Unauthenticated, s.State())
	assert.False(t, mr.Exists("console:token"))
	assert.False(t, mr.Exists("console:refreshToken"))

	_, ok := open().Restore(ctx)
	assert.False(t, ok, "logged-out credentials must not come back")
}

func TestStateChangesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	tok := authtest.UserToken(t, "a@b.com", "u-42")
	s := NewStore(credstore.NewMemoryStore(), &fakeAuth{pair: gateway.TokenPair{Token: tok}},
		WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	_, err := s.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "from=unauthenticated to=authenticating")
	assert.Contains(t, out, "from=authenticating to=authenticated")
}

func TestCompleteOAuthCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("error param", func(t *testing.T) {
		s, creds, _ := newStore(&fakeAuth{})
		_, err := s.CompleteOAuthCallback(ctx, ParseCallback(url.Values{"error": {"access_denied"}, "token": {"x"}}))
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, authErr.Message, "access_denied")
		assert.Empty(t, creds.Snapshot())
	})

	t.Run("missing token", func(t *testing.T) {
		s, _, _ := newStore(&fakeAuth{})
		_, err := s.CompleteOAuthCallback(ctx, CallbackParams{})
		var authErr *AuthError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("missing userId is rejected like login", func(t *testing.T) {
		s, creds, _ := newStore(&fakeAuth{})
		tok := authtest.Token(t, map[string]any{"sub": "a@b.com"})
		_, err := s.CompleteOAuthCallback(ctx, CallbackParams{Token: tok, RefreshToken: "r"})
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
		assert.Empty(t, creds.Snapshot())
		assert.Equal(t, Unauthenticated, s.State())
	})

	t.Run("success without refresh token", func(t *testing.T) {
		s, creds, _ := newStore(&fakeAuth{})
		tok := authtest.UserToken(t, "a@b.com", "u-9")
		id, err := s.CompleteOAuthCallback(ctx, ParseCallback(url.Values{"token": {tok}}))
		require.NoError(t, err)
		assert.Equal(t, "u-9", id.UserID)
		assert.Equal(t, map[string]string{credstore.KeyToken: tok}, creds.Snapshot())
	})
}

func TestExpire_IgnoresSupersededCredential(t *testing.T) {
	api := &fakeAuth{pair: gateway.TokenPair{Token: authtest.UserToken(t, "a@b.com", "u-1")}}
	s, _, _ := newStore(api)
	_, err := s.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	s.Expire(context.Background(), "some-older-token")
	assert.Equal(t, Authenticated, s.State())

	s.Expire(context.Background(), s.AccessToken())
	assert.Equal(t, Unauthenticated, s.State())
}

// Integration with the real gateway: identity headers and 401 teardown.

func newBackend(t *testing.T, token string) (*httptest.Server, *http.Header) {
	t.Helper()
	var seen http.Header
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gateway.TokenPair{Token: token, RefreshToken: "r-1"})
	})
	mux.HandleFunc("/api/tenants/me", func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/tenants/invitations/pending", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newWired(t *testing.T, srv *httptest.Server) (*Store, *gateway.Client, *credstore.MemoryStore) {
	t.Helper()
	gw := gateway.New(gateway.Config{
		AuthURL: srv.URL, TenantsURL: srv.URL, MembersURL: srv.URL, ProjectsURL: srv.URL,
		Timeout: 5 * time.Second,
	}, logger.Discard())
	creds := credstore.NewMemoryStore()
	s := NewStore(creds, gw, WithLogger(logger.Discard()))
	gw.Bind(s)
	return s, gw, creds
}

func TestScenario_LoginThenListTenantsSendsUserID(t *testing.T) {
	srv, seen := newBackend(t, authtest.UserToken(t, "a@b.com", "u-42"))
	s, gw, _ := newWired(t, srv)

	id, err := s.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "u-42", Email: "a@b.com"}, id)

	err = gw.Do(context.Background(), gateway.Call{
		Op: "list tenants", Service: gateway.TenantService, Method: http.MethodGet,
		Path: "/api/tenants/me", Actor: gateway.ActorUserID,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "u-42", seen.Get(gateway.HeaderUserID))
}

func TestScenario_UnauthorizedFromAnyEndpointTearsDown(t *testing.T) {
	for _, path := range []string{"/api/projects", "/api/tenants/invitations/pending"} {
		t.Run(path, func(t *testing.T) {
			srv, _ := newBackend(t, authtest.UserToken(t, "a@b.com", "u-42"))
			s, gw, creds := newWired(t, srv)

			expired := 0
			s.OnTeardown(func(r Reason) {
				if r == ReasonExpired {
					expired++
				}
			})

			_, err := s.Login(context.Background(), "a@b.com", "pw")
			require.NoError(t, err)

			err = gw.Do(context.Background(), gateway.Call{
				Op: "op", Service: gateway.ProjectService, Method: http.MethodGet, Path: path,
			}, nil)
			assert.ErrorIs(t, err, gateway.ErrSessionExpired)
			assert.Equal(t, Unauthenticated, s.State())
			assert.Empty(t, creds.Snapshot())
			assert.Equal(t, 1, expired)

			err = gw.Do(context.Background(), gateway.Call{
				Op: "op", Service: gateway.ProjectService, Method: http.MethodGet, Path: path,
			}, nil)
			assert.ErrorIs(t, err, gateway.ErrNoSession)
			assert.Equal(t, 1, expired)
		})
	}
}
