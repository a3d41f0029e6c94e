package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tenant-console/internal/account"
	"tenant-console/internal/auth/authtest"
	"tenant-console/internal/credstore"
	"tenant-console/internal/gateway"
	"tenant-console/internal/invitation"
	"tenant-console/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	srv      *httptest.Server
	accepted int
	lastUser string

	forgotAuth string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid email or password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(gateway.TokenPair{Token: authtest.UserToken(t, body.Email, "u-42"), RefreshToken: "r-1"})
	})
	mux.HandleFunc("/api/tenants/me", func(w http.ResponseWriter, r *http.Request) {
		b.lastUser = r.Header.Get(gateway.HeaderUserID)
		_, _ = w.Write([]byte(`[{"id":"t-1","name":"Acme","slug":"acme","plan":"PRO","status":"ACTIVE",
			"usage":{"currentUsers":9,"currentProjects":1,"currentDomains":0},
			"limits":{"maxUsers":10,"maxProjects":-1,"maxDomains":5}}]`))
	})
	mux.HandleFunc("/api/tenants/invitations/pending", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"i-1","tenantId":"t-1","tenantName":"Acme","invitedEmail":"a@b.com",
			"invitedByEmail":"boss@acme.io","role":"TENANT_USER","projectIds":["p-1"],"token":"inv-1","status":"PENDING"}]`))
	})
	mux.HandleFunc("/api/tenants/invitations/inv-1/accept", func(w http.ResponseWriter, r *http.Request) {
		b.accepted++
		if b.accepted > 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/auth/password/forgot", func(w http.ResponseWriter, r *http.Request) {
		b.forgotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/auth/2fa/setup", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"secret":"JBSWY3DP","qrCodeUrl":"otpauth://totp/acme"}`))
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

// setEnv points every invocation at the backend and a shared sqlite file.
func (b *backend) setEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"AUTH", "TENANTS", "MEMBERS", "PROJECTS"} {
		t.Setenv(fmt.Sprintf("CONSOLE_SERVICES_%s_URL", k), b.srv.URL)
	}
	t.Setenv("CONSOLE_STORE_KIND", "sqlite")
	t.Setenv("CONSOLE_STORE_SQLITE_PATH", filepath.Join(t.TempDir(), "creds.db"))
	t.Setenv("CONSOLE_APP_ENV", "staging")
	t.Setenv("CONSOLE_CONFIG", "")
	t.Setenv("CONSOLE_PASSWORD", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := newConsole(&out, &errOut).Execute(context.Background(), args...)
	return out.String(), err
}

func TestCLI_LoginPersistsAcrossInvocations(t *testing.T) {
	b := newBackend(t)
	b.setEnv(t)

	out, err := run(t, "login", "--email", "a@b.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as a@b.com")
	assert.Contains(t, out, "u-42")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as a@b.com")

	out, err = run(t, "tenants", "list")
	require.NoError(t, err)
	assert.Equal(t, "u-42", b.lastUser)
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Users: 9/10")
	assert.NotContains(t, out, "Projects:")

	out, err = run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")

	_, err = run(t, "tenants", "list")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestCLI_RejectedLoginReportsServerMessage(t *testing.T) {
	b := newBackend(t)
	b.setEnv(t)

	_, err := run(t, "login", "--email", "a@b.com", "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", userMessage(err))

	out, err := run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in.")
}

func TestCLI_AcceptInvitationInFreshProcess(t *testing.T) {
	b := newBackend(t)
	b.setEnv(t)

	_, err := run(t, "login", "--email", "a@b.com", "--password", "pw")
	require.NoError(t, err)

	out, err := run(t, "invitations", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "inv-1")
	assert.Contains(t, out, "boss@acme.io")

	out, err = run(t, "invitations", "accept", "inv-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Joined workspace t-1 as TENANT_USER")
	assert.Contains(t, out, "project p-1 (PROJECT_MEMBER)")

	_, err = run(t, "invitations", "accept", "inv-1")
	assert.ErrorIs(t, err, invitation.ErrAlreadyResolved)

	out, err = run(t, "activity")
	require.NoError(t, err)
	assert.Contains(t, out, "invitations accepted:  1")
}

func TestCLI_LoginRequiresPassword(t *testing.T) {
	b := newBackend(t)
	b.setEnv(t)

	_, err := run(t, "login", "--email", "a@b.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONSOLE_PASSWORD")
}

func TestCLI_ShowInvitation(t *testing.T) {
	b := newBackend(t)
	b.setEnv(t)

	_, err := run(t, "login", "--email", "a@b.com", "--password", "pw")
	require.NoError(t, err)

	out, err := run(t, "invitations", "show", "inv-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme (t-1)")
	assert.Contains(t, out, "TENANT_USER, can create and view projects")
	assert.Contains(t, out, "Status:     PENDING")

	_, err = run(t, "invitations", "show", "inv-9")
	assert.ErrorIs(t, err, invitation.ErrNotFound)
}

func TestCLI_FailedCommandStillClosesStores(t *testing.T) {
	b := newBackend(t)
	b.setEnv(t)
	t.Setenv("CONSOLE_STORE_KIND", "memory")

	var out, errOut bytes.Buffer
	c := newConsole(&out, &errOut)
	err := c.Execute(context.Background(), "invitations", "list")
	require.ErrorIs(t, err, errNotLoggedIn)
	require.NotNil(t, c.app)

	_, _, err = c.app.creds.Get(context.Background(), "anything")
	assert.ErrorIs(t, err, credstore.ErrClosed)
}

func TestCLI_AccountCommands(t *testing.T) {
	b := newBackend(t)
	b.setEnv(t)

	out, err := run(t, "password", "forgot", "a@b.com")
	require.NoError(t, err)
	assert.Contains(t, out, "reset link")
	assert.Empty(t, b.forgotAuth)

	_, err = run(t, "2fa", "setup")
	assert.ErrorIs(t, err, errNotLoggedIn)

	_, err = run(t, "login", "--email", "a@b.com", "--password", "pw")
	require.NoError(t, err)

	out, err = run(t, "2fa", "setup")
	require.NoError(t, err)
	assert.Contains(t, out, "Secret: JBSWY3DP")

	_, err = run(t, "2fa", "enable", "12x")
	assert.ErrorIs(t, err, account.ErrInvalidInput)
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"auth", &session.AuthError{Message: "Email already registered"}, "Email already registered"},
		{"no session", gateway.ErrNoSession, errNotLoggedIn.Error()},
		{"expired", fmt.Errorf("accept: %w", invitation.ErrExpired), "this invitation has expired"},
		{"resolved", invitation.ErrAlreadyResolved, "this invitation was already accepted or rejected"},
		{"mismatch", invitation.ErrEmailMismatch, "this invitation is addressed to a different email"},
		{"not found", invitation.ErrNotFound, "invitation not found"},
		{"api", &gateway.APIError{StatusCode: http.StatusBadRequest, Message: "slug taken"}, "slug taken"},
		{"plain", errors.New("  boom "), "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, userMessage(tc.err))
		})
	}
}
