// Package account covers the self-service calls of the auth service that do not create a
// session: password recovery and two-factor settings.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tenant-console/internal/auth"
	"tenant-console/internal/gateway"
)

var ErrInvalidInput = errors.New("invalid input")

type Doer interface {
	Do(ctx context.Context, call gateway.Call, out any) error
}

type Identity interface {
	Current() (auth.Identity, bool)
}

// TwoFactorSetup is what the auth service returns when two-factor enrollment starts.
// The secret is shown once so it can be typed into an authenticator app.
type TwoFactorSetup struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qrCodeUrl,omitempty"`
}

type Service struct {
	gw Doer
	id Identity
}

func NewService(gw Doer, id Identity) *Service {
	return &Service{gw: gw, id: id}
}

// ForgotPassword asks the auth service to send a reset link. It needs no session.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("forgot password: %w: a valid email is required", ErrInvalidInput)
	}
	return s.gw.Do(ctx, gateway.Call{
		Op:      "forgot password",
		Service: gateway.AuthService,
		Method:  http.MethodPost,
		Path:    "/api/auth/password/forgot",
		Body:    emailBody{email},
		Public: true,
	}, nil)
}

// ResetPassword sets a new password using the token from the reset link. It needs no session.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return fmt.Errorf("reset password: %w: token and new password are required", ErrInvalidInput)
	}
	return s.gw.Do(ctx, gateway.Call{
		Op:      "reset password",
		Service: gateway.AuthService,
		Method:  http.MethodPost,
		Path:    "/api/auth/password/reset",
		Body:    resetBody{Token: token, NewPassword: newPassword},
		Public: true,
	}, nil)
}

func (s *Service) SetupTwoFactor(ctx context.Context) (TwoFactorSetup, error) {
	var out TwoFactorSetup
	err := s.authed(ctx, "setup 2fa", "/api/auth/2fa/setup", nil, &out)
	return out, err
}

func (s *Service) EnableTwoFactor(ctx context.Context, code string) error {
	code, err := checkCode("enable 2fa", code)
	if err != nil {
		return err
	}
	return s.authed(ctx, "enable 2fa", "/api/auth/2fa/enable", codeBody{code}, nil)
}

// DisableTwoFactor needs the account password again.
func (s *Service) DisableTwoFactor(ctx context.Context, password string) error {
	if password == "" {
		return fmt.Errorf("disable 2fa: %w: password is required", ErrInvalidInput)
	}
	return s.authed(ctx, "disable 2fa", "/api/auth/2fa/disable", passwordBody{password}, nil)
}

func (s *Service) VerifyTwoFactor(ctx context.Context, code string) error {
	code, err := checkCode("verify 2fa", code)
	if err != nil {
		return err
	}
	return s.authed(ctx, "verify 2fa", "/api/auth/2fa/verify", codeBody{code}, nil)
}

type (
	emailBody struct {
		Email string `json:"email"`
	}
	resetBody struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	passwordBody struct {
		Password string `json:"password"`
	}
	codeBody struct {
		Code string `json:"code"`
	}
)

// checkCode accepts the digits an authenticator app shows, ignoring spaces.
func checkCode(op, code string) (string, error) {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if code == "" {
		return "", fmt.Errorf("%s: %w: code is required", op, ErrInvalidInput)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%s: %w: code must be digits", op, ErrInvalidInput)
		}
	}
	return code, nil
}

func (s *Service) authed(ctx context.Context, op, path string, body, out any) error {
	if _, ok := s.id.Current(); !ok {
		return fmt.Errorf("%s: %w", op, gateway.ErrNoSession)
	}
	return s.gw.Do(ctx, gateway.Call{
		Op:      op,
		Service: gateway.AuthService,
		Method:  http.MethodPost,
		Path:    path,
		Body:    body,
	}, out)
}
