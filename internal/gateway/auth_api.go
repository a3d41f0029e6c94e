package gateway

import (
	"context"
	"net/http"
)

// TokenPair is the success payload of login and register.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (c *Client) Login(ctx context.Context, email, password string) (TokenPair, error) {
	var out TokenPair
	err := c.Do(ctx, Call{
		Op:      "login",
		Service: AuthService,
		Method:  http.MethodPost,
		Path:    "/api/auth/login",
		Body:    loginRequest{Email: email, Password: password},
		Public:  true,
	}, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, email, password, role string) (TokenPair, error) {
	var out TokenPair
	err := c.Do(ctx, Call{
		Op:      "register",
		Service: AuthService,
		Method:  http.MethodPost,
		Path:    "/api/auth/register",
		Body:    registerRequest{Email: email, Password: password, Role: role},
		Public:  true,
	}, &out)
	return out, err
}
