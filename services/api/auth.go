package apisvc

import (
	"context"
	"net/http"

	"github.com/trezcool/masomo-console/core/user"
)

type (
	AuthResponse struct {
		Access  string    `json:"access"`
		Refresh string    `json:"refresh"`
		User    user.User `json:"user"`
	}

	RegisterResponse struct {
		Message string    `json:"message"`
		User    user.User `json:"user"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	TokenPair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh,omitempty"`
	}

	refreshRequest struct {
		Refresh string `json:"refresh"`
	}
)

func (c *Client) Login(ctx context.Context, creds user.Credentials) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/auth/login/", creds, &resp)
	return resp, err
}

// Register creates a student account awaiting approval. It does not log in.
func (c *Client) Register(ctx context.Context, data user.NewStudent) (RegisterResponse, error) {
	var resp RegisterResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/auth/register/student/", data, &resp)
	return resp, err
}

// Logout blacklists the refresh token server side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/auth/logout/", refreshRequest{Refresh: refreshToken}, nil)
}

func (c *Client) Me(ctx context.Context) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodGet, "/api/auth/auth/me/", nil, &usr)
	return usr, err
}

func (c *Client) UpdateProfile(ctx context.Context, data user.UpdateProfile) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodPut, "/api/auth/auth/update_profile/", data, &usr)
	return usr, err
}

func (c *Client) ChangePassword(ctx context.Context, data user.ChangePassword) (MessageResponse, error) {
	var resp MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/auth/change_password/", data, &resp)
	return resp, err
}

// RefreshToken rotates the token pair. When the server does not rotate the refresh token, the old one is kept.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/api/auth/token/refresh/", refreshRequest{Refresh: refreshToken}, &pair); err != nil {
		return TokenPair{}, err
	}
	if pair.Refresh == "" {
		pair.Refresh = refreshToken
	}
	return pair, nil
}
