// ABOUTME: Authentication endpoints: me, login, register, forgot and reset password
// ABOUTME: Login/register forms are validated locally before being sent

package api

import (
	"context"
	"net/http"
	"strings"
)

// Me returns the user owning the stored token. ErrUnauthorized means the
// token is missing, invalid or expired.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, opMe, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a session token and the user profile.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validateForm(creds); err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := c.do(ctx, opLogin, http.MethodPost, "/api/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &Error{Kind: ErrServer, Status: http.StatusOK, Detail: "login response has no access token"}
	}
	return &resp, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	if req.Role == "" {
		req.Role = RoleStudent
	}
	if err := validateForm(req); err != nil {
		return err
	}
	return c.do(ctx, opRegister, http.MethodPost, "/api/auth/register", req, nil)
}

// ForgotPassword asks the server to email a reset link. The server answers
// the same way whether or not the address exists.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	form := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: strings.TrimSpace(email)}
	if err := validateForm(form); err != nil {
		return "", err
	}

	var resp messageResponse
	if err := c.do(ctx, opForgotPassword, http.MethodPost, "/api/auth/forgot-password", form, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResetPassword sets a new password using the token from the reset email.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (string, error) {
	if err := validateForm(req); err != nil {
		return "", err
	}

	var resp messageResponse
	if err := c.do(ctx, opResetPassword, http.MethodPost, "/api/auth/reset-password", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
