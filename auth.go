package monexa

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Login signs in and stores the returned session
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/auth/login", nil, body, &result); err != nil {
		return nil, err
	}
	if err := c.Store().SetSession(&result); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	c.logger.Info("logged in", zap.String("session_id", result.SessionID), zap.String("email", email))
	return &result, nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var user User
	if err := c.call(ctx, http.MethodPost, "/auth/register", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout ends the session on the server and clears the local credentials.
// Local credentials are cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	var serverErr error
	if refreshToken := c.Store().RefreshToken(); refreshToken != "" {
		body := map[string]string{"refreshToken": refreshToken}
		serverErr = c.call(ctx, http.MethodPost, "/auth/logout", nil, body, nil)
		if serverErr != nil {
			c.logger.Warn("server logout failed", zap.Error(serverErr))
		}
	}
	return errors.Join(serverErr, c.Store().ClearTokens())
}

// ChangePassword sets a new password. The server revokes every session on
// success, so the current access token keeps working only until it expires.
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return c.call(ctx, http.MethodPost, "/auth/change-password", nil, req, nil)
}

// DeleteAccount removes the account and all its data, then clears the local credentials
func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.call(ctx, http.MethodDelete, "/auth/accounts", nil, nil, nil); err != nil {
		return err
	}
	return c.Store().ClearTokens()
}
