package monexa

import (
	"context"
	"net/http"
)

// Settings returns the user's language and currency preferences
func (c *Client) Settings(ctx context.Context) (*Setting, error) {
	var setting Setting
	if err := c.call(ctx, http.MethodGet, "/settings", nil, nil, &setting); err != nil {
		return nil, err
	}
	return &setting, nil
}

// UpdateSettings patches the fields set in req
func (c *Client) UpdateSettings(ctx context.Context, req SettingRequest) (*Setting, error) {
	var setting Setting
	if err := c.call(ctx, http.MethodPatch, "/settings", nil, req, &setting); err != nil {
		return nil, err
	}
	return &setting, nil
}
