package monexa

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"
)

// CurrentUser fetches the signed-in user's profile and stores it
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, http.MethodGet, "/users", nil, nil, &user); err != nil {
		return nil, err
	}
	if err := c.Store().SetUser(&user); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	return &user, nil
}

// UpdateUser renames the signed-in user. The stored profile is updated,
// which notifies the store's subscribers.
func (c *Client) UpdateUser(ctx context.Context, name string) (*User, error) {
	var user User
	body := map[string]string{"name": name}
	if err := c.call(ctx, http.MethodPatch, "/users", nil, body, &user); err != nil {
		return nil, err
	}
	if err := c.Store().SetUser(&user); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	return &user, nil
}

// Export is a CSV export of the user's records
type Export struct {
	io.ReadCloser

	// Filename is the name suggested by the server, if any
	Filename string
}

// ExportData downloads the records between start and end as CSV.
// Zero times leave the range open. The caller must close the result.
func (c *Client) ExportData(ctx context.Context, start, end time.Time) (*Export, error) {
	q := url.Values{}
	setDateRange(q, start, end)

	resp, err := c.send(ctx, http.MethodGet, "/users/data/export", q, nil)
	if err != nil {
		return nil, err
	}

	export := &Export{ReadCloser: resp.Body}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		export.Filename = params["filename"]
	}
	return export, nil
}
