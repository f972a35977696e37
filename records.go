package monexa

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ListRecords returns the user's records matching filter
func (c *Client) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	var records []Record
	if err := c.call(ctx, http.MethodGet, "/records", filter.Values(), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) GetRecord(ctx context.Context, id uint64) (*Record, error) {
	var record Record
	if err := c.call(ctx, http.MethodGet, idPath("/records", id), nil, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateRecord adds a record. Category, payment method, amount and date are
// required; the currency defaults to the user's setting.
func (c *Client) CreateRecord(ctx context.Context, req RecordRequest) (*Record, error) {
	var record Record
	if err := c.call(ctx, http.MethodPost, "/records", nil, req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateRecord patches the fields set in req
func (c *Client) UpdateRecord(ctx context.Context, id uint64, req RecordRequest) (*Record, error) {
	var record Record
	if err := c.call(ctx, http.MethodPatch, idPath("/records", id), nil, req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) DeleteRecord(ctx context.Context, id uint64) error {
	return c.call(ctx, http.MethodDelete, idPath("/records", id), nil, nil, nil)
}

// RecordSummary nets income against expenses between start and end
func (c *Client) RecordSummary(ctx context.Context, start, end time.Time) (*RecordSummary, error) {
	q := url.Values{}
	setDateRange(q, start, end)

	var summary RecordSummary
	if err := c.call(ctx, http.MethodGet, "/records/summary", q, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// DescriptionSuggestions returns recent descriptions used in a category
func (c *Client) DescriptionSuggestions(ctx context.Context, categoryID uint64) ([]string, error) {
	q := url.Values{"categoryId": {strconv.FormatUint(categoryID, 10)}}

	var suggestions []string
	if err := c.call(ctx, http.MethodGet, "/records/descriptions/suggestions", q, nil, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}
