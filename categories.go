package monexa

import (
	"context"
	"net/http"
)

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.call(ctx, http.MethodGet, "/categories", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) GetCategory(ctx context.Context, id uint64) (*Category, error) {
	var category Category
	if err := c.call(ctx, http.MethodGet, idPath("/categories", id), nil, nil, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateCategory adds a category. Name and type are required.
func (c *Client) CreateCategory(ctx context.Context, req CategoryRequest) (*Category, error) {
	var category Category
	if err := c.call(ctx, http.MethodPost, "/categories", nil, req, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id uint64, req CategoryRequest) (*Category, error) {
	var category Category
	if err := c.call(ctx, http.MethodPatch, idPath("/categories", id), nil, req, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory removes a category together with its records
func (c *Client) DeleteCategory(ctx context.Context, id uint64) error {
	return c.call(ctx, http.MethodDelete, idPath("/categories", id), nil, nil, nil)
}

// CategoryStatistics totals the filtered records per category
func (c *Client) CategoryStatistics(ctx context.Context, filter StatisticsFilter) (*CategoryStatistics, error) {
	var stats CategoryStatistics
	if err := c.call(ctx, http.MethodGet, "/categories/statistics", filter.Values(), nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
