package monexa

import (
	"context"
	"net/http"
)

type paymentMethodRequest struct {
	Name string `json:"name"`
}

func (c *Client) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	var methods []PaymentMethod
	if err := c.call(ctx, http.MethodGet, "/payment-methods", nil, nil, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

func (c *Client) GetPaymentMethod(ctx context.Context, id uint64) (*PaymentMethod, error) {
	var method PaymentMethod
	if err := c.call(ctx, http.MethodGet, idPath("/payment-methods", id), nil, nil, &method); err != nil {
		return nil, err
	}
	return &method, nil
}

func (c *Client) CreatePaymentMethod(ctx context.Context, name string) (*PaymentMethod, error) {
	var method PaymentMethod
	if err := c.call(ctx, http.MethodPost, "/payment-methods", nil, paymentMethodRequest{Name: name}, &method); err != nil {
		return nil, err
	}
	return &method, nil
}

func (c *Client) UpdatePaymentMethod(ctx context.Context, id uint64, name string) (*PaymentMethod, error) {
	var method PaymentMethod
	if err := c.call(ctx, http.MethodPatch, idPath("/payment-methods", id), nil, paymentMethodRequest{Name: name}, &method); err != nil {
		return nil, err
	}
	return &method, nil
}

// DeletePaymentMethod fails with 409 while records still use the method
func (c *Client) DeletePaymentMethod(ctx context.Context, id uint64) error {
	return c.call(ctx, http.MethodDelete, idPath("/payment-methods", id), nil, nil, nil)
}
