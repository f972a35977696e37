package client

import (
	"context"

	"golang.org/x/oauth2"
)

type dispatcherTokenSource struct {
	ctx context.Context
	d   *Dispatcher
}

// TokenSource exposes the dispatcher's access token as an oauth2.TokenSource,
// renewing through the dispatcher when needed. ctx bounds each renewal.
func (d *Dispatcher) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &dispatcherTokenSource{ctx: ctx, d: d}
}

// Token implements oauth2.TokenSource
func (ts *dispatcherTokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.d.AccessToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken:  token,
		TokenType:    "Bearer",
		RefreshToken: ts.d.store.RefreshToken(),
	}
	if exp, ok := ts.d.store.AccessTokenExpiry(); ok {
		tok.Expiry = exp
	}
	return tok, nil
}
