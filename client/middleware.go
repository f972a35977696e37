package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

type userContextKey struct{}

// Middleware guards handlers of a web backend that holds Monexa credentials
// per browser session (see client/stores/scs). A request is let through only
// when its credential store reports an authenticated session.
type Middleware struct {
	// StoreFor returns the credential store of the request. Required.
	StoreFor func(r *http.Request) *CredentialStore

	// LoginURL is where unauthenticated browsers are sent. When empty a 401 is
	// returned instead.
	LoginURL string

	// CallbackURLParam names the query parameter carrying the original path
	CallbackURLParam string

	Logger *zap.Logger
}

// settings returns the callback parameter and logger with defaults applied.
// It does not modify m.
func (m *Middleware) settings() (callbackParam string, logger *zap.Logger) {
	callbackParam, logger = m.CallbackURLParam, m.Logger
	if callbackParam == "" {
		callbackParam = "callbackURL"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return callbackParam, logger
}

// EnsureUser redirects to LoginURL (or answers 401) unless the request has
// a valid session. The stored user, if any, is made available through
// UserFromContext.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	callbackParam, logger := m.settings()
	loginURL := m.LoginURL
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := m.StoreFor(r)
		if store == nil || !store.IsAuthenticated() {
			logger.Debug("no session, rejecting", zap.String("path", r.URL.Path))
			if loginURL == "" {
				http.Error(w, "Login Required", http.StatusUnauthorized)
				return
			}
			encodedUrl := strings.ReplaceAll(url.QueryEscape(r.URL.RequestURI()), "+", "%20")
			http.Redirect(w, r, fmt.Sprintf("%s?%s=%s", loginURL, callbackParam, encodedUrl), http.StatusFound)
			return
		}

		ctx := r.Context()
		if user := store.User(); user != nil {
			ctx = context.WithValue(ctx, userContextKey{}, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RedirectIfAuthenticated sends signed-in users to homeURL. Used on the login
// and register pages.
func (m *Middleware) RedirectIfAuthenticated(homeURL string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store := m.StoreFor(r); store != nil && store.IsAuthenticated() {
			http.Redirect(w, r, homeURL, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromContext returns the user stored by EnsureUser, or nil
func UserFromContext(ctx context.Context) *UserProfile {
	user, _ := ctx.Value(userContextKey{}).(*UserProfile)
	return user
}
