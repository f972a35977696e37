package client

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestMiddleware_EnsureUser(t *testing.T) {
	store := NewCredentialStore(nil)
	m := &Middleware{
		StoreFor: func(*http.Request) *CredentialStore { return store },
		LoginURL: "/login",
	}

	var gotUser *UserProfile
	h := m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Not logged in: redirect with the original path
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records?page=2", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?callbackURL=%2Frecords%3Fpage%3D2" {
		t.Errorf("Location = %v", loc)
	}

	// Logged in
	store.SetTokens("a", time.Now().Add(-time.Minute), "r", time.Now().Add(time.Hour))
	store.SetUser(&UserProfile{ID: 2, Email: "u@example.com"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotUser == nil || gotUser.ID != 2 {
		t.Errorf("UserFromContext() = %+v, want id 2", gotUser)
	}

	// Refresh token expired
	store.SetTokens("a", time.Now().Add(time.Hour), "r", time.Now().Add(-time.Second))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302 with an expired refresh token", rec.Code)
	}
}

func TestMiddleware_EnsureUser_NoLoginURL(t *testing.T) {
	m := &Middleware{StoreFor: func(*http.Request) *CredentialStore { return nil }}
	h := m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_RedirectIfAuthenticated(t *testing.T) {
	store := NewCredentialStore(nil)
	m := &Middleware{StoreFor: func(*http.Request) *CredentialStore { return store }}
	h := m.RedirectIfAuthenticated("/dashboard", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when signed out", rec.Code)
	}

	store.SetTokens("a", time.Now().Add(time.Hour), "r", time.Now().Add(time.Hour))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Errorf("got %d %q, want 302 to /dashboard", rec.Code, rec.Header().Get("Location"))
	}
}

// One Middleware shared by several goroutines wrapping handlers; wrapping
// must leave its fields untouched.
func TestMiddleware_SharedAcrossGoroutines(t *testing.T) {
	m := &Middleware{
		StoreFor: func(*http.Request) *CredentialStore { return nil },
		LoginURL: "/login",
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	var wg sync.WaitGroup
	handlers := make([]http.Handler, 8)
	for i := range handlers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				handlers[i] = m.EnsureUser(ok)
			} else {
				handlers[i] = m.RedirectIfAuthenticated("/", ok)
			}
		}(i)
	}
	wg.Wait()

	if m.CallbackURLParam != "" || m.Logger != nil {
		t.Errorf("wrapping modified the middleware: %+v", m)
	}

	rec := httptest.NewRecorder()
	handlers[0].ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))
	if loc := rec.Header().Get("Location"); loc != "/login?callbackURL=%2Frecords" {
		t.Errorf("Location = %v, want the default callback parameter", loc)
	}
}
