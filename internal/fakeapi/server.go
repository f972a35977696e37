// Package fakeapi is an in-memory implementation of the monexa REST API.
// It issues real HS256 tokens, tracks sessions and supports fault injection,
// which makes it suitable for exercising clients end to end.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Default token lifetimes
const (
	DefaultAccessTokenTTL  = 72 * time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// PathPrefix is where the API is mounted
const PathPrefix = "/api/v1"

// Config configures a Server
type Config struct {
	// JWTSecretKey signs access and refresh tokens. A random key is used when empty.
	JWTSecretKey string

	// JWTIssuer is written into the "iss" claim
	JWTIssuer string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Logger receives request level logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// Now overrides the clock used for token issuing and validation
	Now func() time.Time
}

// Server serves the monexa API from memory
type Server struct {
	cfg    Config
	router *mux.Router
	logger *zap.Logger

	mu              sync.Mutex
	nextID          uint64
	users           map[uint64]*account
	emails          map[string]uint64
	sessions        map[string]*session
	records         map[uint64]*Record
	categories      map[uint64]*Category
	paymentMethods  map[uint64]*PaymentMethod
	settings        map[uint64]*Setting
	renewCalls      int
	renewStatus     int
	renewDelay      time.Duration
	rejectRemaining int
	protectedCalls  int
}

// New creates a server with the given config
func New(cfg Config) *Server {
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "monexa"
	}
	if cfg.JWTSecretKey == "" {
		cfg.JWTSecretKey = randomSecret()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		users:          make(map[uint64]*account),
		emails:         make(map[string]uint64),
		sessions:       make(map[string]*session),
		records:        make(map[uint64]*Record),
		categories:     make(map[uint64]*Category),
		paymentMethods: make(map[uint64]*PaymentMethod),
		settings:       make(map[uint64]*Setting),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix(PathPrefix).Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	auth.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	auth.HandleFunc("/tokens/renew", s.handleRenew).Methods(http.MethodPost)
	auth.HandleFunc("/sessions/revoke", s.handleRevokeSession).Methods(http.MethodPost)
	auth.Handle("/accounts", s.protected(s.handleDeleteAccount)).Methods(http.MethodDelete)
	auth.Handle("/change-password", s.protected(s.handleChangePassword)).Methods(http.MethodPost)

	api.Handle("/users", s.protected(s.handleGetUser)).Methods(http.MethodGet)
	api.Handle("/users", s.protected(s.handleUpdateUser)).Methods(http.MethodPatch)
	api.Handle("/users/data/export", s.protected(s.handleExport)).Methods(http.MethodGet)

	api.Handle("/records", s.protected(s.handleListRecords)).Methods(http.MethodGet)
	api.Handle("/records", s.protected(s.handleCreateRecord)).Methods(http.MethodPost)
	api.Handle("/records/summary", s.protected(s.handleRecordSummary)).Methods(http.MethodGet)
	api.Handle("/records/descriptions/suggestions", s.protected(s.handleSuggestions)).Methods(http.MethodGet)
	api.Handle("/records/{id:[0-9]+}", s.protected(s.handleGetRecord)).Methods(http.MethodGet)
	api.Handle("/records/{id:[0-9]+}", s.protected(s.handleUpdateRecord)).Methods(http.MethodPatch)
	api.Handle("/records/{id:[0-9]+}", s.protected(s.handleDeleteRecord)).Methods(http.MethodDelete)

	api.Handle("/categories", s.protected(s.handleListCategories)).Methods(http.MethodGet)
	api.Handle("/categories", s.protected(s.handleCreateCategory)).Methods(http.MethodPost)
	api.Handle("/categories/statistics", s.protected(s.handleStatistics)).Methods(http.MethodGet)
	api.Handle("/categories/{id:[0-9]+}", s.protected(s.handleGetCategory)).Methods(http.MethodGet)
	api.Handle("/categories/{id:[0-9]+}", s.protected(s.handleUpdateCategory)).Methods(http.MethodPatch)
	api.Handle("/categories/{id:[0-9]+}", s.protected(s.handleDeleteCategory)).Methods(http.MethodDelete)

	api.Handle("/payment-methods", s.protected(s.handleListPaymentMethods)).Methods(http.MethodGet)
	api.Handle("/payment-methods", s.protected(s.handleCreatePaymentMethod)).Methods(http.MethodPost)
	api.Handle("/payment-methods/{id:[0-9]+}", s.protected(s.handleGetPaymentMethod)).Methods(http.MethodGet)
	api.Handle("/payment-methods/{id:[0-9]+}", s.protected(s.handleUpdatePaymentMethod)).Methods(http.MethodPatch)
	api.Handle("/payment-methods/{id:[0-9]+}", s.protected(s.handleDeletePaymentMethod)).Methods(http.MethodDelete)

	api.Handle("/settings", s.protected(s.handleGetSettings)).Methods(http.MethodGet)
	api.Handle("/settings", s.protected(s.handleUpdateSettings)).Methods(http.MethodPatch)

	return r
}

// ============================================================================
// Fault injection and counters
// ============================================================================

// RenewCalls returns how many renewal requests reached the server
func (s *Server) RenewCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renewCalls
}

// ProtectedCalls returns how many requests reached a protected handler
func (s *Server) ProtectedCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protectedCalls
}

// SetRenewStatus makes every renewal fail with the given status.
// Zero restores normal behaviour.
func (s *Server) SetRenewStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewStatus = status
}

// SetRenewDelay holds every renewal for d before answering
func (s *Server) SetRenewDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewDelay = d
}

// RejectNext answers the next n protected calls with 401 regardless of the token
func (s *Server) RejectNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectRemaining = n
}

// ============================================================================
// Response helpers
// ============================================================================

type envelope struct {
	Status  int    `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(envelope{Status: http.StatusOK, Data: data})
}

func messageResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Status: http.StatusOK, Message: message})
}

func errorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(envelope{Status: statusCode, Error: message})
}

func decodeBody(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}
