package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidEmail    = errors.New("valid email required")
	ErrPasswordTooWeak = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// protected wraps a handler that needs a valid access token. The handler
// receives the authenticated user's ID.
func (s *Server) protected(h func(w http.ResponseWriter, r *http.Request, userID uint64)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.protectedCalls++
		if s.rejectRemaining > 0 {
			s.rejectRemaining--
			s.mu.Unlock()
			errorResponse(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.mu.Unlock()

		token, ok := bearerToken(r)
		if !ok {
			errorResponse(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		claims, err := s.parseToken(token, tokenTypeAccess)
		if err != nil {
			s.logger.Debug("rejected access token", zap.String("path", r.URL.Path), zap.Error(err))
			errorResponse(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		// Access tokens stay valid until they expire, even after logout or
		// revocation. Only the refresh side checks the session.
		s.mu.Lock()
		_, userOK := s.users[claims.UserID]
		s.mu.Unlock()
		if !userOK {
			errorResponse(w, "unknown user", http.StatusUnauthorized)
			return
		}

		h(w, r, claims.UserID)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// CreateUser registers a user directly, bypassing the HTTP layer.
// New users get default settings (EN, MKD).
func (s *Server) CreateUser(email, password, name string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooWeak
	}

	// Hash password
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[email]; exists {
		return nil, ErrEmailTaken
	}

	id := s.newIDLocked()
	user := &User{ID: id, Email: email, Name: name, CreatedAt: s.cfg.Now()}
	s.users[id] = &account{User: user, PasswordHash: passwordHash}
	s.emails[email] = id
	s.settings[id] = &Setting{ID: s.newIDLocked(), UserID: id, Language: "EN", Currency: "MKD"}

	out := *user
	return &out, nil
}

func (s *Server) newIDLocked() uint64 {
	s.nextID++
	return s.nextID
}

// ============================================================================
// Auth endpoints
// ============================================================================

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(r, &req) {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(req.Email))]
	var hash []byte
	if ok {
		hash = s.users[id].PasswordHash
	}
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		errorResponse(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	user, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		errorResponse(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	result, err := s.issueSessionLocked(user)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("failed to issue session", zap.Error(err))
		errorResponse(w, "error creating session", http.StatusInternalServerError)
		return
	}

	s.logger.Info("user logged in", zap.Uint64("user_id", id), zap.String("session_id", result.SessionID))
	jsonResponse(w, result)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email               string   `json:"email"`
		Password            string   `json:"password"`
		Name                string   `json:"name"`
		AcceptedDocumentIDs []uint64 `json:"acceptedDocumentIds"`
	}
	if !decodeBody(r, &req) {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}

	user, err := s.CreateUser(req.Email, req.Password, req.Name)
	switch {
	case errors.Is(err, ErrEmailTaken):
		errorResponse(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrPasswordTooWeak):
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.logger.Error("failed to create user", zap.Error(err))
		errorResponse(w, "error creating user", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, user)
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if !decodeBody(r, &req) || req.RefreshToken == "" {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}

	// Unknown tokens are ignored so logout never reveals whether a session existed
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.RefreshToken == req.RefreshToken {
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	messageResponse(w, "logged out")
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if !decodeBody(r, &req) || req.RefreshToken == "" {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	for _, sess := range s.sessions {
		if sess.RefreshToken == req.RefreshToken {
			sess.Revoked = true
		}
	}
	s.mu.Unlock()

	messageResponse(w, "session revoked")
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.renewCalls++
	status, delay := s.renewStatus, s.renewDelay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		errorResponse(w, "invalid refresh token", status)
		return
	}

	var req refreshTokenRequest
	if !decodeBody(r, &req) || req.RefreshToken == "" {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}

	claims, err := s.parseToken(req.RefreshToken, tokenTypeRefresh)
	if err != nil {
		errorResponse(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[claims.SessionID]
	if !ok || sess.RefreshToken != req.RefreshToken {
		errorResponse(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}
	if sess.Revoked {
		errorResponse(w, ErrSessionRevoked.Error(), http.StatusUnauthorized)
		return
	}
	user, ok := s.users[sess.UserID]
	if !ok || user.ID != claims.UserID {
		errorResponse(w, "invalid session", http.StatusUnauthorized)
		return
	}

	accessToken, expiresAt, err := s.createToken(user, sess.ID, tokenTypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		s.logger.Error("failed to create access token", zap.Error(err))
		errorResponse(w, "error creating access token", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]any{
		"accessToken":          accessToken,
		"accessTokenExpiresAt": expiresAt,
	})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	if user, ok := s.users[userID]; ok {
		delete(s.emails, user.Email)
	}
	delete(s.users, userID)
	delete(s.settings, userID)
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
		}
	}
	for id, rec := range s.records {
		if rec.UserID == userID {
			delete(s.records, id)
		}
	}
	for id, c := range s.categories {
		if c.UserID == userID {
			delete(s.categories, id)
		}
	}
	for id, pm := range s.paymentMethods {
		if pm.UserID == userID {
			delete(s.paymentMethods, id)
		}
	}
	s.mu.Unlock()

	messageResponse(w, "account deleted")
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, userID uint64) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !decodeBody(r, &req) {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		errorResponse(w, "passwords do not match", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		errorResponse(w, ErrPasswordTooWeak.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	user, ok := s.users[userID]
	var hash []byte
	if ok {
		hash = user.PasswordHash
	}
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(req.CurrentPassword)) != nil {
		errorResponse(w, "current password is incorrect", http.StatusBadRequest)
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		errorResponse(w, "error changing password", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	if user, ok := s.users[userID]; ok {
		user.PasswordHash = newHash
	}
	// Every session must log in again with the new password
	s.revokeUserSessionsLocked(userID)
	s.mu.Unlock()

	messageResponse(w, "password changed")
}
