package fakeapi

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionRevoked = errors.New("session is revoked")
)

type tokenClaims struct {
	UserID    uint64 `json:"userId"`
	Email     string `json:"email"`
	Type      string `json:"type"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type session struct {
	ID           string
	UserID       uint64
	RefreshToken string
	Revoked      bool
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("fakeapi: failed to generate secret: %v", err))
	}
	return hex.EncodeToString(b)
}

// createToken signs a token of the given type for the user and session
func (s *Server) createToken(user *account, sessionID, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := s.cfg.Now()
	// JWT timestamps have second precision
	expiresAt := now.Add(ttl).Truncate(time.Second)

	claims := tokenClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Type:      tokenType,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Email,
			Issuer:    s.cfg.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// parseToken validates the signature, expiry, issuer and type of a token
func (s *Server) parseToken(tokenString, tokenType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecretKey), nil
	}, jwt.WithIssuer(s.cfg.JWTIssuer), jwt.WithTimeFunc(s.cfg.Now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Type != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// issueSessionLocked creates a session and its token pair. Callers hold s.mu.
func (s *Server) issueSessionLocked(user *account) (*LoginResult, error) {
	sessionID := uuid.NewString()

	accessToken, accessExp, err := s.createToken(user, sessionID, tokenTypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.createToken(user, sessionID, tokenTypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	s.sessions[sessionID] = &session{
		ID:           sessionID,
		UserID:       user.ID,
		RefreshToken: refreshToken,
		ExpiresAt:    refreshExp,
		CreatedAt:    s.cfg.Now(),
	}

	profile := *user.User
	return &LoginResult{
		SessionID:             sessionID,
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
		User:                  &profile,
	}, nil
}

// IssueAccessToken signs a fresh access token for an existing session with
// an explicit lifetime. A negative ttl yields an already expired token.
func (s *Server) IssueAccessToken(sessionID string, ttl time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", time.Time{}, ErrInvalidToken
	}
	user, ok := s.users[sess.UserID]
	if !ok {
		return "", time.Time{}, ErrInvalidToken
	}
	return s.createToken(user, sessionID, tokenTypeAccess, ttl)
}

// revokeUserSessionsLocked marks every session of the user revoked
func (s *Server) revokeUserSessionsLocked(userID uint64) {
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			sess.Revoked = true
		}
	}
}

// RevokeSessions revokes all sessions of the user with the given email
func (s *Server) RevokeSessions(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.emails[email]; ok {
		s.revokeUserSessionsLocked(id)
	}
}
