package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the token bundle returned by a successful login
type Session struct {
	SessionID             string       `json:"sessionId"`
	AccessToken           string       `json:"accessToken"`
	RefreshToken          string       `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time    `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time    `json:"refreshTokenExpiresAt"`
	User                  *UserProfile `json:"user,omitempty"`
}

// SetSession stores the tokens and user from a login response. Missing
// expiries are read from the tokens' "exp" claim when they are JWTs.
func (s *CredentialStore) SetSession(sess *Session) error {
	if sess == nil {
		return fmt.Errorf("nil session")
	}
	accessExp := sess.AccessTokenExpiresAt
	if accessExp.IsZero() {
		accessExp, _ = ExpiryFromToken(sess.AccessToken)
	}
	refreshExp := sess.RefreshTokenExpiresAt
	if refreshExp.IsZero() {
		refreshExp, _ = ExpiryFromToken(sess.RefreshToken)
	}

	if err := s.SetTokens(sess.AccessToken, accessExp, sess.RefreshToken, refreshExp); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	if sess.User != nil {
		if err := s.SetUser(sess.User); err != nil {
			return fmt.Errorf("failed to store user: %w", err)
		}
	}
	return nil
}

// ExpiryFromToken reads the "exp" claim of a JWT without verifying its
// signature. The client never holds the signing key, so the value is only
// a hint for scheduling renewals.
func ExpiryFromToken(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
