// Package auth issues and checks the identities the API trusts.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A user registers or logs in with email and password (POST /login), or
//     signs in with GitHub (/auth/github/login → /auth/github/callback)
//  2. The server issues a signed JWT and sets it as the HttpOnly "token" cookie
//     (and returns it in the body for non-browser clients)
//  3. On later requests the middleware reads the cookie, or an
//     "Authorization: Bearer <jwt>" header, validates it, and puts the user ID
//     in the request context
//
// The token is the only proof of identity. Handlers never read a user ID from
// the request body or query string.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","iss":"snippet-share","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "snippet-share"

	// DefaultTokenTTL matches the lifetime of the session cookie.
	DefaultTokenTTL = 7 * 24 * time.Hour

	// MinSecretLen is the shortest HMAC secret NewTokenService accepts.
	MinSecretLen = 16
)

// ErrTokenExpired is returned by Validate for a well-formed token past its expiry.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies access tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. ttl <= 0 selects DefaultTokenTTL.
// Example secret: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLen)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is how long issued tokens stay valid.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate signs a token for userID that expires after the service TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.sign(userID, time.Now(), s.ttl)
}

func (s *TokenService) sign(userID string, now time.Time, ttl time.Duration) (string, error) {
	c := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies tokenStr and returns the user ID in its "sub" claim.
//
// Checked by the jwt library: signature, expiry (required), issuer, and that
// the algorithm is HS256. Pinning the algorithm blocks "alg":"none" tokens.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
