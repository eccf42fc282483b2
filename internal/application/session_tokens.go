package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionTokenIssuer = "qr-pointage"

// SessionClaims are the values carried inside a session token.
type SessionClaims struct {
	SessionID string
	UserID    string
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenSigner turns session claims into opaque bearer tokens and back.
type TokenSigner interface {
	Sign(claims SessionClaims) (string, error)
	Verify(token string, now time.Time) (SessionClaims, error)
}

type sessionJWTClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// JWTSigner signs session tokens with HMAC-SHA256.
type JWTSigner struct {
	secret []byte
}

// NewJWTSigner builds a signer; the secret must not be blank.
func NewJWTSigner(secret string) (*JWTSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	return &JWTSigner{secret: []byte(secret)}, nil
}

// Sign encodes claims as a compact HS256 JWT.
func (s *JWTSigner) Sign(claims SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionJWTClaims{
		SessionID: claims.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionTokenIssuer,
			Subject:   claims.UserID,
			ID:        claims.Nonce,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry against now.
func (s *JWTSigner) Verify(token string, now time.Time) (SessionClaims, error) {
	var parsed sessionJWTClaims
	_, err := jwt.ParseWithClaims(token, &parsed,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	claims := SessionClaims{
		SessionID: parsed.SessionID,
		UserID:    parsed.Subject,
		Nonce:     parsed.ID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}
