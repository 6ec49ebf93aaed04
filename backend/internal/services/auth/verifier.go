package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSessionNotFound = errors.New("session not found")
)

type SessionRecord struct {
	SID       string
	UserID    int64
	ExpiresAt time.Time
}

// SessionReader looks up sessions written by the login service. Revoked sessions
// are absent.
type SessionReader interface {
	GetSession(ctx context.Context, sid string) (SessionRecord, error)
}

type Claims struct {
	UserID    int64
	SID       string
	ExpiresAt time.Time
}

type accessClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens. Issuing tokens is the login service's
// job; this side only checks signature, expiry and session liveness.
type Verifier struct {
	secret   []byte
	sessions SessionReader
	now      func() time.Time
}

func NewVerifier(secret string, sessions SessionReader) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		sessions: sessions,
		now:      time.Now,
	}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (Claims, error) {
	if len(v.secret) == 0 || strings.TrimSpace(raw) == "" {
		return Claims{}, ErrUnauthorized
	}

	parsed := &accessClaims{}
	token, err := jwt.ParseWithClaims(raw, parsed, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || token == nil || !token.Valid {
		return Claims{}, ErrUnauthorized
	}

	userID, parseErr := strconv.ParseInt(parsed.Subject, 10, 64)
	if parseErr != nil || userID <= 0 || strings.TrimSpace(parsed.SID) == "" {
		return Claims{}, ErrUnauthorized
	}

	claims := Claims{
		UserID:    userID,
		SID:       parsed.SID,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if v.sessions == nil {
		return claims, nil
	}

	session, err := v.sessions.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Claims{}, ErrUnauthorized
		}
		return Claims{}, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != claims.UserID || v.now().After(session.ExpiresAt) {
		return Claims{}, ErrUnauthorized
	}

	return claims, nil
}
