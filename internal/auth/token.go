// Package auth issues and verifies session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"skrbl/internal/cache"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	Issuer   = "skrbl-api"
	Audience = "skrbl-client"
	// TokenTTL is the lifetime of an issued token.
	TokenTTL = 7 * 24 * time.Hour
	// CookieName carries the token for browser navigation such as /dashboard.
	CookieName = "skrbl_session"
)

var (
	ErrMissingSecret = errors.New("JWT secret not configured")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrRevokedToken  = errors.New("token has been revoked")
)

// Claims is the parsed content of a session token.
type Claims struct {
	UserID    uint
	Username  string
	ID        string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens and tracks revoked
// token ids in Redis.
type TokenIssuer struct {
	secret []byte
	redis  *redis.Client
	now    func() time.Time
}

// NewTokenIssuer returns an issuer. rdb may be nil, which disables revocation.
func NewTokenIssuer(secret string, rdb *redis.Client) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), redis: rdb, now: time.Now}
}

// Issue creates a signed token for the user.
func (t *TokenIssuer) Issue(userID uint, username string) (string, *Claims, error) {
	if len(t.secret) == 0 {
		return "", nil, ErrMissingSecret
	}

	now := t.now()
	claims := tokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, &Claims{
		UserID:    userID,
		Username:  username,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Parse validates signature, issuer, audience, expiry and subject, then
// rejects revoked tokens. A Redis failure during the revocation check is
// not treated as revoked.
func (t *TokenIssuer) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	if len(t.secret) == 0 {
		return nil, ErrMissingSecret
	}

	var tc tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &tc, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(tc.Subject, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		UserID:    uint(userID),
		Username:  tc.Username,
		ID:        tc.ID,
		ExpiresAt: tc.ExpiresAt.Time,
	}

	if claims.ID != "" && t.redis != nil {
		n, err := t.redis.Exists(ctx, cache.BlacklistKey(claims.ID)).Result()
		if err == nil && n > 0 {
			return nil, ErrRevokedToken
		}
	}

	return claims, nil
}

// Revoke blacklists the token id until the token would have expired anyway.
func (t *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	if t.redis == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return nil
	}
	return t.redis.Set(ctx, cache.BlacklistKey(claims.ID), "1", ttl).Err()
}
