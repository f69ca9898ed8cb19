package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sociapi/domain"
	"sociapi/errs"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Claims are the claims of both token kinds. The refresh token's ID (jti)
// identifies the session it belongs to.
type Claims struct {
	UserID string `json:"uid"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies access and refresh tokens with separate secrets.
type Tokens struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokens returns a Tokens using HS256 with the given secrets.
func NewTokens(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// Issue creates a new token pair for userID. The returned refresh id is the
// jti of the refresh token.
func (t *Tokens) Issue(userID string) (*domain.TokenPair, string, error) {
	access, err := t.sign(userID, kindAccess, "", t.accessTTL, t.accessSecret)
	if err != nil {
		return nil, "", err
	}
	refreshID := domain.NewID()
	refresh, err := t.sign(userID, kindRefresh, refreshID, t.refreshTTL, t.refreshSecret)
	if err != nil {
		return nil, "", err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(t.accessTTL / time.Second),
	}, refreshID, nil
}

func (t *Tokens) sign(userID, kind, id string, ttl time.Duration, secret []byte) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", kind, err)
	}
	return signed, nil
}

// ParseAccess verifies an access token and returns its claims.
func (t *Tokens) ParseAccess(token string) (*Claims, error) {
	return t.parse(token, kindAccess, t.accessSecret)
}

// ParseRefresh verifies a refresh token and returns its claims.
func (t *Tokens) ParseRefresh(token string) (*Claims, error) {
	return t.parse(token, kindRefresh, t.refreshSecret)
}

func (t *Tokens) parse(token, kind string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.Errorf(errs.EUNAUTHORIZED, "The token has expired.")
		}
		return nil, errs.ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Kind != kind || claims.UserID == "" {
		return nil, errs.ErrTokenInvalid
	}
	return claims, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
