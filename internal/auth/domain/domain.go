// Package domain defines authentication: Google OAuth sign-in, JWT access
// tokens and hashed refresh tokens.
package domain

import (
	"context"
	"errors"
	"time"

	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

var (
	ErrNoToken       = errors.New("missing bearer token")
	ErrTokenExpired  = errors.New("access token expired")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidUser   = errors.New("token user no longer exists")
	ErrOAuthExchange = errors.New("oauth code exchange failed")
)

// Code maps an auth error to the wire-level error code returned with 401s.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "NO_TOKEN"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrInvalidUser):
		return "INVALID_USER"
	default:
		return "INVALID_TOKEN"
	}
}

// TokenPair is what a successful sign-in or refresh returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Service interface {
	// GoogleAuthURL builds the consent redirect. state round-trips the
	// optional referral code.
	GoogleAuthURL(state string) string

	// GoogleCallback exchanges the OAuth code, fetches the Google profile
	// and finds or creates the account. referralCode, when present and
	// valid, rewards the referrer and grants the welcome bonus.
	GoogleCallback(ctx context.Context, code, referralCode string) (*TokenPair, *userdomain.User, error)

	// Refresh rotates a refresh token: the presented token is revoked and a
	// fresh pair is issued.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	Logout(ctx context.Context, refreshToken string) error

	// Authenticate verifies an access token and resolves its user.
	Authenticate(ctx context.Context, accessToken string) (*userdomain.User, error)
}

// RefreshTokenRepository persists sha256-hashed refresh tokens.
type RefreshTokenRepository interface {
	Store(ctx context.Context, token *userdomain.RefreshToken) error
	FindActive(ctx context.Context, tokenHash string, now time.Time) (*userdomain.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string, at time.Time) error
}
