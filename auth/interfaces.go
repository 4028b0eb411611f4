package auth

import (
	"context"

	"github.com/ganderhq/gander/db"
)

// MFAProvider supplies a second-factor code when the platform demands one.
// It blocks until the user answers; the session invokes it at most once per
// login attempt.
type MFAProvider func() (string, error)

// TokenStorer is the persistence seam for the credential store. The session
// is the only component that writes through it.
type TokenStorer interface {
	GetTokenRecord() (*db.Token, error)
	UpsertTokenRecord(token *db.Token) error
}

// TokenClient performs the platform-side token operations.
type TokenClient interface {
	// PerformTokenRefresh exchanges a refresh token for a fresh token pair.
	PerformTokenRefresh(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, expiresIn int64, err error)
	// ExchangeCode exchanges a one-time login code for a token pair.
	ExchangeCode(ctx context.Context, code string) (accessToken, refreshToken string, expiresIn int64, err error)
	// CredentialLogin performs a username/password login, consulting mfa when
	// the platform requires a second factor.
	CredentialLogin(ctx context.Context, username, password string, mfa MFAProvider) (accessToken, refreshToken string, expiresIn int64, err error)
}
