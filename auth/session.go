package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ganderhq/gander/db"
	"github.com/rs/zerolog/log"
)

// expirySkew treats tokens expiring within this window as already expired,
// so a token never goes stale in the middle of a long download.
const expirySkew = 5 * time.Minute

// LoginFallback performs an interactive login against the given session.
// Ensure invokes it when no stored token can be refreshed.
type LoginFallback func(ctx context.Context, s *Session) error

// Session owns the current token and its lifecycle. There is at most one
// current token; every read goes through AccessToken, which holds a read
// lock so a refresh in progress blocks concurrent API calls instead of
// letting them race a stale token.
type Session struct {
	mu      sync.RWMutex
	storer  TokenStorer
	client  TokenClient
	current *db.Token
}

// NewSession creates a session over a credential store and a token client.
func NewSession(storer TokenStorer, client TokenClient) *Session {
	return &Session{storer: storer, client: client}
}

// AccessToken returns the current access token for the duration of one
// operation. It fails with ErrNoToken when no valid token is held.
func (s *Session) AccessToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || !isTokenValid(s.current) {
		return "", ErrNoToken
	}
	return s.current.AccessToken, nil
}

// LoginWithCode exchanges a one-time code for a token and persists it.
func (s *Session) LoginWithCode(ctx context.Context, code string) error {
	access, refresh, expiresIn, err := s.client.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("code login failed: %w", err)
	}
	return s.adopt(access, refresh, expiresIn)
}

// LoginWithCredentials performs a username/password login, consulting the
// MFA provider at most once when the platform demands a second factor.
func (s *Session) LoginWithCredentials(ctx context.Context, username, password string, mfa MFAProvider) error {
	access, refresh, expiresIn, err := s.client.CredentialLogin(ctx, username, password, mfa)
	if err != nil {
		return fmt.Errorf("credential login failed: %w", err)
	}
	return s.adopt(access, refresh, expiresIn)
}

// Refresh exchanges the stored token for a fresh one. A still-valid stored
// token is adopted without a network round trip. On refresh failure the
// session holds no token and the caller must fall back to interactive login.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.storer.GetTokenRecord()
	if err != nil {
		return fmt.Errorf("failed to retrieve token record: %w", err)
	}
	if token == nil {
		s.current = nil
		return ErrNoToken
	}
	if isTokenValid(token) {
		s.current = token
		return nil
	}

	access, refresh, expiresIn, err := s.client.PerformTokenRefresh(ctx, token.RefreshToken)
	if err != nil {
		s.current = nil
		return fmt.Errorf("failed to perform token refresh: %w", err)
	}
	token.AccessToken = access
	token.RefreshToken = refresh
	token.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second).Format(time.RFC3339)
	if err := s.storer.UpsertTokenRecord(token); err != nil {
		s.current = nil
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}
	s.current = token
	log.Info().Msg("Token refreshed and saved successfully.")
	return nil
}

// Ensure produces a valid current token: it refreshes the stored token when
// one exists and falls back to interactive login when the refresh fails or
// no token was ever stored. Other components must not run before Ensure
// succeeds.
func (s *Session) Ensure(ctx context.Context, fallback LoginFallback) error {
	err := s.Refresh(ctx)
	if err == nil {
		return nil
	}
	if fallback == nil {
		return err
	}
	log.Warn().Err(err).Msg("Could not refresh token, falling back to interactive login.")
	if err := fallback(ctx, s); err != nil {
		return fmt.Errorf("interactive login failed: %w", err)
	}
	if _, err := s.AccessToken(); err != nil {
		return err
	}
	return nil
}

// adopt replaces the current token and writes it through the credential
// store. This is the only path that updates persisted credentials.
func (s *Session) adopt(access, refresh string, expiresIn int64) error {
	token := &db.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second).Format(time.RFC3339),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storer.UpsertTokenRecord(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	s.current = token
	log.Info().Msg("Token saved successfully.")
	return nil
}

// isTokenValid reports whether the token is usable for API calls, applying
// the expiry skew.
func isTokenValid(token *db.Token) bool {
	if token == nil || token.AccessToken == "" || token.RefreshToken == "" || token.ExpiresAt == "" {
		return false
	}
	expiresAt, err := time.Parse(time.RFC3339, token.ExpiresAt)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to parse expiration time: %s", token.ExpiresAt)
		return false
	}
	return time.Now().Add(expirySkew).Before(expiresAt)
}
