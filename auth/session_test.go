package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ganderhq/gander/auth"
	"github.com/ganderhq/gander/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStorer struct {
	tokenToReturn *db.Token
	errToReturn   error
	upsertCalled  bool
}

func (m *mockStorer) GetTokenRecord() (*db.Token, error) {
	return m.tokenToReturn, m.errToReturn
}

func (m *mockStorer) UpsertTokenRecord(token *db.Token) error {
	m.upsertCalled = true
	m.tokenToReturn = token
	return nil
}

type mockClient struct {
	refreshErr   error
	exchangeErr  error
	loginErr     error
	mfaCode      string
	wantsMFA     bool
	mfaCallCount int
}

func (m *mockClient) PerformTokenRefresh(ctx context.Context, refreshToken string) (string, string, int64, error) {
	if m.refreshErr != nil {
		return "", "", 0, m.refreshErr
	}
	return "refreshed-access", "refreshed-refresh", 3600, nil
}

func (m *mockClient) ExchangeCode(ctx context.Context, code string) (string, string, int64, error) {
	if m.exchangeErr != nil {
		return "", "", 0, m.exchangeErr
	}
	return "code-access", "code-refresh", 3600, nil
}

func (m *mockClient) CredentialLogin(ctx context.Context, username, password string, mfa auth.MFAProvider) (string, string, int64, error) {
	if m.loginErr != nil {
		return "", "", 0, m.loginErr
	}
	if m.wantsMFA {
		m.mfaCallCount++
		code, err := mfa()
		if err != nil {
			return "", "", 0, err
		}
		m.mfaCode = code
	}
	return "cred-access", "cred-refresh", 3600, nil
}

func validToken() *db.Token {
	return &db.Token{
		AccessToken:  "valid-access",
		RefreshToken: "valid-refresh",
		ExpiresAt:    time.Now().Add(1 * time.Hour).Format(time.RFC3339),
	}
}

func expiredToken() *db.Token {
	return &db.Token{
		AccessToken:  "expired-access",
		RefreshToken: "expired-refresh",
		ExpiresAt:    time.Now().Add(-1 * time.Hour).Format(time.RFC3339),
	}
}

func TestRefreshAdoptsValidStoredToken(t *testing.T) {
	storer := &mockStorer{tokenToReturn: validToken()}
	session := auth.NewSession(storer, &mockClient{})

	require.NoError(t, session.Refresh(context.Background()))

	access, err := session.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "valid-access", access)
	assert.False(t, storer.upsertCalled, "a still-valid token should not be rewritten")
}

func TestRefreshExchangesExpiredToken(t *testing.T) {
	storer := &mockStorer{tokenToReturn: expiredToken()}
	session := auth.NewSession(storer, &mockClient{})

	require.NoError(t, session.Refresh(context.Background()))

	access, err := session.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", access)
	assert.True(t, storer.upsertCalled, "refreshed token must be persisted")
}

func TestRefreshFailureLeavesNoToken(t *testing.T) {
	storer := &mockStorer{tokenToReturn: expiredToken()}
	session := auth.NewSession(storer, &mockClient{refreshErr: errors.New("network down")})

	err := session.Refresh(context.Background())
	require.Error(t, err)

	_, err = session.AccessToken()
	assert.ErrorIs(t, err, auth.ErrNoToken, "a failed refresh must not leave a stale token usable")
	assert.False(t, storer.upsertCalled)
}

func TestRefreshWithoutStoredToken(t *testing.T) {
	session := auth.NewSession(&mockStorer{}, &mockClient{})
	assert.ErrorIs(t, session.Refresh(context.Background()), auth.ErrNoToken)
}

func TestEnsureFallsBackToInteractiveLogin(t *testing.T) {
	storer := &mockStorer{tokenToReturn: expiredToken()}
	session := auth.NewSession(storer, &mockClient{refreshErr: errors.New("refresh rejected")})

	fallbackCalled := false
	err := session.Ensure(context.Background(), func(ctx context.Context, s *auth.Session) error {
		fallbackCalled = true
		return s.LoginWithCode(ctx, "one-time-code")
	})

	require.NoError(t, err)
	assert.True(t, fallbackCalled)

	access, err := session.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "code-access", access)
	assert.True(t, storer.upsertCalled, "interactive login must persist the new token")
}

func TestEnsureWithoutFallbackPropagatesError(t *testing.T) {
	session := auth.NewSession(&mockStorer{}, &mockClient{})
	assert.Error(t, session.Ensure(context.Background(), nil))
}

func TestLoginWithCodeInvalid(t *testing.T) {
	session := auth.NewSession(&mockStorer{}, &mockClient{exchangeErr: auth.ErrInvalidCode})
	err := session.LoginWithCode(context.Background(), "bogus")
	assert.ErrorIs(t, err, auth.ErrInvalidCode)
}

func TestLoginWithCredentialsInvokesMFAOnce(t *testing.T) {
	storer := &mockStorer{}
	client := &mockClient{wantsMFA: true}
	session := auth.NewSession(storer, client)

	err := session.LoginWithCredentials(context.Background(), "user", "pass", func() (string, error) {
		return "1234", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "1234", client.mfaCode)
	assert.Equal(t, 1, client.mfaCallCount)

	access, err := session.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "cred-access", access)
}

func TestLoginWithCredentialsRateLimited(t *testing.T) {
	session := auth.NewSession(&mockStorer{}, &mockClient{loginErr: auth.ErrRateLimited})
	err := session.LoginWithCredentials(context.Background(), "user", "pass", nil)
	assert.ErrorIs(t, err, auth.ErrRateLimited)
}
