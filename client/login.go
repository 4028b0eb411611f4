package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ganderhq/gander/auth"
	"github.com/rs/zerolog/log"
)

const (
	gogClientID     = "46899977096215655"
	gogClientSecret = "9d85c43b1482497dbbce61f6e4aa173a433796eeae2ca8c5f6129f2dc4de46d9"
	gogRedirectURI  = "https://embed.gog.com/on_login_success?origin=client"
)

// GOGLoginURL is the login-form URL. For the code-paste flow the user visits
// it in any browser and copies the ?code parameter of the success redirect.
var GOGLoginURL = "https://auth.gog.com/auth?client_id=" + gogClientID +
	"&redirect_uri=https%3A%2F%2Fembed.gog.com%2Fon_login_success%3Forigin%3Dclient" +
	"&response_type=code&layout=client2"

// GogAuth implements auth.TokenClient against GOG's auth endpoints.
type GogAuth struct {
	// TokenURL overrides the token endpoint, mainly for tests.
	TokenURL string
	// Headless controls whether the credential-login browser is visible.
	Headless bool
}

func (a *GogAuth) tokenURL() string {
	if a.TokenURL != "" {
		return a.TokenURL
	}
	return "https://auth.gog.com/token"
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Error        string `json:"error_description"`
}

// PerformTokenRefresh exchanges a refresh token for a fresh token pair.
func (a *GogAuth) PerformTokenRefresh(ctx context.Context, refreshToken string) (string, string, int64, error) {
	result, status, err := a.postTokenForm(ctx, url.Values{
		"client_id":     {gogClientID},
		"client_secret": {gogClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return "", "", 0, err
	}
	if status >= 400 || result.Error != "" {
		return "", "", 0, fmt.Errorf("token refresh rejected (status %d): %s", status, result.Error)
	}
	return result.AccessToken, result.RefreshToken, result.ExpiresIn, nil
}

// ExchangeCode exchanges a one-time login code for a token pair.
func (a *GogAuth) ExchangeCode(ctx context.Context, code string) (string, string, int64, error) {
	result, status, err := a.postTokenForm(ctx, url.Values{
		"client_id":     {gogClientID},
		"client_secret": {gogClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {gogRedirectURI},
	})
	if err != nil {
		return "", "", 0, err
	}
	if status >= 400 || result.AccessToken == "" {
		log.Warn().Int("status", status).Str("error", result.Error).Msg("Code exchange rejected")
		return "", "", 0, fmt.Errorf("%w: %s", auth.ErrInvalidCode, result.Error)
	}
	return result.AccessToken, result.RefreshToken, result.ExpiresIn, nil
}

// CredentialLogin drives the GOG login form with a browser, filling the
// two-factor form from mfa when GOG demands one, and exchanges the captured
// code for a token pair.
func (a *GogAuth) CredentialLogin(ctx context.Context, username, password string, mfa auth.MFAProvider) (string, string, int64, error) {
	if username == "" || password == "" {
		return "", "", 0, auth.ErrIncorrectCredentials
	}

	browserCtx, cancel, err := createChromeContext(a.Headless)
	if err != nil {
		return "", "", 0, err
	}
	defer cancel()

	log.Info().Msg("Trying to login to GOG.com.")
	finalURL, err := performFormLogin(browserCtx, GOGLoginURL, username, password, mfa)
	if err != nil {
		return "", "", 0, err
	}

	code, err := extractAuthCode(finalURL)
	if err != nil {
		return "", "", 0, err
	}
	return a.ExchangeCode(ctx, code)
}

func (a *GogAuth) postTokenForm(ctx context.Context, query url.Values) (tokenResponse, int, error) {
	var result tokenResponse

	req, err := http.NewRequestWithContext(ctx, "POST", a.tokenURL(), strings.NewReader(query.Encode()))
	if err != nil {
		return result, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return result, 0, fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, resp.StatusCode, fmt.Errorf("failed to read token response: %w", err)
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return result, resp.StatusCode, fmt.Errorf("failed to parse token response: %w", err)
	}
	return result, resp.StatusCode, nil
}

func createChromeContext(headless bool) (context.Context, context.CancelFunc, error) {
	var execPath string
	if p, err := exec.LookPath("google-chrome"); err == nil {
		execPath = p
	} else if p, err := exec.LookPath("chromium"); err == nil {
		execPath = p
	} else if p, err := exec.LookPath("chrome"); err == nil {
		execPath = p
	} else {
		return nil, nil, fmt.Errorf("no Chrome or Chromium executable found in PATH")
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(execPath))
	if !headless {
		opts = append(opts, chromedp.Flag("headless", false), chromedp.Flag("disable-gpu", false))
	}
	allocatorCtx, cancelAllocator := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelContext := chromedp.NewContext(allocatorCtx, chromedp.WithLogf(log.Debug().Msgf))
	return ctx, func() {
		cancelContext()
		cancelAllocator()
	}, nil
}

// performFormLogin fills the login form and waits for the success redirect.
// When GOG presents the two-step verification page it asks mfa for the
// 4-digit code, once. Credential and rate-limit rejections are detected from
// the page GOG routes back to.
func performFormLogin(ctx context.Context, loginURL, username, password string, mfa auth.MFAProvider) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 4*time.Minute)
	defer cancel()

	var finalURL string
	mfaDone := false
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`#login_username`, chromedp.ByID),
		chromedp.SendKeys(`#login_username`, username, chromedp.ByID),
		chromedp.SendKeys(`#login_password`, password, chromedp.ByID),
		chromedp.Click(`#login_login`, chromedp.ByID),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for {
				var currentURL string
				if err := chromedp.Location(&currentURL).Do(ctx); err != nil {
					return err
				}
				switch {
				case strings.Contains(currentURL, "on_login_success") && strings.Contains(currentURL, "code="):
					finalURL = currentURL
					return nil
				case strings.Contains(currentURL, "two_step"):
					if mfaDone || mfa == nil {
						return fmt.Errorf("two-step verification required but no code available")
					}
					mfaDone = true
					code, err := mfa()
					if err != nil {
						return err
					}
					if err := submitTwoStepCode(ctx, code); err != nil {
						return err
					}
				case strings.Contains(currentURL, "login_failed") || strings.Contains(currentURL, "bad_password"):
					return auth.ErrIncorrectCredentials
				case strings.Contains(currentURL, "recaptcha") || strings.Contains(currentURL, "too_many"):
					return auth.ErrRateLimited
				}
				time.Sleep(500 * time.Millisecond)
			}
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("login timed out: %w", auth.ErrIncorrectCredentials)
		}
		return "", err
	}
	return finalURL, nil
}

// submitTwoStepCode types the 4-digit second-factor code into GOG's
// one-digit-per-box form and submits it.
func submitTwoStepCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if len(code) != 4 {
		return fmt.Errorf("two-step code must be 4 digits, got %q", code)
	}
	fields := []string{
		`#second_step_authentication_token_letter_1`,
		`#second_step_authentication_token_letter_2`,
		`#second_step_authentication_token_letter_3`,
		`#second_step_authentication_token_letter_4`,
	}
	for i, sel := range fields {
		if err := chromedp.SendKeys(sel, string(code[i]), chromedp.ByID).Do(ctx); err != nil {
			return err
		}
	}
	return chromedp.Click(`#second_step_authentication_send`, chromedp.ByID).Do(ctx)
}

func extractAuthCode(authURL string) (string, error) {
	parsedURL, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	code := parsedURL.Query().Get("code")
	if code == "" {
		return "", errors.New("authorization code not found in the URL")
	}
	return code, nil
}
