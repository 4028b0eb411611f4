package auth

import "errors"

// Sentinel errors for the authentication paths. Callers match with
// errors.Is; everything else wrapping these is a generic auth failure.
var (
	// ErrInvalidCode means the one-time login code was rejected.
	ErrInvalidCode = errors.New("login code was rejected")
	// ErrIncorrectCredentials means the username/password pair was rejected.
	ErrIncorrectCredentials = errors.New("incorrect username or password")
	// ErrRateLimited means too many login attempts; the platform demands a
	// cool-down before the next try.
	ErrRateLimited = errors.New("too many login attempts, cool down before retrying")
	// ErrNoToken means no valid token is available and no login has happened.
	ErrNoToken = errors.New("no valid token; login required")
)
