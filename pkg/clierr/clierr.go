package clierr

// Type categorizes a CLI-facing error for consistent messaging and exit codes.
type Type string

const (
	Usage     Type = "usage"     // bad flags, no search results, aborted selection
	Auth      Type = "auth"      // login/refresh failures
	NotFound  Type = "not_found" // unknown game id, missing install record
	Transport Type = "transport" // network/catalog failures
	Internal  Type = "internal"  // everything else
)

// Exit codes follow the sysexits convention for usage errors.
const (
	ExitOK       = 0
	ExitInternal = 1
	ExitUsage    = 64
)

// Error is a structured user-facing error.
type Error struct {
	Type    Type
	Message string
	Err     error // optional underlying error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// New constructs a new CLI Error.
func New(t Type, msg string, err error) *Error { return &Error{Type: t, Message: msg, Err: err} }

// ExitCode maps an error type to the process exit code.
func (e *Error) ExitCode() int {
	switch e.Type {
	case Usage:
		return ExitUsage
	default:
		return ExitInternal
	}
}
