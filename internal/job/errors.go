package job

import "fmt"

// Error codes for job configuration and enumeration.
const (
	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeNoInput       = "NO_INPUT"
	ErrCodeUnreadable    = "UNREADABLE_PATH"
)

// Error is a job-level error with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func invalidConfig(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf(format, args...)}
}
