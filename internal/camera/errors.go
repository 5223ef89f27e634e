package camera

import "fmt"

// Error is returned by every camera operation that fails. Code identifies the
// kind; errors.Is matches on it, so callers compare against the sentinels.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Error codes
const (
	ErrCodeInvalidArgument       = "INVALID_ARGUMENT"
	ErrCodeUnsupportedFormat     = "UNSUPPORTED_FORMAT"
	ErrCodeInvalidState          = "INVALID_STATE"
	ErrCodeAcquisitionInProgress = "ACQUISITION_IN_PROGRESS"
	ErrCodeDevice                = "DEVICE_ERROR"
)

var (
	ErrInvalidArgument       = &Error{Code: ErrCodeInvalidArgument}
	ErrUnsupportedFormat     = &Error{Code: ErrCodeUnsupportedFormat}
	ErrInvalidState          = &Error{Code: ErrCodeInvalidState}
	ErrAcquisitionInProgress = &Error{Code: ErrCodeAcquisitionInProgress}
	ErrDevice                = &Error{Code: ErrCodeDevice}
)

// NewError creates a new camera error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func invalidArgument(format string, args ...any) *Error {
	return NewError(ErrCodeInvalidArgument, fmt.Sprintf(format, args...), nil)
}

func invalidState(format string, args ...any) *Error {
	return NewError(ErrCodeInvalidState, fmt.Sprintf(format, args...), nil)
}
