package core

import "github.com/pkg/errors"

var (
	// ErrKeyNotFound is returned by a Storage when nothing is persisted under a key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrForbidden is returned when the current session lacks the capability for an action.
	ErrForbidden = errors.New("permission denied")
	// ErrNotAuthenticated is returned when an action requires a logged in session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// ArgumentError reports a bad command line argument.
type ArgumentError struct {
	msg string
}

func NewArgumentError(msg string) *ArgumentError {
	return &ArgumentError{msg}
}

func (err *ArgumentError) Error() string {
	return err.msg
}
