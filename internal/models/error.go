package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("resource already exists")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrInternalServer  = errors.New("internal server error")
	ErrDependency      = errors.New("dependency unavailable")
	ErrTooManyRequests = errors.New("too many requests")

	// Account state errors
	ErrAccountInactive  = errors.New("account is inactive")
	ErrEmailNotVerified = errors.New("email address not verified")
	ErrAlreadyVerified  = errors.New("email address already verified")

	ErrIncorrectOldPassword = errors.New("old password is incorrect")
	ErrSuperUserProtected   = errors.New("super users cannot be modified")
)

// ValidationError reports per-field problems found while processing a request
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// Add records another message for field
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// OrNil returns nil when no field has been recorded
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
