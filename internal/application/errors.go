package application

import "errors"

// Caller-facing failures. Anything else returned by the services is an
// internal error.
var (
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("incorrect username or password")
	ErrUnauthenticated      = errors.New("could not validate credentials")
	ErrInactiveAccount      = errors.New("inactive user")
	ErrIncorrectOldPassword = errors.New("old password is incorrect")
	ErrPasswordTooLong      = errors.New("password must be at most 72 bytes")
)
