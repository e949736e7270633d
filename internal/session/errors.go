package session

import "errors"

var (
	// ErrSessionNotFound is returned when no session has the requested ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserNotFound is returned when a session is started for an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrConflict is returned when the session changed since it was read.
	ErrConflict = errors.New("session was modified concurrently")

	// ErrEndTimeRequired is returned by EndSession when no end time is given
	// and the service is configured to require one.
	ErrEndTimeRequired = errors.New("end time is required")

	// ErrInvalidTimestamp is returned for timestamps that cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrInvalidSession is returned when required session fields are missing.
	ErrInvalidSession = errors.New("invalid session")
)
