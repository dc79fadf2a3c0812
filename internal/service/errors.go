package service

import "errors"

var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoActiveSession indicates no session is currently accepting check-ins.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionExpired indicates the session was closed or ran past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionConflict indicates a concurrent activation won the single-active slot.
	ErrSessionConflict = errors.New("another session was activated concurrently")
	// ErrAttendanceExists indicates the user already has a record for the session.
	ErrAttendanceExists = errors.New("attendance already marked")
	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInactive indicates the target account is disabled.
	ErrUserInactive = errors.New("user is disabled")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates a login attempt on a disabled account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrForbidden indicates the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrCannotDeleteSelf indicates an admin attempted to delete their own account.
	ErrCannotDeleteSelf = errors.New("cannot delete own account")
	// ErrInvalidName indicates a display name that is empty once markup is stripped.
	ErrInvalidName = errors.New("name must contain text")
	// ErrInvalidUsername indicates a username with whitespace or markup.
	ErrInvalidUsername = errors.New("username must not contain spaces or markup")
)
