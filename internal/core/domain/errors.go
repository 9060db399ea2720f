package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the core wraps exactly one of these so
// the transport layer can map it to a stable status and code.
var (
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrNotRegisteredLocally = errors.New("not registered locally")
	ErrConflict             = errors.New("conflict")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrNotFound             = errors.New("not found")
	ErrProviderFailure      = errors.New("identity provider failure")
	ErrInvariantViolation   = errors.New("invariant violation")
)

// Error is a classified error: Msg is what callers see, Kind is one of the
// classes above and Cause is the optional underlying error.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies cause under kind with a formatted message.
func Wrap(kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// ProviderError wraps a failed identity provider call.
func ProviderError(op string, cause error) error {
	return Wrap(ErrProviderFailure, cause, "identity provider %s failed", op)
}

var (
	ErrMissingCredential   = newError(ErrInvalidCredential, "missing bearer credential")
	ErrTokenExpired        = newError(ErrInvalidCredential, "token has expired")
	ErrInvalidLogin        = newError(ErrInvalidCredential, "incorrect email or password")
	ErrInvalidRefreshToken = newError(ErrInvalidCredential, "invalid refresh token")
	ErrEmailNotConfirmed   = newError(ErrInvalidCredential, "email not confirmed")

	ErrUserNotRegistered = newError(ErrNotRegisteredLocally, "user not registered in application, complete onboarding first")

	ErrUserExists       = newError(ErrConflict, "user already exists")
	ErrEmailTaken       = newError(ErrConflict, "email already registered")
	ErrAlreadyOnboarded = newError(ErrConflict, "user already onboarded")
	ErrDuplicateTask    = newError(ErrConflict, "task already submitted")

	ErrForbidden           = newError(ErrPermissionDenied, "access forbidden")
	ErrCannotMarkOtherUser = newError(ErrPermissionDenied, "users can only mark themselves or anonymous users for deletion")
	ErrAnonymousNotAllowed = newError(ErrPermissionDenied, "anonymous identity cannot perform this action")

	ErrUserNotFound          = newError(ErrNotFound, "user not found")
	ErrAnonymousUserNotFound = newError(ErrNotFound, "anonymous user not found")
	ErrFileNotFound          = newError(ErrNotFound, "file not found")

	ErrPasswordMismatch     = newError(ErrInvariantViolation, "passwords do not match")
	ErrIdentityWithoutEmail = newError(ErrInvariantViolation, "verified identity has no email")
	ErrInvalidUserState     = newError(ErrInvariantViolation, "user record violates the anonymous/verified invariant")
	ErrInvalidTransition    = newError(ErrInvariantViolation, "invalid lifecycle transition")
	ErrFileTypeNotAllowed   = newError(ErrInvariantViolation, "file type not allowed")
	ErrFileTooLarge         = newError(ErrInvariantViolation, "file exceeds maximum size")
	ErrFileNameRequired     = newError(ErrInvariantViolation, "file name is required")
	ErrUnknownTaskType      = newError(ErrInvariantViolation, "unknown task type")

	// ErrRoleNotFound is a server misconfiguration (roles are seeded by
	// migrations), so it carries no class and surfaces as an internal error.
	ErrRoleNotFound = errors.New("role not found")

	// ErrQueueFull is returned when the task buffer cannot take another
	// message. It surfaces as 503.
	ErrQueueFull = errors.New("task queue is full")
)

// Kinds lists every error class in the order the HTTP layer checks them.
var Kinds = []error{
	ErrInvalidCredential,
	ErrNotRegisteredLocally,
	ErrConflict,
	ErrPermissionDenied,
	ErrNotFound,
	ErrProviderFailure,
	ErrInvariantViolation,
}

// KindOf returns the class of err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the caller-facing message of a classified error without
// leaking the underlying cause.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Msg
	}
	return err.Error()
}
