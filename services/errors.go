package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/lanparty/repositories"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrValidation   = errors.New("validation_error")
	ErrNotFound     = errors.New("not_found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrState        = errors.New("state_error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("unavailable")
)

// Error is a failure the caller is allowed to see.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func notFoundError(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func forbiddenError(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func conflictError(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func stateError(format string, args ...any) error {
	return newError(ErrState, format, args...)
}

var (
	errTournamentStarted = stateError("tournament already started")
	errAuthRequired      = newError(ErrUnauthorized, "authentication required")
)

var repositoryErrors = []struct {
	sentinel error
	mapped   *Error
}{
	{repositories.ErrUserNotFound, newError(ErrNotFound, "user not found")},
	{repositories.ErrUsernameConflict, newError(ErrConflict, "username is already taken")},
	{repositories.ErrUserInUse, newError(ErrConflict, "user is still registered to an event")},
	{repositories.ErrEventNotFound, newError(ErrNotFound, "event not found")},
	{repositories.ErrEventShortNameTaken, newError(ErrConflict, "event short name is already taken")},
	{repositories.ErrRegistrationNotFound, newError(ErrNotFound, "registration not found")},
	{repositories.ErrRegistrationConflict, newError(ErrConflict, "user is already registered to the event")},
	{repositories.ErrTournamentNotFound, newError(ErrNotFound, "tournament not found")},
	{repositories.ErrTournamentShortNameTaken, newError(ErrConflict, "tournament short name is already taken in this event")},
	{repositories.ErrTournamentEventInvalid, newError(ErrNotFound, "event not found")},
	{repositories.ErrTeamNotFound, newError(ErrNotFound, "team not found")},
	{repositories.ErrMemberNotFound, newError(ErrNotFound, "user is not a member of the team")},
	{repositories.ErrMemberConflict, newError(ErrConflict, "user already has a team in this tournament")},
	{repositories.ErrMemberNotRegistered, newError(ErrValidation, "user is not registered to the event")},
	{repositories.ErrTeamTournamentInvalid, newError(ErrNotFound, "tournament not found")},
}

// translate turns repository sentinels into service errors. Anything else is returned
// unchanged and ends up as an internal error.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	for _, m := range repositoryErrors {
		if errors.Is(err, m.sentinel) {
			return m.mapped
		}
	}
	return err
}

// KindOf returns the kind name of err, or "" for internal errors.
func KindOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind.Error()
	}
	return ""
}
