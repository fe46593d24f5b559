package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameConflict    = errors.New("username is already taken")
	ErrUserInUse           = errors.New("user is still registered to an event")
	ErrEventNotFound       = errors.New("event not found")
	ErrEventShortNameTaken = errors.New("event short name is already in use")

	ErrRegistrationNotFound = errors.New("registration not found")
	ErrRegistrationConflict = errors.New("user is already registered to this event")

	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentShortNameTaken = errors.New("tournament short name is already in use in this event")
	ErrTournamentEventInvalid   = errors.New("tournament event does not exist")

	ErrTeamNotFound          = errors.New("team not found")
	ErrMemberNotFound        = errors.New("user is not a member of this team")
	ErrMemberConflict        = errors.New("user already belongs to a team in this tournament")
	ErrMemberNotRegistered   = errors.New("user is not registered to the tournament's event")
	ErrTeamTournamentInvalid = errors.New("team tournament does not exist")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// pqError returns the postgres error code and constraint name, if err is a *pq.Error.
func pqError(err error) (code, constraint string, ok bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", "", false
	}
	return string(pqErr.Code), pqErr.Constraint, true
}
