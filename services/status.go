package services

import "github.com/Dosada05/lanparty/models"

// checkStatusTransition validates an update that moves a tournament from one status to
// another. teamCount is the number of teams that reached the minimum size.
//
//	hidden -> ready -> started -> finished
//	ready  -> hidden
//
// Finished is only reached by ending the tournament.
func checkStatusTransition(from, to models.TournamentStatus, teamCount, countMin, countMax int) error {
	if !to.Valid() {
		return validationError("unknown tournament status %q", to)
	}
	if from == to {
		return nil
	}
	if from.Locked() {
		return errTournamentStarted
	}
	switch to {
	case models.StatusFinished:
		return stateError("a tournament is finished by ending it with a ranking")
	case models.StatusStarted:
		if from != models.StatusReady {
			return stateError("tournament must be ready before it starts")
		}
	}
	if to == models.StatusReady || to == models.StatusStarted {
		return checkTeamCount(teamCount, countMin, countMax)
	}
	return nil
}

func checkTeamCount(teamCount, countMin, countMax int) error {
	if teamCount < countMin || teamCount > countMax {
		return stateError("tournament needs between %d and %d complete teams, has %d", countMin, countMax, teamCount)
	}
	return nil
}

// checkRosterChange guards team changes of a ready tournament: a change may not take
// the number of complete teams out of [countMin, countMax]. A count that is still
// outside, as while players sign up, may change freely.
func checkRosterChange(status models.TournamentStatus, before, after, countMin, countMax int) error {
	if status != models.StatusReady || checkTeamCount(before, countMin, countMax) != nil {
		return nil
	}
	return checkTeamCount(after, countMin, countMax)
}

// checkCreationStatus allows new tournaments to start hidden or ready.
func checkCreationStatus(status models.TournamentStatus) error {
	switch status {
	case models.StatusHidden, models.StatusReady:
		return nil
	case models.StatusStarted, models.StatusFinished:
		return validationError("a tournament cannot be created as %s", status)
	}
	return validationError("unknown tournament status %q", status)
}
