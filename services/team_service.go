package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/models"
	"github.com/Dosada05/lanparty/realtime"
	"github.com/Dosada05/lanparty/repositories"
)

type CreateTeamInput struct {
	Name string `json:"name" validate:"required,max=64"`
	// Members lists the initial members. Only organizers may set it; a player creating a
	// team becomes its sole member.
	Members []int `json:"members"`
}

type UpdateTeamInput struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=64"`
	Result *int    `json:"result"`
	Rank   *int    `json:"rank" validate:"omitempty,min=0"`
}

type TeamService interface {
	ListByTournament(ctx context.Context, caller *auth.Caller, tournamentID int) ([]models.Team, error)
	Get(ctx context.Context, caller *auth.Caller, id int) (*models.Team, error)
	Create(ctx context.Context, caller *auth.Caller, tournamentID int, input CreateTeamInput) (*models.Team, error)
	Update(ctx context.Context, caller *auth.Caller, id int, input UpdateTeamInput) (*models.Team, error)
	Delete(ctx context.Context, caller *auth.Caller, id int) error
	AddMember(ctx context.Context, caller *auth.Caller, teamID, userID int) (*models.Team, error)
	// RemoveMember takes the user out of the team. The team is deleted with its last
	// member; dissolved is then true and team holds its final state.
	RemoveMember(ctx context.Context, caller *auth.Caller, teamID, userID int) (team *models.Team, dissolved bool, err error)
}

type teamService struct {
	tx             repositories.Transactor
	teamRepo       repositories.TeamRepository
	tournamentRepo repositories.TournamentRepository
	bus            *realtime.Bus
	logger         *slog.Logger
}

func NewTeamService(
	tx repositories.Transactor,
	teamRepo repositories.TeamRepository,
	tournamentRepo repositories.TournamentRepository,
	bus *realtime.Bus,
	logger *slog.Logger,
) TeamService {
	return &teamService{
		tx:             tx,
		teamRepo:       teamRepo,
		tournamentRepo: tournamentRepo,
		bus:            bus,
		logger:         logger,
	}
}

// tournamentOf loads the tournament a team belongs to and hides it from callers that may
// not see it.
func (s *teamService) tournamentOf(ctx context.Context, exec repositories.SQLExecutor, caller *auth.Caller, tournamentID int, lock bool) (*models.Tournament, error) {
	var (
		t   *models.Tournament
		err error
	)
	if lock {
		t, err = s.tournamentRepo.GetForUpdate(ctx, exec, tournamentID)
	} else {
		t, err = s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	}
	if err != nil {
		return nil, err
	}
	if !canSee(caller, t) {
		return nil, repositories.ErrTournamentNotFound
	}
	return t, nil
}

// completeTeams counts the teams of t that reached the minimum size.
func completeTeams(ctx context.Context, repo repositories.TeamRepository, exec repositories.SQLExecutor, t *models.Tournament) (int, error) {
	teams, err := repo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return 0, err
	}
	return eligibleTeamCount(teams, t.TeamSizeMin), nil
}

// checkRoster recounts the complete teams of t after a membership change and rejects
// the change when it pushes a ready tournament out of its team count bounds. before
// is the count prior to the change.
func checkRoster(ctx context.Context, repo repositories.TeamRepository, exec repositories.SQLExecutor, t *models.Tournament, before int) error {
	if t.Status != models.StatusReady {
		return nil
	}
	after, err := completeTeams(ctx, repo, exec, t)
	if err != nil {
		return err
	}
	return checkRosterChange(t.Status, before, after, t.TeamCountMin, t.TeamCountMax)
}

func (s *teamService) ListByTournament(ctx context.Context, caller *auth.Caller, tournamentID int) ([]models.Team, error) {
	if _, err := s.tournamentOf(ctx, nil, caller, tournamentID, false); err != nil {
		return nil, translate(err)
	}
	teams, err := s.teamRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, translate(err)
	}
	return teams, nil
}

func (s *teamService) Get(ctx context.Context, caller *auth.Caller, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, translate(err)
	}
	if _, err := s.tournamentOf(ctx, nil, caller, team.TournamentID, false); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, translate(repositories.ErrTeamNotFound)
		}
		return nil, translate(err)
	}
	return team, nil
}

func (s *teamService) Create(ctx context.Context, caller *auth.Caller, tournamentID int, input CreateTeamInput) (*models.Team, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	input.Name = normalizeName(input.Name)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var (
		team       *models.Team
		tournament *models.Tournament
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentOf(ctx, exec, caller, tournamentID, true)
		if err != nil {
			return err
		}

		members := input.Members
		if !auth.CanOrganize(caller, t.EventID) {
			if len(members) > 1 || (len(members) == 1 && members[0] != caller.UserID) {
				return forbiddenError("only organizers can create a team for other users")
			}
			members = []int{caller.UserID}
		}

		if t.Status.Locked() {
			return errTournamentStarted
		}
		if len(members) > t.TeamSizeMax {
			return validationError("a team has at most %d members", t.TeamSizeMax)
		}
		seen := make(map[int]bool, len(members))
		for _, userID := range members {
			if seen[userID] {
				return validationError("user %d is listed twice", userID)
			}
			seen[userID] = true
		}

		existing, err := s.teamRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		if len(existing) >= t.TeamCountMax {
			return stateError("tournament already has the maximum of %d teams", t.TeamCountMax)
		}
		for _, other := range existing {
			if other.HasMember(caller.UserID) {
				return conflictError("you already have a team in this tournament")
			}
			for _, userID := range members {
				if other.HasMember(userID) {
					return conflictError("user %d already has a team in this tournament", userID)
				}
			}
		}

		team = &models.Team{TournamentID: t.ID, Name: input.Name}
		if err := s.teamRepo.Create(ctx, exec, team); err != nil {
			return err
		}
		for _, userID := range members {
			if err := s.teamRepo.AddMember(ctx, exec, team.ID, userID); err != nil {
				return err
			}
		}
		if err := checkRoster(ctx, s.teamRepo, exec, t, eligibleTeamCount(existing, t.TeamSizeMin)); err != nil {
			return err
		}
		tournament = t
		team, err = s.teamRepo.GetByID(ctx, exec, team.ID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.InfoContext(ctx, "team created",
		slog.Int("team_id", team.ID), slog.Int("tournament_id", tournamentID), slog.Int("by", caller.UserID))
	publish(s.bus, teamChange(realtime.ActionCreate, team, tournament))
	return team, nil
}

func (s *teamService) Update(ctx context.Context, caller *auth.Caller, id int, input UpdateTeamInput) (*models.Team, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var (
		team       *models.Team
		tournament *models.Tournament
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		team, err = s.teamRepo.GetByID(ctx, exec, id)
		if err != nil {
			return err
		}
		t, err := s.tournamentOf(ctx, exec, caller, team.TournamentID, true)
		if err != nil {
			return teamHidden(err)
		}
		tournament = t
		organizer := auth.CanOrganize(caller, t.EventID)
		if !organizer && !team.HasMember(caller.UserID) {
			return forbiddenError("only organizers and members can modify the team")
		}

		if input.Name != nil {
			name := normalizeName(*input.Name)
			if name == "" {
				return validationError("name is required")
			}
			if name != team.Name && t.Status.Locked() {
				return errTournamentStarted
			}
			team.Name = name
		}
		// result and rank are server-controlled; only organizers may correct them.
		if organizer {
			if input.Result != nil {
				team.Result = *input.Result
			}
			if input.Rank != nil {
				team.Rank = *input.Rank
			}
		}
		return s.teamRepo.Update(ctx, exec, team)
	})
	if err != nil {
		return nil, translate(err)
	}

	publish(s.bus, teamChange(realtime.ActionUpdate, team, tournament))
	return team, nil
}

// teamHidden reports a hidden parent tournament as a missing team.
func teamHidden(err error) error {
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return repositories.ErrTeamNotFound
	}
	return err
}

func (s *teamService) Delete(ctx context.Context, caller *auth.Caller, id int) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	var (
		team       *models.Team
		tournament *models.Tournament
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		team, err = s.teamRepo.GetByID(ctx, exec, id)
		if err != nil {
			return err
		}
		t, err := s.tournamentOf(ctx, exec, caller, team.TournamentID, true)
		if err != nil {
			return teamHidden(err)
		}
		if !auth.CanOrganize(caller, t.EventID) && !team.HasMember(caller.UserID) {
			return forbiddenError("only organizers and members can delete the team")
		}
		if t.Status.Locked() {
			return errTournamentStarted
		}
		before, err := completeTeams(ctx, s.teamRepo, exec, t)
		if err != nil {
			return err
		}
		if err := s.teamRepo.Delete(ctx, exec, id); err != nil {
			return err
		}
		tournament = t
		return checkRoster(ctx, s.teamRepo, exec, t, before)
	})
	if err != nil {
		return translate(err)
	}

	s.logger.InfoContext(ctx, "team deleted", slog.Int("team_id", id), slog.Int("by", caller.UserID))
	publish(s.bus, teamChange(realtime.ActionDelete, team, tournament))
	return nil
}

func (s *teamService) AddMember(ctx context.Context, caller *auth.Caller, teamID, userID int) (*models.Team, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var (
		team       *models.Team
		tournament *models.Tournament
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		team, err = s.teamRepo.GetByID(ctx, exec, teamID)
		if err != nil {
			return err
		}
		t, err := s.tournamentOf(ctx, exec, caller, team.TournamentID, true)
		if err != nil {
			return teamHidden(err)
		}
		if !auth.CanActAs(caller, t.EventID, userID) {
			return forbiddenError("only organizers can add other users to a team")
		}
		if t.Status.Locked() {
			return errTournamentStarted
		}
		if team.HasMember(userID) {
			return conflictError("user is already a member of the team")
		}
		if len(team.Members) >= t.TeamSizeMax {
			return stateError("team already has the maximum of %d members", t.TeamSizeMax)
		}
		before, err := completeTeams(ctx, s.teamRepo, exec, t)
		if err != nil {
			return err
		}
		if err := s.teamRepo.AddMember(ctx, exec, teamID, userID); err != nil {
			return err
		}
		if err := checkRoster(ctx, s.teamRepo, exec, t, before); err != nil {
			return err
		}
		tournament = t
		team, err = s.teamRepo.GetByID(ctx, exec, teamID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	publish(s.bus, teamChange(realtime.ActionUpdate, team, tournament))
	return team, nil
}

func (s *teamService) RemoveMember(ctx context.Context, caller *auth.Caller, teamID, userID int) (*models.Team, bool, error) {
	if err := requireCaller(caller); err != nil {
		return nil, false, err
	}

	var c change
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		team, err := s.teamRepo.GetByID(ctx, exec, teamID)
		if err != nil {
			return err
		}
		t, err := s.tournamentOf(ctx, exec, caller, team.TournamentID, true)
		if err != nil {
			return teamHidden(err)
		}
		if !auth.CanActAs(caller, t.EventID, userID) {
			return forbiddenError("only organizers can remove other users from a team")
		}
		if t.Status.Locked() {
			return errTournamentStarted
		}
		before, err := completeTeams(ctx, s.teamRepo, exec, t)
		if err != nil {
			return err
		}
		if err := s.teamRepo.RemoveMember(ctx, exec, teamID, userID); err != nil {
			return err
		}
		if c, err = dropEmptyTeam(ctx, s.teamRepo, exec, teamID, t); err != nil {
			return err
		}
		return checkRoster(ctx, s.teamRepo, exec, t, before)
	})
	if err != nil {
		return nil, false, translate(err)
	}

	publish(s.bus, c)
	team := c.payload.(*models.Team)
	if c.action == realtime.ActionDelete {
		s.logger.InfoContext(ctx, "team dissolved", slog.Int("team_id", teamID))
		return team, true, nil
	}
	return team, false, nil
}
