package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/models"
	"github.com/Dosada05/lanparty/realtime"
	"github.com/Dosada05/lanparty/repositories"
)

// PutRegistrationInput creates or patches a registration. Absent fields keep their value;
// arrival_at and departure_at accept an explicit null to clear them.
type PutRegistrationInput struct {
	Role        *models.Role               `json:"role"`
	ArrivalAt   models.Nullable[time.Time] `json:"arrival_at"`
	DepartureAt models.Nullable[time.Time] `json:"departure_at"`
	Score       *int                       `json:"score"`
}

type RegistrationService interface {
	List(ctx context.Context, eventID int) ([]models.Registration, error)
	Get(ctx context.Context, eventID, userID int) (*models.Registration, error)
	// Put registers the user to the event or updates the existing registration. created
	// reports which of the two happened.
	Put(ctx context.Context, caller *auth.Caller, eventID, userID int, input PutRegistrationInput) (reg *models.Registration, created bool, err error)
	Delete(ctx context.Context, caller *auth.Caller, eventID, userID int) error
}

type registrationService struct {
	tx             repositories.Transactor
	regRepo        repositories.RegistrationRepository
	userRepo       repositories.UserRepository
	eventRepo      repositories.EventRepository
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	bus            *realtime.Bus
	logger         *slog.Logger
}

func NewRegistrationService(
	tx repositories.Transactor,
	regRepo repositories.RegistrationRepository,
	userRepo repositories.UserRepository,
	eventRepo repositories.EventRepository,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	bus *realtime.Bus,
	logger *slog.Logger,
) RegistrationService {
	return &registrationService{
		tx:             tx,
		regRepo:        regRepo,
		userRepo:       userRepo,
		eventRepo:      eventRepo,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		bus:            bus,
		logger:         logger,
	}
}

func (s *registrationService) List(ctx context.Context, eventID int) ([]models.Registration, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, translate(err)
	}
	regs, err := s.regRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, translate(err)
	}
	return regs, nil
}

func (s *registrationService) Get(ctx context.Context, eventID, userID int) (*models.Registration, error) {
	reg, err := s.regRepo.Get(ctx, nil, userID, eventID)
	if err != nil {
		return nil, translate(err)
	}
	return reg, nil
}

func (s *registrationService) Put(ctx context.Context, caller *auth.Caller, eventID, userID int, input PutRegistrationInput) (*models.Registration, bool, error) {
	if err := requireCaller(caller); err != nil {
		return nil, false, err
	}
	if !auth.CanActAs(caller, eventID, userID) {
		return nil, false, forbiddenError("you can only register yourself")
	}
	organizer := auth.CanOrganize(caller, eventID)

	if input.Role != nil && !input.Role.Valid() {
		return nil, false, validationError("role must be one of [%s %s]", models.RoleOrganizer, models.RolePlayer)
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, false, translate(err)
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, false, translate(err)
	}

	reg, err := s.regRepo.Get(ctx, nil, userID, eventID)
	created := false
	switch {
	case errors.Is(err, repositories.ErrRegistrationNotFound):
		created = true
		reg = &models.Registration{UserID: userID, EventID: eventID, Role: models.RolePlayer}
	case err != nil:
		return nil, false, translate(err)
	}

	if input.Role != nil && *input.Role != reg.Role {
		if !organizer {
			return nil, false, forbiddenError("only organizers can assign roles")
		}
		reg.Role = *input.Role
	}
	if input.ArrivalAt.Set {
		reg.ArrivalAt = input.ArrivalAt.Ptr()
	}
	if input.DepartureAt.Set {
		reg.DepartureAt = input.DepartureAt.Ptr()
	}
	if input.Score != nil && organizer {
		reg.Score = *input.Score
	}

	if err := checkStay(event, reg); err != nil {
		return nil, false, err
	}

	if created {
		err = s.regRepo.Create(ctx, nil, reg)
	} else {
		err = s.regRepo.Update(ctx, nil, reg)
	}
	if err != nil {
		return nil, false, translate(err)
	}

	action := realtime.ActionUpdate
	if created {
		action = realtime.ActionCreate
		s.logger.InfoContext(ctx, "user registered", slog.Int("event_id", eventID), slog.Int("user_id", userID), slog.String("role", string(reg.Role)))
	}
	publish(s.bus, changeOf(action, realtime.EntityRegistration, reg))
	return reg, created, nil
}

// checkStay validates the arrival/departure window against the event.
func checkStay(event *models.Event, reg *models.Registration) error {
	if reg.ArrivalAt != nil && !event.Covers(*reg.ArrivalAt) {
		return validationError("arrival_at must lie within the event")
	}
	if reg.DepartureAt != nil && !event.Covers(*reg.DepartureAt) {
		return validationError("departure_at must lie within the event")
	}
	if reg.ArrivalAt != nil && reg.DepartureAt != nil && reg.DepartureAt.Before(*reg.ArrivalAt) {
		return validationError("departure_at must not be before arrival_at")
	}
	return nil
}

func (s *registrationService) Delete(ctx context.Context, caller *auth.Caller, eventID, userID int) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !auth.CanActAs(caller, eventID, userID) {
		return forbiddenError("you can only unregister yourself")
	}

	var (
		reg     *models.Registration
		changes []change
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		reg, err = s.regRepo.Get(ctx, exec, userID, eventID)
		if err != nil {
			return err
		}

		teams, err := s.teamRepo.ListByEventMember(ctx, exec, eventID, userID)
		if err != nil {
			return fmt.Errorf("failed to load teams: %w", err)
		}
		tournaments := make([]*models.Tournament, len(teams))
		before := make([]int, len(teams))
		for i, team := range teams {
			t, err := s.tournamentRepo.GetForUpdate(ctx, exec, team.TournamentID)
			if err != nil {
				return err
			}
			if t.Status.Locked() {
				return stateError("user is on a team of tournament %q, which already started", t.ShortName)
			}
			if before[i], err = completeTeams(ctx, s.teamRepo, exec, t); err != nil {
				return err
			}
			tournaments[i] = t
		}

		if err := s.regRepo.Delete(ctx, exec, userID, eventID); err != nil {
			return err
		}

		for i, team := range teams {
			c, err := dropEmptyTeam(ctx, s.teamRepo, exec, team.ID, tournaments[i])
			if err != nil {
				return err
			}
			if err := checkRoster(ctx, s.teamRepo, exec, tournaments[i], before[i]); err != nil {
				return err
			}
			changes = append(changes, c)
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}

	s.logger.InfoContext(ctx, "user unregistered", slog.Int("event_id", eventID), slog.Int("user_id", userID))
	publish(s.bus, changes...)
	publish(s.bus, changeOf(realtime.ActionDelete, realtime.EntityRegistration, reg))
	return nil
}

// dropEmptyTeam reloads the team after a membership change and deletes it when nobody is
// left. It returns the change to emit.
func dropEmptyTeam(ctx context.Context, repo repositories.TeamRepository, exec repositories.SQLExecutor, teamID int, t *models.Tournament) (change, error) {
	team, err := repo.GetByID(ctx, exec, teamID)
	if err != nil {
		return change{}, err
	}
	if len(team.Members) > 0 {
		return teamChange(realtime.ActionUpdate, team, t), nil
	}
	if err := repo.Delete(ctx, exec, teamID); err != nil {
		return change{}, err
	}
	return teamChange(realtime.ActionDelete, team, t), nil
}
