package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/metrics"
	"github.com/Dosada05/lanparty/models"
	"github.com/Dosada05/lanparty/realtime"
	"github.com/Dosada05/lanparty/repositories"
	"github.com/Dosada05/lanparty/scoring"
	"github.com/Dosada05/lanparty/storage"
)

const listLoadConcurrency = 4

type CreateTournamentInput struct {
	Name               string                   `json:"name" validate:"required,max=128"`
	ShortName          string                   `json:"short_name" validate:"required,max=32"`
	Date               time.Time                `json:"date" validate:"required"`
	Duration           int                      `json:"duration" validate:"required,min=1"`
	Rules              string                   `json:"rules"`
	TeamSizeMin        int                      `json:"team_size_min" validate:"required,min=1"`
	TeamSizeMax        int                      `json:"team_size_max" validate:"required,gtefield=TeamSizeMin"`
	TeamCountMin       int                      `json:"team_count_min" validate:"required,min=2"`
	TeamCountMax       int                      `json:"team_count_max" validate:"required,gtefield=TeamCountMin"`
	Status             *models.TournamentStatus `json:"status"`
	PointsPerPlayer    *int                     `json:"points_per_player" validate:"omitempty,min=0"`
	PointsDistribution *models.Distribution     `json:"points_distribution"`
}

type UpdateTournamentInput struct {
	Name               *string                  `json:"name" validate:"omitempty,min=1,max=128"`
	ShortName          *string                  `json:"short_name" validate:"omitempty,min=1,max=32"`
	Date               *time.Time               `json:"date"`
	Duration           *int                     `json:"duration" validate:"omitempty,min=1"`
	Rules              *string                  `json:"rules"`
	TeamSizeMin        *int                     `json:"team_size_min" validate:"omitempty,min=1"`
	TeamSizeMax        *int                     `json:"team_size_max" validate:"omitempty,min=1"`
	TeamCountMin       *int                     `json:"team_count_min" validate:"omitempty,min=2"`
	TeamCountMax       *int                     `json:"team_count_max" validate:"omitempty,min=2"`
	Status             *models.TournamentStatus `json:"status"`
	PointsPerPlayer    *int                     `json:"points_per_player" validate:"omitempty,min=0"`
	PointsDistribution *models.Distribution     `json:"points_distribution"`
}

func (in UpdateTournamentInput) touchesSchedule() bool {
	return in.Date != nil || in.Duration != nil ||
		in.TeamSizeMin != nil || in.TeamSizeMax != nil ||
		in.TeamCountMin != nil || in.TeamCountMax != nil
}

type TournamentService interface {
	ListByEvent(ctx context.Context, caller *auth.Caller, eventID int) ([]models.Tournament, error)
	// Get returns the tournament with its teams.
	Get(ctx context.Context, caller *auth.Caller, id int) (*models.Tournament, error)
	Create(ctx context.Context, caller *auth.Caller, eventID int, input CreateTournamentInput) (*models.Tournament, error)
	Update(ctx context.Context, caller *auth.Caller, id int, input UpdateTournamentInput) (*models.Tournament, error)
	Delete(ctx context.Context, caller *auth.Caller, id int) error
	UploadBackground(ctx context.Context, caller *auth.Caller, id int, contentType string, body io.Reader) (*models.Tournament, error)
	// End applies a final ranking: team results, member scores and the finished status.
	// Ending again replaces the previous ranking's contribution.
	End(ctx context.Context, caller *auth.Caller, id int, ranking models.Ranking) (*models.Tournament, error)
}

type tournamentService struct {
	tx             repositories.Transactor
	tournamentRepo repositories.TournamentRepository
	eventRepo      repositories.EventRepository
	teamRepo       repositories.TeamRepository
	regRepo        repositories.RegistrationRepository
	uploader       storage.FileUploader
	bus            *realtime.Bus
	logger         *slog.Logger
}

func NewTournamentService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	eventRepo repositories.EventRepository,
	teamRepo repositories.TeamRepository,
	regRepo repositories.RegistrationRepository,
	uploader storage.FileUploader,
	bus *realtime.Bus,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		eventRepo:      eventRepo,
		teamRepo:       teamRepo,
		regRepo:        regRepo,
		uploader:       uploader,
		bus:            bus,
		logger:         logger,
	}
}

func (s *tournamentService) ListByEvent(ctx context.Context, caller *auth.Caller, eventID int) ([]models.Tournament, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, translate(err)
	}
	all, err := s.tournamentRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, translate(err)
	}

	tournaments := make([]models.Tournament, 0, len(all))
	for _, t := range all {
		if canSee(caller, &t) {
			tournaments = append(tournaments, t)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listLoadConcurrency)
	for i := range tournaments {
		t := &tournaments[i]
		g.Go(func() error {
			teams, err := s.teamRepo.ListByTournament(gctx, nil, t.ID)
			if err != nil {
				return fmt.Errorf("failed to load teams of tournament %d: %w", t.ID, err)
			}
			t.TeamCount = eligibleTeamCount(teams, t.TeamSizeMin)
			populateTournamentBackgroundURL(t, s.uploader)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (s *tournamentService) Get(ctx context.Context, caller *auth.Caller, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, translate(err)
	}
	if !canSee(caller, t) {
		return nil, translate(repositories.ErrTournamentNotFound)
	}
	if err := s.attachTeams(ctx, nil, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) attachTeams(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	teams, err := s.teamRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load teams: %w", err)
	}
	t.Teams = teams
	t.TeamCount = eligibleTeamCount(teams, t.TeamSizeMin)
	populateTournamentBackgroundURL(t, s.uploader)
	return nil
}

func (s *tournamentService) Create(ctx context.Context, caller *auth.Caller, eventID int, input CreateTournamentInput) (*models.Tournament, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !auth.CanOrganize(caller, eventID) {
		return nil, forbiddenError("only organizers of the event can create tournaments")
	}
	input.Name = normalizeName(input.Name)
	input.ShortName = normalizeName(input.ShortName)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, translate(err)
	}
	if !event.Contains(input.Date) {
		return nil, validationError("date must lie strictly inside the event")
	}

	t := &models.Tournament{
		EventID:            eventID,
		Name:               input.Name,
		ShortName:          input.ShortName,
		Date:               input.Date,
		Duration:           input.Duration,
		Rules:              input.Rules,
		TeamSizeMin:        input.TeamSizeMin,
		TeamSizeMax:        input.TeamSizeMax,
		TeamCountMin:       input.TeamCountMin,
		TeamCountMax:       input.TeamCountMax,
		Status:             models.StatusHidden,
		PointsDistribution: models.DistributionExponential,
	}
	if input.Status != nil {
		t.Status = *input.Status
	}
	if err := checkCreationStatus(t.Status); err != nil {
		return nil, err
	}
	if input.PointsPerPlayer != nil {
		t.PointsPerPlayer = *input.PointsPerPlayer
	}
	if input.PointsDistribution != nil {
		t.PointsDistribution = *input.PointsDistribution
	}
	if !scoring.Known(t.PointsDistribution) {
		return nil, validationError("unknown points distribution %q", t.PointsDistribution)
	}

	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, translate(err)
	}
	t.Teams = []models.Team{}

	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", t.ID), slog.Int("event_id", eventID), slog.String("status", string(t.Status)))
	publish(s.bus, tournamentChange(realtime.ActionCreate, t))
	return t, nil
}

// visibleForOrganizer loads the tournament and checks that the caller organizes its event.
// Callers who cannot see a hidden tournament get NotFound rather than Forbidden.
func (s *tournamentService) visibleForOrganizer(ctx context.Context, exec repositories.SQLExecutor, caller *auth.Caller, id int, lock bool) (*models.Tournament, error) {
	var (
		t   *models.Tournament
		err error
	)
	if lock {
		t, err = s.tournamentRepo.GetForUpdate(ctx, exec, id)
	} else {
		t, err = s.tournamentRepo.GetByID(ctx, exec, id)
	}
	if err != nil {
		return nil, err
	}
	if !canSee(caller, t) {
		return nil, repositories.ErrTournamentNotFound
	}
	if !auth.CanOrganize(caller, t.EventID) {
		return nil, forbiddenError("only organizers of the event can manage its tournaments")
	}
	return t, nil
}

func (s *tournamentService) Update(ctx context.Context, caller *auth.Caller, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.PointsDistribution != nil && !scoring.Known(*input.PointsDistribution) {
		return nil, validationError("unknown points distribution %q", *input.PointsDistribution)
	}

	var t *models.Tournament
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		t, err = s.visibleForOrganizer(ctx, exec, caller, id, true)
		if err != nil {
			return err
		}
		if t.Status.Locked() && input.touchesSchedule() {
			return errTournamentStarted
		}

		event, err := s.eventRepo.GetByID(ctx, t.EventID)
		if err != nil {
			return err
		}
		teams, err := s.teamRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return fmt.Errorf("failed to load teams: %w", err)
		}

		if err := applyTournamentPatch(t, input, event, teams); err != nil {
			return err
		}
		if err := s.tournamentRepo.Update(ctx, exec, t); err != nil {
			return err
		}
		t.Teams = teams
		t.TeamCount = eligibleTeamCount(teams, t.TeamSizeMin)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	populateTournamentBackgroundURL(t, s.uploader)
	publish(s.bus, tournamentChange(realtime.ActionUpdate, t))
	return t, nil
}

// applyTournamentPatch merges input into t and validates the result, including the status
// transition.
func applyTournamentPatch(t *models.Tournament, input UpdateTournamentInput, event *models.Event, teams []models.Team) error {
	from := t.Status
	boundsChanged := input.TeamSizeMin != nil || input.TeamSizeMax != nil ||
		input.TeamCountMin != nil || input.TeamCountMax != nil

	if input.Name != nil {
		t.Name = normalizeName(*input.Name)
	}
	if input.ShortName != nil {
		t.ShortName = normalizeName(*input.ShortName)
	}
	if input.Date != nil {
		if !event.Contains(*input.Date) {
			return validationError("date must lie strictly inside the event")
		}
		t.Date = *input.Date
	}
	if input.Duration != nil {
		t.Duration = *input.Duration
	}
	if input.Rules != nil {
		t.Rules = *input.Rules
	}
	if input.TeamSizeMin != nil {
		t.TeamSizeMin = *input.TeamSizeMin
	}
	if input.TeamSizeMax != nil {
		t.TeamSizeMax = *input.TeamSizeMax
	}
	if input.TeamCountMin != nil {
		t.TeamCountMin = *input.TeamCountMin
	}
	if input.TeamCountMax != nil {
		t.TeamCountMax = *input.TeamCountMax
	}
	if input.PointsPerPlayer != nil {
		t.PointsPerPlayer = *input.PointsPerPlayer
	}
	if input.PointsDistribution != nil {
		t.PointsDistribution = *input.PointsDistribution
	}

	if t.TeamSizeMax < t.TeamSizeMin {
		return validationError("team_size_max must be greater than or equal to team_size_min")
	}
	if t.TeamCountMax < t.TeamCountMin {
		return validationError("team_count_max must be greater than or equal to team_count_min")
	}
	for _, team := range teams {
		if len(team.Members) > t.TeamSizeMax {
			return validationError("team %q already has more than %d members", team.Name, t.TeamSizeMax)
		}
	}
	if len(teams) > t.TeamCountMax {
		return validationError("tournament already has more than %d teams", t.TeamCountMax)
	}

	count := eligibleTeamCount(teams, t.TeamSizeMin)
	if input.Status != nil {
		if err := checkStatusTransition(from, *input.Status, count, t.TeamCountMin, t.TeamCountMax); err != nil {
			return err
		}
		t.Status = *input.Status
	}
	if t.Status == models.StatusReady && from == models.StatusReady && boundsChanged {
		return checkTeamCount(count, t.TeamCountMin, t.TeamCountMax)
	}
	return nil
}

func (s *tournamentService) Delete(ctx context.Context, caller *auth.Caller, id int) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	t, err := s.visibleForOrganizer(ctx, nil, caller, id, false)
	if err != nil {
		return translate(err)
	}
	if t.Status.Locked() {
		return errTournamentStarted
	}
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		return translate(err)
	}
	removeStoredObject(ctx, s.uploader, t.BackgroundKey, s.logger)

	s.logger.InfoContext(ctx, "tournament deleted", slog.Int("tournament_id", id), slog.Int("by", caller.UserID))
	publish(s.bus, tournamentChange(realtime.ActionDelete, t))
	return nil
}

func (s *tournamentService) UploadBackground(ctx context.Context, caller *auth.Caller, id int, contentType string, body io.Reader) (*models.Tournament, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	t, err := s.visibleForOrganizer(ctx, nil, caller, id, false)
	if err != nil {
		return nil, translate(err)
	}
	if s.uploader == nil {
		return nil, newError(ErrUnavailable, "file uploads are not configured")
	}
	ext, err := storage.ExtensionFromContentType(contentType)
	if err != nil {
		return nil, validationError("%v", err)
	}

	key := storage.NewObjectKey("tournaments", id, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload background: %w", err)
	}
	if err := s.tournamentRepo.UpdateBackgroundKey(ctx, id, &key); err != nil {
		removeStoredObject(ctx, s.uploader, &key, s.logger)
		return nil, translate(err)
	}
	removeStoredObject(ctx, s.uploader, t.BackgroundKey, s.logger)

	t.BackgroundKey = &key
	if err := s.attachTeams(ctx, nil, t); err != nil {
		return nil, err
	}
	publish(s.bus, tournamentChange(realtime.ActionUpdate, t))
	return t, nil
}

func (s *tournamentService) End(ctx context.Context, caller *auth.Caller, id int, ranking models.Ranking) (*models.Tournament, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validateInput(ranking); err != nil {
		return nil, err
	}

	var (
		t       *models.Tournament
		changes []change
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		t, err = s.visibleForOrganizer(ctx, exec, caller, id, true)
		if err != nil {
			return err
		}
		if t.Status != models.StatusStarted && t.Status != models.StatusFinished {
			return stateError("tournament has not started")
		}

		teams, err := s.teamRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return fmt.Errorf("failed to load teams: %w", err)
		}
		if err := checkRankingCoversTeams(ranking, teams); err != nil {
			return err
		}

		points := t.PointsPerPlayer
		if ranking.Points != nil {
			points = *ranking.Points
		}
		dist := t.PointsDistribution
		if ranking.Distribution != nil {
			dist = *ranking.Distribution
		}
		awards, err := scoring.Awards(ranking.Ordered(), points, dist)
		if err != nil {
			if errors.Is(err, scoring.ErrUnknownDistribution) {
				return validationError("unknown points distribution %q", dist)
			}
			return validationError("%v", err)
		}

		byID := make(map[int]*models.Team, len(teams))
		for i := range teams {
			byID[teams[i].ID] = &teams[i]
		}
		for _, award := range awards {
			team := byID[award.TeamID]
			delta := award.Points - team.AppliedPoints
			if delta != 0 {
				for _, userID := range team.Members {
					if err := s.regRepo.AddScore(ctx, exec, userID, t.EventID, delta); err != nil {
						return fmt.Errorf("failed to update score of user %d: %w", userID, err)
					}
				}
			}
			team.Result = award.Points
			team.AppliedPoints = award.Points
			team.Rank = award.Rank
			if err := s.teamRepo.Update(ctx, exec, team); err != nil {
				return err
			}
			changes = append(changes, teamChange(realtime.ActionUpdate, team, t))
		}

		t.Status = models.StatusFinished
		if err := s.tournamentRepo.Update(ctx, exec, t); err != nil {
			return err
		}

		for _, team := range teams {
			for _, userID := range team.Members {
				reg, err := s.regRepo.Get(ctx, exec, userID, t.EventID)
				if err != nil {
					return err
				}
				changes = append(changes, changeOf(realtime.ActionUpdate, realtime.EntityRegistration, reg))
			}
		}

		t.Teams = teams
		t.TeamCount = eligibleTeamCount(teams, t.TeamSizeMin)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	metrics.TournamentsEnded.Inc()
	s.logger.InfoContext(ctx, "tournament ended",
		slog.Int("tournament_id", t.ID), slog.Int("teams", len(t.Teams)), slog.Int("by", caller.UserID))

	populateTournamentBackgroundURL(t, s.uploader)
	publish(s.bus, tournamentChange(realtime.ActionUpdate, t))
	publish(s.bus, changes...)
	return t, nil
}

// checkRankingCoversTeams requires the flattened ranking to be exactly the team id set.
func checkRankingCoversTeams(ranking models.Ranking, teams []models.Team) error {
	remaining := make(map[int]bool, len(teams))
	for _, team := range teams {
		remaining[team.ID] = true
	}
	seen := make(map[int]bool, len(teams))
	for _, id := range ranking.TeamIDs() {
		if seen[id] {
			return validationError("team %d is ranked more than once", id)
		}
		seen[id] = true
		if !remaining[id] {
			return validationError("team %d is not part of the tournament", id)
		}
		delete(remaining, id)
	}
	if len(remaining) > 0 {
		return validationError("ranking is missing %d team(s)", len(remaining))
	}
	return nil
}
