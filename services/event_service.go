package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/models"
	"github.com/Dosada05/lanparty/realtime"
	"github.com/Dosada05/lanparty/repositories"
)

type CreateEventInput struct {
	Name      string    `json:"name" validate:"required,max=128"`
	ShortName string    `json:"short_name" validate:"required,max=32"`
	StartAt   time.Time `json:"start_at" validate:"required"`
	EndAt     time.Time `json:"end_at" validate:"required"`
}

type UpdateEventInput struct {
	Name      *string    `json:"name" validate:"omitempty,min=1,max=128"`
	ShortName *string    `json:"short_name" validate:"omitempty,min=1,max=32"`
	StartAt   *time.Time `json:"start_at"`
	EndAt     *time.Time `json:"end_at"`
}

type EventService interface {
	List(ctx context.Context) ([]models.Event, error)
	Get(ctx context.Context, id int) (*models.Event, error)
	Create(ctx context.Context, caller *auth.Caller, input CreateEventInput) (*models.Event, error)
	Update(ctx context.Context, caller *auth.Caller, id int, input UpdateEventInput) (*models.Event, error)
	Delete(ctx context.Context, caller *auth.Caller, id int) error
}

type eventService struct {
	eventRepo      repositories.EventRepository
	regRepo        repositories.RegistrationRepository
	tournamentRepo repositories.TournamentRepository
	bus            *realtime.Bus
	logger         *slog.Logger
}

func NewEventService(
	eventRepo repositories.EventRepository,
	regRepo repositories.RegistrationRepository,
	tournamentRepo repositories.TournamentRepository,
	bus *realtime.Bus,
	logger *slog.Logger,
) EventService {
	return &eventService{
		eventRepo:      eventRepo,
		regRepo:        regRepo,
		tournamentRepo: tournamentRepo,
		bus:            bus,
		logger:         logger,
	}
}

func (s *eventService) List(ctx context.Context) ([]models.Event, error) {
	events, err := s.eventRepo.List(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return events, nil
}

func (s *eventService) Get(ctx context.Context, id int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return event, nil
}

func (s *eventService) Create(ctx context.Context, caller *auth.Caller, input CreateEventInput) (*models.Event, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !auth.IsAdmin(caller) {
		return nil, forbiddenError("only administrators can create events")
	}
	input.Name = normalizeName(input.Name)
	input.ShortName = normalizeName(input.ShortName)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.StartAt.Before(input.EndAt) {
		return nil, validationError("start_at must be before end_at")
	}

	event := &models.Event{
		Name:      input.Name,
		ShortName: input.ShortName,
		StartAt:   input.StartAt,
		EndAt:     input.EndAt,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, translate(err)
	}

	s.logger.InfoContext(ctx, "event created", slog.Int("event_id", event.ID), slog.String("short_name", event.ShortName))
	publish(s.bus, changeOf(realtime.ActionCreate, realtime.EntityEvent, event))
	return event, nil
}

func (s *eventService) Update(ctx context.Context, caller *auth.Caller, id int, input UpdateEventInput) (*models.Event, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !auth.CanOrganize(caller, id) {
		return nil, forbiddenError("only organizers of the event can modify it")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	if input.Name != nil {
		event.Name = normalizeName(*input.Name)
	}
	if input.ShortName != nil {
		event.ShortName = normalizeName(*input.ShortName)
	}
	windowChanged := false
	if input.StartAt != nil {
		event.StartAt = *input.StartAt
		windowChanged = true
	}
	if input.EndAt != nil {
		event.EndAt = *input.EndAt
		windowChanged = true
	}
	if !event.StartAt.Before(event.EndAt) {
		return nil, validationError("start_at must be before end_at")
	}
	if windowChanged {
		if err := s.checkWindow(ctx, event); err != nil {
			return nil, err
		}
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, translate(err)
	}

	publish(s.bus, changeOf(realtime.ActionUpdate, realtime.EntityEvent, event))
	return event, nil
}

// checkWindow rejects a new event window that would leave tournaments or stays outside it.
func (s *eventService) checkWindow(ctx context.Context, event *models.Event) error {
	tournaments, err := s.tournamentRepo.ListByEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to load tournaments: %w", err)
	}
	for _, t := range tournaments {
		if !event.Contains(t.Date) {
			return validationError("tournament %q would fall outside the event", t.ShortName)
		}
	}

	regs, err := s.regRepo.ListByEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to load registrations: %w", err)
	}
	for _, r := range regs {
		if (r.ArrivalAt != nil && !event.Covers(*r.ArrivalAt)) || (r.DepartureAt != nil && !event.Covers(*r.DepartureAt)) {
			return validationError("the stay of user %d would fall outside the event", r.UserID)
		}
	}
	return nil
}

func (s *eventService) Delete(ctx context.Context, caller *auth.Caller, id int) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !auth.IsAdmin(caller) {
		return forbiddenError("only administrators can delete events")
	}

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return translate(err)
	}
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		return translate(err)
	}

	s.logger.InfoContext(ctx, "event deleted", slog.Int("event_id", id), slog.Int("by", caller.UserID))
	publish(s.bus, changeOf(realtime.ActionDelete, realtime.EntityEvent, event))
	return nil
}
