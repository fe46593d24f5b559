package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/models"
	"github.com/Dosada05/lanparty/realtime"
	"github.com/Dosada05/lanparty/repositories"
	"github.com/Dosada05/lanparty/storage"
)

type UpdateUserInput struct {
	Username    *string `json:"username" validate:"omitempty,min=2,max=32"`
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=64"`
	Password    *string `json:"password"`
	IsAdmin     *bool   `json:"is_admin"`
}

type UserService interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id int) (*models.User, error)
	Update(ctx context.Context, caller *auth.Caller, id int, input UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, caller *auth.Caller, id int) error
	UploadPicture(ctx context.Context, caller *auth.Caller, id int, contentType string, body io.Reader) (*models.User, error)
	// CreateAdmin creates an administrator account without a caller, for bootstrapping.
	CreateAdmin(ctx context.Context, input SignUpInput) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
	regRepo  repositories.RegistrationRepository
	uploader storage.FileUploader
	bus      *realtime.Bus
	logger   *slog.Logger
}

func NewUserService(
	userRepo repositories.UserRepository,
	regRepo repositories.RegistrationRepository,
	uploader storage.FileUploader,
	bus *realtime.Bus,
	logger *slog.Logger,
) UserService {
	return &userService{
		userRepo: userRepo,
		regRepo:  regRepo,
		uploader: uploader,
		bus:      bus,
		logger:   logger,
	}
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, translate(err)
	}
	for i := range users {
		populateUserPictureURL(&users[i], s.uploader)
	}
	return users, nil
}

func (s *userService) Get(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	populateUserPictureURL(user, s.uploader)
	return user, nil
}

func (s *userService) Update(ctx context.Context, caller *auth.Caller, id int, input UpdateUserInput) (*models.User, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !auth.CanManageUser(caller, id) {
		return nil, forbiddenError("you cannot modify this user")
	}
	if input.IsAdmin != nil && !auth.IsAdmin(caller) {
		return nil, forbiddenError("only administrators can change the admin flag")
	}
	if input.Username != nil {
		trimmed := normalizeName(*input.Username)
		input.Username = &trimmed
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	if input.Username != nil {
		user.Username = *input.Username
	}
	if input.DisplayName != nil {
		user.DisplayName = normalizeName(*input.DisplayName)
	}
	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			return nil, validationError("password must have at least %d characters", auth.MinPasswordLength)
		}
		user.PasswordHash = hash
	}
	if input.IsAdmin != nil && *input.IsAdmin != user.IsAdmin {
		if !*input.IsAdmin {
			if err := s.ensureNotLastAdmin(ctx); err != nil {
				return nil, err
			}
		}
		user.IsAdmin = *input.IsAdmin
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, translate(err)
	}

	populateUserPictureURL(user, s.uploader)
	publish(s.bus, changeOf(realtime.ActionUpdate, realtime.EntityUser, user))
	return user, nil
}

func (s *userService) Delete(ctx context.Context, caller *auth.Caller, id int) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !auth.CanManageUser(caller, id) {
		return forbiddenError("you cannot delete this user")
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return translate(err)
	}
	if user.IsAdmin {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return err
		}
	}
	regs, err := s.regRepo.ListByUser(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load registrations: %w", err)
	}
	if len(regs) > 0 {
		return conflictError("user is still registered to %d event(s)", len(regs))
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return translate(err)
	}
	removeStoredObject(ctx, s.uploader, user.PictureKey, s.logger)

	s.logger.InfoContext(ctx, "user deleted", slog.Int("user_id", id), slog.Int("by", caller.UserID))
	publish(s.bus, changeOf(realtime.ActionDelete, realtime.EntityUser, user))
	return nil
}

func (s *userService) ensureNotLastAdmin(ctx context.Context) error {
	admins, err := s.userRepo.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if admins <= 1 {
		return conflictError("cannot remove the last administrator")
	}
	return nil
}

func (s *userService) UploadPicture(ctx context.Context, caller *auth.Caller, id int, contentType string, body io.Reader) (*models.User, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !auth.CanManageUser(caller, id) {
		return nil, forbiddenError("you cannot modify this user")
	}
	if s.uploader == nil {
		return nil, newError(ErrUnavailable, "file uploads are not configured")
	}
	ext, err := storage.ExtensionFromContentType(contentType)
	if err != nil {
		return nil, validationError("%v", err)
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	key := storage.NewObjectKey("users", id, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload picture: %w", err)
	}
	if err := s.userRepo.UpdatePictureKey(ctx, id, &key); err != nil {
		removeStoredObject(ctx, s.uploader, &key, s.logger)
		return nil, translate(err)
	}
	removeStoredObject(ctx, s.uploader, user.PictureKey, s.logger)

	user.PictureKey = &key
	populateUserPictureURL(user, s.uploader)
	publish(s.bus, changeOf(realtime.ActionUpdate, realtime.EntityUser, user))
	return user, nil
}

func (s *userService) CreateAdmin(ctx context.Context, input SignUpInput) (*models.User, error) {
	input.Username = normalizeName(input.Username)
	input.DisplayName = normalizeName(input.DisplayName)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	user, err := createUser(ctx, s.userRepo, input, true)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "administrator created", slog.Int("user_id", user.ID), slog.String("username", user.Username))
	publish(s.bus, changeOf(realtime.ActionCreate, realtime.EntityUser, user))
	return user, nil
}
