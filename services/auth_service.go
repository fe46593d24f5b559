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
	"github.com/Dosada05/lanparty/storage"
)

type SignUpInput struct {
	Username    string `json:"username" validate:"required,min=2,max=32"`
	DisplayName string `json:"display_name" validate:"max=64"`
	Password    string `json:"password" validate:"required"`
}

type SignInInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is a signed access token together with the user it was issued for.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type AuthService interface {
	SignUp(ctx context.Context, input SignUpInput) (*models.User, error)
	SignIn(ctx context.Context, input SignInInput) (*Session, error)
	// Refresh issues a new token carrying the caller's current event roles.
	Refresh(ctx context.Context, caller *auth.Caller) (*Session, error)
}

type authService struct {
	userRepo repositories.UserRepository
	regRepo  repositories.RegistrationRepository
	tokens   *auth.TokenManager
	uploader storage.FileUploader
	bus      *realtime.Bus
	logger   *slog.Logger
}

func NewAuthService(
	userRepo repositories.UserRepository,
	regRepo repositories.RegistrationRepository,
	tokens *auth.TokenManager,
	uploader storage.FileUploader,
	bus *realtime.Bus,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo: userRepo,
		regRepo:  regRepo,
		tokens:   tokens,
		uploader: uploader,
		bus:      bus,
		logger:   logger,
	}
}

var errInvalidCredentials = newError(ErrUnauthorized, "invalid username or password")

func (s *authService) SignUp(ctx context.Context, input SignUpInput) (*models.User, error) {
	input.Username = normalizeName(input.Username)
	input.DisplayName = normalizeName(input.DisplayName)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user, err := createUser(ctx, s.userRepo, input, false)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user signed up", slog.Int("user_id", user.ID), slog.String("username", user.Username))
	publish(s.bus, changeOf(realtime.ActionCreate, realtime.EntityUser, user))
	return user, nil
}

func (s *authService) SignIn(ctx context.Context, input SignInInput) (*Session, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, input.Password) {
		s.logger.InfoContext(ctx, "sign in rejected", slog.Int("user_id", user.ID))
		return nil, errInvalidCredentials
	}

	return s.session(ctx, user)
}

func (s *authService) Refresh(ctx context.Context, caller *auth.Caller) (*Session, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, errAuthRequired
		}
		return nil, translate(err)
	}
	return s.session(ctx, user)
}

func (s *authService) session(ctx context.Context, user *models.User) (*Session, error) {
	regs, err := s.regRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registrations: %w", err)
	}
	token, expires, err := s.tokens.Issue(user, regs)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	populateUserPictureURL(user, s.uploader)
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// createUser hashes the password and stores a new account.
func createUser(ctx context.Context, repo repositories.UserRepository, input SignUpInput, admin bool) (*models.User, error) {
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, validationError("password must have at least %d characters", auth.MinPasswordLength)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	displayName := input.DisplayName
	if displayName == "" {
		displayName = input.Username
	}
	user := &models.User{
		Username:     input.Username,
		DisplayName:  displayName,
		PasswordHash: hash,
		IsAdmin:      admin,
	}
	if err := repo.Create(ctx, user); err != nil {
		return nil, translate(err)
	}
	return user, nil
}
