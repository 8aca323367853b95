package service

import (
	"context"

	"github.com/botiquin/botiquin-backend/internal/auth/events"
	"github.com/botiquin/botiquin-backend/internal/auth/jwt"
	"github.com/botiquin/botiquin-backend/internal/auth/repository"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles authentication and user administration
type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *jwt.Manager
	publisher  *events.UserEventPublisher
	logger     *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repository.UserRepository, jwtManager *jwt.Manager, publisher *events.UserEventPublisher, log *logger.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		publisher:  publisher,
		logger:     log,
	}
}

// LoginResult carries the authenticated user and their tokens
type LoginResult struct {
	User   *repository.User `json:"user"`
	Tokens *jwt.TokenPair   `json:"tokens"`
}

// Login verifies credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.InvalidCredentials()
	}

	tokens, err := s.jwtManager.GenerateTokenPair(&jwt.UserInfo{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user logged in")

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, email, name, password, role string) (*repository.User, error) {
	if !repository.ValidRole(role) {
		return nil, errors.BadRequest("role must be one of Admin, Nursing, Pharmacy")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &repository.User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	s.publisher.PublishUserRegistered(ctx, user.ID, user.Email, user.Name, user.Role)

	return user, nil
}

// Me gets the authenticated user's account
func (s *AuthService) Me(ctx context.Context, userID string) (*repository.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// ListUsers lists all user accounts
func (s *AuthService) ListUsers(ctx context.Context) ([]*repository.User, error) {
	return s.userRepo.List(ctx)
}

// GetUser gets a user account by ID
func (s *AuthService) GetUser(ctx context.Context, userID string) (*repository.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// DeleteUser removes a user account
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", userID).Msg("user deleted")

	return nil
}

// UpdateRole changes a user's role
func (s *AuthService) UpdateRole(ctx context.Context, userID, role string) (*repository.User, error) {
	if !repository.ValidRole(role) {
		return nil, errors.BadRequest("role must be one of Admin, Nursing, Pharmacy")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	oldRole := user.Role

	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	user.Role = role

	s.logger.Info().Str("user_id", userID).Str("old_role", oldRole).Str("new_role", role).Msg("user role changed")
	s.publisher.PublishUserRoleChanged(ctx, userID, oldRole, role)

	return user, nil
}

// Refresh validates a refresh token and issues a fresh pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.TokenInvalid()
		}
		return nil, err
	}

	return s.jwtManager.GenerateTokenPair(&jwt.UserInfo{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
}
