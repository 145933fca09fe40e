package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sand/digiseba/backend/internal/auth"
	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/core/ports"
	"github.com/sand/digiseba/backend/internal/entities"
)

type UserService struct {
	logger *slog.Logger
	repo   ports.UserRepository
	tokens *auth.Tokens
}

func NewUserService(logger *slog.Logger, repo ports.UserRepository, tokens *auth.Tokens) *UserService {
	return &UserService{logger: logger, repo: repo, tokens: tokens}
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      *entities.User `json:"user"`
}

type UserPage struct {
	Users []entities.User `json:"users"`
	entities.Page
}

func (s *UserService) Register(ctx context.Context, in Registration) (*LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := entities.ValidateRegistration(in.Name, in.Email, in.Password); err != nil {
		return nil, apperrors.BadRequest(apperrors.WithError(err))
	}

	user, err := s.create(ctx, in, entities.RoleUser)
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *UserService) create(ctx context.Context, in Registration, role entities.Role) (*entities.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		PasswordHash: hash,
	}
	if err = s.repo.InsertUser(ctx, user); err != nil {
		if errors.Is(err, entities.ErrEmailTaken) {
			return nil, apperrors.Conflict(apperrors.WithError(err))
		}
		return nil, err
	}

	s.logger.Info("User registered", "user_id", user.ID, "role", role)
	return user, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperrors.Unauthorized(apperrors.WithError(entities.ErrInvalidCredentials))
	}

	return s.issue(user)
}

func (s *UserService) issue(user *entities.User) (*LoginResult, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *UserService) Me(ctx context.Context, userID int64) (*entities.User, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound(apperrors.WithError(entities.ErrUserNotFound))
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, page, limit int) (*UserPage, error) {
	page, limit = entities.NormalizePage(page, limit)

	users, total, err := s.repo.ListUsers(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []entities.User{}
	}

	return &UserPage{Users: users, Page: entities.Page{Page: page, Limit: limit, Total: total}}, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	existing, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	if err = entities.ValidateRegistration("Administrator", email, password); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	_, err = s.create(ctx, Registration{Name: "Administrator", Email: email, Password: password}, entities.RoleAdmin)
	return err
}
