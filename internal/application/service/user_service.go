package service

import (
	"context"
	"strings"

	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/application/workflow"
	"github.com/garyjia/image-annotation/internal/domain/apperr"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/domain/policy"
	"github.com/garyjia/image-annotation/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateUserInput describes a new user
type CreateUserInput struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     entity.Role `json:"role"`
}

// UserService is the user directory consulted to resolve callers
type UserService interface {
	CreateUser(ctx context.Context, actor workflow.Actor, input CreateUserInput) (*entity.User, error)
	ListUsers(ctx context.Context, actor workflow.Actor, page entity.Page) ([]*entity.User, error)

	// GetUser resolves a caller identity; an unknown ID returns apperr.ErrNotFound
	GetUser(ctx context.Context, id int64) (*entity.User, error)

	// EnsureAdmin creates the bootstrap admin if the username is unused
	EnsureAdmin(ctx context.Context, username string) (*entity.User, error)
}

type userServiceImpl struct {
	userRepo port.UserRepository
	logger   Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo port.UserRepository, logger Logger) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
		logger:   logger,
	}
}

func (s *userServiceImpl) CreateUser(ctx context.Context, actor workflow.Actor, input CreateUserInput) (*entity.User, error) {
	if err := policy.Authorize(actor.Role, policy.OpManageUsers); err != nil {
		return nil, err
	}

	username := utils.SanitizeString(input.Username)
	if username == "" {
		return nil, apperr.Invalid("username is required")
	}
	if err := utils.ValidateUsername(username); err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	email := strings.TrimSpace(input.Email)
	if email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			return nil, apperr.Invalid("%v", err)
		}
	}
	if !input.Role.IsValid() {
		return nil, apperr.Invalid("role %q must be annotator, reviewer or admin", input.Role)
	}

	user := &entity.User{
		Username: username,
		Email:    email,
		Role:     input.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperr.Transient(err)
	}

	s.logger.Info("User created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

func (s *userServiceImpl) ListUsers(ctx context.Context, actor workflow.Actor, page entity.Page) ([]*entity.User, error) {
	if err := policy.Authorize(actor.Role, policy.OpManageUsers); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx, page)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	if users == nil {
		users = []*entity.User{}
	}
	return users, nil
}

func (s *userServiceImpl) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %d", id)
	}
	return user, nil
}

func (s *userServiceImpl) EnsureAdmin(ctx context.Context, username string) (*entity.User, error) {
	if username == "" {
		return nil, apperr.Invalid("bootstrap admin username is empty")
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	if existing != nil {
		if existing.Role != entity.RoleAdmin {
			s.logger.Error("Bootstrap user exists without admin role", "username", username, "role", existing.Role)
		}
		return existing, nil
	}

	admin := &entity.User{Username: username, Role: entity.RoleAdmin}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return nil, apperr.Transient(err)
	}

	s.logger.Info("Bootstrap admin created", "user_id", admin.ID, "username", username)
	return admin, nil
}
