package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/repository"
)

type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// ListNGOs lets a restaurant browse the NGOs it could donate to.
func (s *UserService) ListNGOs(ctx context.Context, actorID string) ([]model.UserListing, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanBrowseNGOs() {
		return nil, apperror.Forbidden("only restaurants can view NGOs")
	}

	users, err := s.users.ListUsersByRole(ctx, model.RoleNGO)
	if err != nil {
		logFailure(s.logger, "failed to list ngos", err)
		return nil, fmt.Errorf("listing ngos: %w", err)
	}

	out := make([]model.UserListing, 0, len(users))
	for i := range users {
		out = append(out, users[i].Listing())
	}
	return out, nil
}

// Profile returns the public view of a user. Email and password hash are
// not part of it.
func (s *UserService) Profile(ctx context.Context, id string) (*model.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user id is required")
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}
