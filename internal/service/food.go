package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/metrics"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/repository"
)

const (
	MaxTitleLength   = 100
	DefaultListLimit = 50
	MaxListLimit     = 200

	msgNoLongerAvailable = "this food item is no longer available"
	msgOnlyClaimed       = "only claimed food can be marked as completed"
)

// ClaimNotifier is told about every successful claim so the donor can be
// contacted. Delivery is best effort: an error is logged, never returned to
// the claiming NGO.
type ClaimNotifier interface {
	NotifyClaim(ctx context.Context, donor *model.User, food *model.Food) error
}

// CreateFoodInput is what a restaurant submits to publish a listing.
type CreateFoodInput struct {
	Title              string
	Description        string
	Photo              string
	GuidelinesAccepted bool
}

// ListFoodInput carries the raw listing query. UserRole decides whether
// UserID is matched against the donor or the receiver.
type ListFoodInput struct {
	Status   string
	UserID   string
	UserRole string
	Limit    int
	Offset   int
}

// FoodService owns the listing lifecycle:
//
//	available → claimed → completed
//	available → expired
type FoodService struct {
	foods    repository.FoodRepository
	users    repository.UserRepository
	notifier ClaimNotifier
	logger   *slog.Logger
	now      Clock
}

func NewFoodService(
	foods repository.FoodRepository,
	users repository.UserRepository,
	notifier ClaimNotifier,
	logger *slog.Logger,
) *FoodService {
	return &FoodService{
		foods:    foods,
		users:    users,
		notifier: notifier,
		logger:   logger,
		now:      systemClock,
	}
}

// Create publishes a new available listing for a restaurant.
func (s *FoodService) Create(ctx context.Context, actorID string, in CreateFoodInput) (*model.Food, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanDonate() {
		return nil, apperror.Forbidden("only restaurants can create food donations")
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	photo := strings.TrimSpace(in.Photo)

	switch {
	case title == "":
		return nil, apperror.ValidationFailed("title", "title is required")
	case len([]rune(title)) > MaxTitleLength:
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	case description == "":
		return nil, apperror.ValidationFailed("description", "description is required")
	case photo == "":
		return nil, apperror.ValidationFailed("photo", "photo is required")
	case !in.GuidelinesAccepted:
		return nil, apperror.ValidationFailed("guidelinesAccepted",
			"you must accept the guidelines to proceed")
	}

	now := s.now()
	food := &model.Food{
		Title:              title,
		Description:        description,
		Photo:              photo,
		DonorID:            actor.ID,
		Status:             model.StatusAvailable,
		GuidelinesAccepted: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.foods.CreateFood(ctx, food); err != nil {
		logFailure(s.logger, "failed to create food", err, slog.String("donorID", actor.ID))
		return nil, fmt.Errorf("creating food: %w", err)
	}

	s.logger.Info("food listed",
		slog.String("id", food.ID),
		slog.String("donorID", food.DonorID),
		slog.String("title", food.Title),
	)
	return food, nil
}

// List returns listings newest first with expiry derived at read time.
//
// OWNER RESOLUTION:
// With a userId, an NGO asking for claimed or completed listings sees the
// ones it received; every other combination sees listings donated by userId.
//
// Reading never writes: a stale "available" listing is reported as expired
// here and persisted as expired by the sweeper.
func (s *FoodService) List(ctx context.Context, in ListFoodInput) ([]model.FoodView, error) {
	filter := repository.FoodFilter{Now: s.now()}

	if in.Status != "" {
		status, err := model.ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	if in.UserID != "" {
		filter.DonorID = in.UserID
		if in.UserRole != "" {
			role, err := model.ParseRole(in.UserRole)
			if err != nil {
				return nil, err
			}
			if role.CanClaim() && filter.Status.HasReceiver() {
				filter.DonorID = ""
				filter.ReceiverID = in.UserID
			}
		}
	}

	filter.Limit, filter.Offset = clampPage(in.Limit, in.Offset)

	views, err := s.foods.ListFood(ctx, filter)
	if err != nil {
		logFailure(s.logger, "failed to list food", err)
		return nil, fmt.Errorf("listing food: %w", err)
	}

	for i := range views {
		deriveView(&views[i], filter.Now)
	}
	return views, nil
}

// Get returns one listing with expiry derived.
func (s *FoodService) Get(ctx context.Context, id string) (*model.FoodView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "food id is required")
	}

	view, err := s.foods.GetFoodView(ctx, id)
	if err != nil {
		return nil, err
	}
	deriveView(view, s.now())
	return view, nil
}

// Claim reserves an available listing for an NGO.
//
// The early status check gives a clear error in the common case; the
// repository's conditional update is what actually guarantees that only
// one of several concurrent claims wins.
func (s *FoodService) Claim(ctx context.Context, actorID, foodID string, details model.NGODetails) (*model.FoodView, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanClaim() {
		return nil, apperror.Forbidden("only NGOs can claim food")
	}

	foodID = strings.TrimSpace(foodID)
	details.Name = strings.TrimSpace(details.Name)
	if foodID == "" {
		return nil, apperror.ValidationFailed("foodId", "food id is required")
	}
	if details.Name == "" {
		return nil, apperror.ValidationFailed("ngoDetails.name", "ngo name is required")
	}

	food, err := s.foods.GetFood(ctx, foodID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !food.EffectiveStatus(now).CanTransitionTo(model.StatusClaimed) {
		metrics.RecordClaimConflict()
		return nil, apperror.ConflictMsg(msgNoLongerAvailable)
	}

	claimed, err := s.foods.ClaimFood(ctx, foodID, actor.ID, details, now.Add(-model.FoodTTL), now)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			metrics.RecordClaimConflict()
		}
		logFailure(s.logger, "failed to claim food", err, slog.String("foodID", foodID))
		return nil, err
	}
	metrics.RecordTransition(string(model.StatusClaimed), 1)

	s.logger.Info("food claimed",
		slog.String("foodID", claimed.ID),
		slog.String("receiverID", actor.ID),
	)

	s.notifyDonor(ctx, claimed)

	return s.Get(ctx, claimed.ID)
}

// Complete marks a claimed listing as handed over. Either party may do it.
func (s *FoodService) Complete(ctx context.Context, actorID, foodID string) (*model.FoodView, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}

	foodID = strings.TrimSpace(foodID)
	if foodID == "" {
		return nil, apperror.ValidationFailed("id", "food id is required")
	}

	food, err := s.foods.GetFood(ctx, foodID)
	if err != nil {
		return nil, err
	}
	if !food.IsParty(actor.ID) {
		return nil, apperror.Forbidden("only the donor or the receiving NGO can complete this donation")
	}
	if !food.Status.CanTransitionTo(model.StatusCompleted) {
		return nil, apperror.ValidationFailed("status", msgOnlyClaimed)
	}

	done, err := s.foods.CompleteFood(ctx, foodID, s.now())
	if err != nil {
		logFailure(s.logger, "failed to complete food", err, slog.String("foodID", foodID))
		return nil, err
	}
	metrics.RecordTransition(string(model.StatusCompleted), 1)

	s.logger.Info("food completed",
		slog.String("foodID", done.ID),
		slog.String("by", actor.ID),
	)
	return s.Get(ctx, done.ID)
}

// Update applies a status change requested through PATCH /food/{id}.
// Only claimed and completed can be requested; a claim without details
// falls back to the NGO's own profile.
func (s *FoodService) Update(ctx context.Context, actorID, foodID, status string, details *model.NGODetails) (*model.FoodView, error) {
	switch model.Status(status) {
	case model.StatusClaimed:
		if details == nil {
			actor, err := loadActor(ctx, s.users, actorID)
			if err != nil {
				return nil, err
			}
			details = &model.NGODetails{
				Name:    actor.Name,
				Email:   actor.Email,
				Address: actor.Address,
			}
		}
		return s.Claim(ctx, actorID, foodID, *details)
	case model.StatusCompleted:
		return s.Complete(ctx, actorID, foodID)
	default:
		return nil, apperror.ValidationFailed("status", "invalid status update")
	}
}

// ExpireStale persists available→expired for every listing past its TTL
// and returns how many changed. Called on a schedule by the sweeper.
func (s *FoodService) ExpireStale(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.foods.ExpireStale(ctx, now.Add(-model.FoodTTL), now)
	if err != nil {
		return 0, fmt.Errorf("expiring stale food: %w", err)
	}
	metrics.RecordTransition(string(model.StatusExpired), int(n))
	return n, nil
}

func (s *FoodService) notifyDonor(ctx context.Context, food *model.Food) {
	if s.notifier == nil {
		return
	}
	donor, err := s.users.GetUserByID(ctx, food.DonorID)
	if err != nil {
		s.logger.Warn("claim notification skipped: donor lookup failed",
			slog.String("foodID", food.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.notifier.NotifyClaim(ctx, donor, food); err != nil {
		s.logger.Warn("claim notification failed",
			slog.String("foodID", food.ID),
			slog.String("error", err.Error()),
		)
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
