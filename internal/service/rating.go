package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/metrics"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/repository"
)

const msgAlreadyRated = "you have already rated this food donation"

// RateInput is one NGO's rating of the restaurant behind a completed donation.
type RateInput struct {
	FoodID  string
	RatedID string
	Rating  int
	Comment string
}

type RatingService struct {
	ratings repository.RatingRepository
	foods   repository.FoodRepository
	users   repository.UserRepository
	logger  *slog.Logger
	now     Clock
}

func NewRatingService(
	ratings repository.RatingRepository,
	foods repository.FoodRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *RatingService {
	return &RatingService{
		ratings: ratings,
		foods:   foods,
		users:   users,
		logger:  logger,
		now:     systemClock,
	}
}

// Rate records a rating and folds it into the donor's aggregate.
//
// Only the NGO that received a completed donation may rate it, once, and
// only the donor of that donation can be rated. The HasRated check produces
// the friendly error; the repository's unique key is what enforces it.
func (s *RatingService) Rate(ctx context.Context, actorID string, in RateInput) (*model.Rating, error) {
	in.FoodID = strings.TrimSpace(in.FoodID)
	in.RatedID = strings.TrimSpace(in.RatedID)
	in.Comment = strings.TrimSpace(in.Comment)

	if in.FoodID == "" || in.RatedID == "" || in.Rating == 0 {
		return nil, apperror.ValidationFailed("", "missing required fields")
	}
	if in.Rating < model.MinRating || in.Rating > model.MaxRating {
		return nil, apperror.ValidationFailed("rating",
			fmt.Sprintf("rating must be between %d and %d", model.MinRating, model.MaxRating))
	}
	if len([]rune(in.Comment)) > model.MaxCommentLength {
		return nil, apperror.ValidationFailed("comment",
			fmt.Sprintf("comment must be %d characters or less", model.MaxCommentLength))
	}

	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanRate() {
		return nil, apperror.Forbidden("only NGOs can rate restaurants")
	}

	food, err := s.foods.GetFood(ctx, in.FoodID)
	if err != nil {
		return nil, err
	}
	if food.Status != model.StatusCompleted {
		return nil, apperror.ValidationFailed("foodId", "you can only rate completed food donations")
	}
	if food.ReceiverID != actor.ID {
		return nil, apperror.Forbidden("only the receiving NGO can rate the restaurant")
	}
	if food.DonorID != in.RatedID {
		return nil, apperror.ValidationFailed("ratedId", "invalid ratedId")
	}

	rated, err := s.ratings.HasRated(ctx, food.ID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("checking existing rating: %w", err)
	}
	if rated {
		return nil, apperror.ConflictMsg(msgAlreadyRated)
	}

	rating := &model.Rating{
		FoodID:    food.ID,
		RaterID:   actor.ID,
		RatedID:   in.RatedID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: s.now(),
	}
	if err := s.ratings.CreateRating(ctx, rating); err != nil {
		logFailure(s.logger, "failed to create rating", err, slog.String("foodID", food.ID))
		return nil, err
	}
	metrics.RecordRating(rating.Rating)

	s.logger.Info("restaurant rated",
		slog.String("ratingID", rating.ID),
		slog.String("ratedID", rating.RatedID),
		slog.Int("rating", rating.Rating),
	)
	return rating, nil
}

// ListFor returns ratings received by a user, newest first.
func (s *RatingService) ListFor(ctx context.Context, ratedID string) ([]model.RatingView, error) {
	ratedID = strings.TrimSpace(ratedID)
	if ratedID == "" {
		return nil, apperror.ValidationFailed("ratedId", "ratedId is required")
	}
	views, err := s.ratings.ListRatingsFor(ctx, ratedID)
	if err != nil {
		logFailure(s.logger, "failed to list ratings", err, slog.String("ratedID", ratedID))
		return nil, fmt.Errorf("listing ratings: %w", err)
	}
	return views, nil
}
