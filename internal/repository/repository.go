// Package repository declares the storage contracts the service layer depends on.
// Implementations live in subpackages (see repository/sqlite).
package repository

import (
	"context"
	"time"

	"github.com/sakif/foodbridge/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// FoodFilter narrows a listing query. Empty fields do not filter.
//
// Status is matched against the effective status: StatusAvailable excludes
// listings whose TTL has elapsed, StatusExpired includes them. Now is the
// reference time for that comparison.
type FoodFilter struct {
	Status     model.Status
	DonorID    string
	ReceiverID string
	Now        time.Time
	ListOptions
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

type FoodRepository interface {
	CreateFood(ctx context.Context, food *model.Food) error
	GetFood(ctx context.Context, id string) (*model.Food, error)
	GetFoodView(ctx context.Context, id string) (*model.FoodView, error)
	ListFood(ctx context.Context, filter FoodFilter) ([]model.FoodView, error)

	// ClaimFood moves an available listing created after notBefore to claimed.
	// It returns ErrConflict if the listing exists but is not claimable and
	// ErrNotFound if it does not exist.
	ClaimFood(ctx context.Context, id, receiverID string, details model.NGODetails, notBefore, now time.Time) (*model.Food, error)

	// CompleteFood moves a claimed listing to completed. It returns
	// ErrValidation if the listing is not claimed.
	CompleteFood(ctx context.Context, id string, now time.Time) (*model.Food, error)

	// ExpireStale persists available→expired for listings created before cutoff.
	ExpireStale(ctx context.Context, cutoff, now time.Time) (int64, error)
}

type RatingRepository interface {
	// CreateRating inserts the rating and folds it into the rated user's
	// running mean atomically. A second rating for the same (food, rater)
	// returns ErrConflict.
	CreateRating(ctx context.Context, rating *model.Rating) error
	HasRated(ctx context.Context, foodID, raterID string) (bool, error)
	ListRatingsFor(ctx context.Context, ratedID string) ([]model.RatingView, error)
}

type ChatRepository interface {
	CreateMessage(ctx context.Context, msg *model.ChatMessage) error
	GetMessageView(ctx context.Context, id string) (*model.ChatView, error)
	Inbox(ctx context.Context, userID string) ([]model.ChatView, error)
	Thread(ctx context.Context, userID, otherID string) ([]model.ChatView, error)
	MarkRead(ctx context.Context, recipientID, senderID string) (int64, error)
}
