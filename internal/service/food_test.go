package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/model"
)

func validFoodInput() CreateFoodInput {
	return CreateFoodInput{
		Title:              "Pasta",
		Description:        "Two trays of penne",
		Photo:              "https://img.example.com/pasta.jpg",
		GuidelinesAccepted: true,
	}
}

// =========================================================================
// Create
// =========================================================================

func TestCreate_RestaurantListsFood(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)

	food, err := fx.food.Create(context.Background(), r.ID, validFoodInput())
	require.NoError(t, err)

	assert.NotEmpty(t, food.ID)
	assert.Equal(t, model.StatusAvailable, food.Status)
	assert.Equal(t, r.ID, food.DonorID)
	assert.Empty(t, food.ReceiverID)
	assert.True(t, food.CreatedAt.Equal(testNow))
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		role    model.Role
		mutate  func(*CreateFoodInput)
		wantErr error
		wantMsg string
	}{
		{
			name:    "ngo cannot donate",
			role:    model.RoleNGO,
			mutate:  func(*CreateFoodInput) {},
			wantErr: apperror.ErrForbidden,
			wantMsg: "only restaurants can create food donations",
		},
		{
			name:    "guidelines not accepted",
			role:    model.RoleRestaurant,
			mutate:  func(in *CreateFoodInput) { in.GuidelinesAccepted = false },
			wantErr: apperror.ErrValidation,
			wantMsg: "you must accept the guidelines to proceed",
		},
		{
			name:    "missing title",
			role:    model.RoleRestaurant,
			mutate:  func(in *CreateFoodInput) { in.Title = "   " },
			wantErr: apperror.ErrValidation,
		},
		{
			name: "title too long",
			role: model.RoleRestaurant,
			mutate: func(in *CreateFoodInput) {
				b := make([]rune, MaxTitleLength+1)
				for i := range b {
					b[i] = 'x'
				}
				in.Title = string(b)
			},
			wantErr: apperror.ErrValidation,
		},
		{
			name:    "missing photo",
			role:    model.RoleRestaurant,
			mutate:  func(in *CreateFoodInput) { in.Photo = "" },
			wantErr: apperror.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			u := fx.users.add("Actor", tt.role)
			in := validFoodInput()
			tt.mutate(&in)

			_, err := fx.food.Create(context.Background(), u.ID, in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestCreate_UnknownActorIsUnauthenticated(t *testing.T) {
	fx := newFixture()

	_, err := fx.food.Create(context.Background(), "ghost", validFoodInput())
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	_, err = fx.food.Create(context.Background(), "", validFoodInput())
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestCreate_StorageFailureIsWrapped(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	dbErr := errors.New("disk full")
	fx.foods.createErr = dbErr

	_, err := fx.food.Create(context.Background(), r.ID, validFoodInput())
	assert.ErrorIs(t, err, dbErr)
}

// =========================================================================
// Read-time expiry
// =========================================================================

func TestGet_DerivesExpiryWithoutWriting(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	stale := fx.foods.add(r.ID, "Bread", model.StatusAvailable, testNow.Add(-model.FoodTTL-time.Minute))

	view, err := fx.food.Get(context.Background(), stale.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusExpired, view.Status)
	assert.True(t, view.IsExpired)
	assert.True(t, view.ExpiresAt.Equal(stale.CreatedAt.Add(model.FoodTTL)))
	require.NotNil(t, view.Donor)
	assert.Equal(t, "Resto", view.Donor.Name)

	// The stored row is untouched; only the sweeper persists expiry.
	assert.Equal(t, model.StatusAvailable, fx.foods.status(stale.ID))
}

func TestGet_TTLBoundary(t *testing.T) {
	tests := []struct {
		name        string
		age         time.Duration
		wantStatus  model.Status
		wantExpired bool
	}{
		{"fresh", time.Hour, model.StatusAvailable, false},
		{"one second short", model.FoodTTL - time.Second, model.StatusAvailable, false},
		{"exactly at ttl", model.FoodTTL, model.StatusExpired, true},
		{"past ttl", model.FoodTTL + time.Hour, model.StatusExpired, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			r := fx.users.add("Resto", model.RoleRestaurant)
			f := fx.foods.add(r.ID, "Soup", model.StatusAvailable, testNow.Add(-tt.age))

			view, err := fx.food.Get(context.Background(), f.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, view.Status)
			assert.Equal(t, tt.wantExpired, view.IsExpired)
		})
	}
}

func TestGet_ClaimedStaysClaimedPastTTL(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	n := fx.users.add("Hope", model.RoleNGO)
	f := fx.foods.add(r.ID, "Rice", model.StatusAvailable, testNow.Add(-48*time.Hour))
	fx.foods.setReceiver(f.ID, n.ID, model.StatusClaimed)

	view, err := fx.food.Get(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClaimed, view.Status)
	assert.True(t, view.IsExpired)
	require.NotNil(t, view.ClaimedBy)
	assert.Equal(t, n.ID, view.ClaimedBy.ID)
}

func TestGet_Missing(t *testing.T) {
	fx := newFixture()
	_, err := fx.food.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = fx.food.Get(context.Background(), " ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// List
// =========================================================================

func TestList_OwnerResolution(t *testing.T) {
	tests := []struct {
		name         string
		in           ListFoodInput
		wantDonor    bool
		wantReceiver bool
	}{
		{"no user", ListFoodInput{}, false, false},
		{"user without role", ListFoodInput{UserID: "u"}, true, false},
		{"restaurant claimed", ListFoodInput{UserID: "u", UserRole: "restaurant", Status: "claimed"}, true, false},
		{"ngo available", ListFoodInput{UserID: "u", UserRole: "ngo", Status: "available"}, true, false},
		{"ngo claimed", ListFoodInput{UserID: "u", UserRole: "ngo", Status: "claimed"}, false, true},
		{"ngo completed", ListFoodInput{UserID: "u", UserRole: "ngo", Status: "completed"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			_, err := fx.food.List(context.Background(), tt.in)
			require.NoError(t, err)

			f := fx.foods.lastFilter
			assert.Equal(t, tt.wantDonor, f.DonorID == "u", "donor filter")
			assert.Equal(t, tt.wantReceiver, f.ReceiverID == "u", "receiver filter")
			assert.True(t, f.Now.Equal(testNow))
		})
	}
}

func TestList_Pagination(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultListLimit, 0},
		{10, 5, 10, 5},
		{MaxListLimit + 1, -3, MaxListLimit, 0},
	}
	for _, tt := range tests {
		fx := newFixture()
		_, err := fx.food.List(context.Background(), ListFoodInput{Limit: tt.limit, Offset: tt.offset})
		require.NoError(t, err)
		assert.Equal(t, tt.wantLimit, fx.foods.lastFilter.Limit)
		assert.Equal(t, tt.wantOffset, fx.foods.lastFilter.Offset)
	}
}

func TestList_InvalidParams(t *testing.T) {
	fx := newFixture()

	_, err := fx.food.List(context.Background(), ListFoodInput{Status: "eaten"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = fx.food.List(context.Background(), ListFoodInput{UserID: "u", UserRole: "admin"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestList_StatusFilterUsesEffectiveStatus(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	fresh := fx.foods.add(r.ID, "Fresh", model.StatusAvailable, testNow.Add(-time.Hour))
	stale := fx.foods.add(r.ID, "Stale", model.StatusAvailable, testNow.Add(-25*time.Hour))

	available, err := fx.food.List(context.Background(), ListFoodInput{Status: "available"})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, fresh.ID, available[0].ID)

	expired, err := fx.food.List(context.Background(), ListFoodInput{Status: "expired"})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
	assert.Equal(t, model.StatusExpired, expired[0].Status)
	assert.True(t, expired[0].IsExpired)
}

// =========================================================================
// Claim
// =========================================================================

func TestClaim_Success(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	n := fx.users.add("Hope", model.RoleNGO)
	f := fx.foods.add(r.ID, "Pasta", model.StatusAvailable, testNow.Add(-time.Hour))

	view, err := fx.food.Claim(context.Background(), n.ID, f.ID, model.NGODetails{
		Name:       " Hope ",
		Phone:      "555-0100",
		PickupTime: "18:00",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusClaimed, view.Status)
	assert.Equal(t, n.ID, view.ReceiverID)
	require.NotNil(t, view.NGODetails)
	assert.Equal(t, "Hope", view.NGODetails.Name)
	require.NotNil(t, view.ClaimedBy)
	assert.Equal(t, "hope@example.com", view.ClaimedBy.Email)

	require.Len(t, fx.notifier.calls, 1)
	assert.Equal(t, "resto@example.com:"+f.ID, fx.notifier.calls[0])
}

func TestClaim_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(fx *fixture, donorID, ngoID string) (actorID, foodID string)
		details model.NGODetails
		wantErr error
	}{
		{
			name: "restaurant cannot claim",
			setup: func(fx *fixture, donorID, _ string) (string, string) {
				f := fx.foods.add(donorID, "A", model.StatusAvailable, testNow)
				return donorID, f.ID
			},
			details: model.NGODetails{Name: "x"},
			wantErr: apperror.ErrForbidden,
		},
		{
			name: "missing ngo name",
			setup: func(fx *fixture, donorID, ngoID string) (string, string) {
				f := fx.foods.add(donorID, "A", model.StatusAvailable, testNow)
				return ngoID, f.ID
			},
			details: model.NGODetails{Name: "  "},
			wantErr: apperror.ErrValidation,
		},
		{
			name: "missing food",
			setup: func(_ *fixture, _, ngoID string) (string, string) {
				return ngoID, "nope"
			},
			details: model.NGODetails{Name: "Hope"},
			wantErr: apperror.ErrNotFound,
		},
		{
			name: "already claimed",
			setup: func(fx *fixture, donorID, ngoID string) (string, string) {
				f := fx.foods.add(donorID, "A", model.StatusAvailable, testNow)
				fx.foods.setReceiver(f.ID, "other-ngo", model.StatusClaimed)
				return ngoID, f.ID
			},
			details: model.NGODetails{Name: "Hope"},
			wantErr: apperror.ErrConflict,
		},
		{
			name: "completed listing",
			setup: func(fx *fixture, donorID, ngoID string) (string, string) {
				f := fx.foods.add(donorID, "A", model.StatusAvailable, testNow)
				fx.foods.setReceiver(f.ID, "other-ngo", model.StatusCompleted)
				return ngoID, f.ID
			},
			details: model.NGODetails{Name: "Hope"},
			wantErr: apperror.ErrConflict,
		},
		{
			name: "swept expired listing",
			setup: func(fx *fixture, donorID, ngoID string) (string, string) {
				f := fx.foods.add(donorID, "A", model.StatusExpired, testNow.Add(-2*model.FoodTTL))
				return ngoID, f.ID
			},
			details: model.NGODetails{Name: "Hope"},
			wantErr: apperror.ErrConflict,
		},
		{
			name: "stale listing",
			setup: func(fx *fixture, donorID, ngoID string) (string, string) {
				f := fx.foods.add(donorID, "A", model.StatusAvailable, testNow.Add(-model.FoodTTL))
				return ngoID, f.ID
			},
			details: model.NGODetails{Name: "Hope"},
			wantErr: apperror.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			r := fx.users.add("Resto", model.RoleRestaurant)
			n := fx.users.add("Hope", model.RoleNGO)
			actorID, foodID := tt.setup(fx, r.ID, n.ID)
			before := fx.foods.status(foodID)

			_, err := fx.food.Claim(context.Background(), actorID, foodID, tt.details)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, fx.notifier.calls)
			assert.Equal(t, before, fx.foods.status(foodID))
		})
	}
}

func TestClaim_ConflictMessage(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	n := fx.users.add("Hope", model.RoleNGO)
	f := fx.foods.add(r.ID, "Pasta", model.StatusAvailable, testNow)
	fx.foods.setReceiver(f.ID, "other", model.StatusClaimed)

	_, err := fx.food.Claim(context.Background(), n.ID, f.ID, model.NGODetails{Name: "Hope"})

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "this food item is no longer available", appErr.Message)
}

func TestClaim_NotifierFailureDoesNotFailClaim(t *testing.T) {
	fx := newFixture()
	fx.notifier.err = errors.New("smtp down")
	r := fx.users.add("Resto", model.RoleRestaurant)
	n := fx.users.add("Hope", model.RoleNGO)
	f := fx.foods.add(r.ID, "Pasta", model.StatusAvailable, testNow)

	view, err := fx.food.Claim(context.Background(), n.ID, f.ID, model.NGODetails{Name: "Hope"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusClaimed, view.Status)
}

func TestClaim_NilNotifier(t *testing.T) {
	fx := newFixture()
	fx.food.notifier = nil
	r := fx.users.add("Resto", model.RoleRestaurant)
	n := fx.users.add("Hope", model.RoleNGO)
	f := fx.foods.add(r.ID, "Pasta", model.StatusAvailable, testNow)

	_, err := fx.food.Claim(context.Background(), n.ID, f.ID, model.NGODetails{Name: "Hope"})
	require.NoError(t, err)
}

// =========================================================================
// Complete and Update
// =========================================================================

func TestComplete(t *testing.T) {
	tests := []struct {
		name    string
		status  model.Status
		actor   string // "donor", "receiver", "stranger"
		wantErr error
	}{
		{"donor completes", model.StatusClaimed, "donor", nil},
		{"receiver completes", model.StatusClaimed, "receiver", nil},
		{"stranger forbidden", model.StatusClaimed, "stranger", apperror.ErrForbidden},
		{"stranger forbidden before status check", model.StatusAvailable, "stranger", apperror.ErrForbidden},
		{"available cannot complete", model.StatusAvailable, "donor", apperror.ErrValidation},
		{"completed cannot complete", model.StatusCompleted, "receiver", apperror.ErrValidation},
		{"expired cannot complete", model.StatusExpired, "donor", apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			r := fx.users.add("Resto", model.RoleRestaurant)
			n := fx.users.add("Hope", model.RoleNGO)
			s := fx.users.add("Other", model.RoleNGO)
			f := fx.foods.add(r.ID, "Pasta", model.StatusAvailable, testNow)
			if tt.status != model.StatusAvailable {
				fx.foods.setReceiver(f.ID, n.ID, tt.status)
			}

			actor := map[string]string{"donor": r.ID, "receiver": n.ID, "stranger": s.ID}[tt.actor]
			view, err := fx.food.Complete(context.Background(), actor, f.ID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.StatusCompleted, view.Status)
		})
	}
}

func TestUpdate_ClaimDefaultsDetailsFromProfile(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	n := fx.users.add("Hope", model.RoleNGO)
	f := fx.foods.add(r.ID, "Pasta", model.StatusAvailable, testNow)

	view, err := fx.food.Update(context.Background(), n.ID, f.ID, "claimed", nil)
	require.NoError(t, err)

	require.NotNil(t, view.NGODetails)
	assert.Equal(t, "Hope", view.NGODetails.Name)
	assert.Equal(t, "hope@example.com", view.NGODetails.Email)
	assert.Equal(t, "Hope street", view.NGODetails.Address)
}

func TestUpdate_Complete(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	n := fx.users.add("Hope", model.RoleNGO)
	f := fx.foods.add(r.ID, "Pasta", model.StatusAvailable, testNow)
	fx.foods.setReceiver(f.ID, n.ID, model.StatusClaimed)

	view, err := fx.food.Update(context.Background(), r.ID, f.ID, "completed", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, view.Status)
}

func TestUpdate_RejectsOtherStatuses(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	f := fx.foods.add(r.ID, "Pasta", model.StatusAvailable, testNow)

	for _, s := range []string{"available", "expired", "", "eaten"} {
		_, err := fx.food.Update(context.Background(), r.ID, f.ID, s, nil)
		assert.ErrorIs(t, err, apperror.ErrValidation, "status %q", s)
	}
}

// =========================================================================
// ExpireStale
// =========================================================================

func TestExpireStale_PersistsOnlyStaleAvailable(t *testing.T) {
	fx := newFixture()
	r := fx.users.add("Resto", model.RoleRestaurant)
	stale := fx.foods.add(r.ID, "Old", model.StatusAvailable, testNow.Add(-25*time.Hour))
	edge := fx.foods.add(r.ID, "Edge", model.StatusAvailable, testNow.Add(-model.FoodTTL))
	fresh := fx.foods.add(r.ID, "New", model.StatusAvailable, testNow.Add(-time.Hour))
	claimed := fx.foods.add(r.ID, "Taken", model.StatusAvailable, testNow.Add(-30*time.Hour))
	fx.foods.setReceiver(claimed.ID, "ngo", model.StatusClaimed)

	n, err := fx.food.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, model.StatusExpired, fx.foods.status(stale.ID))
	assert.Equal(t, model.StatusExpired, fx.foods.status(edge.ID))
	assert.Equal(t, model.StatusAvailable, fx.foods.status(fresh.ID))
	assert.Equal(t, model.StatusClaimed, fx.foods.status(claimed.ID))

	again, err := fx.food.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestExpireStale_Error(t *testing.T) {
	fx := newFixture()
	dbErr := errors.New("locked")
	fx.foods.expireErr = dbErr

	_, err := fx.food.ExpireStale(context.Background())
	assert.ErrorIs(t, err, dbErr)
}
