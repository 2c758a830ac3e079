package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/service"
)

type FoodHandler struct {
	food   *service.FoodService
	logger *slog.Logger
}

func NewFoodHandler(food *service.FoodService, logger *slog.Logger) *FoodHandler {
	return &FoodHandler{food: food, logger: logger}
}

type createFoodRequest struct {
	Title              string `json:"title" validate:"required"`
	Description        string `json:"description" validate:"required"`
	Photo              string `json:"photo" validate:"required"`
	GuidelinesAccepted bool   `json:"guidelinesAccepted"`
}

type ngoDetailsRequest struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"max=40"`
	PickupTime string `json:"pickupTime" validate:"max=100"`
	Notes      string `json:"notes" validate:"max=500"`
	Email      string `json:"email" validate:"omitempty,email"`
	Address    string `json:"address" validate:"max=300"`
}

func (d *ngoDetailsRequest) model() model.NGODetails {
	return model.NGODetails{
		Name:       d.Name,
		Phone:      d.Phone,
		PickupTime: d.PickupTime,
		Notes:      d.Notes,
		Email:      d.Email,
		Address:    d.Address,
	}
}

type claimRequest struct {
	FoodID     string             `json:"foodId" validate:"required"`
	NGODetails *ngoDetailsRequest `json:"ngoDetails" validate:"required"`
}

type updateFoodRequest struct {
	Status     string             `json:"status" validate:"required"`
	NGODetails *ngoDetailsRequest `json:"ngoDetails" validate:"omitempty"`
}

type claimResponse struct {
	Message string          `json:"message"`
	Food    *model.FoodView `json:"food"`
}

// HandleCreate lists a new donation.
//
// HTTP: POST /food (restaurant)
func (h *FoodHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(w, r)
	if !ok {
		return
	}

	var req createFoodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	food, err := h.food.Create(r.Context(), userID, service.CreateFoodInput{
		Title:              req.Title,
		Description:        req.Description,
		Photo:              req.Photo,
		GuidelinesAccepted: req.GuidelinesAccepted,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, food)
}

// HandleList returns listings, newest first.
//
// HTTP: GET /food?status=&userId=&userRole=&limit=&offset=
func (h *FoodHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := h.food.List(r.Context(), service.ListFoodInput{
		Status:   q.Get("status"),
		UserID:   q.Get("userId"),
		UserRole: q.Get("userRole"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if views == nil {
		views = []model.FoodView{}
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleGet returns one listing.
//
// HTTP: GET /food/{id}
func (h *FoodHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.food.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleUpdate changes a listing's status.
//
// HTTP: PATCH /food/{id}
// BODY: {"status": "claimed" | "completed", "ngoDetails": {...}?}
func (h *FoodHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(w, r)
	if !ok {
		return
	}

	var req updateFoodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var details *model.NGODetails
	if req.NGODetails != nil {
		d := req.NGODetails.model()
		details = &d
	}

	view, err := h.food.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Status, details)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleClaim reserves a listing for the calling NGO.
//
// HTTP: POST /food/claim (ngo)
// BODY: {"foodId": "...", "ngoDetails": {"name": "...", ...}}
func (h *FoodHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(w, r)
	if !ok {
		return
	}

	var req claimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.food.Claim(r.Context(), userID, req.FoodID, req.NGODetails.model())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		Message: "food claimed successfully",
		Food:    view,
	})
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
