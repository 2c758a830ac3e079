package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/service"
)

type RatingHandler struct {
	ratings *service.RatingService
	logger  *slog.Logger
}

func NewRatingHandler(ratings *service.RatingService, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{ratings: ratings, logger: logger}
}

type rateRequest struct {
	FoodID  string `json:"foodId" validate:"required"`
	RatedID string `json:"ratedId" validate:"required"`
	Rating  int    `json:"rating" validate:"required"`
	Comment string `json:"comment"`
}

// HandleCreate records the receiving NGO's rating of a completed donation.
//
// HTTP: POST /rating
func (h *RatingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(w, r)
	if !ok {
		return
	}

	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	rating, err := h.ratings.Rate(r.Context(), userID, service.RateInput{
		FoodID:  req.FoodID,
		RatedID: req.RatedID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

// HandleList returns ratings a user has received.
//
// HTTP: GET /rating?ratedId=
func (h *RatingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.ratings.ListFor(r.Context(), r.URL.Query().Get("ratedId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if views == nil {
		views = []model.RatingView{}
	}
	writeJSON(w, http.StatusOK, views)
}
