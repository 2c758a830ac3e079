package model

import "time"

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 200
)

// Rating is an NGO's feedback on a completed donation. One per (FoodID,
// RaterID); immutable once written.
type Rating struct {
	ID        string    `json:"id"`
	FoodID    string    `json:"foodId"`
	RaterID   string    `json:"raterId"`
	RatedID   string    `json:"ratedId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RatingView adds the rater's name for display.
type RatingView struct {
	Rating
	Rater UserRef `json:"rater"`
}
