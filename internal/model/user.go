// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account: either a restaurant that donates food or an
// NGO that collects it.
//
// Rating and RatingCount form a running mean of the ratings this user has
// received. They are written only by the rating store, inside the same
// transaction that inserts the rating.
//
// PasswordHash carries `json:"-"` so it can never leak through an API response.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Address      string    `json:"address"`
	Description  string    `json:"description"`
	Role         Role      `json:"role"`
	Rating       float64   `json:"rating"`
	RatingCount  int       `json:"ratingCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserListing is the shape returned by the NGO directory.
type UserListing struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is what any visitor may see about an account.
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"ratingCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u *User) Listing() UserListing {
	return UserListing{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Name:        u.Name,
		Role:        u.Role,
		Address:     u.Address,
		Description: u.Description,
		Rating:      u.Rating,
		RatingCount: u.RatingCount,
		CreatedAt:   u.CreatedAt,
	}
}

// UserRef is the minimal embedded reference used in read views.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role,omitempty"`
}
