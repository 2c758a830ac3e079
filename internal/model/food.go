package model

import "time"

// FoodTTL is how long a listing stays claimable after it is posted.
const FoodTTL = 24 * time.Hour

// NGODetails is the pickup contact information an NGO supplies when claiming.
// It is stored verbatim; only Name is mandatory.
type NGODetails struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	PickupTime string `json:"pickupTime,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
}

// Food is a donation listing posted by a restaurant.
//
// ReceiverID is empty while the listing is available or expired and set
// exactly when Status is claimed or completed. DonorID never changes after
// creation.
type Food struct {
	ID                 string      `json:"id"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	Photo              string      `json:"photo"`
	DonorID            string      `json:"donorId"`
	ReceiverID         string      `json:"receiverId,omitempty"`
	Status             Status      `json:"status"`
	GuidelinesAccepted bool        `json:"guidelinesAccepted"`
	NGODetails         *NGODetails `json:"ngoDetails,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// ExpiresAt is the moment the listing stops being claimable.
func (f *Food) ExpiresAt() time.Time {
	return f.CreatedAt.Add(FoodTTL)
}

// IsExpired reports whether the TTL has elapsed at now. It says nothing about
// status: a completed listing can be "expired" in age and still completed.
func (f *Food) IsExpired(now time.Time) bool {
	return now.Sub(f.CreatedAt) >= FoodTTL
}

// EffectiveStatus is the status a reader should see at now. An available
// listing past its TTL reads as expired even before the sweeper persists it.
func (f *Food) EffectiveStatus(now time.Time) Status {
	if f.Status == StatusAvailable && f.IsExpired(now) {
		return StatusExpired
	}
	return f.Status
}

// IsParty reports whether userID is the donor or the receiver.
func (f *Food) IsParty(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == f.DonorID || userID == f.ReceiverID
}

// DonorSummary is the donor information embedded in listing reads.
type DonorSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"ratingCount"`
}

// ClaimedBy identifies the NGO holding a claimed or completed listing.
type ClaimedBy struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FoodView is the read model returned by list and get. Status inside the
// embedded Food is already the effective status.
type FoodView struct {
	Food
	IsExpired bool          `json:"isExpired"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Donor     *DonorSummary `json:"donor,omitempty"`
	ClaimedBy *ClaimedBy    `json:"claimedBy,omitempty"`
}

// FoodRef is the minimal listing reference embedded in chat reads.
type FoodRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
