package service

import (
	"time"

	"github.com/sakif/foodbridge/internal/model"
)

// deriveView fills the read-time fields of a listing: isExpired, expiresAt,
// and the effective status (stale "available" reads as "expired").
// It never touches the store.
func deriveView(v *model.FoodView, now time.Time) {
	v.IsExpired = v.Food.IsExpired(now)
	v.ExpiresAt = v.Food.ExpiresAt()
	v.Status = v.Food.EffectiveStatus(now)
}
