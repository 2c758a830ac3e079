package model

import (
	"database/sql/driver"
	"fmt"

	"github.com/sakif/foodbridge/internal/apperror"
)

// Role is the closed set of account kinds. The zero value is not a valid role,
// so an unset Role can never pass a capability check by accident.
//
// CAPABILITIES, NOT STRING COMPARISONS:
// Callers ask a Role what it may do (CanDonate, CanClaim, ...) instead of
// comparing against "restaurant" or "ngo". Adding a rule means touching
// this file only.
type Role uint8

const (
	RoleRestaurant Role = iota + 1
	RoleNGO
)

const (
	roleRestaurantName = "restaurant"
	roleNGOName        = "ngo"
)

// ErrInvalidRoleMessage is shown whenever a role string fails to parse.
const ErrInvalidRoleMessage = "invalid role. must be restaurant or ngo"

// ParseRole converts the wire/database form into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case roleRestaurantName:
		return RoleRestaurant, nil
	case roleNGOName:
		return RoleNGO, nil
	default:
		return 0, apperror.ValidationFailed("role", ErrInvalidRoleMessage)
	}
}

func (r Role) String() string {
	switch r {
	case RoleRestaurant:
		return roleRestaurantName
	case RoleNGO:
		return roleNGOName
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func (r Role) Valid() bool {
	return r == RoleRestaurant || r == RoleNGO
}

// CanDonate reports whether the role may publish food listings.
func (r Role) CanDonate() bool { return r == RoleRestaurant }

// CanClaim reports whether the role may reserve an available listing.
func (r Role) CanClaim() bool { return r == RoleNGO }

// CanRate reports whether the role may rate a completed donation.
func (r Role) CanRate() bool { return r == RoleNGO }

// CanBrowseNGOs reports whether the role may list NGO accounts.
func (r Role) CanBrowseNGOs() bool { return r == RoleRestaurant }

// MarshalText makes Role serialize as "restaurant"/"ngo" in JSON.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("model: cannot marshal invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the role as its name so the database stays readable.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("model: cannot store invalid role %d", uint8(r))
	}
	return r.String(), nil
}

func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("model: cannot scan %T into Role", src)
	}
}
