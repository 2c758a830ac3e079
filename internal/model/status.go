package model

import "github.com/sakif/foodbridge/internal/apperror"

// Status is the lifecycle state of a food listing.
//
// STATE MACHINE:
//
//	available ──claim──▶ claimed ──complete──▶ completed
//	    │
//	    └──── 24h elapsed ────▶ expired
//
// completed and expired are terminal. Nothing moves backwards.
type Status string

const (
	StatusAvailable Status = "available"
	StatusClaimed   Status = "claimed"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// transitions lists every legal edge of the state machine.
var transitions = map[Status][]Status{
	StatusAvailable: {StatusClaimed, StatusExpired},
	StatusClaimed:   {StatusCompleted},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", apperror.ValidationFailed("status", "invalid status "+s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusClaimed, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HasReceiver reports whether a listing in this state must carry a receiver.
func (s Status) HasReceiver() bool {
	return s == StatusClaimed || s == StatusCompleted
}
