// Package service contains the business rules of the food-donation system.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)       → parses requests, writes responses
//	Service (this)       → validates, authorizes, drives the listing lifecycle
//	Repository (storage) → reads/writes the database
//
// Services take primitives and model values, never *http.Request, and
// return apperror values. That keeps every rule testable with plain
// function calls against fake repositories (see *_test.go).
//
// CLOCK:
// Every service reads time through an injectable `now func() time.Time`,
// so expiry rules can be tested at exact TTL boundaries.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/repository"
)

// Clock returns the current time. time.Now in production.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// loadActor resolves the authenticated user. A session whose user no longer
// exists is treated as unauthenticated rather than as a missing resource.
func loadActor(ctx context.Context, users repository.UserRepository, actorID string) (*model.User, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, apperror.Unauthenticated("authentication required")
	}
	u, err := users.GetUserByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("authentication required")
		}
		return nil, err
	}
	return u, nil
}

// logFailure logs err unless it is an expected domain error. Domain errors
// are normal responses; only storage failures deserve an error log line.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...any) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return
	}
	logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}
