package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/repository"
)

// compile-time check that *DB implements repository.RatingRepository
var _ repository.RatingRepository = (*DB)(nil)

const msgAlreadyRated = "you have already rated this food donation"

// CreateRating writes the rating and updates the rated user's aggregate in
// one transaction.
//
// The aggregate update is a single statement that reads and writes the
// row under SQLite's write lock:
//
//	rating       = (rating * rating_count + r) / (rating_count + 1)
//	rating_count = rating_count + 1
//
// so two ratings for the same donor cannot overwrite each other, and if
// either step fails the rating is rolled back with it.
func (db *DB) CreateRating(ctx context.Context, r *model.Rating) error {
	r.ID = xid.New().String()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning rating tx: %w", err)
	}
	// Rollback after Commit is a no-op, so this is safe on every path.
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ratings (id, food_id, rater_id, rated_id, rating, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.FoodID,
		r.RaterID,
		r.RatedID,
		r.Rating,
		r.Comment,
		formatTime(r.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMsg(msgAlreadyRated)
		}
		return fmt.Errorf("sqlite: inserting rating for food %s: %w", r.FoodID, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET rating = (rating * rating_count + ?) / (rating_count + 1),
		     rating_count = rating_count + 1,
		     updated_at = ?
		 WHERE id = ?`,
		float64(r.Rating),
		formatTime(r.CreatedAt),
		r.RatedID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating rating aggregate for %s: %w", r.RatedID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating rating aggregate for %s: %w", r.RatedID, err)
	}
	if n == 0 {
		return apperror.NotFound("user", r.RatedID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing rating: %w", err)
	}
	return nil
}

// HasRated reports whether raterID already rated foodID.
func (db *DB) HasRated(ctx context.Context, foodID, raterID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ratings WHERE food_id = ? AND rater_id = ?)`,
		foodID, raterID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rating for food %s: %w", foodID, err)
	}
	return exists, nil
}

// ListRatingsFor returns the ratings a user has received, newest first.
func (db *DB) ListRatingsFor(ctx context.Context, ratedID string) ([]model.RatingView, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.food_id, r.rater_id, r.rated_id, r.rating, r.comment, r.created_at,
		        u.name
		 FROM ratings r
		 JOIN users u ON u.id = r.rater_id
		 WHERE r.rated_id = ?
		 ORDER BY r.created_at DESC, r.id DESC`,
		ratedID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ratings for %s: %w", ratedID, err)
	}
	defer rows.Close()

	ratings := []model.RatingView{}
	for rows.Next() {
		var v model.RatingView
		if err := rows.Scan(
			&v.ID,
			&v.FoodID,
			&v.RaterID,
			&v.RatedID,
			&v.Rating.Rating,
			&v.Comment,
			scanTime(&v.CreatedAt),
			&v.Rater.Name,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning rating row: %w", err)
		}
		v.Rater.ID = v.RaterID
		ratings = append(ratings, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating rating rows: %w", err)
	}
	return ratings, nil
}
