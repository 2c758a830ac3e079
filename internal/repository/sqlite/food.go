package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/repository"
)

// compile-time check that *DB implements repository.FoodRepository
var _ repository.FoodRepository = (*DB)(nil)

// Messages shared with the service layer so a lost race reads the same as a
// rejected request.
const (
	msgNoLongerAvailable = "this food item is no longer available"
	msgOnlyClaimed       = "only claimed food can be marked as completed"
)

const foodColumns = `f.id, f.title, f.description, f.photo, f.donor_id,
	COALESCE(f.receiver_id, ''), f.status, f.guidelines_accepted, f.ngo_details,
	f.created_at, f.updated_at`

// foodViewSelect joins the donor (always present) and the receiver (only
// once claimed) so a listing read is one query.
const foodViewSelect = `SELECT ` + foodColumns + `,
	d.name, d.address, d.rating, d.rating_count,
	COALESCE(r.name, ''), COALESCE(r.email, '')
	FROM foods f
	JOIN users d ON d.id = f.donor_id
	LEFT JOIN users r ON r.id = f.receiver_id`

// CreateFood inserts a listing. The caller sets Status and CreatedAt.
func (db *DB) CreateFood(ctx context.Context, food *model.Food) error {
	food.ID = xid.New().String()
	if food.UpdatedAt.IsZero() {
		food.UpdatedAt = food.CreatedAt
	}

	details, err := encodeDetails(food.NGODetails)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO foods (id, title, description, photo, donor_id, receiver_id,
			status, guidelines_accepted, ngo_details, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		food.ID,
		food.Title,
		food.Description,
		food.Photo,
		food.DonorID,
		nullIfEmpty(food.ReceiverID),
		string(food.Status),
		food.GuidelinesAccepted,
		details,
		formatTime(food.CreatedAt),
		formatTime(food.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting food %q: %w", food.Title, err)
	}
	return nil
}

// GetFood returns the bare listing record.
func (db *DB) GetFood(ctx context.Context, id string) (*model.Food, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+foodColumns+` FROM foods f WHERE f.id = ?`, id)

	f, err := scanFood(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("food", id)
		}
		return nil, fmt.Errorf("sqlite: getting food %s: %w", id, err)
	}
	return f, nil
}

// GetFoodView returns the listing with donor and receiver resolved.
func (db *DB) GetFoodView(ctx context.Context, id string) (*model.FoodView, error) {
	row := db.conn.QueryRowContext(ctx, foodViewSelect+` WHERE f.id = ?`, id)

	v, err := scanFoodView(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("food", id)
		}
		return nil, fmt.Errorf("sqlite: getting food view %s: %w", id, err)
	}
	return v, nil
}

// ListFood returns listings matching filter, newest first.
//
// The status predicate works on effective status so that a stale
// "available" row is never offered as claimable and always shows up
// under "expired", whether or not the sweeper has persisted it yet.
func (db *DB) ListFood(ctx context.Context, filter repository.FoodFilter) ([]model.FoodView, error) {
	var (
		where []string
		args  []any
	)

	cutoff := formatTime(filter.Now.Add(-model.FoodTTL))

	switch filter.Status {
	case "":
	case model.StatusAvailable:
		where = append(where, `f.status = 'available' AND f.created_at > ?`)
		args = append(args, cutoff)
	case model.StatusExpired:
		where = append(where, `(f.status = 'expired' OR (f.status = 'available' AND f.created_at <= ?))`)
		args = append(args, cutoff)
	default:
		where = append(where, `f.status = ?`)
		args = append(args, string(filter.Status))
	}

	if filter.DonorID != "" {
		where = append(where, `f.donor_id = ?`)
		args = append(args, filter.DonorID)
	}
	if filter.ReceiverID != "" {
		where = append(where, `f.receiver_id = ?`)
		args = append(args, filter.ReceiverID)
	}

	query := foodViewSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY f.created_at DESC, f.id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing food: %w", err)
	}
	defer rows.Close()

	views := []model.FoodView{}
	for rows.Next() {
		v, err := scanFoodView(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning food row: %w", err)
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating food rows: %w", err)
	}
	return views, nil
}

// ClaimFood is a single conditional UPDATE: the WHERE clause re-checks
// status and age, so of two concurrent claims exactly one changes a row.
func (db *DB) ClaimFood(ctx context.Context, id, receiverID string, details model.NGODetails, notBefore, now time.Time) (*model.Food, error) {
	encoded, err := encodeDetails(&details)
	if err != nil {
		return nil, err
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE foods
		 SET status = 'claimed', receiver_id = ?, ngo_details = ?, updated_at = ?
		 WHERE id = ? AND status = 'available' AND created_at > ?`,
		receiverID,
		encoded,
		formatTime(now),
		id,
		formatTime(notBefore),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: claiming food %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: claiming food %s: %w", id, err)
	}
	if n == 0 {
		// Either the row is missing or someone else got there first.
		if _, err := db.GetFood(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.ConflictMsg(msgNoLongerAvailable)
	}

	return db.GetFood(ctx, id)
}

// CompleteFood transitions claimed → completed.
func (db *DB) CompleteFood(ctx context.Context, id string, now time.Time) (*model.Food, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE foods SET status = 'completed', updated_at = ?
		 WHERE id = ? AND status = 'claimed'`,
		formatTime(now), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: completing food %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: completing food %s: %w", id, err)
	}
	if n == 0 {
		if _, err := db.GetFood(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.ValidationFailed("status", msgOnlyClaimed)
	}

	return db.GetFood(ctx, id)
}

// ExpireStale marks every available listing created at or before cutoff
// as expired and reports how many rows changed.
func (db *DB) ExpireStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE foods SET status = 'expired', updated_at = ?
		 WHERE status = 'available' AND created_at <= ?`,
		formatTime(now), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: expiring stale food: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: expiring stale food: %w", err)
	}
	return n, nil
}

func scanFood(sc scanner) (*model.Food, error) {
	var (
		f       model.Food
		status  string
		details sql.NullString
	)
	err := sc.Scan(
		&f.ID,
		&f.Title,
		&f.Description,
		&f.Photo,
		&f.DonorID,
		&f.ReceiverID,
		&status,
		&f.GuidelinesAccepted,
		&details,
		scanTime(&f.CreatedAt),
		scanTime(&f.UpdatedAt),
	)
	if err != nil {
		return nil, err
	}
	f.Status = model.Status(status)
	if f.NGODetails, err = decodeDetails(details); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFoodView(sc scanner) (*model.FoodView, error) {
	var (
		v         model.FoodView
		status    string
		details   sql.NullString
		donor     model.DonorSummary
		recvName  string
		recvEmail string
	)
	err := sc.Scan(
		&v.ID,
		&v.Title,
		&v.Description,
		&v.Photo,
		&v.DonorID,
		&v.ReceiverID,
		&status,
		&v.GuidelinesAccepted,
		&details,
		scanTime(&v.CreatedAt),
		scanTime(&v.UpdatedAt),
		&donor.Name,
		&donor.Address,
		&donor.Rating,
		&donor.RatingCount,
		&recvName,
		&recvEmail,
	)
	if err != nil {
		return nil, err
	}
	v.Status = model.Status(status)
	if v.NGODetails, err = decodeDetails(details); err != nil {
		return nil, err
	}

	donor.ID = v.DonorID
	v.Donor = &donor
	if v.ReceiverID != "" {
		v.ClaimedBy = &model.ClaimedBy{ID: v.ReceiverID, Name: recvName, Email: recvEmail}
	}
	return &v, nil
}

func encodeDetails(d *model.NGODetails) (any, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding ngo details: %w", err)
	}
	return string(b), nil
}

func decodeDetails(ns sql.NullString) (*model.NGODetails, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var d model.NGODetails
	if err := json.Unmarshal([]byte(ns.String), &d); err != nil {
		return nil, fmt.Errorf("sqlite: decoding ngo details: %w", err)
	}
	return &d, nil
}
