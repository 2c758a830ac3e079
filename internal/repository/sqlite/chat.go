package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/repository"
)

// compile-time check that *DB implements repository.ChatRepository
var _ repository.ChatRepository = (*DB)(nil)

const chatViewSelect = `SELECT c.id, c.sender_id, c.recipient_id, c.content,
	COALESCE(c.food_item_id, ''), c.timestamp, c.read,
	s.name, s.role, r.name, r.role, COALESCE(f.title, '')
	FROM chats c
	JOIN users s ON s.id = c.sender_id
	JOIN users r ON r.id = c.recipient_id
	LEFT JOIN foods f ON f.id = c.food_item_id`

// CreateMessage appends a message. Timestamp is set by the caller.
func (db *DB) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	msg.ID = xid.New().String()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO chats (id, sender_id, recipient_id, content, food_item_id, timestamp, read)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.SenderID,
		msg.RecipientID,
		msg.Content,
		nullIfEmpty(msg.FoodItemID),
		formatTime(msg.Timestamp),
		msg.Read,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting chat message: %w", err)
	}
	return nil
}

func (db *DB) GetMessageView(ctx context.Context, id string) (*model.ChatView, error) {
	row := db.conn.QueryRowContext(ctx, chatViewSelect+` WHERE c.id = ?`, id)
	v, err := scanChatView(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message", id)
		}
		return nil, fmt.Errorf("sqlite: getting message %s: %w", id, err)
	}
	return v, nil
}

// Inbox returns every message the user sent or received, newest first.
func (db *DB) Inbox(ctx context.Context, userID string) ([]model.ChatView, error) {
	return db.queryChats(ctx,
		chatViewSelect+` WHERE c.sender_id = ? OR c.recipient_id = ?
		 ORDER BY c.timestamp DESC, c.id DESC`,
		userID, userID,
	)
}

// Thread returns the conversation between two users, oldest first.
func (db *DB) Thread(ctx context.Context, userID, otherID string) ([]model.ChatView, error) {
	return db.queryChats(ctx,
		chatViewSelect+` WHERE (c.sender_id = ? AND c.recipient_id = ?)
		    OR (c.sender_id = ? AND c.recipient_id = ?)
		 ORDER BY c.timestamp ASC, c.id ASC`,
		userID, otherID, otherID, userID,
	)
}

// MarkRead flags every unread message from senderID to recipientID.
func (db *DB) MarkRead(ctx context.Context, recipientID, senderID string) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE chats SET read = 1
		 WHERE recipient_id = ? AND sender_id = ? AND read = 0`,
		recipientID, senderID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: marking messages read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: marking messages read: %w", err)
	}
	return n, nil
}

func (db *DB) queryChats(ctx context.Context, query string, args ...any) ([]model.ChatView, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying chats: %w", err)
	}
	defer rows.Close()

	msgs := []model.ChatView{}
	for rows.Next() {
		v, err := scanChatView(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning chat row: %w", err)
		}
		msgs = append(msgs, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating chat rows: %w", err)
	}
	return msgs, nil
}

func scanChatView(sc scanner) (*model.ChatView, error) {
	var (
		v         model.ChatView
		foodTitle string
	)
	err := sc.Scan(
		&v.ID,
		&v.SenderID,
		&v.RecipientID,
		&v.Content,
		&v.FoodItemID,
		scanTime(&v.Timestamp),
		&v.Read,
		&v.Sender.Name,
		&v.Sender.Role,
		&v.Recipient.Name,
		&v.Recipient.Role,
		&foodTitle,
	)
	if err != nil {
		return nil, err
	}
	v.Sender.ID = v.SenderID
	v.Recipient.ID = v.RecipientID
	if v.FoodItemID != "" {
		v.Food = &model.FoodRef{ID: v.FoodItemID, Title: foodTitle}
	}
	return &v, nil
}
