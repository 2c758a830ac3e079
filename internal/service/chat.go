package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/repository"
)

// ChatService carries direct messages between a restaurant and an NGO,
// optionally about a specific listing.
type ChatService struct {
	chats  repository.ChatRepository
	users  repository.UserRepository
	foods  repository.FoodRepository
	logger *slog.Logger
	now    Clock
}

func NewChatService(
	chats repository.ChatRepository,
	users repository.UserRepository,
	foods repository.FoodRepository,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		chats:  chats,
		users:  users,
		foods:  foods,
		logger: logger,
		now:    systemClock,
	}
}

func (s *ChatService) Send(ctx context.Context, actorID, recipientID, content, foodItemID string) (*model.ChatView, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}

	recipientID = strings.TrimSpace(recipientID)
	content = strings.TrimSpace(content)
	foodItemID = strings.TrimSpace(foodItemID)

	switch {
	case recipientID == "":
		return nil, apperror.ValidationFailed("recipientId", "recipientId is required")
	case content == "":
		return nil, apperror.ValidationFailed("content", "content is required")
	case len([]rune(content)) > model.MaxChatContentLength:
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", model.MaxChatContentLength))
	case recipientID == actor.ID:
		return nil, apperror.ValidationFailed("recipientId", "you cannot message yourself")
	}

	if _, err := s.users.GetUserByID(ctx, recipientID); err != nil {
		return nil, err
	}
	if foodItemID != "" {
		if _, err := s.foods.GetFood(ctx, foodItemID); err != nil {
			return nil, err
		}
	}

	msg := &model.ChatMessage{
		SenderID:    actor.ID,
		RecipientID: recipientID,
		Content:     content,
		FoodItemID:  foodItemID,
		Timestamp:   s.now(),
	}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		logFailure(s.logger, "failed to send message", err, slog.String("senderID", actor.ID))
		return nil, fmt.Errorf("sending message: %w", err)
	}

	s.logger.Debug("message sent",
		slog.String("id", msg.ID),
		slog.String("senderID", msg.SenderID),
		slog.String("recipientID", msg.RecipientID),
	)
	return s.chats.GetMessageView(ctx, msg.ID)
}

// Inbox returns every message the actor sent or received, newest first.
func (s *ChatService) Inbox(ctx context.Context, actorID string) ([]model.ChatView, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	views, err := s.chats.Inbox(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("loading inbox: %w", err)
	}
	return views, nil
}

// Thread returns the conversation with otherID, oldest first.
func (s *ChatService) Thread(ctx context.Context, actorID, otherID string) ([]model.ChatView, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	otherID = strings.TrimSpace(otherID)
	if otherID == "" {
		return nil, apperror.ValidationFailed("userId", "userId is required")
	}
	if _, err := s.users.GetUserByID(ctx, otherID); err != nil {
		return nil, err
	}
	views, err := s.chats.Thread(ctx, actor.ID, otherID)
	if err != nil {
		return nil, fmt.Errorf("loading thread: %w", err)
	}
	return views, nil
}

// MarkRead marks everything senderID sent to the actor as read.
func (s *ChatService) MarkRead(ctx context.Context, actorID, senderID string) (int64, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return 0, err
	}
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return 0, apperror.ValidationFailed("userId", "userId is required")
	}
	n, err := s.chats.MarkRead(ctx, actor.ID, senderID)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}
	return n, nil
}
