package model

import "time"

const MaxChatContentLength = 2000

// ChatMessage is one message between two users, optionally about a listing.
// Only Read ever changes after the message is written.
type ChatMessage struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Content     string    `json:"content"`
	FoodItemID  string    `json:"foodItemId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
}

// ChatView is a message with both participants and the listing resolved.
type ChatView struct {
	ChatMessage
	Sender    UserRef  `json:"sender"`
	Recipient UserRef  `json:"recipient"`
	Food      *FoodRef `json:"food,omitempty"`
}
