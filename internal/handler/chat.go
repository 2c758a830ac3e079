package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/service"
)

type ChatHandler struct {
	chats  *service.ChatService
	logger *slog.Logger
}

func NewChatHandler(chats *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: logger}
}

type sendMessageRequest struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Content     string `json:"content" validate:"required"`
	FoodItemID  string `json:"foodItemId"`
}

type markReadResponse struct {
	Updated int64 `json:"updated"`
}

// HandleInbox: GET /chat
func (h *ChatHandler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(w, r)
	if !ok {
		return
	}
	views, err := h.chats.Inbox(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilChats(views))
}

// HandleThread: GET /chat/{userId}
func (h *ChatHandler) HandleThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(w, r)
	if !ok {
		return
	}
	views, err := h.chats.Thread(r.Context(), userID, chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilChats(views))
}

// HandleSend: POST /chat
func (h *ChatHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.chats.Send(r.Context(), userID, req.RecipientID, req.Content, req.FoodItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleMarkRead: POST /chat/{userId}/read
func (h *ChatHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(w, r)
	if !ok {
		return
	}
	n, err := h.chats.MarkRead(r.Context(), userID, chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markReadResponse{Updated: n})
}

func nonNilChats(v []model.ChatView) []model.ChatView {
	if v == nil {
		return []model.ChatView{}
	}
	return v
}
