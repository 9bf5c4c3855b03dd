package handlers

import (
	"net/http"

	"github.com/isdelr/blog-admin/internal/auth"
	"github.com/isdelr/blog-admin/internal/services"
	"github.com/isdelr/blog-admin/internal/views"
	"github.com/isdelr/blog-admin/internal/websocket"
	"github.com/rs/zerolog/log"
)

// Notifier pushes events to connected admin clients.
type Notifier interface {
	Publish(action string, payload interface{})
}

// MessageHandler accepts contact form submissions and lists them for admins.
type MessageHandler struct {
	service  services.MessageServiceProvider
	views    *views.Renderer
	notifier Notifier
}

// NewMessageHandler creates a new MessageHandler. notifier may be nil.
func NewMessageHandler(service services.MessageServiceProvider, renderer *views.Renderer, notifier Notifier) *MessageHandler {
	return &MessageHandler{service: service, views: renderer, notifier: notifier}
}

// Submit stores a contact message and thanks the sender.
func (h *MessageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "name", "email", "message")
	if err != nil {
		writeText(w, bodyStatus(err), "Invalid request body")
		return
	}

	msg, err := h.service.CreateMessage(r.Context(), fields["name"], fields["email"], fields["message"])
	if err != nil {
		log.Error().Err(err).Msg("Error saving message")
		writeText(w, http.StatusInternalServerError, "Server error")
		return
	}

	log.Info().Str("message_id", msg.ID).Str("name", msg.Name).Str("email", msg.Email).Msg("Message received")
	if h.notifier != nil {
		h.notifier.Publish(websocket.ActionMessageCreated, msg)
	}
	writeText(w, http.StatusOK, "Thank you for your message!")
}

// List renders every message, most recent first.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.GetAllMessages(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error retrieving messages")
		writeText(w, http.StatusInternalServerError, "Server error")
		return
	}

	// The feed endpoint is gated, so only signed-in viewers get the script.
	_, signedIn := auth.ClaimsFromContext(r.Context())
	render(w, h.views, views.Messages, map[string]interface{}{
		"Locals":   views.Locals{Title: "Messages", Description: description},
		"Messages": messages,
		"LiveFeed": h.notifier != nil && signedIn,
	})
}
