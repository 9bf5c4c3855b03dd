package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/blog-admin/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for user registration.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "username", "password")
	if err != nil {
		writeMessage(w, bodyStatus(err), "Invalid request body")
		return
	}
	if fields["username"] == "" || fields["password"] == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.service.CreateUser(r.Context(), fields["username"], fields["password"], false)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateUser) {
			writeMessage(w, http.StatusConflict, "User already in use")
			return
		}
		if errors.Is(err, services.ErrPasswordTooLong) {
			writeMessage(w, http.StatusBadRequest, "Password is too long")
			return
		}
		log.Error().Err(err).Str("username", fields["username"]).Msg("Failed to register user")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User Created",
		"user":    user,
	})
}
