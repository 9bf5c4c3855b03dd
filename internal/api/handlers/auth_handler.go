package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/blog-admin/internal/auth"
	"github.com/isdelr/blog-admin/internal/services"
	"github.com/isdelr/blog-admin/internal/views"
	"github.com/rs/zerolog/log"
)

// AuthHandler serves the login page and handles sign in and sign out.
type AuthHandler struct {
	service services.UserServiceProvider
	tokens  *auth.Manager
	views   *views.Renderer
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.UserServiceProvider, tokens *auth.Manager, renderer *views.Renderer) *AuthHandler {
	return &AuthHandler{service: service, tokens: tokens, views: renderer}
}

// LoginPage renders the login form.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.views, views.Login, map[string]interface{}{
		"Locals": views.Locals{Title: "Admin", Description: description},
	})
}

// Login verifies credentials, sets the session cookie and redirects to the dashboard.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "username", "password")
	if err != nil {
		writeMessage(w, bodyStatus(err), "Invalid request body")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), fields["username"], fields["password"])
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			log.Warn().Str("username", fields["username"]).Msg("Failed authentication attempt")
			writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Error().Err(err).Msg("Failed to look up user")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := h.tokens.GenerateJWT(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.tokens.SetCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout clears the session cookie. Issued tokens stay valid server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.tokens.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
