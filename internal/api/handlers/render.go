package handlers

import (
	"net/http"

	"github.com/isdelr/blog-admin/internal/views"
	"github.com/rs/zerolog/log"
)

const description = "Simple blog admin."

func render(w http.ResponseWriter, renderer *views.Renderer, page string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderer.Render(w, page, data); err != nil {
		log.Error().Err(err).Str("page", page).Msg("Failed to render page")
		w.Header().Del("Content-Type")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
