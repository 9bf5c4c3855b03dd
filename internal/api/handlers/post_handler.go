package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/blog-admin/internal/services"
	"github.com/isdelr/blog-admin/internal/views"
	"github.com/rs/zerolog/log"
)

// PostHandler handles the admin pages for blog posts.
type PostHandler struct {
	service services.PostServiceProvider
	views   *views.Renderer
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service services.PostServiceProvider, renderer *views.Renderer) *PostHandler {
	return &PostHandler{service: service, views: renderer}
}

// Dashboard lists every post.
func (h *PostHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.GetAllPosts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve posts")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render(w, h.views, views.Dashboard, map[string]interface{}{
		"Locals": views.Locals{Title: "Dashboard", Description: description},
		"Posts":  posts,
	})
}

// NewForm renders an empty post form.
func (h *PostHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	render(w, h.views, views.AddPost, map[string]interface{}{
		"Locals": views.Locals{Title: "Add Post", Description: description},
	})
}

// Create stores a new post and redirects to the dashboard.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "title", "body")
	if err != nil {
		http.Error(w, "Invalid request body", bodyStatus(err))
		return
	}

	post, err := h.service.CreatePost(r.Context(), fields["title"], fields["body"])
	if err != nil {
		log.Error().Err(err).Msg("Failed to create post")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	log.Info().Str("post_id", post.ID).Msg("Post created")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// EditForm renders the edit form for an existing post.
func (h *PostHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, err := h.service.GetPostByID(r.Context(), id)
	if err != nil {
		h.fail(w, err, id, "Failed to get post by ID")
		return
	}

	render(w, h.views, views.EditPost, map[string]interface{}{
		"Locals": views.Locals{Title: "Edit Post", Description: description},
		"Post":   post,
	})
}

// Update changes title and body, then redirects back to the edit form.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields, err := readFields(w, r, "title", "body")
	if err != nil {
		http.Error(w, "Invalid request body", bodyStatus(err))
		return
	}

	if _, err := h.service.UpdatePost(r.Context(), id, fields["title"], fields["body"]); err != nil {
		h.fail(w, err, id, "Failed to update post")
		return
	}

	http.Redirect(w, r, "/edit-post/"+id, http.StatusSeeOther)
}

// Delete removes a post. Unknown IDs are treated as already deleted.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeletePost(r.Context(), id); err != nil {
		log.Error().Err(err).Str("post_id", id).Msg("Failed to delete post")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *PostHandler) fail(w http.ResponseWriter, err error, id, msg string) {
	if errors.Is(err, services.ErrNotFound) {
		log.Warn().Str("post_id", id).Msg("Post not found")
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	log.Error().Err(err).Str("post_id", id).Msg(msg)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
