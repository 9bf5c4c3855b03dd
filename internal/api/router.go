package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/blog-admin/internal/api/handlers"
	"github.com/isdelr/blog-admin/internal/auth"
	"github.com/isdelr/blog-admin/internal/config"
	"github.com/isdelr/blog-admin/internal/services"
	"github.com/isdelr/blog-admin/internal/views"
	"github.com/isdelr/blog-admin/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(
	cfg *config.Config,
	logger zerolog.Logger,
	tokens *auth.Manager,
	renderer *views.Renderer,
	hub *websocket.Hub,
	userService services.UserServiceProvider,
	postService services.PostServiceProvider,
	messageService services.MessageServiceProvider,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	r.Use(MethodOverride("/delete-post/"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, tokens, renderer)
	userHandler := handlers.NewUserHandler(userService)
	postHandler := handlers.NewPostHandler(postService, renderer)
	messageHandler := handlers.NewMessageHandler(messageService, renderer, hub)
	wsHandler := handlers.NewWebSocketHandler(hub, cfg.CORSAllowedOrigins)

	// Public routes
	r.Get("/admin", authHandler.LoginPage)
	r.Post("/admin", authHandler.Login)
	r.Get("/logout", authHandler.Logout)
	r.Post("/register", userHandler.Register)
	r.Post("/contact", messageHandler.Submit)
	if cfg.PublicMessageList {
		r.With(tokens.Identify).Get("/admin/messages", messageHandler.List)
	}

	// Routes behind the auth gate
	r.Group(func(r chi.Router) {
		r.Use(tokens.Middleware)

		r.Get("/dashboard", postHandler.Dashboard)
		r.Get("/add-post", postHandler.NewForm)
		r.Post("/add-post", postHandler.Create)
		r.Get("/edit-post/{id}", postHandler.EditForm)
		r.Post("/edit-post/{id}", postHandler.Update)
		r.Delete("/delete-post/{id}", postHandler.Delete)

		if !cfg.PublicMessageList {
			r.Get("/admin/messages", messageHandler.List)
		}
		r.Get("/admin/messages/ws", wsHandler.Serve)
	})

	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("req_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
