package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"faceid/internal/config"
	"faceid/internal/web/handlers"
	"faceid/internal/web/middleware"
)

func (s *Server) setupRoutes(cfg *config.Config, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Sessions, deps.Log)
	personsHandler := handlers.NewPersonsHandler(deps.People, cfg.Upload.MaxSizeBytes, deps.Log)
	identifyHandler := handlers.NewIdentifyHandler(deps.Identifier, deps.Files, cfg.Upload.MaxSizeBytes, deps.Log)
	statsHandler := handlers.NewStatsHandler(deps.Stats, cfg.Recognition.Threshold)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// All other routes require authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.Sessions))

			// Persons
			r.Get("/persons", personsHandler.List)
			r.Post("/persons", personsHandler.Create)
			r.Get("/persons/{id}", personsHandler.Get)
			r.Put("/persons/{id}", personsHandler.Update)
			r.Delete("/persons/{id}", personsHandler.Delete)
			r.Get("/persons/{id}/stats", personsHandler.Stats)
			r.Post("/persons/{id}/photos", personsHandler.UploadPhoto)

			// Photos: soft delete keeps the row, permanent removes it
			r.Delete("/photos/{id}", personsHandler.DeactivatePhoto)
			r.Delete("/photos/{id}/permanent", personsHandler.DeletePhoto)

			// Identification
			r.Post("/identify", identifyHandler.Identify)

			// Stats
			r.Get("/stats", statsHandler.System)

			// Admin
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin())

				r.Get("/admin/users", authHandler.ListUsers)
				r.Post("/admin/users/{id}/approve", authHandler.ApproveUser)
				r.Delete("/admin/users/{id}", authHandler.DeleteUser)
			})
		})
	})

	// Stored images, behind authentication
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Sessions))
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.Files.Root()))))
	})
}
