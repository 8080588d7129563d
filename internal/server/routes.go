package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pdfpage/editkit/internal/handlers"
)

// RegisterRoutes returns the router with every API endpoint mounted
// under /api.
func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	h := handlers.New(s.Sessions, s.Log)
	r.Get("/api/diagnostics", h.Diagnostics)
	r.Route("/api/sessions", func(api chi.Router) {
		api.Post("/", h.CreateSession)
		api.Post("/{sessionID}/document", h.UploadDocument)
		api.Get("/{sessionID}/pages", h.ListPages)
		api.Put("/{sessionID}/pages/order", h.ReorderPages)
		api.Post("/{sessionID}/pages/{index}/rotate", h.RotatePage)
		api.Post("/{sessionID}/pages/{index}/delete", h.ToggleDeletePage)
		api.Get("/{sessionID}/pages/{index}/elements", h.ListElements)
		api.Post("/{sessionID}/pages/{index}/elements", h.AddElement)
		api.Delete("/{sessionID}/elements/{elementID}", h.DeleteElement)
		api.Post("/{sessionID}/history/undo", h.Undo)
		api.Post("/{sessionID}/history/redo", h.Redo)
		api.Get("/{sessionID}/export", h.Export)
	})

	return r
}
