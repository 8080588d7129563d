// Package server wires the HTTP facade: router, middleware, session
// manager, and the background sweep that expires idle sessions.
package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/pdfpage/editkit/internal/session"
	"github.com/pdfpage/editkit/observability"
)

// Server carries the facade's shared state.
type Server struct {
	port     int
	Sessions *session.Manager
	Log      observability.Logger
}

// New builds the configured http.Server. PORT and SESSION_TTL_MINUTES
// come from the environment, with godotenv loading a .env file when
// present.
func New(log observability.Logger) *http.Server {
	if log == nil {
		log = observability.NopLogger{}
	}
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}
	ttl := session.DefaultTTL
	if mins, _ := strconv.Atoi(os.Getenv("SESSION_TTL_MINUTES")); mins > 0 {
		ttl = time.Duration(mins) * time.Minute
	}

	srv := &Server{
		port:     port,
		Sessions: session.NewManager(ttl, log),
		Log:      log,
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := srv.Sessions.Sweep(); n > 0 {
				log.Info("sessions swept", observability.Int("evicted", n))
			}
		}
	}()

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}
