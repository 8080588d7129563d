// Command api serves the PDF editing REST API: upload a document into
// a session, organize and annotate its pages, download the result.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pdfpage/editkit/internal/server"
	"github.com/pdfpage/editkit/observability"
)

func gracefulShutdown(apiServer *http.Server, log *slog.Logger, done chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "err", err)
	}
	close(done)
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	apiServer := server.New(observability.NewSlogLogger(log))
	log.Info("starting server", "addr", apiServer.Addr)

	done := make(chan struct{})
	go gracefulShutdown(apiServer, log, done)

	if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("http server error", "err", err)
		os.Exit(1)
	}
	<-done
	log.Info("server exited")
}
