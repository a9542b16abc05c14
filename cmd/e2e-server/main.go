// Package main runs the full server against mock vendors, for browser tests
// and manual runs without API keys.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockpulse/e2e"
	"stockpulse/e2e/mocks"
	"stockpulse/observability"
)

func main() {
	// Initialize logger in development mode for tests
	observability.InitLogger(false)
	observability.InitMetrics()

	port := os.Getenv("E2E_SERVER_PORT")
	if port == "" {
		port = "9090"
	}
	mockAddr := os.Getenv("E2E_MOCK_ADDR")
	if mockAddr == "" {
		mockAddr = "127.0.0.1:9091"
	}

	mock, err := mocks.NewMockServerOn(mockAddr)
	if err != nil {
		observability.Fatal("failed to start mock vendors", "error", err)
	}
	defer mock.Close()
	observability.Info("mock vendors listening", "url", mock.URL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// E2E_DATABASE_URL is optional; without it user data routes answer 503
	stack, err := e2e.NewStack(ctx, e2e.MockConfig(mock), os.Getenv("E2E_DATABASE_URL"))
	if err != nil {
		observability.Fatal("failed to wire application", "error", err)
	}
	defer stack.Close()

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      stack.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		observability.Info("starting E2E test server", "port", port, "database", stack.Repo != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	observability.Info("shutting down E2E test server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}
	observability.Info("E2E test server stopped")
}
