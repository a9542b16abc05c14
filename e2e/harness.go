// Package e2e provides end-to-end testing infrastructure for stockpulse.
// The harness wires the real vendor clients, advisor, app and router
// against a mock vendor server; PostgreSQL is used when E2E_DATABASE_URL is set.
package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"stockpulse/alerts"
	"stockpulse/config"
	"stockpulse/e2e/mocks"
	"stockpulse/internal/api"
	"stockpulse/internal/app"
	"stockpulse/repository"
	"stockpulse/services"

	"github.com/google/uuid"
)

// TestHarness provides the infrastructure for running E2E tests.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	stack      *Stack
	// userID scopes the test's watchlist, alerts and notes
	userID string
}

// NewTestHarness creates a new test harness. Call Setup before use.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

	return &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
		userID: "e2e-" + uuid.NewString()[:8],
	}
}

// Setup starts the mock vendors and wires the application against them.
func (h *TestHarness) Setup() error {
	h.mockServer = mocks.NewMockServer()

	// each harness gets closed breakers regardless of earlier scenarios
	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))

	stack, err := NewStack(h.ctx, MockConfig(h.mockServer), os.Getenv("E2E_DATABASE_URL"))
	if err != nil {
		return err
	}
	h.stack = stack
	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.stack != nil {
		if h.stack.Repo != nil {
			h.cleanupTestData()
		}
		h.stack.Close()
	}

	if h.cancel != nil {
		h.cancel()
	}

	if h.mockServer != nil {
		h.mockServer.Close()
	}
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock server for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// Repository returns the test database repository, nil without E2E_DATABASE_URL.
func (h *TestHarness) Repository() *repository.Repository {
	return h.stack.Repo
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.stack.App
}

// Router returns the HTTP router for making requests.
func (h *TestHarness) Router() http.Handler {
	return h.stack.Router
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.stack.Config
}

// NewMonitor returns an alert monitor, nil without a database.
func (h *TestHarness) NewMonitor() *alerts.Monitor {
	return h.stack.NewMonitor()
}

// UserID returns the user the harness sends requests as.
func (h *TestHarness) UserID() string {
	return h.userID
}

// DoRequest performs a JSON request as the harness user.
func (h *TestHarness) DoRequest(method, path string, body string) *httptest.ResponseRecorder {
	return h.do(method, path, body, false)
}

// DoHTMXRequest performs an HTMX request as the harness user.
func (h *TestHarness) DoHTMXRequest(method, path string, body string) *httptest.ResponseRecorder {
	return h.do(method, path, body, true)
}

func (h *TestHarness) do(method, path, body string, htmx bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(api.UserIDHeader, h.userID)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}

	w := httptest.NewRecorder()
	h.stack.Router.ServeHTTP(w, req)
	return w
}

// cleanupTestData removes rows the harness user created and cached reports
func (h *TestHarness) cleanupTestData() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo := h.stack.Repo

	if items, err := repo.GetWatchlist(ctx, h.userID); err == nil {
		for _, item := range items {
			_ = repo.RemoveFromWatchlist(ctx, h.userID, item.Symbol)
			_ = repo.InvalidateReport(ctx, item.Symbol)
		}
	}
	if list, err := repo.GetAlerts(ctx, h.userID); err == nil {
		for _, alert := range list {
			_ = repo.CancelAlert(ctx, h.userID, alert.ID)
		}
	}
	if notes, err := repo.GetNotes(ctx, h.userID, ""); err == nil {
		for _, note := range notes {
			_ = repo.DeleteNote(ctx, h.userID, note.ID)
		}
	}
	for _, symbol := range []string{"AAPL", "JNJ"} {
		if err := repo.InvalidateReport(ctx, symbol); err != nil {
			h.t.Logf("cache cleanup failed for %s: %v", symbol, err)
		}
	}
}

// SkipIfNoDatabase skips the test if the database is not available.
func SkipIfNoDatabase(t *testing.T) {
	t.Helper()

	dbURL := os.Getenv("E2E_DATABASE_URL")
	if dbURL == "" {
		t.Skip("E2E_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo, err := repository.NewRepository(ctx, dbURL)
	if err != nil {
		t.Skipf("E2E database not available: %v", err)
	}
	repo.Close()
}
