package e2e

import (
	"context"
	"fmt"
	"net/http"

	"stockpulse/advisor"
	"stockpulse/alerts"
	"stockpulse/config"
	"stockpulse/e2e/mocks"
	"stockpulse/internal/api"
	"stockpulse/internal/app"
	"stockpulse/repository"
	"stockpulse/services"
)

// Stack is the application wired against a mock vendor server.
type Stack struct {
	Config   *config.Config
	Repo     *repository.Repository
	Market   *services.FailoverProvider
	Telegram *services.TelegramService
	App      *app.App
	Router   http.Handler
}

// MockConfig returns a config whose vendors all point at mock.
func MockConfig(mock *mocks.MockServer) *config.Config {
	cfg := config.NewTestConfig()

	cfg.AlphaVantage.APIKey = "e2e-key"
	cfg.AlphaVantage.BaseURL = mock.AlphaVantageURL()
	cfg.AlphaVantage.RequestsPerMinute = 0

	cfg.LLM.Provider = config.LLMProviderOpenAI
	cfg.OpenAI.APIKey = "e2e-key"
	cfg.OpenAI.BaseURL = mock.OpenAIURL()

	cfg.Telegram.BotToken = "e2e-token"
	cfg.Telegram.BaseURL = mock.URL()
	cfg.Telegram.DefaultChatID = "e2e-chat"

	return cfg
}

// NewStack wires the real vendor clients, advisor, app and router using cfg.
// An empty dbURL runs without PostgreSQL.
func NewStack(ctx context.Context, cfg *config.Config, dbURL string) (*Stack, error) {
	s := &Stack{Config: cfg}

	var store repository.Store
	var cache advisor.ReportCache
	if dbURL != "" {
		repo, err := repository.NewRepository(ctx, dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to test database: %w", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		s.Repo = repo
		store = repo
		cache = repo
	}

	s.Market = services.NewFailoverProvider(
		services.NewAlphaVantageService(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL).
			WithRateLimit(cfg.AlphaVantage.RequestsPerMinute),
	)

	llm, err := services.NewOpenAIService(cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	s.Telegram, err = services.NewTelegramService(cfg.Telegram)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	adv := advisor.New(s.Market, llm, cache, advisor.Options{
		Timeout:     cfg.AnalysisTimeout(),
		CacheTTL:    cfg.CacheTTL(),
		HistoryDays: cfg.Analysis.HistoryDays,
	})

	s.App = app.New(cfg, store, adv, s.Market, s.Telegram)
	s.Router = api.NewRouter(api.NewHandler(s.App, cfg), cfg)
	return s, nil
}

// NewMonitor returns an alert monitor wired like the server's, or nil
// without a database.
func (s *Stack) NewMonitor() *alerts.Monitor {
	if s.Repo == nil {
		return nil
	}
	return alerts.NewMonitor(s.Repo, s.Market, s.Telegram)
}

// Close releases the database pool
func (s *Stack) Close() {
	if s.App != nil {
		s.App.Shutdown()
		return
	}
	if s.Repo != nil {
		s.Repo.Close()
	}
}
