// Command server runs the StockPulse HTTP dashboard and the price alert monitor.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockpulse/advisor"
	"stockpulse/alerts"
	"stockpulse/config"
	"stockpulse/internal/api"
	"stockpulse/internal/app"
	"stockpulse/observability"
	"stockpulse/repository"
	"stockpulse/services"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLoggerWithLevel(cfg.Log.Production, observability.ParseLevel(cfg.Log.Level))
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		observability.Fatal("server exited with error", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if !cfg.HasMarketData() {
		return errors.New("no market data provider configured: set ALPHA_VANTAGE_API_KEY, FMP_API_KEY or ALPACA_API_KEY/ALPACA_API_SECRET")
	}

	// Database is optional; without it the dashboard still analyzes symbols
	var store repository.Store
	var cache advisor.ReportCache
	if cfg.HasDatabase() {
		repo, err := openRepository(ctx, cfg)
		if err != nil {
			observability.Warn("running without database, watchlists, alerts and notes are unavailable", "error", err)
		} else {
			store, cache = repo, repo
		}
	} else {
		observability.Warn("DATABASE_URL not set, watchlists, alerts and notes are unavailable")
	}

	market := buildMarketData(cfg)
	observability.Info("market data providers configured", "providers", market.Providers())

	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		observability.Warn("professional analysis disabled", "error", err)
		llm = nil
	}

	var notifier services.Notifier
	if cfg.HasTelegram() {
		telegram, err := services.NewTelegramService(cfg.Telegram)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		notifier = telegram
	}

	adv := advisor.New(market, llm, cache, advisor.Options{
		Timeout:     cfg.AnalysisTimeout(),
		CacheTTL:    cfg.CacheTTL(),
		HistoryDays: cfg.Analysis.HistoryDays,
	})
	application := app.New(cfg, store, adv, market, notifier)
	defer application.Shutdown()

	var monitor *alerts.Monitor
	var maintenance *cron.Cron
	if store != nil {
		if cfg.Alerts.Enabled {
			monitor = alerts.NewMonitor(store, market, notifier)
			if err := monitor.Start(cfg.Alerts.Schedule); err != nil {
				return err
			}
		}
		maintenance = scheduleCacheCleanup(store)
	}

	handler := api.NewHandler(application, cfg)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.AnalysisTimeout() + cfg.LLMTimeout() + 10*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		observability.Info("starting HTTP server",
			"addr", cfg.HTTP.Addr,
			"llm", cfg.ResolvedLLMProvider(),
			"alerts", monitor != nil,
			"telegram", notifier != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	observability.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if monitor != nil {
		monitor.Stop(shutdownCtx)
	}
	if maintenance != nil {
		<-maintenance.Stop().Done()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	observability.Info("server stopped")
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (*repository.Repository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	repo, err := repository.NewRepository(connectCtx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(connectCtx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	observability.Info("connected to database")
	return repo, nil
}

// scheduleCacheCleanup drops expired analysis reports once an hour
func scheduleCacheCleanup(store repository.Store) *cron.Cron {
	c := cron.New()
	_, _ = c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		removed, err := store.CleanExpiredCache(ctx)
		if err != nil {
			observability.Warn("failed to clean report cache", "error", err)
			return
		}
		if removed > 0 {
			observability.Debug("report cache cleaned", "removed", removed)
		}
	})
	c.Start()
	return c
}
