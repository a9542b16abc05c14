package main

import (
	"context"
	"fmt"

	"stockpulse/config"
	"stockpulse/observability"
	"stockpulse/services"
)

// buildMarketData chains the configured vendors in priority order: Alpha
// Vantage covers every operation, FMP fills fundamentals gaps and quotes,
// Alpaca serves quotes and price history.
func buildMarketData(cfg *config.Config) *services.FailoverProvider {
	var providers []services.MarketDataProvider

	if cfg.HasAlphaVantage() {
		providers = append(providers, services.NewAlphaVantageService(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL).
			WithRateLimit(cfg.AlphaVantage.RequestsPerMinute))
	}
	if cfg.HasFMP() {
		providers = append(providers, services.NewFMPService(cfg.FMP.APIKey, cfg.FMP.BaseURL))
	}
	if cfg.HasAlpaca() {
		providers = append(providers, services.NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed))
	}

	return services.NewFailoverProvider(providers...)
}

// buildLLM returns the narrative provider, or nil when disabled
func buildLLM(ctx context.Context, cfg *config.Config) (services.LLMService, error) {
	switch provider := cfg.ResolvedLLMProvider(); provider {
	case config.LLMProviderOpenAI:
		svc, err := services.NewOpenAIService(cfg)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		observability.Info("professional analysis enabled", "provider", provider, "model", svc.Model())
		return svc, nil
	case config.LLMProviderBedrock:
		svc, err := services.NewBedrockService(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bedrock: %w", err)
		}
		observability.Info("professional analysis enabled", "provider", provider, "model", svc.Model())
		return svc, nil
	default:
		return nil, nil
	}
}
