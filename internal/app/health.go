package app

import (
	"context"
	"time"

	"stockpulse/services"
)

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthReport is the payload of the health endpoint
type HealthReport struct {
	Status          string                          `json:"status"`
	Services        map[string]string               `json:"services"`
	CircuitBreakers []services.CircuitBreakerStatus `json:"circuit_breakers"`
	CheckedAt       time.Time                       `json:"checked_at"`
}

// Health reports dependency status. The database ping is cached for
// Analysis.HealthCacheTTLSeconds so frequent probes do not hit Postgres.
func (a *App) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status: HealthOK,
		Services: map[string]string{
			"database":      "not_configured",
			"llm":           "disabled",
			"notifications": "disabled",
		},
		CheckedAt: time.Now(),
	}

	if a.repo != nil {
		if err := a.health.Check(ctx, "database", a.repo.Health); err == nil {
			report.Services["database"] = "connected"
		} else {
			report.Services["database"] = "disconnected"
			report.Status = HealthDegraded
		}
	}

	if a.advisor != nil && a.advisor.HasLLM() {
		report.Services["llm"] = a.cfg.ResolvedLLMProvider()
	}
	if a.notifier != nil {
		report.Services["notifications"] = "telegram"
	}

	registry := services.GetGlobalRegistry()
	report.CircuitBreakers = registry.Status()
	if registry.AnyOpen() {
		report.Status = HealthDegraded
	}

	return report
}
