package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// LLM provider names accepted by LLM_PROVIDER
const (
	LLMProviderAuto    = "auto"
	LLMProviderBedrock = "bedrock"
	LLMProviderOpenAI  = "openai"
	LLMProviderNone    = "none"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig

	// Market data vendors
	AlphaVantage AlphaVantageConfig
	Alpaca       AlpacaConfig
	FMP          FMPConfig

	// LLM providers for the professional narrative
	AWS    AWSConfig
	OpenAI OpenAIConfig
	LLM    LLMConfig

	Telegram TelegramConfig

	Analysis AnalysisConfig
	Alerts   AlertsConfig
	HTTP     HTTPConfig
	Log      LogConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
	// RequestsPerMinute throttles outbound calls; the free tier allows 5
	RequestsPerMinute int
}

// AlpacaConfig holds Alpaca market data configuration
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	DataURL   string
	Feed      string // iex or sip
}

// FMPConfig holds Financial Modeling Prep API configuration
type FMPConfig struct {
	APIKey  string
	BaseURL string
}

// AWSConfig holds AWS Bedrock configuration
type AWSConfig struct {
	Region           string
	BedrockModelID   string
	BedrockMaxTokens int
	AnthropicVersion string
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint for compatible gateways; empty uses the SDK default
	BaseURL   string
	Model     string
	MaxTokens int
}

// LLMConfig selects the narrative provider
type LLMConfig struct {
	Provider       string
	TimeoutSeconds int
}

// TelegramConfig holds Telegram bot configuration for alert delivery
type TelegramConfig struct {
	BotToken      string
	BaseURL       string
	DefaultChatID string
}

// AnalysisConfig holds analysis pipeline configuration
type AnalysisConfig struct {
	TimeoutSeconds        int
	ConcurrencyLimit      int
	HistoryDays           int
	CacheTTLSeconds       int
	HealthCacheTTLSeconds int
}

// AlertsConfig holds price alert monitor configuration
type AlertsConfig struct {
	Enabled  bool
	Schedule string // robfig/cron spec, e.g. "@every 5m" or "*/5 9-16 * * 1-5"
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr                   string
	CORSAllowedOrigins     string
	ShutdownTimeoutSeconds int
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level      string
	Production bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:  os.Getenv("ALPHA_VANTAGE_API_KEY"),
			BaseURL: getEnvString("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co/query"),

			RequestsPerMinute: getEnvInt("ALPHA_VANTAGE_REQUESTS_PER_MINUTE", 5),
		},
		Alpaca: AlpacaConfig{
			APIKey:    os.Getenv("ALPACA_API_KEY"),
			APISecret: os.Getenv("ALPACA_API_SECRET"),
			DataURL:   getEnvString("ALPACA_DATA_URL", "https://data.alpaca.markets"),
			Feed:      getEnvString("ALPACA_FEED", "iex"),
		},
		FMP: FMPConfig{
			APIKey:  os.Getenv("FMP_API_KEY"),
			BaseURL: getEnvString("FMP_BASE_URL", "https://financialmodelingprep.com/api/v3"),
		},
		AWS: AWSConfig{
			Region:           getEnvString("AWS_REGION", "us-east-1"),
			BedrockModelID:   getEnvString("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
			BedrockMaxTokens: getEnvInt("BEDROCK_MAX_TOKENS", 2048),
			AnthropicVersion: getEnvString("BEDROCK_ANTHROPIC_VERSION", "bedrock-2023-05-31"),
		},
		OpenAI: OpenAIConfig{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			BaseURL:   os.Getenv("OPENAI_BASE_URL"),
			Model:     getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 2048),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnvString("LLM_PROVIDER", LLMProviderAuto)),
			TimeoutSeconds: getEnvInt("LLM_TIMEOUT_SECONDS", 45),
		},
		Telegram: TelegramConfig{
			BotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
			BaseURL:       getEnvString("TELEGRAM_API_URL", "https://api.telegram.org"),
			DefaultChatID: os.Getenv("TELEGRAM_DEFAULT_CHAT_ID"),
		},
		Analysis: AnalysisConfig{
			TimeoutSeconds:        getEnvInt("ANALYSIS_TIMEOUT_SECONDS", 30),
			ConcurrencyLimit:      getEnvInt("ANALYSIS_CONCURRENCY_LIMIT", 3),
			HistoryDays:           getEnvInt("ANALYSIS_HISTORY_DAYS", 120),
			CacheTTLSeconds:       getEnvInt("ANALYSIS_CACHE_TTL_SECONDS", 900),
			HealthCacheTTLSeconds: getEnvInt("HEALTH_CACHE_TTL_SECONDS", 30),
		},
		Alerts: AlertsConfig{
			Enabled:  getEnvBool("ALERTS_ENABLED", true),
			Schedule: getEnvString("ALERTS_SCHEDULE", "@every 5m"),
		},
		HTTP: HTTPConfig{
			Addr:                   getEnvString("HTTP_ADDR", ":8080"),
			CORSAllowedOrigins:     getEnvString("CORS_ALLOWED_ORIGINS", "*"),
			ShutdownTimeoutSeconds: getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 15),
		},
		Log: LogConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Production: getEnvBool("LOG_JSON", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case LLMProviderAuto, LLMProviderBedrock, LLMProviderOpenAI, LLMProviderNone:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of auto, bedrock, openai, none; got %q", c.LLM.Provider)
	}
	if c.LLM.Provider == LLMProviderOpenAI && !c.HasOpenAI() {
		return fmt.Errorf("LLM_PROVIDER=openai requires OPENAI_API_KEY")
	}

	if c.Analysis.TimeoutSeconds <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT_SECONDS must be positive, got %d", c.Analysis.TimeoutSeconds)
	}
	if c.Analysis.ConcurrencyLimit <= 0 {
		return fmt.Errorf("ANALYSIS_CONCURRENCY_LIMIT must be positive, got %d", c.Analysis.ConcurrencyLimit)
	}
	// Volatility and support/resistance need at least 60 trading days
	if c.Analysis.HistoryDays < 90 {
		return fmt.Errorf("ANALYSIS_HISTORY_DAYS must be at least 90, got %d", c.Analysis.HistoryDays)
	}

	if c.Alerts.Enabled {
		if _, err := cron.ParseStandard(c.Alerts.Schedule); err != nil {
			return fmt.Errorf("invalid ALERTS_SCHEDULE %q: %w", c.Alerts.Schedule, err)
		}
	}

	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasFMP returns true if Financial Modeling Prep configuration is available
func (c *Config) HasFMP() bool {
	return c.FMP.APIKey != ""
}

// HasOpenAI returns true if OpenAI configuration is available
func (c *Config) HasOpenAI() bool {
	return c.OpenAI.APIKey != ""
}

// HasTelegram returns true if alert notifications can be delivered
func (c *Config) HasTelegram() bool {
	return c.Telegram.BotToken != ""
}

// HasMarketData returns true if at least one market data vendor is configured
func (c *Config) HasMarketData() bool {
	return c.HasAlphaVantage() || c.HasAlpaca() || c.HasFMP()
}

// ResolvedLLMProvider turns "auto" into a concrete provider: OpenAI when a key
// is set, otherwise none. Bedrock is only used when selected explicitly since
// its credentials come from the ambient AWS chain.
func (c *Config) ResolvedLLMProvider() string {
	if c.LLM.Provider != LLMProviderAuto {
		return c.LLM.Provider
	}
	if c.HasOpenAI() {
		return LLMProviderOpenAI
	}
	return LLMProviderNone
}

func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Analysis.CacheTTLSeconds) * time.Second
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		AlphaVantage: AlphaVantageConfig{
			BaseURL:           "https://www.alphavantage.co/query",
			RequestsPerMinute: 5,
		},
		Alpaca: AlpacaConfig{
			DataURL: "https://data.alpaca.markets",
			Feed:    "iex",
		},
		FMP: FMPConfig{
			BaseURL: "https://financialmodelingprep.com/api/v3",
		},
		AWS: AWSConfig{
			Region:           "us-east-1",
			BedrockModelID:   "anthropic.claude-3-5-sonnet-20241022-v2:0",
			BedrockMaxTokens: 2048,
			AnthropicVersion: "bedrock-2023-05-31",
		},
		OpenAI: OpenAIConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 2048,
		},
		LLM: LLMConfig{
			Provider:       LLMProviderNone,
			TimeoutSeconds: 45,
		},
		Telegram: TelegramConfig{
			BaseURL: "https://api.telegram.org",
		},
		Analysis: AnalysisConfig{
			TimeoutSeconds:        30,
			ConcurrencyLimit:      3,
			HistoryDays:           120,
			CacheTTLSeconds:       900,
			HealthCacheTTLSeconds: 30,
		},
		Alerts: AlertsConfig{
			Enabled:  false,
			Schedule: "@every 5m",
		},
		HTTP: HTTPConfig{
			Addr:                   ":8080",
			CORSAllowedOrigins:     "*",
			ShutdownTimeoutSeconds: 15,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
