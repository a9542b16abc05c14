package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appconfig "stockpulse/config"
	"stockpulse/observability"
)

// telegramMessageLimit is the Bot API cap on sendMessage text length
const telegramMessageLimit = 4096

// ErrNoChatID is returned when neither the caller nor the config names a chat
var ErrNoChatID = errors.New("no telegram chat id")

// TelegramService delivers alert and report messages through the Telegram Bot API
type TelegramService struct {
	token         string
	baseURL       string
	defaultChatID string
	httpClient    *http.Client
	retry         RetryConfig
}

type telegramSendRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// NewTelegramService creates a TelegramService from the bot settings
func NewTelegramService(cfg appconfig.TelegramConfig) (*TelegramService, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramService{
		token:         cfg.BotToken,
		baseURL:       baseURL,
		defaultChatID: cfg.DefaultChatID,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		retry:         DefaultRetryConfig,
	}, nil
}

// Send posts text to chatID, or to the configured default chat when chatID is empty.
// Text longer than the Bot API limit is truncated.
func (s *TelegramService) Send(ctx context.Context, chatID, text string) error {
	if chatID == "" {
		chatID = s.defaultChatID
	}
	if chatID == "" {
		return ErrNoChatID
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerTelegram, "send")
	timer := metrics.NewTimer()

	body, err := json.Marshal(telegramSendRequest{
		ChatID:                chatID,
		Text:                  truncateMessage(text, telegramMessageLimit),
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	_, err = WithCircuitBreaker(ctx, BreakerTelegram, func() (struct{}, error) {
		return struct{}{}, WithRetry(ctx, s.retry, func() error {
			return s.post(ctx, "sendMessage", body)
		})
	})

	timer.ObserveExternalAPI(BreakerTelegram, "send")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerTelegram, "send", categorizeAPIError(err))
		metrics.RecordNotification("telegram", "failed")
		return err
	}
	metrics.RecordNotification("telegram", "sent")
	return nil
}

func (s *TelegramService) post(ctx context.Context, method string, body []byte) error {
	reqURL := fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("failed to create telegram request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// the URL embeds the bot token; keep it out of logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: connection error: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read telegram response: %w", err)
	}

	var result telegramResponse
	if err := json.Unmarshal(raw, &result); err != nil && resp.StatusCode == http.StatusOK {
		return Permanent(fmt.Errorf("failed to decode telegram response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK && result.OK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := time.Duration(result.Parameters.RetryAfter) * time.Second
		if wait <= 0 {
			wait = retryAfterHeader(resp.Header)
		}
		return RetryAfter(fmt.Errorf("telegram %s: rate limit, retry after %ds", method, result.Parameters.RetryAfter), wait)
	case resp.StatusCode >= 500:
		return fmt.Errorf("telegram %s: status %d", method, resp.StatusCode)
	default:
		return Permanent(fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, result.Description))
	}
}

// truncateMessage cuts text to at most limit runes, marking the cut with an ellipsis
func truncateMessage(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
