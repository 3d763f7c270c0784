package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	telegramMaxMessageLen = 4096
	telegramAPI           = "https://api.telegram.org"
)

// errTelegramRetryable marks responses worth retrying (429 and 5xx).
var errTelegramRetryable = errors.New("telegram: retryable status")

// TelegramChannel sends messages through the Telegram Bot API.
type TelegramChannel struct {
	baseURL string
	client  *http.Client
	retries uint64
}

// TelegramOption configures a TelegramChannel.
type TelegramOption func(*TelegramChannel)

// WithTelegramAPI points the channel at a different Bot API host.
func WithTelegramAPI(apiURL string) TelegramOption {
	return func(t *TelegramChannel) { t.baseURL = strings.TrimRight(apiURL, "/") }
}

// WithTelegramRetries sets how often a throttled or failed send is retried.
func WithTelegramRetries(n uint64) TelegramOption {
	return func(t *TelegramChannel) { t.retries = n }
}

// NewTelegramChannel creates a Telegram channel adapter.
func NewTelegramChannel(token string, opts ...TelegramOption) (*TelegramChannel, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required (LEARN_TELEGRAM_BOT_TOKEN)")
	}
	t := &TelegramChannel{
		baseURL: telegramAPI,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		retries: 2,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.baseURL += "/bot" + token
	return t, nil
}

// SendMessage sends msg to the chat identified by recipient, split into
// parts that fit Telegram's length limit.
func (t *TelegramChannel) SendMessage(ctx context.Context, recipient string, msg Message) error {
	for _, part := range SplitMessage(msg.Text, telegramMaxMessageLen) {
		params := url.Values{
			"chat_id": {recipient},
			"text":    {part},
		}
		if msg.ParseMode != "" {
			params.Set("parse_mode", msg.ParseMode)
		}

		status, err := t.post(ctx, "/sendMessage", params)
		if err != nil {
			return fmt.Errorf("sending Telegram message: %w", err)
		}
		if status == http.StatusOK {
			continue
		}

		// If Markdown parsing fails, retry without parse mode.
		if msg.ParseMode != "" && status == http.StatusBadRequest {
			slog.Warn("Telegram markdown parse failed, retrying plain")
			params.Del("parse_mode")
			status, err = t.post(ctx, "/sendMessage", params)
			if err != nil {
				return fmt.Errorf("sending Telegram message (retry): %w", err)
			}
			if status != http.StatusOK {
				return fmt.Errorf("telegram API error %d on retry", status)
			}
			continue
		}
		return fmt.Errorf("telegram API error %d", status)
	}
	return nil
}

// post sends a form request, retrying 429 and 5xx responses with
// exponential backoff. Other statuses are returned to the caller.
func (t *TelegramChannel) post(ctx context.Context, method string, params url.Values) (int, error) {
	var status int
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+method, strings.NewReader(params.Encode()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		status = resp.StatusCode
		if status == http.StatusTooManyRequests || status >= 500 {
			return fmt.Errorf("%w: %d", errTelegramRetryable, status)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, t.retries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		slog.Warn("telegram send retrying", "method", method, "error", err, "wait", wait)
	})
	if errors.Is(err, errTelegramRetryable) {
		return status, nil
	}
	return status, err
}

// SplitMessage splits text into chunks that fit Telegram's max message length.
func SplitMessage(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		// Find last newline or space within limit
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > 0 {
			cutAt = idx + 1
		} else if idx := strings.LastIndex(text[:maxLen], " "); idx > 0 {
			cutAt = idx + 1
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}
