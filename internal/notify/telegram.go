package notify

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

	"github.com/cenkalti/backoff/v5"
)

const defaultTelegramURL = "https://api.telegram.org"

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	APIURL     string
	BotToken   string
	ChatID     string
	Timeout    time.Duration // per attempt
	MaxTries   uint          // including the first attempt
	BaseDelay  time.Duration // first retry delay
	HTTPClient *http.Client
}

// Telegram posts messages through the Bot API sendMessage method using HTML
// parse mode.
type Telegram struct {
	cfg  TelegramConfig
	http *http.Client
}

// New returns a Telegram notifier, or Nop when the token or chat id is empty.
func New(cfg TelegramConfig) Notifier {
	if strings.TrimSpace(cfg.BotToken) == "" || strings.TrimSpace(cfg.ChatID) == "" {
		return Nop{}
	}
	return NewTelegram(cfg)
}

// NewTelegram returns a Telegram client with defaults applied.
func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultTelegramURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Telegram{cfg: cfg, http: hc}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Notify sends text, retrying rate limits, server errors and transport
// failures with exponential backoff. Other client errors are not retried.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.cfg.ChatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.BaseDelay
	b.MaxInterval = 10 * t.cfg.BaseDelay

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, t.send(ctx, body)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(t.cfg.MaxTries))
	if err != nil {
		sent.WithLabelValues("failed").Inc()
		return err
	}
	sent.WithLabelValues("ok").Inc()
	return nil
}

func (t *Telegram) send(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.APIURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var out apiResponse
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusOK && out.OK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if out.Parameters.RetryAfter > 0 {
			return backoff.RetryAfter(out.Parameters.RetryAfter)
		}
		return fmt.Errorf("telegram: rate limited")
	case resp.StatusCode >= 500:
		return fmt.Errorf("telegram: http %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("telegram: http %d: %s", resp.StatusCode, out.Description))
	}
}

// redactURLError strips the request URL, which embeds the bot token, from
// *url.Error values.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
