// Package webhook delivers warnings to a chat webhook that accepts {"content": "..."} JSON,
// such as a Discord channel webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spawn_warning_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

type payload struct {
	Content string `json:"content"`
}

type rateLimitBody struct {
	RetryAfter float64 `json:"retry_after"` // seconds
}

// Transport posts each warning to the webhook URL. Requests are throttled client-side so a
// burst of simultaneous warnings does not trip the remote rate limit in the first place.
type Transport struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *logrus.Entry
}

func New(url string, ratePerSec float64, timeout time.Duration, logger *logrus.Entry) *Transport {
	burst := int(math.Ceil(ratePerSec))
	if burst < 1 {
		burst = 1
	}
	return &Transport{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		logger:  logger.WithField("component", "webhook"),
	}
}

func (t *Transport) Send(ctx context.Context, msg notification.Message) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook throttle: %w", err)
	}

	body, err := json.Marshal(payload{Content: msg.Text})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		t.logger.WithError(readErr).WithField("status", resp.StatusCode).Debug("Failed to read webhook response body")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		t.logger.WithFields(logrus.Fields{"entity": msg.Key.Entity, "status": resp.StatusCode}).Debug("Webhook accepted warning")
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &notification.RateLimitError{
			RetryAfter: retryAfter(resp.Header.Get("Retry-After"), raw),
			Err:        fmt.Errorf("webhook returned %d", resp.StatusCode),
		}
	default:
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}

// retryAfter prefers the Retry-After header (seconds) and falls back to a JSON retry_after field.
func retryAfter(header string, body []byte) time.Duration {
	if header = strings.TrimSpace(header); header != "" {
		if secs, err := strconv.ParseFloat(header, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	var rl rateLimitBody
	if err := json.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	return 0
}
