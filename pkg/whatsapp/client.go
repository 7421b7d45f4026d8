/**
 * @description
 * This package provides a client for the TryOwBot WhatsApp messaging gateway.
 * It encapsulates building the templated farmer notification, normalizing the
 * destination number, and the retry/backoff policy for a flaky third-party
 * endpoint.
 *
 * Delivery is strictly best-effort: Send never returns an error. Every failure
 * mode is folded into a (delivered=false, detail) pair so callers can attach
 * the outcome to an already-committed claim without any error-path coupling.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, strings, time: Standard Go libraries.
 * - internal/domain: For the recommendation item model.
 */
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agrisafe/claims-service/internal/domain"
)

const (
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = 2 * time.Second

	templateName     = "agri_safe"
	templateLanguage = "en"
)

// Client is a client for the WhatsApp gateway.
type Client struct {
	BaseURL    string
	Token      string
	Enabled    bool
	MaxRetries int
	// RetryDelay is the base delay between attempts. Rate-limited attempts wait
	// twice this; timeouts grow it by 1.5x per attempt.
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// NewClient creates a new WhatsApp gateway client.
func NewClient(baseURL, token string, timeout time.Duration, maxRetries int, enabled bool) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		Enabled:    enabled,
		MaxRetries: maxRetries,
		RetryDelay: defaultRetryDelay,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// messagePayload is the gateway's templated-send request body. text1..text6 map
// to farmer name, medicine names, dosages, frequency, from-date and to-date.
type messagePayload struct {
	Token            string `json:"token"`
	Phone            string `json:"phone"`
	TemplateName     string `json:"template_name"`
	TemplateLanguage string `json:"template_language"`
	Text1            string `json:"text1"`
	Text2            string `json:"text2"`
	Text3            string `json:"text3"`
	Text4            string `json:"text4"`
	Text5            string `json:"text5"`
	Text6            string `json:"text6"`
}

// normalizePhone strips everything but digits, dropping a leading '+'.
func normalizePhone(mobile string) string {
	var b strings.Builder
	for _, r := range mobile {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatDosage(ml float64) string {
	return strconv.FormatFloat(ml, 'f', -1, 64) + "ml"
}

// buildPayload assembles the template fields from the claimed items. Medicine
// names and daily dosages are concatenated across items; the frequency is taken
// from the first item, on the assumption that items of one recommendation share
// a dosing cadence.
func (c *Client) buildPayload(farmerMobile, farmerName string, items []domain.RecommendationItem, startDate, endDate time.Time) messagePayload {
	names := make([]string, 0, len(items))
	dosages := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.AntibioticName)
		dosages = append(dosages, formatDosage(item.TotalDailyDosageMl()))
	}

	frequency := "1"
	if len(items) > 0 {
		frequency = strconv.Itoa(items[0].DailyFrequency)
	}

	return messagePayload{
		Token:            c.Token,
		Phone:            normalizePhone(farmerMobile),
		TemplateName:     templateName,
		TemplateLanguage: templateLanguage,
		Text1:            farmerName,
		Text2:            strings.Join(names, ", "),
		Text3:            strings.Join(dosages, ", "),
		Text4:            frequency,
		Text5:            startDate.Format("02/01/2006"),
		Text6:            endDate.Format("02/01/2006"),
	}
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleep waits for d unless the caller's context ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Send delivers the claimed-treatment summary to the farmer's WhatsApp number.
//
// Retry policy, per attempt:
//   - 2xx: delivered, stop.
//   - 429: wait RetryDelay*2 and retry; the base delay does not grow.
//   - timeout: wait RetryDelay, grow it by 1.5x, retry.
//   - connection failure: wait RetryDelay and retry without growth.
//   - any other non-2xx status: fail immediately, no retry.
//
// Exhausting MaxRetries reports the attempt count in the detail string.
func (c *Client) Send(ctx context.Context, farmerMobile, farmerName string, items []domain.RecommendationItem, startDate, endDate time.Time) (bool, string) {
	if !c.Enabled {
		return false, "WhatsApp messaging is disabled in configuration"
	}

	payload := c.buildPayload(farmerMobile, farmerName, items, startDate, endDate)
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("failed to encode message payload: %v", err)
	}

	retryDelay := c.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Sprintf("failed to build gateway request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return false, fmt.Sprintf("WhatsApp delivery abandoned: %v", ctx.Err())
			}
			if isTimeoutError(err) {
				if attempt == c.MaxRetries {
					return false, fmt.Sprintf("WhatsApp API timeout after %d attempts", c.MaxRetries)
				}
				if !sleep(ctx, retryDelay) {
					return false, fmt.Sprintf("WhatsApp delivery abandoned: %v", ctx.Err())
				}
				retryDelay = time.Duration(float64(retryDelay) * 1.5)
				continue
			}
			// Connection-level failure: flat delay, no backoff growth.
			if attempt == c.MaxRetries {
				return false, fmt.Sprintf("WhatsApp API connection failed after %d attempts", c.MaxRetries)
			}
			if !sleep(ctx, retryDelay) {
				return false, fmt.Sprintf("WhatsApp delivery abandoned: %v", ctx.Err())
			}
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return true, fmt.Sprintf("WhatsApp message sent successfully (attempt %d)", attempt)
		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt == c.MaxRetries {
				return false, fmt.Sprintf("WhatsApp API rate limited after %d attempts", c.MaxRetries)
			}
			if !sleep(ctx, retryDelay*2) {
				return false, fmt.Sprintf("WhatsApp delivery abandoned: %v", ctx.Err())
			}
		default:
			// Non-retryable gateway rejection.
			return false, fmt.Sprintf("Failed to send WhatsApp message: HTTP %d", resp.StatusCode)
		}
	}

	return false, fmt.Sprintf("WhatsApp delivery failed after %d attempts", c.MaxRetries)
}
