package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"swasthya/backend/internal/logger"
)

const (
	defaultTwilioAPIBase = "https://api.twilio.com"
	sendAttempts         = 3
)

var ErrNotConfigured = errors.New("messaging: twilio credentials missing")

type Outbound struct {
	From string
	To   string
	Body string
}

type Sender interface {
	Send(ctx context.Context, msg Outbound) error
}

// TwilioSender posts WhatsApp messages through Twilio's Messages REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	apiBase    string
	httpClient *http.Client
	backoff    func(attempt int) time.Duration
	log        *logger.Logger
}

var _ Sender = (*TwilioSender)(nil)

type TwilioOption func(*TwilioSender)

// WithAPIBase points the sender at another host; used by tests.
func WithAPIBase(base string) TwilioOption {
	return func(s *TwilioSender) { s.apiBase = strings.TrimRight(base, "/") }
}

func WithHTTPClient(client *http.Client) TwilioOption {
	return func(s *TwilioSender) { s.httpClient = client }
}

func WithBackoff(backoff func(attempt int) time.Duration) TwilioOption {
	return func(s *TwilioSender) { s.backoff = backoff }
}

// NewTwilioSender returns ErrNotConfigured when the account SID or auth token
// is blank. defaultFrom is the bot's own number and gets a "whatsapp:" prefix
// when it has none.
func NewTwilioSender(accountSID, authToken, defaultFrom string, log *logger.Logger, opts ...TwilioOption) (*TwilioSender, error) {
	accountSID = strings.TrimSpace(accountSID)
	authToken = strings.TrimSpace(authToken)
	if accountSID == "" || authToken == "" {
		return nil, ErrNotConfigured
	}
	s := &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       whatsappAddress(defaultFrom),
		apiBase:    defaultTwilioAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		backoff: func(int) time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
		log: logger.OrNop(log).With("component", "messaging.twilio"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func whatsappAddress(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// Send delivers one message, retrying network errors, 429 and 5xx responses.
func (s *TwilioSender) Send(ctx context.Context, msg Outbound) error {
	if msg.To == "" {
		return errors.New("messaging: to required")
	}
	if msg.From == "" {
		msg.From = s.from
	}
	if msg.From == "" {
		return errors.New("messaging: from required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("messaging: body required")
	}

	payload := url.Values{}
	payload.Set("To", msg.To)
	payload.Set("From", msg.From)
	payload.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiBase, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		retry, err := s.post(ctx, endpoint, payload)
		if err == nil {
			s.log.Info("whatsapp message sent", "to", msg.To, "attempt", attempt)
			return nil
		}
		lastErr = err
		if !retry || attempt == sendAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return oops.In("messaging").Wrap(ctx.Err())
		case <-time.After(s.backoff(attempt)):
		}
	}
	s.log.Warn("whatsapp send failed", "to", msg.To, "error", lastErr)
	return lastErr
}

func (s *TwilioSender) post(ctx context.Context, endpoint string, payload url.Values) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return false, oops.In("messaging").Wrapf(err, "build request")
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return true, oops.In("messaging").Wrapf(err, "twilio request")
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	err = oops.In("messaging").
		With("status", resp.StatusCode).
		Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, err
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
