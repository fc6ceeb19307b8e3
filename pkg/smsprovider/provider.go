package smsprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/httpclient"
)

type Provider interface {
	// Send submits one message. It never returns a Go error: every result,
	// including network failure, is normalized into an Outcome.
	Send(ctx context.Context, to string, text string) Outcome

	// DeliveryStatus asks the provider for the asynchronous delivery
	// confirmation of a previously submitted message.
	DeliveryStatus(ctx context.Context, providerMsgID string) (string, error)
}

type Config struct {
	URL       string        `mapstructure:"url"`
	StatusURL string        `mapstructure:"status_url"`
	APIKey    string        `mapstructure:"api_key"`
	Sandbox   bool          `mapstructure:"sandbox"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SMSProvider struct {
	cfg    Config
	client httpclient.HTTPClient
}

func NewSMSProvider(cfg Config, client httpclient.HTTPClient) Provider {
	return &SMSProvider{cfg: cfg, client: client}
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Test    bool   `json:"test"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	ErrorCode string `json:"error_code"`
	Error     string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Provider-level error codes carried in a 4xx body.
const (
	errCodeInvalidNumber      = "INVALID_NUMBER"
	errCodeInsufficientCredit = "INSUFFICIENT_CREDIT"
)

func (s *SMSProvider) Send(ctx context.Context, to string, text string) Outcome {
	body, err := json.Marshal(sendRequest{To: to, Message: text, Test: s.cfg.Sandbox})
	if err != nil {
		return Outcome{Kind: OutcomePermanent, Reason: "marshal request: " + err.Error()}
	}

	resp, err := s.client.Post(ctx, s.cfg.URL, s.headers(), body)
	if err != nil {
		// Network errors and timeouts count as "upstream unavailable",
		// not as permanent failures.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Outcome{Kind: OutcomeRetriable, HTTPStatus: 0, Reason: "timeout"}
		}
		return Outcome{Kind: OutcomeRetriable, HTTPStatus: 0, Reason: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var res sendResponse
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return Outcome{Kind: OutcomeRetriable, HTTPStatus: 0, Reason: "malformed provider response"}
		}
		return Outcome{Kind: OutcomeDelivered, ProviderMsgID: res.MessageID}

	case resp.StatusCode == http.StatusPaymentRequired:
		return Outcome{Kind: OutcomeBalanceExhausted}

	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusInternalServerError,
		resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return Outcome{Kind: OutcomeRetriable, HTTPStatus: resp.StatusCode}

	case resp.StatusCode == http.StatusBadRequest:
		var res sendResponse
		_ = json.NewDecoder(resp.Body).Decode(&res)
		switch res.ErrorCode {
		case errCodeInsufficientCredit:
			return Outcome{Kind: OutcomeBalanceExhausted}
		case errCodeInvalidNumber:
			return Outcome{Kind: OutcomePermanent, Reason: "invalid destination number"}
		default:
			return Outcome{Kind: OutcomePermanent, Reason: "provider rejected request: " + res.Error}
		}

	default:
		return Outcome{Kind: OutcomePermanent, Reason: fmt.Sprintf("unexpected provider status %d", resp.StatusCode)}
	}
}

func (s *SMSProvider) DeliveryStatus(ctx context.Context, providerMsgID string) (string, error) {
	url := fmt.Sprintf("%s?id=%s", s.cfg.StatusURL, providerMsgID)

	resp, err := s.client.Get(ctx, url, s.headers())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status lookup returned HTTP %d", resp.StatusCode)
	}

	var res statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}

	return res.Status, nil
}

func (s *SMSProvider) headers() map[string]string {
	if s.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + s.cfg.APIKey}
}
