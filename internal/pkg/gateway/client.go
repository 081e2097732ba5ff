package gateway

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

	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/config"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/money"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 10 * time.Second

// Client talks to the payment gateway's collect request API.
type Client struct {
	BaseURL  string
	APIKey   string
	PGSecret string

	HTTPClient *http.Client
}

type CreateCollectRequestInput struct {
	SchoolID    string
	Amount      decimal.Decimal
	CallbackURL string
}

// CollectRequest is the gateway-side payment handle.
type CollectRequest struct {
	ID  string
	URL string
}

// StatusResponse is the normalized result of a status query. Status is the
// raw gateway status string; normalization happens during reconciliation.
type StatusResponse struct {
	Status            string
	Amount            *decimal.Decimal
	TransactionAmount *decimal.Decimal
	PaymentMode       string
	BankReference     string
	PaymentTime       *time.Time
	Details           json.RawMessage
	Raw               []byte
}

func NewClient(cfg config.GatewayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:   cfg.APIKey,
		PGSecret: cfg.PGSecret,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateCollectRequest registers a new payment with the gateway and returns
// the collect request id together with the hosted payment page URL.
func (c *Client) CreateCollectRequest(ctx context.Context, in CreateCollectRequestInput) (*CollectRequest, error) {
	schoolID := strings.TrimSpace(in.SchoolID)
	callbackURL := strings.TrimSpace(in.CallbackURL)
	if schoolID == "" || callbackURL == "" || !in.Amount.IsPositive() {
		return nil, apperror.New(apperror.KindValidation, "school_id, callback_url and a positive amount are required")
	}
	amount := in.Amount.StringFixed(2)

	sign, err := c.Sign(map[string]interface{}{
		"school_id":    schoolID,
		"amount":       amount,
		"callback_url": callbackURL,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to sign gateway request", err)
	}

	payload, err := json.Marshal(map[string]string{
		"school_id":    schoolID,
		"amount":       amount,
		"callback_url": callbackURL,
		"sign":         sign,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to encode gateway request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/create-collect-request", bytes.NewReader(payload))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to build gateway request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "create collect request")
	if err != nil {
		return nil, err
	}

	type rawResponse struct {
		CollectRequestID     string `json:"collect_request_id"`
		CollectRequestURL    string `json:"collect_request_url"`
		CollectRequestURLAlt string `json:"Collect_request_url"`
	}
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperror.Wrap(apperror.KindGateway, "gateway returned malformed create response", err)
	}

	out := &CollectRequest{
		ID:  strings.TrimSpace(raw.CollectRequestID),
		URL: strings.TrimSpace(raw.CollectRequestURL),
	}
	if out.URL == "" {
		out.URL = strings.TrimSpace(raw.CollectRequestURLAlt)
	}
	if out.ID == "" || out.URL == "" {
		return nil, apperror.New(apperror.KindGateway, "gateway response missing collect_request_id or collect_request_url")
	}
	return out, nil
}

// GetCollectRequestStatus fetches the current gateway status of a collect request.
func (c *Client) GetCollectRequestStatus(ctx context.Context, collectRequestID, schoolID string) (*StatusResponse, error) {
	id := strings.TrimSpace(collectRequestID)
	school := strings.TrimSpace(schoolID)
	if id == "" || school == "" {
		return nil, apperror.New(apperror.KindValidation, "collect_request_id and school_id are required")
	}

	sign, err := c.Sign(map[string]interface{}{
		"school_id":          school,
		"collect_request_id": id,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to sign gateway request", err)
	}

	u, err := url.Parse(c.BaseURL + "/collect-request/" + url.PathEscape(id))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "invalid gateway base url", err)
	}
	q := u.Query()
	q.Set("school_id", school)
	q.Set("sign", sign)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to build gateway request", err)
	}

	body, err := c.do(req, "collect request status")
	if err != nil {
		return nil, err
	}

	type rawResponse struct {
		Status            string          `json:"status"`
		Amount            interface{}     `json:"amount"`
		TransactionAmount interface{}     `json:"transaction_amount"`
		PaymentMode       string          `json:"payment_mode"`
		BankReference     string          `json:"bank_reference"`
		PaymentTime       string          `json:"payment_time"`
		Details           json.RawMessage `json:"details"`
	}
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperror.Wrap(apperror.KindGateway, "gateway returned malformed status response", err)
	}
	if strings.TrimSpace(raw.Status) == "" {
		return nil, apperror.New(apperror.KindGateway, "gateway status response missing status")
	}

	return &StatusResponse{
		Status:            strings.TrimSpace(raw.Status),
		Amount:            money.ParsePtr(raw.Amount),
		TransactionAmount: money.ParsePtr(raw.TransactionAmount),
		PaymentMode:       strings.TrimSpace(raw.PaymentMode),
		BankReference:     strings.TrimSpace(raw.BankReference),
		PaymentTime:       ParseTime(raw.PaymentTime),
		Details:           raw.Details,
		Raw:               body,
	}, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Warnf("[Gateway] %s failed: %v", op, err)
		return nil, apperror.Wrap(apperror.KindGatewayUnavailable, "payment gateway is unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindGatewayUnavailable, "failed to read gateway response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warnf("[Gateway] %s failed: status=%d body=%s", op, resp.StatusCode, string(body))
		return nil, apperror.Wrap(apperror.KindGateway, gatewayMessage(body, resp.StatusCode),
			fmt.Errorf("%s failed: status=%d", op, resp.StatusCode))
	}
	return body, nil
}

func gatewayMessage(body []byte, status int) string {
	var raw struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err == nil {
		if m := strings.TrimSpace(raw.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(raw.Error); m != "" {
			return m
		}
	}
	return fmt.Sprintf("payment gateway returned status %d", status)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// ParseTime parses the timestamp formats the gateway is known to send.
func ParseTime(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// IsUnavailable reports whether err means the gateway could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || apperror.Is(err, apperror.KindGatewayUnavailable)
}
