package payment

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/gateway"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/money"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/reconcile"
)

// webhookOrderInfo is the nested envelope some gateway deliveries use.
type webhookOrderInfo struct {
	OrderID           string          `json:"order_id"`
	OrderAmount       interface{}     `json:"order_amount"`
	TransactionAmount interface{}     `json:"transaction_amount"`
	Gateway           string          `json:"gateway"`
	BankReference     string          `json:"bank_reference"`
	Status            string          `json:"status"`
	PaymentMode       string          `json:"payment_mode"`
	PaymentDetails    json.RawMessage `json:"payment_details"`
	PaymentDetailsAlt json.RawMessage `json:"payemnt_details"`
	PaymentMessage    string          `json:"payment_message"`
	PaymentMessageAlt string          `json:"Payment_message"`
	PaymentTime       string          `json:"payment_time"`
	ErrorMessage      string          `json:"error_message"`
}

type webhookPayload struct {
	Status            interface{}       `json:"status"`
	Amount            interface{}       `json:"amount"`
	TransactionAmount interface{}       `json:"transaction_amount"`
	Details           json.RawMessage   `json:"details"`
	CustomOrderID     string            `json:"custom_order_id"`
	CollectRequestID  string            `json:"collect_request_id"`
	SchoolID          string            `json:"school_id"`
	PaymentMode       string            `json:"payment_mode"`
	BankReference     string            `json:"bank_reference"`
	PaymentTime       string            `json:"payment_time"`
	OrderInfo         *webhookOrderInfo `json:"order_info"`
}

// ParseWebhook turns a webhook body into a notification. Both the flat shape
// and the nested order_info envelope are accepted. Amounts may be numbers or
// numeric strings.
func ParseWebhook(body []byte) (reconcile.Notification, error) {
	var p webhookPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return reconcile.Notification{}, apperror.Wrap(apperror.KindValidation, "webhook body is not valid JSON", err)
	}

	n := reconcile.Notification{
		Source:            models.WebhookSourceWebhook,
		CollectRequestID:  strings.TrimSpace(p.CollectRequestID),
		CustomOrderID:     strings.TrimSpace(p.CustomOrderID),
		SchoolID:          strings.TrimSpace(p.SchoolID),
		Status:            statusText(p.Status),
		Amount:            money.ParsePtr(p.Amount),
		TransactionAmount: money.ParsePtr(p.TransactionAmount),
		PaymentMode:       strings.TrimSpace(p.PaymentMode),
		PaymentDetails:    detailsText(p.Details),
		BankReference:     strings.TrimSpace(p.BankReference),
		PaymentTime:       gateway.ParseTime(p.PaymentTime),
		RawPayload:        body,
	}

	if info := p.OrderInfo; info != nil {
		if n.CollectRequestID == "" {
			// order_id is "<collect_request_id>/<transaction id>"
			id, _, _ := strings.Cut(strings.TrimSpace(info.OrderID), "/")
			n.CollectRequestID = id
		}
		n.Status = strings.TrimSpace(info.Status)
		if a := money.ParsePtr(info.OrderAmount); a != nil {
			n.Amount = a
		}
		if a := money.ParsePtr(info.TransactionAmount); a != nil {
			n.TransactionAmount = a
		}
		n.PaymentMode = firstNonEmpty(info.PaymentMode, n.PaymentMode)
		n.BankReference = firstNonEmpty(info.BankReference, n.BankReference)
		n.PaymentDetails = firstNonEmpty(detailsText(info.PaymentDetails), detailsText(info.PaymentDetailsAlt), n.PaymentDetails)
		n.PaymentMessage = firstNonEmpty(info.PaymentMessage, info.PaymentMessageAlt)
		n.ErrorMessage = strings.TrimSpace(info.ErrorMessage)
		if t := gateway.ParseTime(info.PaymentTime); t != nil {
			n.PaymentTime = t
		}
	}

	if n.CollectRequestID == "" && (n.CustomOrderID == "" || strings.EqualFold(n.CustomOrderID, reconcile.CustomOrderIDSentinel)) {
		return n, apperror.New(apperror.KindValidation, "webhook carries neither collect_request_id nor custom_order_id")
	}
	return n, nil
}

// statusText ignores the numeric HTTP-style status of the nested envelope.
func statusText(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// detailsText stores gateway details as text: JSON strings are unquoted,
// objects are kept verbatim.
func detailsText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(trimmed)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
