package payment

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// StudentInfo identifies the payer.
type StudentInfo struct {
	Name  string `json:"name" validate:"required,max=191"`
	ID    string `json:"id" validate:"required,max=64"`
	Email string `json:"email" validate:"required,email,max=191"`
}

// CreatePaymentInput is the request to start a new payment.
type CreatePaymentInput struct {
	SchoolID      string          `json:"school_id" validate:"required,max=64"`
	TrusteeID     string          `json:"trustee_id" validate:"max=64"`
	Amount        decimal.Decimal `json:"amount"`
	CallbackURL   string          `json:"callback_url" validate:"required,url"`
	Student       StudentInfo     `json:"student_info"`
	CustomOrderID string          `json:"custom_order_id" validate:"omitempty,max=64"`
	UserID        uint            `json:"-"`
}

func (in *CreatePaymentInput) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v.Struct(in)
}

// CreatePaymentResult is returned to the client that started the payment.
type CreatePaymentResult struct {
	CollectRequestID  string `json:"collect_request_id"`
	CollectRequestURL string `json:"collect_request_url"`
	CustomOrderID     string `json:"custom_order_id"`
	OrderID           string `json:"order_id"`
}

// StatusResult is the reconciled outcome of a status check.
type StatusResult struct {
	Status            string          `json:"status"`
	GatewayStatus     string          `json:"gateway_status"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	Details           json.RawMessage `json:"details,omitempty"`
	CustomOrderID     string          `json:"custom_order_id"`
	CollectRequestID  string          `json:"collect_request_id"`
	OrderID           string          `json:"order_id"`
	Applied           bool            `json:"applied"`

	Order *models.Order `json:"-"`
}

// IsTerminal reports whether polling can stop.
func (r *StatusResult) IsTerminal() bool {
	return r.Status == models.PaymentStatusSuccess ||
		r.Status == models.PaymentStatusFailed ||
		r.Status == models.PaymentStatusRefunded
}

// WebhookResult is the acknowledgement for one webhook delivery.
type WebhookResult struct {
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Applied bool   `json:"applied"`
}
