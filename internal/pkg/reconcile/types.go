package reconcile

import (
	"time"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/shopspring/decimal"
)

// CustomOrderIDSentinel is sent by the gateway when no merchant order id is known.
const CustomOrderIDSentinel = "NA"

// Notification is a status update for one collect request, from the gateway
// webhook or from a status poll. Nil or empty fields mean "not reported".
type Notification struct {
	Source            string
	CollectRequestID  string
	CustomOrderID     string
	SchoolID          string
	Status            string
	Amount            *decimal.Decimal
	TransactionAmount *decimal.Decimal
	PaymentMode       string
	PaymentDetails    string
	BankReference     string
	PaymentMessage    string
	ErrorMessage      string
	PaymentTime       *time.Time
	RawPayload        []byte
}

// Result describes what a reconciliation did.
type Result struct {
	Order          *models.Order
	OrderStatus    *models.OrderStatus
	Transaction    *models.Transaction
	Applied        bool
	OrderCreated   bool
	PreviousStatus string
	Status         string
}

// StatusChanged reports whether the applied notification moved the order to a new status.
func (r *Result) StatusChanged() bool {
	return r.Applied && r.PreviousStatus != r.Status
}
