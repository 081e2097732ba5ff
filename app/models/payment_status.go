package models

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusSuccess    = "success"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// IsValidPaymentStatus reports whether s is one of the stored status values.
func IsValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}
