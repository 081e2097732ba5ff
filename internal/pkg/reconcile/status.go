package reconcile

import (
	"strings"
	"time"

	"github.com/ManuelReschke/SchoolPay/app/models"
)

// NormalizeStatus maps a gateway status string onto the stored status set.
// Only success and failure are recognized; everything else is pending.
func NormalizeStatus(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS":
		return models.PaymentStatusSuccess
	case "FAILURE", "FAILED":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}

func statusRank(status string) int {
	switch status {
	case models.PaymentStatusRefunded:
		return 3
	case models.PaymentStatusSuccess, models.PaymentStatusFailed:
		return 2
	default:
		return 0
	}
}

// shouldApply is the monotonic status guard. A stored status can only be
// replaced by a higher-ranked one, by the same status, or by a different
// status of equal rank whose payment time is newer. A stored success is
// never replaced by a failure.
func shouldApply(stored *models.OrderStatus, incoming string, paymentTime *time.Time) bool {
	if stored == nil {
		return true
	}
	in, cur := statusRank(incoming), statusRank(stored.Status)
	switch {
	case in > cur:
		return true
	case in < cur:
		return false
	case stored.Status == models.PaymentStatusSuccess && incoming == models.PaymentStatusFailed:
		return false
	case incoming == stored.Status:
		return true
	case paymentTime == nil:
		return false
	case stored.PaymentTime == nil:
		return true
	default:
		return paymentTime.After(*stored.PaymentTime)
	}
}
