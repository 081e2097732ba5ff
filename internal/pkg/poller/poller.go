// Package poller drives repeated status checks for a collect request until
// the gateway reports a terminal state or the retry budget runs out.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/gateway"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/payment"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/reconcile"
	"github.com/gofiber/fiber/v2/log"
)

const (
	DefaultMaxRetries = 15
	DefaultRetryDelay = 3 * time.Second
)

// ErrPollTimeout is returned when no terminal status was seen within MaxRetries attempts.
var ErrPollTimeout = errors.New("payment status polling timed out")

// Checker performs one reconciled status check.
type Checker interface {
	CheckPaymentStatus(ctx context.Context, collectRequestID, schoolID string) (*payment.StatusResult, error)
}

// Notifier feeds a notification through the webhook path.
type Notifier interface {
	ApplyWebhook(ctx context.Context, n reconcile.Notification) (*payment.WebhookResult, error)
}

// Callbacks are invoked from the polling goroutine. All are optional.
type Callbacks struct {
	OnSuccess func(res *payment.StatusResult)
	// OnFailure receives the last result (may be nil) and, for timeouts and
	// lookup errors, the cause.
	OnFailure func(res *payment.StatusResult, err error)
	OnPending func(res *payment.StatusResult, attempt int)
}

type Options struct {
	MaxRetries int
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

type Poller struct {
	checker  Checker
	notifier Notifier
}

// New returns a poller. notifier may be nil, in which case a successful poll
// is not re-sent through the webhook path.
func New(checker Checker, notifier Notifier) *Poller {
	return &Poller{checker: checker, notifier: notifier}
}

// NewFromService uses the payment service for both checks and re-notification.
func NewFromService(svc *payment.Service) *Poller {
	return New(svc, svc)
}

// Poll checks the status of collectRequestID until it is terminal. The next
// attempt is scheduled only after the current one has returned.
func (p *Poller) Poll(ctx context.Context, collectRequestID, schoolID string, cb Callbacks, opts Options) (*payment.StatusResult, error) {
	opts = opts.withDefaults()

	var last *payment.StatusResult
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := wait(ctx, opts.RetryDelay); err != nil {
				log.Infof("[Poller] polling %s cancelled after %d attempts", collectRequestID, attempt-1)
				return last, err
			}
		}
		if err := ctx.Err(); err != nil {
			return last, err
		}

		res, err := p.checker.CheckPaymentStatus(ctx, collectRequestID, schoolID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, ctxErr
			}
			if isTerminalError(err) {
				log.Warnf("[Poller] giving up on %s: %v", collectRequestID, err)
				if cb.OnFailure != nil {
					cb.OnFailure(last, err)
				}
				return last, err
			}
			if gateway.IsUnavailable(err) {
				log.Warnf("[Poller] attempt %d/%d for %s: gateway unavailable: %v", attempt, opts.MaxRetries, collectRequestID, err)
			} else {
				log.Warnf("[Poller] attempt %d/%d for %s failed: %v", attempt, opts.MaxRetries, collectRequestID, err)
			}
			continue
		}
		last = res

		switch {
		case res.Status == models.PaymentStatusSuccess:
			p.renotify(ctx, res)
			if cb.OnSuccess != nil {
				cb.OnSuccess(res)
			}
			return res, nil
		case res.IsTerminal():
			if cb.OnFailure != nil {
				cb.OnFailure(res, nil)
			}
			return res, nil
		default:
			if cb.OnPending != nil {
				cb.OnPending(res, attempt)
			}
		}
	}

	log.Warnf("[Poller] no terminal status for %s after %d attempts", collectRequestID, opts.MaxRetries)
	if cb.OnFailure != nil {
		cb.OnFailure(last, ErrPollTimeout)
	}
	return last, ErrPollTimeout
}

// renotify replays a successful poll through the webhook path. Failures are
// logged only; the poll result already reflects the stored state.
func (p *Poller) renotify(ctx context.Context, res *payment.StatusResult) {
	if p.notifier == nil {
		return
	}
	amount := res.Amount
	txnAmount := res.TransactionAmount
	n := reconcile.Notification{
		CollectRequestID:  res.CollectRequestID,
		CustomOrderID:     res.CustomOrderID,
		Status:            res.Status,
		Amount:            &amount,
		TransactionAmount: &txnAmount,
		RawPayload:        res.Details,
	}
	if res.Order != nil {
		n.SchoolID = res.Order.SchoolID
	}
	if _, err := p.notifier.ApplyWebhook(ctx, n); err != nil {
		log.Warnf("[Poller] re-notify for %s failed: %v", res.CollectRequestID, err)
	}
}

func isTerminalError(err error) bool {
	return apperror.Is(err, apperror.KindOrderNotFound) || apperror.Is(err, apperror.KindValidation)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
