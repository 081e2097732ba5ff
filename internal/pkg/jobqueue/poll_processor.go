package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/payment"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/poller"
)

// StatusPoller is implemented by *poller.Poller
type StatusPoller interface {
	Poll(ctx context.Context, collectRequestID, schoolID string, cb poller.Callbacks, opts poller.Options) (*payment.StatusResult, error)
}

// EnqueuePollPayment enqueues a status poll for one order
func (q *Queue) EnqueuePollPayment(payload PollPaymentJobPayload) (*Job, error) {
	if payload.CollectRequestID == "" {
		return nil, fmt.Errorf("cannot enqueue poll without collect_request_id (order %s)", payload.OrderID)
	}
	return q.EnqueueJob(JobTypePollPaymentStatus, payload.ToMap())
}

// processPollPaymentJob runs the status poller for one order. A poll that
// times out or refers to an unknown order completes the job; the stale
// sweeper picks the order up again on a later tick.
func (q *Queue) processPollPaymentJob(ctx context.Context, job *Job) error {
	payload, err := PollPaymentJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid poll payload: %w", err)
	}

	q.pollMu.RLock()
	p, opts := q.poller, q.pollOptions
	q.pollMu.RUnlock()
	if p == nil {
		return fmt.Errorf("no status poller configured")
	}

	res, err := p.Poll(ctx, payload.CollectRequestID, payload.SchoolID, poller.Callbacks{
		OnPending: func(_ *payment.StatusResult, attempt int) {
			log.Debugf("[JobQueue] Order %s still pending (attempt %d)", payload.OrderID, attempt)
		},
	}, opts)

	switch {
	case err == nil:
		log.Infof("[JobQueue] Order %s reconciled by poll: %s", payload.OrderID, res.Status)
		return nil
	case errors.Is(err, poller.ErrPollTimeout):
		log.Infof("[JobQueue] Order %s still pending after poll budget", payload.OrderID)
		return nil
	case apperror.Is(err, apperror.KindOrderNotFound):
		log.Warnf("[JobQueue] Order %s vanished before poll: %v", payload.OrderID, err)
		return nil
	default:
		return err
	}
}
