package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/events"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Engine converges Order, OrderStatus and Transaction to the latest
// gateway-reported state of a collect request.
type Engine struct {
	repo      Repository
	publisher events.Publisher
}

// NewEngine creates an engine from an injected repository. A nil publisher
// disables status events.
func NewEngine(repo Repository, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Engine{repo: repo, publisher: publisher}
}

// NewEngineFromDB creates an engine from a GORM DB handle.
func NewEngineFromDB(db *gorm.DB, publisher events.Publisher) *Engine {
	return NewEngine(NewRepository(db), publisher)
}

// Apply reconciles one notification. Order resolution and both status rows
// are written in a single transaction; the audit log and the status event are
// best-effort and never fail the call. A notification rejected by the status
// guard is not an error: the result reports Applied=false.
func (e *Engine) Apply(ctx context.Context, n Notification) (*Result, error) {
	collectID := strings.TrimSpace(n.CollectRequestID)
	customID := strings.TrimSpace(n.CustomOrderID)
	if strings.EqualFold(customID, CustomOrderIDSentinel) {
		customID = ""
	}
	if n.Source == "" {
		n.Source = models.WebhookSourceWebhook
	}
	if collectID == "" && customID == "" {
		err := apperror.New(apperror.KindValidation, "collect_request_id or custom_order_id is required")
		e.Reject(n, err)
		return nil, err
	}

	status := NormalizeStatus(n.Status)
	result := &Result{Status: status}

	err := e.repo.Transaction(ctx, func(repo Repository) error {
		order, created, err := resolveOrder(repo, collectID, customID, strings.TrimSpace(n.SchoolID))
		if err != nil {
			return err
		}
		result.Order = order
		result.OrderCreated = created

		stored, err := repo.FindOrderStatus(order.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		storedTxn, err := repo.FindTransaction(order.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if stored != nil {
			result.PreviousStatus = stored.Status
		}

		if !shouldApply(stored, status, n.PaymentTime) {
			result.OrderStatus = stored
			result.Transaction = storedTxn
			return nil
		}

		st := mergeOrderStatus(order, stored, status, n)
		if err := repo.UpsertOrderStatus(st); err != nil {
			return err
		}
		txn := mergeTransaction(order, storedTxn, status, n)
		if err := repo.UpsertTransaction(txn); err != nil {
			return err
		}

		result.OrderStatus = st
		result.Transaction = txn
		result.Applied = true
		return nil
	})
	if err != nil {
		log.Errorf("[Reconcile] %s notification for collect_request_id=%q custom_order_id=%q failed: %v", n.Source, collectID, customID, err)
		e.writeLog(n, collectID, customID, models.WebhookOutcomeFailed, err)
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to persist payment status", err)
	}

	if result.OrderCreated {
		log.Warnf("[Reconcile] created placeholder order %s for unknown collect_request_id=%q", result.Order.ID, collectID)
	}

	outcome := models.WebhookOutcomeApplied
	if !result.Applied {
		outcome = models.WebhookOutcomeStale
		log.Infof("[Reconcile] ignored stale %s notification for order %s: stored=%s incoming=%s",
			n.Source, result.Order.ID, result.PreviousStatus, status)
	}
	e.writeLog(n, result.Order.CollectRequestIDValue(), result.Order.CustomOrderIDValue(), outcome, nil)

	if result.StatusChanged() {
		e.publish(ctx, result, n.Source)
	}
	return result, nil
}

// Reject writes an audit entry for a notification that could not be
// reconciled, such as a webhook body that does not parse.
func (e *Engine) Reject(n Notification, cause error) {
	if n.Source == "" {
		n.Source = models.WebhookSourceWebhook
	}
	log.Warnf("[Reconcile] rejected %s notification: %v", n.Source, cause)
	e.writeLog(n, strings.TrimSpace(n.CollectRequestID), strings.TrimSpace(n.CustomOrderID), models.WebhookOutcomeRejected, cause)
}

func findOrder(repo Repository, collectID, customID string) (*models.Order, error) {
	if collectID != "" {
		order, err := repo.FindOrderByCollectRequestID(collectID)
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return order, err
		}
	}
	if customID != "" {
		return repo.FindOrderByCustomOrderID(customID)
	}
	return nil, gorm.ErrRecordNotFound
}

func resolveOrder(repo Repository, collectID, customID, schoolID string) (*models.Order, bool, error) {
	order, err := findOrder(repo, collectID, customID)
	if err == nil {
		if collectID != "" && order.CollectRequestID == nil {
			if err := repo.SetCollectRequestID(order, collectID); err != nil {
				return nil, false, err
			}
		}
		return order, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	order = &models.Order{
		SchoolID:         schoolID,
		CustomOrderID:    models.NullableString(customID),
		CollectRequestID: models.NullableString(collectID),
		StudentName:      models.UnknownStudentName,
	}
	created, err := repo.CreateOrderIfNotExists(order)
	if err != nil {
		return nil, false, err
	}
	if created {
		return order, true, nil
	}

	// Lost the race against a concurrent notification for the same order.
	order, err = findOrder(repo, collectID, customID)
	if err != nil {
		return nil, false, err
	}
	return order, false, nil
}

func mergeOrderStatus(order *models.Order, stored *models.OrderStatus, status string, n Notification) *models.OrderStatus {
	st := &models.OrderStatus{CollectID: order.ID}
	if stored != nil {
		cp := *stored
		st = &cp
	}

	st.Status = status
	if n.Amount != nil {
		st.OrderAmount = *n.Amount
	}
	// Only a settled payment may assume the full amount was transacted.
	switch {
	case n.TransactionAmount != nil:
		st.TransactionAmount = *n.TransactionAmount
	case n.Amount != nil && status == models.PaymentStatusSuccess:
		st.TransactionAmount = *n.Amount
	}
	st.PaymentMode = firstNonEmpty(n.PaymentMode, st.PaymentMode)
	st.PaymentDetails = firstNonEmpty(n.PaymentDetails, st.PaymentDetails)
	st.BankReference = firstNonEmpty(n.BankReference, st.BankReference)
	st.PaymentMessage = firstNonEmpty(n.PaymentMessage, st.PaymentMessage)
	st.ErrorMessage = firstNonEmpty(n.ErrorMessage, st.ErrorMessage)
	if n.PaymentTime != nil {
		st.PaymentTime = n.PaymentTime
	}
	return st
}

func mergeTransaction(order *models.Order, stored *models.Transaction, status string, n Notification) *models.Transaction {
	txn := &models.Transaction{OrderID: order.ID}
	if stored != nil {
		cp := *stored
		txn = &cp
	}

	txn.Status = status
	txn.SchoolID = firstNonEmpty(order.SchoolID, txn.SchoolID)
	txn.StudentID = firstNonEmpty(order.StudentID, txn.StudentID)
	if n.Amount != nil {
		txn.Amount = *n.Amount
	}
	txn.PaymentMode = firstNonEmpty(n.PaymentMode, txn.PaymentMode)
	txn.PaymentDetails = firstNonEmpty(n.PaymentDetails, txn.PaymentDetails)
	txn.BankReference = firstNonEmpty(n.BankReference, txn.BankReference)
	if n.PaymentTime != nil {
		txn.PaymentTime = n.PaymentTime
	}
	return txn
}

func (e *Engine) writeLog(n Notification, collectID, customID, outcome string, cause error) {
	entry := &models.WebhookLog{
		Source:           n.Source,
		CollectRequestID: collectID,
		CustomOrderID:    customID,
		Status:           strings.TrimSpace(n.Status),
		Outcome:          outcome,
		Payload:          payloadJSON(n),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := e.repo.CreateWebhookLog(entry); err != nil {
		log.Warnf("[Reconcile] failed to write webhook log for collect_request_id=%q: %v", collectID, err)
	}
}

func payloadJSON(n Notification) datatypes.JSON {
	if len(n.RawPayload) > 0 {
		if json.Valid(n.RawPayload) {
			return datatypes.JSON(n.RawPayload)
		}
		// keep undecodable bodies as a JSON string
		if data, err := json.Marshal(string(n.RawPayload)); err == nil {
			return datatypes.JSON(data)
		}
	}
	data, err := json.Marshal(map[string]interface{}{
		"collect_request_id": n.CollectRequestID,
		"custom_order_id":    n.CustomOrderID,
		"status":             n.Status,
		"amount":             n.Amount,
		"transaction_amount": n.TransactionAmount,
		"payment_mode":       n.PaymentMode,
		"bank_reference":     n.BankReference,
		"payment_time":       n.PaymentTime,
	})
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

func (e *Engine) publish(ctx context.Context, result *Result, source string) {
	ev := events.StatusChanged{
		OrderID:          result.Order.ID,
		CustomOrderID:    result.Order.CustomOrderIDValue(),
		CollectRequestID: result.Order.CollectRequestIDValue(),
		SchoolID:         result.Order.SchoolID,
		PreviousStatus:   result.PreviousStatus,
		Status:           result.Status,
		Source:           source,
		OccurredAt:       time.Now().UTC(),
	}
	if result.OrderStatus != nil {
		ev.Amount = result.OrderStatus.OrderAmount.String()
		ev.TransactionAmount = result.OrderStatus.TransactionAmount.String()
	}
	if err := e.publisher.PublishStatusChanged(ctx, ev); err != nil {
		log.Warnf("[Reconcile] failed to publish status change for order %s: %v", result.Order.ID, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
