package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/gateway"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/orderid"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/reconcile"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Gateway is the subset of the gateway client the service depends on.
type Gateway interface {
	CreateCollectRequest(ctx context.Context, in gateway.CreateCollectRequestInput) (*gateway.CollectRequest, error)
	GetCollectRequestStatus(ctx context.Context, collectRequestID, schoolID string) (*gateway.StatusResponse, error)
}

// Reconciler applies status notifications to stored payment state.
type Reconciler interface {
	Apply(ctx context.Context, n reconcile.Notification) (*reconcile.Result, error)
}

// Rejecter records deliveries that never reach reconciliation.
type Rejecter interface {
	Reject(n reconcile.Notification, cause error)
}

// IDGenerator produces custom order ids.
type IDGenerator interface {
	Next() (string, error)
}

type Options struct {
	DefaultSchoolID    string
	DefaultCallbackURL string
	GatewayName        string
}

// Service orchestrates payment creation, status checks and webhook intake.
type Service struct {
	gateway Gateway
	engine  Reconciler
	orders  repository.OrderRepository
	ids     IDGenerator
	opts    Options
}

func NewService(gw Gateway, engine Reconciler, orders repository.OrderRepository, ids IDGenerator, opts Options) *Service {
	return &Service{
		gateway: gw,
		engine:  engine,
		orders:  orders,
		ids:     ids,
		opts:    opts,
	}
}

// CreatePayment registers a collect request with the gateway and records the
// pending order. Nothing is stored when the gateway call fails.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*CreatePaymentResult, error) {
	in.SchoolID = strings.TrimSpace(in.SchoolID)
	if in.SchoolID == "" {
		in.SchoolID = s.opts.DefaultSchoolID
	}
	in.CallbackURL = strings.TrimSpace(in.CallbackURL)
	if in.CallbackURL == "" {
		in.CallbackURL = s.opts.DefaultCallbackURL
	}
	in.CustomOrderID = strings.TrimSpace(in.CustomOrderID)
	in.Student.Name = strings.TrimSpace(in.Student.Name)
	in.Student.ID = strings.TrimSpace(in.Student.ID)
	in.Student.Email = strings.TrimSpace(in.Student.Email)

	if err := in.Validate(); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, validationMessage(err), err)
	}
	if !in.Amount.IsPositive() {
		return nil, apperror.New(apperror.KindValidation, "amount must be greater than zero")
	}
	if strings.EqualFold(in.CustomOrderID, reconcile.CustomOrderIDSentinel) {
		return nil, apperror.New(apperror.KindValidation, "custom_order_id is reserved")
	}
	if orderid.Valid(in.CustomOrderID) {
		return nil, apperror.New(apperror.KindValidation, "custom_order_id must not use the generated "+orderid.Prefix+"<digits> format")
	}

	customOrderID := in.CustomOrderID
	if customOrderID == "" {
		id, err := s.ids.Next()
		if err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "failed to generate order id", err)
		}
		customOrderID = id
	} else if _, err := s.orders.GetByCustomOrderID(customOrderID); err == nil {
		return nil, apperror.New(apperror.KindValidation, "custom_order_id already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to check custom_order_id", err)
	}

	cr, err := s.gateway.CreateCollectRequest(ctx, gateway.CreateCollectRequestInput{
		SchoolID:    in.SchoolID,
		Amount:      in.Amount,
		CallbackURL: in.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		SchoolID:         in.SchoolID,
		TrusteeID:        strings.TrimSpace(in.TrusteeID),
		CustomOrderID:    models.NullableString(customOrderID),
		CollectRequestID: models.NullableString(cr.ID),
		StudentName:      in.Student.Name,
		StudentID:        in.Student.ID,
		StudentEmail:     in.Student.Email,
		GatewayName:      s.opts.GatewayName,
		UserID:           in.UserID,
	}
	status := &models.OrderStatus{
		Status:            models.PaymentStatusPending,
		OrderAmount:       in.Amount,
		TransactionAmount: decimal.Zero,
	}
	txn := &models.Transaction{
		SchoolID:  in.SchoolID,
		StudentID: in.Student.ID,
		Amount:    in.Amount,
		Status:    models.PaymentStatusPending,
	}
	if err := s.orders.CreateWithStatus(order, status, txn); err != nil {
		log.Errorf("[Payment] collect request %s created at gateway but not stored: %v", cr.ID, err)
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to store payment", err)
	}

	log.Infof("[Payment] created order %s (%s) for collect request %s", order.ID, customOrderID, cr.ID)
	return &CreatePaymentResult{
		CollectRequestID:  cr.ID,
		CollectRequestURL: cr.URL,
		CustomOrderID:     customOrderID,
		OrderID:           order.ID,
	}, nil
}

// CheckPaymentStatus asks the gateway for the current status of a known
// order and reconciles it. Unknown collect requests are rejected before any
// gateway call.
func (s *Service) CheckPaymentStatus(ctx context.Context, collectRequestID, schoolID string) (*StatusResult, error) {
	collectID := strings.TrimSpace(collectRequestID)
	if collectID == "" {
		return nil, apperror.New(apperror.KindValidation, "collect_request_id is required")
	}

	order, err := s.orders.GetByCollectRequestID(collectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.New(apperror.KindOrderNotFound, fmt.Sprintf("no order for collect_request_id %s", collectID))
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to load order", err)
	}

	school := strings.TrimSpace(schoolID)
	if school == "" {
		school = order.SchoolID
	}
	if school == "" {
		school = s.opts.DefaultSchoolID
	}

	resp, err := s.gateway.GetCollectRequestStatus(ctx, collectID, school)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Apply(ctx, reconcile.Notification{
		Source:            models.WebhookSourcePoll,
		CollectRequestID:  collectID,
		CustomOrderID:     order.CustomOrderIDValue(),
		SchoolID:          school,
		Status:            resp.Status,
		Amount:            resp.Amount,
		TransactionAmount: resp.TransactionAmount,
		PaymentMode:       resp.PaymentMode,
		PaymentDetails:    detailsText(resp.Details),
		BankReference:     resp.BankReference,
		PaymentTime:       resp.PaymentTime,
		RawPayload:        resp.Raw,
	})
	if err != nil {
		return nil, err
	}

	out := &StatusResult{
		Status:           res.Status,
		GatewayStatus:    resp.Status,
		Details:          resp.Details,
		CustomOrderID:    res.Order.CustomOrderIDValue(),
		CollectRequestID: collectID,
		OrderID:          res.Order.ID,
		Applied:          res.Applied,
		Order:            res.Order,
	}
	if res.OrderStatus != nil {
		out.Status = res.OrderStatus.Status
		out.Amount = res.OrderStatus.OrderAmount
		out.TransactionAmount = res.OrderStatus.TransactionAmount
	}
	return out, nil
}

// HandleWebhook applies a raw gateway webhook body.
func (s *Service) HandleWebhook(ctx context.Context, body []byte) (*WebhookResult, error) {
	n, err := ParseWebhook(body)
	if err != nil {
		if r, ok := s.engine.(Rejecter); ok {
			n.Source = models.WebhookSourceWebhook
			n.RawPayload = body
			r.Reject(n, err)
		}
		return nil, err
	}
	return s.ApplyWebhook(ctx, n)
}

// ApplyWebhook reconciles a notification as if it had been pushed by the gateway.
func (s *Service) ApplyWebhook(ctx context.Context, n reconcile.Notification) (*WebhookResult, error) {
	n.Source = models.WebhookSourceWebhook
	res, err := s.engine.Apply(ctx, n)
	if err != nil {
		return nil, err
	}
	return &WebhookResult{
		OrderID: res.Order.ID,
		Status:  res.Status,
		Applied: res.Applied,
	}, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldName(fe.Namespace()))
	}
	return "invalid or missing fields: " + strings.Join(fields, ", ")
}

// fieldName drops the struct name from "CreatePaymentInput.student_info.email".
func fieldName(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
