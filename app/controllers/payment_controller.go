package controllers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/payment"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/usercontext"
)

// PaymentService is the part of the payment service the HTTP layer uses
type PaymentService interface {
	CreatePayment(ctx context.Context, in payment.CreatePaymentInput) (*payment.CreatePaymentResult, error)
	CheckPaymentStatus(ctx context.Context, collectRequestID, schoolID string) (*payment.StatusResult, error)
	HandleWebhook(ctx context.Context, body []byte) (*payment.WebhookResult, error)
}

// PaymentController handles payment creation and status checks
type PaymentController struct {
	service PaymentService
}

// NewPaymentController creates a new payment controller
func NewPaymentController(service PaymentService) *PaymentController {
	return &PaymentController{service: service}
}

// HandleCreatePayment starts a payment for the authenticated user
func (pc *PaymentController) HandleCreatePayment(c *fiber.Ctx) error {
	var in payment.CreatePaymentInput
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return respondError(c, apperror.Wrap(apperror.KindValidation, "request body is not valid JSON", err))
	}
	in.UserID = usercontext.GetUserID(c)

	res, err := pc.service.CreatePayment(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// statusResponse is the public shape of a status check
type statusResponse struct {
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	Details           json.RawMessage `json:"details,omitempty"`
	CustomOrderID     string          `json:"custom_order_id"`
	CollectRequestID  string          `json:"collect_request_id"`
	OrderID           string          `json:"order_id"`
}

// HandleCheckStatus asks the gateway for the current status and reconciles it
func (pc *PaymentController) HandleCheckStatus(c *fiber.Ctx) error {
	res, err := pc.service.CheckPaymentStatus(c.UserContext(), c.Params("collect_request_id"), c.Query("school_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(statusResponse{
		Status:            res.Status,
		Amount:            res.Amount,
		TransactionAmount: res.TransactionAmount,
		Details:           res.Details,
		CustomOrderID:     res.CustomOrderID,
		CollectRequestID:  res.CollectRequestID,
		OrderID:           res.OrderID,
	})
}
