package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/usercontext"
)

// TransactionController serves the read side over reconciled payments
type TransactionController struct {
	transactionRepo repository.TransactionRepository
}

// NewTransactionController creates a new transaction controller with repository
func NewTransactionController(transactionRepo repository.TransactionRepository) *TransactionController {
	return &TransactionController{transactionRepo: transactionRepo}
}

func (tc *TransactionController) list(c *fiber.Ctx, scope func(*repository.TransactionFilter)) error {
	filter, err := parseTransactionFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	if scope != nil {
		scope(&filter)
	}

	items, total, err := tc.transactionRepo.List(filter)
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.KindPersistence, "failed to load transactions", err))
	}
	if items == nil {
		items = []repository.TransactionView{}
	}
	return c.JSON(fiber.Map{
		"data":       items,
		"pagination": newPagination(filter.Page, filter.Limit, total),
	})
}

// HandleListTransactions lists all transactions
func (tc *TransactionController) HandleListTransactions(c *fiber.Ctx) error {
	return tc.list(c, nil)
}

// HandleListSchoolTransactions lists the transactions of one school
func (tc *TransactionController) HandleListSchoolTransactions(c *fiber.Ctx) error {
	schoolID := strings.TrimSpace(c.Params("school_id"))
	if schoolID == "" {
		return respondError(c, apperror.New(apperror.KindValidation, "school_id is required"))
	}
	return tc.list(c, func(f *repository.TransactionFilter) {
		f.SchoolID = schoolID
	})
}

// HandleListUserTransactions lists the transactions started by the caller
func (tc *TransactionController) HandleListUserTransactions(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return respondError(c, apperror.New(apperror.KindUnauthorized, "authentication required"))
	}
	return tc.list(c, func(f *repository.TransactionFilter) {
		f.UserID = userID
	})
}

// HandleTransactionStatus returns the reconciled view of one order
func (tc *TransactionController) HandleTransactionStatus(c *fiber.Ctx) error {
	customOrderID := strings.TrimSpace(c.Params("custom_order_id"))
	if customOrderID == "" {
		return respondError(c, apperror.New(apperror.KindValidation, "custom_order_id is required"))
	}

	view, err := tc.transactionRepo.GetByCustomOrderID(customOrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperror.New(apperror.KindNotFound, "transaction not found"))
	}
	if err != nil {
		return respondError(c, apperror.Wrap(apperror.KindPersistence, "failed to load transaction", err))
	}
	return c.JSON(view)
}
