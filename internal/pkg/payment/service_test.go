package payment

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"testing"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/gateway"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/orderid"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/reconcile"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	statusCalls int
	lastSchool  string

	collect   *gateway.CollectRequest
	createErr error
	status    *gateway.StatusResponse
	statusErr error
}

func (g *fakeGateway) CreateCollectRequest(_ context.Context, in gateway.CreateCollectRequestInput) (*gateway.CollectRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.lastSchool = in.SchoolID
	return g.collect, g.createErr
}

func (g *fakeGateway) GetCollectRequestStatus(_ context.Context, _ string, schoolID string) (*gateway.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	g.lastSchool = schoolID
	return g.status, g.statusErr
}

type fixture struct {
	db      *gorm.DB
	gateway *fakeGateway
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	ids, err := orderid.NewGenerator(1)
	require.NoError(t, err)
	gw := &fakeGateway{
		collect: &gateway.CollectRequest{ID: "CR1", URL: "https://pg/x"},
	}
	svc := NewService(gw, reconcile.NewEngineFromDB(db, nil), repository.NewOrderRepository(db), ids, Options{
		DefaultCallbackURL: "https://app.example.com/payments/callback",
		GatewayName:        "pg",
	})
	return &fixture{db: db, gateway: gw, service: svc}
}

func validInput() CreatePaymentInput {
	return CreatePaymentInput{
		SchoolID:    "S1",
		Amount:      decimal.RequireFromString("500"),
		CallbackURL: "https://app.example.com/done",
		Student:     StudentInfo{Name: "Jane Doe", ID: "STU-1", Email: "jane@example.com"},
		UserID:      42,
	}
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) triple(t *testing.T, orderID string) (models.OrderStatus, models.Transaction) {
	t.Helper()
	var st models.OrderStatus
	require.NoError(t, f.db.Where("collect_id = ?", orderID).First(&st).Error)
	var txn models.Transaction
	require.NoError(t, f.db.Where("order_id = ?", orderID).First(&txn).Error)
	return st, txn
}

func TestCreatePaymentStoresPendingTriple(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.CreatePayment(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "CR1", res.CollectRequestID)
	assert.Equal(t, "https://pg/x", res.CollectRequestURL)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d+$`), res.CustomOrderID)

	order, err := models.FindOrderByCollectRequestID(f.db, "CR1")
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, order.ID)
	assert.Equal(t, res.CustomOrderID, order.CustomOrderIDValue())
	assert.Equal(t, uint(42), order.UserID)
	assert.Equal(t, "pg", order.GatewayName)

	st, txn := f.triple(t, order.ID)
	assert.Equal(t, models.PaymentStatusPending, st.Status)
	assert.True(t, st.TransactionAmount.IsZero())
	assert.True(t, st.OrderAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, models.PaymentStatusPending, txn.Status)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(500)))
}

func TestWebhookAfterCreateMarksSuccess(t *testing.T) {
	f := newFixture(t)
	created, err := f.service.CreatePayment(context.Background(), validInput())
	require.NoError(t, err)

	res, err := f.service.HandleWebhook(context.Background(),
		[]byte(`{"status":"SUCCESS","amount":600,"collect_request_id":"CR1","custom_order_id":"NA"}`))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, created.OrderID, res.OrderID)

	st, txn := f.triple(t, created.OrderID)
	assert.Equal(t, "success", st.Status)
	assert.True(t, st.TransactionAmount.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, "success", txn.Status)
	assert.Equal(t, int64(1), f.count(t, &models.Order{}))
}

func TestCreatePaymentValidation(t *testing.T) {
	f := newFixture(t)

	in := validInput()
	in.Student.Email = "not-an-email"
	in.SchoolID = ""
	_, err := f.service.CreatePayment(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Contains(t, apperror.MessageOf(err), "school_id")
	assert.Contains(t, apperror.MessageOf(err), "student_info.email")

	in = validInput()
	in.Amount = decimal.Zero
	_, err = f.service.CreatePayment(context.Background(), in)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	assert.Equal(t, 0, f.gateway.createCalls)
	assert.Equal(t, int64(0), f.count(t, &models.Order{}))
}

func TestCreatePaymentUsesDefaults(t *testing.T) {
	f := newFixture(t)
	f.service.opts.DefaultSchoolID = "S-DEFAULT"

	in := validInput()
	in.SchoolID = ""
	in.CallbackURL = ""
	_, err := f.service.CreatePayment(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "S-DEFAULT", f.gateway.lastSchool)
}

func TestCreatePaymentGatewayFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.gateway.createErr = apperror.New(apperror.KindGateway, "invalid school")

	_, err := f.service.CreatePayment(context.Background(), validInput())
	require.Error(t, err)
	assert.Equal(t, apperror.KindGateway, apperror.KindOf(err))
	assert.Equal(t, int64(0), f.count(t, &models.Order{}))
	assert.Equal(t, int64(0), f.count(t, &models.OrderStatus{}))
	assert.Equal(t, int64(0), f.count(t, &models.Transaction{}))
}

func TestCreatePaymentCustomOrderID(t *testing.T) {
	f := newFixture(t)

	in := validInput()
	in.CustomOrderID = "INV-2025-001"
	res, err := f.service.CreatePayment(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-001", res.CustomOrderID)

	f.gateway.collect = &gateway.CollectRequest{ID: "CR2", URL: "https://pg/y"}
	_, err = f.service.CreatePayment(context.Background(), in)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, 1, f.gateway.createCalls)

	in.CustomOrderID = "na"
	_, err = f.service.CreatePayment(context.Background(), in)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	// generated ids own the ORD-<digits> namespace
	in.CustomOrderID = "ORD-12345"
	_, err = f.service.CreatePayment(context.Background(), in)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, 1, f.gateway.createCalls)
}

func TestCheckPaymentStatusUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CheckPaymentStatus(context.Background(), "CR-UNKNOWN", "S1")
	require.Error(t, err)
	assert.Equal(t, apperror.KindOrderNotFound, apperror.KindOf(err))
	assert.Equal(t, 0, f.gateway.statusCalls)
	assert.Equal(t, int64(0), f.count(t, &models.Order{}))
	assert.Equal(t, int64(0), f.count(t, &models.WebhookLog{}))
}

func TestCheckPaymentStatusReconciles(t *testing.T) {
	f := newFixture(t)
	created, err := f.service.CreatePayment(context.Background(), validInput())
	require.NoError(t, err)

	amount := decimal.NewFromInt(500)
	f.gateway.status = &gateway.StatusResponse{
		Status:  "Success",
		Amount:  &amount,
		Details: json.RawMessage(`{"payment_methods":"upi"}`),
		Raw:     []byte(`{"status":"Success","amount":500}`),
	}

	res, err := f.service.CheckPaymentStatus(context.Background(), "CR1", "")
	require.NoError(t, err)
	assert.Equal(t, "S1", f.gateway.lastSchool)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "Success", res.GatewayStatus)
	assert.True(t, res.IsTerminal())
	assert.True(t, res.Amount.Equal(amount))
	assert.Equal(t, created.CustomOrderID, res.CustomOrderID)

	st, txn := f.triple(t, created.OrderID)
	assert.Equal(t, "success", st.Status)
	assert.Equal(t, `{"payment_methods":"upi"}`, st.PaymentDetails)
	assert.Equal(t, "success", txn.Status)

	var logEntry models.WebhookLog
	require.NoError(t, f.db.First(&logEntry).Error)
	assert.Equal(t, models.WebhookSourcePoll, logEntry.Source)
}

func TestCheckPaymentStatusGatewayUnavailable(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.CreatePayment(context.Background(), validInput())
	require.NoError(t, err)
	f.gateway.statusErr = apperror.New(apperror.KindGatewayUnavailable, "payment gateway is unreachable")

	_, err = f.service.CheckPaymentStatus(context.Background(), "CR1", "S1")
	assert.Equal(t, apperror.KindGatewayUnavailable, apperror.KindOf(err))
}

func TestCheckPaymentStatusPersistenceFailureIsHard(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.CreatePayment(context.Background(), validInput())
	require.NoError(t, err)
	f.gateway.status = &gateway.StatusResponse{Status: "SUCCESS"}
	require.NoError(t, f.db.Migrator().DropTable(&models.Transaction{}))

	_, err = f.service.CheckPaymentStatus(context.Background(), "CR1", "S1")
	require.Error(t, err)
	assert.Equal(t, apperror.KindPersistence, apperror.KindOf(err))
}

func TestHandleWebhookAuditsRejectedDeliveries(t *testing.T) {
	f := newFixture(t)

	bodies := []string{
		`{"status":"SUCCESS","amount":600}`,
		`not json`,
		`{"status":"SUCCESS","custom_order_id":"NA"}`,
	}
	for _, body := range bodies {
		_, err := f.service.HandleWebhook(context.Background(), []byte(body))
		require.Error(t, err)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	}

	var logs []models.WebhookLog
	require.NoError(t, f.db.Order("id").Find(&logs).Error)
	require.Len(t, logs, len(bodies))
	for _, entry := range logs {
		assert.Equal(t, models.WebhookOutcomeRejected, entry.Outcome)
		assert.Equal(t, models.WebhookSourceWebhook, entry.Source)
		assert.NotEmpty(t, entry.Error)
	}

	var raw string
	require.NoError(t, json.Unmarshal(logs[1].Payload, &raw))
	assert.Equal(t, "not json", raw)
	assert.JSONEq(t, bodies[2], string(logs[2].Payload))
	assert.Equal(t, "NA", logs[2].CustomOrderID)
	assert.Equal(t, int64(0), f.count(t, &models.Order{}))
}

func TestCheckPaymentStatusPendingKeepsTransactionAmount(t *testing.T) {
	f := newFixture(t)
	created, err := f.service.CreatePayment(context.Background(), validInput())
	require.NoError(t, err)

	amount := decimal.NewFromInt(500)
	f.gateway.status = &gateway.StatusResponse{Status: "PENDING", Amount: &amount}

	res, err := f.service.CheckPaymentStatus(context.Background(), "CR1", "S1")
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Status)
	assert.True(t, res.TransactionAmount.IsZero())

	st, _ := f.triple(t, created.OrderID)
	assert.True(t, st.OrderAmount.Equal(amount))
	assert.True(t, st.TransactionAmount.IsZero())
}
