package payment

import (
	"testing"

	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookFlat(t *testing.T) {
	n, err := ParseWebhook([]byte(`{
		"status": "SUCCESS",
		"amount": "1500.50",
		"transaction_amount": 1510,
		"details": "paid via upi",
		"custom_order_id": "ORD-1",
		"collect_request_id": "CR1",
		"payment_time": "2025-04-01T10:00:00Z"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "CR1", n.CollectRequestID)
	assert.Equal(t, "ORD-1", n.CustomOrderID)
	assert.Equal(t, "SUCCESS", n.Status)
	require.NotNil(t, n.Amount)
	assert.Equal(t, "1500.5", n.Amount.String())
	require.NotNil(t, n.TransactionAmount)
	assert.Equal(t, "1510", n.TransactionAmount.String())
	assert.Equal(t, "paid via upi", n.PaymentDetails)
	require.NotNil(t, n.PaymentTime)
	assert.NotEmpty(t, n.RawPayload)
}

func TestParseWebhookNestedEnvelope(t *testing.T) {
	n, err := ParseWebhook([]byte(`{
		"status": 200,
		"order_info": {
			"order_id": "CR9/txn_77",
			"order_amount": 2000,
			"transaction_amount": 2200,
			"gateway": "PhonePe",
			"bank_reference": "YESBNK222",
			"status": "success",
			"payment_mode": "upi",
			"payemnt_details": "success@ybl",
			"Payment_message": "payment success",
			"payment_time": "2025-04-23T08:14:21.945+00:00",
			"error_message": "NA"
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "CR9", n.CollectRequestID)
	assert.Equal(t, "success", n.Status)
	assert.Equal(t, "2000", n.Amount.String())
	assert.Equal(t, "2200", n.TransactionAmount.String())
	assert.Equal(t, "upi", n.PaymentMode)
	assert.Equal(t, "YESBNK222", n.BankReference)
	assert.Equal(t, "success@ybl", n.PaymentDetails)
	assert.Equal(t, "payment success", n.PaymentMessage)
	require.NotNil(t, n.PaymentTime)
}

func TestParseWebhookMissingAmountIsNil(t *testing.T) {
	n, err := ParseWebhook([]byte(`{"status":"PENDING","collect_request_id":"CR1","amount":"abc"}`))
	require.NoError(t, err)
	assert.Nil(t, n.Amount)
	assert.Nil(t, n.TransactionAmount)
}

func TestParseWebhookRejectsUnidentifiable(t *testing.T) {
	_, err := ParseWebhook([]byte(`{"status":"SUCCESS","custom_order_id":"NA"}`))
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = ParseWebhook([]byte(`not json`))
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestDetailsText(t *testing.T) {
	assert.Equal(t, "", detailsText(nil))
	assert.Equal(t, "", detailsText([]byte("null")))
	assert.Equal(t, "card", detailsText([]byte(`"card"`)))
	assert.Equal(t, `{"a":1}`, detailsText([]byte(`{"a":1}`)))
}
