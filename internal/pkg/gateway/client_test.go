package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuelReschke/SchoolPay/internal/pkg/apperror"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "pg-secret"

func newTestClient(url string, timeout time.Duration) *Client {
	return NewClient(config.GatewayConfig{
		BaseURL:  url,
		APIKey:   "api-key",
		PGSecret: testSecret,
		Timeout:  timeout,
	})
}

func TestCreateCollectRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/create-collect-request", r.URL.Path)
		assert.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "school-1", body["school_id"])
		assert.Equal(t, "2000.00", body["amount"])

		claims, err := VerifySign(body["sign"], testSecret)
		require.NoError(t, err)
		assert.Equal(t, "school-1", claims["school_id"])
		assert.Equal(t, "https://app.example.com/done", claims["callback_url"])

		_ = json.NewEncoder(w).Encode(map[string]string{
			"collect_request_id":  "cr-123",
			"Collect_request_url": "https://pay.example.com/cr-123",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, time.Second)
	out, err := c.CreateCollectRequest(context.Background(), CreateCollectRequestInput{
		SchoolID:    "school-1",
		Amount:      decimal.NewFromInt(2000),
		CallbackURL: "https://app.example.com/done",
	})
	require.NoError(t, err)
	assert.Equal(t, "cr-123", out.ID)
	assert.Equal(t, "https://pay.example.com/cr-123", out.URL)
}

func TestCreateCollectRequestMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"collect_request_id":"cr-123"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).CreateCollectRequest(context.Background(), CreateCollectRequestInput{
		SchoolID:    "school-1",
		Amount:      decimal.NewFromInt(10),
		CallbackURL: "https://app.example.com/done",
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindGateway, apperror.KindOf(err))
}

func TestCreateCollectRequestGatewayRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid school"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).CreateCollectRequest(context.Background(), CreateCollectRequestInput{
		SchoolID:    "school-1",
		Amount:      decimal.NewFromInt(10),
		CallbackURL: "https://app.example.com/done",
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindGateway, apperror.KindOf(err))
	assert.Equal(t, "invalid school", apperror.MessageOf(err))
}

func TestCreateCollectRequestValidation(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", time.Second)
	_, err := c.CreateCollectRequest(context.Background(), CreateCollectRequestInput{SchoolID: "s", CallbackURL: "u"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestGetCollectRequestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collect-request/cr-123", r.URL.Path)
		assert.Equal(t, "school-1", r.URL.Query().Get("school_id"))
		claims, err := VerifySign(r.URL.Query().Get("sign"), testSecret)
		require.NoError(t, err)
		assert.Equal(t, "cr-123", claims["collect_request_id"])

		_, _ = w.Write([]byte(`{"status":"SUCCESS","amount":2000,"transaction_amount":"2010.5","details":{"payment_methods":"upi"}}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL, time.Second).GetCollectRequestStatus(context.Background(), "cr-123", "school-1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", out.Status)
	require.NotNil(t, out.Amount)
	assert.True(t, out.Amount.Equal(decimal.NewFromInt(2000)))
	require.NotNil(t, out.TransactionAmount)
	assert.Equal(t, "2010.5", out.TransactionAmount.String())
	assert.JSONEq(t, `{"payment_methods":"upi"}`, string(out.Details))
}

func TestGetCollectRequestStatusTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"status":"SUCCESS"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 20*time.Millisecond).GetCollectRequestStatus(context.Background(), "cr-123", "school-1")
	require.Error(t, err)
	assert.Equal(t, apperror.KindGatewayUnavailable, apperror.KindOf(err))
	assert.True(t, IsUnavailable(err))
}

func TestGetCollectRequestStatusMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).GetCollectRequestStatus(context.Background(), "cr-123", "school-1")
	assert.Equal(t, apperror.KindGateway, apperror.KindOf(err))
}

func TestSignRequiresSecret(t *testing.T) {
	c := &Client{}
	_, err := c.Sign(map[string]interface{}{"a": "b"})
	assert.Error(t, err)

	_, err = VerifySign("garbage", testSecret)
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	got := ParseTime("2025-01-02T10:00:00.000Z")
	require.NotNil(t, got)
	assert.Equal(t, 2025, got.Year())
	assert.NotNil(t, ParseTime("2025-01-02 10:00:00"))
	assert.Nil(t, ParseTime(""))
	assert.Nil(t, ParseTime("yesterday"))
}
