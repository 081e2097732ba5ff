package reconcile

import (
	"testing"
	"time"

	"github.com/ManuelReschke/SchoolPay/app/models"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "SUCCESS", want: "success"},
		{in: "success", want: "success"},
		{in: "Success", want: "success"},
		{in: " success ", want: "success"},
		{in: "FAILURE", want: "failed"},
		{in: "FAILED", want: "failed"},
		{in: "failed", want: "failed"},
		{in: "PENDING", want: "pending"},
		{in: "PROCESSING", want: "pending"},
		{in: "", want: "pending"},
		{in: "USER_DROPPED", want: "pending"},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.in); got != tt.want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusRank(t *testing.T) {
	if statusRank("pending") != statusRank("processing") {
		t.Fatalf("expected pending and processing to share a rank")
	}
	if statusRank("pending") >= statusRank("success") {
		t.Fatalf("expected success to outrank pending")
	}
	if statusRank("success") != statusRank("failed") {
		t.Fatalf("expected success and failed to share a rank")
	}
	if statusRank("failed") >= statusRank("refunded") {
		t.Fatalf("expected refunded to outrank failed")
	}
}

func TestShouldApply(t *testing.T) {
	earlier := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Minute)

	stored := func(status string, at *time.Time) *models.OrderStatus {
		return &models.OrderStatus{Status: status, PaymentTime: at}
	}

	tests := []struct {
		name     string
		stored   *models.OrderStatus
		incoming string
		at       *time.Time
		want     bool
	}{
		{name: "no stored status", stored: nil, incoming: "pending", want: true},
		{name: "pending to success", stored: stored("pending", nil), incoming: "success", want: true},
		{name: "same pending", stored: stored("pending", nil), incoming: "pending", want: true},
		{name: "success duplicate", stored: stored("success", &earlier), incoming: "success", want: true},
		{name: "success to pending", stored: stored("success", &earlier), incoming: "pending", at: &later, want: false},
		{name: "success to failed older", stored: stored("success", &later), incoming: "failed", at: &earlier, want: false},
		{name: "success to failed without time", stored: stored("success", &earlier), incoming: "failed", want: false},
		{name: "success to failed newer", stored: stored("success", &earlier), incoming: "failed", at: &later, want: false},
		{name: "success without time to failed with time", stored: stored("success", nil), incoming: "failed", at: &later, want: false},
		{name: "failed to success newer", stored: stored("failed", &earlier), incoming: "success", at: &later, want: true},
		{name: "failed without time to success with time", stored: stored("failed", nil), incoming: "success", at: &later, want: true},
		{name: "refunded stays", stored: stored("refunded", &earlier), incoming: "success", at: &later, want: false},
	}

	for _, tt := range tests {
		if got := shouldApply(tt.stored, tt.incoming, tt.at); got != tt.want {
			t.Fatalf("%s: shouldApply = %v, want %v", tt.name, got, tt.want)
		}
	}
}
