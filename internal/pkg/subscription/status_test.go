package subscription

import (
	"testing"
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 10)
	past := now.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		status  string
		endDate time.Time
		want    string
	}{
		{name: "active within period", status: models.SubscriptionStatusActive, endDate: future, want: models.SubscriptionStatusActive},
		{name: "active past end date reads expired", status: models.SubscriptionStatusActive, endDate: past, want: models.SubscriptionStatusExpired},
		{name: "cancelled within period stays cancelled", status: models.SubscriptionStatusCancelled, endDate: future, want: models.SubscriptionStatusCancelled},
		{name: "cancelled past end date reads expired", status: models.SubscriptionStatusCancelled, endDate: past, want: models.SubscriptionStatusExpired},
		{name: "end date exactly now is expired", status: models.SubscriptionStatusActive, endDate: now, want: models.SubscriptionStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveStatus(tt.status, tt.endDate, now); got != tt.want {
				t.Fatalf("EffectiveStatus(%q, %v) = %q, want %q", tt.status, tt.endDate, got, tt.want)
			}
		})
	}
}

func TestEntitles(t *testing.T) {
	if !Entitles(models.SubscriptionStatusActive) {
		t.Fatalf("active must entitle")
	}
	if !Entitles(models.SubscriptionStatusCancelled) {
		t.Fatalf("cancelled must keep entitling until end date")
	}
	if Entitles(models.SubscriptionStatusExpired) {
		t.Fatalf("expired must not entitle")
	}
}

func TestPeriodEnd(t *testing.T) {
	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	if got := PeriodEnd(start, models.BillingCycleMonthly); !got.Equal(start.AddDate(0, 1, 0)) {
		t.Fatalf("monthly period end = %v", got)
	}
	if got := PeriodEnd(start, models.BillingCycleYearly); !got.Equal(start.AddDate(1, 0, 0)) {
		t.Fatalf("yearly period end = %v", got)
	}
}
