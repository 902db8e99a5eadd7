package entitlements

import (
	"testing"

	"github.com/EdukitaHQ/edukita/app/models"
)

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{in: "free", want: PlanFree},
		{in: "premium", want: PlanPremium},
		{in: "premium_plus", want: PlanPremiumPlus},
		{in: "PREMIUM_PLUS", want: PlanPremiumPlus},
		{in: "invalid", want: PlanFree},
	}

	for _, tt := range tests {
		if got := NormalizePlan(tt.in); got != tt.want {
			t.Fatalf("NormalizePlan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlanRank(t *testing.T) {
	if PlanRank(PlanFree) >= PlanRank(PlanPremium) {
		t.Fatalf("expected premium to outrank free")
	}
	if PlanRank(PlanPremium) >= PlanRank(PlanPremiumPlus) {
		t.Fatalf("expected premium_plus to outrank premium")
	}
}

func TestDailyLimit(t *testing.T) {
	if got := DailyLimit(PlanFree, models.UsageTypeMentorChat); got != 30 {
		t.Fatalf("free mentor_chat limit = %d, want 30", got)
	}
	if got := DailyLimit(PlanPremium, models.UsageTypeMentorChat); got != Unlimited {
		t.Fatalf("premium mentor_chat limit = %d, want unlimited", got)
	}
	if got := DailyLimit(PlanPremiumPlus, models.UsageTypeVideoDownload); got != Unlimited {
		t.Fatalf("premium_plus video_download limit = %d, want unlimited", got)
	}
	// Unknown usage types are not metered.
	if got := DailyLimit(PlanFree, "course_browse"); got != Unlimited {
		t.Fatalf("unmetered type limit = %d, want unlimited", got)
	}
}
