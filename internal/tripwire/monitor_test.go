package tripwire

import (
	"strings"
	"testing"

	"github.com/policyedge/backend/internal/models"
)

func marketItem(impact float64) models.IntelligenceItem {
	return models.IntelligenceItem{
		ID:           "item-1",
		Title:        "Market crash feared",
		Content:      "Analysts warn of a crash in equities.",
		Category:     models.CategoryMarketShock,
		ImpactScore:  impact,
		UrgencyScore: 5.0,
		RiskScore:    4.0,
		Tags:         []string{"equities"},
	}
}

func TestCheckThresholdBoundary(t *testing.T) {
	t.Parallel()

	m := NewMonitor(DefaultRules(), nil)

	if alerts := m.Check([]models.IntelligenceItem{marketItem(6.9)}); len(alerts) != 0 {
		t.Fatalf("impact 6.9 must not trigger the 7.0 rule, got %d alerts", len(alerts))
	}
	if alerts := m.Check([]models.IntelligenceItem{marketItem(7.0)}); len(alerts) != 1 {
		t.Fatalf("impact 7.0 must trigger the 7.0 rule, got %d alerts", len(alerts))
	}
}

func TestCheckAlertShape(t *testing.T) {
	t.Parallel()

	m := NewMonitor(DefaultRules(), nil)

	alerts := m.Check([]models.IntelligenceItem{marketItem(8.0)})
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	alert := alerts[0]

	if !strings.HasPrefix(alert.Title, "TRIPWIRE ALERT: ") {
		t.Errorf("alert title = %q", alert.Title)
	}
	if alert.Source != models.SourceTripwireAlerts {
		t.Errorf("alert source = %q", alert.Source)
	}
	if alert.ConfidenceScore != 0.9 {
		t.Errorf("alert confidence = %v, want 0.9", alert.ConfidenceScore)
	}
	// 8.0*1.5 clamps to 10; 5.0*1.3 = 6.5; 4.0*1.5 = 6.0.
	if alert.ImpactScore != 10.0 {
		t.Errorf("alert impact = %v, want 10", alert.ImpactScore)
	}
	if alert.UrgencyScore != 6.5 {
		t.Errorf("alert urgency = %v, want 6.5", alert.UrgencyScore)
	}
	if alert.RiskScore != 6.0 {
		t.Errorf("alert risk = %v, want 6.0", alert.RiskScore)
	}

	if alert.Metadata["tripwire_id"] != "market_crash_alert" {
		t.Errorf("metadata tripwire_id = %v", alert.Metadata["tripwire_id"])
	}
	if alert.Metadata["original_item_id"] != "item-1" {
		t.Errorf("metadata original_item_id = %v", alert.Metadata["original_item_id"])
	}

	found := false
	for _, tag := range alert.Tags {
		if tag == "tripwire_market_crash_alert" {
			found = true
		}
	}
	if !found {
		t.Errorf("alert tags missing rule tag: %v", alert.Tags)
	}
}

func TestCheckBumpsTriggerBookkeeping(t *testing.T) {
	t.Parallel()

	m := NewMonitor(DefaultRules(), nil)

	m.Check([]models.IntelligenceItem{marketItem(9.0)})
	m.Check([]models.IntelligenceItem{marketItem(9.0)})

	for _, rule := range m.Rules() {
		if rule.ID != "market_crash_alert" {
			continue
		}
		if rule.TriggerCount != 2 {
			t.Fatalf("trigger count = %d, want 2", rule.TriggerCount)
		}
		if rule.LastTriggered == nil {
			t.Fatal("last triggered not set")
		}
		return
	}
	t.Fatal("market_crash_alert rule not found")
}

func TestCheckSkipsByStatusCategoryAndPattern(t *testing.T) {
	t.Parallel()

	m := NewMonitor(DefaultRules(), nil)

	// Disabled rule never fires.
	if err := m.SetStatus("market_crash_alert", models.TripwireDisabled); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if alerts := m.Check([]models.IntelligenceItem{marketItem(9.0)}); len(alerts) != 0 {
		t.Fatalf("disabled rule fired: %d alerts", len(alerts))
	}

	m2 := NewMonitor(DefaultRules(), nil)

	// Category mismatch.
	wrongCategory := marketItem(9.0)
	wrongCategory.Category = models.CategoryAIDevelopment
	if alerts := m2.Check([]models.IntelligenceItem{wrongCategory}); len(alerts) != 0 {
		t.Fatalf("category mismatch fired: %d alerts", len(alerts))
	}

	// Pattern absent.
	noPattern := marketItem(9.0)
	noPattern.Title = "Markets calm"
	noPattern.Content = "Nothing to see."
	if alerts := m2.Check([]models.IntelligenceItem{noPattern}); len(alerts) != 0 {
		t.Fatalf("pattern miss fired: %d alerts", len(alerts))
	}
}

func TestUpsertPreservesBookkeeping(t *testing.T) {
	t.Parallel()

	m := NewMonitor(DefaultRules(), nil)
	m.Check([]models.IntelligenceItem{marketItem(9.0)})

	m.Upsert(models.TripwireRule{
		ID:        "market_crash_alert",
		Name:      "Market Crash Alert v2",
		Pattern:   "collapse",
		Category:  models.CategoryMarketShock,
		Threshold: 8.0,
	})

	for _, rule := range m.Rules() {
		if rule.ID != "market_crash_alert" {
			continue
		}
		if rule.TriggerCount != 1 {
			t.Fatalf("upsert lost trigger count: %d", rule.TriggerCount)
		}
		if rule.Pattern != "collapse" {
			t.Fatalf("upsert did not replace pattern: %q", rule.Pattern)
		}
		if rule.Status != models.TripwireActive {
			t.Fatalf("upsert status = %q", rule.Status)
		}
		return
	}
	t.Fatal("rule not found after upsert")
}

func TestSetStatusUnknownRule(t *testing.T) {
	t.Parallel()

	m := NewMonitor(nil, nil)
	if err := m.SetStatus("missing", models.TripwireResolved); err == nil {
		t.Fatal("expected error for unknown rule id")
	}
}
