package params

import (
	"testing"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/config"
)

func testStore() *Store {
	return New(
		config.ScoringConfig{
			ImpactWeight:            0.4,
			UrgencyWeight:           0.3,
			RiskWeight:              0.2,
			ConfidenceWeight:        0.1,
			TripwireSensitivity:     0.7,
			PersonalizationStrength: 0.5,
		},
		config.LearningConfig{
			ImportanceMin:  0.1,
			ImportanceMax:  2.0,
			CredibilityMin: 0.1,
			CredibilityMax: 2.0,
			SensitivityMin: 0.1,
			SensitivityMax: 1.0,
		},
		nil,
	)
}

func TestNewSeedsDefaults(t *testing.T) {
	t.Parallel()

	s := testStore()
	snap := s.Snapshot()

	if snap.ScoringWeights.Impact != 0.4 || snap.ScoringWeights.Confidence != 0.1 {
		t.Fatalf("weights not seeded: %+v", snap.ScoringWeights)
	}
	for _, category := range models.Categories() {
		if snap.CategoryImportance[category] != 1.0 {
			t.Fatalf("category %s importance = %v, want 1.0", category, snap.CategoryImportance[category])
		}
	}
	for _, source := range models.Sources() {
		if snap.SourceCredibility[source] != 1.0 {
			t.Fatalf("source %s credibility = %v, want 1.0", source, snap.SourceCredibility[source])
		}
	}
	if snap.TripwireSensitivity != 0.7 {
		t.Fatalf("sensitivity = %v, want 0.7", snap.TripwireSensitivity)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	t.Parallel()

	s := testStore()
	snap := s.Snapshot()
	snap.CategoryImportance[models.CategoryMarketShock] = 99
	snap.SourceCredibility[models.SourceRSSFeeds] = 99

	fresh := s.Snapshot()
	if fresh.CategoryImportance[models.CategoryMarketShock] != 1.0 {
		t.Fatal("mutating a snapshot leaked into the store")
	}
	if fresh.SourceCredibility[models.SourceRSSFeeds] != 1.0 {
		t.Fatal("mutating a snapshot leaked into the store")
	}
}

func TestApplyCategoryImportance(t *testing.T) {
	t.Parallel()

	s := testStore()
	err := s.Apply(&models.LearningDelta{
		ChangeType: models.DeltaCategoryImportance,
		AfterState: map[string]interface{}{
			"category":   string(models.CategoryAIDevelopment),
			"importance": 1.4,
		},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := s.CategoryImportance(models.CategoryAIDevelopment); got != 1.4 {
		t.Fatalf("importance = %v, want 1.4", got)
	}
}

func TestApplyClampsToBounds(t *testing.T) {
	t.Parallel()

	s := testStore()
	err := s.Apply(&models.LearningDelta{
		ChangeType: models.DeltaCategoryImportance,
		AfterState: map[string]interface{}{
			"category":   string(models.CategoryMarketShock),
			"importance": 5.0,
		},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := s.CategoryImportance(models.CategoryMarketShock); got != 2.0 {
		t.Fatalf("importance = %v, want clamp at 2.0", got)
	}

	err = s.Apply(&models.LearningDelta{
		ChangeType: models.DeltaTripwireSensitivity,
		AfterState: map[string]interface{}{"sensitivity": -3.0},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := s.TripwireSensitivity(); got != 0.1 {
		t.Fatalf("sensitivity = %v, want clamp at 0.1", got)
	}
}

func TestApplySourceCredibility(t *testing.T) {
	t.Parallel()

	s := testStore()
	err := s.Apply(&models.LearningDelta{
		ChangeType: models.DeltaSourceCredibility,
		AfterState: map[string]interface{}{
			"source":      string(models.SourceRSSFeeds),
			"credibility": 1.2,
		},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := s.SourceCredibility(models.SourceRSSFeeds); got != 1.2 {
		t.Fatalf("credibility = %v, want 1.2", got)
	}
}

func TestApplyTimingOptimization(t *testing.T) {
	t.Parallel()

	s := testStore()
	err := s.Apply(&models.LearningDelta{
		ChangeType: models.DeltaTimingOptimization,
		AfterState: map[string]interface{}{
			"peak_hours": []interface{}{9, 14, float64(20)},
		},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	hours := s.Snapshot().OptimalDeliveryHours
	if len(hours) != 3 || hours[0] != 9 || hours[1] != 14 || hours[2] != 20 {
		t.Fatalf("delivery hours = %v", hours)
	}
}

func TestApplyUnknownChangeType(t *testing.T) {
	t.Parallel()

	s := testStore()
	before := s.Snapshot()

	err := s.Apply(&models.LearningDelta{
		ChangeType: "weight_rebalance",
		AfterState: map[string]interface{}{"impact_weight": 0.9},
	})
	if err == nil {
		t.Fatal("expected error for unknown change type")
	}

	after := s.Snapshot()
	if after.ScoringWeights != before.ScoringWeights {
		t.Fatal("unknown change type mutated weights")
	}
	if after.TripwireSensitivity != before.TripwireSensitivity {
		t.Fatal("unknown change type mutated sensitivity")
	}
}

func TestApplyMalformedAfterState(t *testing.T) {
	t.Parallel()

	s := testStore()
	err := s.Apply(&models.LearningDelta{
		ChangeType: models.DeltaCategoryImportance,
		AfterState: map[string]interface{}{"category": string(models.CategoryMarketShock)},
	})
	if err == nil {
		t.Fatal("expected error for missing importance field")
	}
	if got := s.CategoryImportance(models.CategoryMarketShock); got != 1.0 {
		t.Fatalf("failed apply mutated state: %v", got)
	}
}
