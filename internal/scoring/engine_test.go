package scoring

import (
	"math"
	"testing"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/internal/params"
	"github.com/policyedge/backend/internal/tracker"
	"github.com/policyedge/backend/pkg/config"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		ImpactWeight:            0.4,
		UrgencyWeight:           0.3,
		RiskWeight:              0.2,
		ConfidenceWeight:        0.1,
		TripwireSensitivity:     0.7,
		PersonalizationStrength: 0.5,
	}
}

func testLearningConfig() config.LearningConfig {
	return config.LearningConfig{
		ImportanceMin:  0.1,
		ImportanceMax:  2.0,
		CredibilityMin: 0.1,
		CredibilityMax: 2.0,
		SensitivityMin: 0.1,
		SensitivityMax: 1.0,
	}
}

func testEngine() (*Engine, *params.Store, *tracker.Tracker) {
	store := params.New(testScoringConfig(), testLearningConfig(), nil)
	tr := tracker.New(config.LearningConfig{}, nil)
	return NewEngine(store, tr), store, tr
}

func testItem() models.IntelligenceItem {
	return models.IntelligenceItem{
		ID:              "item-1",
		Category:        models.CategoryAIDevelopment,
		Source:          models.SourceRSSFeeds,
		ImpactScore:     8.0,
		UrgencyScore:    6.0,
		RiskScore:       4.0,
		ConfidenceScore: 0.5,
	}
}

func TestBaseScore(t *testing.T) {
	t.Parallel()

	engine, _, _ := testEngine()
	item := testItem()

	// 8*0.4 + 6*0.3 + 4*0.2 + 0.5*10*0.1 = 6.3
	if got := engine.BaseScore(&item); math.Abs(got-6.3) > 1e-9 {
		t.Fatalf("BaseScore = %v, want 6.3", got)
	}
}

func TestPersonalizedScoreEqualsBaseWithoutActions(t *testing.T) {
	t.Parallel()

	engine, _, _ := testEngine()
	item := testItem()

	base := engine.BaseScore(&item)
	if got := engine.PersonalizedScore("never-seen-user", &item); got != base {
		t.Fatalf("PersonalizedScore = %v, want base %v for untracked user", got, base)
	}
}

func TestPersonalizedScoreBoostsByAffinity(t *testing.T) {
	t.Parallel()

	engine, _, tr := testEngine()
	item := testItem()

	meta := map[string]interface{}{"category": string(models.CategoryAIDevelopment)}
	for i := 0; i < 5; i++ {
		tr.Track("user-1", models.ActionRead, item.ID, "intelligence_item", meta)
	}

	base := engine.BaseScore(&item)
	got := engine.PersonalizedScore("user-1", &item)

	// 5 engagements: boost = 1 + (5/10)*0.5 = 1.25, credibility 1.0.
	want := base * 1.25
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("PersonalizedScore = %v, want %v", got, want)
	}
}

func TestPersonalizedScoreUsesCredibility(t *testing.T) {
	t.Parallel()

	engine, store, tr := testEngine()
	item := testItem()

	tr.Track("user-1", models.ActionClick, item.ID, "intelligence_item", nil)

	err := store.Apply(&models.LearningDelta{
		ChangeType: models.DeltaSourceCredibility,
		AfterState: map[string]interface{}{
			"source":      string(models.SourceRSSFeeds),
			"credibility": 0.5,
		},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	base := engine.BaseScore(&item)
	got := engine.PersonalizedScore("user-1", &item)

	// No category affinity, so only the credibility multiplier applies.
	if math.Abs(got-base*0.5) > 1e-9 {
		t.Fatalf("PersonalizedScore = %v, want %v", got, base*0.5)
	}
}

func TestPersonalizedScoreCappedAtTen(t *testing.T) {
	t.Parallel()

	engine, _, tr := testEngine()
	item := testItem()
	item.ImpactScore = 10
	item.UrgencyScore = 10
	item.RiskScore = 10
	item.ConfidenceScore = 1.0

	meta := map[string]interface{}{"category": string(models.CategoryAIDevelopment)}
	for i := 0; i < 50; i++ {
		tr.Track("user-1", models.ActionBookmark, item.ID, "intelligence_item", meta)
	}

	if got := engine.PersonalizedScore("user-1", &item); got != 10.0 {
		t.Fatalf("PersonalizedScore = %v, want cap at 10", got)
	}
}
