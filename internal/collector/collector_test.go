package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/internal/params"
	"github.com/policyedge/backend/internal/scoring"
	"github.com/policyedge/backend/internal/sources"
	"github.com/policyedge/backend/internal/tracker"
	"github.com/policyedge/backend/internal/tripwire"
	"github.com/policyedge/backend/pkg/config"
)

// fakeSource serves canned items keyed by record title, or fails outright.
type fakeSource struct {
	name     string
	enabled  bool
	items    []models.IntelligenceItem
	fetchErr error
	parseErr map[string]error
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Enabled() bool { return f.enabled }

func (f *fakeSource) Fetch(ctx context.Context) ([]sources.RawRecord, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	records := make([]sources.RawRecord, len(f.items))
	for i, item := range f.items {
		records[i] = sources.RawRecord{Title: item.Title}
	}
	return records, nil
}

func (f *fakeSource) Parse(raw sources.RawRecord) (*models.IntelligenceItem, error) {
	if err, ok := f.parseErr[raw.Title]; ok {
		return nil, err
	}
	for i := range f.items {
		if f.items[i].Title == raw.Title {
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, fmt.Errorf("unknown record %q", raw.Title)
}

func testScorer() *scoring.Engine {
	store := params.New(config.ScoringConfig{
		ImpactWeight:            0.4,
		UrgencyWeight:           0.3,
		RiskWeight:              0.2,
		ConfidenceWeight:        0.1,
		TripwireSensitivity:     0.7,
		PersonalizationStrength: 0.5,
	}, config.LearningConfig{
		ImportanceMin: 0.1, ImportanceMax: 2.0,
		CredibilityMin: 0.1, CredibilityMax: 2.0,
		SensitivityMin: 0.1, SensitivityMax: 1.0,
	}, nil)
	return scoring.NewEngine(store, tracker.New(config.LearningConfig{}, nil))
}

func item(id string, urgency, impact float64) models.IntelligenceItem {
	return models.IntelligenceItem{
		ID:           id,
		Title:        id,
		Content:      "content for " + id,
		Category:     models.CategoryPolicyShift,
		Source:       models.SourceRSSFeeds,
		UrgencyScore: urgency,
		ImpactScore:  impact,
		Timestamp:    time.Now().UTC(),
	}
}

func newTestCollector(adapters ...sources.Source) *Collector {
	return New(adapters, tripwire.NewMonitor(nil, nil), testScorer(), time.Second, nil)
}

func TestCollectAllMergesSources(t *testing.T) {
	t.Parallel()

	c := newTestCollector(
		&fakeSource{name: "one", enabled: true, items: []models.IntelligenceItem{item("a", 1, 1), item("b", 2, 2)}},
		&fakeSource{name: "two", enabled: true, items: []models.IntelligenceItem{item("c", 3, 3)}},
	)

	items, stats := c.CollectAll(context.Background())
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if stats.TotalItems != 3 || stats.AlertCount != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.PerSource["one"].Items != 2 || stats.PerSource["two"].Items != 1 {
		t.Fatalf("per-source stats = %+v", stats.PerSource)
	}
}

func TestCollectAllIsolatesFailingSource(t *testing.T) {
	t.Parallel()

	c := newTestCollector(
		&fakeSource{name: "broken", enabled: true, fetchErr: errors.New("connection refused")},
		&fakeSource{name: "healthy", enabled: true, items: []models.IntelligenceItem{item("a", 5, 5)}},
	)

	items, stats := c.CollectAll(context.Background())
	if len(items) != 1 {
		t.Fatalf("healthy source items lost: got %d, want 1", len(items))
	}
	if stats.PerSource["broken"].Error == "" {
		t.Fatal("broken source error not recorded")
	}
	if stats.PerSource["healthy"].Items != 1 {
		t.Fatalf("per-source stats = %+v", stats.PerSource)
	}
}

func TestCollectAllSkipsDisabledSources(t *testing.T) {
	t.Parallel()

	c := newTestCollector(
		&fakeSource{name: "off", enabled: false, items: []models.IntelligenceItem{item("a", 1, 1)}},
		&fakeSource{name: "on", enabled: true, items: []models.IntelligenceItem{item("b", 1, 1)}},
	)

	items, stats := c.CollectAll(context.Background())
	if len(items) != 1 || items[0].ID != "b" {
		t.Fatalf("disabled source contributed: %+v", items)
	}
	if _, tracked := stats.PerSource["off"]; tracked {
		t.Fatal("disabled source appears in stats")
	}
}

func TestCollectAllSkipsMalformedRecords(t *testing.T) {
	t.Parallel()

	c := newTestCollector(&fakeSource{
		name:    "partial",
		enabled: true,
		items:   []models.IntelligenceItem{item("good", 1, 1), item("bad", 2, 2)},
		parseErr: map[string]error{
			"bad": errors.New("missing title"),
		},
	})

	items, _ := c.CollectAll(context.Background())
	if len(items) != 1 || items[0].ID != "good" {
		t.Fatalf("malformed record handling wrong: %+v", items)
	}
}

func TestCollectAllStableSort(t *testing.T) {
	t.Parallel()

	// Sums: a=10, b=10, c=4. Equal sums keep arrival order, so a stays
	// ahead of b despite b's higher urgency.
	c := newTestCollector(&fakeSource{
		name:    "one",
		enabled: true,
		items: []models.IntelligenceItem{
			item("a", 5, 5),
			item("b", 9, 1),
			item("c", 2, 2),
		},
	})

	items, _ := c.CollectAll(context.Background())
	got := []string{items[0].ID, items[1].ID, items[2].ID}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sort order = %v, want %v", got, want)
		}
	}
}

func TestCollectAllFoldsInTripwireAlerts(t *testing.T) {
	t.Parallel()

	rules := []models.TripwireRule{{
		ID:        "crash_rule",
		Name:      "Crash Rule",
		Pattern:   "crash",
		Category:  models.CategoryMarketShock,
		Threshold: 7.0,
		Status:    models.TripwireActive,
	}}
	monitor := tripwire.NewMonitor(rules, nil)

	trigger := item("crash-item", 6, 8)
	trigger.Title = "Market crash underway"
	trigger.Content = "A crash is underway."
	trigger.Category = models.CategoryMarketShock

	c := New([]sources.Source{
		&fakeSource{name: "one", enabled: true, items: []models.IntelligenceItem{trigger}},
	}, monitor, testScorer(), time.Second, nil)

	items, stats := c.CollectAll(context.Background())
	if stats.AlertCount != 1 {
		t.Fatalf("alert count = %d, want 1", stats.AlertCount)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want item + alert", len(items))
	}

	foundAlert := false
	for _, it := range items {
		if it.Source == models.SourceTripwireAlerts {
			foundAlert = true
		}
	}
	if !foundAlert {
		t.Fatal("alert not folded into result")
	}
}

func TestAccessors(t *testing.T) {
	t.Parallel()

	old := item("old", 1, 1)
	old.Timestamp = time.Now().UTC().Add(-48 * time.Hour)
	fresh := item("fresh", 9, 9)
	fresh.Category = models.CategoryMarketShock

	c := newTestCollector(&fakeSource{
		name:    "one",
		enabled: true,
		items:   []models.IntelligenceItem{old, fresh},
	})
	c.CollectAll(context.Background())

	recent := c.RecentItems(24, 0)
	if len(recent) != 1 || recent[0].ID != "fresh" {
		t.Fatalf("RecentItems = %+v", recent)
	}

	byCategory := c.ItemsByCategory(models.CategoryMarketShock, 0)
	if len(byCategory) != 1 || byCategory[0].ID != "fresh" {
		t.Fatalf("ItemsByCategory = %+v", byCategory)
	}

	// fresh: 9*0.4 + 9*0.3 + 0*0.2 + 0 = 6.3; old scores far lower.
	top := c.ItemsAboveScore(6.0, 0)
	if len(top) != 1 || top[0].ID != "fresh" {
		t.Fatalf("ItemsAboveScore = %+v", top)
	}

	if got := c.LastStats().TotalItems; got != 2 {
		t.Fatalf("LastStats total = %d, want 2", got)
	}
}
