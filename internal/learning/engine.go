// Package learning inspects recent user actions and proposes bounded,
// confidence-weighted adjustments to the system parameters. The update
// formulas are heuristic and intentionally preserved as-is; every constant
// involved is surfaced through config.
package learning

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/metrics"
	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/internal/params"
	"github.com/policyedge/backend/internal/tracker"
	"github.com/policyedge/backend/pkg/config"
)

// Engagement scores per action type, as observed in production behavior.
// Category learning grades depth of engagement; source learning grades
// interaction depth including plain clicks; tripwire learning additionally
// penalizes dismissals. The dismiss(-1) asymmetry is deliberate behavior,
// not a bug to correct.
var (
	categoryEngagementScores = map[models.ActionType]float64{
		models.ActionRead:     1,
		models.ActionBookmark: 2,
		models.ActionShare:    3,
	}
	sourceInteractionScores = map[models.ActionType]float64{
		models.ActionClick:    1,
		models.ActionRead:     2,
		models.ActionBookmark: 3,
		models.ActionShare:    4,
	}
	tripwireResponseScores = map[models.ActionType]float64{
		models.ActionDismiss:  -1,
		models.ActionClick:    1,
		models.ActionRead:     2,
		models.ActionBookmark: 3,
		models.ActionShare:    4,
	}
)

const peakHourCount = 3

// Engine runs the learning strategies and keeps the delta audit trail.
type Engine struct {
	cfg     config.LearningConfig
	params  *params.Store
	tracker *tracker.Tracker
	logger  *zap.Logger

	mu        sync.RWMutex
	deltas    []models.LearningDelta
	lastCycle time.Time
}

func NewEngine(cfg config.LearningConfig, store *params.Store, actions *tracker.Tracker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		params:  store,
		tracker: actions,
		logger:  logger,
	}
}

// AnalyzeAndLearn pulls actions from the lookback window, runs all four
// strategies, applies the resulting deltas, and returns them. Deltas are
// stored whether or not application succeeded; one failed application never
// blocks the rest.
func (e *Engine) AnalyzeAndLearn(lookbackHours int) []models.LearningDelta {
	actions := e.tracker.RecentActions(lookbackHours)
	if len(actions) == 0 {
		return nil
	}

	var deltas []models.LearningDelta
	deltas = append(deltas, e.learnCategoryImportance(actions)...)
	deltas = append(deltas, e.learnSourceCredibility(actions)...)
	deltas = append(deltas, e.learnTiming(actions)...)
	deltas = append(deltas, e.learnTripwireSensitivity(actions)...)

	applied := 0
	for i := range deltas {
		if err := e.params.Apply(&deltas[i]); err != nil {
			e.logger.Error("Failed to apply learning delta",
				zap.String("delta_id", deltas[i].ID),
				zap.String("change_type", deltas[i].ChangeType),
				zap.Error(err),
			)
			metrics.LearningDeltas.WithLabelValues(deltas[i].ChangeType, "failed").Inc()
			continue
		}
		metrics.LearningDeltas.WithLabelValues(deltas[i].ChangeType, "applied").Inc()
		applied++
	}

	e.mu.Lock()
	e.deltas = append(e.deltas, deltas...)
	e.lastCycle = time.Now().UTC()
	e.mu.Unlock()

	e.logger.Info("Learning cycle complete",
		zap.Int("actions_analyzed", len(actions)),
		zap.Int("deltas_generated", len(deltas)),
		zap.Int("deltas_applied", applied),
	)

	return deltas
}

// learnCategoryImportance nudges a category's importance multiplier toward
// the average engagement depth observed for it.
func (e *Engine) learnCategoryImportance(actions []models.UserAction) []models.LearningDelta {
	engagement := map[models.Category][]float64{}
	sources := map[models.Category][]string{}

	for _, action := range actions {
		category, ok := metaCategory(action)
		if !ok {
			continue
		}
		sources[category] = append(sources[category], action.ID)
		if score, scored := categoryEngagementScores[action.ActionType]; scored {
			engagement[category] = append(engagement[category], score)
		}
	}

	var deltas []models.LearningDelta
	for category, scores := range engagement {
		if len(scores) < e.cfg.CategoryMinSamples {
			continue
		}

		current := e.params.CategoryImportance(category)
		proposed := clamp(current*(0.9+mean(scores)/10), e.cfg.ImportanceMin, e.cfg.ImportanceMax)
		if abs(proposed-current) <= e.cfg.ChangeEpsilon {
			continue
		}

		deltas = append(deltas, models.LearningDelta{
			ID:            deltaID("category_importance"),
			ChangeType:    models.DeltaCategoryImportance,
			Description:   fmt.Sprintf("Updated importance for category %s based on user engagement", category),
			BeforeState:   map[string]interface{}{"category": string(category), "importance": current},
			AfterState:    map[string]interface{}{"category": string(category), "importance": proposed},
			Confidence:    confidence(len(scores), e.cfg.CategoryReferenceCount),
			AppliedAt:     time.Now().UTC(),
			SourceActions: sources[category],
		})
	}
	return deltas
}

// learnSourceCredibility nudges a source's credibility multiplier toward the
// average interaction depth observed for it.
func (e *Engine) learnSourceCredibility(actions []models.UserAction) []models.LearningDelta {
	interactions := map[models.Source][]float64{}
	sources := map[models.Source][]string{}

	for _, action := range actions {
		source, ok := metaSource(action)
		if !ok {
			continue
		}
		sources[source] = append(sources[source], action.ID)
		if score, scored := sourceInteractionScores[action.ActionType]; scored {
			interactions[source] = append(interactions[source], score)
		}
	}

	var deltas []models.LearningDelta
	for source, scores := range interactions {
		if len(scores) < e.cfg.SourceMinSamples {
			continue
		}

		current := e.params.SourceCredibility(source)
		proposed := clamp(current*(0.8+mean(scores)/10), e.cfg.CredibilityMin, e.cfg.CredibilityMax)
		if abs(proposed-current) <= e.cfg.ChangeEpsilon {
			continue
		}

		deltas = append(deltas, models.LearningDelta{
			ID:            deltaID("source_credibility"),
			ChangeType:    models.DeltaSourceCredibility,
			Description:   fmt.Sprintf("Updated credibility for source %s based on user interactions", source),
			BeforeState:   map[string]interface{}{"source": string(source), "credibility": current},
			AfterState:    map[string]interface{}{"source": string(source), "credibility": proposed},
			Confidence:    confidence(len(scores), e.cfg.SourceReferenceCount),
			AppliedAt:     time.Now().UTC(),
			SourceActions: sources[source],
		})
	}
	return deltas
}

// learnTiming records the top engagement hours as the optimal delivery
// window.
func (e *Engine) learnTiming(actions []models.UserAction) []models.LearningDelta {
	hourlyActivity := map[int]int{}
	engagementHours := map[int]int{}
	var actionIDs []string

	for _, action := range actions {
		hour := action.Timestamp.Hour()
		hourlyActivity[hour]++
		actionIDs = append(actionIDs, action.ID)

		if action.ActionType == models.ActionBookmark || action.ActionType == models.ActionShare {
			engagementHours[hour]++
		}
	}

	if len(hourlyActivity) == 0 || len(engagementHours) == 0 {
		return nil
	}

	peakHours := topHours(engagementHours, peakHourCount)
	snapshot := e.params.Snapshot()

	before := []interface{}{}
	for _, hour := range snapshot.OptimalDeliveryHours {
		before = append(before, hour)
	}
	after := make([]interface{}, 0, len(peakHours))
	for _, hour := range peakHours {
		after = append(after, hour)
	}

	return []models.LearningDelta{{
		ID:            deltaID("timing_optimization"),
		ChangeType:    models.DeltaTimingOptimization,
		Description:   "Updated optimal delivery timing based on user engagement patterns",
		BeforeState:   map[string]interface{}{"peak_hours": before},
		AfterState:    map[string]interface{}{"peak_hours": after},
		Confidence:    confidence(len(actions), e.cfg.TimingReferenceCount),
		AppliedAt:     time.Now().UTC(),
		SourceActions: actionIDs,
	}}
}

// learnTripwireSensitivity walks the global sensitivity down a fixed step
// when users dismiss a tripwire's alerts, up a smaller step when they
// clearly engage, with a dead zone in between.
func (e *Engine) learnTripwireSensitivity(actions []models.UserAction) []models.LearningDelta {
	responses := map[string][]float64{}
	sources := map[string][]string{}

	for _, action := range actions {
		if action.TargetType != "intelligence_item" {
			continue
		}
		if source, _ := action.Metadata["source"].(string); source != string(models.SourceTripwireAlerts) {
			continue
		}
		tripwireID, _ := action.Metadata["tripwire_id"].(string)
		if tripwireID == "" {
			continue
		}

		sources[tripwireID] = append(sources[tripwireID], action.ID)
		responses[tripwireID] = append(responses[tripwireID], tripwireResponseScores[action.ActionType])
	}

	current := e.params.TripwireSensitivity()

	var deltas []models.LearningDelta
	for tripwireID, scores := range responses {
		if len(scores) < e.cfg.TripwireMinSamples {
			continue
		}

		avg := mean(scores)
		var proposed float64
		switch {
		case avg < 0:
			proposed = clamp(current-e.cfg.SensitivityDownStep, e.cfg.SensitivityMin, e.cfg.SensitivityMax)
		case avg > 1:
			proposed = clamp(current+e.cfg.SensitivityUpStep, e.cfg.SensitivityMin, e.cfg.SensitivityMax)
		default:
			continue
		}

		deltas = append(deltas, models.LearningDelta{
			ID:            deltaID("tripwire_sensitivity"),
			ChangeType:    models.DeltaTripwireSensitivity,
			Description:   fmt.Sprintf("Updated tripwire sensitivity for %s based on user responses", tripwireID),
			BeforeState:   map[string]interface{}{"tripwire_id": tripwireID, "sensitivity": current},
			AfterState:    map[string]interface{}{"tripwire_id": tripwireID, "sensitivity": proposed},
			Confidence:    confidence(len(scores), e.cfg.TripwireReferenceCount),
			AppliedAt:     time.Now().UTC(),
			SourceActions: sources[tripwireID],
		})
	}
	return deltas
}

// Deltas returns the most recent entries of the audit trail, newest last.
func (e *Engine) Deltas(limit int) []models.LearningDelta {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if limit <= 0 || limit > len(e.deltas) {
		limit = len(e.deltas)
	}
	result := make([]models.LearningDelta, limit)
	copy(result, e.deltas[len(e.deltas)-limit:])
	return result
}

// HealthMetrics summarizes the learning loop's state.
type HealthMetrics struct {
	TotalActionsTracked int             `json:"total_actions_tracked"`
	TotalLearningDeltas int             `json:"total_learning_deltas"`
	UniqueUsers         int             `json:"unique_users"`
	DeltasLastDay       int             `json:"deltas_last_day"`
	SystemParameters    params.Snapshot `json:"system_parameters"`
	LastLearningCycle   *time.Time      `json:"last_learning_cycle,omitempty"`
}

func (e *Engine) Health() HealthMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	lastDay := 0
	for _, delta := range e.deltas {
		if !delta.AppliedAt.Before(dayAgo) {
			lastDay++
		}
	}

	health := HealthMetrics{
		TotalActionsTracked: e.tracker.TotalActions(),
		TotalLearningDeltas: len(e.deltas),
		UniqueUsers:         e.tracker.UniqueUsers(),
		DeltasLastDay:       lastDay,
		SystemParameters:    e.params.Snapshot(),
	}
	if !e.lastCycle.IsZero() {
		cycle := e.lastCycle
		health.LastLearningCycle = &cycle
	}
	return health
}

func metaCategory(action models.UserAction) (models.Category, bool) {
	category, _ := action.Metadata["category"].(string)
	if category == "" {
		return "", false
	}
	return models.Category(category), true
}

func metaSource(action models.UserAction) (models.Source, bool) {
	source, _ := action.Metadata["source"].(string)
	if source == "" {
		return "", false
	}
	return models.Source(source), true
}

func topHours(counts map[int]int, n int) []int {
	hours := make([]int, 0, len(counts))
	for hour := range counts {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	return hours
}

func deltaID(kind string) string {
	return fmt.Sprintf("delta_%s_%s", kind, uuid.NewString())
}

func confidence(samples, reference int) float64 {
	c := float64(samples) / float64(reference)
	if c > 1 {
		return 1
	}
	return c
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
