// Package params owns the live, mutable scoring state. Every scoring and
// learning call receives an explicit *Store handle; the only mutation path
// is Apply, which consumes learning deltas.
package params

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/config"
)

// Weights are the base-score coefficients. They are deliberately not
// validated to sum to 1.0: totals above or below unity scale every base
// score proportionally, which operators use on purpose.
type Weights struct {
	Impact     float64 `json:"impact_weight"`
	Urgency    float64 `json:"urgency_weight"`
	Risk       float64 `json:"risk_weight"`
	Confidence float64 `json:"confidence_weight"`
}

// Snapshot is a read-only copy of the full parameter state.
type Snapshot struct {
	ScoringWeights          Weights                      `json:"scoring_weights"`
	CategoryImportance      map[models.Category]float64  `json:"category_importance"`
	SourceCredibility       map[models.Source]float64    `json:"source_credibility"`
	TripwireSensitivity     float64                      `json:"tripwire_sensitivity"`
	PersonalizationStrength float64                      `json:"personalization_strength"`
	OptimalDeliveryHours    []int                        `json:"optimal_delivery_hours,omitempty"`
}

// Bounds clamp learned values on application.
type Bounds struct {
	ImportanceMin, ImportanceMax   float64
	CredibilityMin, CredibilityMax float64
	SensitivityMin, SensitivityMax float64
}

// Store holds the process-wide parameters behind a lock. Reads take a
// snapshot; writers go through Apply.
type Store struct {
	mu     sync.RWMutex
	state  Snapshot
	bounds Bounds
	logger *zap.Logger
}

func New(scoring config.ScoringConfig, learning config.LearningConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	importance := make(map[models.Category]float64)
	for _, category := range models.Categories() {
		importance[category] = 1.0
	}
	credibility := make(map[models.Source]float64)
	for _, source := range models.Sources() {
		credibility[source] = 1.0
	}

	return &Store{
		state: Snapshot{
			ScoringWeights: Weights{
				Impact:     scoring.ImpactWeight,
				Urgency:    scoring.UrgencyWeight,
				Risk:       scoring.RiskWeight,
				Confidence: scoring.ConfidenceWeight,
			},
			CategoryImportance:      importance,
			SourceCredibility:       credibility,
			TripwireSensitivity:     scoring.TripwireSensitivity,
			PersonalizationStrength: scoring.PersonalizationStrength,
		},
		bounds: Bounds{
			ImportanceMin:  learning.ImportanceMin,
			ImportanceMax:  learning.ImportanceMax,
			CredibilityMin: learning.CredibilityMin,
			CredibilityMax: learning.CredibilityMax,
			SensitivityMin: learning.SensitivityMin,
			SensitivityMax: learning.SensitivityMax,
		},
		logger: logger,
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyLocked()
}

func (s *Store) copyLocked() Snapshot {
	snap := s.state

	snap.CategoryImportance = make(map[models.Category]float64, len(s.state.CategoryImportance))
	for category, value := range s.state.CategoryImportance {
		snap.CategoryImportance[category] = value
	}
	snap.SourceCredibility = make(map[models.Source]float64, len(s.state.SourceCredibility))
	for source, value := range s.state.SourceCredibility {
		snap.SourceCredibility[source] = value
	}
	if s.state.OptimalDeliveryHours != nil {
		snap.OptimalDeliveryHours = append([]int(nil), s.state.OptimalDeliveryHours...)
	}

	return snap
}

func (s *Store) Weights() Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ScoringWeights
}

func (s *Store) CategoryImportance(category models.Category) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if value, ok := s.state.CategoryImportance[category]; ok {
		return value
	}
	return 1.0
}

func (s *Store) SourceCredibility(source models.Source) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if value, ok := s.state.SourceCredibility[source]; ok {
		return value
	}
	return 1.0
}

func (s *Store) TripwireSensitivity() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.TripwireSensitivity
}

func (s *Store) PersonalizationStrength() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PersonalizationStrength
}

// Apply mutates exactly one parameter path according to the delta's change
// type. Unknown change types or malformed after-states error without
// touching state.
func (s *Store) Apply(delta *models.LearningDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch delta.ChangeType {
	case models.DeltaCategoryImportance:
		category, err := stringField(delta.AfterState, "category")
		if err != nil {
			return err
		}
		importance, err := floatField(delta.AfterState, "importance")
		if err != nil {
			return err
		}
		s.state.CategoryImportance[models.Category(category)] =
			clamp(importance, s.bounds.ImportanceMin, s.bounds.ImportanceMax)

	case models.DeltaSourceCredibility:
		source, err := stringField(delta.AfterState, "source")
		if err != nil {
			return err
		}
		credibility, err := floatField(delta.AfterState, "credibility")
		if err != nil {
			return err
		}
		s.state.SourceCredibility[models.Source(source)] =
			clamp(credibility, s.bounds.CredibilityMin, s.bounds.CredibilityMax)

	case models.DeltaTripwireSensitivity:
		sensitivity, err := floatField(delta.AfterState, "sensitivity")
		if err != nil {
			return err
		}
		s.state.TripwireSensitivity =
			clamp(sensitivity, s.bounds.SensitivityMin, s.bounds.SensitivityMax)

	case models.DeltaTimingOptimization:
		hours, err := intSliceField(delta.AfterState, "peak_hours")
		if err != nil {
			return err
		}
		s.state.OptimalDeliveryHours = hours

	default:
		return fmt.Errorf("unknown change type %q", delta.ChangeType)
	}

	s.logger.Info("Applied learning delta",
		zap.String("delta_id", delta.ID),
		zap.String("change_type", delta.ChangeType),
		zap.Float64("confidence", delta.Confidence),
	)
	return nil
}

func stringField(state map[string]interface{}, key string) (string, error) {
	value, ok := state[key].(string)
	if !ok {
		return "", fmt.Errorf("after state missing string field %q", key)
	}
	return value, nil
}

func floatField(state map[string]interface{}, key string) (float64, error) {
	switch value := state[key].(type) {
	case float64:
		return value, nil
	case int:
		return float64(value), nil
	default:
		return 0, fmt.Errorf("after state missing numeric field %q", key)
	}
}

func intSliceField(state map[string]interface{}, key string) ([]int, error) {
	switch value := state[key].(type) {
	case []int:
		return append([]int(nil), value...), nil
	case []interface{}:
		hours := make([]int, 0, len(value))
		for _, raw := range value {
			switch hour := raw.(type) {
			case int:
				hours = append(hours, hour)
			case float64:
				hours = append(hours, int(hour))
			default:
				return nil, fmt.Errorf("after state field %q holds non-numeric entry", key)
			}
		}
		return hours, nil
	default:
		return nil, fmt.Errorf("after state missing hour list field %q", key)
	}
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
