// Package tripwire evaluates collected items against operator-defined rules
// and synthesizes high-priority alert items on match.
package tripwire

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/models"
)

// Alert score scaling applied to the triggering item, re-clamped to [0,10].
const (
	impactScale  = 1.5
	urgencyScale = 1.3
	riskScale    = 1.5

	alertConfidence = 0.9
)

// Monitor holds the rule registry. Trigger bookkeeping is serialized under
// the registry lock; evaluation itself never fails.
type Monitor struct {
	mu     sync.Mutex
	rules  map[string]*models.TripwireRule
	logger *zap.Logger
}

func NewMonitor(rules []models.TripwireRule, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Monitor{
		rules:  make(map[string]*models.TripwireRule, len(rules)),
		logger: logger,
	}
	for i := range rules {
		rule := rules[i]
		m.rules[rule.ID] = &rule
	}
	return m
}

// DefaultRules is the rule set the service ships with.
func DefaultRules() []models.TripwireRule {
	now := time.Now().UTC()
	return []models.TripwireRule{
		{
			ID:          "market_crash_alert",
			Name:        "Market Crash Alert",
			Description: "Triggers on major market movements",
			Pattern:     "crash",
			Category:    models.CategoryMarketShock,
			Threshold:   7.0,
			Status:      models.TripwireActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "ai_breakthrough",
			Name:        "AI Breakthrough",
			Description: "Triggers on significant AI developments",
			Pattern:     "breakthrough",
			Category:    models.CategoryAIDevelopment,
			Threshold:   6.0,
			Status:      models.TripwireActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "regulatory_emergency",
			Name:        "Regulatory Emergency",
			Description: "Triggers on urgent regulatory changes",
			Pattern:     "emergency",
			Category:    models.CategoryRegulatoryChange,
			Threshold:   8.0,
			Status:      models.TripwireActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// Check evaluates every item against every rule and returns the synthesized
// alert items. Matched rules get their trigger count and timestamp bumped.
// Non-matches are silent.
func (m *Monitor) Check(items []models.IntelligenceItem) []models.IntelligenceItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alerts []models.IntelligenceItem

	for i := range items {
		item := &items[i]
		for _, rule := range m.rules {
			if !matches(item, rule) {
				continue
			}

			now := time.Now().UTC()
			rule.LastTriggered = &now
			rule.TriggerCount++

			alerts = append(alerts, buildAlert(item, rule))

			m.logger.Info("Tripwire triggered",
				zap.String("rule_id", rule.ID),
				zap.String("item_id", item.ID),
				zap.Int("trigger_count", rule.TriggerCount),
			)
		}
	}

	return alerts
}

// matches requires an active rule, a category match, a case-insensitive
// pattern hit in title+content, and impact at or above the rule threshold.
func matches(item *models.IntelligenceItem, rule *models.TripwireRule) bool {
	if rule.Status != models.TripwireActive {
		return false
	}
	if item.Category != rule.Category {
		return false
	}

	text := strings.ToLower(item.Title + " " + item.Content)
	if !strings.Contains(text, strings.ToLower(rule.Pattern)) {
		return false
	}

	return item.ImpactScore >= rule.Threshold
}

func buildAlert(item *models.IntelligenceItem, rule *models.TripwireRule) models.IntelligenceItem {
	tags := make([]string, 0, len(item.Tags)+1)
	tags = append(tags, item.Tags...)
	tags = append(tags, "tripwire_"+rule.ID)

	return models.IntelligenceItem{
		ID:       fmt.Sprintf("tripwire_%s_%s", rule.ID, item.ID),
		Title:    "TRIPWIRE ALERT: " + rule.Name,
		Content:  fmt.Sprintf("Tripwire '%s' triggered by: %s\n\nOriginal content:\n%s", rule.Name, item.Title, item.Content),
		Summary:  "Tripwire alert for " + rule.Name,
		Source:   models.SourceTripwireAlerts,
		Category: rule.Category,

		ConfidenceScore: alertConfidence,
		ImpactScore:     clamp10(item.ImpactScore * impactScale),
		UrgencyScore:    clamp10(item.UrgencyScore * urgencyScale),
		RiskScore:       clamp10(item.RiskScore * riskScale),

		Timestamp: time.Now().UTC(),
		Tags:      tags,
		SourceURL: item.SourceURL,
		Metadata: map[string]interface{}{
			"tripwire_id":      rule.ID,
			"tripwire_name":    rule.Name,
			"original_item_id": item.ID,
			"trigger_count":    rule.TriggerCount,
		},
	}
}

// Upsert adds or replaces a rule, preserving trigger bookkeeping when the
// rule already exists.
func (m *Monitor) Upsert(rule models.TripwireRule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.rules[rule.ID]; ok {
		rule.TriggerCount = existing.TriggerCount
		rule.LastTriggered = existing.LastTriggered
		rule.CreatedAt = existing.CreatedAt
	} else if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	if rule.Status == "" {
		rule.Status = models.TripwireActive
	}
	rule.UpdatedAt = time.Now().UTC()

	m.rules[rule.ID] = &rule
}

// SetStatus is the operator path for status transitions.
func (m *Monitor) SetStatus(id string, status models.TripwireStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, ok := m.rules[id]
	if !ok {
		return fmt.Errorf("tripwire rule %s not found", id)
	}
	rule.Status = status
	rule.UpdatedAt = time.Now().UTC()
	return nil
}

// Rules returns a point-in-time copy of the registry.
func (m *Monitor) Rules() []models.TripwireRule {
	m.mu.Lock()
	defer m.mu.Unlock()

	rules := make([]models.TripwireRule, 0, len(m.rules))
	for _, rule := range m.rules {
		rules = append(rules, *rule)
	}
	return rules
}

func clamp10(v float64) float64 {
	if v > 10 {
		return 10
	}
	if v < 0 {
		return 0
	}
	return v
}
