// Package scoring computes base and personalized relevance scores from the
// live system parameters.
package scoring

import (
	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/internal/params"
	"github.com/policyedge/backend/internal/tracker"
)

const maxScore = 10.0

// Engine reads live weights from the parameter store and preference counts
// from the tracker. It holds no state of its own.
type Engine struct {
	params  *params.Store
	tracker *tracker.Tracker
}

func NewEngine(store *params.Store, actions *tracker.Tracker) *Engine {
	return &Engine{params: store, tracker: actions}
}

// BaseScore is the weighted sum of the item's scores, with confidence lifted
// onto the 0-10 scale.
func (e *Engine) BaseScore(item *models.IntelligenceItem) float64 {
	weights := e.params.Weights()

	return item.ImpactScore*weights.Impact +
		item.UrgencyScore*weights.Urgency +
		item.RiskScore*weights.Risk +
		item.ConfidenceScore*10*weights.Confidence
}

// PersonalizedScore boosts the base score by the user's category affinity
// and the learned source credibility, capped at 10. Users with no tracked
// actions score identically to the base.
func (e *Engine) PersonalizedScore(userID string, item *models.IntelligenceItem) float64 {
	base := e.BaseScore(item)

	if e.tracker == nil || !e.tracker.HasProfile(userID) {
		return base
	}

	categoryBoost := float64(e.tracker.CategoryCount(userID, item.Category)) / 10
	credibility := e.params.SourceCredibility(item.Source)
	strength := e.params.PersonalizationStrength()

	score := base * (1 + categoryBoost*strength) * credibility
	if score > maxScore {
		return maxScore
	}
	return score
}
