package models

import "time"

// Source identifies where an intelligence item came from.
type Source string

const (
	SourceWebScraping     Source = "web_scraping"
	SourceRSSFeeds        Source = "rss_feeds"
	SourceRegulatoryFeeds Source = "regulatory_feeds"
	SourceCustomAgents    Source = "custom_agents"
	SourceTripwireAlerts  Source = "tripwire_alerts"
	SourceUserUploads     Source = "user_uploads"
)

// Category classifies an intelligence item.
type Category string

const (
	CategoryMarketShock      Category = "market_shock"
	CategoryRegulatoryChange Category = "regulatory_change"
	CategoryPolicyShift      Category = "policy_shift"
	CategoryAIDevelopment    Category = "ai_development"
	CategoryVolatilityAlert  Category = "volatility_alert"
	CategoryPoliticalEvent   Category = "political_event"
	CategoryRiskExposure     Category = "risk_exposure"
)

// Categories lists every known category, used to seed learned importance maps.
func Categories() []Category {
	return []Category{
		CategoryMarketShock,
		CategoryRegulatoryChange,
		CategoryPolicyShift,
		CategoryAIDevelopment,
		CategoryVolatilityAlert,
		CategoryPoliticalEvent,
		CategoryRiskExposure,
	}
}

// Sources lists every known source, used to seed learned credibility maps.
func Sources() []Source {
	return []Source{
		SourceWebScraping,
		SourceRSSFeeds,
		SourceRegulatoryFeeds,
		SourceCustomAgents,
		SourceTripwireAlerts,
		SourceUserUploads,
	}
}

// IntelligenceItem is a single classified, scored unit of collected
// information. Items are immutable once built.
type IntelligenceItem struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Content         string                 `json:"content"`
	Summary         string                 `json:"summary"`
	Source          Source                 `json:"source"`
	Category        Category               `json:"category"`
	ConfidenceScore float64                `json:"confidence_score"` // 0..1
	ImpactScore     float64                `json:"impact_score"`     // 0..10
	UrgencyScore    float64                `json:"urgency_score"`    // 0..10
	RiskScore       float64                `json:"risk_score"`       // 0..10
	Timestamp       time.Time              `json:"timestamp"`
	Tags            []string               `json:"tags,omitempty"`
	SourceURL       string                 `json:"source_url,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// TripwireStatus is the lifecycle state of a tripwire rule.
type TripwireStatus string

const (
	TripwireActive    TripwireStatus = "active"
	TripwireTriggered TripwireStatus = "triggered"
	TripwireResolved  TripwireStatus = "resolved"
	TripwireDisabled  TripwireStatus = "disabled"
)

// TripwireRule is an operator-defined condition that synthesizes a
// high-priority alert item when matched. Trigger bookkeeping is owned by the
// tripwire monitor; status transitions are owned by the operator.
type TripwireRule struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Pattern       string         `json:"pattern"`
	Category      Category       `json:"category"`
	Threshold     float64        `json:"threshold"`
	Status        TripwireStatus `json:"status"`
	LastTriggered *time.Time     `json:"last_triggered,omitempty"`
	TriggerCount  int            `json:"trigger_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ActionType enumerates the user interactions the tracker understands.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionRead     ActionType = "read"
	ActionBookmark ActionType = "bookmark"
	ActionShare    ActionType = "share"
	ActionDismiss  ActionType = "dismiss"
)

// UserAction is one recorded interaction. Append-only and immutable.
type UserAction struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"user_id"`
	ActionType ActionType             `json:"action_type"`
	TargetID   string                 `json:"target_id"`
	TargetType string                 `json:"target_type"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// LearningDelta is an audited, confidence-scored adjustment to one scoring
// parameter. Deltas are stored whether or not application succeeded.
type LearningDelta struct {
	ID            string                 `json:"id"`
	ChangeType    string                 `json:"change_type"`
	Description   string                 `json:"description"`
	BeforeState   map[string]interface{} `json:"before_state"`
	AfterState    map[string]interface{} `json:"after_state"`
	Confidence    float64                `json:"confidence"` // 0..1
	AppliedAt     time.Time              `json:"applied_at"`
	SourceActions []string               `json:"source_actions"`
}

// Delta change types understood by the parameter store.
const (
	DeltaCategoryImportance  = "category_importance_update"
	DeltaSourceCredibility   = "source_credibility_update"
	DeltaTripwireSensitivity = "tripwire_sensitivity_update"
	DeltaTimingOptimization  = "timing_optimization"
)
