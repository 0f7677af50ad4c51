// Package classify holds the deterministic keyword heuristics that turn raw
// text into a category and a set of 0-10 scores. No model calls, no state:
// the same text always classifies the same way.
package classify

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jdkato/prose/v2"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/config"
)

var (
	marketKeywords     = []string{"market", "stock", "trading", "financial", "economic", "volatility"}
	regulatoryKeywords = []string{"regulation", "compliance", "law", "policy", "rule", "mandate"}
	aiKeywords         = []string{"artificial intelligence", "ai", "machine learning", "ml", "neural", "gpt"}
	politicalKeywords  = []string{"election", "government", "political", "congress", "senate", "president"}

	highImpactKeywords = []string{"crisis", "emergency", "major", "significant", "unprecedented", "breakthrough"}
	urgentKeywords     = []string{"urgent", "immediate", "breaking", "alert", "now", "today"}
	riskKeywords       = []string{"risk", "threat", "danger", "warning", "concern", "problem", "issue"}

	companyPattern = regexp.MustCompile(`\b[A-Z][a-z]*\s+(?:Inc|Corp|Ltd|LLC|Company)\b`)
	hashtagPattern = regexp.MustCompile(`#\w+`)
	acronymPattern = regexp.MustCompile(`\b[A-Z]{2,}\b`)
)

// Classifier scores and categorizes text using configured heuristics.
type Classifier struct {
	cfg config.CollectorConfig
	now func() time.Time
}

func New(cfg config.CollectorConfig) *Classifier {
	return &Classifier{cfg: cfg, now: time.Now}
}

// NewAt fixes the clock, for deterministic urgency decay in tests.
func NewAt(cfg config.CollectorConfig, now func() time.Time) *Classifier {
	return &Classifier{cfg: cfg, now: now}
}

// Categorize assigns a category by keyword match with fixed precedence:
// market terms, then regulatory, AI, political, defaulting to policy shift.
func Categorize(text string) models.Category {
	lower := strings.ToLower(text)

	if containsAny(lower, marketKeywords) {
		return models.CategoryMarketShock
	}
	if containsAny(lower, regulatoryKeywords) {
		return models.CategoryRegulatoryChange
	}
	if containsAny(lower, aiKeywords) {
		return models.CategoryAIDevelopment
	}
	if containsAny(lower, politicalKeywords) {
		return models.CategoryPoliticalEvent
	}
	return models.CategoryPolicyShift
}

// ImpactScore starts from a base and adds a fixed bonus per high-impact
// keyword present, clamped to [0,10].
func (c *Classifier) ImpactScore(title, content string) float64 {
	text := strings.ToLower(title + " " + content)

	score := c.cfg.ImpactBase
	for _, word := range highImpactKeywords {
		if strings.Contains(text, word) {
			score += c.cfg.ImpactKeywordBonus
		}
	}

	return clamp(score, 0, 10)
}

// UrgencyScore decays with item age and is boosted per urgent keyword,
// clamped to [0,10].
func (c *Classifier) UrgencyScore(title, content string, published time.Time) float64 {
	ageDays := c.now().Sub(published).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	score := c.cfg.UrgencyBase - float64(int(ageDays))*c.cfg.UrgencyDailyDecay
	if score < c.cfg.UrgencyFloor {
		score = c.cfg.UrgencyFloor
	}

	text := strings.ToLower(title + " " + content)
	for _, word := range urgentKeywords {
		if strings.Contains(text, word) {
			score += c.cfg.UrgencyKeywordBonus
		}
	}

	return clamp(score, 0, 10)
}

// RiskScore starts from a base and adds a fixed bonus per risk keyword,
// clamped to [0,10].
func (c *Classifier) RiskScore(title, content string) float64 {
	text := strings.ToLower(title + " " + content)

	score := c.cfg.RiskBase
	for _, word := range riskKeywords {
		if strings.Contains(text, word) {
			score += c.cfg.RiskKeywordBonus
		}
	}

	return clamp(score, 0, 10)
}

// ExtractTags pulls company names, hashtags, acronyms, and named entities out
// of the text, deduplicated and capped.
func (c *Classifier) ExtractTags(title, content string) []string {
	text := title + " " + content
	seen := map[string]bool{}
	var tags []string

	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || len(tag) <= 2 || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, company := range companyPattern.FindAllString(text, -1) {
		add(company)
	}
	for _, hashtag := range hashtagPattern.FindAllString(text, -1) {
		add(strings.TrimPrefix(hashtag, "#"))
	}
	for _, acronym := range acronymPattern.FindAllString(text, -1) {
		add(acronym)
	}

	// Named entities supplement the regex heuristics; tagging failures just
	// mean fewer tags.
	if doc, err := prose.NewDocument(text, prose.WithSegmentation(false)); err == nil {
		for _, ent := range doc.Entities() {
			add(ent.Text)
		}
	}

	sort.Strings(tags)
	if len(tags) > c.cfg.MaxTags {
		tags = tags[:c.cfg.MaxTags]
	}
	return tags
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
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
