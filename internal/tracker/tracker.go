// Package tracker records user interactions and maintains incrementally
// updated per-user preference profiles.
package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/config"
)

// Profile aggregates one user's observed preferences. All values are
// derived; the action log is the source of truth.
type Profile struct {
	CategoryCounts   map[models.Category]int `json:"category_counts"`
	SourceCounts     map[models.Source]int   `json:"source_counts"`
	AvgReadingTime   float64                 `json:"avg_reading_time_seconds"`
	ActiveHours      map[int]int             `json:"active_hours"`
	BookmarkRate     float64                 `json:"bookmark_rate"`
	ShareRate        float64                 `json:"share_rate"`
	ClickThroughRate float64                 `json:"click_through_rate"`
}

type userProfile struct {
	mu      sync.Mutex
	profile Profile
}

// Tracker appends immutable actions and keeps profiles current. The append
// path takes a short global lock; profile updates are serialized per user so
// different users never contend.
type Tracker struct {
	cfg    config.LearningConfig
	logger *zap.Logger

	mu       sync.RWMutex
	actions  []models.UserAction
	profiles map[string]*userProfile
}

func New(cfg config.LearningConfig, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:      cfg,
		logger:   logger,
		profiles: make(map[string]*userProfile),
	}
}

// Track appends one action and folds it into the user's profile.
func (t *Tracker) Track(userID string, actionType models.ActionType, targetID, targetType string, metadata map[string]interface{}) models.UserAction {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	action := models.UserAction{
		ID:         uuid.NewString(),
		UserID:     userID,
		ActionType: actionType,
		TargetID:   targetID,
		TargetType: targetType,
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	}

	t.mu.Lock()
	t.actions = append(t.actions, action)
	profile, ok := t.profiles[userID]
	if !ok {
		profile = &userProfile{profile: Profile{
			CategoryCounts: make(map[models.Category]int),
			SourceCounts:   make(map[models.Source]int),
			ActiveHours:    make(map[int]int),
		}}
		t.profiles[userID] = profile
	}
	t.mu.Unlock()

	t.updateProfile(profile, action)

	t.logger.Debug("Action tracked",
		zap.String("user_id", userID),
		zap.String("action_type", string(actionType)),
		zap.String("target_id", targetID),
	)

	return action
}

func (t *Tracker) updateProfile(up *userProfile, action models.UserAction) {
	up.mu.Lock()
	defer up.mu.Unlock()

	p := &up.profile

	if isEngagement(action.ActionType) {
		if category, ok := action.Metadata["category"].(string); ok && category != "" {
			p.CategoryCounts[models.Category(category)]++
		}
		if source, ok := action.Metadata["source"].(string); ok && source != "" {
			p.SourceCounts[models.Source(source)]++
		}
	}

	if action.ActionType == models.ActionRead {
		if seconds, ok := numericMeta(action.Metadata, "reading_time_seconds"); ok && seconds > 0 {
			alpha := t.cfg.ReadingTimeSmoothing
			p.AvgReadingTime = p.AvgReadingTime*(1-alpha) + seconds*alpha
		}
	}

	p.ActiveHours[action.Timestamp.Hour()]++

	switch action.ActionType {
	case models.ActionBookmark:
		p.BookmarkRate += t.cfg.BookmarkRateIncrement
	case models.ActionShare:
		p.ShareRate += t.cfg.ShareRateIncrement
	case models.ActionClick:
		p.ClickThroughRate += t.cfg.ClickRateIncrement
	}
}

// Actions returns the user's actions inside the lookback window, newest
// retained order, optionally filtered by type.
func (t *Tracker) Actions(userID string, hoursBack int, types ...models.ActionType) []models.UserAction {
	cutoff := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)

	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []models.UserAction
	for _, action := range t.actions {
		if action.UserID != userID || action.Timestamp.Before(cutoff) {
			continue
		}
		if len(types) > 0 && !containsType(types, action.ActionType) {
			continue
		}
		result = append(result, action)
	}
	return result
}

// RecentActions returns every user's actions inside the lookback window.
func (t *Tracker) RecentActions(hoursBack int) []models.UserAction {
	cutoff := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)

	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []models.UserAction
	for _, action := range t.actions {
		if !action.Timestamp.Before(cutoff) {
			result = append(result, action)
		}
	}
	return result
}

// Profile returns a copy of the user's preference profile; the zero Profile
// for unknown users.
func (t *Tracker) Profile(userID string) Profile {
	t.mu.RLock()
	up, ok := t.profiles[userID]
	t.mu.RUnlock()

	if !ok {
		return Profile{}
	}

	up.mu.Lock()
	defer up.mu.Unlock()

	copied := up.profile
	copied.CategoryCounts = make(map[models.Category]int, len(up.profile.CategoryCounts))
	for category, count := range up.profile.CategoryCounts {
		copied.CategoryCounts[category] = count
	}
	copied.SourceCounts = make(map[models.Source]int, len(up.profile.SourceCounts))
	for source, count := range up.profile.SourceCounts {
		copied.SourceCounts[source] = count
	}
	copied.ActiveHours = make(map[int]int, len(up.profile.ActiveHours))
	for hour, count := range up.profile.ActiveHours {
		copied.ActiveHours[hour] = count
	}
	return copied
}

// CategoryCount is the profile read used by personalized scoring.
func (t *Tracker) CategoryCount(userID string, category models.Category) int {
	t.mu.RLock()
	up, ok := t.profiles[userID]
	t.mu.RUnlock()

	if !ok {
		return 0
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	return up.profile.CategoryCounts[category]
}

// TotalActions reports the size of the append-only log.
func (t *Tracker) TotalActions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.actions)
}

// UniqueUsers counts distinct user ids seen in the log.
func (t *Tracker) UniqueUsers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.profiles)
}

func isEngagement(actionType models.ActionType) bool {
	switch actionType {
	case models.ActionClick, models.ActionRead, models.ActionBookmark, models.ActionShare:
		return true
	}
	return false
}

func containsType(types []models.ActionType, actionType models.ActionType) bool {
	for _, t := range types {
		if t == actionType {
			return true
		}
	}
	return false
}

func numericMeta(metadata map[string]interface{}, key string) (float64, bool) {
	switch value := metadata[key].(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	default:
		return 0, false
	}
}

// HasProfile reports whether any action has ever been tracked for the user.
func (t *Tracker) HasProfile(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.profiles[userID]
	return ok
}
