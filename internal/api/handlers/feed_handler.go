package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/cache/redis"
	"github.com/policyedge/backend/internal/collector"
	"github.com/policyedge/backend/internal/metrics"
	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/internal/scoring"
	"github.com/policyedge/backend/internal/storage/sqlite"
	"github.com/policyedge/backend/pkg/logger"
)

type FeedHandler struct {
	collector *collector.Collector
	scorer    *scoring.Engine
	cache     *redis.Client
	archive   *sqlite.Client
}

// NewFeedHandler builds the feed surface. cache and archive may be nil; the
// handler then serves only from the collector's in-memory snapshot.
func NewFeedHandler(coll *collector.Collector, scorer *scoring.Engine, cache *redis.Client, archive *sqlite.Client) *FeedHandler {
	return &FeedHandler{
		collector: coll,
		scorer:    scorer,
		cache:     cache,
		archive:   archive,
	}
}

// GetFeed serves the latest collected items, newest cycle first, optionally
// rescored for a user.
func (h *FeedHandler) GetFeed(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", 24)
	limit := c.QueryInt("limit", 50)
	userID := c.Query("user_id")

	items := h.cachedOrLive(c, hours, limit)

	return c.JSON(fiber.Map{
		"items": h.scored(items, userID),
		"count": len(items),
		"hours": hours,
	})
}

func (h *FeedHandler) GetFeedByCategory(c *fiber.Ctx) error {
	category := models.Category(c.Params("category"))
	if !validCategory(category) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown category",
		})
	}

	limit := c.QueryInt("limit", 50)
	items := h.collector.ItemsByCategory(category, limit)

	return c.JSON(fiber.Map{
		"items":    h.scored(items, c.Query("user_id")),
		"count":    len(items),
		"category": category,
	})
}

// GetTopItems serves items whose base score clears min_score.
func (h *FeedHandler) GetTopItems(c *fiber.Ctx) error {
	minScore := c.QueryFloat("min_score", 7.0)
	limit := c.QueryInt("limit", 20)

	items := h.collector.ItemsAboveScore(minScore, limit)

	return c.JSON(fiber.Map{
		"items":     h.scored(items, c.Query("user_id")),
		"count":     len(items),
		"min_score": minScore,
	})
}

// cachedOrLive prefers the redis snapshot for plain feed reads, falls back to
// the collector's in-memory items, and finally to the sqlite archive when the
// process has not collected anything yet. Every path honors the lookback
// window.
func (h *FeedHandler) cachedOrLive(c *fiber.Ctx, hours, limit int) []models.IntelligenceItem {
	if h.cache != nil {
		items, ok, err := h.cache.GetFeed(c.Context())
		if err != nil {
			logger.Warn("Feed cache read failed", zap.Error(err))
		}
		if ok {
			metrics.FeedCacheHits.Inc()
			return withinWindow(items, hours, limit)
		}
		metrics.FeedCacheMisses.Inc()
	}

	items := h.collector.RecentItems(hours, limit)
	if len(items) == 0 && h.archive != nil {
		cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		archived, err := h.archive.RecentItems(cutoff, limit)
		if err != nil {
			logger.Warn("Feed archive read failed", zap.Error(err))
			return items
		}
		return archived
	}
	return items
}

// withinWindow filters a cached snapshot down to the requested lookback
// window, preserving order, up to limit.
func withinWindow(items []models.IntelligenceItem, hours, limit int) []models.IntelligenceItem {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	var result []models.IntelligenceItem
	for _, item := range items {
		if item.Timestamp.Before(cutoff) {
			continue
		}
		result = append(result, item)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

type scoredItem struct {
	models.IntelligenceItem
	Score float64 `json:"score"`
}

func (h *FeedHandler) scored(items []models.IntelligenceItem, userID string) []scoredItem {
	out := make([]scoredItem, 0, len(items))
	for i := range items {
		score := h.scorer.BaseScore(&items[i])
		if userID != "" {
			score = h.scorer.PersonalizedScore(userID, &items[i])
		}
		out = append(out, scoredItem{IntelligenceItem: items[i], Score: score})
	}
	return out
}

func validCategory(category models.Category) bool {
	for _, known := range models.Categories() {
		if category == known {
			return true
		}
	}
	return false
}
