package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/cache/redis"
	"github.com/policyedge/backend/internal/collector"
	"github.com/policyedge/backend/internal/learning"
	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/internal/orchestrator"
	"github.com/policyedge/backend/internal/params"
	"github.com/policyedge/backend/internal/storage/sqlite"
	"github.com/policyedge/backend/internal/tripwire"
	"github.com/policyedge/backend/pkg/logger"
)

type SystemHandler struct {
	params    *params.Store
	learner   *learning.Engine
	collector *collector.Collector
	orch      *orchestrator.Orchestrator
	monitor   *tripwire.Monitor
	archive   *sqlite.Client
	cache     *redis.Client
}

// NewSystemHandler builds the operator surface. archive and cache may be nil.
func NewSystemHandler(store *params.Store, learner *learning.Engine, coll *collector.Collector, orch *orchestrator.Orchestrator, monitor *tripwire.Monitor, archive *sqlite.Client, cache *redis.Client) *SystemHandler {
	return &SystemHandler{
		params:    store,
		learner:   learner,
		collector: coll,
		orch:      orch,
		monitor:   monitor,
		archive:   archive,
		cache:     cache,
	}
}

// GetParameters serves a read-only snapshot of the live scoring parameters.
func (h *SystemHandler) GetParameters(c *fiber.Ctx) error {
	return c.JSON(h.params.Snapshot())
}

func (h *SystemHandler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"learning":   h.learner.Health(),
		"last_cycle": h.collector.LastStats(),
		"state":      h.orch.CurrentState(),
	})
}

// GetDeltas serves the most recent learning deltas, newest last. A freshly
// restarted process has an empty in-memory trail, so the archive answers
// until the next learning pass.
func (h *SystemHandler) GetDeltas(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	deltas := h.learner.Deltas(limit)

	if len(deltas) == 0 && h.archive != nil {
		archived, err := h.archive.RecentDeltas(limit)
		if err != nil {
			logger.Warn("Delta archive read failed", zap.Error(err))
		} else {
			deltas = archived
		}
	}

	return c.JSON(fiber.Map{
		"deltas": deltas,
		"count":  len(deltas),
	})
}

// TriggerCycle requests an out-of-schedule collection cycle. The cached feed
// snapshot is dropped so readers see the triggered cycle's output instead of
// a stale TTL window.
func (h *SystemHandler) TriggerCycle(c *fiber.Ctx) error {
	if !h.orch.TriggerCycle() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A cycle is already pending or the orchestrator is stopped",
		})
	}

	if h.cache != nil {
		if err := h.cache.InvalidateFeed(c.Context()); err != nil {
			logger.Warn("Feed cache invalidation failed", zap.Error(err))
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "cycle triggered",
	})
}

func (h *SystemHandler) ListTripwires(c *fiber.Ctx) error {
	rules := h.monitor.Rules()
	return c.JSON(fiber.Map{
		"rules": rules,
		"count": len(rules),
	})
}

func (h *SystemHandler) CreateTripwire(c *fiber.Ctx) error {
	var req struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Pattern     string  `json:"pattern"`
		Category    string  `json:"category"`
		Threshold   float64 `json:"threshold"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" || req.Pattern == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and pattern are required",
		})
	}
	category := models.Category(req.Category)
	if !validCategory(category) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown category",
		})
	}

	rule := models.TripwireRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Pattern:     req.Pattern,
		Category:    category,
		Threshold:   req.Threshold,
		Status:      models.TripwireActive,
		CreatedAt:   time.Now().UTC(),
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	h.monitor.Upsert(rule)
	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *SystemHandler) SetTripwireStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	status := models.TripwireStatus(req.Status)
	switch status {
	case models.TripwireActive, models.TripwireTriggered,
		models.TripwireResolved, models.TripwireDisabled:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown status",
		})
	}

	id := c.Params("id")
	if err := h.monitor.SetStatus(id, status); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"id":     id,
		"status": status,
	})
}
