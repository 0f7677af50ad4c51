package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/metrics"
	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/internal/storage/sqlite"
	"github.com/policyedge/backend/internal/tracker"
	"github.com/policyedge/backend/pkg/logger"
)

type ActionsHandler struct {
	tracker *tracker.Tracker
	store   *sqlite.Client
}

// NewActionsHandler builds the action-tracking surface. store may be nil;
// actions then live only in the in-memory tracker.
func NewActionsHandler(t *tracker.Tracker, store *sqlite.Client) *ActionsHandler {
	return &ActionsHandler{
		tracker: t,
		store:   store,
	}
}

func (h *ActionsHandler) TrackAction(c *fiber.Ctx) error {
	var req struct {
		UserID     string                 `json:"user_id"`
		ActionType string                 `json:"action_type"`
		TargetID   string                 `json:"target_id"`
		TargetType string                 `json:"target_type"`
		Metadata   map[string]interface{} `json:"metadata"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" || req.TargetID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and target_id are required",
		})
	}

	actionType := models.ActionType(req.ActionType)
	if !validActionType(actionType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown action_type",
		})
	}

	action := h.tracker.Track(req.UserID, actionType, req.TargetID, req.TargetType, req.Metadata)
	metrics.ActionsTracked.WithLabelValues(string(actionType)).Inc()

	if h.store != nil {
		if err := h.store.InsertAction(&action); err != nil {
			logger.Warn("Failed to archive action",
				zap.String("action_id", action.ID),
				zap.Error(err),
			)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(action)
}

func (h *ActionsHandler) GetUserActions(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	hours := c.QueryInt("hours", 168)

	actions := h.tracker.Actions(userID, hours)

	return c.JSON(fiber.Map{
		"user_id": userID,
		"actions": actions,
		"count":   len(actions),
	})
}

// GetUserProfile serves the tracker's learned preference profile.
func (h *ActionsHandler) GetUserProfile(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if !h.tracker.HasProfile(userID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No actions tracked for user",
		})
	}

	return c.JSON(h.tracker.Profile(userID))
}

func validActionType(actionType models.ActionType) bool {
	switch actionType {
	case models.ActionClick, models.ActionRead, models.ActionBookmark,
		models.ActionShare, models.ActionDismiss:
		return true
	}
	return false
}
