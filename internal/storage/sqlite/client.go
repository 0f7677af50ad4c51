// Package sqlite is the archival sink for collected items, user actions,
// learning deltas, and tripwire rule state. The in-memory components remain
// the source of truth during a process lifetime; this store exists so
// history survives restarts and is queryable offline.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS intelligence_items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		summary TEXT,
		source TEXT NOT NULL,
		category TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		impact_score REAL NOT NULL,
		urgency_score REAL NOT NULL,
		risk_score REAL NOT NULL,
		timestamp INTEGER NOT NULL,
		tags TEXT,
		source_url TEXT,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_items_category ON intelligence_items(category);
	CREATE INDEX IF NOT EXISTS idx_items_source ON intelligence_items(source);
	CREATE INDEX IF NOT EXISTS idx_items_timestamp ON intelligence_items(timestamp);

	CREATE TABLE IF NOT EXISTS user_actions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		target_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_actions_user ON user_actions(user_id);
	CREATE INDEX IF NOT EXISTS idx_actions_timestamp ON user_actions(timestamp);

	CREATE TABLE IF NOT EXISTS learning_deltas (
		id TEXT PRIMARY KEY,
		change_type TEXT NOT NULL,
		description TEXT,
		before_state TEXT,
		after_state TEXT,
		confidence REAL NOT NULL,
		applied_at INTEGER NOT NULL,
		source_actions TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_deltas_type ON learning_deltas(change_type);
	CREATE INDEX IF NOT EXISTS idx_deltas_applied ON learning_deltas(applied_at);

	CREATE TABLE IF NOT EXISTS tripwire_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		pattern TEXT NOT NULL,
		category TEXT NOT NULL,
		threshold REAL NOT NULL,
		status TEXT NOT NULL,
		last_triggered INTEGER,
		trigger_count INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rules_status ON tripwire_rules(status);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertItem(item *models.IntelligenceItem) error {
	tagsJSON, _ := json.Marshal(item.Tags)
	metadataJSON, _ := json.Marshal(item.Metadata)

	query := `
		INSERT INTO intelligence_items (id, title, content, summary, source, category,
			confidence_score, impact_score, urgency_score, risk_score, timestamp, tags, source_url, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err := c.db.Exec(
		query,
		item.ID,
		item.Title,
		item.Content,
		item.Summary,
		string(item.Source),
		string(item.Category),
		item.ConfidenceScore,
		item.ImpactScore,
		item.UrgencyScore,
		item.RiskScore,
		item.Timestamp.Unix(),
		string(tagsJSON),
		item.SourceURL,
		string(metadataJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

// InsertItems archives a collection cycle; individual failures are logged
// and skipped so one bad row never loses the batch.
func (c *Client) InsertItems(items []models.IntelligenceItem) {
	for i := range items {
		if err := c.InsertItem(&items[i]); err != nil {
			logger.Warn("Failed to archive item",
				zap.String("item_id", items[i].ID),
				zap.Error(err),
			)
		}
	}
}

func (c *Client) InsertAction(action *models.UserAction) error {
	metadataJSON, _ := json.Marshal(action.Metadata)

	query := `
		INSERT INTO user_actions (id, user_id, action_type, target_id, target_type, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		action.ID,
		action.UserID,
		string(action.ActionType),
		action.TargetID,
		action.TargetType,
		action.Timestamp.Unix(),
		string(metadataJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}

	return nil
}

func (c *Client) InsertDelta(delta *models.LearningDelta) error {
	beforeJSON, _ := json.Marshal(delta.BeforeState)
	afterJSON, _ := json.Marshal(delta.AfterState)
	sourcesJSON, _ := json.Marshal(delta.SourceActions)

	query := `
		INSERT INTO learning_deltas (id, change_type, description, before_state, after_state,
			confidence, applied_at, source_actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		delta.ID,
		delta.ChangeType,
		delta.Description,
		string(beforeJSON),
		string(afterJSON),
		delta.Confidence,
		delta.AppliedAt.Unix(),
		string(sourcesJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to insert delta: %w", err)
	}

	return nil
}

func (c *Client) SaveRule(rule *models.TripwireRule) error {
	var lastTriggered interface{}
	if rule.LastTriggered != nil {
		lastTriggered = rule.LastTriggered.Unix()
	}

	query := `
		INSERT INTO tripwire_rules (id, name, description, pattern, category, threshold,
			status, last_triggered, trigger_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			last_triggered = excluded.last_triggered,
			trigger_count = excluded.trigger_count,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		rule.ID,
		rule.Name,
		rule.Description,
		rule.Pattern,
		string(rule.Category),
		rule.Threshold,
		string(rule.Status),
		lastTriggered,
		rule.TriggerCount,
		rule.CreatedAt.Unix(),
		rule.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	return nil
}

// RecentDeltas returns the newest archived deltas, most recent first.
func (c *Client) RecentDeltas(limit int) ([]models.LearningDelta, error) {
	query := `
		SELECT id, change_type, description, before_state, after_state, confidence, applied_at, source_actions
		FROM learning_deltas
		ORDER BY applied_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deltas: %w", err)
	}
	defer rows.Close()

	var deltas []models.LearningDelta
	for rows.Next() {
		var d models.LearningDelta
		var beforeJSON, afterJSON, sourcesJSON string
		var appliedAt int64

		err := rows.Scan(&d.ID, &d.ChangeType, &d.Description, &beforeJSON, &afterJSON, &d.Confidence, &appliedAt, &sourcesJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(beforeJSON), &d.BeforeState)
		json.Unmarshal([]byte(afterJSON), &d.AfterState)
		json.Unmarshal([]byte(sourcesJSON), &d.SourceActions)
		d.AppliedAt = time.Unix(appliedAt, 0).UTC()
		deltas = append(deltas, d)
	}

	return deltas, nil
}

// RecentItems returns archived items newer than the cutoff, newest first.
func (c *Client) RecentItems(since time.Time, limit int) ([]models.IntelligenceItem, error) {
	query := `
		SELECT id, title, content, summary, source, category, confidence_score,
			impact_score, urgency_score, risk_score, timestamp, tags, source_url, metadata
		FROM intelligence_items
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, since.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []models.IntelligenceItem
	for rows.Next() {
		var item models.IntelligenceItem
		var source, category, tagsJSON, metadataJSON string
		var timestamp int64

		err := rows.Scan(&item.ID, &item.Title, &item.Content, &item.Summary, &source, &category,
			&item.ConfidenceScore, &item.ImpactScore, &item.UrgencyScore, &item.RiskScore,
			&timestamp, &tagsJSON, &item.SourceURL, &metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		item.Source = models.Source(source)
		item.Category = models.Category(category)
		item.Timestamp = time.Unix(timestamp, 0).UTC()
		json.Unmarshal([]byte(tagsJSON), &item.Tags)
		json.Unmarshal([]byte(metadataJSON), &item.Metadata)
		items = append(items, item)
	}

	return items, nil
}
