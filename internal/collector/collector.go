// Package collector fans collection out across all enabled source adapters,
// folds tripwire alerts into the result, and serves the sorted snapshot to
// downstream readers.
package collector

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/metrics"
	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/internal/scoring"
	"github.com/policyedge/backend/internal/sources"
	"github.com/policyedge/backend/internal/tripwire"
)

// SourceResult is one adapter's outcome within a cycle.
type SourceResult struct {
	Items int    `json:"items"`
	Error string `json:"error,omitempty"`
}

// CycleStats describes one collection cycle for observability.
type CycleStats struct {
	StartedAt  time.Time               `json:"started_at"`
	Duration   time.Duration           `json:"duration"`
	TotalItems int                     `json:"total_items"`
	AlertCount int                     `json:"alert_count"`
	PerSource  map[string]SourceResult `json:"per_source"`
}

// Collector runs the fan-out/fan-in collection and keeps the latest sorted
// snapshot for the pull accessors.
type Collector struct {
	sources      []sources.Source
	monitor      *tripwire.Monitor
	scorer       *scoring.Engine
	fetchTimeout time.Duration
	logger       *zap.Logger

	mu        sync.RWMutex
	snapshot  []models.IntelligenceItem
	lastStats CycleStats
}

func New(adapters []sources.Source, monitor *tripwire.Monitor, scorer *scoring.Engine, fetchTimeout time.Duration, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchTimeout == 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Collector{
		sources:      adapters,
		monitor:      monitor,
		scorer:       scorer,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

type sourceOutcome struct {
	items []models.IntelligenceItem
	err   error
}

// CollectAll fetches from every enabled adapter concurrently. One adapter's
// failure never cancels its siblings; it just contributes zero items. The
// combined set is run through the tripwire monitor, sorted descending by
// urgency+impact (stable, so equal sums keep arrival order), and retained as
// the current snapshot.
func (c *Collector) CollectAll(ctx context.Context) ([]models.IntelligenceItem, CycleStats) {
	started := time.Now()

	enabled := make([]sources.Source, 0, len(c.sources))
	for _, source := range c.sources {
		if source.Enabled() {
			enabled = append(enabled, source)
		}
	}

	outcomes := make([]sourceOutcome, len(enabled))
	var wg sync.WaitGroup
	for i, source := range enabled {
		wg.Add(1)
		go func(i int, source sources.Source) {
			defer wg.Done()
			outcomes[i] = c.collectOne(ctx, source)
		}(i, source)
	}
	wg.Wait()

	stats := CycleStats{
		StartedAt: started.UTC(),
		PerSource: make(map[string]SourceResult, len(enabled)),
	}

	var items []models.IntelligenceItem
	for i, source := range enabled {
		outcome := outcomes[i]
		if outcome.err != nil {
			c.logger.Error("Source collection failed",
				zap.String("source", source.Name()),
				zap.Error(outcome.err),
			)
			metrics.SourceCollects.WithLabelValues(source.Name(), "error").Inc()
			stats.PerSource[source.Name()] = SourceResult{Error: outcome.err.Error()}
			continue
		}
		metrics.SourceCollects.WithLabelValues(source.Name(), "ok").Inc()
		stats.PerSource[source.Name()] = SourceResult{Items: len(outcome.items)}
		items = append(items, outcome.items...)
	}

	alerts := c.monitor.Check(items)
	for _, alert := range alerts {
		if ruleID, ok := alert.Metadata["tripwire_id"].(string); ok {
			metrics.TripwireAlerts.WithLabelValues(ruleID).Inc()
		}
	}
	items = append(items, alerts...)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UrgencyScore+items[i].ImpactScore >
			items[j].UrgencyScore+items[j].ImpactScore
	})

	stats.Duration = time.Since(started)
	stats.TotalItems = len(items)
	stats.AlertCount = len(alerts)

	metrics.ItemsCollected.Add(float64(len(items)))
	metrics.CollectionCycleDuration.Observe(stats.Duration.Seconds())

	c.mu.Lock()
	c.snapshot = items
	c.lastStats = stats
	c.mu.Unlock()

	c.logger.Info("Collection cycle complete",
		zap.Int("total_items", len(items)),
		zap.Int("alerts", len(alerts)),
		zap.Duration("duration", stats.Duration),
	)

	return items, stats
}

func (c *Collector) collectOne(ctx context.Context, source sources.Source) sourceOutcome {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	records, err := source.Fetch(fetchCtx)
	if err != nil {
		return sourceOutcome{err: err}
	}

	items := make([]models.IntelligenceItem, 0, len(records))
	for _, record := range records {
		item, err := source.Parse(record)
		if err != nil {
			c.logger.Warn("Skipping malformed record",
				zap.String("source", source.Name()),
				zap.Error(err),
			)
			continue
		}
		if item != nil {
			items = append(items, *item)
		}
	}

	c.logger.Debug("Source collected",
		zap.String("source", source.Name()),
		zap.Int("items", len(items)),
	)
	return sourceOutcome{items: items}
}

// RecentItems returns snapshot items newer than the lookback window, up to
// limit, preserving the snapshot's sort order.
func (c *Collector) RecentItems(hoursBack, limit int) []models.IntelligenceItem {
	cutoff := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []models.IntelligenceItem
	for _, item := range c.snapshot {
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

// ItemsByCategory filters the snapshot by category, up to limit.
func (c *Collector) ItemsByCategory(category models.Category, limit int) []models.IntelligenceItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []models.IntelligenceItem
	for _, item := range c.snapshot {
		if item.Category != category {
			continue
		}
		result = append(result, item)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// ItemsAboveScore returns snapshot items whose base score meets the
// threshold, up to limit.
func (c *Collector) ItemsAboveScore(minScore float64, limit int) []models.IntelligenceItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []models.IntelligenceItem
	for i := range c.snapshot {
		if c.scorer.BaseScore(&c.snapshot[i]) < minScore {
			continue
		}
		result = append(result, c.snapshot[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// LastStats returns the stats of the most recent cycle.
func (c *Collector) LastStats() CycleStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastStats
}
