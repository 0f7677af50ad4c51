// Package orchestrator drives the periodic collection and learning cycles.
// The loop runs until stopped; a failing step costs one backoff interval,
// never the process.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/cache/redis"
	"github.com/policyedge/backend/internal/collector"
	"github.com/policyedge/backend/internal/learning"
	"github.com/policyedge/backend/internal/metrics"
	"github.com/policyedge/backend/internal/storage/sqlite"
	"github.com/policyedge/backend/internal/tripwire"
)

// State is the loop's current phase.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateLearning   State = "learning"
)

// Config carries the orchestrator's scheduling knobs.
type Config struct {
	CycleInterval    time.Duration
	BackoffInterval  time.Duration
	LearningInterval time.Duration
	LookbackHours    int
}

// Orchestrator owns the collect-then-learn loop. The sqlite store and redis
// cache are optional archival collaborators; a nil client is skipped.
type Orchestrator struct {
	cfg       Config
	collector *collector.Collector
	learner   *learning.Engine
	monitor   *tripwire.Monitor
	store     *sqlite.Client
	cache     *redis.Client
	logger    *zap.Logger

	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}

	mu           sync.RWMutex
	state        State
	lastCycle    time.Time
	lastLearning time.Time
	stopped      bool
}

func New(cfg Config, coll *collector.Collector, learner *learning.Engine, monitor *tripwire.Monitor, store *sqlite.Client, cache *redis.Client, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CycleInterval == 0 {
		cfg.CycleInterval = 15 * time.Minute
	}
	if cfg.BackoffInterval == 0 || cfg.BackoffInterval >= cfg.CycleInterval {
		cfg.BackoffInterval = cfg.CycleInterval / 4
	}
	if cfg.LearningInterval == 0 {
		cfg.LearningInterval = 6 * time.Hour
	}
	if cfg.LookbackHours == 0 {
		cfg.LookbackHours = int(cfg.LearningInterval / time.Hour)
		if cfg.LookbackHours == 0 {
			cfg.LookbackHours = 1
		}
	}

	return &Orchestrator{
		cfg:       cfg,
		collector: coll,
		learner:   learner,
		monitor:   monitor,
		store:     store,
		cache:     cache,
		logger:    logger,
		trigger:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     StateIdle,
	}
}

// Start launches the loop. An immediate first cycle runs before the timer
// takes over.
func (o *Orchestrator) Start(ctx context.Context) {
	go o.run(ctx)
}

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.done)

	wait := time.Duration(0) // first cycle runs immediately
	for {
		timer := time.NewTimer(wait)
		select {
		case <-o.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-o.trigger:
			timer.Stop()
		case <-timer.C:
		}

		if err := o.runCycle(ctx); err != nil {
			o.logger.Error("Cycle failed, backing off", zap.Error(err))
			metrics.OrchestratorCycles.WithLabelValues("error").Inc()
			wait = o.cfg.BackoffInterval
			continue
		}
		metrics.OrchestratorCycles.WithLabelValues("ok").Inc()
		wait = o.cfg.CycleInterval
	}
}

// TriggerCycle requests a one-shot cycle outside the schedule. Returns
// false when the orchestrator is stopped or a trigger is already pending.
func (o *Orchestrator) TriggerCycle() bool {
	o.mu.RLock()
	stopped := o.stopped
	o.mu.RUnlock()
	if stopped {
		return false
	}

	select {
	case o.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop prevents new cycles and waits for any in-flight cycle to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		<-o.done
		return
	}
	o.stopped = true
	o.mu.Unlock()

	close(o.stop)
	<-o.done
	o.logger.Info("Orchestrator stopped")
}

func (o *Orchestrator) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
		o.setState(StateIdle)
	}()

	o.setState(StateCollecting)
	items, stats := o.collector.CollectAll(ctx)

	if o.store != nil {
		o.store.InsertItems(items)
		for _, rule := range o.monitor.Rules() {
			rule := rule
			if err := o.store.SaveRule(&rule); err != nil {
				o.logger.Warn("Failed to persist rule state",
					zap.String("rule_id", rule.ID),
					zap.Error(err),
				)
			}
		}
	}
	if o.cache != nil {
		if err := o.cache.SetFeed(ctx, items); err != nil {
			o.logger.Warn("Failed to cache feed snapshot", zap.Error(err))
		}
	}

	o.mu.Lock()
	o.lastCycle = time.Now().UTC()
	o.mu.Unlock()

	if o.ShouldRunLearning() {
		o.setState(StateLearning)
		deltas := o.learner.AnalyzeAndLearn(o.cfg.LookbackHours)

		if o.store != nil {
			for i := range deltas {
				if err := o.store.InsertDelta(&deltas[i]); err != nil {
					o.logger.Warn("Failed to persist delta",
						zap.String("delta_id", deltas[i].ID),
						zap.Error(err),
					)
				}
			}
		}

		o.mu.Lock()
		o.lastLearning = time.Now().UTC()
		o.mu.Unlock()
	}

	o.logger.Info("Cycle finished",
		zap.Int("items", stats.TotalItems),
		zap.Int("alerts", stats.AlertCount),
		zap.Duration("duration", stats.Duration),
	)
	return nil
}

// ShouldRunLearning reports whether the learning interval has elapsed since
// the last learning pass.
func (o *Orchestrator) ShouldRunLearning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return !time.Now().UTC().Before(o.lastLearning.Add(o.cfg.LearningInterval))
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

// CurrentState reports the loop phase for observability.
func (o *Orchestrator) CurrentState() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastCycleTime reports when the last collection cycle completed.
func (o *Orchestrator) LastCycleTime() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastCycle
}
