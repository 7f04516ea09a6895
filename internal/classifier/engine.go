// Package classifier implements the classification orchestration engine:
// the hierarchical batch classifier, the bounded-concurrency search
// fallback, and the hint-driven re-classification workflow.
package classifier

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/config"
	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/search"
	"github.com/sells-group/classify-cli/internal/taxonomy"
	"github.com/sells-group/classify-cli/pkg/anthropic"
)

// ProgressSink receives progress updates from a running job. SetProgress
// is cheap and in-memory; Commit flushes to the persistence layer and may
// fail, in which case the engine logs and keeps going.
type ProgressSink interface {
	SetProgress(fraction float64, stage string)
	Commit(ctx context.Context) error
}

// NopProgress discards all progress updates.
type NopProgress struct{}

// SetProgress implements ProgressSink.
func (NopProgress) SetProgress(float64, string) {}

// Commit implements ProgressSink.
func (NopProgress) Commit(context.Context) error { return nil }

// initialPassShare is the progress fraction consumed by the level-by-level
// initial pass; the remainder belongs to the search fallback.
const initialPassShare = 0.8

// Engine drives vendors through the taxonomy. One Engine instance serves
// a single run; its counters accumulate for the Engine's lifetime, so
// callers construct a fresh Engine per job.
type Engine struct {
	gw       ModelGateway
	taxonomy taxonomy.Gateway
	searcher search.Searcher
	progress ProgressSink
	cfg      config.ClassifyConfig

	stats *RunStats

	mu           sync.Mutex
	lastProgress float64
}

// NewEngine assembles an Engine. searcher may be nil, which disables the
// fallback pass. progress may be nil.
func NewEngine(gw ModelGateway, tax taxonomy.Gateway, searcher search.Searcher, progress ProgressSink, cfg config.ClassifyConfig) *Engine {
	if progress == nil {
		progress = NopProgress{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxConcurrentSearches <= 0 {
		cfg.MaxConcurrentSearches = 5
	}
	if cfg.TargetLevel <= 0 || cfg.TargetLevel > taxonomy.MaxLevel {
		cfg.TargetLevel = taxonomy.MaxLevel
	}
	return &Engine{
		gw:       gw,
		taxonomy: tax,
		searcher: searcher,
		progress: progress,
		cfg:      cfg,
		stats:    &RunStats{},
	}
}

// Stats returns a snapshot of the running counters.
func (e *Engine) Stats() model.StatsSnapshot {
	return e.stats.Snapshot()
}

// Usage returns the accumulated token usage for cost reporting.
func (e *Engine) Usage() anthropic.TokenUsage {
	return e.stats.Usage()
}

// setProgress reports a monotonically non-decreasing fraction. Commit
// failures are logged and swallowed so a flaky store never aborts a job.
func (e *Engine) setProgress(ctx context.Context, fraction float64, stage string) {
	e.mu.Lock()
	if fraction < e.lastProgress {
		fraction = e.lastProgress
	}
	e.lastProgress = fraction
	e.mu.Unlock()

	e.progress.SetProgress(fraction, stage)
	if err := e.progress.Commit(ctx); err != nil {
		zap.L().Warn("progress commit failed",
			zap.String("stage", stage),
			zap.Float64("fraction", fraction),
			zap.Error(err),
		)
	}
}
