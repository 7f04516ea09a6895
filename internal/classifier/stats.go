package classifier

import (
	"sync/atomic"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/taxonomy"
	"github.com/sells-group/classify-cli/pkg/anthropic"
)

// RunStats holds the running counters for one job. Fallback tasks
// increment these concurrently, so every field is atomic.
type RunStats struct {
	ModelCalls        atomic.Int64
	PromptTokens      atomic.Int64
	CompletionTokens  atomic.Int64
	TotalTokens       atomic.Int64
	SearchCalls       atomic.Int64
	SearchAttempts    atomic.Int64
	SearchSuccesses   atomic.Int64
	InvalidCategories atomic.Int64

	levelSuccesses [taxonomy.MaxLevel + 1]atomic.Int64

	usage struct {
		input, output, cacheWrite, cacheRead atomic.Int64
	}
}

// AddUsage accumulates token usage from one model call.
func (s *RunStats) AddUsage(u anthropic.TokenUsage) {
	s.PromptTokens.Add(u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens)
	s.CompletionTokens.Add(u.OutputTokens)
	s.TotalTokens.Add(u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens + u.OutputTokens)
	s.usage.input.Add(u.InputTokens)
	s.usage.output.Add(u.OutputTokens)
	s.usage.cacheWrite.Add(u.CacheCreationInputTokens)
	s.usage.cacheRead.Add(u.CacheReadInputTokens)
}

// LevelSuccess records one successful classification at a level.
func (s *RunStats) LevelSuccess(level int) {
	if level >= 1 && level <= taxonomy.MaxLevel {
		s.levelSuccesses[level].Add(1)
	}
}

// Usage returns the accumulated token usage, suitable for cost reporting.
func (s *RunStats) Usage() anthropic.TokenUsage {
	return anthropic.TokenUsage{
		InputTokens:              s.usage.input.Load(),
		OutputTokens:             s.usage.output.Load(),
		CacheCreationInputTokens: s.usage.cacheWrite.Load(),
		CacheReadInputTokens:     s.usage.cacheRead.Load(),
	}
}

// Snapshot copies the counters into an immutable view.
func (s *RunStats) Snapshot() model.StatsSnapshot {
	snap := model.StatsSnapshot{
		ModelCalls:        s.ModelCalls.Load(),
		PromptTokens:      s.PromptTokens.Load(),
		CompletionTokens:  s.CompletionTokens.Load(),
		TotalTokens:       s.TotalTokens.Load(),
		SearchCalls:       s.SearchCalls.Load(),
		SearchAttempts:    s.SearchAttempts.Load(),
		SearchSuccesses:   s.SearchSuccesses.Load(),
		InvalidCategories: s.InvalidCategories.Load(),
		LevelSuccesses:    make(map[int]int64, taxonomy.MaxLevel),
	}
	for lvl := 1; lvl <= taxonomy.MaxLevel; lvl++ {
		if n := s.levelSuccesses[lvl].Load(); n > 0 {
			snap.LevelSuccesses[lvl] = n
		}
	}
	return snap
}
