package anthropic

import "go.uber.org/zap"

// TokenUsage accumulates token consumption across calls.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Add folds another usage into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// Per-million-token pricing, input and output, by model id.
var modelPricing = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-6":            {15.00, 75.00},
}

// Cache writes bill at a premium over plain input tokens, cache reads
// at a steep discount.
const (
	cacheWriteMultiplier = 1.25
	cacheReadMultiplier  = 0.1
)

// EstimateCost converts the usage into approximate USD for the given
// model. Unknown models estimate to 0.
func (u TokenUsage) EstimateCost(model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	perInput := pricing[0] / 1e6
	perOutput := pricing[1] / 1e6
	return float64(u.InputTokens)*perInput +
		float64(u.OutputTokens)*perOutput +
		float64(u.CacheCreationInputTokens)*perInput*cacheWriteMultiplier +
		float64(u.CacheReadInputTokens)*perInput*cacheReadMultiplier
}

// LogCost emits the usage and estimated cost for one phase of a job.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
