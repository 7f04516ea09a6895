package classifier

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/resilience"
	"github.com/sells-group/classify-cli/internal/taxonomy"
	"github.com/sells-group/classify-cli/pkg/anthropic"
)

// ClassifyRequest is one batch submitted to the classification model.
type ClassifyRequest struct {
	Entities         []model.Vendor
	Level            int
	BatchID          string
	ParentCategoryID string
	ValidOptions     []taxonomy.Category
	// ExtraContext carries search findings or a review hint block; empty
	// on the initial pass.
	ExtraContext string
}

// EntityClassification is the model's verdict for one entity.
type EntityClassification struct {
	EntityName   string  `json:"entity_name"`
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Confidence   float64 `json:"confidence"`
	NotPossible  bool    `json:"classification_not_possible"`
	Reason       string  `json:"reason,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// ClassifyResponse is the parsed model output for one batch.
type ClassifyResponse struct {
	Classifications []EntityClassification
	Usage           anthropic.TokenUsage
}

// ModelGateway is the classification model boundary. Implementations
// return an error on transport or parse failure; they never return
// partial garbage.
type ModelGateway interface {
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error)
}

type anthropicGateway struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

// NewAnthropicGateway wraps an Anthropic client as a ModelGateway. Calls
// are retried on transient failure per retry.
func NewAnthropicGateway(ai anthropic.Client, modelName string, maxTokens int64, retry resilience.RetryConfig) ModelGateway {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	retry.OnRetry = resilience.RetryLogger("anthropic", "classify")
	return &anthropicGateway{ai: ai, model: modelName, maxTokens: maxTokens, retry: retry}
}

func (g *anthropicGateway) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}

	// Temperature 0 keeps repeated runs over the same vendor set comparable.
	temperature := 0.0
	msgReq := anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: &temperature,
		System:      anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildUserPrompt(req)},
		},
	}

	resp, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.ai.CreateMessage(ctx, msgReq)
	})
	if err != nil {
		return nil, err
	}

	if resp.Truncated() {
		zap.L().Warn("model response truncated, entities past the cutoff come back not classifiable",
			zap.String("batch_id", req.BatchID),
			zap.Int("level", req.Level),
			zap.Int("entities", len(req.Entities)),
		)
	}

	classifications, err := parseClassifications(resp.Text())
	if err != nil {
		return nil, err
	}

	zap.L().Debug("batch classified",
		zap.String("batch_id", req.BatchID),
		zap.Int("level", req.Level),
		zap.String("parent", req.ParentCategoryID),
		zap.Int("entities", len(req.Entities)),
		zap.Int("returned", len(classifications)),
	)

	return &ClassifyResponse{Classifications: classifications, Usage: resp.Usage}, nil
}
