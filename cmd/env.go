package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/classifier"
	"github.com/sells-group/classify-cli/internal/resilience"
	"github.com/sells-group/classify-cli/internal/search"
	"github.com/sells-group/classify-cli/internal/store"
	"github.com/sells-group/classify-cli/internal/taxonomy"
	"github.com/sells-group/classify-cli/pkg/anthropic"
	"github.com/sells-group/classify-cli/pkg/jina"
	"github.com/sells-group/classify-cli/pkg/perplexity"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildGateway assembles the classification model gateway. Offline mode
// swaps in the deterministic stub for dry runs without API keys.
func buildGateway(offline bool) (classifier.ModelGateway, error) {
	if offline {
		zap.L().Info("offline mode, using stub model gateway")
		return &classifier.StubGateway{}, nil
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key not configured (set CLASSIFY_ANTHROPIC_KEY or use --offline)")
	}
	retry := resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier, cfg.Retry.JitterFraction,
	)
	return classifier.NewAnthropicGateway(
		anthropic.NewClient(cfg.Anthropic.Key),
		cfg.Anthropic.Model,
		cfg.Anthropic.MaxTokens,
		retry,
	), nil
}

// buildSearcher assembles the web search fallback. Returns nil when no
// Jina key is configured, which disables the fallback pass.
func buildSearcher(offline bool) search.Searcher {
	if offline {
		return classifier.StubSearcher{}
	}
	if cfg.Jina.Key == "" {
		zap.L().Warn("jina key not configured, search fallback disabled")
		return nil
	}

	jinaClient := jina.NewClient(cfg.Jina.Key,
		jina.WithBaseURL(cfg.Jina.SearchBaseURL),
		jina.WithRateLimit(cfg.Jina.RatePerSec),
	)

	var summarizer perplexity.Client
	if cfg.Perplexity.Key != "" {
		summarizer = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	}

	retry := resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier, cfg.Retry.JitterFraction,
	)
	return search.New(jinaClient, summarizer, cfg.Jina.MaxResults, search.WithRetry(retry))
}

// loadTaxonomy reads the taxonomy from an xlsx file when a path is
// given, otherwise from the store snapshot.
func loadTaxonomy(ctx context.Context, st store.Store, path string) (*taxonomy.Tree, error) {
	if path != "" {
		return taxonomy.LoadXLSX(path)
	}
	return st.LoadTaxonomy(ctx)
}
