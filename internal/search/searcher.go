// Package search implements the web search collaborator used by the
// classification fallback path: raw snippets from Jina search, optionally
// condensed into a summary by Perplexity.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/resilience"
	"github.com/sells-group/classify-cli/pkg/jina"
	"github.com/sells-group/classify-cli/pkg/perplexity"
)

// Searcher looks up a vendor on the web and returns the gathered context.
type Searcher interface {
	Search(ctx context.Context, vendor model.Vendor) (*model.SearchContext, error)
}

// WebSearcher implements Searcher over Jina search with an optional
// Perplexity summarizer. A nil summarizer disables summaries.
type WebSearcher struct {
	jina       jina.Client
	summarizer perplexity.Client
	maxResults int
	retry      resilience.RetryConfig
}

// Option customizes a WebSearcher.
type Option func(*WebSearcher)

// WithRetry sets the retry policy for search calls. Without it, searches
// get a single attempt.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *WebSearcher) {
		cfg.OnRetry = resilience.RetryLogger("jina", "search")
		s.retry = cfg
	}
}

// New creates a WebSearcher. summarizer may be nil.
func New(jinaClient jina.Client, summarizer perplexity.Client, maxResults int, opts ...Option) *WebSearcher {
	if maxResults <= 0 {
		maxResults = 5
	}
	s := &WebSearcher{
		jina:       jinaClient,
		summarizer: summarizer,
		maxResults: maxResults,
		retry:      resilience.RetryConfig{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search implements Searcher. The query combines the vendor name with its
// address when available, which disambiguates common company names.
func (s *WebSearcher) Search(ctx context.Context, vendor model.Vendor) (*model.SearchContext, error) {
	query := buildQuery(vendor)
	sc := &model.SearchContext{
		VendorName: vendor.Name,
		Query:      query,
		Levels:     make(map[int]model.LevelResult),
	}

	resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*jina.SearchResponse, error) {
		return s.jina.Search(ctx, query, jina.WithMaxResults(s.maxResults))
	})
	if err != nil {
		return nil, err
	}

	for _, r := range resp.Data {
		content := r.Content
		if strings.TrimSpace(content) == "" {
			content = r.Description
		}
		sc.Sources = append(sc.Sources, model.SearchSource{
			Title:   r.Title,
			URL:     r.URL,
			Content: content,
		})
	}

	if len(sc.Sources) > 0 && s.summarizer != nil {
		summary, sumErr := s.summarizer.Summarize(ctx, vendor.Name, snippetText(sc.Sources))
		if sumErr != nil {
			// Summary is advisory context; the raw snippets still work.
			zap.L().Warn("search: summarize failed",
				zap.String("vendor", vendor.Name),
				zap.Error(sumErr),
			)
		} else {
			sc.Summary = summary
		}
	}

	return sc, nil
}

func buildQuery(vendor model.Vendor) string {
	parts := []string{vendor.Name}
	if vendor.Address != "" {
		parts = append(parts, vendor.Address)
	}
	parts = append(parts, "company")
	return strings.Join(parts, " ")
}

func snippetText(sources []model.SearchSource) string {
	var b strings.Builder
	for _, s := range sources {
		b.WriteString(s.Title)
		b.WriteString(": ")
		b.WriteString(s.Content)
		b.WriteString("\n")
	}
	return b.String()
}
