package model

import (
	"fmt"
	"strings"
)

// SearchSource is one snippet returned by the web search gateway.
type SearchSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchContext carries everything the fallback path learned about a
// vendor: the query, the raw sources, an optional summary, and whatever
// level results the search-driven classification reached. It is built per
// vendor and discarded after its levels are merged into the ResultSet.
type SearchContext struct {
	VendorName string               `json:"vendor_name"`
	Query      string               `json:"query"`
	Sources    []SearchSource       `json:"sources,omitempty"`
	Summary    string               `json:"summary,omitempty"`
	Err        string               `json:"error,omitempty"`
	Levels     map[int]LevelResult  `json:"levels"`
}

// HasContent reports whether the search produced any usable text.
func (sc *SearchContext) HasContent() bool {
	if sc.Summary != "" {
		return true
	}
	for _, s := range sc.Sources {
		if strings.TrimSpace(s.Content) != "" {
			return true
		}
	}
	return false
}

// maxSnippetLen bounds each source snippet injected into a prompt.
const maxSnippetLen = 1500

// ContextBlock formats the search findings as a prompt context block.
func (sc *SearchContext) ContextBlock() string {
	var b strings.Builder
	b.WriteString("--- Web Search Findings ---\n")
	if sc.Summary != "" {
		b.WriteString("Summary: " + sc.Summary + "\n\n")
	}
	for i, s := range sc.Sources {
		content := strings.TrimSpace(s.Content)
		if content == "" {
			continue
		}
		if len(content) > maxSnippetLen {
			content = content[:maxSnippetLen]
		}
		fmt.Fprintf(&b, "Source %d: %s (%s)\n%s\n\n", i+1, s.Title, s.URL, content)
	}
	return b.String()
}
