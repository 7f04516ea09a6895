package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

const classifySystemPrompt = `You are a procurement analyst classifying vendors into a fixed hierarchical category taxonomy.

For each vendor you receive, choose exactly one category from the provided list of valid options, or declare the classification not possible.

Rules:
- You MUST pick the category id from the provided options. Never invent an id.
- confidence is a number from 0.0 to 1.0 reflecting how certain you are.
- If you cannot confidently place a vendor in any of the options, set "classification_not_possible" to true, "category_id" and "category_name" to "N/A", "confidence" to 0.0, and give a short "reason".
- Use any provided web search findings or reviewer hints as additional evidence.
- Respond with ONLY a JSON array, no prose, no markdown fences. One object per vendor:
[{"entity_name": "...", "category_id": "...", "category_name": "...", "confidence": 0.0, "classification_not_possible": false, "reason": null, "notes": null}]`

// buildUserPrompt renders one batch request as the user message.
func buildUserPrompt(req ClassifyRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Classify the following %d vendor(s) at taxonomy level %d.\n", len(req.Entities), req.Level)
	if req.ParentCategoryID != "" {
		fmt.Fprintf(&b, "All vendors were already classified under parent category %s at the previous level.\n", req.ParentCategoryID)
	}

	b.WriteString("\nValid category options (pick the id from this list only):\n")
	for _, c := range req.ValidOptions {
		fmt.Fprintf(&b, "- %s: %s\n", c.ID, c.Name)
	}

	if req.ExtraContext != "" {
		b.WriteString("\n" + strings.TrimSpace(req.ExtraContext) + "\n")
	}

	b.WriteString("\nVendors:\n")
	for i, v := range req.Entities {
		fmt.Fprintf(&b, "%d. %s", i+1, v.Name)
		var attrs []string
		if v.Example != "" {
			attrs = append(attrs, "example: "+v.Example)
		}
		if v.Address != "" {
			attrs = append(attrs, "address: "+v.Address)
		}
		if v.Website != "" {
			attrs = append(attrs, "website: "+v.Website)
		}
		if v.InternalCategory != "" {
			attrs = append(attrs, "internal category: "+v.InternalCategory)
		}
		if v.ParentCompany != "" {
			attrs = append(attrs, "parent company: "+v.ParentCompany)
		}
		if v.SpendCategory != "" {
			attrs = append(attrs, "spend category: "+v.SpendCategory)
		}
		if len(attrs) > 0 {
			b.WriteString(" (" + strings.Join(attrs, "; ") + ")")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// parseClassifications extracts the JSON array from a model reply. Models
// occasionally wrap output in markdown fences or lead with prose despite
// instructions, so the parser locates the outermost array first.
func parseClassifications(raw string) ([]EntityClassification, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, eris.New("classifier: empty model response")
	}

	var out []EntityClassification
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, eris.Wrap(err, "classifier: parse model response")
	}
	return out, nil
}

// cleanJSON strips markdown fences and surrounding prose, returning the
// outermost JSON array in the text.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
