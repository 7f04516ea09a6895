package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

// classifyBatch classifies one batch of vendors at one level under one
// parent and returns a result for every vendor in the batch, keyed by
// normalized name. It never returns an error: every failure mode degrades
// to not-possible results with a human-readable reason.
func (e *Engine) classifyBatch(ctx context.Context, batch []model.Vendor, level int, parentID string, extraContext string, src model.Source) map[string]model.LevelResult {
	valid, err := e.taxonomy.Categories(ctx, level, parentID)
	if err != nil {
		return e.failBatch(batch, fmt.Sprintf("taxonomy lookup failed: %v", err), src)
	}
	if len(valid) == 0 && level > 1 {
		return e.failBatch(batch, fmt.Sprintf("no child categories under %s at level %d", parentID, level), src)
	}

	validByID := make(map[string]taxonomy.Category, len(valid))
	for _, c := range valid {
		validByID[c.ID] = c
	}

	callCtx := ctx
	if timeout := e.cfg.BatchTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e.stats.ModelCalls.Add(1)
	resp, err := e.gw.Classify(callCtx, ClassifyRequest{
		Entities:         batch,
		Level:            level,
		ParentCategoryID: parentID,
		ValidOptions:     valid,
		ExtraContext:     extraContext,
	})
	if err != nil {
		reason := fmt.Sprintf("model call failed: %v", err)
		switch {
		case errors.Is(err, context.Canceled) || callCtx.Err() == context.Canceled:
			reason = "model call cancelled"
		case errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded:
			reason = fmt.Sprintf("model call timed out after %s", e.cfg.BatchTimeout())
		}
		return e.failBatch(batch, reason, src)
	}
	e.stats.AddUsage(resp.Usage)

	inBatch := make(map[string]bool, len(batch))
	for _, v := range batch {
		inBatch[model.NormalizeName(v.Name)] = true
	}

	out := make(map[string]model.LevelResult, len(batch))
	for _, c := range resp.Classifications {
		key := model.NormalizeName(c.EntityName)
		if !inBatch[key] {
			// Hallucinated entity; drop it rather than pollute the set.
			continue
		}
		out[key] = e.validate(c, validByID, src)
	}

	// Entities the model never mentioned still get a terminal record.
	for _, v := range batch {
		key := model.NormalizeName(v.Name)
		if _, ok := out[key]; !ok {
			out[key] = model.NotPossibleResult("missing from response", src)
		}
	}

	return out
}

// validate enforces the result invariants on one model verdict: the id
// must be in the valid set, not-possible forces zero confidence and N/A
// ids, and a possible verdict with a missing id is forced not-possible.
func (e *Engine) validate(c EntityClassification, validByID map[string]taxonomy.Category, src model.Source) model.LevelResult {
	if c.NotPossible {
		reason := c.Reason
		if reason == "" {
			reason = "model declined to classify"
		}
		r := model.NotPossibleResult(reason, src)
		r.Notes = c.Notes
		return r
	}

	if c.CategoryID == "" || c.CategoryID == model.NotAvailable {
		return model.NotPossibleResult("model marked possible but returned no category id", src)
	}

	cat, ok := validByID[c.CategoryID]
	if !ok {
		e.stats.InvalidCategories.Add(1)
		return model.NotPossibleResult(fmt.Sprintf("model returned invalid category id %q", c.CategoryID), src)
	}

	conf := c.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return model.LevelResult{
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Confidence:   conf,
		Reason:       c.Reason,
		Notes:        c.Notes,
		Source:       src,
	}
}

func (e *Engine) failBatch(batch []model.Vendor, reason string, src model.Source) map[string]model.LevelResult {
	out := make(map[string]model.LevelResult, len(batch))
	for _, v := range batch {
		out[model.NormalizeName(v.Name)] = model.NotPossibleResult(reason, src)
	}
	return out
}
