package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/model"
)

// Reclassify re-runs the hierarchical classification for specific vendors
// from a prior job, injecting a human hint per vendor. Per-item failures
// are recorded on the item and never abort the rest; the returned error
// is reserved for preconditions that prevent any processing at all.
func (e *Engine) Reclassify(ctx context.Context, vendors []model.Vendor, prior model.ResultSet, reqs []model.ReviewRequest) ([]model.ReviewItem, error) {
	if len(prior) == 0 {
		return nil, eris.New("classifier: no prior results to review")
	}
	if len(reqs) == 0 {
		return nil, eris.New("classifier: no review items requested")
	}

	byKey := make(map[string]model.Vendor, len(vendors))
	for _, v := range vendors {
		byKey[model.NormalizeName(v.Name)] = v
	}

	items := make([]model.ReviewItem, 0, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		key := model.NormalizeName(req.VendorName)
		orig, ok := prior[key]
		if !ok {
			items = append(items, model.ReviewItem{
				VendorName: req.VendorName,
				Hint:       req.Hint,
				Err:        "no original result for vendor",
			})
			e.setProgress(ctx, float64(i+1)/float64(len(reqs)), "reviewing")
			continue
		}

		vendor, ok := byKey[key]
		if !ok {
			vendor = model.Vendor{Name: req.VendorName}
		}

		newResult := e.reclassifyOne(ctx, vendor, orig, req.Hint)
		items = append(items, model.ReviewItem{
			VendorName: req.VendorName,
			Hint:       req.Hint,
			Original:   orig.Clone(),
			New:        newResult,
		})

		zap.L().Info("vendor reviewed",
			zap.String("vendor", req.VendorName),
			zap.Bool("reached_target", newResult.SucceededAt(e.cfg.TargetLevel)),
		)
		e.setProgress(ctx, float64(i+1)/float64(len(reqs)), "reviewing")
	}

	return items, nil
}

// reclassifyOne drives one vendor through levels 1..target with the hint
// and its prior chain attached as context. Stops at the first level that
// fails.
func (e *Engine) reclassifyOne(ctx context.Context, vendor model.Vendor, orig model.VendorResult, hint string) model.VendorResult {
	block := reviewContextBlock(orig, hint)
	key := model.NormalizeName(vendor.Name)

	out := make(model.VendorResult)
	parent := ""
	for level := 1; level <= e.cfg.TargetLevel; level++ {
		res := e.classifyBatch(ctx, []model.Vendor{vendor}, level, parent, block, model.SourceReview)[key]
		out[level] = res
		if !res.Succeeded() {
			break
		}
		e.stats.LevelSuccess(level)
		parent = res.CategoryID
	}
	return out
}

// reviewContextBlock renders the human hint and the vendor's prior chain
// as a prompt context block.
func reviewContextBlock(orig model.VendorResult, hint string) string {
	var b strings.Builder
	b.WriteString("--- Reviewer Hint ---\n")
	b.WriteString(strings.TrimSpace(hint) + "\n\n")
	b.WriteString("Previous classification (being re-examined, may be wrong):\n")

	levels := make([]int, 0, len(orig))
	for lvl := range orig {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)
	for _, lvl := range levels {
		r := orig[lvl]
		if r.Succeeded() {
			fmt.Fprintf(&b, "- Level %d: %s (%s), confidence %.2f\n", lvl, r.CategoryName, r.CategoryID, r.Confidence)
		} else {
			fmt.Fprintf(&b, "- Level %d: not classified (%s)\n", lvl, r.Reason)
		}
	}
	return b.String()
}
