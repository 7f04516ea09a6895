package classifier

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/classify-cli/internal/model"
)

// resolveBySearch runs the fallback pass for vendors the initial pass
// left short of the target level. Tasks run under a semaphore of
// MaxConcurrentSearches and each is bounded by SearchClassifyTimeout.
// Each task writes only its own slot; the merge into results happens
// single-threaded after the fan-in and overwrites the vendor's prior
// levels wholesale, so stale initial-pass levels never survive beside
// search-derived ones.
func (e *Engine) resolveBySearch(ctx context.Context, unresolved []model.Vendor, results model.ResultSet) {
	zap.L().Info("starting search fallback", zap.Int("unresolved", len(unresolved)))

	contexts := make([]*model.SearchContext, len(unresolved))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrentSearches)
	for i, v := range unresolved {
		g.Go(func() error {
			contexts[i] = e.resolveOne(gctx, v)
			n := done.Add(1)
			frac := initialPassShare + (1-initialPassShare)*float64(n)/float64(len(unresolved))
			e.setProgress(gctx, frac, "search fallback")
			return nil
		})
	}
	// Tasks never return errors; Wait only fans in.
	_ = g.Wait()

	for i, v := range unresolved {
		sc := contexts[i]
		if sc == nil {
			continue
		}
		key := model.NormalizeName(v.Name)
		results[key].ReplaceLevels(sc.Levels)
	}
}

// resolveOne searches one vendor and, when the search yields content,
// re-derives its classification chain from level 1 with the findings
// attached as context. The whole invocation is bounded by
// SearchClassifyTimeout; expiry degrades to not-possible results for the
// levels not yet reached.
func (e *Engine) resolveOne(ctx context.Context, vendor model.Vendor) *model.SearchContext {
	if timeout := e.cfg.SearchClassifyTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e.stats.SearchAttempts.Add(1)
	key := model.NormalizeName(vendor.Name)

	e.stats.SearchCalls.Add(1)
	sc, err := e.searcher.Search(ctx, vendor)
	if err != nil {
		reason := fmt.Sprintf("search error: %v", err)
		if ctx.Err() != nil {
			reason = fmt.Sprintf("search timed out after %s", e.cfg.SearchClassifyTimeout())
		}
		return &model.SearchContext{
			VendorName: vendor.Name,
			Err:        reason,
			Levels:     map[int]model.LevelResult{1: model.NotPossibleResult(reason, model.SourceSearch)},
		}
	}
	if sc.Levels == nil {
		sc.Levels = make(map[int]model.LevelResult)
	}
	if !sc.HasContent() {
		sc.Levels[1] = model.NotPossibleResult("no usable search content", model.SourceSearch)
		return sc
	}

	contextBlock := sc.ContextBlock()

	res := e.classifyBatch(ctx, []model.Vendor{vendor}, 1, "", contextBlock, model.SourceSearch)[key]
	sc.Levels[1] = res
	if !res.Succeeded() {
		return sc
	}
	e.stats.SearchSuccesses.Add(1)
	e.stats.LevelSuccess(1)

	// Walk down while each level holds. A failed attempt is not recorded:
	// the chain keeps only the levels actually reached, so level 1 can
	// stand alone without a stale deeper entry beside it.
	parent := res.CategoryID
	for level := 2; level <= e.cfg.TargetLevel; level++ {
		if ctx.Err() != nil {
			break
		}
		res = e.classifyBatch(ctx, []model.Vendor{vendor}, level, parent, contextBlock, model.SourceSearch)[key]
		if !res.Succeeded() {
			break
		}
		sc.Levels[level] = res
		e.stats.LevelSuccess(level)
		parent = res.CategoryID
	}

	return sc
}
