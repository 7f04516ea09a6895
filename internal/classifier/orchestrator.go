package classifier

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/model"
)

// ClassifyAll drives every vendor through levels 1..target, then hands
// vendors that never reached the target level to the search fallback.
// The job always completes: the returned set has an entry for every
// vendor, successful or not-possible. The only error returned is context
// cancellation.
func (e *Engine) ClassifyAll(ctx context.Context, vendors []model.Vendor) (model.ResultSet, error) {
	results := make(model.ResultSet, len(vendors))
	byKey := make(map[string]model.Vendor, len(vendors))
	survivors := make([]string, 0, len(vendors))
	for _, v := range vendors {
		key := model.NormalizeName(v.Name)
		if _, dup := byKey[key]; dup {
			continue
		}
		byKey[key] = v
		results[key] = make(model.VendorResult)
		survivors = append(survivors, key)
	}

	target := e.cfg.TargetLevel

	for level := 1; level <= target; level++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if len(survivors) == 0 {
			// Nothing left to classify at this depth; no gateway calls.
			continue
		}

		groups := groupByParent(survivors, results, level)
		totalBatches := countBatches(groups, e.cfg.BatchSize)
		batchesDone := 0

		var next []string
		for _, g := range groups {
			for start := 0; start < len(g.keys); start += e.cfg.BatchSize {
				end := min(start+e.cfg.BatchSize, len(g.keys))
				batch := make([]model.Vendor, 0, end-start)
				for _, key := range g.keys[start:end] {
					batch = append(batch, byKey[key])
				}

				res := e.classifyBatch(ctx, batch, level, g.parentID, "", model.SourceInitial)
				for key, r := range res {
					results[key][level] = r
					if r.Succeeded() {
						e.stats.LevelSuccess(level)
						next = append(next, key)
					}
				}

				batchesDone++
				frac := initialPassShare * (float64(level-1) + float64(batchesDone)/float64(totalBatches)) / float64(target)
				e.setProgress(ctx, frac, fmt.Sprintf("classifying level %d", level))
			}
		}

		zap.L().Info("level complete",
			zap.Int("level", level),
			zap.Int("in", len(survivors)),
			zap.Int("succeeded", len(next)),
		)
		sort.Strings(next)
		survivors = next
		e.setProgress(ctx, initialPassShare*float64(level)/float64(target), fmt.Sprintf("level %d complete", level))
	}

	unresolved := make([]model.Vendor, 0)
	for key, v := range byKey {
		if !results[key].SucceededAt(target) {
			unresolved = append(unresolved, v)
		}
	}
	sort.Slice(unresolved, func(i, j int) bool { return unresolved[i].Name < unresolved[j].Name })

	if len(unresolved) > 0 && e.searcher != nil {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		e.resolveBySearch(ctx, unresolved, results)
	}

	e.setProgress(ctx, 1.0, "complete")
	return results, ctx.Err()
}

type parentGroup struct {
	parentID string
	keys     []string
}

// groupByParent buckets surviving vendors by their previous level's
// category id. Level 1 is a single group with an empty parent. Groups are
// ordered by parent id so runs are deterministic.
func groupByParent(survivors []string, results model.ResultSet, level int) []parentGroup {
	if level == 1 {
		keys := make([]string, len(survivors))
		copy(keys, survivors)
		sort.Strings(keys)
		return []parentGroup{{parentID: "", keys: keys}}
	}

	buckets := make(map[string][]string)
	for _, key := range survivors {
		parent := results[key].CategoryAt(level - 1)
		if parent == "" {
			continue
		}
		buckets[parent] = append(buckets[parent], key)
	}

	parents := make([]string, 0, len(buckets))
	for p := range buckets {
		parents = append(parents, p)
	}
	sort.Strings(parents)

	groups := make([]parentGroup, 0, len(parents))
	for _, p := range parents {
		keys := buckets[p]
		sort.Strings(keys)
		groups = append(groups, parentGroup{parentID: p, keys: keys})
	}
	return groups
}

func countBatches(groups []parentGroup, batchSize int) int {
	n := 0
	for _, g := range groups {
		n += (len(g.keys) + batchSize - 1) / batchSize
	}
	if n == 0 {
		n = 1
	}
	return n
}
