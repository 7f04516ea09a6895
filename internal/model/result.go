package model

// Source marks the provenance of a level result.
type Source string

// Provenance constants for level results.
const (
	SourceInitial Source = "initial"
	SourceSearch  Source = "search"
	SourceReview  Source = "review"
)

// NotAvailable is the category id/name placeholder for a not-possible result.
const NotAvailable = "N/A"

// LevelResult is the classification outcome at a single taxonomy level.
//
// Invariants: NotPossible implies Confidence == 0 and CategoryID and
// CategoryName == "N/A"; otherwise CategoryID is a member of the valid
// child-category set for its (level, parent) pair.
type LevelResult struct {
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Confidence   float64 `json:"confidence"`
	NotPossible  bool    `json:"classification_not_possible"`
	Reason       string  `json:"reason,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	Source       Source  `json:"source"`
}

// NotPossibleResult builds the terminal "no confident classification" state.
func NotPossibleResult(reason string, src Source) LevelResult {
	return LevelResult{
		CategoryID:   NotAvailable,
		CategoryName: NotAvailable,
		NotPossible:  true,
		Reason:       reason,
		Source:       src,
	}
}

// Succeeded reports whether this is a usable classification.
func (r LevelResult) Succeeded() bool {
	return !r.NotPossible && r.CategoryID != "" && r.CategoryID != NotAvailable
}

// VendorResult maps taxonomy level (1-5) to the result obtained there.
// A level-N entry exists only if level N-1 succeeded, or the whole chain
// was rebuilt by the search fallback.
type VendorResult map[int]LevelResult

// SucceededAt reports whether the vendor has a successful result at level.
func (vr VendorResult) SucceededAt(level int) bool {
	r, ok := vr[level]
	return ok && r.Succeeded()
}

// CategoryAt returns the successful category id at level, or "".
func (vr VendorResult) CategoryAt(level int) string {
	if r, ok := vr[level]; ok && r.Succeeded() {
		return r.CategoryID
	}
	return ""
}

// Clone returns a deep copy, safe to snapshot before a re-classification.
func (vr VendorResult) Clone() VendorResult {
	if vr == nil {
		return nil
	}
	out := make(VendorResult, len(vr))
	for lvl, r := range vr {
		out[lvl] = r
	}
	return out
}

// ReplaceLevels discards every existing level entry and installs the given
// chain. Used when the search fallback re-derives a vendor from level 1:
// stale initial-pass levels must never survive beside search-derived ones.
func (vr VendorResult) ReplaceLevels(levels map[int]LevelResult) {
	for lvl := range vr {
		delete(vr, lvl)
	}
	for lvl, r := range levels {
		vr[lvl] = r
	}
}

// ResultSet holds per-vendor results for one job, keyed by normalized
// vendor name. Concurrent fallback tasks write disjoint keys; the merge
// itself happens single-threaded after the fan-in.
type ResultSet map[string]VendorResult

// Clone deep-copies the whole set.
func (rs ResultSet) Clone() ResultSet {
	out := make(ResultSet, len(rs))
	for name, vr := range rs {
		out[name] = vr.Clone()
	}
	return out
}
