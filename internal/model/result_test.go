package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotPossibleResult_Invariants(t *testing.T) {
	r := NotPossibleResult("taxonomy lookup failed", SourceInitial)

	assert.True(t, r.NotPossible)
	assert.Equal(t, NotAvailable, r.CategoryID)
	assert.Equal(t, NotAvailable, r.CategoryName)
	assert.Equal(t, 0.0, r.Confidence)
	assert.Equal(t, "taxonomy lookup failed", r.Reason)
	assert.Equal(t, SourceInitial, r.Source)
	assert.False(t, r.Succeeded())
}

func TestLevelResult_Succeeded(t *testing.T) {
	ok := LevelResult{CategoryID: "11", CategoryName: "Manufacturing", Confidence: 0.9}
	assert.True(t, ok.Succeeded())

	assert.False(t, LevelResult{CategoryID: NotAvailable}.Succeeded())
	assert.False(t, LevelResult{}.Succeeded())
}

func TestVendorResult_SucceededAt(t *testing.T) {
	vr := VendorResult{
		1: {CategoryID: "11", Confidence: 0.8},
		2: NotPossibleResult("low confidence", SourceInitial),
	}

	assert.True(t, vr.SucceededAt(1))
	assert.False(t, vr.SucceededAt(2))
	assert.False(t, vr.SucceededAt(3))
	assert.Equal(t, "11", vr.CategoryAt(1))
	assert.Equal(t, "", vr.CategoryAt(2))
}

func TestVendorResult_ReplaceLevels(t *testing.T) {
	vr := VendorResult{
		1: {CategoryID: "11", Confidence: 0.9, Source: SourceInitial},
		2: {CategoryID: "1111", Confidence: 0.7, Source: SourceInitial},
		3: NotPossibleResult("model call failed", SourceInitial),
	}

	vr.ReplaceLevels(map[int]LevelResult{
		1: {CategoryID: "22", Confidence: 0.8, Source: SourceSearch},
	})

	// Stale deep levels must not survive beside the rebuilt chain.
	assert.Len(t, vr, 1)
	assert.Equal(t, "22", vr[1].CategoryID)
	assert.Equal(t, SourceSearch, vr[1].Source)
}

func TestVendorResult_Clone_Independent(t *testing.T) {
	vr := VendorResult{1: {CategoryID: "11"}}
	snap := vr.Clone()

	vr[1] = NotPossibleResult("overwritten", SourceSearch)
	vr[2] = LevelResult{CategoryID: "1111"}

	assert.Equal(t, "11", snap[1].CategoryID)
	assert.Len(t, snap, 1)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "acme corp", NormalizeName("  Acme   Corp "))
	assert.Equal(t, NormalizeName("ACME CORP"), NormalizeName("acme corp"))
}

func TestSearchContext_HasContent(t *testing.T) {
	empty := &SearchContext{Sources: []SearchSource{{Title: "x", Content: "   "}}}
	assert.False(t, empty.HasContent())

	withSummary := &SearchContext{Summary: "industrial adhesives maker"}
	assert.True(t, withSummary.HasContent())

	withSource := &SearchContext{Sources: []SearchSource{{Content: "Acme makes glue"}}}
	assert.True(t, withSource.HasContent())
}

func TestSearchContext_ContextBlock(t *testing.T) {
	sc := &SearchContext{
		Summary: "maker of adhesives",
		Sources: []SearchSource{
			{Title: "Acme", URL: "https://acme.example", Content: "Acme produces glue."},
			{Title: "empty", URL: "https://none.example", Content: ""},
		},
	}

	block := sc.ContextBlock()
	assert.Contains(t, block, "Web Search Findings")
	assert.Contains(t, block, "maker of adhesives")
	assert.Contains(t, block, "Acme produces glue.")
	assert.NotContains(t, block, "none.example")
}
