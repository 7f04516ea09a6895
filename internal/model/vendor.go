package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Vendor is a single named entity to classify. Attributes beyond Name are
// optional context for the model and are never mutated during a job.
type Vendor struct {
	Name             string `json:"name"`
	Example          string `json:"example,omitempty"`
	Address          string `json:"address,omitempty"`
	Website          string `json:"website,omitempty"`
	InternalCategory string `json:"internal_category,omitempty"`
	ParentCompany    string `json:"parent_company,omitempty"`
	SpendCategory    string `json:"spend_category,omitempty"`
}

var foldCaser = cases.Fold()

// NormalizeName canonicalizes a vendor name for use as a result-set key:
// NFC normalization, case folding, and whitespace collapse. Raw names from
// spreadsheets routinely differ only in case or stray whitespace.
func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	name = foldCaser.String(name)
	return strings.Join(strings.Fields(name), " ")
}

// DisplayTitle renders a vendor name in title case for reports.
func DisplayTitle(name string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(name)))
}
