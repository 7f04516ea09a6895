package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt(ClassifyRequest{
		Entities: []model.Vendor{
			{Name: "Acme Corp", Website: "acme.example", SpendCategory: "MRO"},
			{Name: "Beta LLC"},
		},
		Level:            2,
		ParentCategoryID: "11",
		ValidOptions: []taxonomy.Category{
			{ID: "1101", Name: "Chemicals"},
			{ID: "1102", Name: "Machinery"},
		},
		ExtraContext: "--- Web Search Findings ---\nSummary: adhesives maker",
	})

	assert.Contains(t, prompt, "level 2")
	assert.Contains(t, prompt, "parent category 11")
	assert.Contains(t, prompt, "- 1101: Chemicals")
	assert.Contains(t, prompt, "Acme Corp (website: acme.example; spend category: MRO)")
	assert.Contains(t, prompt, "2. Beta LLC")
	assert.Contains(t, prompt, "adhesives maker")
}

func TestParseClassifications(t *testing.T) {
	raw := "```json\n[{\"entity_name\":\"Acme\",\"category_id\":\"11\",\"category_name\":\"Manufacturing\",\"confidence\":0.92,\"classification_not_possible\":false}]\n```"

	out, err := parseClassifications(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Acme", out[0].EntityName)
	assert.Equal(t, "11", out[0].CategoryID)
	assert.InDelta(t, 0.92, out[0].Confidence, 1e-9)
}

func TestParseClassifications_ProseWrapped(t *testing.T) {
	raw := `Here are the results:
[{"entity_name":"Acme","category_id":"N/A","category_name":"N/A","confidence":0,"classification_not_possible":true,"reason":"unknown vendor"}]
Let me know if you need anything else.`

	out, err := parseClassifications(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].NotPossible)
	assert.Equal(t, "unknown vendor", out[0].Reason)
}

func TestParseClassifications_Invalid(t *testing.T) {
	_, err := parseClassifications("no json here")
	assert.Error(t, err)

	_, err = parseClassifications(`[{"entity_name": }]`)
	assert.Error(t, err)
}
