package classifier

import (
	"context"
	"hash/fnv"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/pkg/anthropic"
)

// StubGateway is a deterministic offline ModelGateway. It assigns each
// entity a category from the valid options by hashing the entity name, so
// repeated runs produce identical results without network access. Useful
// for dry runs and demos.
type StubGateway struct {
	// Confidence reported for every stub verdict. Defaults to 0.9.
	Confidence float64
}

// Classify implements ModelGateway.
func (s *StubGateway) Classify(_ context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	conf := s.Confidence
	if conf == 0 {
		conf = 0.9
	}

	resp := &ClassifyResponse{
		Usage: anthropic.TokenUsage{InputTokens: int64(40 * len(req.Entities)), OutputTokens: int64(25 * len(req.Entities))},
	}
	for _, v := range req.Entities {
		if len(req.ValidOptions) == 0 {
			resp.Classifications = append(resp.Classifications, EntityClassification{
				EntityName:  v.Name,
				CategoryID:  model.NotAvailable,
				NotPossible: true,
				Reason:      "no options available",
			})
			continue
		}
		opt := req.ValidOptions[hashIndex(v.Name, len(req.ValidOptions))]
		resp.Classifications = append(resp.Classifications, EntityClassification{
			EntityName:   v.Name,
			CategoryID:   opt.ID,
			CategoryName: opt.Name,
			Confidence:   conf,
		})
	}
	return resp, nil
}

func hashIndex(name string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(model.NormalizeName(name)))
	return int(h.Sum32() % uint32(n))
}

// StubSearcher returns canned search content for any vendor. It pairs
// with StubGateway for fully offline runs.
type StubSearcher struct{}

// Search implements search.Searcher.
func (StubSearcher) Search(_ context.Context, vendor model.Vendor) (*model.SearchContext, error) {
	return &model.SearchContext{
		VendorName: vendor.Name,
		Query:      vendor.Name + " company",
		Sources: []model.SearchSource{
			{Title: vendor.Name, URL: "https://example.com", Content: "Placeholder company profile for " + vendor.Name + "."},
		},
		Levels: make(map[int]model.LevelResult),
	}, nil
}
