package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classify-cli/internal/classifier"
	"github.com/sells-group/classify-cli/internal/config"
	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/store"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	return newTestServerWith(t, &classifier.StubGateway{})
}

func newTestServerWith(t *testing.T, gw classifier.ModelGateway) (*httptest.Server, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	tree := taxonomy.NewTree()
	require.NoError(t, tree.Add(1, "", taxonomy.Category{ID: "11", Name: "Construction"}))
	require.NoError(t, tree.Add(2, "11", taxonomy.Category{ID: "1101", Name: "Roofing"}))
	require.NoError(t, tree.Add(3, "1101", taxonomy.Category{ID: "110103", Name: "Metal Roofing"}))

	cfg := config.ClassifyConfig{
		BatchSize:                 10,
		MaxConcurrentSearches:     2,
		BatchTimeoutSecs:          30,
		SearchClassifyTimeoutSecs: 30,
		TargetLevel:               3,
	}
	srv := httptest.NewServer(NewServer(st, gw, tree, cfg).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

// recordingGateway answers like the stub but keeps every request it saw.
type recordingGateway struct {
	classifier.StubGateway
	mu   sync.Mutex
	reqs []classifier.ClassifyRequest
}

func (g *recordingGateway) Classify(ctx context.Context, req classifier.ClassifyRequest) (*classifier.ClassifyResponse, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	return g.StubGateway.Classify(ctx, req)
}

func (g *recordingGateway) requests() []classifier.ClassifyRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]classifier.ClassifyRequest, len(g.reqs))
	copy(out, g.reqs)
	return out
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServer_Healthz(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Jobs(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "q3 vendors", 3, 10)
	require.NoError(t, err)
	require.NoError(t, st.SaveStats(ctx, job.ID, model.StatsSnapshot{ModelCalls: 4}))

	var jobs []model.Job
	code := getJSON(t, srv.URL+"/jobs", &jobs)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	var got struct {
		Job   *model.Job           `json:"job"`
		Stats *model.StatsSnapshot `json:"stats"`
	}
	code = getJSON(t, srv.URL+"/jobs/"+job.ID, &got)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "q3 vendors", got.Job.Name)
	require.NotNil(t, got.Stats)
	assert.Equal(t, int64(4), got.Stats.ModelCalls)

	code = getJSON(t, srv.URL+"/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Jobs_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	code := getJSON(t, srv.URL+"/jobs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Results(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "results", 3, 1)
	require.NoError(t, err)
	require.NoError(t, st.SaveResults(ctx, job.ID, model.ResultSet{
		"acme roofing": {
			1: {CategoryID: "11", CategoryName: "Construction", Confidence: 0.9, Source: model.SourceInitial},
		},
	}))

	var results model.ResultSet
	code := getJSON(t, srv.URL+"/jobs/"+job.ID+"/results", &results)
	assert.Equal(t, http.StatusOK, code)
	require.Contains(t, results, "acme roofing")
	assert.Equal(t, "11", results["acme roofing"][1].CategoryID)

	code = getJSON(t, srv.URL+"/jobs/nope/results", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Review(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "review", 3, 1)
	require.NoError(t, err)
	require.NoError(t, st.SaveResults(ctx, job.ID, model.ResultSet{
		"acme roofing": {
			1: {CategoryID: "11", CategoryName: "Construction", Confidence: 0.9, Source: model.SourceInitial},
		},
	}))

	body := `[{"vendor_name": "Acme Roofing", "hint": "they only do metal roofs"}]`
	resp, err := http.Post(srv.URL+"/jobs/"+job.ID+"/review", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []model.ReviewItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "Acme Roofing", items[0].VendorName)
	assert.Empty(t, items[0].Err)
	assert.Equal(t, model.SourceReview, items[0].New[1].Source)

	// The review must be persisted and visible on the reviews route.
	var saved []model.ReviewItem
	code := getJSON(t, srv.URL+"/jobs/"+job.ID+"/reviews", &saved)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, saved, 1)
	assert.Equal(t, "they only do metal roofs", saved[0].Hint)
}

func TestServer_Review_UsesStoredVendorAttributes(t *testing.T) {
	gw := &recordingGateway{}
	srv, st := newTestServerWith(t, gw)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "review", 3, 1)
	require.NoError(t, err)
	require.NoError(t, st.SaveVendors(ctx, job.ID, []model.Vendor{
		{Name: "Acme Roofing", Address: "12 Foundry Rd", Website: "acmeroofing.example"},
	}))
	require.NoError(t, st.SaveResults(ctx, job.ID, model.ResultSet{
		"acme roofing": {
			1: {CategoryID: "11", CategoryName: "Construction", Confidence: 0.9, Source: model.SourceInitial},
		},
	}))

	body := `[{"vendor_name": "Acme Roofing", "hint": "they only do metal roofs"}]`
	resp, err := http.Post(srv.URL+"/jobs/"+job.ID+"/review", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Every model call during the review carries the stored attributes,
	// not just the name from the request body.
	reqs := gw.requests()
	require.NotEmpty(t, reqs)
	for _, req := range reqs {
		require.Len(t, req.Entities, 1)
		assert.Equal(t, "12 Foundry Rd", req.Entities[0].Address)
		assert.Equal(t, "acmeroofing.example", req.Entities[0].Website)
	}
}

func TestServer_Review_BadRequests(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "empty", 3, 1)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/jobs/"+job.ID+"/review", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// No prior results saved for the job.
	resp, err = http.Post(srv.URL+"/jobs/"+job.ID+"/review", "application/json",
		strings.NewReader(`[{"vendor_name": "Acme", "hint": "x"}]`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
