package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Jobs ---

func TestSQLite_Job_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "q3 vendors", 5, 120)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusQueued, job.Status)

	require.NoError(t, st.UpdateJobStatus(ctx, job.ID, model.JobStatusClassifying))
	require.NoError(t, st.UpdateJobProgress(ctx, job.ID, 0.4, "classifying level 2"))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusClassifying, got.Status)
	assert.InDelta(t, 0.4, got.Progress, 1e-9)
	assert.Equal(t, "classifying level 2", got.Stage)
	assert.Equal(t, 5, got.TargetLevel)
	assert.Equal(t, 120, got.VendorCount)
}

func TestSQLite_Job_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetJob(ctx, "nonexistent")
	assert.Error(t, err)

	assert.Error(t, st.UpdateJobStatus(ctx, "nonexistent", model.JobStatusFailed))
	assert.Error(t, st.UpdateJobProgress(ctx, "nonexistent", 0.5, "x"))
}

func TestSQLite_ListJobs_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateJob(ctx, "a", 5, 1)
	require.NoError(t, err)
	_, err = st.CreateJob(ctx, "b", 5, 1)
	require.NoError(t, err)
	require.NoError(t, st.UpdateJobStatus(ctx, a.ID, model.JobStatusComplete))

	all, err := st.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	complete, err := st.ListJobs(ctx, JobFilter{Status: model.JobStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, a.ID, complete[0].ID)
}

// --- Vendors ---

func TestSQLite_Vendors_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "j", 5, 2)
	require.NoError(t, err)

	empty, err := st.GetVendors(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	vendors := []model.Vendor{
		{Name: "Beta LLC", Address: "9 Dock St", Website: "beta.example", SpendCategory: "MRO"},
		{Name: "Acme Corp", Website: "acme.example"},
	}
	require.NoError(t, st.SaveVendors(ctx, job.ID, vendors))

	got, err := st.GetVendors(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by normalized name; attributes survive the round trip.
	assert.Equal(t, "Acme Corp", got[0].Name)
	assert.Equal(t, "Beta LLC", got[1].Name)
	assert.Equal(t, "9 Dock St", got[1].Address)
	assert.Equal(t, "MRO", got[1].SpendCategory)

	// A second save overwrites per vendor.
	vendors[0].Address = "10 Dock St"
	require.NoError(t, st.SaveVendors(ctx, job.ID, vendors))

	got, err = st.GetVendors(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "10 Dock St", got[1].Address)
}

// --- Results ---

func TestSQLite_Results_SaveGetOverwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "j", 5, 2)
	require.NoError(t, err)

	results := model.ResultSet{
		"acme": model.VendorResult{
			1: {CategoryID: "11", CategoryName: "Manufacturing", Confidence: 0.9, Source: model.SourceInitial},
		},
		"beta": model.VendorResult{
			1: model.NotPossibleResult("unknown vendor", model.SourceInitial),
		},
	}
	require.NoError(t, st.SaveResults(ctx, job.ID, results))

	got, err := st.GetResults(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, results, got)

	// Overwrite acme with a search-derived chain.
	results["acme"] = model.VendorResult{
		1: {CategoryID: "22", CategoryName: "Services", Confidence: 0.7, Source: model.SourceSearch},
	}
	require.NoError(t, st.SaveResults(ctx, job.ID, results))

	got, err = st.GetResults(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "22", got["acme"][1].CategoryID)
	assert.Len(t, got, 2)
}

// --- Stats ---

func TestSQLite_Stats_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "j", 5, 1)
	require.NoError(t, err)

	empty, err := st.GetStats(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, empty)

	snap := model.StatsSnapshot{
		ModelCalls:     12,
		TotalTokens:    4800,
		SearchAttempts: 3,
		LevelSuccesses: map[int]int64{1: 10, 2: 8},
	}
	require.NoError(t, st.SaveStats(ctx, job.ID, snap))

	got, err := st.GetStats(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap, *got)
}

// --- Reviews ---

func TestSQLite_Reviews_SaveList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "j", 3, 1)
	require.NoError(t, err)

	items := []model.ReviewItem{
		{
			VendorName: "Beta",
			Hint:       "sells adhesives",
			Original:   model.VendorResult{1: {CategoryID: "22", CategoryName: "Services", Confidence: 0.6, Source: model.SourceInitial}},
			New:        model.VendorResult{1: {CategoryID: "11", CategoryName: "Manufacturing", Confidence: 0.9, Source: model.SourceReview}},
		},
		{VendorName: "Ghost", Hint: "n/a", Err: "no original result for vendor"},
	}
	require.NoError(t, st.SaveReviews(ctx, job.ID, items))

	got, err := st.ListReviews(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Beta", got[0].VendorName)
	assert.Equal(t, "11", got[0].New[1].CategoryID)
	assert.Equal(t, model.SourceReview, got[0].New[1].Source)
	assert.Equal(t, "no original result for vendor", got[1].Err)
	assert.Nil(t, got[1].New)
}

// --- Taxonomy ---

func TestSQLite_Taxonomy_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.LoadTaxonomy(ctx)
	assert.Error(t, err)

	recs := []taxonomy.Record{
		{Level: 1, ID: "11", Name: "Manufacturing"},
		{Level: 2, ID: "1101", Name: "Chemicals", ParentID: "11"},
	}
	require.NoError(t, st.SaveTaxonomy(ctx, recs))

	tree, err := st.LoadTaxonomy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())

	cats, err := tree.Categories(ctx, 2, "11")
	require.NoError(t, err)
	assert.Equal(t, []taxonomy.Category{{ID: "1101", Name: "Chemicals"}}, cats)

	// A second save replaces the snapshot.
	require.NoError(t, st.SaveTaxonomy(ctx, recs[:1]))
	tree, err = st.LoadTaxonomy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Len())
}
