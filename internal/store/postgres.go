package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/classify-cli/internal/db"
	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	progress     DOUBLE PRECISION NOT NULL DEFAULT 0,
	stage        TEXT NOT NULL DEFAULT '',
	target_level INTEGER NOT NULL,
	vendor_count INTEGER NOT NULL,
	stats        JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS vendors (
	job_id      TEXT NOT NULL REFERENCES jobs(id),
	vendor_name TEXT NOT NULL,
	vendor      JSONB NOT NULL,
	PRIMARY KEY (job_id, vendor_name)
);

CREATE TABLE IF NOT EXISTS results (
	job_id      TEXT NOT NULL REFERENCES jobs(id),
	vendor_name TEXT NOT NULL,
	result      JSONB NOT NULL,
	PRIMARY KEY (job_id, vendor_name)
);

CREATE TABLE IF NOT EXISTS reviews (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id          TEXT NOT NULL REFERENCES jobs(id),
	vendor_name     TEXT NOT NULL,
	hint            TEXT NOT NULL,
	original_result JSONB,
	new_result      JSONB,
	error           TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS taxonomy (
	id        TEXT PRIMARY KEY,
	level     INTEGER NOT NULL,
	name      TEXT NOT NULL,
	parent_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_vendors_job_id ON vendors(job_id);
CREATE INDEX IF NOT EXISTS idx_results_job_id ON results(job_id);
CREATE INDEX IF NOT EXISTS idx_reviews_job_id ON reviews(job_id);
CREATE INDEX IF NOT EXISTS idx_taxonomy_level ON taxonomy(level);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, name string, targetLevel, vendorCount int) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, name, status, target_level, vendor_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, name, string(model.JobStatusQueued), targetLevel, vendorCount, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.Job{
		ID:          id,
		Name:        name,
		Status:      model.JobStatusQueued,
		TargetLevel: targetLevel,
		VendorCount: vendorCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job status %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, jobID string, progress float64, stage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET progress = $1, stage = $2, updated_at = $3 WHERE id = $4`,
		progress, stage, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job progress %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, status, progress, stage, target_level, vendor_count, created_at, updated_at
		 FROM jobs WHERE id = $1`,
		jobID,
	)

	var j model.Job
	err := row.Scan(&j.ID, &j.Name, &j.Status, &j.Progress, &j.Stage, &j.TargetLevel, &j.VendorCount, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, name, status, progress, stage, target_level, vendor_count, created_at, updated_at
	          FROM jobs WHERE 1=1`
	var args []any
	arg := 0
	next := func() string {
		arg++
		return fmt.Sprintf("$%d", arg)
	}

	if filter.Status != "" {
		query += ` AND status = ` + next()
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + next()
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ` + next()
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.Name, &j.Status, &j.Progress, &j.Stage, &j.TargetLevel, &j.VendorCount, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

// SaveVendors bulk-upserts the job's vendor list in one round trip.
func (s *PostgresStore) SaveVendors(ctx context.Context, jobID string, vendors []model.Vendor) error {
	rows := make([][]any, 0, len(vendors))
	for _, v := range vendors {
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal vendor %s", v.Name)
		}
		rows = append(rows, []any{jobID, model.NormalizeName(v.Name), string(data)})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "vendors",
		Columns:      []string{"job_id", "vendor_name", "vendor"},
		ConflictKeys: []string{"job_id", "vendor_name"},
	}, rows)
	return err
}

func (s *PostgresStore) GetVendors(ctx context.Context, jobID string) ([]model.Vendor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT vendor FROM vendors WHERE job_id = $1 ORDER BY vendor_name`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get vendors %s", jobID)
	}
	defer rows.Close()

	var vendors []model.Vendor
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor")
		}
		var v model.Vendor
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal vendor")
		}
		vendors = append(vendors, v)
	}
	return vendors, eris.Wrap(rows.Err(), "postgres: get vendors iterate")
}

// SaveResults bulk-upserts the whole result set in one round trip.
func (s *PostgresStore) SaveResults(ctx context.Context, jobID string, results model.ResultSet) error {
	rows := make([][]any, 0, len(results))
	for name, vr := range results {
		data, err := json.Marshal(vr)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal result %s", name)
		}
		rows = append(rows, []any{jobID, name, string(data)})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "results",
		Columns:      []string{"job_id", "vendor_name", "result"},
		ConflictKeys: []string{"job_id", "vendor_name"},
	}, rows)
	return err
}

func (s *PostgresStore) GetResults(ctx context.Context, jobID string) (model.ResultSet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT vendor_name, result FROM results WHERE job_id = $1`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get results %s", jobID)
	}
	defer rows.Close()

	out := make(model.ResultSet)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		var vr model.VendorResult
		if err := json.Unmarshal([]byte(data), &vr); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal result %s", name)
		}
		out[name] = vr
	}
	return out, eris.Wrap(rows.Err(), "postgres: get results iterate")
}

func (s *PostgresStore) SaveStats(ctx context.Context, jobID string, stats model.StatsSnapshot) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET stats = $1, updated_at = $2 WHERE id = $3`,
		string(data), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save stats %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) GetStats(ctx context.Context, jobID string) (*model.StatsSnapshot, error) {
	row := s.pool.QueryRow(ctx, `SELECT stats FROM jobs WHERE id = $1`, jobID)

	var data *string
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get stats %s", jobID)
	}
	if data == nil {
		return nil, nil
	}
	var snap model.StatsSnapshot
	if err := json.Unmarshal([]byte(*data), &snap); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal stats")
	}
	return &snap, nil
}

func (s *PostgresStore) SaveReviews(ctx context.Context, jobID string, items []model.ReviewItem) error {
	for _, item := range items {
		original, err := json.Marshal(item.Original)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal original result")
		}
		updated, err := json.Marshal(item.New)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal new result")
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO reviews (id, job_id, vendor_name, hint, original_result, new_result, error, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New().String(), jobID, item.VendorName, item.Hint,
			string(original), string(updated), item.Err, time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: save review %s", item.VendorName)
		}
	}
	return nil
}

func (s *PostgresStore) ListReviews(ctx context.Context, jobID string) ([]model.ReviewItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT vendor_name, hint, original_result, new_result, error FROM reviews
		 WHERE job_id = $1 ORDER BY created_at`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list reviews %s", jobID)
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		item, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list reviews iterate")
}

// SaveTaxonomy replaces the stored snapshot using COPY for the bulk load.
func (s *PostgresStore) SaveTaxonomy(ctx context.Context, recs []taxonomy.Record) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM taxonomy`); err != nil {
		return eris.Wrap(err, "postgres: clear taxonomy")
	}

	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{r.ID, r.Level, r.Name, r.ParentID})
	}
	_, err := db.CopyFrom(ctx, s.pool, "taxonomy", []string{"id", "level", "name", "parent_id"}, rows)
	return err
}

func (s *PostgresStore) LoadTaxonomy(ctx context.Context) (*taxonomy.Tree, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, level, name, parent_id FROM taxonomy ORDER BY level, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load taxonomy")
	}
	defer rows.Close()

	var recs []taxonomy.Record
	for rows.Next() {
		var r taxonomy.Record
		if err := rows.Scan(&r.ID, &r.Level, &r.Name, &r.ParentID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan taxonomy row")
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load taxonomy iterate")
	}
	if len(recs) == 0 {
		return nil, eris.New("postgres: taxonomy is empty, run import first")
	}

	tree := taxonomy.NewTree()
	if err := tree.AddRecords(recs); err != nil {
		return nil, err
	}
	return tree, nil
}
