package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	progress     REAL NOT NULL DEFAULT 0,
	stage        TEXT NOT NULL DEFAULT '',
	target_level INTEGER NOT NULL,
	vendor_count INTEGER NOT NULL,
	stats        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS vendors (
	job_id      TEXT NOT NULL REFERENCES jobs(id),
	vendor_name TEXT NOT NULL,
	vendor      TEXT NOT NULL,
	PRIMARY KEY (job_id, vendor_name)
);

CREATE TABLE IF NOT EXISTS results (
	job_id      TEXT NOT NULL REFERENCES jobs(id),
	vendor_name TEXT NOT NULL,
	result      TEXT NOT NULL,
	PRIMARY KEY (job_id, vendor_name)
);

CREATE TABLE IF NOT EXISTS reviews (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL REFERENCES jobs(id),
	vendor_name TEXT NOT NULL,
	hint        TEXT NOT NULL,
	original_result TEXT,
	new_result      TEXT,
	error       TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, name string, targetLevel, vendorCount int) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, name, status, target_level, vendor_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, string(model.JobStatusQueued), targetLevel, vendorCount, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
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

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job status %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) UpdateJobProgress(ctx context.Context, jobID string, progress float64, stage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = ?, stage = ?, updated_at = ? WHERE id = ?`,
		progress, stage, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job progress %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, progress, stage, target_level, vendor_count, created_at, updated_at
		 FROM jobs WHERE id = ?`,
		jobID,
	)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, name, status, progress, stage, target_level, vendor_count, created_at, updated_at
	          FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) SaveVendors(ctx context.Context, jobID string, vendors []model.Vendor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save vendors")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vendors (job_id, vendor_name, vendor) VALUES (?, ?, ?)
		 ON CONFLICT (job_id, vendor_name) DO UPDATE SET vendor = excluded.vendor`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save vendors")
	}
	defer stmt.Close()

	for _, v := range vendors {
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal vendor %s", v.Name)
		}
		if _, err := stmt.ExecContext(ctx, jobID, model.NormalizeName(v.Name), string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: save vendor %s", v.Name)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save vendors")
}

func (s *SQLiteStore) GetVendors(ctx context.Context, jobID string) ([]model.Vendor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vendor FROM vendors WHERE job_id = ? ORDER BY vendor_name`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get vendors %s", jobID)
	}
	defer rows.Close()

	var vendors []model.Vendor
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor")
		}
		var v model.Vendor
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal vendor")
		}
		vendors = append(vendors, v)
	}
	return vendors, eris.Wrap(rows.Err(), "sqlite: get vendors iterate")
}

func (s *SQLiteStore) SaveResults(ctx context.Context, jobID string, results model.ResultSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save results")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (job_id, vendor_name, result) VALUES (?, ?, ?)
		 ON CONFLICT (job_id, vendor_name) DO UPDATE SET result = excluded.result`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save results")
	}
	defer stmt.Close()

	for name, vr := range results {
		data, err := json.Marshal(vr)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal result %s", name)
		}
		if _, err := stmt.ExecContext(ctx, jobID, name, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: save result %s", name)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save results")
}

func (s *SQLiteStore) GetResults(ctx context.Context, jobID string) (model.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vendor_name, result FROM results WHERE job_id = ?`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get results %s", jobID)
	}
	defer rows.Close()

	out := make(model.ResultSet)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var vr model.VendorResult
		if err := json.Unmarshal([]byte(data), &vr); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal result %s", name)
		}
		out[name] = vr
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get results iterate")
}

func (s *SQLiteStore) SaveStats(ctx context.Context, jobID string, stats model.StatsSnapshot) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET stats = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save stats %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) GetStats(ctx context.Context, jobID string) (*model.StatsSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT stats FROM jobs WHERE id = ?`, jobID)

	var data sql.NullString
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get stats %s", jobID)
	}
	if !data.Valid {
		return nil, nil
	}
	var snap model.StatsSnapshot
	if err := json.Unmarshal([]byte(data.String), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal stats")
	}
	return &snap, nil
}

func (s *SQLiteStore) SaveReviews(ctx context.Context, jobID string, items []model.ReviewItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save reviews")
	}
	defer tx.Rollback()

	for _, item := range items {
		original, err := json.Marshal(item.Original)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal original result")
		}
		updated, err := json.Marshal(item.New)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal new result")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reviews (id, job_id, vendor_name, hint, original_result, new_result, error, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), jobID, item.VendorName, item.Hint,
			string(original), string(updated), item.Err, time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save review %s", item.VendorName)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save reviews")
}

func (s *SQLiteStore) ListReviews(ctx context.Context, jobID string) ([]model.ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vendor_name, hint, original_result, new_result, error FROM reviews
		 WHERE job_id = ? ORDER BY created_at`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list reviews %s", jobID)
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
	return items, eris.Wrap(rows.Err(), "sqlite: list reviews iterate")
}

func (s *SQLiteStore) SaveTaxonomy(ctx context.Context, recs []taxonomy.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save taxonomy")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM taxonomy`); err != nil {
		return eris.Wrap(err, "sqlite: clear taxonomy")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO taxonomy (id, level, name, parent_id) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save taxonomy")
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Level, r.Name, r.ParentID); err != nil {
			return eris.Wrapf(err, "sqlite: save taxonomy row %s", r.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save taxonomy")
}

func (s *SQLiteStore) LoadTaxonomy(ctx context.Context) (*taxonomy.Tree, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, level, name, parent_id FROM taxonomy ORDER BY level, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load taxonomy")
	}
	defer rows.Close()

	var recs []taxonomy.Record
	for rows.Next() {
		var r taxonomy.Record
		if err := rows.Scan(&r.ID, &r.Level, &r.Name, &r.ParentID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan taxonomy row")
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load taxonomy iterate")
	}
	if len(recs) == 0 {
		return nil, eris.New("sqlite: taxonomy is empty, run import first")
	}

	tree := taxonomy.NewTree()
	if err := tree.AddRecords(recs); err != nil {
		return nil, err
	}
	return tree, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.Name, &j.Status, &j.Progress, &j.Stage, &j.TargetLevel, &j.VendorCount, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	return &j, nil
}

func scanReview(row scannable) (*model.ReviewItem, error) {
	var item model.ReviewItem
	var original, updated sql.NullString
	if err := row.Scan(&item.VendorName, &item.Hint, &original, &updated, &item.Err); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan review")
	}
	if original.Valid && original.String != "null" {
		if err := json.Unmarshal([]byte(original.String), &item.Original); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal original result")
		}
	}
	if updated.Valid && updated.String != "null" {
		if err := json.Unmarshal([]byte(updated.String), &item.New); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal new result")
		}
	}
	return &item, nil
}
