package store

import (
	"context"
	"sync"
)

// JobProgress adapts a Store into the classifier's progress sink.
// SetProgress only records in memory; Commit flushes the latest value to
// the jobs table. Concurrent fallback tasks call both.
type JobProgress struct {
	store Store
	jobID string

	mu       sync.Mutex
	fraction float64
	stage    string
	dirty    bool
}

// NewJobProgress creates a progress sink bound to one job row.
func NewJobProgress(s Store, jobID string) *JobProgress {
	return &JobProgress{store: s, jobID: jobID}
}

// SetProgress records the latest fraction and stage.
func (p *JobProgress) SetProgress(fraction float64, stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fraction >= p.fraction {
		p.fraction = fraction
		p.stage = stage
		p.dirty = true
	}
}

// Commit flushes the recorded progress to the store. A no-op when nothing
// changed since the last flush.
func (p *JobProgress) Commit(ctx context.Context) error {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	fraction, stage := p.fraction, p.stage
	p.dirty = false
	p.mu.Unlock()

	return p.store.UpdateJobProgress(ctx, p.jobID, fraction, stage)
}
