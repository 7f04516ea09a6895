package model

import "time"

// JobStatus tracks a classification job through its lifecycle.
type JobStatus string

// Job lifecycle states.
const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusClassifying JobStatus = "classifying"
	JobStatusSearching   JobStatus = "searching"
	JobStatusReviewing   JobStatus = "reviewing"
	JobStatusComplete    JobStatus = "complete"
	JobStatusFailed      JobStatus = "failed"
)

// Job is one classification run over a vendor set.
type Job struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      JobStatus `json:"status"`
	Progress    float64   `json:"progress"`
	Stage       string    `json:"stage"`
	TargetLevel int       `json:"target_level"`
	VendorCount int       `json:"vendor_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReviewRequest names a vendor from a prior job together with a human
// hint for the re-classification pass.
type ReviewRequest struct {
	VendorName string `json:"vendor_name"`
	Hint       string `json:"hint"`
}

// ReviewItem pairs a vendor's original result with the result of a
// hint-driven re-classification. Immutable once created.
type ReviewItem struct {
	VendorName string       `json:"vendor_name"`
	Hint       string       `json:"hint"`
	Original   VendorResult `json:"original_result"`
	New        VendorResult `json:"new_result"`
	Err        string       `json:"error,omitempty"`
}

// StatsSnapshot is a point-in-time copy of a job's running counters.
type StatsSnapshot struct {
	ModelCalls        int64         `json:"model_calls"`
	PromptTokens      int64         `json:"prompt_tokens"`
	CompletionTokens  int64         `json:"completion_tokens"`
	TotalTokens       int64         `json:"total_tokens"`
	SearchCalls       int64         `json:"search_calls"`
	SearchAttempts    int64         `json:"search_attempts"`
	SearchSuccesses   int64         `json:"search_successes"`
	InvalidCategories int64         `json:"invalid_categories"`
	LevelSuccesses    map[int]int64 `json:"level_successes"`
}
