package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a processing job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusParsing     JobStatus = "parsing"
	StatusLayout      JobStatus = "layout"
	StatusStructuring JobStatus = "structuring"
	StatusChunking    JobStatus = "chunking"
	StatusEnriching   JobStatus = "enriching"
	StatusLinking     JobStatus = "linking"
	StatusStoring     JobStatus = "storing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusPartial     JobStatus = "partial"
	StatusDupSkipped  JobStatus = "duplicate_skipped"
)

// TotalStages is the number of numbered pipeline stages.
const TotalStages = 8

// Job tracks the state of a single document run.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	input  Input
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	Stage       int      `json:"stage"`
	TotalStages int      `json:"total_stages"`
	Elements    int      `json:"elements"`
	Chunks      int      `json:"chunks"`
	Segments    int      `json:"qa_segments"`
	Edges       int      `json:"qa_edges"`
	KGNodes     int      `json:"kg_nodes"`
	Errors      []string `json:"errors"`
}

// NewJob creates a queued job with a time-ordered id.
func NewJob(in Input) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.Must(uuid.NewV7()).String(),
		DocID:     in.DocID,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  in.Filename,
		Progress:  Progress{TotalStages: TotalStages},
		CreatedAt: now,
		UpdatedAt: now,
		input:     in,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Advance records entry into a numbered stage.
func (j *Job) Advance(status JobStatus, stage int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = string(status)
	j.Progress.Stage = stage
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Record copies result counts into the job.
func (j *Job) Record(res *Result) {
	if res == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = res.ContentHash
	j.Progress.Elements = res.Elements
	j.Progress.Chunks = res.Chunks
	j.Progress.Segments = res.Segments
	j.Progress.Edges = res.Edges
	j.Progress.KGNodes = res.KGNodes
	if res.Duplicate {
		j.DuplicateOf = res.DuplicateOf
	}
	j.UpdatedAt = time.Now()
}

// Input returns the job's input.
func (j *Job) Input() Input {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.input
}

// releaseInput drops the input bytes once processing is done.
func (j *Job) releaseInput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.input.Data = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	DocID       string    `json:"doc_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	errs := make([]string, len(p.Errors))
	copy(errs, p.Errors)
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		DocID:       j.DocID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		DuplicateOf: j.DuplicateOf,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
