package queue

import (
	"encoding/json"
	"time"
)

// Kind names the handler a job is dispatched to.
type Kind string

const (
	KindAnalysis     Kind = "analysis"
	KindResolveIssue Kind = "llm:resolve-issue"
)

// Job is the unit of work carried by every queue backend.
type Job struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	Attempt       int             `json:"attempt"`
	MaxAttempts   int             `json:"maxAttempts"`
	BackoffBaseMs int64           `json:"backoffBaseMs"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	LastError     string          `json:"lastError,omitempty"`
	FailedAt      *time.Time      `json:"failedAt,omitempty"`
	Version       int             `json:"version"`

	// Receipt identifies the delivery for backends that acknowledge by handle.
	Receipt string `json:"-"`
}

// Handle is returned to callers of Enqueue.
type Handle struct {
	JobID string `json:"jobId"`
	Kind  Kind   `json:"kind"`
}

// AnalysisPayload is the payload of an analysis job.
type AnalysisPayload struct {
	AnalysisID string `json:"analysisId"`
	RequestID  string `json:"requestId,omitempty"`
}

// ResolveIssuePayload is the payload of an LLM remediation job.
type ResolveIssuePayload struct {
	IssueID    string `json:"issueId"`
	AnalysisID string `json:"analysisId"`
	RequestID  string `json:"requestId,omitempty"`
}

const jobVersion = 1

// EncodeJob returns the JSON representation of a job.
func EncodeJob(job Job) ([]byte, error) {
	return json.Marshal(job)
}

// DecodeJob parses a JSON payload into a Job.
func DecodeJob(payload []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// DecodePayload unmarshals the job payload into dst.
func (j Job) DecodePayload(dst any) error {
	if len(j.Payload) == 0 {
		return Permanent(errEmptyPayload)
	}
	if err := json.Unmarshal(j.Payload, dst); err != nil {
		return Permanent(err)
	}
	return nil
}
