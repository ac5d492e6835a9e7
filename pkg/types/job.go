// Package types defines the data model shared by the Parlatext client SDK
// and the CLI: jobs, stored credentials, request/response shapes, and the
// error taxonomy for the submission pipeline.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the current state of a transcription job
type JobStatus int

// Job status constants
const (
	// JobStatusUnknown represents an unknown or invalid job status
	JobStatusUnknown JobStatus = iota
	// JobStatusPending indicates the job is queued and waiting to be processed
	JobStatusPending
	// JobStatusProcessing indicates the job is currently being transcribed
	JobStatusProcessing
	// JobStatusCompleted indicates the job finished successfully
	JobStatusCompleted
	// JobStatusFailed indicates the job failed to complete
	JobStatusFailed
	// JobStatusCancelled indicates the job was cancelled before processing started
	JobStatusCancelled
)

var jobStatusNames = []string{
	"unknown",
	"pending",
	"processing",
	"completed",
	"failed",
	"cancelled",
}

// ParseJobStatus converts a string representation of a job status to JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	for i, name := range jobStatusNames {
		if name == str {
			return JobStatus(i), nil
		}
	}
	return JobStatusUnknown, fmt.Errorf("invalid job status: %s", str)
}

func (s JobStatus) String() string {
	if int(s) < 0 || int(s) >= len(jobStatusNames) {
		return jobStatusNames[JobStatusUnknown]
	}
	return jobStatusNames[s]
}

// IsTerminal reports whether the status is a final state the server will
// never transition out of.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsActive reports whether the job still produces status updates and should
// be covered by the realtime subscription.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// MarshalJSON implements the json.Marshaler interface for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

// Job is the server-owned record of one transcription. The client treats it
// as read-only except for cancel/delete actions; mutation happens exclusively
// on the server and reaches the client through polls and push updates.
type Job struct {
	ID              string          `json:"job_id"`
	Filename        string          `json:"filename"`
	Status          JobStatus       `json:"status"`
	Progress        int             `json:"progress"`
	ProgressStage   string          `json:"progress_stage,omitempty"`
	ProgressMessage string          `json:"progress_message,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ErrorCode       string          `json:"error_code,omitempty"`
	Cached          bool            `json:"cached"`
	CachedAt        *time.Time      `json:"cached_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	LastSeen        *time.Time      `json:"last_seen,omitempty"`
}

// StoredJobRecord is the only thing the client persists about a job. The
// access token is a bearer credential scoped to this one job; possession is
// authorization, so records are the sole means of re-discovering a job after
// a restart.
type StoredJobRecord struct {
	JobID       string `json:"job_id"`
	AccessToken string `json:"access_token"`
}
