// Package realtime delivers push updates for active jobs. Payloads arrive as
// JSON over a pub/sub channel keyed by job id and are validated into a
// tagged variant before anything merges them: a full job record, a partial
// field patch, or malformed input that is logged and dropped.
package realtime

import (
	"context"
	"encoding/json"

	"github.com/parlatext/parlatext/pkg/types"
)

// Kind tags a validated update payload
type Kind string

// Update kinds
const (
	// KindFull is a complete job record; it replaces the tracked entry wholesale
	KindFull Kind = "full"
	// KindPartial is a subset of job fields; it patches the tracked entry field-by-field
	KindPartial Kind = "partial"
	// KindMalformed is an unusable payload; it must never be merged
	KindMalformed Kind = "malformed"
)

// Update is one validated push message
type Update struct {
	Kind  Kind
	JobID string

	// Job is populated for KindFull
	Job types.Job

	// Raw is the original payload, kept for KindPartial so the patch can be
	// applied field-by-field onto the tracked record
	Raw json.RawMessage
}

// fullRecordProbe checks for the fields every complete job record carries
type fullRecordProbe struct {
	JobID     string           `json:"job_id"`
	Filename  *string          `json:"filename"`
	Status    *json.RawMessage `json:"status"`
	CreatedAt *string          `json:"created_at"`
}

// ParseUpdate validates a raw payload. A payload without a job_id, or one
// that is not a JSON object, is Malformed. A payload carrying the complete
// record shape (filename, status, created_at all present) is Full; anything
// else with a job_id is Partial.
func ParseUpdate(data []byte) Update {
	var probe fullRecordProbe
	if err := json.Unmarshal(data, &probe); err != nil || probe.JobID == "" {
		return Update{Kind: KindMalformed, Raw: data}
	}

	if probe.Filename != nil && probe.Status != nil && probe.CreatedAt != nil {
		var job types.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return Update{Kind: KindMalformed, JobID: probe.JobID, Raw: data}
		}
		return Update{Kind: KindFull, JobID: probe.JobID, Job: job}
	}

	// Verify the partial payload still decodes against the job shape, so a
	// later patch cannot fail halfway.
	var job types.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Update{Kind: KindMalformed, JobID: probe.JobID, Raw: data}
	}
	return Update{Kind: KindPartial, JobID: probe.JobID, Raw: data}
}

// Subscriber is a push-update source scoped to an explicit id set. Updates
// for ids outside the subscribed set are dropped, not queued; the poll loop
// re-establishes ground truth.
type Subscriber interface {
	// Subscribe replaces the subscribed id set. An empty set unsubscribes
	// fully.
	Subscribe(ctx context.Context, ids []string) error

	// Updates returns the channel validated updates arrive on
	Updates() <-chan Update

	// Close tears the subscription down and closes the updates channel
	Close() error
}
