package types

import "time"

// SignedURLResponse is the issuer's answer: where to put the bytes and which
// protocol to use. Method is authoritative; the client never guesses the
// protocol from the file size.
type SignedURLResponse struct {
	UploadURL   string `json:"upload_url"`
	StoragePath string `json:"storage_path"`
	Method      string `json:"method"`
	ExpiresIn   int    `json:"expires_in"`
}

// PrecheckResponse reports whether the server already holds a completed
// result for a content hash.
type PrecheckResponse struct {
	Cached   bool       `json:"cached"`
	CachedAt *time.Time `json:"cached_at,omitempty"`
}

// SubmitJobResponse is returned by job registration
type SubmitJobResponse struct {
	JobID       string     `json:"job_id"`
	AccessToken string     `json:"access_token"`
	Cached      bool       `json:"cached"`
	CachedAt    *time.Time `json:"cached_at,omitempty"`
}

// ListJobsResponse is one page of jobs for the caller's bearer-token set
type ListJobsResponse struct {
	Jobs  []Job `json:"jobs"`
	Total int   `json:"total"`
}

// ErrorResponse is the API's error envelope. Detail carries the
// human-readable server message when present.
type ErrorResponse struct {
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}
