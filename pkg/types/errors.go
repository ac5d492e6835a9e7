package types

import "fmt"

// HashingError indicates the file could not be read while computing its
// content fingerprint. Fatal to the submission attempt; never retried
// automatically.
type HashingError struct {
	Err error
}

func (e *HashingError) Error() string {
	return fmt.Sprintf("failed to hash file: %v", e.Err)
}

func (e *HashingError) Unwrap() error { return e.Err }

// UploadInitiationError indicates a resumable upload session could not be
// opened (the storage backend returned no session URI).
type UploadInitiationError struct {
	Status int
	Reason string
}

func (e *UploadInitiationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to initiate resumable upload (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("failed to initiate resumable upload: %s", e.Reason)
}

// TransferFailureKind distinguishes the three ways a byte transfer can fail
type TransferFailureKind string

const (
	// TransferFailureServer means the storage backend answered with a non-2xx status
	TransferFailureServer TransferFailureKind = "server"
	// TransferFailureNetwork means the request produced no response at all
	TransferFailureNetwork TransferFailureKind = "network"
	// TransferFailureAborted means the caller cancelled the transfer mid-flight
	TransferFailureAborted TransferFailureKind = "aborted"
)

// UploadTransferError reports a failed byte transfer. Exactly one of the
// optional fields is meaningful, selected by Kind: Status/Body for server
// failures, Err for network failures, neither for aborts.
type UploadTransferError struct {
	Kind   TransferFailureKind
	Status int
	Body   string
	Err    error
}

func (e *UploadTransferError) Error() string {
	switch e.Kind {
	case TransferFailureServer:
		return fmt.Sprintf("upload rejected by storage (status %d): %s", e.Status, e.Body)
	case TransferFailureAborted:
		return "upload cancelled"
	default:
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
}

func (e *UploadTransferError) Unwrap() error { return e.Err }

// Aborted reports whether the transfer failed because the caller cancelled it
func (e *UploadTransferError) Aborted() bool { return e.Kind == TransferFailureAborted }

// SubmissionError indicates the registration endpoint rejected the request.
// Detail carries the server's message verbatim when one was provided.
type SubmissionError struct {
	Status int
	Detail string
}

func (e *SubmissionError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("job registration failed with status %d", e.Status)
}
