package types

import "fmt"

// SignedURLRequest asks the issuer for an upload target for one file
type SignedURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
}

// PrecheckRequest asks whether a content hash has already been processed
type PrecheckRequest struct {
	ContentHash string `json:"content_hash"`
}

// SubmitJobRequest registers a processing job for an uploaded (or cached) file.
// StoragePath is empty when the precheck reported a cached result and the
// upload was skipped.
type SubmitJobRequest struct {
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
	StoragePath string `json:"storage_path,omitempty"`
	FileSize    int64  `json:"file_size"`
	Language    string `json:"language,omitempty"`
	NumSpeakers *int   `json:"num_speakers,omitempty"`
	MinSpeakers *int   `json:"min_speakers,omitempty"`
	MaxSpeakers *int   `json:"max_speakers,omitempty"`
}

// speaker hint bounds accepted by the transcription backend
const (
	MinSpeakerHint = 1
	MaxSpeakerHint = 32
)

// Validate checks the speaker-hint fields. An exact speaker count is
// exclusive with a min/max range.
func (r *SubmitJobRequest) Validate() error {
	if r.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	if r.ContentHash == "" {
		return fmt.Errorf("content_hash is required")
	}
	if r.NumSpeakers != nil && (r.MinSpeakers != nil || r.MaxSpeakers != nil) {
		return fmt.Errorf("num_speakers cannot be combined with min_speakers/max_speakers")
	}
	for name, v := range map[string]*int{
		"num_speakers": r.NumSpeakers,
		"min_speakers": r.MinSpeakers,
		"max_speakers": r.MaxSpeakers,
	} {
		if v != nil && (*v < MinSpeakerHint || *v > MaxSpeakerHint) {
			return fmt.Errorf("%s must be between %d and %d", name, MinSpeakerHint, MaxSpeakerHint)
		}
	}
	if r.MinSpeakers != nil && r.MaxSpeakers != nil && *r.MinSpeakers > *r.MaxSpeakers {
		return fmt.Errorf("min_speakers cannot exceed max_speakers")
	}
	return nil
}
