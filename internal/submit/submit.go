// Package submit orchestrates the client side of job creation: fingerprint
// the file, skip the upload when the server already holds a result for that
// content, otherwise transfer the bytes, then register the job and persist
// its credentials. The operation is atomic from the caller's point of view:
// either a fully registered job ends up in the local store, or nothing does.
package submit

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/parlatext/parlatext/internal/hash"
	"github.com/parlatext/parlatext/internal/logger"
	"github.com/parlatext/parlatext/internal/store"
	"github.com/parlatext/parlatext/internal/upload"
	v1 "github.com/parlatext/parlatext/pkg/api/v1/client"
	"github.com/parlatext/parlatext/pkg/types"
)

// Stage identifies one phase of a submission
type Stage string

// Submission stages, in order
const (
	StageHashing    Stage = "hashing"
	StageUploading  Stage = "uploading"
	StageSubmitting Stage = "submitting"
	StageComplete   Stage = "complete"
)

// Progress is a transient view of a submission. Percent is 0-100 within the
// current stage; percentages are not cumulative across stages.
type Progress struct {
	Stage   Stage
	Percent int
}

// ProgressFunc receives stage transitions and per-stage progress
type ProgressFunc func(Progress)

// Options are the processing hints forwarded to job registration
type Options struct {
	Language    string
	NumSpeakers *int
	MinSpeakers *int
	MaxSpeakers *int

	// ContentType overrides extension-based detection when set
	ContentType string
}

// validate checks the speaker hints before any work is spent on the file
func (o Options) validate() error {
	probe := types.SubmitJobRequest{
		Filename:    "probe",
		ContentHash: "probe",
		NumSpeakers: o.NumSpeakers,
		MinSpeakers: o.MinSpeakers,
		MaxSpeakers: o.MaxSpeakers,
	}
	return probe.Validate()
}

// Transport uploads file bytes to storage and returns the storage path
type Transport interface {
	Upload(ctx context.Context, src upload.Source, onProgress upload.ProgressFunc) (string, error)
}

// Submitter runs the submission pipeline
type Submitter struct {
	api       v1.Client
	transport Transport
	store     *store.Store
}

// New creates a Submitter
func New(api v1.Client, transport Transport, st *store.Store) *Submitter {
	return &Submitter{
		api:       api,
		transport: transport,
		store:     st,
	}
}

// Submit runs the full pipeline for the file at path. Any failure before
// persistence surfaces as a typed error and leaves no stored record.
func (s *Submitter) Submit(ctx context.Context, path string, opts Options, onProgress ProgressFunc) (*types.SubmitJobResponse, error) {
	report := func(stage Stage, percent int) {
		if onProgress != nil {
			onProgress(Progress{Stage: stage, Percent: percent})
		}
	}

	if err := opts.validate(); err != nil {
		return nil, &types.SubmissionError{Detail: err.Error()}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read input file: %w", err)
	}
	filename := filepath.Base(path)
	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(path)
	}

	submissionID := uuid.New().String()
	logger.InfoWithFields("starting submission", map[string]interface{}{
		"submission_id": submissionID,
		"filename":      filename,
		"size":          info.Size(),
	})

	// Stage 1: content fingerprint
	report(StageHashing, 0)
	contentHash, err := hash.File(ctx, path, func(percent int) {
		report(StageHashing, percent)
	})
	if err != nil {
		return nil, err
	}

	// Stage 2: dedup precheck; a cached result skips the upload entirely
	precheck, err := s.api.PrecheckJob(ctx, types.PrecheckRequest{ContentHash: contentHash})
	if err != nil {
		return nil, fmt.Errorf("dedup precheck failed: %w", err)
	}

	var storagePath string
	if precheck.Cached {
		logger.InfoWithFields("content already processed, skipping upload", map[string]interface{}{
			"submission_id": submissionID,
			"content_hash":  contentHash,
		})
	} else {
		// Stage 3: byte transfer
		report(StageUploading, 0)
		storagePath, err = s.transport.Upload(ctx, upload.Source{
			Filename:    filename,
			ContentType: contentType,
			Size:        info.Size(),
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		}, func(sent, total int64) {
			if total > 0 {
				report(StageUploading, int(sent*100/total))
			}
		})
		if err != nil {
			return nil, err
		}
	}

	// Stage 4: job registration
	report(StageSubmitting, 0)
	request := types.SubmitJobRequest{
		Filename:    filename,
		ContentHash: contentHash,
		StoragePath: storagePath,
		FileSize:    info.Size(),
		Language:    opts.Language,
		NumSpeakers: opts.NumSpeakers,
		MinSpeakers: opts.MinSpeakers,
		MaxSpeakers: opts.MaxSpeakers,
	}
	response, err := s.api.CreateJob(ctx, request)
	if err != nil {
		return nil, err
	}

	// Stage 5: persist the credentials; the token is the only way to find
	// this job again.
	if err := s.store.Add(types.StoredJobRecord{
		JobID:       response.JobID,
		AccessToken: response.AccessToken,
	}); err != nil {
		return nil, fmt.Errorf("job %s registered but could not be stored locally: %w", response.JobID, err)
	}

	report(StageComplete, 100)
	logger.InfoWithFields("submission complete", map[string]interface{}{
		"submission_id": submissionID,
		"job_id":        response.JobID,
		"cached":        response.Cached,
	})
	return &response, nil
}

func detectContentType(path string) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
