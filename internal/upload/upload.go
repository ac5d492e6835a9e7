// Package upload transfers file bytes to object storage through one of two
// protocols: a single streamed PUT for small files, or a two-phase resumable
// session (POST to open, PUT the body to the returned session URI) for large
// ones. The protocol is selected by the signed-URL issuer via the method
// field of its response; the client never decides from the file size.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parlatext/parlatext/internal/logger"
	v1 "github.com/parlatext/parlatext/pkg/api/v1/client"
	"github.com/parlatext/parlatext/pkg/types"
)

// resumableStartHeader marks phase 1 of a resumable session (GCS XML API)
const resumableStartHeader = "x-goog-resumable"

// errorBodyLimit caps how much of a storage error response is kept
const errorBodyLimit = 4 * 1024

// Source describes the file to transfer. Open is called once per transfer
// attempt so the body can be re-streamed from the start.
type Source struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// ProgressFunc receives transferred/total byte counts during a transfer.
// For resumable uploads only the body transfer (phase 2) reports progress.
type ProgressFunc func(sent, total int64)

// Uploader requests upload targets from the API and streams file bytes to
// storage.
type Uploader struct {
	api        v1.Client
	transferer *http.Client
}

// New creates an Uploader that asks api for signed upload targets
func New(api v1.Client) *Uploader {
	return &Uploader{
		api: api,
		// No client-side timeout on transfers: large uploads legitimately
		// run long. Cancellation comes from the request context.
		transferer: &http.Client{},
	}
}

// Upload transfers src to storage and returns the storage path to hand to
// job registration. Failures are typed: *types.UploadInitiationError when a
// resumable session cannot be opened, *types.UploadTransferError for
// transfer failures (server rejection, network failure, or caller abort).
func (u *Uploader) Upload(ctx context.Context, src Source, onProgress ProgressFunc) (string, error) {
	target, err := u.api.RequestSignedURL(ctx, types.SignedURLRequest{
		Filename:    src.Filename,
		ContentType: src.ContentType,
		FileSize:    src.Size,
	})
	if err != nil {
		return "", fmt.Errorf("failed to request upload target: %w", err)
	}

	logger.DebugWithFields("upload target issued", map[string]interface{}{
		"filename":     src.Filename,
		"method":       target.Method,
		"storage_path": target.StoragePath,
	})

	switch target.Method {
	case http.MethodPut:
		err = u.transfer(ctx, target.UploadURL, src, onProgress)
	case http.MethodPost:
		var sessionURI string
		sessionURI, err = u.initResumable(ctx, target.UploadURL, src.ContentType)
		if err == nil {
			// The body always goes to the session URI, never to the
			// original signed URL.
			err = u.transfer(ctx, sessionURI, src, onProgress)
		}
	default:
		err = fmt.Errorf("unsupported upload method %q", target.Method)
	}
	if err != nil {
		return "", err
	}

	return target.StoragePath, nil
}

// initResumable opens a resumable session (phase 1) and returns the session
// URI from the Location response header.
func (u *Uploader) initResumable(ctx context.Context, uploadURL, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, nil)
	if err != nil {
		return "", &types.UploadInitiationError{Reason: err.Error()}
	}
	req.Header.Set(resumableStartHeader, "start")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = 0

	resp, err := u.transferer.Do(req)
	if err != nil {
		return "", &types.UploadInitiationError{Reason: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", &types.UploadInitiationError{Status: resp.StatusCode, Reason: string(body)}
	}

	sessionURI := resp.Header.Get("Location")
	if sessionURI == "" {
		return "", &types.UploadInitiationError{Status: resp.StatusCode, Reason: "no session URI in Location header"}
	}

	return sessionURI, nil
}

// transfer streams the full file body to url with a single PUT
func (u *Uploader) transfer(ctx context.Context, url string, src Source, onProgress ProgressFunc) error {
	body, err := src.Open()
	if err != nil {
		return &types.UploadTransferError{Kind: types.TransferFailureNetwork, Err: err}
	}
	defer func() { _ = body.Close() }()

	reader := &progressReader{
		r:          body,
		total:      src.Size,
		onProgress: onProgress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, reader)
	if err != nil {
		return &types.UploadTransferError{Kind: types.TransferFailureNetwork, Err: err}
	}
	req.ContentLength = src.Size
	if src.ContentType != "" {
		req.Header.Set("Content-Type", src.ContentType)
	}

	start := time.Now()
	resp, err := u.transferer.Do(req)
	if err != nil {
		return classifyTransferFailure(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &types.UploadTransferError{
			Kind:   types.TransferFailureServer,
			Status: resp.StatusCode,
			Body:   string(respBody),
		}
	}

	logger.DebugWithFields("upload transfer finished", map[string]interface{}{
		"filename": src.Filename,
		"bytes":    src.Size,
		"elapsed":  time.Since(start).String(),
	})
	return nil
}

// classifyTransferFailure separates caller-triggered aborts from genuine
// network failures.
func classifyTransferFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &types.UploadTransferError{Kind: types.TransferFailureAborted, Err: err}
	}
	return &types.UploadTransferError{Kind: types.TransferFailureNetwork, Err: err}
}

// progressReader counts bytes as the HTTP client drains the body
type progressReader struct {
	r          io.Reader
	sent       int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.sent, p.total)
		}
	}
	return n, err
}
