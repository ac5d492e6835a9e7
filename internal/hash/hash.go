// Package hash computes streaming content fingerprints for upload
// deduplication. Files are folded into a single SHA-256 digest in fixed-size
// chunks so memory stays bounded regardless of file size; the digest is
// independent of where the chunk boundaries fall.
package hash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/parlatext/parlatext/pkg/types"
)

// ChunkSize is the read granularity for hashing (8 MiB)
const ChunkSize = 8 * 1024 * 1024

// ProgressFunc receives a 0-100 percentage after each hashed chunk. Values
// are monotonically non-decreasing and reach 100 exactly once, after the
// final chunk.
type ProgressFunc func(percent int)

// Reader hashes all bytes of r, whose total length is size (size <= 0 means
// unknown; progress then stays at 0 until the final 100). A read failure
// aborts the stream and surfaces as *types.HashingError; no partial digest
// is returned.
func Reader(ctx context.Context, r io.Reader, size int64, onProgress ProgressFunc) (string, error) {
	digest := sha256.New()
	buf := make([]byte, ChunkSize)

	var read int64
	for {
		if err := ctx.Err(); err != nil {
			return "", &types.HashingError{Err: err}
		}

		n, err := r.Read(buf)
		if n > 0 {
			// sha256.Write never returns an error
			digest.Write(buf[:n])
			read += int64(n)

			if onProgress != nil && size > 0 {
				percent := int(read * 100 / size)
				// 100 is reserved for the final callback
				if percent > 99 {
					percent = 99
				}
				onProgress(percent)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &types.HashingError{Err: err}
		}
	}

	if onProgress != nil {
		onProgress(100)
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// File hashes the file at path, reporting progress against its current size
func File(ctx context.Context, path string, onProgress ProgressFunc) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &types.HashingError{Err: err}
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", &types.HashingError{Err: err}
	}

	return Reader(ctx, f, info.Size(), onProgress)
}
