// Package chunkuploader splits a single file into fixed-size chunks and uploads every chunk
// as an independent request tagged with a shared session identifier, the chunk index and the chunk total.
// Progress of all in-flight chunks is folded into one overall percentage.
package chunkuploader

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// File is the handle of the file selected for upload.
// It is owned by the caller and is never closed by the uploader.
type File interface {
	io.ReaderAt
	Name() string
	Size() int64
}

// Chunk describes the byte range [Start, End) of one chunk within the file.
type Chunk struct {
	Index int
	Start int64
	End   int64
}

// Size returns the number of bytes in the chunk.
func (c Chunk) Size() int64 {
	return c.End - c.Start
}

// Status is the settlement status of a single chunk request.
type Status string

const (
	// StatusSucceeded means the transport accepted the chunk.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means reading or sending the chunk failed.
	StatusFailed Status = "failed"
)

// ChunkResult represents the settlement of uploading a single chunk.
type ChunkResult struct {
	Index    int
	Status   Status
	Sent     int64
	Duration time.Duration
	Err      error
}

// ProgressEvent is delivered on every byte-count-sent notification of any chunk.
type ProgressEvent struct {
	Index      int
	Sent       int64
	Size       int64
	Percentage int
}

// Callbacks let the caller render progress and observe chunk settlement.
// Both are optional and may be invoked from multiple goroutines.
type Callbacks struct {
	OnProgress func(ProgressEvent)
	OnComplete func(ChunkResult)
}

func (c Callbacks) progress(e ProgressEvent) {
	if c.OnProgress != nil {
		c.OnProgress(e)
	}
}

func (c Callbacks) complete(r ChunkResult) {
	if c.OnComplete != nil {
		c.OnComplete(r)
	}
}

// UploadResult represents the result of uploading all chunks of one file.
type UploadResult struct {
	SessionID  SessionID
	FileName   string
	TotalBytes int64
	// Chunks is ordered by chunk index.
	Chunks     []ChunkResult
	Percentage int
}

// Failed returns the indexes of the chunks that did not succeed.
func (r *UploadResult) Failed() []int {
	var failed []int
	for _, c := range r.Chunks {
		if c.Status != StatusSucceeded {
			failed = append(failed, c.Index)
		}
	}
	return failed
}

// UploadError is returned by UploadFile when at least one chunk failed.
type UploadError struct {
	SessionID SessionID
	Failed    []int
	Total     int
	first     error
}

func (e *UploadError) Error() string {
	indexes := make([]string, 0, len(e.Failed))
	for _, i := range e.Failed {
		indexes = append(indexes, fmt.Sprintf("%d", i))
	}
	return fmt.Sprintf("%d of %d chunks failed for session %s (chunks: %s): %v",
		len(e.Failed), e.Total, e.SessionID, strings.Join(indexes, ","), e.first)
}

// Unwrap returns the error of the lowest indexed failed chunk.
func (e *UploadError) Unwrap() error {
	return e.first
}
