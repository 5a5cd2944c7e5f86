package chunkuploader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// Uploader uploads the chunks of a file through a Transport and aggregates their progress.
type Uploader struct {
	config    Config
	transport Transport
	logger    log.Logger
	stats     *Stats
}

// New creates a new Uploader with the given configuration.
// Zero values in config fall back to DefaultConfig.
func New(config Config, transport Transport, logger log.Logger) *Uploader {
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.Policy == "" {
		config.Policy = PolicyBestEffort
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	return &Uploader{
		config:    config,
		transport: transport,
		logger:    logger,
		stats:     NewStats(),
	}
}

// Stats returns the upload statistics.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

// ChunkUpload is everything needed to send one chunk that is already in memory.
type ChunkUpload struct {
	FileName   string
	SessionID  SessionID
	TotalBytes int64
	Data       []byte
	Progress   *ProgressTracker
	Index      int
	Total      int
	Callbacks  Callbacks
}

// UploadFile uploads every chunk of file under a fresh session identifier.
// All chunks are scheduled without waiting for each other; the call returns once each of them settled.
// When a chunk fails the returned error is an *UploadError and the result is still returned,
// so the caller can decide to resend single chunks.
func (u *Uploader) UploadFile(ctx context.Context, file File, callbacks Callbacks) (*UploadResult, error) {
	if file == nil {
		return nil, errors.New("file must not be nil")
	}
	if u.transport == nil {
		return nil, errors.New("transport must not be nil")
	}

	provider, err := NewFileChunkProvider(file, u.config.ChunkSize)
	if err != nil {
		return nil, err
	}

	sessionID := NewSessionID()
	numChunks := provider.NumChunks()
	tracker := NewProgressTracker(file.Size(), provider.Chunks())

	result := &UploadResult{
		SessionID:  sessionID,
		FileName:   file.Name(),
		TotalBytes: file.Size(),
		Chunks:     make([]ChunkResult, numChunks),
	}

	if numChunks == 0 {
		u.logger.Warnf("%s is empty, nothing to upload", file.Name())
		result.Percentage = tracker.Percentage()
		callbacks.progress(ProgressEvent{Index: -1, Percentage: result.Percentage})
		return result, nil
	}

	u.logger.Infof("Uploading %s (%s) in %d chunks of %s, session: %s",
		file.Name(), units.HumanSizeWithPrecision(float64(file.Size()), 3),
		numChunks, units.HumanSizeWithPrecision(float64(u.config.ChunkSize), 3), sessionID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultChan := make(chan ChunkResult, numChunks)
	var semaphore chan struct{}
	if u.config.Concurrency > 0 {
		semaphore = make(chan struct{}, u.config.Concurrency)
	}

	for i := 0; i < numChunks; i++ {
		go func(index int) {
			if semaphore != nil {
				select {
				case semaphore <- struct{}{}:
					defer func() { <-semaphore }()
				case <-ctx.Done():
					resultChan <- u.settle(ChunkResult{
						Index:  index,
						Status: StatusFailed,
						Err:    fmt.Errorf("chunk %d not started: %w", index, ctx.Err()),
					}, callbacks)
					return
				}
			}

			resultChan <- u.readAndUpload(ctx, provider, ChunkUpload{
				FileName:   file.Name(),
				SessionID:  sessionID,
				TotalBytes: file.Size(),
				Progress:   tracker,
				Index:      index,
				Total:      numChunks,
				Callbacks:  callbacks,
			})
		}(i)
	}

	for completed := 0; completed < numChunks; completed++ {
		r := <-resultChan
		result.Chunks[r.Index] = r
		if r.Status != StatusSucceeded && u.config.Policy == PolicyFailFast {
			cancel()
		}
	}

	result.Percentage = tracker.Percentage()

	failed := result.Failed()
	if len(failed) > 0 {
		return result, &UploadError{
			SessionID: sessionID,
			Failed:    failed,
			Total:     numChunks,
			first:     result.Chunks[failed[0]].Err,
		}
	}

	u.logger.Donef("Uploaded %d chunks of %s [avg=%v]", numChunks, file.Name(), u.stats.Average().Round(time.Millisecond))

	return result, nil
}

func (u *Uploader) readAndUpload(ctx context.Context, provider ChunkProvider, upload ChunkUpload) ChunkResult {
	if err := ctx.Err(); err != nil {
		return u.settle(ChunkResult{
			Index:  upload.Index,
			Status: StatusFailed,
			Err:    fmt.Errorf("chunk %d not started: %w", upload.Index, err),
		}, upload.Callbacks)
	}

	data, err := provider.GetChunk(upload.Index)
	if err != nil {
		return u.settle(ChunkResult{
			Index:  upload.Index,
			Status: StatusFailed,
			Err:    fmt.Errorf("get chunk %d: %w", upload.Index, err),
		}, upload.Callbacks)
	}
	upload.Data = data

	return u.UploadChunk(ctx, upload)
}

// UploadChunk sends one in-memory chunk, records its progress in the shared tracker
// and invokes OnComplete exactly once when the request settled.
func (u *Uploader) UploadChunk(ctx context.Context, upload ChunkUpload) ChunkResult {
	if upload.Progress == nil {
		return u.settle(ChunkResult{
			Index:  upload.Index,
			Status: StatusFailed,
			Err:    errors.New("progress tracker must not be nil"),
		}, upload.Callbacks)
	}
	if upload.Index < 0 || upload.Index >= upload.Progress.Len() {
		return u.settle(ChunkResult{
			Index:  upload.Index,
			Status: StatusFailed,
			Err:    fmt.Errorf("chunk index %d out of range [0, %d)", upload.Index, upload.Progress.Len()),
		}, upload.Callbacks)
	}

	size := int64(len(upload.Data))
	onSent := func(sent int64) {
		percentage, err := upload.Progress.Record(upload.Index, sent)
		if err != nil {
			u.logger.Debugf("Record progress of chunk %d: %s", upload.Index, err)
			return
		}
		upload.Callbacks.progress(ProgressEvent{
			Index:      upload.Index,
			Sent:       upload.Progress.Sent(upload.Index),
			Size:       size,
			Percentage: percentage,
		})
	}

	u.logger.Debugf("Uploading chunk %d/%d (%d bytes) [finished=%d] [avg=%v]",
		upload.Index+1, upload.Total, size, u.stats.SucceededCount(), u.stats.Average().Round(time.Millisecond))

	start := time.Now()
	err := u.transport.Send(ctx, ChunkRequest{
		FileName:  upload.FileName,
		SessionID: upload.SessionID,
		Index:     upload.Index,
		Total:     upload.Total,
		Payload:   upload.Data,
	}, onSent)
	took := time.Since(start)

	if err != nil {
		u.logger.Warnf("Chunk %d failed: %s", upload.Index, err)
		return u.settle(ChunkResult{
			Index:    upload.Index,
			Status:   StatusFailed,
			Sent:     upload.Progress.Sent(upload.Index),
			Duration: took,
			Err:      fmt.Errorf("upload chunk %d: %w", upload.Index, err),
		}, upload.Callbacks)
	}

	// A settled request carried the whole payload even if the transport reported less.
	if upload.Progress.Sent(upload.Index) < size {
		onSent(size)
	}

	u.logger.Debugf("Chunk %d uploaded in %v", upload.Index, took.Round(time.Millisecond))

	return u.settle(ChunkResult{
		Index:    upload.Index,
		Status:   StatusSucceeded,
		Sent:     upload.Progress.Sent(upload.Index),
		Duration: took,
	}, upload.Callbacks)
}

func (u *Uploader) settle(r ChunkResult, callbacks Callbacks) ChunkResult {
	u.stats.Record(r)
	callbacks.complete(r)
	return r
}
