// Package upload is the shared implementation of steps that upload one file in chunks.
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bitrise-io/go-chunkupload/chunkuploader"
	"github.com/bitrise-io/go-chunkupload/metrics"
	"github.com/bitrise-io/go-chunkupload/s3transport"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"
)

// UploadFileInput is the information that comes from the steps that call this shared implementation
type UploadFileInput struct {
	// StepId identifies the exact step. Used for logging events.
	StepId  string
	Verbose bool
	// Path of the file to upload. Wildcards are allowed, only the first match is uploaded.
	Path string
	// Storage is either "http" (default) or "s3".
	Storage string
	// URL is the endpoint chunks are posted to. Falls back to $CHUNK_UPLOAD_URL.
	URL string
	// ChunkSize accepts byte counts and human readable sizes, like 1MiB or 512KB.
	// If not provided, 1 MiB is used.
	ChunkSize string
	// Concurrency caps the number of chunks in flight, 0 means no limit.
	Concurrency int
	// FailFast cancels the remaining chunks after the first failed one.
	FailFast bool

	S3Bucket   string
	S3Region   string
	S3Prefix   string
	S3Endpoint string
}

// FileUploader ...
type FileUploader interface {
	Upload(ctx context.Context, input UploadFileInput) (*chunkuploader.UploadResult, error)
}

type uploadFileConfig struct {
	Verbose     bool
	Path        string
	Storage     string
	URL         string
	ChunkSize   int64
	Concurrency int
	Policy      chunkuploader.Policy
	S3          s3transport.Params
}

type fileUploader struct {
	envRepo        env.Repository
	logger         log.Logger
	pathModifier   pathutil.PathModifier
	pathChecker    pathutil.PathChecker
	transport      chunkuploader.Transport
	metrics        *metrics.Collector
	trackerFactory TrackerFactory
}

// NewFileUploader creates a new file uploader instance. `transport` and `collector` can be nil,
// unless you want to provide a custom `Transport` implementation or collect metrics.
func NewFileUploader(
	envRepo env.Repository,
	logger log.Logger,
	pathModifier pathutil.PathModifier,
	pathChecker pathutil.PathChecker,
	transport chunkuploader.Transport,
	collector *metrics.Collector,
) *fileUploader {
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}
	return &fileUploader{
		envRepo:      envRepo,
		logger:       logger,
		pathModifier: pathModifier,
		pathChecker:  pathChecker,
		transport:    transport,
		metrics:      collector,
	}
}

// Upload ...
func (u *fileUploader) Upload(ctx context.Context, input UploadFileInput) (*chunkuploader.UploadResult, error) {
	u.logger.TDebugf("Upload start")
	defer func() {
		u.logger.TDebugf("Upload done")
	}()

	config, err := u.createConfig(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inputs: %w", err)
	}
	u.logger.EnableDebugLog(config.Verbose)
	u.logger.TDebugf("Config created")

	tracker := newStepTracker(input.StepId, u.envRepo, u.logger, u.trackerFactory)
	defer tracker.wait()

	transport, err := u.createTransport(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s transport: %w", config.Storage, err)
	}

	file, err := chunkuploader.OpenFile(config.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			u.logger.Warnf("Failed to close %s: %s", config.Path, err)
		}
	}()

	u.logger.Println()
	u.logger.Printf("File: %s", config.Path)
	u.logger.Printf("File size: %s", units.HumanSizeWithPrecision(float64(file.Size()), 3))
	u.logger.Printf("Chunk size: %s", units.HumanSizeWithPrecision(float64(config.ChunkSize), 3))

	uploader := chunkuploader.New(chunkuploader.Config{
		ChunkSize:   config.ChunkSize,
		Concurrency: config.Concurrency,
		Policy:      config.Policy,
	}, transport, u.logger)

	u.logger.Println()
	u.logger.Infof("Uploading file...")
	startTime := time.Now()
	result, err := uploader.UploadFile(ctx, file, u.metrics.Callbacks(u.progressLogger()))
	uploadTime := time.Since(startTime).Round(time.Second)
	u.metrics.FileSettled(result, err)
	if err != nil {
		tracker.logFileUploadFailed(uploadTime, result, config.Storage)
		return result, fmt.Errorf("file upload failed: %w", err)
	}

	tracker.logFileUploaded(uploadTime, result, config.Storage)
	u.logger.Donef("File uploaded in %s, session: %s", uploadTime, result.SessionID)

	return result, nil
}

func (u *fileUploader) createConfig(input UploadFileInput) (uploadFileConfig, error) {
	if strings.TrimSpace(input.Path) == "" {
		return uploadFileConfig{}, fmt.Errorf("file path should not be empty")
	}

	path, err := u.evaluatePath(input.Path)
	if err != nil {
		return uploadFileConfig{}, fmt.Errorf("failed to evaluate path: %w", err)
	}
	u.logger.TDebugf("Path evaluated")

	chunkSize := chunkuploader.DefaultChunkSize
	if input.ChunkSize != "" {
		chunkSize, err = units.RAMInBytes(input.ChunkSize)
		if err != nil {
			return uploadFileConfig{}, fmt.Errorf("invalid chunk size: %w", err)
		}
		if chunkSize <= 0 {
			return uploadFileConfig{}, fmt.Errorf("chunk size should be positive, got %d", chunkSize)
		}
	}

	if input.Concurrency < 0 {
		return uploadFileConfig{}, fmt.Errorf("concurrency should not be negative")
	}

	policy := chunkuploader.PolicyBestEffort
	if input.FailFast {
		policy = chunkuploader.PolicyFailFast
	}

	config := uploadFileConfig{
		Verbose:     input.Verbose,
		Path:        path,
		ChunkSize:   chunkSize,
		Concurrency: input.Concurrency,
		Policy:      policy,
	}

	switch input.Storage {
	case "", StorageHTTP:
		config.Storage = StorageHTTP
		config.URL = input.URL
		if config.URL == "" {
			config.URL = u.envRepo.Get(uploadURLEnvVar)
		}
		if config.URL == "" && u.transport == nil {
			return uploadFileConfig{}, fmt.Errorf("upload URL is not defined, set the input or '%s'", uploadURLEnvVar)
		}
	case StorageS3:
		config.Storage = StorageS3
		if input.S3Bucket == "" || input.S3Region == "" {
			return uploadFileConfig{}, fmt.Errorf("bucket and region are required for s3 storage")
		}
		config.S3 = s3transport.Params{
			Region:          input.S3Region,
			Bucket:          input.S3Bucket,
			Prefix:          input.S3Prefix,
			Endpoint:        input.S3Endpoint,
			UsePathStyle:    input.S3Endpoint != "",
			AccessKeyID:     u.envRepo.Get(awsAccessKeyIDEnvVar),
			SecretAccessKey: u.envRepo.Get(awsSecretAccessKeyEnvVar),
		}
	default:
		return uploadFileConfig{}, fmt.Errorf("unknown storage: %s", input.Storage)
	}

	return config, nil
}

// evaluatePath resolves the input path to a single existing file.
// For wildcard paths the first match wins and the rest are ignored.
func (u *fileUploader) evaluatePath(path string) (string, error) {
	if strings.Contains(path, "*") {
		base, pattern := doublestar.SplitPattern(path)
		absBase, err := u.pathModifier.AbsPath(base) // resolves ~/ and expands any envs
		if err != nil {
			return "", err
		}
		matches, err := doublestar.Glob(os.DirFS(absBase), pattern)
		if err != nil {
			return "", fmt.Errorf("error in path pattern '%s': %w", path, err)
		}
		if len(matches) == 0 {
			return "", fmt.Errorf("no match for path pattern: %s", path)
		}
		if len(matches) > 1 {
			u.logger.Warnf("%d files match %s, only the first one is uploaded: %s", len(matches), path, matches[0])
		}
		path = filepath.Join(absBase, matches[0])
	}

	absPath, err := u.pathModifier.AbsPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse path %s: %w", path, err)
	}

	exists, err := u.pathChecker.IsPathExists(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to check path %s: %w", absPath, err)
	}
	if !exists {
		return "", fmt.Errorf("file doesn't exist: %s", path)
	}

	return absPath, nil
}

func (u *fileUploader) createTransport(ctx context.Context, config uploadFileConfig) (chunkuploader.Transport, error) {
	if u.transport != nil {
		return u.transport, nil
	}

	switch config.Storage {
	case StorageS3:
		return s3transport.New(ctx, config.S3, u.logger)
	default:
		return chunkuploader.NewHTTPTransport(config.URL, nil, u.logger)
	}
}

// progressLogger prints the overall progress every progressLogStep percent and
// every failed chunk as soon as it settles.
func (u *fileUploader) progressLogger() chunkuploader.Callbacks {
	throttle := newProgressThrottle()

	return chunkuploader.Callbacks{
		OnProgress: func(e chunkuploader.ProgressEvent) {
			if throttle.reached(e.Percentage) {
				u.logger.Printf("Progress: %d%%", e.Percentage)
			}
		},
		OnComplete: func(r chunkuploader.ChunkResult) {
			if r.Status != chunkuploader.StatusSucceeded {
				u.logger.Warnf("Chunk %d failed after sending %d bytes: %s", r.Index, r.Sent, r.Err)
			}
		},
	}
}

// progressThrottle lets through the first percentage of every progressLogStep band, starting at 0.
type progressThrottle struct {
	mu     sync.Mutex
	logged int
}

func newProgressThrottle() *progressThrottle {
	return &progressThrottle{logged: -progressLogStep}
}

func (t *progressThrottle) reached(percentage int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if percentage/progressLogStep > t.logged/progressLogStep || (percentage == 100 && t.logged < 100) {
		t.logged = percentage
		return true
	}
	return false
}
