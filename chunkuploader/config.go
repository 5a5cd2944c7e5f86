package chunkuploader

import (
	"net/http"
	"time"
)

// DefaultChunkSize is the nominal size of every chunk but the last one.
const DefaultChunkSize int64 = 1 * 1024 * 1024

// Policy decides what happens to sibling chunks once a chunk fails.
type Policy string

const (
	// PolicyBestEffort attempts every chunk and reports all failures at the end.
	PolicyBestEffort Policy = "best-effort"
	// PolicyFailFast cancels chunks that have not settled yet after the first failure.
	PolicyFailFast Policy = "fail-fast"
)

// Config holds configuration for the chunk uploader.
type Config struct {
	// ChunkSize is the size of every chunk, the last chunk is truncated to the remainder.
	// Default: 1 MiB
	ChunkSize int64

	// Concurrency is the maximum number of chunks read and sent at the same time.
	// Zero means every chunk is scheduled at once.
	// Default: 0
	Concurrency int

	// Policy is applied when a chunk fails.
	// Default: PolicyBestEffort
	Policy Policy
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:   DefaultChunkSize,
		Concurrency: 0,
		Policy:      PolicyBestEffort,
	}
}

// DefaultHTTPClient creates an HTTP client optimized for chunk uploads.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		// No timeout, settlement is left to the caller's context
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     10 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}
