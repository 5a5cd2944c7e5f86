package chunkuploader

import (
	"errors"
	"fmt"
)

// ErrInvalidPartition is returned for a negative file size or a non-positive chunk size.
var ErrInvalidPartition = errors.New("invalid partition parameters")

// ChunkCount returns ceil(totalBytes / chunkSize).
func ChunkCount(totalBytes, chunkSize int64) int {
	if totalBytes <= 0 || chunkSize <= 0 {
		return 0
	}
	count := totalBytes / chunkSize
	if totalBytes%chunkSize != 0 {
		count++
	}
	return int(count)
}

// Partition splits [0, totalBytes) into contiguous chunks of chunkSize bytes.
// The last chunk holds the remainder. An empty file has no chunks.
func Partition(totalBytes, chunkSize int64) ([]Chunk, error) {
	if totalBytes < 0 {
		return nil, fmt.Errorf("%w: total size %d is negative", ErrInvalidPartition, totalBytes)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d is not positive", ErrInvalidPartition, chunkSize)
	}

	count := ChunkCount(totalBytes, chunkSize)
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := int64(i) * chunkSize
		end := start + min(chunkSize, totalBytes-start)
		chunks = append(chunks, Chunk{Index: i, Start: start, End: end})
	}

	return chunks, nil
}
