package chunkuploader

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name       string
		totalBytes int64
		chunkSize  int64
		want       []Chunk
	}{
		{
			name:       "last chunk holds the remainder",
			totalBytes: 2500000,
			chunkSize:  1048576,
			want: []Chunk{
				{Index: 0, Start: 0, End: 1048576},
				{Index: 1, Start: 1048576, End: 2097152},
				{Index: 2, Start: 2097152, End: 2500000},
			},
		},
		{
			name:       "file size equals chunk size",
			totalBytes: 1048576,
			chunkSize:  1048576,
			want:       []Chunk{{Index: 0, Start: 0, End: 1048576}},
		},
		{
			name:       "empty file",
			totalBytes: 0,
			chunkSize:  1048576,
			want:       []Chunk{},
		},
		{
			name:       "file smaller than chunk",
			totalBytes: 10,
			chunkSize:  1048576,
			want:       []Chunk{{Index: 0, Start: 0, End: 10}},
		},
		{
			name:       "evenly divisible",
			totalBytes: 9,
			chunkSize:  3,
			want: []Chunk{
				{Index: 0, Start: 0, End: 3},
				{Index: 1, Start: 3, End: 6},
				{Index: 2, Start: 6, End: 9},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Partition(tt.totalBytes, tt.chunkSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPartition_ChunkSizes(t *testing.T) {
	chunks, err := Partition(2500000, DefaultChunkSize)
	require.NoError(t, err)

	var sizes []int64
	for _, c := range chunks {
		sizes = append(sizes, c.Size())
	}
	assert.Equal(t, []int64{1048576, 1048576, 402848}, sizes)
}

func TestPartition_Coverage(t *testing.T) {
	for totalBytes := int64(0); totalBytes <= 64; totalBytes++ {
		for chunkSize := int64(1); chunkSize <= 17; chunkSize++ {
			chunks, err := Partition(totalBytes, chunkSize)
			require.NoError(t, err)

			wantCount := int((totalBytes + chunkSize - 1) / chunkSize)
			require.Len(t, chunks, wantCount, "total=%d size=%d", totalBytes, chunkSize)
			require.Equal(t, wantCount, ChunkCount(totalBytes, chunkSize))

			var next int64
			for i, c := range chunks {
				require.Equal(t, i, c.Index)
				require.Equal(t, next, c.Start, "gap or overlap at chunk %d", i)
				require.Greater(t, c.End, c.Start)
				if i < len(chunks)-1 {
					require.Equal(t, chunkSize, c.Size())
				} else {
					require.LessOrEqual(t, c.Size(), chunkSize)
				}
				next = c.End
			}
			require.Equal(t, totalBytes, next)
		}
	}
}

func TestPartition_HugeChunkSize(t *testing.T) {
	tests := []struct {
		name       string
		totalBytes int64
		chunkSize  int64
		want       []Chunk
	}{
		{
			name:       "small file with max chunk size",
			totalBytes: 10,
			chunkSize:  math.MaxInt64,
			want:       []Chunk{{Index: 0, Start: 0, End: 10}},
		},
		{
			name:       "max file with max chunk size",
			totalBytes: math.MaxInt64,
			chunkSize:  math.MaxInt64,
			want:       []Chunk{{Index: 0, Start: 0, End: math.MaxInt64}},
		},
		{
			name:       "max file split in two",
			totalBytes: math.MaxInt64,
			chunkSize:  math.MaxInt64/2 + 1,
			want: []Chunk{
				{Index: 0, Start: 0, End: math.MaxInt64/2 + 1},
				{Index: 1, Start: math.MaxInt64/2 + 1, End: math.MaxInt64},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Partition(tt.totalBytes, tt.chunkSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), ChunkCount(tt.totalBytes, tt.chunkSize))
		})
	}
}

func TestPartition_InvalidInput(t *testing.T) {
	_, err := Partition(-1, 10)
	require.ErrorIs(t, err, ErrInvalidPartition)

	_, err = Partition(10, 0)
	require.ErrorIs(t, err, ErrInvalidPartition)

	_, err = Partition(10, -5)
	require.ErrorIs(t, err, ErrInvalidPartition)
}
