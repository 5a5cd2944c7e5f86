package chunkuploader

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_Record(t *testing.T) {
	chunks, err := Partition(250, 100)
	require.NoError(t, err)
	tracker := NewProgressTracker(250, chunks)
	require.Equal(t, 3, tracker.Len())
	assert.Equal(t, 0, tracker.Percentage())

	p, err := tracker.Record(0, 50)
	require.NoError(t, err)
	assert.Equal(t, 20, p)

	p, err = tracker.Record(2, 50)
	require.NoError(t, err)
	assert.Equal(t, 40, p)

	// decreasing counts are ignored
	p, err = tracker.Record(0, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, p)
	assert.Equal(t, int64(50), tracker.Sent(0))

	// counts above the chunk size are clamped
	p, err = tracker.Record(2, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(50), tracker.Sent(2))
	assert.Equal(t, 40, p)

	_, err = tracker.Record(0, 100)
	require.NoError(t, err)
	p, err = tracker.Record(1, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, p)
	assert.Equal(t, int64(250), tracker.SentBytes())
}

func TestProgressTracker_Floor(t *testing.T) {
	chunks, err := Partition(3, 1)
	require.NoError(t, err)
	tracker := NewProgressTracker(3, chunks)

	p, err := tracker.Record(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 33, p)

	p, err = tracker.Record(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 66, p)
}

func TestProgressTracker_OutOfRange(t *testing.T) {
	chunks, err := Partition(10, 5)
	require.NoError(t, err)
	tracker := NewProgressTracker(10, chunks)

	_, err = tracker.Record(-1, 1)
	assert.Error(t, err)
	_, err = tracker.Record(2, 1)
	assert.Error(t, err)
	assert.Equal(t, int64(0), tracker.Sent(5))
}

func TestProgressTracker_EmptyFile(t *testing.T) {
	tracker := NewProgressTracker(0, nil)
	assert.Equal(t, 0, tracker.Len())
	assert.Equal(t, 100, tracker.Percentage())
}

func TestProgressTracker_Concurrent(t *testing.T) {
	const chunkSize, numChunks = 1000, 16
	chunks, err := Partition(chunkSize*numChunks, chunkSize)
	require.NoError(t, err)
	tracker := NewProgressTracker(chunkSize*numChunks, chunks)

	var wg sync.WaitGroup
	for i := 0; i < numChunks; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			for sent := int64(0); sent <= chunkSize; sent += 10 {
				p, err := tracker.Record(index, sent)
				if err != nil || p < 0 || p > 100 {
					t.Errorf("unexpected record result: %d, %v", p, err)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, tracker.Percentage())
}
