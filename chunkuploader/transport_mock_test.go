package chunkuploader

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTransport is a testify mock for Transport.
type MockTransport struct {
	mock.Mock
}

// Send reports the configured progress values before returning the configured error.
func (m *MockTransport) Send(ctx context.Context, req ChunkRequest, onSent func(sent int64)) error {
	args := m.Called(ctx, req, onSent)

	if progress, ok := args.Get(1).([]int64); ok && onSent != nil {
		for _, sent := range progress {
			onSent(sent)
		}
	}

	return args.Error(0)
}
