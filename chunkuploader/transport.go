package chunkuploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"github.com/bitrise-io/go-utils/v2/log"
)

// Metadata headers attached to every chunk request.
const (
	HeaderFileName   = "File-Name"
	HeaderFileKey    = "File-Key"
	HeaderChunkIndex = "Chunk-Index"
	HeaderChunkTotal = "Chunk-Total"

	contentTypeOctetStream = "application/octet-stream"
)

// ErrEmptyEndpoint is returned when no upload endpoint is configured.
var ErrEmptyEndpoint = errors.New("upload endpoint must not be empty")

// ChunkRequest is a single chunk with its positional metadata.
type ChunkRequest struct {
	FileName  string
	SessionID SessionID
	Index     int
	Total     int
	Payload   []byte
}

// Headers returns the positional metadata as header values.
func (r ChunkRequest) Headers() map[string]string {
	return map[string]string{
		HeaderFileName:   r.FileName,
		HeaderFileKey:    r.SessionID.String(),
		HeaderChunkIndex: strconv.Itoa(r.Index),
		HeaderChunkTotal: strconv.Itoa(r.Total),
	}
}

// Transport sends one chunk to the receiving side.
// onSent is called with the cumulative number of payload bytes transmitted so far;
// successive values never decrease. Send returns once the request settled.
type Transport interface {
	Send(ctx context.Context, req ChunkRequest, onSent func(sent int64)) error
}

// StatusError is returned for a non-success response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPTransport posts every chunk as a raw binary body to a fixed endpoint.
type HTTPTransport struct {
	endpoint   string
	httpClient *http.Client
	logger     log.Logger
}

// NewHTTPTransport creates a transport posting to endpoint.
// If client is nil, DefaultHTTPClient is used.
func NewHTTPTransport(endpoint string, client *http.Client, logger log.Logger) (*HTTPTransport, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported endpoint scheme: %q", u.Scheme)
	}

	if client == nil {
		client = DefaultHTTPClient()
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	return &HTTPTransport{
		endpoint:   endpoint,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Send posts the chunk and reports body transmission progress through onSent.
func (t *HTTPTransport) Send(ctx context.Context, chunk ChunkRequest, onSent func(sent int64)) error {
	body := newProgressReader(bytes.NewReader(chunk.Payload), onSent)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeOctetStream)
	for k, v := range chunk.Headers() {
		req.Header.Set(k, v)
	}
	req.ContentLength = int64(len(chunk.Payload))

	dump, err := httputil.DumpRequest(req, false)
	if err != nil {
		t.logger.Warnf("error while dumping request: %s", err)
	}
	t.logger.Debugf("Chunk request dump: %s", string(dump))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("chunk upload cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("do request: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			t.logger.Warnf("Failed to close response body: %s", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return unwrapError(resp)
	}

	return nil
}

// CloseIdleConnections closes idle connections in the HTTP client.
func (t *HTTPTransport) CloseIdleConnections() {
	t.httpClient.CloseIdleConnections()
}

func unwrapError(resp *http.Response) error {
	errorBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("HTTP %d, read body: %w", resp.StatusCode, err)
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: string(errorBody)}
}

// progressReader reports the cumulative number of bytes read after every read.
type progressReader struct {
	r    io.Reader
	read int64
	emit func(read int64)
}

func newProgressReader(r io.Reader, emit func(read int64)) *progressReader {
	return &progressReader{r: r, emit: emit}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		if p.emit != nil {
			p.emit(p.read)
		}
	}
	return n, err
}
