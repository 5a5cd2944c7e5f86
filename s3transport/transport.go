// Package s3transport stores every chunk as its own S3 object.
// The positional metadata travels as object user metadata instead of request headers.
package s3transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-chunkupload/chunkuploader"
	"github.com/bitrise-io/go-utils/v2/log"
)

// Metadata keys, stored by S3 as x-amz-meta-<key>.
const (
	MetaFileName   = "file-name"
	MetaFileKey    = "file-key"
	MetaChunkIndex = "chunk-index"
	MetaChunkTotal = "chunk-total"
)

// DefaultPrefix is the key prefix chunk objects are stored under.
const DefaultPrefix = "uploads"

// Params ...
type Params struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the S3 endpoint, for S3 compatible storages.
	Endpoint     string
	UsePathStyle bool
}

// Transport implements chunkuploader.Transport on top of S3 PutObject.
type Transport struct {
	client *s3.Client
	bucket string
	prefix string
	logger log.Logger
}

// New creates a Transport from params, loading credentials the way the AWS SDK does
// unless static keys are given.
func New(ctx context.Context, params Params, logger log.Logger) (*Transport, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	cfg, err := loadAWSCredentials(ctx, params.Region, params.AccessKeyID, params.SecretAccessKey, logger)
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}

	client := s3.NewFromConfig(*cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
		}
		o.UsePathStyle = params.UsePathStyle
		// a failed chunk is reported to the caller, never resent here
		o.RetryMaxAttempts = 1
	})

	return NewFromClient(client, params.Bucket, params.Prefix, logger), nil
}

// NewFromClient creates a Transport using an existing S3 client.
func NewFromClient(client *s3.Client, bucket, prefix string, logger log.Logger) *Transport {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Transport{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// ChunkKey returns the object key of a chunk: <prefix>/<session>/chunk_<index>.
func ChunkKey(prefix string, sessionID chunkuploader.SessionID, index int) string {
	return path.Join(prefix, sessionID.String(), fmt.Sprintf("chunk_%d", index))
}

// Send uploads the chunk as a single object.
// The SDK reads the body to sign it before sending, so progress is reported once, on settlement.
func (t *Transport) Send(ctx context.Context, req chunkuploader.ChunkRequest, onSent func(sent int64)) error {
	key := ChunkKey(t.prefix, req.SessionID, req.Index)
	size := int64(len(req.Payload))

	t.logger.Debugf("Putting chunk %d to s3://%s/%s", req.Index, t.bucket, key)

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(req.Payload),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
		Metadata:      metadata(req),
	})
	if err != nil {
		var apiError smithy.APIError
		if errors.As(err, &apiError) {
			return fmt.Errorf("put chunk object %s (%s): %w", key, apiError.ErrorCode(), err)
		}
		return fmt.Errorf("put chunk object %s: %w", key, err)
	}

	if onSent != nil {
		onSent(size)
	}
	return nil
}

// metadata values must be US-ASCII, so the file name is query escaped.
func metadata(req chunkuploader.ChunkRequest) map[string]string {
	return map[string]string{
		MetaFileName:   url.QueryEscape(req.FileName),
		MetaFileKey:    req.SessionID.String(),
		MetaChunkIndex: strconv.Itoa(req.Index),
		MetaChunkTotal: strconv.Itoa(req.Total),
	}
}
