// Package s3 implements the objectstore contracts using AWS SDK for S3-compatible storage.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dray-io/objaccess/internal/objectstore"
)

// Config configures an S3 store.
type Config struct {
	// Bucket is the name of the S3 bucket.
	Bucket string

	// Region is the AWS region (e.g., "us-east-1").
	// Required for AWS S3, optional for S3-compatible endpoints.
	Region string

	// Endpoint is the S3 endpoint URL (e.g., "http://localhost:9000" for MinIO).
	// If empty, uses the default AWS endpoint for the region.
	Endpoint string

	// AccessKeyID is the AWS access key ID.
	// If empty, uses the default credential chain.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	// If empty, uses the default credential chain.
	SecretAccessKey string

	// UsePathStyle enables path-style addressing (required for MinIO and some S3-compatible stores).
	// When true: http://endpoint/bucket/key
	// When false (default): http://bucket.endpoint/key
	UsePathStyle bool

	// MaxAttempts bounds the SDK's own retries. Zero keeps the SDK default;
	// 1 disables SDK retries and leaves them to the caller's retry policy.
	MaxAttempts int
}

// Store implements objectstore.Store using AWS S3. Write sessions are
// multipart uploads: every append is one part.
type Store struct {
	client *s3.Client
	bucket string
	closed bool
	mu     sync.RWMutex
}

// New creates a new S3 store with the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket name is required")
	}

	opts := []func(*config.LoadOptions) error{}

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	} else {
		opts = append(opts, config.WithRegion("us-east-1"))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	if cfg.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			// Suppress "Response has no supported checksum" warnings.
			o.DisableLogOutputChecksumValidationSkipped = true
			// Many S3-compatible stores reject the default CRC32 trailers.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		},
	}

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

func (s *Store) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return objectstore.ErrClosed
	}
	return nil
}

// Write starts a multipart upload for key.
//
// Every block except the last must be at least 5 MiB; S3 rejects smaller
// parts when the upload is completed.
func (s *Store) Write(ctx context.Context, key string, opts objectstore.WriteOptions) (objectstore.BlockWriter, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	input := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(opts.ContentTypeOrDefault()),
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	output, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return nil, translateError("CreateMultipartUpload", key, err)
	}

	return &multipartWriter{
		store:    s,
		key:      key,
		opts:     opts,
		uploadID: aws.ToString(output.UploadId),
	}, nil
}

// Head retrieves object metadata without the body.
func (s *Store) Head(ctx context.Context, key string) (objectstore.ObjectMeta, error) {
	if err := s.checkClosed(); err != nil {
		return objectstore.ObjectMeta{}, err
	}

	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return objectstore.ObjectMeta{}, translateError("Head", key, err)
	}

	meta := objectstore.ObjectMeta{
		Key:         key,
		Size:        aws.ToInt64(output.ContentLength),
		ContentType: aws.ToString(output.ContentType),
		ETag:        aws.ToString(output.ETag),
		Metadata:    output.Metadata,
	}

	if output.LastModified != nil {
		meta.LastModified = output.LastModified.UnixMilli()
	}

	return meta, nil
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		translated := translateError("Delete", key, err)
		if errors.Is(translated, objectstore.ErrNotFound) {
			return nil
		}
		return translated
	}

	return nil
}

// Close releases resources associated with the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// translateError normalizes an SDK error with the shared status table.
// The message is rendered from the S3 error document fields the SDK decoded.
func translateError(op, key string, err error) error {
	var respErr *awshttp.ResponseError
	if !errors.As(err, &respErr) {
		return objectstore.NewError(objectstore.KindUnexpected, err.Error()).
			WithOperation(op, key).
			WithSource(err)
	}

	status := respErr.HTTPStatusCode()
	kind, retryable := objectstore.ClassifyStatus(status)

	doc := objectstore.ErrorDocument{RequestID: respErr.ServiceRequestID()}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		doc.Code = apiErr.ErrorCode()
		doc.Message = apiErr.ErrorMessage()
	}
	var hostErr interface{ ServiceHostID() string }
	if errors.As(err, &hostErr) {
		doc.HostID = hostErr.ServiceHostID()
	}

	message := doc.String()
	if doc.Code == "" && doc.Message == "" {
		message = objectstore.StatusLine(status)
	}

	oerr := objectstore.NewError(kind, message).
		WithOperation(op, key).
		WithContext("status", objectstore.StatusLine(status))
	if respErr.Response != nil && respErr.Response.Response != nil {
		oerr = oerr.WithContext("headers", objectstore.FormatHeaders(respErr.Response.Header))
	}
	if doc.RequestID != "" {
		oerr = oerr.WithContext("request_id", doc.RequestID)
	}
	oerr = oerr.WithSource(err)
	if retryable {
		oerr = oerr.SetTemporary()
	}
	return oerr
}

// multipartWriter implements objectstore.BlockWriter over a multipart upload.
// Parts stay invisible until Close completes the upload, so a failed session
// never exposes a partial object.
type multipartWriter struct {
	store    *Store
	key      string
	opts     objectstore.WriteOptions
	uploadID string
	etags    []string
	closed   bool
}

func (w *multipartWriter) Append(ctx context.Context, block []byte) error {
	if w.closed {
		return objectstore.ErrClosed
	}
	if err := w.store.checkClosed(); err != nil {
		return err
	}

	partNum := len(w.etags) + 1
	output, err := w.store.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(w.store.bucket),
		Key:           aws.String(w.key),
		UploadId:      aws.String(w.uploadID),
		PartNumber:    aws.Int32(int32(partNum)),
		Body:          bytes.NewReader(block),
		ContentLength: aws.Int64(int64(len(block))),
	})
	if err != nil {
		return translateError("Append", w.key, err)
	}

	w.etags = append(w.etags, aws.ToString(output.ETag))
	return nil
}

func (w *multipartWriter) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	if err := w.store.checkClosed(); err != nil {
		return err
	}

	if len(w.etags) == 0 {
		return w.closeEmpty(ctx)
	}

	parts := make([]types.CompletedPart, len(w.etags))
	for i, etag := range w.etags {
		parts[i] = types.CompletedPart{
			PartNumber: aws.Int32(int32(i + 1)),
			ETag:       aws.String(etag),
		}
	}

	_, err := w.store.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		return translateError("Close", w.key, err)
	}

	w.closed = true
	return nil
}

// closeEmpty handles sessions without appends: S3 cannot complete an upload
// with zero parts, so the upload is aborted and an empty object is put instead.
func (w *multipartWriter) closeEmpty(ctx context.Context) error {
	_, err := w.store.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
	if err != nil {
		var noSuchUpload *types.NoSuchUpload
		if !errors.As(err, &noSuchUpload) {
			return translateError("Close", w.key, err)
		}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(w.store.bucket),
		Key:           aws.String(w.key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
		ContentType:   aws.String(w.opts.ContentTypeOrDefault()),
	}
	if len(w.opts.Metadata) > 0 {
		input.Metadata = w.opts.Metadata
	}
	if _, err := w.store.client.PutObject(ctx, input); err != nil {
		return translateError("Close", w.key, err)
	}

	w.closed = true
	return nil
}

// Verify interface compliance at compile time.
var (
	_ objectstore.Store       = (*Store)(nil)
	_ objectstore.BlockWriter = (*multipartWriter)(nil)
)
