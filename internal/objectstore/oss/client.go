// Package oss implements the objectstore contracts on top of Alibaba Cloud
// OSS, writing objects with the Append Object operation.
//
// Failed responses are translated by [Classify] into normalized objectstore
// errors.
package oss

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	alioss "github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"

	"github.com/dray-io/objaccess/internal/objectstore"
)

// Config configures an OSS client.
type Config struct {
	// Endpoint is the OSS endpoint, e.g. "https://oss-cn-hangzhou.aliyuncs.com".
	// A bare host name is reached over HTTPS.
	Endpoint string

	// Bucket is the name of the OSS bucket.
	Bucket string

	// AccessKeyID and AccessKeySecret sign requests. Requests are sent
	// anonymously when AccessKeyID is empty.
	AccessKeyID     string
	AccessKeySecret string

	// UsePathStyle addresses objects as endpoint/bucket/key instead of
	// bucket.endpoint/key. Useful for local emulators.
	UsePathStyle bool

	// MaxAttempts bounds the SDK's own retries. Zero keeps the SDK default;
	// 1 leaves retrying entirely to the caller.
	MaxAttempts int

	// HTTPClient is used for all requests when set.
	HTTPClient *http.Client
}

// Client implements objectstore.Store against OSS.
type Client struct {
	client *alioss.Client
	bucket string
	closed bool
	mu     sync.RWMutex
}

// New creates an OSS client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("oss: bucket name is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("oss: endpoint is required")
	}

	var provider credentials.CredentialsProvider = credentials.NewAnonymousCredentialsProvider()
	if cfg.AccessKeyID != "" {
		provider = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret)
	}

	sdkCfg := alioss.LoadDefaultConfig().
		WithCredentialsProvider(provider).
		WithEndpoint(cfg.Endpoint).
		WithSignatureVersion(alioss.SignatureVersionV1).
		WithUsePathStyle(cfg.UsePathStyle).
		WithDisableUploadCRC64Check(true)
	if cfg.MaxAttempts > 0 {
		sdkCfg = sdkCfg.WithRetryMaxAttempts(cfg.MaxAttempts)
	}
	if cfg.HTTPClient != nil {
		sdkCfg = sdkCfg.WithHttpClient(cfg.HTTPClient)
	}

	return &Client{
		client: alioss.NewClient(sdkCfg),
		bucket: cfg.Bucket,
	}, nil
}

func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return objectstore.ErrClosed
	}
	return nil
}

// translateError converts an SDK error into a normalized objectstore error.
// Service errors carry the raw response, which goes through Classify;
// anything else never produced a response.
func translateError(op, key string, err error) error {
	var se *alioss.ServiceError
	if errors.As(err, &se) {
		return Classify(se.StatusCode, se.Headers, se.Snapshot).WithOperation(op, key)
	}
	return objectstore.NewError(objectstore.KindUnexpected, "request failed").
		WithOperation(op, key).
		WithSource(err)
}

// Write opens an append session for key. The object is created by the first
// append; appending to an existing non-appendable object fails with 409.
func (c *Client) Write(ctx context.Context, key string, opts objectstore.WriteOptions) (objectstore.BlockWriter, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return &appendWriter{client: c, key: key, opts: opts}, nil
}

// Head retrieves object metadata without the body.
func (c *Client) Head(ctx context.Context, key string) (objectstore.ObjectMeta, error) {
	if err := c.checkClosed(); err != nil {
		return objectstore.ObjectMeta{}, err
	}

	result, err := c.client.HeadObject(ctx, &alioss.HeadObjectRequest{
		Bucket: alioss.Ptr(c.bucket),
		Key:    alioss.Ptr(key),
	})
	if err != nil {
		return objectstore.ObjectMeta{}, translateError("Head", key, err)
	}

	meta := objectstore.ObjectMeta{
		Key:         key,
		Size:        result.ContentLength,
		ContentType: alioss.ToString(result.ContentType),
		ETag:        strings.Trim(alioss.ToString(result.ETag), `"`),
		Metadata:    make(map[string]string, len(result.Metadata)),
	}
	if result.LastModified != nil {
		meta.LastModified = result.LastModified.UnixMilli()
	}
	for k, v := range result.Metadata {
		meta.Metadata[strings.ToLower(k)] = v
	}
	return meta, nil
}

// Delete removes an object. Deleting a missing object succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	_, err := c.client.DeleteObject(ctx, &alioss.DeleteObjectRequest{
		Bucket: alioss.Ptr(c.bucket),
		Key:    alioss.Ptr(key),
	})
	if err != nil {
		terr := translateError("Delete", key, err)
		if objectstore.KindOf(terr) == objectstore.KindObjectNotFound {
			return nil
		}
		return terr
	}
	return nil
}

// Close releases resources associated with the client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// appendWriter writes an appendable object block by block.
//
// A failed append may still have been persisted by OSS; the writer only
// advances its position on acknowledged appends, so retrying a failed block
// at a stale position is rejected by OSS with 409 PositionNotEqualToLength.
type appendWriter struct {
	client   *Client
	key      string
	opts     objectstore.WriteOptions
	position int64
	closed   bool
}

func (w *appendWriter) Append(ctx context.Context, block []byte) error {
	if w.closed {
		return objectstore.ErrClosed
	}
	if err := w.client.checkClosed(); err != nil {
		return err
	}

	req := &alioss.AppendObjectRequest{
		Bucket:   alioss.Ptr(w.client.bucket),
		Key:      alioss.Ptr(w.key),
		Position: alioss.Ptr(w.position),
		Body:     bytes.NewReader(block),
	}
	if w.position == 0 {
		req.ContentType = alioss.Ptr(w.opts.ContentTypeOrDefault())
		req.Metadata = w.opts.Metadata
	}

	result, err := w.client.client.AppendObject(ctx, req)
	if err != nil {
		return translateError("Append", w.key, err)
	}
	if result.NextPosition > w.position {
		w.position = result.NextPosition
	} else {
		w.position += int64(len(block))
	}
	return nil
}

// Close ends the session. Appended data is already visible, so there is
// nothing to commit.
func (w *appendWriter) Close(ctx context.Context) error {
	w.closed = true
	return nil
}

// Verify interface compliance at compile time.
var (
	_ objectstore.Store       = (*Client)(nil)
	_ objectstore.BlockWriter = (*appendWriter)(nil)
)
