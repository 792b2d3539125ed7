package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/objaccess/internal/objectstore"
)

// fakeS3 serves the handful of path-style S3 calls the store makes.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	uploads  map[string]map[int][]byte
	aborted  []string
	nextID   int
	failNext int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: map[string][]byte{},
		types:   map[string]string{},
		uploads: map[string]map[int][]byte{},
	}
}

func (f *fakeS3) fail(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("x-amz-request-id", "req-"+strconv.Itoa(status))
	w.Header().Set("x-amz-id-2", "host-"+strconv.Itoa(status))
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>%s</Code><Message>%s</Message><RequestId>req-%d</RequestId><HostId>host-%d</HostId></Error>`, code, message, status, status)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/bucket/")
	q := r.URL.Query()

	if f.failNext != 0 {
		status := f.failNext
		f.failNext = 0
		if r.Method == http.MethodHead {
			w.WriteHeader(status)
			return
		}
		f.fail(w, status, "SlowDown", "Please reduce your request rate.")
		return
	}

	switch {
	case r.Method == http.MethodPost && q.Has("uploads"):
		f.nextID++
		id := "upload-" + strconv.Itoa(f.nextID)
		f.uploads[id] = map[int][]byte{}
		f.types[key] = r.Header.Get("Content-Type")
		fmt.Fprintf(w, `<InitiateMultipartUploadResult><Bucket>bucket</Bucket><Key>%s</Key><UploadId>%s</UploadId></InitiateMultipartUploadResult>`, key, id)

	case r.Method == http.MethodPut && q.Has("partNumber"):
		parts, ok := f.uploads[q.Get("uploadId")]
		if !ok {
			f.fail(w, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist.")
			return
		}
		n, _ := strconv.Atoi(q.Get("partNumber"))
		body, _ := io.ReadAll(r.Body)
		parts[n] = body
		w.Header().Set("ETag", `"etag-`+strconv.Itoa(n)+`"`)

	case r.Method == http.MethodPost && q.Has("uploadId"):
		parts, ok := f.uploads[q.Get("uploadId")]
		if !ok {
			f.fail(w, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist.")
			return
		}
		var data []byte
		for i := 1; i <= len(parts); i++ {
			data = append(data, parts[i]...)
		}
		f.objects[key] = data
		delete(f.uploads, q.Get("uploadId"))
		fmt.Fprintf(w, `<CompleteMultipartUploadResult><Bucket>bucket</Bucket><Key>%s</Key><ETag>"final"</ETag></CompleteMultipartUploadResult>`, key)

	case r.Method == http.MethodDelete && q.Has("uploadId"):
		delete(f.uploads, q.Get("uploadId"))
		f.aborted = append(f.aborted, q.Get("uploadId"))
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"put"`)

	case r.Method == http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Type", f.types[key])
		w.Header().Set("ETag", `"final"`)
		w.Header().Set("Last-Modified", time.Unix(1700000000, 0).UTC().Format(http.TimeFormat))

	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		f.fail(w, http.StatusNotImplemented, "NotImplemented", r.Method+" "+r.URL.RawQuery)
	}
}

func testStore(t *testing.T, fake *fakeS3) *Store {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := New(context.Background(), Config{
		Bucket:          "bucket",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
		MaxAttempts:     1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestMultipartSession(t *testing.T) {
	fake := newFakeS3()
	store := testStore(t, fake)
	ctx := context.Background()

	bw, err := store.Write(ctx, "data/obj", objectstore.WriteOptions{ContentType: "text/plain"})
	require.NoError(t, err)
	require.NoError(t, bw.Append(ctx, []byte("first-")))
	require.NoError(t, bw.Append(ctx, []byte("second")))

	fake.mu.Lock()
	_, visible := fake.objects["data/obj"]
	fake.mu.Unlock()
	assert.False(t, visible, "parts must stay invisible until Close")

	require.NoError(t, bw.Close(ctx))

	fake.mu.Lock()
	assert.Equal(t, "first-second", string(fake.objects["data/obj"]))
	fake.mu.Unlock()

	meta, err := store.Head(ctx, "data/obj")
	require.NoError(t, err)
	assert.Equal(t, int64(12), meta.Size)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.Equal(t, int64(1700000000000), meta.LastModified)

	assert.ErrorIs(t, bw.Append(ctx, []byte("late")), objectstore.ErrClosed)
	assert.NoError(t, bw.Close(ctx))
}

func TestEmptySessionPutsEmptyObject(t *testing.T) {
	fake := newFakeS3()
	store := testStore(t, fake)
	ctx := context.Background()

	bw, err := store.Write(ctx, "empty", objectstore.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, bw.Close(ctx))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	data, ok := fake.objects["empty"]
	assert.True(t, ok)
	assert.Empty(t, data)
	assert.Equal(t, objectstore.DefaultContentType, fake.types["empty"])
	assert.Equal(t, []string{"upload-1"}, fake.aborted)
}

func TestAppendFailureIsRetryable(t *testing.T) {
	fake := newFakeS3()
	store := testStore(t, fake)
	ctx := context.Background()

	bw, err := store.Write(ctx, "obj", objectstore.WriteOptions{})
	require.NoError(t, err)

	fake.mu.Lock()
	fake.failNext = http.StatusServiceUnavailable
	fake.mu.Unlock()

	err = bw.Append(ctx, []byte("abc"))
	require.Error(t, err)

	var oerr *objectstore.Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, objectstore.KindUnexpected, oerr.Kind)
	assert.True(t, oerr.Retryable)
	assert.Equal(t, "Append", oerr.Op)
	assert.Contains(t, oerr.Message, `code: "SlowDown"`)
	assert.Contains(t, oerr.Message, "Please reduce your request rate.")

	status, _ := oerr.ContextValue("status")
	assert.Equal(t, "503 Service Unavailable", status)
	requestID, _ := oerr.ContextValue("request_id")
	assert.Equal(t, "req-503", requestID)

	// The failed part was never recorded, so a retry reuses part number 1.
	require.NoError(t, bw.Append(ctx, []byte("abc")))
	require.NoError(t, bw.Close(ctx))
	fake.mu.Lock()
	assert.Equal(t, "abc", string(fake.objects["obj"]))
	fake.mu.Unlock()
}

func TestHeadNotFound(t *testing.T) {
	store := testStore(t, newFakeS3())

	_, err := store.Head(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
	assert.False(t, objectstore.IsRetryable(err))
}

func TestHeadForbidden(t *testing.T) {
	fake := newFakeS3()
	fake.failNext = http.StatusForbidden
	store := testStore(t, fake)

	_, err := store.Head(context.Background(), "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, objectstore.ErrAccessDenied)
	assert.False(t, objectstore.IsRetryable(err))
}

func TestDelete(t *testing.T) {
	fake := newFakeS3()
	fake.objects["obj"] = []byte("x")
	store := testStore(t, fake)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "obj"))
	require.NoError(t, store.Delete(ctx, "obj"))
	_, err := store.Head(ctx, "obj")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestClosedStore(t *testing.T) {
	store := testStore(t, newFakeS3())
	ctx := context.Background()

	bw, err := store.Write(ctx, "obj", objectstore.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Write(ctx, "obj", objectstore.WriteOptions{})
	assert.ErrorIs(t, err, objectstore.ErrClosed)
	_, err = store.Head(ctx, "obj")
	assert.ErrorIs(t, err, objectstore.ErrClosed)
	assert.ErrorIs(t, store.Delete(ctx, "obj"), objectstore.ErrClosed)
	assert.ErrorIs(t, bw.Append(ctx, []byte("x")), objectstore.ErrClosed)
}

func TestTranslateErrorWithoutResponse(t *testing.T) {
	err := translateError("Head", "obj", errors.New("dial tcp: connection refused"))

	var oerr *objectstore.Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, objectstore.KindUnexpected, oerr.Kind)
	assert.False(t, oerr.Retryable)
	assert.Equal(t, "dial tcp: connection refused", oerr.Message)
}

func TestTranslateErrorEmptyResponse(t *testing.T) {
	header := http.Header{}
	header.Set("X-Amz-Request-Id", "abc")
	respErr := &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusBadGateway, Header: header}},
			Err:      errors.New("bad gateway"),
		},
		RequestID: "abc",
	}

	err := translateError("Close", "obj", respErr)

	var oerr *objectstore.Error
	require.True(t, errors.As(err, &oerr))
	assert.True(t, oerr.Retryable)
	assert.Equal(t, "502 Bad Gateway", oerr.Message)
	headers, _ := oerr.ContextValue("headers")
	assert.Equal(t, "X-Amz-Request-Id: abc", headers)
	requestID, _ := oerr.ContextValue("request_id")
	assert.Equal(t, "abc", requestID)
}

func TestConfigDefaults(t *testing.T) {
	store, err := New(context.Background(), Config{Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "b", store.bucket)
	assert.Equal(t, "us-east-1", store.client.Options().Region)
	assert.Equal(t, aws.RequestChecksumCalculationWhenRequired, store.client.Options().RequestChecksumCalculation)
}
