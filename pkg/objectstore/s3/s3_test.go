package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/objectstore"
)

func i64(n int64) *int64 { return &n }

func TestRangeHeader(t *testing.T) {
	tests := []struct {
		name string
		r    objectstore.Range
		want string
	}{
		{"OffsetAndLength", objectstore.Range{Offset: i64(2), Length: i64(4)}, "bytes=2-5"},
		{"OffsetOnly", objectstore.Range{Offset: i64(7)}, "bytes=7-"},
		{"LengthOnly", objectstore.Range{Length: i64(3)}, "bytes=0-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rangeHeader(&tt.r))
		})
	}
}

func TestTotalFromContentRange(t *testing.T) {
	n, ok := totalFromContentRange("bytes 0-3/10")
	assert.True(t, ok)
	assert.Equal(t, int64(10), n)

	_, ok = totalFromContentRange("bytes 0-3/*")
	assert.False(t, ok)
	_, ok = totalFromContentRange("")
	assert.False(t, ok)
}

func TestErrorDetection(t *testing.T) {
	assert.False(t, isNotFoundError(nil))
	assert.True(t, isNotFoundError(&types.NoSuchKey{}))
	assert.True(t, isNotFoundError(fmt.Errorf("wrapped: %w", &types.NotFound{})))
	assert.True(t, isNotFoundError(errors.New("api error NotFound: Not Found")))
	assert.False(t, isNotFoundError(errors.New("access denied")))

	assert.True(t, isInvalidRange(errors.New("operation error S3: GetObject, https response error StatusCode: 416, api error InvalidRange: The requested range is not satisfiable")))
	assert.False(t, isInvalidRange(errors.New("api error NoSuchKey")))

	assert.True(t, isNoSuchUpload(&types.NoSuchUpload{}))
	assert.False(t, isNoSuchUpload(errors.New("slow down")))

	u := &multipartUpload{id: "abc"}
	assert.ErrorIs(t, u.wrap("abort", &types.NoSuchUpload{}), objectstore.ErrUploadNotFound)
	assert.NotErrorIs(t, u.wrap("abort", errors.New("boom")), objectstore.ErrUploadNotFound)
}

func TestKeyPrefix(t *testing.T) {
	b := New(nil, Config{Bucket: "b", KeyPrefix: "tenant/"})
	assert.Equal(t, "tenant/a.txt", b.fullKey("a.txt"))
	assert.Equal(t, "a.txt", b.stripPrefix("tenant/a.txt"))
	assert.Equal(t, "ETAG", unquote(`"ETAG"`))
}

func TestClosedBucket(t *testing.T) {
	b := New(s3.New(s3.Options{Region: "us-east-1"}), Config{Bucket: "b"})
	require.NoError(t, b.Close())
	ctx := context.Background()

	_, err := b.Put(ctx, "k", []byte("x"), objectstore.PutOptions{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Get(ctx, "k", objectstore.GetOptions{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.HealthCheck(ctx), ErrClosed)
	_, err = b.ResumeMultipartUpload("k", "id").UploadPart(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestKeyValidationBeforeRequest(t *testing.T) {
	b := New(s3.New(s3.Options{Region: "us-east-1"}), Config{Bucket: "b"})

	_, err := b.Put(context.Background(), "", []byte("x"), objectstore.PutOptions{})
	assert.ErrorContains(t, err, "invalid object key")

	_, err = b.ResumeMultipartUpload("k", "id").UploadPart(context.Background(), 0, nil)
	assert.ErrorContains(t, err, "invalid part number")
}

func TestNewFromConfigRequiresBucket(t *testing.T) {
	_, err := NewFromConfig(context.Background(), Config{})
	assert.Error(t, err)
}

// fakeListServer answers ListObjectsV2 with two keys and HeadObject with
// metadata for a.txt only; b.txt has vanished by the time it is headed.
func fakeListServer(t *testing.T, heads *atomic.Int32) *Bucket {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.TrimSuffix(r.URL.Path, "/") == "/b":
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Name>b</Name><IsTruncated>false</IsTruncated><KeyCount>2</KeyCount>
<Contents><Key>a.txt</Key><Size>3</Size><ETag>"e1"</ETag><LastModified>2024-01-01T00:00:00.000Z</LastModified></Contents>
<Contents><Key>b.txt</Key><Size>5</Size><ETag>"e2"</ETag><LastModified>2024-01-01T00:00:00.000Z</LastModified></Contents>
</ListBucketResult>`)
		case r.Method == http.MethodHead && r.URL.Path == "/b/a.txt":
			heads.Add(1)
			w.Header().Set("Content-Length", "3")
			w.Header().Set("ETag", `"e1"`)
			w.Header().Set("Content-Type", "text/plain")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Amz-Meta-Owner", "alice")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodHead:
			heads.Add(1)
			w.WriteHeader(http.StatusNotFound)
		default:
			http.Error(w, "unexpected request", http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials:  aws.AnonymousCredentials{},
	})
	return New(client, Config{Bucket: "b"})
}

func TestListIncludeMetadata(t *testing.T) {
	var heads atomic.Int32
	b := fakeListServer(t, &heads)
	ctx := context.Background()

	res, err := b.List(ctx, objectstore.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Objects, 2)
	assert.Zero(t, heads.Load())
	assert.Empty(t, res.Objects[0].HTTPMetadata.ContentType)

	res, err = b.List(ctx, objectstore.ListOptions{Limit: 10, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, res.Objects, 2)
	assert.EqualValues(t, 2, heads.Load())

	a := res.Objects[0]
	assert.Equal(t, "a.txt", a.Key)
	assert.Equal(t, "text/plain", a.HTTPMetadata.ContentType)
	assert.Equal(t, "no-cache", a.HTTPMetadata.CacheControl)
	assert.Equal(t, map[string]string{"owner": "alice"}, a.CustomMetadata)

	gone := res.Objects[1]
	assert.Equal(t, "b.txt", gone.Key)
	assert.EqualValues(t, 5, gone.Size)
	assert.Empty(t, gone.CustomMetadata)
}
