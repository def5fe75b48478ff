package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// Backend sentinel errors. Adapters wrap or return these so the manager can
// tell a miss from a failure.
var (
	// ErrObjectNotFound indicates the requested key does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrUploadNotFound indicates the backend has no multipart upload with
	// the given identifier.
	ErrUploadNotFound = errors.New("no such upload")
)

// MaxPartNumber is the highest part number a multipart upload accepts.
const MaxPartNumber = 10000

// HTTPMetadata is the HTTP-facing metadata stored with an object.
type HTTPMetadata struct {
	ContentType  string `json:"content_type,omitempty"`
	CacheControl string `json:"cache_control,omitempty"`
}

// Object describes a stored object.
type Object struct {
	Key            string
	Size           int64
	ETag           string
	Uploaded       time.Time
	HTTPMetadata   HTTPMetadata
	CustomMetadata map[string]string
}

// ObjectBody is an object plus its payload stream. Callers must close Body.
type ObjectBody struct {
	Object
	Body io.ReadCloser
}

// PutOptions carry the metadata written with an object.
type PutOptions struct {
	HTTPMetadata   HTTPMetadata
	CustomMetadata map[string]string
}

// Range selects a byte range. A nil Offset means 0; a nil Length means to
// the end of the object.
type Range struct {
	Offset *int64
	Length *int64
}

// GetOptions are the options of Bucket.Get.
type GetOptions struct {
	Range *Range
}

// ListOptions are the options of Bucket.List. Limit is always set by the
// manager (1..1000). With IncludeMetadata set, listed objects carry their
// HTTP and custom metadata even when the backend's listing call omits it.
type ListOptions struct {
	Prefix          string
	Delimiter       string
	Limit           int
	Cursor          string
	IncludeMetadata bool
}

// ListResult is one page of a listing.
type ListResult struct {
	Objects           []Object
	DelimitedPrefixes []string
	Truncated         bool
	Cursor            string
}

// UploadedPart identifies one part of a multipart upload.
type UploadedPart struct {
	PartNumber int    `json:"part_number" validate:"min=1,max=10000"`
	ETag       string `json:"etag" validate:"required"`
}

// Bucket is the capability surface the manager needs from a blob store.
type Bucket interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (*Object, error)

	// Get returns ErrObjectNotFound (possibly wrapped) on a miss.
	Get(ctx context.Context, key string, opts GetOptions) (*ObjectBody, error)

	// Head returns ErrObjectNotFound (possibly wrapped) on a miss.
	Head(ctx context.Context, key string) (*Object, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	CreateMultipartUpload(ctx context.Context, key string, opts PutOptions) (MultipartUpload, error)

	// ResumeMultipartUpload returns a handle for an existing upload. It does
	// not contact the backend; an unknown ID surfaces on the next call.
	ResumeMultipartUpload(key, uploadID string) MultipartUpload
}

// MultipartUpload is a handle to one in-progress multipart upload.
type MultipartUpload interface {
	UploadID() string
	UploadPart(ctx context.Context, partNumber int, data []byte) (UploadedPart, error)
	Complete(ctx context.Context, parts []UploadedPart) (*Object, error)
	Abort(ctx context.Context) error
}

// HealthChecker is implemented by buckets that can verify connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
