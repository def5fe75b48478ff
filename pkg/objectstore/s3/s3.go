// Package s3 provides an objectstore.Bucket backed by any S3-compatible
// service (AWS S3, Cloudflare R2, MinIO, Localstack).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/cfmgr/pkg/objectstore"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("s3 bucket is closed")

const (
	maxKeyLength = 1024

	// maxPutSize is the largest object a single PutObject accepts.
	maxPutSize = 5 << 30
)

// Config holds configuration for an S3 bucket.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" yaml:"bucket" json:"bucket" validate:"required"`

	// Region is the AWS region (optional, uses SDK default if empty).
	// Cloudflare R2 expects "auto".
	Region string `mapstructure:"region" yaml:"region,omitempty" json:"region,omitempty"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// KeyPrefix is prepended to all object keys. Should end with "/" if
	// non-empty.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`

	// MaxRetries is the maximum number of attempts for transient errors.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries,omitempty" json:"max_retries,omitempty" validate:"gte=0"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty" json:"force_path_style,omitempty"`

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the SDK's default credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty" json:"-"`
}

// Bucket is an S3-backed implementation of objectstore.Bucket.
type Bucket struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

var (
	_ objectstore.Bucket        = (*Bucket)(nil)
	_ objectstore.HealthChecker = (*Bucket)(nil)
)

// New creates a bucket with an existing client.
func New(client *s3.Client, config Config) *Bucket {
	return &Bucket{
		client:    client,
		bucket:    config.Bucket,
		keyPrefix: config.KeyPrefix,
		now:       time.Now,
	}
}

// NewFromConfig creates a bucket by building an S3 client from config.
func NewFromConfig(ctx context.Context, config Config) (*Bucket, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.ForcePathStyle
		if config.MaxRetries > 0 {
			o.RetryMaxAttempts = config.MaxRetries
		}
	})

	return New(client, config), nil
}

func (b *Bucket) fullKey(key string) string {
	return b.keyPrefix + key
}

func (b *Bucket) stripPrefix(key string) string {
	return strings.TrimPrefix(key, b.keyPrefix)
}

func (b *Bucket) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || len(key) > maxKeyLength {
		return fmt.Errorf("invalid object key: length must be 1..%d bytes", maxKeyLength)
	}
	return nil
}

// Put implements objectstore.Bucket.
func (b *Bucket) Put(ctx context.Context, key string, data []byte, opts objectstore.PutOptions) (*objectstore.Object, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if len(data) > maxPutSize {
		return nil, fmt.Errorf("object too large: %d bytes exceeds single upload limit", len(data))
	}

	out, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(b.bucket),
		Key:          aws.String(b.fullKey(key)),
		Body:         bytes.NewReader(data),
		ContentType:  optional(opts.HTTPMetadata.ContentType),
		CacheControl: optional(opts.HTTPMetadata.CacheControl),
		Metadata:     opts.CustomMetadata,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put object: %w", err)
	}

	return &objectstore.Object{
		Key:            key,
		Size:           int64(len(data)),
		ETag:           unquote(aws.ToString(out.ETag)),
		Uploaded:       b.now().UTC(),
		HTTPMetadata:   opts.HTTPMetadata,
		CustomMetadata: opts.CustomMetadata,
	}, nil
}

// Get implements objectstore.Bucket.
func (b *Bucket) Get(ctx context.Context, key string, opts objectstore.GetOptions) (*objectstore.ObjectBody, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	in := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	}
	if opts.Range != nil {
		in.Range = aws.String(rangeHeader(opts.Range))
	}

	resp, err := b.client.GetObject(ctx, in)
	if err != nil {
		if isNotFoundError(err) {
			return nil, objectstore.ErrObjectNotFound
		}
		if opts.Range != nil && isInvalidRange(err) {
			// S3 rejects offsets at or past the end; match the other
			// adapters and return the object with an empty body.
			obj, herr := b.Head(ctx, key)
			if herr != nil {
				return nil, herr
			}
			return &objectstore.ObjectBody{Object: *obj, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}

	size := aws.ToInt64(resp.ContentLength)
	if total, ok := totalFromContentRange(aws.ToString(resp.ContentRange)); ok {
		size = total
	}

	return &objectstore.ObjectBody{
		Object: objectstore.Object{
			Key:      key,
			Size:     size,
			ETag:     unquote(aws.ToString(resp.ETag)),
			Uploaded: aws.ToTime(resp.LastModified),
			HTTPMetadata: objectstore.HTTPMetadata{
				ContentType:  aws.ToString(resp.ContentType),
				CacheControl: aws.ToString(resp.CacheControl),
			},
			CustomMetadata: resp.Metadata,
		},
		Body: resp.Body,
	}, nil
}

// Head implements objectstore.Bucket.
func (b *Bucket) Head(ctx context.Context, key string) (*objectstore.Object, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	resp, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, objectstore.ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3 head object: %w", err)
	}

	return &objectstore.Object{
		Key:      key,
		Size:     aws.ToInt64(resp.ContentLength),
		ETag:     unquote(aws.ToString(resp.ETag)),
		Uploaded: aws.ToTime(resp.LastModified),
		HTTPMetadata: objectstore.HTTPMetadata{
			ContentType:  aws.ToString(resp.ContentType),
			CacheControl: aws.ToString(resp.CacheControl),
		},
		CustomMetadata: resp.Metadata,
	}, nil
}

// Delete implements objectstore.Bucket.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// List implements objectstore.Bucket. The cursor is the service's
// continuation token.
func (b *Bucket) List(ctx context.Context, opts objectstore.ListOptions) (*objectstore.ListResult, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.fullKey(opts.Prefix)),
	}
	if opts.Delimiter != "" {
		in.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.Limit > 0 {
		in.MaxKeys = aws.Int32(int32(opts.Limit))
	}
	if opts.Cursor != "" {
		in.ContinuationToken = aws.String(opts.Cursor)
	}

	page, err := b.client.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("s3 list objects: %w", err)
	}

	res := &objectstore.ListResult{
		Objects:   make([]objectstore.Object, 0, len(page.Contents)),
		Truncated: aws.ToBool(page.IsTruncated),
	}
	if res.Truncated {
		res.Cursor = aws.ToString(page.NextContinuationToken)
	}
	for _, obj := range page.Contents {
		res.Objects = append(res.Objects, objectstore.Object{
			Key:      b.stripPrefix(aws.ToString(obj.Key)),
			Size:     aws.ToInt64(obj.Size),
			ETag:     unquote(aws.ToString(obj.ETag)),
			Uploaded: aws.ToTime(obj.LastModified),
		})
	}
	for _, p := range page.CommonPrefixes {
		res.DelimitedPrefixes = append(res.DelimitedPrefixes, b.stripPrefix(aws.ToString(p.Prefix)))
	}
	if opts.IncludeMetadata {
		if err := b.fillMetadata(ctx, res.Objects); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// fillMetadata issues one HeadObject per listed key, since ListObjectsV2
// returns neither content type nor user metadata. Keys deleted since the
// listing keep their bare entry.
func (b *Bucket) fillMetadata(ctx context.Context, objects []objectstore.Object) error {
	for i := range objects {
		head, err := b.Head(ctx, objects[i].Key)
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		objects[i].HTTPMetadata = head.HTTPMetadata
		objects[i].CustomMetadata = head.CustomMetadata
	}
	return nil
}

// CreateMultipartUpload implements objectstore.Bucket.
func (b *Bucket) CreateMultipartUpload(ctx context.Context, key string, opts objectstore.PutOptions) (objectstore.MultipartUpload, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	out, err := b.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:       aws.String(b.bucket),
		Key:          aws.String(b.fullKey(key)),
		ContentType:  optional(opts.HTTPMetadata.ContentType),
		CacheControl: optional(opts.HTTPMetadata.CacheControl),
		Metadata:     opts.CustomMetadata,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 create multipart upload: %w", err)
	}
	return &multipartUpload{bucket: b, key: key, id: aws.ToString(out.UploadId)}, nil
}

// ResumeMultipartUpload implements objectstore.Bucket.
func (b *Bucket) ResumeMultipartUpload(key, uploadID string) objectstore.MultipartUpload {
	return &multipartUpload{bucket: b, key: key, id: uploadID}
}

// Close marks the bucket as closed.
func (b *Bucket) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// HealthCheck verifies the bucket is reachable with a HeadBucket call.
func (b *Bucket) HealthCheck(ctx context.Context) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

type multipartUpload struct {
	bucket *Bucket
	key    string
	id     string
}

func (u *multipartUpload) UploadID() string { return u.id }

func (u *multipartUpload) wrap(op string, err error) error {
	if isNoSuchUpload(err) {
		return fmt.Errorf("%w: %s", objectstore.ErrUploadNotFound, u.id)
	}
	return fmt.Errorf("s3 %s: %w", op, err)
}

func (u *multipartUpload) UploadPart(ctx context.Context, partNumber int, data []byte) (objectstore.UploadedPart, error) {
	if err := u.bucket.checkOpen(); err != nil {
		return objectstore.UploadedPart{}, err
	}
	if partNumber < 1 || partNumber > objectstore.MaxPartNumber {
		return objectstore.UploadedPart{}, fmt.Errorf("invalid part number %d", partNumber)
	}

	out, err := u.bucket.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(u.bucket.bucket),
		Key:        aws.String(u.bucket.fullKey(u.key)),
		UploadId:   aws.String(u.id),
		PartNumber: aws.Int32(int32(partNumber)),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return objectstore.UploadedPart{}, u.wrap("upload part", err)
	}
	return objectstore.UploadedPart{PartNumber: partNumber, ETag: unquote(aws.ToString(out.ETag))}, nil
}

func (u *multipartUpload) Complete(ctx context.Context, parts []objectstore.UploadedPart) (*objectstore.Object, error) {
	if err := u.bucket.checkOpen(); err != nil {
		return nil, err
	}

	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(int32(p.PartNumber)),
			ETag:       aws.String(strconv.Quote(unquote(p.ETag))),
		})
	}

	out, err := u.bucket.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(u.bucket.bucket),
		Key:             aws.String(u.bucket.fullKey(u.key)),
		UploadId:        aws.String(u.id),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return nil, u.wrap("complete multipart upload", err)
	}

	// The completion response carries no size or metadata.
	obj, err := u.bucket.Head(ctx, u.key)
	if err != nil {
		return &objectstore.Object{Key: u.key, ETag: unquote(aws.ToString(out.ETag))}, nil
	}
	return obj, nil
}

func (u *multipartUpload) Abort(ctx context.Context) error {
	if err := u.bucket.checkOpen(); err != nil {
		return err
	}

	_, err := u.bucket.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(u.bucket.bucket),
		Key:      aws.String(u.bucket.fullKey(u.key)),
		UploadId: aws.String(u.id),
	})
	if err != nil {
		return u.wrap("abort multipart upload", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func unquote(etag string) string {
	return strings.Trim(etag, `"`)
}

// rangeHeader renders r as an HTTP Range header value.
func rangeHeader(r *objectstore.Range) string {
	var off int64
	if r.Offset != nil {
		off = *r.Offset
	}
	if r.Length == nil {
		return fmt.Sprintf("bytes=%d-", off)
	}
	return fmt.Sprintf("bytes=%d-%d", off, off+*r.Length-1)
}

// totalFromContentRange extracts the complete length from a Content-Range
// value such as "bytes 0-3/10".
func totalFromContentRange(v string) (int64, bool) {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// isNotFoundError checks if an error is an S3 not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

// isInvalidRange reports a 416 InvalidRange response.
func isInvalidRange(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "InvalidRange") || strings.Contains(errStr, "StatusCode: 416")
}

func isNoSuchUpload(err error) bool {
	var nsu *types.NoSuchUpload
	return errors.As(err, &nsu) || strings.Contains(err.Error(), "NoSuchUpload")
}
