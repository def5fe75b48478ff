package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/envelope"
)

// Metadata directives of Copy.
const (
	DirectiveCopy    = "COPY"
	DirectiveReplace = "REPLACE"
)

// UploadOptions are the optional arguments of Upload. ContentMD5 is the
// base64 MD5 digest the payload must match.
type UploadOptions struct {
	ContentType    string
	CacheControl   string
	CustomMetadata map[string]string
	ContentMD5     string
}

// UploadData is the payload of Upload.
type UploadData struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ETag        string `json:"etag"`
	ContentType string `json:"content_type,omitempty"`
	UploadedAt  string `json:"uploaded_at"`
}

// ObjectInfo is the payload of GetMetadata.
type ObjectInfo struct {
	Bucket         string            `json:"bucket"`
	Key            string            `json:"key"`
	Size           int64             `json:"size"`
	ETag           string            `json:"etag"`
	ContentType    string            `json:"content_type,omitempty"`
	CacheControl   string            `json:"cache_control,omitempty"`
	UploadedAt     string            `json:"uploaded_at,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata"`
}

// DownloadData is the payload of Download.
type DownloadData struct {
	ObjectInfo
	Data []byte `json:"data"`
}

// DeleteData is the payload of Delete.
type DeleteData struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Deleted   bool   `json:"deleted"`
	DeletedAt string `json:"deleted_at"`
}

// CopyOptions are the arguments of Copy. DestinationBucket defaults to
// SourceBucket and MetadataDirective to COPY.
type CopyOptions struct {
	SourceBucket      string            `json:"source_bucket"`
	SourceKey         string            `json:"source_key" validate:"required"`
	DestinationBucket string            `json:"destination_bucket,omitempty"`
	DestinationKey    string            `json:"destination_key" validate:"required"`
	MetadataDirective string            `json:"metadata_directive,omitempty" validate:"omitempty,oneof=COPY REPLACE copy replace"`
	CustomMetadata    map[string]string `json:"custom_metadata,omitempty"`
	CacheControl      string            `json:"cache_control,omitempty"`
}

// CopyData is the payload of Copy.
type CopyData struct {
	SourceBucket      string `json:"source_bucket"`
	SourceKey         string `json:"source_key"`
	DestinationBucket string `json:"destination_bucket"`
	DestinationKey    string `json:"destination_key"`
	Copied            bool   `json:"copied"`
	ETag              string `json:"etag"`
	Size              int64  `json:"size"`
	CopiedAt          string `json:"copied_at"`
}

// ListObjectsOptions are the optional arguments of ListObjects. A zero
// Limit means DefaultListLimit.
type ListObjectsOptions struct {
	Prefix          string
	Delimiter       string
	Limit           int
	Cursor          string
	IncludeMetadata bool
}

// ObjectSummary is one entry of a listing.
type ObjectSummary struct {
	Key            string            `json:"key"`
	Size           int64             `json:"size"`
	SizeHuman      string            `json:"size_human"`
	UploadedAt     string            `json:"uploaded_at,omitempty"`
	ETag           string            `json:"etag"`
	ContentType    string            `json:"content_type,omitempty"`
	CacheControl   string            `json:"cache_control,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// ListData is the payload of ListObjects.
type ListData struct {
	Bucket         string          `json:"bucket"`
	Prefix         string          `json:"prefix,omitempty"`
	Delimiter      string          `json:"delimiter,omitempty"`
	Objects        []ObjectSummary `json:"objects"`
	CommonPrefixes []string        `json:"common_prefixes"`
	Truncated      bool            `json:"truncated"`
	Cursor         string          `json:"cursor,omitempty"`
}

// ContentMD5 returns the base64 MD5 digest of data, the form carried by a
// Content-MD5 header.
func ContentMD5(data []byte) string {
	sum := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ETag returns the hex MD5 digest of data.
func ETag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Error classification matches on backend message text, which is not a
// stable contract; the mapping is approximate.
func classifyPutError(err error) envelope.Code {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "too large"):
		return envelope.CodeFileTooLarge
	case strings.Contains(msg, "invalid") && strings.Contains(msg, "key"):
		return envelope.CodeInvalidKey
	default:
		return envelope.CodeStorageError
	}
}

func objectInfo(bucket string, obj Object) ObjectInfo {
	custom := obj.CustomMetadata
	if custom == nil {
		custom = map[string]string{}
	}
	return ObjectInfo{
		Bucket:         bucket,
		Key:            obj.Key,
		Size:           obj.Size,
		ETag:           obj.ETag,
		ContentType:    obj.HTTPMetadata.ContentType,
		CacheControl:   obj.HTTPMetadata.CacheControl,
		UploadedAt:     timestamp(obj.Uploaded),
		CustomMetadata: custom,
	}
}

// Upload stores data under key. When opts.ContentMD5 is set the payload is
// verified first and nothing is written on mismatch. The returned etag is
// the locally computed hex MD5 of data.
func (m *Manager) Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) (*envelope.Result[UploadData], error) {
	b, err := m.lookup(bucket)
	if err != nil {
		return nil, err
	}

	ctx, done := m.begin(ctx, "Upload", bucket, key)
	start := time.Now()

	if opts.ContentMD5 != "" {
		if calculated := ContentMD5(data); calculated != opts.ContentMD5 {
			done(envelope.CodeChecksumMismatch)
			return envelope.Fail[UploadData](envelope.CodeChecksumMismatch, "MD5 checksum does not match",
				map[string]any{"expected": opts.ContentMD5, "calculated": calculated}, envelope.Timed(start)), nil
		}
	}

	_, perr := b.Put(ctx, key, data, PutOptions{
		HTTPMetadata:   HTTPMetadata{ContentType: opts.ContentType, CacheControl: opts.CacheControl},
		CustomMetadata: opts.CustomMetadata,
	})
	meta := envelope.Timed(start)
	if perr != nil {
		code := classifyPutError(perr)
		logger.WarnCtx(ctx, "upload failed", logger.KeyBucket, bucket, logger.KeyKey, key, logger.Err(perr))
		done(code)
		return envelope.Fail[UploadData](code, perr.Error(),
			map[string]any{"bucket": bucket, "key": key}, meta), nil
	}

	m.recordBytes("Upload", DirectionIn, int64(len(data)))
	done("")
	return envelope.OK(UploadData{
		Bucket:      bucket,
		Key:         key,
		Size:        int64(len(data)),
		ETag:        ETag(data),
		ContentType: opts.ContentType,
		UploadedAt:  timestamp(m.now()),
	}, meta), nil
}

// byteRange converts an inclusive [start, end] request into a backend range.
func byteRange(start, end *int64) (*Range, error) {
	if start == nil && end == nil {
		return nil, nil
	}
	r := &Range{}
	var from int64
	if start != nil {
		if *start < 0 {
			return nil, fmt.Errorf("%w: range start must be non-negative", envelope.ErrInvalidArgument)
		}
		from = *start
		r.Offset = &from
	}
	if end != nil {
		if *end < from {
			return nil, fmt.Errorf("%w: range end %d before start %d", envelope.ErrInvalidArgument, *end, from)
		}
		length := *end - from + 1
		r.Length = &length
	}
	return r, nil
}

// Download reads an object, or the inclusive byte range [rangeStart,
// rangeEnd] of it, fully into memory.
func (m *Manager) Download(ctx context.Context, bucket, key string, rangeStart, rangeEnd *int64) (*envelope.Result[DownloadData], error) {
	b, err := m.lookup(bucket)
	if err != nil {
		return nil, err
	}
	rng, err := byteRange(rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	ctx, done := m.begin(ctx, "Download", bucket, key)
	start := time.Now()
	details := map[string]any{"bucket": bucket, "key": key}

	body, gerr := b.Get(ctx, key, GetOptions{Range: rng})
	if errors.Is(gerr, ErrObjectNotFound) {
		done(envelope.CodeObjectNotFound)
		return envelope.Fail[DownloadData](envelope.CodeObjectNotFound,
			"Object not found: "+key, details, envelope.Timed(start)), nil
	}
	var data []byte
	if gerr == nil {
		data, gerr = io.ReadAll(body.Body)
		_ = body.Body.Close()
	}
	if gerr != nil {
		logger.WarnCtx(ctx, "download failed", logger.KeyBucket, bucket, logger.KeyKey, key, logger.Err(gerr))
		done(envelope.CodeStorageError)
		return envelope.Fail[DownloadData](envelope.CodeStorageError, gerr.Error(), details, envelope.Timed(start)), nil
	}

	meta := envelope.Timed(start)
	meta.PartialContent = envelope.Bool(rng != nil)
	m.recordBytes("Download", DirectionOut, int64(len(data)))
	done("")
	return envelope.OK(DownloadData{ObjectInfo: objectInfo(bucket, body.Object), Data: data}, meta), nil
}

// GetMetadata returns an object's metadata without its payload.
func (m *Manager) GetMetadata(ctx context.Context, bucket, key string) (*envelope.Result[ObjectInfo], error) {
	b, err := m.lookup(bucket)
	if err != nil {
		return nil, err
	}

	ctx, done := m.begin(ctx, "GetMetadata", bucket, key)
	start := time.Now()
	details := map[string]any{"bucket": bucket, "key": key}

	obj, herr := b.Head(ctx, key)
	switch {
	case errors.Is(herr, ErrObjectNotFound):
		done(envelope.CodeObjectNotFound)
		return envelope.Fail[ObjectInfo](envelope.CodeObjectNotFound,
			"Object not found: "+key, details, envelope.Timed(start)), nil
	case herr != nil:
		done(envelope.CodeStorageError)
		return envelope.Fail[ObjectInfo](envelope.CodeStorageError, herr.Error(), details, envelope.Timed(start)), nil
	}

	done("")
	return envelope.OK(objectInfo(bucket, *obj), envelope.Timed(start)), nil
}

// Delete removes key. A missing key is not distinguished from success.
func (m *Manager) Delete(ctx context.Context, bucket, key string) (*envelope.Result[DeleteData], error) {
	b, err := m.lookup(bucket)
	if err != nil {
		return nil, err
	}

	ctx, done := m.begin(ctx, "Delete", bucket, key)
	start := time.Now()

	if derr := b.Delete(ctx, key); derr != nil {
		logger.WarnCtx(ctx, "delete failed", logger.KeyBucket, bucket, logger.KeyKey, key, logger.Err(derr))
		done(envelope.CodeStorageError)
		return envelope.Fail[DeleteData](envelope.CodeStorageError, derr.Error(),
			map[string]any{"bucket": bucket, "key": key}, envelope.Timed(start)), nil
	}

	done("")
	return envelope.OK(DeleteData{
		Bucket:    bucket,
		Key:       key,
		Deleted:   true,
		DeletedAt: timestamp(m.now()),
	}, envelope.Timed(start)), nil
}

// Copy reads the source object fully and writes it to the destination.
// With COPY the source metadata is kept; with REPLACE the caller's cache
// control and custom metadata replace it while the content type is kept.
func (m *Manager) Copy(ctx context.Context, opts CopyOptions) (*envelope.Result[CopyData], error) {
	if opts.DestinationKey == "" {
		return nil, fmt.Errorf("%w: destination_key is required", envelope.ErrInvalidArgument)
	}
	directive := strings.ToUpper(opts.MetadataDirective)
	if directive == "" {
		directive = DirectiveCopy
	}
	if directive != DirectiveCopy && directive != DirectiveReplace {
		return nil, fmt.Errorf("%w: metadata_directive must be COPY or REPLACE, got %q",
			envelope.ErrInvalidArgument, opts.MetadataDirective)
	}

	src, err := m.lookup(opts.SourceBucket)
	if err != nil {
		return nil, err
	}
	dstName := opts.DestinationBucket
	if dstName == "" {
		dstName = opts.SourceBucket
	}
	dst, err := m.lookup(dstName)
	if err != nil {
		return nil, err
	}

	ctx, done := m.begin(ctx, "Copy", opts.SourceBucket, opts.SourceKey)
	start := time.Now()

	body, gerr := src.Get(ctx, opts.SourceKey, GetOptions{})
	if errors.Is(gerr, ErrObjectNotFound) {
		done(envelope.CodeObjectNotFound)
		return envelope.Fail[CopyData](envelope.CodeObjectNotFound,
			"Source object not found: "+opts.SourceKey,
			map[string]any{"bucket": opts.SourceBucket, "key": opts.SourceKey}, envelope.Timed(start)), nil
	}
	var data []byte
	if gerr == nil {
		data, gerr = io.ReadAll(body.Body)
		_ = body.Body.Close()
	}
	if gerr == nil {
		put := PutOptions{HTTPMetadata: body.HTTPMetadata, CustomMetadata: body.CustomMetadata}
		if directive == DirectiveReplace {
			put = PutOptions{
				HTTPMetadata:   HTTPMetadata{ContentType: body.HTTPMetadata.ContentType, CacheControl: opts.CacheControl},
				CustomMetadata: opts.CustomMetadata,
			}
		}
		_, gerr = dst.Put(ctx, opts.DestinationKey, data, put)
	}
	if gerr != nil {
		logger.WarnCtx(ctx, "copy failed",
			logger.KeyBucket, opts.SourceBucket, logger.KeyKey, opts.SourceKey, logger.Err(gerr))
		done(envelope.CodeStorageError)
		return envelope.Fail[CopyData](envelope.CodeStorageError, gerr.Error(), nil, envelope.Timed(start)), nil
	}

	m.recordBytes("Copy", DirectionIn, int64(len(data)))
	done("")
	return envelope.OK(CopyData{
		SourceBucket:      opts.SourceBucket,
		SourceKey:         opts.SourceKey,
		DestinationBucket: dstName,
		DestinationKey:    opts.DestinationKey,
		Copied:            true,
		ETag:              body.ETag,
		Size:              body.Size,
		CopiedAt:          timestamp(m.now()),
	}, envelope.Timed(start)), nil
}

// ListObjects lists one page of a bucket. The limit defaults to 100 and is
// clamped to 1000; truncated and cursor come from the backend unchanged.
func (m *Manager) ListObjects(ctx context.Context, bucket string, opts ListObjectsOptions) (*envelope.Result[ListData], error) {
	b, err := m.lookup(bucket)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	ctx, done := m.begin(ctx, "ListObjects", bucket, opts.Prefix)
	start := time.Now()

	res, lerr := b.List(ctx, ListOptions{
		Prefix:    opts.Prefix,
		Delimiter: opts.Delimiter,
		Limit:     limit,
		Cursor:    opts.Cursor,

		IncludeMetadata: opts.IncludeMetadata,
	})
	if lerr != nil {
		logger.WarnCtx(ctx, "list failed", logger.KeyBucket, bucket, logger.Err(lerr))
		done(envelope.CodeStorageError)
		return envelope.Fail[ListData](envelope.CodeStorageError, lerr.Error(),
			map[string]any{"bucket": bucket}, envelope.Timed(start)), nil
	}

	objects := res.Objects
	truncated := res.Truncated
	if len(objects) > limit {
		objects = objects[:limit]
		truncated = true
	}

	data := ListData{
		Bucket:         bucket,
		Prefix:         opts.Prefix,
		Delimiter:      opts.Delimiter,
		Objects:        make([]ObjectSummary, 0, len(objects)),
		CommonPrefixes: []string{},
		Truncated:      truncated,
		Cursor:         res.Cursor,
	}
	if res.DelimitedPrefixes != nil {
		data.CommonPrefixes = res.DelimitedPrefixes
	}

	var total int64
	for _, obj := range objects {
		s := ObjectSummary{
			Key:          obj.Key,
			Size:         obj.Size,
			SizeHuman:    FormatSize(obj.Size),
			UploadedAt:   timestamp(obj.Uploaded),
			ETag:         obj.ETag,
			ContentType:  obj.HTTPMetadata.ContentType,
			CacheControl: obj.HTTPMetadata.CacheControl,
		}
		if opts.IncludeMetadata && len(obj.CustomMetadata) > 0 {
			s.CustomMetadata = obj.CustomMetadata
		}
		data.Objects = append(data.Objects, s)
		total += obj.Size
	}

	meta := envelope.Timed(start)
	meta.Count = envelope.Int(len(data.Objects))
	meta.TotalSize = envelope.Int64(total)
	meta.CommonPrefixCount = envelope.Int(len(data.CommonPrefixes))
	done("")
	return envelope.OK(data, meta), nil
}
