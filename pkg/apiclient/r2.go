package apiclient

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/objectstore"
)

// CustomMetadataHeaderPrefix prefixes the headers carrying custom metadata.
const CustomMetadataHeaderPrefix = "X-Custom-Metadata-"

// BucketList is the payload of ListBuckets.
type BucketList struct {
	Buckets []string `json:"buckets"`
}

// PutObjectOptions are the optional headers of PutObject.
type PutObjectOptions struct {
	ContentType    string
	CacheControl   string
	ContentMD5     string
	CustomMetadata map[string]string
}

// GetObjectOptions select a byte range. A nil RangeStart reads the whole
// object; a nil RangeEnd reads to the end.
type GetObjectOptions struct {
	RangeStart *int64
	RangeEnd   *int64
}

// Object is a downloaded object. Size is the full object size even for a
// ranged read.
type Object struct {
	objectstore.ObjectInfo
	Data         []byte
	ContentRange string
	Partial      bool
}

// PresignRequest is the body of Presign.
type PresignRequest struct {
	Key       string `json:"key"`
	Method    string `json:"method,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

// CreateMultipartRequest is the body of CreateMultipartUpload.
type CreateMultipartRequest struct {
	Key            string            `json:"key"`
	ContentType    string            `json:"content_type,omitempty"`
	CacheControl   string            `json:"cache_control,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// ListBuckets lists the configured buckets.
func (c *Client) ListBuckets() (*envelope.Result[BucketList], error) {
	return call[BucketList](c, http.MethodGet, resourcePath("r2", "buckets"), nil)
}

// ListObjects lists a page of a bucket.
func (c *Client) ListObjects(bucket string, opts objectstore.ListObjectsOptions) (*envelope.Result[objectstore.ListData], error) {
	q := url.Values{}
	q.Set("prefix", opts.Prefix)
	q.Set("delimiter", opts.Delimiter)
	q.Set("cursor", opts.Cursor)
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.IncludeMetadata {
		q.Set("include_metadata", "true")
	}
	return call[objectstore.ListData](c, http.MethodGet, withQuery(resourcePath("r2", bucket, "objects"), q), nil)
}

func objectPath(bucket, key string) string {
	return resourcePath("r2", bucket, "objects") + "/" + keyPath(key)
}

// PutObject uploads data as the object's payload.
func (c *Client) PutObject(bucket, key string, data []byte, opts PutObjectOptions) (*envelope.Result[objectstore.UploadData], error) {
	req, err := c.newRequest(http.MethodPut, objectPath(bucket, key), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if opts.CacheControl != "" {
		req.Header.Set("Cache-Control", opts.CacheControl)
	}
	if opts.ContentMD5 != "" {
		req.Header.Set("Content-MD5", opts.ContentMD5)
	}
	for k, v := range opts.CustomMetadata {
		req.Header.Set(CustomMetadataHeaderPrefix+k, v)
	}

	resp, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	var res envelope.Result[objectstore.UploadData]
	if err := decodeResponse(resp.StatusCode, body, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, failure(&res)
	}
	return &res, nil
}

// GetObject downloads an object, or a range of it.
func (c *Client) GetObject(bucket, key string, opts GetObjectOptions) (*Object, error) {
	req, err := c.newRequest(http.MethodGet, objectPath(bucket, key), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	if opts.RangeStart != nil {
		rng := fmt.Sprintf("bytes=%d-", *opts.RangeStart)
		if opts.RangeEnd != nil {
			rng += strconv.FormatInt(*opts.RangeEnd, 10)
		}
		req.Header.Set("Range", rng)
	}

	resp, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, errorFromBody(resp.StatusCode, body)
	}

	obj := &Object{
		ObjectInfo:   infoFromHeaders(bucket, key, resp.Header),
		Data:         body,
		ContentRange: resp.Header.Get("Content-Range"),
		Partial:      resp.StatusCode == http.StatusPartialContent,
	}
	obj.Size = int64(len(body))
	if total, ok := rangeTotal(obj.ContentRange); ok {
		obj.Size = total
	}
	return obj, nil
}

// HeadObject returns an object's metadata from its headers.
func (c *Client) HeadObject(bucket, key string) (*objectstore.ObjectInfo, error) {
	req, err := c.newRequest(http.MethodHead, objectPath(bucket, key), nil)
	if err != nil {
		return nil, err
	}
	resp, _, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	info := infoFromHeaders(bucket, key, resp.Header)
	return &info, nil
}

// GetObjectMetadata returns an object's metadata as an envelope.
func (c *Client) GetObjectMetadata(bucket, key string) (*envelope.Result[objectstore.ObjectInfo], error) {
	return call[objectstore.ObjectInfo](c, http.MethodGet, resourcePath("r2", bucket, "metadata")+"/"+keyPath(key), nil)
}

// DeleteObject deletes an object. Deleting a missing key succeeds.
func (c *Client) DeleteObject(bucket, key string) (*envelope.Result[objectstore.DeleteData], error) {
	return call[objectstore.DeleteData](c, http.MethodDelete, objectPath(bucket, key), nil)
}

// CopyObject copies an object. An empty SourceBucket means bucket.
func (c *Client) CopyObject(bucket string, opts objectstore.CopyOptions) (*envelope.Result[objectstore.CopyData], error) {
	return call[objectstore.CopyData](c, http.MethodPost, resourcePath("r2", bucket, "copy"), opts)
}

// Presign returns a time-limited URL for one object.
func (c *Client) Presign(bucket string, req PresignRequest) (*envelope.Result[objectstore.PresignData], error) {
	return call[objectstore.PresignData](c, http.MethodPost, resourcePath("r2", bucket, "presign"), req)
}

// CreateMultipartUpload opens a multipart upload.
func (c *Client) CreateMultipartUpload(bucket string, req CreateMultipartRequest) (*envelope.Result[objectstore.MultipartCreateData], error) {
	return call[objectstore.MultipartCreateData](c, http.MethodPost, resourcePath("r2", bucket, "multipart"), req)
}

// UploadPart uploads one part of an open upload.
func (c *Client) UploadPart(bucket, key, uploadID string, partNumber int, data []byte) (*envelope.Result[objectstore.PartRecord], error) {
	path := withQuery(resourcePath("r2", bucket, "multipart", uploadID, strconv.Itoa(partNumber)), url.Values{"key": {key}})
	req, err := c.newRequest(http.MethodPut, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	var res envelope.Result[objectstore.PartRecord]
	if err := decodeResponse(resp.StatusCode, body, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, failure(&res)
	}
	return &res, nil
}

// CompleteMultipartUpload assembles the listed parts into the object.
func (c *Client) CompleteMultipartUpload(bucket, key, uploadID string, parts []objectstore.UploadedPart) (*envelope.Result[objectstore.CompleteData], error) {
	body := struct {
		Key   string                     `json:"key"`
		Parts []objectstore.UploadedPart `json:"parts"`
	}{key, parts}
	return call[objectstore.CompleteData](c, http.MethodPost, resourcePath("r2", bucket, "multipart", uploadID, "complete"), body)
}

// AbortMultipartUpload discards an open upload.
func (c *Client) AbortMultipartUpload(bucket, key, uploadID string) (*envelope.Result[objectstore.AbortData], error) {
	path := withQuery(resourcePath("r2", bucket, "multipart", uploadID), url.Values{"key": {key}})
	return call[objectstore.AbortData](c, http.MethodDelete, path, nil)
}

// ListMultipartUploads lists open uploads, optionally for one bucket.
func (c *Client) ListMultipartUploads(bucket string) (*envelope.Result[[]objectstore.UploadSession], error) {
	path := withQuery(resourcePath("r2", "multipart"), url.Values{"bucket": {bucket}})
	return call[[]objectstore.UploadSession](c, http.MethodGet, path, nil)
}

// infoFromHeaders rebuilds object metadata from download headers.
func infoFromHeaders(bucket, key string, h http.Header) objectstore.ObjectInfo {
	info := objectstore.ObjectInfo{
		Bucket:       bucket,
		Key:          key,
		ContentType:  h.Get("Content-Type"),
		CacheControl: h.Get("Cache-Control"),
		ETag:         strings.Trim(h.Get("ETag"), `"`),
	}
	if n, err := strconv.ParseInt(h.Get("Content-Length"), 10, 64); err == nil {
		info.Size = n
	}
	if t, err := http.ParseTime(h.Get("Last-Modified")); err == nil {
		info.UploadedAt = t.UTC().Format(time.RFC3339)
	}
	for name, values := range h {
		suffix, ok := strings.CutPrefix(name, CustomMetadataHeaderPrefix)
		if !ok || suffix == "" || len(values) == 0 {
			continue
		}
		if info.CustomMetadata == nil {
			info.CustomMetadata = make(map[string]string)
		}
		info.CustomMetadata[strings.ToLower(suffix)] = values[0]
	}
	return info
}

// rangeTotal extracts the full size from "bytes a-b/total".
func rangeTotal(contentRange string) (int64, bool) {
	_, total, ok := strings.Cut(contentRange, "/")
	if !ok || total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	return n, err == nil
}
