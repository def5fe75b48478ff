package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/cfmgr/internal/bytesize"
	"github.com/marmos91/cfmgr/pkg/api/middleware"
	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/objectstore"
)

// CustomMetadataHeaderPrefix prefixes the request and response headers
// that carry an object's custom metadata.
const CustomMetadataHeaderPrefix = "X-Custom-Metadata-"

// ObjectStoreHandler exposes the object-store manager under /api/v1/r2.
type ObjectStoreHandler struct {
	manager       *objectstore.Manager
	maxUploadSize int64
	presignSecret string
	presignExpiry time.Duration
}

// ObjectStoreOptions configure an ObjectStoreHandler.
type ObjectStoreOptions struct {
	// MaxUploadSize caps request bodies of uploads and parts. 0 means no cap.
	MaxUploadSize int64

	// PresignSecret signs presigned URLs.
	PresignSecret string

	// PresignExpiry is used when a presign request has no expires_in.
	PresignExpiry time.Duration
}

// NewObjectStoreHandler creates a new ObjectStoreHandler.
func NewObjectStoreHandler(manager *objectstore.Manager, opts ObjectStoreOptions) *ObjectStoreHandler {
	return &ObjectStoreHandler{
		manager:       manager,
		maxUploadSize: opts.MaxUploadSize,
		presignSecret: opts.PresignSecret,
		presignExpiry: opts.PresignExpiry,
	}
}

// BucketsData is the payload of GET /r2/buckets.
type BucketsData struct {
	Buckets []string `json:"buckets"`
}

// CreateMultipartRequest is the request body for POST /r2/{bucket}/multipart.
type CreateMultipartRequest struct {
	Key            string            `json:"key" validate:"required"`
	ContentType    string            `json:"content_type,omitempty"`
	CacheControl   string            `json:"cache_control,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// CompleteMultipartRequest is the request body for
// POST /r2/{bucket}/multipart/{uploadId}/complete.
type CompleteMultipartRequest struct {
	Key   string                     `json:"key" validate:"required"`
	Parts []objectstore.UploadedPart `json:"parts" validate:"required,min=1,dive"`
}

// PresignRequest is the request body for POST /r2/{bucket}/presign.
type PresignRequest struct {
	Key       string `json:"key" validate:"required"`
	Method    string `json:"method,omitempty" validate:"omitempty,oneof=GET PUT get put"`
	ExpiresIn int    `json:"expires_in,omitempty" validate:"gte=0"`
}

// objectKey returns the key captured by the trailing wildcard.
func objectKey(r *http.Request) string {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(key); err == nil {
			key = unescaped
		}
	}
	return key
}

// readBody reads the request body up to the configured upload limit.
func (h *ObjectStoreHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := r.Body
	if h.maxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, envelope.CodeFileTooLarge,
				"Request body exceeds the maximum upload size of "+bytesize.Human(h.maxUploadSize))
			return nil, false
		}
		badRequest(w, "Failed to read request body")
		return nil, false
	}
	return data, true
}

// customMetadata collects X-Custom-Metadata-* headers with lowercased names.
func customMetadata(header http.Header) map[string]string {
	var out map[string]string
	for name, values := range header {
		suffix, ok := strings.CutPrefix(http.CanonicalHeaderKey(name), CustomMetadataHeaderPrefix)
		if !ok || suffix == "" || len(values) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[strings.ToLower(suffix)] = values[0]
	}
	return out
}

// setObjectHeaders writes an object's metadata as response headers.
func setObjectHeaders(w http.ResponseWriter, info objectstore.ObjectInfo) {
	h := w.Header()
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	if info.CacheControl != "" {
		h.Set("Cache-Control", info.CacheControl)
	}
	if info.ETag != "" {
		h.Set("ETag", `"`+info.ETag+`"`)
	}
	if t, err := time.Parse(time.RFC3339Nano, info.UploadedAt); err == nil {
		h.Set("Last-Modified", t.UTC().Format(http.TimeFormat))
	}
	for k, v := range info.CustomMetadata {
		h.Set(CustomMetadataHeaderPrefix+k, v)
	}
	h.Set("Accept-Ranges", "bytes")
}

// parseRange parses a single "bytes=start-end" or "bytes=start-" range.
func parseRange(header string) (start, end *int64, err error) {
	if header == "" {
		return nil, nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, nil, fmt.Errorf("unsupported range %q", header)
	}
	from, to, ok := strings.Cut(spec, "-")
	if !ok || from == "" {
		return nil, nil, fmt.Errorf("unsupported range %q", header)
	}
	s, err := strconv.ParseInt(from, 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid range start %q", from)
	}
	start = &s
	if to != "" {
		e, err := strconv.ParseInt(to, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid range end %q", to)
		}
		end = &e
	}
	return start, end, nil
}

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json"
}

// ListBuckets handles GET /r2/buckets.
func (h *ObjectStoreHandler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	names := h.manager.ListBuckets()
	writeResult(w, envelope.OK(BucketsData{Buckets: names}, &envelope.Meta{Count: envelope.Int(len(names))}), http.StatusOK)
}

// ListObjects handles GET /r2/{bucket}/objects.
func (h *ObjectStoreHandler) ListObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := objectstore.ListObjectsOptions{
		Prefix:          q.Get("prefix"),
		Delimiter:       q.Get("delimiter"),
		Cursor:          q.Get("cursor"),
		IncludeMetadata: q.Get("include_metadata") == "true",
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}
	res, err := h.manager.ListObjects(r.Context(), chi.URLParam(r, "bucket"), opts)
	respond(w, r, res, err, http.StatusOK)
}

// Upload handles POST and PUT /r2/{bucket}/objects/*. The body is the raw
// object payload.
func (h *ObjectStoreHandler) Upload(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	res, err := h.manager.Upload(r.Context(), chi.URLParam(r, "bucket"), objectKey(r), data, objectstore.UploadOptions{
		ContentType:    r.Header.Get("Content-Type"),
		CacheControl:   r.Header.Get("Cache-Control"),
		ContentMD5:     r.Header.Get("Content-MD5"),
		CustomMetadata: customMetadata(r.Header),
	})
	respond(w, r, res, err, http.StatusCreated)
}

// Download handles GET /r2/{bucket}/objects/*. The payload is written
// as-is with its metadata as headers, or as the JSON envelope when
// ?format=json is given. A Range header yields 206.
func (h *ObjectStoreHandler) Download(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r.Header.Get("Range"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	res, err := h.manager.Download(r.Context(), chi.URLParam(r, "bucket"), objectKey(r), start, end)
	if err != nil {
		handleManagerError(w, r, err)
		return
	}
	if !res.Success || wantsJSON(r) {
		writeResult(w, res, http.StatusOK)
		return
	}

	if start != nil && *start >= res.Data.Size {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", res.Data.Size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	setObjectHeaders(w, res.Data.ObjectInfo)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data.Data)))
	status := http.StatusOK
	if start != nil {
		first := *start
		last := first + int64(len(res.Data.Data)) - 1
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", first, last, res.Data.Size))
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)
	_, _ = w.Write(res.Data.Data)
}

// Head handles HEAD /r2/{bucket}/objects/*.
func (h *ObjectStoreHandler) Head(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.GetMetadata(r.Context(), chi.URLParam(r, "bucket"), objectKey(r))
	if err != nil {
		status, _ := MapManagerError(err)
		w.WriteHeader(status)
		return
	}
	if !res.Success {
		w.WriteHeader(StatusForCode(res.Code()))
		return
	}
	setObjectHeaders(w, *res.Data)
	w.Header().Set("Content-Length", strconv.FormatInt(res.Data.Size, 10))
	w.WriteHeader(http.StatusOK)
}

// Metadata handles GET /r2/{bucket}/metadata/*.
func (h *ObjectStoreHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.GetMetadata(r.Context(), chi.URLParam(r, "bucket"), objectKey(r))
	respond(w, r, res, err, http.StatusOK)
}

// Delete handles DELETE /r2/{bucket}/objects/*.
func (h *ObjectStoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Delete(r.Context(), chi.URLParam(r, "bucket"), objectKey(r))
	respond(w, r, res, err, http.StatusOK)
}

// Copy handles POST /r2/{bucket}/copy. The path bucket is the default
// source bucket.
func (h *ObjectStoreHandler) Copy(w http.ResponseWriter, r *http.Request) {
	var req objectstore.CopyOptions
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.SourceBucket == "" {
		req.SourceBucket = chi.URLParam(r, "bucket")
	}
	res, err := h.manager.Copy(r.Context(), req)
	respond(w, r, res, err, http.StatusOK)
}

// CreateMultipart handles POST /r2/{bucket}/multipart.
func (h *ObjectStoreHandler) CreateMultipart(w http.ResponseWriter, r *http.Request) {
	var req CreateMultipartRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.manager.CreateMultipartUpload(r.Context(), chi.URLParam(r, "bucket"), req.Key, objectstore.MultipartCreateOptions{
		ContentType:    req.ContentType,
		CacheControl:   req.CacheControl,
		CustomMetadata: req.CustomMetadata,
	})
	respond(w, r, res, err, http.StatusCreated)
}

// UploadPart handles PUT /r2/{bucket}/multipart/{uploadId}/{part}?key=.
func (h *ObjectStoreHandler) UploadPart(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		badRequest(w, "key query parameter is required")
		return
	}
	partNumber, err := strconv.Atoi(chi.URLParam(r, "part"))
	if err != nil {
		badRequest(w, "part number must be an integer")
		return
	}
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	res, err := h.manager.UploadPart(r.Context(), chi.URLParam(r, "bucket"), key, chi.URLParam(r, "uploadId"), partNumber, data)
	respond(w, r, res, err, http.StatusOK)
}

// CompleteMultipart handles POST /r2/{bucket}/multipart/{uploadId}/complete.
func (h *ObjectStoreHandler) CompleteMultipart(w http.ResponseWriter, r *http.Request) {
	var req CompleteMultipartRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.manager.CompleteMultipartUpload(r.Context(), chi.URLParam(r, "bucket"), req.Key, chi.URLParam(r, "uploadId"), req.Parts)
	respond(w, r, res, err, http.StatusOK)
}

// AbortMultipart handles DELETE /r2/{bucket}/multipart/{uploadId}?key=.
func (h *ObjectStoreHandler) AbortMultipart(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		badRequest(w, "key query parameter is required")
		return
	}
	res, err := h.manager.AbortMultipartUpload(r.Context(), chi.URLParam(r, "bucket"), key, chi.URLParam(r, "uploadId"))
	respond(w, r, res, err, http.StatusOK)
}

// ListMultipartUploads handles GET /r2/multipart. An optional ?bucket=
// filters the sessions.
func (h *ObjectStoreHandler) ListMultipartUploads(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket")
	sessions := make([]objectstore.UploadSession, 0)
	for _, s := range h.manager.ListMultipartUploads() {
		if bucket == "" || s.Bucket == bucket {
			sessions = append(sessions, s)
		}
	}
	writeResult(w, envelope.OK(sessions, &envelope.Meta{Count: envelope.Int(len(sessions))}), http.StatusOK)
}

// Presign handles POST /r2/{bucket}/presign. The returned URL is absolute,
// built from the request's host.
func (h *ObjectStoreHandler) Presign(w http.ResponseWriter, r *http.Request) {
	var req PresignRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	expiresIn := req.ExpiresIn
	if expiresIn == 0 {
		expiresIn = int(h.presignExpiry.Seconds())
	}

	res, err := h.manager.GeneratePresignedURL(chi.URLParam(r, "bucket"), req.Key, objectstore.PresignOptions{
		Method:    req.Method,
		ExpiresIn: expiresIn,
		SecretKey: h.presignSecret,
	})
	if err == nil && res.Success {
		res.Data.URL = baseURL(r) + res.Data.URL
	}
	respond(w, r, res, err, http.StatusOK)
}

// baseURL returns scheme://host of the request as seen by the client.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
