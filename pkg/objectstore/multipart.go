package objectstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/envelope"
)

// PartRecord is a part tracked by the manager for an open upload.
type PartRecord struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
	Size       int64  `json:"size"`
}

// session is the manager-side state of one multipart upload.
//
// life guards the session's lifecycle: UploadPart holds the read side
// across the backend call and the bookkeeping, Complete and Abort hold the
// write side. A part acknowledged to a caller is therefore always recorded
// before the session can close, and a part arriving after close sees
// closed and fails with UPLOAD_NOT_FOUND.
type session struct {
	bucket    string
	key       string
	createdAt time.Time

	life   sync.RWMutex
	closed bool

	partsMu sync.Mutex
	parts   map[int]PartRecord
}

func (s *session) record(p PartRecord) {
	s.partsMu.Lock()
	defer s.partsMu.Unlock()
	// A re-uploaded part number replaces the earlier part.
	s.parts[p.PartNumber] = p
}

func (s *session) snapshot() []PartRecord {
	s.partsMu.Lock()
	defer s.partsMu.Unlock()
	out := make([]PartRecord, 0, len(s.parts))
	for _, p := range s.parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out
}

// MultipartCreateOptions are the optional arguments of CreateMultipartUpload.
type MultipartCreateOptions struct {
	ContentType    string
	CacheControl   string
	CustomMetadata map[string]string
}

// MultipartCreateData is the payload of CreateMultipartUpload.
type MultipartCreateData struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	UploadID  string `json:"upload_id"`
	CreatedAt string `json:"created_at"`
}

// CompleteData is the payload of CompleteMultipartUpload.
type CompleteData struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ETag        string `json:"etag,omitempty"`
	Size        int64  `json:"size"`
	Parts       int    `json:"parts"`
	CompletedAt string `json:"completed_at"`
}

// AbortData is the payload of AbortMultipartUpload.
type AbortData struct {
	UploadID string `json:"upload_id"`
	Aborted  bool   `json:"aborted"`
}

// UploadSession describes an open multipart upload.
type UploadSession struct {
	UploadID  string       `json:"upload_id"`
	Bucket    string       `json:"bucket"`
	Key       string       `json:"key"`
	Parts     []PartRecord `json:"parts"`
	CreatedAt string       `json:"created_at"`
}

func uploadNotFound[T any](uploadID string, start time.Time) *envelope.Result[T] {
	return envelope.Fail[T](envelope.CodeUploadNotFound,
		"Upload ID not found or expired: "+uploadID,
		map[string]any{"upload_id": uploadID}, envelope.Timed(start))
}

// openSession returns the session for uploadID if it belongs to bucket and
// key.
func (m *Manager) openSession(bucket, key, uploadID string) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uploadID]
	if !ok || s.bucket != bucket || s.key != key {
		return nil, false
	}
	return s, true
}

func (m *Manager) removeSession(uploadID string) {
	m.mu.Lock()
	delete(m.sessions, uploadID)
	n := len(m.sessions)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetActiveMultipartUploads(n)
	}
}

// CreateMultipartUpload starts a multipart upload on the backend and
// records the session locally.
func (m *Manager) CreateMultipartUpload(ctx context.Context, bucket, key string, opts MultipartCreateOptions) (*envelope.Result[MultipartCreateData], error) {
	b, err := m.lookup(bucket)
	if err != nil {
		return nil, err
	}

	ctx, done := m.begin(ctx, "CreateMultipartUpload", bucket, key)
	start := time.Now()

	mpu, cerr := b.CreateMultipartUpload(ctx, key, PutOptions{
		HTTPMetadata:   HTTPMetadata{ContentType: opts.ContentType, CacheControl: opts.CacheControl},
		CustomMetadata: opts.CustomMetadata,
	})
	if cerr != nil {
		logger.WarnCtx(ctx, "create multipart upload failed", logger.KeyBucket, bucket, logger.KeyKey, key, logger.Err(cerr))
		done(envelope.CodeStorageError)
		return envelope.Fail[MultipartCreateData](envelope.CodeStorageError, cerr.Error(),
			map[string]any{"bucket": bucket, "key": key}, envelope.Timed(start)), nil
	}

	now := m.now()
	id := mpu.UploadID()

	m.mu.Lock()
	m.sessions[id] = &session{
		bucket:    bucket,
		key:       key,
		createdAt: now,
		parts:     make(map[int]PartRecord),
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetActiveMultipartUploads(n)
	}

	logger.InfoCtx(ctx, "multipart upload created", logger.KeyBucket, bucket, logger.KeyKey, key, logger.KeyUploadID, id)
	done("")
	return envelope.OK(MultipartCreateData{
		Bucket:    bucket,
		Key:       key,
		UploadID:  id,
		CreatedAt: timestamp(now),
	}, envelope.Timed(start)), nil
}

// UploadPart uploads one part. The part number is checked before the
// session so an out-of-range number never reaches the backend.
func (m *Manager) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data []byte) (*envelope.Result[PartRecord], error) {
	b, err := m.lookup(bucket)
	if err != nil {
		return nil, err
	}

	ctx, done := m.begin(ctx, "UploadPart", bucket, key)
	start := time.Now()

	if partNumber < 1 || partNumber > MaxPartNumber {
		done(envelope.CodeInvalidPart)
		return envelope.Fail[PartRecord](envelope.CodeInvalidPart,
			fmt.Sprintf("Part number must be between 1 and %d, got %d", MaxPartNumber, partNumber),
			map[string]any{"part_number": partNumber}, envelope.Timed(start)), nil
	}

	s, ok := m.openSession(bucket, key, uploadID)
	if !ok {
		done(envelope.CodeUploadNotFound)
		return uploadNotFound[PartRecord](uploadID, start), nil
	}

	s.life.RLock()
	defer s.life.RUnlock()
	if s.closed {
		done(envelope.CodeUploadNotFound)
		return uploadNotFound[PartRecord](uploadID, start), nil
	}

	if _, uerr := b.ResumeMultipartUpload(key, uploadID).UploadPart(ctx, partNumber, data); uerr != nil {
		logger.WarnCtx(ctx, "upload part failed",
			logger.KeyUploadID, uploadID, logger.KeyPartNumber, partNumber, logger.Err(uerr))
		done(envelope.CodeStorageError)
		return envelope.Fail[PartRecord](envelope.CodeStorageError, uerr.Error(),
			map[string]any{"upload_id": uploadID, "part_number": partNumber}, envelope.Timed(start)), nil
	}

	part := PartRecord{PartNumber: partNumber, ETag: ETag(data), Size: int64(len(data))}
	s.record(part)

	m.recordBytes("UploadPart", DirectionIn, part.Size)
	done("")
	return envelope.OK(part, envelope.Timed(start)), nil
}

// CompleteMultipartUpload asks the backend to assemble parts, in the order
// given, into the final object. The reported size is the sum of the locally
// tracked sizes of the submitted parts. The session is removed on success
// and kept on failure so the caller can retry or abort.
func (m *Manager) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []UploadedPart) (*envelope.Result[CompleteData], error) {
	b, err := m.lookup(bucket)
	if err != nil {
		return nil, err
	}
	ctx, done := m.begin(ctx, "CompleteMultipartUpload", bucket, key)
	start := time.Now()

	s, ok := m.openSession(bucket, key, uploadID)
	if !ok {
		done(envelope.CodeUploadNotFound)
		return uploadNotFound[CompleteData](uploadID, start), nil
	}

	s.life.Lock()
	defer s.life.Unlock()
	if s.closed {
		done(envelope.CodeUploadNotFound)
		return uploadNotFound[CompleteData](uploadID, start), nil
	}

	obj, cerr := b.ResumeMultipartUpload(key, uploadID).Complete(ctx, parts)
	if cerr != nil {
		logger.WarnCtx(ctx, "complete multipart upload failed", logger.KeyUploadID, uploadID, logger.Err(cerr))
		done(envelope.CodeStorageError)
		return envelope.Fail[CompleteData](envelope.CodeStorageError, cerr.Error(),
			map[string]any{"upload_id": uploadID}, envelope.Timed(start)), nil
	}

	tracked := make(map[int]int64)
	for _, p := range s.snapshot() {
		tracked[p.PartNumber] = p.Size
	}
	var size int64
	for _, p := range parts {
		size += tracked[p.PartNumber]
	}

	s.closed = true
	m.removeSession(uploadID)

	data := CompleteData{
		Bucket:      bucket,
		Key:         key,
		Size:        size,
		Parts:       len(parts),
		CompletedAt: timestamp(m.now()),
	}
	if obj != nil {
		data.ETag = obj.ETag
	}

	logger.InfoCtx(ctx, "multipart upload completed",
		logger.KeyUploadID, uploadID, logger.KeyKey, key, logger.KeySize, size)
	done("")
	return envelope.OK(data, envelope.Timed(start)), nil
}

// AbortMultipartUpload aborts the upload on the backend and removes the
// session.
func (m *Manager) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) (*envelope.Result[AbortData], error) {
	b, err := m.lookup(bucket)
	if err != nil {
		return nil, err
	}

	ctx, done := m.begin(ctx, "AbortMultipartUpload", bucket, key)
	start := time.Now()

	s, ok := m.openSession(bucket, key, uploadID)
	if !ok {
		done(envelope.CodeUploadNotFound)
		return uploadNotFound[AbortData](uploadID, start), nil
	}

	s.life.Lock()
	defer s.life.Unlock()
	if s.closed {
		done(envelope.CodeUploadNotFound)
		return uploadNotFound[AbortData](uploadID, start), nil
	}

	if aerr := b.ResumeMultipartUpload(key, uploadID).Abort(ctx); aerr != nil {
		logger.WarnCtx(ctx, "abort multipart upload failed", logger.KeyUploadID, uploadID, logger.Err(aerr))
		done(envelope.CodeStorageError)
		return envelope.Fail[AbortData](envelope.CodeStorageError, aerr.Error(),
			map[string]any{"upload_id": uploadID}, envelope.Timed(start)), nil
	}

	s.closed = true
	m.removeSession(uploadID)

	done("")
	return envelope.OK(AbortData{UploadID: uploadID, Aborted: true}, envelope.Timed(start)), nil
}

// ListMultipartUploads returns the open uploads ordered by creation time.
// Sessions never expire on their own; this is the operator's view for
// finding abandoned ones.
func (m *Manager) ListMultipartUploads() []UploadSession {
	type entry struct {
		id string
		s  *session
	}
	m.mu.Lock()
	entries := make([]entry, 0, len(m.sessions))
	for id, s := range m.sessions {
		entries = append(entries, entry{id, s})
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].s.createdAt, entries[j].s.createdAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return entries[i].id < entries[j].id
	})

	out := make([]UploadSession, 0, len(entries))
	for _, e := range entries {
		out = append(out, UploadSession{
			UploadID:  e.id,
			Bucket:    e.s.bucket,
			Key:       e.s.key,
			Parts:     e.s.snapshot(),
			CreatedAt: timestamp(e.s.createdAt),
		})
	}
	return out
}
