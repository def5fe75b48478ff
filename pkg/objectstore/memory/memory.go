// Package memory provides an in-memory objectstore.Bucket for tests and
// local development. Contents are lost when the process exits.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/cfmgr/pkg/objectstore"
)

// MaxKeyLength is the longest key accepted, in bytes.
const MaxKeyLength = 1024

type entry struct {
	obj  objectstore.Object
	data []byte
}

type upload struct {
	key   string
	opts  objectstore.PutOptions
	parts map[int][]byte
}

// Bucket is an in-memory objectstore.Bucket.
type Bucket struct {
	mu      sync.RWMutex
	objects map[string]*entry
	uploads map[string]*upload

	maxObjectSize int64
	now           func() time.Time
}

var _ objectstore.Bucket = (*Bucket)(nil)

// Option configures a Bucket.
type Option func(*Bucket)

// WithMaxObjectSize rejects objects larger than n bytes. Zero disables the
// limit.
func WithMaxObjectSize(n int64) Option {
	return func(b *Bucket) { b.maxObjectSize = n }
}

// New creates an empty bucket.
func New(opts ...Option) *Bucket {
	b := &Bucket{
		objects: make(map[string]*entry),
		uploads: make(map[string]*upload),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func validateKey(key string) error {
	if key == "" || len(key) > MaxKeyLength {
		return fmt.Errorf("invalid object key: length must be 1..%d bytes", MaxKeyLength)
	}
	return nil
}

func (b *Bucket) checkSize(n int64) error {
	if b.maxObjectSize > 0 && n > b.maxObjectSize {
		return fmt.Errorf("object too large: %d bytes exceeds limit of %d", n, b.maxObjectSize)
	}
	return nil
}

func (b *Bucket) store(key string, data []byte, etag string, opts objectstore.PutOptions) *objectstore.Object {
	obj := objectstore.Object{
		Key:            key,
		Size:           int64(len(data)),
		ETag:           etag,
		Uploaded:       b.now().UTC(),
		HTTPMetadata:   opts.HTTPMetadata,
		CustomMetadata: maps.Clone(opts.CustomMetadata),
	}
	b.objects[key] = &entry{obj: obj, data: data}
	out := cloneObject(obj)
	return &out
}

func cloneObject(o objectstore.Object) objectstore.Object {
	o.CustomMetadata = maps.Clone(o.CustomMetadata)
	return o
}

// Put implements objectstore.Bucket.
func (b *Bucket) Put(ctx context.Context, key string, data []byte, opts objectstore.PutOptions) (*objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := b.checkSize(int64(len(data))); err != nil {
		return nil, err
	}

	sum := md5.Sum(data)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store(key, bytes.Clone(data), hex.EncodeToString(sum[:]), opts), nil
}

// Get implements objectstore.Bucket.
func (b *Bucket) Get(ctx context.Context, key string, opts objectstore.GetOptions) (*objectstore.ObjectBody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	e, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}

	data := e.data
	if r := opts.Range; r != nil {
		var off int64
		if r.Offset != nil {
			off = *r.Offset
		}
		// An offset past the end reads nothing; the caller sees the full
		// size in the returned object.
		off = min(off, int64(len(data)))
		end := int64(len(data))
		if r.Length != nil && off+*r.Length < end {
			end = off + *r.Length
		}
		data = data[off:end]
	}

	return &objectstore.ObjectBody{
		Object: cloneObject(e.obj),
		Body:   io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// Head implements objectstore.Bucket.
func (b *Bucket) Head(ctx context.Context, key string) (*objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.objects[key]
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}
	obj := cloneObject(e.obj)
	return &obj, nil
}

// Delete implements objectstore.Bucket.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// List implements objectstore.Bucket.
func (b *Bucket) List(ctx context.Context, opts objectstore.ListOptions) (*objectstore.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	page := objectstore.ListKeys(keys, opts)
	res := &objectstore.ListResult{
		Objects:           make([]objectstore.Object, 0, len(page.Keys)),
		DelimitedPrefixes: page.Prefixes,
		Truncated:         page.Truncated,
		Cursor:            page.Cursor,
	}
	for _, k := range page.Keys {
		res.Objects = append(res.Objects, cloneObject(b.objects[k].obj))
	}
	return res, nil
}

// CreateMultipartUpload implements objectstore.Bucket.
func (b *Bucket) CreateMultipartUpload(ctx context.Context, key string, opts objectstore.PutOptions) (objectstore.MultipartUpload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.uploads[id] = &upload{key: key, opts: opts, parts: make(map[int][]byte)}
	b.mu.Unlock()

	return &multipartUpload{bucket: b, key: key, id: id}, nil
}

// ResumeMultipartUpload implements objectstore.Bucket.
func (b *Bucket) ResumeMultipartUpload(key, uploadID string) objectstore.MultipartUpload {
	return &multipartUpload{bucket: b, key: key, id: uploadID}
}

// Len returns the number of stored objects.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

type multipartUpload struct {
	bucket *Bucket
	key    string
	id     string
}

func (u *multipartUpload) UploadID() string { return u.id }

// lookup must be called with the bucket lock held.
func (u *multipartUpload) lookup() (*upload, error) {
	up, ok := u.bucket.uploads[u.id]
	if !ok || up.key != u.key {
		return nil, fmt.Errorf("%w: %s", objectstore.ErrUploadNotFound, u.id)
	}
	return up, nil
}

func (u *multipartUpload) UploadPart(ctx context.Context, partNumber int, data []byte) (objectstore.UploadedPart, error) {
	if err := ctx.Err(); err != nil {
		return objectstore.UploadedPart{}, err
	}
	if partNumber < 1 || partNumber > objectstore.MaxPartNumber {
		return objectstore.UploadedPart{}, fmt.Errorf("invalid part number %d", partNumber)
	}

	u.bucket.mu.Lock()
	defer u.bucket.mu.Unlock()
	up, err := u.lookup()
	if err != nil {
		return objectstore.UploadedPart{}, err
	}
	up.parts[partNumber] = bytes.Clone(data)

	sum := md5.Sum(data)
	return objectstore.UploadedPart{PartNumber: partNumber, ETag: hex.EncodeToString(sum[:])}, nil
}

// Complete assembles the parts in the given order, which must be strictly
// ascending. The ETag follows the S3 convention: the MD5 of the
// concatenated part digests, suffixed with the part count.
func (u *multipartUpload) Complete(ctx context.Context, parts []objectstore.UploadedPart) (*objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u.bucket.mu.Lock()
	defer u.bucket.mu.Unlock()
	up, err := u.lookup()
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("invalid part: at least one part is required")
	}

	var (
		data    []byte
		digests []byte
		prev    int
	)
	for _, p := range parts {
		if p.PartNumber <= prev {
			return nil, fmt.Errorf("invalid part order: part %d after part %d", p.PartNumber, prev)
		}
		prev = p.PartNumber

		chunk, ok := up.parts[p.PartNumber]
		if !ok {
			return nil, fmt.Errorf("invalid part: part %d was not uploaded", p.PartNumber)
		}
		sum := md5.Sum(chunk)
		if p.ETag != hex.EncodeToString(sum[:]) {
			return nil, fmt.Errorf("invalid part: etag mismatch for part %d", p.PartNumber)
		}
		data = append(data, chunk...)
		digests = append(digests, sum[:]...)
	}
	if err := u.bucket.checkSize(int64(len(data))); err != nil {
		return nil, err
	}

	sum := md5.Sum(digests)
	etag := fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), len(parts))
	delete(u.bucket.uploads, u.id)
	return u.bucket.store(u.key, data, etag, up.opts), nil
}

func (u *multipartUpload) Abort(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u.bucket.mu.Lock()
	defer u.bucket.mu.Unlock()
	if _, err := u.lookup(); err != nil {
		return err
	}
	delete(u.bucket.uploads, u.id)
	return nil
}
