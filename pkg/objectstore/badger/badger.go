// Package badger provides a durable local objectstore.Bucket on BadgerDB.
package badger

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/marmos91/cfmgr/internal/bytesize"
	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/objectstore"
)

// Key namespace:
//
//	Object metadata   "obj:"   obj:<key>                      objectRecord (JSON)
//	Object payload    "data:"  data:<key>                     raw bytes
//	Multipart upload  "mpu:"   mpu:<uploadID>                 uploadRecord (JSON)
//	Multipart part    "part:"  part:<uploadID>:<partNumber>   raw bytes
//
// Part numbers are zero-padded to five digits so a prefix scan returns
// parts in ascending order.
const (
	prefixObject = "obj:"
	prefixData   = "data:"
	prefixUpload = "mpu:"
	prefixPart   = "part:"
)

func keyObject(k string) []byte { return []byte(prefixObject + k) }
func keyData(k string) []byte   { return []byte(prefixData + k) }
func keyUpload(id string) []byte {
	return []byte(prefixUpload + id)
}
func keyPart(id string, n int) []byte {
	return []byte(fmt.Sprintf("%s%s:%05d", prefixPart, id, n))
}

const maxKeyLength = 1024

// Config configures a Badger bucket.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `mapstructure:"path" yaml:"path" json:"path,omitempty"`

	// InMemory keeps everything in memory (tests).
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory,omitempty" json:"in_memory,omitempty"`

	// MaxObjectSize rejects larger objects. Zero disables the limit.
	MaxObjectSize bytesize.ByteSize `mapstructure:"max_object_size" yaml:"max_object_size,omitempty" json:"max_object_size,omitempty"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("badger path is required")
	}
	return nil
}

type objectRecord struct {
	Size           int64             `json:"size"`
	ETag           string            `json:"etag"`
	Uploaded       time.Time         `json:"uploaded"`
	ContentType    string            `json:"content_type,omitempty"`
	CacheControl   string            `json:"cache_control,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

func (r objectRecord) object(key string) objectstore.Object {
	return objectstore.Object{
		Key:      key,
		Size:     r.Size,
		ETag:     r.ETag,
		Uploaded: r.Uploaded,
		HTTPMetadata: objectstore.HTTPMetadata{
			ContentType:  r.ContentType,
			CacheControl: r.CacheControl,
		},
		CustomMetadata: r.CustomMetadata,
	}
}

type uploadRecord struct {
	Key            string            `json:"key"`
	ContentType    string            `json:"content_type,omitempty"`
	CacheControl   string            `json:"cache_control,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Bucket is an objectstore.Bucket backed by BadgerDB.
type Bucket struct {
	db            *badgerdb.DB
	maxObjectSize int64
	now           func() time.Time
}

var (
	_ objectstore.Bucket        = (*Bucket)(nil)
	_ objectstore.HealthChecker = (*Bucket)(nil)
)

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Bucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := badgerdb.DefaultOptions(cfg.Path).WithLogger(badgerLogger{})
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger bucket: %w", err)
	}
	return &Bucket{db: db, maxObjectSize: cfg.MaxObjectSize.Int64(), now: time.Now}, nil
}

// Close closes the database.
func (b *Bucket) Close() error {
	return b.db.Close()
}

// HealthCheck implements objectstore.HealthChecker.
func (b *Bucket) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.db.IsClosed() {
		return errors.New("badger bucket is closed")
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || len(key) > maxKeyLength {
		return fmt.Errorf("invalid object key: length must be 1..%d bytes", maxKeyLength)
	}
	return nil
}

func (b *Bucket) checkSize(n int64) error {
	if b.maxObjectSize > 0 && n > b.maxObjectSize {
		return fmt.Errorf("object too large: %d bytes exceeds limit of %d", n, b.maxObjectSize)
	}
	return nil
}

func readRecord(txn *badgerdb.Txn, key string) (*objectRecord, error) {
	item, err := txn.Get(keyObject(key))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, objectstore.ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec objectRecord
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
		return nil, fmt.Errorf("decode object record: %w", err)
	}
	return &rec, nil
}

func writeObject(txn *badgerdb.Txn, key string, data []byte, rec objectRecord) error {
	enc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := txn.Set(keyObject(key), enc); err != nil {
		return err
	}
	return txn.Set(keyData(key), data)
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
	rec := objectRecord{
		Size:           int64(len(data)),
		ETag:           hex.EncodeToString(sum[:]),
		Uploaded:       b.now().UTC(),
		ContentType:    opts.HTTPMetadata.ContentType,
		CacheControl:   opts.HTTPMetadata.CacheControl,
		CustomMetadata: opts.CustomMetadata,
	}
	err := b.db.Update(func(txn *badgerdb.Txn) error {
		return writeObject(txn, key, bytes.Clone(data), rec)
	})
	if err != nil {
		return nil, fmt.Errorf("badger put: %w", err)
	}
	obj := rec.object(key)
	return &obj, nil
}

// Get implements objectstore.Bucket.
func (b *Bucket) Get(ctx context.Context, key string, opts objectstore.GetOptions) (*objectstore.ObjectBody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		rec  *objectRecord
		data []byte
	)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		if rec, err = readRecord(txn, key); err != nil {
			return err
		}
		item, err := txn.Get(keyData(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}

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
		Object: rec.object(key),
		Body:   io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// Head implements objectstore.Bucket.
func (b *Bucket) Head(ctx context.Context, key string) (*objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *objectRecord
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		rec, err = readRecord(txn, key)
		return err
	})
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("badger head: %w", err)
	}
	obj := rec.object(key)
	return &obj, nil
}

// Delete implements objectstore.Bucket.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Delete(keyObject(key)); err != nil {
			return err
		}
		return txn.Delete(keyData(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// List implements objectstore.Bucket.
func (b *Bucket) List(ctx context.Context, opts objectstore.ListOptions) (*objectstore.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &objectstore.ListResult{}
	err := b.db.View(func(txn *badgerdb.Txn) error {
		itOpts := badgerdb.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		itOpts.Prefix = keyObject(opts.Prefix)

		var keys []string
		it := txn.NewIterator(itOpts)
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), prefixObject))
		}
		it.Close()

		page := objectstore.ListKeys(keys, opts)
		res.DelimitedPrefixes = page.Prefixes
		res.Truncated = page.Truncated
		res.Cursor = page.Cursor
		res.Objects = make([]objectstore.Object, 0, len(page.Keys))
		for _, k := range page.Keys {
			rec, err := readRecord(txn, k)
			if err != nil {
				return err
			}
			res.Objects = append(res.Objects, rec.object(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list: %w", err)
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
	enc, err := json.Marshal(uploadRecord{
		Key:            key,
		ContentType:    opts.HTTPMetadata.ContentType,
		CacheControl:   opts.HTTPMetadata.CacheControl,
		CustomMetadata: opts.CustomMetadata,
		CreatedAt:      b.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyUpload(id), enc)
	}); err != nil {
		return nil, fmt.Errorf("badger create multipart upload: %w", err)
	}
	return &multipartUpload{bucket: b, key: key, id: id}, nil
}

// ResumeMultipartUpload implements objectstore.Bucket.
func (b *Bucket) ResumeMultipartUpload(key, uploadID string) objectstore.MultipartUpload {
	return &multipartUpload{bucket: b, key: key, id: uploadID}
}

type multipartUpload struct {
	bucket *Bucket
	key    string
	id     string
}

func (u *multipartUpload) UploadID() string { return u.id }

func (u *multipartUpload) record(txn *badgerdb.Txn) (*uploadRecord, error) {
	item, err := txn.Get(keyUpload(u.id))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", objectstore.ErrUploadNotFound, u.id)
	}
	if err != nil {
		return nil, err
	}
	var rec uploadRecord
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
		return nil, fmt.Errorf("decode upload record: %w", err)
	}
	if rec.Key != u.key {
		return nil, fmt.Errorf("%w: %s", objectstore.ErrUploadNotFound, u.id)
	}
	return &rec, nil
}

func (u *multipartUpload) UploadPart(ctx context.Context, partNumber int, data []byte) (objectstore.UploadedPart, error) {
	if err := ctx.Err(); err != nil {
		return objectstore.UploadedPart{}, err
	}
	if partNumber < 1 || partNumber > objectstore.MaxPartNumber {
		return objectstore.UploadedPart{}, fmt.Errorf("invalid part number %d", partNumber)
	}

	err := u.bucket.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := u.record(txn); err != nil {
			return err
		}
		return txn.Set(keyPart(u.id, partNumber), bytes.Clone(data))
	})
	if err != nil {
		return objectstore.UploadedPart{}, fmt.Errorf("badger upload part: %w", err)
	}

	sum := md5.Sum(data)
	return objectstore.UploadedPart{PartNumber: partNumber, ETag: hex.EncodeToString(sum[:])}, nil
}

// Complete assembles the listed parts, which must be in ascending order,
// and removes every part of the upload.
func (u *multipartUpload) Complete(ctx context.Context, parts []objectstore.UploadedPart) (*objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var obj objectstore.Object
	err := u.bucket.db.Update(func(txn *badgerdb.Txn) error {
		up, err := u.record(txn)
		if err != nil {
			return err
		}
		if len(parts) == 0 {
			return fmt.Errorf("invalid part: at least one part is required")
		}

		var (
			data    []byte
			digests []byte
			prev    int
		)
		for _, p := range parts {
			if p.PartNumber <= prev {
				return fmt.Errorf("invalid part order: part %d after part %d", p.PartNumber, prev)
			}
			prev = p.PartNumber

			item, err := txn.Get(keyPart(u.id, p.PartNumber))
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return fmt.Errorf("invalid part: part %d was not uploaded", p.PartNumber)
			}
			if err != nil {
				return err
			}
			chunk, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			sum := md5.Sum(chunk)
			if p.ETag != hex.EncodeToString(sum[:]) {
				return fmt.Errorf("invalid part: etag mismatch for part %d", p.PartNumber)
			}
			data = append(data, chunk...)
			digests = append(digests, sum[:]...)
		}
		if err := u.bucket.checkSize(int64(len(data))); err != nil {
			return err
		}

		sum := md5.Sum(digests)
		rec := objectRecord{
			Size:           int64(len(data)),
			ETag:           fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), len(parts)),
			Uploaded:       u.bucket.now().UTC(),
			ContentType:    up.ContentType,
			CacheControl:   up.CacheControl,
			CustomMetadata: up.CustomMetadata,
		}
		if err := writeObject(txn, u.key, data, rec); err != nil {
			return err
		}
		obj = rec.object(u.key)
		return u.dropParts(txn)
	})
	if err != nil {
		return nil, fmt.Errorf("badger complete multipart upload: %w", err)
	}
	return &obj, nil
}

func (u *multipartUpload) Abort(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := u.bucket.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := u.record(txn); err != nil {
			return err
		}
		return u.dropParts(txn)
	})
	if err != nil {
		return fmt.Errorf("badger abort multipart upload: %w", err)
	}
	return nil
}

// dropParts deletes the upload record and all of its parts.
func (u *multipartUpload) dropParts(txn *badgerdb.Txn) error {
	itOpts := badgerdb.DefaultIteratorOptions
	itOpts.PrefetchValues = false
	itOpts.Prefix = []byte(prefixPart + u.id + ":")

	var keys [][]byte
	it := txn.NewIterator(itOpts)
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return txn.Delete(keyUpload(u.id))
}

// badgerLogger routes Badger's internal logging to the process logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyStoreType, "badger")
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyStoreType, "badger")
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyStoreType, "badger")
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyStoreType, "badger")
}
