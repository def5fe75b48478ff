package buckettest

import (
	"errors"
	"testing"

	"github.com/marmos91/cfmgr/pkg/objectstore"
)

func runObjectOpsTests(t *testing.T, factory BucketFactory) {
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, factory) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory) })
	t.Run("Metadata", func(t *testing.T) { testMetadata(t, factory) })
	t.Run("Range", func(t *testing.T) { testRange(t, factory) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, factory) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory) })
}

// testPutGet verifies a stored payload reads back unchanged with an MD5 ETag.
func testPutGet(t *testing.T, factory BucketFactory) {
	b := factory(t)
	data := []byte("hello, bucket")

	obj := put(t, b, "greeting.txt", data, objectstore.PutOptions{})
	if obj.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", obj.Size, len(data))
	}
	if obj.ETag != objectstore.ETag(data) {
		t.Errorf("ETag = %q, want %q", obj.ETag, objectstore.ETag(data))
	}

	got, body := read(t, b, "greeting.txt", objectstore.GetOptions{})
	equalBytes(t, "payload", got, data)
	if body.ETag != objectstore.ETag(data) {
		t.Errorf("Get ETag = %q, want %q", body.ETag, objectstore.ETag(data))
	}
	if body.Uploaded.IsZero() {
		t.Error("Uploaded should be set")
	}
}

func testOverwrite(t *testing.T, factory BucketFactory) {
	b := factory(t)
	put(t, b, "k", []byte("first"), objectstore.PutOptions{})
	put(t, b, "k", []byte("second"), objectstore.PutOptions{})

	got, _ := read(t, b, "k", objectstore.GetOptions{})
	equalBytes(t, "payload", got, []byte("second"))
}

// testMetadata verifies HTTP and custom metadata survive a round trip.
func testMetadata(t *testing.T, factory BucketFactory) {
	b := factory(t)
	put(t, b, "doc.json", []byte(`{}`), objectstore.PutOptions{
		HTTPMetadata:   objectstore.HTTPMetadata{ContentType: "application/json", CacheControl: "max-age=60"},
		CustomMetadata: map[string]string{"owner": "ops"},
	})

	obj, err := b.Head(t.Context(), "doc.json")
	if err != nil {
		t.Fatalf("Head() failed: %v", err)
	}
	if obj.HTTPMetadata.ContentType != "application/json" {
		t.Errorf("ContentType = %q, want application/json", obj.HTTPMetadata.ContentType)
	}
	if obj.HTTPMetadata.CacheControl != "max-age=60" {
		t.Errorf("CacheControl = %q, want max-age=60", obj.HTTPMetadata.CacheControl)
	}
	if obj.CustomMetadata["owner"] != "ops" {
		t.Errorf("CustomMetadata = %v, want owner=ops", obj.CustomMetadata)
	}
	if obj.Size != 2 {
		t.Errorf("Size = %d, want 2", obj.Size)
	}
}

func testRange(t *testing.T, factory BucketFactory) {
	b := factory(t)
	put(t, b, "digits", []byte("0123456789"), objectstore.PutOptions{})

	off, length := int64(3), int64(4)
	got, _ := read(t, b, "digits", objectstore.GetOptions{Range: &objectstore.Range{Offset: &off, Length: &length}})
	equalBytes(t, "range", got, []byte("3456"))

	off = 8
	got, _ = read(t, b, "digits", objectstore.GetOptions{Range: &objectstore.Range{Offset: &off}})
	equalBytes(t, "open range", got, []byte("89"))

	off = 20
	got, body := read(t, b, "digits", objectstore.GetOptions{Range: &objectstore.Range{Offset: &off}})
	equalBytes(t, "range past end", got, nil)
	if body.Object.Size != 10 {
		t.Errorf("range past end: Size = %d, want 10", body.Object.Size)
	}
}

func testNotFound(t *testing.T, factory BucketFactory) {
	b := factory(t)

	if _, err := b.Get(t.Context(), "missing", objectstore.GetOptions{}); !errors.Is(err, objectstore.ErrObjectNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrObjectNotFound", err)
	}
	if _, err := b.Head(t.Context(), "missing"); !errors.Is(err, objectstore.ErrObjectNotFound) {
		t.Errorf("Head(missing) error = %v, want ErrObjectNotFound", err)
	}
}

func testDelete(t *testing.T, factory BucketFactory) {
	b := factory(t)
	put(t, b, "gone", []byte("x"), objectstore.PutOptions{})

	if err := b.Delete(t.Context(), "gone"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := b.Head(t.Context(), "gone"); !errors.Is(err, objectstore.ErrObjectNotFound) {
		t.Errorf("Head after Delete error = %v, want ErrObjectNotFound", err)
	}
	// Deleting a missing key is not an error.
	if err := b.Delete(t.Context(), "gone"); err != nil {
		t.Errorf("second Delete() failed: %v", err)
	}
}
