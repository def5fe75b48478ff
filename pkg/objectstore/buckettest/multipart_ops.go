package buckettest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/marmos91/cfmgr/pkg/objectstore"
)

func runMultipartOpsTests(t *testing.T, factory BucketFactory) {
	t.Run("Complete", func(t *testing.T) { testMultipartComplete(t, factory) })
	t.Run("Resume", func(t *testing.T) { testMultipartResume(t, factory) })
	t.Run("Abort", func(t *testing.T) { testMultipartAbort(t, factory) })
	t.Run("BadETag", func(t *testing.T) { testMultipartBadETag(t, factory) })
	t.Run("NoParts", func(t *testing.T) { testMultipartNoParts(t, factory) })
}

func createUpload(t *testing.T, b objectstore.Bucket, key string, opts objectstore.PutOptions) objectstore.MultipartUpload {
	t.Helper()
	mpu, err := b.CreateMultipartUpload(t.Context(), key, opts)
	if err != nil {
		t.Fatalf("CreateMultipartUpload(%q) failed: %v", key, err)
	}
	if mpu.UploadID() == "" {
		t.Fatal("UploadID() should not be empty")
	}
	return mpu
}

func uploadPart(t *testing.T, mpu objectstore.MultipartUpload, n int, data []byte) objectstore.UploadedPart {
	t.Helper()
	part, err := mpu.UploadPart(t.Context(), n, data)
	if err != nil {
		t.Fatalf("UploadPart(%d) failed: %v", n, err)
	}
	if part.PartNumber != n {
		t.Errorf("PartNumber = %d, want %d", part.PartNumber, n)
	}
	if part.ETag != objectstore.ETag(data) {
		t.Errorf("part ETag = %q, want %q", part.ETag, objectstore.ETag(data))
	}
	return part
}

// testMultipartComplete assembles a large first part and a short final part.
func testMultipartComplete(t *testing.T, factory BucketFactory) {
	b := factory(t)
	mpu := createUpload(t, b, "big.bin", objectstore.PutOptions{
		HTTPMetadata: objectstore.HTTPMetadata{ContentType: "application/octet-stream"},
	})

	first := bytes.Repeat([]byte("A"), MinPartSize)
	last := []byte("BBB")
	p1 := uploadPart(t, mpu, 1, first)
	p2 := uploadPart(t, mpu, 2, last)

	obj, err := mpu.Complete(t.Context(), []objectstore.UploadedPart{p1, p2})
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if !strings.HasSuffix(obj.ETag, "-2") {
		t.Errorf("ETag = %q, want multipart suffix -2", obj.ETag)
	}

	got, body := read(t, b, "big.bin", objectstore.GetOptions{})
	equalBytes(t, "assembled object", got, append(bytes.Clone(first), last...))
	if body.HTTPMetadata.ContentType != "application/octet-stream" {
		t.Errorf("ContentType = %q, want application/octet-stream", body.HTTPMetadata.ContentType)
	}
}

// testMultipartResume drives an upload through a handle obtained by ID.
func testMultipartResume(t *testing.T, factory BucketFactory) {
	b := factory(t)
	id := createUpload(t, b, "resumed", objectstore.PutOptions{}).UploadID()

	mpu := b.ResumeMultipartUpload("resumed", id)
	p1 := uploadPart(t, mpu, 1, []byte("only part"))
	if _, err := b.ResumeMultipartUpload("resumed", id).Complete(t.Context(), []objectstore.UploadedPart{p1}); err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}

	got, _ := read(t, b, "resumed", objectstore.GetOptions{})
	equalBytes(t, "payload", got, []byte("only part"))
}

func testMultipartAbort(t *testing.T, factory BucketFactory) {
	b := factory(t)
	mpu := createUpload(t, b, "aborted", objectstore.PutOptions{})
	uploadPart(t, mpu, 1, []byte("data"))

	if err := mpu.Abort(t.Context()); err != nil {
		t.Fatalf("Abort() failed: %v", err)
	}
	if _, err := b.Head(t.Context(), "aborted"); !errors.Is(err, objectstore.ErrObjectNotFound) {
		t.Errorf("Head after Abort error = %v, want ErrObjectNotFound", err)
	}
	if _, err := mpu.UploadPart(t.Context(), 2, []byte("late")); err == nil {
		t.Error("UploadPart after Abort should fail")
	}
}

func testMultipartBadETag(t *testing.T, factory BucketFactory) {
	b := factory(t)
	mpu := createUpload(t, b, "bad", objectstore.PutOptions{})
	uploadPart(t, mpu, 1, []byte("data"))

	_, err := mpu.Complete(t.Context(), []objectstore.UploadedPart{{PartNumber: 1, ETag: objectstore.ETag([]byte("other"))}})
	if err == nil {
		t.Fatal("Complete() with a wrong ETag should fail")
	}
	if _, err := b.Head(t.Context(), "bad"); !errors.Is(err, objectstore.ErrObjectNotFound) {
		t.Errorf("Head after failed Complete error = %v, want ErrObjectNotFound", err)
	}
}

// testMultipartNoParts checks that an empty part list is refused and leaves
// the upload open.
func testMultipartNoParts(t *testing.T, factory BucketFactory) {
	b := factory(t)
	mpu := createUpload(t, b, "empty", objectstore.PutOptions{})
	p1 := uploadPart(t, mpu, 1, []byte("data"))

	if _, err := mpu.Complete(t.Context(), nil); err == nil {
		t.Fatal("Complete() with no parts should fail")
	}
	if _, err := mpu.Complete(t.Context(), []objectstore.UploadedPart{p1}); err != nil {
		t.Fatalf("Complete() after an empty attempt failed: %v", err)
	}
}
