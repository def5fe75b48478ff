package buckettest

import (
	"bytes"
	"io"
	"testing"

	"github.com/marmos91/cfmgr/pkg/objectstore"
)

// BucketFactory creates a fresh, empty bucket for each test.
type BucketFactory func(t *testing.T) objectstore.Bucket

// MinPartSize is the smallest non-final part S3-compatible backends accept.
const MinPartSize = 5 << 20

// RunConformanceSuite runs the full conformance suite against factory. Each
// test gets a fresh bucket.
func RunConformanceSuite(t *testing.T, factory BucketFactory) {
	t.Helper()

	t.Run("ObjectOps", func(t *testing.T) {
		runObjectOpsTests(t, factory)
	})

	t.Run("ListOps", func(t *testing.T) {
		runListOpsTests(t, factory)
	})

	t.Run("MultipartOps", func(t *testing.T) {
		runMultipartOpsTests(t, factory)
	})
}

func put(t *testing.T, b objectstore.Bucket, key string, data []byte, opts objectstore.PutOptions) *objectstore.Object {
	t.Helper()
	obj, err := b.Put(t.Context(), key, data, opts)
	if err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
	return obj
}

func read(t *testing.T, b objectstore.Bucket, key string, opts objectstore.GetOptions) ([]byte, *objectstore.ObjectBody) {
	t.Helper()
	body, err := b.Get(t.Context(), key, opts)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	defer func() { _ = body.Body.Close() }()

	data, err := io.ReadAll(body.Body)
	if err != nil {
		t.Fatalf("reading %q failed: %v", key, err)
	}
	return data, body
}

func equalBytes(t *testing.T, what string, got, want []byte) {
	t.Helper()
	if !bytes.Equal(got, want) {
		if len(got) > 64 || len(want) > 64 {
			t.Errorf("%s: got %d bytes, want %d bytes", what, len(got), len(want))
			return
		}
		t.Errorf("%s = %q, want %q", what, got, want)
	}
}
