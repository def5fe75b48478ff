package buckettest

import (
	"fmt"
	"slices"
	"testing"

	"github.com/marmos91/cfmgr/pkg/objectstore"
)

func runListOpsTests(t *testing.T, factory BucketFactory) {
	t.Run("Flat", func(t *testing.T) { testListFlat(t, factory) })
	t.Run("Delimiter", func(t *testing.T) { testListDelimiter(t, factory) })
	t.Run("Paging", func(t *testing.T) { testListPaging(t, factory) })
}

func seed(t *testing.T, b objectstore.Bucket, keys ...string) {
	t.Helper()
	for _, k := range keys {
		put(t, b, k, []byte(k), objectstore.PutOptions{})
	}
}

func objectKeys(res *objectstore.ListResult) []string {
	keys := make([]string, 0, len(res.Objects))
	for _, o := range res.Objects {
		keys = append(keys, o.Key)
	}
	return keys
}

func testListFlat(t *testing.T, factory BucketFactory) {
	b := factory(t)
	seed(t, b, "b.txt", "a.txt", "logs/1.log")

	res, err := b.List(t.Context(), objectstore.ListOptions{Limit: 100})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if got, want := objectKeys(res), []string{"a.txt", "b.txt", "logs/1.log"}; !slices.Equal(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	if res.Truncated {
		t.Error("listing should not be truncated")
	}
	if res.Objects[0].Size != int64(len("a.txt")) {
		t.Errorf("Size = %d, want %d", res.Objects[0].Size, len("a.txt"))
	}

	res, err = b.List(t.Context(), objectstore.ListOptions{Prefix: "logs/", Limit: 100})
	if err != nil {
		t.Fatalf("List(prefix) failed: %v", err)
	}
	if got, want := objectKeys(res), []string{"logs/1.log"}; !slices.Equal(got, want) {
		t.Errorf("prefixed keys = %v, want %v", got, want)
	}
}

func testListDelimiter(t *testing.T, factory BucketFactory) {
	b := factory(t)
	seed(t, b, "root.txt", "docs/a.md", "docs/b.md", "img/x.png")

	res, err := b.List(t.Context(), objectstore.ListOptions{Delimiter: "/", Limit: 100})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if got, want := objectKeys(res), []string{"root.txt"}; !slices.Equal(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	if got, want := res.DelimitedPrefixes, []string{"docs/", "img/"}; !slices.Equal(got, want) {
		t.Errorf("prefixes = %v, want %v", got, want)
	}
}

// testListPaging walks a listing with a small limit and checks every key is
// returned exactly once.
func testListPaging(t *testing.T, factory BucketFactory) {
	b := factory(t)
	var want []string
	for i := range 7 {
		want = append(want, fmt.Sprintf("item-%02d", i))
	}
	seed(t, b, want...)

	var (
		got    []string
		cursor string
	)
	for range 10 {
		res, err := b.List(t.Context(), objectstore.ListOptions{Limit: 3, Cursor: cursor})
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(res.Objects) > 3 {
			t.Fatalf("page has %d objects, limit is 3", len(res.Objects))
		}
		got = append(got, objectKeys(res)...)
		if !res.Truncated {
			break
		}
		if res.Cursor == "" {
			t.Fatal("truncated page without cursor")
		}
		cursor = res.Cursor
	}
	if !slices.Equal(got, want) {
		t.Errorf("paged keys = %v, want %v", got, want)
	}
}
