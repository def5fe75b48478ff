package bucket

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/pkg/api"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/objectstore"
	"github.com/marmos91/cfmgr/pkg/objectstore/memory"
)

func setOutput(t *testing.T, format string) {
	t.Helper()
	prev := *cmdutil.Flags
	cmdutil.Flags.Output = format
	cmdutil.Flags.NoColor = true
	t.Cleanup(func() { *cmdutil.Flags = prev })
}

// newClient serves a public router over the in-memory buckets "assets"
// and "backup".
func newClient(t *testing.T) *apiclient.Client {
	t.Helper()
	router, err := api.NewRouter(api.APIConfig{}, api.Dependencies{
		ObjectStore: objectstore.New(map[string]objectstore.Bucket{
			"assets": memory.New(),
			"backup": memory.New(),
		}),
		Presign: api.PresignConfig{SecretKey: "presign-secret"},
		Version: "test",
	})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL)
}

func source(data string) *uploadSource {
	return &uploadSource{r: strings.NewReader(data), size: int64(len(data))}
}

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("")
	require.NoError(t, err)
	assert.Nil(t, start)
	assert.Nil(t, end)

	start, end, err = parseRange("10-19")
	require.NoError(t, err)
	assert.Equal(t, int64(10), *start)
	assert.Equal(t, int64(19), *end)

	start, end, err = parseRange("100-")
	require.NoError(t, err)
	assert.Equal(t, int64(100), *start)
	assert.Nil(t, end)

	for _, bad := range []string{"-5", "abc", "5", "9-3", "1-x"} {
		_, _, err := parseRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/plain", contentTypeFor("text/plain", "a.png", "a.png"))
	assert.Equal(t, "image/png", contentTypeFor("", "images/logo.png", "-"))
	assert.Contains(t, contentTypeFor("", "report", "./report.html"), "text/html")
	assert.Equal(t, "", contentTypeFor("", "blob", "-"))
}

func TestPresignRequest(t *testing.T) {
	req, err := presignRequest("a.txt", "put", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, apiclient.PresignRequest{Key: "a.txt", Method: "PUT", ExpiresIn: 7200}, req)

	_, err = presignRequest("a.txt", "DELETE", time.Hour)
	assert.Error(t, err)

	_, err = presignRequest("a.txt", "GET", 8*24*time.Hour)
	assert.Error(t, err)

	_, err = presignRequest("a.txt", "GET", 0)
	assert.Error(t, err)
}

func TestCopyOptions(t *testing.T) {
	opts := copyOptions("assets", "a", "b", "", nil, "")
	assert.Equal(t, "assets", opts.DestinationBucket)
	assert.Equal(t, objectstore.DirectiveCopy, opts.MetadataDirective)

	opts = copyOptions("assets", "a", "b", "backup", map[string]string{"k": "v"}, "")
	assert.Equal(t, "backup", opts.DestinationBucket)
	assert.Equal(t, objectstore.DirectiveReplace, opts.MetadataDirective)
	assert.Equal(t, map[string]string{"k": "v"}, opts.CustomMetadata)
}

func TestObjectListingRows(t *testing.T) {
	listing := objectListing{
		CommonPrefixes: []string{"images/"},
		Objects:        []objectstore.ObjectSummary{{Key: "readme.txt", Size: 2048, ETag: "abc"}},
	}
	rows := listing.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"images/", "PRE", "", ""}, rows[0])
	assert.Equal(t, "readme.txt", rows[1][0])
	assert.Equal(t, "abc", rows[1][3])
}

func TestPutHeadAndList(t *testing.T) {
	setOutput(t, "table")
	client := newClient(t)
	ctx := context.Background()

	var buf bytes.Buffer
	req := putRequest{
		Bucket: "assets",
		Key:    "docs/readme.txt",
		Options: apiclient.PutObjectOptions{
			ContentType:    "text/plain",
			CustomMetadata: map[string]string{"owner": "ci"},
		},
		PartSize: 1024,
		MD5:      true,
	}
	require.NoError(t, put(ctx, &buf, client, req, source("hello world")))
	assert.Contains(t, buf.String(), "Uploaded assets/docs/readme.txt (11 bytes")

	buf.Reset()
	require.NoError(t, head(&buf, client, "assets", "docs/readme.txt"))
	out := buf.String()
	assert.Contains(t, out, "text/plain")
	assert.Contains(t, out, "meta.owner")
	assert.Contains(t, out, "ci")

	buf.Reset()
	require.NoError(t, listObjects(&buf, client, "assets", objectstore.ListObjectsOptions{Delimiter: "/"}))
	assert.Contains(t, buf.String(), "docs/")
	assert.Contains(t, buf.String(), "PRE")

	buf.Reset()
	require.NoError(t, listObjects(&buf, client, "backup", objectstore.ListObjectsOptions{}))
	assert.Equal(t, "No objects.\n", buf.String())
}

func TestPutMultipart(t *testing.T) {
	setOutput(t, "table")
	client := newClient(t)
	payload := strings.Repeat("0123456789", 5)

	var buf bytes.Buffer
	req := putRequest{Bucket: "backup", Key: "big.bin", PartSize: 16, Concurrency: 3}
	require.NoError(t, put(context.Background(), &buf, client, req, source(payload)))
	assert.Contains(t, buf.String(), "50 bytes in 4 parts")

	obj, err := client.GetObject("backup", "big.bin", apiclient.GetObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, payload, string(obj.Data))

	uploads, err := client.ListMultipartUploads("backup")
	require.NoError(t, err)
	assert.Empty(t, *uploads.Data)
}

func TestCopyObject(t *testing.T) {
	setOutput(t, "table")
	client := newClient(t)
	_, err := client.PutObject("assets", "a.txt", []byte("abc"), apiclient.PutObjectOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, copyObject(&buf, client, copyOptions("assets", "a.txt", "b.txt", "backup", nil, "")))
	assert.Contains(t, buf.String(), "Copied assets/a.txt to backup/b.txt (3 bytes)")

	obj, err := client.GetObject("backup", "b.txt", apiclient.GetObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "abc", string(obj.Data))

	err = copyObject(&buf, client, copyOptions("assets", "missing", "c.txt", "", nil, ""))
	require.Error(t, err)
}

func TestListUploads(t *testing.T) {
	setOutput(t, "table")
	client := newClient(t)

	var buf bytes.Buffer
	require.NoError(t, listUploads(&buf, client, ""))
	assert.Equal(t, "No multipart uploads in progress.\n", buf.String())

	created, err := client.CreateMultipartUpload("assets", apiclient.CreateMultipartRequest{Key: "pending.bin"})
	require.NoError(t, err)
	_, err = client.UploadPart("assets", "pending.bin", created.Data.UploadID, 1, []byte("part"))
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, listUploads(&buf, client, "assets"))
	assert.Contains(t, buf.String(), created.Data.UploadID)
	assert.Contains(t, buf.String(), "pending.bin")

	buf.Reset()
	require.NoError(t, listUploads(&buf, client, "backup"))
	assert.Equal(t, "No multipart uploads in progress.\n", buf.String())
}
