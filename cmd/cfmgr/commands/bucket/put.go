package bucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/bytesize"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/objectstore"
)

const (
	defaultPartSize    = "8MiB"
	defaultConcurrency = 4
)

var (
	putContentType  string
	putCacheControl string
	putMeta         []string
	putMD5          bool
	putPartSize     string
	putConcurrency  int
)

var putCmd = &cobra.Command{
	Use:   "put <bucket> <key> <file>",
	Short: "Upload an object",
	Long: `Upload a file, or stdin with "-", as an object.

Files larger than --part-size are sent as a multipart upload with
--concurrency parts in flight. A failed multipart upload is aborted.

Examples:
  # Upload a file; the content type comes from the extension
  cfmgr bucket put assets images/logo.png ./logo.png

  # Upload stdin with metadata and an integrity check
  tar cz src | cfmgr bucket put backup src.tgz - --meta owner=ci --md5

  # Large file in 16 MiB parts
  cfmgr bucket put backup db.dump ./db.dump --part-size 16MiB`,
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: cmdutil.CompleteBuckets,
	RunE:              runPut,
}

func init() {
	putCmd.Flags().StringVar(&putContentType, "content-type", "", "Content type (default: from the file extension)")
	putCmd.Flags().StringVar(&putCacheControl, "cache-control", "", "Cache-Control value")
	putCmd.Flags().StringArrayVar(&putMeta, "meta", nil, "Custom metadata key=value (repeatable)")
	putCmd.Flags().BoolVar(&putMD5, "md5", false, "Send a Content-MD5 digest for a single-request upload")
	putCmd.Flags().StringVar(&putPartSize, "part-size", defaultPartSize, "Part size for multipart uploads")
	putCmd.Flags().IntVar(&putConcurrency, "concurrency", defaultConcurrency, "Parts uploaded in parallel")
}

// uploadSource is the payload of put: a file or buffered stdin.
type uploadSource struct {
	r    io.ReaderAt
	size int64
	c    io.Closer
}

func openSource(path string) (*uploadSource, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return &uploadSource{r: bytes.NewReader(data), size: int64(len(data))}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &uploadSource{r: f, size: info.Size(), c: f}, nil
}

func (s *uploadSource) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// contentTypeFor returns the explicit type or the one registered for the
// extension of key, then of path.
func contentTypeFor(explicit, key, path string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{key, path} {
		if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
			return t
		}
	}
	return ""
}

// putRequest holds everything put needs besides the payload.
type putRequest struct {
	Bucket      string
	Key         string
	Options     apiclient.PutObjectOptions
	PartSize    int64
	Concurrency int
	MD5         bool
}

func runPut(cmd *cobra.Command, args []string) error {
	bucket, key, path := args[0], args[1], args[2]

	meta, err := cmdutil.ParseKeyValues(putMeta)
	if err != nil {
		return err
	}
	partSize, err := bytesize.ParseByteSize(putPartSize)
	if err != nil {
		return fmt.Errorf("invalid --part-size: %w", err)
	}
	if partSize.Int64() <= 0 {
		return fmt.Errorf("--part-size must be positive")
	}

	src, err := openSource(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	req := putRequest{
		Bucket: bucket,
		Key:    key,
		Options: apiclient.PutObjectOptions{
			ContentType:    contentTypeFor(putContentType, key, path),
			CacheControl:   putCacheControl,
			CustomMetadata: meta,
		},
		PartSize:    partSize.Int64(),
		Concurrency: putConcurrency,
		MD5:         putMD5,
	}
	return put(cmd.Context(), os.Stdout, client, req, src)
}

func put(ctx context.Context, w io.Writer, client *apiclient.Client, req putRequest, src *uploadSource) error {
	if src.size > req.PartSize {
		res, err := uploadMultipart(ctx, client, req, src.r, src.size)
		if err != nil {
			return cmdutil.Describe(err)
		}
		d := res.Data
		return cmdutil.PrintEnvelopeWithSuccess(w, res,
			fmt.Sprintf("Uploaded %s/%s (%d bytes in %d parts, etag %s)", d.Bucket, d.Key, d.Size, d.Parts, d.ETag))
	}

	data := make([]byte, src.size)
	if _, err := src.r.ReadAt(data, 0); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	opts := req.Options
	if req.MD5 {
		opts.ContentMD5 = objectstore.ContentMD5(data)
	}

	res, err := client.PutObject(req.Bucket, req.Key, data, opts)
	if err != nil {
		return cmdutil.Describe(err)
	}
	d := res.Data
	return cmdutil.PrintEnvelopeWithSuccess(w, res,
		fmt.Sprintf("Uploaded %s/%s (%d bytes, etag %s)", d.Bucket, d.Key, d.Size, d.ETag))
}

// uploadMultipart sends r in parts of req.PartSize with at most
// req.Concurrency parts in flight, then completes the upload. Any failure
// aborts it.
func uploadMultipart(ctx context.Context, client *apiclient.Client, req putRequest, r io.ReaderAt, size int64) (*envelope.Result[objectstore.CompleteData], error) {
	created, err := client.CreateMultipartUpload(req.Bucket, apiclient.CreateMultipartRequest{
		Key:            req.Key,
		ContentType:    req.Options.ContentType,
		CacheControl:   req.Options.CacheControl,
		CustomMetadata: req.Options.CustomMetadata,
	})
	if err != nil {
		return nil, err
	}
	uploadID := created.Data.UploadID

	count := int((size + req.PartSize - 1) / req.PartSize)
	if count > objectstore.MaxPartNumber {
		_, _ = client.AbortMultipartUpload(req.Bucket, req.Key, uploadID)
		return nil, fmt.Errorf("%d parts exceed the limit of %d, use a larger --part-size", count, objectstore.MaxPartNumber)
	}
	parts := make([]objectstore.UploadedPart, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(req.Concurrency, 1))
	for i := range count {
		offset := int64(i) * req.PartSize
		length := min(req.PartSize, size-offset)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			buf := make([]byte, length)
			if _, err := r.ReadAt(buf, offset); err != nil && err != io.EOF {
				return fmt.Errorf("failed to read part %d: %w", i+1, err)
			}
			res, err := client.UploadPart(req.Bucket, req.Key, uploadID, i+1, buf)
			if err != nil {
				return fmt.Errorf("part %d: %w", i+1, err)
			}
			parts[i] = objectstore.UploadedPart{PartNumber: res.Data.PartNumber, ETag: res.Data.ETag}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_, _ = client.AbortMultipartUpload(req.Bucket, req.Key, uploadID)
		return nil, err
	}

	res, err := client.CompleteMultipartUpload(req.Bucket, req.Key, uploadID, parts)
	if err != nil {
		_, _ = client.AbortMultipartUpload(req.Bucket, req.Key, uploadID)
		return nil, err
	}
	return res, nil
}
