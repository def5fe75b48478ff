package bucket

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/objectstore"
)

var (
	cpToBucket     string
	cpMeta         []string
	cpCacheControl string
)

var cpCmd = &cobra.Command{
	Use:   "cp <bucket> <source-key> <destination-key>",
	Short: "Copy an object",
	Long: `Copy an object within a bucket or to another bucket with --to-bucket.

The source metadata is kept unless --meta or --cache-control is given, in
which case the copy carries only the new values.

Examples:
  # Duplicate within a bucket
  cfmgr bucket cp assets images/logo.png images/logo-v1.png

  # Copy to another bucket with new metadata
  cfmgr bucket cp assets report.pdf report.pdf --to-bucket backup --meta archived=true`,
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: cmdutil.CompleteBuckets,
	RunE:              runCp,
}

func init() {
	cpCmd.Flags().StringVar(&cpToBucket, "to-bucket", "", "Destination bucket (default: the source bucket)")
	cpCmd.Flags().StringArrayVar(&cpMeta, "meta", nil, "Replace custom metadata with key=value (repeatable)")
	cpCmd.Flags().StringVar(&cpCacheControl, "cache-control", "", "Replace Cache-Control")
}

// copyOptions builds the copy request. New metadata switches the
// directive to REPLACE.
func copyOptions(bucket, src, dst, toBucket string, meta map[string]string, cacheControl string) objectstore.CopyOptions {
	opts := objectstore.CopyOptions{
		SourceBucket:      bucket,
		SourceKey:         src,
		DestinationBucket: cmdutil.EmptyOr(toBucket, bucket),
		DestinationKey:    dst,
		MetadataDirective: objectstore.DirectiveCopy,
	}
	if len(meta) > 0 || cacheControl != "" {
		opts.MetadataDirective = objectstore.DirectiveReplace
		opts.CustomMetadata = meta
		opts.CacheControl = cacheControl
	}
	return opts
}

func runCp(cmd *cobra.Command, args []string) error {
	meta, err := cmdutil.ParseKeyValues(cpMeta)
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return copyObject(os.Stdout, client, copyOptions(args[0], args[1], args[2], cpToBucket, meta, cpCacheControl))
}

func copyObject(w io.Writer, client *apiclient.Client, opts objectstore.CopyOptions) error {
	res, err := client.CopyObject(opts.SourceBucket, opts)
	if err != nil {
		return cmdutil.Describe(err)
	}
	d := res.Data
	return cmdutil.PrintEnvelopeWithSuccess(w, res,
		fmt.Sprintf("Copied %s/%s to %s/%s (%d bytes)", d.SourceBucket, d.SourceKey, d.DestinationBucket, d.DestinationKey, d.Size))
}
