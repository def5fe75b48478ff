package bucket

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/internal/cli/timeutil"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/objectstore"
)

var (
	lsDelimiter string
	lsRecursive bool
	lsLimit     int
	lsCursor    string
	lsMetadata  bool
)

var lsCmd = &cobra.Command{
	Use:   "ls <bucket> [prefix]",
	Short: "List objects",
	Long: `List the objects of a bucket, one page at a time.

By default keys are grouped at "/" like directories; --recursive lists
every key under the prefix. When the listing is truncated the cursor for
the next page is printed.

Examples:
  # Top-level entries
  cfmgr bucket ls assets

  # Everything under images/
  cfmgr bucket ls assets images/ --recursive

  # Next page
  cfmgr bucket ls assets --limit 100 --cursor <cursor>`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: cmdutil.CompleteBuckets,
	RunE:              runLs,
}

func init() {
	lsCmd.Flags().StringVar(&lsDelimiter, "delimiter", "/", "Group keys by this delimiter")
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "List all keys without grouping")
	lsCmd.Flags().IntVar(&lsLimit, "limit", 0, "Maximum number of objects (server default when 0)")
	lsCmd.Flags().StringVar(&lsCursor, "cursor", "", "Continue a truncated listing")
	lsCmd.Flags().BoolVar(&lsMetadata, "metadata", false, "Include content type and custom metadata")
}

// objectListing renders a ListData page: common prefixes first, then
// objects.
type objectListing objectstore.ListData

func (l objectListing) Headers() []string {
	return []string{"KEY", "SIZE", "UPLOADED", "ETAG"}
}

func (l objectListing) Rows() [][]string {
	rows := make([][]string, 0, len(l.CommonPrefixes)+len(l.Objects))
	for _, p := range l.CommonPrefixes {
		rows = append(rows, []string{p, "PRE", "", ""})
	}
	for _, o := range l.Objects {
		uploaded := ""
		if o.UploadedAt != "" {
			uploaded = timeutil.FormatTime(o.UploadedAt)
		}
		rows = append(rows, []string{o.Key, output.HumanBytes(o.Size), uploaded, o.ETag})
	}
	return rows
}

func runLs(cmd *cobra.Command, args []string) error {
	opts := objectstore.ListObjectsOptions{
		Delimiter:       lsDelimiter,
		Limit:           lsLimit,
		Cursor:          lsCursor,
		IncludeMetadata: lsMetadata,
	}
	if len(args) == 2 {
		opts.Prefix = args[1]
	}
	if lsRecursive {
		opts.Delimiter = ""
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return listObjects(os.Stdout, client, args[0], opts)
}

func listObjects(w io.Writer, client *apiclient.Client, bucket string, opts objectstore.ListObjectsOptions) error {
	res, err := client.ListObjects(bucket, opts)
	if err != nil {
		return cmdutil.Describe(err)
	}

	p, err := cmdutil.Printer(w)
	if err != nil {
		return err
	}
	data := res.Data
	if p.Format() != output.FormatTable {
		return p.Print(res)
	}
	if len(data.Objects) == 0 && len(data.CommonPrefixes) == 0 {
		p.Println("No objects.")
		return nil
	}
	if err := p.PrintResult(objectListing(*data), res, res.Meta); err != nil {
		return err
	}
	if data.Truncated {
		p.Printf("More results: --cursor %s\n", data.Cursor)
	}
	return nil
}
