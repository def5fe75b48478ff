package bucket

import (
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/internal/cli/timeutil"
	"github.com/marmos91/cfmgr/pkg/apiclient"
)

var headCmd = &cobra.Command{
	Use:     "head <bucket> <key>",
	Aliases: []string{"stat"},
	Short:   "Show object metadata",
	Long: `Show the size, ETag, content type and custom metadata of an object
without downloading it.

Examples:
  cfmgr bucket head assets images/logo.png
  cfmgr bucket head assets images/logo.png -o json`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: cmdutil.CompleteBuckets,
	RunE:              runHead,
}

func runHead(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return head(os.Stdout, client, args[0], args[1])
}

func head(w io.Writer, client *apiclient.Client, bucket, key string) error {
	res, err := client.GetObjectMetadata(bucket, key)
	if err != nil {
		return cmdutil.Describe(err)
	}

	p, err := cmdutil.Printer(w)
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(res)
	}

	info := res.Data
	pairs := [][2]string{
		{"Bucket", info.Bucket},
		{"Key", info.Key},
		{"Size", output.HumanBytes(info.Size) + " (" + strconv.FormatInt(info.Size, 10) + " bytes)"},
		{"ETag", info.ETag},
		{"Content-Type", cmdutil.EmptyOr(info.ContentType, "-")},
		{"Cache-Control", cmdutil.EmptyOr(info.CacheControl, "-")},
	}
	if info.UploadedAt != "" {
		pairs = append(pairs, [2]string{"Uploaded", timeutil.FormatTime(info.UploadedAt)})
	}

	keys := make([]string, 0, len(info.CustomMetadata))
	for k := range info.CustomMetadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, [2]string{"meta." + k, info.CustomMetadata[k]})
	}
	return output.KeyValues(w, pairs)
}
