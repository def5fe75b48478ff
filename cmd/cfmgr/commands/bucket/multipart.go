package bucket

import (
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/internal/cli/timeutil"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/objectstore"
)

var multipartCmd = &cobra.Command{
	Use:   "multipart",
	Short: "Inspect and abort multipart uploads",
}

var multipartListCmd = &cobra.Command{
	Use:     "list [bucket]",
	Aliases: []string{"ls"},
	Short:   "List open multipart uploads",
	Long: `List the multipart uploads that were created but neither completed nor
aborted, for one bucket or for all of them.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: cmdutil.CompleteBuckets,
	RunE:              runMultipartList,
}

var multipartAbortCmd = &cobra.Command{
	Use:   "abort <bucket> <key> <upload-id>",
	Short: "Abort a multipart upload",
	Long: `Abort an open multipart upload and discard its parts.

Examples:
  cfmgr bucket multipart abort backup db.dump 5f1c...`,
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: cmdutil.CompleteBuckets,
	RunE:              runMultipartAbort,
}

func init() {
	multipartCmd.AddCommand(multipartListCmd)
	multipartCmd.AddCommand(multipartAbortCmd)
}

// uploadList renders open upload sessions.
type uploadList []objectstore.UploadSession

func (l uploadList) Headers() []string {
	return []string{"UPLOAD ID", "BUCKET", "KEY", "PARTS", "SIZE", "CREATED"}
}

func (l uploadList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, u := range l {
		var size int64
		for _, p := range u.Parts {
			size += p.Size
		}
		rows = append(rows, []string{
			u.UploadID,
			u.Bucket,
			u.Key,
			strconv.Itoa(len(u.Parts)),
			output.HumanBytes(size),
			timeutil.FormatTime(u.CreatedAt),
		})
	}
	return rows
}

func runMultipartList(cmd *cobra.Command, args []string) error {
	bucket := ""
	if len(args) == 1 {
		bucket = args[0]
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return listUploads(os.Stdout, client, bucket)
}

func listUploads(w io.Writer, client *apiclient.Client, bucket string) error {
	res, err := client.ListMultipartUploads(bucket)
	if err != nil {
		return cmdutil.Describe(err)
	}

	p, err := cmdutil.Printer(w)
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable && len(*res.Data) == 0 {
		p.Println("No multipart uploads in progress.")
		return nil
	}
	return p.PrintResult(uploadList(*res.Data), res, res.Meta)
}

func runMultipartAbort(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	res, err := client.AbortMultipartUpload(args[0], args[1], args[2])
	if err != nil {
		return cmdutil.Describe(err)
	}
	return cmdutil.PrintEnvelopeWithSuccess(os.Stdout, res, "Aborted upload "+res.Data.UploadID)
}
