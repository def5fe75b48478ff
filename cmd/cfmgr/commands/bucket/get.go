package bucket

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/pkg/apiclient"
)

var getRange string

var getCmd = &cobra.Command{
	Use:   "get <bucket> <key> [file]",
	Short: "Download an object",
	Long: `Download an object to a file, or to stdout when no file or "-" is
given.

Examples:
  # Save to a file
  cfmgr bucket get assets images/logo.png ./logo.png

  # Print the first kilobyte
  cfmgr bucket get assets logs/app.log --range 0-1023`,
	Args:              cobra.RangeArgs(2, 3),
	ValidArgsFunction: cmdutil.CompleteBuckets,
	RunE:              runGet,
}

func init() {
	getCmd.Flags().StringVar(&getRange, "range", "", "Byte range to fetch (start-end or start-)")
}

func runGet(cmd *cobra.Command, args []string) error {
	start, end, err := parseRange(getRange)
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	obj, err := client.GetObject(args[0], args[1], apiclient.GetObjectOptions{RangeStart: start, RangeEnd: end})
	if err != nil {
		return cmdutil.Describe(err)
	}

	if len(args) < 3 || args[2] == "-" {
		_, err := os.Stdout.Write(obj.Data)
		return err
	}

	dest := args[2]
	if err := writeObject(dest, obj); err != nil {
		return err
	}
	msg := fmt.Sprintf("Downloaded %s/%s to %s (%d bytes)", obj.Bucket, obj.Key, dest, len(obj.Data))
	if obj.Partial {
		msg += ", " + obj.ContentRange
	}
	cmdutil.PrintSuccess(msg)
	return nil
}

func writeObject(path string, obj *apiclient.Object) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(obj.Data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
