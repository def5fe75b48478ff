package bucket

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/internal/cli/timeutil"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/objectstore"
)

var (
	presignMethod  string
	presignExpires time.Duration
)

var presignCmd = &cobra.Command{
	Use:   "presign <bucket> <key>",
	Short: "Create a time-limited URL for an object",
	Long: `Create a URL that downloads (GET) or uploads (PUT) one object without
credentials until it expires. The server needs presign.secret_key.

Examples:
  # Share a download link for a day
  cfmgr bucket presign assets report.pdf --expires 24h

  # Let a client upload directly
  cfmgr bucket presign uploads incoming/data.csv --method PUT`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: cmdutil.CompleteBuckets,
	RunE:              runPresign,
}

func init() {
	presignCmd.Flags().StringVar(&presignMethod, "method", http.MethodGet, "HTTP method the URL allows (GET|PUT)")
	presignCmd.Flags().DurationVar(&presignExpires, "expires", time.Duration(objectstore.DefaultPresignExpiry)*time.Second, "URL lifetime")
}

// presignRequest validates the flags and converts the lifetime to
// seconds.
func presignRequest(key, method string, expires time.Duration) (apiclient.PresignRequest, error) {
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPut {
		return apiclient.PresignRequest{}, fmt.Errorf("invalid --method %q: must be GET or PUT", method)
	}
	seconds := int(expires / time.Second)
	if seconds < 1 || seconds > objectstore.MaxPresignExpiry {
		return apiclient.PresignRequest{}, fmt.Errorf("--expires must be between 1s and %s",
			time.Duration(objectstore.MaxPresignExpiry)*time.Second)
	}
	return apiclient.PresignRequest{Key: key, Method: method, ExpiresIn: seconds}, nil
}

func runPresign(cmd *cobra.Command, args []string) error {
	req, err := presignRequest(args[1], presignMethod, presignExpires)
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	res, err := client.Presign(args[0], req)
	if err != nil {
		return cmdutil.Describe(err)
	}

	p, err := cmdutil.Printer(os.Stdout)
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(res)
	}
	p.Println(res.Data.URL)
	p.Printf("%s, expires %s\n", res.Data.Method, timeutil.FormatTime(res.Data.ExpiresAt))
	return nil
}
