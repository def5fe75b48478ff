package token

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/prompt"
	"github.com/marmos91/cfmgr/pkg/api/auth"
)

var hashKeyStdin bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key",
	Short: "Hash an API key for auth.api_key_hash",
	Long: `Print the bcrypt hash of an API key. Put the hash in auth.api_key_hash
so the plain key never needs to be stored in the configuration file.

The key is prompted for without echo, or read from stdin with --stdin.

Examples:
  cfmgr token hash-key
  echo -n "$CFMGR_KEY" | cfmgr token hash-key --stdin`,
	Args: cobra.NoArgs,
	RunE: runHashKey,
}

func init() {
	hashKeyCmd.Flags().BoolVar(&hashKeyStdin, "stdin", false, "Read the key from stdin")
}

func runHashKey(cmd *cobra.Command, args []string) error {
	var key string
	if hashKeyStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read key from stdin: %w", err)
		}
		key = strings.TrimRight(line, "\r\n")
	} else {
		var err error
		key, err = prompt.Secret("API key")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	if key == "" {
		return fmt.Errorf("API key must not be empty")
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
