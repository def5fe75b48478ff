// Package bucket implements the object-store (R2) commands.
package bucket

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Cmd is the parent command for object-store management.
var Cmd = &cobra.Command{
	Use:     "bucket",
	Aliases: []string{"r2", "buckets"},
	Short:   "Manage buckets and objects",
	Long: `List buckets and upload, download, copy and delete objects on the
server of the current context.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(lsCmd)
	Cmd.AddCommand(putCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(headCmd)
	Cmd.AddCommand(rmCmd)
	Cmd.AddCommand(cpCmd)
	Cmd.AddCommand(presignCmd)
	Cmd.AddCommand(multipartCmd)
}

// parseRange parses a --range value, "start-end" or "start-". Both bounds
// are inclusive.
func parseRange(s string) (start, end *int64, err error) {
	if s == "" {
		return nil, nil, nil
	}
	lo, hi, ok := strings.Cut(s, "-")
	if !ok || lo == "" {
		return nil, nil, fmt.Errorf("invalid range %q: expected start-end or start-", s)
	}

	from, err := strconv.ParseInt(lo, 10, 64)
	if err != nil || from < 0 {
		return nil, nil, fmt.Errorf("invalid range start %q", lo)
	}
	start = &from
	if hi == "" {
		return start, nil, nil
	}

	to, err := strconv.ParseInt(hi, 10, 64)
	if err != nil || to < from {
		return nil, nil, fmt.Errorf("invalid range end %q", hi)
	}
	return start, &to, nil
}
