package cmdutil

import (
	"strings"

	"github.com/spf13/cobra"
)

// CompleteDatabases completes the first argument with the database names
// the server reports. Errors yield no suggestions.
func CompleteDatabases(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	client, err := GetAuthenticatedClient()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	res, err := client.ListDatabases()
	if err != nil || res.Data == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withPrefix(res.Data.Databases, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// CompleteBuckets completes the first argument with bucket names.
func CompleteBuckets(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	client, err := GetAuthenticatedClient()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	res, err := client.ListBuckets()
	if err != nil || res.Data == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withPrefix(res.Data.Buckets, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func withPrefix(names []string, prefix string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}
