package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
)

var versionShort bool

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

func currentBuild() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Print the cfmgr version with its commit, build date and platform.
Use -o json or -o yaml for machine-readable output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionShort {
			_, err := fmt.Fprintln(out, Version)
			return err
		}

		p, err := cmdutil.Printer(out)
		if err != nil {
			return err
		}
		info := currentBuild()
		if p.Format() != output.FormatTable {
			return p.Print(info)
		}
		p.Printf("cfmgr %s\n", info.Version)
		return output.KeyValues(out, [][2]string{
			{"Commit", info.Commit},
			{"Built", info.BuildDate},
			{"Go version", info.GoVersion},
			{"OS/Arch", info.Platform},
		})
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show only version number")
}
