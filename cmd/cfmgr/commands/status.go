package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/internal/cli/timeutil"
	"github.com/marmos91/cfmgr/pkg/apiclient"
)

var (
	statusPidFile string
	statusAPIPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the cfmgr server.

This command checks the PID file and calls the readiness endpoint, which
pings every database and bucket.

Examples:
  # Check the local server
  cfmgr status

  # Check a server on another port
  cfmgr status --api-port 9080

  # Check a remote server
  cfmgr status --server https://cfmgr.example.com

  # Output as JSON
  cfmgr status -o json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/cfmgr/cfmgr.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 8080, "API server port of the local server")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Running   bool              `json:"running" yaml:"running"`
	PID       int               `json:"pid,omitempty" yaml:"pid,omitempty"`
	Healthy   bool              `json:"healthy" yaml:"healthy"`
	Message   string            `json:"message" yaml:"message"`
	Server    string            `json:"server" yaml:"server"`
	Version   string            `json:"version,omitempty" yaml:"version,omitempty"`
	CheckedAt string            `json:"checked_at,omitempty" yaml:"checked_at,omitempty"`
	Failing   map[string]string `json:"failing,omitempty" yaml:"failing,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	serverURL := cmdutil.Flags.ServerURL
	if serverURL == "" {
		serverURL = fmt.Sprintf("http://localhost:%d", statusAPIPort)
	}

	status := checkStatus(pidPath, apiclient.New(serverURL))

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(output.NewPrinter(os.Stdout, format, !cmdutil.IsColorDisabled()), status)
	}
	return nil
}

// checkStatus combines the PID file with the readiness probe.
func checkStatus(pidPath string, client *apiclient.Client) ServerStatus {
	status := ServerStatus{Server: client.BaseURL(), Message: "Server is not running"}

	if pid, running := isProcessRunning(pidPath); running {
		status.Running = true
		status.PID = pid
	}

	health, err := client.Ready()
	switch {
	case health != nil:
		status.Running = true
		status.Version = health.Version
		status.CheckedAt = health.Timestamp
		status.Healthy = err == nil
		status.Failing = failingStores(health)
		if status.Healthy {
			status.Message = "Server is running and healthy"
		} else {
			status.Message = fmt.Sprintf("Server is running but unhealthy: %d store(s) failing", len(status.Failing))
		}
	case err != nil && status.Running:
		status.Message = "Server process exists but health check failed: " + err.Error()
	}

	return status
}

// failingStores merges the failing databases and buckets of a readiness
// report, prefixed with their kind.
func failingStores(h *apiclient.HealthStatus) map[string]string {
	if len(h.Databases) == 0 && len(h.Buckets) == 0 {
		return nil
	}
	out := make(map[string]string, len(h.Databases)+len(h.Buckets))
	for name, msg := range h.Databases {
		out["database/"+name] = msg
	}
	for name, msg := range h.Buckets {
		out["bucket/"+name] = msg
	}
	return out
}

func printStatusTable(p *output.Printer, status ServerStatus) {
	p.Println()
	p.Println("cfmgr Server Status")
	p.Println("===================")
	p.Println()

	switch {
	case status.Running && status.Healthy:
		p.Success("  Status:     ● Running")
	case status.Running:
		p.Warning("  Status:     ● Running (unhealthy)")
	default:
		p.Error("  Status:     ○ Stopped")
	}

	if status.PID > 0 {
		p.Printf("  PID:        %d\n", status.PID)
	}
	p.Printf("  Server:     %s\n", status.Server)
	if status.Version != "" {
		p.Printf("  Version:    %s\n", status.Version)
	}
	if status.CheckedAt != "" {
		p.Printf("  Checked:    %s\n", timeutil.FormatTime(status.CheckedAt))
	}

	if len(status.Failing) > 0 {
		p.Println()
		names := make([]string, 0, len(status.Failing))
		for name := range status.Failing {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p.Printf("  %-24s %s\n", name, status.Failing[name])
		}
	}

	p.Println()
	p.Printf("  %s\n", status.Message)
	p.Println()
}
