package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/config"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
	logsLevel  string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the cfmgr server logs.

The log file is logging.output from the configuration. When the server
logs to stdout or stderr, the daemon log file written by 'cfmgr start' is
used instead.

Examples:
  # Show last 100 lines (default)
  cfmgr logs

  # Follow logs in real-time
  cfmgr logs -f

  # Show logs since a specific time
  cfmgr logs --since "2026-01-15T10:00:00Z"

  # Only warnings and errors
  cfmgr logs --level warn`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Only show entries at or above this level")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logPath, err := resolveLogFile(cfg.Logging.Output)
	if err != nil {
		return err
	}

	filter, err := newLogFilter(logsSince, logsLevel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if logsFollow {
		return followLogs(out, logPath, logsLines, filter)
	}
	return showLogs(out, logPath, logsLines, filter)
}

// logFilter drops entries older than since or below minLevel. Lines whose
// time or level cannot be read are kept.
type logFilter struct {
	since    time.Time
	minLevel logger.Level
}

func newLogFilter(since, level string) (logFilter, error) {
	var f logFilter
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return f, fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
		f.since = t
	}
	if level != "" {
		l, err := logger.ParseLevel(level)
		if err != nil {
			return f, err
		}
		f.minLevel = l
	}
	return f, nil
}

func (f logFilter) keep(line string) bool {
	if !f.since.IsZero() {
		if t := extractTimestamp(line); !t.IsZero() && t.Before(f.since) {
			return false
		}
	}
	if f.minLevel > logger.LevelDebug {
		if l, ok := extractLevel(line); ok && l < f.minLevel {
			return false
		}
	}
	return true
}

// resolveLogFile picks the file holding the server logs.
func resolveLogFile(configured string) (string, error) {
	path := configured
	if path == "stdout" || path == "stderr" {
		path = GetDefaultLogFile()
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("server is configured to log to %s, not a file\nConfigure 'logging.output' in config to a file path to use this command", configured)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("log file not found: %s\nThe server may not have started yet or is logging elsewhere", path)
	}
	return path, nil
}

// showLogs writes the last lines of logFile that pass filter.
func showLogs(w io.Writer, logFile string, lines int, filter logFilter) error {
	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var tail []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !filter.keep(line) {
			continue
		}
		tail = append(tail, line)
		if lines > 0 && len(tail) > lines {
			tail = tail[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	for _, line := range tail {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// followLogs prints the tail of logFile, then new lines as they are
// written, until interrupted.
func followLogs(w io.Writer, logFile string, initialLines int, filter logFilter) error {
	if err := showLogs(w, logFile, initialLines, filter); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logFile); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of log file: %w", err)
	}
	reader := bufio.NewReader(file)
	var partial string

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Following %s (Ctrl+C to stop)...\n", logFile)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			for {
				chunk, err := reader.ReadString('\n')
				if err != nil {
					// Unterminated line: finish it on the next write.
					partial += chunk
					break
				}
				line := partial + chunk
				partial = ""
				if filter.keep(strings.TrimRight(line, "\n")) {
					_, _ = fmt.Fprint(w, line)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// textTimeLayout is the timestamp of the text log handler, in local time.
const textTimeLayout = "2006-01-02 15:04:05.000"

// extractTimestamp reads the time of a log line: the "time" field of a
// JSON line, or the bracketed timestamp that starts a text line.
func extractTimestamp(line string) time.Time {
	if strings.HasPrefix(line, "{") {
		if v := gjson.Get(line, "time"); v.Exists() {
			if t, err := time.Parse(time.RFC3339Nano, v.String()); err == nil {
				return t
			}
		}
		return time.Time{}
	}

	if len(line) > len(textTimeLayout)+1 && line[0] == '[' {
		if t, err := time.ParseInLocation(textTimeLayout, line[1:len(textTimeLayout)+1], time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// extractLevel reads the level of a JSON line's "level" field or of the
// second bracketed field of a text line.
func extractLevel(line string) (logger.Level, bool) {
	var name string
	if strings.HasPrefix(line, "{") {
		name = gjson.Get(line, "level").String()
	} else if rest, ok := strings.CutPrefix(line, "["); ok {
		_, rest, _ = strings.Cut(rest, "] [")
		name, _, _ = strings.Cut(rest, "]")
	}
	if name == "" {
		return 0, false
	}
	l, err := logger.ParseLevel(name)
	return l, err == nil
}
