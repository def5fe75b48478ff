// Package cmdutil provides shared utilities for cfmgr commands.
package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/marmos91/cfmgr/internal/cli/credentials"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/internal/cli/prompt"
	"github.com/marmos91/cfmgr/pkg/apiclient"
	"github.com/marmos91/cfmgr/pkg/envelope"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile string
	ServerURL  string
	APIKey     string
	Token      string
	Output     string
	NoColor    bool
	Verbose    bool
}

// openStore is replaced in tests.
var openStore = credentials.NewStore

// GetAuthenticatedClient returns an API client for the current context.
// The --server, --api-key and --token flags override the stored values;
// with --server and a credential given, the credential store is not read.
func GetAuthenticatedClient() (*apiclient.Client, error) {
	if Flags.ServerURL != "" && (Flags.APIKey != "" || Flags.Token != "") {
		return newClient(Flags.ServerURL, Flags.APIKey, Flags.Token), nil
	}

	store, err := openStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	ctx, err := store.GetCurrentContext()
	if err != nil {
		if Flags.ServerURL != "" {
			// Public servers need no credentials.
			return newClient(Flags.ServerURL, "", ""), nil
		}
		return nil, credentials.ErrNotLoggedIn
	}

	url := ctx.ServerURL
	if Flags.ServerURL != "" {
		url = Flags.ServerURL
	}
	if url == "" {
		return nil, fmt.Errorf("no server URL configured. Run 'cfmgr login --server <url>' first")
	}

	apiKey, token := ctx.APIKey, ctx.Token
	if Flags.APIKey != "" {
		apiKey, token = Flags.APIKey, ""
	}
	if Flags.Token != "" {
		apiKey, token = "", Flags.Token
	}

	if token != "" && token == ctx.Token && ctx.IsExpired() {
		return nil, fmt.Errorf("token for context %q expired. Run 'cfmgr login' to re-authenticate", store.GetCurrentContextName())
	}

	return newClient(url, apiKey, token), nil
}

func newClient(url, apiKey, token string) *apiclient.Client {
	client := apiclient.New(url)
	if apiKey != "" {
		client.SetAPIKey(apiKey)
	}
	if token != "" {
		client.SetToken(token)
	}
	return client
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// Printer returns a printer for the global output flags.
func Printer(w io.Writer) (*output.Printer, error) {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(w, format, !IsColorDisabled()), nil
}

// PrintOutput prints data in the selected format. For table format it
// prints emptyMsg when isEmpty is set, otherwise the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintEnvelope prints a successful manager result. JSON and YAML print
// the envelope as returned by the server; table format prints the
// rendered table and the meta summary.
func PrintEnvelope[T any](w io.Writer, res *envelope.Result[T], table output.TableRenderer) error {
	p, err := Printer(w)
	if err != nil {
		return err
	}
	return p.PrintResult(table, res, res.Meta)
}

// PrintEnvelopeWithSuccess prints msg in table format and the envelope in
// JSON or YAML.
func PrintEnvelopeWithSuccess[T any](w io.Writer, res *envelope.Result[T], msg string) error {
	p, err := Printer(w)
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(res)
	}
	p.Success(msg)
	if res.Meta != nil {
		p.Println(output.Summary(res.Meta))
	}
	return nil
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	output.NewPrinter(os.Stdout, format, !IsColorDisabled()).Success(msg)
}

// PrintResource prints a resource in the selected format.
func PrintResource(w io.Writer, data any, tableRenderer output.TableRenderer) error {
	return PrintOutput(w, data, false, "", tableRenderer)
}

// RunDeleteWithConfirmation prompts for confirmation (unless force is
// true) and runs deleteFn.
func RunDeleteWithConfirmation(resourceType, name string, force bool, deleteFn func() error) error {
	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s '%s'?", resourceType, name), force)
	if err != nil {
		return HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := deleteFn(); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s '%s' deleted successfully", resourceType, name))
	return nil
}

// HandleAbort checks if err is an abort (Ctrl+C) and prints a message.
// Returns nil for abort, otherwise the original error.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

// ParseCommaSeparatedList parses a comma-separated string into a slice of
// trimmed, non-empty strings.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// ParseKeyValues parses "k=v" pairs, as given to repeated --meta flags.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair: %q", pair)
		}
		out[k] = v
	}
	return out, nil
}

// BoolToYesNo converts a boolean to "yes" or "no".
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns value if not empty, otherwise fallback.
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ReadInput returns the contents of path, or of stdin when path is "-".
func ReadInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Describe adds a hint to well-known API errors.
func Describe(err error) error {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.IsAuthError():
		return fmt.Errorf("%w\nCheck your credentials or run 'cfmgr login'", err)
	default:
		return err
	}
}
