// Package output renders command results as tables, JSON or YAML.
package output

import (
	"fmt"
	"strings"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// Format is the value of the global --output flag.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json, yaml and yml in any case. The empty
// string means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
}

// Summary renders the counters of an envelope Meta as one line, e.g.
// "(3 items, 1.2 KiB, 0.42 ms)".
func Summary(meta *envelope.Meta) string {
	parts := make([]string, 0, 4)
	if meta.Count != nil {
		parts = append(parts, fmt.Sprintf("%d items", *meta.Count))
	}
	if meta.TotalSize != nil {
		parts = append(parts, HumanBytes(*meta.TotalSize))
	}
	if n := meta.CommonPrefixCount; n != nil && *n > 0 {
		parts = append(parts, fmt.Sprintf("%d prefixes", *n))
	}
	parts = append(parts, fmt.Sprintf("%.2f ms", meta.DurationMs))
	return "(" + strings.Join(parts, ", ") + ")"
}
