// Package db implements the row-store (D1) commands.
package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

// Cmd is the parent command for row-store management.
var Cmd = &cobra.Command{
	Use:     "db",
	Aliases: []string{"d1"},
	Short:   "Query and manage SQL databases",
	Long: `Query and manage the SQL databases of a cfmgr server.

Every command except migrate talks to the server of the current context
(see 'cfmgr login'). migrate opens the databases of the local
configuration file directly.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(queryCmd)
	Cmd.AddCommand(execCmd)
	Cmd.AddCommand(batchCmd)
	Cmd.AddCommand(tablesCmd)
	Cmd.AddCommand(exportCmd)
	Cmd.AddCommand(importCmd)
	Cmd.AddCommand(migrateCmd)
}

// parseParams builds bind parameters from repeated --param values or a
// --params JSON document. A --param value that parses as JSON keeps its
// JSON type; anything else is bound as a string.
func parseParams(values []string, paramsJSON string) (rowstore.Params, error) {
	var params rowstore.Params
	if paramsJSON != "" && len(values) > 0 {
		return params, fmt.Errorf("--param and --params are mutually exclusive")
	}

	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			return params, fmt.Errorf("invalid --params: %w", err)
		}
		return params, nil
	}
	if len(values) == 0 {
		return params, nil
	}

	items := make([]string, len(values))
	for i, v := range values {
		if json.Valid([]byte(v)) {
			items[i] = v
			continue
		}
		quoted, err := json.Marshal(v)
		if err != nil {
			return params, err
		}
		items[i] = string(quoted)
	}
	if err := json.Unmarshal([]byte("["+strings.Join(items, ",")+"]"), &params); err != nil {
		return params, fmt.Errorf("invalid --param: %w", err)
	}
	return params, nil
}

// resultError turns a failed local envelope into an error.
func resultError(e *envelope.Error) error {
	if e == nil {
		return fmt.Errorf("operation failed")
	}
	return fmt.Errorf("%s: %s", e.Code, e.Message)
}
