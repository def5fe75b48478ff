package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
	"github.com/marmos91/cfmgr/internal/cli/prompt"
	"github.com/marmos91/cfmgr/pkg/config"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the configuration file",
	Long: `Edit a copy of the configuration file in $EDITOR (or $VISUAL, or vi).

The copy replaces the file only once it validates; otherwise you are asked
whether to reopen it. A server started with --watch-config picks up the
new logging settings immediately.`,
	RunE: runConfigEdit,
}

var errEditAborted = errors.New("edit discarded, configuration unchanged")

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path := cmdutil.Flags.ConfigFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("configuration file not found: %s\n\nCreate it with:\n  cfmgr config init --config %s", path, path)
	}

	err := editConfig(path, runEditor, func(verr error) (bool, error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%v\n\n", verr)
		return prompt.Confirm("Reopen the editor")
	})
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	cmdutil.PrintSuccess("Configuration saved to " + path)
	return nil
}

// editConfig runs edit on a scratch copy of path until the copy loads, then
// renames it over path. reopen decides whether an invalid copy is edited
// again.
func editConfig(path string, edit func(string) error, reopen func(error) (bool, error)) error {
	original, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	scratch, err := os.CreateTemp(filepath.Dir(path), ".cfmgr-edit-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create scratch copy: %w", err)
	}
	scratchPath := scratch.Name()
	defer func() { _ = os.Remove(scratchPath) }()

	_, err = scratch.Write(original)
	if cerr := scratch.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write scratch copy: %w", err)
	}

	for {
		if err := edit(scratchPath); err != nil {
			return fmt.Errorf("failed to run editor: %w", err)
		}
		_, verr := config.Load(scratchPath)
		if verr == nil {
			break
		}
		again, err := reopen(verr)
		if err != nil {
			return err
		}
		if !again {
			return errEditAborted
		}
	}

	if err := os.Chmod(scratchPath, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(scratchPath, path)
}

func runEditor(path string) error {
	editor := cmp.Or(os.Getenv("EDITOR"), os.Getenv("VISUAL"), "vi")
	argv := append(strings.Fields(editor), path)

	c := exec.Command(argv[0], argv[1:]...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	return c.Run()
}
