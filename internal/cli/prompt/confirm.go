// Package prompt provides the interactive terminal prompts of the cfmgr
// CLI.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted returns true if the error indicates the user aborted (Ctrl+C).
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err != nil && IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Confirm asks a yes/no question. "n" and an empty answer decline.
func Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	result, err := p.Run()
	switch {
	case errors.Is(err, promptui.ErrInterrupt):
		return false, ErrAborted
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case err != nil:
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(result))
	return answer == "y" || answer == "yes", nil
}

// ConfirmWithForce returns true immediately if force is set, otherwise it
// asks label.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label)
}

// ConfirmDrop asks the user to type name back before a destructive
// operation such as dropping a table.
func ConfirmDrop(kind, name string, force bool) (bool, error) {
	if force {
		return true, nil
	}

	p := promptui.Prompt{
		Label:    fmt.Sprintf("Type the %s name '%s' to confirm", kind, name),
		Validate: matchValidator(name),
	}

	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, wrapError(err)
	}
	return result == name, nil
}

func matchValidator(want string) promptui.ValidateFunc {
	return func(input string) error {
		if input != want {
			return fmt.Errorf("type '%s' to confirm", want)
		}
		return nil
	}
}
