package prompt

import (
	"errors"
	"net/url"
	"strings"

	"github.com/manifoldco/promptui"
)

// Input prompts for text input with an optional default.
func Input(label, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}

	result, err := p.Run()
	return strings.TrimSpace(result), wrapError(err)
}

// ServerURL prompts for a server URL and only accepts http(s) URLs.
func ServerURL(defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:    "Server URL",
		Default:  defaultValue,
		Validate: validateServerURL,
	}

	result, err := p.Run()
	return strings.TrimRight(strings.TrimSpace(result), "/"), wrapError(err)
}

func validateServerURL(input string) error {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http:// or https:// URL")
	}
	return nil
}

// Secret prompts for a masked, non-empty value such as an API key.
func Secret(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("value is required")
			}
			return nil
		},
	}

	result, err := p.Run()
	return strings.TrimSpace(result), wrapError(err)
}
