package prompt

import (
	"strings"

	"github.com/manifoldco/promptui"
)

// SelectOption is one entry of a Select list. Description is shown below
// the list for the highlighted entry.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

const selectPageSize = 10

// Select shows options and returns the Value of the chosen one. Typing "/"
// filters the list by label.
func Select(label string, options []SelectOption) (string, error) {
	p := promptui.Select{
		Label: label,
		Items: options,
		Size:  selectPageSize,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Label | cyan }}",
			Inactive: "  {{ .Label }}",
			Selected: "{{ .Label | green }}",
			Details:  `{{ if .Description }}{{ .Description | faint }}{{ end }}`,
		},
		Searcher: func(input string, i int) bool {
			return strings.Contains(strings.ToLower(options[i].Label), strings.ToLower(input))
		},
	}

	i, _, err := p.Run()
	if err != nil {
		return "", wrapError(err)
	}
	return options[i].Value, nil
}
