package base

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render encodes v as indented JSON or as YAML. YAML output is produced from
// the JSON form so that both formats use the same field names.
func Render(format string, v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error encoding output: %w", err)
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
		return string(b), nil
	case FormatYAML:
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return "", fmt.Errorf("error encoding output: %w", err)
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return "", fmt.Errorf("error encoding output: %w", err)
		}
		return strings.TrimRight(string(out), "\n"), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want %s or %s)", format, FormatJSON, FormatYAML)
	}
}

// Output renders v and writes it to the command's UI.
func (c *Command) Output(format string, v any) error {
	s, err := Render(format, v)
	if err != nil {
		return err
	}
	c.UI.Output(s)
	return nil
}
