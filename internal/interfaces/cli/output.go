package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jmespath/go-jmespath"
	"github.com/spf13/cobra"
)

// printResult renders a command result to stdout, honoring the global
// --format and --query flags. Values are normalized through JSON so the
// query sees the same shape the user would see printed.
func printResult(cmd *cobra.Command, container *Container, v any) error {
	normalized, err := normalize(v)
	if err != nil {
		return err
	}

	if container.Query != "" {
		normalized, err = jmespath.Search(container.Query, normalized)
		if err != nil {
			return fmt.Errorf("apply query %q: %w", container.Query, err)
		}
	}

	switch container.Format {
	case "raw":
		if s, ok := normalized.(string); ok {
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		}
		fallthrough
	case "json", "":
		data, err := json.MarshalIndent(normalized, "", "    ")
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	default:
		return fmt.Errorf("unknown output format %q", container.Format)
	}
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return out, nil
}
