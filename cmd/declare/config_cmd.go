package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-declare/internal/hydrate"
	"github.com/goliatone/go-declare/internal/logger"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := hydrate.Clone(a.cfg)
			if err != nil {
				return err
			}
			values := map[string]any{}
			flatten("", plain, values)
			if key, ok := values["completion.api_key"].(string); ok {
				values["completion.api_key"] = logger.Redact(key)
			}

			paths := make([]string, 0, len(values))
			for path := range values {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			for _, path := range paths {
				source := a.result.Provenance[path]
				if source == "" {
					source = "unset"
				}
				fmt.Fprintf(a.out, "%s = %v  (%s)\n", path, values[path], source)
			}
			return nil
		},
	}
}

func flatten(prefix string, value any, out map[string]any) {
	m, ok := value.(map[string]any)
	if !ok {
		out[prefix] = value
		return
	}
	for key, child := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		flatten(path, child, out)
	}
}
