package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-declare/schema"
	"github.com/goliatone/go-declare/schema/shape"
)

func newSchemaCmd(a *app) *cobra.Command {
	var asJSONSchema bool
	cmd := &cobra.Command{
		Use:   "schema <pipeline.yaml> <step>",
		Short: "Print the explanation and skeleton sent for a step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPipeline(args[0])
			if err != nil {
				return err
			}
			step, ok := p.Step(args[1])
			if !ok {
				return fmt.Errorf("pipeline %s has no step %q", p.Name, args[1])
			}
			if asJSONSchema {
				js, err := shape.Generate(step.Schema, shape.WithTitle(step.Name))
				if err != nil {
					return err
				}
				encoded, err := json.MarshalIndent(js, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, string(encoded))
				return nil
			}
			fmt.Fprintf(a.out, "%s\n\n%s\n", schema.Describe(step.Schema), schema.Skeleton(step.Schema))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSONSchema, "json-schema", false, "print the step schema as JSON Schema instead")
	return cmd
}
