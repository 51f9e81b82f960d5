package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/pkg/state"
)

func newStateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and edit persisted stores",
	}
	cmd.AddCommand(newStateShowCmd(a), newStateRemoveCmd(a))
	return cmd
}

func newStateShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <store>",
		Short: "Print a persisted store in declaration order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backing, release, err := openStateStore(a.cfg.State)
			if err != nil {
				return err
			}
			defer release()

			snapshot, meta, ok, err := backing.Load(cmd.Context(), state.Ref{Name: args[0]})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no stored state named %q", args[0])
			}
			raw, err := json.Marshal(snapshot)
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return err
			}
			if meta.SnapshotID != "" {
				fmt.Fprintf(a.out, "# snapshot %s, %d entries\n", meta.SnapshotID, snapshot.Len())
			}
			fmt.Fprintln(a.out, out.String())
			return nil
		},
	}
}

func newStateRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <store> <id>...",
		Short: "Remove entries so the next run rebuilds them",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backing, release, err := openStateStore(a.cfg.State)
			if err != nil {
				return err
			}
			defer release()

			ids := args[1:]
			_, _, err = state.Mutate(cmd.Context(), backing, state.Ref{Name: args[0]}, state.Meta{},
				func(snapshot *declare.ContextState) error {
					for _, id := range ids {
						if !snapshot.Remove(id) {
							return fmt.Errorf("store %q has no entry %q", args[0], id)
						}
					}
					return nil
				})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "removed %d entries from %s\n", len(ids), args[0])
			return nil
		},
	}
}
