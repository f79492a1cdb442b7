package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newIdempotencyCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idempotency",
		Short: "Inspect or clear callback idempotency keys",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Show the stored result for a key such as callback:<checkout-id>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withOperations(cmd, func(ops Operations) error {
				value, found, err := ops.Guard().Result(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !found {
					return printJSON(cmd.OutOrStdout(), map[string]any{"key": args[0], "found": false})
				}
				out := map[string]any{"key": args[0], "found": true}
				if json.Valid(value) {
					out["result"] = json.RawMessage(value)
				} else {
					out["result"] = string(value)
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key so the next delivery is processed again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withOperations(cmd, func(ops Operations) error {
				if err := ops.Guard().Release(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return err
			})
		},
	})
	return cmd
}
