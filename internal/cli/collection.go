package cli

import (
	"github.com/spf13/cobra"
)

func newReconcileCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <checkout-id>",
		Short: "Query the gateway for a collection's status and apply a final verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withOperations(cmd, func(ops Operations) error {
				result, err := ops.ReconcileCollection(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"checkout_request_id": result.CheckoutRequestID,
					"pending":             result.Pending,
					"applied":             result.Applied,
					"status":              string(result.Status),
				})
			})
		},
	}
}
