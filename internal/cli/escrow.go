package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

type escrowSummary struct {
	EscrowID   string `json:"escrow_id"`
	Status     string `json:"status"`
	Total      string `json:"total_amount"`
	Commission string `json:"platform_commission"`
	Payout     string `json:"sp_payout"`
	Balance    string `json:"balance"`
}

func summarize(e domain.EscrowTransaction) escrowSummary {
	return escrowSummary{
		EscrowID:   e.EscrowID,
		Status:     string(e.Status),
		Total:      e.TotalAmount.StringFixed(2),
		Commission: e.PlatformCommission.StringFixed(2),
		Payout:     e.SPPayout.StringFixed(2),
		Balance:    e.Balance().StringFixed(2),
	}
}

func newReleaseCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "release <escrow-id>",
		Short: "Release a held escrow to the service provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := opts.actor()
			if err != nil {
				return err
			}
			return opts.withOperations(cmd, func(ops Operations) error {
				escrow, err := ops.ReleaseEscrow(cmd.Context(), actor, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summarize(escrow))
			})
		},
	}
}

func newRefundCommand(opts *options) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "refund <escrow-id>",
		Short: "Refund a held escrow to the client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(reason) == "" {
				return errors.New("--reason is required")
			}
			actor, err := opts.actor()
			if err != nil {
				return err
			}
			return opts.withOperations(cmd, func(ops Operations) error {
				escrow, err := ops.RefundEscrow(cmd.Context(), actor, args[0], reason)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summarize(escrow))
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Refund reason recorded on the ledger (required)")
	return cmd
}
