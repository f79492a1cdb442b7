package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

// Operations is the slice of the application service exposed to operators.
type Operations interface {
	ReleaseEscrow(ctx context.Context, actor application.Actor, escrowID string) (domain.EscrowTransaction, error)
	RefundEscrow(ctx context.Context, actor application.Actor, escrowID, reason string) (domain.EscrowTransaction, error)
	ReconcileCollection(ctx context.Context, checkoutRequestID string) (application.ReconcileResult, error)
	Guard() *application.IdempotencyGuard
}

// Opener connects to the backing stores for one command run. The returned func releases them.
type Opener func(ctx context.Context, configPath string) (Operations, func(), error)

type options struct {
	configPath string
	operator   string
	open       Opener
}

func NewRootCommand(open Opener) *cobra.Command {
	opts := &options{open: open}
	root := &cobra.Command{
		Use:           "escrowctl",
		Short:         "Operator tooling for escrow settlement",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "configs/default.yaml", "Path to the service config file")
	root.PersistentFlags().StringVar(&opts.operator, "operator", "", "Operator id recorded on ledger entries")

	root.AddCommand(newReleaseCommand(opts))
	root.AddCommand(newRefundCommand(opts))
	root.AddCommand(newReconcileCommand(opts))
	root.AddCommand(newIdempotencyCommand(opts))
	return root
}

func (o *options) actor() (application.Actor, error) {
	operator := strings.TrimSpace(o.operator)
	if operator == "" {
		return application.Actor{}, errors.New("--operator is required for settlement commands")
	}
	return application.Actor{
		SubjectID: "operator:" + operator,
		Role:      "admin",
		RequestID: "cli-" + uuid.NewString(),
	}, nil
}

// withOperations opens the backing stores, runs fn and closes them again.
func (o *options) withOperations(cmd *cobra.Command, fn func(Operations) error) error {
	ops, closeFn, err := o.open(cmd.Context(), o.configPath)
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	defer closeFn()
	return fn(ops)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
