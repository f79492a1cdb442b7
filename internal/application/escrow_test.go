package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/testutil"
)

func TestReleaseEscrowPaysProvider(t *testing.T) {
	h := newHarness(t)
	escrow := h.heldEscrow(t)
	ctx := context.Background()

	released, err := h.svc.ReleaseEscrow(ctx, admin, escrow.EscrowID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, released.Status)
	assert.Equal(t, "admin-1", released.ReleasedBy)
	require.NotNil(t, released.ReleasedAt)

	disbursements := h.db.AllDisbursements()
	require.Len(t, disbursements, 1)
	disb := disbursements[0]
	assert.Equal(t, domain.DisbursementTypeEscrowRelease, disb.Type)
	assert.Equal(t, domain.DisbursementStatusPending, disb.Status)
	assert.True(t, disb.Amount.Equal(testutil.Amount("900")))
	assert.Equal(t, "254711111111", disb.ReceiverNumber)
	assert.Equal(t, application.MerchantReference(domain.DisbursementTypeEscrowRelease, escrow.EscrowID), disb.MerchantReference)
	assert.Equal(t, released.ReleaseDisbursementID, disb.DisbursementID)

	entries, err := h.svc.ListLedgerEntries(ctx, escrow.EscrowID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	last := entries[1]
	assert.Equal(t, domain.LedgerEventReleased, last.EventType)
	assert.True(t, last.Amount.Equal(testutil.Amount("900")))
	assert.True(t, last.BalanceBefore.Equal(testutil.Amount("1000")))
	assert.True(t, last.BalanceAfter.Equal(testutil.Amount("100")))
	assert.Equal(t, "admin-1", last.Actor)

	assert.Contains(t, h.db.OutboxEventTypes(), domain.EventEscrowReleased)
}

func TestRefundAfterReleaseIsRejectedWithoutSideEffects(t *testing.T) {
	h := newHarness(t)
	escrow := h.heldEscrow(t)
	ctx := context.Background()
	_, err := h.svc.ReleaseEscrow(ctx, admin, escrow.EscrowID)
	require.NoError(t, err)

	calls := h.gateway.DisburseCalls()
	writes := h.db.Writes()
	_, err = h.svc.RefundEscrow(ctx, admin, escrow.EscrowID, "client cancelled")
	require.ErrorIs(t, err, domain.ErrInvalidEscrowState)

	var stateErr *domain.EscrowStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, escrow.EscrowID, stateErr.EscrowID)
	assert.Equal(t, domain.EscrowStatusReleased, stateErr.Status)

	assert.Equal(t, calls, h.gateway.DisburseCalls())
	assert.Equal(t, writes, h.db.Writes())
	assert.Len(t, h.db.AllDisbursements(), 1)
	assert.Len(t, h.db.AllEntries(), 2)
}

func TestRefundReturnsFullAmountToClient(t *testing.T) {
	h := newHarness(t)
	escrow := h.heldEscrow(t)
	ctx := context.Background()

	refunded, err := h.svc.RefundEscrow(ctx, admin, escrow.EscrowID, "provider unavailable")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusRefunded, refunded.Status)
	assert.Equal(t, "provider unavailable", refunded.RefundReason)
	assert.True(t, refunded.RefundAmount.Equal(testutil.Amount("1000")))
	assert.True(t, refunded.Balance().IsZero())

	disbursements := h.db.AllDisbursements()
	require.Len(t, disbursements, 1)
	assert.Equal(t, domain.DisbursementTypeRefund, disbursements[0].Type)
	assert.Equal(t, "254700000001", disbursements[0].ReceiverNumber)

	entries, err := h.svc.ListLedgerEntries(ctx, escrow.EscrowID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LedgerEventRefunded, entries[1].EventType)
	assert.True(t, entries[1].BalanceAfter.IsZero())
}

func TestRefundRequiresReason(t *testing.T) {
	h := newHarness(t)
	escrow := h.heldEscrow(t)
	_, err := h.svc.RefundEscrow(context.Background(), admin, escrow.EscrowID, "  ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGatewayRejectionLeavesEscrowHeld(t *testing.T) {
	h := newHarness(t)
	escrow := h.heldEscrow(t)
	ctx := context.Background()

	h.gateway.DisburseErr = domain.ErrGatewayUnavailable
	_, err := h.svc.ReleaseEscrow(ctx, admin, escrow.EscrowID)
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	current, err := h.svc.GetEscrow(ctx, escrow.EscrowID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusHeld, current.Status)
	assert.Empty(t, h.db.AllDisbursements())

	h.gateway.DisburseErr = nil
	h.gateway.DisburseCode = "2001"
	_, err = h.svc.ReleaseEscrow(ctx, admin, escrow.EscrowID)
	require.ErrorIs(t, err, domain.ErrGatewayRejected)

	h.gateway.DisburseCode = ""
	released, err := h.svc.ReleaseEscrow(ctx, admin, escrow.EscrowID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, released.Status)

	refs := map[string]struct{}{}
	for _, req := range h.gateway.Disbursals {
		refs[req.MerchantReference] = struct{}{}
	}
	assert.Len(t, refs, 1, "retries must reuse the merchant reference")
}

func TestConcurrentReleasesSettleOnce(t *testing.T) {
	h := newHarness(t)
	escrow := h.heldEscrow(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.ReleaseEscrow(context.Background(), admin, escrow.EscrowID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrInvalidEscrowState)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.db.AllDisbursements(), 1)
	assert.Len(t, h.db.AllEntries(), 2)
}

func TestLedgerReconstructsBalance(t *testing.T) {
	h := newHarness(t)
	escrow := h.heldEscrow(t)
	ctx := context.Background()
	released, err := h.svc.ReleaseEscrow(ctx, admin, escrow.EscrowID)
	require.NoError(t, err)

	assert.True(t, released.PlatformCommission.Add(released.SPPayout).Equal(released.TotalAmount))

	entries, err := h.svc.ListLedgerEntries(ctx, escrow.EscrowID)
	require.NoError(t, err)
	balance, err := domain.ReplayBalance(entries)
	require.NoError(t, err)
	assert.True(t, balance.Equal(released.Balance()))
	assert.True(t, balance.Equal(released.PlatformCommission))
}

// collected completes a placement payment of amount and returns the stored transaction.
func (h *harness) collected(t *testing.T, placementID, amount string) domain.Transaction {
	t.Helper()
	ctx := context.Background()
	txn := h.payment(t, placementID, amount)
	outcome := successOutcome(txn.CheckoutRequestID)
	outcome.Amount = testutil.Amount(amount)
	_, err := h.svc.ProcessCollectionOutcome(ctx, outcome)
	require.NoError(t, err)
	stored, err := h.db.Transactions().GetByCheckoutID(ctx, txn.CheckoutRequestID)
	require.NoError(t, err)
	require.Equal(t, domain.TransactionStatusCompleted, stored.Status)
	return stored
}

func TestCreateEscrowTransactionForUnescrowedPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.collected(t, "placement-9", "1999.99")
	first := h.db.EscrowsByPlacement("placement-9")
	require.Len(t, first, 1)
	second := h.collected(t, "placement-9", "1999.99")
	require.Len(t, h.db.EscrowsByPlacement("placement-9"), 1)
	_, err := h.svc.RefundEscrow(ctx, admin, first[0].EscrowID, "duplicate booking")
	require.NoError(t, err)

	input := application.CreateEscrowInput{
		PlacementID:          "placement-9",
		ClientID:             "client-1",
		ProviderID:           "provider-1",
		Amount:               testutil.Amount("1999.99"),
		PaymentTransactionID: second.TransactionID,
	}
	escrow, err := h.svc.CreateEscrowTransaction(ctx, admin, input)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusHeld, escrow.Status)
	assert.True(t, escrow.PlatformCommission.Equal(testutil.Amount("200")))
	assert.True(t, escrow.SPPayout.Equal(testutil.Amount("1799.99")))

	_, err = h.svc.CreateEscrowTransaction(ctx, admin, input)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateEscrowTransactionRequiresCollectedPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.payment(t, "placement-7", "500")
	failed := h.payment(t, "placement-8", "500")
	outcome := successOutcome(failed.CheckoutRequestID)
	outcome.ResultCode = 1032
	_, err := h.svc.ProcessCollectionOutcome(ctx, outcome)
	require.NoError(t, err)
	h.collected(t, "placement-6", "1000")
	completed := h.collected(t, "placement-6", "1000")

	valid := func(txn domain.Transaction) application.CreateEscrowInput {
		return application.CreateEscrowInput{
			PlacementID:          txn.PlacementID,
			ClientID:             "client-1",
			ProviderID:           "provider-1",
			Amount:               txn.Amount,
			PaymentTransactionID: txn.TransactionID,
		}
	}
	tests := []struct {
		name  string
		input application.CreateEscrowInput
		want  error
	}{
		{"unknown payment", func() application.CreateEscrowInput {
			in := valid(completed)
			in.PaymentTransactionID = "6a1d7c4e-2f1b-4c59-8f0e-6f4f6c1f9d21"
			return in
		}(), domain.ErrNotFound},
		{"malformed reference", func() application.CreateEscrowInput {
			in := valid(completed)
			in.PaymentTransactionID = "txn-9"
			return in
		}(), domain.ErrInvalidInput},
		{"pending payment", valid(pending), domain.ErrConflict},
		{"failed payment", valid(failed), domain.ErrConflict},
		{"amount differs from collected", func() application.CreateEscrowInput {
			in := valid(completed)
			in.Amount = testutil.Amount("1000000")
			return in
		}(), domain.ErrInvalidInput},
		{"other placement", func() application.CreateEscrowInput {
			in := valid(completed)
			in.PlacementID = "placement-1"
			return in
		}(), domain.ErrInvalidInput},
		{"other client", func() application.CreateEscrowInput {
			in := valid(completed)
			in.ClientID = "client-2"
			return in
		}(), domain.ErrInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.CreateEscrowTransaction(ctx, admin, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, h.db.EscrowsByPlacement("placement-7"))
	assert.Empty(t, h.db.EscrowsByPlacement("placement-8"))
	assert.Len(t, h.db.EscrowsByPlacement("placement-6"), 1)
}

func TestReleaseUnknownEscrowIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ReleaseEscrow(context.Background(), admin, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOperationsRequireActor(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ReleaseEscrow(context.Background(), application.Actor{}, "escrow-1")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
