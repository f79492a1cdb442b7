package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

// releasedDisbursement releases a held escrow and returns the pending B2C disbursement.
func (h *harness) releasedDisbursement(t *testing.T) domain.Disbursement {
	t.Helper()
	escrow := h.heldEscrow(t)
	_, err := h.svc.ReleaseEscrow(context.Background(), admin, escrow.EscrowID)
	require.NoError(t, err)
	disbursements := h.db.AllDisbursements()
	require.Len(t, disbursements, 1)
	return disbursements[0]
}

func TestDisbursementCallbackCompletesOnce(t *testing.T) {
	h := newHarness(t)
	disb := h.releasedDisbursement(t)
	ctx := context.Background()
	outcome := domain.DisbursementOutcome{
		ExternalRequestID: disb.ExternalRequestID,
		MerchantReference: disb.MerchantReference,
		ResultCode:        domain.ResultCodeSuccess,
		ResultDesc:        "ok",
		ReceiptNumber:     "B2C-RCP-1",
	}

	res, err := h.svc.ProcessDisbursementOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, string(domain.DisbursementStatusCompleted), res.Status)

	stored, err := h.svc.GetDisbursement(ctx, disb.DisbursementID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisbursementStatusCompleted, stored.Status)
	assert.Equal(t, "B2C-RCP-1", stored.ReceiptNumber)
	require.NotNil(t, stored.CallbackReceivedAt)

	writes := h.db.Writes()
	res, err = h.svc.ProcessDisbursementOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, writes, h.db.Writes())
	assert.Contains(t, h.db.OutboxEventTypes(), domain.EventDisbursementCompleted)
}

func TestFailedDisbursementKeepsEscrowReleased(t *testing.T) {
	h := newHarness(t)
	disb := h.releasedDisbursement(t)
	ctx := context.Background()

	res, err := h.svc.ProcessDisbursementOutcome(ctx, domain.DisbursementOutcome{
		ExternalRequestID: disb.ExternalRequestID,
		ResultCode:        2001,
		ResultDesc:        "The initiator information is invalid.",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.DisbursementStatusFailed), res.Status)

	escrow, err := h.svc.GetEscrow(ctx, disb.EscrowID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, escrow.Status)

	types := h.db.OutboxEventTypes()
	assert.Equal(t, domain.EventDisbursementFailed, types[len(types)-1])
}

func TestDisbursementCallbackRedeliveredAfterCacheLoss(t *testing.T) {
	h := newHarness(t)
	disb := h.releasedDisbursement(t)
	ctx := context.Background()
	outcome := domain.DisbursementOutcome{ExternalRequestID: disb.ExternalRequestID, ResultCode: domain.ResultCodeSuccess}

	_, err := h.svc.ProcessDisbursementOutcome(ctx, outcome)
	require.NoError(t, err)
	h.cache.Flush()

	writes := h.db.Writes()
	res, err := h.svc.ProcessDisbursementOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, writes, h.db.Writes())
}

func TestUnknownDisbursementReleasesKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ProcessDisbursementOutcome(ctx, domain.DisbursementOutcome{ExternalRequestID: "B2C-missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, found, err := h.cache.Get(ctx, application.DisbursementCallbackKey("B2C-missing"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDisbursementCallbackRequiresRequestID(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ProcessDisbursementOutcome(context.Background(), domain.DisbursementOutcome{ExternalRequestID: " "})
	require.ErrorIs(t, err, domain.ErrInvalidCallback)
}
