package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
	"github.com/maidsofhonourafrica/escrow-service/internal/testutil"
)

type harness struct {
	svc     *application.Service
	db      *testutil.MemoryDB
	cache   *testutil.MemoryIdempotencyStore
	gateway *testutil.FakeGateway
}

var admin = application.Actor{SubjectID: "admin-1", Role: "admin", RequestID: "req-1"}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, nil)
}

// newHarnessWithStore lets a test wrap the in-memory cache, e.g. to inject store failures.
// wrap may be nil.
func newHarnessWithStore(t *testing.T, wrap func(*testutil.MemoryIdempotencyStore) ports.IdempotencyStore) *harness {
	t.Helper()
	db := testutil.NewMemoryDB()
	db.AddUser("client-1", "254700000001", "")
	db.AddUser("provider-1", "254700000002", "254711111111")
	cache := testutil.NewMemoryIdempotencyStore()
	var store ports.IdempotencyStore = cache
	if wrap != nil {
		store = wrap(cache)
	}
	gateway := testutil.NewFakeGateway()
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			Commission: testutil.FlatCommission("0.10"),
		},
		Transactions:  db.Transactions(),
		Escrows:       db.Escrows(),
		Disbursements: db.Disbursements(),
		Users:         db.Users(),
		Idempotency:   store,
		Gateway:       gateway,
	})
	return &harness{svc: svc, db: db, cache: cache, gateway: gateway}
}

// placementPayment initiates a 1000-unit placement collection and returns its checkout id.
func (h *harness) placementPayment(t *testing.T) string {
	t.Helper()
	return h.payment(t, "placement-1", "1000").CheckoutRequestID
}

func (h *harness) payment(t *testing.T, placementID, amount string) domain.Transaction {
	t.Helper()
	txn, err := h.svc.InitiateCollection(context.Background(), admin, application.InitiateCollectionInput{
		UserID:      "client-1",
		PhoneNumber: "254700000001",
		Amount:      testutil.Amount(amount),
		Purpose:     domain.PurposePlacementPayment,
		PlacementID: placementID,
		ProviderID:  "provider-1",
	})
	require.NoError(t, err)
	return txn
}

// heldEscrow drives a placement payment through a successful callback and returns the escrow.
func (h *harness) heldEscrow(t *testing.T) domain.EscrowTransaction {
	t.Helper()
	checkoutID := h.placementPayment(t)
	_, err := h.svc.ProcessCollectionOutcome(context.Background(), successOutcome(checkoutID))
	require.NoError(t, err)
	escrows := h.db.EscrowsByPlacement("placement-1")
	require.Len(t, escrows, 1)
	return escrows[0]
}

func successOutcome(checkoutID string) domain.CollectionOutcome {
	return domain.CollectionOutcome{
		CheckoutRequestID: checkoutID,
		ResultCode:        domain.ResultCodeSuccess,
		ResultDesc:        "The service request is processed successfully.",
		ReceiptNumber:     "RCP-" + checkoutID,
		Amount:            testutil.Amount("1000"),
		Source:            "callback",
		RawPayload:        []byte(`{"checkout_request_id":"` + checkoutID + `","result_code":0}`),
	}
}
