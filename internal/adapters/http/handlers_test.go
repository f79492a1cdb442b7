package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maidsofhonourafrica/escrow-service/internal/adapters/security"
	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/contracts"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/testutil"
)

const testSecret = "test-signing-secret"

type apiHarness struct {
	router http.Handler
	svc    *application.Service
	db     *testutil.MemoryDB
}

func newAPIHarness(t *testing.T, checks map[string]ReadinessCheck) *apiHarness {
	t.Helper()
	db := testutil.NewMemoryDB()
	db.AddUser("client-1", "254700000001", "")
	db.AddUser("provider-1", "254700000002", "")
	svc := application.NewService(application.Dependencies{
		Config:        application.Config{Commission: testutil.FlatCommission("0.10")},
		Transactions:  db.Transactions(),
		Escrows:       db.Escrows(),
		Disbursements: db.Disbursements(),
		Users:         db.Users(),
		Idempotency:   testutil.NewMemoryIdempotencyStore(),
		Gateway:       testutil.NewFakeGateway(),
	})
	verifier, err := security.NewJWTVerifier(security.VerifierConfig{HMACSecret: testSecret})
	require.NoError(t, err)
	handler, err := NewHandler(svc, verifier, checks)
	require.NoError(t, err)
	return &apiHarness{router: NewRouter(handler), svc: svc, db: db}
}

func (h *apiHarness) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) placementCheckout(t *testing.T) string {
	t.Helper()
	txn, err := h.svc.InitiateCollection(context.Background(), application.Actor{SubjectID: "admin-1"}, application.InitiateCollectionInput{
		UserID:      "client-1",
		PhoneNumber: "254700000001",
		Amount:      testutil.Amount("1000"),
		Purpose:     domain.PurposePlacementPayment,
		PlacementID: "placement-1",
		ProviderID:  "provider-1",
	})
	require.NoError(t, err)
	return txn.CheckoutRequestID
}

func signToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "admin-1",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func successCallback(checkoutID string) string {
	return `{"merchant_request_id":"MR-1","checkout_request_id":"` + checkoutID +
		`","result_code":0,"result_desc":"ok","metadata":{"amount":1000,"receipt_number":"RCP-1"}}`
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) contracts.CallbackAck {
	t.Helper()
	var ack contracts.CallbackAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	return ack
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) contracts.ErrorResponse {
	t.Helper()
	var resp contracts.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCollectionCallbackAcceptsOnceThenReportsDuplicate(t *testing.T) {
	h := newAPIHarness(t, nil)
	checkoutID := h.placementCheckout(t)

	rec := h.do(t, http.MethodPost, "/webhooks/v1/collections/callback", "", successCallback(checkoutID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ack := decodeAck(t, rec)
	assert.Equal(t, "accepted", ack.Status)
	assert.False(t, ack.Duplicate)
	require.Len(t, h.db.EscrowsByPlacement("placement-1"), 1)

	writes := h.db.Writes()
	rec = h.do(t, http.MethodPost, "/webhooks/v1/collections/callback", "", successCallback(checkoutID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeAck(t, rec).Duplicate)
	assert.Equal(t, writes, h.db.Writes())
	assert.Len(t, h.db.EscrowsByPlacement("placement-1"), 1)
}

func TestCollectionCallbackRejectsMalformedPayload(t *testing.T) {
	h := newAPIHarness(t, nil)
	cases := map[string]string{
		"missing result code": `{"checkout_request_id":"CRQ-1","result_desc":"ok"}`,
		"empty checkout id":   `{"checkout_request_id":"","result_code":0,"result_desc":"ok"}`,
		"string result code":  `{"checkout_request_id":"CRQ-1","result_code":"0","result_desc":"ok"}`,
		"not json":            `checkout=CRQ-1`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/webhooks/v1/collections/callback", "", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_CALLBACK", decodeError(t, rec).Code)
		})
	}
	assert.Zero(t, h.db.Writes())
}

func TestCollectionCallbackUnknownCheckoutIsNotFound(t *testing.T) {
	h := newAPIHarness(t, nil)
	rec := h.do(t, http.MethodPost, "/webhooks/v1/collections/callback", "", successCallback("CRQ-missing"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestCollectionCallbackStorageFailureAllowsRedelivery(t *testing.T) {
	h := newAPIHarness(t, nil)
	checkoutID := h.placementCheckout(t)
	h.db.FailApply = errors.New("connection reset")

	rec := h.do(t, http.MethodPost, "/webhooks/v1/collections/callback", "", successCallback(checkoutID))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")

	rec = h.do(t, http.MethodPost, "/webhooks/v1/collections/callback", "", successCallback(checkoutID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeAck(t, rec).Duplicate)
	assert.Len(t, h.db.EscrowsByPlacement("placement-1"), 1)
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	h := newAPIHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/escrow/v1/escrows/any", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/escrow/v1/escrows/any", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/escrow/v1/escrows/any", signToken(t, "client"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/escrow/v1/escrows/any", signToken(t, "admin"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReleaseEscrowThenRejectSecondSettlement(t *testing.T) {
	h := newAPIHarness(t, nil)
	checkoutID := h.placementCheckout(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/webhooks/v1/collections/callback", "", successCallback(checkoutID)).Code)
	escrowID := h.db.EscrowsByPlacement("placement-1")[0].EscrowID
	token := signToken(t, "admin")

	rec := h.do(t, http.MethodGet, "/escrow/v1/escrows/"+escrowID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data contracts.EscrowResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "held", got.Data.Status)
	assert.Equal(t, "100.00", got.Data.PlatformCommission)
	assert.Equal(t, "900.00", got.Data.SPPayout)

	rec = h.do(t, http.MethodPost, "/escrow/v1/escrows/"+escrowID+"/release", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/escrow/v1/escrows/"+escrowID+"/refund", token, `{"reason":"client cancelled"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_ESCROW_STATE", decodeError(t, rec).Code)

	rec = h.do(t, http.MethodGet, "/escrow/v1/escrows/"+escrowID+"/ledger", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ledger struct {
		Data []contracts.LedgerEntryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ledger))
	require.Len(t, ledger.Data, 2)
	assert.Equal(t, "released", ledger.Data[1].EventType)
	assert.Equal(t, "100.00", ledger.Data[1].BalanceAfter)
}

func TestRefundRequiresReason(t *testing.T) {
	h := newAPIHarness(t, nil)
	checkoutID := h.placementCheckout(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/webhooks/v1/collections/callback", "", successCallback(checkoutID)).Code)
	escrowID := h.db.EscrowsByPlacement("placement-1")[0].EscrowID

	rec := h.do(t, http.MethodPost, "/escrow/v1/escrows/"+escrowID+"/refund", signToken(t, "admin"), `{"reason":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
	assert.Equal(t, domain.EscrowStatusHeld, h.db.EscrowsByPlacement("placement-1")[0].Status)
}

func TestDisbursementCallbackCompletesPayout(t *testing.T) {
	h := newAPIHarness(t, nil)
	checkoutID := h.placementCheckout(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/webhooks/v1/collections/callback", "", successCallback(checkoutID)).Code)
	escrowID := h.db.EscrowsByPlacement("placement-1")[0].EscrowID
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/escrow/v1/escrows/"+escrowID+"/release", signToken(t, "admin"), "").Code)

	disbursements := h.db.AllDisbursements()
	require.Len(t, disbursements, 1)
	body := `{"b2c_request_id":"` + disbursements[0].ExternalRequestID + `","result_code":0,"result_desc":"ok","receipt_number":"B2C-RCP"}`

	rec := h.do(t, http.MethodPost, "/webhooks/v1/disbursements/callback", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeAck(t, rec).Duplicate)
	assert.Equal(t, domain.DisbursementStatusCompleted, h.db.AllDisbursements()[0].Status)

	rec = h.do(t, http.MethodPost, "/webhooks/v1/disbursements/callback", "", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeAck(t, rec).Duplicate)
}

func TestInitiateCollectionValidatesAmount(t *testing.T) {
	h := newAPIHarness(t, nil)
	rec := h.do(t, http.MethodPost, "/escrow/v1/collections", signToken(t, "admin"),
		`{"user_id":"client-1","phone_number":"254700000001","amount":"ten","purpose":"registration_fee"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/escrow/v1/collections", signToken(t, "admin"),
		`{"user_id":"client-1","phone_number":"254700000001","amount":"500","purpose":"registration_fee"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
}

func TestCreateEscrowRejectsUncollectedPayment(t *testing.T) {
	h := newAPIHarness(t, nil)
	token := signToken(t, "admin")
	body := func(ref string) string {
		return `{"placement_id":"placement-1","client_id":"client-1","provider_id":"provider-1","amount":"1000000","payment_transaction_id":"` + ref + `"}`
	}

	rec := h.do(t, http.MethodPost, "/escrow/v1/escrows", token, body("5b0c6f0e-93a4-4c1e-9a53-0d7c2f9b8e11"))
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)

	rec = h.do(t, http.MethodPost, "/escrow/v1/escrows", token, body("txn-9"))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
	assert.Empty(t, h.db.EscrowsByPlacement("placement-1"))
}

func TestHealthEndpoints(t *testing.T) {
	h := newAPIHarness(t, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/readyz", "", "").Code)

	down := newAPIHarness(t, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rec := down.do(t, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", decodeError(t, rec).Code)
}
