package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
	"github.com/maidsofhonourafrica/escrow-service/internal/testutil"
)

type stubVerifier map[string]ports.AuthClaims

func (v stubVerifier) Verify(token string) (ports.AuthClaims, error) {
	claims, ok := v[token]
	if !ok {
		return ports.AuthClaims{}, errors.New("unknown token")
	}
	return claims, nil
}

var verifier = stubVerifier{
	"svc-token":    {SubjectID: "placement-service", Role: "service"},
	"client-token": {SubjectID: "client-1", Role: "client"},
}

func withToken(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
}

func newServerWithEscrow(t *testing.T) (*EscrowInternalServer, string) {
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
	ctx := context.Background()
	txn, err := svc.InitiateCollection(ctx, application.Actor{SubjectID: "admin-1"}, application.InitiateCollectionInput{
		UserID:      "client-1",
		PhoneNumber: "254700000001",
		Amount:      testutil.Amount("1000"),
		Purpose:     domain.PurposePlacementPayment,
		PlacementID: "placement-1",
		ProviderID:  "provider-1",
	})
	require.NoError(t, err)
	_, err = svc.ProcessCollectionOutcome(ctx, domain.CollectionOutcome{
		CheckoutRequestID: txn.CheckoutRequestID,
		ResultCode:        domain.ResultCodeSuccess,
		ResultDesc:        "ok",
		Amount:            testutil.Amount("1000"),
	})
	require.NoError(t, err)
	escrows := db.EscrowsByPlacement("placement-1")
	require.Len(t, escrows, 1)
	return NewEscrowInternalServer(svc, verifier), escrows[0].EscrowID
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return req
}

func TestGetEscrowRequiresAuthentication(t *testing.T) {
	srv, escrowID := newServerWithEscrow(t)

	_, err := srv.GetEscrow(context.Background(), request(t, map[string]any{"escrow_id": escrowID}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = srv.GetEscrow(withToken("client-token"), request(t, map[string]any{"escrow_id": escrowID}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	resp, err := srv.GetEscrow(withToken("svc-token"), request(t, map[string]any{"escrow_id": escrowID}))
	require.NoError(t, err)
	assert.Equal(t, "held", resp.GetFields()["status"].GetStringValue())
	assert.Equal(t, "1000.00", resp.GetFields()["balance"].GetStringValue())
}

func TestReleaseThenRefundIsFailedPrecondition(t *testing.T) {
	srv, escrowID := newServerWithEscrow(t)
	ctx := withToken("svc-token")

	resp, err := srv.ReleaseEscrow(ctx, request(t, map[string]any{"escrow_id": escrowID}))
	require.NoError(t, err)
	assert.Equal(t, "released", resp.GetFields()["status"].GetStringValue())
	assert.Equal(t, "100.00", resp.GetFields()["balance"].GetStringValue())

	_, err = srv.RefundEscrow(ctx, request(t, map[string]any{"escrow_id": escrowID, "reason": "dispute"}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestRefundValidatesArguments(t *testing.T) {
	srv, escrowID := newServerWithEscrow(t)
	ctx := withToken("svc-token")

	_, err := srv.RefundEscrow(ctx, request(t, map[string]any{"escrow_id": escrowID}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = srv.RefundEscrow(ctx, request(t, map[string]any{"escrow_id": "missing", "reason": "dispute"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	resp, err := srv.RefundEscrow(ctx, request(t, map[string]any{"escrow_id": escrowID, "reason": "dispute"}))
	require.NoError(t, err)
	assert.Equal(t, "refunded", resp.GetFields()["status"].GetStringValue())
}

func TestUnaryHandlerDecodesStruct(t *testing.T) {
	srv, escrowID := newServerWithEscrow(t)
	handler := unaryHandler("GetEscrow", srv.GetEscrow)

	out, err := handler(srv, withToken("svc-token"), func(dst any) error {
		req := dst.(*structpb.Struct)
		req.Fields = map[string]*structpb.Value{"escrow_id": structpb.NewStringValue(escrowID)}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, escrowID, out.(*structpb.Struct).GetFields()["escrow_id"].GetStringValue())
}
