package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

// FakeGateway records calls and answers with deterministic identifiers. Disburse returns the
// same B2C request id for a repeated merchant reference, as the real gateway de-duplicates.
type FakeGateway struct {
	mu sync.Mutex

	CollectionErr  error
	CollectionCode string
	DisburseErr    error
	DisburseCode   string
	ProcessErr     error
	Status         ports.StatusResponse
	StatusErr      error

	Collections []ports.CollectionRequest
	Disbursals  []ports.DisburseRequest
	OTPs        []ports.ProcessPaymentRequest
	StatusCalls []string

	seq            int
	b2cByReference map[string]string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{b2cByReference: map[string]string{}}
}

func (g *FakeGateway) RequestCollection(_ context.Context, req ports.CollectionRequest) (ports.CollectionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Collections = append(g.Collections, req)
	if g.CollectionErr != nil {
		return ports.CollectionResponse{}, g.CollectionErr
	}
	code := g.CollectionCode
	if code == "" {
		code = "0"
	}
	g.seq++
	return ports.CollectionResponse{
		CheckoutRequestID: fmt.Sprintf("CRQ-%d", g.seq),
		MerchantRequestID: fmt.Sprintf("MRQ-%d", g.seq),
		ResponseCode:      code,
		ResponseDesc:      "accepted",
	}, nil
}

func (g *FakeGateway) ProcessPayment(_ context.Context, req ports.ProcessPaymentRequest) (ports.CollectionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.OTPs = append(g.OTPs, req)
	if g.ProcessErr != nil {
		return ports.CollectionResponse{}, g.ProcessErr
	}
	return ports.CollectionResponse{CheckoutRequestID: req.CheckoutRequestID, ResponseCode: "0", ResponseDesc: "accepted"}, nil
}

func (g *FakeGateway) QueryStatus(_ context.Context, checkoutRequestID string) (ports.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.StatusCalls = append(g.StatusCalls, checkoutRequestID)
	if g.StatusErr != nil {
		return ports.StatusResponse{}, g.StatusErr
	}
	return g.Status, nil
}

func (g *FakeGateway) Disburse(_ context.Context, req ports.DisburseRequest) (ports.DisburseResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Disbursals = append(g.Disbursals, req)
	if g.DisburseErr != nil {
		return ports.DisburseResponse{}, g.DisburseErr
	}
	code := g.DisburseCode
	if code == "" {
		code = "0"
	}
	id, ok := g.b2cByReference[req.MerchantReference]
	if !ok {
		g.seq++
		id = fmt.Sprintf("B2C-%d", g.seq)
		g.b2cByReference[req.MerchantReference] = id
	}
	return ports.DisburseResponse{B2CRequestID: id, ResponseCode: code, ResponseDesc: "accepted"}, nil
}

func (g *FakeGateway) DisburseCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Disbursals)
}
