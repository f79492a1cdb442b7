package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

type CollectionRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

type CollectionResponse struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResponseCode      string
	ResponseDesc      string
}

type ProcessPaymentRequest struct {
	CheckoutRequestID string
	OTP               string
}

type StatusResponse struct {
	// Pending is true while the gateway has no final verdict.
	Pending       bool
	ResultCode    int
	ResultDesc    string
	ReceiptNumber string
	RawPayload    []byte
}

type DisburseRequest struct {
	MerchantReference string
	ReceiverNumber    string
	Amount            decimal.Decimal
	Remarks           string
	Occasion          string
}

type DisburseResponse struct {
	B2CRequestID string
	ResponseCode string
	ResponseDesc string
}

// PaymentGateway is the consumed collection/disbursement API. Calls may fail transiently;
// callers must not mutate state before a call succeeds.
type PaymentGateway interface {
	RequestCollection(ctx context.Context, req CollectionRequest) (CollectionResponse, error)
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (CollectionResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (StatusResponse, error)
	Disburse(ctx context.Context, req DisburseRequest) (DisburseResponse, error)
}
