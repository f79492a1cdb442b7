package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

type collectionRequest struct {
	PhoneNumber      string `json:"phone_number"`
	Amount           string `json:"amount"`
	AccountReference string `json:"account_reference"`
	Description      string `json:"description"`
	CallbackURL      string `json:"callback_url,omitempty"`
}

type collectionResponse struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	ResponseCode      string `json:"response_code"`
	ResponseDesc      string `json:"response_description"`
}

type processRequest struct {
	OTP string `json:"otp"`
}

type statusResponse struct {
	Status        string `json:"status"`
	ResultCode    *int   `json:"result_code"`
	ResultDesc    string `json:"result_desc"`
	ReceiptNumber string `json:"receipt_number"`
}

type disburseRequest struct {
	MerchantReference string `json:"merchant_reference"`
	ReceiverNumber    string `json:"receiver_number"`
	Amount            string `json:"amount"`
	Remarks           string `json:"remarks"`
	Occasion          string `json:"occasion,omitempty"`
	ResultURL         string `json:"result_url,omitempty"`
}

type disburseResponse struct {
	B2CRequestID string `json:"b2c_request_id"`
	ResponseCode string `json:"response_code"`
	ResponseDesc string `json:"response_description"`
}

func (c *Client) RequestCollection(ctx context.Context, req ports.CollectionRequest) (ports.CollectionResponse, error) {
	var out collectionResponse
	if _, err := c.do(ctx, "request_collection", http.MethodPost, "/collections", collectionRequest{
		PhoneNumber:      req.PhoneNumber,
		Amount:           req.Amount.StringFixed(2),
		AccountReference: req.AccountReference,
		Description:      req.Description,
		CallbackURL:      c.callbackURL,
	}, &out); err != nil {
		return ports.CollectionResponse{}, err
	}
	return toCollectionResponse(out), nil
}

func (c *Client) ProcessPayment(ctx context.Context, req ports.ProcessPaymentRequest) (ports.CollectionResponse, error) {
	var out collectionResponse
	path := "/collections/" + url.PathEscape(req.CheckoutRequestID) + "/process"
	if _, err := c.do(ctx, "process_payment", http.MethodPost, path, processRequest{OTP: req.OTP}, &out); err != nil {
		return ports.CollectionResponse{}, err
	}
	resp := toCollectionResponse(out)
	if resp.CheckoutRequestID == "" {
		resp.CheckoutRequestID = req.CheckoutRequestID
	}
	return resp, nil
}

// QueryStatus reports Pending until the gateway returns a result code.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (ports.StatusResponse, error) {
	var out statusResponse
	raw, err := c.do(ctx, "query_status", http.MethodGet, "/collections/"+url.PathEscape(checkoutRequestID), nil, &out)
	if err != nil {
		return ports.StatusResponse{}, err
	}
	if out.ResultCode == nil || strings.EqualFold(out.Status, "pending") {
		return ports.StatusResponse{Pending: true, ResultDesc: out.ResultDesc, RawPayload: raw}, nil
	}
	return ports.StatusResponse{
		ResultCode:    *out.ResultCode,
		ResultDesc:    out.ResultDesc,
		ReceiptNumber: out.ReceiptNumber,
		RawPayload:    raw,
	}, nil
}

func (c *Client) Disburse(ctx context.Context, req ports.DisburseRequest) (ports.DisburseResponse, error) {
	if strings.TrimSpace(req.MerchantReference) == "" {
		return ports.DisburseResponse{}, fmt.Errorf("merchant reference is required")
	}
	var out disburseResponse
	if _, err := c.do(ctx, "disburse", http.MethodPost, "/disbursements", disburseRequest{
		MerchantReference: req.MerchantReference,
		ReceiverNumber:    req.ReceiverNumber,
		Amount:            req.Amount.StringFixed(2),
		Remarks:           req.Remarks,
		Occasion:          req.Occasion,
		ResultURL:         c.resultURL,
	}, &out); err != nil {
		return ports.DisburseResponse{}, err
	}
	return ports.DisburseResponse{
		B2CRequestID: out.B2CRequestID,
		ResponseCode: out.ResponseCode,
		ResponseDesc: out.ResponseDesc,
	}, nil
}

func toCollectionResponse(out collectionResponse) ports.CollectionResponse {
	return ports.CollectionResponse{
		CheckoutRequestID: out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		ResponseCode:      out.ResponseCode,
		ResponseDesc:      out.ResponseDesc,
	}
}
