package contracts

import "github.com/shopspring/decimal"

// CollectionCallback is the gateway's C2B result notification.
type CollectionCallback struct {
	MerchantRequestID string              `json:"merchant_request_id"`
	CheckoutRequestID string              `json:"checkout_request_id"`
	ResultCode        int                 `json:"result_code"`
	ResultDesc        string              `json:"result_desc"`
	Metadata          *CollectionMetadata `json:"metadata,omitempty"`
}

type CollectionMetadata struct {
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	ReceiptNumber   string           `json:"receipt_number,omitempty"`
	PhoneNumber     string           `json:"phone_number,omitempty"`
	TransactionDate string           `json:"transaction_date,omitempty"`
}

// DisbursementCallback is the gateway's B2C result notification.
type DisbursementCallback struct {
	B2CRequestID      string `json:"b2c_request_id"`
	MerchantReference string `json:"merchant_reference,omitempty"`
	ResultCode        int    `json:"result_code"`
	ResultDesc        string `json:"result_desc"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
}

// CallbackAck is the body returned to the gateway for every handled callback.
type CallbackAck struct {
	Status     string `json:"status"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	Concurrent bool   `json:"concurrent,omitempty"`
}
