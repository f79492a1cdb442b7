package contracts

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type InitiateCollectionRequest struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	Amount      string `json:"amount"`
	Purpose     string `json:"purpose"`
	PlacementID string `json:"placement_id,omitempty"`
	ProviderID  string `json:"provider_id,omitempty"`
}

type ConfirmOTPRequest struct {
	OTP string `json:"otp"`
}

type CreateEscrowRequest struct {
	PlacementID          string `json:"placement_id"`
	ClientID             string `json:"client_id"`
	ProviderID           string `json:"provider_id"`
	Amount               string `json:"amount"`
	PaymentTransactionID string `json:"payment_transaction_id"`
}

type RefundEscrowRequest struct {
	Reason string `json:"reason"`
}

type TransactionResponse struct {
	TransactionID      string `json:"transaction_id"`
	UserID             string `json:"user_id"`
	Purpose            string `json:"purpose"`
	PlacementID        string `json:"placement_id,omitempty"`
	CheckoutRequestID  string `json:"checkout_request_id"`
	MerchantRequestID  string `json:"merchant_request_id,omitempty"`
	Amount             string `json:"amount"`
	Status             string `json:"status"`
	ResultCode         *int   `json:"result_code,omitempty"`
	ResultDesc         string `json:"result_desc,omitempty"`
	ReceiptNumber      string `json:"receipt_number,omitempty"`
	CallbackReceivedAt string `json:"callback_received_at,omitempty"`
	CreatedAt          string `json:"created_at"`
}

type EscrowResponse struct {
	EscrowID             string `json:"escrow_id"`
	PlacementID          string `json:"placement_id"`
	ClientID             string `json:"client_id"`
	ProviderID           string `json:"provider_id"`
	PaymentTransactionID string `json:"payment_transaction_id"`
	TotalAmount          string `json:"total_amount"`
	PlatformCommission   string `json:"platform_commission"`
	SPPayout             string `json:"sp_payout"`
	CommissionRate       string `json:"commission_rate"`
	Status               string `json:"status"`
	Balance              string `json:"balance"`
	HeldAt               string `json:"held_at,omitempty"`
	ReleasedAt           string `json:"released_at,omitempty"`
	RefundedAt           string `json:"refunded_at,omitempty"`
	ReleasedBy           string `json:"released_by,omitempty"`
	RefundedBy           string `json:"refunded_by,omitempty"`
	RefundReason         string `json:"refund_reason,omitempty"`
	RefundAmount         string `json:"refund_amount,omitempty"`
}

type LedgerEntryResponse struct {
	EntryID       string         `json:"entry_id"`
	EventType     string         `json:"event_type"`
	Amount        string         `json:"amount"`
	BalanceBefore string         `json:"balance_before"`
	BalanceAfter  string         `json:"balance_after"`
	Actor         string         `json:"actor"`
	Reason        string         `json:"reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

type DisbursementResponse struct {
	DisbursementID    string `json:"disbursement_id"`
	Type              string `json:"type"`
	PlacementID       string `json:"placement_id,omitempty"`
	EscrowID          string `json:"escrow_id,omitempty"`
	MerchantReference string `json:"merchant_reference"`
	ExternalRequestID string `json:"external_request_id"`
	ReceiverNumber    string `json:"receiver_number"`
	Amount            string `json:"amount"`
	Status            string `json:"status"`
	ResultCode        *int   `json:"result_code,omitempty"`
	ResultDesc        string `json:"result_desc,omitempty"`
	InitiatedBy       string `json:"initiated_by"`
	CreatedAt         string `json:"created_at"`
}

type ReconcileResponse struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	Pending           bool   `json:"pending"`
	Applied           bool   `json:"applied"`
	Status            string `json:"status"`
}
