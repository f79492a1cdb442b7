package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type userModel struct {
	UserID              string    `gorm:"column:user_id;primaryKey"`
	PhoneNumber         string    `gorm:"column:phone_number"`
	PayoutNumber        string    `gorm:"column:payout_number"`
	RegistrationFeePaid bool      `gorm:"column:registration_fee_paid"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type transactionModel struct {
	TransactionID      string          `gorm:"column:transaction_id;type:uuid;primaryKey"`
	UserID             string          `gorm:"column:user_id"`
	Purpose            string          `gorm:"column:purpose"`
	PlacementID        string          `gorm:"column:placement_id"`
	ProviderID         string          `gorm:"column:provider_id"`
	CheckoutRequestID  string          `gorm:"column:checkout_request_id"`
	MerchantRequestID  string          `gorm:"column:merchant_request_id"`
	Amount             decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	PhoneNumber        string          `gorm:"column:phone_number"`
	Status             string          `gorm:"column:status"`
	ResultCode         *int            `gorm:"column:result_code"`
	ResultDesc         string          `gorm:"column:result_desc"`
	ReceiptNumber      string          `gorm:"column:receipt_number"`
	RawCallback        datatypes.JSON  `gorm:"column:raw_callback;type:jsonb"`
	CallbackReceivedAt *time.Time      `gorm:"column:callback_received_at"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (transactionModel) TableName() string { return "transactions" }

type escrowModel struct {
	EscrowID              string          `gorm:"column:escrow_id;type:uuid;primaryKey"`
	PlacementID           string          `gorm:"column:placement_id"`
	ClientID              string          `gorm:"column:client_id"`
	ProviderID            string          `gorm:"column:provider_id"`
	PaymentTransactionID  string          `gorm:"column:payment_transaction_id;type:uuid"`
	TotalAmount           decimal.Decimal `gorm:"column:total_amount;type:numeric(14,2)"`
	PlatformCommission    decimal.Decimal `gorm:"column:platform_commission;type:numeric(14,2)"`
	SPPayout              decimal.Decimal `gorm:"column:sp_payout;type:numeric(14,2)"`
	CommissionRate        decimal.Decimal `gorm:"column:commission_rate;type:numeric(6,4)"`
	Status                string          `gorm:"column:status"`
	HeldAt                *time.Time      `gorm:"column:held_at"`
	ReleasedAt            *time.Time      `gorm:"column:released_at"`
	RefundedAt            *time.Time      `gorm:"column:refunded_at"`
	ReleasedBy            string          `gorm:"column:released_by"`
	RefundedBy            string          `gorm:"column:refunded_by"`
	RefundReason          string          `gorm:"column:refund_reason"`
	RefundAmount          decimal.Decimal `gorm:"column:refund_amount;type:numeric(14,2)"`
	ReleaseDisbursementID *string         `gorm:"column:release_disbursement_id;type:uuid"`
	RefundDisbursementID  *string         `gorm:"column:refund_disbursement_id;type:uuid"`
	CreatedAt             time.Time       `gorm:"column:created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at"`
}

func (escrowModel) TableName() string { return "escrow_transactions" }

type ledgerEntryModel struct {
	EntryID       string          `gorm:"column:entry_id;type:uuid;primaryKey"`
	Seq           int64           `gorm:"column:seq;->"`
	EscrowID      string          `gorm:"column:escrow_id;type:uuid"`
	EventType     string          `gorm:"column:event_type"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	BalanceBefore decimal.Decimal `gorm:"column:balance_before;type:numeric(14,2)"`
	BalanceAfter  decimal.Decimal `gorm:"column:balance_after;type:numeric(14,2)"`
	Actor         string          `gorm:"column:actor"`
	Reason        string          `gorm:"column:reason"`
	Metadata      datatypes.JSON  `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (ledgerEntryModel) TableName() string { return "escrow_ledger_entries" }

type disbursementModel struct {
	DisbursementID     string          `gorm:"column:disbursement_id;type:uuid;primaryKey"`
	Type               string          `gorm:"column:type"`
	PlacementID        string          `gorm:"column:placement_id"`
	EscrowID           *string         `gorm:"column:escrow_id;type:uuid"`
	MerchantReference  string          `gorm:"column:merchant_reference"`
	ExternalRequestID  string          `gorm:"column:external_request_id"`
	ReceiverNumber     string          `gorm:"column:receiver_number"`
	Amount             decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	Status             string          `gorm:"column:status"`
	ResultCode         *int            `gorm:"column:result_code"`
	ResultDesc         string          `gorm:"column:result_desc"`
	ReceiptNumber      string          `gorm:"column:receipt_number"`
	RawCallback        datatypes.JSON  `gorm:"column:raw_callback;type:jsonb"`
	CallbackReceivedAt *time.Time      `gorm:"column:callback_received_at"`
	InitiatedBy        string          `gorm:"column:initiated_by"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (disbursementModel) TableName() string { return "disbursements" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "payment_outbox" }
