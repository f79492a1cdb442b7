package postgres

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

// sqlRecorder captures every statement gorm builds, including dry-run ones.
type sqlRecorder struct {
	mu         sync.Mutex
	statements []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{}) {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{}) {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, sql)
}

func (r *sqlRecorder) indexOf(fragment string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, stmt := range r.statements {
		if strings.Contains(stmt, fragment) {
			return i
		}
	}
	return -1
}

// newDryRunDB builds statements against the Postgres dialect without a server.
func newDryRunDB(t *testing.T, rec *sqlRecorder) *gorm.DB {
	t.Helper()
	cfg := &gorm.Config{DryRun: true, DisableAutomaticPing: true}
	if rec != nil {
		cfg.Logger = rec
	}
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=escrow dbname=escrow sslmode=disable"}), cfg)
	require.NoError(t, err)
	return db
}

func TestCollectionCallbackUpdateOnlyMatchesUnappliedRows(t *testing.T) {
	db := newDryRunDB(t, nil)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return applyCollectionCallback(tx, domain.CollectionOutcome{
			CheckoutRequestID: "CRQ-1",
			ResultCode:        domain.ResultCodeSuccess,
			ReceivedAt:        at,
		})
	})

	assert.Contains(t, sql, `UPDATE "transactions"`)
	assert.Contains(t, sql, "checkout_request_id = 'CRQ-1'")
	assert.Contains(t, sql, "callback_received_at IS NULL")
}

func TestDisbursementCallbackUpdateSkipsTerminalRows(t *testing.T) {
	db := newDryRunDB(t, nil)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return applyDisbursementCallback(tx, domain.DisbursementOutcome{
			ExternalRequestID: "B2C-1",
			ResultCode:        domain.ResultCodeSuccess,
			ReceivedAt:        time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		})
	})

	assert.Contains(t, sql, `UPDATE "disbursements"`)
	assert.Contains(t, sql, "external_request_id = 'B2C-1'")
	assert.Contains(t, sql, "callback_received_at IS NULL")
	assert.Regexp(t, `status NOT IN \('completed',\s*'failed'\)`, sql)
}

func TestSettlementUpdateIsGuardedOnHeld(t *testing.T) {
	db := newDryRunDB(t, nil)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return settleHeld(tx, "escrow-1", map[string]any{"status": string(domain.EscrowStatusReleased)})
	})

	assert.Contains(t, sql, `UPDATE "escrow_transactions"`)
	assert.Contains(t, sql, "escrow_id = 'escrow-1'")
	assert.Contains(t, sql, "status = 'held'")
}

func TestLedgerEntriesBreakTimestampTiesBySequence(t *testing.T) {
	db := newDryRunDB(t, nil)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []ledgerEntryModel
		return ledgerEntriesQuery(tx, "escrow-1").Find(&rows)
	})

	assert.Contains(t, sql, "escrow_id = 'escrow-1'")
	assert.Regexp(t, `ORDER BY created_at ASC,\s*seq ASC`, sql)
}

func TestCreateEscrowIfOpenInsertsInsideSavepoint(t *testing.T) {
	rec := &sqlRecorder{}
	db := newDryRunDB(t, rec)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	escrow, entry, err := domain.NewHeldEscrow(domain.NewEscrowParams{
		EscrowID:             "0b5f8c1e-4f8a-4d3c-9a57-0e1c2d3b4a51",
		PlacementID:          "placement-1",
		ClientID:             "client-1",
		ProviderID:           "provider-1",
		PaymentTransactionID: "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		TotalAmount:          decimal.RequireFromString("1000"),
		CommissionRate:       decimal.RequireFromString("0.10"),
		At:                   at,
	}, "1d3c9b7e-5a2f-4e61-8b0d-2c4f6a8e0b13", "system:payment_callback")
	require.NoError(t, err)

	created, err := createEscrowIfOpen(db, escrow, &entry, nil)
	require.NoError(t, err)
	assert.True(t, created)

	check := rec.indexOf(`FROM "escrow_transactions"`)
	savepoint := rec.indexOf("SAVEPOINT open_escrow")
	insert := rec.indexOf(`INSERT INTO "escrow_transactions"`)
	ledger := rec.indexOf(`INSERT INTO "escrow_ledger_entries"`)
	require.NotEqual(t, -1, check)
	require.NotEqual(t, -1, savepoint)
	require.NotEqual(t, -1, insert)
	require.NotEqual(t, -1, ledger)
	assert.Less(t, check, savepoint)
	assert.Less(t, savepoint, insert)
	assert.Less(t, insert, ledger)
}
