package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

func TestJSONColumnDropsInvalidPayloads(t *testing.T) {
	assert.Nil(t, jsonColumn(nil))
	assert.Nil(t, jsonColumn([]byte("result_code=0")))
	assert.JSONEq(t, `{"result_code":0}`, string(jsonColumn([]byte(`{"result_code":0}`))))
}

func TestLedgerEntryMetadataSurvivesMapping(t *testing.T) {
	entry := domain.LedgerEntry{
		EntryID:       "entry-1",
		EscrowID:      "escrow-1",
		EventType:     domain.LedgerEventReleased,
		Amount:        decimal.RequireFromString("900"),
		BalanceBefore: decimal.RequireFromString("1000"),
		BalanceAfter:  decimal.RequireFromString("100"),
		Actor:         "admin-1",
		Metadata:      map[string]any{"disbursement_id": "disb-1"},
		CreatedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	row, err := toLedgerEntryModel(entry)
	require.NoError(t, err)
	back := toDomainLedgerEntry(row)
	assert.Equal(t, "disb-1", back.Metadata["disbursement_id"])
	assert.True(t, back.BalanceAfter.Equal(entry.BalanceAfter))
	assert.Equal(t, domain.LedgerEventReleased, back.EventType)

	entry.Metadata = nil
	row, err = toLedgerEntryModel(entry)
	require.NoError(t, err)
	assert.Nil(t, row.Metadata)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert escrow: %w", gorm.ErrDuplicatedKey)))
	assert.False(t, isUniqueViolation(gorm.ErrRecordNotFound))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, isForeignKeyViolation(fmt.Errorf("insert escrow: %w", gorm.ErrForeignKeyViolated)))
	assert.False(t, isForeignKeyViolation(gorm.ErrDuplicatedKey))
}
