package postgres

import (
	"gorm.io/gorm"

	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

type Repositories struct {
	Transactions  ports.TransactionRepository
	Escrows       ports.EscrowRepository
	Disbursements ports.DisbursementRepository
	Outbox        ports.OutboxRepository
	Users         ports.UserDirectory
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Transactions:  &transactionRepository{db: db},
		Escrows:       &escrowRepository{db: db},
		Disbursements: &disbursementRepository{db: db},
		Outbox:        &outboxRepository{db: db},
		Users:         &userRepository{db: db},
	}
}

// insertOutbox writes events inside the caller's transaction.
func insertOutbox(tx *gorm.DB, events []ports.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]outboxModel, 0, len(events))
	for _, evt := range events {
		rows = append(rows, toOutboxModel(evt))
	}
	return tx.Create(&rows).Error
}
