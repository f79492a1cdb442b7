package domain

const (
	EventCollectionCompleted   = "payment.collection.completed"
	EventCollectionFailed      = "payment.collection.failed"
	EventRegistrationFeePaid   = "user.registration_fee.paid"
	EventEscrowHeld            = "escrow.held"
	EventEscrowReleased        = "escrow.released"
	EventEscrowRefunded        = "escrow.refunded"
	EventDisbursementCompleted = "payment.disbursement.completed"
	EventDisbursementFailed    = "payment.disbursement.failed"
)

var emittedEvents = map[string]struct{}{
	EventCollectionCompleted:   {},
	EventCollectionFailed:      {},
	EventRegistrationFeePaid:   {},
	EventEscrowHeld:            {},
	EventEscrowReleased:        {},
	EventEscrowRefunded:        {},
	EventDisbursementCompleted: {},
	EventDisbursementFailed:    {},
}

func IsEmittedEvent(eventType string) bool {
	_, ok := emittedEvents[eventType]
	return ok
}
