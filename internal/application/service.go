package application

import (
	"time"

	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

const serviceName = "escrow-service"

type Service struct {
	cfg           Config
	transactions  ports.TransactionRepository
	escrows       ports.EscrowRepository
	disbursements ports.DisbursementRepository
	users         ports.UserDirectory
	gateway       ports.PaymentGateway
	guard         *IdempotencyGuard
	orchestrator  *DisbursementOrchestrator
	nowFn         func() time.Time
}

type Dependencies struct {
	Config        Config
	Transactions  ports.TransactionRepository
	Escrows       ports.EscrowRepository
	Disbursements ports.DisbursementRepository
	Users         ports.UserDirectory
	Idempotency   ports.IdempotencyStore
	Gateway       ports.PaymentGateway
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.IdempotencyLease <= 0 || cfg.IdempotencyLease > cfg.IdempotencyTTL {
		cfg.IdempotencyLease = 2 * time.Minute
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 50
	}
	return &Service{
		cfg:           cfg,
		transactions:  deps.Transactions,
		escrows:       deps.Escrows,
		disbursements: deps.Disbursements,
		users:         deps.Users,
		gateway:       deps.Gateway,
		guard:         NewIdempotencyGuard(deps.Idempotency),
		orchestrator:  NewDisbursementOrchestrator(deps.Gateway),
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// Guard exposes the idempotency guard for operator tooling.
func (s *Service) Guard() *IdempotencyGuard {
	return s.guard
}
