// Package audit is the best-effort audit collaborator invoked after a
// settlement commits. The durable audit trail is the ledger written inside
// the transactions themselves; this service adds the operational log line
// and never feeds back into the transaction.
package audit

import (
	"context"
	"log"
)

// Service handles audit logging
type Service struct {
	logger *log.Logger
}

// NewService creates a new audit service
func NewService(logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{logger: logger}
}

// LogSettlement records that a redemption settled.
func (s *Service) LogSettlement(ctx context.Context, redemptionID int, description string) {
	s.logger.Printf("[AUDIT] redemption %d: %s", redemptionID, description)
}

// LogActivation records that a credit key was activated.
func (s *Service) LogActivation(ctx context.Context, shopID int, credits int64) {
	s.logger.Printf("[AUDIT] credit key activated: shop %d credited %d", shopID, credits)
}

// LogPayout records a payout resolution.
func (s *Service) LogPayout(ctx context.Context, requestID int, approved bool) {
	s.logger.Printf("[AUDIT] payout request %d resolved (approved=%v)", requestID, approved)
}
