// Package payout governs the affiliate balance state machine: commissions
// are born pending, become available after the hold period (approval sweep),
// and leave the system through admin-resolved payout requests.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jordanlanch/couponly/pkg/commission"
	"github.com/jordanlanch/couponly/pkg/store"
)

// HoldPeriod is how long a conversion stays pending before the approval
// sweep may promote it to available.
const HoldPeriod = 30 * 24 * time.Hour

var (
	// ErrAffiliateNotFound is returned when the affiliate account doesn't exist.
	ErrAffiliateNotFound = errors.New("affiliate not found")
	// ErrInsufficientBalance is returned when a payout request exceeds the
	// affiliate's available balance.
	ErrInsufficientBalance = errors.New("insufficient available balance")
	// ErrRequestNotFound is returned when the payout request doesn't exist.
	ErrRequestNotFound = errors.New("payout request not found")
	// ErrAlreadyResolved is returned when resolving a request that is no
	// longer pending. COMPLETED and REJECTED are terminal.
	ErrAlreadyResolved = errors.New("payout request already resolved")
)

// Notifier receives best-effort events after a payout transaction commits.
type Notifier interface {
	PayoutResolved(email string, amountCents int64, approved bool, detail string)
}

// Auditor receives best-effort audit events after a resolution commits.
type Auditor interface {
	LogPayout(ctx context.Context, requestID int, approved bool)
}

// Stats summarizes one affiliate's balances and activity.
type Stats struct {
	AffiliateID        int   `json:"affiliate_id"`
	PendingCents       int64 `json:"pending_cents"`
	AvailableCents     int64 `json:"available_cents"`
	TotalEarningsCents int64 `json:"total_earnings_cents"`
	TotalPaidOutCents  int64 `json:"total_paid_out_cents"`
}

// Service handles conversions and payouts.
type Service struct {
	store    store.Store
	notifier Notifier
	auditor  Auditor
}

// NewService creates a new payout service. notifier and auditor may be nil.
func NewService(s store.Store, notifier Notifier, auditor Auditor) *Service {
	return &Service{store: s, notifier: notifier, auditor: auditor}
}

// RecordConversion records one order-value commission event against an
// affiliate link. The commission lands on the affiliate's pending balance
// and stays there for the hold period. A zero-value order is recorded with a
// zero amount and moves no balance.
func (s *Service) RecordConversion(ctx context.Context, linkID int, orderCents int64, couponID *int) (*store.AffiliateConversion, error) {
	var conv *store.AffiliateConversion

	_, err := store.WithRetry(ctx, func() error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			link, err := tx.Affiliates().GetLink(linkID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("affiliate link %d: %w", linkID, store.ErrNotFound)
				}
				return fmt.Errorf("failed to load link: %w", err)
			}

			aff, err := tx.Accounts().Get(link.AffiliateID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrAffiliateNotFound
				}
				return fmt.Errorf("failed to load affiliate: %w", err)
			}

			amount := commission.OrderCommission(orderCents, aff.CommissionRateBps)

			c := &store.AffiliateConversion{
				AffiliateID: aff.ID,
				Source:      store.SourceOrder,
				LinkID:      &link.ID,
				OrderCents:  orderCents,
				RateBps:     aff.CommissionRateBps,
				AmountCents: amount,
				IsPending:   true,
			}
			if err := tx.Affiliates().CreateConversion(c); err != nil {
				return fmt.Errorf("failed to create conversion: %w", err)
			}

			if amount > 0 {
				aff.PendingCents += amount
				aff.TotalEarningsCents += amount
				if err := tx.Accounts().Update(aff); err != nil {
					return fmt.Errorf("failed to update affiliate balances: %w", err)
				}
				if err := tx.Ledger().Append(&store.LedgerEntry{
					AccountID: aff.ID,
					Kind:      store.LedgerAffiliateCommission,
					Amount:    amount,
					RefType:   "conversion",
					RefID:     c.ID,
				}); err != nil {
					return fmt.Errorf("failed to append ledger entry: %w", err)
				}
			}

			conv = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// PromoteEligible is the approval sweep: it promotes every conversion that
// is still pending and older than the hold period from the affiliate's
// pending balance to its available balance. Safe to run concurrently and
// repeatedly; a conversion already promoted is a no-op on re-entry.
func (s *Service) PromoteEligible(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-HoldPeriod)

	// Collect candidate ids first; each promotion is its own retryable
	// transaction so one contended conversion doesn't wedge the sweep.
	var candidates []int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		pending, err := tx.Affiliates().PendingConversionsBefore(cutoff)
		if err != nil {
			return fmt.Errorf("failed to list pending conversions: %w", err)
		}
		for _, c := range pending {
			candidates = append(candidates, c.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, id := range candidates {
		changed, err := s.promoteOne(ctx, id, cutoff)
		if err != nil {
			return promoted, err
		}
		if changed {
			promoted++
		}
	}
	return promoted, nil
}

func (s *Service) promoteOne(ctx context.Context, conversionID int, cutoff time.Time) (bool, error) {
	promoted := false
	_, err := store.WithRetry(ctx, func() error {
		promoted = false
		return s.store.InTx(ctx, func(tx store.Tx) error {
			c, err := tx.Affiliates().GetConversion(conversionID)
			if err != nil {
				return fmt.Errorf("failed to load conversion: %w", err)
			}
			// Re-check state inside the transaction: a concurrent sweep may
			// have promoted it already.
			if !c.IsPending || c.ConvertedAt.After(cutoff) {
				return nil
			}

			aff, err := tx.Accounts().Get(c.AffiliateID)
			if err != nil {
				return fmt.Errorf("failed to load affiliate: %w", err)
			}

			c.IsPending = false
			if err := tx.Affiliates().UpdateConversion(c); err != nil {
				return fmt.Errorf("failed to update conversion: %w", err)
			}

			if c.AmountCents > 0 {
				aff.PendingCents -= c.AmountCents
				aff.AvailableCents += c.AmountCents
				if err := tx.Accounts().Update(aff); err != nil {
					return fmt.Errorf("failed to update affiliate balances: %w", err)
				}
				if err := tx.Ledger().Append(&store.LedgerEntry{
					AccountID: aff.ID,
					Kind:      store.LedgerPromotion,
					Amount:    c.AmountCents,
					RefType:   "conversion",
					RefID:     c.ID,
				}); err != nil {
					return fmt.Errorf("failed to append ledger entry: %w", err)
				}
			}

			promoted = true
			return nil
		})
	})
	return promoted, err
}

// RequestPayout creates a payout request and reserves the amount out of the
// affiliate's available balance immediately.
func (s *Service) RequestPayout(ctx context.Context, affiliateID int, amountCents int64, method string) (*store.PayoutRequest, error) {
	var req *store.PayoutRequest

	_, err := store.WithRetry(ctx, func() error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			aff, err := tx.Accounts().Get(affiliateID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrAffiliateNotFound
				}
				return fmt.Errorf("failed to load affiliate: %w", err)
			}

			if amountCents > aff.AvailableCents {
				return ErrInsufficientBalance
			}

			aff.AvailableCents -= amountCents
			if err := tx.Accounts().Update(aff); err != nil {
				return fmt.Errorf("failed to reserve balance: %w", err)
			}

			r := &store.PayoutRequest{
				AffiliateID: affiliateID,
				AmountCents: amountCents,
				Method:      method,
				Status:      store.PayoutPending,
			}
			if err := tx.Payouts().Create(r); err != nil {
				return fmt.Errorf("failed to create payout request: %w", err)
			}

			if err := tx.Ledger().Append(&store.LedgerEntry{
				AccountID: affiliateID,
				Kind:      store.LedgerPayoutReserve,
				Amount:    -amountCents,
				RefType:   "payout_request",
				RefID:     r.ID,
			}); err != nil {
				return fmt.Errorf("failed to append ledger entry: %w", err)
			}

			req = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("💸 Payout request %d created for affiliate %d (%d cents)", req.ID, affiliateID, amountCents)
	return req, nil
}

// Approve completes a pending payout request with an external transaction
// reference. The reserved amount becomes paid out and the affiliate's
// approved, unpaid conversions are marked paid.
func (s *Service) Approve(ctx context.Context, requestID int, transactionRef string) (*store.PayoutRequest, error) {
	return s.resolve(ctx, requestID, true, transactionRef, "")
}

// Reject rejects a pending payout request with a reason and refunds the
// reserved amount to the affiliate's available balance. Conversions stay
// untouched and remain available for a future payout.
func (s *Service) Reject(ctx context.Context, requestID int, reason string) (*store.PayoutRequest, error) {
	return s.resolve(ctx, requestID, false, "", reason)
}

func (s *Service) resolve(ctx context.Context, requestID int, approve bool, transactionRef, reason string) (*store.PayoutRequest, error) {
	var (
		req      *store.PayoutRequest
		affEmail string
	)

	_, err := store.WithRetry(ctx, func() error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			r, err := tx.Payouts().Get(requestID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrRequestNotFound
				}
				return fmt.Errorf("failed to load payout request: %w", err)
			}
			if r.Status != store.PayoutPending {
				return ErrAlreadyResolved
			}

			aff, err := tx.Accounts().Get(r.AffiliateID)
			if err != nil {
				return fmt.Errorf("failed to load affiliate: %w", err)
			}

			var conversions []*store.AffiliateConversion
			if approve {
				conversions, err = tx.Affiliates().UnpaidApprovedConversions(r.AffiliateID)
				if err != nil {
					return fmt.Errorf("failed to list conversions: %w", err)
				}
			}

			now := time.Now()
			r.ResolvedAt = &now

			if approve {
				r.Status = store.PayoutCompleted
				r.TransactionRef = transactionRef

				aff.TotalPaidOutCents += r.AmountCents
				if err := tx.Accounts().Update(aff); err != nil {
					return fmt.Errorf("failed to update affiliate balances: %w", err)
				}

				for _, c := range conversions {
					c.PaidOut = true
					if err := tx.Affiliates().UpdateConversion(c); err != nil {
						return fmt.Errorf("failed to mark conversion paid: %w", err)
					}
				}

				if err := tx.Ledger().Append(&store.LedgerEntry{
					AccountID: aff.ID,
					Kind:      store.LedgerPayout,
					Amount:    -r.AmountCents,
					RefType:   "payout_request",
					RefID:     r.ID,
				}); err != nil {
					return fmt.Errorf("failed to append ledger entry: %w", err)
				}
			} else {
				r.Status = store.PayoutRejected
				r.RejectReason = reason

				aff.AvailableCents += r.AmountCents
				if err := tx.Accounts().Update(aff); err != nil {
					return fmt.Errorf("failed to refund reserved balance: %w", err)
				}

				if err := tx.Ledger().Append(&store.LedgerEntry{
					AccountID: aff.ID,
					Kind:      store.LedgerPayoutRefund,
					Amount:    r.AmountCents,
					RefType:   "payout_request",
					RefID:     r.ID,
				}); err != nil {
					return fmt.Errorf("failed to append ledger entry: %w", err)
				}
			}

			if err := tx.Payouts().Update(r); err != nil {
				return fmt.Errorf("failed to update payout request: %w", err)
			}

			req = r
			affEmail = aff.Email
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.LogPayout(ctx, req.ID, approve)
	}
	if s.notifier != nil {
		detail := req.TransactionRef
		if !approve {
			detail = req.RejectReason
		}
		s.notifier.PayoutResolved(affEmail, req.AmountCents, approve, detail)
	}

	return req, nil
}

// GetStats returns balance statistics for one affiliate.
func (s *Service) GetStats(ctx context.Context, affiliateID int) (*Stats, error) {
	var stats *Stats
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		aff, err := tx.Accounts().Get(affiliateID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAffiliateNotFound
			}
			return fmt.Errorf("failed to load affiliate: %w", err)
		}
		stats = &Stats{
			AffiliateID:        aff.ID,
			PendingCents:       aff.PendingCents,
			AvailableCents:     aff.AvailableCents,
			TotalEarningsCents: aff.TotalEarningsCents,
			TotalPaidOutCents:  aff.TotalPaidOutCents,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
