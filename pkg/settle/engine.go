// Package settle implements the redemption transaction engine: the atomic
// unit that validates a coupon, burns one use and distributes value to the
// customer, the attributed affiliate and (once per shop) the referrer.
package settle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jordanlanch/couponly/pkg/commission"
	"github.com/jordanlanch/couponly/pkg/store"
)

var (
	// ErrCouponNotFound is returned when the coupon does not exist.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrExhausted is returned when the coupon has no uses left.
	ErrExhausted = errors.New("coupon exhausted")
	// ErrExpired is returned when the coupon is past its validity window.
	ErrExpired = errors.New("coupon expired")
	// ErrAlreadyRedeemed is returned when the customer already redeemed this
	// coupon. The original redemption record is left untouched.
	ErrAlreadyRedeemed = errors.New("coupon already redeemed by customer")
	// ErrRedemptionNotFound is returned when enrichment targets a missing
	// redemption record.
	ErrRedemptionNotFound = errors.New("redemption not found")
)

// Auditor receives best-effort audit events after a settlement commits.
type Auditor interface {
	LogSettlement(ctx context.Context, redemptionID int, description string)
}

// Notifier receives best-effort notification events after a settlement
// commits. Failures are the notifier's problem, never the engine's.
type Notifier interface {
	RedemptionSettled(shopEmail, couponTitle string, usesLeft int)
}

// CreditedParty is one account touched by a settlement.
type CreditedParty struct {
	AccountID int    `json:"account_id"`
	Role      string `json:"role"`
	Amount    int64  `json:"amount"`
	Unit      string `json:"unit"`
}

// Result describes a committed settlement.
type Result struct {
	Redemption      *store.Redemption `json:"redemption"`
	UsesLeftAfter   int               `json:"uses_left_after"`
	CreditedParties []CreditedParty   `json:"credited_parties"`
	// Attempts counts transaction attempts, including the successful one.
	Attempts int `json:"-"`
}

// ContactInfo is the optional customer contact payload attached to a
// redemption after the fact. Validated at the API boundary.
type ContactInfo struct {
	Name  string
	Email string
	Phone string
}

// Engine executes settlements against the injected store.
type Engine struct {
	store    store.Store
	auditor  Auditor
	notifier Notifier
}

// NewEngine creates a settlement engine. auditor and notifier may be nil.
func NewEngine(s store.Store, auditor Auditor, notifier Notifier) *Engine {
	return &Engine{store: s, auditor: auditor, notifier: notifier}
}

// Redeem settles one coupon use for a customer, optionally crediting an
// attributed affiliate. The whole read-validate-write unit runs inside one
// optimistic transaction and is retried on write conflicts.
func (e *Engine) Redeem(ctx context.Context, couponID, customerID int, affiliateID *int) (*Result, error) {
	var (
		result    Result
		shopEmail string
		couponTag string
	)

	attempts, err := store.WithRetry(ctx, func() error {
		result = Result{}
		return e.store.InTx(ctx, func(tx store.Tx) error {
			now := time.Now()

			// Read phase. Everything the write phase touches is loaded
			// here, before any write is staged.
			coupon, err := tx.Coupons().Get(couponID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrCouponNotFound
				}
				return fmt.Errorf("failed to load coupon: %w", err)
			}

			shop, err := tx.Accounts().Get(coupon.ShopID)
			if err != nil {
				return fmt.Errorf("failed to load shop account: %w", err)
			}

			if _, err := tx.Redemptions().FindByCouponAndCustomer(couponID, customerID); err == nil {
				return ErrAlreadyRedeemed
			} else if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("failed to check prior redemption: %w", err)
			}

			var customer *store.Account
			rewardPoints := commission.Reward(coupon.CustomerRewardPoints)
			if rewardPoints > 0 {
				customer, err = tx.Accounts().Get(customerID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("customer account %d: %w", customerID, store.ErrNotFound)
					}
					return fmt.Errorf("failed to load customer account: %w", err)
				}
			}

			var affiliate *store.Account
			commissionCents := commission.CouponCommission(coupon.CommissionCents)
			if affiliateID != nil && *affiliateID != shop.ID && commissionCents > 0 {
				aff, err := tx.Accounts().Get(*affiliateID)
				switch {
				case err == nil && aff.Type == store.AccountAffiliate:
					affiliate = aff
				case err != nil && !errors.Is(err, store.ErrNotFound):
					return fmt.Errorf("failed to load affiliate account: %w", err)
				}
				// A missing or non-affiliate account voids attribution
				// rather than failing the redemption.
			}

			var (
				referrer *store.Account
				referral *store.Referral
			)
			if !shop.HasRedeemedFirstCoupon && shop.ReferrerID != nil {
				ref, err := tx.Referrals().FindByReferredShop(shop.ID)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("failed to load referral: %w", err)
				}
				if err == nil && !ref.Rewarded {
					referrer, err = tx.Accounts().Get(*shop.ReferrerID)
					if err != nil && !errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("failed to load referrer account: %w", err)
					}
					if referrer != nil {
						referral = ref
					}
				}
			}

			// Validation.
			if coupon.UsesLeft <= 0 {
				return ErrExhausted
			}
			if coupon.ExpiredAt(now) {
				return ErrExpired
			}

			// Write phase. All staged, committed together or not at all.
			coupon.UsesLeft--
			if err := tx.Coupons().Update(coupon); err != nil {
				return fmt.Errorf("failed to update coupon: %w", err)
			}

			redemption := &store.Redemption{
				CouponID:   couponID,
				CustomerID: customerID,
				ShopID:     shop.ID,
				CreatedAt:  now,
			}

			if customer != nil {
				customer.Credits += rewardPoints
				if err := tx.Accounts().Update(customer); err != nil {
					return fmt.Errorf("failed to credit customer: %w", err)
				}
				redemption.CustomerPoints = rewardPoints
			}

			if affiliate != nil {
				affiliate.PendingCents += commissionCents
				affiliate.TotalEarningsCents += commissionCents
				if err := tx.Accounts().Update(affiliate); err != nil {
					return fmt.Errorf("failed to credit affiliate: %w", err)
				}
				redemption.AffiliateID = &affiliate.ID
				redemption.CommissionCents = commissionCents
			}

			if referrer != nil {
				bonus := commission.ReferrerBonusCredits
				referrer.Credits += bonus
				if err := tx.Accounts().Update(referrer); err != nil {
					return fmt.Errorf("failed to credit referrer: %w", err)
				}
				referral.Rewarded = true
				if err := tx.Referrals().Update(referral); err != nil {
					return fmt.Errorf("failed to mark referral rewarded: %w", err)
				}
				redemption.ReferrerID = &referrer.ID
				redemption.ReferrerBonus = bonus
			}

			if !shop.HasRedeemedFirstCoupon {
				shop.HasRedeemedFirstCoupon = true
				if err := tx.Accounts().Update(shop); err != nil {
					return fmt.Errorf("failed to update shop: %w", err)
				}
			}

			if err := tx.Redemptions().Create(redemption); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return ErrAlreadyRedeemed
				}
				return fmt.Errorf("failed to create redemption: %w", err)
			}

			// The pending commission is tracked as a conversion so the
			// approval sweep can promote it after the hold period.
			if affiliate != nil {
				conv := &store.AffiliateConversion{
					AffiliateID:  affiliate.ID,
					Source:       store.SourceCoupon,
					RedemptionID: &redemption.ID,
					AmountCents:  commissionCents,
					IsPending:    true,
					ConvertedAt:  now,
				}
				if err := tx.Affiliates().CreateConversion(conv); err != nil {
					return fmt.Errorf("failed to create conversion: %w", err)
				}
			}

			// One ledger entry per credited party.
			if customer != nil {
				if err := tx.Ledger().Append(&store.LedgerEntry{
					AccountID: customer.ID,
					Kind:      store.LedgerCustomerReward,
					Amount:    rewardPoints,
					RefType:   "redemption",
					RefID:     redemption.ID,
					CreatedAt: now,
				}); err != nil {
					return fmt.Errorf("failed to append ledger entry: %w", err)
				}
				result.CreditedParties = append(result.CreditedParties, CreditedParty{
					AccountID: customer.ID, Role: "customer", Amount: rewardPoints, Unit: "credits",
				})
			}
			if affiliate != nil {
				if err := tx.Ledger().Append(&store.LedgerEntry{
					AccountID: affiliate.ID,
					Kind:      store.LedgerAffiliateCommission,
					Amount:    commissionCents,
					RefType:   "redemption",
					RefID:     redemption.ID,
					CreatedAt: now,
				}); err != nil {
					return fmt.Errorf("failed to append ledger entry: %w", err)
				}
				result.CreditedParties = append(result.CreditedParties, CreditedParty{
					AccountID: affiliate.ID, Role: "affiliate", Amount: commissionCents, Unit: "cents",
				})
			}
			if referrer != nil {
				if err := tx.Ledger().Append(&store.LedgerEntry{
					AccountID: referrer.ID,
					Kind:      store.LedgerReferralBonus,
					Amount:    redemption.ReferrerBonus,
					RefType:   "redemption",
					RefID:     redemption.ID,
					CreatedAt: now,
				}); err != nil {
					return fmt.Errorf("failed to append ledger entry: %w", err)
				}
				result.CreditedParties = append(result.CreditedParties, CreditedParty{
					AccountID: referrer.ID, Role: "referrer", Amount: redemption.ReferrerBonus, Unit: "credits",
				})
			}

			result.Redemption = redemption
			result.UsesLeftAfter = coupon.UsesLeft
			shopEmail = shop.Email
			couponTag = coupon.Title
			return nil
		})
	})
	result.Attempts = attempts
	if err != nil {
		return nil, err
	}

	// Best-effort collaborators, strictly after commit. Their failure never
	// rolls back or retries the settlement.
	if e.auditor != nil {
		e.auditor.LogSettlement(ctx, result.Redemption.ID,
			fmt.Sprintf("coupon %d redeemed by customer %d", couponID, customerID))
	}
	if e.notifier != nil {
		e.notifier.RedemptionSettled(shopEmail, couponTag, result.UsesLeftAfter)
	}

	return &result, nil
}

// AttachDetails attaches customer contact details to an existing redemption.
// It is an enrichment of the original record, never a second redemption.
func (e *Engine) AttachDetails(ctx context.Context, redemptionID int, info ContactInfo) (*store.Redemption, error) {
	var updated *store.Redemption

	_, err := store.WithRetry(ctx, func() error {
		return e.store.InTx(ctx, func(tx store.Tx) error {
			rec, err := tx.Redemptions().Get(redemptionID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrRedemptionNotFound
				}
				return fmt.Errorf("failed to load redemption: %w", err)
			}

			if info.Name != "" {
				rec.ContactName = info.Name
			}
			if info.Email != "" {
				rec.ContactEmail = info.Email
			}
			if info.Phone != "" {
				rec.ContactPhone = info.Phone
			}

			if err := tx.Redemptions().Update(rec); err != nil {
				return fmt.Errorf("failed to update redemption: %w", err)
			}
			updated = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📇 Redemption %d enriched with contact details", redemptionID)
	return updated, nil
}
