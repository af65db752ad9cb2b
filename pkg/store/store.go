package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrWriteConflict is returned when a transaction's write is based on a
	// read that another transaction has since invalidated. The caller is
	// expected to retry the whole read-validate-write unit.
	ErrWriteConflict = errors.New("write conflict")
	// ErrDuplicate is returned when a uniqueness rule would be violated.
	ErrDuplicate = errors.New("duplicate record")
)

// Store opens optimistic transactions against the underlying datastore.
//
// InTx runs fn against a transaction. All reads performed through the
// transaction are tracked; if any entity read by fn is modified by another
// transaction before commit, InTx returns ErrWriteConflict and none of the
// staged writes are applied. fn must do all of its reads before its writes.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx groups the per-entity repositories of one transaction.
type Tx interface {
	Accounts() AccountRepo
	Coupons() CouponRepo
	Redemptions() RedemptionRepo
	Affiliates() AffiliateRepo
	Payouts() PayoutRepo
	Referrals() ReferralRepo
	CreditKeys() CreditKeyRepo
	Ledger() LedgerRepo
}

// AccountRepo accesses accounts.
type AccountRepo interface {
	Get(id int) (*Account, error)
	Create(a *Account) error
	Update(a *Account) error
}

// CouponRepo accesses coupons.
type CouponRepo interface {
	Get(id int) (*Coupon, error)
	Create(c *Coupon) error
	Update(c *Coupon) error
}

// RedemptionRepo accesses redemption records.
type RedemptionRepo interface {
	Get(id int) (*Redemption, error)
	// FindByCouponAndCustomer returns ErrNotFound when the pair has not
	// redeemed yet.
	FindByCouponAndCustomer(couponID, customerID int) (*Redemption, error)
	Create(r *Redemption) error
	Update(r *Redemption) error
}

// AffiliateRepo accesses affiliate links, clicks and conversions.
type AffiliateRepo interface {
	GetLink(id int) (*AffiliateLink, error)
	FindLinkByCode(code string) (*AffiliateLink, error)
	CreateLink(l *AffiliateLink) error
	UpdateLink(l *AffiliateLink) error

	CreateClick(c *AffiliateClick) error
	FindClickByToken(token string) (*AffiliateClick, error)

	GetConversion(id int) (*AffiliateConversion, error)
	CreateConversion(c *AffiliateConversion) error
	UpdateConversion(c *AffiliateConversion) error
	// PendingConversionsBefore returns conversions still pending whose
	// ConvertedAt is at or before the cutoff.
	PendingConversionsBefore(cutoff time.Time) ([]*AffiliateConversion, error)
	// UnpaidApprovedConversions returns approved (not pending), not yet
	// paid-out conversions for one affiliate.
	UnpaidApprovedConversions(affiliateID int) ([]*AffiliateConversion, error)
}

// PayoutRepo accesses payout requests.
type PayoutRepo interface {
	Get(id int) (*PayoutRequest, error)
	Create(p *PayoutRequest) error
	Update(p *PayoutRequest) error
}

// ReferralRepo accesses referrals.
type ReferralRepo interface {
	// FindByReferredShop returns ErrNotFound when the shop was not referred.
	FindByReferredShop(shopID int) (*Referral, error)
	Create(r *Referral) error
	Update(r *Referral) error
}

// CreditKeyRepo accesses credit requests and activation keys.
type CreditKeyRepo interface {
	GetRequest(id int) (*CreditRequest, error)
	CreateRequest(r *CreditRequest) error
	UpdateRequest(r *CreditRequest) error

	GetKey(id int) (*CreditKey, error)
	// KeysForShop returns all keys bound to a shop, newest first.
	KeysForShop(shopID int) ([]*CreditKey, error)
	CreateKey(k *CreditKey) error
	UpdateKey(k *CreditKey) error
}

// LedgerRepo appends audit records of credit movements.
type LedgerRepo interface {
	Append(e *LedgerEntry) error
	// ForAccount returns entries for one account, oldest first.
	ForAccount(accountID int) ([]*LedgerEntry, error)
	// All returns every entry, oldest first.
	All() ([]*LedgerEntry, error)
}
