package store

import "time"

// AccountType distinguishes the kinds of accounts the marketplace settles
// value between. Shops and customers hold internal credits; affiliates hold
// cent-denominated commission balances.
type AccountType string

const (
	AccountShop      AccountType = "shop"
	AccountCustomer  AccountType = "customer"
	AccountAffiliate AccountType = "affiliate"
)

// Account is an identity plus its mutable balance fields.
//
// For affiliate accounts the identity
//
//	PendingCents + AvailableCents + TotalPaidOutCents == TotalEarningsCents
//
// holds whenever no payout reservation is open; a pending payout request
// holds its amount outside all four fields until it is approved (moves to
// TotalPaidOutCents) or rejected (returns to AvailableCents). Every balance
// mutation goes through a store transaction.
type Account struct {
	ID    int
	Type  AccountType
	Name  string
	Email string

	// Shop/customer credits (internal currency).
	Credits int64

	// Affiliate balances, in cents.
	PendingCents       int64
	AvailableCents     int64
	TotalEarningsCents int64
	TotalPaidOutCents  int64

	// Affiliate commission rate in basis points, for order-value conversions.
	CommissionRateBps int64

	// Referral bookkeeping for shop accounts.
	ReferrerID             *int
	HasRedeemedFirstCoupon bool

	CreatedAt time.Time
	Version   int64
}

// Coupon is owned by exactly one shop. UsesLeft only ever decreases.
type Coupon struct {
	ID                   int
	ShopID               int
	Code                 string
	Title                string
	UsesLeft             int
	CustomerRewardPoints int64
	CommissionCents      int64
	// Validity: either an absolute expiry, a duration from creation, or both.
	ExpiresAt *time.Time
	ValidFor  *time.Duration
	CreatedAt time.Time
	Version   int64
}

// ExpiredAt reports whether the coupon is past its validity at the given time.
func (c *Coupon) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return true
	}
	if c.ValidFor != nil && now.After(c.CreatedAt.Add(*c.ValidFor)) {
		return true
	}
	return false
}

// Redemption is the immutable record of one successful coupon use. The only
// post-creation mutation allowed is attaching customer contact details.
type Redemption struct {
	ID         int
	CouponID   int
	CustomerID int
	ShopID     int

	AffiliateID     *int
	ReferrerID      *int
	CustomerPoints  int64
	CommissionCents int64
	ReferrerBonus   int64

	ContactName  string
	ContactEmail string
	ContactPhone string

	CreatedAt time.Time
	Version   int64
}

// AffiliateLink maps a tracking code to an affiliate, optionally scoped to
// one coupon.
type AffiliateLink struct {
	ID          int
	AffiliateID int
	Code        string
	CouponID    *int
	TotalClicks int
	CreatedAt   time.Time
	Version     int64
}

// AffiliateClick records one follow of a tracking link. Token is the value
// handed back to the visitor for later attribution.
type AffiliateClick struct {
	ID          int
	LinkID      int
	AffiliateID int
	Token       string
	IPAddress   string
	UserAgent   string
	Referrer    string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	ClickedAt   time.Time
}

// ConversionSource tells which path produced a conversion.
type ConversionSource string

const (
	SourceCoupon ConversionSource = "coupon"
	SourceOrder  ConversionSource = "order"
)

// AffiliateConversion is one commission event. Born pending; the approval
// sweep flips IsPending after the hold period, a completed payout flips
// PaidOut.
type AffiliateConversion struct {
	ID           int
	AffiliateID  int
	Source       ConversionSource
	RedemptionID *int
	LinkID       *int
	OrderCents   int64
	RateBps      int64
	AmountCents  int64
	IsPending    bool
	PaidOut      bool
	ConvertedAt  time.Time
	Version      int64
}

// PayoutStatus is the payout request state machine.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutCompleted PayoutStatus = "COMPLETED"
	PayoutRejected  PayoutStatus = "REJECTED"
)

// PayoutRequest reserves AmountCents out of the affiliate's available balance
// at creation time. COMPLETED and REJECTED are terminal.
type PayoutRequest struct {
	ID             int
	AffiliateID    int
	AmountCents    int64
	Method         string
	Status         PayoutStatus
	TransactionRef string
	RejectReason   string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
	Version        int64
}

// Referral records that one shop was referred by another. Rewarded flips at
// most once, on the referred shop's first coupon redemption.
type Referral struct {
	ID             int
	ReferrerShopID int
	ReferredShopID int
	Rewarded       bool
	CreatedAt      time.Time
	Version        int64
}

// CreditRequestStatus is the credit request state machine.
type CreditRequestStatus string

const (
	CreditRequestPending      CreditRequestStatus = "PENDING"
	CreditRequestKeyGenerated CreditRequestStatus = "KEY_GENERATED"
	CreditRequestCompleted    CreditRequestStatus = "COMPLETED"
)

// CreditRequest is a shop's request for admin-granted credits.
type CreditRequest struct {
	ID      int
	ShopID  int
	Credits int64
	Status  CreditRequestStatus

	CreatedAt time.Time
	Version   int64
}

// CreditKey is an admin-issued one-time activation code bound to one shop and
// one amount. Only the bcrypt hash of the code is stored.
type CreditKey struct {
	ID        int
	RequestID int
	ShopID    int
	CodeHash  string
	Credits   int64
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
	Version   int64
}

// LedgerKind classifies a credit movement.
type LedgerKind string

const (
	LedgerCustomerReward      LedgerKind = "customer_reward"
	LedgerAffiliateCommission LedgerKind = "affiliate_commission"
	LedgerReferralBonus       LedgerKind = "referral_bonus"
	LedgerCreditKey           LedgerKind = "credit_key"
	LedgerPayout              LedgerKind = "payout"
	LedgerPayoutReserve       LedgerKind = "payout_reserve"
	LedgerPayoutRefund        LedgerKind = "payout_refund"
	LedgerPromotion           LedgerKind = "promotion"
)

// LedgerEntry is an immutable audit record of one credit movement. Amount is
// in the unit of the target account (credits or cents).
type LedgerEntry struct {
	ID        int
	AccountID int
	Kind      LedgerKind
	Amount    int64
	RefType   string
	RefID     int
	CreatedAt time.Time
}
