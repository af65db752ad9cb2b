package models

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RedeemRequest is the public redemption payload.
type RedeemRequest struct {
	CouponID    int    `json:"coupon_id" validate:"required,gt=0"`
	CustomerID  int    `json:"customer_id" validate:"required,gt=0"`
	AffiliateID *int   `json:"affiliate_id,omitempty" validate:"omitempty,gt=0"`
	ClickToken  string `json:"click_token,omitempty"`
}

// ContactDetailsRequest is the redemption enrichment payload. Loose customer
// input is validated here before it reaches the transactional core.
type ContactDetailsRequest struct {
	Name         string `json:"name" validate:"omitempty,max=120"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,max=32"`
	PhoneCountry string `json:"phone_country" validate:"omitempty,len=2"`
}

// CreateLinkRequest creates an affiliate tracking link.
type CreateLinkRequest struct {
	AffiliateID int  `json:"affiliate_id" validate:"required,gt=0"`
	CouponID    *int `json:"coupon_id,omitempty" validate:"omitempty,gt=0"`
}

// ConversionRequest records an order-value conversion.
type ConversionRequest struct {
	LinkID     int   `json:"link_id" validate:"required,gt=0"`
	OrderCents int64 `json:"order_cents" validate:"gte=0"`
	CouponID   *int  `json:"coupon_id,omitempty" validate:"omitempty,gt=0"`
}

// PayoutRequestBody creates a payout request.
type PayoutRequestBody struct {
	AffiliateID int    `json:"affiliate_id" validate:"required,gt=0"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Method      string `json:"method" validate:"required,oneof=bank_transfer paypal"`
}

// ResolvePayoutRequest approves or rejects a payout request.
type ResolvePayoutRequest struct {
	Action         string `json:"action" validate:"required,oneof=approve reject"`
	TransactionRef string `json:"transaction_ref" validate:"required_if=Action approve"`
	Reason         string `json:"reason" validate:"required_if=Action reject"`
}

// CreditRequestBody opens a credit request for a shop.
type CreditRequestBody struct {
	ShopID  int   `json:"shop_id" validate:"required,gt=0"`
	Credits int64 `json:"credits" validate:"required,gt=0"`
}

// ActivateKeyRequest redeems an activation code.
type ActivateKeyRequest struct {
	Code   string `json:"code" validate:"required,min=10"`
	ShopID int    `json:"shop_id" validate:"required,gt=0"`
}
