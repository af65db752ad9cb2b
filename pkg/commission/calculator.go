// Package commission holds the pure value calculations used by the
// settlement paths. Nothing here touches storage or returns errors; callers
// validate inputs at the boundary.
package commission

import "math"

// ReferrerBonusCredits is the fixed one-time bonus credited to a shop's
// referrer on the shop's first coupon redemption.
const ReferrerBonusCredits int64 = 200

// Reward returns the customer reward for a coupon redemption. Flat.
func Reward(customerRewardPoints int64) int64 {
	return customerRewardPoints
}

// CouponCommission returns the affiliate commission for a direct coupon
// redemption. Flat, in cents.
func CouponCommission(commissionCents int64) int64 {
	return commissionCents
}

// OrderCommission returns the affiliate commission in cents for an
// order-value conversion at the given rate in basis points, rounded half away
// from zero to the minor unit. Zero and negative order values yield zero.
func OrderCommission(orderCents, rateBps int64) int64 {
	if orderCents <= 0 || rateBps <= 0 {
		return 0
	}
	return int64(math.Round(float64(orderCents) * float64(rateBps) / 10000))
}
