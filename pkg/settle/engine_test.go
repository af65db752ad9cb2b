package settle

import (
	"context"
	"testing"
	"time"

	"github.com/jordanlanch/couponly/pkg/commission"
	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/jordanlanch/couponly/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAccount(t *testing.T, st store.Store, a *store.Account) *store.Account {
	t.Helper()
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.Accounts().Create(a)
	})
	require.NoError(t, err)
	return a
}

func createCoupon(t *testing.T, st store.Store, c *store.Coupon) *store.Coupon {
	t.Helper()
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.Coupons().Create(c)
	})
	require.NoError(t, err)
	return c
}

func getAccount(t *testing.T, st store.Store, id int) *store.Account {
	t.Helper()
	var a *store.Account
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		a, err = tx.Accounts().Get(id)
		return err
	})
	require.NoError(t, err)
	return a
}

func getCoupon(t *testing.T, st store.Store, id int) *store.Coupon {
	t.Helper()
	var c *store.Coupon
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		c, err = tx.Coupons().Get(id)
		return err
	})
	require.NoError(t, err)
	return c
}

func ledgerFor(t *testing.T, st store.Store, accountID int) []*store.LedgerEntry {
	t.Helper()
	var entries []*store.LedgerEntry
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		entries, err = tx.Ledger().ForAccount(accountID)
		return err
	})
	require.NoError(t, err)
	return entries
}

func TestRedeem(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - credits customer and burns one use", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})
		coupon := createCoupon(t, st, &store.Coupon{
			ShopID:               shop.ID,
			UsesLeft:             3,
			CustomerRewardPoints: 50,
		})

		result, err := engine.Redeem(ctx, coupon.ID, customer.ID, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, result.UsesLeftAfter)
		assert.Equal(t, 2, getCoupon(t, st, coupon.ID).UsesLeft)
		assert.Equal(t, int64(50), getAccount(t, st, customer.ID).Credits)
		assert.Equal(t, int64(50), result.Redemption.CustomerPoints)

		require.Len(t, result.CreditedParties, 1)
		assert.Equal(t, "customer", result.CreditedParties[0].Role)

		entries := ledgerFor(t, st, customer.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, store.LedgerCustomerReward, entries[0].Kind)
		assert.Equal(t, int64(50), entries[0].Amount)
	})

	t.Run("Success - affiliate commission lands on pending balance", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})
		affiliate := createAccount(t, st, &store.Account{Type: store.AccountAffiliate, Name: "Affiliate"})
		coupon := createCoupon(t, st, &store.Coupon{
			ShopID:          shop.ID,
			UsesLeft:        1,
			CommissionCents: 500,
		})

		result, err := engine.Redeem(ctx, coupon.ID, customer.ID, &affiliate.ID)
		require.NoError(t, err)

		aff := getAccount(t, st, affiliate.ID)
		assert.Equal(t, int64(500), aff.PendingCents)
		assert.Equal(t, int64(0), aff.AvailableCents)
		assert.Equal(t, int64(500), aff.TotalEarningsCents)
		// Balance identity with no open payout reservation.
		assert.Equal(t, aff.TotalEarningsCents, aff.PendingCents+aff.AvailableCents+aff.TotalPaidOutCents)

		require.NotNil(t, result.Redemption.AffiliateID)
		assert.Equal(t, affiliate.ID, *result.Redemption.AffiliateID)
		assert.Equal(t, int64(500), result.Redemption.CommissionCents)
	})

	t.Run("Success - self-attribution is voided", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})
		coupon := createCoupon(t, st, &store.Coupon{
			ShopID:          shop.ID,
			UsesLeft:        1,
			CommissionCents: 500,
		})

		result, err := engine.Redeem(ctx, coupon.ID, customer.ID, &shop.ID)
		require.NoError(t, err)
		assert.Nil(t, result.Redemption.AffiliateID)
		assert.Equal(t, int64(0), result.Redemption.CommissionCents)
	})

	t.Run("Success - non-affiliate account voids attribution", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})
		other := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Other"})
		coupon := createCoupon(t, st, &store.Coupon{
			ShopID:          shop.ID,
			UsesLeft:        1,
			CommissionCents: 500,
		})

		result, err := engine.Redeem(ctx, coupon.ID, customer.ID, &other.ID)
		require.NoError(t, err)
		assert.Nil(t, result.Redemption.AffiliateID)
		assert.Equal(t, int64(0), getAccount(t, st, other.ID).PendingCents)
	})

	t.Run("Success - referrer bonus exactly once", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		referrer := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Referrer"})
		shop := createAccount(t, st, &store.Account{
			Type:       store.AccountShop,
			Name:       "Referred Shop",
			ReferrerID: &referrer.ID,
		})
		err := st.InTx(ctx, func(tx store.Tx) error {
			return tx.Referrals().Create(&store.Referral{
				ReferrerShopID: referrer.ID,
				ReferredShopID: shop.ID,
			})
		})
		require.NoError(t, err)

		c1 := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "C1"})
		c2 := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "C2"})
		coupon := createCoupon(t, st, &store.Coupon{ShopID: shop.ID, UsesLeft: 10, CustomerRewardPoints: 10})

		result, err := engine.Redeem(ctx, coupon.ID, c1.ID, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Redemption.ReferrerID)
		assert.Equal(t, commission.ReferrerBonusCredits, result.Redemption.ReferrerBonus)
		assert.Equal(t, commission.ReferrerBonusCredits, getAccount(t, st, referrer.ID).Credits)

		// Second redemption of the same shop's coupon: no second bonus.
		result2, err := engine.Redeem(ctx, coupon.ID, c2.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, result2.Redemption.ReferrerID)
		assert.Equal(t, commission.ReferrerBonusCredits, getAccount(t, st, referrer.ID).Credits)
	})

	t.Run("Error - exhausted coupon leaves no writes", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})
		coupon := createCoupon(t, st, &store.Coupon{
			ShopID:               shop.ID,
			UsesLeft:             0,
			CustomerRewardPoints: 50,
		})

		_, err := engine.Redeem(ctx, coupon.ID, customer.ID, nil)
		assert.ErrorIs(t, err, ErrExhausted)

		assert.Equal(t, 0, getCoupon(t, st, coupon.ID).UsesLeft)
		assert.Equal(t, int64(0), getAccount(t, st, customer.ID).Credits)
		assert.Empty(t, ledgerFor(t, st, customer.ID))
	})

	t.Run("Error - expired coupon", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})
		expired := time.Now().Add(-time.Hour)
		coupon := createCoupon(t, st, &store.Coupon{
			ShopID:    shop.ID,
			UsesLeft:  5,
			ExpiresAt: &expired,
		})

		_, err := engine.Redeem(ctx, coupon.ID, customer.ID, nil)
		assert.ErrorIs(t, err, ErrExpired)
		assert.Equal(t, 5, getCoupon(t, st, coupon.ID).UsesLeft)
	})

	t.Run("Error - duplicate redemption by same customer", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})
		coupon := createCoupon(t, st, &store.Coupon{
			ShopID:               shop.ID,
			UsesLeft:             5,
			CustomerRewardPoints: 50,
		})

		_, err := engine.Redeem(ctx, coupon.ID, customer.ID, nil)
		require.NoError(t, err)

		_, err = engine.Redeem(ctx, coupon.ID, customer.ID, nil)
		assert.ErrorIs(t, err, ErrAlreadyRedeemed)

		// The first redemption's effects are untouched.
		assert.Equal(t, 4, getCoupon(t, st, coupon.ID).UsesLeft)
		assert.Equal(t, int64(50), getAccount(t, st, customer.ID).Credits)
	})

	t.Run("Error - unknown coupon", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})

		_, err := engine.Redeem(ctx, 999, customer.ID, nil)
		assert.ErrorIs(t, err, ErrCouponNotFound)
	})

	t.Run("Concurrency - conflicting writers both settle via retry", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		coupon := createCoupon(t, st, &store.Coupon{
			ShopID:               shop.ID,
			UsesLeft:             10,
			CustomerRewardPoints: 10,
		})

		customers := make([]*store.Account, 5)
		for i := range customers {
			customers[i] = createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "C"})
		}

		errs := make(chan error, len(customers))
		for _, c := range customers {
			go func(customerID int) {
				_, err := engine.Redeem(ctx, coupon.ID, customerID, nil)
				errs <- err
			}(c.ID)
		}
		for range customers {
			require.NoError(t, <-errs)
		}

		// Every settlement burned exactly one use.
		assert.Equal(t, 5, getCoupon(t, st, coupon.ID).UsesLeft)
	})
}

func TestAttachDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - enriches existing redemption", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})
		coupon := createCoupon(t, st, &store.Coupon{ShopID: shop.ID, UsesLeft: 1})

		result, err := engine.Redeem(ctx, coupon.ID, customer.ID, nil)
		require.NoError(t, err)

		rec, err := engine.AttachDetails(ctx, result.Redemption.ID, ContactInfo{
			Name:  "Jane Doe",
			Email: "jane@example.com",
			Phone: "+12025550123",
		})
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", rec.ContactName)
		assert.Equal(t, "jane@example.com", rec.ContactEmail)
		assert.Equal(t, "+12025550123", rec.ContactPhone)

		// Still exactly one use burned, no second redemption.
		assert.Equal(t, 0, getCoupon(t, st, coupon.ID).UsesLeft)
	})

	t.Run("Success - empty fields keep prior values", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		shop := createAccount(t, st, &store.Account{Type: store.AccountShop, Name: "Shop"})
		customer := createAccount(t, st, &store.Account{Type: store.AccountCustomer, Name: "Customer"})
		coupon := createCoupon(t, st, &store.Coupon{ShopID: shop.ID, UsesLeft: 1})

		result, err := engine.Redeem(ctx, coupon.ID, customer.ID, nil)
		require.NoError(t, err)

		_, err = engine.AttachDetails(ctx, result.Redemption.ID, ContactInfo{Name: "Jane"})
		require.NoError(t, err)

		rec, err := engine.AttachDetails(ctx, result.Redemption.ID, ContactInfo{Email: "jane@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Jane", rec.ContactName)
		assert.Equal(t, "jane@example.com", rec.ContactEmail)
	})

	t.Run("Error - unknown redemption", func(t *testing.T) {
		st := memory.New()
		engine := NewEngine(st, nil, nil)

		_, err := engine.AttachDetails(ctx, 42, ContactInfo{Name: "X"})
		assert.ErrorIs(t, err, ErrRedemptionNotFound)
	})
}
