package payout

import (
	"context"
	"testing"
	"time"

	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/jordanlanch/couponly/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAffiliate(t *testing.T, st store.Store, rateBps int64) *store.Account {
	t.Helper()
	a := &store.Account{
		Type:              store.AccountAffiliate,
		Name:              "Affiliate",
		Email:             "aff@example.com",
		CommissionRateBps: rateBps,
	}
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.Accounts().Create(a)
	})
	require.NoError(t, err)
	return a
}

func createLink(t *testing.T, st store.Store, affiliateID int) *store.AffiliateLink {
	t.Helper()
	l := &store.AffiliateLink{AffiliateID: affiliateID, Code: "code-" + t.Name()}
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.Affiliates().CreateLink(l)
	})
	require.NoError(t, err)
	return l
}

func getAffiliate(t *testing.T, st store.Store, id int) *store.Account {
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

// backdateConversion moves a conversion's timestamp into the past so the
// approval sweep sees it as past the hold period.
func backdateConversion(t *testing.T, st store.Store, id int, age time.Duration) {
	t.Helper()
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		c, err := tx.Affiliates().GetConversion(id)
		if err != nil {
			return err
		}
		c.ConvertedAt = time.Now().Add(-age)
		return tx.Affiliates().UpdateConversion(c)
	})
	require.NoError(t, err)
}

func TestRecordConversion(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - commission lands on pending balance", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)

		aff := createAffiliate(t, st, 1000) // 10%
		link := createLink(t, st, aff.ID)

		conv, err := svc.RecordConversion(ctx, link.ID, 5000, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(500), conv.AmountCents)
		assert.True(t, conv.IsPending)
		assert.Equal(t, store.SourceOrder, conv.Source)

		got := getAffiliate(t, st, aff.ID)
		assert.Equal(t, int64(500), got.PendingCents)
		assert.Equal(t, int64(500), got.TotalEarningsCents)
		assert.Equal(t, int64(0), got.AvailableCents)
	})

	t.Run("Success - zero-value order recorded with zero amount", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)

		aff := createAffiliate(t, st, 1000)
		link := createLink(t, st, aff.ID)

		conv, err := svc.RecordConversion(ctx, link.ID, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), conv.AmountCents)
		assert.Equal(t, int64(0), getAffiliate(t, st, aff.ID).PendingCents)
	})

	t.Run("Error - unknown link", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)

		_, err := svc.RecordConversion(ctx, 404, 5000, nil)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPromoteEligible(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - promotes conversions past the hold period", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)

		aff := createAffiliate(t, st, 1000)
		link := createLink(t, st, aff.ID)

		oldConv, err := svc.RecordConversion(ctx, link.ID, 5000, nil)
		require.NoError(t, err)
		backdateConversion(t, st, oldConv.ID, HoldPeriod+24*time.Hour)

		_, err = svc.RecordConversion(ctx, link.ID, 3000, nil)
		require.NoError(t, err)

		promoted, err := svc.PromoteEligible(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, promoted)

		got := getAffiliate(t, st, aff.ID)
		assert.Equal(t, int64(500), got.AvailableCents)
		assert.Equal(t, int64(300), got.PendingCents)
		assert.Equal(t, int64(800), got.TotalEarningsCents)
	})

	t.Run("Success - sweep is idempotent", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)

		aff := createAffiliate(t, st, 1000)
		link := createLink(t, st, aff.ID)

		conv, err := svc.RecordConversion(ctx, link.ID, 5000, nil)
		require.NoError(t, err)
		backdateConversion(t, st, conv.ID, HoldPeriod+24*time.Hour)

		promoted, err := svc.PromoteEligible(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, promoted)

		promoted, err = svc.PromoteEligible(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, promoted)

		got := getAffiliate(t, st, aff.ID)
		assert.Equal(t, int64(500), got.AvailableCents)
		assert.Equal(t, int64(0), got.PendingCents)
	})

	t.Run("Success - fresh conversions stay pending", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)

		aff := createAffiliate(t, st, 1000)
		link := createLink(t, st, aff.ID)

		_, err := svc.RecordConversion(ctx, link.ID, 5000, nil)
		require.NoError(t, err)

		promoted, err := svc.PromoteEligible(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, promoted)
		assert.Equal(t, int64(500), getAffiliate(t, st, aff.ID).PendingCents)
	})
}

func TestRequestPayout(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, availableCents int64) (store.Store, *Service, *store.Account) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		aff := createAffiliate(t, st, 1000)
		if availableCents > 0 {
			link := createLink(t, st, aff.ID)
			conv, err := svc.RecordConversion(ctx, link.ID, availableCents*10, nil)
			require.NoError(t, err)
			backdateConversion(t, st, conv.ID, HoldPeriod+24*time.Hour)
			_, err = svc.PromoteEligible(ctx, time.Now())
			require.NoError(t, err)
		}
		return st, svc, aff
	}

	t.Run("Success - reserves the amount immediately", func(t *testing.T) {
		st, svc, aff := setup(t, 3000)

		req, err := svc.RequestPayout(ctx, aff.ID, 2000, "paypal")
		require.NoError(t, err)
		assert.Equal(t, store.PayoutPending, req.Status)

		got := getAffiliate(t, st, aff.ID)
		assert.Equal(t, int64(1000), got.AvailableCents)
	})

	t.Run("Error - amount above available balance", func(t *testing.T) {
		st, svc, aff := setup(t, 3000)

		_, err := svc.RequestPayout(ctx, aff.ID, 5000, "paypal")
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		// Nothing reserved.
		assert.Equal(t, int64(3000), getAffiliate(t, st, aff.ID).AvailableCents)
	})

	t.Run("Error - pending balance does not count", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		aff := createAffiliate(t, st, 1000)
		link := createLink(t, st, aff.ID)
		_, err := svc.RecordConversion(ctx, link.ID, 50000, nil) // 5000 pending
		require.NoError(t, err)

		_, err = svc.RequestPayout(ctx, aff.ID, 1000, "paypal")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("Error - unknown affiliate", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		_, err := svc.RequestPayout(ctx, 404, 1000, "paypal")
		assert.ErrorIs(t, err, ErrAffiliateNotFound)
	})
}

func TestResolvePayout(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (store.Store, *Service, *store.Account, *store.PayoutRequest) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		aff := createAffiliate(t, st, 1000)
		link := createLink(t, st, aff.ID)
		conv, err := svc.RecordConversion(ctx, link.ID, 50000, nil) // 5000 cents
		require.NoError(t, err)
		backdateConversion(t, st, conv.ID, HoldPeriod+24*time.Hour)
		_, err = svc.PromoteEligible(ctx, time.Now())
		require.NoError(t, err)

		req, err := svc.RequestPayout(ctx, aff.ID, 5000, "bank_transfer")
		require.NoError(t, err)
		return st, svc, aff, req
	}

	t.Run("Success - approval marks conversions paid", func(t *testing.T) {
		st, svc, aff, req := setup(t)

		resolved, err := svc.Approve(ctx, req.ID, "tx-123")
		require.NoError(t, err)
		assert.Equal(t, store.PayoutCompleted, resolved.Status)
		assert.Equal(t, "tx-123", resolved.TransactionRef)
		require.NotNil(t, resolved.ResolvedAt)

		got := getAffiliate(t, st, aff.ID)
		assert.Equal(t, int64(5000), got.TotalPaidOutCents)
		assert.Equal(t, int64(0), got.AvailableCents)
		assert.Equal(t, got.TotalEarningsCents, got.PendingCents+got.AvailableCents+got.TotalPaidOutCents)

		err = st.InTx(ctx, func(tx store.Tx) error {
			unpaid, err := tx.Affiliates().UnpaidApprovedConversions(aff.ID)
			require.NoError(t, err)
			assert.Empty(t, unpaid)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Success - rejection refunds the reserved amount", func(t *testing.T) {
		st, svc, aff, req := setup(t)

		resolved, err := svc.Reject(ctx, req.ID, "bank details invalid")
		require.NoError(t, err)
		assert.Equal(t, store.PayoutRejected, resolved.Status)
		assert.Equal(t, "bank details invalid", resolved.RejectReason)

		got := getAffiliate(t, st, aff.ID)
		assert.Equal(t, int64(5000), got.AvailableCents)
		assert.Equal(t, int64(0), got.TotalPaidOutCents)
	})

	t.Run("Error - resolving twice", func(t *testing.T) {
		_, svc, _, req := setup(t)

		_, err := svc.Approve(ctx, req.ID, "tx-123")
		require.NoError(t, err)

		_, err = svc.Approve(ctx, req.ID, "tx-456")
		assert.ErrorIs(t, err, ErrAlreadyResolved)
		_, err = svc.Reject(ctx, req.ID, "nope")
		assert.ErrorIs(t, err, ErrAlreadyResolved)
	})

	t.Run("Error - unknown request", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		_, err := svc.Approve(ctx, 404, "tx")
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - reports all balance fields", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		aff := createAffiliate(t, st, 1000)
		link := createLink(t, st, aff.ID)
		_, err := svc.RecordConversion(ctx, link.ID, 5000, nil)
		require.NoError(t, err)

		stats, err := svc.GetStats(ctx, aff.ID)
		require.NoError(t, err)
		assert.Equal(t, aff.ID, stats.AffiliateID)
		assert.Equal(t, int64(500), stats.PendingCents)
		assert.Equal(t, int64(500), stats.TotalEarningsCents)
	})

	t.Run("Error - unknown affiliate", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		_, err := svc.GetStats(ctx, 404)
		assert.ErrorIs(t, err, ErrAffiliateNotFound)
	})
}
