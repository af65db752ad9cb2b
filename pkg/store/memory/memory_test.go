package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - committed writes are visible", func(t *testing.T) {
		st := New()

		a := &store.Account{Type: store.AccountShop, Name: "Shop", Credits: 10}
		err := st.InTx(ctx, func(tx store.Tx) error {
			return tx.Accounts().Create(a)
		})
		require.NoError(t, err)
		require.NotZero(t, a.ID)

		err = st.InTx(ctx, func(tx store.Tx) error {
			got, err := tx.Accounts().Get(a.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(10), got.Credits)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Success - failed transaction applies nothing", func(t *testing.T) {
		st := New()

		a := &store.Account{Type: store.AccountShop, Name: "Shop"}
		require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
			return tx.Accounts().Create(a)
		}))

		boom := errors.New("boom")
		err := st.InTx(ctx, func(tx store.Tx) error {
			got, err := tx.Accounts().Get(a.ID)
			require.NoError(t, err)
			got.Credits = 999
			require.NoError(t, tx.Accounts().Update(got))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
			got, err := tx.Accounts().Get(a.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(0), got.Credits)
			return nil
		}))
	})

	t.Run("Conflict - stale read fails the whole transaction", func(t *testing.T) {
		st := New()

		a := &store.Account{Type: store.AccountShop, Name: "Shop"}
		require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
			return tx.Accounts().Create(a)
		}))

		// First transaction reads, then a second transaction commits a write
		// to the same entity before the first commits.
		err := st.InTx(ctx, func(tx store.Tx) error {
			got, err := tx.Accounts().Get(a.ID)
			require.NoError(t, err)

			require.NoError(t, st.InTx(ctx, func(tx2 store.Tx) error {
				inner, err := tx2.Accounts().Get(a.ID)
				require.NoError(t, err)
				inner.Credits = 5
				return tx2.Accounts().Update(inner)
			}))

			got.Credits = 7
			return tx.Accounts().Update(got)
		})
		assert.ErrorIs(t, err, store.ErrWriteConflict)

		// The concurrent writer's value survived.
		require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
			got, err := tx.Accounts().Get(a.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(5), got.Credits)
			return nil
		}))
	})

	t.Run("Conflict - read-only dependency invalidated", func(t *testing.T) {
		st := New()

		a := &store.Account{Type: store.AccountShop, Name: "Shop"}
		b := &store.Account{Type: store.AccountCustomer, Name: "Customer"}
		require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
			if err := tx.Accounts().Create(a); err != nil {
				return err
			}
			return tx.Accounts().Create(b)
		}))

		// Transaction reads a and writes b; a concurrent writer touches a.
		err := st.InTx(ctx, func(tx store.Tx) error {
			if _, err := tx.Accounts().Get(a.ID); err != nil {
				return err
			}

			require.NoError(t, st.InTx(ctx, func(tx2 store.Tx) error {
				inner, err := tx2.Accounts().Get(a.ID)
				require.NoError(t, err)
				inner.Credits = 1
				return tx2.Accounts().Update(inner)
			}))

			got, err := tx.Accounts().Get(b.ID)
			if err != nil {
				return err
			}
			got.Credits = 3
			return tx.Accounts().Update(got)
		})
		assert.ErrorIs(t, err, store.ErrWriteConflict)
	})

	t.Run("Duplicate - redemption pair uniqueness", func(t *testing.T) {
		st := New()

		first := &store.Redemption{CouponID: 1, CustomerID: 2, ShopID: 3}
		require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
			return tx.Redemptions().Create(first)
		}))

		err := st.InTx(ctx, func(tx store.Tx) error {
			return tx.Redemptions().Create(&store.Redemption{CouponID: 1, CustomerID: 2, ShopID: 3})
		})
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("NotFound - missing entities", func(t *testing.T) {
		st := New()
		err := st.InTx(ctx, func(tx store.Tx) error {
			_, err := tx.Coupons().Get(404)
			return err
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - retries through transient conflicts", func(t *testing.T) {
		calls := 0
		attempts, err := store.WithRetry(ctx, func() error {
			calls++
			if calls < 3 {
				return store.ErrWriteConflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("Error - persistent conflict surfaces ErrTooManyConflicts", func(t *testing.T) {
		_, err := store.WithRetry(ctx, func() error {
			return store.ErrWriteConflict
		})
		assert.ErrorIs(t, err, store.ErrTooManyConflicts)
	})

	t.Run("Error - non-conflict errors are not retried", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		_, err := store.WithRetry(ctx, func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}
