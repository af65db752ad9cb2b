package creditkey

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/jordanlanch/couponly/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createShop(t *testing.T, st store.Store) *store.Account {
	t.Helper()
	shop := &store.Account{Type: store.AccountShop, Name: "Shop", Credits: 100}
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.Accounts().Create(shop)
	})
	require.NoError(t, err)
	return shop
}

func getShop(t *testing.T, st store.Store, id int) *store.Account {
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

func getRequest(t *testing.T, st store.Store, id int) *store.CreditRequest {
	t.Helper()
	var r *store.CreditRequest
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		r, err = tx.CreditKeys().GetRequest(id)
		return err
	})
	require.NoError(t, err)
	return r
}

func TestSubmitRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - opens a pending request", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		shop := createShop(t, st)

		req, err := svc.SubmitRequest(ctx, shop.ID, 500)
		require.NoError(t, err)
		assert.Equal(t, store.CreditRequestPending, req.Status)
		assert.Equal(t, int64(500), req.Credits)
	})

	t.Run("Error - unknown shop", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)

		_, err := svc.SubmitRequest(ctx, 404, 500)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestIssueKey(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - plaintext returned once, hash stored", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		shop := createShop(t, st)

		req, err := svc.SubmitRequest(ctx, shop.ID, 500)
		require.NoError(t, err)

		code, key, err := svc.IssueKey(ctx, req.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "ck_"))
		assert.NotEqual(t, code, key.CodeHash)
		assert.Equal(t, shop.ID, key.ShopID)
		assert.Equal(t, int64(500), key.Credits)
		assert.False(t, key.Used)

		assert.Equal(t, store.CreditRequestKeyGenerated, getRequest(t, st, req.ID).Status)
	})

	t.Run("Error - request already has a key", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		shop := createShop(t, st)

		req, err := svc.SubmitRequest(ctx, shop.ID, 500)
		require.NoError(t, err)

		_, _, err = svc.IssueKey(ctx, req.ID)
		require.NoError(t, err)

		_, _, err = svc.IssueKey(ctx, req.ID)
		assert.ErrorIs(t, err, ErrRequestResolved)
	})

	t.Run("Error - unknown request", func(t *testing.T) {
		st := memory.New()
		svc := NewService(st, nil, nil)

		_, _, err := svc.IssueKey(ctx, 404)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestActivate(t *testing.T) {
	ctx := context.Background()

	issue := func(t *testing.T) (store.Store, *Service, *store.Account, *store.CreditRequest, string) {
		st := memory.New()
		svc := NewService(st, nil, nil)
		shop := createShop(t, st)
		req, err := svc.SubmitRequest(ctx, shop.ID, 500)
		require.NoError(t, err)
		code, _, err := svc.IssueKey(ctx, req.ID)
		require.NoError(t, err)
		return st, svc, shop, req, code
	}

	t.Run("Success - credits shop and completes request", func(t *testing.T) {
		st, svc, shop, req, code := issue(t)

		credited, err := svc.Activate(ctx, code, shop.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(500), credited)

		assert.Equal(t, int64(600), getShop(t, st, shop.ID).Credits)
		assert.Equal(t, store.CreditRequestCompleted, getRequest(t, st, req.ID).Status)
	})

	t.Run("Error - second activation performs no mutation", func(t *testing.T) {
		st, svc, shop, _, code := issue(t)

		_, err := svc.Activate(ctx, code, shop.ID)
		require.NoError(t, err)

		_, err = svc.Activate(ctx, code, shop.ID)
		assert.ErrorIs(t, err, ErrKeyUsed)
		assert.Equal(t, int64(600), getShop(t, st, shop.ID).Credits)
	})

	t.Run("Error - expired key performs no mutation", func(t *testing.T) {
		st, svc, shop, _, code := issue(t)

		// Age the key past its validity.
		err := st.InTx(ctx, func(tx store.Tx) error {
			keys, err := tx.CreditKeys().KeysForShop(shop.ID)
			require.NoError(t, err)
			require.Len(t, keys, 1)
			keys[0].ExpiresAt = time.Now().Add(-time.Minute)
			return tx.CreditKeys().UpdateKey(keys[0])
		})
		require.NoError(t, err)

		_, err = svc.Activate(ctx, code, shop.ID)
		assert.ErrorIs(t, err, ErrKeyExpired)
		assert.Equal(t, int64(100), getShop(t, st, shop.ID).Credits)
	})

	t.Run("Error - wrong code", func(t *testing.T) {
		_, svc, shop, _, _ := issue(t)

		_, err := svc.Activate(ctx, "ck_0000000000000000000000", shop.ID)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Error - key bound to another shop", func(t *testing.T) {
		st, svc, _, _, code := issue(t)
		other := createShop(t, st)

		_, err := svc.Activate(ctx, code, other.ID)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
}
