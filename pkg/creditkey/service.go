// Package creditkey implements the admin-issued one-time activation keys
// that convert an out-of-band payment confirmation into an in-system credit
// grant: PENDING request -> KEY_GENERATED -> COMPLETED on activation.
package creditkey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jordanlanch/couponly/pkg/store"
	"golang.org/x/crypto/bcrypt"
)

// KeyValidity is how long an issued key can be activated.
const KeyValidity = 72 * time.Hour

var (
	// ErrRequestNotFound is returned when the credit request doesn't exist.
	ErrRequestNotFound = errors.New("credit request not found")
	// ErrRequestResolved is returned when issuing a key for a request that
	// already has one or is completed.
	ErrRequestResolved = errors.New("credit request already resolved")
	// ErrKeyNotFound is returned when no key matches the code for the shop.
	ErrKeyNotFound = errors.New("activation key not found")
	// ErrKeyUsed is returned when the code was already consumed. No mutation
	// is performed.
	ErrKeyUsed = errors.New("activation key already used")
	// ErrKeyExpired is returned when the code is past its validity. No
	// mutation is performed.
	ErrKeyExpired = errors.New("activation key expired")
)

// Auditor receives best-effort audit events after an activation commits.
type Auditor interface {
	LogActivation(ctx context.Context, shopID int, credits int64)
}

// Notifier delivers issuance notices after the transaction commits.
type Notifier interface {
	KeyIssued(shopEmail string, credits int64)
}

// Service handles credit requests, key issuance and activation.
type Service struct {
	store    store.Store
	auditor  Auditor
	notifier Notifier
}

// NewService creates a new credit key service. auditor and notifier may be nil.
func NewService(s store.Store, auditor Auditor, notifier Notifier) *Service {
	return &Service{store: s, auditor: auditor, notifier: notifier}
}

// SubmitRequest opens a credit request for a shop.
func (s *Service) SubmitRequest(ctx context.Context, shopID int, credits int64) (*store.CreditRequest, error) {
	req := &store.CreditRequest{
		ShopID:  shopID,
		Credits: credits,
		Status:  store.CreditRequestPending,
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Accounts().Get(shopID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("shop account %d: %w", shopID, store.ErrNotFound)
			}
			return fmt.Errorf("failed to load shop: %w", err)
		}
		return tx.CreditKeys().CreateRequest(req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credit request: %w", err)
	}
	return req, nil
}

// IssueKey generates a random single-use activation code for a pending
// request, bound to the requesting shop and amount. Only the bcrypt hash of
// the code is stored; the plaintext is returned exactly once.
func (s *Service) IssueKey(ctx context.Context, requestID int) (string, *store.CreditKey, error) {
	code, err := generateKeyCode()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate key code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash key code: %w", err)
	}

	var (
		key       *store.CreditKey
		shopEmail string
	)
	_, err = store.WithRetry(ctx, func() error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			req, err := tx.CreditKeys().GetRequest(requestID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrRequestNotFound
				}
				return fmt.Errorf("failed to load credit request: %w", err)
			}
			if req.Status != store.CreditRequestPending {
				return ErrRequestResolved
			}

			shop, err := tx.Accounts().Get(req.ShopID)
			if err != nil {
				return fmt.Errorf("failed to load shop: %w", err)
			}
			shopEmail = shop.Email

			k := &store.CreditKey{
				RequestID: requestID,
				ShopID:    req.ShopID,
				CodeHash:  string(hash),
				Credits:   req.Credits,
				ExpiresAt: time.Now().Add(KeyValidity),
			}
			if err := tx.CreditKeys().CreateKey(k); err != nil {
				return fmt.Errorf("failed to create key: %w", err)
			}

			req.Status = store.CreditRequestKeyGenerated
			if err := tx.CreditKeys().UpdateRequest(req); err != nil {
				return fmt.Errorf("failed to update credit request: %w", err)
			}

			key = k
			return nil
		})
	})
	if err != nil {
		return "", nil, err
	}

	log.Printf("🔑 Credit key %d issued for shop %d (%d credits)", key.ID, key.ShopID, key.Credits)

	if s.notifier != nil {
		s.notifier.KeyIssued(shopEmail, key.Credits)
	}

	return code, key, nil
}

// Activate redeems an activation code for a shop: one atomic transaction
// that marks the key used, credits the shop and completes the originating
// request. A consumed or expired code performs no mutation.
func (s *Service) Activate(ctx context.Context, code string, shopID int) (int64, error) {
	var credited int64

	_, err := store.WithRetry(ctx, func() error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			keys, err := tx.CreditKeys().KeysForShop(shopID)
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}

			var key *store.CreditKey
			for _, k := range keys {
				if bcrypt.CompareHashAndPassword([]byte(k.CodeHash), []byte(code)) == nil {
					key = k
					break
				}
			}
			if key == nil {
				return ErrKeyNotFound
			}
			if key.Used {
				return ErrKeyUsed
			}
			if time.Now().After(key.ExpiresAt) {
				return ErrKeyExpired
			}

			shop, err := tx.Accounts().Get(shopID)
			if err != nil {
				return fmt.Errorf("failed to load shop: %w", err)
			}
			req, err := tx.CreditKeys().GetRequest(key.RequestID)
			if err != nil {
				return fmt.Errorf("failed to load credit request: %w", err)
			}

			key.Used = true
			if err := tx.CreditKeys().UpdateKey(key); err != nil {
				return fmt.Errorf("failed to mark key used: %w", err)
			}

			shop.Credits += key.Credits
			if err := tx.Accounts().Update(shop); err != nil {
				return fmt.Errorf("failed to credit shop: %w", err)
			}

			req.Status = store.CreditRequestCompleted
			if err := tx.CreditKeys().UpdateRequest(req); err != nil {
				return fmt.Errorf("failed to complete credit request: %w", err)
			}

			if err := tx.Ledger().Append(&store.LedgerEntry{
				AccountID: shopID,
				Kind:      store.LedgerCreditKey,
				Amount:    key.Credits,
				RefType:   "credit_key",
				RefID:     key.ID,
			}); err != nil {
				return fmt.Errorf("failed to append ledger entry: %w", err)
			}

			credited = key.Credits
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	if s.auditor != nil {
		s.auditor.LogActivation(ctx, shopID, credited)
	}

	return credited, nil
}

// generateKeyCode returns a 20-character activation code.
func generateKeyCode() (string, error) {
	bytes := make([]byte, 10)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "ck_" + hex.EncodeToString(bytes), nil
}
