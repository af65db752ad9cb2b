// Package attribution decides which affiliate, if any, is credited for a
// redemption. Attribution comes either from an explicit affiliate id supplied
// at redemption time or from a click token minted when the customer followed
// a tracking-code redirect. Token attribution is only valid for a fixed
// window after the click.
package attribution

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/jordanlanch/couponly/pkg/cache"
	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/redis/go-redis/v9"
)

// Window is how long a click token stays valid, measured from click time.
const Window = 30 * 24 * time.Hour

// ErrLinkNotFound is returned when a tracking code does not exist.
var ErrLinkNotFound = errors.New("affiliate link not found")

// ClickData holds request metadata recorded with a click.
type ClickData struct {
	IPAddress   string
	UserAgent   string
	Referrer    string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

// Service resolves and records attribution.
type Service struct {
	store store.Store
	cache *cache.Client
}

// NewService creates a new attribution service. cache may be nil; resolution
// then falls back to the persisted click records only.
func NewService(s store.Store, c *cache.Client) *Service {
	return &Service{store: s, cache: c}
}

// CreateLink creates a tracking link for an affiliate, optionally bound to
// one coupon.
func (s *Service) CreateLink(ctx context.Context, affiliateID int, couponID *int) (*store.AffiliateLink, error) {
	code, err := generateCode(10)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tracking code: %w", err)
	}

	link := &store.AffiliateLink{
		AffiliateID: affiliateID,
		Code:        code,
		CouponID:    couponID,
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Accounts().Get(affiliateID); err != nil {
			return fmt.Errorf("failed to load affiliate account: %w", err)
		}
		return tx.Affiliates().CreateLink(link)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	return link, nil
}

// TrackClick records a click on a tracking code and returns the token the
// caller hands back to the visitor (cookie value). The token is cached with
// the attribution window as its TTL; the click record itself is persisted
// for audit and as the fallback source of truth.
func (s *Service) TrackClick(ctx context.Context, code string, data ClickData) (string, *store.AffiliateLink, error) {
	token, err := generateCode(32)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate click token: %w", err)
	}

	var link *store.AffiliateLink
	_, err = store.WithRetry(ctx, func() error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			l, err := tx.Affiliates().FindLinkByCode(code)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrLinkNotFound
				}
				return fmt.Errorf("failed to load link: %w", err)
			}

			if err := tx.Affiliates().CreateClick(&store.AffiliateClick{
				LinkID:      l.ID,
				AffiliateID: l.AffiliateID,
				Token:       token,
				IPAddress:   data.IPAddress,
				UserAgent:   data.UserAgent,
				Referrer:    data.Referrer,
				UTMSource:   data.UTMSource,
				UTMMedium:   data.UTMMedium,
				UTMCampaign: data.UTMCampaign,
			}); err != nil {
				return fmt.Errorf("failed to create click: %w", err)
			}

			l.TotalClicks++
			if err := tx.Affiliates().UpdateLink(l); err != nil {
				return fmt.Errorf("failed to update click count: %w", err)
			}

			link = l
			return nil
		})
	})
	if err != nil {
		return "", nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tokenKey(token), strconv.Itoa(link.AffiliateID), Window); err != nil {
			// Cache failures degrade to the persisted-click fallback.
			log.Printf("⚠️  Attribution cache set failed: %v", err)
		}
	}

	return token, link, nil
}

// Resolve returns the affiliate id a click token attributes to, or nil when
// no valid attribution exists. An expired token is void, not an error.
func (s *Service) Resolve(ctx context.Context, token string, now time.Time) (*int, error) {
	if token == "" {
		return nil, nil
	}

	if s.cache != nil {
		val, err := s.cache.Get(ctx, tokenKey(token))
		switch {
		case err == nil:
			id, convErr := strconv.Atoi(val)
			if convErr != nil {
				return nil, fmt.Errorf("failed to parse cached attribution: %w", convErr)
			}
			return &id, nil
		case errors.Is(err, redis.Nil):
			// Expired or unknown in cache; fall through to the click record
			// so a cache flush does not void live attributions.
		default:
			return nil, fmt.Errorf("failed to read attribution cache: %w", err)
		}
	}

	var affiliateID *int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		click, err := tx.Affiliates().FindClickByToken(token)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load click: %w", err)
		}
		if now.Sub(click.ClickedAt) > Window {
			return nil
		}
		id := click.AffiliateID
		affiliateID = &id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affiliateID, nil
}

func tokenKey(token string) string {
	return "attr:click:" + token
}

// generateCode returns a cryptographically random hex string of the given
// length.
func generateCode(length int) (string, error) {
	bytes := make([]byte, (length+1)/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}
