// Package testdata generates realistic development data: shops with coupons,
// customers, affiliates with tracking links and referral chains.
package testdata

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jordanlanch/couponly/pkg/attribution"
	"github.com/jordanlanch/couponly/pkg/store"
)

// SeederConfig configures data generation parameters
type SeederConfig struct {
	Shops          int
	Customers      int
	Affiliates     int
	CouponsPerShop int
	ReferralChance float64 // 0.0-1.0 (probability a shop was referred)
}

// DefaultSeederConfig returns a small but representative dataset
func DefaultSeederConfig() SeederConfig {
	return SeederConfig{
		Shops:          10,
		Customers:      50,
		Affiliates:     5,
		CouponsPerShop: 3,
		ReferralChance: 0.3,
	}
}

// Shop name building blocks, keyed loosely by vertical
var shopNameParts = []struct {
	Prefixes []string
	Suffixes []string
}{
	{
		Prefixes: []string{"Bella", "Glamour", "Elite", "Luxe", "Pure", "Chic"},
		Suffixes: []string{"Beauty Salon", "Beauty Bar", "Salon", "Beauty Lounge"},
	},
	{
		Prefixes: []string{"Cozy", "Corner", "Daily", "Morning", "Urban", "Artisan"},
		Suffixes: []string{"Cafe", "Coffee House", "Coffee Bar", "Bakery"},
	},
	{
		Prefixes: []string{"Iron", "Peak", "Alpha", "Titan", "Prime", "Victory"},
		Suffixes: []string{"Fitness", "Gym", "Training Center", "Athletic Club"},
	},
}

var couponTitles = []string{
	"First Visit Discount", "Happy Hour Special", "Weekend Deal",
	"New Customer Offer", "Loyalty Reward", "Seasonal Promotion",
	"Flash Sale", "Member Exclusive",
}

// Seeder populates a store with generated data
type Seeder struct {
	store store.Store
	attr  *attribution.Service
	rng   *rand.Rand
}

// NewSeeder creates a new seeder
func NewSeeder(st store.Store, attr *attribution.Service) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		store: st,
		attr:  attr,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed generates the full dataset
func (s *Seeder) Seed(ctx context.Context, cfg SeederConfig) error {
	log.Printf("🌱 Seeding: %d shops, %d customers, %d affiliates...",
		cfg.Shops, cfg.Customers, cfg.Affiliates)

	shops, err := s.seedShops(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to seed shops: %w", err)
	}
	if err := s.seedCustomers(ctx, cfg.Customers); err != nil {
		return fmt.Errorf("failed to seed customers: %w", err)
	}
	affiliates, err := s.seedAffiliates(ctx, cfg.Affiliates)
	if err != nil {
		return fmt.Errorf("failed to seed affiliates: %w", err)
	}
	if err := s.seedCoupons(ctx, shops, cfg.CouponsPerShop); err != nil {
		return fmt.Errorf("failed to seed coupons: %w", err)
	}
	if err := s.seedLinks(ctx, affiliates); err != nil {
		return fmt.Errorf("failed to seed affiliate links: %w", err)
	}

	log.Println("✅ Seeding complete")
	return nil
}

func (s *Seeder) shopName() string {
	parts := shopNameParts[s.rng.Intn(len(shopNameParts))]
	prefix := parts.Prefixes[s.rng.Intn(len(parts.Prefixes))]
	suffix := parts.Suffixes[s.rng.Intn(len(parts.Suffixes))]
	return prefix + " " + suffix
}

func (s *Seeder) seedShops(ctx context.Context, cfg SeederConfig) ([]int, error) {
	var ids []int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		for i := 0; i < cfg.Shops; i++ {
			name := s.shopName()
			shop := &store.Account{
				Type:    store.AccountShop,
				Name:    name,
				Email:   strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@" + gofakeit.DomainName(),
				Credits: int64(s.rng.Intn(500)),
			}
			// Earlier shops can refer later ones.
			if len(ids) > 0 && s.rng.Float64() < cfg.ReferralChance {
				referrer := ids[s.rng.Intn(len(ids))]
				shop.ReferrerID = &referrer
			}
			if err := tx.Accounts().Create(shop); err != nil {
				return err
			}
			if shop.ReferrerID != nil {
				ref := &store.Referral{
					ReferrerShopID: *shop.ReferrerID,
					ReferredShopID: shop.ID,
				}
				if err := tx.Referrals().Create(ref); err != nil {
					return err
				}
			}
			ids = append(ids, shop.ID)
		}
		return nil
	})
	return ids, err
}

func (s *Seeder) seedCustomers(ctx context.Context, count int) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		for i := 0; i < count; i++ {
			customer := &store.Account{
				Type:  store.AccountCustomer,
				Name:  gofakeit.Name(),
				Email: gofakeit.Email(),
			}
			if err := tx.Accounts().Create(customer); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Seeder) seedAffiliates(ctx context.Context, count int) ([]int, error) {
	var ids []int
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		for i := 0; i < count; i++ {
			affiliate := &store.Account{
				Type:  store.AccountAffiliate,
				Name:  gofakeit.Name(),
				Email: gofakeit.Email(),
				// 5% to 15% commission on order-value conversions.
				CommissionRateBps: int64(500 + s.rng.Intn(1000)),
			}
			if err := tx.Accounts().Create(affiliate); err != nil {
				return err
			}
			ids = append(ids, affiliate.ID)
		}
		return nil
	})
	return ids, err
}

func (s *Seeder) seedCoupons(ctx context.Context, shopIDs []int, perShop int) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		for _, shopID := range shopIDs {
			for i := 0; i < perShop; i++ {
				c := &store.Coupon{
					ShopID:               shopID,
					Code:                 strings.ToUpper(gofakeit.LetterN(8)),
					Title:                couponTitles[s.rng.Intn(len(couponTitles))],
					UsesLeft:             1 + s.rng.Intn(100),
					CustomerRewardPoints: int64(s.rng.Intn(50)),
					CommissionCents:      int64(s.rng.Intn(500)),
				}
				if s.rng.Float64() < 0.5 {
					expires := time.Now().AddDate(0, 0, 7+s.rng.Intn(60))
					c.ExpiresAt = &expires
				}
				if err := tx.Coupons().Create(c); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Seeder) seedLinks(ctx context.Context, affiliateIDs []int) error {
	for _, id := range affiliateIDs {
		if _, err := s.attr.CreateLink(ctx, id, nil); err != nil {
			return err
		}
	}
	return nil
}
