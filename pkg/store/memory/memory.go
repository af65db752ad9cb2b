// Package memory implements store.Store entirely in process memory with
// per-entity version checking. It backs deterministic unit tests and the
// development mode of the server.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jordanlanch/couponly/pkg/store"
)

type key struct {
	kind string
	id   int
}

const (
	kindAccount       = "account"
	kindCoupon        = "coupon"
	kindRedemption    = "redemption"
	kindLink          = "link"
	kindConversion    = "conversion"
	kindPayout        = "payout"
	kindReferral      = "referral"
	kindCreditRequest = "credit_request"
	kindCreditKey     = "credit_key"
)

// Store is the in-memory implementation of store.Store.
type Store struct {
	mu  sync.Mutex
	seq map[string]int

	accounts       map[int]*store.Account
	coupons        map[int]*store.Coupon
	redemptions    map[int]*store.Redemption
	links          map[int]*store.AffiliateLink
	clicks         []*store.AffiliateClick
	conversions    map[int]*store.AffiliateConversion
	payouts        map[int]*store.PayoutRequest
	referrals      map[int]*store.Referral
	creditRequests map[int]*store.CreditRequest
	creditKeys     map[int]*store.CreditKey
	ledger         []*store.LedgerEntry
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		seq:            make(map[string]int),
		accounts:       make(map[int]*store.Account),
		coupons:        make(map[int]*store.Coupon),
		redemptions:    make(map[int]*store.Redemption),
		links:          make(map[int]*store.AffiliateLink),
		conversions:    make(map[int]*store.AffiliateConversion),
		payouts:        make(map[int]*store.PayoutRequest),
		referrals:      make(map[int]*store.Referral),
		creditRequests: make(map[int]*store.CreditRequest),
		creditKeys:     make(map[int]*store.CreditKey),
	}
}

// InTx runs fn against a transaction. Reads are tracked by entity version;
// commit fails with store.ErrWriteConflict if any entity read or updated by
// fn changed underneath it, and in that case nothing is applied.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:       s,
		reads:   make(map[key]int64),
		updates: make(map[key]any),
	}

	if err := fn(tx); err != nil {
		return err
	}

	return s.commit(tx)
}

func (s *Store) nextID(kind string) int {
	s.seq[kind]++
	return s.seq[kind]
}

func (s *Store) currentVersion(k key) (int64, bool) {
	switch k.kind {
	case kindAccount:
		if v, ok := s.accounts[k.id]; ok {
			return v.Version, true
		}
	case kindCoupon:
		if v, ok := s.coupons[k.id]; ok {
			return v.Version, true
		}
	case kindRedemption:
		if v, ok := s.redemptions[k.id]; ok {
			return v.Version, true
		}
	case kindLink:
		if v, ok := s.links[k.id]; ok {
			return v.Version, true
		}
	case kindConversion:
		if v, ok := s.conversions[k.id]; ok {
			return v.Version, true
		}
	case kindPayout:
		if v, ok := s.payouts[k.id]; ok {
			return v.Version, true
		}
	case kindReferral:
		if v, ok := s.referrals[k.id]; ok {
			return v.Version, true
		}
	case kindCreditRequest:
		if v, ok := s.creditRequests[k.id]; ok {
			return v.Version, true
		}
	case kindCreditKey:
		if v, ok := s.creditKeys[k.id]; ok {
			return v.Version, true
		}
	}
	return 0, false
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every read against the canonical versions before applying
	// anything. A disappeared or re-versioned entity aborts the whole unit.
	for k, readVersion := range tx.reads {
		cur, ok := s.currentVersion(k)
		if !ok || cur != readVersion {
			return store.ErrWriteConflict
		}
	}

	for _, ins := range tx.inserts {
		ins(s)
	}
	for k, v := range tx.updates {
		switch e := v.(type) {
		case *store.Account:
			e.Version++
			s.accounts[k.id] = e
		case *store.Coupon:
			e.Version++
			s.coupons[k.id] = e
		case *store.Redemption:
			e.Version++
			s.redemptions[k.id] = e
		case *store.AffiliateLink:
			e.Version++
			s.links[k.id] = e
		case *store.AffiliateConversion:
			e.Version++
			s.conversions[k.id] = e
		case *store.PayoutRequest:
			e.Version++
			s.payouts[k.id] = e
		case *store.Referral:
			e.Version++
			s.referrals[k.id] = e
		case *store.CreditRequest:
			e.Version++
			s.creditRequests[k.id] = e
		case *store.CreditKey:
			e.Version++
			s.creditKeys[k.id] = e
		default:
			return fmt.Errorf("unknown staged type %T", v)
		}
	}

	return nil
}

// memTx buffers writes and records read versions until commit.
type memTx struct {
	s       *Store
	reads   map[key]int64
	updates map[key]any
	inserts []func(*Store)
}

func (tx *memTx) Accounts() store.AccountRepo       { return accountRepo{tx} }
func (tx *memTx) Coupons() store.CouponRepo         { return couponRepo{tx} }
func (tx *memTx) Redemptions() store.RedemptionRepo { return redemptionRepo{tx} }
func (tx *memTx) Affiliates() store.AffiliateRepo   { return affiliateRepo{tx} }
func (tx *memTx) Payouts() store.PayoutRepo         { return payoutRepo{tx} }
func (tx *memTx) Referrals() store.ReferralRepo     { return referralRepo{tx} }
func (tx *memTx) CreditKeys() store.CreditKeyRepo   { return creditKeyRepo{tx} }
func (tx *memTx) Ledger() store.LedgerRepo          { return ledgerRepo{tx} }

func (tx *memTx) trackRead(kind string, id int, version int64) {
	k := key{kind, id}
	if _, seen := tx.reads[k]; !seen {
		tx.reads[k] = version
	}
}

func (tx *memTx) stageUpdate(kind string, id int, v any) {
	tx.updates[key{kind, id}] = v
}

// --- accounts ---

type accountRepo struct{ tx *memTx }

func (r accountRepo) Get(id int) (*store.Account, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	a, ok := r.tx.s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.tx.trackRead(kindAccount, id, a.Version)
	return cloneAccount(a), nil
}

func (r accountRepo) Create(a *store.Account) error {
	r.tx.s.mu.Lock()
	a.ID = r.tx.s.nextID(kindAccount)
	r.tx.s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	cp := cloneAccount(a)
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.accounts[cp.ID] = cp })
	return nil
}

func (r accountRepo) Update(a *store.Account) error {
	r.tx.stageUpdate(kindAccount, a.ID, cloneAccount(a))
	return nil
}

// --- coupons ---

type couponRepo struct{ tx *memTx }

func (r couponRepo) Get(id int) (*store.Coupon, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	c, ok := r.tx.s.coupons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.tx.trackRead(kindCoupon, id, c.Version)
	return cloneCoupon(c), nil
}

func (r couponRepo) Create(c *store.Coupon) error {
	r.tx.s.mu.Lock()
	c.ID = r.tx.s.nextID(kindCoupon)
	r.tx.s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	cp := cloneCoupon(c)
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.coupons[cp.ID] = cp })
	return nil
}

func (r couponRepo) Update(c *store.Coupon) error {
	r.tx.stageUpdate(kindCoupon, c.ID, cloneCoupon(c))
	return nil
}

// --- redemptions ---

type redemptionRepo struct{ tx *memTx }

func (r redemptionRepo) Get(id int) (*store.Redemption, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	rec, ok := r.tx.s.redemptions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.tx.trackRead(kindRedemption, id, rec.Version)
	return cloneRedemption(rec), nil
}

func (r redemptionRepo) FindByCouponAndCustomer(couponID, customerID int) (*store.Redemption, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	for _, rec := range r.tx.s.redemptions {
		if rec.CouponID == couponID && rec.CustomerID == customerID {
			r.tx.trackRead(kindRedemption, rec.ID, rec.Version)
			return cloneRedemption(rec), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r redemptionRepo) Create(rec *store.Redemption) error {
	r.tx.s.mu.Lock()
	for _, existing := range r.tx.s.redemptions {
		if existing.CouponID == rec.CouponID && existing.CustomerID == rec.CustomerID {
			r.tx.s.mu.Unlock()
			return store.ErrDuplicate
		}
	}
	rec.ID = r.tx.s.nextID(kindRedemption)
	r.tx.s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	cp := cloneRedemption(rec)
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.redemptions[cp.ID] = cp })
	return nil
}

func (r redemptionRepo) Update(rec *store.Redemption) error {
	r.tx.stageUpdate(kindRedemption, rec.ID, cloneRedemption(rec))
	return nil
}

// --- affiliate links, clicks, conversions ---

type affiliateRepo struct{ tx *memTx }

func (r affiliateRepo) GetLink(id int) (*store.AffiliateLink, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	l, ok := r.tx.s.links[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.tx.trackRead(kindLink, id, l.Version)
	return cloneLink(l), nil
}

func (r affiliateRepo) FindLinkByCode(code string) (*store.AffiliateLink, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	for _, l := range r.tx.s.links {
		if l.Code == code {
			r.tx.trackRead(kindLink, l.ID, l.Version)
			return cloneLink(l), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r affiliateRepo) CreateLink(l *store.AffiliateLink) error {
	r.tx.s.mu.Lock()
	for _, existing := range r.tx.s.links {
		if existing.Code == l.Code {
			r.tx.s.mu.Unlock()
			return store.ErrDuplicate
		}
	}
	l.ID = r.tx.s.nextID(kindLink)
	r.tx.s.mu.Unlock()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	cp := cloneLink(l)
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.links[cp.ID] = cp })
	return nil
}

func (r affiliateRepo) UpdateLink(l *store.AffiliateLink) error {
	r.tx.stageUpdate(kindLink, l.ID, cloneLink(l))
	return nil
}

func (r affiliateRepo) CreateClick(c *store.AffiliateClick) error {
	r.tx.s.mu.Lock()
	c.ID = r.tx.s.nextID("click")
	r.tx.s.mu.Unlock()
	if c.ClickedAt.IsZero() {
		c.ClickedAt = time.Now()
	}
	cp := *c
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.clicks = append(s.clicks, &cp) })
	return nil
}

func (r affiliateRepo) FindClickByToken(token string) (*store.AffiliateClick, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	for _, c := range r.tx.s.clicks {
		if c.Token == token {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r affiliateRepo) GetConversion(id int) (*store.AffiliateConversion, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	c, ok := r.tx.s.conversions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.tx.trackRead(kindConversion, id, c.Version)
	return cloneConversion(c), nil
}

func (r affiliateRepo) CreateConversion(c *store.AffiliateConversion) error {
	r.tx.s.mu.Lock()
	c.ID = r.tx.s.nextID(kindConversion)
	r.tx.s.mu.Unlock()
	if c.ConvertedAt.IsZero() {
		c.ConvertedAt = time.Now()
	}
	cp := cloneConversion(c)
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.conversions[cp.ID] = cp })
	return nil
}

func (r affiliateRepo) UpdateConversion(c *store.AffiliateConversion) error {
	r.tx.stageUpdate(kindConversion, c.ID, cloneConversion(c))
	return nil
}

func (r affiliateRepo) PendingConversionsBefore(cutoff time.Time) ([]*store.AffiliateConversion, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	var out []*store.AffiliateConversion
	for _, c := range r.tx.s.conversions {
		if c.IsPending && !c.ConvertedAt.After(cutoff) {
			r.tx.trackRead(kindConversion, c.ID, c.Version)
			out = append(out, cloneConversion(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r affiliateRepo) UnpaidApprovedConversions(affiliateID int) ([]*store.AffiliateConversion, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	var out []*store.AffiliateConversion
	for _, c := range r.tx.s.conversions {
		if c.AffiliateID == affiliateID && !c.IsPending && !c.PaidOut {
			r.tx.trackRead(kindConversion, c.ID, c.Version)
			out = append(out, cloneConversion(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- payouts ---

type payoutRepo struct{ tx *memTx }

func (r payoutRepo) Get(id int) (*store.PayoutRequest, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	p, ok := r.tx.s.payouts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.tx.trackRead(kindPayout, id, p.Version)
	return clonePayout(p), nil
}

func (r payoutRepo) Create(p *store.PayoutRequest) error {
	r.tx.s.mu.Lock()
	p.ID = r.tx.s.nextID(kindPayout)
	r.tx.s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := clonePayout(p)
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.payouts[cp.ID] = cp })
	return nil
}

func (r payoutRepo) Update(p *store.PayoutRequest) error {
	r.tx.stageUpdate(kindPayout, p.ID, clonePayout(p))
	return nil
}

// --- referrals ---

type referralRepo struct{ tx *memTx }

func (r referralRepo) FindByReferredShop(shopID int) (*store.Referral, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	for _, ref := range r.tx.s.referrals {
		if ref.ReferredShopID == shopID {
			r.tx.trackRead(kindReferral, ref.ID, ref.Version)
			return cloneReferral(ref), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r referralRepo) Create(ref *store.Referral) error {
	r.tx.s.mu.Lock()
	ref.ID = r.tx.s.nextID(kindReferral)
	r.tx.s.mu.Unlock()
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now()
	}
	cp := cloneReferral(ref)
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.referrals[cp.ID] = cp })
	return nil
}

func (r referralRepo) Update(ref *store.Referral) error {
	r.tx.stageUpdate(kindReferral, ref.ID, cloneReferral(ref))
	return nil
}

// --- credit requests and keys ---

type creditKeyRepo struct{ tx *memTx }

func (r creditKeyRepo) GetRequest(id int) (*store.CreditRequest, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	req, ok := r.tx.s.creditRequests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.tx.trackRead(kindCreditRequest, id, req.Version)
	cp := *req
	return &cp, nil
}

func (r creditKeyRepo) CreateRequest(req *store.CreditRequest) error {
	r.tx.s.mu.Lock()
	req.ID = r.tx.s.nextID(kindCreditRequest)
	r.tx.s.mu.Unlock()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	cp := *req
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.creditRequests[cp.ID] = &cp })
	return nil
}

func (r creditKeyRepo) UpdateRequest(req *store.CreditRequest) error {
	cp := *req
	r.tx.stageUpdate(kindCreditRequest, req.ID, &cp)
	return nil
}

func (r creditKeyRepo) GetKey(id int) (*store.CreditKey, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	k, ok := r.tx.s.creditKeys[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.tx.trackRead(kindCreditKey, id, k.Version)
	cp := *k
	return &cp, nil
}

func (r creditKeyRepo) KeysForShop(shopID int) ([]*store.CreditKey, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	var out []*store.CreditKey
	for _, k := range r.tx.s.creditKeys {
		if k.ShopID == shopID {
			r.tx.trackRead(kindCreditKey, k.ID, k.Version)
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r creditKeyRepo) CreateKey(k *store.CreditKey) error {
	r.tx.s.mu.Lock()
	k.ID = r.tx.s.nextID(kindCreditKey)
	r.tx.s.mu.Unlock()
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now()
	}
	cp := *k
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.creditKeys[cp.ID] = &cp })
	return nil
}

func (r creditKeyRepo) UpdateKey(k *store.CreditKey) error {
	cp := *k
	r.tx.stageUpdate(kindCreditKey, k.ID, &cp)
	return nil
}

// --- ledger ---

type ledgerRepo struct{ tx *memTx }

func (r ledgerRepo) Append(e *store.LedgerEntry) error {
	r.tx.s.mu.Lock()
	e.ID = r.tx.s.nextID("ledger")
	r.tx.s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	r.tx.inserts = append(r.tx.inserts, func(s *Store) { s.ledger = append(s.ledger, &cp) })
	return nil
}

func (r ledgerRepo) ForAccount(accountID int) ([]*store.LedgerEntry, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	var out []*store.LedgerEntry
	for _, e := range r.tx.s.ledger {
		if e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r ledgerRepo) All() ([]*store.LedgerEntry, error) {
	r.tx.s.mu.Lock()
	defer r.tx.s.mu.Unlock()
	out := make([]*store.LedgerEntry, 0, len(r.tx.s.ledger))
	for _, e := range r.tx.s.ledger {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// --- clone helpers (entities carry pointer fields) ---

func cloneAccount(a *store.Account) *store.Account {
	cp := *a
	if a.ReferrerID != nil {
		v := *a.ReferrerID
		cp.ReferrerID = &v
	}
	return &cp
}

func cloneCoupon(c *store.Coupon) *store.Coupon {
	cp := *c
	if c.ExpiresAt != nil {
		v := *c.ExpiresAt
		cp.ExpiresAt = &v
	}
	if c.ValidFor != nil {
		v := *c.ValidFor
		cp.ValidFor = &v
	}
	return &cp
}

func cloneRedemption(r *store.Redemption) *store.Redemption {
	cp := *r
	if r.AffiliateID != nil {
		v := *r.AffiliateID
		cp.AffiliateID = &v
	}
	if r.ReferrerID != nil {
		v := *r.ReferrerID
		cp.ReferrerID = &v
	}
	return &cp
}

func cloneLink(l *store.AffiliateLink) *store.AffiliateLink {
	cp := *l
	if l.CouponID != nil {
		v := *l.CouponID
		cp.CouponID = &v
	}
	return &cp
}

func cloneConversion(c *store.AffiliateConversion) *store.AffiliateConversion {
	cp := *c
	if c.RedemptionID != nil {
		v := *c.RedemptionID
		cp.RedemptionID = &v
	}
	if c.LinkID != nil {
		v := *c.LinkID
		cp.LinkID = &v
	}
	return &cp
}

func clonePayout(p *store.PayoutRequest) *store.PayoutRequest {
	cp := *p
	if p.ResolvedAt != nil {
		v := *p.ResolvedAt
		cp.ResolvedAt = &v
	}
	return &cp
}

func cloneReferral(r *store.Referral) *store.Referral {
	cp := *r
	return &cp
}
