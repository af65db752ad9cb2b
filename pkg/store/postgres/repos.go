package postgres

import (
	"database/sql"
	"time"

	"github.com/jordanlanch/couponly/pkg/store"
)

// nullableInt converts an optional foreign key to a driver argument.
func nullableInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

type accountRepo struct{ t *pgTx }

const accountCols = `id, type, name, email, credits, pending_cents, available_cents,
	total_earnings_cents, total_paid_out_cents, commission_rate_bps,
	referrer_id, has_redeemed_first_coupon, created_at, version`

func (r *accountRepo) scan(row *sql.Row) (*store.Account, error) {
	var a store.Account
	var referrer sql.NullInt64
	err := row.Scan(&a.ID, &a.Type, &a.Name, &a.Email, &a.Credits,
		&a.PendingCents, &a.AvailableCents, &a.TotalEarningsCents,
		&a.TotalPaidOutCents, &a.CommissionRateBps, &referrer,
		&a.HasRedeemedFirstCoupon, &a.CreatedAt, &a.Version)
	if err != nil {
		return nil, mapError(err)
	}
	a.ReferrerID = intPtr(referrer)
	return &a, nil
}

func (r *accountRepo) Get(id int) (*store.Account, error) {
	row := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id = $1`, id)
	return r.scan(row)
}

func (r *accountRepo) Create(a *store.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Version = 1
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO accounts (type, name, email, credits, pending_cents,
			available_cents, total_earnings_cents, total_paid_out_cents,
			commission_rate_bps, referrer_id, has_redeemed_first_coupon,
			created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		a.Type, a.Name, a.Email, a.Credits, a.PendingCents, a.AvailableCents,
		a.TotalEarningsCents, a.TotalPaidOutCents, a.CommissionRateBps,
		nullableInt(a.ReferrerID), a.HasRedeemedFirstCoupon, a.CreatedAt,
		a.Version).Scan(&a.ID)
	return mapError(err)
}

func (r *accountRepo) Update(a *store.Account) error {
	res, err := r.t.tx.ExecContext(r.t.ctx,
		`UPDATE accounts SET credits=$1, pending_cents=$2, available_cents=$3,
			total_earnings_cents=$4, total_paid_out_cents=$5,
			commission_rate_bps=$6, has_redeemed_first_coupon=$7,
			name=$8, email=$9, version=version+1
		WHERE id=$10 AND version=$11`,
		a.Credits, a.PendingCents, a.AvailableCents, a.TotalEarningsCents,
		a.TotalPaidOutCents, a.CommissionRateBps, a.HasRedeemedFirstCoupon,
		a.Name, a.Email, a.ID, a.Version)
	if err != nil {
		return mapError(err)
	}
	return checkVersioned(res)
}

type couponRepo struct{ t *pgTx }

func (r *couponRepo) scan(row *sql.Row) (*store.Coupon, error) {
	var c store.Coupon
	var expires sql.NullTime
	var validFor sql.NullInt64
	err := row.Scan(&c.ID, &c.ShopID, &c.Code, &c.Title, &c.UsesLeft,
		&c.CustomerRewardPoints, &c.CommissionCents, &expires, &validFor,
		&c.CreatedAt, &c.Version)
	if err != nil {
		return nil, mapError(err)
	}
	c.ExpiresAt = timePtr(expires)
	if validFor.Valid {
		d := time.Duration(validFor.Int64) * time.Second
		c.ValidFor = &d
	}
	return &c, nil
}

func (r *couponRepo) Get(id int) (*store.Coupon, error) {
	row := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT id, shop_id, code, title, uses_left, customer_reward_points,
			commission_cents, expires_at, valid_for_seconds, created_at, version
		FROM coupons WHERE id = $1`, id)
	return r.scan(row)
}

func (r *couponRepo) Create(c *store.Coupon) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Version = 1
	var validFor interface{}
	if c.ValidFor != nil {
		validFor = int64(*c.ValidFor / time.Second)
	}
	var expires interface{}
	if c.ExpiresAt != nil {
		expires = *c.ExpiresAt
	}
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO coupons (shop_id, code, title, uses_left,
			customer_reward_points, commission_cents, expires_at,
			valid_for_seconds, created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		c.ShopID, c.Code, c.Title, c.UsesLeft, c.CustomerRewardPoints,
		c.CommissionCents, expires, validFor, c.CreatedAt, c.Version).Scan(&c.ID)
	return mapError(err)
}

func (r *couponRepo) Update(c *store.Coupon) error {
	res, err := r.t.tx.ExecContext(r.t.ctx,
		`UPDATE coupons SET uses_left=$1, title=$2, version=version+1
		WHERE id=$3 AND version=$4`,
		c.UsesLeft, c.Title, c.ID, c.Version)
	if err != nil {
		return mapError(err)
	}
	return checkVersioned(res)
}

type redemptionRepo struct{ t *pgTx }

const redemptionCols = `id, coupon_id, customer_id, shop_id, affiliate_id,
	referrer_id, customer_points, commission_cents, referrer_bonus,
	contact_name, contact_email, contact_phone, created_at, version`

func (r *redemptionRepo) scan(row *sql.Row) (*store.Redemption, error) {
	var rec store.Redemption
	var affiliate, referrer sql.NullInt64
	err := row.Scan(&rec.ID, &rec.CouponID, &rec.CustomerID, &rec.ShopID,
		&affiliate, &referrer, &rec.CustomerPoints, &rec.CommissionCents,
		&rec.ReferrerBonus, &rec.ContactName, &rec.ContactEmail,
		&rec.ContactPhone, &rec.CreatedAt, &rec.Version)
	if err != nil {
		return nil, mapError(err)
	}
	rec.AffiliateID = intPtr(affiliate)
	rec.ReferrerID = intPtr(referrer)
	return &rec, nil
}

func (r *redemptionRepo) Get(id int) (*store.Redemption, error) {
	row := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT `+redemptionCols+` FROM redemptions WHERE id = $1`, id)
	return r.scan(row)
}

func (r *redemptionRepo) FindByCouponAndCustomer(couponID, customerID int) (*store.Redemption, error) {
	row := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT `+redemptionCols+` FROM redemptions
		WHERE coupon_id = $1 AND customer_id = $2`, couponID, customerID)
	return r.scan(row)
}

func (r *redemptionRepo) Create(rec *store.Redemption) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Version = 1
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO redemptions (coupon_id, customer_id, shop_id, affiliate_id,
			referrer_id, customer_points, commission_cents, referrer_bonus,
			contact_name, contact_email, contact_phone, created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		rec.CouponID, rec.CustomerID, rec.ShopID, nullableInt(rec.AffiliateID),
		nullableInt(rec.ReferrerID), rec.CustomerPoints, rec.CommissionCents,
		rec.ReferrerBonus, rec.ContactName, rec.ContactEmail, rec.ContactPhone,
		rec.CreatedAt, rec.Version).Scan(&rec.ID)
	return mapError(err)
}

func (r *redemptionRepo) Update(rec *store.Redemption) error {
	res, err := r.t.tx.ExecContext(r.t.ctx,
		`UPDATE redemptions SET contact_name=$1, contact_email=$2,
			contact_phone=$3, version=version+1
		WHERE id=$4 AND version=$5`,
		rec.ContactName, rec.ContactEmail, rec.ContactPhone, rec.ID, rec.Version)
	if err != nil {
		return mapError(err)
	}
	return checkVersioned(res)
}

type affiliateRepo struct{ t *pgTx }

func (r *affiliateRepo) scanLink(row *sql.Row) (*store.AffiliateLink, error) {
	var l store.AffiliateLink
	var coupon sql.NullInt64
	err := row.Scan(&l.ID, &l.AffiliateID, &l.Code, &coupon, &l.TotalClicks,
		&l.CreatedAt, &l.Version)
	if err != nil {
		return nil, mapError(err)
	}
	l.CouponID = intPtr(coupon)
	return &l, nil
}

func (r *affiliateRepo) GetLink(id int) (*store.AffiliateLink, error) {
	row := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT id, affiliate_id, code, coupon_id, total_clicks, created_at, version
		FROM affiliate_links WHERE id = $1`, id)
	return r.scanLink(row)
}

func (r *affiliateRepo) FindLinkByCode(code string) (*store.AffiliateLink, error) {
	row := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT id, affiliate_id, code, coupon_id, total_clicks, created_at, version
		FROM affiliate_links WHERE code = $1`, code)
	return r.scanLink(row)
}

func (r *affiliateRepo) CreateLink(l *store.AffiliateLink) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	l.Version = 1
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO affiliate_links (affiliate_id, code, coupon_id,
			total_clicks, created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		l.AffiliateID, l.Code, nullableInt(l.CouponID), l.TotalClicks,
		l.CreatedAt, l.Version).Scan(&l.ID)
	return mapError(err)
}

func (r *affiliateRepo) UpdateLink(l *store.AffiliateLink) error {
	res, err := r.t.tx.ExecContext(r.t.ctx,
		`UPDATE affiliate_links SET total_clicks=$1, version=version+1
		WHERE id=$2 AND version=$3`,
		l.TotalClicks, l.ID, l.Version)
	if err != nil {
		return mapError(err)
	}
	return checkVersioned(res)
}

func (r *affiliateRepo) CreateClick(c *store.AffiliateClick) error {
	if c.ClickedAt.IsZero() {
		c.ClickedAt = time.Now().UTC()
	}
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO affiliate_clicks (link_id, affiliate_id, token, ip_address,
			user_agent, referrer, utm_source, utm_medium, utm_campaign, clicked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		c.LinkID, c.AffiliateID, c.Token, c.IPAddress, c.UserAgent, c.Referrer,
		c.UTMSource, c.UTMMedium, c.UTMCampaign, c.ClickedAt).Scan(&c.ID)
	return mapError(err)
}

func (r *affiliateRepo) FindClickByToken(token string) (*store.AffiliateClick, error) {
	var c store.AffiliateClick
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT id, link_id, affiliate_id, token, ip_address, user_agent,
			referrer, utm_source, utm_medium, utm_campaign, clicked_at
		FROM affiliate_clicks WHERE token = $1`, token).Scan(
		&c.ID, &c.LinkID, &c.AffiliateID, &c.Token, &c.IPAddress, &c.UserAgent,
		&c.Referrer, &c.UTMSource, &c.UTMMedium, &c.UTMCampaign, &c.ClickedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

const conversionCols = `id, affiliate_id, source, redemption_id, link_id,
	order_cents, rate_bps, amount_cents, is_pending, paid_out, converted_at, version`

func scanConversion(scan func(dest ...interface{}) error) (*store.AffiliateConversion, error) {
	var c store.AffiliateConversion
	var redemption, link sql.NullInt64
	err := scan(&c.ID, &c.AffiliateID, &c.Source, &redemption, &link,
		&c.OrderCents, &c.RateBps, &c.AmountCents, &c.IsPending, &c.PaidOut,
		&c.ConvertedAt, &c.Version)
	if err != nil {
		return nil, mapError(err)
	}
	c.RedemptionID = intPtr(redemption)
	c.LinkID = intPtr(link)
	return &c, nil
}

func (r *affiliateRepo) GetConversion(id int) (*store.AffiliateConversion, error) {
	row := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT `+conversionCols+` FROM affiliate_conversions WHERE id = $1`, id)
	return scanConversion(row.Scan)
}

func (r *affiliateRepo) CreateConversion(c *store.AffiliateConversion) error {
	if c.ConvertedAt.IsZero() {
		c.ConvertedAt = time.Now().UTC()
	}
	c.Version = 1
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO affiliate_conversions (affiliate_id, source, redemption_id,
			link_id, order_cents, rate_bps, amount_cents, is_pending, paid_out,
			converted_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		c.AffiliateID, c.Source, nullableInt(c.RedemptionID),
		nullableInt(c.LinkID), c.OrderCents, c.RateBps, c.AmountCents,
		c.IsPending, c.PaidOut, c.ConvertedAt, c.Version).Scan(&c.ID)
	return mapError(err)
}

func (r *affiliateRepo) UpdateConversion(c *store.AffiliateConversion) error {
	res, err := r.t.tx.ExecContext(r.t.ctx,
		`UPDATE affiliate_conversions SET is_pending=$1, paid_out=$2, version=version+1
		WHERE id=$3 AND version=$4`,
		c.IsPending, c.PaidOut, c.ID, c.Version)
	if err != nil {
		return mapError(err)
	}
	return checkVersioned(res)
}

func (r *affiliateRepo) queryConversions(query string, args ...interface{}) ([]*store.AffiliateConversion, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*store.AffiliateConversion
	for rows.Next() {
		c, err := scanConversion(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *affiliateRepo) PendingConversionsBefore(cutoff time.Time) ([]*store.AffiliateConversion, error) {
	return r.queryConversions(
		`SELECT `+conversionCols+` FROM affiliate_conversions
		WHERE is_pending AND converted_at <= $1 ORDER BY id`, cutoff)
}

func (r *affiliateRepo) UnpaidApprovedConversions(affiliateID int) ([]*store.AffiliateConversion, error) {
	return r.queryConversions(
		`SELECT `+conversionCols+` FROM affiliate_conversions
		WHERE affiliate_id = $1 AND NOT is_pending AND NOT paid_out ORDER BY id`,
		affiliateID)
}

type payoutRepo struct{ t *pgTx }

func (r *payoutRepo) Get(id int) (*store.PayoutRequest, error) {
	var p store.PayoutRequest
	var resolved sql.NullTime
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT id, affiliate_id, amount_cents, method, status, transaction_ref,
			reject_reason, created_at, resolved_at, version
		FROM payout_requests WHERE id = $1`, id).Scan(
		&p.ID, &p.AffiliateID, &p.AmountCents, &p.Method, &p.Status,
		&p.TransactionRef, &p.RejectReason, &p.CreatedAt, &resolved, &p.Version)
	if err != nil {
		return nil, mapError(err)
	}
	p.ResolvedAt = timePtr(resolved)
	return &p, nil
}

func (r *payoutRepo) Create(p *store.PayoutRequest) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Version = 1
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO payout_requests (affiliate_id, amount_cents, method, status,
			transaction_ref, reject_reason, created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		p.AffiliateID, p.AmountCents, p.Method, p.Status, p.TransactionRef,
		p.RejectReason, p.CreatedAt, p.Version).Scan(&p.ID)
	return mapError(err)
}

func (r *payoutRepo) Update(p *store.PayoutRequest) error {
	var resolved interface{}
	if p.ResolvedAt != nil {
		resolved = *p.ResolvedAt
	}
	res, err := r.t.tx.ExecContext(r.t.ctx,
		`UPDATE payout_requests SET status=$1, transaction_ref=$2,
			reject_reason=$3, resolved_at=$4, version=version+1
		WHERE id=$5 AND version=$6`,
		p.Status, p.TransactionRef, p.RejectReason, resolved, p.ID, p.Version)
	if err != nil {
		return mapError(err)
	}
	return checkVersioned(res)
}

type referralRepo struct{ t *pgTx }

func (r *referralRepo) FindByReferredShop(shopID int) (*store.Referral, error) {
	var rec store.Referral
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT id, referrer_shop_id, referred_shop_id, rewarded, created_at, version
		FROM referrals WHERE referred_shop_id = $1`, shopID).Scan(
		&rec.ID, &rec.ReferrerShopID, &rec.ReferredShopID, &rec.Rewarded,
		&rec.CreatedAt, &rec.Version)
	if err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

func (r *referralRepo) Create(rec *store.Referral) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Version = 1
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO referrals (referrer_shop_id, referred_shop_id, rewarded,
			created_at, version)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		rec.ReferrerShopID, rec.ReferredShopID, rec.Rewarded, rec.CreatedAt,
		rec.Version).Scan(&rec.ID)
	return mapError(err)
}

func (r *referralRepo) Update(rec *store.Referral) error {
	res, err := r.t.tx.ExecContext(r.t.ctx,
		`UPDATE referrals SET rewarded=$1, version=version+1
		WHERE id=$2 AND version=$3`,
		rec.Rewarded, rec.ID, rec.Version)
	if err != nil {
		return mapError(err)
	}
	return checkVersioned(res)
}

type creditKeyRepo struct{ t *pgTx }

func (r *creditKeyRepo) GetRequest(id int) (*store.CreditRequest, error) {
	var rec store.CreditRequest
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT id, shop_id, credits, status, created_at, version
		FROM credit_requests WHERE id = $1`, id).Scan(
		&rec.ID, &rec.ShopID, &rec.Credits, &rec.Status, &rec.CreatedAt,
		&rec.Version)
	if err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

func (r *creditKeyRepo) CreateRequest(rec *store.CreditRequest) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Version = 1
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO credit_requests (shop_id, credits, status, created_at, version)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		rec.ShopID, rec.Credits, rec.Status, rec.CreatedAt, rec.Version).Scan(&rec.ID)
	return mapError(err)
}

func (r *creditKeyRepo) UpdateRequest(rec *store.CreditRequest) error {
	res, err := r.t.tx.ExecContext(r.t.ctx,
		`UPDATE credit_requests SET status=$1, version=version+1
		WHERE id=$2 AND version=$3`,
		rec.Status, rec.ID, rec.Version)
	if err != nil {
		return mapError(err)
	}
	return checkVersioned(res)
}

const creditKeyCols = `id, request_id, shop_id, code_hash, credits, used,
	expires_at, created_at, version`

func scanCreditKey(scan func(dest ...interface{}) error) (*store.CreditKey, error) {
	var k store.CreditKey
	err := scan(&k.ID, &k.RequestID, &k.ShopID, &k.CodeHash, &k.Credits,
		&k.Used, &k.ExpiresAt, &k.CreatedAt, &k.Version)
	if err != nil {
		return nil, mapError(err)
	}
	return &k, nil
}

func (r *creditKeyRepo) GetKey(id int) (*store.CreditKey, error) {
	row := r.t.tx.QueryRowContext(r.t.ctx,
		`SELECT `+creditKeyCols+` FROM credit_keys WHERE id = $1`, id)
	return scanCreditKey(row.Scan)
}

func (r *creditKeyRepo) KeysForShop(shopID int) ([]*store.CreditKey, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx,
		`SELECT `+creditKeyCols+` FROM credit_keys
		WHERE shop_id = $1 ORDER BY id DESC`, shopID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*store.CreditKey
	for rows.Next() {
		k, err := scanCreditKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *creditKeyRepo) CreateKey(k *store.CreditKey) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	k.Version = 1
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO credit_keys (request_id, shop_id, code_hash, credits, used,
			expires_at, created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		k.RequestID, k.ShopID, k.CodeHash, k.Credits, k.Used, k.ExpiresAt,
		k.CreatedAt, k.Version).Scan(&k.ID)
	return mapError(err)
}

func (r *creditKeyRepo) UpdateKey(k *store.CreditKey) error {
	res, err := r.t.tx.ExecContext(r.t.ctx,
		`UPDATE credit_keys SET used=$1, version=version+1
		WHERE id=$2 AND version=$3`,
		k.Used, k.ID, k.Version)
	if err != nil {
		return mapError(err)
	}
	return checkVersioned(res)
}

type ledgerRepo struct{ t *pgTx }

func (r *ledgerRepo) Append(e *store.LedgerEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := r.t.tx.QueryRowContext(r.t.ctx,
		`INSERT INTO ledger_entries (account_id, kind, amount, ref_type, ref_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		e.AccountID, e.Kind, e.Amount, e.RefType, e.RefID, e.CreatedAt).Scan(&e.ID)
	return mapError(err)
}

func (r *ledgerRepo) queryEntries(query string, args ...interface{}) ([]*store.LedgerEntry, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*store.LedgerEntry
	for rows.Next() {
		var e store.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount,
			&e.RefType, &e.RefID, &e.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *ledgerRepo) ForAccount(accountID int) ([]*store.LedgerEntry, error) {
	return r.queryEntries(
		`SELECT id, account_id, kind, amount, ref_type, ref_id, created_at
		FROM ledger_entries WHERE account_id = $1 ORDER BY id`, accountID)
}

func (r *ledgerRepo) All() ([]*store.LedgerEntry, error) {
	return r.queryEntries(
		`SELECT id, account_id, kind, amount, ref_type, ref_id, created_at
		FROM ledger_entries ORDER BY id`)
}
