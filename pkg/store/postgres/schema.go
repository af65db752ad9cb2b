package postgres

// schema holds the DDL applied at startup. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id SERIAL PRIMARY KEY,
		type VARCHAR(20) NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		credits BIGINT NOT NULL DEFAULT 0,
		pending_cents BIGINT NOT NULL DEFAULT 0,
		available_cents BIGINT NOT NULL DEFAULT 0,
		total_earnings_cents BIGINT NOT NULL DEFAULT 0,
		total_paid_out_cents BIGINT NOT NULL DEFAULT 0,
		commission_rate_bps BIGINT NOT NULL DEFAULT 0,
		referrer_id INTEGER REFERENCES accounts(id),
		has_redeemed_first_coupon BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS coupons (
		id SERIAL PRIMARY KEY,
		shop_id INTEGER NOT NULL REFERENCES accounts(id),
		code VARCHAR(64) NOT NULL DEFAULT '',
		title VARCHAR(255) NOT NULL DEFAULT '',
		uses_left INTEGER NOT NULL,
		customer_reward_points BIGINT NOT NULL DEFAULT 0,
		commission_cents BIGINT NOT NULL DEFAULT 0,
		expires_at TIMESTAMPTZ,
		valid_for_seconds BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS redemptions (
		id SERIAL PRIMARY KEY,
		coupon_id INTEGER NOT NULL REFERENCES coupons(id),
		customer_id INTEGER NOT NULL REFERENCES accounts(id),
		shop_id INTEGER NOT NULL REFERENCES accounts(id),
		affiliate_id INTEGER REFERENCES accounts(id),
		referrer_id INTEGER REFERENCES accounts(id),
		customer_points BIGINT NOT NULL DEFAULT 0,
		commission_cents BIGINT NOT NULL DEFAULT 0,
		referrer_bonus BIGINT NOT NULL DEFAULT 0,
		contact_name VARCHAR(255) NOT NULL DEFAULT '',
		contact_email VARCHAR(255) NOT NULL DEFAULT '',
		contact_phone VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1,
		UNIQUE (coupon_id, customer_id)
	)`,

	`CREATE TABLE IF NOT EXISTS affiliate_links (
		id SERIAL PRIMARY KEY,
		affiliate_id INTEGER NOT NULL REFERENCES accounts(id),
		code VARCHAR(64) UNIQUE NOT NULL,
		coupon_id INTEGER REFERENCES coupons(id),
		total_clicks INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS affiliate_clicks (
		id SERIAL PRIMARY KEY,
		link_id INTEGER NOT NULL REFERENCES affiliate_links(id),
		affiliate_id INTEGER NOT NULL REFERENCES accounts(id),
		token VARCHAR(64) UNIQUE NOT NULL,
		ip_address VARCHAR(64) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT '',
		utm_source VARCHAR(255) NOT NULL DEFAULT '',
		utm_medium VARCHAR(255) NOT NULL DEFAULT '',
		utm_campaign VARCHAR(255) NOT NULL DEFAULT '',
		clicked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS affiliate_conversions (
		id SERIAL PRIMARY KEY,
		affiliate_id INTEGER NOT NULL REFERENCES accounts(id),
		source VARCHAR(20) NOT NULL,
		redemption_id INTEGER REFERENCES redemptions(id),
		link_id INTEGER REFERENCES affiliate_links(id),
		order_cents BIGINT NOT NULL DEFAULT 0,
		rate_bps BIGINT NOT NULL DEFAULT 0,
		amount_cents BIGINT NOT NULL DEFAULT 0,
		is_pending BOOLEAN NOT NULL DEFAULT TRUE,
		paid_out BOOLEAN NOT NULL DEFAULT FALSE,
		converted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1
	)`,

	`CREATE INDEX IF NOT EXISTS idx_conversions_pending
		ON affiliate_conversions (converted_at) WHERE is_pending`,

	`CREATE TABLE IF NOT EXISTS payout_requests (
		id SERIAL PRIMARY KEY,
		affiliate_id INTEGER NOT NULL REFERENCES accounts(id),
		amount_cents BIGINT NOT NULL,
		method VARCHAR(32) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		transaction_ref VARCHAR(255) NOT NULL DEFAULT '',
		reject_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS referrals (
		id SERIAL PRIMARY KEY,
		referrer_shop_id INTEGER NOT NULL REFERENCES accounts(id),
		referred_shop_id INTEGER UNIQUE NOT NULL REFERENCES accounts(id),
		rewarded BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS credit_requests (
		id SERIAL PRIMARY KEY,
		shop_id INTEGER NOT NULL REFERENCES accounts(id),
		credits BIGINT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS credit_keys (
		id SERIAL PRIMARY KEY,
		request_id INTEGER NOT NULL REFERENCES credit_requests(id),
		shop_id INTEGER NOT NULL REFERENCES accounts(id),
		code_hash VARCHAR(255) NOT NULL,
		credits BIGINT NOT NULL,
		used BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id SERIAL PRIMARY KEY,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		kind VARCHAR(32) NOT NULL,
		amount BIGINT NOT NULL,
		ref_type VARCHAR(32) NOT NULL DEFAULT '',
		ref_id INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries (account_id)`,
}
