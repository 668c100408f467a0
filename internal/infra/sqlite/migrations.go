package sqlite

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
// CHECK constraints are the last line of defense; the guarded UPDATE
// statements in ledger.go reject violations before the constraint fires.
func Migrations() []string {
	return []string{
		// Append-only transfer log — the source of truth.
		// One row per logical operation; debit/credit legs are derived.
		`CREATE TABLE IF NOT EXISTS transfers (
			id          TEXT PRIMARY KEY,
			circle_id   TEXT NOT NULL,
			kind        TEXT NOT NULL,
			amount      INTEGER NOT NULL CHECK(amount > 0),
			source_type TEXT NOT NULL,
			source_user TEXT NOT NULL DEFAULT '',
			sink_type   TEXT NOT NULL,
			sink_user   TEXT NOT NULL DEFAULT '',
			booking_id  TEXT NOT NULL DEFAULT '',
			loan_id     TEXT NOT NULL DEFAULT '',
			note        TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_circle ON transfers(circle_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_booking ON transfers(booking_id) WHERE booking_id != ''`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_loan ON transfers(loan_id) WHERE loan_id != ''`,

		// Membership balances (denormalized projection, per user per circle)
		`CREATE TABLE IF NOT EXISTS memberships (
			circle_id       TEXT NOT NULL,
			user_id         TEXT NOT NULL,
			role            TEXT NOT NULL DEFAULT 'MEMBER',
			balance_credits INTEGER NOT NULL DEFAULT 0 CHECK(balance_credits >= 0),
			created_at      TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at      TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (circle_id, user_id)
		)`,

		// Circle treasuries (one per circle, lazily created)
		`CREATE TABLE IF NOT EXISTS treasuries (
			circle_id               TEXT PRIMARY KEY,
			balance_credits         INTEGER NOT NULL DEFAULT 0 CHECK(balance_credits >= 0),
			reserved_credits        INTEGER NOT NULL DEFAULT 0 CHECK(reserved_credits >= 0),
			total_funded            INTEGER NOT NULL DEFAULT 0,
			total_distributed       INTEGER NOT NULL DEFAULT 0,
			total_matched           INTEGER NOT NULL DEFAULT 0,
			match_ratio             REAL NOT NULL DEFAULT 0,
			max_match_per_booking   INTEGER NOT NULL DEFAULT 0,
			matching_active         INTEGER NOT NULL DEFAULT 0,
			allowance_active        INTEGER NOT NULL DEFAULT 0,
			allowance_per_member    INTEGER NOT NULL DEFAULT 0,
			monthly_allowance_total INTEGER NOT NULL DEFAULT 0,
			updated_at              TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Insurance pools (one per circle, lazily created)
		`CREATE TABLE IF NOT EXISTS insurance_pools (
			circle_id       TEXT PRIMARY KEY,
			balance_credits INTEGER NOT NULL DEFAULT 0 CHECK(balance_credits >= 0),
			updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Loans (treasury credit extended to members)
		`CREATE TABLE IF NOT EXISTS loans (
			id          TEXT PRIMARY KEY,
			circle_id   TEXT NOT NULL,
			borrower_id TEXT NOT NULL,
			principal   INTEGER NOT NULL DEFAULT 0,
			remaining   INTEGER NOT NULL DEFAULT 0 CHECK(remaining >= 0),
			created_at  TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(circle_id, borrower_id)`,

		// Bookings (lifecycle owner for escrowed credits)
		`CREATE TABLE IF NOT EXISTS bookings (
			id           TEXT PRIMARY KEY,
			circle_id    TEXT NOT NULL,
			requester_id TEXT NOT NULL,
			provider_id  TEXT NOT NULL DEFAULT '',
			credits      INTEGER NOT NULL CHECK(credits > 0),
			status       TEXT NOT NULL DEFAULT 'OPEN',
			category     TEXT NOT NULL DEFAULT '',
			start_at     TEXT NOT NULL,
			urgent       INTEGER NOT NULL DEFAULT 0,
			guaranteed   INTEGER NOT NULL DEFAULT 0,
			cross_circle INTEGER NOT NULL DEFAULT 0,
			equipment    INTEGER NOT NULL DEFAULT 0,
			requirements TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_circle ON bookings(circle_id, status)`,

		// Claims (guaranteed-booking protection)
		`CREATE TABLE IF NOT EXISTS claims (
			id            TEXT PRIMARY KEY,
			circle_id     TEXT NOT NULL,
			booking_id    TEXT NOT NULL,
			claimant_id   TEXT NOT NULL,
			amount        INTEGER NOT NULL CHECK(amount > 0),
			bonus_credits INTEGER NOT NULL DEFAULT 0,
			type          TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'PENDING',
			created_at    TEXT NOT NULL DEFAULT (datetime('now')),
			resolved_at   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_booking ON claims(booking_id)`,

		// Treasury match records — the uniqueness guard that makes
		// booking-completion matching idempotent under duplicate events.
		`CREATE TABLE IF NOT EXISTS treasury_matches (
			booking_id  TEXT PRIMARY KEY,
			circle_id   TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			created_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}
