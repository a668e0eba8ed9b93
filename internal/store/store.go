// Package store is the Persistence Facade: durable, relational storage for
// offer lifecycle records and monitored bonds. It is grounded on the
// teacher's internal/storage package (single-writer SQLite opened with a
// WAL journal) but replaces the multi-chain swap schema with the four
// tables the coordinator's offer state machine actually needs.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the single SQLite connection backing the coordinator. SQLite
// only supports one writer at a time, so the pool is capped at one
// connection, matching the teacher's storage.New.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Config holds the Persistence Facade's only setting: where the database
// lives. ":memory:" is accepted for tests, per the external configuration
// contract.
type Config struct {
	Path string
}

// New opens (and if needed initializes) the SQLite-backed store.
func New(cfg Config) (*Store, error) {
	dsn := cfg.Path
	if dsn != ":memory:" {
		dsn = dsn + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS maker_requests (
	robohash TEXT PRIMARY KEY,
	amount_sat INTEGER NOT NULL,
	is_buy_order INTEGER NOT NULL,
	bond_ratio INTEGER NOT NULL,
	offer_duration_ts INTEGER NOT NULL,
	maker_bond_address TEXT NOT NULL,
	required_bond_sat INTEGER NOT NULL,
	min_input_sum_sat INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS active_maker_offers (
	offer_id TEXT PRIMARY KEY,
	robohash TEXT NOT NULL,
	amount_sat INTEGER NOT NULL,
	is_buy_order INTEGER NOT NULL,
	bond_ratio INTEGER NOT NULL,
	offer_duration_ts INTEGER NOT NULL,
	required_bond_sat INTEGER NOT NULL,
	min_input_sum_sat INTEGER NOT NULL,

	taker_bond_address TEXT NOT NULL,
	maker_bond_tx TEXT NOT NULL,
	maker_payout_address TEXT NOT NULL,
	maker_taproot_pk TEXT NOT NULL,
	maker_musig_pk TEXT NOT NULL,
	maker_musig_pub_nonce TEXT NOT NULL,
	maker_change_address TEXT NOT NULL,
	maker_psbt_inputs TEXT NOT NULL,

	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_active_offers_side_amount
	ON active_maker_offers(is_buy_order, amount_sat);

CREATE TABLE IF NOT EXISTS taken_offers (
	offer_id TEXT PRIMARY KEY,
	state TEXT NOT NULL,

	maker_robohash TEXT NOT NULL,
	taker_robohash TEXT NOT NULL,
	amount_sat INTEGER NOT NULL,
	is_buy_order INTEGER NOT NULL,
	required_bond_sat INTEGER NOT NULL,
	min_input_sum_sat INTEGER NOT NULL,

	maker_bond_tx TEXT NOT NULL,
	maker_payout_address TEXT NOT NULL,
	maker_taproot_pk TEXT NOT NULL,
	maker_musig_pk TEXT NOT NULL,
	maker_musig_pub_nonce TEXT NOT NULL,
	maker_change_address TEXT NOT NULL,
	maker_psbt_inputs TEXT NOT NULL,

	taker_bond_tx TEXT NOT NULL,
	taker_payout_address TEXT NOT NULL,
	taker_taproot_pk TEXT NOT NULL,
	taker_musig_pk TEXT NOT NULL,
	taker_musig_pub_nonce TEXT NOT NULL,
	taker_change_address TEXT NOT NULL,
	taker_psbt_inputs TEXT NOT NULL,

	escrow_output_descriptor TEXT,
	escrow_funding_psbt TEXT,
	escrow_maker_signed_psbt TEXT,
	escrow_taker_signed_psbt TEXT,
	escrow_txid TEXT,
	escrow_confirmed INTEGER NOT NULL DEFAULT 0,
	escrow_amount_maker_sat INTEGER,
	escrow_amount_taker_sat INTEGER,
	escrow_fee_sat_per_participant INTEGER,

	maker_happy INTEGER,
	taker_happy INTEGER,

	payout_psbt TEXT,
	payout_agg_nonce TEXT,
	payout_agg_pubkey_ctx TEXT,
	maker_partial_sig TEXT,
	taker_partial_sig TEXT,

	arbiter_winner TEXT,
	payout_txid TEXT,

	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_taken_offers_state ON taken_offers(state);
CREATE INDEX IF NOT EXISTS idx_taken_offers_escrow_unconfirmed
	ON taken_offers(escrow_confirmed) WHERE escrow_confirmed = 0;

CREATE TABLE IF NOT EXISTS monitored_bonds (
	bond_id TEXT PRIMARY KEY,
	offer_id TEXT NOT NULL,
	robohash TEXT NOT NULL,
	bond_tx_hex TEXT NOT NULL,
	required_bond_sat INTEGER NOT NULL,
	min_input_sum_sat INTEGER NOT NULL,
	parent_table TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_monitored_bonds_offer ON monitored_bonds(offer_id);

CREATE TABLE IF NOT EXISTS wallet_index (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	next_index INTEGER NOT NULL
);
INSERT OR IGNORE INTO wallet_index (id, next_index) VALUES (0, 0);
`

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a single transaction, serializing concurrent
// writers at the Go layer on top of SQLite's own row locking — the
// Persistence Facade's "single atomic write per transition" contract.
func (s *Store) withTx(fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
