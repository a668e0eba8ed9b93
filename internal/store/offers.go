package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// isUniqueViolation reports whether err is a SQLite UNIQUE/PRIMARY KEY
// constraint failure, used to detect a colliding offer_id so the caller
// can retry generation rather than surface a raw driver error.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint
}

// CreateMakerRequest inserts a new AwaitingBond record. Returns
// ErrAlreadyExists if robohash already has a pending request (a trader may
// only have one AwaitingBond request in flight at a time).
func (s *Store) CreateMakerRequest(r MakerRequest) error {
	return s.withTx(func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM maker_requests WHERE robohash = ?`, r.Robohash).Scan(&exists)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("store: checking existing maker request: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO maker_requests
				(robohash, amount_sat, is_buy_order, bond_ratio, offer_duration_ts,
				 maker_bond_address, required_bond_sat, min_input_sum_sat, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Robohash, r.AmountSat, r.IsBuyOrder, r.BondRatio, r.OfferDurationTS,
			r.MakerBondAddress, r.RequiredBondSat, r.MinInputSumSat, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("store: inserting maker request: %w", err)
		}
		return nil
	})
}

// GetMakerRequest fetches the AwaitingBond record for robohash.
func (s *Store) GetMakerRequest(robohash string) (*MakerRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT robohash, amount_sat, is_buy_order, bond_ratio, offer_duration_ts,
		       maker_bond_address, required_bond_sat, min_input_sum_sat, created_at
		FROM maker_requests WHERE robohash = ?`, robohash)

	var r MakerRequest
	err := row.Scan(&r.Robohash, &r.AmountSat, &r.IsBuyOrder, &r.BondRatio, &r.OfferDurationTS,
		&r.MakerBondAddress, &r.RequiredBondSat, &r.MinInputSumSat, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading maker request: %w", err)
	}
	return &r, nil
}

// PromoteToActiveOffer performs the AwaitingBond -> ActiveOrderbook
// transition: deletes the maker_requests row and inserts the
// active_maker_offers row in a single transaction.
func (s *Store) PromoteToActiveOffer(robohash string, offer ActiveOffer) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM maker_requests WHERE robohash = ?`, robohash)
		if err != nil {
			return fmt.Errorf("store: deleting maker request: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		_, err = tx.Exec(`
			INSERT INTO active_maker_offers
				(offer_id, robohash, amount_sat, is_buy_order, bond_ratio, offer_duration_ts,
				 required_bond_sat, min_input_sum_sat, taker_bond_address,
				 maker_bond_tx, maker_payout_address, maker_taproot_pk, maker_musig_pk,
				 maker_musig_pub_nonce, maker_change_address, maker_psbt_inputs, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			offer.OfferID, offer.Robohash, offer.AmountSat, offer.IsBuyOrder, offer.BondRatio,
			offer.OfferDurationTS, offer.RequiredBondSat, offer.MinInputSumSat, offer.TakerBondAddress,
			offer.MakerBondTx, offer.MakerPayoutAddress, offer.MakerTaprootPK, offer.MakerMusigPK,
			offer.MakerMusigPubNonce, offer.MakerChangeAddress, offer.MakerPsbtInputs, offer.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("store: inserting active offer: %w", err)
		}
		return nil
	})
}

// GetActiveOffer fetches an ActiveOrderbook row by offer_id.
func (s *Store) GetActiveOffer(offerID string) (*ActiveOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getActiveOfferLocked(s.db, offerID)
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

func (s *Store) getActiveOfferLocked(q queryer, offerID string) (*ActiveOffer, error) {
	row := q.QueryRow(`
		SELECT offer_id, robohash, amount_sat, is_buy_order, bond_ratio, offer_duration_ts,
		       required_bond_sat, min_input_sum_sat, taker_bond_address,
		       maker_bond_tx, maker_payout_address, maker_taproot_pk, maker_musig_pk,
		       maker_musig_pub_nonce, maker_change_address, maker_psbt_inputs, created_at
		FROM active_maker_offers WHERE offer_id = ?`, offerID)

	var o ActiveOffer
	err := row.Scan(&o.OfferID, &o.Robohash, &o.AmountSat, &o.IsBuyOrder, &o.BondRatio, &o.OfferDurationTS,
		&o.RequiredBondSat, &o.MinInputSumSat, &o.TakerBondAddress,
		&o.MakerBondTx, &o.MakerPayoutAddress, &o.MakerTaprootPK, &o.MakerMusigPK,
		&o.MakerMusigPubNonce, &o.MakerChangeAddress, &o.MakerPsbtInputs, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading active offer: %w", err)
	}
	return &o, nil
}

// FetchActiveOffers returns all ActiveOrderbook rows matching the given
// side (isBuy) and amount band [minSat, maxSat], and whose
// offer_duration_ts has not yet elapsed as of now.
func (s *Store) FetchActiveOffers(isBuy bool, minSat, maxSat, now int64) ([]ActiveOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT offer_id, robohash, amount_sat, is_buy_order, bond_ratio, offer_duration_ts,
		       required_bond_sat, min_input_sum_sat, taker_bond_address,
		       maker_bond_tx, maker_payout_address, maker_taproot_pk, maker_musig_pk,
		       maker_musig_pub_nonce, maker_change_address, maker_psbt_inputs, created_at
		FROM active_maker_offers
		WHERE is_buy_order = ? AND amount_sat BETWEEN ? AND ? AND offer_duration_ts > ?`,
		isBuy, minSat, maxSat, now)
	if err != nil {
		return nil, fmt.Errorf("store: querying active offers: %w", err)
	}
	defer rows.Close()

	var out []ActiveOffer
	for rows.Next() {
		var o ActiveOffer
		if err := rows.Scan(&o.OfferID, &o.Robohash, &o.AmountSat, &o.IsBuyOrder, &o.BondRatio, &o.OfferDurationTS,
			&o.RequiredBondSat, &o.MinInputSumSat, &o.TakerBondAddress,
			&o.MakerBondTx, &o.MakerPayoutAddress, &o.MakerTaprootPK, &o.MakerMusigPK,
			&o.MakerMusigPubNonce, &o.MakerChangeAddress, &o.MakerPsbtInputs, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning active offer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ExpireActiveOffers deletes ActiveOrderbook rows whose offer_duration_ts
// has elapsed as of now, returning the offer_ids removed so the caller can
// release their maker bonds from MonitoredBonds (expiry discards the offer
// without punishing the bond).
func (s *Store) ExpireActiveOffers(now int64) ([]string, error) {
	var expired []string
	err := s.withTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT offer_id FROM active_maker_offers WHERE offer_duration_ts <= ?`, now)
		if err != nil {
			return fmt.Errorf("store: querying expired offers: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			expired = append(expired, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		if len(expired) == 0 {
			return nil
		}
		_, err = tx.Exec(`DELETE FROM active_maker_offers WHERE offer_duration_ts <= ?`, now)
		if err != nil {
			return fmt.Errorf("store: deleting expired offers: %w", err)
		}
		return nil
	})
	return expired, err
}

// TakeOffer performs the ActiveOrderbook -> TakenAwaitingEscrow transition.
func (s *Store) TakeOffer(offerID string, taker TakenOffer) error {
	return s.withTx(func(tx *sql.Tx) error {
		active, err := s.getActiveOfferLocked(tx, offerID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM active_maker_offers WHERE offer_id = ?`, offerID); err != nil {
			return fmt.Errorf("store: deleting active offer: %w", err)
		}

		taker.OfferID = active.OfferID
		taker.MakerRobohash = active.Robohash
		taker.AmountSat = active.AmountSat
		taker.IsBuyOrder = active.IsBuyOrder
		taker.RequiredBondSat = active.RequiredBondSat
		taker.MinInputSumSat = active.MinInputSumSat
		taker.MakerBondTx = active.MakerBondTx
		taker.MakerPayoutAddress = active.MakerPayoutAddress
		taker.MakerTaprootPK = active.MakerTaprootPK
		taker.MakerMusigPK = active.MakerMusigPK
		taker.MakerMusigPubNonce = active.MakerMusigPubNonce
		taker.MakerChangeAddress = active.MakerChangeAddress
		taker.MakerPsbtInputs = active.MakerPsbtInputs
		taker.State = StateTakenAwaitingEscrow

		return insertTakenOffer(tx, taker)
	})
}

func insertTakenOffer(tx *sql.Tx, t TakenOffer) error {
	_, err := tx.Exec(`
		INSERT INTO taken_offers (
			offer_id, state, maker_robohash, taker_robohash, amount_sat, is_buy_order,
			required_bond_sat, min_input_sum_sat,
			maker_bond_tx, maker_payout_address, maker_taproot_pk, maker_musig_pk,
			maker_musig_pub_nonce, maker_change_address, maker_psbt_inputs,
			taker_bond_tx, taker_payout_address, taker_taproot_pk, taker_musig_pk,
			taker_musig_pub_nonce, taker_change_address, taker_psbt_inputs,
			escrow_output_descriptor, escrow_funding_psbt, escrow_txid, escrow_confirmed,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.OfferID, t.State, t.MakerRobohash, t.TakerRobohash, t.AmountSat, t.IsBuyOrder,
		t.RequiredBondSat, t.MinInputSumSat,
		t.MakerBondTx, t.MakerPayoutAddress, t.MakerTaprootPK, t.MakerMusigPK,
		t.MakerMusigPubNonce, t.MakerChangeAddress, t.MakerPsbtInputs,
		t.TakerBondTx, t.TakerPayoutAddress, t.TakerTaprootPK, t.TakerMusigPK,
		t.TakerMusigPubNonce, t.TakerChangeAddress, t.TakerPsbtInputs,
		t.EscrowOutputDescriptor, t.EscrowFundingPsbt, t.EscrowTxid, t.EscrowConfirmed,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: inserting taken offer: %w", err)
	}
	return nil
}

// GetTakenOffer fetches a taken_offers row by offer_id.
func (s *Store) GetTakenOffer(offerID string) (*TakenOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTakenOfferLocked(s.db, offerID)
}

func (s *Store) getTakenOfferLocked(q queryer, offerID string) (*TakenOffer, error) {
	row := q.QueryRow(`
		SELECT offer_id, state, maker_robohash, taker_robohash, amount_sat, is_buy_order,
		       required_bond_sat, min_input_sum_sat,
		       maker_bond_tx, maker_payout_address, maker_taproot_pk, maker_musig_pk,
		       maker_musig_pub_nonce, maker_change_address, maker_psbt_inputs,
		       taker_bond_tx, taker_payout_address, taker_taproot_pk, taker_musig_pk,
		       taker_musig_pub_nonce, taker_change_address, taker_psbt_inputs,
		       COALESCE(escrow_output_descriptor, ''), COALESCE(escrow_funding_psbt, ''),
		       COALESCE(escrow_maker_signed_psbt, ''), COALESCE(escrow_taker_signed_psbt, ''),
		       COALESCE(escrow_txid, ''), escrow_confirmed,
		       COALESCE(escrow_amount_maker_sat, 0), COALESCE(escrow_amount_taker_sat, 0),
		       COALESCE(escrow_fee_sat_per_participant, 0),
		       maker_happy, taker_happy,
		       COALESCE(payout_psbt, ''), COALESCE(payout_agg_nonce, ''), COALESCE(payout_agg_pubkey_ctx, ''),
		       COALESCE(maker_partial_sig, ''), COALESCE(taker_partial_sig, ''),
		       COALESCE(arbiter_winner, ''), COALESCE(payout_txid, ''),
		       created_at, updated_at
		FROM taken_offers WHERE offer_id = ?`, offerID)

	var t TakenOffer
	var makerHappy, takerHappy sql.NullBool
	err := row.Scan(&t.OfferID, &t.State, &t.MakerRobohash, &t.TakerRobohash, &t.AmountSat, &t.IsBuyOrder,
		&t.RequiredBondSat, &t.MinInputSumSat,
		&t.MakerBondTx, &t.MakerPayoutAddress, &t.MakerTaprootPK, &t.MakerMusigPK,
		&t.MakerMusigPubNonce, &t.MakerChangeAddress, &t.MakerPsbtInputs,
		&t.TakerBondTx, &t.TakerPayoutAddress, &t.TakerTaprootPK, &t.TakerMusigPK,
		&t.TakerMusigPubNonce, &t.TakerChangeAddress, &t.TakerPsbtInputs,
		&t.EscrowOutputDescriptor, &t.EscrowFundingPsbt,
		&t.EscrowMakerSignedPsbt, &t.EscrowTakerSignedPsbt,
		&t.EscrowTxid, &t.EscrowConfirmed,
		&t.EscrowAmountMakerSat, &t.EscrowAmountTakerSat, &t.EscrowFeeSatPerParticipant,
		&makerHappy, &takerHappy,
		&t.PayoutPsbt, &t.PayoutAggNonce, &t.PayoutAggPubkeyCtx,
		&t.MakerPartialSig, &t.TakerPartialSig,
		&t.ArbiterWinner, &t.PayoutTxid,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading taken offer: %w", err)
	}
	if makerHappy.Valid {
		t.MakerHappy = &makerHappy.Bool
	}
	if takerHappy.Valid {
		t.TakerHappy = &takerHappy.Bool
	}
	return &t, nil
}

// UpdateTakenOffer persists mutations to a taken_offers row. Callers load,
// mutate, and pass back the full record; the entire row is rewritten in
// one statement so the transition is atomic regardless of which fields
// changed.
func (s *Store) UpdateTakenOffer(t *TakenOffer) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE taken_offers SET
				state = ?,
				escrow_output_descriptor = ?, escrow_funding_psbt = ?,
				escrow_maker_signed_psbt = ?, escrow_taker_signed_psbt = ?,
				escrow_txid = ?, escrow_confirmed = ?,
				escrow_amount_maker_sat = ?, escrow_amount_taker_sat = ?,
				escrow_fee_sat_per_participant = ?,
				maker_happy = ?, taker_happy = ?,
				payout_psbt = ?, payout_agg_nonce = ?, payout_agg_pubkey_ctx = ?,
				maker_partial_sig = ?, taker_partial_sig = ?,
				arbiter_winner = ?, payout_txid = ?,
				updated_at = ?
			WHERE offer_id = ?`,
			t.State,
			nullableStr(t.EscrowOutputDescriptor), nullableStr(t.EscrowFundingPsbt),
			nullableStr(t.EscrowMakerSignedPsbt), nullableStr(t.EscrowTakerSignedPsbt),
			nullableStr(t.EscrowTxid), t.EscrowConfirmed,
			nullableInt(t.EscrowAmountMakerSat), nullableInt(t.EscrowAmountTakerSat),
			nullableInt(t.EscrowFeeSatPerParticipant),
			nullableBoolPtr(t.MakerHappy), nullableBoolPtr(t.TakerHappy),
			nullableStr(t.PayoutPsbt), nullableStr(t.PayoutAggNonce), nullableStr(t.PayoutAggPubkeyCtx),
			nullableStr(t.MakerPartialSig), nullableStr(t.TakerPartialSig),
			nullableStr(t.ArbiterWinner), nullableStr(t.PayoutTxid),
			t.UpdatedAt, t.OfferID)
		if err != nil {
			return fmt.Errorf("store: updating taken offer: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UnconfirmedEscrows returns every taken_offers row whose escrow has a
// txid but has not yet been marked confirmed, for the Confirmation
// Watcher's poll tick.
func (s *Store) UnconfirmedEscrows() ([]TakenOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT offer_id FROM taken_offers
		WHERE escrow_confirmed = 0 AND escrow_txid IS NOT NULL AND escrow_txid != ''`)
	if err != nil {
		return nil, fmt.Errorf("store: querying unconfirmed escrows: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TakenOffer, 0, len(ids))
	for _, id := range ids {
		t, err := s.getTakenOfferLocked(s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// ListDisputedOffers returns every taken_offers row that has entered
// PayoutArbitrated but has no arbiter decision recorded yet, for the
// arbitration loop's poll tick.
func (s *Store) ListDisputedOffers() ([]TakenOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT offer_id FROM taken_offers
		WHERE state = ? AND (arbiter_winner IS NULL OR arbiter_winner = '')`, StatePayoutArbitrated)
	if err != nil {
		return nil, fmt.Errorf("store: querying disputed offers: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TakenOffer, 0, len(ids))
	for _, id := range ids {
		t, err := s.getTakenOfferLocked(s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableBoolPtr(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
