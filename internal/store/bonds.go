package store

import (
	"database/sql"
	"fmt"
)

// AddMonitoredBond inserts a bond into the index the monitor loop
// rescans every tick.
func (s *Store) AddMonitoredBond(b MonitoredBond) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO monitored_bonds
				(bond_id, offer_id, robohash, bond_tx_hex, required_bond_sat,
				 min_input_sum_sat, parent_table, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.BondID, b.OfferID, b.Robohash, b.BondTxHex, b.RequiredBondSat,
			b.MinInputSumSat, b.ParentTable, b.CreatedAt)
		if err != nil {
			return fmt.Errorf("store: inserting monitored bond: %w", err)
		}
		return nil
	})
}

// ListMonitoredBonds returns the full monitored-bonds snapshot the bond
// monitor loop diffs against the mempool mirror on each tick.
func (s *Store) ListMonitoredBonds() ([]MonitoredBond, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT bond_id, offer_id, robohash, bond_tx_hex, required_bond_sat,
		       min_input_sum_sat, parent_table, created_at
		FROM monitored_bonds`)
	if err != nil {
		return nil, fmt.Errorf("store: listing monitored bonds: %w", err)
	}
	defer rows.Close()

	var out []MonitoredBond
	for rows.Next() {
		var b MonitoredBond
		if err := rows.Scan(&b.BondID, &b.OfferID, &b.Robohash, &b.BondTxHex, &b.RequiredBondSat,
			&b.MinInputSumSat, &b.ParentTable, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning monitored bond: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RemoveMonitoredBond deletes a single bond from the index by its bond ID.
func (s *Store) RemoveMonitoredBond(bondID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM monitored_bonds WHERE bond_id = ?`, bondID)
		if err != nil {
			return fmt.Errorf("store: removing monitored bond: %w", err)
		}
		return nil
	})
}

// RemoveMonitoredBondsForOffer removes every monitored bond tied to an
// offer_id, used when an offer is discarded on expiry.
func (s *Store) RemoveMonitoredBondsForOffer(offerID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM monitored_bonds WHERE offer_id = ?`, offerID)
		if err != nil {
			return fmt.Errorf("store: removing monitored bonds for offer: %w", err)
		}
		return nil
	})
}

// RemoveOfferEverywhere deletes an offer's row from whichever of the two
// offer_id-keyed tables (active_maker_offers, taken_offers) currently
// holds it, plus its monitored bonds, in one
// transaction — used by bond punishment, which the spec requires to
// remove the offense from its parent table atomically with a successful
// broadcast.
func (s *Store) RemoveOfferEverywhere(offerID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM active_maker_offers WHERE offer_id = ?`, offerID); err != nil {
			return fmt.Errorf("store: removing active offer: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM taken_offers WHERE offer_id = ?`, offerID); err != nil {
			return fmt.Errorf("store: removing taken offer: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM monitored_bonds WHERE offer_id = ?`, offerID); err != nil {
			return fmt.Errorf("store: removing monitored bonds: %w", err)
		}
		return nil
	})
}
