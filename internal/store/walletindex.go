package store

import "database/sql"

// AllocateAddressIndex atomically returns the next unused child-key index
// for the Wallet Facade's bond/change address derivation, persisting the
// counter so restarts never reuse an index already handed out — the same
// guarantee the teacher's Wallet.NextAddressIndex field provides, moved
// into durable storage since this coordinator has no in-memory wallet
// singleton surviving process restarts.
func (s *Store) AllocateAddressIndex() (uint32, error) {
	var next uint32
	err := s.withTx(func(tx *sql.Tx) error {
		if err := tx.QueryRow(`SELECT next_index FROM wallet_index WHERE id = 0`).Scan(&next); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE wallet_index SET next_index = next_index + 1 WHERE id = 0`)
		return err
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
