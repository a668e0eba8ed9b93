package bond

import (
	"sync"

	"github.com/btcsuite/btcd/wire"

	"github.com/taptrade/coordinatord/internal/nodeclient"
)

// mempoolMirror incrementally tracks the node's mempool as a
// txid -> previous-outpoints map plus a flattened set of spent outpoints,
// so the monitor loop can test a bond's inputs for conflicts in O(inputs)
// rather than re-querying the node per input per tick. Guarded by a
// multi-reader-single-writer lock; the monitor loop is its sole writer.
type mempoolMirror struct {
	mu      sync.RWMutex
	spends  map[wire.OutPoint]string // outpoint -> spending txid
	byTxid  map[string][]wire.OutPoint
}

func newMempoolMirror() *mempoolMirror {
	return &mempoolMirror{
		spends: make(map[wire.OutPoint]string),
		byTxid: make(map[string][]wire.OutPoint),
	}
}

// refresh rescans the node's raw mempool, adding newly seen transactions'
// inputs and evicting transactions no longer present.
func (m *mempoolMirror) refresh(node *nodeclient.Client) error {
	hashes, err := node.RawMempoolTxids()
	if err != nil {
		return err
	}

	current := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		current[h.String()] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for txid := range m.byTxid {
		if _, ok := current[txid]; !ok {
			m.evictLocked(txid)
		}
	}

	for _, h := range hashes {
		txid := h.String()
		if _, known := m.byTxid[txid]; known {
			continue
		}
		tx, err := node.DecodedTransaction(h)
		if err != nil {
			// A tx can be evicted between listing and fetch; skip it,
			// it will simply be absent this tick.
			continue
		}
		outpoints := make([]wire.OutPoint, 0, len(tx.TxIn))
		for _, in := range tx.TxIn {
			m.spends[in.PreviousOutPoint] = txid
			outpoints = append(outpoints, in.PreviousOutPoint)
		}
		m.byTxid[txid] = outpoints
	}

	return nil
}

func (m *mempoolMirror) evictLocked(txid string) {
	for _, op := range m.byTxid[txid] {
		if m.spends[op] == txid {
			delete(m.spends, op)
		}
	}
	delete(m.byTxid, txid)
}

// conflicts returns the mempool txid currently spending outpoint, if any.
func (m *mempoolMirror) conflicts(op wire.OutPoint) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txid, ok := m.spends[op]
	return txid, ok
}
