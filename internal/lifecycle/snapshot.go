// Package lifecycle implements the Singleton Lifecycle: the
// migration of failure counters, rotation cursor position, and valid-pool
// entries from one Key Registry/Valid Key Pool pair to their hot-reloaded
// replacements.
//
// Grounded on the reference service's internal/config.Runtime
// (atomic.Pointer-backed "current instance" holder) for the swap mechanics,
// and on the original key_manager.py's resetAndReload for the exact state
// that must survive a reload: failCount, the cursor's "next key", and live
// pool entries.
package lifecycle

import (
	"github.com/relaykeys/keygated/internal/keyregistry"
	"github.com/relaykeys/keygated/internal/validpool"
)

// Snapshot is the state captured from an Instance immediately before it is
// discarded, so a freshly constructed replacement can migrate it forward.
type Snapshot struct {
	FailCount   map[string]int
	NextKeyHint string
	PoolEntries []validpool.PoolEntry
}

// capture builds a Snapshot from a live registry and pool. Called by New
// just before building the replacement Instance.
func capture(registry *keyregistry.Registry, pool *validpool.Pool) Snapshot {
	valid, invalid := registry.SnapshotByStatus()

	failCount := make(map[string]int, len(valid)+len(invalid))
	for k, n := range valid {
		failCount[k] = n
	}

	for k, n := range invalid {
		failCount[k] = n
	}

	return Snapshot{
		FailCount:   failCount,
		NextKeyHint: registry.PeekNextKey(),
		PoolEntries: pool.Entries(),
	}
}
