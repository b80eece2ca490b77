package lifecycle

import (
	"github.com/relaykeys/keygated/internal/collab"
	"github.com/relaykeys/keygated/internal/keyregistry"
	"github.com/relaykeys/keygated/internal/validpool"
	"github.com/rs/zerolog"
)

// Classifier is the subset of classifier.Classifier a Pool needs.
type Classifier interface {
	Classify(err error, key, model string, attemptIndex int) string
}

// Instance bundles a Key Registry with the Valid Key Pool built over it:
// the two process-singletons migrated together across a hot-reload.
type Instance struct {
	Registry *keyregistry.Registry
	Pool     *validpool.Pool
}

// New builds an Instance over keys. If prev is non-nil, its failCount,
// rotation cursor position, and live pool entries are migrated forward
// before prev is discarded: keys still present inherit their
// prior failure counter, new keys start at 0, the cursor resumes from the
// preserved "next key" if it still exists, and pool entries are re-seeded
// with their original expiry, filtered to keys still present and not yet
// expired.
func New(
	registryCfg keyregistry.Config,
	poolCfg validpool.Config,
	keys []string,
	classifier Classifier,
	upstream collab.UpstreamChatService,
	clock collab.Clock,
	logger zerolog.Logger,
	prev *Instance,
) (*Instance, error) {
	var snap Snapshot
	if prev != nil {
		snap = capture(prev.Registry, prev.Pool)
	}

	registry := keyregistry.New(registryCfg, keys, clock, logger)

	for key, n := range snap.FailCount {
		if registry.Contains(key) {
			registry.SetFailCount(key, n)
		}
	}

	if snap.NextKeyHint != "" {
		registry.SeedCursorTo(snap.NextKeyHint)
	}

	pool, err := validpool.New(poolCfg, registry, classifier, upstream, clock, logger)
	if err != nil {
		return nil, err
	}

	if len(snap.PoolEntries) > 0 {
		preserved := make([]validpool.PoolEntry, 0, len(snap.PoolEntries))

		for _, e := range snap.PoolEntries {
			if registry.Contains(e.Key) {
				preserved = append(preserved, e)
			}
		}

		pool.Seed(preserved)
	}

	return &Instance{Registry: registry, Pool: pool}, nil
}
