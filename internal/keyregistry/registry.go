// Package keyregistry implements the Key Registry and its Rotation
// Cursor: the authoritative, process-local record of every configured
// key, its failure counter, and its per-(key,model) cooldown deadlines.
//
// Grounded on the internal/keypool/pool.go for the fine-grained
// locking shape (one mutex per mutable concern, never held across I/O) and on
// the original Python key_manager.py for the exact rotation/cooldown/failure
// semantics this package reproduces in a strongly typed form.
package keyregistry

import (
	"sync"
	"time"

	"github.com/relaykeys/keygated/internal/collab"
	"github.com/relaykeys/keygated/internal/randutil"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Registry owns the key list, per-key failure counters, and per-(key,model)
// cooldown deadlines. A Registry's key list is
// immutable after construction; hot-reload builds a new Registry via
// New, migrating state from the old one through a Snapshot rather than
// mutating keys in place.
type Registry struct {
	cfg    Config
	clock  collab.Clock
	logger zerolog.Logger
	tz     *time.Location

	keys  []string
	index map[string]int // key -> position in keys, O(1) membership test

	cur cursor

	failMu    sync.Mutex
	failCount map[string]int

	coolMu   sync.Mutex
	cooldown map[string]map[string]time.Time
}

// New constructs a Registry over the given ordered key list. If clock is nil,
// collab.RealClock is used.
func New(cfg Config, keys []string, clock collab.Clock, logger zerolog.Logger) *Registry {
	if clock == nil {
		clock = collab.RealClock{}
	}

	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	r := &Registry{
		cfg:       cfg,
		clock:     clock,
		logger:    logger.With().Str("component", "keyregistry").Logger(),
		keys:      append([]string(nil), keys...),
		index:     index,
		failCount: make(map[string]int, len(keys)),
		cooldown:  make(map[string]map[string]time.Time),
	}

	r.tz = loadTimezone(cfg.GetTimezone(), func(name string, err error) {
		r.logger.Error().Err(err).Str("timezone", name).Msg("unknown timezone, falling back to UTC")
	})

	for _, k := range keys {
		r.failCount[k] = 0
	}

	if len(keys) == 0 {
		r.logger.Warn().Msg("registry initialized with no keys")
	}

	return r
}

// Keys returns the registry's ordered key list. The returned slice must not
// be mutated by the caller.
func (r *Registry) Keys() []string {
	return r.keys
}

// Len reports the number of configured keys.
func (r *Registry) Len() int {
	return len(r.keys)
}

// has reports whether k is a member of this registry's key list.
func (r *Registry) has(k string) bool {
	_, ok := r.index[k]
	return ok
}

// Contains reports whether k is a member of this registry's key list. Used
// during hot-reload to decide which preserved state a new
// Registry can accept.
func (r *Registry) Contains(k string) bool {
	return r.has(k)
}

// SetFailCount directly restores k's failure counter to n, clamped to
// [0, M]. Unlike IncrementFailure/ResetFailure, this does not simulate a
// sequence of API outcomes: it is the hot-reload migration primitive for
// carrying a failure counter across a Registry rebuild.
func (r *Registry) SetFailCount(k string, n int) {
	r.failMu.Lock()
	defer r.failMu.Unlock()

	if _, ok := r.failCount[k]; !ok {
		return
	}

	max := r.cfg.GetMaxFailures()

	switch {
	case n < 0:
		n = 0
	case n > max:
		n = max
	}

	r.failCount[k] = n
}

// NextRaw advances the rotation cursor and returns the key at the new
// position. It does not check validity.
func (r *Registry) NextRaw() string {
	n := len(r.keys)
	if n == 0 {
		return ""
	}

	pos := r.cur.advance(n)

	return r.keys[pos]
}

// PeekNextKey returns the key the next NextRaw call would yield, without
// advancing the cursor. Used to capture the hot-reload "next key" hint.
func (r *Registry) PeekNextKey() string {
	n := len(r.keys)
	if n == 0 {
		return ""
	}

	pos := r.cur.peekNext(n)

	return r.keys[pos]
}

// SeedCursorTo advances the cursor so that the next NextRaw call returns key,
// if key is present in this registry. Returns false (cursor left at its
// zero position) if key is absent, leaving rotation to start from the
// beginning of the key list.
func (r *Registry) SeedCursorTo(key string) bool {
	idx, ok := r.index[key]
	if !ok {
		return false
	}

	r.cur.seekTo(idx)

	return true
}

// IsValid reports whether k is generally-valid: its failure counter is below
// the ceiling M.
func (r *Registry) IsValid(k string) bool {
	r.failMu.Lock()
	defer r.failMu.Unlock()

	return r.failCount[k] < r.cfg.GetMaxFailures()
}

// FailCount returns the current failure counter for k (0 if unknown).
func (r *Registry) FailCount(k string) int {
	r.failMu.Lock()
	defer r.failMu.Unlock()

	return r.failCount[k]
}

// IsModelAvailable reports whether k is generally-valid and not currently in
// cooldown for model m. An empty model name is treated as "no
// model context" and only checks general validity.
func (r *Registry) IsModelAvailable(k, model string) bool {
	if !r.IsValid(k) {
		return false
	}

	if model == "" {
		return true
	}

	r.coolMu.Lock()
	defer r.coolMu.Unlock()

	deadline, ok := r.cooldown[k][model]
	if !ok {
		return true
	}

	return !r.clock.Now().Before(deadline)
}

// MarkFailed immediately sets k's failure counter to the ceiling M, used for
// fatal errors such as auth failures or permanent client errors.
func (r *Registry) MarkFailed(k string) {
	r.failMu.Lock()
	defer r.failMu.Unlock()

	if _, ok := r.failCount[k]; ok {
		r.failCount[k] = r.cfg.GetMaxFailures()
		r.logger.Warn().Str("key", redactKey(k)).Msg("key marked failed")
	}
}

// IncrementFailure increments k's failure counter by one, clamped to the
// ceiling M, and logs a warning on every call that leaves the counter at
// the ceiling.
func (r *Registry) IncrementFailure(k string) {
	r.failMu.Lock()
	defer r.failMu.Unlock()

	max := r.cfg.GetMaxFailures()
	if r.failCount[k] < max {
		r.failCount[k]++
	}

	if r.failCount[k] >= max {
		r.logger.Warn().Str("key", redactKey(k)).Int("max_failures", max).Msg("key reached failure ceiling")
	}
}

// ResetFailure sets k's failure counter back to zero. Returns whether k is a
// known key.
func (r *Registry) ResetFailure(k string) bool {
	r.failMu.Lock()
	defer r.failMu.Unlock()

	if _, ok := r.failCount[k]; !ok {
		return false
	}

	r.failCount[k] = 0

	return true
}

// MarkModelCooling computes the next daily quota-reset instant
// and records it as the cooldown deadline for (k, model).
func (r *Registry) MarkModelCooling(k, model string) {
	deadline := nextQuotaReset(r.clock.Now(), r.tz, r.cfg.GetQuotaResetHour())

	r.coolMu.Lock()
	defer r.coolMu.Unlock()

	if r.cooldown[k] == nil {
		r.cooldown[k] = make(map[string]time.Time)
	}

	r.cooldown[k][model] = deadline

	r.logger.Info().
		Str("key", redactKey(k)).
		Str("model", model).
		Time("until", deadline).
		Msg("key model cooling")
}

// isModelAvailableFor is GetNextWorking's per-candidate predicate: valid, and
// (no model given, or not in cooldown for that model).
func (r *Registry) isModelAvailableFor(k, model string) bool {
	if !r.IsValid(k) {
		return false
	}

	if model == "" {
		return true
	}

	return r.IsModelAvailable(k, model)
}

// GetNextWorking scans at most len(keys)+1 rotation positions for a key that
// passes isModelAvailableFor, advancing the cursor as it goes, and returns
// the first match. If every key fails the predicate, it returns the last
// candidate examined; the caller is expected to treat this as best-effort
// and let the upstream call fail through to the error handler.
func (r *Registry) GetNextWorking(model string) string {
	n := len(r.keys)
	if n == 0 {
		return ""
	}

	current := r.NextRaw()

	var last string

	for i := 0; i <= n; i++ {
		last = current
		if r.isModelAvailableFor(current, model) {
			return current
		}

		current = r.NextRaw()
	}

	return last
}

// HandleAPIFailure increments k's failure counter and, if attemptIndex is
// still within the retry budget, returns the next working key; otherwise
// returns "".
func (r *Registry) HandleAPIFailure(k string, attemptIndex int, model string) string {
	r.IncrementFailure(k)

	if attemptIndex < r.cfg.GetMaxRetries() {
		return r.GetNextWorking(model)
	}

	return ""
}

// FirstValid returns the first generally-valid key in insertion order.
func (r *Registry) FirstValid() (string, bool) {
	for _, k := range r.keys {
		if r.IsValid(k) {
			return k, true
		}
	}

	return "", false
}

// RandomValid returns a uniformly random generally-valid key.
func (r *Registry) RandomValid() (string, bool) {
	valid := lo.Filter(r.keys, func(k string, _ int) bool { return r.IsValid(k) })
	if len(valid) == 0 {
		return "", false
	}

	return valid[randutil.Intn(len(valid))], true
}

// SnapshotByStatus partitions the registry's keys by validity, each mapped
// to its failure counter, for the admin observability surface.
func (r *Registry) SnapshotByStatus() (valid, invalid map[string]int) {
	valid = make(map[string]int)
	invalid = make(map[string]int)

	max := r.cfg.GetMaxFailures()

	r.failMu.Lock()
	defer r.failMu.Unlock()

	for _, k := range r.keys {
		n := r.failCount[k]
		if n < max {
			valid[k] = n
		} else {
			invalid[k] = n
		}
	}

	return valid, invalid
}

// redactKey shows only the first 8 characters of a key for logging.
func redactKey(key string) string {
	const visible = 8
	if len(key) <= visible {
		return key
	}

	return key[:visible] + "..."
}
