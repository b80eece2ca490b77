// Package validpool implements the Valid Key Pool: a bounded
// TTL cache of keys already observed to work, replenished asynchronously in
// the background and, on a miss, synchronously via a bounded emergency
// fan-out.
//
// Grounded on the internal/keypool/pool.go for the
// fine-grained-mutex-per-concern shape and internal/cache/ristretto.go for
// wrapping github.com/dgraph-io/ristretto/v2 as a small TTL cache (here
// repurposed to suppress recently-failed verification candidates instead of
// caching response bodies); the size-dependent refill policy and the
// verificationLock/emergencyLock split are new, since nothing in the
// reference service maintains a pre-verified credential queue.
package validpool

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/relaykeys/keygated/internal/collab"
	"github.com/relaykeys/keygated/internal/randutil"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// Registry is the subset of keyregistry.Registry the pool needs.
type Registry interface {
	Keys() []string
	IsValid(key string) bool
	ResetFailure(key string) bool
	GetNextWorking(model string) string
}

// Classifier is the subset of classifier.Classifier the pool needs to
// route a non-emergency verification failure through the normal action
// table.
type Classifier interface {
	Classify(err error, key, model string, attemptIndex int) string
}

// Pool is the Valid Key Pool: a bounded FIFO of verified, unexpired keys.
type Pool struct {
	cfg        Config
	registry   Registry
	classifier Classifier
	upstream   collab.UpstreamChatService
	clock      collab.Clock
	logger     zerolog.Logger

	mu      sync.Mutex
	queue   []entry
	present map[string]bool

	verificationLock sync.Mutex
	emergencyLock    sync.Mutex

	attemptCache *ristretto.Cache[string, struct{}]
	limiter      *rate.Limiter

	counts counters
}

const (
	attemptCacheCounters = 10_000
	attemptCacheMaxCost  = 1 << 20
)

// New constructs an empty Pool. If clock is nil, collab.RealClock is used.
func New(
	cfg Config,
	registry Registry,
	classifier Classifier,
	upstream collab.UpstreamChatService,
	clock collab.Clock,
	logger zerolog.Logger,
) (*Pool, error) {
	if clock == nil {
		clock = collab.RealClock{}
	}

	attemptCache, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: attemptCacheCounters,
		MaxCost:     attemptCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Pool{
		cfg:          cfg,
		registry:     registry,
		classifier:   classifier,
		upstream:     upstream,
		clock:        clock,
		logger:       logger.With().Str("component", "validpool").Logger(),
		present:      make(map[string]bool),
		attemptCache: attemptCache,
		limiter:      rate.NewLimiter(rate.Limit(cfg.GetRatePerSecond()), 1),
	}, nil
}

// Len reports the pool's current occupancy.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.queue)
}

// GetValid pops a live entry from the head of the queue, skipping expired
// ones, triggers a size-dependent asynchronous refill, and returns the key.
// On a full miss it falls through to a synchronous emergency refill.
func (p *Pool) GetValid(ctx context.Context, model string) (string, error) {
	key, sizeAfter, hit := p.popLive()

	if hit {
		p.counts.hits.Add(1)
		p.schedulePostPopRefill(sizeAfter)

		return key, nil
	}

	p.counts.misses.Add(1)

	return p.emergencyRefill(ctx, model)
}

// popLive pops entries from the head until a live one is found or the
// queue is exhausted, returning the live key, the queue size immediately
// after the pop, and whether a live entry was found.
func (p *Pool) popLive() (key string, sizeAfter int, hit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()

	for len(p.queue) > 0 {
		head := p.queue[0]
		p.queue = p.queue[1:]
		delete(p.present, head.key)

		if head.expired(now) {
			p.counts.expired.Add(1)
			continue
		}

		return head.key, len(p.queue), true
	}

	return "", 0, false
}

// the size-dependent refill policy, evaluating bands in order (first match wins).
func (p *Pool) schedulePostPopRefill(sizeAfter int) {
	poolSize := p.cfg.GetPoolSize()
	minT := p.cfg.GetMinThreshold()

	eightyPct := int(float64(poolSize) * 0.8)

	switch {
	case sizeAfter < minT/2:
		go p.emergencyRefillAsync()
	case sizeAfter < minT:
		go p.asyncVerifyAndAdd()
		go p.asyncVerifyAndAdd()
	case sizeAfter < eightyPct && float64(sizeAfter) < float64(minT)*1.5:
		go p.asyncVerifyAndAdd()
		go p.asyncVerifyAndAdd()
	case sizeAfter < eightyPct && sizeAfter < minT*2:
		go p.asyncVerifyAndAdd()
	case sizeAfter < eightyPct && float64(sizeAfter) < float64(minT)*2.5:
		if randutil.Float64() < 0.8 {
			go p.asyncVerifyAndAdd()
		}
	case sizeAfter < eightyPct:
		if randutil.Float64() < 0.3 {
			go p.asyncVerifyAndAdd()
		}
	case sizeAfter < poolSize:
		if randutil.Float64() < 0.1 {
			go p.asyncVerifyAndAdd()
		}
	}
}

// asyncVerifyAndAdd performs a single-key background refill, guarded by
// verificationLock: a second concurrent caller returns immediately rather
// than blocking.
func (p *Pool) asyncVerifyAndAdd() {
	if !p.verificationLock.TryLock() {
		return
	}
	defer p.verificationLock.Unlock()

	if p.Len() >= p.cfg.GetPoolSize() {
		return
	}

	candidate, ok := p.pickCandidate()
	if !ok {
		return
	}

	ok = p.verify(context.Background(), candidate)
	if !ok {
		p.counts.verifyFailed.Add(1)
		p.suppress(candidate)

		return
	}

	p.counts.verifyOK.Add(1)
	p.insert(candidate)
}

// emergencyRefillAsync is emergencyRefill run as a fire-and-forget
// background task, interlocked with normal refill via verificationLock
// rather than emergencyLock.
func (p *Pool) emergencyRefillAsync() {
	if !p.verificationLock.TryLock() {
		return
	}
	defer p.verificationLock.Unlock()

	_, _ = p.emergencyRefill(context.Background(), "")
}

// emergencyRefill samples up to EmergencyRefillCount valid candidate keys
// without replacement, verifies them concurrently (bounded by the rate
// limiter), inserts every success into the pool if capacity allows, and
// returns the first successful key observed. If none succeed, it falls
// back to the registry's rotation.
func (p *Pool) emergencyRefill(ctx context.Context, model string) (string, error) {
	p.emergencyLock.Lock()
	defer p.emergencyLock.Unlock()

	candidates := p.availableCandidates()
	n := p.cfg.GetEmergencyRefillCount()

	if n > len(candidates) {
		n = len(candidates)
	}

	sample := randutil.Shuffle(candidates)[:n]

	type result struct {
		key string
		ok  bool
	}

	results := make(chan result, len(sample))

	var wg sync.WaitGroup

	for _, key := range sample {
		key := key

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := p.limiter.Wait(ctx); err != nil {
				results <- result{key, false}
				return
			}

			ok := p.verifyEmergency(ctx, key)
			results <- result{key, ok}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	first := ""

	for r := range results {
		if !r.ok {
			continue
		}

		p.insert(r.key)

		if first == "" {
			first = r.key
		}
	}

	if first != "" {
		return first, nil
	}

	if fallback := p.registry.GetNextWorking(model); fallback != "" {
		return fallback, nil
	}

	return "", ErrNoKeyAvailable
}

// maintenance evicts expired entries, attempts to top up the queue, and
// spot-checks a sample of resident keys.
func (p *Pool) Maintenance(ctx context.Context) {
	p.evictExpired()

	poolSize := p.cfg.GetPoolSize()
	target := maintenanceTargetAdds

	if remaining := poolSize - p.Len(); remaining < target {
		target = remaining
	}

	if target > 0 {
		maxAttempts := target * 2
		spacing := p.cfg.GetMaintenanceSpacing()

		for attempt := 0; attempt < maxAttempts && p.Len() < poolSize; attempt++ {
			p.asyncVerifyAndAdd()

			if attempt < maxAttempts-1 && !sleepOrDone(ctx, spacing) {
				return
			}
		}
	}

	p.validatePoolKeys(ctx)
}

// validatePoolKeys samples up to validationSampleSize resident keys,
// re-verifies each, and evicts those that fail.
func (p *Pool) validatePoolKeys(ctx context.Context) {
	p.mu.Lock()
	sampleKeys := make([]string, 0, validationSampleSize)

	for _, e := range randutil.Shuffle(p.queue) {
		if len(sampleKeys) >= validationSampleSize {
			break
		}

		sampleKeys = append(sampleKeys, e.key)
	}
	p.mu.Unlock()

	for _, key := range sampleKeys {
		if p.verify(ctx, key) {
			continue
		}

		p.evictKey(key)
	}
}

// preload batch-verifies candidate keys (batches of 10) until the pool
// reaches targetSize or no candidates remain.
func (p *Pool) Preload(ctx context.Context, targetSize int) {
	if targetSize <= 0 {
		targetSize = p.cfg.GetPoolSize() / 2
	}

	const batchSize = 10

	for p.Len() < targetSize {
		candidates := p.availableCandidates()
		if len(candidates) == 0 {
			return
		}

		if len(candidates) > batchSize {
			candidates = candidates[:batchSize]
		}

		if need := targetSize - p.Len(); len(candidates) > need {
			candidates = candidates[:need]
		}

		var wg sync.WaitGroup

		for _, key := range candidates {
			key := key

			wg.Add(1)

			go func() {
				defer wg.Done()

				if p.verify(ctx, key) {
					p.counts.verifyOK.Add(1)
					p.insert(key)
				} else {
					p.counts.verifyFailed.Add(1)
					p.suppress(key)
				}
			}()
		}

		wg.Wait()
	}
}

// clear empties the queue (used during hot-reload and admin
// reset).
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = nil
	p.present = make(map[string]bool)
}

// PoolEntry is a point-in-time snapshot of one queued key, preserving its
// original expiry instant rather than a freshly computed TTL. Used to carry
// pool state across a hot-reload rebuild.
type PoolEntry struct {
	Key       string
	ExpiresAt time.Time
}

// Entries returns a snapshot of the queue in FIFO order.
func (p *Pool) Entries() []PoolEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PoolEntry, 0, len(p.queue))
	for _, e := range p.queue {
		out = append(out, PoolEntry{Key: e.key, ExpiresAt: e.expiresAt})
	}

	return out
}

// Seed restores preserved entries into the (expected-empty) queue,
// preserving each entry's original expiry rather than computing a fresh
// TTL. Entries already expired per this pool's clock, or whose key is
// already present, are skipped; insertion stops once the pool reaches
// capacity. Returns the number of entries actually restored.
func (p *Pool) Seed(entries []PoolEntry) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	restored := 0

	for _, e := range entries {
		if len(p.queue) >= p.cfg.GetPoolSize() {
			break
		}

		if p.present[e.Key] || !e.ExpiresAt.After(now) {
			continue
		}

		p.queue = append(p.queue, entry{key: e.Key, createdAt: now, expiresAt: e.ExpiresAt})
		p.present[e.Key] = true
		restored++
	}

	return restored
}

// verify is the normal verification primitive: success resets the key's
// failure counter; failure routes through the Error Classifier. Context
// cancellation propagates unchanged and is never counted as a failure.
func (p *Pool) verify(ctx context.Context, key string) bool {
	_, err := p.upstream.Generate(ctx, p.cfg.TestModel, collab.ChatRequest{Prompt: "hi"}, key)
	if err == nil {
		p.registry.ResetFailure(key)
		return true
	}

	if ctx.Err() != nil {
		return false
	}

	p.classifier.Classify(err, key, p.cfg.TestModel, 0)

	return false
}

// verifyEmergency is the simplified verification primitive used during
// emergency refill: it does not invoke the Error Classifier, to avoid
// re-entrant classification storms during mass verification.
func (p *Pool) verifyEmergency(ctx context.Context, key string) bool {
	if ctx.Err() != nil {
		return false
	}

	_, err := p.upstream.Generate(ctx, p.cfg.TestModel, collab.ChatRequest{Prompt: "hi"}, key)
	if err == nil {
		p.registry.ResetFailure(key)
		return true
	}

	return false
}

// pickCandidate chooses one valid key uniformly at random from keys not
// already in the pool and not currently suppressed by the
// verification-attempt cache.
func (p *Pool) pickCandidate() (string, bool) {
	candidates := p.availableCandidates()
	if len(candidates) == 0 {
		return "", false
	}

	return candidates[randutil.Intn(len(candidates))], true
}

// availableCandidates returns valid registry keys that are not already in
// the pool and not currently suppressed by the verification-attempt cache.
func (p *Pool) availableCandidates() []string {
	p.mu.Lock()
	present := make(map[string]bool, len(p.present))

	for k := range p.present {
		present[k] = true
	}
	p.mu.Unlock()

	return lo.Filter(p.registry.Keys(), func(k string, _ int) bool {
		if present[k] || !p.registry.IsValid(k) {
			return false
		}

		if _, suppressed := p.attemptCache.Get(k); suppressed {
			return false
		}

		return true
	})
}

// insert appends key as a fresh entry if the pool still has capacity and
// the key is not already present; it re-checks both conditions under the
// lock because verification is asynchronous: all mutators of the queue
// re-check len(queue) < poolSize immediately before append.
func (p *Pool) insert(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.present[key] || len(p.queue) >= p.cfg.GetPoolSize() {
		return
	}

	p.queue = append(p.queue, newEntry(key, p.clock.Now(), p.cfg.GetTTL()))
	p.present[key] = true
	p.counts.refills.Add(1)
}

// suppress records a failed verification attempt so the key is skipped as
// a refill candidate for a short cooldown window.
func (p *Pool) suppress(key string) {
	p.attemptCache.SetWithTTL(key, struct{}{}, 1, p.cfg.GetVerificationCacheTTL())
	p.attemptCache.Wait()
}

// evictExpired removes expired entries from the queue.
func (p *Pool) evictExpired() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	kept := p.queue[:0]

	for _, e := range p.queue {
		if e.expired(now) {
			delete(p.present, e.key)
			p.counts.expired.Add(1)

			continue
		}

		kept = append(kept, e)
	}

	p.queue = kept
}

// evictKey removes a specific key from the queue, if present.
func (p *Pool) evictKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.present[key] {
		return
	}

	for i, e := range p.queue {
		if e.key == key {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			delete(p.present, key)

			break
		}
	}
}

// sleepOrDone pauses for d, returning false early if ctx is canceled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
