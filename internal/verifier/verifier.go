// Package verifier implements the Scheduled Verifier: a
// long-running background job that batches and staggers synthetic
// verification calls across the full key set, pre-warming the pool and
// recovering previously-failed keys without itself tripping the upstream
// rate limits it exists to respect.
//
// Grounded on internal/health/checker.go for the
// ticker-driven goroutine lifecycle (Start/Stop, context.Context,
// sync.WaitGroup, jittered startup) and internal/health/circuit.go for
// wrapping the single upstream call path in a gobreaker breaker; the batch
// math itself is new, since the reference service's checker probes one
// provider per tick rather than staggering a whole key set.
package verifier

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/relaykeys/keygated/internal/collab"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Registry is the subset of keyregistry.Registry the verifier needs.
type Registry interface {
	Keys() []string
	IsModelAvailable(key, model string) bool
	ResetFailure(key string) bool
}

// Classifier is the subset of classifier.Classifier the verifier needs to
// hand off a verification failure for registry mutation.
type Classifier interface {
	Classify(err error, key, model string, attemptIndex int) string
}

// Verifier runs periodic staggered verification batches over a Registry.
type Verifier struct {
	cfg        Config
	registry   Registry
	classifier Classifier
	upstream   collab.UpstreamChatService
	clock      collab.Clock
	logger     zerolog.Logger

	breaker *gobreaker.TwoStepCircuitBreaker[struct{}]
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	runsMu   sync.Mutex
	runStats Stats
}

// Stats summarizes the most recently completed run, for the admin
// observability surface.
type Stats struct {
	CandidateCount int
	BatchCount     int
	VerifiedOK     int
	VerifiedFail   int
	Skipped        int
	BreakerTripped bool
	LastRunAt      time.Time
}

// New constructs a Verifier. If clock is nil, collab.RealClock is used.
func New(
	cfg Config,
	registry Registry,
	classifier Classifier,
	upstream collab.UpstreamChatService,
	clock collab.Clock,
	logger zerolog.Logger,
) *Verifier {
	if clock == nil {
		clock = collab.RealClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	failureLimit := cfg.GetBreakerFailureThreshold()

	settings := gobreaker.Settings{
		Name:        "verifier-probe",
		MaxRequests: 1,
		Timeout:     cfg.GetBreakerOpenDuration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureLimit
		},
	}

	return &Verifier{
		cfg:        cfg,
		registry:   registry,
		classifier: classifier,
		upstream:   upstream,
		clock:      clock,
		logger:     logger.With().Str("component", "verifier").Logger(),
		breaker:    gobreaker.NewTwoStepCircuitBreaker[struct{}](settings),
		limiter:    rate.NewLimiter(rate.Limit(cfg.GetRatePerSecond()), 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the verifier's background ticker loop. Safe to call once.
func (v *Verifier) Start() {
	interval := v.cfg.GetInterval()
	jitter := cryptoRandDuration(v.cfg.GetStartupJitter())

	v.wg.Add(1)

	go func() {
		defer v.wg.Done()

		timer := time.NewTimer(jitter)
		defer timer.Stop()

		select {
		case <-v.ctx.Done():
			return
		case <-timer.C:
		}

		v.runOnce()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-v.ctx.Done():
				v.logger.Info().Msg("verifier stopped")
				return
			case <-ticker.C:
				v.runOnce()
			}
		}
	}()
}

// Stop cancels the verifier's loop and waits for it to exit.
func (v *Verifier) Stop() {
	v.cancel()
	v.wg.Wait()
}

// LastStats returns a copy of the statistics from the most recently
// completed run.
func (v *Verifier) LastStats() Stats {
	v.runsMu.Lock()
	defer v.runsMu.Unlock()

	return v.runStats
}

// runOnce executes a single staggered verification run over the candidate
// set.
func (v *Verifier) runOnce() {
	candidates := v.candidates()

	stats := Stats{
		CandidateCount: len(candidates),
		LastRunAt:      v.clock.Now(),
	}

	if len(candidates) == 0 {
		v.commitStats(stats)
		return
	}

	batches := batchOf(candidates, v.cfg.GetBatchSize())
	stats.BatchCount = len(batches)

	interval := v.cfg.GetInterval()
	sleepBetween := interval / time.Duration(len(batches))

	for i, batch := range batches {
		select {
		case <-v.ctx.Done():
			v.commitStats(stats)
			return
		default:
		}

		ok, fail, skipped := v.runBatch(batch)
		stats.VerifiedOK += ok
		stats.VerifiedFail += fail
		stats.Skipped += skipped

		if i < len(batches)-1 {
			select {
			case <-v.ctx.Done():
				v.commitStats(stats)
				return
			case <-time.After(sleepBetween):
			}
		}
	}

	v.commitStats(stats)
}

func (v *Verifier) commitStats(stats Stats) {
	v.runsMu.Lock()
	v.runStats = stats
	v.runsMu.Unlock()

	v.logger.Info().
		Int("candidates", stats.CandidateCount).
		Int("batches", stats.BatchCount).
		Int("verified_ok", stats.VerifiedOK).
		Int("verified_fail", stats.VerifiedFail).
		Int("skipped", stats.Skipped).
		Msg("verifier run complete")
}

// candidates builds the candidate set: generally-valid keys that are not
// currently in cooldown for the test model.
func (v *Verifier) candidates() []string {
	out := make([]string, 0, len(v.registry.Keys()))

	for _, k := range v.registry.Keys() {
		if v.registry.IsModelAvailable(k, v.cfg.TestModel) {
			out = append(out, k)
		}
	}

	return out
}

// runBatch verifies every key in batch concurrently, bounded by the rate
// limiter and gated by the breaker, and returns (ok, fail, skipped) counts.
func (v *Verifier) runBatch(batch []string) (ok, fail, skipped int) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		okCount  int
		failCount int
		skipCount int
	)

	for _, key := range batch {
		key := key

		done, breakerErr := v.breaker.Allow()
		if breakerErr != nil {
			mu.Lock()
			skipCount++
			mu.Unlock()

			continue
		}

		if err := v.limiter.Wait(v.ctx); err != nil {
			done(err)

			mu.Lock()
			skipCount++
			mu.Unlock()

			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			err := v.verifyKey(key)
			done(err)

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				okCount++
			} else {
				failCount++
			}
		}()
	}

	wg.Wait()

	return okCount, failCount, skipCount
}

// verifyKey issues the synthetic verification call for key, resetting its
// failure counter on success or handing the error to the classifier on
// failure.
func (v *Verifier) verifyKey(key string) error {
	_, err := v.upstream.Generate(v.ctx, v.cfg.TestModel, collab.ChatRequest{Prompt: "ping"}, key)
	if err != nil {
		v.classifier.Classify(err, key, v.cfg.TestModel, 0)
		return err
	}

	v.registry.ResetFailure(key)

	return nil
}

// batchOf splits keys into chunks of at most size B.
func batchOf(keys []string, size int) [][]string {
	if size <= 0 {
		size = len(keys)
	}

	batches := make([][]string, 0, (len(keys)+size-1)/size)

	for i := 0; i < len(keys); i += size {
		end := i + size
		if end > len(keys) {
			end = len(keys)
		}

		batches = append(batches, keys[i:end])
	}

	return batches
}

// cryptoRandDuration returns a cryptographically random duration in
// [0, maxDur).
func cryptoRandDuration(maxDur time.Duration) time.Duration {
	if maxDur <= 0 {
		return 0
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}

	n := binary.LittleEndian.Uint64(b[:])

	return time.Duration(n % uint64(maxDur)) //nolint:gosec
}
