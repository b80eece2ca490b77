package verifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relaykeys/keygated/internal/collab"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	keys        []string
	unavailable map[string]bool

	mu       sync.Mutex
	resetLog []string
}

func (f *fakeRegistry) Keys() []string { return f.keys }

func (f *fakeRegistry) IsModelAvailable(key, _ string) bool {
	return !f.unavailable[key]
}

func (f *fakeRegistry) ResetFailure(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resetLog = append(f.resetLog, key)

	return true
}

type fakeClassifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeClassifier) Classify(_ error, key, _ string, _ int) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, key)

	return ""
}

type fakeUpstream struct {
	failKeys map[string]bool
}

func (f *fakeUpstream) Generate(_ context.Context, _ string, _ collab.ChatRequest, key string) (collab.ChatResponse, error) {
	if f.failKeys[key] {
		return collab.ChatResponse{}, errors.New("status code 500")
	}

	return collab.ChatResponse{Text: "pong"}, nil
}

func keysOf(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "key" + string(rune('A'+i%26)) + string(rune('0'+i/26))
	}

	return out
}

// Scenario 7: 100 keys, batch size 20, interval 4h -> 5 batches.
func TestCandidatesSplitIntoFiveBatchesFor100Keys(t *testing.T) {
	keys := keysOf(100)
	reg := &fakeRegistry{keys: keys, unavailable: map[string]bool{}}
	clf := &fakeClassifier{}
	up := &fakeUpstream{failKeys: map[string]bool{}}

	v := New(Config{
		Interval:      4 * time.Hour,
		BatchSize:     20,
		TestModel:     "test-model",
		RatePerSecond: 1_000_000,
	}, reg, clf, up, collab.NewFixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), zerolog.Nop())

	candidates := v.candidates()
	require.Len(t, candidates, 100)

	batches := batchOf(candidates, v.cfg.GetBatchSize())
	assert.Len(t, batches, 5)

	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 20)
	}
}

func TestRunOnceResetsFailureOnSuccessAndClassifiesOnFailure(t *testing.T) {
	reg := &fakeRegistry{keys: []string{"good", "bad"}, unavailable: map[string]bool{}}
	clf := &fakeClassifier{}
	up := &fakeUpstream{failKeys: map[string]bool{"bad": true}}

	v := New(Config{
		Interval:      time.Hour,
		BatchSize:     20,
		TestModel:     "test-model",
		RatePerSecond: 1_000_000,
	}, reg, clf, up, nil, zerolog.Nop())

	v.runOnce()

	stats := v.LastStats()
	assert.Equal(t, 2, stats.CandidateCount)
	assert.Equal(t, 1, stats.VerifiedOK)
	assert.Equal(t, 1, stats.VerifiedFail)
	assert.Equal(t, []string{"good"}, reg.resetLog)
	assert.Equal(t, []string{"bad"}, clf.calls)
}

func TestRunOnceExcludesCooldownKeys(t *testing.T) {
	reg := &fakeRegistry{
		keys:        []string{"ready", "cooling"},
		unavailable: map[string]bool{"cooling": true},
	}
	clf := &fakeClassifier{}
	up := &fakeUpstream{failKeys: map[string]bool{}}

	v := New(Config{BatchSize: 20, TestModel: "test-model"}, reg, clf, up, nil, zerolog.Nop())

	candidates := v.candidates()

	assert.Equal(t, []string{"ready"}, candidates)
}

func TestRunOnceNoCandidatesIsNoOp(t *testing.T) {
	reg := &fakeRegistry{keys: []string{"only"}, unavailable: map[string]bool{"only": true}}
	clf := &fakeClassifier{}
	up := &fakeUpstream{failKeys: map[string]bool{}}

	v := New(Config{BatchSize: 20}, reg, clf, up, nil, zerolog.Nop())
	v.runOnce()

	stats := v.LastStats()
	assert.Equal(t, 0, stats.CandidateCount)
	assert.Equal(t, 0, stats.BatchCount)
}

func TestStartStopLifecycle(t *testing.T) {
	reg := &fakeRegistry{keys: []string{"k1"}, unavailable: map[string]bool{}}
	clf := &fakeClassifier{}
	up := &fakeUpstream{failKeys: map[string]bool{}}

	v := New(Config{
		Interval:      time.Hour,
		BatchSize:     20,
		StartupJitter: time.Millisecond,
	}, reg, clf, up, nil, zerolog.Nop())

	v.Start()
	time.Sleep(20 * time.Millisecond)
	v.Stop()

	stats := v.LastStats()
	assert.Equal(t, 1, stats.CandidateCount)
}

func TestBreakerSkipsWhenOpen(t *testing.T) {
	reg := &fakeRegistry{keys: []string{"a", "b", "c"}, unavailable: map[string]bool{}}
	clf := &fakeClassifier{}
	up := &fakeUpstream{failKeys: map[string]bool{"a": true, "b": true, "c": true}}

	v := New(Config{
		BatchSize:               20,
		BreakerFailureThreshold: 2,
		RatePerSecond:           1_000_000,
	}, reg, clf, up, nil, zerolog.Nop())

	v.runOnce()
	v.runOnce()

	stats := v.LastStats()
	assert.Equal(t, 3, stats.Skipped, "second run should find the breaker open and skip every key")
}
