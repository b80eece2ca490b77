package validpool

import (
	"sync/atomic"
	"time"
)

// counters tracks the pool's lifetime activity: hits, misses, refills,
// expirations, and verification success/failure.
type counters struct {
	hits         atomic.Uint64
	misses       atomic.Uint64
	refills      atomic.Uint64
	expired      atomic.Uint64
	verifyOK     atomic.Uint64
	verifyFailed atomic.Uint64
}

// Stats is a point-in-time snapshot exposed on the admin observability
// surface.
type Stats struct {
	Hits               uint64
	Misses             uint64
	Refills            uint64
	Expired            uint64
	VerificationOK     uint64
	VerificationFailed uint64
	Size               int
	PoolSize           int
	Utilization        float64
	TTLExpiryRate      float64
	AvgKeyAgeSeconds   float64
}

// Stats returns a snapshot of the pool's counters and current occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	size := len(p.queue)

	var ageSum time.Duration

	now := p.clock.Now()
	for _, e := range p.queue {
		ageSum += now.Sub(e.createdAt)
	}

	p.mu.Unlock()

	poolSize := p.cfg.GetPoolSize()

	hits := p.counts.hits.Load()
	misses := p.counts.misses.Load()
	expired := p.counts.expired.Load()

	var (
		ttlExpiryRate    float64
		avgKeyAgeSeconds float64
	)

	if total := hits + misses; total > 0 {
		ttlExpiryRate = float64(expired) / float64(total)
	}

	if size > 0 {
		avgKeyAgeSeconds = (ageSum / time.Duration(size)).Seconds()
	}

	return Stats{
		Hits:               hits,
		Misses:             misses,
		Refills:            p.counts.refills.Load(),
		Expired:            expired,
		VerificationOK:     p.counts.verifyOK.Load(),
		VerificationFailed: p.counts.verifyFailed.Load(),
		Size:               size,
		PoolSize:           poolSize,
		Utilization:        float64(size) / float64(poolSize),
		TTLExpiryRate:      ttlExpiryRate,
		AvgKeyAgeSeconds:   avgKeyAgeSeconds,
	}
}
