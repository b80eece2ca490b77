package keyregistry

import "sync"

// cursor is a cyclic iterator over an ordered key list, guarded by its own
// mutex, guarded independently of failure counters so an advance never
// contends with a failure-count update. Grounded on the reference service's
// atomic round-robin index (internal/keypool/round_robin.go), but
// keeps an explicit position rather than an atomic counter because the
// hot-reload lifecycle needs to seed the cursor to an arbitrary
// starting index on hot-reload, which an unbounded atomic.AddUint64 index
// cannot express without a modulo on every read.
type cursor struct {
	mu  sync.Mutex
	pos int
}

// advance moves the cursor to the next position in a ring of size n and
// returns that position. Returns -1 if n is 0.
func (c *cursor) advance(n int) int {
	if n <= 0 {
		return -1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pos = (c.pos + 1) % n

	return c.pos
}

// peekNext returns the position advance would move to next, without mutating
// the cursor. Used to snapshot the "next key to be returned" during hot-reload
// preservation.
func (c *cursor) peekNext(n int) int {
	if n <= 0 {
		return -1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return (c.pos + 1) % n
}

// seekTo sets the cursor so that the next advance returns the element at
// index target (used when restoring a preserved "next key" across
// hot-reload, and when seeding a fresh cursor at position 0).
func (c *cursor) seekTo(target int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pos = target - 1
}

// current returns the cursor's raw position without advancing.
func (c *cursor) current() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pos
}
