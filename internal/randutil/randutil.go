// Package randutil provides the shared non-cryptographic random-selection
// helper used by key rotation and pool refill sampling. Grounded on the
// reference service's internal/keypool/random_util.go, factored out to a shared
// package since both the Key Registry and the Valid Key Pool need uniform
// random sampling across keys.
package randutil

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Intn returns a non-negative integer in [0, n). If n <= 0 it returns 0. It
// uses crypto/rand to produce a secure random value and falls back to a
// time-based source if crypto randomness fails.
func Intn(n int) int {
	if n <= 0 {
		return 0
	}

	maxVal := big.NewInt(int64(n))
	if v, err := rand.Int(rand.Reader, maxVal); err == nil {
		return int(v.Int64())
	}

	return int(time.Now().UnixNano() % int64(n))
}

// Float64 returns a pseudo-uniform value in [0, 1), used for the Valid Key
// Pool's probability-gated refill scheduling. Falls back to a
// time-based source if crypto randomness fails.
func Float64() float64 {
	const precision = 1_000_000

	return float64(Intn(precision)) / float64(precision)
}

// Shuffle returns a copy of items in uniformly random order (Fisher-Yates),
// used for without-replacement sampling (emergency refill candidate
// selection).
func Shuffle[T any](items []T) []T {
	out := append([]T(nil), items...)

	for i := len(out) - 1; i > 0; i-- {
		j := Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}
