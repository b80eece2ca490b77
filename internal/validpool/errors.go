package validpool

import "errors"

// ErrNoKeyAvailable is returned when neither the pool nor an emergency
// refill nor the registry's fallback rotation can produce a usable key.
var ErrNoKeyAvailable = errors.New("validpool: no key available")
