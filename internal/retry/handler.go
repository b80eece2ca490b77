// Package retry implements the Retry Handler: a bounded-retry
// driver that substitutes the key used on each attempt based on the Error
// Classifier's verdict, rather than sleeping between attempts (the
// classifier's cooldown/fail mutations already encode the back-off).
//
// Grounded on the original Python retry_handler.py's decorator loop shape,
// translated into a generic higher-order function — the idiomatic Go
// equivalent of a decorator — and on
// internal/router/failover.go FailoverRouter.SelectWithRetry, which performs
// the analogous "try, classify, substitute, retry" loop over providers
// instead of keys.
package retry

import "context"

// Classifier is the subset of classifier.Classifier the retry handler needs:
// turn an observed error into the next key to try, or "" to give up.
type Classifier interface {
	Classify(err error, key, model string, attemptIndex int) string
}

// Config bounds the retry loop.
type Config struct {
	// MaxRetries is the attempt cap. Default 3.
	MaxRetries int `yaml:"max_retries" toml:"max_retries"`
}

const defaultMaxRetries = 3

// GetMaxRetries returns the configured cap or its default.
func (c Config) GetMaxRetries() int {
	if c.MaxRetries <= 0 {
		return defaultMaxRetries
	}

	return c.MaxRetries
}

// Func is the operation retried: given a context and the key to use for this
// attempt, produce a result or an error.
type Func[T any] func(ctx context.Context, key string) (T, error)

// Do runs f, substituting the key between attempts according to classifier's
// verdict on each failure, up to cfg.GetMaxRetries() attempts. It returns the
// first successful result, or the last observed error if the budget is
// exhausted or the classifier yields no further key.
func Do[T any](ctx context.Context, cfg Config, clf Classifier, startKey, model string, f Func[T]) (T, error) {
	var (
		zero    T
		lastErr error
	)

	currentKey := startKey
	maxRetries := cfg.GetMaxRetries()

	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, err := f(ctx, currentKey)
		if err == nil {
			return result, nil
		}

		lastErr = err

		newKey := clf.Classify(err, currentKey, model, attempt)
		if newKey == "" {
			break
		}

		currentKey = newKey
	}

	return zero, lastErr
}
