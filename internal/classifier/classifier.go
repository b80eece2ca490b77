// Package classifier implements the Error Classifier: it turns an
// opaque upstream error into an ErrorCategory and drives the corresponding
// Key Registry mutation and next-key selection, logging a best-effort record
// of every classification to the Error Log sink.
//
// Grounded on the original Python error_processor.py, which is the more
// expressive of the source's three divergent classifiers (see DESIGN.md,
// "Open questions" item 1) — this package reproduces that one, not the
// narrower retry_handler.py inline classification.
package classifier

import (
	"github.com/relaykeys/keygated/internal/collab"
)

// Category is an ErrorCategory tag.
type Category string

// The seven categories the consolidated classifier distinguishes.
const (
	RateLimit          Category = "rate_limit"
	Auth               Category = "auth"
	Client             Category = "client"
	Server             Category = "server"
	ServiceUnavailable Category = "service_unavailable"
	Timeout            Category = "timeout"
	Unknown            Category = "unknown"
)

// categorize maps a recovered status code to an ErrorCategory. hasCode=false
// always yields Unknown.
func categorize(code int, hasCode bool) Category {
	if !hasCode {
		return Unknown
	}

	switch code {
	case 429:
		return RateLimit
	case 401, 403:
		return Auth
	case 400, 404, 422:
		return Client
	case 500, 502, 504:
		return Server
	case 503:
		return ServiceUnavailable
	case 408:
		return Timeout
	default:
		return Unknown
	}
}

// Registry is the subset of keyregistry.Registry the classifier needs to
// drive mutations and next-key selection. Declared locally (accept
// interfaces, return structs) so this package has no dependency on the
// concrete registry type.
type Registry interface {
	MarkFailed(key string)
	MarkModelCooling(key, model string)
	GetNextWorking(model string) string
	HandleAPIFailure(key string, attemptIndex int, model string) string
}

// Classifier maps upstream errors to registry mutations and the next key to
// try.
type Classifier struct {
	registry Registry
	sink     collab.ErrorLogSink
}

// New constructs a Classifier. sink may be nil, in which case classification
// records are simply not emitted.
func New(registry Registry, sink collab.ErrorLogSink) *Classifier {
	return &Classifier{registry: registry, sink: sink}
}

// Classify applies the action table for err observed on key (optionally for
// model, at the given attemptIndex) and returns the next key to try, or ""
// if none is available. It never panics and never blocks on logging.
func (c *Classifier) Classify(err error, key, model string, attemptIndex int) string {
	code, hasCode := extractCode(err)
	category := categorize(code, hasCode)

	next := c.apply(category, key, model, attemptIndex)

	c.logRecord(err, key, model, category, code, hasCode, attemptIndex)

	return next
}

func (c *Classifier) apply(category Category, key, model string, attemptIndex int) string {
	switch category {
	case RateLimit:
		if model != "" {
			c.registry.MarkModelCooling(key, model)
			return c.registry.GetNextWorking(model)
		}

		c.registry.MarkFailed(key)

		return c.registry.GetNextWorking("")

	case Auth, Client, Server:
		c.registry.MarkFailed(key)
		return c.registry.GetNextWorking(model)

	case ServiceUnavailable, Timeout:
		return c.registry.GetNextWorking(model)

	default: // Unknown
		return c.registry.HandleAPIFailure(key, attemptIndex, model)
	}
}

// logRecord emits a best-effort error log record. Panics from a misbehaving
// sink are never expected (QueueSink never panics), but the log side effect
// must never be allowed to fail the caller's classification.
func (c *Classifier) logRecord(err error, key, model string, category Category, code int, hasCode bool, attemptIndex int) {
	if c.sink == nil {
		return
	}

	msg := ""
	if err != nil {
		msg = err.Error()
	}

	c.sink.LogError(collab.ErrorLogRecord{
		Key:          key,
		Model:        model,
		Category:     string(category),
		Code:         code,
		HasCode:      hasCode,
		RawError:     msg,
		AttemptIndex: attemptIndex,
	})
}
