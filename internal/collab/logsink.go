package collab

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrorLogRecord is the fire-and-forget error record emitted by the classifier.
type ErrorLogRecord struct {
	Key           string
	Model         string
	Category      string
	Code          int
	RawError      string
	AttemptIndex  int
	HasCode       bool
}

// RequestLogRecord is the fire-and-forget request record.
type RequestLogRecord struct {
	Model      string
	Key        string
	Success    bool
	StatusCode int
	LatencyMS  int64
	Timestamp  time.Time
}

// ErrorLogSink accepts error records without blocking the caller.
type ErrorLogSink interface {
	LogError(rec ErrorLogRecord)
}

// RequestLogSink accepts request records without blocking the caller.
type RequestLogSink interface {
	LogRequest(rec RequestLogRecord)
}

// QueueSink is a bounded in-memory implementation of both ErrorLogSink and
// RequestLogSink: a single worker goroutine drains a buffered channel and
// writes structured zerolog events. Entries submitted while the channel is
// full are dropped and counted rather than blocking the submitter —
// callers must never stall on a log write.
type QueueSink struct {
	logger  zerolog.Logger
	errCh   chan ErrorLogRecord
	reqCh   chan RequestLogRecord
	done    chan struct{}
	dropped atomic.Uint64
}

// NewQueueSink creates a QueueSink with the given channel capacity and starts
// its drain worker. Call Close to stop the worker.
func NewQueueSink(logger zerolog.Logger, capacity int) *QueueSink {
	if capacity <= 0 {
		capacity = 256
	}

	s := &QueueSink{
		logger: logger.With().Str("component", "logsink").Logger(),
		errCh:  make(chan ErrorLogRecord, capacity),
		reqCh:  make(chan RequestLogRecord, capacity),
		done:   make(chan struct{}),
	}

	go s.run()

	return s
}

// LogError enqueues an error record, dropping it if the queue is full.
func (s *QueueSink) LogError(rec ErrorLogRecord) {
	select {
	case s.errCh <- rec:
	default:
		s.dropped.Add(1)
	}
}

// LogRequest enqueues a request record, dropping it if the queue is full.
func (s *QueueSink) LogRequest(rec RequestLogRecord) {
	select {
	case s.reqCh <- rec:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of records dropped so far due to a full queue.
func (s *QueueSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close signals the drain worker to stop and returns without waiting for it;
// records still queued at that point are not written.
func (s *QueueSink) Close() {
	close(s.done)
}

func (s *QueueSink) run() {
	for {
		select {
		case rec := <-s.errCh:
			s.writeError(rec)
		case rec := <-s.reqCh:
			s.writeRequest(rec)
		case <-s.done:
			return
		}
	}
}

func (s *QueueSink) writeError(rec ErrorLogRecord) {
	ev := s.logger.Warn().
		Str("key", redact(rec.Key)).
		Str("model", rec.Model).
		Str("category", rec.Category).
		Int("attempt", rec.AttemptIndex)
	if rec.HasCode {
		ev = ev.Int("code", rec.Code)
	}

	ev.Msg(rec.RawError)
}

func (s *QueueSink) writeRequest(rec RequestLogRecord) {
	s.logger.Info().
		Str("key", redact(rec.Key)).
		Str("model", rec.Model).
		Bool("success", rec.Success).
		Int("status_code", rec.StatusCode).
		Int64("latency_ms", rec.LatencyMS).
		Time("timestamp", rec.Timestamp).
		Msg("request")
}

// redact shows only the first 8 characters of a key.
func redact(key string) string {
	const visible = 8
	if len(key) <= visible {
		return key
	}

	return key[:visible] + "..."
}
