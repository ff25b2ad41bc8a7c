package logging

import (
	"time"
)

// LogEntry is one formatted log line. Consecutive identical lines are
// collapsed into a single entry with Count > 1; Timestamp is the time of the
// first occurrence.
type LogEntry struct {
	Text      string
	Timestamp time.Time
	Count     int
}

// Transport receives one call per accepted log statement, one method per
// severity. Implementations must not block and must never panic back into
// the caller.
type Transport interface {
	Trace(ts time.Time, args ...any)
	Debug(ts time.Time, args ...any)
	Info(ts time.Time, args ...any)
	Log(ts time.Time, args ...any)
	Warn(ts time.Time, args ...any)
	Error(ts time.Time, args ...any)
}

// Lifecycle is implemented by transports that own background work, such as
// a flush timer.
type Lifecycle interface {
	Start()
	Stop()
}

// Sink stores batches of log entries. IsReady is a non-blocking probe; an
// error (or panic) is treated by callers as "not ready". StoreLogs is
// best-effort: a failed batch is reported and dropped, never retried.
type Sink interface {
	StoreLogs(batch []LogEntry) error
	IsReady() (bool, error)
}
