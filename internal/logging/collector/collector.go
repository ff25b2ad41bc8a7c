package collector

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vporoshin/logcourier/internal/logging"
)

const (
	DefaultMaxEntryLength = 10000
	DefaultStoreInterval  = 30 * time.Second
)

type Config struct {
	// MaxEntryLength is the queued-text length that triggers an eager forced
	// flush. It bounds the queue, not the rendered payload: repeats collapsed
	// into one entry are counted once.
	MaxEntryLength int
	// StoreInterval is the periodic flush cadence, measured from the last
	// flush attempt rather than on a fixed wall-clock grid.
	StoreInterval time.Duration
	// StringifyObjects forces JSON rendering of object arguments at every
	// severity, not just error.
	StringifyObjects bool
}

// Collector is a transport that formats and aggregates log calls into an
// in-memory queue and ships the queue to a sink, either when the queued text
// crosses MaxEntryLength or when the store timer fires. Batches produced
// while the sink is not ready are parked in an output cache and delivered,
// oldest first, once the sink comes back.
type Collector struct {
	sink logging.Sink
	cfg  Config
	diag *log.Logger

	mu          sync.Mutex
	queue       []logging.LogEntry
	totalLength int
	outputCache [][]logging.LogEntry
	timer       *time.Timer
	timerGen    uint64
}

func New(sink logging.Sink, cfg Config) *Collector {
	if cfg.MaxEntryLength <= 0 {
		cfg.MaxEntryLength = DefaultMaxEntryLength
	}
	if cfg.StoreInterval <= 0 {
		cfg.StoreInterval = DefaultStoreInterval
	}
	return &Collector{
		sink: sink,
		cfg:  cfg,
		diag: log.Default(),
	}
}

// SetDiagnostics redirects the collector's own failure reports. Sink errors
// are reported here and never surfaced to log call sites.
func (c *Collector) SetDiagnostics(l *log.Logger) {
	c.diag = l
}

func (c *Collector) Trace(ts time.Time, args ...any) { c.submit(logging.TraceLevel, ts, args) }
func (c *Collector) Debug(ts time.Time, args ...any) { c.submit(logging.DebugLevel, ts, args) }
func (c *Collector) Info(ts time.Time, args ...any)  { c.submit(logging.InfoLevel, ts, args) }
func (c *Collector) Log(ts time.Time, args ...any)   { c.submit(logging.LogLevel, ts, args) }
func (c *Collector) Warn(ts time.Time, args ...any)  { c.submit(logging.WarnLevel, ts, args) }
func (c *Collector) Error(ts time.Time, args ...any) { c.submit(logging.ErrorLevel, ts, args) }

// Start arms the periodic store timer.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rearmLocked()
}

// Stop disarms the timer after one final flush attempt. The final flush is
// not forced: with an unready sink the last batch stays queued in memory,
// preserved for a later Start or Flush rather than lost.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked(false, false)
}

// Flush ships the queue now and rearms the timer, so a manual flush resets
// the periodic cadence instead of stacking an extra tick.
func (c *Collector) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked(false, true)
}

func (c *Collector) submit(level logging.Level, ts time.Time, args []any) {
	text, ok := formatMessage(level, c.cfg.StringifyObjects, args)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.queue); n > 0 && c.queue[n-1].Text == text {
		// Repeat of the tail entry: bump the count, length already counted.
		c.queue[n-1].Count++
	} else {
		c.queue = append(c.queue, logging.LogEntry{Text: text, Timestamp: ts, Count: 1})
		c.totalLength += len(text)
	}

	if c.totalLength >= c.cfg.MaxEntryLength {
		c.flushLocked(true, true)
	}
}

// flushLocked is the single flush routine behind the timer, the size
// threshold, Flush and Stop. force bypasses the readiness gate by caching
// the queue instead of sending it; reschedule rearms the store timer.
func (c *Collector) flushLocked(force, reschedule bool) {
	if c.totalLength > 0 {
		ready := c.sinkReady()
		switch {
		case ready:
			// Undelivered older batches go first so order across a
			// readiness gap stays FIFO.
			c.drainCacheLocked()
			c.store(c.queue)
			c.resetQueueLocked()
		case force:
			c.outputCache = append(c.outputCache, c.queue)
			c.resetQueueLocked()
		}
	}

	if reschedule {
		c.rearmLocked()
	} else {
		c.disarmLocked()
	}
}

func (c *Collector) drainCacheLocked() {
	for len(c.outputCache) > 0 {
		// Best effort: the snapshot is dropped after one store attempt,
		// whether or not that attempt succeeded.
		c.store(c.outputCache[0])
		c.outputCache = c.outputCache[1:]
	}
}

func (c *Collector) resetQueueLocked() {
	c.queue = nil
	c.totalLength = 0
}

func (c *Collector) sinkReady() bool {
	ready, err := c.probeReady()
	if err != nil {
		c.diag.Printf("logcourier: sink readiness check failed: %v", err)
		return false
	}
	return ready
}

func (c *Collector) probeReady() (ready bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("readiness probe panicked: %v", r)
		}
	}()
	return c.sink.IsReady()
}

func (c *Collector) store(batch []logging.LogEntry) {
	if err := c.storeBatch(batch); err != nil {
		c.diag.Printf("logcourier: sink store failed, %d entries dropped: %v", len(batch), err)
	}
}

func (c *Collector) storeBatch(batch []logging.LogEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink store panicked: %v", r)
		}
	}()
	return c.sink.StoreLogs(batch)
}

// rearmLocked keeps the single-timer invariant: any pending timer is
// canceled before a new one is armed.
func (c *Collector) rearmLocked() {
	c.disarmLocked()
	gen := c.timerGen
	c.timer = time.AfterFunc(c.cfg.StoreInterval, func() { c.timerFired(gen) })
}

func (c *Collector) disarmLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// timerFired runs off the timer goroutine. A timer that was disarmed after
// expiring but before acquiring the lock is stale and must not flush.
func (c *Collector) timerFired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.timerGen {
		return
	}
	c.flushLocked(false, true)
}
