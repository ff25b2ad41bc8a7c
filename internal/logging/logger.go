package logging

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Registry owns the transports shared by every logger built from it. It
// replaces an implicit process-global transport list: construct one, hand it
// to NewLogger, and Close it on shutdown.
type Registry struct {
	mu         sync.RWMutex
	transports []Transport
}

func NewRegistry() *Registry {
	return &Registry{}
}

// AddTransport registers a transport shared by all loggers of this registry.
func (r *Registry) AddTransport(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports = append(r.transports, t)
}

func (r *Registry) Transports() []Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transport, len(r.transports))
	copy(out, r.transports)
	return out
}

// Close stops every registered transport that has a lifecycle.
func (r *Registry) Close() {
	for _, t := range r.Transports() {
		if lc, ok := t.(Lifecycle); ok {
			lc.Stop()
		}
	}
}

// LoggerConfig configures a single logger instance.
type LoggerConfig struct {
	Level         Level
	Prefix        string
	CaptureCaller bool
}

// Logger filters log calls by severity and fans accepted calls out to the
// registry transports plus any instance-local transports.
type Logger struct {
	registry *Registry
	config   LoggerConfig

	mu         sync.RWMutex
	level      Level
	transports []Transport

	now func() time.Time
}

func NewLogger(registry *Registry, config LoggerConfig) *Logger {
	return &Logger{
		registry: registry,
		config:   config,
		level:    config.Level,
		now:      time.Now,
	}
}

// AddTransport registers a transport local to this logger only.
func (l *Logger) AddTransport(t Transport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transports = append(l.transports, t)
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) Trace(args ...any) { l.dispatch(TraceLevel, args) }
func (l *Logger) Debug(args ...any) { l.dispatch(DebugLevel, args) }
func (l *Logger) Info(args ...any)  { l.dispatch(InfoLevel, args) }
func (l *Logger) Log(args ...any)   { l.dispatch(LogLevel, args) }
func (l *Logger) Warn(args ...any)  { l.dispatch(WarnLevel, args) }
func (l *Logger) Error(args ...any) { l.dispatch(ErrorLevel, args) }

// dispatch is the single funnel behind the named level methods.
func (l *Logger) dispatch(level Level, args []any) {
	if level < l.GetLevel() {
		return
	}

	ts := l.now()

	if l.config.Prefix != "" {
		args = append([]any{l.config.Prefix}, args...)
	}
	if l.config.CaptureCaller {
		if caller := callerInfo(3); caller != "" {
			args = append(args, caller)
		}
	}

	for _, t := range l.registry.Transports() {
		forward(t, level, ts, args)
	}

	l.mu.RLock()
	local := l.transports
	l.mu.RUnlock()
	for _, t := range local {
		forward(t, level, ts, args)
	}
}

func forward(t Transport, level Level, ts time.Time, args []any) {
	switch level {
	case TraceLevel:
		t.Trace(ts, args...)
	case DebugLevel:
		t.Debug(ts, args...)
	case InfoLevel:
		t.Info(ts, args...)
	case LogLevel:
		t.Log(ts, args...)
	case WarnLevel:
		t.Warn(ts, args...)
	case ErrorLevel:
		t.Error(ts, args...)
	}
}

func callerInfo(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("(%s:%d)", filepath.Base(file), line)
}
