package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vporoshin/logcourier/internal/logging"
)

// MockSink records stored batches and lets tests toggle readiness and
// failure modes.
type MockSink struct {
	mu         sync.Mutex
	Ready      bool
	ReadyErr   error
	StoreErr   error
	Batches    [][]logging.LogEntry
	StoreCalls int
}

func (m *MockSink) IsReady() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Ready, m.ReadyErr
}

func (m *MockSink) StoreLogs(batch []logging.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StoreCalls++
	if m.StoreErr != nil {
		return m.StoreErr
	}

	m.Batches = append(m.Batches, batch)
	return nil
}

func (m *MockSink) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ready = ready
}

func (m *MockSink) GetBatches() [][]logging.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Batches
}

// Entries flattens recorded batches, expanding aggregated counts.
func (m *MockSink) Entries() []logging.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []logging.LogEntry
	for _, batch := range m.Batches {
		out = append(out, batch...)
	}
	return out
}

// MockTransport records every per-level call it receives.
type MockTransport struct {
	mu    sync.Mutex
	Calls []MockCall

	StartCalls int
	StopCalls  int
}

type MockCall struct {
	Level logging.Level
	Ts    time.Time
	Args  []any
}

func (m *MockTransport) record(level logging.Level, ts time.Time, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Level: level, Ts: ts, Args: args})
}

func (m *MockTransport) Trace(ts time.Time, args ...any) { m.record(logging.TraceLevel, ts, args) }
func (m *MockTransport) Debug(ts time.Time, args ...any) { m.record(logging.DebugLevel, ts, args) }
func (m *MockTransport) Info(ts time.Time, args ...any)  { m.record(logging.InfoLevel, ts, args) }
func (m *MockTransport) Log(ts time.Time, args ...any)   { m.record(logging.LogLevel, ts, args) }
func (m *MockTransport) Warn(ts time.Time, args ...any)  { m.record(logging.WarnLevel, ts, args) }
func (m *MockTransport) Error(ts time.Time, args ...any) { m.record(logging.ErrorLevel, ts, args) }

func (m *MockTransport) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
}

func (m *MockTransport) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
}

func (m *MockTransport) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// CreateTempLogStructure lays out a small tree of *.log files for daemon
// discovery tests.
func CreateTempLogStructure(t *testing.T) string {
	tempDir := t.TempDir()

	structure := map[string]string{
		"api/access.log":      "GET /healthz 200\n",
		"api/errors.log":      "error: upstream timed out\n",
		"db/postgres.log":     "checkpoint complete\n",
		"db/notes.txt":        "not a log file\n",
		"workers/courier.log": "warn: queue almost full\n",
	}

	for path, content := range structure {
		fullPath := filepath.Join(tempDir, path)

		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", fullPath, err)
		}
	}

	return tempDir
}

// FailingSink always reports an error, for exercising best-effort delivery.
type FailingSink struct{}

func (FailingSink) IsReady() (bool, error) { return true, nil }

func (FailingSink) StoreLogs([]logging.LogEntry) error {
	return fmt.Errorf("sink permanently broken")
}
