package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vporoshin/logcourier/internal/logging"
	"github.com/vporoshin/logcourier/internal/testutils"
)

func newTestLogger(transport logging.Transport) *logging.Logger {
	reg := logging.NewRegistry()
	reg.AddTransport(transport)
	return logging.NewLogger(reg, logging.LoggerConfig{Level: logging.TraceLevel})
}

func TestSniffLevel(t *testing.T) {
	cases := map[string]logging.Level{
		"ERROR: disk full":          logging.ErrorLevel,
		"fatal signal received":     logging.ErrorLevel,
		"WARN retrying":             logging.WarnLevel,
		"debug: cache miss":         logging.DebugLevel,
		"trace span started":        logging.TraceLevel,
		"listening on :8080":        logging.InfoLevel,
		"checkpoint complete":       logging.InfoLevel,
		"Warning: certificate soon": logging.WarnLevel,
	}

	for text, want := range cases {
		assert.Equal(t, want, sniffLevel(text), "text: %q", text)
	}
}

func TestDiscoverLogFiles(t *testing.T) {
	root := testutils.CreateTempLogStructure(t)

	service := NewService(context.TODO(), Config{
		LogRootPath:   root,
		ScanInterval:  time.Minute,
		Workers:       1,
		FileQueueSize: 10,
	}, newTestLogger(&testutils.MockTransport{}))

	files, err := service.discoverLogFiles()
	assert.NoError(t, err)
	assert.Equal(t, 4, len(files))
	for _, f := range files {
		assert.True(t, filepath.Ext(f) == ".log")
	}
}

func TestScanFiles_QueuesEachFileOnce(t *testing.T) {
	root := testutils.CreateTempLogStructure(t)

	service := NewService(context.TODO(), Config{
		LogRootPath:   root,
		ScanInterval:  time.Minute,
		Workers:       1,
		FileQueueSize: 10,
	}, newTestLogger(&testutils.MockTransport{}))

	service.scanFiles()
	assert.Equal(t, 4, len(service.fileQueue))

	// A second scan must not re-queue files already seen.
	service.scanFiles()
	assert.Equal(t, 4, len(service.fileQueue))
}

func TestScanFiles_QueueFull(t *testing.T) {
	root := testutils.CreateTempLogStructure(t)

	service := NewService(context.TODO(), Config{
		LogRootPath:   root,
		ScanInterval:  time.Minute,
		Workers:       1,
		FileQueueSize: 2,
	}, newTestLogger(&testutils.MockTransport{}))

	service.scanFiles()
	assert.Equal(t, 2, len(service.fileQueue))

	// Skipped files were forgotten and get queued on a later scan.
	<-service.fileQueue
	<-service.fileQueue

	service.scanFiles()
	assert.Equal(t, 2, len(service.fileQueue))
}

func TestShipLine_RoutesBySeverity(t *testing.T) {
	transport := &testutils.MockTransport{}

	service := NewService(context.TODO(), Config{
		LogRootPath:   t.TempDir(),
		ScanInterval:  time.Minute,
		Workers:       1,
		FileQueueSize: 1,
	}, newTestLogger(transport))

	service.shipLine("/var/log/app.log", "error: it broke")
	service.shipLine("/var/log/app.log", "all good")

	calls := transport.GetCalls()
	assert.Equal(t, 2, len(calls))
	assert.Equal(t, logging.ErrorLevel, calls[0].Level)
	assert.Equal(t, []any{"app.log", "error: it broke"}, calls[0].Args)
	assert.Equal(t, logging.InfoLevel, calls[1].Level)

	assert.Equal(t, 2, service.metrics.Stamp().LinesShipped)
}

func TestService_TailsAppendedLines(t *testing.T) {
	root := t.TempDir()
	logPath := filepath.Join(root, "app.log")
	assert.NoError(t, os.WriteFile(logPath, []byte("preexisting line\n"), 0644))

	transport := &testutils.MockTransport{}

	service := NewService(context.TODO(), Config{
		LogRootPath:   root,
		ScanInterval:  50 * time.Millisecond,
		Workers:       1,
		FileQueueSize: 5,
	}, newTestLogger(transport))

	service.Start()
	defer service.Stop()

	// Give the worker time to start tailing from the end of the file.
	time.Sleep(300 * time.Millisecond)

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	assert.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = fmt.Fprintf(f, "appended line %d\n", i)
		assert.NoError(t, err)
	}
	assert.NoError(t, f.Close())

	assert.Eventually(t, func() bool {
		return len(transport.GetCalls()) >= 3
	}, 5*time.Second, 50*time.Millisecond)
}

func TestService_IdleTimeoutDoesNotLeakTailers(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(root, "quiet.log"), []byte("one line\n"), 0644))

	service := NewService(context.TODO(), Config{
		LogRootPath:     root,
		ScanInterval:    50 * time.Millisecond,
		Workers:         1,
		FileQueueSize:   5,
		FileIdleTimeout: 100 * time.Millisecond,
	}, newTestLogger(&testutils.MockTransport{}))

	service.Start()
	defer service.Stop()

	// Let the first idle-timeout/rescan cycle settle, then run several more.
	time.Sleep(500 * time.Millisecond)
	after := runtime.NumGoroutine()

	time.Sleep(1 * time.Second)
	later := runtime.NumGoroutine()

	assert.LessOrEqual(t, later, after+2,
		"tail goroutines must not accumulate across idle cycles (was %d, now %d)", after, later)
}

func TestService_StopCancelsWorkers(t *testing.T) {
	service := NewService(context.TODO(), Config{
		LogRootPath:   t.TempDir(),
		ScanInterval:  50 * time.Millisecond,
		Workers:       2,
		FileQueueSize: 5,
	}, newTestLogger(&testutils.MockTransport{}))

	service.Start()

	done := make(chan struct{})
	go func() {
		service.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
