package beats

import (
	"fmt"
	"sync"
	"time"

	lumber "github.com/elastic/go-lumber/client/v2"

	"github.com/vporoshin/logcourier/internal/logging"
)

// Sink ships batches to a beats-compatible (lumberjack v2) endpoint such as
// Logstash. The connection is dialed lazily; a failed send tears it down so
// the next readiness probe redials.
type Sink struct {
	endpoint string
	job      string

	mu     sync.Mutex
	client *lumber.SyncClient
}

func NewSink(endpoint, job string) *Sink {
	return &Sink{
		endpoint: endpoint,
		job:      job,
	}
}

// IsReady reports whether a connection is established, dialing one if needed.
func (s *Sink) IsReady() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureClientLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sink) StoreLogs(batch []logging.LogEntry) error {
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureClientLocked(); err != nil {
		return err
	}

	if _, err := s.client.Send(makeEvents(batch, s.job)); err != nil {
		s.client.Close()
		s.client = nil
		return fmt.Errorf("beats send failed: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *Sink) ensureClientLocked() error {
	if s.client != nil {
		return nil
	}

	client, err := lumber.SyncDial(s.endpoint,
		lumber.CompressionLevel(0),
		lumber.Timeout(3*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed connection to beats server: %w", err)
	}

	s.client = client
	return nil
}

func makeEvents(batch []logging.LogEntry, job string) []interface{} {
	events := make([]interface{}, 0, len(batch))
	for _, entry := range batch {
		events = append(events, map[string]interface{}{
			"@timestamp": entry.Timestamp,
			"message":    entry.Text,
			"log": map[string]interface{}{
				"count": entry.Count,
			},
			"agent": map[string]interface{}{
				"name": job,
				"type": "logcourier",
			},
		})
	}
	return events
}
