package loki

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/vporoshin/logcourier/internal/logging"
)

const retryBackoff = 100 * time.Millisecond

// Sink ships batches to a Loki instance over its push API. Readiness maps to
// Loki's /ready endpoint.
type Sink struct {
	baseURL    string
	labels     map[string]string
	httpClient *http.Client
	maxRetries int
}

type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type Payload struct {
	Streams []Stream `json:"streams"`
}

func NewSink(baseURL string, labels map[string]string, maxRetries int) *Sink {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Sink{
		baseURL: baseURL,
		labels:  labels,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		maxRetries: maxRetries,
	}
}

func (s *Sink) IsReady() (bool, error) {
	resp, err := s.httpClient.Get(s.baseURL + "/ready")
	if err != nil {
		return false, fmt.Errorf("loki readiness probe failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

func (s *Sink) StoreLogs(batch []logging.LogEntry) error {
	if len(batch) == 0 {
		return nil
	}

	body, err := json.Marshal(s.createPayload(batch))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for i := 0; i < s.maxRetries; i++ {
		err = s.sendRequest(body)
		if err == nil {
			return nil
		}

		if i < s.maxRetries-1 {
			log.Printf("Retry %d/%d after error: %v", i+1, s.maxRetries, err)
			// StoreLogs runs inside the collector's flush; keep the backoff
			// short so a failing endpoint cannot stall log submission. The
			// collector's cadence and output cache handle the spacing.
			time.Sleep(retryBackoff)
		}
	}

	return fmt.Errorf("failed to store batch after %d attempts: %w", s.maxRetries, err)
}

func (s *Sink) createPayload(batch []logging.LogEntry) Payload {
	values := make([][2]string, 0, len(batch))

	for _, entry := range batch {
		line := entry.Text
		if entry.Count > 1 {
			line = fmt.Sprintf("%s [x%d]", entry.Text, entry.Count)
		}
		values = append(values, [2]string{
			strconv.FormatInt(entry.Timestamp.UnixNano(), 10),
			line,
		})
	}

	return Payload{
		Streams: []Stream{{
			Stream: s.streamLabels(),
			Values: values,
		}},
	}
}

func (s *Sink) streamLabels() map[string]string {
	labels := map[string]string{
		"job": "logcourier",
	}
	for k, v := range s.labels {
		labels[k] = v
	}
	return labels
}

func (s *Sink) sendRequest(body []byte) error {
	req, err := http.NewRequest("POST", s.baseURL+"/loki/api/v1/push", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("loki returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	return nil
}
