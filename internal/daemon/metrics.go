package daemon

import (
	"sync"
)

type Metrics struct {
	FilesDiscovered int
	FilesFailed     int
	LinesShipped    int
	QueuedFiles     int
	QueueCapacity   int
	mu              sync.RWMutex
}

func (m *Metrics) IncFilesDiscovered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesDiscovered++
}

func (m *Metrics) IncFilesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesFailed++
}

func (m *Metrics) IncLinesShipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinesShipped++
}

func (m *Metrics) IncQueuedFiles() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueuedFiles++
}

func (m *Metrics) DecQueuedFiles() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueuedFiles--
}

func (m *Metrics) Stamp() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		FilesDiscovered: m.FilesDiscovered,
		FilesFailed:     m.FilesFailed,
		LinesShipped:    m.LinesShipped,
		QueuedFiles:     m.QueuedFiles,
		QueueCapacity:   m.QueueCapacity,
	}
}

func (m *Metrics) QueueUsage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.QueueCapacity == 0 {
		return 0
	}
	return float64(m.QueuedFiles) / float64(m.QueueCapacity)
}
