package daemon

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"

	"github.com/vporoshin/logcourier/internal/logging"
)

type Config struct {
	LogRootPath   string
	ScanInterval  time.Duration
	Workers       int
	FileQueueSize int
	// If > 0, stop tailing a file after this period without new lines.
	FileIdleTimeout time.Duration
}

// Service discovers *.log files under a root directory, tails them with a
// fixed worker pool and ships every line through a leveled logger, which in
// turn fans out to the configured transports.
type Service struct {
	config  Config
	logger  *logging.Logger
	metrics *Metrics

	fileQueue chan string
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewService(ctx context.Context, config Config, logger *logging.Logger) *Service {
	nCtx, cancel := context.WithCancel(ctx)
	return &Service{
		config:    config,
		logger:    logger,
		metrics:   &Metrics{QueueCapacity: config.FileQueueSize},
		fileQueue: make(chan string, config.FileQueueSize),
		ctx:       nCtx,
		cancel:    cancel,
		seen:      make(map[string]struct{}),
	}
}

func (s *Service) Start() {
	log.Printf("Starting courier daemon: workers=%d, queue size=%d, root=%s",
		s.config.Workers, s.config.FileQueueSize, s.config.LogRootPath)

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go s.scanner()

	s.wg.Add(1)
	go s.metricsReporter()
}

func (s *Service) Stop() {
	log.Println("Stopping courier daemon...")
	s.cancel()
	s.wg.Wait()
	log.Println("Courier daemon stopped")
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d panicked: %v", id, r)
		}
	}()

	for {
		select {
		case path := <-s.fileQueue:
			s.metrics.DecQueuedFiles()
			s.tailFile(path)
			s.forget(path)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) tailFile(path string) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		log.Printf("Failed to tail file %s: %v", path, err)
		s.metrics.IncFilesFailed()
		return
	}
	defer t.Cleanup()
	// Stop the tailing goroutine before cleanup; without this every idle
	// timeout leaks a poller, and the next scan would start a second tail of
	// the same file alongside it.
	defer func() {
		if err := t.Stop(); err != nil {
			log.Printf("Failed to stop tail of %s: %v", path, err)
		}
	}()

	checkEvery := time.Second
	if s.config.FileIdleTimeout > 0 && s.config.FileIdleTimeout < checkEvery {
		checkEvery = s.config.FileIdleTimeout
	}
	idleTicker := time.NewTicker(checkEvery)
	defer idleTicker.Stop()

	lastActivity := time.Now()

	for {
		select {
		case line := <-t.Lines:
			if line == nil {
				continue
			}
			if line.Err != nil {
				log.Printf("Error reading from %s: %v", path, line.Err)
				continue
			}

			s.shipLine(path, line.Text)
			lastActivity = time.Now()

		case <-idleTicker.C:
			if s.config.FileIdleTimeout > 0 && time.Since(lastActivity) > s.config.FileIdleTimeout {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// shipLine forwards one tailed line through the logger at a severity sniffed
// from the line text.
func (s *Service) shipLine(path, text string) {
	source := filepath.Base(path)

	switch sniffLevel(text) {
	case logging.ErrorLevel:
		s.logger.Error(source, text)
	case logging.WarnLevel:
		s.logger.Warn(source, text)
	case logging.DebugLevel:
		s.logger.Debug(source, text)
	case logging.TraceLevel:
		s.logger.Trace(source, text)
	default:
		s.logger.Info(source, text)
	}

	s.metrics.IncLinesShipped()
}

func sniffLevel(text string) logging.Level {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "fatal"), strings.Contains(lower, "error"):
		return logging.ErrorLevel
	case strings.Contains(lower, "warn"):
		return logging.WarnLevel
	case strings.Contains(lower, "trace"):
		return logging.TraceLevel
	case strings.Contains(lower, "debug"):
		return logging.DebugLevel
	default:
		return logging.InfoLevel
	}
}

func (s *Service) scanner() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	s.scanFiles()

	for {
		select {
		case <-ticker.C:
			s.scanFiles()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) scanFiles() {
	files, err := s.discoverLogFiles()
	if err != nil {
		log.Printf("Error discovering log files: %v", err)
		return
	}

	for _, file := range files {
		if !s.markSeen(file) {
			continue
		}
		s.metrics.IncFilesDiscovered()

		select {
		case s.fileQueue <- file:
			s.metrics.IncQueuedFiles()
		case <-s.ctx.Done():
			return
		default:
			log.Printf("File queue full (%d/%d), skipping %s",
				len(s.fileQueue), cap(s.fileQueue), file)
			s.forget(file)
		}
	}
}

func (s *Service) discoverLogFiles() ([]string, error) {
	var logFiles []string

	err := filepath.Walk(s.config.LogRootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("Error accessing path %s: %v", path, err)
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".log") {
			logFiles = append(logFiles, path)
		}
		return nil
	})

	return logFiles, err
}

// markSeen returns false if the file is already queued or being tailed.
func (s *Service) markSeen(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[path]; ok {
		return false
	}
	s.seen[path] = struct{}{}
	return true
}

// forget releases a file so a later scan can pick it up again, e.g. after an
// idle timeout.
func (s *Service) forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, path)
}

func (s *Service) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m := s.metrics.Stamp()
			log.Printf("Metrics: files discovered=%d failed=%d, lines shipped=%d, queue=%d/%d (%d%%)",
				m.FilesDiscovered, m.FilesFailed, m.LinesShipped,
				m.QueuedFiles, m.QueueCapacity, int(s.metrics.QueueUsage()*100))
		case <-s.ctx.Done():
			return
		}
	}
}
