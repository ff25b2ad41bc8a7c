package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/vporoshin/logcourier/internal/daemon"
	"github.com/vporoshin/logcourier/internal/logging"
	"github.com/vporoshin/logcourier/internal/logging/beats"
	"github.com/vporoshin/logcourier/internal/logging/collector"
	"github.com/vporoshin/logcourier/internal/logging/loki"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := getConfig()

	registry := logging.NewRegistry()
	defer registry.Close()

	sink := buildSink(config)

	coll := collector.New(sink, collector.Config{
		MaxEntryLength:   config.MaxEntryLength,
		StoreInterval:    config.StoreInterval,
		StringifyObjects: config.StringifyObjects,
	})
	registry.AddTransport(coll)
	coll.Start()

	level, err := logging.ParseLevel(config.LogLevel)
	if err != nil {
		log.Printf("%v, defaulting to info", err)
	}
	logger := logging.NewLogger(registry, logging.LoggerConfig{Level: level})

	service := daemon.NewService(ctx, daemon.Config{
		LogRootPath:     config.LogRootPath,
		ScanInterval:    config.ScanInterval,
		Workers:         config.Workers,
		FileQueueSize:   config.QueueSize,
		FileIdleTimeout: config.FileIdleTimeout,
	}, logger)

	service.Start()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	log.Println("Received shutdown signal")
	service.Stop()
	// Registry.Close stops the collector, which flushes whatever is left.
}

func buildSink(config AppConfig) logging.Sink {
	if config.BeatsAddr != "" {
		log.Printf("Shipping to beats endpoint %s", config.BeatsAddr)
		return beats.NewSink(config.BeatsAddr, config.NodeName)
	}

	log.Printf("Shipping to Loki at %s", config.LokiURL)
	return loki.NewSink(config.LokiURL, map[string]string{"node": config.NodeName}, config.MaxRetries)
}

// ------------------------------------  code for reading config -----------------------------------------------------

type AppConfig struct {
	LokiURL          string
	BeatsAddr        string
	NodeName         string
	LogLevel         string
	LogRootPath      string
	ScanInterval     time.Duration
	Workers          int
	QueueSize        int
	FileIdleTimeout  time.Duration
	MaxRetries       int
	MaxEntryLength   int
	StoreInterval    time.Duration
	StringifyObjects bool
}

func getConfig() AppConfig {
	return AppConfig{
		LokiURL:          getEnv("LOKI_URL", "http://loki:3100"),
		BeatsAddr:        getEnv("BEATS_ADDR", ""),
		NodeName:         getEnv("NODE_NAME", "unknown"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogRootPath:      getEnv("LOG_PATH", "/var/log"),
		ScanInterval:     getEnvAsDuration("SCAN_INTERVAL", 30*time.Second),
		Workers:          getEnvAsInt("WORKERS", 4),
		QueueSize:        getEnvAsInt("QUEUE_SIZE", 50),
		FileIdleTimeout:  getEnvAsDuration("FILE_IDLE_TIMEOUT", 5*time.Minute),
		MaxRetries:       getEnvAsInt("MAX_RETRIES", 3),
		MaxEntryLength:   getEnvAsInt("MAX_ENTRY_LENGTH", collector.DefaultMaxEntryLength),
		StoreInterval:    getEnvAsDuration("STORE_INTERVAL", collector.DefaultStoreInterval),
		StringifyObjects: getEnvAsBool("STRINGIFY_OBJECTS", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
