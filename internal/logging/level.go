package logging

import (
	"fmt"
	"strings"
)

// Level is a log severity. Higher values are more severe.
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	LogLevel
	WarnLevel
	ErrorLevel
)

// Levels lists every severity in ascending order.
var Levels = []Level{TraceLevel, DebugLevel, InfoLevel, LogLevel, WarnLevel, ErrorLevel}

func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case LogLevel:
		return "log"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a severity name to its Level.
func ParseLevel(name string) (Level, error) {
	for _, l := range Levels {
		if l.String() == strings.ToLower(name) {
			return l, nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", name)
}
