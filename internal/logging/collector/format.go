package collector

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/vporoshin/logcourier/internal/logging"
)

// Substituted for any value json.Marshal refuses (cycles, channels, funcs).
const unserializableSentinel = "[unserializable object]"

// formatMessage renders args into a single line, joined by spaces in argument
// order. The second return is false when the joined result is empty, meaning
// there is nothing to log (distinct from logging an empty string entry).
//
// The submission timestamp is deliberately not rendered here; the collector
// stores it on the entry instead, so that consecutive identical messages
// still compare equal. A transport that wants the timestamp inline passes it
// as a leading argument.
func formatMessage(level logging.Level, stringifyObjects bool, args []any) (string, bool) {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, formatArg(level, stringifyObjects, arg))
	}

	msg := strings.Join(parts, " ")
	if len(msg) == 0 {
		return "", false
	}
	return msg, true
}

func formatArg(level logging.Level, stringifyObjects bool, arg any) string {
	switch v := arg.(type) {
	case string:
		return v
	case error:
		// Summary plus whatever diagnostic detail the error carries.
		return fmt.Sprintf("%+v", v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}

	if isObject(arg) {
		// Marshal on every path: fmt.Sprint has no cycle detection and a
		// self-referential container would overflow the stack, which no
		// recover can catch.
		b, err := json.Marshal(arg)
		if err != nil {
			return unserializableSentinel
		}
		if stringifyObjects || level == logging.ErrorLevel {
			return string(b)
		}
	}

	return fmt.Sprint(arg)
}

func isObject(arg any) bool {
	switch reflect.ValueOf(arg).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		return true
	default:
		return false
	}
}
