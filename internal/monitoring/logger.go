package monitoring

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Logf is the process-wide progress logger used by the binaries. It
// defaults to log.Printf but may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Level selects which of the three package log streams are enabled.
// Each level includes the ones below it.
type Level int

const (
	LevelQuiet Level = iota // nothing
	LevelOps                // actionable warnings and errors
	LevelDiag               // plus session summaries and tuning context
	LevelTrace              // plus per-frame telemetry
)

var levelNames = map[string]Level{
	"quiet": LevelQuiet,
	"ops":   LevelOps,
	"diag":  LevelDiag,
	"trace": LevelTrace,
}

// ParseLevel accepts quiet, ops, diag or trace (case-insensitive).
func ParseLevel(s string) (Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return LevelQuiet, fmt.Errorf("unknown log level %q (want quiet, ops, diag or trace)", s)
}

func (l Level) String() string {
	for name, v := range levelNames {
		if v == l {
			return name
		}
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Streams returns the ops, diag and trace writers for a package's
// SetLogWriters. Streams above the level are nil and therefore disabled.
func Streams(level Level, w io.Writer) (ops, diag, trace io.Writer) {
	if level >= LevelOps {
		ops = w
	}
	if level >= LevelDiag {
		diag = w
	}
	if level >= LevelTrace {
		trace = w
	}
	return ops, diag, trace
}
