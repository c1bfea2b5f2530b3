// Package obslog builds the process-wide structured logger, backed by
// github.com/joeycumines/logiface (a generic structured-logging facade)
// and github.com/joeycumines/izerolog (its github.com/rs/zerolog
// integration). Every component receives a *logiface.Logger[logiface.Event]
// with persistent fields bound via Logger.Clone (replica id and
// algorithm for a replica; algorithm and server count for the
// controller), rather than re-stating them at every call site.
package obslog

import (
	"io"
	"strings"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the interface type every component is handed.
type Logger = *logiface.Logger[logiface.Event]

// ParseLevel maps the config-file log level string onto a logiface
// Level, defaulting to Informational for an empty or unrecognized value.
func ParseLevel(s string) logiface.Level {
	switch strings.ToLower(s) {
	case "trace":
		return logiface.LevelTrace
	case "debug":
		return logiface.LevelDebug
	case "warn", "warning":
		return logiface.LevelWarning
	case "error":
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// New builds a root logger writing newline-delimited JSON to w at the
// given level.
func New(w io.Writer, level logiface.Level) Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return izerolog.L.New(
		izerolog.L.WithZerolog(zl),
		izerolog.L.WithLevel(level),
	).Logger()
}

// ForReplica returns a child logger with the replica's id and algorithm
// bound as persistent fields.
func ForReplica(root Logger, id int, algorithm string) Logger {
	return root.Clone().Int("replica_id", id).Str("algorithm", algorithm).Logger()
}

// ForController returns a child logger with the run's algorithm and
// server count bound as persistent fields.
func ForController(root Logger, algorithm string, servers int) Logger {
	return root.Clone().Str("algorithm", algorithm).Int("servers", servers).Logger()
}
