// Package logging implements the Log Forwarder: every worker ships its
// log lines to the Supervisor as a fire-and-forget command, and only
// the Supervisor process ever writes to a file or the console.
package logging

import (
	"fmt"

	"github.com/adrianghc/hems/internal/modules"
)

// Level mirrors pion/logging's severity levels, restricted to the ones
// the fabric forwards across process boundaries.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns a fixed-width label so local log lines align in a
// column, e.g. "INFO " and "ERROR".
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO "
	case LevelWarn:
		return "WARN "
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("L(%d)", int(l))
	}
}

// Event is the wire shape of one forwarded log line: the source module,
// its severity, and the rendered message. It travels as a SETTINGS_INIT-
// style gob payload inside a LogEvent command envelope.
type Event struct {
	Source  modules.ModuleId
	Level   Level
	Message string
}
