package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/adrianghc/hems/internal/modules"
)

// LocalLogger is the Logger the Supervisor uses for its own lines and
// for every Event a RemoteLogger forwards to it. It writes a
// timestamp + fixed-width level + fixed-width source prefix to an
// optional log file (best-effort, with a one-time warning if the file
// could not be opened) and mirrors Warn/Error to stderr and everything
// else to stdout.
type LocalLogger struct {
	mu     sync.Mutex
	file   io.Writer
	warned bool
	color  bool
	debug  bool
}

// NewLocalLogger constructs a LocalLogger. logPath, if non-empty, is
// opened for append; a failure to open it degrades to stdio-only
// output plus a single warning line, rather than a fatal error, since
// the original fabric treats its log file as a convenience, not a
// dependency. color enables ANSI coloring of the stdio mirror. debug
// enables Debug/Trace lines (dropped otherwise).
func NewLocalLogger(logPath string, color, debug bool) *LocalLogger {
	l := &LocalLogger{color: color, debug: debug}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			l.warned = true
			fmt.Fprintf(os.Stderr, "hems: warning: could not open log file %q: %v (continuing with console only)\n", logPath, err)
		} else {
			l.file = f
		}
	}
	return l
}

// sourceWidth is the fixed column width every module name is padded
// to, mirroring local_logger's source_strings_maxlen.
var sourceWidth = func() int {
	w := 0
	for _, m := range modules.All {
		if n := len(m.String()); n > w {
			w = n
		}
	}
	return w
}()

func paddedSource(m modules.ModuleId) string {
	s := m.String()
	if pad := sourceWidth - len(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// LogEvent renders a forwarded Event exactly as it would a line of its
// own logging, tagged with the originating module's column.
func (l *LocalLogger) LogEvent(ev Event) {
	l.write(ev.Source, ev.Level, ev.Message)
}

func (l *LocalLogger) write(source modules.ModuleId, level Level, msg string) {
	if !l.debug && (level == LevelDebug || level == LevelTrace) {
		return
	}

	timestamp := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	src := paddedSource(source)
	plain := fmt.Sprintf("%s %s %s %s", timestamp, level, src, msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		fmt.Fprintln(l.file, plain)
	}

	out := os.Stdout
	if level >= LevelWarn {
		out = os.Stderr
	}
	if l.color {
		fmt.Fprintln(out, colorLine(level, source, timestamp, src, msg))
	} else {
		fmt.Fprintln(out, plain)
	}
}

// source defaults to Supervisor for every line this package's own
// owner (the Supervisor process) logs directly; lines from every
// other module only ever reach a LocalLogger via LogEvent.
func (l *LocalLogger) Trace(msg string)                          { l.write(modules.Supervisor, LevelTrace, msg) }
func (l *LocalLogger) Tracef(format string, args ...interface{}) { l.write(modules.Supervisor, LevelTrace, fmt.Sprintf(format, args...)) }
func (l *LocalLogger) Debug(msg string)                          { l.write(modules.Supervisor, LevelDebug, msg) }
func (l *LocalLogger) Debugf(format string, args ...interface{}) { l.write(modules.Supervisor, LevelDebug, fmt.Sprintf(format, args...)) }
func (l *LocalLogger) Info(msg string)                          { l.write(modules.Supervisor, LevelInfo, msg) }
func (l *LocalLogger) Infof(format string, args ...interface{}) { l.write(modules.Supervisor, LevelInfo, fmt.Sprintf(format, args...)) }
func (l *LocalLogger) Warn(msg string)                          { l.write(modules.Supervisor, LevelWarn, msg) }
func (l *LocalLogger) Warnf(format string, args ...interface{}) { l.write(modules.Supervisor, LevelWarn, fmt.Sprintf(format, args...)) }
func (l *LocalLogger) Error(msg string)                          { l.write(modules.Supervisor, LevelError, msg) }
func (l *LocalLogger) Errorf(format string, args ...interface{}) { l.write(modules.Supervisor, LevelError, fmt.Sprintf(format, args...)) }
