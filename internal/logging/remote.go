package logging

import (
	"context"
	"fmt"

	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/wire"
)

// RemoteLogger is the Logger every worker process uses: it renders each
// call into an Event and forwards it to the Supervisor as a fire-and-
// forget LogEventSubtype command. Debug and Trace lines are dropped
// client-side unless Debug is enabled, so a quiet worker never pays for
// the segment write and queue post.
type RemoteLogger struct {
	source modules.ModuleId
	send   Sender
	debug  bool
}

// NewRemoteLogger constructs a RemoteLogger that forwards as source,
// using send to reach the Supervisor. debug enables forwarding of
// Debug/Trace lines, mirroring a worker's --debug flag.
func NewRemoteLogger(source modules.ModuleId, send Sender, debug bool) *RemoteLogger {
	return &RemoteLogger{source: source, send: send, debug: debug}
}

func (l *RemoteLogger) forward(level Level, msg string) {
	if !l.debug && (level == LevelDebug || level == LevelTrace) {
		return
	}
	ev := Event{Source: l.source, Level: level, Message: msg}
	payload, err := wire.Serialize(ev)
	if err != nil {
		return
	}
	_, _, _ = l.send.Send(context.Background(), 0, LogEventSubtype, modules.Supervisor, payload)
}

func (l *RemoteLogger) Trace(msg string)                          { l.forward(LevelTrace, msg) }
func (l *RemoteLogger) Tracef(format string, args ...interface{}) { l.forward(LevelTrace, fmt.Sprintf(format, args...)) }
func (l *RemoteLogger) Debug(msg string)                          { l.forward(LevelDebug, msg) }
func (l *RemoteLogger) Debugf(format string, args ...interface{}) { l.forward(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *RemoteLogger) Info(msg string)                          { l.forward(LevelInfo, msg) }
func (l *RemoteLogger) Infof(format string, args ...interface{}) { l.forward(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *RemoteLogger) Warn(msg string)                          { l.forward(LevelWarn, msg) }
func (l *RemoteLogger) Warnf(format string, args ...interface{}) { l.forward(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *RemoteLogger) Error(msg string)                          { l.forward(LevelError, msg) }
func (l *RemoteLogger) Errorf(format string, args ...interface{}) { l.forward(LevelError, fmt.Sprintf(format, args...)) }
