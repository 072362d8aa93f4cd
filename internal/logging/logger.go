package logging

import (
	"context"

	"github.com/adrianghc/hems/internal/modules"
	pionlog "github.com/pion/logging"
)

// Logger is the interface every fabric component logs through. It is
// exactly pion/logging's LeveledLogger so that RemoteLogger and
// LocalLogger can be handed anywhere a LeveledLogger is expected
// (notably messenger.Config.Log).
type Logger = pionlog.LeveledLogger

// LogEventSubtype is the command subtype a RemoteLogger uses to forward
// an Event to the Supervisor. It is an ordinary (non-negative) command
// subtype owned by this package, not one of the wire package's reserved
// control subtypes: log forwarding is an application-level concern
// layered on top of the fabric, not part of its control plane.
const LogEventSubtype int32 = 1

// Sender is the minimal capability a RemoteLogger needs from a
// Messenger: post a fire-and-forget command to the Supervisor.
type Sender interface {
	Send(ctx context.Context, timeoutMs uint32, subtype int32, recipient modules.ModuleId, payload []byte) (int32, []byte, error)
}
