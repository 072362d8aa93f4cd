package launcher

import (
	"context"

	"github.com/adrianghc/hems/internal/logging"
	"github.com/adrianghc/hems/internal/messenger"
	"github.com/adrianghc/hems/internal/wire"
)

// supervisorHandlers returns the handler table the Supervisor's own
// Messenger dispatches against: receiving forwarded log events. It
// registers no settings handlers, since the Supervisor is the caller of
// BroadcastSettings/BroadcastSettingsInit, not a participant: both
// broadcasts go to the workers only.
func (s *Supervisor) supervisorHandlers() messenger.HandlerMap {
	h := make(messenger.HandlerMap)
	h[logging.LogEventSubtype] = s.handleLogEvent
	return h
}

func (s *Supervisor) handleLogEvent(_ context.Context, in []byte, _ *[]byte) (int32, error) {
	var ev logging.Event
	if err := wire.Deserialize(in, &ev); err != nil {
		return 1, err
	}
	if ll, ok := s.cfg.Log.(*logging.LocalLogger); ok {
		ll.LogEvent(ev)
	}
	return 0, nil
}
