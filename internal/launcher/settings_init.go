package launcher

import (
	"context"

	"github.com/adrianghc/hems/internal/modules"
	settingspkg "github.com/adrianghc/hems/internal/settings"
	"github.com/adrianghc/hems/internal/wire"
)

// GetPersistedSettingsSubtype is the request subtype the Supervisor
// sends to the storage worker to fetch whatever settings it has
// persisted, during the first step of settings initialization. It is
// an ordinary application subtype, not one of the wire package's
// reserved control subtypes: asking storage for its last-known
// settings is a contract between the Supervisor and that one worker,
// not a fabric control primitive.
const GetPersistedSettingsSubtype int32 = 1

// persistedSettingsTimeoutMs is generous on purpose: storage may need
// to open a database file on first init.
const persistedSettingsTimeoutMs = 15000

// DefaultInitialSettings asks the storage worker for its persisted
// settings, per spec §4.5 step 1. A SEND_TIMEOUT or MQ_ERROR degrades
// to an empty Settings value rather than failing startup — per the
// original launcher.cpp, a missing settings value is valid, not an
// error.
func DefaultInitialSettings(m interface {
	Send(ctx context.Context, timeoutMs uint32, subtype int32, recipient modules.ModuleId, payload []byte) (int32, []byte, error)
}) InitialSettingsFunc {
	return func(ctx context.Context) (settingspkg.Settings, error) {
		code, resp, err := m.Send(ctx, persistedSettingsTimeoutMs, GetPersistedSettingsSubtype, modules.Storage, nil)
		if err != nil || code != int32(settingspkg.Success) || len(resp) == 0 {
			return settingspkg.Settings{}, nil
		}
		var s settingspkg.Settings
		if derr := wire.Deserialize(resp, &s); derr != nil {
			return settingspkg.Settings{}, nil
		}
		return s, nil
	}
}

// initSettings drives the Supervisor through the two-step
// initialization sequence: ask storage for persisted settings (or
// fall back to empty), then broadcast SETTINGS_INIT to every other
// worker. A SEND_TIMEOUT from any worker is fatal, per spec §4.5 step
// 3 — the Supervisor terminates.
func (s *Supervisor) initSettings(ctx context.Context, initial InitialSettingsFunc) error {
	s.setState(StateInitializingSettings)

	if initial == nil {
		initial = DefaultInitialSettings(s.m)
	}
	settings, err := initial(ctx)
	if err != nil {
		return err
	}

	code, err := s.m.BroadcastSettingsInit(ctx, settings)
	if err != nil {
		return err
	}
	if code == settingspkg.Timeout {
		return errSettingsInitTimeout
	}
	return nil
}
