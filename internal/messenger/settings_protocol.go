package messenger

import (
	"context"

	"github.com/adrianghc/hems/internal/modules"
	settingspkg "github.com/adrianghc/hems/internal/settings"
	"github.com/adrianghc/hems/internal/wire"
	"golang.org/x/sync/errgroup"
)

// BroadcastSettings drives the two-phase settings change protocol
// described in spec §4.5: a SETTINGS_CHECK request fan-out, followed by
// a SETTINGS_COMMIT command fan-out iff every worker approved the
// check. All workers (every ModuleId except the Supervisor) participate,
// on whichever Messenger calls this — not Supervisor-only, unlike
// BroadcastSettingsInit.
func (m *Messenger) BroadcastSettings(ctx context.Context, s settingspkg.Settings) (settingspkg.Code, error) {
	payload, err := wire.Serialize(s)
	if err != nil {
		return settingspkg.InternalError, err
	}

	checkTimeout := uint32(2 * DefaultSendTimeout.Milliseconds())

	g, gctx := errgroup.WithContext(ctx)
	codes := make([]settingspkg.Code, len(modules.Workers()))
	for i, w := range modules.Workers() {
		i, w := i, w
		g.Go(func() error {
			code, _, _ := m.sendReserved(gctx, checkTimeout, wire.SettingsCheck, w, payload)
			codes[i] = classifySettingsCode(code)
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range codes {
		if c == settingspkg.Timeout {
			return settingspkg.Timeout, nil
		}
	}
	for _, c := range codes {
		if c != settingspkg.Success {
			return c, nil
		}
	}

	// Unanimous success: commit. Commits are fire-and-forget commands;
	// each worker verifies the payload against its own last-approved
	// proposal before applying it (see HandleSettingsCommit).
	g2, gctx2 := errgroup.WithContext(ctx)
	for _, w := range modules.Workers() {
		w := w
		g2.Go(func() error {
			_, _, _ = m.sendReserved(gctx2, 0, wire.SettingsCommit, w, payload)
			return nil
		})
	}
	_ = g2.Wait()

	return settingspkg.Success, nil
}

// BroadcastSettingsInit drives the one-shot settings initialization
// broadcast (spec §4.5). Only the Supervisor may call it.
//
// Per spec §9 Open Question 1: a worker responding with a non-success
// settings code during init is treated as advisory, not fatal — only a
// SEND_TIMEOUT aborts the broadcast. This mirrors the original fabric's
// own behavior, which is flagged as ambiguous but is the behavior this
// implementation commits to.
func (m *Messenger) BroadcastSettingsInit(ctx context.Context, s settingspkg.Settings) (settingspkg.Code, error) {
	if m.owner != modules.Supervisor {
		return settingspkg.InvalidCaller, ErrInvalidCaller
	}

	payload, err := wire.Serialize(s)
	if err != nil {
		return settingspkg.InternalError, err
	}

	g, gctx := errgroup.WithContext(ctx)
	timedOut := make([]bool, len(modules.Workers()))
	for i, w := range modules.Workers() {
		i, w := i, w
		g.Go(func() error {
			code, _, _ := m.sendReserved(gctx, uint32(DefaultSendTimeout.Milliseconds())*4, wire.SettingsInit, w, payload)
			timedOut[i] = code == int32(SendTimeout)
			return nil
		})
	}
	_ = g.Wait()

	for _, t := range timedOut {
		if t {
			return settingspkg.Timeout, nil
		}
	}

	m.settingsMu.Lock()
	m.currentSettings = s
	m.settingsInitialized = true
	m.settingsMu.Unlock()

	return settingspkg.Success, nil
}

func classifySettingsCode(code int32) settingspkg.Code {
	if code == int32(SendTimeout) {
		return settingspkg.Timeout
	}
	if code < 0 {
		return settingspkg.InternalError
	}
	return settingspkg.Code(code)
}
