package messenger

import (
	"context"
	"encoding/binary"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
	settingspkg "github.com/adrianghc/hems/internal/settings"
	"github.com/adrianghc/hems/internal/wire"
)

// preInitSet is a small membership helper over a subtype whitelist.
type preInitSet map[int32]struct{}

func newPreInitSet(whitelist []int32) preInitSet {
	s := make(preInitSet, len(whitelist))
	for _, v := range whitelist {
		s[v] = struct{}{}
	}
	return s
}

func (s preInitSet) allows(subtype int32) bool {
	if subtype == wire.SettingsInit {
		return true
	}
	_, ok := s[subtype]
	return ok
}

// Listen starts the two long-lived dispatch loops (request/command and
// response) for this Messenger's owner queues. It returns once both
// loops have been launched; use Wait to block until both have exited
// (after an EndListenLoop/terminator envelope).
func (m *Messenger) Listen(ctx context.Context, handlers HandlerMap, preInitWhitelist []int32) error {
	inboundQ, err := m.registry.Listen(m.owner, channels.Inbound)
	if err != nil {
		return err
	}
	responseQ, err := m.registry.Listen(m.owner, channels.Response)
	if err != nil {
		return err
	}

	whitelist := newPreInitSet(preInitWhitelist)

	m.loopsWG.Add(2)
	go func() {
		defer m.loopsWG.Done()
		m.requestCommandLoop(ctx, inboundQ, handlers, whitelist)
	}()
	go func() {
		defer m.loopsWG.Done()
		m.responseLoop(ctx, responseQ)
	}()
	return nil
}

// Wait blocks until both dispatch loops started by Listen have exited.
func (m *Messenger) Wait() {
	m.loopsWG.Wait()
}

func (m *Messenger) requestCommandLoop(ctx context.Context, q *channels.Queue, handlers HandlerMap, whitelist preInitSet) {
	if err := m.waitForStart(ctx); err != nil {
		return
	}
	for {
		env, err := q.Receive(ctx)
		if err != nil {
			return
		}

		if env.SubtypeOrCode == wire.EndListenLoop && env.Kind != wire.Response {
			m.destroySilently(env.SegmentName)
			if m.inFlightCount() == 0 {
				return
			}
			m.enterDraining()
			if m.drainIfLast() {
				return
			}
			continue
		}

		if env.SubtypeOrCode == wire.JoinRecvCmd && env.Kind != wire.Response {
			m.handleJoin(env)
			if m.isDraining() && m.drainIfLast() {
				return
			}
			continue
		}

		if m.isDraining() {
			m.destroySilently(env.SegmentName)
			continue
		}

		if env.Kind == wire.Response {
			m.logf(logWarn, "dropped response envelope %v on request/command queue", env)
			continue
		}

		if m.owner != modules.Supervisor && !m.testMode {
			m.settingsMu.Lock()
			initialized := m.settingsInitialized
			m.settingsMu.Unlock()
			if !initialized && !whitelist.allows(env.SubtypeOrCode) {
				m.logf(logDebug, "dropped %v: settings not yet initialized", env)
				m.destroySilently(env.SegmentName)
				continue
			}
		}

		switch env.Kind {
		case wire.Command:
			m.spawnCommandTask(ctx, env, handlers)
		case wire.Request:
			m.handleRequest(ctx, env, handlers)
		}
	}
}

func (m *Messenger) responseLoop(ctx context.Context, q *channels.Queue) {
	for {
		env, err := q.Receive(ctx)
		if err != nil {
			return
		}
		if env.IsTerminator() {
			return
		}
		m.corr.notify(env.ID, env.SegmentName, env.SubtypeOrCode)
	}
}

// EndListen posts the terminator envelope that tells this Messenger's
// own request/command loop to exit (after draining any in-flight
// command tasks), and the sentinel id==0 envelope that tells its
// response loop to exit.
func (m *Messenger) EndListen(ctx context.Context) error {
	name := segmentNameOrEmpty(m)
	if err := m.registry.Send(ctx, m.owner, channels.Inbound, wire.Envelope{
		Kind: wire.Command, ID: m.nextID(), Sender: m.owner,
		SubtypeOrCode: wire.EndListenLoop, SegmentName: name,
	}); err != nil {
		return err
	}
	if err := m.registry.Send(ctx, m.owner, channels.Response, wire.Envelope{
		Kind: wire.Response, ID: 0, Sender: m.owner,
	}); err != nil {
		return err
	}
	return nil
}

func segmentNameOrEmpty(m *Messenger) string {
	if m.store == nil {
		return ""
	}
	n := segment.NewName()
	_ = m.store.Write(n, nil)
	return n
}

// --- command task bookkeeping ---

func (m *Messenger) spawnCommandTask(ctx context.Context, env wire.Envelope, handlers HandlerMap) {
	m.tasksMu.Lock()
	taskID := m.nextTask
	m.nextTask++
	m.tasks[taskID] = struct{}{}
	m.tasksMu.Unlock()

	go func() {
		in, err := m.store.Read(env.SegmentName)
		switch {
		case err != nil:
			m.logf(logDebug, "stale segment %q for command %d: %v", env.SegmentName, env.SubtypeOrCode, err)
		case env.SubtypeOrCode == wire.SettingsCommit:
			m.HandleSettingsCommit(ctx, in, handlers)
		default:
			if h, ok := handlers[env.SubtypeOrCode]; ok {
				if _, herr := h(ctx, in, nil); herr != nil {
					m.logf(logWarn, "command handler subtype %d failed: %v", env.SubtypeOrCode, herr)
				}
			} else {
				m.logf(logWarn, "no handler for command subtype %d", env.SubtypeOrCode)
			}
		}
		m.destroySilently(env.SegmentName)

		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], taskID)
		joinName := segment.NewName()
		_ = m.store.Write(joinName, buf[:])

		_ = m.registry.Send(ctx, m.owner, channels.Inbound, wire.Envelope{
			Kind: wire.Command, ID: m.nextID(), Sender: m.owner,
			SubtypeOrCode: wire.JoinRecvCmd, SegmentName: joinName, PayloadLen: len(buf),
		})
	}()
}

func (m *Messenger) handleJoin(env wire.Envelope) {
	data, err := m.store.Read(env.SegmentName)
	m.destroySilently(env.SegmentName)
	if err != nil || len(data) < 8 {
		return
	}
	taskID := binary.LittleEndian.Uint64(data)
	m.tasksMu.Lock()
	delete(m.tasks, taskID)
	m.tasksMu.Unlock()
}

func (m *Messenger) inFlightCount() int {
	m.tasksMu.Lock()
	defer m.tasksMu.Unlock()
	return len(m.tasks)
}

func (m *Messenger) enterDraining() {
	m.tasksMu.Lock()
	m.draining = true
	m.tasksMu.Unlock()
}

func (m *Messenger) isDraining() bool {
	m.tasksMu.Lock()
	defer m.tasksMu.Unlock()
	return m.draining
}

// drainIfLast reports whether draining is active and the task set is
// now empty, meaning the loop may exit.
func (m *Messenger) drainIfLast() bool {
	m.tasksMu.Lock()
	defer m.tasksMu.Unlock()
	return m.draining && len(m.tasks) == 0
}

func (m *Messenger) destroySilently(name string) {
	if name == "" {
		return
	}
	if err := m.store.Destroy(name); err != nil {
		m.logf(logDebug, "destroy segment %q: %v", name, err)
	}
}

// --- request handling, including the settings special-cases ---

func (m *Messenger) handleRequest(ctx context.Context, env wire.Envelope, handlers HandlerMap) {
	in, err := m.store.Read(env.SegmentName)
	if err != nil {
		m.logf(logDebug, "stale segment %q for request %d: %v", env.SegmentName, env.SubtypeOrCode, err)
		m.destroySilently(env.SegmentName)
		return
	}

	if env.SubtypeOrCode == wire.SettingsInit {
		m.applySettingsInit(ctx, env, in, handlers)
		return
	}
	if env.SubtypeOrCode == wire.SettingsCheck {
		m.applySettingsCheck(ctx, env, in, handlers)
		return
	}

	var out []byte
	code := int32(0)
	if h, ok := handlers[env.SubtypeOrCode]; ok {
		code, err = h(ctx, in, &out)
		if err != nil {
			m.logf(logWarn, "request handler subtype %d failed: %v", env.SubtypeOrCode, err)
		}
	} else {
		code = int32(MQError)
		m.logf(logWarn, "no handler for request subtype %d", env.SubtypeOrCode)
	}

	m.destroySilently(env.SegmentName)
	if serr := m.SendResponse(ctx, env.ID, code, env.Sender, out); serr != nil {
		m.logf(logWarn, "send_response to %s failed: %v", env.Sender, serr)
	}
}

func (m *Messenger) applySettingsInit(ctx context.Context, env wire.Envelope, in []byte, handlers HandlerMap) {
	var s settingspkg.Settings
	if err := decodeSettings(in, &s); err != nil {
		m.destroySilently(env.SegmentName)
		_ = m.SendResponse(ctx, env.ID, int32(settingspkg.Invalid), env.Sender, nil)
		return
	}

	m.settingsMu.Lock()
	m.currentSettings = s
	m.settingsMu.Unlock()

	var out []byte
	code := int32(settingspkg.Success)
	if h, ok := handlers[wire.SettingsInit]; ok {
		var herr error
		code, herr = h(ctx, in, &out)
		if herr != nil {
			m.logf(logWarn, "settings init handler failed: %v", herr)
		}
	}

	m.settingsMu.Lock()
	m.settingsInitialized = true
	m.settingsMu.Unlock()

	m.destroySilently(env.SegmentName)
	_ = m.SendResponse(ctx, env.ID, code, env.Sender, out)
}

func (m *Messenger) applySettingsCheck(ctx context.Context, env wire.Envelope, in []byte, handlers HandlerMap) {
	var s settingspkg.Settings
	if err := decodeSettings(in, &s); err != nil {
		m.destroySilently(env.SegmentName)
		_ = m.SendResponse(ctx, env.ID, int32(settingspkg.Invalid), env.Sender, nil)
		return
	}

	var out []byte
	code := int32(settingspkg.Success)
	if h, ok := handlers[wire.SettingsCheck]; ok {
		var herr error
		code, herr = h(ctx, in, &out)
		if herr != nil {
			m.logf(logWarn, "settings check handler failed: %v", herr)
		}
	}

	if code == int32(settingspkg.Success) {
		m.settingsMu.Lock()
		m.proposedSettings = s
		m.settingsMu.Unlock()
	}

	m.destroySilently(env.SegmentName)
	_ = m.SendResponse(ctx, env.ID, code, env.Sender, out)
}

// HandleSettingsCommit is the Messenger-side gate for inbound
// SETTINGS_COMMIT commands: it verifies the committed payload equals
// the last value this worker approved in SETTINGS_CHECK before invoking
// the worker's own commit handler and updating CurrentSettings. A
// mismatched commit (a stale broadcast from a displaced leader) is
// dropped silently at Debug level, per spec §4.5/§9.
func (m *Messenger) HandleSettingsCommit(ctx context.Context, in []byte, handlers HandlerMap) {
	var s settingspkg.Settings
	if err := decodeSettings(in, &s); err != nil {
		m.logf(logDebug, "settings commit: malformed payload: %v", err)
		return
	}

	m.settingsMu.Lock()
	matches := settingspkg.SameDigest(s, m.proposedSettings)
	m.settingsMu.Unlock()

	if !matches {
		m.logf(logDebug, "settings commit: payload does not match last proposed settings, dropping")
		return
	}

	if h, ok := handlers[wire.SettingsCommit]; ok {
		if _, err := h(ctx, in, nil); err != nil {
			m.logf(logWarn, "settings commit handler failed: %v", err)
		}
	}

	m.settingsMu.Lock()
	m.currentSettings = s
	m.settingsMu.Unlock()
}

// CurrentSettings returns the last settings value this Messenger has
// applied (via SETTINGS_INIT or a successful SETTINGS_COMMIT).
func (m *Messenger) CurrentSettings() settingspkg.Settings {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()
	return m.currentSettings
}

// ProposedSettings returns the last settings value this Messenger
// approved via SETTINGS_CHECK.
func (m *Messenger) ProposedSettings() settingspkg.Settings {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()
	return m.proposedSettings
}

// SettingsInitialized reports whether this Messenger's owner has
// completed SETTINGS_INIT.
func (m *Messenger) SettingsInitialized() bool {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()
	return m.settingsInitialized
}

func decodeSettings(data []byte, out *settingspkg.Settings) error {
	return wire.Deserialize(data, out)
}
