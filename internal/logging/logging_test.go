package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/wire"
)

type fakeSender struct {
	sent []struct {
		subtype   int32
		recipient modules.ModuleId
		payload   []byte
	}
}

func (f *fakeSender) Send(_ context.Context, timeoutMs uint32, subtype int32, recipient modules.ModuleId, payload []byte) (int32, []byte, error) {
	if timeoutMs != 0 {
		panic("remote logger must send fire-and-forget commands")
	}
	f.sent = append(f.sent, struct {
		subtype   int32
		recipient modules.ModuleId
		payload   []byte
	}{subtype, recipient, payload})
	return 0, nil, nil
}

func TestRemoteLoggerDropsDebugUnlessEnabled(t *testing.T) {
	fs := &fakeSender{}
	l := NewRemoteLogger(modules.Collection, fs, false)
	l.Debug("quiet")
	l.Info("loud")
	if len(fs.sent) != 1 {
		t.Fatalf("sent %d events, want 1 (debug should be dropped)", len(fs.sent))
	}

	var ev Event
	if err := wire.Deserialize(fs.sent[0].payload, &ev); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if ev.Level != LevelInfo || ev.Message != "loud" || ev.Source != modules.Collection {
		t.Fatalf("event = %+v, unexpected", ev)
	}
	if fs.sent[0].subtype != LogEventSubtype || fs.sent[0].recipient != modules.Supervisor {
		t.Fatalf("sent to wrong subtype/recipient: %+v", fs.sent[0])
	}
}

func TestRemoteLoggerForwardsDebugWhenEnabled(t *testing.T) {
	fs := &fakeSender{}
	l := NewRemoteLogger(modules.Storage, fs, true)
	l.Debugf("n=%d", 3)
	if len(fs.sent) != 1 {
		t.Fatalf("sent %d events, want 1", len(fs.sent))
	}
}

func TestLocalLoggerWritesFileAndRespectsDebugFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hems.log")

	l := NewLocalLogger(path, false, false)
	l.Debug("hidden")
	l.Info("visible")
	l.LogEvent(Event{Source: modules.Inference, Level: LevelWarn, Message: "something"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	contents := string(data)
	if strings.Contains(contents, "hidden") {
		t.Fatal("debug line was written despite debug being disabled")
	}
	if !strings.Contains(contents, "visible") {
		t.Fatal("info line missing from log file")
	}
	if !strings.Contains(contents, "inference") && !strings.Contains(contents, "Inference") {
		t.Fatalf("forwarded event source missing from log line: %q", contents)
	}
}

func TestLocalLoggerDegradesOnUnopenablePath(t *testing.T) {
	l := NewLocalLogger(filepath.Join(string([]byte{0}), "bad"), false, false)
	if !l.warned {
		t.Fatal("expected warned=true when log file could not be opened")
	}
	// Must not panic when writing with no file backing.
	l.Info("still works")
}
