// supervisor is the HEMS Launcher: it owns the Channel Registry and
// Payload Transport, forks every worker module as a real child
// process, drives the settings handshake, and tears the fabric down
// on signal or on any worker's exit.
//
// Usage:
//
//	supervisor [options]
//
// Options:
//
//	-log         path to the local log file (default: none, console only)
//	-debug       enable Debug/Trace lines in the console/file log, forwarded to workers
//	-color       colorize console output with ANSI escapes
//	-in-process  run worker stand-ins in this process instead of forking
//	             cmd/{storage,...} (dev convenience; see startWorkersInProcess)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/exitcore"
	"github.com/adrianghc/hems/internal/launcher"
	"github.com/adrianghc/hems/internal/logging"
	"github.com/adrianghc/hems/internal/messenger"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
	"github.com/adrianghc/hems/internal/wire"
)

func main() {
	logPath := flag.String("log", "", "path to the local log file (empty = console only)")
	debug := flag.Bool("debug", false, "enable Debug/Trace log lines")
	color := flag.Bool("color", false, "colorize console output")
	inProcess := flag.Bool("in-process", false, "run worker stand-ins in this process instead of forking cmd/{storage,...}")
	flag.Parse()

	localLog := logging.NewLocalLogger(*logPath, *color, *debug)

	registry := channels.NewRegistry()
	store := segment.NewStore()
	latch := exitcore.New()
	defer latch.Stop()

	cfg := launcher.Config{
		Registry: registry,
		Store:    store,
		Log:      localLog,
		Latch:    latch,
	}

	stop := func() {}
	if *inProcess {
		// Dev convenience only: brings every worker's Module Scaffold
		// online in this same process instead of forking the real
		// cmd/{storage,...} binaries, for running the fabric without a
		// prior `go build ./...` of every worker. Debug here tells the
		// Supervisor to skip os/exec forking and rely on the caller (this
		// function) to bring workers up and down itself.
		cfg.Debug = true
		stop = startWorkersInProcess(registry, store, localLog)
	} else {
		specs, err := workerSpecs(*debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "supervisor: resolving worker binaries: %v\n", err)
			os.Exit(1)
		}
		cfg.Workers = specs
	}

	sup := launcher.New(cfg)

	ctx := context.Background()
	code, err := sup.Run(ctx, nil)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "supervisor: %v\n", err)
	}
	os.Exit(code)
}

// workerSpecs resolves the path to every worker binary and forwards
// -debug to each, so the Supervisor forks the genuine
// cmd/{storage,collection,inference,automation,training,ui} processes
// rather than standing in for them.
func workerSpecs(debug bool) ([]launcher.WorkerSpec, error) {
	dir := "."
	if exe, err := os.Executable(); err == nil {
		dir = filepath.Dir(exe)
	}

	var args []string
	if debug {
		args = []string{"-debug"}
	}

	specs := make([]launcher.WorkerSpec, 0, len(modules.Workers()))
	for _, w := range modules.Workers() {
		path, err := resolveWorkerPath(dir, w.String())
		if err != nil {
			return nil, fmt.Errorf("worker %s: %w", w, err)
		}
		specs = append(specs, launcher.WorkerSpec{Module: w, Path: path, Args: args})
	}
	return specs, nil
}

// resolveWorkerPath prefers a sibling of this executable (the normal
// "all binaries land in the same bin/ directory" deployment layout)
// and falls back to $PATH, so `go build -o bin/ ./...` followed by
// running bin/supervisor forks the other bin/* binaries with no extra
// configuration.
func resolveWorkerPath(dir, name string) (string, error) {
	sibling := filepath.Join(dir, name)
	if fi, err := os.Stat(sibling); err == nil && !fi.IsDir() {
		return sibling, nil
	}
	return exec.LookPath(name)
}

// startWorkersInProcess brings up one Messenger per worker module with
// a stub handler set, demonstrating the Module Scaffold's contract
// without any domain logic (storage/collection/inference/automation/
// training/ui logic stays out of scope, per the fabric's own
// non-goals) and without requiring the cmd/{storage,...} binaries to
// have been built first. It returns a function that ends every
// worker's listen loop.
func startWorkersInProcess(registry *channels.Registry, store segment.Store, log *logging.LocalLogger) func() {
	var messengers []*messenger.Messenger
	ctx := context.Background()

	for _, w := range modules.Workers() {
		m := messenger.New(messenger.Config{Owner: w, Registry: registry, Store: store})
		handlers := messenger.HandlerMap{
			wire.SettingsInit: func(_ context.Context, _ []byte, _ *[]byte) (int32, error) {
				return 0, nil
			},
			wire.SettingsCheck: func(_ context.Context, _ []byte, _ *[]byte) (int32, error) {
				return 0, nil
			},
			wire.SettingsCommit: func(_ context.Context, _ []byte, _ *[]byte) (int32, error) {
				return 0, nil
			},
			logging.LogEventSubtype: func(_ context.Context, _ []byte, _ *[]byte) (int32, error) {
				return 0, nil
			},
		}
		if err := m.Listen(ctx, handlers, nil); err != nil {
			log.Errorf("worker %s: listen: %v", w, err)
			continue
		}
		m.StartHandlers()
		messengers = append(messengers, m)
	}

	return func() {
		for _, m := range messengers {
			_ = m.EndListen(ctx)
		}
		for _, m := range messengers {
			m.Wait()
		}
	}
}
