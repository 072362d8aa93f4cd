// storage is a thin example over the Data Storage Module's
// message-handler surface: it answers the Supervisor's request for
// persisted settings and stubs the settings handshake, exercising the
// Module Scaffold end-to-end. No SQL schema or real persistence is
// implemented here; that domain logic is out of scope (see
// Non-goals).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/exitcore"
	"github.com/adrianghc/hems/internal/launcher"
	"github.com/adrianghc/hems/internal/module"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
	"github.com/adrianghc/hems/internal/wire"
)

func main() {
	debug := flag.Bool("debug", false, "debug mode; no effect on output, this worker has no logger")
	flag.Parse()

	registry := channels.NewRegistry()
	if err := registry.CreateAll(); err != nil {
		fmt.Fprintf(os.Stderr, "storage: %v\n", err)
		os.Exit(1)
	}
	store := segment.NewStore()

	w := module.New(modules.Storage, registry, store, nil, module.Options{Debug: *debug})

	var persisted []byte // no persisted settings on first run
	w.RegisterHandler(launcher.GetPersistedSettingsSubtype, func(_ context.Context, _ []byte, out *[]byte) (int32, error) {
		*out = persisted
		return 0, nil
	})
	// The Supervisor asks for persisted settings before it broadcasts
	// SETTINGS_INIT, so this request must pass the pre-init gate.
	w.AllowBeforeInit(launcher.GetPersistedSettingsSubtype)
	w.RegisterHandler(wire.SettingsInit, func(_ context.Context, _ []byte, _ *[]byte) (int32, error) { return 0, nil })
	w.RegisterHandler(wire.SettingsCheck, func(_ context.Context, _ []byte, _ *[]byte) (int32, error) { return 0, nil })
	w.RegisterHandler(wire.SettingsCommit, func(_ context.Context, _ []byte, _ *[]byte) (int32, error) { return 0, nil })

	latch := exitcore.New()
	defer latch.Stop()
	ctx, cancel := latch.Context(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "storage: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
	_ = w.Stop(context.Background())
}
