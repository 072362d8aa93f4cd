// training is a thin example over the Model Training Module's
// message-handler surface. No real training loop is implemented; only
// the fabric plumbing is exercised, per Non-goals.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/exitcore"
	"github.com/adrianghc/hems/internal/module"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
	"github.com/adrianghc/hems/internal/wire"
)

// trainSubtype is this example's own stub command: callers tell
// training to kick off a run; the handler just acknowledges.
const trainSubtype int32 = 10

func main() {
	debug := flag.Bool("debug", false, "debug mode; no effect on output, this worker has no logger")
	flag.Parse()

	registry := channels.NewRegistry()
	if err := registry.CreateAll(); err != nil {
		fmt.Fprintf(os.Stderr, "training: %v\n", err)
		os.Exit(1)
	}
	store := segment.NewStore()

	w := module.New(modules.Training, registry, store, nil, module.Options{Debug: *debug})

	w.RegisterHandler(trainSubtype, func(_ context.Context, _ []byte, _ *[]byte) (int32, error) {
		return 0, nil
	})
	w.RegisterHandler(wire.SettingsInit, func(_ context.Context, _ []byte, _ *[]byte) (int32, error) { return 0, nil })
	w.RegisterHandler(wire.SettingsCheck, func(_ context.Context, _ []byte, _ *[]byte) (int32, error) { return 0, nil })
	w.RegisterHandler(wire.SettingsCommit, func(_ context.Context, _ []byte, _ *[]byte) (int32, error) { return 0, nil })

	latch := exitcore.New()
	defer latch.Stop()
	ctx, cancel := latch.Context(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "training: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
	_ = w.Stop(context.Background())
}
