// ui is a thin example over the User Interface Module's
// message-handler surface. No real HTTP/web frontend is implemented;
// only the fabric plumbing is exercised, per Non-goals.
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

// renderStatusSubtype is this example's own stub request: callers ask
// ui for its rendered status page and get a fixed stub payload back.
const renderStatusSubtype int32 = 10

func main() {
	debug := flag.Bool("debug", false, "debug mode; no effect on output, this worker has no logger")
	flag.Parse()

	registry := channels.NewRegistry()
	if err := registry.CreateAll(); err != nil {
		fmt.Fprintf(os.Stderr, "ui: %v\n", err)
		os.Exit(1)
	}
	store := segment.NewStore()

	w := module.New(modules.UI, registry, store, nil, module.Options{Debug: *debug})

	w.RegisterHandler(renderStatusSubtype, func(_ context.Context, _ []byte, out *[]byte) (int32, error) {
		*out = []byte("<html><body>HEMS</body></html>")
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
		fmt.Fprintf(os.Stderr, "ui: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
	_ = w.Stop(context.Background())
}
