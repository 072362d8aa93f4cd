package launcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/exitcore"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
)

// TestHelperProcess is not a real test; forkAll re-executes this test
// binary as a child process via helperCommand, standing in for a real
// cmd/{storage,...} worker so forkAll/watch/shutdown can be exercised
// against genuine os/exec children rather than in-process fakes. This
// mirrors the stdlib's own os/exec test helper-process pattern.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("HEMS_LAUNCHER_HELPER") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "workers_exec_test: missing helper command")
		os.Exit(2)
	}
	args = args[1:]

	switch args[0] {
	case "exit":
		code, _ := strconv.Atoi(args[1])
		os.Exit(code)
	case "ignore-term":
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM)
		time.Sleep(10 * time.Second)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "workers_exec_test: unknown helper command %q\n", args[0])
		os.Exit(2)
	}
}

// helperWorkerSpec builds a WorkerSpec that re-invokes this test
// binary with -test.run=TestHelperProcess, followed by command and
// its args; the child process recognizes HEMS_LAUNCHER_HELPER=1 (set
// on the whole test process via t.Setenv by the caller) and dispatches
// into TestHelperProcess above instead of running the real test suite.
func helperWorkerSpec(t *testing.T, mod modules.ModuleId, command string, args ...string) WorkerSpec {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	cmdArgs := append([]string{"-test.run=TestHelperProcess", "--", command}, args...)
	return WorkerSpec{Module: mod, Path: exe, Args: cmdArgs}
}

func newExecSupervisor(t *testing.T, workers []WorkerSpec, shutdownGrace time.Duration) *Supervisor {
	t.Helper()
	t.Setenv("HEMS_LAUNCHER_HELPER", "1")
	reg := channels.NewRegistry()
	if err := reg.CreateAll(); err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	latch := exitcore.New()
	t.Cleanup(latch.Stop)
	return New(Config{
		Workers:       workers,
		Registry:      reg,
		Store:         segment.NewStore(),
		ShutdownGrace: shutdownGrace,
		Latch:         latch,
	})
}

// TestForkAllMergesFirstAbnormalExitCode covers scenario S6: a worker
// exiting abnormally is reflected in the Supervisor's own merged exit
// status, using real forked child processes rather than in-process
// stand-ins.
func TestForkAllMergesFirstAbnormalExitCode(t *testing.T) {
	workers := []WorkerSpec{
		helperWorkerSpec(t, modules.Storage, "exit", "0"),
		helperWorkerSpec(t, modules.Collection, "exit", "3"),
	}
	s := newExecSupervisor(t, workers, time.Second)

	s.forkAll()

	deadline := time.Now().Add(2 * time.Second)
	for s.liveCount.Load() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := s.liveCount.Load(); n != 0 {
		t.Fatalf("liveCount = %d after deadline, want 0", n)
	}

	code, err := s.shutdown(context.Background())
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if code != 3 {
		t.Fatalf("merged exit code = %d, want 3", code)
	}
}

// TestShutdownEscalatesToSIGKILL covers scenario S6's SIGTERM->SIGKILL
// escalation: a child that ignores SIGTERM must still be gone by the
// time shutdown returns, once the grace period elapses.
func TestShutdownEscalatesToSIGKILL(t *testing.T) {
	workers := []WorkerSpec{
		helperWorkerSpec(t, modules.Storage, "ignore-term"),
	}
	grace := 150 * time.Millisecond
	s := newExecSupervisor(t, workers, grace)

	s.forkAll()
	// Give the child a moment to install its signal handler before
	// shutdown races to deliver SIGTERM.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	done := make(chan struct {
		code int
		err  error
	}, 1)
	go func() {
		code, err := s.shutdown(context.Background())
		done <- struct {
			code int
			err  error
		}{code, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("shutdown: %v", r.err)
		}
		if elapsed := time.Since(start); elapsed < grace {
			t.Fatalf("shutdown returned after %v, want >= grace period %v (escalation skipped?)", elapsed, grace)
		}
	case <-time.After(grace + 2*time.Second):
		t.Fatal("shutdown never returned; SIGKILL escalation did not terminate the child")
	}

	s.mu.Lock()
	rec := s.records[0]
	s.mu.Unlock()
	rec.mu.Lock()
	recDone := rec.done
	rec.mu.Unlock()
	if !recDone {
		t.Fatal("worker record never marked done after SIGKILL escalation")
	}
}
