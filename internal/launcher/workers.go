package launcher

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
)

var errWorkersStillLive = errors.New("launcher: workers still live")

// workerRecord tracks one forked child across its lifetime.
type workerRecord struct {
	spec     WorkerSpec
	cmd      *exec.Cmd
	mu       sync.Mutex
	exitCode int
	err      error
	done     bool
}

func (s *Supervisor) forkAll() {
	for _, spec := range s.cfg.Workers {
		rec := &workerRecord{spec: spec}
		cmd := exec.Command(spec.Path, spec.Args...)
		rec.cmd = cmd

		if err := cmd.Start(); err != nil {
			rec.mu.Lock()
			rec.err = err
			rec.exitCode = 1
			rec.done = true
			rec.mu.Unlock()
			s.logf("failed to start worker %s: %v", spec.Module, err)
			s.noteExit(rec)
			continue
		}

		s.mu.Lock()
		s.records = append(s.records, rec)
		s.mu.Unlock()

		go s.watch(rec)
	}
}

// watch blocks on one child's exit, records its status, and signals
// the Supervisor's shutdown machinery. It is the Go stand-in for the
// original fabric's per-worker watcher task: Go cannot re-exec itself
// in place the way the C++ launcher's fork does, so a spawned child
// process plus cmd.Wait() is the idiomatic substitute with the same
// external contract (PID-tracked lifetime, exit-status propagation).
func (s *Supervisor) watch(rec *workerRecord) {
	err := rec.cmd.Wait()
	rec.mu.Lock()
	rec.err = err
	rec.exitCode = exitCodeOf(rec.cmd, err)
	rec.done = true
	rec.mu.Unlock()

	s.logf("worker %s exited with code %d", rec.spec.Module, rec.exitCode)
	s.noteExit(rec)
	s.cfg.Latch.Trigger()
}

func (s *Supervisor) noteExit(rec *workerRecord) {
	rec.mu.Lock()
	code := rec.exitCode
	rec.mu.Unlock()
	if code != 0 {
		s.recordAbnormalExit(code)
	}
	s.liveCount.Add(-1)
	s.sem.Release(1)
}

func (s *Supervisor) recordAbnormalExit(code int) {
	for {
		cur := s.exitCode.Load()
		if cur != 0 {
			return // an earlier abnormal exit already won
		}
		if s.exitCode.CompareAndSwap(0, int32(code)) {
			return
		}
	}
}

func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}

// shutdown sends SIGTERM to every live child, waits up to
// ShutdownGrace for them all to exit, escalates to SIGKILL on
// timeout, then tears down the Supervisor's own Messenger and unlinks
// every queue. It returns the merged exit status.
func (s *Supervisor) shutdown(ctx context.Context) (int, error) {
	s.draining.Do(func() { s.setState(StateDraining) })

	s.mu.Lock()
	records := append([]*workerRecord(nil), s.records...)
	s.mu.Unlock()

	for _, rec := range records {
		rec.mu.Lock()
		done := rec.done
		rec.mu.Unlock()
		if !done {
			_ = rec.cmd.Process.Signal(syscall.SIGTERM)
		}
	}

	if len(records) > 0 {
		waitCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		err := s.sem.Acquire(waitCtx, int64(len(s.cfg.Workers)))
		cancel()
		if err != nil {
			s.logf("shutdown grace period elapsed, escalating to SIGKILL")
			for _, rec := range records {
				rec.mu.Lock()
				done := rec.done
				rec.mu.Unlock()
				if !done {
					_ = rec.cmd.Process.Kill()
				}
			}
			s.waitForAllKilled(records)
		}
	}

	if err := s.m.EndListen(ctx); err != nil {
		s.logf("supervisor end-listen: %v", err)
	}
	s.m.Wait()

	if err := s.cfg.Registry.UnlinkAll(); err != nil {
		s.logf("unlink queues: %v", err)
	}
	if err := s.cfg.Store.UnlinkAll(); err != nil {
		s.logf("unlink segments: %v", err)
	}

	s.setState(StateTerminated)
	return int(s.exitCode.Load()), nil
}

// waitForAllKilled polls, with exponential backoff, until every record
// reports done (its watcher's cmd.Wait() has returned), bounded by the
// launcher's own shutdown grace so a child stuck in an uninterruptible
// wait cannot hang shutdown forever.
func (s *Supervisor) waitForAllKilled(records []*workerRecord) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = s.cfg.ShutdownGrace

	_ = backoff.Retry(func() error {
		for _, rec := range records {
			rec.mu.Lock()
			done := rec.done
			rec.mu.Unlock()
			if !done {
				return errWorkersStillLive
			}
		}
		return nil
	}, b)
}

func (s *Supervisor) logf(format string, args ...any) {
	if s.cfg.Log == nil {
		return
	}
	s.cfg.Log.Warnf(format, args...)
}
