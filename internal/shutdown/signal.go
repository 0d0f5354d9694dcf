// Package shutdown holds the process-wide cancellation flag. The flag is set
// once, from a signal listener or programmatically, and never cleared.
// Nothing in here terminates the process or kills running commands; callers
// poll Cancelled between units of work.
package shutdown

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

type Signal struct {
	cancelled atomic.Bool
}

// Trigger sets the flag and reports whether this call was the one to set it.
func (s *Signal) Trigger() bool {
	return s.cancelled.CompareAndSwap(false, true)
}

func (s *Signal) Cancelled() bool {
	return s.cancelled.Load()
}

// Listen triggers the signal on the first of sigs delivered to the process.
// Later deliveries are swallowed as long as the listener runs. The returned
// stop function unregisters the handler and waits for the listener to exit.
func (s *Signal) Listen(sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case sig := <-ch:
				if s.Trigger() {
					slog.Warn("received signal, finishing current operation", "signal", sig.String())
				}
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
			<-done
		})
	}
}

var (
	global     *Signal
	globalOnce sync.Once
)

// Global returns the process-wide Signal, wired to SIGINT and SIGTERM on
// first use.
func Global() *Signal {
	globalOnce.Do(func() {
		global = &Signal{}
		_ = global.Listen(os.Interrupt, syscall.SIGTERM)
	})
	return global
}
