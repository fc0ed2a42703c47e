// Package watchdog arms a process-wide wall-clock deadline around each
// document pass. When it fires the whole process is aborted: a runaway
// snippet holds the single execution thread, so in-process cancellation has
// nothing left to run on.
package watchdog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"mdrun/internal/logging"
)

// ExitCode is the process status reported on deadline expiry.
const ExitCode = 124

// Watchdog is a re-armable wall-clock kill timer. Arm it before a document
// begins and disarm it after the pass completes; the debugger capability
// disarms it for the remainder of an interactive session.
type Watchdog struct {
	mu    sync.Mutex
	timer *time.Timer

	// expire defaults to terminating the process. Overridable for tests.
	expire func(doc string, d time.Duration)
}

// New returns a disarmed watchdog.
func New() *Watchdog {
	return &Watchdog{}
}

// NewWithExpire returns a watchdog whose expiry action is replaced, for use
// in tests that must not exit the process.
func NewWithExpire(expire func(doc string, d time.Duration)) *Watchdog {
	return &Watchdog{expire: expire}
}

// Arm starts (or restarts) the deadline for the named document.
func (w *Watchdog) Arm(d time.Duration, doc string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	logging.WatchdogDebug("armed %v for %s", d, doc)
	w.timer = time.AfterFunc(d, func() {
		expire := w.expire
		if expire == nil {
			expire = fatal
		}
		expire(doc, d)
	})
}

// Disarm cancels any pending deadline.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
		logging.WatchdogDebug("disarmed")
	}
}

func fatal(doc string, d time.Duration) {
	logging.Watchdog("deadline of %v expired while processing %s", d, doc)
	logging.CloseAll()
	fmt.Fprintf(os.Stderr, "mdrun: watchdog deadline of %v expired while processing %s\n", d, doc)
	os.Exit(ExitCode)
}
