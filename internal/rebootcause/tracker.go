// Package rebootcause fetches the platform's recorded restart reasons and
// maintains their persisted history under the process lock.
package rebootcause

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"

	"github.com/autopeer-io/platformctl/internal/filelock"
	"github.com/autopeer-io/platformctl/internal/platform"
	"github.com/autopeer-io/platformctl/pkg/log"
)

// Tracker merges freshly fetched reload causes into the persisted history
// and reports either the latest fetch or the full accumulation.
type Tracker struct {
	platform platform.Platform
	store    Store
	lock     filelock.Mutex
	out      io.Writer
	log      log.Logger
}

// New builds a Tracker. A nil store means no durable state is available; the
// tracker then reports the hardware's current causes without clearing or
// persisting them.
func New(p platform.Platform, store Store, lock filelock.Mutex, out io.Writer) *Tracker {
	return &Tracker{
		platform: p,
		store:    store,
		lock:     lock,
		out:      out,
		log:      log.WithName("reboot-cause"),
	}
}

// Report fetches current causes, folds them into the history, and prints
// either the full history or only the latest fetch. Fetch and persist run
// under the lock; a clear-on-read fetch must never race a concurrent
// invocation.
func (t *Tracker) Report(history bool) error {
	if t.store == nil {
		causes, err := t.platform.ReloadCauses(false)
		if err != nil {
			return fmt.Errorf("reading reload causes: %w", err)
		}
		return t.print(causes)
	}

	if err := t.refresh(); err != nil {
		return err
	}

	var (
		causes []platform.Cause
		err    error
	)
	if history {
		causes, err = t.store.History()
	} else {
		causes, err = t.store.Latest()
	}
	if err != nil {
		return err
	}
	return t.print(causes)
}

// refresh fetches causes with clear-on-read semantics and appends them to
// the persisted history, all while holding the lock.
func (t *Tracker) refresh() error {
	if err := t.lock.Acquire(); err != nil {
		return fmt.Errorf("acquiring process lock: %w", err)
	}
	defer func() {
		if err := t.lock.Release(); err != nil {
			t.log.Warn("failed to release process lock", "error", err)
		}
	}()

	causes, err := t.platform.ReloadCauses(true)
	if err != nil {
		return fmt.Errorf("reading reload causes: %w", err)
	}
	if len(causes) > 0 {
		t.log.Debug("recording reload causes", "count", len(causes))
	}
	return t.store.Update(causes)
}

func (t *Tracker) print(causes []platform.Cause) error {
	if len(causes) == 0 {
		_, err := fmt.Fprintln(t.out, "No reboot causes found")
		return err
	}

	table := uitable.New()
	table.AddRow("CAUSE", "TIME", "DESCRIPTION")
	for _, c := range causes {
		table.AddRow(c.Name, c.Time.Format(time.RFC3339), c.Description)
	}
	_, err := fmt.Fprintln(t.out, table)
	return err
}
