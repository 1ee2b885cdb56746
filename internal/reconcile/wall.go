package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// WallDebouncer drives a Controller from wall-clock time for hosts that
// have no tick source of their own. Each Touch restarts a real timer; when
// it fires the pending snapshot is committed.
type WallDebouncer struct {
	ctx      context.Context
	ctl      *Controller
	lock     sync.Locker
	debounce func(f func())
	onError  func(error)
}

// NewWallDebouncer wraps ctl with a wall-clock window. When lock is non-nil
// it is held while the timer commits, so the commit callback runs under the
// same lock as the caller's own Touch and Flush calls. Commit errors are
// passed to onError, which may be nil.
func NewWallDebouncer(ctx context.Context, ctl *Controller, window time.Duration, lock sync.Locker, onError func(error)) *WallDebouncer {
	if onError == nil {
		onError = func(error) {}
	}
	return &WallDebouncer{
		ctx:      ctx,
		ctl:      ctl,
		lock:     lock,
		debounce: debounce.New(window),
		onError:  onError,
	}
}

// Touch records a mutation and restarts the wall-clock window.
func (w *WallDebouncer) Touch(snap Snapshot) {
	w.ctl.Touch(snap)
	w.debounce(w.fire)
}

func (w *WallDebouncer) fire() {
	if w.lock != nil {
		w.lock.Lock()
		defer w.lock.Unlock()
	}
	if w.ctx.Err() != nil {
		return
	}
	if _, err := w.ctl.Expire(w.ctx); err != nil {
		w.onError(err)
	}
}
