package forms

import (
	"context"
	"sync"
	"time"

	"staffdesk/internal/logs"
)

const syncBatch = 100

// Worker polls open submissions on a fixed interval and runs short-lived
// per-submission watchers after a signing link is handed out.
type Worker struct {
	svc      *Service
	poll     time.Duration
	interval time.Duration
	ticks    int

	mu       sync.Mutex
	ctx      context.Context
	watching map[uint]struct{}
	wg       sync.WaitGroup
}

func NewWorker(svc *Service, poll, watchInterval time.Duration, watchTicks int) *Worker {
	return &Worker{
		svc:      svc,
		poll:     poll,
		interval: watchInterval,
		ticks:    watchTicks,
		watching: make(map[uint]struct{}),
	}
}

// Run blocks until ctx is cancelled, then waits for running watchers.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	log := logs.Component("forms-sync")
	log.Infof("polling open submissions every %s", w.poll)
	t := time.NewTicker(w.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.ctx = nil
			w.mu.Unlock()
			w.wg.Wait()
			return nil
		case <-t.C:
			n, err := w.svc.Sync(ctx, syncBatch)
			if err != nil {
				log.Warnf("sync: %d refreshed, errors: %v", n, err)
			} else if n > 0 {
				log.Debugf("sync: %d refreshed", n)
			}
		}
	}
}

// Watch starts a bounded watcher for one submission. It returns false when the
// worker is not running or the submission is already watched.
func (w *Worker) Watch(id uint) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return false
	}
	if _, ok := w.watching[id]; ok {
		return false
	}
	w.watching[id] = struct{}{}
	w.wg.Add(1)
	go func(ctx context.Context) {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.watching, id)
			w.mu.Unlock()
		}()
		w.watch(ctx, id)
	}(w.ctx)
	return true
}

func (w *Worker) watch(ctx context.Context, id uint) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for i := 0; i < w.ticks; i++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		f, err := w.svc.Refresh(ctx, id)
		if err != nil {
			logs.Logger.WithField("submission", id).Debugf("watch refresh: %v", err)
			continue
		}
		if Terminal(f.Status) {
			return
		}
	}
}
