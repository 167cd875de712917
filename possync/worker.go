package possync

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/sirupsen/logrus"
)

// SyncWorker drives the automatic sync loop: a bootstrap attempt at startup,
// a flush shortly after every offline->online transition when work is
// queued, a periodic flush while online, and a pending-count publisher for
// the UI.
type SyncWorker struct {
	Logger       *logrus.Logger
	Monitor      *NetworkMonitor
	Pusher       *Pusher
	Bootstrapper *Bootstrapper
	TerminalId   string

	FlushInterval       time.Duration
	OnlineFlushDelay    time.Duration
	PendingPollInterval time.Duration
	MaxFlushBackoff     time.Duration

	mu                  sync.Mutex
	consecutiveFailures int
	pendingCounts       chan int64
}

func NewSyncWorker(logger *logrus.Logger, monitor *NetworkMonitor, pusher *Pusher, bootstrapper *Bootstrapper, terminalId string) *SyncWorker {
	return &SyncWorker{
		Logger:              logger,
		Monitor:             monitor,
		Pusher:              pusher,
		Bootstrapper:        bootstrapper,
		TerminalId:          terminalId,
		FlushInterval:       time.Duration(utils.EnvInt("SYNC_FLUSH_INTERVAL_SECONDS", 60)) * time.Second,
		OnlineFlushDelay:    time.Duration(utils.EnvInt("SYNC_ONLINE_FLUSH_DELAY_SECONDS", 5)) * time.Second,
		PendingPollInterval: time.Duration(utils.EnvInt("SYNC_PENDING_POLL_SECONDS", 10)) * time.Second,
		MaxFlushBackoff:     time.Duration(utils.EnvInt("SYNC_MAX_FLUSH_BACKOFF_SECONDS", 600)) * time.Second,
		pendingCounts:       make(chan int64, 8),
	}
}

// PendingCounts emits the pending-transaction count whenever it changes.
// Replaces UI-side polling of the store.
func (w *SyncWorker) PendingCounts() <-chan int64 {
	return w.pendingCounts
}

func (w *SyncWorker) Run(ctx context.Context) {
	if w == nil || w.Pusher == nil {
		return
	}

	// SYNCING rows can only exist here if the process died mid-flush;
	// the idempotency keys make re-submission safe.
	if reset, err := models.ResetStuckSyncing(ctx); err != nil {
		if w.Logger != nil {
			config.LogError(w.Logger, "possync", "SyncWorker.Run", "reset stuck syncing", nil, err)
		}
	} else if reset > 0 && w.Logger != nil {
		w.Logger.WithFields(logrus.Fields{"module": "possync", "reset": reset}).Warn("requeued transactions stuck in SYNCING")
	}

	if config.AutoBootstrapOnStart() && w.Bootstrapper != nil {
		if _, err := w.Bootstrapper.Run(ctx); err != nil && !utils.IsNetworkUnavailable(err) {
			if w.Logger != nil {
				config.LogError(w.Logger, "possync", "SyncWorker.Run", "startup bootstrap", nil, err)
			}
		}
	}

	go w.pendingCountLoop(ctx)

	timer := time.NewTimer(w.flushDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-w.Monitor.Transitions():
			if !online {
				continue
			}
			// Fixed delay after coming back online before flushing, so a
			// flapping link settles first.
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.OnlineFlushDelay):
			}
			if pending, err := models.CountPendingTransactions(ctx); err == nil && pending > 0 {
				w.flushOnce(ctx)
			}
		case <-timer.C:
			if w.Monitor.Online() {
				w.flushOnce(ctx)
			}
			timer.Reset(w.flushDelay())
		}
	}
}

func (w *SyncWorker) flushOnce(ctx context.Context) {
	_, err := w.Pusher.Flush(ctx)
	switch {
	case err == nil:
		w.setFailures(0)
	case utils.IsNetworkUnavailable(err):
		// Expected while offline; retried on the next cycle.
		w.bumpFailures()
	case errors.Is(err, utils.ErrSyncInProgress):
		// Another operation holds the store; not a failure.
	default:
		w.bumpFailures()
		if w.Logger != nil {
			config.LogError(w.Logger, "possync", "SyncWorker.flushOnce", "flush", nil, err)
		}
	}
}

// flushDelay applies bounded exponential backoff to the periodic flush:
// interval doubles per consecutive failure, capped at MaxFlushBackoff, and
// resets on the first success.
func (w *SyncWorker) flushDelay() time.Duration {
	w.mu.Lock()
	failures := w.consecutiveFailures
	w.mu.Unlock()

	delay := w.FlushInterval
	for i := 0; i < failures && delay < w.MaxFlushBackoff; i++ {
		delay *= 2
	}
	if delay > w.MaxFlushBackoff {
		delay = w.MaxFlushBackoff
	}
	return delay
}

func (w *SyncWorker) setFailures(n int) {
	w.mu.Lock()
	w.consecutiveFailures = n
	w.mu.Unlock()
}

func (w *SyncWorker) bumpFailures() {
	w.mu.Lock()
	w.consecutiveFailures++
	w.mu.Unlock()
}

func (w *SyncWorker) pendingCountLoop(ctx context.Context) {
	ticker := time.NewTicker(w.PendingPollInterval)
	defer ticker.Stop()

	last := int64(-1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := models.CountPendingTransactions(ctx)
			if err != nil {
				continue
			}
			if count == last {
				continue
			}
			last = count
			select {
			case w.pendingCounts <- count:
			default:
			}
		}
	}
}
