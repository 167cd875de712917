package possync

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/sirupsen/logrus"
)

// TransactionPusher is the push endpoint. Satisfied by *ServerClient.
type TransactionPusher interface {
	PushTransactions(ctx context.Context, req PushRequest) (PushResponse, error)
}

// Pusher flushes the local queue to the server in one batch keyed by each
// transaction's idempotency key. Re-submitting the same batch after a
// timeout has exactly one server-side effect per key.
type Pusher struct {
	Client     TransactionPusher
	Logger     *logrus.Logger
	State      *StateManager
	TerminalId string

	// Bootstrap, when set, runs after any flush that synced at least one
	// transaction so the terminal pulls forward server-side effects of what
	// it just pushed.
	Bootstrap *Bootstrapper
}

// Flush submits all PENDING transactions and applies the server's per-item
// verdict. A concurrent flush (or bootstrap/merge) declines with
// ErrSyncInProgress and has no effect.
func (p *Pusher) Flush(ctx context.Context) (FlushResult, error) {
	release, err := p.State.Begin(PhasePushing)
	if err != nil {
		return FlushResult{}, err
	}

	result, flushErr := p.flush(ctx)
	release()

	if flushErr == nil && len(result.SyncedIds) > 0 && p.Bootstrap != nil {
		if _, bootErr := p.Bootstrap.Run(ctx); bootErr != nil && !utils.IsNetworkUnavailable(bootErr) {
			if p.Logger != nil {
				config.LogError(p.Logger, "possync", "Flush", "follow-up bootstrap", nil, bootErr)
			}
		}
	}
	return result, flushErr
}

func (p *Pusher) flush(ctx context.Context) (FlushResult, error) {
	var result FlushResult

	pending, err := models.ListPendingTransactions(ctx)
	if err != nil {
		return result, err
	}

	var logs []models.ActivityLog
	if config.SyncActivityLogs() {
		logs, err = models.ListUnsyncedActivityLogs(ctx)
		if err != nil {
			return result, err
		}
	}

	if len(pending) == 0 && len(logs) == 0 {
		result.PendingRemaining = 0
		return result, nil
	}

	ids := make([]string, 0, len(pending))
	for _, tx := range pending {
		ids = append(ids, tx.TransactionId)
	}
	if err := models.MarkTransactionsSyncing(ctx, ids); err != nil {
		return result, err
	}

	verdict, err := p.Client.PushTransactions(ctx, PushRequest{
		TerminalId:   p.TerminalId,
		Transactions: pending,
		ActivityLogs: logs,
	})
	if err != nil {
		// The server may still have applied the batch; the idempotency key
		// makes re-submission on the next cycle safe.
		if requeueErr := models.RequeueTransactions(ctx, ids, err.Error()); requeueErr != nil && p.Logger != nil {
			config.LogError(p.Logger, "possync", "Flush", "requeue after push failure", nil, requeueErr)
		}
		return result, err
	}

	syncedSet := toSet(verdict.SyncedIds)
	failedSet := toSet(verdict.FailedIds)

	var missing []string
	for _, id := range ids {
		if !syncedSet[id] && !failedSet[id] {
			missing = append(missing, id)
		}
	}

	if err := models.MarkTransactionsSynced(ctx, verdict.SyncedIds); err != nil {
		return result, err
	}
	if err := models.RequeueTransactions(ctx, verdict.FailedIds, "rejected by server"); err != nil {
		return result, err
	}
	if err := models.MarkTransactionsFailed(ctx, missing, "missing from server verdict"); err != nil {
		return result, err
	}
	if len(verdict.SyncedLogIds) > 0 {
		if err := models.MarkActivityLogsSynced(ctx, verdict.SyncedLogIds); err != nil {
			return result, err
		}
	}

	result.SyncedIds = verdict.SyncedIds
	result.FailedIds = verdict.FailedIds
	result.MissingIds = missing
	result.SyncedLogCount = len(verdict.SyncedLogIds)

	remaining, err := models.CountPendingTransactions(ctx)
	if err != nil {
		return result, err
	}
	result.PendingRemaining = remaining

	if err := models.AdvancePushCursor(ctx, p.TerminalId, time.Now().UTC()); err != nil && p.Logger != nil {
		config.LogError(p.Logger, "possync", "Flush", "advance cursor", nil, err)
	}

	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{
			"module":      "possync",
			"terminal_id": p.TerminalId,
			"synced":      len(result.SyncedIds),
			"failed":      len(result.FailedIds),
			"missing":     len(result.MissingIds),
			"remaining":   result.PendingRemaining,
		}).Info("flush completed")
	}
	return result, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
