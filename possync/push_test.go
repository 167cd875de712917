package possync_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/possync"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/shopspring/decimal"
)

func enqueueOrder(t *testing.T, ctx context.Context, transactionId string, total int64) *models.PendingTransaction {
	t.Helper()
	record, err := models.EnqueueTransaction(ctx, &models.NewPendingTransaction{
		TransactionId:       transactionId,
		PaymentMethod:       "CASH",
		SubTotal:            decimal.NewFromInt(total),
		TotalAmount:         decimal.NewFromInt(total),
		TransactionDateTime: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("EnqueueTransaction: %v", err)
	}
	return record
}

func newPusher(server *fakeServer) *possync.Pusher {
	return &possync.Pusher{
		Client:     server,
		State:      possync.NewStateManager(),
		TerminalId: "terminal-test",
	}
}

func TestFlushDrainsQueueExactlyOnce(t *testing.T) {
	ctx := setupTerminalDB(t)

	enqueueOrder(t, ctx, "tx-1", 120)
	enqueueOrder(t, ctx, "tx-2", 85)
	enqueueOrder(t, ctx, "tx-3", 60)

	server := &fakeServer{}
	pusher := newPusher(server)

	result, err := pusher.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(result.SyncedIds) != 3 || result.PendingRemaining != 0 {
		t.Fatalf("flush result = %+v, want 3 synced and 0 remaining", result)
	}

	for _, id := range []string{"tx-1", "tx-2", "tx-3"} {
		got, err := models.GetTransactionByTransactionId(ctx, id)
		if err != nil {
			t.Fatalf("GetTransactionByTransactionId %s: %v", id, err)
		}
		if got.Status != models.TransactionStatusSynced {
			t.Fatalf("%s status = %s, want SYNCED", id, got.Status)
		}
	}

	// Nothing left to push: the second flush must not hit the server.
	if _, err := pusher.Flush(ctx); err != nil {
		t.Fatalf("Flush again: %v", err)
	}
	if len(server.Pushes) != 1 {
		t.Fatalf("server received %d push batches, want 1", len(server.Pushes))
	}
}

func TestFlushPartialFailureIsolation(t *testing.T) {
	ctx := setupTerminalDB(t)

	enqueueOrder(t, ctx, "tx-good-1", 120)
	enqueueOrder(t, ctx, "tx-good-2", 85)
	enqueueOrder(t, ctx, "tx-bad", 60)

	server := &fakeServer{
		PushFn: func(req possync.PushRequest) (possync.PushResponse, error) {
			return possync.PushResponse{
				SyncedIds: []string{"tx-good-1", "tx-good-2"},
				FailedIds: []string{"tx-bad"},
			}, nil
		},
	}
	pusher := newPusher(server)

	result, err := pusher.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(result.SyncedIds) != 2 || len(result.FailedIds) != 1 {
		t.Fatalf("flush result = %+v, want 2 synced and 1 failed", result)
	}
	if result.PendingRemaining != 1 {
		t.Fatalf("pending remaining = %d, want 1", result.PendingRemaining)
	}

	bad, err := models.GetTransactionByTransactionId(ctx, "tx-bad")
	if err != nil {
		t.Fatalf("GetTransactionByTransactionId: %v", err)
	}
	if bad.Status != models.TransactionStatusPending {
		t.Fatalf("rejected row status = %s, want PENDING for retry", bad.Status)
	}
	if bad.SyncAttempts != 1 {
		t.Fatalf("rejected row sync_attempts = %d, want 1", bad.SyncAttempts)
	}
	good, err := models.GetTransactionByTransactionId(ctx, "tx-good-1")
	if err != nil {
		t.Fatalf("GetTransactionByTransactionId: %v", err)
	}
	if good.Status != models.TransactionStatusSynced {
		t.Fatalf("accepted row status = %s, want SYNCED", good.Status)
	}
}

func TestFlushMissingVerdictMarksFailed(t *testing.T) {
	ctx := setupTerminalDB(t)

	enqueueOrder(t, ctx, "tx-acked", 120)
	enqueueOrder(t, ctx, "tx-dropped", 85)

	server := &fakeServer{
		PushFn: func(req possync.PushRequest) (possync.PushResponse, error) {
			return possync.PushResponse{SyncedIds: []string{"tx-acked"}}, nil
		},
	}
	pusher := newPusher(server)

	result, err := pusher.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(result.MissingIds) != 1 || result.MissingIds[0] != "tx-dropped" {
		t.Fatalf("missing ids = %v, want [tx-dropped]", result.MissingIds)
	}

	dropped, err := models.GetTransactionByTransactionId(ctx, "tx-dropped")
	if err != nil {
		t.Fatalf("GetTransactionByTransactionId: %v", err)
	}
	if dropped.Status != models.TransactionStatusFailed {
		t.Fatalf("dropped row status = %s, want FAILED", dropped.Status)
	}
}

func TestFlushNetworkFailureRequeuesForResubmission(t *testing.T) {
	ctx := setupTerminalDB(t)

	enqueueOrder(t, ctx, "tx-1", 120)
	enqueueOrder(t, ctx, "tx-2", 85)

	calls := 0
	server := &fakeServer{
		PushFn: func(req possync.PushRequest) (possync.PushResponse, error) {
			calls++
			if calls == 1 {
				return possync.PushResponse{}, fmt.Errorf("%w: timeout", utils.ErrNetworkUnavailable)
			}
			ids := make([]string, 0, len(req.Transactions))
			for _, tx := range req.Transactions {
				ids = append(ids, tx.TransactionId)
			}
			return possync.PushResponse{SyncedIds: ids}, nil
		},
	}
	pusher := newPusher(server)

	if _, err := pusher.Flush(ctx); !utils.IsNetworkUnavailable(err) {
		t.Fatalf("first flush error = %v, want network unavailable", err)
	}

	pending, err := models.CountPendingTransactions(ctx)
	if err != nil {
		t.Fatalf("CountPendingTransactions: %v", err)
	}
	if pending != 2 {
		t.Fatalf("pending = %d after network failure, want 2 requeued", pending)
	}

	// The retry resubmits the same batch; idempotency keys make this safe.
	result, err := pusher.Flush(ctx)
	if err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(result.SyncedIds) != 2 || result.PendingRemaining != 0 {
		t.Fatalf("second flush result = %+v, want 2 synced and 0 remaining", result)
	}
	if len(server.Pushes) != 2 {
		t.Fatalf("server received %d batches, want 2", len(server.Pushes))
	}
	if len(server.Pushes[1].Transactions) != 2 {
		t.Fatalf("resubmitted batch has %d transactions, want 2", len(server.Pushes[1].Transactions))
	}
}

func TestFlushSyncsActivityLogs(t *testing.T) {
	ctx := setupTerminalDB(t)

	entry, err := models.CreateActivityLog(ctx, &models.NewActivityLog{
		Action:      "VOID_ORDER",
		Description: "voided order #12",
	})
	if err != nil {
		t.Fatalf("CreateActivityLog: %v", err)
	}

	server := &fakeServer{}
	pusher := newPusher(server)

	result, err := pusher.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if result.SyncedLogCount != 1 {
		t.Fatalf("synced log count = %d, want 1", result.SyncedLogCount)
	}

	logs, err := models.ListUnsyncedActivityLogs(ctx)
	if err != nil {
		t.Fatalf("ListUnsyncedActivityLogs: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("%d logs still unsynced after flush, want 0 (log %s)", len(logs), entry.LogId)
	}
}

func TestFlushRunsFollowUpBootstrap(t *testing.T) {
	ctx := setupTerminalDB(t)

	enqueueOrder(t, ctx, "tx-1", 120)

	server := &fakeServer{Snapshot: testSnapshot()}
	state := possync.NewStateManager()
	pusher := &possync.Pusher{
		Client:     server,
		State:      state,
		TerminalId: "terminal-test",
		Bootstrap: &possync.Bootstrapper{
			Client:     server,
			State:      state,
			TerminalId: "terminal-test",
		},
	}

	if _, err := pusher.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if server.SnapshotCalls != 1 {
		t.Fatalf("snapshot calls = %d after a flush that synced rows, want 1", server.SnapshotCalls)
	}
	if state.Phase() != possync.PhaseIdle {
		t.Fatalf("phase = %s after flush, want Idle", state.Phase())
	}
}
