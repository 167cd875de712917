package possync_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/models/reports"
	"bitbucket.org/mmdatafocus/pos_terminal/possync"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/shopspring/decimal"
)

// Full offline shift: orders taken while the server is down, a flush that
// fails on the dead link, recovery, and a drain once the link is back. The
// analytics must read the same before and after the drain.
func TestOfflineShiftThenRecovery(t *testing.T) {
	ctx := setupTerminalDB(t)

	down := errors.New("connection refused")
	server := &fakeServer{PingErr: down}
	server.PushFn = func(req possync.PushRequest) (possync.PushResponse, error) {
		return possync.PushResponse{}, fmt.Errorf("%w: %v", utils.ErrNetworkUnavailable, down)
	}

	monitor := possync.NewNetworkMonitor(server, nil)
	monitor.DebounceProbes = 2
	pusher := &possync.Pusher{
		Client:     server,
		State:      possync.NewStateManager(),
		TerminalId: "terminal-test",
	}

	// Link is down; the monitor stays offline.
	monitor.ProbeOnce(ctx)
	monitor.ProbeOnce(ctx)
	if monitor.Online() {
		t.Fatal("monitor online while the server is down")
	}

	// Order-taking is unaffected by the outage.
	for _, order := range []struct {
		id    string
		total int64
	}{
		{"tx-shift-1", 120},
		{"tx-shift-2", 85},
		{"tx-shift-3", 60},
	} {
		enqueueOrder(t, ctx, order.id, order.total)
	}

	windowFrom, windowTo := reportWindow()
	before, err := reports.GetSalesOverviewReport(ctx, windowFrom, windowTo)
	if err != nil {
		t.Fatalf("GetSalesOverviewReport offline: %v", err)
	}
	if !before.TotalSales.Equal(decimal.NewFromInt(265)) || before.TransactionCount != 3 {
		t.Fatalf("offline report = %+v, want 265 over 3 orders", before)
	}

	// A flush against the dead link fails quietly and leaves the queue whole.
	if _, err := pusher.Flush(ctx); !utils.IsNetworkUnavailable(err) {
		t.Fatalf("offline flush error = %v, want network unavailable", err)
	}
	pending, err := models.CountPendingTransactions(ctx)
	if err != nil {
		t.Fatalf("CountPendingTransactions: %v", err)
	}
	if pending != 3 {
		t.Fatalf("pending = %d after failed flush, want 3", pending)
	}

	// The link comes back; the debounced monitor flips once.
	server.mu.Lock()
	server.PingErr = nil
	server.PushFn = nil
	server.mu.Unlock()
	monitor.ProbeOnce(ctx)
	monitor.ProbeOnce(ctx)
	if !monitor.Online() {
		t.Fatal("monitor still offline after recovery")
	}
	select {
	case online := <-monitor.Transitions():
		if !online {
			t.Fatal("transition event = offline, want online")
		}
	default:
		t.Fatal("no transition event after recovery")
	}

	// The drain syncs everything in one batch.
	result, err := pusher.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush after recovery: %v", err)
	}
	if len(result.SyncedIds) != 3 || result.PendingRemaining != 0 {
		t.Fatalf("drain result = %+v, want 3 synced and 0 remaining", result)
	}

	// Syncing must not move the numbers.
	after, err := reports.GetSalesOverviewReport(ctx, windowFrom, windowTo)
	if err != nil {
		t.Fatalf("GetSalesOverviewReport after drain: %v", err)
	}
	if !after.TotalSales.Equal(before.TotalSales) || after.TransactionCount != before.TransactionCount {
		t.Fatalf("report moved after drain: before=%+v after=%+v", before, after)
	}
}

func reportWindow() (time.Time, time.Time) {
	now := time.Now().UTC()
	return now.Add(-time.Hour), now.Add(time.Hour)
}
