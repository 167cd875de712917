package possync_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/possync"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
)

func setupTerminalDB(t *testing.T) context.Context {
	t.Helper()
	t.Setenv("TERMINAL_DB_PATH", filepath.Join(t.TempDir(), "terminal.db"))

	config.CloseDatabase()
	if err := config.ConnectDatabase(); err != nil {
		t.Fatalf("ConnectDatabase: %v", err)
	}
	t.Cleanup(config.CloseDatabase)
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, "biz-test")
	ctx = utils.SetTerminalIdInContext(ctx, "terminal-test")
	ctx = utils.SetUserNameInContext(ctx, "Cashier")
	return ctx
}

// fakeServer stands in for the central POS server across all synchronizer
// tests. Behavior is programmed per test via the Fn fields; every request is
// recorded.
type fakeServer struct {
	mu sync.Mutex

	PingErr     error
	Snapshot    possync.SnapshotResponse
	SnapshotErr error
	PushFn      func(possync.PushRequest) (possync.PushResponse, error)
	MergeFn     func(possync.MergeRequest) (possync.MergeResponse, error)

	SnapshotCalls int
	Pushes        []possync.PushRequest
	Merges        []possync.MergeRequest
}

func (f *fakeServer) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

func (f *fakeServer) GetSnapshot(ctx context.Context, terminalId string) (possync.SnapshotResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SnapshotCalls++
	if f.SnapshotErr != nil {
		return possync.SnapshotResponse{}, f.SnapshotErr
	}
	return f.Snapshot, nil
}

func (f *fakeServer) PushTransactions(ctx context.Context, req possync.PushRequest) (possync.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pushes = append(f.Pushes, req)
	if f.PushFn != nil {
		return f.PushFn(req)
	}
	ids := make([]string, 0, len(req.Transactions))
	for _, tx := range req.Transactions {
		ids = append(ids, tx.TransactionId)
	}
	logIds := make([]string, 0, len(req.ActivityLogs))
	for _, entry := range req.ActivityLogs {
		logIds = append(logIds, entry.LogId)
	}
	return possync.PushResponse{SyncedIds: ids, SyncedLogIds: logIds}, nil
}

func (f *fakeServer) MergeBatch(ctx context.Context, req possync.MergeRequest) (possync.MergeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Merges = append(f.Merges, req)
	if f.MergeFn != nil {
		return f.MergeFn(req)
	}
	return possync.MergeResponse{Success: true}, nil
}
