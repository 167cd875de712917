package possync

import (
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/models"
)

// SnapshotResponse is the pull endpoint's full catalog snapshot, plus the
// recent and held transactions the terminal re-caches as already synced.
type SnapshotResponse struct {
	Settings           []models.CachedSetting       `json:"settings"`
	Categories         []models.CachedCategory      `json:"categories"`
	Products           []models.CachedProduct       `json:"products"`
	Tables             []models.CachedDiningTable   `json:"tables"`
	RecentTransactions []models.PendingTransaction  `json:"recentTransactions"`
	HeldTransactions   []models.PendingTransaction  `json:"heldTransactions"`
}

type PushRequest struct {
	TerminalId   string                      `json:"terminalId"`
	Transactions []models.PendingTransaction `json:"transactions"`
	ActivityLogs []models.ActivityLog        `json:"activityLogs,omitempty"`
}

// PushResponse is the server's per-item verdict, keyed by each transaction's
// idempotency key. An id present in neither list is treated as FAILED by the
// client.
type PushResponse struct {
	SyncedIds    []string `json:"syncedIds"`
	FailedIds    []string `json:"failedIds"`
	SyncedLogIds []string `json:"syncedLogIds,omitempty"`
}

type MergeRequest struct {
	TerminalId string            `json:"terminalId"`
	EntityType string            `json:"entityType"`
	Items      []json.RawMessage `json:"items"`
}

// MergeResponse reports one merge batch. The server inserts items whose ids
// are absent remotely and skips (never overwrites) the rest.
type MergeResponse struct {
	Success     bool     `json:"success"`
	InsertedIds []string `json:"insertedIds"`
	SkippedIds  []string `json:"skippedIds"`
	Warnings    []string `json:"warnings,omitempty"`
}

// BootstrapResult summarizes one bootstrap run. Section failures are
// recorded, not propagated: a terminal with partially refreshed data is
// strictly better than one that aborts entirely.
type BootstrapResult struct {
	SectionCounts map[string]int    `json:"sectionCounts"`
	SectionErrors map[string]string `json:"sectionErrors,omitempty"`
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt"`
}

func (r BootstrapResult) Applied() int {
	total := 0
	for _, n := range r.SectionCounts {
		total += n
	}
	return total
}

type FlushResult struct {
	SyncedIds        []string `json:"syncedIds"`
	FailedIds        []string `json:"failedIds"`
	MissingIds       []string `json:"missingIds,omitempty"`
	SyncedLogCount   int      `json:"syncedLogCount"`
	PendingRemaining int64    `json:"pendingRemaining"`
}

// ReconciliationReport is the ephemeral output of one merge reconciler run,
// surfaced to the operator and discarded.
type ReconciliationReport struct {
	Inserted   map[string]int `json:"inserted"`
	Skipped    map[string]int `json:"skipped"`
	Warnings   []string       `json:"warnings,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	DurationMs int64          `json:"durationMs"`
}

func (r *ReconciliationReport) TotalInserted() int {
	total := 0
	for _, n := range r.Inserted {
		total += n
	}
	return total
}

func (r *ReconciliationReport) TotalSkipped() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

type StatusResponse struct {
	TerminalId      string            `json:"terminalId"`
	Online          bool              `json:"online"`
	Phase           string            `json:"phase"`
	PendingCount    int64             `json:"pendingCount"`
	CatalogCounts   map[string]int64  `json:"catalogCounts"`
	LastBootstrapAt *string           `json:"lastBootstrapAt"`
	LastPushAt      *string           `json:"lastPushAt"`
	LastMergeAt     *string           `json:"lastMergeAt"`
}
