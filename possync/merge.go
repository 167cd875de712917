package possync

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/sirupsen/logrus"
)

// BatchMerger is the merge endpoint. Satisfied by *ServerClient.
type BatchMerger interface {
	MergeBatch(ctx context.Context, req MergeRequest) (MergeResponse, error)
}

// Reconciler folds the entire local store, including historical rows the
// push synchronizer already drained, into a shared remote store. Entities
// already present remotely are skipped, never overwritten. Operator-invoked;
// failures surface with no automatic retry.
type Reconciler struct {
	Client     BatchMerger
	Logger     *logrus.Logger
	State      *StateManager
	TerminalId string
	BatchSize  int
}

func NewReconciler(client BatchMerger, logger *logrus.Logger, state *StateManager, terminalId string) *Reconciler {
	return &Reconciler{
		Client:     client,
		Logger:     logger,
		State:      state,
		TerminalId: terminalId,
		BatchSize:  utils.EnvInt("MERGE_BATCH_SIZE", 200),
	}
}

func (r *Reconciler) Reconcile(ctx context.Context) (*ReconciliationReport, error) {
	release, err := r.State.Begin(PhaseMerging)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &ReconciliationReport{
		Inserted:  map[string]int{},
		Skipped:   map[string]int{},
		StartedAt: time.Now().UTC(),
	}

	steps := []struct {
		entityType string
		run        func() error
	}{
		{models.EntityTypeCategory, func() error {
			return mergeEntities[models.CachedCategory](ctx, r, report, models.EntityTypeCategory)
		}},
		{models.EntityTypeProduct, func() error {
			return mergeEntities[models.CachedProduct](ctx, r, report, models.EntityTypeProduct)
		}},
		{models.EntityTypeTable, func() error {
			return mergeEntities[models.CachedDiningTable](ctx, r, report, models.EntityTypeTable)
		}},
		{models.EntityTypeTransaction, func() error {
			return mergeEntities[models.PendingTransaction](ctx, r, report, models.EntityTypeTransaction)
		}},
		{models.EntityTypeActivityLog, func() error {
			return mergeEntities[models.ActivityLog](ctx, r, report, models.EntityTypeActivityLog)
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			report.FinishedAt = time.Now().UTC()
			report.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
			return report, err
		}
	}

	report.FinishedAt = time.Now().UTC()
	report.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()

	if err := models.AdvanceMergeCursor(ctx, r.TerminalId, report.FinishedAt); err != nil && r.Logger != nil {
		r.Logger.WithFields(logrus.Fields{
			"module":      "possync",
			"terminal_id": r.TerminalId,
		}).Error("advance merge cursor: " + err.Error())
	}

	if r.Logger != nil {
		r.Logger.WithFields(logrus.Fields{
			"module":      "possync",
			"terminal_id": r.TerminalId,
			"inserted":    report.TotalInserted(),
			"skipped":     report.TotalSkipped(),
			"warnings":    len(report.Warnings),
			"duration_ms": report.DurationMs,
		}).Info("reconciliation completed")
	}
	return report, nil
}

func mergeEntities[T any](ctx context.Context, r *Reconciler, report *ReconciliationReport, entityType string) error {
	return models.FindEntitiesInBatches[T](ctx, r.BatchSize, func(batch []T) error {
		items := make([]json.RawMessage, 0, len(batch))
		for i := range batch {
			raw, err := json.Marshal(batch[i])
			if err != nil {
				return err
			}
			items = append(items, raw)
		}

		resp, err := r.Client.MergeBatch(ctx, MergeRequest{
			TerminalId: r.TerminalId,
			EntityType: entityType,
			Items:      items,
		})
		if err != nil {
			return err
		}

		report.Inserted[entityType] += len(resp.InsertedIds)
		report.Skipped[entityType] += len(resp.SkippedIds)
		report.Warnings = append(report.Warnings, resp.Warnings...)
		return nil
	})
}
