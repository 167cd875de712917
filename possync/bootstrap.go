package possync

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"github.com/sirupsen/logrus"
)

// SnapshotFetcher is the pull endpoint. Satisfied by *ServerClient.
type SnapshotFetcher interface {
	GetSnapshot(ctx context.Context, terminalId string) (SnapshotResponse, error)
}

// Bootstrapper pulls the server's canonical snapshot and idempotently
// upserts it into the local store. Re-running against an unchanged snapshot
// leaves the catalog identical.
type Bootstrapper struct {
	Client     SnapshotFetcher
	Logger     *logrus.Logger
	State      *StateManager
	TerminalId string
}

// Run fetches and applies one snapshot. A network failure returns
// ErrNetworkUnavailable for the caller to swallow; a server error is
// surfaced. Section failures are recorded in the result and logged, never
// propagated: each catalog section applies independently.
func (b *Bootstrapper) Run(ctx context.Context) (BootstrapResult, error) {
	release, err := b.State.Begin(PhaseBootstrapping)
	if err != nil {
		return BootstrapResult{}, err
	}
	defer release()
	return b.run(ctx)
}

func (b *Bootstrapper) run(ctx context.Context) (BootstrapResult, error) {
	result := BootstrapResult{
		SectionCounts: map[string]int{},
		SectionErrors: map[string]string{},
		StartedAt:     time.Now().UTC(),
	}

	snapshot, err := b.Client.GetSnapshot(ctx, b.TerminalId)
	if err != nil {
		result.FinishedAt = time.Now().UTC()
		return result, err
	}

	sections := []struct {
		name  string
		apply func() (int, error)
	}{
		{models.EntityTypeSetting, func() (int, error) {
			return len(snapshot.Settings), models.UpsertSettings(ctx, snapshot.Settings)
		}},
		{models.EntityTypeCategory, func() (int, error) {
			return len(snapshot.Categories), models.UpsertCategories(ctx, snapshot.Categories)
		}},
		{models.EntityTypeProduct, func() (int, error) {
			return len(snapshot.Products), models.UpsertProducts(ctx, snapshot.Products)
		}},
		{models.EntityTypeTable, func() (int, error) {
			return len(snapshot.Tables), models.UpsertDiningTables(ctx, snapshot.Tables)
		}},
		{"recent_transactions", func() (int, error) {
			return len(snapshot.RecentTransactions), models.UpsertSyncedTransactions(ctx, snapshot.RecentTransactions)
		}},
		{"held_transactions", func() (int, error) {
			for i := range snapshot.HeldTransactions {
				snapshot.HeldTransactions[i].OrderStatus = models.OrderStatusHeld
			}
			return len(snapshot.HeldTransactions), models.UpsertSyncedTransactions(ctx, snapshot.HeldTransactions)
		}},
	}

	for _, section := range sections {
		count, sectionErr := section.apply()
		if sectionErr != nil {
			result.SectionErrors[section.name] = sectionErr.Error()
			if b.Logger != nil {
				config.LogError(b.Logger, "possync", "Bootstrap", section.name, nil, sectionErr)
			}
			continue
		}
		result.SectionCounts[section.name] = count
	}

	result.FinishedAt = time.Now().UTC()

	if err := models.AdvanceBootstrapCursor(ctx, b.TerminalId, result.FinishedAt); err != nil {
		if b.Logger != nil {
			config.LogError(b.Logger, "possync", "Bootstrap", "advance cursor", nil, err)
		}
	}

	if b.Logger != nil {
		b.Logger.WithFields(logrus.Fields{
			"module":        "possync",
			"terminal_id":   b.TerminalId,
			"sectionCounts": result.SectionCounts,
			"sectionErrors": len(result.SectionErrors),
		}).Info("bootstrap completed")
	}
	return result, nil
}
