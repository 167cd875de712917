package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
)

// setupTerminalDB opens a throwaway sqlite store for one test and returns a
// context carrying the terminal identity the model layer reads.
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
