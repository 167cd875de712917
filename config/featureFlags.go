package config

import (
	"os"
	"strings"
)

// AutoBootstrapOnStart controls whether the sync worker attempts a catalog
// bootstrap when the service comes up. Disabled for terminals that must come
// up instantly on a known-bad link.
//
// Set via env:
// - AUTO_BOOTSTRAP_ON_START=false
func AutoBootstrapOnStart() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTO_BOOTSTRAP_ON_START")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SyncActivityLogs controls whether unsynced activity-log entries ride along
// with the transaction push batch.
//
// Set via env:
// - SYNC_ACTIVITY_LOGS=false
func SyncActivityLogs() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SYNC_ACTIVITY_LOGS")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
