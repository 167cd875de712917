package models

import (
	"log"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&CachedSetting{}, &CachedCategory{}, &CachedProduct{}, &CachedDiningTable{},
		&PendingTransaction{},
		&ActivityLog{},
		&SyncCursor{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
