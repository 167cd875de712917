package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"gorm.io/gorm"
)

// SyncCursor records the last successful bootstrap/push/merge times for this
// terminal. One row per terminal id; persisted alongside the durable log so
// the status surface survives restarts.
type SyncCursor struct {
	ID              int        `gorm:"primary_key" json:"id"`
	TerminalId      string     `gorm:"size:64;uniqueIndex;not null" json:"terminal_id"`
	LastBootstrapAt *time.Time `json:"last_bootstrap_at"`
	LastPushAt      *time.Time `json:"last_push_at"`
	LastMergeAt     *time.Time `json:"last_merge_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetSyncCursor(ctx context.Context, terminalId string) (*SyncCursor, error) {
	var cursor SyncCursor
	err := config.GetDB().WithContext(ctx).Where("terminal_id = ?", terminalId).Take(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &SyncCursor{TerminalId: terminalId}, nil
		}
		return nil, err
	}
	return &cursor, nil
}

func AdvanceBootstrapCursor(ctx context.Context, terminalId string, at time.Time) error {
	return advanceCursor(ctx, terminalId, "last_bootstrap_at", at)
}

func AdvancePushCursor(ctx context.Context, terminalId string, at time.Time) error {
	return advanceCursor(ctx, terminalId, "last_push_at", at)
}

func AdvanceMergeCursor(ctx context.Context, terminalId string, at time.Time) error {
	return advanceCursor(ctx, terminalId, "last_merge_at", at)
}

func advanceCursor(ctx context.Context, terminalId string, column string, at time.Time) error {
	db := config.GetDB().WithContext(ctx)
	result := db.Model(&SyncCursor{}).
		Where("terminal_id = ?", terminalId).
		Update(column, at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	cursor := SyncCursor{TerminalId: terminalId}
	switch column {
	case "last_bootstrap_at":
		cursor.LastBootstrapAt = &at
	case "last_push_at":
		cursor.LastPushAt = &at
	case "last_merge_at":
		cursor.LastMergeAt = &at
	}
	return db.Create(&cursor).Error
}
