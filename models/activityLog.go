package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/google/uuid"
)

// ActivityLog records terminal-side operator actions (logins, voids, drawer
// events). Entries ride along with the transaction push batch and flip
// IsSynced on acknowledgement.
type ActivityLog struct {
	ID          int       `gorm:"primary_key" json:"id"`
	LogId       string    `gorm:"size:64;uniqueIndex;not null" json:"log_id"`
	BusinessId  string    `gorm:"index;not null" json:"business_id"`
	TerminalId  string    `gorm:"size:64;index" json:"terminal_id"`
	Action      string    `gorm:"size:100;not null" json:"action"`
	Description string    `gorm:"type:text" json:"description"`
	UserName    string    `gorm:"size:100" json:"user_name"`
	IsSynced    *bool     `gorm:"not null;default:false;index" json:"is_synced"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewActivityLog struct {
	Action      string `json:"action" validate:"required"`
	Description string `json:"description"`
}

func CreateActivityLog(ctx context.Context, input *NewActivityLog) (*ActivityLog, error) {
	if input == nil || strings.TrimSpace(input.Action) == "" {
		return nil, &utils.ValidationError{Field: "Action", Message: "action is required"}
	}

	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	terminalId, _ := utils.GetTerminalIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	record := ActivityLog{
		LogId:       uuid.NewString(),
		BusinessId:  businessId,
		TerminalId:  terminalId,
		Action:      input.Action,
		Description: input.Description,
		UserName:    userName,
		IsSynced:    utils.NewFalse(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func ListUnsyncedActivityLogs(ctx context.Context) ([]ActivityLog, error) {
	var logs []ActivityLog
	err := config.GetDB().WithContext(ctx).
		Where("is_synced = ?", false).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

func MarkActivityLogsSynced(ctx context.Context, logIds []string) error {
	if len(logIds) == 0 {
		return nil
	}
	return config.GetDB().WithContext(ctx).
		Model(&ActivityLog{}).
		Where("log_id IN ?", logIds).
		Update("is_synced", true).Error
}
