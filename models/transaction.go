package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingTransaction is the terminal's write-ahead log entry for a locally
// created order. TransactionId is the client-generated idempotency key; the
// server must treat re-delivery of a known key as success, not a new entity.
// Financial fields are immutable after enqueue; only Status and sync
// metadata change.
type PendingTransaction struct {
	ID                  int               `gorm:"primary_key" json:"id"`
	TransactionId       string            `gorm:"size:64;uniqueIndex;not null" json:"transaction_id"`
	BusinessId          string            `gorm:"index;not null" json:"business_id"`
	TerminalId          string            `gorm:"size:64;index;not null" json:"terminal_id"`
	TransactionType     TransactionType   `gorm:"size:20;not null;default:ORDER" json:"transaction_type"`
	OrderNumber         string            `gorm:"size:100" json:"order_number"`
	OrderStatus         OrderStatus       `gorm:"size:20;not null;default:COMPLETED" json:"order_status"`
	TableServerId       string            `gorm:"size:64" json:"table_server_id"`
	PaymentMethod       string            `gorm:"size:100" json:"payment_method"`
	SubTotal            decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"sub_total"`
	TaxAmount           decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	DiscountAmount      decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TotalAmount         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	DetailsJSON         []byte            `gorm:"type:json" json:"details"`
	Status              TransactionStatus `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	SyncAttempts        int               `gorm:"default:0" json:"sync_attempts"`
	LastSyncError       *string           `gorm:"type:text" json:"last_sync_error"`
	SyncedAt            *time.Time        `json:"synced_at"`
	TransactionDateTime time.Time         `gorm:"index;not null" json:"transaction_date_time"`
	CreatedAt           time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// TransactionLine is one denormalized order line. Catalog data is copied in
// at creation time so the catalog cache can be wiped without corrupting the
// queue.
type TransactionLine struct {
	ProductServerId string          `json:"product_server_id"`
	Name            string          `json:"name" validate:"required"`
	Sku             string          `json:"sku"`
	Qty             decimal.Decimal `json:"qty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

type NewPendingTransaction struct {
	TransactionId       string            `json:"transaction_id" validate:"required"`
	TransactionType     TransactionType   `json:"transaction_type"`
	OrderNumber         string            `json:"order_number"`
	OrderStatus         OrderStatus       `json:"order_status"`
	TableServerId       string            `json:"table_server_id"`
	PaymentMethod       string            `json:"payment_method"`
	SubTotal            decimal.Decimal   `json:"sub_total"`
	TaxAmount           decimal.Decimal   `json:"tax_amount"`
	DiscountAmount      decimal.Decimal   `json:"discount_amount"`
	TotalAmount         decimal.Decimal   `json:"total_amount"`
	Details             []TransactionLine `json:"details"`
	TransactionDateTime time.Time         `json:"transaction_date_time"`
}

// EnqueueTransaction validates and durably appends a transaction to the
// local queue as PENDING. A missing idempotency key is a ValidationError and
// never enters the queue.
func EnqueueTransaction(ctx context.Context, input *NewPendingTransaction) (*PendingTransaction, error) {
	if input == nil || strings.TrimSpace(input.TransactionId) == "" {
		return nil, &utils.ValidationError{Field: "TransactionId", Message: "idempotency key is required"}
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	terminalId, _ := utils.GetTerminalIdFromContext(ctx)

	detailsJSON, err := utils.MarshalToJSON(input.Details)
	if err != nil {
		return nil, err
	}

	txDateTime := input.TransactionDateTime
	if txDateTime.IsZero() {
		txDateTime = time.Now().UTC()
	}
	orderStatus := input.OrderStatus
	if orderStatus == "" {
		orderStatus = OrderStatusCompleted
	}
	txType := input.TransactionType
	if txType == "" {
		txType = TransactionTypeOrder
	}

	record := PendingTransaction{
		TransactionId:       strings.TrimSpace(input.TransactionId),
		BusinessId:          businessId,
		TerminalId:          terminalId,
		TransactionType:     txType,
		OrderNumber:         input.OrderNumber,
		OrderStatus:         orderStatus,
		TableServerId:       input.TableServerId,
		PaymentMethod:       input.PaymentMethod,
		SubTotal:            input.SubTotal,
		TaxAmount:           input.TaxAmount,
		DiscountAmount:      input.DiscountAmount,
		TotalAmount:         input.TotalAmount,
		DetailsJSON:         detailsJSON,
		Status:              TransactionStatusPending,
		TransactionDateTime: txDateTime,
	}
	if err := config.GetDB().WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpsertSyncedTransactions applies server-origin transactions from a
// bootstrap snapshot. Rows land already SYNCED; an existing row with the
// same idempotency key is left untouched so a local PENDING write can never
// be clobbered by a pull.
func UpsertSyncedTransactions(ctx context.Context, transactions []PendingTransaction) error {
	if len(transactions) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range transactions {
		transactions[i].Status = TransactionStatusSynced
		if transactions[i].SyncedAt == nil {
			transactions[i].SyncedAt = &now
		}
	}
	db := config.GetDB().WithContext(ctx)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(&transactions).Error
}

func ListPendingTransactions(ctx context.Context) ([]PendingTransaction, error) {
	var pending []PendingTransaction
	err := config.GetDB().WithContext(ctx).
		Where("status = ?", TransactionStatusPending).
		Order("id ASC").
		Find(&pending).Error
	return pending, err
}

func CountPendingTransactions(ctx context.Context) (int64, error) {
	var count int64
	err := config.GetDB().WithContext(ctx).
		Model(&PendingTransaction{}).
		Where("status = ?", TransactionStatusPending).
		Count(&count).Error
	return count, err
}

// MarkTransactionsSyncing claims PENDING rows for an in-flight flush.
func MarkTransactionsSyncing(ctx context.Context, transactionIds []string) error {
	if len(transactionIds) == 0 {
		return nil
	}
	return config.GetDB().WithContext(ctx).
		Model(&PendingTransaction{}).
		Where("transaction_id IN ? AND status = ?", transactionIds, TransactionStatusPending).
		Update("status", TransactionStatusSyncing).Error
}

// MarkTransactionsSynced finalizes rows the server acknowledged. The status
// guard keeps the update idempotent across a resubmitted batch.
func MarkTransactionsSynced(ctx context.Context, transactionIds []string) error {
	if len(transactionIds) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return config.GetDB().WithContext(ctx).
		Model(&PendingTransaction{}).
		Where("transaction_id IN ? AND status <> ?", transactionIds, TransactionStatusSynced).
		Updates(map[string]interface{}{
			"status":          TransactionStatusSynced,
			"synced_at":       now,
			"last_sync_error": nil,
		}).Error
}

// RequeueTransactions moves rejected rows back to PENDING for a later flush
// cycle. SYNCED rows are never touched.
func RequeueTransactions(ctx context.Context, transactionIds []string, syncErr string) error {
	if len(transactionIds) == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"status":        TransactionStatusPending,
		"sync_attempts": gorm.Expr("sync_attempts + 1"),
	}
	if syncErr != "" {
		updates["last_sync_error"] = syncErr
	}
	return config.GetDB().WithContext(ctx).
		Model(&PendingTransaction{}).
		Where("transaction_id IN ? AND status <> ?", transactionIds, TransactionStatusSynced).
		Updates(updates).Error
}

// MarkTransactionsFailed flags rows for manual review. Used when the server
// verdict omits an id entirely, which guards against a server that silently
// drops items.
func MarkTransactionsFailed(ctx context.Context, transactionIds []string, syncErr string) error {
	if len(transactionIds) == 0 {
		return nil
	}
	return config.GetDB().WithContext(ctx).
		Model(&PendingTransaction{}).
		Where("transaction_id IN ? AND status <> ?", transactionIds, TransactionStatusSynced).
		Updates(map[string]interface{}{
			"status":          TransactionStatusFailed,
			"sync_attempts":   gorm.Expr("sync_attempts + 1"),
			"last_sync_error": syncErr,
		}).Error
}

// ResetStuckSyncing returns SYNCING rows to PENDING. Run at startup: rows
// can only be stuck in SYNCING if the process died mid-flush, and the
// idempotency key makes re-submission safe.
func ResetStuckSyncing(ctx context.Context) (int64, error) {
	result := config.GetDB().WithContext(ctx).
		Model(&PendingTransaction{}).
		Where("status = ?", TransactionStatusSyncing).
		Update("status", TransactionStatusPending)
	return result.RowsAffected, result.Error
}

func GetTransactionByTransactionId(ctx context.Context, transactionId string) (*PendingTransaction, error) {
	var record PendingTransaction
	if err := config.GetDB().WithContext(ctx).Where("transaction_id = ?", transactionId).Take(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
