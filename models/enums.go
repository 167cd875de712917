package models

// TransactionStatus is the sync lifecycle of a locally originated
// transaction. A row never moves backwards from SYNCED.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSyncing TransactionStatus = "SYNCING"
	TransactionStatusSynced  TransactionStatus = "SYNCED"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// OrderStatus is the business lifecycle of the order itself, independent of
// sync state. Reports only count COMPLETED orders.
type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusHeld      OrderStatus = "HELD"
	OrderStatusVoid      OrderStatus = "VOID"
)

type TransactionType string

const (
	TransactionTypeOrder    TransactionType = "ORDER"
	TransactionTypeActivity TransactionType = "ACTIVITY"
)

// Entity types shared by the bootstrap snapshot and the merge reconciler.
const (
	EntityTypeSetting     = "setting"
	EntityTypeCategory    = "category"
	EntityTypeProduct     = "product"
	EntityTypeTable       = "table"
	EntityTypeTransaction = "transaction"
	EntityTypeActivityLog = "activity_log"
)
