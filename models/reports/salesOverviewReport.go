package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"github.com/shopspring/decimal"
)

// SalesOverviewResponse mirrors the server's sales overview report so the
// presentation layer can be agnostic of the data source while offline.
type SalesOverviewResponse struct {
	TotalSales       decimal.Decimal `json:"totalSales"`
	TotalTax         decimal.Decimal `json:"totalTax"`
	TotalDiscount    decimal.Decimal `json:"totalDiscount"`
	TransactionCount int64           `json:"transactionCount"`
	AverageSale      decimal.Decimal `json:"averageSale"`
}

// GetSalesOverviewReport aggregates completed orders from the local
// write-ahead log, regardless of sync status. Monetary aggregation is plain
// summation over the transaction total fields.
func GetSalesOverviewReport(ctx context.Context, fromDate time.Time, toDate time.Time) (*SalesOverviewResponse, error) {
	transactions, err := completedOrders(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	response := &SalesOverviewResponse{
		TotalSales:    decimal.Zero,
		TotalTax:      decimal.Zero,
		TotalDiscount: decimal.Zero,
		AverageSale:   decimal.Zero,
	}
	for _, tx := range transactions {
		response.TotalSales = response.TotalSales.Add(tx.TotalAmount)
		response.TotalTax = response.TotalTax.Add(tx.TaxAmount)
		response.TotalDiscount = response.TotalDiscount.Add(tx.DiscountAmount)
		response.TransactionCount++
	}
	if response.TransactionCount > 0 {
		response.AverageSale = response.TotalSales.
			Div(decimal.NewFromInt(response.TransactionCount)).
			Round(4)
	}
	return response, nil
}

// completedOrders is the shared report base: COMPLETED orders in range,
// excluding held and void transactions and non-order entries.
func completedOrders(ctx context.Context, fromDate time.Time, toDate time.Time) ([]models.PendingTransaction, error) {
	var transactions []models.PendingTransaction
	err := config.GetDB().WithContext(ctx).
		Where("transaction_type = ?", models.TransactionTypeOrder).
		Where("order_status = ?", models.OrderStatusCompleted).
		Where("transaction_date_time BETWEEN ? AND ?", fromDate, toDate).
		Order("transaction_date_time ASC").
		Find(&transactions).Error
	return transactions, err
}
