package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethodBreakdownResponse struct {
	PaymentMethod    string          `json:"paymentMethod"`
	TransactionCount int64           `json:"transactionCount"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Percentage       decimal.Decimal `json:"percentage"`
}

// GetPaymentMethodBreakdownReport splits completed sales by payment method.
// Percentages are computed against the filtered set's sum, not the global
// set.
func GetPaymentMethodBreakdownReport(ctx context.Context, fromDate time.Time, toDate time.Time) ([]*PaymentMethodBreakdownResponse, error) {
	transactions, err := completedOrders(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	byMethod := map[string]*PaymentMethodBreakdownResponse{}
	grandTotal := decimal.Zero
	for _, tx := range transactions {
		method := tx.PaymentMethod
		if method == "" {
			method = "UNKNOWN"
		}
		row, ok := byMethod[method]
		if !ok {
			row = &PaymentMethodBreakdownResponse{
				PaymentMethod: method,
				TotalAmount:   decimal.Zero,
				Percentage:    decimal.Zero,
			}
			byMethod[method] = row
		}
		row.TransactionCount++
		row.TotalAmount = row.TotalAmount.Add(tx.TotalAmount)
		grandTotal = grandTotal.Add(tx.TotalAmount)
	}

	hundred := decimal.NewFromInt(100)
	results := make([]*PaymentMethodBreakdownResponse, 0, len(byMethod))
	for _, row := range byMethod {
		if grandTotal.IsPositive() {
			row.Percentage = row.TotalAmount.Mul(hundred).Div(grandTotal).Round(2)
		}
		results = append(results, row)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].TotalAmount.Equal(results[j].TotalAmount) {
			return results[i].TotalAmount.GreaterThan(results[j].TotalAmount)
		}
		return results[i].PaymentMethod < results[j].PaymentMethod
	})
	return results, nil
}
