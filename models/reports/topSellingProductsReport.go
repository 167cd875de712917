package reports

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/shopspring/decimal"
)

type TopSellingProductResponse struct {
	ProductServerId string          `json:"productServerId"`
	ProductName     string          `json:"productName"`
	ProductSku      string          `json:"productSku,omitempty"`
	SoldQty         decimal.Decimal `json:"soldQty"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
}

// GetTopSellingProductsReport ranks products by sold quantity over the
// denormalized order lines. Lines without a product server id are grouped by
// name (open-keyed items stay reportable).
func GetTopSellingProductsReport(ctx context.Context, fromDate time.Time, toDate time.Time, limit int) ([]*TopSellingProductResponse, error) {
	transactions, err := completedOrders(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	byProduct := map[string]*TopSellingProductResponse{}
	for _, tx := range transactions {
		if len(tx.DetailsJSON) == 0 {
			continue
		}
		var lines []models.TransactionLine
		if err := utils.UnmarshalFromJSON(tx.DetailsJSON, &lines); err != nil {
			continue
		}
		for _, line := range lines {
			key := line.ProductServerId
			if key == "" {
				key = "name:" + line.Name
			}
			row, ok := byProduct[key]
			if !ok {
				row = &TopSellingProductResponse{
					ProductServerId: line.ProductServerId,
					ProductName:     line.Name,
					ProductSku:      line.Sku,
					SoldQty:         decimal.Zero,
					TotalAmount:     decimal.Zero,
				}
				byProduct[key] = row
			}
			row.SoldQty = row.SoldQty.Add(line.Qty)
			row.TotalAmount = row.TotalAmount.Add(line.LineTotal)
		}
	}

	results := make([]*TopSellingProductResponse, 0, len(byProduct))
	for _, row := range byProduct {
		results = append(results, row)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].SoldQty.Equal(results[j].SoldQty) {
			return results[i].SoldQty.GreaterThan(results[j].SoldQty)
		}
		return results[i].ProductName < results[j].ProductName
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
