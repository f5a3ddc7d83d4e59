package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// costPrecision is the number of decimal places kept for average costs.
const costPrecision = 4

// LocationValuation is the stock value held at one location
// ロケーション別の在庫評価額
type LocationValuation struct {
	LocationID int64           `json:"location_id"`
	Items      int             `json:"items"`
	TotalStock int64           `json:"total_stock"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// weightedAverageCost folds a receipt of quantity units at unitCost into the running average
// 加重平均法で平均原価を更新
func weightedAverageCost(onHand int64, average decimal.Decimal, quantity int64, unitCost decimal.Decimal) decimal.Decimal {
	total := onHand + quantity
	if total <= 0 {
		return unitCost
	}
	if onHand <= 0 {
		return unitCost.Round(costPrecision)
	}
	held := average.Mul(decimal.NewFromInt(onHand))
	received := unitCost.Mul(decimal.NewFromInt(quantity))
	return held.Add(received).Div(decimal.NewFromInt(total)).Round(costPrecision)
}

// buildReport aggregates ledger rows into a Report
// 台帳行からレポートを集計
func buildReport(items []InventoryItem, at time.Time) Report {
	report := Report{TotalValue: decimal.Zero, GeneratedAt: at}
	products := make(map[int64]struct{})
	for _, item := range items {
		products[item.ProductID] = struct{}{}
		report.TotalItems++
		report.TotalStock += item.CurrentStock
		report.TotalReserved += item.ReservedStock
		report.TotalAvailable += item.AvailableStock
		report.TotalValue = report.TotalValue.Add(item.TotalValue)
		switch item.StockStatus {
		case StockStatusLowStock:
			report.LowStockItems++
		case StockStatusOutOfStock:
			report.OutOfStockItems++
		case StockStatusOverstock:
			report.OverstockItems++
		}
		if NeedsReorder(item) {
			report.ReorderRequired++
		}
	}
	report.TotalProducts = len(products)
	return report
}

// ValuationByLocation sums the ledger value per location
// ロケーション別の在庫評価額を計算
func (m *Manager) ValuationByLocation(ctx context.Context) ([]LocationValuation, error) {
	items, err := m.storage.ListItems(ctx, ItemFilter{})
	if err != nil {
		return nil, NewStorageError("list_items", "在庫一覧取得に失敗しました", err)
	}

	byLocation := make(map[int64]*LocationValuation)
	for _, item := range items {
		v, ok := byLocation[item.LocationID]
		if !ok {
			v = &LocationValuation{LocationID: item.LocationID, TotalValue: decimal.Zero}
			byLocation[item.LocationID] = v
		}
		v.Items++
		v.TotalStock += item.CurrentStock
		v.TotalValue = v.TotalValue.Add(item.TotalValue)
	}

	result := make([]LocationValuation, 0, len(byLocation))
	for _, v := range byLocation {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LocationID < result[j].LocationID })

	m.logger.Debug("在庫評価額計算完了", zap.Int("locations", len(result)))
	return result, nil
}
