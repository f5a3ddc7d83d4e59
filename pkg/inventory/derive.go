package inventory

import "github.com/shopspring/decimal"

// DeriveLedgerFields returns item with every derived field recomputed.
// CurrentStock is clamped at 0 and ReservedStock into [0, CurrentStock] first,
// so the result always satisfies available = current - reserved.
// 派生フィールド（利用可能数・評価額・ステータス）を再計算
func DeriveLedgerFields(item InventoryItem) InventoryItem {
	if item.CurrentStock < 0 {
		item.CurrentStock = 0
	}
	if item.ReservedStock < 0 {
		item.ReservedStock = 0
	}
	if item.ReservedStock > item.CurrentStock {
		item.ReservedStock = item.CurrentStock
	}
	item.AvailableStock = item.CurrentStock - item.ReservedStock
	item.TotalValue = item.UnitCost.Mul(decimal.NewFromInt(item.CurrentStock))
	item.StockStatus = ClassifyStock(item.CurrentStock, item.Thresholds)
	return item
}

// ClassifyStock maps a stock level onto its band. A MaximumStock of 0 means no upper bound.
// 在庫数からステータスを判定
func ClassifyStock(current int64, t Thresholds) StockStatus {
	switch {
	case current <= 0:
		return StockStatusOutOfStock
	case current <= t.MinimumStock:
		return StockStatusLowStock
	case t.MaximumStock > 0 && current >= t.MaximumStock:
		return StockStatusOverstock
	default:
		return StockStatusInStock
	}
}

// NeedsReorder reports whether the row is at or below its reorder point.
// This is independent of StockStatus.
// 発注点以下かどうか（ステータスとは独立）
func NeedsReorder(item InventoryItem) bool {
	return item.CurrentStock <= item.ReorderPoint
}

// EvaluateAlerts lists every alert condition that holds for item.
// A row can be low_stock and reorder_required at the same time.
// 現在の台帳状態から成立するアラート種別を列挙
func EvaluateAlerts(item InventoryItem) []AlertType {
	var alerts []AlertType
	switch ClassifyStock(item.CurrentStock, item.Thresholds) {
	case StockStatusOutOfStock:
		alerts = append(alerts, AlertTypeOutOfStock)
	case StockStatusLowStock:
		alerts = append(alerts, AlertTypeLowStock)
	case StockStatusOverstock:
		alerts = append(alerts, AlertTypeOverstock)
	}
	if NeedsReorder(item) {
		alerts = append(alerts, AlertTypeReorderRequired)
	}
	return alerts
}

// alertThreshold returns the threshold an alert type was measured against.
func alertThreshold(alertType AlertType, t Thresholds) int64 {
	switch alertType {
	case AlertTypeLowStock:
		return t.MinimumStock
	case AlertTypeOverstock:
		return t.MaximumStock
	case AlertTypeReorderRequired:
		return t.ReorderPoint
	}
	return 0
}
