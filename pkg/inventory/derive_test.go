package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStock(t *testing.T) {
	bands := Thresholds{MinimumStock: 5, MaximumStock: 100}

	tests := []struct {
		name       string
		current    int64
		thresholds Thresholds
		want       StockStatus
	}{
		{"empty", 0, bands, StockStatusOutOfStock},
		{"at minimum", 5, bands, StockStatusLowStock},
		{"between", 50, bands, StockStatusInStock},
		{"at maximum", 100, bands, StockStatusOverstock},
		{"no upper bound", 1000, Thresholds{MinimumStock: 5}, StockStatusInStock},
		{"zero minimum", 1, Thresholds{}, StockStatusInStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStock(tt.current, tt.thresholds))
		})
	}
}

func TestDeriveLedgerFields(t *testing.T) {
	item := DeriveLedgerFields(InventoryItem{
		CurrentStock:  75,
		ReservedStock: 5,
		UnitCost:      decimal.RequireFromString("2.00"),
		Thresholds:    Thresholds{MinimumStock: 10, ReorderPoint: 5},
	})

	assert.Equal(t, int64(70), item.AvailableStock)
	assert.Equal(t, "150.00", item.TotalValue.StringFixed(2))
	assert.Equal(t, StockStatusInStock, item.StockStatus)
}

func TestDeriveLedgerFields_Clamps(t *testing.T) {
	item := DeriveLedgerFields(InventoryItem{CurrentStock: -3, ReservedStock: 4})
	assert.Equal(t, int64(0), item.CurrentStock)
	assert.Equal(t, int64(0), item.ReservedStock)
	assert.Equal(t, int64(0), item.AvailableStock)

	item = DeriveLedgerFields(InventoryItem{CurrentStock: 3, ReservedStock: 9})
	assert.Equal(t, int64(3), item.ReservedStock)
	assert.Equal(t, int64(0), item.AvailableStock)
}

func TestEvaluateAlerts(t *testing.T) {
	// 低在庫と要発注は同時に成立する
	item := InventoryItem{CurrentStock: 3, Thresholds: Thresholds{MinimumStock: 5, MaximumStock: 100, ReorderPoint: 4}}
	assert.Equal(t, StockStatusLowStock, ClassifyStock(item.CurrentStock, item.Thresholds))
	assert.True(t, NeedsReorder(item))
	assert.Equal(t, []AlertType{AlertTypeLowStock, AlertTypeReorderRequired}, EvaluateAlerts(item))

	item.CurrentStock = 150
	assert.Equal(t, []AlertType{AlertTypeOverstock}, EvaluateAlerts(item))

	item.CurrentStock = 0
	assert.Equal(t, []AlertType{AlertTypeOutOfStock, AlertTypeReorderRequired}, EvaluateAlerts(item))

	item.CurrentStock = 50
	assert.Empty(t, EvaluateAlerts(item))
}

func TestAlertThreshold(t *testing.T) {
	bands := Thresholds{MinimumStock: 5, MaximumStock: 100, ReorderPoint: 8}
	assert.Equal(t, int64(5), alertThreshold(AlertTypeLowStock, bands))
	assert.Equal(t, int64(100), alertThreshold(AlertTypeOverstock, bands))
	assert.Equal(t, int64(8), alertThreshold(AlertTypeReorderRequired, bands))
	assert.Equal(t, int64(0), alertThreshold(AlertTypeOutOfStock, bands))
}

func TestWeightedAverageCost(t *testing.T) {
	tests := []struct {
		name     string
		onHand   int64
		average  string
		quantity int64
		unitCost string
		want     string
	}{
		{"equal halves", 10, "2", 10, "4", "3.0000"},
		{"empty row takes receipt cost", 0, "9", 5, "1.5", "1.5000"},
		{"rounded to four places", 3, "1", 1, "2", "1.2500"},
		{"repeating fraction", 2, "1", 1, "2", "1.3333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := weightedAverageCost(tt.onHand, decimal.RequireFromString(tt.average), tt.quantity, decimal.RequireFromString(tt.unitCost))
			assert.Equal(t, tt.want, got.StringFixed(costPrecision))
		})
	}
}

func TestBuildReport(t *testing.T) {
	items := []InventoryItem{
		DeriveLedgerFields(InventoryItem{ProductID: 1, LocationID: 1, CurrentStock: 10, ReservedStock: 2, UnitCost: decimal.NewFromInt(3)}),
		DeriveLedgerFields(InventoryItem{ProductID: 1, LocationID: 2, CurrentStock: 0, UnitCost: decimal.NewFromInt(3)}),
		DeriveLedgerFields(InventoryItem{ProductID: 2, LocationID: 1, CurrentStock: 4, UnitCost: decimal.NewFromInt(1), Thresholds: Thresholds{MinimumStock: 5}}),
	}

	report := buildReport(items, fixedTime)
	assert.Equal(t, 2, report.TotalProducts)
	assert.Equal(t, 3, report.TotalItems)
	assert.Equal(t, int64(14), report.TotalStock)
	assert.Equal(t, int64(2), report.TotalReserved)
	assert.Equal(t, int64(12), report.TotalAvailable)
	assert.Equal(t, "34", report.TotalValue.String())
	assert.Equal(t, 1, report.LowStockItems)
	assert.Equal(t, 1, report.OutOfStockItems)
	assert.Equal(t, 1, report.ReorderRequired)
	assert.Equal(t, fixedTime, report.GeneratedAt)
}
