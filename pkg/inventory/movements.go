package inventory

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ChainBreak is a movement whose before-quantity does not continue the log
// 移動履歴の不整合箇所
type ChainBreak struct {
	MovementID     int64 `json:"movement_id"`
	ExpectedBefore int64 `json:"expected_before"`
	ActualBefore   int64 `json:"actual_before"`
}

// ChainReport is the result of replaying a row's movement log
// 移動履歴の検証結果
type ChainReport struct {
	ProductID      int64        `json:"product_id"`
	LocationID     int64        `json:"location_id"`
	Movements      int          `json:"movements"`
	CurrentStock   int64        `json:"current_stock"`
	LastStockAfter int64        `json:"last_stock_after"`
	Valid          bool         `json:"valid"`
	Breaks         []ChainBreak `json:"breaks,omitempty"`
}

// ListMovements lists movements newest first. The limit defaults to the configured
// list limit and is capped at the configured maximum.
// 在庫移動履歴を取得
func (m *Manager) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	if filter.MovementType != nil && !filter.MovementType.Valid() {
		return nil, NewValidationError("type", "無効な移動種別です", string(*filter.MovementType))
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, NewValidationError("from", "開始日時が終了日時より後です", filter.From.String())
	}

	switch {
	case filter.Limit <= 0:
		filter.Limit = m.config.MovementListLimit
	case filter.Limit > m.config.MaxMovementListLimit:
		filter.Limit = m.config.MaxMovementListLimit
	}

	movements, err := m.storage.ListMovements(ctx, filter)
	if err != nil {
		return nil, NewStorageError("list_movements", "在庫移動履歴取得に失敗しました", err)
	}
	return movements, nil
}

// VerifyChain replays the movement log of a row oldest first. Each stockBefore must
// equal the previous stockAfter (0 for the first movement) and the last stockAfter
// must equal the row's current stock.
// 移動履歴の連続性を検証
func (m *Manager) VerifyChain(ctx context.Context, productID, locationID int64) (*ChainReport, error) {
	if err := validateKey(productID, locationID); err != nil {
		return nil, err
	}

	item, err := m.storage.GetItem(ctx, productID, locationID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, NewStorageError("get_item", "在庫取得に失敗しました", err)
	}

	movements, err := m.storage.ListMovements(ctx, MovementFilter{
		ProductID:  &productID,
		LocationID: &locationID,
		Ascending:  true,
	})
	if err != nil {
		return nil, NewStorageError("list_movements", "在庫移動履歴取得に失敗しました", err)
	}

	report := &ChainReport{
		ProductID:    productID,
		LocationID:   locationID,
		Movements:    len(movements),
		CurrentStock: item.CurrentStock,
	}

	var expected int64
	for _, mv := range movements {
		if mv.StockBefore != expected {
			report.Breaks = append(report.Breaks, ChainBreak{
				MovementID:     mv.ID,
				ExpectedBefore: expected,
				ActualBefore:   mv.StockBefore,
			})
		}
		expected = mv.StockAfter
	}
	report.LastStockAfter = expected
	report.Valid = len(report.Breaks) == 0 && expected == item.CurrentStock

	if !report.Valid {
		m.logger.Warn("在庫移動履歴に不整合があります",
			zap.Int64("product_id", productID),
			zap.Int64("location_id", locationID),
			zap.Int("breaks", len(report.Breaks)),
			zap.Int64("current_stock", item.CurrentStock),
			zap.Int64("last_stock_after", expected),
		)
	}
	return report, nil
}
