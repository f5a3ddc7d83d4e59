package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxBatchSize = 500

	reasonInitialStock    = "Initial stock"
	reasonOrderFulfilment = "Order fulfillment"
)

// GetLevel gets the ledger row for a product at a location
// 商品・ロケーションの在庫レベルを取得
func (m *Manager) GetLevel(ctx context.Context, productID, locationID int64) (Outcome, error) {
	if err := validateKey(productID, locationID); err != nil {
		return Outcome{}, err
	}

	item, err := m.storage.GetItem(ctx, productID, locationID)
	if errors.Is(err, ErrItemNotFound) {
		return Outcome{Kind: OutcomeNotFound}, nil
	}
	if err != nil {
		return Outcome{}, NewStorageError("get_item", "在庫取得に失敗しました", err)
	}
	return Outcome{Kind: OutcomeOK, Item: item}, nil
}

// ListLevels lists every location's ledger row for a product
// 商品の全ロケーションの在庫レベルを取得
func (m *Manager) ListLevels(ctx context.Context, productID int64) ([]InventoryItem, error) {
	if err := ValidateID("product_id", productID); err != nil {
		return nil, err
	}
	items, err := m.storage.ListItems(ctx, ItemFilter{ProductID: &productID})
	if err != nil {
		return nil, NewStorageError("list_items", "在庫一覧取得に失敗しました", err)
	}
	return items, nil
}

// CreateItem opens a ledger row. The product must exist in the catalog and the
// location must exist (NotFound otherwise); an inactive location is rejected with
// ErrLocationInactive.
// 在庫台帳行を作成
func (m *Manager) CreateItem(ctx context.Context, req NewItem) (Outcome, error) {
	req.ActorID = resolveActor(ctx, req.ActorID)
	if err := ValidateNewItem(req); err != nil {
		return Outcome{}, err
	}

	// 商品とロケーションの存在確認
	if _, err := m.catalog.GetProduct(ctx, req.ProductID); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Outcome{Kind: OutcomeNotFound}, nil
		}
		return Outcome{}, NewStorageError("get_product", "商品取得に失敗しました", err)
	}
	location, err := m.storage.GetLocation(ctx, req.LocationID)
	if errors.Is(err, ErrLocationNotFound) {
		return Outcome{Kind: OutcomeNotFound}, nil
	}
	if err != nil {
		return Outcome{}, NewStorageError("get_location", "ロケーション取得に失敗しました", err)
	}
	if !location.IsActive {
		return Outcome{}, ErrLocationInactive
	}

	var outcome Outcome
	fx := &txEffects{}
	err = m.storage.WithTx(ctx, func(tx Tx) error {
		now := m.now()
		item := InventoryItem{
			ProductID:    req.ProductID,
			LocationID:   req.LocationID,
			CurrentStock: req.InitialStock,
			Thresholds:   req.Thresholds,
			UnitCost:     req.UnitCost,
			AverageCost:  req.UnitCost,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		item = DeriveLedgerFields(item)

		if err := tx.InsertItem(ctx, &item); err != nil {
			if errors.Is(err, ErrDuplicateItem) {
				outcome = Outcome{Kind: OutcomeAlreadyExists}
				return nil
			}
			return NewStorageError("insert_item", "在庫作成に失敗しました", err)
		}

		var draft *StockMovement
		if req.InitialStock > 0 {
			draft = &StockMovement{
				MovementType: MovementTypeIn,
				UnitCost:     decimal.NewNullDecimal(req.UnitCost),
				Reason:       reasonInitialStock,
				PerformedBy:  req.ActorID,
			}
		}
		if err := m.commitItem(ctx, tx, nil, &item, draft, fx); err != nil {
			return err
		}
		outcome = Outcome{Kind: OutcomeOK, Item: &item, Movement: draft}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if outcome.OK() {
		m.afterCommit(ctx, fx)
		m.logger.Info("在庫台帳作成完了",
			zap.Int64("product_id", req.ProductID),
			zap.Int64("location_id", req.LocationID),
			zap.Int64("initial_stock", req.InitialStock),
		)
	}
	return outcome, nil
}

// UpdateThresholds replaces a row's stock bands and re-derives its status
// 在庫閾値を更新
func (m *Manager) UpdateThresholds(ctx context.Context, productID, locationID int64, thresholds Thresholds) (Outcome, error) {
	if err := validateKey(productID, locationID); err != nil {
		return Outcome{}, err
	}
	if err := ValidateThresholds(thresholds); err != nil {
		return Outcome{}, err
	}

	outcome, err := m.mutateItem(ctx, productID, locationID, func(item *InventoryItem) (OutcomeKind, *StockMovement) {
		item.Thresholds = thresholds
		return OutcomeOK, nil
	})
	if err == nil && outcome.OK() {
		m.logger.Info("在庫閾値更新完了",
			zap.Int64("product_id", productID),
			zap.Int64("location_id", locationID),
			zap.Int64("minimum_stock", thresholds.MinimumStock),
			zap.Int64("maximum_stock", thresholds.MaximumStock),
			zap.Int64("reorder_point", thresholds.ReorderPoint),
		)
	}
	return outcome, err
}

// Reserve holds quantity units for an order. InsufficientStock leaves the row untouched.
// 在庫を予約
func (m *Manager) Reserve(ctx context.Context, productID, locationID, quantity int64, orderID *int64) (Outcome, error) {
	if err := validateKey(productID, locationID); err != nil {
		return Outcome{}, err
	}
	if err := ValidateQuantity(quantity, false); err != nil {
		return Outcome{}, err
	}

	outcome, err := m.mutateItem(ctx, productID, locationID, func(item *InventoryItem) (OutcomeKind, *StockMovement) {
		// 予約可能量チェック
		if item.CurrentStock-item.ReservedStock < quantity {
			return OutcomeInsufficientStock, nil
		}
		item.ReservedStock += quantity
		return OutcomeOK, nil
	})
	if err != nil {
		return outcome, err
	}

	m.metrics.reservation("reserve", outcome.Kind)
	m.logger.Info("在庫予約",
		zap.Int64("product_id", productID),
		zap.Int64("location_id", locationID),
		zap.Int64("quantity", quantity),
		orderField(orderID),
		zap.Stringer("outcome", outcome.Kind),
	)
	return outcome, nil
}

// Release returns reserved units to available stock. Over-release floors the
// reservation at 0.
// 予約された在庫を解除
func (m *Manager) Release(ctx context.Context, productID, locationID, quantity int64, orderID *int64) (Outcome, error) {
	if err := validateKey(productID, locationID); err != nil {
		return Outcome{}, err
	}
	if err := ValidateQuantity(quantity, false); err != nil {
		return Outcome{}, err
	}

	outcome, err := m.mutateItem(ctx, productID, locationID, func(item *InventoryItem) (OutcomeKind, *StockMovement) {
		if quantity > item.ReservedStock {
			m.logger.Warn("予約数を超える解除要求のため0に丸めます",
				zap.Int64("product_id", productID),
				zap.Int64("location_id", locationID),
				zap.Int64("reserved", item.ReservedStock),
				zap.Int64("quantity", quantity),
			)
		}
		item.ReservedStock = max(item.ReservedStock-quantity, 0)
		return OutcomeOK, nil
	})
	if err != nil {
		return outcome, err
	}

	m.metrics.reservation("release", outcome.Kind)
	m.logger.Info("在庫予約解除",
		zap.Int64("product_id", productID),
		zap.Int64("location_id", locationID),
		zap.Int64("quantity", quantity),
		orderField(orderID),
		zap.Stringer("outcome", outcome.Kind),
	)
	return outcome, nil
}

// ConfirmReservation ships reserved units: reserved and current both drop by
// quantity (floored at 0) and an "out" movement is appended.
// 予約在庫を出荷確定
func (m *Manager) ConfirmReservation(ctx context.Context, productID, locationID, quantity int64, orderID *int64, actorID int64) (Outcome, error) {
	actorID = resolveActor(ctx, actorID)
	if err := validateKey(productID, locationID); err != nil {
		return Outcome{}, err
	}
	if err := ValidateQuantity(quantity, false); err != nil {
		return Outcome{}, err
	}
	if err := ValidateActor(actorID); err != nil {
		return Outcome{}, err
	}

	outcome, err := m.mutateItem(ctx, productID, locationID, func(item *InventoryItem) (OutcomeKind, *StockMovement) {
		item.ReservedStock = max(item.ReservedStock-quantity, 0)
		item.CurrentStock = max(item.CurrentStock-quantity, 0)
		return OutcomeOK, &StockMovement{
			MovementType: MovementTypeOut,
			Reason:       reasonOrderFulfilment,
			OrderID:      orderID,
			PerformedBy:  actorID,
		}
	})
	if err != nil {
		return outcome, err
	}

	m.metrics.reservation("confirm", outcome.Kind)
	return outcome, nil
}

// UpdateStock is the general ledger entry point. in/return add quantity, out/loss
// subtract it (clamped at 0) and adjustment sets the on-hand quantity absolutely.
// 在庫を更新（移動種別により加算・減算・絶対値設定）
func (m *Manager) UpdateStock(ctx context.Context, req StockUpdate) (Outcome, error) {
	req.ActorID = resolveActor(ctx, req.ActorID)
	if err := ValidateStockUpdate(req); err != nil {
		return Outcome{}, err
	}

	return m.mutateItem(ctx, req.ProductID, req.LocationID, func(item *InventoryItem) (OutcomeKind, *StockMovement) {
		draft := &StockMovement{
			MovementType: req.MovementType,
			Reason:       req.Reason,
			OrderID:      req.OrderID,
			ReferenceID:  req.ReferenceID,
			PerformedBy:  req.ActorID,
		}
		if req.UnitCost != nil {
			draft.UnitCost = decimal.NewNullDecimal(*req.UnitCost)
		}

		switch req.MovementType {
		case MovementTypeIn, MovementTypeReturn:
			if req.UnitCost != nil {
				item.AverageCost = weightedAverageCost(item.CurrentStock, item.AverageCost, req.Quantity, *req.UnitCost)
				item.UnitCost = *req.UnitCost
			}
			item.CurrentStock += req.Quantity
		case MovementTypeOut, MovementTypeLoss:
			item.CurrentStock = max(item.CurrentStock-req.Quantity, 0)
		case MovementTypeAdjustment:
			item.CurrentStock = req.Quantity
		}
		return OutcomeOK, draft
	})
}

// Adjust sets the on-hand quantity of a row to newQuantity
// 在庫数を調整（絶対値）
func (m *Manager) Adjust(ctx context.Context, productID, locationID, newQuantity int64, reason string, actorID int64) (Outcome, error) {
	return m.UpdateStock(ctx, StockUpdate{
		ProductID:    productID,
		LocationID:   locationID,
		Quantity:     newQuantity,
		MovementType: MovementTypeAdjustment,
		Reason:       reason,
		ActorID:      actorID,
	})
}

// ExecuteBatch applies stock updates one by one. Each operation commits on its own;
// a failed operation does not undo the ones before it.
// バッチ在庫操作を実行
func (m *Manager) ExecuteBatch(ctx context.Context, operations []StockUpdate) (*BatchOperation, error) {
	if len(operations) == 0 {
		return nil, NewValidationError("operations", "操作が指定されていません", "")
	}
	if len(operations) > maxBatchSize {
		return nil, NewValidationError("operations", "操作数が上限を超えています", fmt.Sprintf("%d", len(operations)))
	}

	batch := &BatchOperation{
		ID:         NewBatchID(),
		Operations: operations,
		Results:    make([]BatchOperationResult, 0, len(operations)),
		CreatedAt:  m.now(),
	}

	for i, op := range operations {
		result := BatchOperationResult{OperationIndex: i}
		outcome, err := m.UpdateStock(ctx, op)
		switch {
		case err != nil:
			result.Outcome = "error"
			result.Error = err.Error()
			batch.FailureCount++
		case !outcome.OK():
			result.Outcome = outcome.Kind.String()
			batch.FailureCount++
		default:
			result.Outcome = outcome.Kind.String()
			batch.SuccessCount++
		}
		batch.Results = append(batch.Results, result)
	}

	switch {
	case batch.FailureCount == 0:
		batch.Status = BatchStatusCompleted
	case batch.SuccessCount == 0:
		batch.Status = BatchStatusFailed
	default:
		batch.Status = BatchStatusPartial
	}
	completed := m.now()
	batch.CompletedAt = &completed

	m.logger.Info("バッチ操作完了",
		zap.String("batch_id", batch.ID),
		zap.String("status", string(batch.Status)),
		zap.Int("success_count", batch.SuccessCount),
		zap.Int("failure_count", batch.FailureCount),
	)
	return batch, nil
}

// LowStock lists rows in the low_stock band
// 低在庫の一覧を取得
func (m *Manager) LowStock(ctx context.Context, locationID *int64) ([]ItemWithProduct, error) {
	return m.listByStatus(ctx, locationID, StockStatusLowStock)
}

// OutOfStock lists rows with no stock
// 在庫切れの一覧を取得
func (m *Manager) OutOfStock(ctx context.Context, locationID *int64) ([]ItemWithProduct, error) {
	return m.listByStatus(ctx, locationID, StockStatusOutOfStock)
}

// Overstock lists rows at or above their maximum
// 過剰在庫の一覧を取得
func (m *Manager) Overstock(ctx context.Context, locationID *int64) ([]ItemWithProduct, error) {
	return m.listByStatus(ctx, locationID, StockStatusOverstock)
}

// ReorderRequired lists rows at or below their reorder point, whatever their status
// 要発注の一覧を取得
func (m *Manager) ReorderRequired(ctx context.Context, locationID *int64) ([]ItemWithProduct, error) {
	items, err := m.storage.ListItems(ctx, ItemFilter{LocationID: locationID, ReorderOnly: true})
	if err != nil {
		return nil, NewStorageError("list_items", "在庫一覧取得に失敗しました", err)
	}
	return m.withProducts(ctx, items), nil
}

// Report aggregates the ledger, optionally for one location
// 在庫レポートを作成
func (m *Manager) Report(ctx context.Context, locationID *int64) (Report, error) {
	items, err := m.storage.ListItems(ctx, ItemFilter{LocationID: locationID})
	if err != nil {
		return Report{}, NewStorageError("list_items", "在庫一覧取得に失敗しました", err)
	}
	return buildReport(items, m.now()), nil
}

func (m *Manager) listByStatus(ctx context.Context, locationID *int64, status StockStatus) ([]ItemWithProduct, error) {
	items, err := m.storage.ListItems(ctx, ItemFilter{LocationID: locationID, Status: &status})
	if err != nil {
		return nil, NewStorageError("list_items", "在庫一覧取得に失敗しました", err)
	}
	return m.withProducts(ctx, items), nil
}

// withProducts joins rows with their catalog entries. A catalog miss leaves Product nil.
func (m *Manager) withProducts(ctx context.Context, items []InventoryItem) []ItemWithProduct {
	products := make(map[int64]*Product)
	result := make([]ItemWithProduct, 0, len(items))
	for _, item := range items {
		product, seen := products[item.ProductID]
		if !seen {
			p, err := m.catalog.GetProduct(ctx, item.ProductID)
			if err != nil {
				m.logger.Warn("商品情報の取得に失敗しました", zap.Int64("product_id", item.ProductID), zap.Error(err))
			}
			product = p
			products[item.ProductID] = p
		}
		result = append(result, ItemWithProduct{InventoryItem: item, Product: product})
	}
	return result
}

func validateKey(productID, locationID int64) error {
	if err := ValidateID("product_id", productID); err != nil {
		return err
	}
	return ValidateID("location_id", locationID)
}

func orderField(orderID *int64) zap.Field {
	if orderID == nil {
		return zap.Skip()
	}
	return zap.Int64("order_id", *orderID)
}
