package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// raiseAlerts materialises the alert conditions that hold for after but did not hold
// for before. Storage drops duplicates of an alert that is still active.
// 新たに成立したアラート条件のみを生成
func (m *Manager) raiseAlerts(ctx context.Context, tx Tx, before *InventoryItem, after InventoryItem, fx *txEffects) error {
	held := make(map[AlertType]bool)
	if before != nil {
		for _, t := range EvaluateAlerts(*before) {
			held[t] = true
		}
	}

	for _, alertType := range EvaluateAlerts(after) {
		if held[alertType] {
			continue
		}
		alert := m.newAlert(after, alertType)
		inserted, err := tx.InsertAlert(ctx, &alert)
		if err != nil {
			return NewStorageError("insert_alert", "アラート作成に失敗しました", err)
		}
		if inserted {
			fx.alerts = append(fx.alerts, alert)
		}
	}
	return nil
}

func (m *Manager) newAlert(item InventoryItem, alertType AlertType) InventoryAlert {
	threshold := alertThreshold(alertType, item.Thresholds)
	return InventoryAlert{
		ProductID:    item.ProductID,
		LocationID:   item.LocationID,
		AlertType:    alertType,
		CurrentStock: item.CurrentStock,
		Threshold:    threshold,
		Message:      alertMessage(item, alertType, threshold),
		IsActive:     true,
		CreatedAt:    m.now(),
	}
}

func alertMessage(item InventoryItem, alertType AlertType, threshold int64) string {
	switch alertType {
	case AlertTypeOutOfStock:
		return fmt.Sprintf("商品 %d のロケーション %d での在庫が切れました", item.ProductID, item.LocationID)
	case AlertTypeLowStock:
		return fmt.Sprintf("商品 %d のロケーション %d での在庫が低下しています (現在: %d, 最小在庫: %d)",
			item.ProductID, item.LocationID, item.CurrentStock, threshold)
	case AlertTypeOverstock:
		return fmt.Sprintf("商品 %d のロケーション %d での在庫が過剰です (現在: %d, 最大在庫: %d)",
			item.ProductID, item.LocationID, item.CurrentStock, threshold)
	case AlertTypeReorderRequired:
		return fmt.Sprintf("商品 %d のロケーション %d で発注が必要です (現在: %d, 発注点: %d, 発注数量: %d)",
			item.ProductID, item.LocationID, item.CurrentStock, threshold, item.ReorderQuantity)
	}
	return string(alertType)
}

// RefreshAlerts scans the whole ledger and materialises every alert condition that
// has no active alert yet. It never resolves alerts.
// 台帳全体を走査してアラートを生成
func (m *Manager) RefreshAlerts(ctx context.Context) ([]InventoryAlert, error) {
	items, err := m.storage.ListItems(ctx, ItemFilter{})
	if err != nil {
		return nil, NewStorageError("list_items", "在庫一覧取得に失敗しました", err)
	}

	fx := &txEffects{}
	err = m.storage.WithTx(ctx, func(tx Tx) error {
		for _, item := range items {
			if err := m.raiseAlerts(ctx, tx, nil, DeriveLedgerFields(item), fx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.afterCommit(ctx, fx)
	m.logger.Info("アラート再評価完了",
		zap.Int("items", len(items)),
		zap.Int("raised", len(fx.alerts)),
	)

	if fx.alerts == nil {
		return []InventoryAlert{}, nil
	}
	return fx.alerts, nil
}

// ListAlerts lists alerts, newest first
// アラート一覧を取得
func (m *Manager) ListAlerts(ctx context.Context, filter AlertFilter) ([]InventoryAlert, error) {
	alerts, err := m.storage.ListAlerts(ctx, filter)
	if err != nil {
		return nil, NewStorageError("list_alerts", "アラート一覧取得に失敗しました", err)
	}
	return alerts, nil
}

// ResolveAlert marks an active alert as resolved. Alerts are never deleted.
// アラートを解決済みにする
func (m *Manager) ResolveAlert(ctx context.Context, alertID, actorID int64, note string) (*InventoryAlert, error) {
	actorID = resolveActor(ctx, actorID)
	if err := ValidateID("alert_id", alertID); err != nil {
		return nil, err
	}
	if err := ValidateActor(actorID); err != nil {
		return nil, err
	}
	if len(note) > maxNotesLength {
		return nil, NewValidationError("note", "備考が長すぎます", note)
	}

	alert, err := m.storage.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !alert.IsActive {
		return nil, ErrAlertResolved
	}

	at := m.now()
	if err := m.storage.ResolveAlert(ctx, alertID, actorID, note, at); err != nil {
		return nil, err
	}

	alert.IsActive = false
	alert.ResolvedAt = &at
	alert.ResolvedBy = &actorID
	alert.ResolutionNote = note

	m.logger.Info("アラート解決完了",
		zap.Int64("alert_id", alertID),
		zap.Int64("resolved_by", actorID),
	)
	return alert, nil
}
