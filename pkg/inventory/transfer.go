package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferRequest is the input of CreateTransfer
// 在庫移動依頼の作成リクエスト
type TransferRequest struct {
	SourceLocationID      int64          `json:"source_location_id"`
	DestinationLocationID int64          `json:"destination_location_id"`
	Items                 []TransferItem `json:"items"`
	RequestedBy           int64          `json:"requested_by"`
	Notes                 string         `json:"notes"`
}

// transitions lists the statuses each status may move to
var transitions = map[TransferStatus][]TransferStatus{
	TransferStatusRequested: {TransferStatusApproved, TransferStatusRejected},
	TransferStatusApproved:  {TransferStatusInTransit},
	TransferStatusInTransit: {TransferStatusCompleted},
}

// CanTransition reports whether a transfer in status from may move to status to.
func CanTransition(from, to TransferStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CreateTransfer opens a transfer in the requested state. Both locations must be
// active and every product must exist in the catalog.
// 在庫移動依頼を作成
func (m *Manager) CreateTransfer(ctx context.Context, req TransferRequest) (*StockTransfer, error) {
	req.RequestedBy = resolveActor(ctx, req.RequestedBy)
	if err := ValidateTransferRequest(req); err != nil {
		return nil, err
	}

	if _, err := m.activeLocation(ctx, req.SourceLocationID); err != nil {
		return nil, err
	}
	if _, err := m.activeLocation(ctx, req.DestinationLocationID); err != nil {
		return nil, err
	}
	for _, line := range req.Items {
		if _, err := m.catalog.GetProduct(ctx, line.ProductID); err != nil {
			return nil, err
		}
	}

	now := m.now()
	transfer := &StockTransfer{
		SourceLocationID:      req.SourceLocationID,
		DestinationLocationID: req.DestinationLocationID,
		Status:                TransferStatusRequested,
		Items:                 append([]TransferItem(nil), req.Items...),
		Notes:                 req.Notes,
		RequestedBy:           req.RequestedBy,
		RequestedAt:           now,
		UpdatedAt:             now,
	}

	err := m.storage.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertTransfer(ctx, transfer); err != nil {
			return NewStorageError("insert_transfer", "移動依頼作成に失敗しました", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.metrics.transferTransition(TransferStatusRequested)
	m.logger.Info("移動依頼作成完了",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("source_location_id", transfer.SourceLocationID),
		zap.Int64("destination_location_id", transfer.DestinationLocationID),
		zap.Int("items", len(transfer.Items)),
		zap.Int64("requested_by", transfer.RequestedBy),
	)
	return transfer, nil
}

// GetTransfer gets a transfer with its lines
// 移動依頼を取得
func (m *Manager) GetTransfer(ctx context.Context, transferID int64) (*StockTransfer, error) {
	if err := ValidateID("transfer_id", transferID); err != nil {
		return nil, err
	}
	return m.storage.GetTransfer(ctx, transferID)
}

// ListTransfers lists transfers, newest first
// 移動依頼一覧を取得
func (m *Manager) ListTransfers(ctx context.Context, filter TransferFilter) ([]StockTransfer, error) {
	transfers, err := m.storage.ListTransfers(ctx, filter)
	if err != nil {
		return nil, NewStorageError("list_transfers", "移動依頼一覧取得に失敗しました", err)
	}
	return transfers, nil
}

// ApproveTransfer moves a requested transfer to approved
// 移動依頼を承認
func (m *Manager) ApproveTransfer(ctx context.Context, transferID, actorID int64) (*StockTransfer, error) {
	return m.transition(ctx, transferID, actorID, TransferStatusApproved, func(_ Tx, t *StockTransfer, actor int64) error {
		now := m.now()
		t.ApprovedBy = &actor
		t.ApprovedAt = &now
		return nil
	})
}

// RejectTransfer moves a requested transfer to rejected
// 移動依頼を却下
func (m *Manager) RejectTransfer(ctx context.Context, transferID, actorID int64, reason string) (*StockTransfer, error) {
	if err := ValidateReason(reason); err != nil {
		return nil, err
	}
	return m.transition(ctx, transferID, actorID, TransferStatusRejected, func(_ Tx, t *StockTransfer, actor int64) error {
		now := m.now()
		t.RejectedBy = &actor
		t.RejectedAt = &now
		t.RejectionReason = reason
		return nil
	})
}

// ShipTransfer moves an approved transfer to in_transit. Stock moves on completion.
// 移動依頼を出荷済みにする
func (m *Manager) ShipTransfer(ctx context.Context, transferID, actorID int64) (*StockTransfer, error) {
	return m.transition(ctx, transferID, actorID, TransferStatusInTransit, func(_ Tx, t *StockTransfer, actor int64) error {
		now := m.now()
		t.ShippedBy = &actor
		t.ShippedAt = &now
		return nil
	})
}

// CompleteTransfer moves an in_transit transfer to completed and moves the stock:
// every line leaves the source with an "out" movement and arrives at the destination
// with an "in" movement, both referencing the transfer. Any source row that cannot
// cover its line fails the whole transfer with ErrInsufficientStock.
// 移動依頼を完了し在庫を移動
func (m *Manager) CompleteTransfer(ctx context.Context, transferID, actorID int64) (*StockTransfer, error) {
	fx := &txEffects{}
	transfer, err := m.transitionWithEffects(ctx, transferID, actorID, TransferStatusCompleted, fx, func(tx Tx, t *StockTransfer, actor int64) error {
		if err := m.moveTransferStock(ctx, tx, t, actor, fx); err != nil {
			return err
		}
		now := m.now()
		t.CompletedBy = &actor
		t.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.publisher != nil {
		event := TransferCompletedEvent{
			TransferID:            transfer.ID,
			SourceLocationID:      transfer.SourceLocationID,
			DestinationLocationID: transfer.DestinationLocationID,
			Items:                 transfer.Items,
			CompletedBy:           *transfer.CompletedBy,
			Timestamp:             *transfer.CompletedAt,
		}
		if err := m.publisher.PublishTransferCompleted(ctx, event); err != nil {
			m.logger.Error("移動完了イベント発行に失敗しました", zap.Error(err), zap.Int64("transfer_id", transfer.ID))
		}
	}
	return transfer, nil
}

type transitionFunc func(tx Tx, t *StockTransfer, actorID int64) error

func (m *Manager) transition(ctx context.Context, transferID, actorID int64, to TransferStatus, fn transitionFunc) (*StockTransfer, error) {
	return m.transitionWithEffects(ctx, transferID, actorID, to, &txEffects{}, fn)
}

// transitionWithEffects locks the transfer, checks the status change and applies fn
// in one transaction.
// ステータス遷移を1トランザクションで実行
func (m *Manager) transitionWithEffects(ctx context.Context, transferID, actorID int64, to TransferStatus, fx *txEffects, fn transitionFunc) (*StockTransfer, error) {
	actorID = resolveActor(ctx, actorID)
	if err := ValidateID("transfer_id", transferID); err != nil {
		return nil, err
	}
	if err := ValidateActor(actorID); err != nil {
		return nil, err
	}

	var transfer *StockTransfer
	var from TransferStatus
	err := m.storage.WithTx(ctx, func(tx Tx) error {
		t, err := tx.LockTransfer(ctx, transferID)
		if err != nil {
			if errors.Is(err, ErrTransferNotFound) {
				return ErrTransferNotFound
			}
			return NewStorageError("lock_transfer", "移動依頼ロック取得に失敗しました", err)
		}

		from = t.Status
		if !CanTransition(from, to) {
			return NewTransitionError(transferID, from, to)
		}
		if err := fn(tx, t, actorID); err != nil {
			return err
		}

		t.Status = to
		t.UpdatedAt = m.now()
		if err := tx.SaveTransfer(ctx, t); err != nil {
			return NewStorageError("save_transfer", "移動依頼更新に失敗しました", err)
		}
		transfer = t
		return nil
	})
	if err != nil {
		m.logger.Warn("移動依頼のステータス変更に失敗しました",
			zap.Int64("transfer_id", transferID),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return nil, err
	}

	m.afterCommit(ctx, fx)
	m.metrics.transferTransition(to)
	m.logger.Info("移動依頼ステータス変更完了",
		zap.Int64("transfer_id", transferID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int64("actor_id", actorID),
	)
	return transfer, nil
}

type ledgerKey struct {
	productID  int64
	locationID int64
}

// openDestination inserts the missing destination row with the source's costs.
// If a concurrent completion inserted it first, the existing row is locked and
// returned with created=false.
func (m *Manager) openDestination(ctx context.Context, tx Tx, key ledgerKey, src *InventoryItem) (*InventoryItem, bool, error) {
	now := m.now()
	dst := &InventoryItem{
		ProductID:   key.productID,
		LocationID:  key.locationID,
		UnitCost:    src.UnitCost,
		AverageCost: src.AverageCost,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	*dst = DeriveLedgerFields(*dst)

	err := tx.InsertItem(ctx, dst)
	if err == nil {
		return dst, true, nil
	}
	if !errors.Is(err, ErrDuplicateItem) {
		return nil, false, NewStorageError("insert_item", "移動先の在庫作成に失敗しました", err)
	}

	existing, err := tx.LockItem(ctx, key.productID, key.locationID)
	if err != nil {
		return nil, false, NewStorageError("lock_item", "在庫ロック取得に失敗しました", err)
	}
	m.logger.Debug("移動先の在庫は同時に作成済みでした",
		zap.Int64("product_id", key.productID),
		zap.Int64("location_id", key.locationID),
	)
	return existing, false, nil
}

// moveTransferStock applies every line of t to the ledger. Rows are locked in
// (product, location) order so concurrent completions cannot deadlock.
func (m *Manager) moveTransferStock(ctx context.Context, tx Tx, t *StockTransfer, actorID int64, fx *txEffects) error {
	keys := make([]ledgerKey, 0, len(t.Items)*2)
	for _, line := range t.Items {
		keys = append(keys,
			ledgerKey{line.ProductID, t.SourceLocationID},
			ledgerKey{line.ProductID, t.DestinationLocationID},
		)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].productID != keys[j].productID {
			return keys[i].productID < keys[j].productID
		}
		return keys[i].locationID < keys[j].locationID
	})

	rows := make(map[ledgerKey]*InventoryItem, len(keys))
	for _, key := range keys {
		item, err := tx.LockItem(ctx, key.productID, key.locationID)
		if errors.Is(err, ErrItemNotFound) {
			continue
		}
		if err != nil {
			return NewStorageError("lock_item", "在庫ロック取得に失敗しました", err)
		}
		rows[key] = item
	}

	referenceID := t.ID
	for _, line := range t.Items {
		src := rows[ledgerKey{line.ProductID, t.SourceLocationID}]
		if src == nil || src.CurrentStock-src.ReservedStock < line.Quantity {
			var available int64
			if src != nil {
				available = src.CurrentStock - src.ReservedStock
			}
			return fmt.Errorf("商品 %d (利用可能: %d, 要求: %d): %w",
				line.ProductID, available, line.Quantity, ErrInsufficientStock)
		}

		srcBefore := *src
		src.CurrentStock -= line.Quantity
		out := &StockMovement{
			MovementType: MovementTypeOut,
			UnitCost:     decimal.NewNullDecimal(src.UnitCost),
			Reason:       fmt.Sprintf("Transfer %d to location %d", t.ID, t.DestinationLocationID),
			ReferenceID:  &referenceID,
			PerformedBy:  actorID,
		}
		if err := m.commitItem(ctx, tx, &srcBefore, src, out, fx); err != nil {
			return err
		}

		var dstBefore *InventoryItem
		dstKey := ledgerKey{line.ProductID, t.DestinationLocationID}
		dst := rows[dstKey]
		created := false
		if dst == nil {
			var err error
			if dst, created, err = m.openDestination(ctx, tx, dstKey, src); err != nil {
				return err
			}
			rows[dstKey] = dst
		}
		if !created {
			before := *dst
			dstBefore = &before
			dst.AverageCost = weightedAverageCost(dst.CurrentStock, dst.AverageCost, line.Quantity, src.AverageCost)
		}

		dst.CurrentStock += line.Quantity
		in := &StockMovement{
			MovementType: MovementTypeIn,
			UnitCost:     decimal.NewNullDecimal(src.UnitCost),
			Reason:       fmt.Sprintf("Transfer %d from location %d", t.ID, t.SourceLocationID),
			ReferenceID:  &referenceID,
			PerformedBy:  actorID,
		}
		if err := m.commitItem(ctx, tx, dstBefore, dst, in, fx); err != nil {
			return err
		}
	}
	return nil
}
