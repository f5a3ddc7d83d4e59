package inventory

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Manager implements the ledger, location, movement, alert and transfer services
// 在庫台帳・ロケーション・移動履歴・アラート・移動依頼の各サービスの実装
type Manager struct {
	storage   Storage        // ストレージ層
	catalog   ProductCatalog // 商品カタログ
	publisher EventPublisher // イベント発行者
	metrics   *Metrics       // メトリクス
	logger    *zap.Logger    // ログ
	config    *Config        // 設定
	now       func() time.Time
}

// すべてのインターフェースを実装することを明示
var (
	_ StockLedger      = (*Manager)(nil)
	_ LocationRegistry = (*Manager)(nil)
	_ MovementRecorder = (*Manager)(nil)
	_ Alerting         = (*Manager)(nil)
	_ TransferWorkflow = (*Manager)(nil)
)

// Config holds configuration for the inventory manager
// 在庫マネージャーの設定を保持
type Config struct {
	DefaultLocationID    int64 `yaml:"default_location_id"`     // デフォルトロケーション
	MovementListLimit    int   `yaml:"movement_list_limit"`     // 移動履歴の既定取得件数
	MaxMovementListLimit int   `yaml:"max_movement_list_limit"` // 移動履歴の最大取得件数
}

// DefaultConfig returns the manager defaults
// 既定の設定
func DefaultConfig() *Config {
	return &Config{
		DefaultLocationID:    1,
		MovementListLimit:    100,
		MaxMovementListLimit: 1000,
	}
}

// NewManager creates a new inventory manager. publisher and metrics may be nil.
// 新しい在庫マネージャーを作成
func NewManager(storage Storage, catalog ProductCatalog, publisher EventPublisher, metrics *Metrics, logger *zap.Logger, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		storage:   storage,
		catalog:   catalog,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// DefaultLocationID returns the location used when a request names none.
func (m *Manager) DefaultLocationID() int64 {
	return m.config.DefaultLocationID
}

// Ping checks the storage connection
// ストレージ接続を確認
func (m *Manager) Ping(ctx context.Context) error {
	return m.storage.Ping(ctx)
}

// stockChange is one committed movement and the row status it left behind.
type stockChange struct {
	movement StockMovement
	status   StockStatus
}

// txEffects collects what a transaction produced; it is published once the transaction commits.
// トランザクションの結果（コミット後に発行）
type txEffects struct {
	changes []stockChange
	alerts  []InventoryAlert
}

// applyFunc mutates a locked ledger row. It returns the business outcome and, when
// the on-hand quantity changes, a movement draft carrying type, reason and actor.
type applyFunc func(item *InventoryItem) (OutcomeKind, *StockMovement)

// mutateItem locks one ledger row, applies fn and persists the row, its movement and
// any newly-crossed alerts in a single transaction.
// 台帳行をロックして更新・移動記録・アラート生成を1トランザクションで実行
func (m *Manager) mutateItem(ctx context.Context, productID, locationID int64, fn applyFunc) (Outcome, error) {
	var outcome Outcome
	fx := &txEffects{}

	err := m.storage.WithTx(ctx, func(tx Tx) error {
		item, err := tx.LockItem(ctx, productID, locationID)
		if errors.Is(err, ErrItemNotFound) {
			outcome = Outcome{Kind: OutcomeNotFound}
			return nil
		}
		if err != nil {
			return NewStorageError("lock_item", "在庫ロック取得に失敗しました", err)
		}

		before := *item
		kind, draft := fn(item)
		if kind != OutcomeOK {
			outcome = Outcome{Kind: kind, Item: &before}
			return nil
		}

		if err := m.commitItem(ctx, tx, &before, item, draft, fx); err != nil {
			return err
		}
		outcome = Outcome{Kind: OutcomeOK, Item: item, Movement: draft}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if outcome.OK() {
		m.afterCommit(ctx, fx)
	}
	return outcome, nil
}

// commitItem re-derives item, appends draft as a movement, saves the row and raises
// alerts crossed relative to before. before is nil for a freshly inserted row.
func (m *Manager) commitItem(ctx context.Context, tx Tx, before *InventoryItem, item *InventoryItem, draft *StockMovement, fx *txEffects) error {
	now := m.now()
	reserved := item.ReservedStock
	*item = DeriveLedgerFields(*item)
	item.UpdatedAt = now
	if item.ReservedStock < reserved {
		m.logger.Warn("現在庫が予約数を下回ったため予約数を切り詰めました",
			zap.Int64("product_id", item.ProductID),
			zap.Int64("location_id", item.LocationID),
			zap.Int64("reserved_before", reserved),
			zap.Int64("reserved_after", item.ReservedStock),
		)
	}

	var stockBefore int64
	if before != nil {
		stockBefore = before.CurrentStock
	}

	if draft != nil {
		draft.ProductID = item.ProductID
		draft.LocationID = item.LocationID
		draft.StockBefore = stockBefore
		draft.StockAfter = item.CurrentStock
		draft.Quantity = abs(item.CurrentStock - stockBefore)
		draft.CreatedAt = now
		if err := tx.InsertMovement(ctx, draft); err != nil {
			return NewStorageError("insert_movement", "在庫移動記録に失敗しました", err)
		}
		movedAt := now
		item.LastMovementDate = &movedAt
		fx.changes = append(fx.changes, stockChange{movement: *draft, status: item.StockStatus})
	}

	if err := tx.SaveItem(ctx, item); err != nil {
		return NewStorageError("save_item", "在庫更新に失敗しました", err)
	}

	return m.raiseAlerts(ctx, tx, before, *item, fx)
}

// afterCommit records metrics and publishes events for committed effects.
// A failing publisher is logged and otherwise ignored.
// コミット後のメトリクス記録とイベント発行
func (m *Manager) afterCommit(ctx context.Context, fx *txEffects) {
	for i := range fx.changes {
		change := fx.changes[i]
		mv := change.movement
		m.metrics.movementRecorded(&mv)

		m.logger.Info("在庫移動記録完了",
			zap.Int64("movement_id", mv.ID),
			zap.Int64("product_id", mv.ProductID),
			zap.Int64("location_id", mv.LocationID),
			zap.String("movement_type", string(mv.MovementType)),
			zap.Int64("stock_before", mv.StockBefore),
			zap.Int64("stock_after", mv.StockAfter),
			zap.Int64("performed_by", mv.PerformedBy),
		)

		if m.publisher == nil {
			continue
		}
		event := StockChangedEvent{
			MovementID:   mv.ID,
			ProductID:    mv.ProductID,
			LocationID:   mv.LocationID,
			MovementType: mv.MovementType,
			StockBefore:  mv.StockBefore,
			StockAfter:   mv.StockAfter,
			StockStatus:  change.status,
			Reason:       mv.Reason,
			PerformedBy:  mv.PerformedBy,
			Timestamp:    mv.CreatedAt,
		}
		if err := m.publisher.PublishStockChanged(ctx, event); err != nil {
			m.logger.Error("在庫変更イベント発行に失敗しました", zap.Error(err), zap.Int64("movement_id", mv.ID))
		}
	}

	for _, alert := range fx.alerts {
		m.metrics.alertRaised(alert.AlertType)

		m.logger.Warn("在庫アラート発生",
			zap.Int64("alert_id", alert.ID),
			zap.Int64("product_id", alert.ProductID),
			zap.Int64("location_id", alert.LocationID),
			zap.String("alert_type", string(alert.AlertType)),
			zap.Int64("current_stock", alert.CurrentStock),
			zap.Int64("threshold", alert.Threshold),
		)

		if m.publisher == nil {
			continue
		}
		event := AlertRaisedEvent{
			AlertID:      alert.ID,
			ProductID:    alert.ProductID,
			LocationID:   alert.LocationID,
			AlertType:    alert.AlertType,
			CurrentStock: alert.CurrentStock,
			Threshold:    alert.Threshold,
			Timestamp:    alert.CreatedAt,
		}
		if err := m.publisher.PublishAlertRaised(ctx, event); err != nil {
			m.logger.Error("アラートイベント発行に失敗しました", zap.Error(err), zap.Int64("alert_id", alert.ID))
		}
	}
}

// resolveActor falls back to the actor carried by ctx
// 操作者IDを決定（未指定ならコンテキストから取得）
func resolveActor(ctx context.Context, actorID int64) int64 {
	if actorID > 0 {
		return actorID
	}
	if id, ok := ActorFromContext(ctx); ok {
		return id
	}
	return 0
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
