package inventory

import (
	"context"
	"time"
)

// ProductCatalog resolves product ids owned by the catalog service
// 商品カタログ（外部コンポーネント）への参照
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (*Product, error)
}

// Storage defines the interface for data persistence layer.
// Reads outside WithTx see committed state only; every ledger mutation goes through WithTx.
// データ永続化層のインターフェースを定義
type Storage interface {
	// WithTx runs fn in a single transaction. fn's error rolls everything back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ledger
	GetItem(ctx context.Context, productID, locationID int64) (*InventoryItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]InventoryItem, error)

	// Movement log
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)

	// Locations
	CreateLocation(ctx context.Context, location *Location) error
	GetLocation(ctx context.Context, locationID int64) (*Location, error)
	UpdateLocation(ctx context.Context, location *Location) error
	ListLocations(ctx context.Context, activeOnly bool) ([]Location, error)

	// Transfers
	GetTransfer(ctx context.Context, transferID int64) (*StockTransfer, error)
	ListTransfers(ctx context.Context, filter TransferFilter) ([]StockTransfer, error)
	CountOpenTransfers(ctx context.Context, locationID int64) (int, error)

	// Alerts
	GetAlert(ctx context.Context, alertID int64) (*InventoryAlert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]InventoryAlert, error)
	ResolveAlert(ctx context.Context, alertID, resolvedBy int64, note string, at time.Time) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the transactional view of Storage
// トランザクション内の操作
type Tx interface {
	// LockItem reads a ledger row and holds its lock until the transaction ends.
	LockItem(ctx context.Context, productID, locationID int64) (*InventoryItem, error)
	InsertItem(ctx context.Context, item *InventoryItem) error
	SaveItem(ctx context.Context, item *InventoryItem) error

	InsertMovement(ctx context.Context, movement *StockMovement) error

	// InsertAlert stores alert unless an active alert of the same type exists for the row.
	InsertAlert(ctx context.Context, alert *InventoryAlert) (bool, error)

	LockTransfer(ctx context.Context, transferID int64) (*StockTransfer, error)
	InsertTransfer(ctx context.Context, transfer *StockTransfer) error
	SaveTransfer(ctx context.Context, transfer *StockTransfer) error
}

// EventPublisher defines interface for publishing inventory events.
// Events are published after commit; a failed publish never undoes a ledger change.
// 在庫イベント発行のインターフェースを定義
type EventPublisher interface {
	PublishStockChanged(ctx context.Context, event StockChangedEvent) error
	PublishAlertRaised(ctx context.Context, event AlertRaisedEvent) error
	PublishTransferCompleted(ctx context.Context, event TransferCompletedEvent) error
}

// StockChangedEvent represents a stock level change
// 在庫レベル変更イベントを表現
type StockChangedEvent struct {
	MovementID   int64        `json:"movement_id"`
	ProductID    int64        `json:"product_id"`
	LocationID   int64        `json:"location_id"`
	MovementType MovementType `json:"movement_type"`
	StockBefore  int64        `json:"stock_before"`
	StockAfter   int64        `json:"stock_after"`
	StockStatus  StockStatus  `json:"stock_status"`
	Reason       string       `json:"reason"`
	PerformedBy  int64        `json:"performed_by"`
	Timestamp    time.Time    `json:"timestamp"`
}

// AlertRaisedEvent represents a newly materialised alert
// アラート発生イベントを表現
type AlertRaisedEvent struct {
	AlertID      int64     `json:"alert_id"`
	ProductID    int64     `json:"product_id"`
	LocationID   int64     `json:"location_id"`
	AlertType    AlertType `json:"alert_type"`
	CurrentStock int64     `json:"current_stock"`
	Threshold    int64     `json:"threshold"`
	Timestamp    time.Time `json:"timestamp"`
}

// TransferCompletedEvent represents a completed transfer
// 在庫移動完了イベントを表現
type TransferCompletedEvent struct {
	TransferID            int64          `json:"transfer_id"`
	SourceLocationID      int64          `json:"source_location_id"`
	DestinationLocationID int64          `json:"destination_location_id"`
	Items                 []TransferItem `json:"items"`
	CompletedBy           int64          `json:"completed_by"`
	Timestamp             time.Time      `json:"timestamp"`
}

// StockLedger defines the per-(product, location) stock operations
// 在庫台帳の操作を定義
type StockLedger interface {
	GetLevel(ctx context.Context, productID, locationID int64) (Outcome, error)
	ListLevels(ctx context.Context, productID int64) ([]InventoryItem, error)
	CreateItem(ctx context.Context, req NewItem) (Outcome, error)
	UpdateThresholds(ctx context.Context, productID, locationID int64, thresholds Thresholds) (Outcome, error)

	Reserve(ctx context.Context, productID, locationID, quantity int64, orderID *int64) (Outcome, error)
	Release(ctx context.Context, productID, locationID, quantity int64, orderID *int64) (Outcome, error)
	ConfirmReservation(ctx context.Context, productID, locationID, quantity int64, orderID *int64, actorID int64) (Outcome, error)

	UpdateStock(ctx context.Context, req StockUpdate) (Outcome, error)
	Adjust(ctx context.Context, productID, locationID, newQuantity int64, reason string, actorID int64) (Outcome, error)
	ExecuteBatch(ctx context.Context, operations []StockUpdate) (*BatchOperation, error)

	LowStock(ctx context.Context, locationID *int64) ([]ItemWithProduct, error)
	OutOfStock(ctx context.Context, locationID *int64) ([]ItemWithProduct, error)
	Overstock(ctx context.Context, locationID *int64) ([]ItemWithProduct, error)
	ReorderRequired(ctx context.Context, locationID *int64) ([]ItemWithProduct, error)
	Report(ctx context.Context, locationID *int64) (Report, error)
	ValuationByLocation(ctx context.Context) ([]LocationValuation, error)
}

// LocationRegistry defines location management
// ロケーション管理を定義
type LocationRegistry interface {
	CreateLocation(ctx context.Context, name string, locationType LocationType, address string) (*Location, error)
	GetLocation(ctx context.Context, locationID int64) (*Location, error)
	ListLocations(ctx context.Context, activeOnly bool) ([]Location, error)
	UpdateLocation(ctx context.Context, locationID int64, patch LocationPatch) (*Location, error)
	DeactivateLocation(ctx context.Context, locationID int64) (*Location, error)
	ActivateLocation(ctx context.Context, locationID int64) (*Location, error)
}

// MovementRecorder defines movement log queries. Movements are appended by the ledger.
// 在庫移動履歴の参照を定義
type MovementRecorder interface {
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	VerifyChain(ctx context.Context, productID, locationID int64) (*ChainReport, error)
}

// Alerting defines alert queries and resolution
// アラート管理を定義
type Alerting interface {
	RefreshAlerts(ctx context.Context) ([]InventoryAlert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]InventoryAlert, error)
	ResolveAlert(ctx context.Context, alertID, actorID int64, note string) (*InventoryAlert, error)
}

// TransferWorkflow defines the transfer state machine
// 在庫移動依頼のワークフローを定義
type TransferWorkflow interface {
	CreateTransfer(ctx context.Context, req TransferRequest) (*StockTransfer, error)
	GetTransfer(ctx context.Context, transferID int64) (*StockTransfer, error)
	ListTransfers(ctx context.Context, filter TransferFilter) ([]StockTransfer, error)
	ApproveTransfer(ctx context.Context, transferID, actorID int64) (*StockTransfer, error)
	RejectTransfer(ctx context.Context, transferID, actorID int64, reason string) (*StockTransfer, error)
	ShipTransfer(ctx context.Context, transferID, actorID int64) (*StockTransfer, error)
	CompleteTransfer(ctx context.Context, transferID, actorID int64) (*StockTransfer, error)
}
