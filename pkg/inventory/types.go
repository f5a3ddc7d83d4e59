// Package inventory provides the stock ledger: per-location stock levels,
// reservations, the movement log, threshold alerts and stock transfers.
package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog view the ledger needs. The catalog itself is owned elsewhere.
// 在庫台帳が参照する商品カタログの情報（読み取り専用）
type Product struct {
	ID    int64           `json:"id" db:"id"`
	Name  string          `json:"name" db:"name"`
	SKU   string          `json:"sku" db:"sku"`
	Price decimal.Decimal `json:"price" db:"price"`
}

// Location represents a warehouse, store or other place that holds stock
// 在庫を保管する倉庫・店舗などのロケーション
type Location struct {
	ID        int64        `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Type      LocationType `json:"type" db:"type"`
	Address   string       `json:"address" db:"address"`
	IsActive  bool         `json:"is_active" db:"is_active"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// LocationType classifies a location
// ロケーション種別
type LocationType string

const (
	LocationTypeWarehouse    LocationType = "warehouse"           // 倉庫
	LocationTypeStore        LocationType = "store"               // 店舗
	LocationTypeDistribution LocationType = "distribution_center" // 物流センター
	LocationTypeVirtual      LocationType = "virtual"             // 仮想ロケーション
)

// Valid reports whether t is a known location type.
func (t LocationType) Valid() bool {
	switch t {
	case LocationTypeWarehouse, LocationTypeStore, LocationTypeDistribution, LocationTypeVirtual:
		return true
	}
	return false
}

// LocationPatch holds the optional fields of a location update
// ロケーション更新の差分
type LocationPatch struct {
	Name    *string       `json:"name,omitempty"`
	Type    *LocationType `json:"type,omitempty"`
	Address *string       `json:"address,omitempty"`
}

// Thresholds are the stock bands configured for a ledger row
// 在庫閾値（最小・最大・発注点・発注数量）
type Thresholds struct {
	MinimumStock    int64 `json:"minimum_stock" db:"minimum_stock"`
	MaximumStock    int64 `json:"maximum_stock" db:"maximum_stock"`
	ReorderPoint    int64 `json:"reorder_point" db:"reorder_point"`
	ReorderQuantity int64 `json:"reorder_quantity" db:"reorder_quantity"`
}

// InventoryItem is the ledger row for one product at one location.
// AvailableStock, TotalValue and StockStatus are derived; see DeriveLedgerFields.
// 商品×ロケーション単位の在庫台帳行
type InventoryItem struct {
	ID             int64 `json:"id" db:"id"`
	ProductID      int64 `json:"product_id" db:"product_id"`
	LocationID     int64 `json:"location_id" db:"location_id"`
	CurrentStock   int64 `json:"current_stock" db:"current_stock"`
	ReservedStock  int64 `json:"reserved_stock" db:"reserved_stock"`
	AvailableStock int64 `json:"available_stock" db:"available_stock"`
	Thresholds
	UnitCost         decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	AverageCost      decimal.Decimal `json:"average_cost" db:"average_cost"`
	TotalValue       decimal.Decimal `json:"total_value" db:"total_value"`
	StockStatus      StockStatus     `json:"stock_status" db:"stock_status"`
	LastMovementDate *time.Time      `json:"last_movement_date" db:"last_movement_date"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// ItemWithProduct is a ledger row joined with its catalog entry
// 商品情報付きの在庫台帳行
type ItemWithProduct struct {
	InventoryItem
	Product *Product `json:"product,omitempty"`
}

// StockStatus is the band the current stock falls into
// 在庫ステータス
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"     // 在庫あり
	StockStatusLowStock   StockStatus = "low_stock"    // 低在庫
	StockStatusOutOfStock StockStatus = "out_of_stock" // 在庫切れ
	StockStatusOverstock  StockStatus = "overstock"    // 過剰在庫
)

// MovementType defines the kind of stock movement
// 在庫移動のタイプを定義
type MovementType string

const (
	MovementTypeIn         MovementType = "in"         // 入庫
	MovementTypeOut        MovementType = "out"        // 出庫
	MovementTypeTransfer   MovementType = "transfer"   // 移動
	MovementTypeAdjustment MovementType = "adjustment" // 調整（絶対値）
	MovementTypeReturn     MovementType = "return"     // 返品
	MovementTypeLoss       MovementType = "loss"       // ロス
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeIn, MovementTypeOut, MovementTypeTransfer,
		MovementTypeAdjustment, MovementTypeReturn, MovementTypeLoss:
		return true
	}
	return false
}

// StockMovement is an immutable audit record of one ledger change
// 在庫移動記録（追記のみ・不変）
type StockMovement struct {
	ID           int64               `json:"id" db:"id"`
	ProductID    int64               `json:"product_id" db:"product_id"`
	LocationID   int64               `json:"location_id" db:"location_id"`
	MovementType MovementType        `json:"movement_type" db:"movement_type"`
	Quantity     int64               `json:"quantity" db:"quantity"`
	StockBefore  int64               `json:"stock_before" db:"stock_before"`
	StockAfter   int64               `json:"stock_after" db:"stock_after"`
	UnitCost     decimal.NullDecimal `json:"unit_cost" db:"unit_cost"`
	Reason       string              `json:"reason" db:"reason"`
	OrderID      *int64              `json:"order_id,omitempty" db:"order_id"`
	ReferenceID  *int64              `json:"reference_id,omitempty" db:"reference_id"`
	PerformedBy  int64               `json:"performed_by" db:"performed_by"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
}

// AlertType defines types of inventory alerts
// 在庫アラートのタイプを定義
type AlertType string

const (
	AlertTypeOutOfStock      AlertType = "out_of_stock"     // 在庫切れ
	AlertTypeLowStock        AlertType = "low_stock"        // 低在庫
	AlertTypeOverstock       AlertType = "overstock"        // 過剰在庫
	AlertTypeReorderRequired AlertType = "reorder_required" // 要発注
)

// InventoryAlert is a materialised threshold notice for a ledger row
// 在庫アラート
type InventoryAlert struct {
	ID             int64      `json:"id" db:"id"`
	ProductID      int64      `json:"product_id" db:"product_id"`
	LocationID     int64      `json:"location_id" db:"location_id"`
	AlertType      AlertType  `json:"alert_type" db:"alert_type"`
	CurrentStock   int64      `json:"current_stock" db:"current_stock"`
	Threshold      int64      `json:"threshold" db:"threshold"`
	Message        string     `json:"message" db:"message"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy     *int64     `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNote string     `json:"resolution_note,omitempty" db:"resolution_note"`
}

// TransferStatus is the state of a stock transfer
// 在庫移動依頼のステータス
type TransferStatus string

const (
	TransferStatusRequested TransferStatus = "requested"  // 依頼済み
	TransferStatusApproved  TransferStatus = "approved"   // 承認済み
	TransferStatusInTransit TransferStatus = "in_transit" // 輸送中
	TransferStatusCompleted TransferStatus = "completed"  // 完了
	TransferStatusRejected  TransferStatus = "rejected"   // 却下
)

// StockTransfer moves stock from one location to another through an approval flow
// ロケーション間の在庫移動依頼
type StockTransfer struct {
	ID                    int64          `json:"id" db:"id"`
	SourceLocationID      int64          `json:"source_location_id" db:"source_location_id"`
	DestinationLocationID int64          `json:"destination_location_id" db:"destination_location_id"`
	Status                TransferStatus `json:"status" db:"status"`
	Items                 []TransferItem `json:"items" db:"-"`
	Notes                 string         `json:"notes" db:"notes"`
	RequestedBy           int64          `json:"requested_by" db:"requested_by"`
	RequestedAt           time.Time      `json:"requested_at" db:"requested_at"`
	ApprovedBy            *int64         `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt            *time.Time     `json:"approved_at,omitempty" db:"approved_at"`
	RejectedBy            *int64         `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedAt            *time.Time     `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectionReason       string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ShippedBy             *int64         `json:"shipped_by,omitempty" db:"shipped_by"`
	ShippedAt             *time.Time     `json:"shipped_at,omitempty" db:"shipped_at"`
	CompletedBy           *int64         `json:"completed_by,omitempty" db:"completed_by"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt             time.Time      `json:"updated_at" db:"updated_at"`
}

// TransferItem is one product line of a transfer
// 在庫移動依頼の明細
type TransferItem struct {
	TransferID int64 `json:"transfer_id" db:"transfer_id"`
	ProductID  int64 `json:"product_id" db:"product_id"`
	Quantity   int64 `json:"quantity" db:"quantity"`
}

// IsOpen reports whether the transfer can still change state.
func (t *StockTransfer) IsOpen() bool {
	switch t.Status {
	case TransferStatusRequested, TransferStatusApproved, TransferStatusInTransit:
		return true
	}
	return false
}

// StockUpdate is the input of the general ledger entry point
// 在庫更新リクエスト
type StockUpdate struct {
	ProductID    int64            `json:"product_id"`
	LocationID   int64            `json:"location_id"`
	Quantity     int64            `json:"quantity"`
	MovementType MovementType     `json:"movement_type"`
	Reason       string           `json:"reason"`
	ActorID      int64            `json:"actor_id"`
	UnitCost     *decimal.Decimal `json:"unit_cost,omitempty"`
	OrderID      *int64           `json:"order_id,omitempty"`
	ReferenceID  *int64           `json:"reference_id,omitempty"`
}

// NewItem is the input of CreateItem
// 在庫台帳行の作成リクエスト
type NewItem struct {
	ProductID    int64           `json:"product_id"`
	LocationID   int64           `json:"location_id"`
	InitialStock int64           `json:"initial_stock"`
	Thresholds   Thresholds      `json:"thresholds"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	ActorID      int64           `json:"actor_id"`
}

// OutcomeKind tags the business result of a ledger operation
// 台帳操作の業務結果
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeNotFound
	OutcomeInsufficientStock
	OutcomeAlreadyExists
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeInsufficientStock:
		return "insufficient_stock"
	case OutcomeAlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

// Outcome is returned by ledger operations. Business conditions (unknown row,
// insufficient stock) are reported here; the accompanying error is reserved for
// malformed input and persistence faults.
// 台帳操作の結果（業務上の失敗はエラーではなくここで返す）
type Outcome struct {
	Kind     OutcomeKind    `json:"kind"`
	Item     *InventoryItem `json:"item,omitempty"`
	Movement *StockMovement `json:"movement,omitempty"`
}

// OK reports whether the operation was applied.
func (o Outcome) OK() bool { return o.Kind == OutcomeOK }

// Report aggregates the ledger
// 在庫レポート
type Report struct {
	TotalProducts   int             `json:"total_products"`
	TotalItems      int             `json:"total_items"`
	TotalStock      int64           `json:"total_stock"`
	TotalReserved   int64           `json:"total_reserved"`
	TotalAvailable  int64           `json:"total_available"`
	TotalValue      decimal.Decimal `json:"total_value"`
	LowStockItems   int             `json:"low_stock_items"`
	OutOfStockItems int             `json:"out_of_stock_items"`
	OverstockItems  int             `json:"overstock_items"`
	ReorderRequired int             `json:"reorder_required"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// ItemFilter narrows ledger listings
// 在庫台帳の検索条件
type ItemFilter struct {
	ProductID  *int64
	LocationID *int64
	Status     *StockStatus
	// ReorderOnly keeps rows at or below their reorder point.
	ReorderOnly bool
}

// MovementFilter narrows movement listings
// 在庫移動履歴の検索条件
type MovementFilter struct {
	ProductID    *int64
	LocationID   *int64
	MovementType *MovementType
	ReferenceID  *int64
	From         *time.Time
	To           *time.Time
	Limit        int
	// Ascending returns oldest first; listings default to newest first.
	Ascending bool
}

// AlertFilter narrows alert listings
// アラートの検索条件
type AlertFilter struct {
	LocationID *int64
	ProductID  *int64
	AlertType  *AlertType
	ActiveOnly bool
}

// TransferFilter narrows transfer listings
// 在庫移動依頼の検索条件
type TransferFilter struct {
	Status     *TransferStatus
	LocationID *int64
}

// BatchOperation represents a batch of stock updates
// バッチ在庫操作を表現
type BatchOperation struct {
	ID           string                 `json:"id"`
	Operations   []StockUpdate          `json:"operations"`
	Status       BatchStatus            `json:"status"`
	SuccessCount int                    `json:"success_count"`
	FailureCount int                    `json:"failure_count"`
	Results      []BatchOperationResult `json:"results"`
	CreatedAt    time.Time              `json:"created_at"`
	CompletedAt  *time.Time             `json:"completed_at"`
}

// BatchOperationResult is the result of one operation of a batch
// バッチ内の個別操作の結果
type BatchOperationResult struct {
	OperationIndex int    `json:"operation_index"`
	Outcome        string `json:"outcome"`
	Error          string `json:"error,omitempty"`
}

// BatchStatus defines the status of a batch operation
// バッチ操作のステータスを定義
type BatchStatus string

const (
	BatchStatusCompleted BatchStatus = "completed" // 完了
	BatchStatusPartial   BatchStatus = "partial"   // 一部失敗
	BatchStatusFailed    BatchStatus = "failed"    // 失敗
)

// NewBatchID generates a new batch operation ID
// 新しいバッチ操作IDを生成
func NewBatchID() string {
	return uuid.New().String()
}
