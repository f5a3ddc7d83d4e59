package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

const (
	itemColumns = `id, product_id, location_id, current_stock, reserved_stock, available_stock,
		minimum_stock, maximum_stock, reorder_point, reorder_quantity,
		unit_cost, average_cost, total_value, stock_status, last_movement_date, created_at, updated_at`

	movementColumns = `id, product_id, location_id, movement_type, quantity, stock_before, stock_after,
		unit_cost, reason, order_id, reference_id, performed_by, created_at`

	locationColumns = `id, name, type, address, is_active, created_at, updated_at`

	alertColumns = `id, product_id, location_id, alert_type, current_stock, threshold, message,
		is_active, created_at, resolved_at, resolved_by, resolution_note`

	transferColumns = `id, source_location_id, destination_location_id, status, notes,
		requested_by, requested_at, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
		shipped_by, shipped_at, completed_by, completed_at, updated_at`

	openTransferStatuses = `('requested', 'approved', 'in_transit')`

	uniqueViolation = "23505"
)

// Options configures the connection pool
// 接続プール設定
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgreSQLStorage implements inventory.Storage and inventory.ProductCatalog using PostgreSQL
// PostgreSQLを使用したStorageインターフェースの実装
type PostgreSQLStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var (
	_ inventory.Storage        = (*PostgreSQLStorage)(nil)
	_ inventory.ProductCatalog = (*PostgreSQLStorage)(nil)
	_ inventory.Tx             = (*pgTx)(nil)
)

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
// 新しいPostgreSQLストレージインスタンスを作成
func NewPostgreSQLStorage(ctx context.Context, dsn string, opts Options, logger *zap.Logger) (*PostgreSQLStorage, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続プール設定
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return NewPostgreSQLStorageFromDB(db, logger), nil
}

// NewPostgreSQLStorageFromDB wraps an open connection
func NewPostgreSQLStorageFromDB(db *sqlx.DB, logger *zap.Logger) *PostgreSQLStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgreSQLStorage{db: db, logger: logger}
}

// WithTx runs fn in a database transaction. fn's error is returned unchanged after rollback.
// トランザクション内でfnを実行
func (s *PostgreSQLStorage) WithTx(ctx context.Context, fn func(tx inventory.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("ロールバックに失敗しました", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗しました: %w", err)
	}
	return nil
}

// GetProduct reads a product from the platform catalog table
// 商品カタログから商品を取得
func (s *PostgreSQLStorage) GetProduct(ctx context.Context, productID int64) (*inventory.Product, error) {
	var product inventory.Product
	err := s.db.GetContext(ctx, &product, `SELECT id, name, sku, price FROM products WHERE id = $1`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrProductNotFound
		}
		return nil, fmt.Errorf("商品取得に失敗しました: %w", err)
	}
	return &product, nil
}

// GetItem retrieves a ledger row
// 在庫台帳行を取得
func (s *PostgreSQLStorage) GetItem(ctx context.Context, productID, locationID int64) (*inventory.InventoryItem, error) {
	return getItem(ctx, s.db, productID, locationID, false)
}

// ListItems lists ledger rows ordered by product and location
// 在庫台帳行の一覧を取得
func (s *PostgreSQLStorage) ListItems(ctx context.Context, filter inventory.ItemFilter) ([]inventory.InventoryItem, error) {
	query, args := itemQuery(filter)
	items := []inventory.InventoryItem{}
	if err := selectNamed(ctx, s.db, &items, query, args); err != nil {
		return nil, fmt.Errorf("在庫一覧取得に失敗しました: %w", err)
	}
	return items, nil
}

// ListMovements lists movements matching filter
// 在庫移動履歴を取得
func (s *PostgreSQLStorage) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	query, args := movementQuery(filter)
	movements := []inventory.StockMovement{}
	if err := selectNamed(ctx, s.db, &movements, query, args); err != nil {
		return nil, fmt.Errorf("在庫移動履歴取得に失敗しました: %w", err)
	}
	return movements, nil
}

// CreateLocation creates a location
// ロケーションを作成
func (s *PostgreSQLStorage) CreateLocation(ctx context.Context, location *inventory.Location) error {
	query := `
		INSERT INTO locations (name, type, address, is_active, created_at, updated_at)
		VALUES (:name, :type, :address, :is_active, :created_at, :updated_at)
		RETURNING id`

	if err := getNamed(ctx, s.db, &location.ID, query, location); err != nil {
		if isUniqueViolation(err) {
			return inventory.ErrDuplicateLocation
		}
		return fmt.Errorf("ロケーション作成に失敗しました: %w", err)
	}
	return nil
}

// GetLocation retrieves a location by id
// ロケーションを取得
func (s *PostgreSQLStorage) GetLocation(ctx context.Context, locationID int64) (*inventory.Location, error) {
	var location inventory.Location
	err := s.db.GetContext(ctx, &location, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, locationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrLocationNotFound
		}
		return nil, fmt.Errorf("ロケーション取得に失敗しました: %w", err)
	}
	return &location, nil
}

// UpdateLocation updates a location
// ロケーションを更新
func (s *PostgreSQLStorage) UpdateLocation(ctx context.Context, location *inventory.Location) error {
	query := `
		UPDATE locations
		SET name = :name, type = :type, address = :address, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, query, location)
	if err != nil {
		if isUniqueViolation(err) {
			return inventory.ErrDuplicateLocation
		}
		return fmt.Errorf("ロケーション更新に失敗しました: %w", err)
	}
	return expectOneRow(result, inventory.ErrLocationNotFound)
}

// ListLocations lists locations ordered by id
// ロケーション一覧を取得
func (s *PostgreSQLStorage) ListLocations(ctx context.Context, activeOnly bool) ([]inventory.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY id`

	locations := []inventory.Location{}
	if err := s.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, fmt.Errorf("ロケーション一覧取得に失敗しました: %w", err)
	}
	return locations, nil
}

// GetTransfer retrieves a transfer with its lines
// 移動依頼を取得
func (s *PostgreSQLStorage) GetTransfer(ctx context.Context, transferID int64) (*inventory.StockTransfer, error) {
	return getTransfer(ctx, s.db, transferID, false)
}

// ListTransfers lists transfers newest first, with their lines
// 移動依頼一覧を取得
func (s *PostgreSQLStorage) ListTransfers(ctx context.Context, filter inventory.TransferFilter) ([]inventory.StockTransfer, error) {
	query, args := transferQuery(filter)
	transfers := []inventory.StockTransfer{}
	if err := selectNamed(ctx, s.db, &transfers, query, args); err != nil {
		return nil, fmt.Errorf("移動依頼一覧取得に失敗しました: %w", err)
	}
	if len(transfers) == 0 {
		return transfers, nil
	}

	ids := make([]int64, len(transfers))
	for i, t := range transfers {
		ids[i] = t.ID
	}
	inQuery, inArgs, err := sqlx.In(`
		SELECT transfer_id, product_id, quantity FROM stock_transfer_items
		WHERE transfer_id IN (?) ORDER BY transfer_id, product_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("移動明細クエリ作成に失敗しました: %w", err)
	}

	var lines []inventory.TransferItem
	if err := s.db.SelectContext(ctx, &lines, s.db.Rebind(inQuery), inArgs...); err != nil {
		return nil, fmt.Errorf("移動明細取得に失敗しました: %w", err)
	}

	byTransfer := make(map[int64][]inventory.TransferItem, len(transfers))
	for _, line := range lines {
		byTransfer[line.TransferID] = append(byTransfer[line.TransferID], line)
	}
	for i := range transfers {
		transfers[i].Items = byTransfer[transfers[i].ID]
	}
	return transfers, nil
}

// CountOpenTransfers counts requested, approved and in-transit transfers touching a location
// ロケーションに関係する未完了の移動依頼数を取得
func (s *PostgreSQLStorage) CountOpenTransfers(ctx context.Context, locationID int64) (int, error) {
	query := `
		SELECT count(*) FROM stock_transfers
		WHERE status IN ` + openTransferStatuses + `
		  AND (source_location_id = $1 OR destination_location_id = $1)`

	var count int
	if err := s.db.GetContext(ctx, &count, query, locationID); err != nil {
		return 0, fmt.Errorf("移動依頼数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// GetAlert retrieves an alert
// アラートを取得
func (s *PostgreSQLStorage) GetAlert(ctx context.Context, alertID int64) (*inventory.InventoryAlert, error) {
	var alert inventory.InventoryAlert
	err := s.db.GetContext(ctx, &alert, `SELECT `+alertColumns+` FROM inventory_alerts WHERE id = $1`, alertID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrAlertNotFound
		}
		return nil, fmt.Errorf("アラート取得に失敗しました: %w", err)
	}
	return &alert, nil
}

// ListAlerts lists alerts newest first
// アラート一覧を取得
func (s *PostgreSQLStorage) ListAlerts(ctx context.Context, filter inventory.AlertFilter) ([]inventory.InventoryAlert, error) {
	query, args := alertQuery(filter)
	alerts := []inventory.InventoryAlert{}
	if err := selectNamed(ctx, s.db, &alerts, query, args); err != nil {
		return nil, fmt.Errorf("アラート一覧取得に失敗しました: %w", err)
	}
	return alerts, nil
}

// ResolveAlert resolves an active alert
// アラートを解決
func (s *PostgreSQLStorage) ResolveAlert(ctx context.Context, alertID, resolvedBy int64, note string, at time.Time) error {
	query := `
		UPDATE inventory_alerts
		SET is_active = false, resolved_at = $2, resolved_by = $3, resolution_note = $4
		WHERE id = $1 AND is_active`

	result, err := s.db.ExecContext(ctx, query, alertID, at, resolvedBy, note)
	if err != nil {
		return fmt.Errorf("アラート解決に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := s.GetAlert(ctx, alertID); err != nil {
			return err
		}
		return inventory.ErrAlertResolved
	}
	return nil
}

// Ping checks database connectivity
// データベース接続をチェック
func (s *PostgreSQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
// データベース接続を閉じる
func (s *PostgreSQLStorage) Close() error {
	return s.db.Close()
}

// pgTx is the transactional view of PostgreSQLStorage
type pgTx struct {
	tx *sqlx.Tx
}

// LockItem reads a ledger row with SELECT ... FOR UPDATE
// 在庫台帳行を行ロック付きで取得
func (t *pgTx) LockItem(ctx context.Context, productID, locationID int64) (*inventory.InventoryItem, error) {
	return getItem(ctx, t.tx, productID, locationID, true)
}

// InsertItem inserts a ledger row; an existing (product, location) yields ErrDuplicateItem
// 在庫台帳行を作成
func (t *pgTx) InsertItem(ctx context.Context, item *inventory.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (
			product_id, location_id, current_stock, reserved_stock, available_stock,
			minimum_stock, maximum_stock, reorder_point, reorder_quantity,
			unit_cost, average_cost, total_value, stock_status, last_movement_date, created_at, updated_at
		) VALUES (
			:product_id, :location_id, :current_stock, :reserved_stock, :available_stock,
			:minimum_stock, :maximum_stock, :reorder_point, :reorder_quantity,
			:unit_cost, :average_cost, :total_value, :stock_status, :last_movement_date, :created_at, :updated_at
		)
		ON CONFLICT (product_id, location_id) DO NOTHING
		RETURNING id`

	err := getNamed(ctx, t.tx, &item.ID, query, item)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.ErrDuplicateItem
	}
	if err != nil {
		return fmt.Errorf("在庫記録作成に失敗しました: %w", err)
	}
	return nil
}

// SaveItem writes every mutable column of a ledger row
// 在庫台帳行を更新
func (t *pgTx) SaveItem(ctx context.Context, item *inventory.InventoryItem) error {
	query := `
		UPDATE inventory_items SET
			current_stock = :current_stock, reserved_stock = :reserved_stock, available_stock = :available_stock,
			minimum_stock = :minimum_stock, maximum_stock = :maximum_stock,
			reorder_point = :reorder_point, reorder_quantity = :reorder_quantity,
			unit_cost = :unit_cost, average_cost = :average_cost, total_value = :total_value,
			stock_status = :stock_status, last_movement_date = :last_movement_date, updated_at = :updated_at
		WHERE id = :id`

	result, err := t.tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("在庫記録更新に失敗しました: %w", err)
	}
	return expectOneRow(result, inventory.ErrItemNotFound)
}

// InsertMovement appends a movement
// 在庫移動を記録
func (t *pgTx) InsertMovement(ctx context.Context, movement *inventory.StockMovement) error {
	query := `
		INSERT INTO stock_movements (
			product_id, location_id, movement_type, quantity, stock_before, stock_after,
			unit_cost, reason, order_id, reference_id, performed_by, created_at
		) VALUES (
			:product_id, :location_id, :movement_type, :quantity, :stock_before, :stock_after,
			:unit_cost, :reason, :order_id, :reference_id, :performed_by, :created_at
		)
		RETURNING id`

	if err := getNamed(ctx, t.tx, &movement.ID, query, movement); err != nil {
		return fmt.Errorf("在庫移動記録に失敗しました: %w", err)
	}
	return nil
}

// InsertAlert inserts an alert unless an active one of the same type exists for the row
// アラートを作成（アクティブな同種アラートがあれば何もしない）
func (t *pgTx) InsertAlert(ctx context.Context, alert *inventory.InventoryAlert) (bool, error) {
	query := `
		INSERT INTO inventory_alerts (
			product_id, location_id, alert_type, current_stock, threshold, message, is_active, created_at
		) VALUES (
			:product_id, :location_id, :alert_type, :current_stock, :threshold, :message, :is_active, :created_at
		)
		ON CONFLICT (product_id, location_id, alert_type) WHERE is_active DO NOTHING
		RETURNING id`

	err := getNamed(ctx, t.tx, &alert.ID, query, alert)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("アラート作成に失敗しました: %w", err)
	}
	return true, nil
}

// LockTransfer reads a transfer with SELECT ... FOR UPDATE
// 移動依頼を行ロック付きで取得
func (t *pgTx) LockTransfer(ctx context.Context, transferID int64) (*inventory.StockTransfer, error) {
	return getTransfer(ctx, t.tx, transferID, true)
}

// InsertTransfer inserts a transfer and its lines
// 移動依頼を作成
func (t *pgTx) InsertTransfer(ctx context.Context, transfer *inventory.StockTransfer) error {
	query := `
		INSERT INTO stock_transfers (
			source_location_id, destination_location_id, status, notes, requested_by, requested_at, updated_at
		) VALUES (
			:source_location_id, :destination_location_id, :status, :notes, :requested_by, :requested_at, :updated_at
		)
		RETURNING id`

	if err := getNamed(ctx, t.tx, &transfer.ID, query, transfer); err != nil {
		return fmt.Errorf("移動依頼作成に失敗しました: %w", err)
	}

	for i := range transfer.Items {
		transfer.Items[i].TransferID = transfer.ID
		_, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO stock_transfer_items (transfer_id, product_id, quantity)
			VALUES (:transfer_id, :product_id, :quantity)`, transfer.Items[i])
		if err != nil {
			return fmt.Errorf("移動明細作成に失敗しました: %w", err)
		}
	}
	return nil
}

// SaveTransfer writes the status and transition stamps of a transfer
// 移動依頼を更新
func (t *pgTx) SaveTransfer(ctx context.Context, transfer *inventory.StockTransfer) error {
	query := `
		UPDATE stock_transfers SET
			status = :status,
			approved_by = :approved_by, approved_at = :approved_at,
			rejected_by = :rejected_by, rejected_at = :rejected_at, rejection_reason = :rejection_reason,
			shipped_by = :shipped_by, shipped_at = :shipped_at,
			completed_by = :completed_by, completed_at = :completed_at,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := t.tx.NamedExecContext(ctx, query, transfer)
	if err != nil {
		return fmt.Errorf("移動依頼更新に失敗しました: %w", err)
	}
	return expectOneRow(result, inventory.ErrTransferNotFound)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.QueryerContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func getItem(ctx context.Context, q queryer, productID, locationID int64, forUpdate bool) (*inventory.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE product_id = $1 AND location_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var item inventory.InventoryItem
	if err := q.GetContext(ctx, &item, query, productID, locationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrItemNotFound
		}
		return nil, fmt.Errorf("在庫取得に失敗しました: %w", err)
	}
	return &item, nil
}

func getTransfer(ctx context.Context, q queryer, transferID int64, forUpdate bool) (*inventory.StockTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM stock_transfers WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var transfer inventory.StockTransfer
	if err := q.GetContext(ctx, &transfer, query, transferID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrTransferNotFound
		}
		return nil, fmt.Errorf("移動依頼取得に失敗しました: %w", err)
	}

	err := q.SelectContext(ctx, &transfer.Items, `
		SELECT transfer_id, product_id, quantity FROM stock_transfer_items
		WHERE transfer_id = $1 ORDER BY product_id`, transferID)
	if err != nil {
		return nil, fmt.Errorf("移動明細取得に失敗しました: %w", err)
	}
	return &transfer, nil
}

// itemQuery builds the ledger listing query for filter
func itemQuery(filter inventory.ItemFilter) (string, map[string]interface{}) {
	conditions := []string{}
	args := map[string]interface{}{}

	if filter.ProductID != nil {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = *filter.ProductID
	}
	if filter.LocationID != nil {
		conditions = append(conditions, "location_id = :location_id")
		args["location_id"] = *filter.LocationID
	}
	if filter.Status != nil {
		conditions = append(conditions, "stock_status = :stock_status")
		args["stock_status"] = string(*filter.Status)
	}
	if filter.ReorderOnly {
		conditions = append(conditions, "current_stock <= reorder_point")
	}

	return `SELECT ` + itemColumns + ` FROM inventory_items` + where(conditions) +
		` ORDER BY product_id, location_id`, args
}

// movementQuery builds the movement listing query for filter
func movementQuery(filter inventory.MovementFilter) (string, map[string]interface{}) {
	conditions := []string{}
	args := map[string]interface{}{}

	if filter.ProductID != nil {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = *filter.ProductID
	}
	if filter.LocationID != nil {
		conditions = append(conditions, "location_id = :location_id")
		args["location_id"] = *filter.LocationID
	}
	if filter.MovementType != nil {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = string(*filter.MovementType)
	}
	if filter.ReferenceID != nil {
		conditions = append(conditions, "reference_id = :reference_id")
		args["reference_id"] = *filter.ReferenceID
	}
	if filter.From != nil {
		conditions = append(conditions, "created_at >= :from")
		args["from"] = *filter.From
	}
	if filter.To != nil {
		conditions = append(conditions, "created_at <= :to")
		args["to"] = *filter.To
	}

	order := " ORDER BY created_at DESC, id DESC"
	if filter.Ascending {
		order = " ORDER BY created_at, id"
	}

	query := `SELECT ` + movementColumns + ` FROM stock_movements` + where(conditions) + order
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return query, args
}

// alertQuery builds the alert listing query for filter
func alertQuery(filter inventory.AlertFilter) (string, map[string]interface{}) {
	conditions := []string{}
	args := map[string]interface{}{}

	if filter.ProductID != nil {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = *filter.ProductID
	}
	if filter.LocationID != nil {
		conditions = append(conditions, "location_id = :location_id")
		args["location_id"] = *filter.LocationID
	}
	if filter.AlertType != nil {
		conditions = append(conditions, "alert_type = :alert_type")
		args["alert_type"] = string(*filter.AlertType)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active")
	}

	return `SELECT ` + alertColumns + ` FROM inventory_alerts` + where(conditions) +
		` ORDER BY created_at DESC, id DESC`, args
}

// transferQuery builds the transfer listing query for filter
func transferQuery(filter inventory.TransferFilter) (string, map[string]interface{}) {
	conditions := []string{}
	args := map[string]interface{}{}

	if filter.Status != nil {
		conditions = append(conditions, "status = :status")
		args["status"] = string(*filter.Status)
	}
	if filter.LocationID != nil {
		conditions = append(conditions, "(source_location_id = :location_id OR destination_location_id = :location_id)")
		args["location_id"] = *filter.LocationID
	}

	return `SELECT ` + transferColumns + ` FROM stock_transfers` + where(conditions) +
		` ORDER BY requested_at DESC, id DESC`, args
}

func where(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

// selectNamed runs a named query and scans every row into dest
func selectNamed(ctx context.Context, q queryer, dest interface{}, query string, arg interface{}) error {
	bound, args, err := sqlx.Named(query, arg)
	if err != nil {
		return err
	}
	return q.SelectContext(ctx, dest, sqlx.Rebind(sqlx.DOLLAR, bound), args...)
}

// getNamed runs a named query and scans the single result row into dest
func getNamed(ctx context.Context, q queryer, dest interface{}, query string, arg interface{}) error {
	bound, args, err := sqlx.Named(query, arg)
	if err != nil {
		return err
	}
	return q.QueryRowxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, bound), args...).Scan(dest)
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
