package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

// Service is everything the HTTP layer needs from the inventory manager
// HTTP層が必要とする在庫サービス
type Service interface {
	inventory.StockLedger
	inventory.LocationRegistry
	inventory.MovementRecorder
	inventory.Alerting
	inventory.TransferWorkflow
	DefaultLocationID() int64
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handlers for the inventory API
// 在庫API用のHTTPハンドラーを保持
type Handlers struct {
	service Service
	logger  *zap.Logger
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(service Service, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// LedgerResult is the data of a successful ledger mutation
// 台帳操作の結果
type LedgerResult struct {
	Item     *inventory.InventoryItem `json:"item"`
	Movement *inventory.StockMovement `json:"movement,omitempty"`
}

// CreateItemRequest represents request to open a ledger row
// 在庫台帳行の作成リクエストを表現
type CreateItemRequest struct {
	ProductID    int64           `json:"product_id"`
	LocationID   *int64          `json:"location_id"`
	InitialStock int64           `json:"initial_stock"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	inventory.Thresholds
}

// UpdateStockRequest represents request to update stock
// 在庫更新リクエストを表現
type UpdateStockRequest struct {
	LocationID   *int64                 `json:"location_id"`
	Quantity     int64                  `json:"quantity"`
	MovementType inventory.MovementType `json:"movement_type"`
	Reason       string                 `json:"reason"`
	UnitCost     *decimal.Decimal       `json:"unit_cost"`
	OrderID      *int64                 `json:"order_id"`
	ReferenceID  *int64                 `json:"reference_id"`
}

// AdjustStockRequest represents request to adjust stock
// 在庫調整リクエストを表現
type AdjustStockRequest struct {
	LocationID  *int64 `json:"location_id"`
	NewQuantity int64  `json:"new_quantity"`
	Reason      string `json:"reason"`
}

// ThresholdsRequest represents request to replace stock thresholds
// 在庫閾値更新リクエストを表現
type ThresholdsRequest struct {
	LocationID *int64 `json:"location_id"`
	inventory.Thresholds
}

// ReservationRequest represents reserve, release and confirm requests
// 予約関連リクエストを表現
type ReservationRequest struct {
	LocationID *int64 `json:"location_id"`
	Quantity   int64  `json:"quantity"`
	OrderID    *int64 `json:"order_id"`
}

// BatchRequest represents a batch of stock updates
// バッチ操作リクエストを表現
type BatchRequest struct {
	Operations []BatchOperationRequest `json:"operations"`
}

// BatchOperationRequest is one operation of a batch
// バッチ内の個別操作を表現
type BatchOperationRequest struct {
	ProductID int64 `json:"product_id"`
	UpdateStockRequest
}

// ResolveAlertRequest represents request to resolve an alert
// アラート解決リクエストを表現
type ResolveAlertRequest struct {
	Note string `json:"note"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Error("ヘルスチェックに失敗しました", zap.Error(err))
		h.sendError(w, http.StatusServiceUnavailable, "ストレージに接続できません")
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "zaiStockLedger",
	})
}

// GetLevel handles get stock level requests
// 在庫レベル取得リクエストを処理
func (h *Handlers) GetLevel(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}
	locationID, ok := h.locationQuery(w, r)
	if !ok {
		return
	}

	outcome, err := h.service.GetLevel(r.Context(), productID, locationID)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	if !outcome.OK() {
		h.sendOutcomeFailure(w, outcome)
		return
	}
	h.sendSuccess(w, outcome.Item)
}

// ListLevels handles requests for every location's row of a product
// 商品の全ロケーション在庫取得リクエストを処理
func (h *Handlers) ListLevels(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}

	items, err := h.service.ListLevels(r.Context(), productID)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, items)
}

// CreateItem handles create ledger row requests
// 在庫台帳行作成リクエストを処理
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.service.CreateItem(r.Context(), inventory.NewItem{
		ProductID:    req.ProductID,
		LocationID:   h.locationOrDefault(req.LocationID),
		InitialStock: req.InitialStock,
		Thresholds:   req.Thresholds,
		UnitCost:     req.UnitCost,
	})
	h.sendLedgerOutcome(w, http.StatusCreated, outcome, err)
}

// UpdateStock handles the general stock update requests
// 在庫更新リクエストを処理
func (h *Handlers) UpdateStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}
	var req UpdateStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.service.UpdateStock(r.Context(), h.stockUpdate(productID, req))
	h.sendLedgerOutcome(w, http.StatusOK, outcome, err)
}

// AdjustStock handles adjust stock requests
// 在庫調整リクエストを処理
func (h *Handlers) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}
	var req AdjustStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.service.Adjust(r.Context(), productID, h.locationOrDefault(req.LocationID), req.NewQuantity, req.Reason, 0)
	h.sendLedgerOutcome(w, http.StatusOK, outcome, err)
}

// UpdateThresholds handles threshold update requests
// 在庫閾値更新リクエストを処理
func (h *Handlers) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}
	var req ThresholdsRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.service.UpdateThresholds(r.Context(), productID, h.locationOrDefault(req.LocationID), req.Thresholds)
	h.sendLedgerOutcome(w, http.StatusOK, outcome, err)
}

// ReserveStock handles reserve requests
// 在庫予約リクエストを処理
func (h *Handlers) ReserveStock(w http.ResponseWriter, r *http.Request) {
	productID, req, ok := h.reservation(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.Reserve(r.Context(), productID, h.locationOrDefault(req.LocationID), req.Quantity, req.OrderID)
	h.sendLedgerOutcome(w, http.StatusOK, outcome, err)
}

// ReleaseReservation handles release requests
// 在庫予約解除リクエストを処理
func (h *Handlers) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	productID, req, ok := h.reservation(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.Release(r.Context(), productID, h.locationOrDefault(req.LocationID), req.Quantity, req.OrderID)
	h.sendLedgerOutcome(w, http.StatusOK, outcome, err)
}

// ConfirmReservation handles order fulfilment requests
// 予約在庫の出荷確定リクエストを処理
func (h *Handlers) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	productID, req, ok := h.reservation(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.ConfirmReservation(r.Context(), productID, h.locationOrDefault(req.LocationID), req.Quantity, req.OrderID, 0)
	h.sendLedgerOutcome(w, http.StatusOK, outcome, err)
}

// BatchOperation handles batch operations
// バッチ操作を処理
func (h *Handlers) BatchOperation(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	operations := make([]inventory.StockUpdate, 0, len(req.Operations))
	for _, op := range req.Operations {
		operations = append(operations, h.stockUpdate(op.ProductID, op.UpdateStockRequest))
	}

	batch, err := h.service.ExecuteBatch(r.Context(), operations)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, batch)
}

// LowStock handles low stock listing requests
// 低在庫一覧リクエストを処理
func (h *Handlers) LowStock(w http.ResponseWriter, r *http.Request) {
	h.sendView(w, r, h.service.LowStock)
}

// OutOfStock handles out of stock listing requests
// 在庫切れ一覧リクエストを処理
func (h *Handlers) OutOfStock(w http.ResponseWriter, r *http.Request) {
	h.sendView(w, r, h.service.OutOfStock)
}

// Overstock handles overstock listing requests
// 過剰在庫一覧リクエストを処理
func (h *Handlers) Overstock(w http.ResponseWriter, r *http.Request) {
	h.sendView(w, r, h.service.Overstock)
}

// ReorderRequired handles reorder listing requests
// 要発注一覧リクエストを処理
func (h *Handlers) ReorderRequired(w http.ResponseWriter, r *http.Request) {
	h.sendView(w, r, h.service.ReorderRequired)
}

// ListMovements handles movement history requests
// 在庫移動履歴リクエストを処理
func (h *Handlers) ListMovements(w http.ResponseWriter, r *http.Request) {
	var filter inventory.MovementFilter
	var ok bool
	if filter.ProductID, ok = h.optionalQueryID(w, r, "productId"); !ok {
		return
	}
	if filter.LocationID, ok = h.optionalQueryID(w, r, "locationId"); !ok {
		return
	}
	if filter.ReferenceID, ok = h.optionalQueryID(w, r, "referenceId"); !ok {
		return
	}

	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		movementType := inventory.MovementType(v)
		filter.MovementType = &movementType
	}
	if filter.From, ok = h.optionalQueryTime(w, r, "from"); !ok {
		return
	}
	if filter.To, ok = h.optionalQueryTime(w, r, "to"); !ok {
		return
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "無効なlimitです")
			return
		}
		filter.Limit = limit
	}

	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, movements)
}

// VerifyChain handles movement log audit requests
// 移動履歴の検証リクエストを処理
func (h *Handlers) VerifyChain(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}
	locationID, ok := h.locationQuery(w, r)
	if !ok {
		return
	}

	report, err := h.service.VerifyChain(r.Context(), productID, locationID)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, report)
}

// Report handles ledger report requests
// 在庫レポートリクエストを処理
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	locationID, ok := h.optionalQueryID(w, r, "locationId")
	if !ok {
		return
	}

	report, err := h.service.Report(r.Context(), locationID)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, report)
}

// Valuation handles per-location valuation requests
// ロケーション別在庫評価額リクエストを処理
func (h *Handlers) Valuation(w http.ResponseWriter, r *http.Request) {
	valuation, err := h.service.ValuationByLocation(r.Context())
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, valuation)
}

// ListAlerts handles alert listing requests
// アラート一覧リクエストを処理
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	var filter inventory.AlertFilter
	var ok bool
	if filter.LocationID, ok = h.optionalQueryID(w, r, "locationId"); !ok {
		return
	}
	if filter.ProductID, ok = h.optionalQueryID(w, r, "productId"); !ok {
		return
	}

	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		alertType := inventory.AlertType(v)
		filter.AlertType = &alertType
	}
	filter.ActiveOnly = q.Get("all") != "true"

	alerts, err := h.service.ListAlerts(r.Context(), filter)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, alerts)
}

// RefreshAlerts handles ledger-wide alert evaluation requests
// アラート再評価リクエストを処理
func (h *Handlers) RefreshAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.RefreshAlerts(r.Context())
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, alerts)
}

// ResolveAlert handles resolve alert requests
// アラート解決リクエストを処理
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID, ok := h.pathID(w, r, "alertId")
	if !ok {
		return
	}
	var req ResolveAlertRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	alert, err := h.service.ResolveAlert(r.Context(), alertID, 0, req.Note)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, alert)
}

// ヘルパーメソッド

func (h *Handlers) stockUpdate(productID int64, req UpdateStockRequest) inventory.StockUpdate {
	return inventory.StockUpdate{
		ProductID:    productID,
		LocationID:   h.locationOrDefault(req.LocationID),
		Quantity:     req.Quantity,
		MovementType: req.MovementType,
		Reason:       req.Reason,
		UnitCost:     req.UnitCost,
		OrderID:      req.OrderID,
		ReferenceID:  req.ReferenceID,
	}
}

func (h *Handlers) reservation(w http.ResponseWriter, r *http.Request) (int64, ReservationRequest, bool) {
	var req ReservationRequest
	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return 0, req, false
	}
	if !h.decode(w, r, &req) {
		return 0, req, false
	}
	return productID, req, true
}

type viewFunc func(ctx context.Context, locationID *int64) ([]inventory.ItemWithProduct, error)

func (h *Handlers) sendView(w http.ResponseWriter, r *http.Request, view viewFunc) {
	locationID, ok := h.optionalQueryID(w, r, "locationId")
	if !ok {
		return
	}
	items, err := view(r.Context(), locationID)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, items)
}

func (h *Handlers) locationOrDefault(locationID *int64) int64 {
	if locationID != nil {
		return *locationID
	}
	return h.service.DefaultLocationID()
}

// locationQuery reads ?locationId=, falling back to the configured default location
func (h *Handlers) locationQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	locationID, ok := h.optionalQueryID(w, r, "locationId")
	if !ok {
		return 0, false
	}
	return h.locationOrDefault(locationID), true
}

func (h *Handlers) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		h.sendError(w, http.StatusBadRequest, "無効なIDです: "+name)
		return 0, false
	}
	return id, true
}

func (h *Handlers) optionalQueryID(w http.ResponseWriter, r *http.Request, name string) (*int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		h.sendError(w, http.StatusBadRequest, "無効なIDです: "+name)
		return nil, false
	}
	return &id, true
}

func (h *Handlers) optionalQueryTime(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "無効な日時です (RFC3339): "+name)
		return nil, false
	}
	return &t, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return false
	}
	return true
}

// decodeOptional is decode for requests whose body may be empty
func (h *Handlers) decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return false
	}
	return true
}

// sendLedgerOutcome maps a ledger outcome onto the response
func (h *Handlers) sendLedgerOutcome(w http.ResponseWriter, status int, outcome inventory.Outcome, err error) {
	if err != nil {
		h.sendErr(w, err)
		return
	}
	if !outcome.OK() {
		h.sendOutcomeFailure(w, outcome)
		return
	}
	h.sendJSON(w, status, APIResponse{
		Success: true,
		Data:    LedgerResult{Item: outcome.Item, Movement: outcome.Movement},
	})
}

func (h *Handlers) sendOutcomeFailure(w http.ResponseWriter, outcome inventory.Outcome) {
	switch outcome.Kind {
	case inventory.OutcomeNotFound:
		h.sendError(w, http.StatusNotFound, inventory.ErrItemNotFound.Error())
	case inventory.OutcomeInsufficientStock:
		h.sendError(w, http.StatusConflict, inventory.ErrInsufficientStock.Error())
	case inventory.OutcomeAlreadyExists:
		h.sendError(w, http.StatusConflict, inventory.ErrDuplicateItem.Error())
	default:
		h.sendError(w, http.StatusInternalServerError, "不明な処理結果です")
	}
}

// errorStatus maps service errors onto HTTP status codes
// エラーをHTTPステータスに変換
func errorStatus(err error) int {
	switch {
	case inventory.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrMissingActor):
		return http.StatusUnauthorized
	case errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, inventory.ErrLocationNotFound),
		errors.Is(err, inventory.ErrItemNotFound),
		errors.Is(err, inventory.ErrAlertNotFound),
		errors.Is(err, inventory.ErrTransferNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInvalidTransition),
		errors.Is(err, inventory.ErrDuplicateItem),
		errors.Is(err, inventory.ErrDuplicateLocation),
		errors.Is(err, inventory.ErrLocationInactive),
		errors.Is(err, inventory.ErrLocationInUse),
		errors.Is(err, inventory.ErrAlertResolved):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handlers) sendErr(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました", zap.Error(err))
		h.sendError(w, status, "内部エラーが発生しました")
		return
	}
	h.sendError(w, status, err.Error())
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

func (h *Handlers) sendJSON(w http.ResponseWriter, statusCode int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}
