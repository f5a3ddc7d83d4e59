package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
	"github.com/nemonet1337/zaiStockLedger/pkg/inventory/storage"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type apiFixture struct {
	t      *testing.T
	router http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := storage.NewMemoryStorage(
		inventory.Product{ID: 100, Name: "ボールペン", SKU: "PEN-100"},
	)
	registry := prometheus.NewRegistry()
	manager := inventory.NewManager(store, store, nil, inventory.NewMetrics(registry), zap.NewNop(), nil)
	router := setupRouter(NewHandlers(manager, zap.NewNop()), newHTTPMetrics(registry))

	f := &apiFixture{t: t, router: router}
	f.mustStatus(http.StatusCreated, "POST", "/api/v1/locations", map[string]interface{}{"name": "倉庫A", "type": "warehouse"})
	f.mustStatus(http.StatusCreated, "POST", "/api/v1/locations", map[string]interface{}{"name": "店舗B", "type": "store"})
	return f
}

func (f *apiFixture) do(method, path string, body interface{}, userID string) (*httptest.ResponseRecorder, envelope) {
	f.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (f *apiFixture) mustStatus(status int, method, path string, body interface{}) envelope {
	f.t.Helper()
	rec, env := f.do(method, path, body, "7")
	require.Equal(f.t, status, rec.Code, rec.Body.String())
	return env
}

func (f *apiFixture) createItem(initial int64) {
	f.mustStatus(http.StatusCreated, "POST", "/api/v1/inventory", map[string]interface{}{
		"product_id":    100,
		"initial_stock": initial,
		"unit_cost":     "2.00",
		"minimum_stock": 5,
		"maximum_stock": 100,
		"reorder_point": 4,
	})
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)
	rec, env := f.do("GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestActorRequiredForMutations(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do("POST", "/api/v1/inventory/100/update", map[string]interface{}{"quantity": 1, "movement_type": "in"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, inventory.ErrMissingActor.Error(), env.Error)

	rec, _ = f.do("GET", "/api/v1/locations", nil, "abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 参照系は操作者なしでも可
	rec, _ = f.do("GET", "/api/v1/locations", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetLevel(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do("GET", "/api/v1/inventory/100", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, inventory.ErrItemNotFound.Error(), env.Error)

	f.createItem(50)

	env = f.mustStatus(http.StatusOK, "GET", "/api/v1/inventory/100?locationId=1", nil)
	var item inventory.InventoryItem
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, int64(50), item.CurrentStock)
	assert.Equal(t, inventory.StockStatusInStock, item.StockStatus)

	rec, _ = f.do("GET", "/api/v1/inventory/100?locationId=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStock(t *testing.T) {
	f := newAPIFixture(t)
	f.createItem(50)

	env := f.mustStatus(http.StatusOK, "POST", "/api/v1/inventory/100/update", map[string]interface{}{
		"quantity":      25,
		"movement_type": "in",
		"reason":        "入荷",
		"unit_cost":     "2.00",
	})
	var result struct {
		Item     inventory.InventoryItem `json:"item"`
		Movement inventory.StockMovement `json:"movement"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, int64(75), result.Item.CurrentStock)
	assert.Equal(t, "150.00", result.Item.TotalValue.StringFixed(2))
	assert.Equal(t, int64(50), result.Movement.StockBefore)
	assert.Equal(t, int64(75), result.Movement.StockAfter)
	assert.Equal(t, int64(7), result.Movement.PerformedBy)

	rec, env := f.do("POST", "/api/v1/inventory/100/update", map[string]interface{}{"quantity": 0, "movement_type": "in"}, "7")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, _ = f.do("POST", "/api/v1/inventory/100/update", `{"quantity":`, "7")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env = f.mustStatus(http.StatusOK, "GET", "/api/v1/inventory/movements?productId=100&limit=1", nil)
	var movements []inventory.StockMovement
	require.NoError(t, json.Unmarshal(env.Data, &movements))
	require.Len(t, movements, 1)
	assert.Equal(t, inventory.MovementTypeIn, movements[0].MovementType)
	assert.Equal(t, int64(75), movements[0].StockAfter)
}

func TestReservationEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.createItem(10)

	f.mustStatus(http.StatusOK, "POST", "/api/v1/inventory/100/reserve", map[string]interface{}{"quantity": 10})

	rec, env := f.do("POST", "/api/v1/inventory/100/reserve", map[string]interface{}{"quantity": 1}, "7")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, inventory.ErrInsufficientStock.Error(), env.Error)

	env = f.mustStatus(http.StatusOK, "POST", "/api/v1/inventory/100/confirm", map[string]interface{}{"quantity": 4})
	var result LedgerResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, int64(6), result.Item.CurrentStock)
	assert.Equal(t, int64(6), result.Item.ReservedStock)
	assert.Equal(t, int64(0), result.Item.AvailableStock)
}

func TestTransferEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.createItem(50)

	env := f.mustStatus(http.StatusCreated, "POST", "/api/v1/transfers", map[string]interface{}{
		"source_location_id":      1,
		"destination_location_id": 2,
		"items":                   []map[string]interface{}{{"product_id": 100, "quantity": 10}},
	})
	var transfer inventory.StockTransfer
	require.NoError(t, json.Unmarshal(env.Data, &transfer))
	assert.Equal(t, inventory.TransferStatusRequested, transfer.Status)
	assert.Equal(t, int64(7), transfer.RequestedBy)

	base := fmt.Sprintf("/api/v1/transfers/%d", transfer.ID)
	rec, env := f.do("POST", base+"/complete", nil, "7")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	f.mustStatus(http.StatusOK, "POST", base+"/approve", nil)
	f.mustStatus(http.StatusOK, "POST", base+"/ship", nil)
	env = f.mustStatus(http.StatusOK, "POST", base+"/complete", nil)
	require.NoError(t, json.Unmarshal(env.Data, &transfer))
	assert.Equal(t, inventory.TransferStatusCompleted, transfer.Status)

	env = f.mustStatus(http.StatusOK, "GET", "/api/v1/inventory/100?locationId=2", nil)
	var item inventory.InventoryItem
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, int64(10), item.CurrentStock)

	rec, _ = f.do("GET", "/api/v1/transfers/999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTransfer_RequesterFromHeader(t *testing.T) {
	f := newAPIFixture(t)
	f.createItem(50)

	// 本文の requested_by は無視され X-User-ID の操作者が記録される
	env := f.mustStatus(http.StatusCreated, "POST", "/api/v1/transfers", map[string]interface{}{
		"source_location_id":      1,
		"destination_location_id": 2,
		"requested_by":            999,
		"items":                   []map[string]interface{}{{"product_id": 100, "quantity": 5}},
	})
	var transfer inventory.StockTransfer
	require.NoError(t, json.Unmarshal(env.Data, &transfer))
	assert.Equal(t, int64(7), transfer.RequestedBy)

	env = f.mustStatus(http.StatusOK, "GET", fmt.Sprintf("/api/v1/transfers/%d", transfer.ID), nil)
	var stored inventory.StockTransfer
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Equal(t, int64(7), stored.RequestedBy)
}

func TestOptionalBody(t *testing.T) {
	f := newAPIFixture(t)
	f.createItem(50)

	env := f.mustStatus(http.StatusCreated, "POST", "/api/v1/transfers", map[string]interface{}{
		"source_location_id":      1,
		"destination_location_id": 2,
		"items":                   []map[string]interface{}{{"product_id": 100, "quantity": 5}},
	})
	var transfer inventory.StockTransfer
	require.NoError(t, json.Unmarshal(env.Data, &transfer))

	send := func(body string, contentLength int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/transfers/%d/reject", transfer.ID), io.NopCloser(strings.NewReader(body)))
		req.ContentLength = contentLength
		req.Header.Set(headerUserID, "7")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	// 長さ不明 (chunked) の不正な本文は 400
	rec := send(`{"reason":`, -1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 長さ不明 (chunked) の空本文は本文なしとして扱う
	rec = send("", -1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rejected envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejected))
	require.NoError(t, json.Unmarshal(rejected.Data, &transfer))
	assert.Equal(t, inventory.TransferStatusRejected, transfer.Status)
}

func TestLocationEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do("POST", "/api/v1/locations", map[string]interface{}{"name": " 倉庫A ", "type": "warehouse"}, "7")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, inventory.ErrDuplicateLocation.Error(), env.Error)

	rec, _ = f.do("POST", "/api/v1/locations", map[string]interface{}{"name": "工場", "type": "factory"}, "7")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.mustStatus(http.StatusOK, "POST", "/api/v1/locations/2/deactivate", nil)
	env = f.mustStatus(http.StatusOK, "GET", "/api/v1/locations?active=true", nil)
	var locations []inventory.Location
	require.NoError(t, json.Unmarshal(env.Data, &locations))
	require.Len(t, locations, 1)
	assert.Equal(t, int64(1), locations[0].ID)
}

func TestBatchEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.createItem(10)

	env := f.mustStatus(http.StatusOK, "POST", "/api/v1/inventory/batch", map[string]interface{}{
		"operations": []map[string]interface{}{
			{"product_id": 100, "quantity": 5, "movement_type": "in"},
			{"product_id": 100, "quantity": 0, "movement_type": "in"},
		},
	})
	var batch inventory.BatchOperation
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	assert.Equal(t, inventory.BatchStatusPartial, batch.Status)
	assert.Equal(t, 1, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)
}

func TestAlertEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.createItem(50)

	f.mustStatus(http.StatusOK, "POST", "/api/v1/inventory/100/update", map[string]interface{}{"quantity": 47, "movement_type": "out"})

	env := f.mustStatus(http.StatusOK, "GET", "/api/v1/alerts", nil)
	var alerts []inventory.InventoryAlert
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	require.NotEmpty(t, alerts)

	path := fmt.Sprintf("/api/v1/alerts/%d/resolve", alerts[0].ID)
	f.mustStatus(http.StatusOK, "POST", path, map[string]interface{}{"note": "補充済み"})

	rec, env := f.do("POST", path, map[string]interface{}{"note": "再度"}, "7")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, inventory.ErrAlertResolved.Error(), env.Error)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{inventory.NewValidationError("quantity", "不正な数量です", "0"), http.StatusBadRequest},
		{inventory.ErrMissingActor, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", inventory.ErrLocationNotFound), http.StatusNotFound},
		{inventory.ErrTransferNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", inventory.ErrInsufficientStock), http.StatusConflict},
		{inventory.NewTransitionError(1, inventory.TransferStatusRequested, inventory.TransferStatusCompleted), http.StatusConflict},
		{inventory.ErrLocationInUse, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}
