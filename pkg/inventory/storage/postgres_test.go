package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

func TestItemQuery(t *testing.T) {
	query, args := itemQuery(inventory.ItemFilter{})
	assert.Equal(t, "SELECT "+itemColumns+" FROM inventory_items ORDER BY product_id, location_id", query)
	assert.Empty(t, args)

	productID, locationID := int64(3), int64(9)
	status := inventory.StockStatusLowStock
	query, args = itemQuery(inventory.ItemFilter{ProductID: &productID, LocationID: &locationID, Status: &status, ReorderOnly: true})
	assert.Contains(t, query, " WHERE product_id = :product_id AND location_id = :location_id AND stock_status = :stock_status AND current_stock <= reorder_point ")
	assert.Equal(t, map[string]interface{}{
		"product_id":   productID,
		"location_id":  locationID,
		"stock_status": "low_stock",
	}, args)
}

func TestMovementQuery(t *testing.T) {
	query, _ := movementQuery(inventory.MovementFilter{Limit: 50})
	assert.Contains(t, query, "ORDER BY created_at DESC, id DESC LIMIT 50")

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	ref := int64(12)
	movementType := inventory.MovementTypeOut
	query, args := movementQuery(inventory.MovementFilter{
		MovementType: &movementType,
		ReferenceID:  &ref,
		From:         &from,
		To:           &to,
		Ascending:    true,
	})
	assert.Contains(t, query, "movement_type = :movement_type AND reference_id = :reference_id AND created_at >= :from AND created_at <= :to")
	assert.Contains(t, query, "ORDER BY created_at, id")
	assert.NotContains(t, query, "LIMIT")
	assert.Equal(t, "out", args["movement_type"])
	assert.Equal(t, from, args["from"])

	// 名前付きパラメータが $n に変換できること
	bound, bindArgs, err := sqlx.Named(query, args)
	require.NoError(t, err)
	rebound := sqlx.Rebind(sqlx.DOLLAR, bound)
	assert.Contains(t, rebound, "$4")
	assert.Len(t, bindArgs, 4)
}

func TestAlertQuery(t *testing.T) {
	alertType := inventory.AlertTypeOverstock
	query, args := alertQuery(inventory.AlertFilter{AlertType: &alertType, ActiveOnly: true})
	assert.Contains(t, query, "WHERE alert_type = :alert_type AND is_active ORDER BY created_at DESC, id DESC")
	assert.Equal(t, "overstock", args["alert_type"])
}

func TestTransferQuery(t *testing.T) {
	locationID := int64(4)
	query, args := transferQuery(inventory.TransferFilter{LocationID: &locationID})
	assert.Contains(t, query, "(source_location_id = :location_id OR destination_location_id = :location_id)")

	bound, bindArgs, err := sqlx.Named(query, args)
	require.NoError(t, err)
	assert.Len(t, bindArgs, 2)
	assert.Contains(t, sqlx.Rebind(sqlx.DOLLAR, bound), "$2")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: uniqueViolation}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: uniqueViolation})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("other")))
}

// TestPostgreSQLStorage_Integration runs against a migrated database named by
// TEST_DATABASE_URL and is skipped otherwise.
func TestPostgreSQLStorage_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップします")
	}

	ctx := context.Background()
	store, err := NewPostgreSQLStorage(ctx, dsn, Options{MaxOpenConns: 4}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	location := &inventory.Location{
		Name:      fmt.Sprintf("integration-%d", time.Now().UnixNano()),
		Type:      inventory.LocationTypeVirtual,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.CreateLocation(ctx, location))
	assert.Positive(t, location.ID)
	assert.ErrorIs(t, store.CreateLocation(ctx, &inventory.Location{Name: location.Name, Type: location.Type}), inventory.ErrDuplicateLocation)

	// fn のエラーはそのまま返りロールバックされる
	sentinel := errors.New("abort")
	err = store.WithTx(ctx, func(tx inventory.Tx) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
