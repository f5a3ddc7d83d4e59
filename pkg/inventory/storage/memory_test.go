package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

func seededStore(t *testing.T) (*MemoryStorage, int64) {
	t.Helper()
	store := NewMemoryStorage(inventory.Product{ID: 1, Name: "商品", SKU: "SKU-1"})
	location := &inventory.Location{Name: "倉庫", Type: inventory.LocationTypeWarehouse, IsActive: true}
	require.NoError(t, store.CreateLocation(context.Background(), location))
	return store, location.ID
}

func TestMemoryStorage_WithTxRollback(t *testing.T) {
	ctx := context.Background()
	store, locationID := seededStore(t)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx inventory.Tx) error {
		item := &inventory.InventoryItem{ProductID: 1, LocationID: locationID, CurrentStock: 5}
		require.NoError(t, tx.InsertItem(ctx, item))
		require.NoError(t, tx.InsertMovement(ctx, &inventory.StockMovement{ProductID: 1, LocationID: locationID, StockAfter: 5}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetItem(ctx, 1, locationID)
	assert.ErrorIs(t, err, inventory.ErrItemNotFound)
	movements, err := store.ListMovements(ctx, inventory.MovementFilter{})
	require.NoError(t, err)
	assert.Empty(t, movements)

	// ロールバック後も採番は巻き戻る
	err = store.WithTx(ctx, func(tx inventory.Tx) error {
		item := &inventory.InventoryItem{ProductID: 1, LocationID: locationID}
		require.NoError(t, tx.InsertItem(ctx, item))
		assert.Equal(t, int64(1), item.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStorage_InsertItemDuplicate(t *testing.T) {
	ctx := context.Background()
	store, locationID := seededStore(t)

	err := store.WithTx(ctx, func(tx inventory.Tx) error {
		if err := tx.InsertItem(ctx, &inventory.InventoryItem{ProductID: 1, LocationID: locationID}); err != nil {
			return err
		}
		return tx.InsertItem(ctx, &inventory.InventoryItem{ProductID: 1, LocationID: locationID})
	})
	assert.ErrorIs(t, err, inventory.ErrDuplicateItem)
}

func TestMemoryStorage_AlertDedupe(t *testing.T) {
	ctx := context.Background()
	store, locationID := seededStore(t)

	insert := func() bool {
		var inserted bool
		require.NoError(t, store.WithTx(ctx, func(tx inventory.Tx) error {
			var err error
			inserted, err = tx.InsertAlert(ctx, &inventory.InventoryAlert{
				ProductID: 1, LocationID: locationID, AlertType: inventory.AlertTypeLowStock, IsActive: true,
			})
			return err
		}))
		return inserted
	}

	assert.True(t, insert())
	assert.False(t, insert())

	alerts, err := store.ListAlerts(ctx, inventory.AlertFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	require.NoError(t, store.ResolveAlert(ctx, alerts[0].ID, 9, "対応済み", time.Now()))
	assert.ErrorIs(t, store.ResolveAlert(ctx, alerts[0].ID, 9, "", time.Now()), inventory.ErrAlertResolved)

	// 解決済みのみなら再作成できる
	assert.True(t, insert())
	all, err := store.ListAlerts(ctx, inventory.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStorage_ListMovementsOrder(t *testing.T) {
	ctx := context.Background()
	store, locationID := seededStore(t)

	require.NoError(t, store.WithTx(ctx, func(tx inventory.Tx) error {
		for i := int64(1); i <= 3; i++ {
			if err := tx.InsertMovement(ctx, &inventory.StockMovement{ProductID: 1, LocationID: locationID, StockAfter: i}); err != nil {
				return err
			}
		}
		return nil
	}))

	newest, err := store.ListMovements(ctx, inventory.MovementFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, int64(3), newest[0].StockAfter)
	assert.Equal(t, int64(2), newest[1].StockAfter)

	oldest, err := store.ListMovements(ctx, inventory.MovementFilter{Ascending: true})
	require.NoError(t, err)
	require.Len(t, oldest, 3)
	assert.Equal(t, int64(1), oldest[0].StockAfter)
}

func TestMemoryStorage_Locations(t *testing.T) {
	ctx := context.Background()
	store, locationID := seededStore(t)

	err := store.CreateLocation(ctx, &inventory.Location{Name: "倉庫", Type: inventory.LocationTypeStore})
	assert.ErrorIs(t, err, inventory.ErrDuplicateLocation)

	other := &inventory.Location{Name: "店舗", Type: inventory.LocationTypeStore}
	require.NoError(t, store.CreateLocation(ctx, other))

	renamed := *other
	renamed.Name = "倉庫"
	assert.ErrorIs(t, store.UpdateLocation(ctx, &renamed), inventory.ErrDuplicateLocation)

	active, err := store.ListLocations(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, locationID, active[0].ID)
}

func TestMemoryStorage_Transfers(t *testing.T) {
	ctx := context.Background()
	store, locationID := seededStore(t)

	transfer := &inventory.StockTransfer{
		SourceLocationID:      locationID,
		DestinationLocationID: 99,
		Status:                inventory.TransferStatusRequested,
		Items:                 []inventory.TransferItem{{ProductID: 1, Quantity: 2}},
	}
	require.NoError(t, store.WithTx(ctx, func(tx inventory.Tx) error {
		return tx.InsertTransfer(ctx, transfer)
	}))
	assert.Equal(t, transfer.ID, transfer.Items[0].TransferID)

	open, err := store.CountOpenTransfers(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	require.NoError(t, store.WithTx(ctx, func(tx inventory.Tx) error {
		locked, err := tx.LockTransfer(ctx, transfer.ID)
		if err != nil {
			return err
		}
		locked.Status = inventory.TransferStatusRejected
		locked.Items = nil
		return tx.SaveTransfer(ctx, locked)
	}))

	stored, err := store.GetTransfer(ctx, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.TransferStatusRejected, stored.Status)
	assert.Len(t, stored.Items, 1)

	open, err = store.CountOpenTransfers(ctx, 99)
	require.NoError(t, err)
	assert.Zero(t, open)

	_, err = store.GetTransfer(ctx, 404)
	assert.ErrorIs(t, err, inventory.ErrTransferNotFound)
}

func TestMemoryStorage_Catalog(t *testing.T) {
	store := NewMemoryStorage()
	_, err := store.GetProduct(context.Background(), 5)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)

	store.AddProduct(inventory.Product{ID: 5, Name: "追加商品"})
	product, err := store.GetProduct(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "追加商品", product.Name)
}
