package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

type itemKey struct {
	productID  int64
	locationID int64
}

// memoryState is everything a MemoryStorage holds; WithTx snapshots it for rollback.
type memoryState struct {
	products  map[int64]inventory.Product
	locations map[int64]inventory.Location
	items     map[itemKey]inventory.InventoryItem
	movements []inventory.StockMovement
	alerts    []inventory.InventoryAlert
	transfers map[int64]inventory.StockTransfer

	locationSeq int64
	itemSeq     int64
	movementSeq int64
	alertSeq    int64
	transferSeq int64
}

// MemoryStorage is an in-process implementation of inventory.Storage and
// inventory.ProductCatalog. Transactions are serialised by a single mutex and
// rolled back by restoring a snapshot.
// メモリ上のストレージ実装（開発・テスト用）
type MemoryStorage struct {
	mu    sync.Mutex
	state memoryState
}

var (
	_ inventory.Storage        = (*MemoryStorage)(nil)
	_ inventory.ProductCatalog = (*MemoryStorage)(nil)
	_ inventory.Tx             = (*memoryTx)(nil)
)

// NewMemoryStorage creates an empty store whose catalog holds products
// 新しいメモリストレージを作成
func NewMemoryStorage(products ...inventory.Product) *MemoryStorage {
	s := &MemoryStorage{state: memoryState{
		products:  make(map[int64]inventory.Product),
		locations: make(map[int64]inventory.Location),
		items:     make(map[itemKey]inventory.InventoryItem),
		transfers: make(map[int64]inventory.StockTransfer),
	}}
	for _, p := range products {
		s.state.products[p.ID] = p
	}
	return s
}

// AddProduct adds or replaces a catalog entry
// 商品カタログに商品を追加
func (s *MemoryStorage) AddProduct(product inventory.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[product.ID] = product
}

// WithTx runs fn under the store lock. If fn fails, every change it made is discarded.
// トランザクション内でfnを実行
func (s *MemoryStorage) WithTx(ctx context.Context, fn func(tx inventory.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memoryTx{state: &s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// GetProduct gets a product from the seeded catalog
func (s *MemoryStorage) GetProduct(_ context.Context, productID int64) (*inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.products[productID]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return &p, nil
}

func (s *MemoryStorage) GetItem(_ context.Context, productID, locationID int64) (*inventory.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.state.items[itemKey{productID, locationID}]
	if !ok {
		return nil, inventory.ErrItemNotFound
	}
	return &item, nil
}

func (s *MemoryStorage) ListItems(_ context.Context, filter inventory.ItemFilter) ([]inventory.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []inventory.InventoryItem{}
	for _, item := range s.state.items {
		if filter.ProductID != nil && item.ProductID != *filter.ProductID {
			continue
		}
		if filter.LocationID != nil && item.LocationID != *filter.LocationID {
			continue
		}
		if filter.Status != nil && item.StockStatus != *filter.Status {
			continue
		}
		if filter.ReorderOnly && item.CurrentStock > item.ReorderPoint {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].ProductID != items[j].ProductID {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].LocationID < items[j].LocationID
	})
	return items, nil
}

func (s *MemoryStorage) ListMovements(_ context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movements := []inventory.StockMovement{}
	for _, mv := range s.state.movements {
		if filter.ProductID != nil && mv.ProductID != *filter.ProductID {
			continue
		}
		if filter.LocationID != nil && mv.LocationID != *filter.LocationID {
			continue
		}
		if filter.MovementType != nil && mv.MovementType != *filter.MovementType {
			continue
		}
		if filter.ReferenceID != nil && (mv.ReferenceID == nil || *mv.ReferenceID != *filter.ReferenceID) {
			continue
		}
		if filter.From != nil && mv.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && mv.CreatedAt.After(*filter.To) {
			continue
		}
		movements = append(movements, mv)
	}

	// 追記順 = ID順
	if !filter.Ascending {
		for i, j := 0, len(movements)-1; i < j; i, j = i+1, j-1 {
			movements[i], movements[j] = movements[j], movements[i]
		}
	}
	if filter.Limit > 0 && len(movements) > filter.Limit {
		movements = movements[:filter.Limit]
	}
	return movements, nil
}

func (s *MemoryStorage) CreateLocation(_ context.Context, location *inventory.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.nameTaken(location.Name, 0) {
		return inventory.ErrDuplicateLocation
	}
	s.state.locationSeq++
	location.ID = s.state.locationSeq
	s.state.locations[location.ID] = *location
	return nil
}

func (s *MemoryStorage) GetLocation(_ context.Context, locationID int64) (*inventory.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	location, ok := s.state.locations[locationID]
	if !ok {
		return nil, inventory.ErrLocationNotFound
	}
	return &location, nil
}

func (s *MemoryStorage) UpdateLocation(_ context.Context, location *inventory.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.locations[location.ID]; !ok {
		return inventory.ErrLocationNotFound
	}
	if s.state.nameTaken(location.Name, location.ID) {
		return inventory.ErrDuplicateLocation
	}
	s.state.locations[location.ID] = *location
	return nil
}

func (s *MemoryStorage) ListLocations(_ context.Context, activeOnly bool) ([]inventory.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locations := []inventory.Location{}
	for _, location := range s.state.locations {
		if activeOnly && !location.IsActive {
			continue
		}
		locations = append(locations, location)
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].ID < locations[j].ID })
	return locations, nil
}

func (s *MemoryStorage) GetTransfer(_ context.Context, transferID int64) (*inventory.StockTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.transfer(transferID)
}

func (s *MemoryStorage) ListTransfers(_ context.Context, filter inventory.TransferFilter) ([]inventory.StockTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfers := []inventory.StockTransfer{}
	for _, t := range s.state.transfers {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.LocationID != nil && t.SourceLocationID != *filter.LocationID && t.DestinationLocationID != *filter.LocationID {
			continue
		}
		t.Items = append([]inventory.TransferItem(nil), t.Items...)
		transfers = append(transfers, t)
	}
	sort.Slice(transfers, func(i, j int) bool { return transfers[i].ID > transfers[j].ID })
	return transfers, nil
}

func (s *MemoryStorage) CountOpenTransfers(_ context.Context, locationID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.state.transfers {
		if t.IsOpen() && (t.SourceLocationID == locationID || t.DestinationLocationID == locationID) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) GetAlert(_ context.Context, alertID int64) (*inventory.InventoryAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alert := range s.state.alerts {
		if alert.ID == alertID {
			return &alert, nil
		}
	}
	return nil, inventory.ErrAlertNotFound
}

func (s *MemoryStorage) ListAlerts(_ context.Context, filter inventory.AlertFilter) ([]inventory.InventoryAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := []inventory.InventoryAlert{}
	for i := len(s.state.alerts) - 1; i >= 0; i-- {
		alert := s.state.alerts[i]
		if filter.ProductID != nil && alert.ProductID != *filter.ProductID {
			continue
		}
		if filter.LocationID != nil && alert.LocationID != *filter.LocationID {
			continue
		}
		if filter.AlertType != nil && alert.AlertType != *filter.AlertType {
			continue
		}
		if filter.ActiveOnly && !alert.IsActive {
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (s *MemoryStorage) ResolveAlert(_ context.Context, alertID, resolvedBy int64, note string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.alerts {
		alert := &s.state.alerts[i]
		if alert.ID != alertID {
			continue
		}
		if !alert.IsActive {
			return inventory.ErrAlertResolved
		}
		alert.IsActive = false
		alert.ResolvedAt = &at
		alert.ResolvedBy = &resolvedBy
		alert.ResolutionNote = note
		return nil
	}
	return inventory.ErrAlertNotFound
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStorage) Close() error {
	return nil
}

// memoryTx operates on the state while the store lock is held.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) LockItem(_ context.Context, productID, locationID int64) (*inventory.InventoryItem, error) {
	item, ok := t.state.items[itemKey{productID, locationID}]
	if !ok {
		return nil, inventory.ErrItemNotFound
	}
	return &item, nil
}

func (t *memoryTx) InsertItem(_ context.Context, item *inventory.InventoryItem) error {
	key := itemKey{item.ProductID, item.LocationID}
	if _, ok := t.state.items[key]; ok {
		return inventory.ErrDuplicateItem
	}
	t.state.itemSeq++
	item.ID = t.state.itemSeq
	t.state.items[key] = *item
	return nil
}

func (t *memoryTx) SaveItem(_ context.Context, item *inventory.InventoryItem) error {
	key := itemKey{item.ProductID, item.LocationID}
	if _, ok := t.state.items[key]; !ok {
		return inventory.ErrItemNotFound
	}
	t.state.items[key] = *item
	return nil
}

func (t *memoryTx) InsertMovement(_ context.Context, movement *inventory.StockMovement) error {
	t.state.movementSeq++
	movement.ID = t.state.movementSeq
	t.state.movements = append(t.state.movements, *movement)
	return nil
}

func (t *memoryTx) InsertAlert(_ context.Context, alert *inventory.InventoryAlert) (bool, error) {
	for _, existing := range t.state.alerts {
		if existing.IsActive && existing.ProductID == alert.ProductID &&
			existing.LocationID == alert.LocationID && existing.AlertType == alert.AlertType {
			return false, nil
		}
	}
	t.state.alertSeq++
	alert.ID = t.state.alertSeq
	t.state.alerts = append(t.state.alerts, *alert)
	return true, nil
}

func (t *memoryTx) LockTransfer(_ context.Context, transferID int64) (*inventory.StockTransfer, error) {
	return t.state.transfer(transferID)
}

func (t *memoryTx) InsertTransfer(_ context.Context, transfer *inventory.StockTransfer) error {
	t.state.transferSeq++
	transfer.ID = t.state.transferSeq
	for i := range transfer.Items {
		transfer.Items[i].TransferID = transfer.ID
	}
	stored := *transfer
	stored.Items = append([]inventory.TransferItem(nil), transfer.Items...)
	t.state.transfers[transfer.ID] = stored
	return nil
}

func (t *memoryTx) SaveTransfer(_ context.Context, transfer *inventory.StockTransfer) error {
	existing, ok := t.state.transfers[transfer.ID]
	if !ok {
		return inventory.ErrTransferNotFound
	}
	stored := *transfer
	stored.Items = existing.Items
	t.state.transfers[transfer.ID] = stored
	return nil
}

func (st *memoryState) transfer(transferID int64) (*inventory.StockTransfer, error) {
	t, ok := st.transfers[transferID]
	if !ok {
		return nil, inventory.ErrTransferNotFound
	}
	t.Items = append([]inventory.TransferItem(nil), t.Items...)
	return &t, nil
}

func (st *memoryState) nameTaken(name string, exceptID int64) bool {
	for id, location := range st.locations {
		if id != exceptID && location.Name == name {
			return true
		}
	}
	return false
}

// clone copies the containers of the state. Pointer fields of stored values are
// replaced on update, never written through, so element copies are enough.
func (st *memoryState) clone() memoryState {
	c := *st
	c.products = make(map[int64]inventory.Product, len(st.products))
	for k, v := range st.products {
		c.products[k] = v
	}
	c.locations = make(map[int64]inventory.Location, len(st.locations))
	for k, v := range st.locations {
		c.locations[k] = v
	}
	c.items = make(map[itemKey]inventory.InventoryItem, len(st.items))
	for k, v := range st.items {
		c.items[k] = v
	}
	c.transfers = make(map[int64]inventory.StockTransfer, len(st.transfers))
	for k, v := range st.transfers {
		c.transfers[k] = v
	}
	c.movements = append([]inventory.StockMovement(nil), st.movements...)
	c.alerts = append([]inventory.InventoryAlert(nil), st.alerts...)
	return c
}
