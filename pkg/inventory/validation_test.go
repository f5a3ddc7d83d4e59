package inventory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func TestValidateStockUpdate(t *testing.T) {
	negative := decimal.NewFromInt(-1)
	valid := StockUpdate{ProductID: 1, LocationID: 1, Quantity: 5, MovementType: MovementTypeIn, ActorID: 1}

	tests := []struct {
		name   string
		mutate func(*StockUpdate)
		field  string
	}{
		{"valid", func(*StockUpdate) {}, ""},
		{"adjustment to zero", func(r *StockUpdate) { r.MovementType = MovementTypeAdjustment; r.Quantity = 0 }, ""},
		{"missing product", func(r *StockUpdate) { r.ProductID = 0 }, "product_id"},
		{"missing location", func(r *StockUpdate) { r.LocationID = -1 }, "location_id"},
		{"missing actor", func(r *StockUpdate) { r.ActorID = 0 }, "actor_id"},
		{"zero in", func(r *StockUpdate) { r.Quantity = 0 }, "quantity"},
		{"negative adjustment", func(r *StockUpdate) { r.MovementType = MovementTypeAdjustment; r.Quantity = -1 }, "quantity"},
		{"too large", func(r *StockUpdate) { r.Quantity = maxQuantity + 1 }, "quantity"},
		{"transfer", func(r *StockUpdate) { r.MovementType = MovementTypeTransfer }, "movement_type"},
		{"unknown type", func(r *StockUpdate) { r.MovementType = "gift" }, "movement_type"},
		{"negative cost", func(r *StockUpdate) { r.UnitCost = &negative }, "unit_cost"},
		{"long reason", func(r *StockUpdate) { r.Reason = strings.Repeat("x", maxReasonLength+1) }, "reason"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := ValidateStockUpdate(req)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateThresholds(t *testing.T) {
	assert.NoError(t, ValidateThresholds(Thresholds{}))
	assert.NoError(t, ValidateThresholds(Thresholds{MinimumStock: 10}))
	assert.NoError(t, ValidateThresholds(Thresholds{MinimumStock: 10, MaximumStock: 11, ReorderPoint: 20}))
	assert.Error(t, ValidateThresholds(Thresholds{MinimumStock: 10, MaximumStock: 10}))
	assert.Error(t, ValidateThresholds(Thresholds{ReorderQuantity: -1}))
}

func TestValidateTransferRequest(t *testing.T) {
	valid := TransferRequest{
		SourceLocationID:      1,
		DestinationLocationID: 2,
		RequestedBy:           1,
		Items:                 []TransferItem{{ProductID: 1, Quantity: 3}},
	}
	assert.NoError(t, ValidateTransferRequest(valid))

	same := valid
	same.DestinationLocationID = 1
	assert.True(t, IsValidationError(ValidateTransferRequest(same)))

	empty := valid
	empty.Items = nil
	assert.True(t, IsValidationError(ValidateTransferRequest(empty)))

	dup := valid
	dup.Items = []TransferItem{{ProductID: 1, Quantity: 1}, {ProductID: 1, Quantity: 2}}
	assert.True(t, IsValidationError(ValidateTransferRequest(dup)))

	zero := valid
	zero.Items = []TransferItem{{ProductID: 1}}
	assert.True(t, IsValidationError(ValidateTransferRequest(zero)))
}

func TestValidateLocation(t *testing.T) {
	assert.NoError(t, ValidateLocationName("倉庫"))
	assert.Error(t, ValidateLocationName("   "))
	assert.Error(t, ValidateLocationName(strings.Repeat("a", maxNameLength+1)))
	assert.NoError(t, ValidateLocationType(LocationTypeDistribution))
	assert.Error(t, ValidateLocationType("factory"))
}

func TestErrors(t *testing.T) {
	err := NewTransitionError(3, TransferStatusCompleted, TransferStatusApproved)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "completed")

	cause := errors.New("connection reset")
	se := NewStorageError("save_item", "在庫更新に失敗しました", cause)
	assert.ErrorIs(t, se, cause)
	assert.False(t, IsValidationError(se))
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), 12)
	id, ok := ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)

	assert.Equal(t, int64(12), resolveActor(ctx, 0))
	assert.Equal(t, int64(3), resolveActor(ctx, 3))
	assert.Equal(t, int64(0), resolveActor(context.Background(), 0))
}
