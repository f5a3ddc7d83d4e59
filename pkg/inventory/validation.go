package inventory

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxQuantity     = 999999999
	maxNameLength   = 255
	maxReasonLength = 500
	maxNotesLength  = 2000
)

var maxUnitCost = decimal.RequireFromString("999999999.9999")

// ValidateID ID（正の整数）をバリデーション
func ValidateID(field string, id int64) error {
	if id <= 0 {
		return NewValidationError(field, "IDは正の整数である必要があります", fmt.Sprintf("%d", id))
	}
	return nil
}

// ValidateActor 操作者IDをバリデーション
func ValidateActor(actorID int64) error {
	if actorID <= 0 {
		return NewValidationError("actor_id", ErrMissingActor.Error(), fmt.Sprintf("%d", actorID))
	}
	return nil
}

// ValidateQuantity 数量をバリデーション（allowZero=false の場合は正の値のみ）
func ValidateQuantity(quantity int64, allowZero bool) error {
	if quantity < 0 || (!allowZero && quantity == 0) {
		return NewValidationError("quantity", "数量は正の値である必要があります", fmt.Sprintf("%d", quantity))
	}
	if quantity > maxQuantity {
		return NewValidationError("quantity", "数量が有効範囲を超えています", fmt.Sprintf("%d", quantity))
	}
	return nil
}

// ValidateLocationName ロケーション名をバリデーション
func ValidateLocationName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "ロケーション名が空です", name)
	}
	if len(name) > maxNameLength {
		return NewValidationError("name", "ロケーション名が長すぎます", name)
	}
	return nil
}

// ValidateLocationType ロケーション種別をバリデーション
func ValidateLocationType(t LocationType) error {
	if !t.Valid() {
		return NewValidationError("type", "無効なロケーション種別です", string(t))
	}
	return nil
}

// ValidateReason 理由をバリデーション
func ValidateReason(reason string) error {
	if len(reason) > maxReasonLength {
		return NewValidationError("reason", "理由が長すぎます", reason)
	}
	return nil
}

// ValidateUnitCost 単価をバリデーション
func ValidateUnitCost(unitCost decimal.Decimal) error {
	if unitCost.IsNegative() {
		return NewValidationError("unit_cost", "単価は0以上である必要があります", unitCost.String())
	}
	if unitCost.GreaterThan(maxUnitCost) {
		return NewValidationError("unit_cost", "単価が有効範囲を超えています", unitCost.String())
	}
	return nil
}

// ValidateThresholds 閾値をバリデーション
func ValidateThresholds(t Thresholds) error {
	for field, v := range map[string]int64{
		"minimum_stock":    t.MinimumStock,
		"maximum_stock":    t.MaximumStock,
		"reorder_point":    t.ReorderPoint,
		"reorder_quantity": t.ReorderQuantity,
	} {
		if v < 0 || v > maxQuantity {
			return NewValidationError(field, "閾値は0以上の有効範囲内である必要があります", fmt.Sprintf("%d", v))
		}
	}
	if t.MaximumStock > 0 && t.MaximumStock <= t.MinimumStock {
		return NewValidationError("maximum_stock", "最大在庫は最小在庫より大きい必要があります",
			fmt.Sprintf("%d <= %d", t.MaximumStock, t.MinimumStock))
	}
	return nil
}

// ValidateStockUpdate 在庫更新リクエストをバリデーション
func ValidateStockUpdate(req StockUpdate) error {
	if err := ValidateID("product_id", req.ProductID); err != nil {
		return err
	}
	if err := ValidateID("location_id", req.LocationID); err != nil {
		return err
	}
	if err := ValidateActor(req.ActorID); err != nil {
		return err
	}
	switch req.MovementType {
	case MovementTypeIn, MovementTypeOut, MovementTypeReturn, MovementTypeLoss:
		if err := ValidateQuantity(req.Quantity, false); err != nil {
			return err
		}
	case MovementTypeAdjustment:
		// 調整は絶対値指定のため0を許可
		if err := ValidateQuantity(req.Quantity, true); err != nil {
			return err
		}
	case MovementTypeTransfer:
		return NewValidationError("movement_type", "ロケーション間移動は移動依頼で実行してください", string(req.MovementType))
	default:
		return NewValidationError("movement_type", "無効な移動種別です", string(req.MovementType))
	}
	if req.UnitCost != nil {
		if err := ValidateUnitCost(*req.UnitCost); err != nil {
			return err
		}
	}
	return ValidateReason(req.Reason)
}

// ValidateNewItem 在庫台帳行の作成リクエストをバリデーション
func ValidateNewItem(req NewItem) error {
	if err := ValidateID("product_id", req.ProductID); err != nil {
		return err
	}
	if err := ValidateID("location_id", req.LocationID); err != nil {
		return err
	}
	if err := ValidateActor(req.ActorID); err != nil {
		return err
	}
	if err := ValidateQuantity(req.InitialStock, true); err != nil {
		return err
	}
	if err := ValidateThresholds(req.Thresholds); err != nil {
		return err
	}
	return ValidateUnitCost(req.UnitCost)
}

// ValidateTransferRequest 移動依頼をバリデーション
func ValidateTransferRequest(req TransferRequest) error {
	if err := ValidateID("source_location_id", req.SourceLocationID); err != nil {
		return err
	}
	if err := ValidateID("destination_location_id", req.DestinationLocationID); err != nil {
		return err
	}
	if req.SourceLocationID == req.DestinationLocationID {
		return NewValidationError("destination_location_id", "移動元と移動先が同じです",
			fmt.Sprintf("%d -> %d", req.SourceLocationID, req.DestinationLocationID))
	}
	if err := ValidateActor(req.RequestedBy); err != nil {
		return err
	}
	if len(req.Items) == 0 {
		return NewValidationError("items", "移動明細が指定されていません", "")
	}
	seen := make(map[int64]bool, len(req.Items))
	for _, line := range req.Items {
		if err := ValidateID("product_id", line.ProductID); err != nil {
			return err
		}
		if seen[line.ProductID] {
			return NewValidationError("items", "同じ商品が複数の明細に含まれています", fmt.Sprintf("%d", line.ProductID))
		}
		seen[line.ProductID] = true
		if err := ValidateQuantity(line.Quantity, false); err != nil {
			return err
		}
	}
	if len(req.Notes) > maxNotesLength {
		return NewValidationError("notes", "備考が長すぎます", req.Notes)
	}
	return nil
}
