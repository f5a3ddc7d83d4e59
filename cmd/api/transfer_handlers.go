package main

import (
	"context"
	"net/http"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

// RejectTransferRequest represents request to reject a transfer
// 移動依頼却下リクエストを表現
type RejectTransferRequest struct {
	Reason string `json:"reason"`
}

// CreateTransferRequest represents request to open a transfer. The requester is
// always the X-User-ID actor.
// 移動依頼作成リクエストを表現
type CreateTransferRequest struct {
	SourceLocationID      int64                    `json:"source_location_id"`
	DestinationLocationID int64                    `json:"destination_location_id"`
	Items                 []inventory.TransferItem `json:"items"`
	Notes                 string                   `json:"notes"`
}

// CreateTransfer handles create transfer requests
// 移動依頼作成リクエストを処理
func (h *Handlers) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	transfer, err := h.service.CreateTransfer(r.Context(), inventory.TransferRequest{
		SourceLocationID:      req.SourceLocationID,
		DestinationLocationID: req.DestinationLocationID,
		Items:                 req.Items,
		Notes:                 req.Notes,
	})
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, APIResponse{Success: true, Data: transfer})
}

// GetTransfer handles get transfer requests
// 移動依頼取得リクエストを処理
func (h *Handlers) GetTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, ok := h.pathID(w, r, "transferId")
	if !ok {
		return
	}

	transfer, err := h.service.GetTransfer(r.Context(), transferID)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, transfer)
}

// ListTransfers handles list transfer requests
// 移動依頼一覧リクエストを処理
func (h *Handlers) ListTransfers(w http.ResponseWriter, r *http.Request) {
	var filter inventory.TransferFilter
	var ok bool
	if filter.LocationID, ok = h.optionalQueryID(w, r, "locationId"); !ok {
		return
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := inventory.TransferStatus(v)
		filter.Status = &status
	}

	transfers, err := h.service.ListTransfers(r.Context(), filter)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, transfers)
}

// ApproveTransfer handles approve requests
// 移動依頼承認リクエストを処理
func (h *Handlers) ApproveTransfer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ApproveTransfer)
}

// ShipTransfer handles ship requests
// 移動依頼出荷リクエストを処理
func (h *Handlers) ShipTransfer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ShipTransfer)
}

// CompleteTransfer handles complete requests
// 移動依頼完了リクエストを処理
func (h *Handlers) CompleteTransfer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CompleteTransfer)
}

// RejectTransfer handles reject requests
// 移動依頼却下リクエストを処理
func (h *Handlers) RejectTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, ok := h.pathID(w, r, "transferId")
	if !ok {
		return
	}
	var req RejectTransferRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	transfer, err := h.service.RejectTransfer(r.Context(), transferID, 0, req.Reason)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, transfer)
}

type transitionFunc func(ctx context.Context, transferID, actorID int64) (*inventory.StockTransfer, error)

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	transferID, ok := h.pathID(w, r, "transferId")
	if !ok {
		return
	}

	transfer, err := fn(r.Context(), transferID, 0)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, transfer)
}
