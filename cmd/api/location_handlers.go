package main

import (
	"net/http"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

// CreateLocationRequest represents request to register a location
// ロケーション登録リクエストを表現
type CreateLocationRequest struct {
	Name    string                 `json:"name"`
	Type    inventory.LocationType `json:"type"`
	Address string                 `json:"address"`
}

// CreateLocation handles create location requests
// ロケーション作成リクエストを処理
func (h *Handlers) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if !h.decode(w, r, &req) {
		return
	}

	location, err := h.service.CreateLocation(r.Context(), req.Name, req.Type, req.Address)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, APIResponse{Success: true, Data: location})
}

// GetLocation handles get location requests
// ロケーション取得リクエストを処理
func (h *Handlers) GetLocation(w http.ResponseWriter, r *http.Request) {
	locationID, ok := h.pathID(w, r, "locationId")
	if !ok {
		return
	}

	location, err := h.service.GetLocation(r.Context(), locationID)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, location)
}

// ListLocations handles list location requests. ?active=true hides deactivated locations.
// ロケーション一覧リクエストを処理
func (h *Handlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	locations, err := h.service.ListLocations(r.Context(), activeOnly)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, locations)
}

// UpdateLocation handles partial location updates
// ロケーション更新リクエストを処理
func (h *Handlers) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	locationID, ok := h.pathID(w, r, "locationId")
	if !ok {
		return
	}
	var patch inventory.LocationPatch
	if !h.decode(w, r, &patch) {
		return
	}

	location, err := h.service.UpdateLocation(r.Context(), locationID, patch)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, location)
}

// DeactivateLocation handles deactivate requests
// ロケーション無効化リクエストを処理
func (h *Handlers) DeactivateLocation(w http.ResponseWriter, r *http.Request) {
	locationID, ok := h.pathID(w, r, "locationId")
	if !ok {
		return
	}

	location, err := h.service.DeactivateLocation(r.Context(), locationID)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, location)
}

// ActivateLocation handles activate requests
// ロケーション有効化リクエストを処理
func (h *Handlers) ActivateLocation(w http.ResponseWriter, r *http.Request) {
	locationID, ok := h.pathID(w, r, "locationId")
	if !ok {
		return
	}

	location, err := h.service.ActivateLocation(r.Context(), locationID)
	if err != nil {
		h.sendErr(w, err)
		return
	}
	h.sendSuccess(w, location)
}
