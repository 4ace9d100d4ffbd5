package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/npclabs/merchantd/internal/domain"
	"github.com/npclabs/merchantd/internal/engine"
	"github.com/npclabs/merchantd/internal/service"
)

// LedgerHandler handles HTTP requests for merchant ledger endpoints.
type LedgerHandler struct {
	ledgerSvc *service.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// mintRequest is the JSON request body for POST .../merchants.
type mintRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// addItemRequest is the JSON request body for POST .../items.
type addItemRequest struct {
	Caller   string `json:"caller"`
	Name     string `json:"name"`
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
}

// restockRequest is the JSON request body for POST .../restock.
type restockRequest struct {
	Caller   string `json:"caller"`
	Quantity uint64 `json:"quantity"`
}

// toggleRequest is the JSON request body for POST .../toggle.
type toggleRequest struct {
	Caller string `json:"caller"`
}

// delegateRequest is the JSON request body for POST .../delegates.
type delegateRequest struct {
	Caller   string `json:"caller"`
	Delegate string `json:"delegate"`
}

// buyRequest is the JSON request body for POST .../purchases.
type buyRequest struct {
	Buyer    string `json:"buyer"`
	ItemID   uint64 `json:"item_id"`
	Quantity uint64 `json:"quantity"`
	Tendered uint64 `json:"tendered"`
}

// withdrawRequest is the JSON request body for POST .../withdrawals.
type withdrawRequest struct {
	Caller string `json:"caller"`
}

// itemResponse is the JSON shape of one item record.
type itemResponse struct {
	ItemID    uint64 `json:"item_id"`
	Name      string `json:"name"`
	Price     uint64 `json:"price"`
	Quantity  uint64 `json:"quantity"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// merchantResponse is the JSON shape of a merchant snapshot.
type merchantResponse struct {
	MerchantID uint64         `json:"merchant_id"`
	Owner      string         `json:"owner"`
	Name       string         `json:"name"`
	Profit     uint64         `json:"profit"`
	ItemCount  int            `json:"item_count"`
	Items      []itemResponse `json:"items"`
	CreatedAt  string         `json:"created_at"`
}

// purchaseResponse is the JSON response for a completed purchase.
type purchaseResponse struct {
	MerchantID uint64 `json:"merchant_id"`
	ItemID     uint64 `json:"item_id"`
	Buyer      string `json:"buyer"`
	Quantity   uint64 `json:"quantity"`
	UnitPrice  uint64 `json:"unit_price"`
	TotalCost  uint64 `json:"total_cost"`
	Change     uint64 `json:"change"`
	ExecutedAt string `json:"executed_at"`
}

func buildItemResponse(it domain.Item) itemResponse {
	return itemResponse{
		ItemID:    it.ItemID,
		Name:      it.Name,
		Price:     it.Price,
		Quantity:  it.Quantity,
		Active:    it.Active,
		CreatedAt: it.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func buildMerchantResponse(m *engine.MerchantSnapshot) merchantResponse {
	items := make([]itemResponse, len(m.Items))
	for i, it := range m.Items {
		items[i] = buildItemResponse(it)
	}
	return merchantResponse{
		MerchantID: m.MerchantID,
		Owner:      m.Owner,
		Name:       m.Name,
		Profit:     m.Profit,
		ItemCount:  len(m.Items),
		Items:      items,
		CreatedAt:  m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// pathUint parses a numeric URL parameter. The bool result is false
// when the parameter is not a valid unsigned integer (response already
// written).
func pathUint(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", name+" must be an unsigned integer")
		return 0, false
	}
	return v, true
}

// MintMerchant handles POST /instances/{instance_id}/merchants.
func (h *LedgerHandler) MintMerchant(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")

	var req mintRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	merchantID, err := h.ledgerSvc.Mint(service.MintRequest{
		InstanceID: instanceID,
		Owner:      req.Owner,
		Name:       req.Name,
	})
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{"merchant_id": merchantID})
}

// GetMerchant handles GET /instances/{instance_id}/merchants/{merchant_id}.
func (h *LedgerHandler) GetMerchant(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	merchantID, ok := pathUint(w, r, "merchant_id")
	if !ok {
		return
	}

	m, err := h.ledgerSvc.GetMerchant(instanceID, merchantID)
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildMerchantResponse(m))
}

// AddItem handles POST .../merchants/{merchant_id}/items.
func (h *LedgerHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	merchantID, ok := pathUint(w, r, "merchant_id")
	if !ok {
		return
	}

	var req addItemRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	itemID, err := h.ledgerSvc.AddItem(service.AddItemRequest{
		InstanceID: instanceID,
		MerchantID: merchantID,
		Caller:     req.Caller,
		Name:       req.Name,
		Price:      req.Price,
		Quantity:   req.Quantity,
	})
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{"item_id": itemID})
}

// GetItem handles GET .../items/{item_id}.
func (h *LedgerHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	merchantID, ok := pathUint(w, r, "merchant_id")
	if !ok {
		return
	}
	itemID, ok := pathUint(w, r, "item_id")
	if !ok {
		return
	}

	it, err := h.ledgerSvc.GetItem(instanceID, merchantID, itemID)
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildItemResponse(it))
}

// Restock handles POST .../items/{item_id}/restock.
func (h *LedgerHandler) Restock(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	merchantID, ok := pathUint(w, r, "merchant_id")
	if !ok {
		return
	}
	itemID, ok := pathUint(w, r, "item_id")
	if !ok {
		return
	}

	var req restockRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	newQuantity, err := h.ledgerSvc.Restock(service.RestockRequest{
		InstanceID: instanceID,
		MerchantID: merchantID,
		ItemID:     itemID,
		Caller:     req.Caller,
		Quantity:   req.Quantity,
	})
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "quantity": newQuantity})
}

// ToggleItem handles POST .../items/{item_id}/toggle.
func (h *LedgerHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	merchantID, ok := pathUint(w, r, "merchant_id")
	if !ok {
		return
	}
	itemID, ok := pathUint(w, r, "item_id")
	if !ok {
		return
	}

	var req toggleRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	active, err := h.ledgerSvc.ToggleItem(service.ToggleRequest{
		InstanceID: instanceID,
		MerchantID: merchantID,
		ItemID:     itemID,
		Caller:     req.Caller,
	})
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "active": active})
}

// ApproveDelegate handles POST .../merchants/{merchant_id}/delegates.
func (h *LedgerHandler) ApproveDelegate(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	merchantID, ok := pathUint(w, r, "merchant_id")
	if !ok {
		return
	}

	var req delegateRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := h.ledgerSvc.ApproveDelegate(service.DelegateRequest{
		InstanceID: instanceID,
		MerchantID: merchantID,
		Caller:     req.Caller,
		Delegate:   req.Delegate,
	})
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{"delegate": req.Delegate})
}

// RevokeDelegate handles DELETE .../delegates/{delegate_id}.
func (h *LedgerHandler) RevokeDelegate(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	merchantID, ok := pathUint(w, r, "merchant_id")
	if !ok {
		return
	}
	delegate := chi.URLParam(r, "delegate_id")
	caller := r.URL.Query().Get("caller")

	err := h.ledgerSvc.RevokeDelegate(service.DelegateRequest{
		InstanceID: instanceID,
		MerchantID: merchantID,
		Caller:     caller,
		Delegate:   delegate,
	})
	if err != nil {
		MapError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Buy handles POST .../merchants/{merchant_id}/purchases.
func (h *LedgerHandler) Buy(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	merchantID, ok := pathUint(w, r, "merchant_id")
	if !ok {
		return
	}

	var req buyRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	receipt, err := h.ledgerSvc.Buy(service.BuyRequest{
		InstanceID: instanceID,
		MerchantID: merchantID,
		ItemID:     req.ItemID,
		Buyer:      req.Buyer,
		Quantity:   req.Quantity,
		Tendered:   req.Tendered,
	})
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, purchaseResponse{
		MerchantID: receipt.MerchantID,
		ItemID:     receipt.ItemID,
		Buyer:      receipt.Buyer,
		Quantity:   receipt.Quantity,
		UnitPrice:  receipt.UnitPrice,
		TotalCost:  receipt.TotalCost,
		Change:     receipt.Change,
		ExecutedAt: receipt.ExecutedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// WithdrawProfit handles POST .../merchants/{merchant_id}/withdrawals.
func (h *LedgerHandler) WithdrawProfit(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	merchantID, ok := pathUint(w, r, "merchant_id")
	if !ok {
		return
	}

	var req withdrawRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	amount, err := h.ledgerSvc.WithdrawProfit(service.WithdrawRequest{
		InstanceID: instanceID,
		MerchantID: merchantID,
		Caller:     req.Caller,
	})
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"merchant_id": merchantID,
		"amount":      amount,
	})
}
