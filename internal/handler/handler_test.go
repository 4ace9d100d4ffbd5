package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/npclabs/merchantd/internal/engine"
	"github.com/npclabs/merchantd/internal/service"
	"github.com/npclabs/merchantd/internal/store"
)

const testRegistrarID = "registrar1"

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	payouts := store.NewPayoutStore()
	template := engine.NewTemplate(engine.Config{}, payouts)
	instances := store.NewInstanceStore()
	agents := store.NewAgentStore()
	webhooks := store.NewWebhookStore()

	notifierSvc := service.NewNotifierService(webhooks, 5*time.Second)
	factorySvc := service.NewFactoryService(testRegistrarID, template, instances, agents, notifierSvc)
	ledgerSvc := service.NewLedgerService(instances, notifierSvc)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(factorySvc, ledgerSvc, notifierSvc, payouts, logger)
}

func doRequest(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response body %q: %v", rec.Body.String(), err)
	}
	return result
}

// setupInstance runs the full factory flow (register agent, create,
// initialize) and returns the instance id.
func setupInstance(t *testing.T, router chi.Router, owner, name string) string {
	t.Helper()

	rec := doRequest(t, router, http.MethodGet, "/template", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /template status = %d", rec.Code)
	}
	templateRef := decodeBody(t, rec)["template_ref"].(string)

	rec = doRequest(t, router, http.MethodPost, "/agents", map[string]any{
		"registrar_id": testRegistrarID,
		"agent_id":     "agent1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /agents status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/instances", map[string]any{
		"agent_id":     "agent1",
		"template_ref": templateRef,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /instances status = %d, body %s", rec.Code, rec.Body.String())
	}
	instanceID := decodeBody(t, rec)["instance_id"].(string)

	rec = doRequest(t, router, http.MethodPost, "/instances/"+instanceID+"/initialize", map[string]any{
		"owner": owner,
		"name":  name,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("initialize status = %d, body %s", rec.Code, rec.Body.String())
	}

	return instanceID
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %v, want ok", got)
	}
}

func TestPurchaseFlow(t *testing.T) {
	router := newTestRouter(t)
	instanceID := setupInstance(t, router, "owner1", "Potion Shop")
	merchants := "/instances/" + instanceID + "/merchants/0"

	rec := doRequest(t, router, http.MethodPost, merchants+"/items", map[string]any{
		"caller":   "owner1",
		"name":     "Potion",
		"price":    10,
		"quantity": 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item status = %d, body %s", rec.Code, rec.Body.String())
	}
	itemID := uint64(decodeBody(t, rec)["item_id"].(float64))

	rec = doRequest(t, router, http.MethodPost, merchants+"/purchases", map[string]any{
		"buyer":    "buyer1",
		"item_id":  itemID,
		"quantity": 2,
		"tendered": 25,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("buy status = %d, body %s", rec.Code, rec.Body.String())
	}
	purchase := decodeBody(t, rec)
	if got := purchase["total_cost"].(float64); got != 20 {
		t.Errorf("total_cost = %v, want 20", got)
	}
	if got := purchase["change"].(float64); got != 5 {
		t.Errorf("change = %v, want 5", got)
	}

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("%s/items/%d", merchants, itemID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get item status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["quantity"].(float64); got != 3 {
		t.Errorf("quantity = %v after purchase, want 3", got)
	}

	rec = doRequest(t, router, http.MethodGet, merchants, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get merchant status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["profit"].(float64); got != 20 {
		t.Errorf("profit = %v, want 20", got)
	}

	// Oversell: only 3 left.
	rec = doRequest(t, router, http.MethodPost, merchants+"/purchases", map[string]any{
		"buyer":    "buyer1",
		"item_id":  itemID,
		"quantity": 4,
		"tendered": 40,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("oversell status = %d, want 422", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, merchants, nil)
	m := decodeBody(t, rec)
	if got := m["profit"].(float64); got != 20 {
		t.Errorf("profit = %v after failed purchase, want 20", got)
	}

	// Refund for the overpayment was recorded.
	rec = doRequest(t, router, http.MethodGet, "/payouts?recipient=buyer1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payouts status = %d", rec.Code)
	}
	refunds := decodeBody(t, rec)["payouts"].([]any)
	if len(refunds) != 1 {
		t.Fatalf("got %d payouts for buyer1, want 1", len(refunds))
	}
	refund := refunds[0].(map[string]any)
	if refund["kind"] != "refund" || refund["amount"].(float64) != 5 {
		t.Errorf("refund = %v, want refund of 5", refund)
	}
}

func TestWithdrawFlow(t *testing.T) {
	router := newTestRouter(t)
	instanceID := setupInstance(t, router, "owner1", "Potion Shop")
	merchants := "/instances/" + instanceID + "/merchants/0"

	doRequest(t, router, http.MethodPost, merchants+"/items", map[string]any{
		"caller": "owner1", "name": "Potion", "price": 10, "quantity": 5,
	})
	doRequest(t, router, http.MethodPost, merchants+"/purchases", map[string]any{
		"buyer": "buyer1", "item_id": 0, "quantity": 3, "tendered": 30,
	})

	rec := doRequest(t, router, http.MethodPost, merchants+"/withdrawals", map[string]any{
		"caller": "owner1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("withdraw status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["amount"].(float64); got != 30 {
		t.Errorf("amount = %v, want 30", got)
	}

	rec = doRequest(t, router, http.MethodPost, merchants+"/withdrawals", map[string]any{
		"caller": "owner1",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("second withdraw status = %d, want 422", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/payouts?recipient=owner1", nil)
	payouts := decodeBody(t, rec)["payouts"].([]any)
	if len(payouts) != 1 {
		t.Fatalf("got %d payouts for owner1, want 1", len(payouts))
	}
	if kind := payouts[0].(map[string]any)["kind"]; kind != "withdrawal" {
		t.Errorf("payout kind = %v, want withdrawal", kind)
	}
}

func TestInitializeTwice(t *testing.T) {
	router := newTestRouter(t)
	instanceID := setupInstance(t, router, "owner1", "Potion Shop")

	rec := doRequest(t, router, http.MethodPost, "/instances/"+instanceID+"/initialize", map[string]any{
		"owner": "owner2",
		"name":  "Other Shop",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("second initialize status = %d, want 409", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "already_initialized" {
		t.Errorf("error = %v, want already_initialized", got)
	}
}

func TestOperationsBeforeInitialize(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/template", nil)
	templateRef := decodeBody(t, rec)["template_ref"].(string)
	doRequest(t, router, http.MethodPost, "/agents", map[string]any{
		"registrar_id": testRegistrarID, "agent_id": "agent1",
	})
	rec = doRequest(t, router, http.MethodPost, "/instances", map[string]any{
		"agent_id": "agent1", "template_ref": templateRef,
	})
	instanceID := decodeBody(t, rec)["instance_id"].(string)

	rec = doRequest(t, router, http.MethodPost, "/instances/"+instanceID+"/merchants/0/items", map[string]any{
		"caller": "owner1", "name": "Potion", "price": 10, "quantity": 5,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("add item before initialize status = %d, want 409", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "not_initialized" {
		t.Errorf("error = %v, want not_initialized", got)
	}
}

func TestErrorStatuses(t *testing.T) {
	router := newTestRouter(t)
	instanceID := setupInstance(t, router, "owner1", "Potion Shop")
	merchants := "/instances/" + instanceID + "/merchants/0"
	doRequest(t, router, http.MethodPost, merchants+"/items", map[string]any{
		"caller": "owner1", "name": "Potion", "price": 10, "quantity": 5,
	})

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			"unknown instance", http.MethodGet, "/instances/nonexistent/merchants/0", nil,
			http.StatusNotFound, "instance_not_found",
		},
		{
			"unknown merchant", http.MethodGet, "/instances/" + instanceID + "/merchants/99", nil,
			http.StatusNotFound, "merchant_not_found",
		},
		{
			"unknown item", http.MethodGet, merchants + "/items/99", nil,
			http.StatusNotFound, "item_not_found",
		},
		{
			"non-controller add item", http.MethodPost, merchants + "/items",
			map[string]any{"caller": "stranger", "name": "Sword", "price": 5, "quantity": 1},
			http.StatusForbidden, "not_merchant_controller",
		},
		{
			"unregistered agent create", http.MethodPost, "/instances",
			map[string]any{"agent_id": "ghost", "template_ref": "anything"},
			http.StatusForbidden, "not_authorized",
		},
		{
			"non-registrar register", http.MethodPost, "/agents",
			map[string]any{"registrar_id": "impostor", "agent_id": "agent2"},
			http.StatusForbidden, "not_authorized",
		},
		{
			"zero price item", http.MethodPost, merchants + "/items",
			map[string]any{"caller": "owner1", "name": "Freebie", "price": 0, "quantity": 1},
			http.StatusBadRequest, "invalid_price",
		},
		{
			"underpayment", http.MethodPost, merchants + "/purchases",
			map[string]any{"buyer": "buyer1", "item_id": 0, "quantity": 2, "tendered": 19},
			http.StatusUnprocessableEntity, "insufficient_payment",
		},
		{
			"non-numeric merchant id", http.MethodGet, "/instances/" + instanceID + "/merchants/abc", nil,
			http.StatusBadRequest, "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decodeBody(t, rec)["error"]; got != tt.wantError {
				t.Errorf("error = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestInactiveItemRejectsPurchase(t *testing.T) {
	router := newTestRouter(t)
	instanceID := setupInstance(t, router, "owner1", "Potion Shop")
	merchants := "/instances/" + instanceID + "/merchants/0"
	doRequest(t, router, http.MethodPost, merchants+"/items", map[string]any{
		"caller": "owner1", "name": "Potion", "price": 10, "quantity": 5,
	})

	rec := doRequest(t, router, http.MethodPost, merchants+"/items/0/toggle", map[string]any{
		"caller": "owner1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["active"].(bool); got {
		t.Fatal("active = true after toggle, want false")
	}

	rec = doRequest(t, router, http.MethodPost, merchants+"/purchases", map[string]any{
		"buyer": "buyer1", "item_id": 0, "quantity": 1, "tendered": 10,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("buy inactive status = %d, want 409", rec.Code)
	}

	// Inactive items stay visible to reads.
	rec = doRequest(t, router, http.MethodGet, merchants+"/items/0", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get inactive item status = %d, want 200", rec.Code)
	}
}

func TestDelegateFlow(t *testing.T) {
	router := newTestRouter(t)
	instanceID := setupInstance(t, router, "owner1", "Potion Shop")
	merchants := "/instances/" + instanceID + "/merchants/0"

	rec := doRequest(t, router, http.MethodPost, merchants+"/delegates", map[string]any{
		"caller": "owner1", "delegate": "helper1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("approve delegate status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, merchants+"/items", map[string]any{
		"caller": "helper1", "name": "Elixir", "price": 20, "quantity": 2,
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("delegate add item status = %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodDelete, merchants+"/delegates/helper1?caller=owner1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("revoke delegate status = %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, merchants+"/items", map[string]any{
		"caller": "helper1", "name": "Elixir II", "price": 20, "quantity": 2,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("revoked delegate add item status = %d, want 403", rec.Code)
	}
}

func TestListInstances(t *testing.T) {
	router := newTestRouter(t)
	setupInstance(t, router, "owner1", "Shop A")

	rec := doRequest(t, router, http.MethodGet, "/template", nil)
	templateRef := decodeBody(t, rec)["template_ref"].(string)
	for i := 0; i < 3; i++ {
		rec = doRequest(t, router, http.MethodPost, "/instances", map[string]any{
			"agent_id": "agent1", "template_ref": templateRef,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
	}

	rec = doRequest(t, router, http.MethodGet, "/instances?page=1&limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if got := body["total"].(float64); got != 4 {
		t.Errorf("total = %v, want 4", got)
	}
	if got := len(body["instances"].([]any)); got != 2 {
		t.Errorf("page holds %d instances, want 2", got)
	}

	rec = doRequest(t, router, http.MethodGet, "/instances?page=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid page status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/owners/owner1/instances", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list by owner status = %d", rec.Code)
	}
	if got := len(decodeBody(t, rec)["instances"].([]any)); got != 1 {
		t.Errorf("owner1 holds %d instances, want 1", got)
	}
}

func TestMintMerchant(t *testing.T) {
	router := newTestRouter(t)
	instanceID := setupInstance(t, router, "owner1", "Potion Shop")

	rec := doRequest(t, router, http.MethodPost, "/instances/"+instanceID+"/merchants", map[string]any{
		"owner": "owner2",
		"name":  "Second Stall",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mint status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["merchant_id"].(float64); got != 1 {
		t.Errorf("merchant_id = %v, want 1", got)
	}
}

func TestWebhookEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/webhooks", map[string]any{
		"subscriber_id": "sub1",
		"url":           "https://example.com/hook",
		"events":        []string{"purchase.executed", "item.added"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upsert status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)["webhooks"].([]any)
	if len(created) != 2 {
		t.Fatalf("got %d webhooks, want 2", len(created))
	}
	webhookID := created[0].(map[string]any)["webhook_id"].(string)

	// Re-registering the same pair updates in place.
	rec = doRequest(t, router, http.MethodPost, "/webhooks", map[string]any{
		"subscriber_id": "sub1",
		"url":           "https://example.com/v2",
		"events":        []string{"purchase.executed", "item.added"},
	})
	if rec.Code != http.StatusOK {
		t.Errorf("re-upsert status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/webhooks?subscriber_id=sub1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if got := len(decodeBody(t, rec)["webhooks"].([]any)); got != 2 {
		t.Errorf("list holds %d webhooks, want 2", got)
	}

	rec = doRequest(t, router, http.MethodDelete, "/webhooks/"+webhookID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	rec = doRequest(t, router, http.MethodDelete, "/webhooks/"+webhookID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/webhooks", map[string]any{
		"subscriber_id": "sub1",
		"url":           "http://insecure.example.com",
		"events":        []string{"item.added"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("http url status = %d, want 400", rec.Code)
	}
}

func TestContentTypeRequired(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d without Content-Type, want 400", rec.Code)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/agents",
		bytes.NewReader([]byte(`{"registrar_id":"registrar1","agent_id":"agent1","extra":true}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for unknown field, want 400", rec.Code)
	}
}
