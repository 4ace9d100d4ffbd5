package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/npclabs/merchantd/internal/service"
	"github.com/npclabs/merchantd/internal/store"
)

// NewRouter creates a chi router with all routes registered, request
// logging, and Content-Type validation middleware.
func NewRouter(
	factorySvc *service.FactoryService,
	ledgerSvc *service.LedgerService,
	notifierSvc *service.NotifierService,
	payouts *store.PayoutStore,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	factoryH := NewFactoryHandler(factorySvc)
	ledgerH := NewLedgerHandler(ledgerSvc)
	webhookH := NewWebhookHandler(notifierSvc)
	payoutH := NewPayoutHandler(payouts)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Factory routes.
	r.Get("/template", factoryH.GetTemplate)
	r.Post("/agents", factoryH.RegisterAgent)
	r.Post("/instances", factoryH.CreateInstance)
	r.Post("/instances/{instance_id}/initialize", factoryH.InitializeInstance)
	r.Get("/instances", factoryH.ListInstances)
	r.Get("/owners/{owner_id}/instances", factoryH.ListInstancesByOwner)

	// Ledger routes.
	r.Post("/instances/{instance_id}/merchants", ledgerH.MintMerchant)
	r.Get("/instances/{instance_id}/merchants/{merchant_id}", ledgerH.GetMerchant)
	r.Post("/instances/{instance_id}/merchants/{merchant_id}/items", ledgerH.AddItem)
	r.Get("/instances/{instance_id}/merchants/{merchant_id}/items/{item_id}", ledgerH.GetItem)
	r.Post("/instances/{instance_id}/merchants/{merchant_id}/items/{item_id}/restock", ledgerH.Restock)
	r.Post("/instances/{instance_id}/merchants/{merchant_id}/items/{item_id}/toggle", ledgerH.ToggleItem)
	r.Post("/instances/{instance_id}/merchants/{merchant_id}/delegates", ledgerH.ApproveDelegate)
	r.Delete("/instances/{instance_id}/merchants/{merchant_id}/delegates/{delegate_id}", ledgerH.RevokeDelegate)
	r.Post("/instances/{instance_id}/merchants/{merchant_id}/purchases", ledgerH.Buy)
	r.Post("/instances/{instance_id}/merchants/{merchant_id}/withdrawals", ledgerH.WithdrawProfit)

	// Payout log (read-only, for reconciliation).
	r.Get("/payouts", payoutH.List)

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	return r
}

// requestLogging returns middleware that logs each request's method,
// path, status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST,
// PUT, and PATCH requests before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
