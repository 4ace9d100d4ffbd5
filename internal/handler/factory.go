package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/npclabs/merchantd/internal/service"
	"github.com/npclabs/merchantd/internal/store"
)

// FactoryHandler handles HTTP requests for factory endpoints: agent
// registration, instance creation, initialization, and enumeration.
type FactoryHandler struct {
	factorySvc *service.FactoryService
}

// NewFactoryHandler creates a new FactoryHandler.
func NewFactoryHandler(factorySvc *service.FactoryService) *FactoryHandler {
	return &FactoryHandler{factorySvc: factorySvc}
}

// registerAgentRequest is the JSON request body for POST /agents.
type registerAgentRequest struct {
	RegistrarID string `json:"registrar_id"`
	AgentID     string `json:"agent_id"`
}

// createInstanceRequest is the JSON request body for POST /instances.
type createInstanceRequest struct {
	AgentID     string `json:"agent_id"`
	TemplateRef string `json:"template_ref"`
}

// initializeRequest is the JSON request body for
// POST /instances/{instance_id}/initialize.
type initializeRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// instanceResponse is the JSON shape of one instance entry.
type instanceResponse struct {
	InstanceID  string `json:"instance_id"`
	CreatedBy   string `json:"created_by"`
	Owner       string `json:"owner,omitempty"`
	Initialized bool   `json:"initialized"`
	CreatedAt   string `json:"created_at"`
}

// instanceListResponse is the JSON response for GET /instances.
type instanceListResponse struct {
	Instances []instanceResponse `json:"instances"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	Limit     int                `json:"limit"`
}

func buildInstanceResponse(e *store.InstanceEntry) instanceResponse {
	return instanceResponse{
		InstanceID:  e.Ledger.ID(),
		CreatedBy:   e.CreatedBy,
		Owner:       e.Owner,
		Initialized: e.Ledger.Initialized(),
		CreatedAt:   e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// GetTemplate handles GET /template.
func (h *FactoryHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"template_ref": h.factorySvc.TemplateID(),
	})
}

// RegisterAgent handles POST /agents.
func (h *FactoryHandler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.factorySvc.RegisterAgent(req.RegistrarID, req.AgentID); err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"agent_id": req.AgentID})
}

// CreateInstance handles POST /instances.
func (h *FactoryHandler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	entry, err := h.factorySvc.Create(req.AgentID, req.TemplateRef)
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildInstanceResponse(entry))
}

// InitializeInstance handles POST /instances/{instance_id}/initialize.
func (h *FactoryHandler) InitializeInstance(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")

	var req initializeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.factorySvc.Initialize(instanceID, req.Owner, req.Name)
	if err != nil {
		MapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"instance_id": result.InstanceID,
		"merchant_id": result.MerchantID,
		"owner":       result.Owner,
		"name":        result.Name,
	})
}

// ListInstances handles GET /instances with 1-based pagination.
func (h *FactoryHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 20

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be an integer")
			return
		}
		page = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = n
	}

	entries, total, err := h.factorySvc.ListInstances(page, limit)
	if err != nil {
		MapError(w, err)
		return
	}

	instances := make([]instanceResponse, len(entries))
	for i, e := range entries {
		instances[i] = buildInstanceResponse(e)
	}

	WriteJSON(w, http.StatusOK, instanceListResponse{
		Instances: instances,
		Total:     total,
		Page:      page,
		Limit:     limit,
	})
}

// ListInstancesByOwner handles GET /owners/{owner_id}/instances.
func (h *FactoryHandler) ListInstancesByOwner(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner_id")

	entries, err := h.factorySvc.ListInstancesByOwner(owner)
	if err != nil {
		MapError(w, err)
		return
	}

	instances := make([]instanceResponse, len(entries))
	for i, e := range entries {
		instances[i] = buildInstanceResponse(e)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"owner":     owner,
		"instances": instances,
	})
}
