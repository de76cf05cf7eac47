// Package api provides HTTP API handlers for the paperframe control surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/store"
)

// InstanceHandler handles HTTP requests for plugin instance resources.
type InstanceHandler struct {
	store    *store.Store
	registry *plugin.Registry
}

// NewInstanceHandler creates a new InstanceHandler.
func NewInstanceHandler(s *store.Store, r *plugin.Registry) *InstanceHandler {
	return &InstanceHandler{store: s, registry: r}
}

// ServeHTTP implements the http.Handler interface and routes requests to
// appropriate methods.
func (h *InstanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/instances, /api/instances/{id},
	// /api/instances/{id}/activate
	path := strings.TrimPrefix(r.URL.Path, "/api/instances")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if id, ok := strings.CutSuffix(path, "/activate"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.activate(w, r, id)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createInstanceRequest struct {
	PluginID string            `json:"plugin_id"`
	Name     string            `json:"name"`
	Settings map[string]string `json:"settings"`
}

type updateInstanceRequest struct {
	Name     string            `json:"name"`
	Settings map[string]string `json:"settings"`
}

type instanceResponse struct {
	ID        string            `json:"id"`
	PluginID  string            `json:"plugin_id"`
	Name      string            `json:"name"`
	Settings  map[string]string `json:"settings"`
	Active    bool              `json:"active"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

type listInstancesResponse struct {
	Instances []instanceResponse `json:"instances"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Instance to an instanceResponse.
func toResponse(i *store.Instance) instanceResponse {
	return instanceResponse{
		ID:        i.ID,
		PluginID:  i.PluginID,
		Name:      i.Name,
		Settings:  i.Settings,
		Active:    i.Active,
		CreatedAt: i.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: i.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/instances and returns all instances.
func (h *InstanceHandler) list(w http.ResponseWriter, r *http.Request) {
	instances, err := h.store.Instances().List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list instances")
		return
	}

	response := listInstancesResponse{
		Instances: make([]instanceResponse, 0, len(instances)),
	}
	for _, i := range instances {
		response.Instances = append(response.Instances, toResponse(i))
	}

	WriteJSON(w, http.StatusOK, response)
}

// get handles GET /api/instances/{id} and returns a single instance.
func (h *InstanceHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	inst, err := h.store.Instances().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Instance not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get instance")
		return
	}

	WriteJSON(w, http.StatusOK, toResponse(inst))
}

// create handles POST /api/instances and creates a new plugin instance.
// Settings are validated by the plugin before the instance is stored.
func (h *InstanceHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.PluginID == "" {
		WriteError(w, http.StatusBadRequest, "plugin_id is required")
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := h.registry.Get(req.PluginID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Unknown plugin: "+req.PluginID)
		return
	}

	settings := plugin.Settings(req.Settings)
	if settings == nil {
		settings = plugin.Settings{}
	}
	if err := p.ValidateSettings(settings); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	inst := &store.Instance{
		ID:       uuid.New().String(),
		PluginID: req.PluginID,
		Name:     req.Name,
		Settings: settings,
	}
	if err := h.store.Instances().Create(inst); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to create instance")
		return
	}

	WriteJSON(w, http.StatusCreated, toResponse(inst))
}

// update handles PUT /api/instances/{id} and updates name or settings.
func (h *InstanceHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	inst, err := h.store.Instances().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Instance not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get instance")
		return
	}

	var req updateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" {
		inst.Name = req.Name
	}
	if req.Settings != nil {
		p, err := h.registry.Get(inst.PluginID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Plugin no longer registered")
			return
		}
		settings := plugin.Settings(req.Settings)
		if err := p.ValidateSettings(settings); err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		inst.Settings = settings
	}

	if err := h.store.Instances().Update(inst); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to update instance")
		return
	}

	WriteJSON(w, http.StatusOK, toResponse(inst))
}

// activate handles POST /api/instances/{id}/activate and makes the instance
// the one rendered on the panel. Activating the already active instance is
// a no-op.
func (h *InstanceHandler) activate(w http.ResponseWriter, r *http.Request, id string) {
	inst, err := h.store.Instances().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Instance not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get instance")
		return
	}

	if p, err := h.registry.Get(inst.PluginID); err == nil {
		if err := p.OnEnable(inst.Settings); err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	// The displaced instance gets its deactivation hook before the switch.
	if prev, err := h.store.Instances().Active(); err == nil && prev.ID != id {
		if p, err := h.registry.Get(prev.PluginID); err == nil {
			p.OnDisable(prev.Settings)
		}
	}

	if err := h.store.Instances().SetActive(id); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to activate instance")
		return
	}

	inst.Active = true
	WriteJSON(w, http.StatusOK, toResponse(inst))
}

// delete handles DELETE /api/instances/{id} and removes an instance.
func (h *InstanceHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	inst, err := h.store.Instances().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Instance not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get instance")
		return
	}

	if p, err := h.registry.Get(inst.PluginID); err == nil {
		p.OnDisable(inst.Settings)
	}

	if err := h.store.Instances().Delete(id); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to delete instance")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
