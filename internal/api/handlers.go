package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/daig/daig-node/internal/node"
	"github.com/daig/daig-node/internal/service"
	"github.com/daig/daig-node/internal/store"
)

// Handlers contains the HTTP handlers for the registry API
type Handlers struct {
	mgr        *store.Manager
	registry   *service.RegistryService
	collection string
	logger     *zap.Logger
}

// NewHandlers creates the registry API handlers
func NewHandlers(mgr *store.Manager, registry *service.RegistryService,
	collection string, logger *zap.Logger) *Handlers {
	return &Handlers{
		mgr:        mgr,
		registry:   registry,
		collection: collection,
		logger:     logger,
	}
}

// NodeListResponse is the response for the node listing endpoint
type NodeListResponse struct {
	Nodes []store.Document `json:"nodes"`
	Count int              `json:"count"`
}

// HealthResponse is the response for the health endpoints
type HealthResponse struct {
	Status     string         `json:"status"`
	Store      string         `json:"store"`
	LocalFleet map[string]int `json:"local_fleet,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// ErrorResponse is the response body for failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListNodes returns every registered node document from the remote
// store, covering nodes owned by other processes as well as local ones
func (h *Handlers) ListNodes(w http.ResponseWriter, r *http.Request) {
	handle, err := h.mgr.Handle()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	docs, err := handle.Store().List(r.Context(), h.collection)
	if err != nil {
		h.logger.Error("Failed to list nodes", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list nodes")
		return
	}

	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: docs, Count: len(docs)})
}

// GetNode returns one node document by its identifier
func (h *Handlers) GetNode(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["node_id"]

	handle, err := h.mgr.Handle()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	doc, err := handle.Store().Get(r.Context(), h.collection, nodeID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get node",
			zap.String("node_id", nodeID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get node")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Liveness reports that the process is up
func (h *Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "alive",
		Store:     h.mgr.State().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports ready only once the store handle is healthy
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Store:     h.mgr.State().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.registry != nil {
		resp.LocalFleet = statusStrings(h.registry.StatusCounts())
	}

	if h.mgr.State() != store.HandleHealthy {
		resp.Status = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Status = "ready"
	writeJSON(w, http.StatusOK, resp)
}

func statusStrings(counts map[node.Status]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, count := range counts {
		out[string(status)] = count
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
