package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daig/daig-node/internal/node"
	"github.com/daig/daig-node/internal/retry"
	"github.com/daig/daig-node/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Manager, *node.Node) {
	t.Helper()

	mem := store.NewMemoryStore()
	mgr := store.NewManager(store.Config{ProjectID: "daig-test"},
		retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}, zap.NewNop(),
		store.WithDialer(func(ctx context.Context, cfg store.Config, logger *zap.Logger) (store.DocumentStore, error) {
			return mem, nil
		}))
	_, err := mgr.Initialize(context.Background())
	require.NoError(t, err)

	n := node.New(mgr, []node.Capability{node.CapabilityDataProcessing}, zap.NewNop())
	require.NoError(t, n.Register(context.Background()))

	cfg := &ServerConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second}
	srv := NewServer(cfg, mgr, nil, node.DefaultCollection, zap.NewNop())
	return srv, mgr, n
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestListNodes(t *testing.T) {
	srv, _, n := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v1/nodes")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp NodeListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, n.ID().String(), resp.Nodes[0]["node_id"])
	assert.Equal(t, "active", resp.Nodes[0]["status"])
}

func TestGetNode(t *testing.T) {
	srv, _, n := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v1/nodes/"+n.ID().String())
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, n.ID().String(), doc["node_id"])
	assert.Equal(t, "data_processing", doc["capabilities"])
}

func TestGetNode_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v1/nodes/no-such-node")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "node not found", resp.Error)
}

// wrappingStore returns its lookup errors wrapped, the way a driver
// adding call-site context would
type wrappingStore struct {
	*store.MemoryStore
}

func (w *wrappingStore) Get(ctx context.Context, collection, docID string) (store.Document, error) {
	doc, err := w.MemoryStore.Get(ctx, collection, docID)
	if err != nil {
		return nil, fmt.Errorf("lookup %s/%s: %w", collection, docID, err)
	}
	return doc, nil
}

func TestGetNode_NotFoundWrapped(t *testing.T) {
	wrapped := &wrappingStore{MemoryStore: store.NewMemoryStore()}
	mgr := store.NewManager(store.Config{ProjectID: "daig-test"},
		retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}, zap.NewNop(),
		store.WithDialer(func(ctx context.Context, cfg store.Config, logger *zap.Logger) (store.DocumentStore, error) {
			return wrapped, nil
		}))
	_, err := mgr.Initialize(context.Background())
	require.NoError(t, err)

	cfg := &ServerConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second}
	srv := NewServer(cfg, mgr, nil, node.DefaultCollection, zap.NewNop())

	rec := doRequest(t, srv, http.MethodGet, "/v1/nodes/no-such-node")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNodes_StoreNotInitialized(t *testing.T) {
	bare := store.NewManager(store.Config{ProjectID: "daig-test"},
		retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}, zap.NewNop())
	cfg := &ServerConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second}
	srv := NewServer(cfg, bare, nil, node.DefaultCollection, zap.NewNop())

	rec := doRequest(t, srv, http.MethodGet, "/v1/nodes")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveness(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health/live")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "healthy", resp.Store)
}

func TestReadiness(t *testing.T) {
	srv, mgr, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	mgr.Shutdown(context.Background())

	rec = doRequest(t, srv, http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
}

func TestUnknownEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v2/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
