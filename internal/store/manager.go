package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/daig/daig-node/internal/errors"
	"github.com/daig/daig-node/internal/retry"
)

const (
	// HealthCollection is reserved for connectivity probes and never
	// holds user-facing documents
	HealthCollection = "_system_health"

	healthDocID = "connection_test"
)

// HandleState tracks the lifecycle of the shared store connection
type HandleState int32

const (
	HandleAbsent HandleState = iota
	HandleInitializing
	HandleHealthy
	HandleFailed
)

// String returns the state name for logging and readiness reporting
func (s HandleState) String() string {
	switch s {
	case HandleAbsent:
		return "absent"
	case HandleInitializing:
		return "initializing"
	case HandleHealthy:
		return "healthy"
	case HandleFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle is the single live connection to the remote store. It is safe
// for concurrent use by every node in the process.
type Handle struct {
	store     DocumentStore
	state     HandleState
	createdAt time.Time
}

// Store returns the underlying document store client
func (h *Handle) Store() DocumentStore {
	return h.store
}

// State returns the handle lifecycle state
func (h *Handle) State() HandleState {
	return h.state
}

// Healthy reports whether the handle passed its round-trip health check
func (h *Handle) Healthy() bool {
	return h != nil && h.state == HandleHealthy
}

// Dialer establishes a connection to the document store. Tests inject a
// fake; production uses NewRedisStore.
type Dialer func(ctx context.Context, cfg Config, logger *zap.Logger) (DocumentStore, error)

// Manager owns the process-wide store handle: validated initialization,
// health verification, guarded lazy access and best-effort shutdown.
type Manager struct {
	cfg    Config
	policy retry.Policy
	dial   Dialer
	logger *zap.Logger

	mu     sync.RWMutex
	handle *Handle
	state  HandleState
}

// ManagerOption customizes Manager construction
type ManagerOption func(*Manager)

// WithDialer overrides how the manager connects to the store
func WithDialer(d Dialer) ManagerOption {
	return func(m *Manager) {
		m.dial = d
	}
}

// NewManager creates a manager for the given store configuration. No
// connection is made until Initialize.
func NewManager(cfg Config, policy retry.Policy, logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg,
		policy: policy,
		logger: logger,
		state:  HandleAbsent,
		dial: func(ctx context.Context, cfg Config, logger *zap.Logger) (DocumentStore, error) {
			return NewRedisStore(ctx, cfg, logger)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize validates the configuration, connects under the retry
// policy, and verifies the connection with a round-trip write+delete in
// the reserved health collection. Idempotent: while a healthy handle
// exists it is returned without a new connection attempt.
func (m *Manager) Initialize(ctx context.Context) (*Handle, error) {
	// Fast path: an already healthy handle is returned without locking
	// out concurrent readers.
	m.mu.RLock()
	if m.handle.Healthy() {
		h := m.handle
		m.mu.RUnlock()
		return h, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the write lock: another caller may have finished
	// initialization while we waited.
	if m.handle.Healthy() {
		return m.handle, nil
	}

	if err := m.cfg.Validate(); err != nil {
		return nil, err
	}

	m.state = HandleInitializing

	var st DocumentStore
	err := m.policy.Do(ctx, func(ctx context.Context) error {
		s, err := m.dial(ctx, m.cfg, m.logger)
		if err != nil {
			return err
		}
		st = s
		return nil
	})
	if err != nil {
		m.state = HandleFailed
		return nil, apperrors.Initialization("failed to connect to state store", err).
			WithDetail("project_id", m.cfg.ProjectID)
	}

	if err := m.healthCheck(ctx, st); err != nil {
		if closeErr := st.Close(); closeErr != nil {
			m.logger.Warn("Failed to close store after failed health check", zap.Error(closeErr))
		}
		m.state = HandleFailed
		return nil, apperrors.Initialization("state store health check failed", err).
			WithDetail("project_id", m.cfg.ProjectID)
	}

	m.handle = &Handle{
		store:     st,
		state:     HandleHealthy,
		createdAt: time.Now(),
	}
	m.state = HandleHealthy

	m.logger.Info("State store initialized",
		zap.String("project_id", m.cfg.ProjectID))

	return m.handle, nil
}

// healthCheck writes and deletes a marker document so that a handle is
// never reported healthy without a proven round trip.
func (m *Manager) healthCheck(ctx context.Context, st DocumentStore) error {
	marker := Document{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	if err := m.policy.Do(ctx, func(ctx context.Context) error {
		return st.Set(ctx, HealthCollection, healthDocID, marker)
	}); err != nil {
		return err
	}

	if err := m.policy.Do(ctx, func(ctx context.Context) error {
		return st.Delete(ctx, HealthCollection, healthDocID)
	}); err != nil {
		return err
	}

	m.logger.Debug("State store health check passed")
	return nil
}

// Handle returns the live handle, or NotInitializedError before a
// successful Initialize.
func (m *Manager) Handle() (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.handle.Healthy() {
		return nil, apperrors.NotInitialized()
	}
	return m.handle, nil
}

// State returns the current handle lifecycle state
func (m *Manager) State() HandleState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Shutdown releases the connection. Failures are logged, never returned;
// the manager always ends up handle-less.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		m.state = HandleAbsent
		return
	}

	if err := m.handle.store.Close(); err != nil {
		m.logger.Warn("Error during state store shutdown", zap.Error(err))
	} else {
		m.logger.Info("State store connection released")
	}

	m.handle = nil
	m.state = HandleAbsent
}
