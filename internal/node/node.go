// Package node implements the autonomous node abstraction: identity,
// capability set, status state machine and metrics, persisted through the
// shared state-store manager.
package node

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/daig/daig-node/internal/errors"
	"github.com/daig/daig-node/internal/retry"
	"github.com/daig/daig-node/internal/store"
)

const (
	// DefaultCollection holds node state documents, keyed by node id
	DefaultCollection = "nodes"

	// DefaultFailureThreshold is the number of consecutive persistence
	// failures before a node degrades itself
	DefaultFailureThreshold = 3
)

// Identity is assigned once at construction and never changes
type Identity struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// Node is an autonomous unit with identity, status, capabilities and
// metrics. All persistence goes through the manager's shared handle; the
// node never caches the store client itself.
type Node struct {
	identity Identity
	caps     []Capability
	recorder *Recorder

	mgr              *store.Manager
	policy           retry.Policy
	collection       string
	failureThreshold int
	logger           *zap.Logger

	mu                  sync.Mutex
	status              Status
	consecutiveFailures int
}

// Option customizes node construction
type Option func(*Node)

// WithCollection overrides the node-state collection name
func WithCollection(collection string) Option {
	return func(n *Node) {
		if collection != "" {
			n.collection = collection
		}
	}
}

// WithFailureThreshold sets how many consecutive heartbeat failures
// trigger the Degraded transition
func WithFailureThreshold(threshold int) Option {
	return func(n *Node) {
		if threshold >= 1 {
			n.failureThreshold = threshold
		}
	}
}

// WithRetryPolicy sets the retry policy wrapping persistence operations
func WithRetryPolicy(policy retry.Policy) Option {
	return func(n *Node) {
		n.policy = policy
	}
}

// New creates a node in Bootstrapping with a fresh identity, the declared
// capability set and zeroed metrics.
func New(mgr *store.Manager, caps []Capability, logger *zap.Logger, opts ...Option) *Node {
	identity := Identity{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
	}

	n := &Node{
		identity:         identity,
		caps:             append([]Capability(nil), caps...),
		recorder:         NewRecorder(identity.CreatedAt),
		mgr:              mgr,
		policy:           retry.DefaultPolicy(),
		collection:       DefaultCollection,
		failureThreshold: DefaultFailureThreshold,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(n)
	}

	n.logger = n.logger.With(zap.String("node_id", identity.ID.String()))
	return n
}

// ID returns the node's immutable identifier
func (n *Node) ID() uuid.UUID {
	return n.identity.ID
}

// CreatedAt returns the node's creation timestamp
func (n *Node) CreatedAt() time.Time {
	return n.identity.CreatedAt
}

// Status returns the current state-machine status
func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// Capabilities returns a copy of the declared capability set
func (n *Node) Capabilities() []Capability {
	return append([]Capability(nil), n.caps...)
}

// Metrics returns the node's recorder
func (n *Node) Metrics() *Recorder {
	return n.recorder
}

// Register persists the node's identity, status, capabilities and
// metrics as one document keyed by the node id, then transitions
// Bootstrapping to Active. On failure the status is left unchanged.
func (n *Node) Register(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status != StatusBootstrapping {
		return apperrors.InvalidTransition(string(n.status), string(StatusActive))
	}

	handle, err := n.mgr.Handle()
	if err != nil {
		// No write is attempted against an unhealthy store
		return apperrors.Registration("cannot register without a healthy store handle", err).
			WithDetail("node_id", n.identity.ID.String())
	}

	doc := n.documentLocked()
	err = n.policy.Do(ctx, func(ctx context.Context) error {
		return handle.Store().Set(ctx, n.collection, n.identity.ID.String(), doc)
	})
	if err != nil {
		return apperrors.Registration("failed to persist node registration", err).
			WithDetail("node_id", n.identity.ID.String())
	}

	n.status = StatusActive
	n.logger.Info("Node registered",
		zap.String("collection", n.collection),
		zap.String("status", string(n.status)))
	return nil
}

// Heartbeat re-persists the current status and metrics. After
// failureThreshold consecutive failures an operational node degrades
// itself; one successful heartbeat heals Degraded back to Active.
func (n *Node) Heartbeat(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status == StatusOffline {
		return apperrors.InvalidTransition(string(StatusOffline), string(StatusActive)).
			WithDetail("node_id", n.identity.ID.String())
	}

	err := n.persistLocked(ctx)
	if err != nil {
		n.recorder.RecordError()
		n.consecutiveFailures++

		if n.consecutiveFailures >= n.failureThreshold && n.status.operational() {
			n.status = StatusDegraded
			n.logger.Warn("Node degraded after sustained heartbeat failures",
				zap.Int("consecutive_failures", n.consecutiveFailures),
				zap.Int("threshold", n.failureThreshold))
		}

		return apperrors.Registration("heartbeat persistence failed", err).
			WithDetail("node_id", n.identity.ID.String()).
			WithDetail("consecutive_failures", n.consecutiveFailures)
	}

	n.consecutiveFailures = 0
	if n.status == StatusDegraded {
		n.status = StatusActive
		n.logger.Info("Node recovered from degraded state")
	}
	return nil
}

// persistLocked writes status and metrics under the retry policy
func (n *Node) persistLocked(ctx context.Context) error {
	handle, err := n.mgr.Handle()
	if err != nil {
		return err
	}

	fields := n.recorder.Snapshot()
	fields["status"] = string(n.status)
	fields["last_heartbeat"] = time.Now().Unix()

	return n.policy.Do(ctx, func(ctx context.Context) error {
		return handle.Store().Merge(ctx, n.collection, n.identity.ID.String(), fields)
	})
}

// Deregister marks the node Offline (terminal, regardless of prior
// status) and makes one best-effort final write with no retry
// escalation. Write failures are logged, not returned.
func (n *Node) Deregister(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status == StatusOffline {
		return apperrors.InvalidTransition(string(StatusOffline), string(StatusOffline)).
			WithDetail("node_id", n.identity.ID.String())
	}

	n.status = StatusOffline

	handle, err := n.mgr.Handle()
	if err != nil {
		n.logger.Warn("Final offline state not persisted, no healthy store handle", zap.Error(err))
		return nil
	}

	doc := n.documentLocked()
	if err := handle.Store().Set(ctx, n.collection, n.identity.ID.String(), doc); err != nil {
		n.logger.Warn("Failed to persist final offline state", zap.Error(err))
		return nil
	}

	n.logger.Info("Node deregistered")
	return nil
}

// Transition moves the node between the operational states under caller
// control. Degraded and Offline are never reachable this way: Degraded is
// automatic and Offline goes through Deregister.
func (n *Node) Transition(to Status) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.status.operational() || !to.operational() || !canTransition(n.status, to) {
		return apperrors.InvalidTransition(string(n.status), string(to)).
			WithDetail("node_id", n.identity.ID.String())
	}

	from := n.status
	n.status = to

	switch to {
	case StatusLearning:
		n.recorder.RecordLearningIteration()
	case StatusAdapting:
		n.recorder.RecordAdaptation()
	}

	n.logger.Debug("Node status changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// documentLocked builds the full persistence document: identity, status,
// capabilities and the metrics snapshot, all flat fields.
func (n *Node) documentLocked() store.Document {
	doc := n.recorder.Snapshot()
	doc["node_id"] = n.identity.ID.String()
	doc["status"] = string(n.status)
	doc["capabilities"] = joinCapabilities(n.caps)
	doc["created_at"] = n.identity.CreatedAt.UTC().Format(time.RFC3339)
	return doc
}

// joinCapabilities flattens the capability set to one comma-separated
// field so the document stays a flat mapping
func joinCapabilities(caps []Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
