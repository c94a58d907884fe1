// Package service orchestrates the node fleet: registration, heartbeat
// scheduling, cross-process gossip and ordered shutdown. The nodes
// themselves own no timers; this is the scheduling collaborator driving
// them at a fixed cadence.
package service

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/daig/daig-node/internal/metrics"
	"github.com/daig/daig-node/internal/node"
	"github.com/daig/daig-node/internal/store"
)

// RegistryService owns the fleet of nodes running in this process
type RegistryService struct {
	mgr      *store.Manager
	nodes    []*node.Node
	metrics  *metrics.Metrics
	interval time.Duration
	gossip   *GossipService
	logger   *zap.Logger
}

// RegistryOption customizes the registry service
type RegistryOption func(*RegistryService)

// WithGossip attaches a gossip service that receives fleet summaries on
// every heartbeat tick
func WithGossip(g *GossipService) RegistryOption {
	return func(s *RegistryService) {
		s.gossip = g
	}
}

// NewRegistryService creates the fleet orchestrator
func NewRegistryService(mgr *store.Manager, nodes []*node.Node, m *metrics.Metrics,
	heartbeatInterval time.Duration, logger *zap.Logger, opts ...RegistryOption) *RegistryService {

	s := &RegistryService{
		mgr:      mgr,
		nodes:    nodes,
		metrics:  m,
		interval: heartbeatInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nodes returns the fleet
func (s *RegistryService) Nodes() []*node.Node {
	return s.nodes
}

// RegisterAll registers every node, failing fast on the first error so
// that an unhealthy store prevents any degraded-mode bootstrapping.
func (s *RegistryService) RegisterAll(ctx context.Context) error {
	for _, n := range s.nodes {
		if err := n.Register(ctx); err != nil {
			return fmt.Errorf("failed to register node %s: %w", n.ID(), err)
		}
		s.metrics.RecordRegistration()
	}

	s.logger.Info("All nodes registered", zap.Int("count", len(s.nodes)))
	s.publishFleetMetrics()
	return nil
}

// Run drives one heartbeat loop per node until the context is cancelled.
// A failing heartbeat degrades its own node but never crashes siblings
// sharing the handle.
func (s *RegistryService) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, n := range s.nodes {
		n := n
		g.Go(func() error {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s.heartbeat(gctx, n)
				}
			}
		})
	}

	return g.Wait()
}

// heartbeat runs one heartbeat for one node with a per-attempt deadline
func (s *RegistryService) heartbeat(ctx context.Context, n *node.Node) {
	n.Metrics().SetMemoryUsage(processMemoryMB())

	hbCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	start := time.Now()
	err := n.Heartbeat(hbCtx)
	duration := time.Since(start).Seconds()

	if err != nil {
		s.metrics.RecordHeartbeat("failure", duration)
		s.logger.Warn("Heartbeat failed",
			zap.String("node_id", n.ID().String()),
			zap.String("status", string(n.Status())),
			zap.Error(err))
	} else {
		s.metrics.RecordHeartbeat("success", duration)
	}

	s.publishFleetMetrics()
}

// DeregisterAll marks every node offline, best effort
func (s *RegistryService) DeregisterAll(ctx context.Context) {
	for _, n := range s.nodes {
		if n.Status() == node.StatusOffline {
			continue
		}
		if err := n.Deregister(ctx); err != nil {
			s.logger.Warn("Failed to deregister node",
				zap.String("node_id", n.ID().String()),
				zap.Error(err))
			continue
		}
		s.metrics.RecordDeregistration()
	}

	s.logger.Info("All nodes deregistered")
	s.publishFleetMetrics()
}

// StatusCounts returns the number of local nodes per status
func (s *RegistryService) StatusCounts() map[node.Status]int {
	counts := make(map[node.Status]int)
	for _, n := range s.nodes {
		counts[n.Status()]++
	}
	return counts
}

// publishFleetMetrics pushes fleet and store health to Prometheus and,
// when enabled, to the gossip mesh
func (s *RegistryService) publishFleetMetrics() {
	counts := s.StatusCounts()
	for _, status := range []node.Status{
		node.StatusBootstrapping, node.StatusActive, node.StatusLearning,
		node.StatusAdapting, node.StatusDegraded, node.StatusOffline,
	} {
		s.metrics.SetNodeStatus(string(status), counts[status])
	}

	s.metrics.SetStoreHealthy(s.mgr.State() == store.HandleHealthy)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	s.metrics.UpdateSystemStats(int64(memStats.Alloc), runtime.NumGoroutine())

	if s.gossip != nil {
		s.gossip.UpdateSummary(counts)
	}
}

// processMemoryMB returns the process heap footprint in MB
func processMemoryMB() float64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return float64(memStats.Alloc) / (1024 * 1024)
}
