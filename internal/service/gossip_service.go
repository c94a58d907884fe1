package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"

	"github.com/daig/daig-node/internal/node"
)

// GossipService propagates this process's fleet summary to peer registry
// processes. It is purely informational: the remote store stays the
// source of truth for node state.
type GossipService struct {
	config     *GossipConfig
	memberlist *memberlist.Memberlist
	logger     *zap.Logger

	mu      sync.Mutex
	summary *FleetSummary
}

// GossipConfig holds gossip protocol configuration
type GossipConfig struct {
	Enabled        bool
	ProcessName    string
	BindPort       int
	SeedNodes      []string
	GossipInterval time.Duration
	ProbeTimeout   time.Duration
	ProbeInterval  time.Duration
}

// FleetSummary is the gossiped view of one registry process
type FleetSummary struct {
	Process   string         `json:"process"`
	NodeCount int            `json:"node_count"`
	Statuses  map[string]int `json:"statuses"`
	Timestamp int64          `json:"timestamp"`
}

// NewGossipService creates a new gossip service and joins the seed nodes
func NewGossipService(cfg *GossipConfig, logger *zap.Logger) (*GossipService, error) {
	gs := &GossipService{
		config: cfg,
		logger: logger,
		summary: &FleetSummary{
			Process:   cfg.ProcessName,
			Statuses:  make(map[string]int),
			Timestamp: time.Now().Unix(),
		},
	}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = cfg.ProcessName
	mlConfig.BindPort = cfg.BindPort
	mlConfig.GossipInterval = cfg.GossipInterval
	mlConfig.ProbeTimeout = cfg.ProbeTimeout
	mlConfig.ProbeInterval = cfg.ProbeInterval
	mlConfig.Delegate = gs
	mlConfig.Events = &gossipEventDelegate{service: gs}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}

	gs.memberlist = ml

	if len(cfg.SeedNodes) > 0 {
		if _, err := ml.Join(cfg.SeedNodes); err != nil {
			logger.Warn("Failed to join some seed nodes", zap.Error(err))
		}
	}

	return gs, nil
}

// UpdateSummary refreshes the gossiped fleet summary
func (s *GossipService) UpdateSummary(counts map[node.Status]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]int, len(counts))
	total := 0
	for status, count := range counts {
		statuses[string(status)] = count
		total += count
	}

	s.summary.Statuses = statuses
	s.summary.NodeCount = total
	s.summary.Timestamp = time.Now().Unix()
}

// Members returns the number of known peer processes
func (s *GossipService) Members() int {
	return s.memberlist.NumMembers()
}

// NodeMeta implements memberlist.Delegate
func (s *GossipService) NodeMeta(limit int) []byte {
	s.mu.Lock()
	data, _ := json.Marshal(s.summary)
	s.mu.Unlock()

	if len(data) > limit {
		return data[:limit]
	}
	return data
}

// NotifyMsg implements memberlist.Delegate
func (s *GossipService) NotifyMsg(data []byte) {
	var summary FleetSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		s.logger.Warn("Failed to unmarshal gossip message", zap.Error(err))
		return
	}

	s.logger.Debug("Received fleet summary",
		zap.String("process", summary.Process),
		zap.Int("node_count", summary.NodeCount))
}

// GetBroadcasts implements memberlist.Delegate
func (s *GossipService) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

// LocalState implements memberlist.Delegate
func (s *GossipService) LocalState(join bool) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := json.Marshal(s.summary)
	return data
}

// MergeRemoteState implements memberlist.Delegate
func (s *GossipService) MergeRemoteState(buf []byte, join bool) {
	// Peer state is observed through events, not merged
}

// Shutdown leaves the mesh and shuts down the gossip service
func (s *GossipService) Shutdown() error {
	if err := s.memberlist.Leave(time.Second); err != nil {
		s.logger.Warn("Failed to announce leave", zap.Error(err))
	}
	return s.memberlist.Shutdown()
}

// gossipEventDelegate handles memberlist events
type gossipEventDelegate struct {
	service *GossipService
}

// NotifyJoin is called when a peer process joins
func (d *gossipEventDelegate) NotifyJoin(n *memberlist.Node) {
	d.service.logger.Info("Registry process joined",
		zap.String("process", n.Name),
		zap.String("addr", n.Addr.String()))
}

// NotifyLeave is called when a peer process leaves
func (d *gossipEventDelegate) NotifyLeave(n *memberlist.Node) {
	d.service.logger.Info("Registry process left",
		zap.String("process", n.Name))
}

// NotifyUpdate is called when a peer process updates its metadata
func (d *gossipEventDelegate) NotifyUpdate(n *memberlist.Node) {
	d.service.logger.Debug("Registry process updated",
		zap.String("process", n.Name))
}
