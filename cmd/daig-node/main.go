package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/daig/daig-node/internal/api"
	"github.com/daig/daig-node/internal/config"
	"github.com/daig/daig-node/internal/metrics"
	"github.com/daig/daig-node/internal/node"
	"github.com/daig/daig-node/internal/server"
	"github.com/daig/daig-node/internal/service"
	"github.com/daig/daig-node/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dumpConfig := flag.Bool("dump-config", false, "print the effective configuration and exit")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("./config.yaml"); err == nil {
			path = "./config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *dumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("project_id", cfg.Store.ProjectID),
		zap.Int("nodes", len(cfg.Registry.Nodes)),
		zap.Duration("heartbeat_interval", cfg.Registry.HeartbeatInterval))

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Bring up the state store before anything that depends on it
	mgr := store.NewManager(cfg.Store, cfg.Retry.Policy(), logger)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	_, err = mgr.Initialize(initCtx)
	cancelInit()
	if err != nil {
		logger.Fatal("Failed to initialize state store", zap.Error(err))
	}
	m.SetStoreHealthy(true)

	// Build the local fleet from the declared node specs
	nodes := make([]*node.Node, 0, len(cfg.Registry.Nodes))
	for _, spec := range cfg.Registry.Nodes {
		n := node.New(mgr, spec.Parse(), logger,
			node.WithCollection(cfg.Registry.Collection),
			node.WithFailureThreshold(cfg.Registry.FailureThreshold),
			node.WithRetryPolicy(cfg.Retry.Policy()))
		nodes = append(nodes, n)
	}

	opts := []service.RegistryOption{}

	var gossipSvc *service.GossipService
	if cfg.Gossip.Enabled {
		gossipSvc, err = service.NewGossipService(&service.GossipConfig{
			Enabled:        cfg.Gossip.Enabled,
			ProcessName:    fmt.Sprintf("daig-%s", uuid.NewString()[:8]),
			BindPort:       cfg.Gossip.BindPort,
			SeedNodes:      cfg.Gossip.SeedNodes,
			GossipInterval: cfg.Gossip.GossipInterval,
			ProbeTimeout:   cfg.Gossip.ProbeTimeout,
			ProbeInterval:  cfg.Gossip.ProbeInterval,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize gossip service", zap.Error(err))
		} else {
			logger.Info("Gossip service initialized")
			opts = append(opts, service.WithGossip(gossipSvc))
		}
	}

	registry := service.NewRegistryService(mgr, nodes, m,
		cfg.Registry.HeartbeatInterval, logger, opts...)

	var metricsSrv *server.MetricsServer
	if cfg.Metrics.Enabled {
		metricsSrv = server.NewMetricsServer(&server.MetricsServerConfig{
			Port: cfg.Metrics.Port,
			Path: cfg.Metrics.Path,
		}, m, mgr, logger)
		if err := metricsSrv.Start(); err != nil {
			logger.Fatal("Failed to start metrics server", zap.Error(err))
		}
	}

	var apiSrv *api.Server
	if cfg.API.Enabled {
		apiSrv = api.NewServer(&api.ServerConfig{
			Port:         cfg.API.Port,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			IdleTimeout:  cfg.API.IdleTimeout,
		}, mgr, registry, cfg.Registry.Collection, logger)
		go func() {
			if err := apiSrv.Start(); err != nil {
				logger.Error("API server failed", zap.Error(err))
			}
		}()
	}

	if err := registry.RegisterAll(context.Background()); err != nil {
		logger.Fatal("Failed to register node fleet", zap.Error(err))
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		runDone <- registry.Run(runCtx)
	}()

	logger.Info("Node registry running",
		zap.Int("nodes", len(nodes)),
		zap.String("collection", cfg.Registry.Collection))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	// Stop heartbeats, then mark every node offline while the store
	// handle is still alive
	cancelRun()
	<-runDone

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	registry.DeregisterAll(shutdownCtx)

	if apiSrv != nil {
		if err := apiSrv.Stop(shutdownCtx); err != nil {
			logger.Error("Failed to stop API server", zap.Error(err))
		}
	}
	if metricsSrv != nil {
		if err := metricsSrv.Stop(); err != nil {
			logger.Error("Failed to stop metrics server", zap.Error(err))
		}
	}
	if gossipSvc != nil {
		if err := gossipSvc.Shutdown(); err != nil {
			logger.Error("Failed to shut down gossip service", zap.Error(err))
		}
	}

	mgr.Shutdown(shutdownCtx)
	logger.Info("Shutdown complete")
}

// initLogger initializes the zap logger from the logging configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	return zapCfg.Build()
}
