// Package control wires configuration into a running engine with its
// guards, job store, declared pipelines and ops endpoints.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/conveyorhq/conveyor/internal/core/config"
	"github.com/conveyorhq/conveyor/internal/infra/guard"
	"github.com/conveyorhq/conveyor/internal/infra/httpstage"
	"github.com/conveyorhq/conveyor/internal/infra/jobstore"
	"github.com/conveyorhq/conveyor/internal/infra/jobstore/memory"
	redisstore "github.com/conveyorhq/conveyor/internal/infra/jobstore/redis"
	"github.com/conveyorhq/conveyor/internal/ops"
	"github.com/conveyorhq/conveyor/internal/pipeline"
)

// Service is the main application struct that manages the engine
// lifecycle.
type Service struct {
	cfg        *config.AppConfig
	engine     *pipeline.Engine
	registry   *pipeline.Registry
	guards     map[string]*guard.Guard
	store      jobstore.Store
	memStore   *memory.Store
	httpClient *httpstage.Client
	pipelines  map[string]*pipeline.Pipeline
	opsServer  *ops.Server
	log        *slog.Logger
}

// NewStore builds the configured job store backend. The status and
// cancel commands use it without assembling a full Service.
func NewStore(cfg *config.AppConfig) (jobstore.Store, error) {
	switch cfg.JobStore.Backend {
	case "redis":
		store, err := redisstore.New(cfg.JobStore.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init job store: %w", err)
		}
		return store, nil
	default:
		return memory.New(cfg.JobStore.SweepInterval), nil
	}
}

// New creates a Service with all dependencies initialized.
func New(cfg *config.AppConfig) (*Service, error) {
	var store jobstore.Store
	var memStore *memory.Store
	var pinger ops.StorePinger

	switch cfg.JobStore.Backend {
	case "redis":
		rs, err := redisstore.New(cfg.JobStore.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init job store: %w", err)
		}
		store = rs
		pinger = rs
		slog.Info("Using Redis job store")
	default:
		memStore = memory.New(cfg.JobStore.SweepInterval)
		store = memStore
		slog.Info("Using memory job store")
	}

	guards := make(map[string]*guard.Guard, len(cfg.Services))
	for _, svc := range cfg.Services {
		guards[svc.Name] = guard.New(svc.GuardConfig())
	}

	registry := pipeline.NewRegistry(cfg.Engine.Retention)
	engine := pipeline.NewEngine(pipeline.Config{
		RecordTTL:  cfg.Engine.RecordTTL,
		MaxRetries: cfg.Engine.MaxRetries,
	}, store, guards, registry)

	httpClient := httpstage.NewClient(30 * time.Second)
	builders := pipeline.NewBuilderSet()
	builders.Register("http", httpstage.Builder(httpClient))

	pipelines := make(map[string]*pipeline.Pipeline, len(cfg.Pipelines))
	for _, pc := range cfg.Pipelines {
		pl, err := buildPipeline(builders, pc)
		if err != nil {
			store.Close()
			return nil, err
		}
		pipelines[pc.Name] = pl
	}

	monitor := ops.NewMonitor(guards, registry, pinger)
	opsServer := ops.NewServer(monitor, cfg.Ops.Port)

	return &Service{
		cfg:        cfg,
		engine:     engine,
		registry:   registry,
		guards:     guards,
		store:      store,
		memStore:   memStore,
		httpClient: httpClient,
		pipelines:  pipelines,
		opsServer:  opsServer,
		log:        slog.Default(),
	}, nil
}

func buildPipeline(builders *pipeline.BuilderSet, pc config.PipelineConfig) (*pipeline.Pipeline, error) {
	stages := make([]pipeline.Stage, 0, len(pc.Stages))
	for _, sc := range pc.Stages {
		fn, err := builders.Build(sc.Uses, sc.With)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: stage %s: %w", pc.Name, sc.Name, err)
		}
		stages = append(stages, pipeline.Stage{Name: sc.Name, Service: sc.Service, Run: fn})
	}
	pl := &pipeline.Pipeline{Name: pc.Name, Stages: stages}
	if err := pl.Validate(); err != nil {
		return nil, err
	}
	return pl, nil
}

// Engine exposes the run engine for callers submitting work.
func (s *Service) Engine() *pipeline.Engine {
	return s.engine
}

// Pipeline looks up a configured pipeline by name.
func (s *Service) Pipeline(name string) (*pipeline.Pipeline, bool) {
	pl, ok := s.pipelines[name]
	return pl, ok
}

// Pipelines lists the configured pipeline names.
func (s *Service) Pipelines() []string {
	names := make([]string, 0, len(s.pipelines))
	for name := range s.pipelines {
		names = append(names, name)
	}
	return names
}

// Start launches the ops server and the background loops. The loops
// exit when ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.opsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Ops server failed", "error", err)
		}
	}()

	for _, svc := range s.cfg.Services {
		if svc.Serialize {
			s.log.Info("Starting request queue", "service", svc.Name)
		}
	}
	for _, g := range s.guards {
		go g.Run(ctx)
	}

	go s.registry.Run(ctx)
	if s.memStore != nil {
		go s.memStore.Run(ctx)
	}

	return nil
}

// Stop waits for submitted runs to finish, then shuts everything down.
// Cancel the Start context first so the background loops exit.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping conveyor...")

	done := make(chan struct{})
	go func() {
		s.engine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Shutdown deadline reached with jobs still running")
	}

	s.httpClient.Close()
	if err := s.store.Close(); err != nil {
		s.log.Warn("Failed to close job store", "error", err)
	}

	return s.opsServer.Stop(ctx)
}
