package main

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/rudi77/taskforge/internal/agentdef"
	"github.com/rudi77/taskforge/internal/classifier"
	"github.com/rudi77/taskforge/internal/config"
	"github.com/rudi77/taskforge/internal/executor"
	"github.com/rudi77/taskforge/internal/httpapi"
	"github.com/rudi77/taskforge/internal/session"
	"github.com/rudi77/taskforge/internal/spawner"
	"github.com/rudi77/taskforge/internal/toolexec"
	"github.com/rudi77/taskforge/internal/toolreg"
	"github.com/rudi77/taskforge/internal/workflow"
)

// runtime bundles every collaborator wired from one config file, shared by
// every cobra command so `run`, `epic run`, `sessions`, and `workflows`
// exercise the exact same executor the HTTP server does.
type runtime struct {
	cfg      *config.Config
	executor *executor.Service
	sessions session.Store
	workflow *workflow.Runtime
}

func buildRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	models, err := cfg.NewRoleResolver(ctx)
	if err != nil {
		return nil, fmt.Errorf("build model resolver: %w", err)
	}
	sessions, err := cfg.NewSessionStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("build session store: %w", err)
	}
	results, err := cfg.NewToolResultStore()
	if err != nil {
		return nil, fmt.Errorf("build tool result store: %w", err)
	}
	generalBus, err := cfg.NewBus()
	if err != nil {
		return nil, fmt.Errorf("build bus: %w", err)
	}
	workflowStore, err := cfg.NewWorkflowStore()
	if err != nil {
		return nil, fmt.Errorf("build workflow store: %w", err)
	}

	tools := toolreg.New()
	agentdef.RegisterBuiltinTools(tools)
	resolver := toolreg.NewResolver(tools)

	registry, err := cfg.BuildRegistry(tools)
	if err != nil {
		return nil, fmt.Errorf("build agent definition registry: %w", err)
	}

	clsfrClient, _, err := models.Resolve("classifier")
	if err != nil {
		return nil, fmt.Errorf("resolve classifier model: %w", err)
	}
	clsfr := classifier.New(clsfrClient)

	epicFS := afero.NewOsFs()
	epicBoard := cfg.NewEpicBoard()

	deps := agentdef.Deps{
		Tools:     tools,
		Resolver:  resolver,
		Sessions:  sessions,
		Results:   results,
		Models:    models,
		Approval:  toolexec.AutoApprove{},
		Bus:       generalBus,
		PlanTopic: "",
	}
	factory := agentdef.NewFactory(registry, deps)

	summarizerClient, _, err := models.Resolve("summarizer")
	if err != nil {
		summarizerClient = nil // summarization is optional; missing role just disables it
	}
	sp := spawner.New(factory, summarizerClient)
	factory.Deps.Spawner = sp

	svc := executor.New(registry, factory, clsfr, sessions, epicBoard, sp, epicFS, cfg.Storage.RunsRoot)
	svc.DefaultEpic.MaxRounds = cfg.Epic.MaxRounds
	svc.DefaultEpic.PlannerCount = cfg.Epic.PlannerCount
	svc.DefaultEpic.WorkerCount = cfg.Epic.WorkerCount
	svc.DefaultEpic.MaxConcurrency = cfg.Epic.MaxConcurrency
	svc.DefaultEpic.AllowedTypes = cfg.Epic.AllowedTypes

	gateway, err := cfg.NewGateway()
	if err != nil {
		return nil, fmt.Errorf("build workflow gateway: %w", err)
	}
	wf := workflow.New(workflowStore, gateway, nil)

	return &runtime{cfg: cfg, executor: svc, sessions: sessions, workflow: wf}, nil
}

func (r *runtime) httpServer() *httpapi.Server {
	return httpapi.New(httpapi.Config{ReadTimeout: r.cfg.Server.ReadTimeout}, r.executor, r.sessions, r.workflow)
}

func profileFor(cfg *config.Config, name string) (executor.Profile, error) {
	pc, ok := cfg.Profiles[name]
	if !ok {
		return executor.Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	return executor.Profile{
		AgentID: pc.AgentID,
		AutoEpic: executor.AutoEpicConfig{
			Enabled:             pc.AutoEpic.Enabled,
			ConfidenceThreshold: pc.AutoEpic.ConfidenceThreshold,
		},
	}, nil
}
