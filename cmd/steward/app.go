package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/steward-ai/steward/internal/agent"
	"github.com/steward-ai/steward/internal/agent/providers"
	"github.com/steward-ai/steward/internal/bridge"
	"github.com/steward-ai/steward/internal/capability"
	"github.com/steward-ai/steward/internal/config"
	"github.com/steward-ai/steward/internal/dispatch"
	"github.com/steward-ai/steward/internal/memory"
	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/internal/plan"
	"github.com/steward-ai/steward/internal/workflows"
)

// app owns every long-lived component and their shutdown order. All
// dependencies are constructed here and injected; nothing reaches for
// ambient state.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics

	store     *memory.SQLiteStore
	manager   *memory.Manager
	loop      *agent.Loop
	scheduler *workflows.Scheduler
	bridges   *bridge.Manager
}

func newApp(cfg *config.Config) (*app, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger)

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)

	store, err := memory.OpenSQLite(cfg.Memory.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	provider, model, err := buildProvider(cfg.LLM)
	if err != nil {
		store.Close()
		return nil, err
	}

	var embedder memory.Embedder
	if key := openAIKey(cfg.LLM); key != "" {
		embedder = memory.NewOpenAIEmbedder(key, cfg.Memory.EmbeddingModel)
	} else {
		logger.Warn("no OpenAI API key configured, semantic memory disabled")
	}

	manager := memory.NewManager(memory.ManagerConfig{
		Store:               store,
		Vectors:             store,
		Completer:           agent.NewProviderCompleter(provider, model, 0),
		Embedder:            embedder,
		CompactionThreshold: cfg.Memory.CompactionThreshold,
		KeepRecent:          cfg.Memory.KeepRecent,
		QueueCapacity:       cfg.Memory.QueueCapacity,
		Logger:              logger,
		Metrics:             metrics,
	})

	registry, err := capability.NewRegistry(
		capability.NewTimeCapability(),
		capability.NewNotesCapability(store),
	)
	if err != nil {
		manager.Close()
		store.Close()
		return nil, fmt.Errorf("build capability registry: %w", err)
	}

	bridges := bridge.NewManager()
	searchTool := memory.NewSearchTool(store, embedder, 5)

	dispatcher, err := dispatch.New(registry, []dispatch.Tool{searchTool}, bridges, logger, metrics)
	if err != nil {
		manager.Close()
		store.Close()
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	loop, err := agent.NewLoop(agent.LoopConfig{
		Provider:      provider,
		Dispatcher:    dispatcher,
		Registry:      registry,
		Memory:        manager,
		Persona:       cfg.Agent.Persona,
		Model:         model,
		MaxIterations: cfg.Agent.MaxIterations,
		RecentWindow:  cfg.Memory.RecentWindow,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		manager.Close()
		store.Close()
		return nil, fmt.Errorf("build turn loop: %w", err)
	}

	wfs, err := workflows.FromConfig(cfg.Workflows.Entries)
	if err != nil {
		manager.Close()
		store.Close()
		return nil, err
	}
	scheduler, err := workflows.NewScheduler(
		plan.NewExecutor(dispatcher, logger),
		wfs,
		workflows.WithLogger(logger),
		workflows.WithMetrics(metrics),
	)
	if err != nil {
		manager.Close()
		store.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  promRegistry,
		metrics:   metrics,
		store:     store,
		manager:   manager,
		loop:      loop,
		scheduler: scheduler,
		bridges:   bridges,
	}, nil
}

// Close shuts components down in reverse dependency order. The memory
// manager drains its background queue before the store closes.
func (a *app) Close() {
	a.scheduler.Stop()
	a.manager.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing memory store", "error", err)
	}
}

func buildProvider(cfg config.LLMConfig) (agent.LLMProvider, string, error) {
	providerCfg := cfg.Providers[cfg.DefaultProvider]

	switch cfg.DefaultProvider {
	case "anthropic":
		apiKey := providerCfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       apiKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
		if err != nil {
			return nil, "", fmt.Errorf("anthropic provider: %w", err)
		}
		return p, providerCfg.DefaultModel, nil

	case "openai":
		apiKey := providerCfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		p, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       apiKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
		if err != nil {
			return nil, "", fmt.Errorf("openai provider: %w", err)
		}
		return p, providerCfg.DefaultModel, nil

	default:
		return nil, "", fmt.Errorf("unknown LLM provider %q", cfg.DefaultProvider)
	}
}

func openAIKey(cfg config.LLMConfig) string {
	if p, ok := cfg.Providers["openai"]; ok && p.APIKey != "" {
		return p.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}
