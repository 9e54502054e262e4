package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/escape-engine/internal/config"
	"github.com/jwebster45206/escape-engine/internal/custodian"
	"github.com/jwebster45206/escape-engine/internal/engine"
	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/internal/narrator"
	"github.com/jwebster45206/escape-engine/internal/services"
	"github.com/jwebster45206/escape-engine/internal/storage"
	"github.com/jwebster45206/escape-engine/pkg/restraint"
)

// app is the engine and everything it owns, wired for one host.
type app struct {
	store     storage.Storage
	custodian *custodian.Custodian
	engine    *engine.Engine
}

func newLLMService(cfg *config.Config, log *slog.Logger) (services.LLMService, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		log.Info("Using Anthropic LLM provider")
		return services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log), nil
	case "venice":
		log.Info("Using Venice LLM provider")
		return services.NewVeniceService(cfg.VeniceAPIKey, cfg.ModelName, log), nil
	case "ollama":
		log.Info("Using Ollama LLM provider", "url", cfg.OllamaURL)
		return services.NewOllamaService(cfg.OllamaURL, cfg.ModelName, log), nil
	case "scripted":
		log.Info("Using scripted narrator")
		return services.NewScriptedService(services.DemoScript()...), nil
	}
	return nil, fmt.Errorf("invalid LLM provider %q, supported: %v", cfg.LLMProvider, config.LLMProviders)
}

func loadPolicy(cfg *config.Config, catalog *restraint.Catalog, log *slog.Logger) (*restraint.Policy, error) {
	policy, err := restraint.LoadPolicy(cfg.SafetyPolicyFile, catalog)
	if err != nil {
		return nil, err
	}
	if len(policy.Unknown) > 0 {
		log.Warn("Safety policy names unknown restraints", "unknown", policy.Unknown)
	}
	log.Info("Safety policy loaded",
		"file", cfg.SafetyPolicyFile,
		"disallowed", policy.Disallowed,
		"restrictions", len(policy.Restrictions))
	return policy, nil
}

// newApp opens storage, initializes the model and builds the engine on
// platform. The caller resumes persisted sessions.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, llm services.LLMService, platform host.Platform) (*app, error) {
	store, err := storage.Open(cfg.StoreBackend, cfg.DataDir, cfg.RedisURL, log)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if rs, ok := store.(*storage.RedisStorage); ok {
		err = rs.WaitForConnection(pingCtx, 30, 2*time.Second)
	} else {
		err = store.Ping(pingCtx)
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}
	log.Info("Storage connection established successfully", "backend", cfg.StoreBackend)

	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Minute)
	defer initCancel()
	if err := llm.InitModel(initCtx, cfg.ModelName); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize LLM model %s: %w", cfg.ModelName, err)
	}

	catalog := restraint.DefaultCatalog()
	policy, err := loadPolicy(cfg, catalog, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	adapter := narrator.NewAdapter(llm, catalog, policy, cfg.NarratorTimeout, log)
	cust := custodian.New(platform, store, custodian.Config{
		PlayerRole:   cfg.PlayerRole,
		StaffRoles:   cfg.StaffRoles,
		ManagedRoles: cfg.ManagedRoles,
		GracePeriod:  cfg.RoomGracePeriod,
	}, log)
	eng := engine.New(adapter, cust, store, platform, engine.Config{
		Catalog:    catalog,
		Policy:     policy,
		GarbleEcho: cfg.GarbleEcho == "room",
	}, log)

	return &app{store: store, custodian: cust, engine: eng}, nil
}

// Close stops every session actor, flushes pending room destruction and
// closes storage. Live sessions stay persisted for the next start.
func (a *app) Close(log *slog.Logger) {
	a.engine.Close()
	a.custodian.Close()
	if err := a.store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}
}
