package main

import (
	"context"
	"fmt"
	"time"

	"github.com/JaiwanShin/ai-marketing-team/pkg/config"
	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/plugins"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
	"github.com/JaiwanShin/ai-marketing-team/pkg/utils"
)

// App holds the store shared by every command
type App struct {
	config    *config.Config
	logger    logging.Logger
	closeLog  func() error
	provider  storage.StorageProvider
	log       *runlog.RunLog
	artifacts storage.ArtifactStore
}

// Team is the in-process agent team with its run supervisor
type Team struct {
	Agents     *loader.Teams
	Executor   *runtime.AgentExecutor
	Engine     *runtime.WorkflowEngine
	Supervisor *runtime.RunSupervisor
}

// loadConfig locates the configuration and applies flags and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Locate(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(nil)

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if simulate {
		cfg.LLM.Simulate = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp opens the store. quietLog discards diagnostics written to the
// terminal, for the full screen dashboard.
func newApp(quietLog bool) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var (
		logger   logging.Logger
		closeLog = func() error { return nil }
	)
	if quietLog && cfg.Logging.Output != "file" {
		logger = logging.NewNop()
	} else {
		logger, closeLog, err = logging.New(cfg.Logging)
		if err != nil {
			return nil, err
		}
	}

	provider, err := storage.NewProvider(storage.ProviderConfig{
		Type:      storage.ProviderType(cfg.Storage.Type),
		OutputDir: cfg.Storage.OutputDir,
		Redis: &storage.RedisProviderConfig{
			Addr:      cfg.Storage.Redis.Addr,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		},
	})
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}
	if err := provider.Initialize(); err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	log := runlog.New(provider.GetLogStore(), logger)
	if err := log.Init(); err != nil {
		logger.Warn("Failed to write initial status", logging.Err(err))
	}

	return &App{
		config:    cfg,
		logger:    logger,
		closeLog:  closeLog,
		provider:  provider,
		log:       log,
		artifacts: provider.GetArtifactStore(),
	}, nil
}

// Close releases the store and the log file.
func (a *App) Close() error {
	err := a.provider.Close()
	if cerr := a.closeLog(); err == nil {
		err = cerr
	}
	return err
}

// supervisor returns a supervisor over the store with no workflow, for
// commands that only clear.
func (a *App) supervisor(ctx context.Context) *runtime.RunSupervisor {
	return runtime.NewRunSupervisor(ctx, nil, a.log, a.artifacts, a.logger)
}

// buildTeam loads agent definitions and wires capability, hints, engine and
// supervisor.
func (a *App) buildTeam(ctx context.Context) (*Team, error) {
	teams, err := loader.NewMarkdownLoader().LoadAll(a.config.Agents.Dir)
	if err != nil {
		return nil, err
	}

	capability := a.capability()

	registry := plugins.NewProviderRegistry()
	if a.config.Naver.Enabled() {
		if err := plugins.RegisterNaverProviders(registry, a.naverClient()); err != nil {
			return nil, fmt.Errorf("failed to register data providers: %w", err)
		}
	}

	table := loader.DefaultCapabilityTable()
	if path := a.config.Agents.CapabilitiesFile; path != "" {
		table, err = loader.LoadCapabilityTable(path)
		if err != nil {
			return nil, err
		}
	}
	skills, err := loader.LoadSkills(a.config.Agents.SkillsDir)
	if err != nil {
		return nil, err
	}
	hints := runtime.ResolveHints(table, skills, registry.Providers())

	a.logger.Info("Agent team loaded",
		logging.F("teams", teams.Names()),
		logging.F("providers", registry.List()),
		logging.F("simulate", a.config.LLM.Simulate))

	executor := runtime.NewAgentExecutor(teams, a.log, a.artifacts, capability, hints, a.logger)
	engine := runtime.NewWorkflowEngine(executor, teams, a.log, a.artifacts, a.logger)
	supervisor := runtime.NewRunSupervisor(ctx, engine, a.log, a.artifacts, a.logger)

	return &Team{
		Agents:     teams,
		Executor:   executor,
		Engine:     engine,
		Supervisor: supervisor,
	}, nil
}

func (a *App) capability() runtime.Capability {
	llm := a.config.LLM
	if llm.Simulate {
		return plugins.NewSimulatedCapability(llm.SimulateDelay())
	}

	var opts []utils.LLMOption
	if llm.BaseURL != "" {
		opts = append(opts, utils.WithBaseURL(llm.BaseURL))
	}
	opts = append(opts, utils.WithTimeout(3*time.Minute))
	client := utils.NewLLMClient(utils.LLMProvider(llm.Provider), llm.APIKey, opts...)

	return plugins.NewLLMCapability(client, plugins.LLMCapabilityConfig{
		Model:       llm.Model,
		Temperature: llm.Temperature,
		MaxTokens:   llm.MaxTokens,
	}, a.logger)
}

func (a *App) naverClient() *utils.NaverClient {
	n := a.config.Naver
	return utils.NewNaverClient(utils.NaverConfig{
		SearchAdAPIKey:    n.SearchAdAPIKey,
		SearchAdSecretKey: n.SearchAdSecretKey,
		CustomerID:        n.CustomerID,
		ClientID:          n.ClientID,
		ClientSecret:      n.ClientSecret,
	}, nil)
}
