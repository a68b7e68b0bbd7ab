package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bkyoung/review-agent/internal/adapter/agent/claude"
	"github.com/bkyoung/review-agent/internal/adapter/agent/gemini"
	"github.com/bkyoung/review-agent/internal/adapter/cli"
	"github.com/bkyoung/review-agent/internal/adapter/httpserver"
	"github.com/bkyoung/review-agent/internal/adapter/observability"
	storeAdapter "github.com/bkyoung/review-agent/internal/adapter/store"
	"github.com/bkyoung/review-agent/internal/adapter/store/sqlite"
	"github.com/bkyoung/review-agent/internal/adapter/workspace"
	"github.com/bkyoung/review-agent/internal/config"
	"github.com/bkyoung/review-agent/internal/domain"
	"github.com/bkyoung/review-agent/internal/redaction"
	"github.com/bkyoung/review-agent/internal/usecase/task"
	"github.com/bkyoung/review-agent/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Create cancellable context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "review-agent",
		EnvPrefix:   "REVIEW_AGENT",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := buildLogger(cfg.Observability)

	defaultProvider := domain.ProviderAuto
	if cfg.Agent.Provider != "" {
		parsed, err := domain.ParseProviderIdentity(cfg.Agent.Provider)
		if err != nil {
			log.Printf("warning: %v, using automatic selection", err)
		} else {
			defaultProvider = parsed
		}
	}

	probeTimeout := parseDuration(cfg.Agent.ProbeTimeout, 5*time.Second, "probe timeout")
	taskTimeout := parseDuration(cfg.Agent.TaskTimeout, task.DefaultTaskTimeout, "task timeout")
	graceWindow := parseDuration(cfg.Providers.Gemini.GraceWindow, 10*time.Second, "grace window")

	claudeProvider := claude.New(claude.Options{
		Binary:       cfg.Providers.Claude.Command,
		Model:        cfg.Providers.Claude.Model,
		ProbeTimeout: probeTimeout,
	})
	geminiProvider := gemini.New(gemini.Options{
		Binary:        cfg.Providers.Gemini.Command,
		Model:         cfg.Providers.Gemini.Model,
		FallbackModel: cfg.Providers.Gemini.FallbackModel,
		GraceWindow:   graceWindow,
		ProbeTimeout:  probeTimeout,
	})

	workspaces, err := workspace.NewManager(workspace.Options{
		BaseDir:       cfg.Workspace.BaseDir,
		GitHubBaseURL: cfg.GitHub.BaseURL,
		Token:         cfg.GitHub.Token,
	})
	if err != nil {
		return fmt.Errorf("workspace manager init failed: %w", err)
	}

	// Initialize the journal store if enabled
	var journal task.Journal
	var history cli.HistoryReader
	if cfg.Store.Enabled {
		storeDir := filepath.Dir(cfg.Store.Path)
		if err := os.MkdirAll(storeDir, 0755); err != nil {
			log.Printf("warning: failed to create store directory: %v", err)
		} else {
			sqliteStore, err := sqlite.NewStore(cfg.Store.Path)
			if err != nil {
				log.Printf("warning: failed to initialize store: %v", err)
			} else {
				bridge := storeAdapter.NewBridge(sqliteStore)
				// Ensure store is closed on exit
				defer bridge.Close()
				journal = bridge
				history = sqliteStore
			}
		}
	}

	// Instantiate redaction engine if enabled
	var redactor task.Redactor
	if cfg.Observability.Logging.RedactSecrets {
		redactor = redaction.NewEngine()
	}

	signals := task.NewSignalRegistry()
	defer signals.Close()

	supervisor := task.NewSupervisor(task.SupervisorDeps{
		Logger:     logger,
		Signals:    signals,
		Workspaces: workspaces,
		Journal:    journal,
		Redactor:   redactor,
		Timeout:    taskTimeout,
	})

	prompts, err := task.NewPromptBuilder(cfg.Prompts.Dir)
	if err != nil {
		return fmt.Errorf("prompt builder init failed: %w", err)
	}

	orchestrator := task.NewOrchestrator(task.OrchestratorDeps{
		Selector:        task.NewSelector(logger, claudeProvider, geminiProvider),
		Workspaces:      workspaces,
		Supervisor:      supervisor,
		Prompts:         prompts,
		Logger:          logger,
		DefaultProvider: defaultProvider,
		FallbackEnabled: cfg.Agent.FallbackEnabled,
	})

	root := cli.NewRootCommand(cli.Dependencies{
		Launcher: cli.LauncherFunc(func(ctx context.Context, t domain.Task, identity domain.ProviderIdentity) (cli.Supervised, error) {
			sv, err := orchestrator.Launch(ctx, t, identity)
			if err != nil {
				return nil, err
			}
			return sv, nil
		}),
		History: history,
		ServerFactory: func(listen string) (cli.WebhookServer, error) {
			if listen == "" {
				listen = cfg.Server.Listen
			}
			server, err := httpserver.NewServer(orchestrator, logger, httpserver.Options{
				Listen:         listen,
				WebhookSecret:  cfg.Server.WebhookSecret,
				TriggerLabel:   cfg.Server.TriggerLabel,
				MentionCommand: cfg.Server.MentionCommand,
			})
			if err != nil {
				return nil, err
			}
			return server, nil
		},
		DefaultListen:   cfg.Server.Listen,
		DefaultProvider: cfg.Agent.Provider,
		Version:         version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "review-agent"))
	}
	return paths
}

// buildLogger creates the task logger based on configuration. Disabled
// logging still yields a usable logger so collaborators never nil-check.
func buildLogger(cfg config.ObservabilityConfig) task.Logger {
	if !cfg.Logging.Enabled {
		return observability.NopLogger{}
	}
	level := observability.ParseLogLevel(cfg.Logging.Level)
	format := observability.ParseLogFormat(cfg.Logging.Format)
	return observability.NewDefaultLogger(level, format, cfg.Logging.RedactSecrets)
}

// parseDuration parses a configured duration string, falling back to a
// default with a warning when the value is malformed.
func parseDuration(value string, fallback time.Duration, name string) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("warning: invalid %s %q, using default %s", name, value, fallback)
		return fallback
	}
	return parsed
}

// Compile-time interface compliance checks
var _ task.Provider = (*claude.Provider)(nil)
var _ task.Provider = (*gemini.Provider)(nil)
var _ task.Workspaces = (*workspace.Manager)(nil)
var _ task.Logger = (*observability.DefaultLogger)(nil)
var _ task.Journal = (*storeAdapter.Bridge)(nil)
var _ task.Redactor = (*redaction.Engine)(nil)
var _ cli.HistoryReader = (*sqlite.Store)(nil)
var _ cli.WebhookServer = (*httpserver.Server)(nil)
