package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/runstate"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/threadstore"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/config"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/observability"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/runtime/openairt"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/server/app"
	serverhttp "github.com/Timestep-AI/timestep-ai-sub004/internal/server/http"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	bold  = color.New(color.Bold).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// NewRootCommand builds the timestep-server CLI.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "timestep-server",
		Short: "Agent thread server with streaming chat over SSE",
		Long: fmt.Sprintf(`%s

Serves agent conversations as threads of typed items. Each user turn streams
back over SSE as item events; guarded tool calls pause the run for a human
decision and resume from a saved snapshot.

%s
  timestep-server                         # Serve with defaults
  timestep-server --port 9090             # Override the listen port
  timestep-server --config ./server.yaml  # Explicit config file
  timestep-server version                 # Print the version`,
			bold("Timestep Server "+Version),
			bold("EXAMPLES:")),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	rootCmd.Flags().String("host", "", "Listen host")
	rootCmd.Flags().IntP("port", "p", 0, "Listen port")
	rootCmd.Flags().BoolP("debug", "d", false, "Debug mode")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newConfigCommand(&configPath))

	return rootCmd
}

// loadConfig layers flag overrides on top of file and environment values.
func loadConfig(cmd *cobra.Command, configPath string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("debug") {
		cfg.Server.Debug, _ = cmd.Flags().GetBool("debug")
	}
	if cfg.Runtime.APIKey == "" {
		cfg.Runtime.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, cfg.Validate()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("timestep-server %s\n", Version)
		},
	}
}

func newConfigCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration inspection",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			fmt.Printf("server:     %s (cors=%v debug=%v)\n", cfg.Server.Addr(), cfg.Server.EnableCORS, cfg.Server.Debug)
			fmt.Printf("storage:    %s", cfg.Storage.Backend)
			if cfg.Storage.Backend == config.BackendFile {
				fmt.Printf(" (%s)", cfg.Storage.DataDir)
			}
			fmt.Println()
			fmt.Printf("run state:  %s\n", cfg.RunState.Backend)
			fmt.Printf("model:      %s\n", cfg.Runtime.Model)
			fmt.Printf("guarded:    %v\n", cfg.Runtime.GuardedTools)
			fmt.Printf("metrics:    %v\n", cfg.Observability.Metrics.Enabled)
			fmt.Printf("tracing:    %v\n", cfg.Observability.Tracing.Enabled)
			return nil
		},
	})
	return cmd
}

// runServer wires stores, runtime, services, and the HTTP server, then runs
// until SIGINT or SIGTERM.
func runServer(ctx context.Context, cfg config.Config) error {
	logger := logging.NewComponentLogger("Main")
	logger.Info("Starting Timestep server %s...", Version)

	if isTTY() {
		fmt.Printf("%s %s\n", bold("Timestep Server"), Version)
	}

	threads, cleanupThreads, err := buildThreadStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("thread store: %w", err)
	}
	defer cleanupThreads()

	states, err := buildRunStateStore(cfg.RunState)
	if err != nil {
		return fmt.Errorf("run state store: %w", err)
	}

	runner, err := openairt.NewRunner(openairt.Config{
		APIKey:       cfg.Runtime.APIKey,
		BaseURL:      cfg.Runtime.BaseURL,
		Model:        cfg.Runtime.Model,
		Instructions: cfg.Runtime.Instructions,
		GuardedTools: cfg.Runtime.GuardedTools,
	})
	if err != nil {
		return fmt.Errorf("runtime: %w", err)
	}

	metrics, err := observability.NewMetricsCollector(cfg.Observability.Metrics)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if port := cfg.Observability.Metrics.PrometheusPort; cfg.Observability.Metrics.Enabled && port > 0 {
		if err := metrics.StartPrometheusServer(port); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}
	tracer, err := observability.NewTracerProvider(cfg.Observability.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	broadcaster := app.NewEventBroadcaster()
	chat := app.NewChatService(threads, states, runner,
		app.WithBroadcaster(broadcaster),
		app.WithChatMetrics(metrics),
	)
	threadsAPI := app.NewThreadService(threads)

	health := app.NewHealthChecker()
	health.RegisterProbe(app.NewThreadStoreProbe(threads))

	srv := serverhttp.NewServer(serverhttp.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		EnableCORS:   cfg.Server.EnableCORS,
		Debug:        cfg.Server.Debug,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		StreamGuard: serverhttp.StreamGuardConfig{
			MaxDuration:   cfg.Server.StreamMaxDuration,
			MaxBytes:      cfg.Server.StreamMaxBytes,
			MaxConcurrent: cfg.Server.StreamMaxConcurrent,
		},
	}, chat, threadsAPI, broadcaster,
		serverhttp.WithHealthChecker(health),
		serverhttp.WithMetricsCollector(metrics),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening on %s", cfg.Server.Addr())
		if isTTY() {
			fmt.Printf("%s http://%s\n", green("Listening on"), cfg.Server.Addr())
		}
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("Server shutdown: %v", err)
		}
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Tracer shutdown: %v", err)
		}
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics shutdown: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// buildThreadStore constructs the configured backend. Non-memory backends are
// wrapped in an LRU cache to keep hot threads off the slow path.
func buildThreadStore(ctx context.Context, cfg config.StorageConfig) (threadstore.Store, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.BackendMemory:
		return threadstore.NewMemoryStore(), noop, nil
	case config.BackendFile:
		fs, err := threadstore.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, noop, err
		}
		cached, err := threadstore.NewCachedStore(fs, cfg.CacheSize)
		if err != nil {
			return nil, noop, err
		}
		return cached, noop, nil
	case config.BackendPostgres:
		pg, err := threadstore.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		cached, err := threadstore.NewCachedStore(pg, cfg.CacheSize)
		if err != nil {
			pg.Close()
			return nil, noop, err
		}
		return cached, pg.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildRunStateStore(cfg config.RunStateConfig) (runstate.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return runstate.NewMemoryStore(), nil
	case config.BackendFile:
		return runstate.NewFileStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown run_state backend %q", cfg.Backend)
	}
}
