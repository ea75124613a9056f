package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pagebot/internal/bus"
	"pagebot/internal/channel"
	"pagebot/internal/config"
	"pagebot/internal/engine"
	"pagebot/internal/metrics"
	"pagebot/internal/provider"
	"pagebot/internal/relay"
	"pagebot/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// A missing .env is fine; exported variables still apply.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "pagebot",
		Short: "PageBot: Messenger webhook relay for AI-answered pages",
		Long:  "PageBot receives Facebook page webhooks and answers each message through a configured AI backend.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.pagebot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(configCmd())
	root.AddCommand(pagesCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.General.LogFile != "" {
		if f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		} else {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.General.LogFile, "err", err)
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server and relay loop",
		Long:  "Starts the Messenger webhook endpoint and processes incoming messages until interrupted.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	defer messageBus.Close()

	eventBus := bus.NewEventBus(logger)
	eventBus.On("*", func(e bus.Event) {
		logger.Debug("event", "type", e.Type, "source", e.Source)
	})

	profileStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return err
	}
	defer profileStore.Close()

	if cfg.Store.SeedFile != "" {
		n, err := store.ImportYAML(ctx, profileStore, cfg.Store.SeedFile)
		if err != nil {
			return fmt.Errorf("seed import: %w", err)
		}
		logger.Info("seed file imported", "pages", n)
	}

	resolver := store.NewResolver(profileStore,
		time.Duration(cfg.Store.CacheTTLSeconds)*time.Second, logger)

	backend := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.Backend.APIKey,
		APIBase: cfg.Backend.APIBase,
		Model:   cfg.Backend.Model,
		Timeout: time.Duration(cfg.Backend.RequestTimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	replyEngine := engine.New(engine.Config{
		Completer:       backend,
		Backend:         backend,
		Logger:          logger,
		PollInterval:    time.Duration(cfg.Backend.PollIntervalMs) * time.Millisecond,
		MaxPollAttempts: cfg.Backend.MaxPollAttempts,
		NoReplyText:     cfg.General.NoReplyText,
	})

	loop := relay.NewLoop(relay.LoopConfig{
		Bus:           messageBus,
		Events:        eventBus,
		Resolver:      resolver,
		Engine:        replyEngine,
		Logger:        logger,
		Concurrency:   cfg.General.MaxConcurrentEvents,
		FallbackReply: cfg.General.FallbackReply,
	})
	go loop.Run(ctx)

	sink := channel.NewMessengerSink(channel.SinkConfig{
		GraphAPIBase: cfg.Messenger.GraphAPIBase,
		Tokens:       resolver,
		Logger:       logger,
		Events:       eventBus,
		SendTimeout:  time.Duration(cfg.Messenger.SendTimeoutSeconds) * time.Second,
	})
	sink.Attach(messageBus)

	var metricsFn http.HandlerFunc
	if cfg.Metrics.Enabled {
		metricsFn = metrics.Collector.Handler()
	}

	gateway := channel.NewMessengerGateway(channel.GatewayConfig{
		ListenAddr:  cfg.Messenger.ListenAddr,
		WebhookPath: cfg.Messenger.WebhookPath,
		VerifyToken: cfg.Messenger.VerifyToken,
		Logger:      logger,
		Events:      eventBus,
		MetricsPath: cfg.Metrics.Endpoint,
		Metrics:     metricsFn,
	})
	return gateway.Start(ctx, messageBus)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. backend.model)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. backend.model gpt-4o)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
