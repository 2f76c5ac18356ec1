// Package main runs marketbot: a WhatsApp bot that answers marketplace
// commands and announces new and featured advertisements to a group.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"marketbot/api"
	"marketbot/chat"
	"marketbot/command"
	"marketbot/media"
	"marketbot/pkg/market"
	"marketbot/poll"
	"marketbot/server"
	"marketbot/session"
	"marketbot/whatsapp"
)

const (
	version       = "0.1.0"
	sendBurst     = 3
	shutdownGrace = 30 * time.Second
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "marketbot",
		Short:         "WhatsApp bot for the marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Connect to WhatsApp, answer commands and run the pollers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), configPath, false, func(ctx context.Context, a *app) error {
				return a.run(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "check notifier|booster",
		Short:     "Run a single poll cycle and exit",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"notifier", "booster"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, false, func(ctx context.Context, a *app) error {
				e := a.notifier
				if args[0] == "booster" {
					e = a.booster
				}
				return e.RunOnce(ctx)
			})
		},
	})

	var as string
	execCmd := &cobra.Command{
		Use:   "exec <command text>",
		Short: "Handle one chat command locally and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, true, func(ctx context.Context, a *app) error {
				a.dispatcher.Handle(ctx, chat.Inbound{Chat: as, Sender: as, Text: strings.Join(args, " ")})
				return nil
			})
		},
	}
	execCmd.Flags().StringVar(&as, "as", "local", "sender identifier")
	cmd.AddCommand(execCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "marketbot version %s\n", version)
		},
	})

	return cmd
}

// app holds the wired components.
type app struct {
	cfg        *Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	wa         *whatsapp.Client // nil in mock mode
	dispatcher *command.Dispatcher
	notifier   *poll.Engine[*market.Advertisement]
	booster    *poll.Engine[*market.Advertisement]
	closers    []func()
}

func withApp(ctx context.Context, configPath string, mockChat bool, fn func(context.Context, *app) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, mockChat)
	if err != nil {
		slog.Error("Startup failed", "error", err)
		return err
	}
	defer a.close()

	if err := fn(ctx, a); err != nil {
		a.logger.Error("Command failed", "error", err)
		return err
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newApp(ctx context.Context, configPath string, mockChat bool) (*app, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	lookup := os.LookupEnv
	if mockChat {
		lookup = func(key string) (string, bool) {
			if key == "MOCK_CHAT" {
				return "true", true
			}
			return os.LookupEnv(key)
		}
	}
	cfg, err := loadConfig(configPath, lookup)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backend := api.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.requestTimeout()}, logger)

	var storageClient *storage.Client
	if cfg.GoogleCredentialsJSON != "" {
		storageClient, err = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(cfg.GoogleCredentialsJSON)))
		if err != nil {
			logger.Warn("Failed to create storage client, gs:// photos disabled", "error", err)
			storageClient = nil
		} else {
			a.closers = append(a.closers, func() {
				if err := storageClient.Close(); err != nil {
					logger.Warn("Failed to close storage client", "error", err)
				}
			})
		}
	}
	photos := media.NewLoader(nil, storageClient, cfg.APIBaseURL, cfg.MediaRoot, logger)

	var transport chat.Sender
	if cfg.MockChat {
		logger.Info("Mock chat mode enabled, messages are logged instead of sent")
		transport = chat.NewLogSender(logger)
	} else {
		wa, err := whatsapp.NewClient(ctx, cfg.WhatsAppDB, cfg.WhatsAppLogLevel, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("whatsapp: %w", err)
		}
		if err := wa.Connect(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("whatsapp connect: %w", err)
		}
		a.wa = wa
		a.closers = append(a.closers, wa.Disconnect)
		transport = wa
	}
	sender := chat.NewLimited(transport, cfg.SendRatePerSec, sendBurst)

	a.dispatcher = command.New(backend, session.NewMemory(), sender, photos, cfg.CommandPrefix, logger)

	metrics := poll.NewMetrics(a.registry)
	a.notifier = poll.NewNotifier(backend, sender, photos, poll.NewKnownSet(), poll.Options{
		Destination: cfg.NotifyChat,
		Retry:       cfg.retryPolicy(),
		Logger:      logger,
		Metrics:     metrics,
	})
	a.booster = poll.NewBooster(backend, sender, photos, poll.Options{
		Destination: cfg.BoostChat,
		Retry:       cfg.retryPolicy(),
		Logger:      logger,
		Metrics:     metrics,
	})
	return a, nil
}

func (a *app) run(ctx context.Context) error {
	if a.wa != nil {
		a.wa.OnMessage(a.dispatcher.Handle)
	} else {
		a.logger.Info("No chat transport, inbound commands are disabled")
	}

	a.notifier.Start(ctx, a.cfg.pollInterval())
	a.booster.Start(ctx, a.cfg.boostInterval())

	srv := server.New(&server.Config{
		Notifier: a.notifier,
		Booster:  a.booster,
		Gatherer: a.registry,
		Logger:   a.logger,
	})
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(ctx, a.cfg.Port) }()

	a.logger.Info("marketbot running", "version", version, "api", a.cfg.APIBaseURL, "notify_chat", a.cfg.NotifyChat, "boost_chat", a.cfg.BoostChat)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	a.notifier.Stop()
	a.booster.Stop()

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	for _, e := range []*poll.Engine[*market.Advertisement]{a.notifier, a.booster} {
		if err := e.Wait(waitCtx); err != nil {
			a.logger.Warn("Poll cycle still running at shutdown", "engine", e.Name(), "error", err)
		}
	}
	return runErr
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
