package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/auction-relay/internal/logging"
	"github.com/Tyrowin/auction-relay/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		origins    string
		cfg        = server.NewConfig()
	)

	cmd := &cobra.Command{
		Use:   "auction-relay",
		Short: "WebSocket chat relay for auction rooms",
		Long: `auction-relay accepts WebSocket connections, replays the last messages of
an auction room when a participant joins, and relays new chat messages to
connected participants.

Settings are read from defaults, then the optional YAML file, then the
environment (PORT, ALLOWED_ORIGINS, ...), then flags.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := resolveConfig(cmd, configPath, origins, cfg)
			if err != nil {
				return err
			}

			logger, err := logging.New(resolved.LogLevel, resolved.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, resolved, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	flags.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Listening port")
	flags.StringVar(&origins, "allowed-origins", "", "Comma separated WebSocket origins, * allows all")
	flags.Int64Var(&cfg.MaxMessageSize, "max-message-size", cfg.MaxMessageSize, "Maximum inbound frame size in bytes")
	flags.IntVar(&cfg.HistoryLimit, "history-limit", cfg.HistoryLimit, "Messages kept per auction room")
	flags.IntVar(&cfg.SendBuffer, "send-buffer", cfg.SendBuffer, "Outbound frames queued per connection")
	flags.StringVar(&cfg.BroadcastScope, "broadcast-scope", cfg.BroadcastScope, "Message delivery scope: all or room")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or console")

	return cmd
}

// resolveConfig layers defaults, the config file, the environment and the
// flags the user set explicitly, in that order.
func resolveConfig(cmd *cobra.Command, configPath, origins string, flagged *server.Config) (*server.Config, error) {
	cfg := server.NewConfig()
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = flagged.Port
	}
	if flags.Changed("allowed-origins") {
		cfg.AllowedOrigins = server.ParseOrigins(origins)
	}
	if flags.Changed("max-message-size") {
		cfg.MaxMessageSize = flagged.MaxMessageSize
	}
	if flags.Changed("history-limit") {
		cfg.HistoryLimit = flagged.HistoryLimit
	}
	if flags.Changed("send-buffer") {
		cfg.SendBuffer = flagged.SendBuffer
	}
	if flags.Changed("broadcast-scope") {
		cfg.BroadcastScope = flagged.BroadcastScope
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagged.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagged.LogFormat
	}

	cfg.Sanitize()
	return cfg, nil
}

// run serves until ctx is cancelled or the listener fails, then shuts the
// relay down.
func run(ctx context.Context, cfg *server.Config, logger *zap.Logger) error {
	relay := server.New(cfg, logger)
	httpServer := relay.HTTPServer()

	logger.Info("Starting auction chat relay",
		zap.Int("port", cfg.Port),
		zap.Int("history_limit", cfg.HistoryLimit),
		zap.String("broadcast_scope", cfg.BroadcastScope))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := relay.StartServer(httpServer); err != nil {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return relay.Shutdown(shutdownCtx, httpServer)
	})

	return g.Wait()
}
