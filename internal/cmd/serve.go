package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/atikulmunna/logsift/internal/aggregator"
	"github.com/atikulmunna/logsift/internal/analyzer"
	"github.com/atikulmunna/logsift/internal/config"
	"github.com/atikulmunna/logsift/internal/hub"
	"github.com/atikulmunna/logsift/internal/server"
	"github.com/atikulmunna/logsift/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP API",
	Long: `Serve the analysis API, the WebSocket analysis feed, Prometheus metrics
and pprof endpoints. Editing the config file while running updates the
log level without a restart.

Examples:
  logsift serve
  logsift serve --port 9090 --profile zscaler`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP listen port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := cfgManager.Get()

	profile, err := analyzer.ProfileByName(cfg.Analysis.Profile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New(cfg.Store.Capacity)
	h := hub.New(nil, analyzer.New(analyzer.WithProfile(profile)), logger)
	agg := aggregator.New(h.Subscribe(), h.Dropped, st.Len)

	srv, err := server.New(server.Config{
		Port:           cfg.Server.Port,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Profile:        profile.Name,
		RateLimit:      cfg.Server.RateLimit,
	}, h, st, agg, logger)
	if err != nil {
		return err
	}

	if cfgManager.Watch(applyReload, func(err error) {
		logger.Warn("config reload rejected", zap.Error(err))
	}) {
		logger.Info("watching config file", zap.String("path", cfgManager.File()))
	}

	logger.Info("logsift serving",
		zap.Int("port", cfg.Server.Port),
		zap.String("profile", profile.Name),
		zap.Int("store_capacity", cfg.Store.Capacity),
	)

	// The server returning (even on a listen error) stops the hub and aggregator.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Start(gctx)
		return nil
	})
	g.Go(func() error {
		agg.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.Start(gctx); err != nil {
			return err
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("logsift stopped")
	return nil
}

// applyReload applies the settings that can change without a restart.
func applyReload(c config.Config) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return
	}
	if level != logLevel.Level() {
		logLevel.SetLevel(level)
		logger.Info("log level changed", zap.Stringer("level", level))
	}
}
