package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atikulmunna/logsift/internal/analyzer"
	"github.com/atikulmunna/logsift/internal/hub"
	"github.com/atikulmunna/logsift/internal/model"
	"github.com/atikulmunna/logsift/internal/output"
	"github.com/atikulmunna/logsift/internal/source"
)

// maxInFlight bounds uploads between the reader and the renderer so the
// hub's subscriber buffer never overflows.
const maxInFlight = 64

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Analyze log files for anomalies",
	Long: `Analyze one or more log files (or glob patterns) and print the anomalies
found in each. Use "-" to read from stdin.

Examples:
  logsift analyze proxy.log
  logsift analyze "/var/log/proxy/**/*.log" --severity high
  logsift analyze nss-feed.log --profile zscaler --output json
  cat proxy.log | logsift analyze -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := cfgManager.Get()

	profile, err := analyzer.ProfileByName(cfg.Analysis.Profile)
	if err != nil {
		return err
	}
	filter, err := output.ParseFilter(severityFilter)
	if err != nil {
		return err
	}

	paths, err := source.Expand(args)
	if err != nil {
		return err
	}

	// --- Choose renderer ---
	var renderer output.Renderer
	switch strings.ToLower(outputFmt) {
	case "json":
		renderer = output.NewJSONRenderer(cmd.OutOrStdout(), filter)
	case "text", "":
		renderer = output.NewTextRenderer(cmd.OutOrStdout(), filter)
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", outputFmt)
	}

	// --- Set up context with graceful shutdown ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Start pipeline ---
	input := make(chan model.Upload)
	h := hub.New(input, analyzer.New(analyzer.WithProfile(profile)), logger)
	results := h.Subscribe()
	go h.Start(ctx)

	inflight := make(chan struct{}, maxInFlight)
	maxBytes := cfg.Server.MaxUploadBytes()
	go func() {
		defer close(input)
		for _, p := range paths {
			select {
			case inflight <- struct{}{}:
			case <-ctx.Done():
				return
			}

			up, err := source.Load(p, maxBytes)
			if err != nil {
				logger.Warn("skipping input", zap.String("path", p), zap.Error(err))
				h.Publish(model.Analysis{ID: uuid.NewString(), Source: p, Profile: profile.Name, Error: err.Error()})
				continue
			}
			select {
			case input <- up:
			case <-ctx.Done():
				return
			}
		}
	}()

	// --- Render output ---
	var total, failed int
	for an := range results {
		<-inflight
		total++
		if an.Failed() {
			failed++
		}
		if err := renderer.Render(an); err != nil {
			logger.Error("render error", zap.Error(err))
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, total)
	}
	return nil
}
