package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/atikulmunna/logsift/internal/config"
	"github.com/atikulmunna/logsift/internal/logging"
)

var (
	cfgFile        string
	outputFmt      string
	severityFilter string
	profileName    string

	cfgManager *config.Manager
	logger     *zap.Logger
	logLevel   zap.AtomicLevel
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "logsift",
	Short: "logsift: proxy log anomaly analyzer",
	Long: `logsift reads tab-separated web proxy and firewall logs, flags suspicious
records with rule-based detectors, and singles out users whose request volume
stands out statistically. Run it once over files from the terminal or as an
HTTP service with a live WebSocket feed.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.logsift.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().StringVarP(&severityFilter, "severity", "s", "", "filter anomalies by severity (comma-separated: high,medium,low)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "log profile: generic, zscaler, zscaler-json (default from config)")
}

// initConfig loads the config file, lets flags override it, and builds the logger.
func initConfig(cmd *cobra.Command, args []string) error {
	m, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	v := m.Viper()
	if err := bindFlag(v, cmd, "analysis.profile", "profile"); err != nil {
		return err
	}
	if err := bindFlag(v, cmd, "server.port", "port"); err != nil {
		return err
	}
	if err := m.Reload(); err != nil {
		return err
	}

	cfg := m.Get()
	log, level, err := logging.New(cfg.Logging.Options())
	if err != nil {
		return err
	}

	cfgManager, logger, logLevel = m, log, level
	if f := m.File(); f != "" {
		logger.Debug("using config file", zap.String("path", f))
	}
	return nil
}

// bindFlag ties a viper key to a flag when the running command defines it.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) error {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		return nil
	}
	return v.BindPFlag(key, f)
}
