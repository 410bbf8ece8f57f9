package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fortuna/scorebook/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	serviceName    = "scorebook"
	serviceVersion = "1.0.0"
)

// app carries state shared by subcommands once the root command has loaded
// the configuration.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:     serviceName,
		Short:   "Collect ESPNcricinfo tournament scorecards into CSV files or PostgreSQL",
		Version: serviceVersion,
		Long: `scorebook renders ESPNcricinfo pages in headless Chrome and extracts
batting, bowling and fielding records from match scorecards, plus the
tournament results index and fielding leaderboards.

A typical run: "scorebook results", then "scorebook scorecards --results
match_results.csv". Batches resume where they stopped: matches already in
the output are skipped.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "scorebook.yaml", "Path to YAML config file (missing file uses defaults)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override: debug, info, warn or error")

	cmd.AddCommand(
		newLinksCmd(a),
		newResultsCmd(a),
		newScorecardsCmd(a),
		newLeaderboardsCmd(a),
		newExtractCmd(a),
		newServeCmd(a),
	)

	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
