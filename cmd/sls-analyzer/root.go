package main

import (
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sls-log-analyzer/analyzer"
)

var (
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string

	// Resolved in PersistentPreRunE.
	cfg    *analyzer.FileConfig
	logger log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sls-analyzer",
	Short: "Ingest and search client event log CSV exports",
	Long: `sls-analyzer ingests CSV exports of client event logs into a local
SQLite store, one session per file, and serves paginated search over them.

Quick Start:
  sls-analyzer ingest exports/*.csv          # ingest files
  sls-analyzer sessions                      # list sessions
  sls-analyzer logs --session 3 --level Error
  sls-analyzer serve --listen :3000          # HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c := analyzer.DefaultConfig()
		if configPath != "" {
			loaded, err := analyzer.LoadConfig(configPath)
			if err != nil {
				return err
			}
			c = loaded
		}
		// Flags override the file only when given explicitly.
		flags := cmd.Flags()
		if flags.Changed("db") {
			c.Database.Path = dbPath
		}
		if flags.Changed("log-level") {
			c.Log.Level = logLevel
		}
		if flags.Changed("log-format") {
			c.Log.Format = logFormat
		}
		l, err := analyzer.NewLogger(os.Stderr, c.Log.Format, c.Log.Level)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "sls_logs.db", "SQLite database path (overrides database.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "logfmt", "Log format: logfmt or json")
}

// app holds the components every subcommand builds from cfg.
type app struct {
	db       *gorm.DB
	registry *prometheus.Registry
	metrics  *analyzer.Metrics
	pipeline *analyzer.Pipeline
	queries  *analyzer.QueryEngine
}

func openApp() (*app, error) {
	pc, err := cfg.PipelineConfig()
	if err != nil {
		return nil, err
	}
	db, err := analyzer.OpenDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	metrics := analyzer.NewMetrics(reg)
	return &app{
		db:       db,
		registry: reg,
		metrics:  metrics,
		pipeline: analyzer.NewPipeline(db, pc, logger, metrics),
		queries:  analyzer.NewQueryEngine(db, cfg.Query.MaxPageSize, logger, metrics),
	}, nil
}

func (a *app) Close() error {
	return errors.Wrap(analyzer.CloseDB(a.db), "close database")
}
