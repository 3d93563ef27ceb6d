package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"watchdxg/internal/browser"
	"watchdxg/internal/config"
	"watchdxg/internal/fetcher"
	"watchdxg/internal/logger"
	"watchdxg/internal/metrics"
	"watchdxg/internal/pipeline"
	"watchdxg/internal/report"
	"watchdxg/internal/scheduler"
	"watchdxg/internal/store"
	"watchdxg/internal/transform"
)

var version = "dev"

var (
	configPath   string
	setup        bool
	headed       bool
	noUpdate     bool
	debug        bool
	jsonLogs     bool
	outputFormat string
	outputFile   string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "watchdxg",
		Short:   "Harvest the followers of an x.com account into PostgreSQL",
		Version: version,
		Long: `watchdxg logs into x.com with a real browser, lists the followers of an
account, scrapes each follower's profile and first timeline page, and
stores users and posts in PostgreSQL. Posts already stored end a user's
insert run, so repeated runs only add what is new.`,
		Example: `  # Create the schema, then harvest
  watchdxg --setup -c config.yml

  # Only visit followers newer than the last stored one
  watchdxg --noupdate

  # Watch the browser and write a markdown report
  watchdxg --head -o run.md`,
		Args:         cobra.NoArgs,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "Configuration file")
	rootCmd.Flags().BoolVar(&setup, "setup", false, "Apply database migrations before harvesting")
	rootCmd.Flags().BoolVar(&headed, "head", false, "Show the browser window")
	rootCmd.Flags().BoolVar(&noUpdate, "noupdate", false, "Skip followers already in the database")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Debug logging")
	rootCmd.Flags().BoolVar(&jsonLogs, "json", false, "JSON log lines")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Run report format (text, markdown, json, csv, html)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Run report file (format inferred from extension if -f not specified)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if outputFile != "" && outputFormat == "" {
		outputFormat = report.InferFormat(outputFile)
		if outputFormat == "" {
			outputFormat = report.FormatText
		}
	}
	if outputFormat != "" && !report.ValidFormat(outputFormat) {
		return fmt.Errorf("invalid output format: %s", outputFormat)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, cmd)

	log, err := logger.New(logger.Config{Debug: cfg.Logs.Debug, JSON: cfg.Logs.JSON})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg := store.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		DBName:       cfg.Database.Name,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}
	if setup {
		if err := store.Setup(dbCfg, log); err != nil {
			log.Error("Database setup failed", logger.Error(err))
			return err
		}
	}

	db, err := store.Open(dbCfg)
	if err != nil {
		log.Error("Database unavailable", logger.Error(err))
		return err
	}
	defer db.Close()
	st := store.New(db)

	accountRef, err := st.RegisterAccount(ctx, cfg.Account.Handle)
	if err != nil {
		return fmt.Errorf("failed to register account: %w", err)
	}

	b, err := browser.New(browser.Config{
		BaseURL:    cfg.Browser.BaseURL,
		Headless:   !cfg.Browser.Headed,
		ProxyURL:   cfg.Browser.ProxyURL,
		ProfileDir: cfg.Browser.ProfileDir,
		Credentials: browser.Credentials{
			Username: cfg.Account.Username,
			Password: cfg.Account.Password,
			Contact:  cfg.Account.Contact,
		},
		NavTimeout:   cfg.Browser.NavTimeout,
		LoginTimeout: cfg.Browser.LoginTimeout,
		ListTimeout:  cfg.Browser.ListTimeout,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("Failed to close browser", logger.Error(err))
		}
	}()

	p, m, err := buildPipeline(cfg, b, st, accountRef, log)
	if err != nil {
		return err
	}

	sum, err := p.Run(ctx)
	if err != nil {
		log.Error("Harvest aborted", logger.Error(err))
		return err
	}

	log.Info("Harvest finished",
		logger.String("account", sum.Account),
		logger.Int("discovered", sum.Discovered),
		logger.Int("queued", sum.Queued),
		logger.Int("loaded", sum.Loaded),
		logger.Int("posts_inserted", sum.PostsInserted),
		logger.Int("failures", len(sum.Failures)),
		logger.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)),
	)

	if cfg.Metrics.TextfilePath != "" {
		if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			log.Warn("Failed to write metrics", logger.Error(err))
		}
	}

	if outputFormat != "" {
		if err := report.Write(report.New(sum), outputFormat, outputFile, os.Stdout); err != nil {
			return err
		}
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Report written to: %s\n", outputFile)
		}
	}
	return nil
}

// applyFlags lets explicit command-line flags win over the configuration.
func applyFlags(cfg *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("head") {
		cfg.Browser.Headed = headed
	}
	if flags.Changed("noupdate") {
		cfg.Runtime.SkipKnown = noUpdate
	}
	if flags.Changed("debug") {
		cfg.Logs.Debug = debug
	}
	if flags.Changed("json") {
		cfg.Logs.JSON = jsonLogs
	}
}

func buildPipeline(
	cfg *config.Config,
	b *browser.Browser,
	st *store.Store,
	accountRef int64,
	log logger.Logger,
) (*pipeline.Pipeline, *metrics.Metrics, error) {
	policy, err := pipeline.ParseFilterPolicy(cfg.Runtime.FilterPolicy)
	if err != nil {
		return nil, nil, err
	}
	mode, err := scheduler.ParseFailureMode(cfg.Runtime.FailureMode)
	if err != nil {
		return nil, nil, err
	}
	locales, err := transform.ParseLocales(cfg.Transform.Locales)
	if err != nil {
		return nil, nil, err
	}
	if len(locales) == 0 {
		locales = nil
	}

	m := metrics.New()

	f := fetcher.NewFetcher(b, fetcher.Config{
		BaseURL:       cfg.Browser.BaseURL,
		ReadySelector: transform.TimelineReady,
		NavTimeout:    cfg.Browser.NavTimeout,
		ReadyTimeout:  cfg.Browser.ReadyTimeout,
		SettleMin:     cfg.Browser.SettleMin,
		SettleMax:     cfg.Browser.SettleMax,
	}, log)

	gate := scheduler.NewGate(cfg.Runtime.MaxParallel)
	extract := gate.Limit(scheduler.Instrument(f.Fetch, m))
	log.Debug("Extraction gate ready", logger.Int("max_parallel", gate.Size()))

	sched := scheduler.New(scheduler.Retry{
		MaxAttempts: cfg.Runtime.MaxRetries,
		Backoff: scheduler.Backoff{
			Base:      cfg.Runtime.BackoffBase,
			Increment: cfg.Runtime.BackoffIncrement,
		},
	}, mode, log, m)

	p := pipeline.New(pipeline.Deps{
		Session:     b,
		Gateway:     st,
		Scheduler:   sched,
		Extract:     extract,
		Transformer: transform.New(log, locales),
		Log:         log,
		Metrics:     m,
	}, pipeline.Options{
		Account:    cfg.Account.Handle,
		AccountRef: accountRef,
		SkipKnown:  cfg.Runtime.SkipKnown,
		Policy:     policy,
	})
	return p, m, nil
}
