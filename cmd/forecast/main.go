package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"LongTerm/internal/collector"
	"LongTerm/internal/config"
	"LongTerm/internal/forecast"
	"LongTerm/internal/logging"
	"LongTerm/internal/pipeline"
	"LongTerm/internal/render"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath  string
		symbols  string
		output   string
		provider string
		workers  int
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "longterm",
		Short: "Forecast one year of prices for a list of stock symbols",
		Long: `longterm downloads five years of daily prices for every symbol listed in the
symbols file, fits an additive trend and seasonality model per symbol and saves a chart of
the last month of history against the one-year projection.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}

			if cfgPath == "" {
				cfgPath = "configs/config.yaml"
				if v := os.Getenv("CONFIG_PATH"); v != "" {
					cfgPath = v
				}
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("symbols") {
				cfg.SymbolsFile = symbols
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputDir = output
			}
			if cmd.Flags().Changed("provider") {
				cfg.DataSource.Provider = provider
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}

			log, err := logging.New(debug)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "config file path (default configs/config.yaml, or $CONFIG_PATH)")
	cmd.Flags().StringVar(&symbols, "symbols", "", "file with one ticker symbol per line")
	cmd.Flags().StringVar(&output, "output", "", "directory receiving the PNG charts")
	cmd.Flags().StringVar(&provider, "provider", "", "market data provider: yahoo or chart")
	cmd.Flags().IntVar(&workers, "workers", 1, "number of symbols processed concurrently")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	return cmd
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	if cfg.DataSource.Provider == config.ProviderChart {
		return collector.NewChartFetcher(cfg.DataSource.BaseURL, cfg.Proxy, cfg.DataSource.Timeout)
	}
	return collector.NewYahooFetcher()
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	fetcher := newFetcher(cfg)
	log.Info("data source", zap.String("provider", fetcher.Name()), zap.String("suffix", cfg.MarketSuffix))

	col := collector.NewCollector(fetcher, collector.Options{
		Suffix:     cfg.MarketSuffix,
		RateLimit:  cfg.DataSource.RateLimit,
		MaxRetries: cfg.DataSource.MaxRetries,
		RetryWait:  cfg.DataSource.RetryWait,
	}, log)
	fc := forecast.NewForecaster(cfg.Forecast, log)

	now := time.Now()
	clock := func() time.Time { return now }

	rnd := render.NewRenderer(cfg.OutputDir, cfg.Render, log)
	rnd.Now = clock

	p := pipeline.New(col, fc, rnd, cfg.SymbolsFile, log)
	p.HistoryYears = cfg.HistoryYears
	p.Workers = cfg.Workers
	p.Now = clock

	results, err := p.Run(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.OK() {
			log.Info("symbol skipped", zap.String("symbol", r.Symbol), zap.String("stage", string(r.Stage)))
		}
	}
	return nil
}
