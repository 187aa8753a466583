package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-wines/config"
	"github.com/aluiziolira/go-scrape-wines/models"
	"github.com/aluiziolira/go-scrape-wines/pipeline"
	"github.com/aluiziolira/go-scrape-wines/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type cliOptions struct {
	startPage    int
	maxPages     int
	delayMin     time.Duration
	delayMax     time.Duration
	timeout      time.Duration
	outputFile   string
	outputFormat string
	headersFile  string
	query        string
	department   string
	dedupeSize   int
	preview      int
	metricsAddr  string
	verbose      bool
}

func main() {
	cmd, err := newRootCmd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, error) {
	defaults, err := envDefaults()
	if err != nil {
		return nil, err
	}
	opts := defaults

	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Collect wine listings from the Tesco search endpoint",
		Long: `scraper pages through the Tesco groceries search endpoint, collects
every product item, normalizes them into wine records and writes the result
to a JSON array (or CSV). Session cookie and CSRF token come from --headers
or SCRAPER_COOKIE / SCRAPER_CSRF_TOKEN.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), &opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.startPage, "start-page", defaults.startPage, "First page to request")
	flags.IntVar(&opts.maxPages, "pages", defaults.maxPages, "Maximum pages to request")
	flags.DurationVar(&opts.delayMin, "delay-min", defaults.delayMin, "Minimum delay between pages")
	flags.DurationVar(&opts.delayMax, "delay-max", defaults.delayMax, "Maximum delay between pages")
	flags.DurationVar(&opts.timeout, "timeout", defaults.timeout, "Per-request timeout")
	flags.StringVar(&opts.outputFile, "output", defaults.outputFile, "Output file path")
	flags.StringVar(&opts.outputFormat, "format", defaults.outputFormat, "Output format: json, csv, or dual")
	flags.StringVar(&opts.headersFile, "headers", defaults.headersFile, "YAML/JSON file with request headers, cookie and csrf_token")
	flags.StringVar(&opts.query, "query", defaults.query, "Search term")
	flags.StringVar(&opts.department, "department", defaults.department, "Department filter")
	flags.IntVar(&opts.dedupeSize, "dedupe-size", defaults.dedupeSize, "Product IDs remembered for dedupe (0 disables)")
	flags.IntVar(&opts.preview, "preview", defaults.preview, "Records printed after formatting")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", defaults.metricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	return cmd, nil
}

// envDefaults seeds flag defaults from SCRAPER_* variables.
func envDefaults() (cliOptions, error) {
	cfg := config.DefaultConfig()
	opts := cliOptions{
		startPage:    cfg.StartPage,
		maxPages:     cfg.MaxPages,
		delayMin:     cfg.DelayMin,
		delayMax:     cfg.DelayMax,
		timeout:      cfg.Timeout,
		outputFile:   cfg.OutputFile,
		outputFormat: cfg.OutputFormat,
		query:        cfg.Search.Query,
		department:   cfg.Search.Department,
		dedupeSize:   cfg.DedupeMaxSize,
		preview:      cfg.PreviewCount,
		metricsAddr:  cfg.MetricsAddr,
	}

	ints := map[string]*int{
		"SCRAPER_START_PAGE":  &opts.startPage,
		"SCRAPER_PAGES":       &opts.maxPages,
		"SCRAPER_DEDUPE_SIZE": &opts.dedupeSize,
	}
	for key, target := range ints {
		value, ok, err := config.EnvInt(key)
		if err != nil {
			return opts, fmt.Errorf("invalid %s: %w", key, err)
		}
		if ok {
			*target = value
		}
	}

	durations := map[string]*time.Duration{
		"SCRAPER_DELAY_MIN": &opts.delayMin,
		"SCRAPER_DELAY_MAX": &opts.delayMax,
		"SCRAPER_TIMEOUT":   &opts.timeout,
	}
	for key, target := range durations {
		value, ok, err := config.EnvDuration(key)
		if err != nil {
			return opts, fmt.Errorf("invalid %s: %w", key, err)
		}
		if ok {
			*target = value
		}
	}

	strs := map[string]*string{
		"SCRAPER_OUTPUT":       &opts.outputFile,
		"SCRAPER_FORMAT":       &opts.outputFormat,
		"SCRAPER_HEADERS_FILE": &opts.headersFile,
		"SCRAPER_METRICS_ADDR": &opts.metricsAddr,
	}
	for key, target := range strs {
		if value, ok := config.EnvString(key); ok {
			*target = value
		}
	}
	return opts, nil
}

func run(ctx context.Context, opts *cliOptions) error {
	cfg, err := buildConfig(opts)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())
	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		slog.Warn("session headers not set; expect 403 responses", slog.Any("missing", missing))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		return err
	}
	s, err := scraper.NewScraper(cfg, fetcher, scraper.WithMetrics(metrics))
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return err
	}
	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		return err
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting scrape",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("query", cfg.Search.Query),
		slog.Int("pages", cfg.MaxPages),
	)

	result := s.Run(ctx)
	records := p.Format(result.Items)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	finish(os.Stdout, cfg, result, records, p.GetMetrics())
	return nil
}

// finish prints the preview, writes the records and prints the summary.
// A failed write is logged and reported as false; it never aborts the run.
func finish(out io.Writer, cfg *config.Config, result *models.CrawlResult, records []*models.WineRecord, stats map[string]interface{}) bool {
	printPreview(out, records, cfg.PreviewCount)

	saved := true
	if err := writeOutput(cfg, records); err != nil {
		saved = false
		slog.Error("error saving formatted list", slog.String("path", cfg.OutputFile), slog.Any("error", err))
	} else {
		slog.Info("saved formatted list", slog.String("path", cfg.OutputFile), slog.Int("records", len(records)))
	}

	printSummary(out, result, len(records), cfg.OutputFile, stats)
	return saved
}

func buildConfig(opts *cliOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.StartPage = opts.startPage
	cfg.MaxPages = opts.maxPages
	cfg.DelayMin = opts.delayMin
	cfg.DelayMax = opts.delayMax
	cfg.Timeout = opts.timeout
	cfg.OutputFile = opts.outputFile
	cfg.OutputFormat = strings.ToLower(opts.outputFormat)
	cfg.Search.Query = opts.query
	cfg.Search.Department = opts.department
	cfg.DedupeMaxSize = opts.dedupeSize
	cfg.PreviewCount = opts.preview
	cfg.MetricsAddr = opts.metricsAddr
	cfg.Verbose = opts.verbose

	headers, err := config.LoadHeaders(opts.headersFile)
	if err != nil {
		return nil, err
	}
	cfg.Headers = headers

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		base := strings.TrimSuffix(filename, filepath.Ext(filename))
		return pipeline.NewDualWriter(base+".csv", base+".json")
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func writeOutput(cfg *config.Config, records []*models.WineRecord) error {
	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	return pipeline.Save(writer, records)
}

func printPreview(out io.Writer, records []*models.WineRecord, n int) {
	if n <= 0 || len(records) == 0 {
		return
	}
	if n > len(records) {
		n = len(records)
	}
	encoded, err := json.MarshalIndent(records[:n], "", "  ")
	if err != nil {
		slog.Error("preview encoding failed", slog.Any("error", err))
		return
	}
	fmt.Fprintf(out, "\n--- Formatted records (first %d) ---\n%s\n", n, encoded)
}

func printSummary(out io.Writer, result *models.CrawlResult, formatted int, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, "Scrape complete")
	fmt.Fprintf(out, "  Run ID:        %s\n", result.RunID)
	fmt.Fprintf(out, "  Pages:         %d through %d\n", result.StartPage, result.LastPage)
	fmt.Fprintf(out, "  Total pages:   %d\n", result.TotalPages)
	fmt.Fprintf(out, "  Stop reason:   %s\n", result.StopReason)
	if result.Err != nil {
		fmt.Fprintf(out, "  Last error:    %v\n", result.Err)
	}
	fmt.Fprintf(out, "  Raw items:     %d\n", len(result.Items))
	fmt.Fprintf(out, "  Records:       %d\n", formatted)
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(out, "  Skipped:       %v\n", valErrors)
	}
	fmt.Fprintf(out, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Fprintf(out, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(out, separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
