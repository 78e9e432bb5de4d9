package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/csvbulk/internal/pipeline"
	"github.com/ajitpratap0/csvbulk/pkg/config"
	"github.com/ajitpratap0/csvbulk/pkg/logger"
	"github.com/ajitpratap0/csvbulk/pkg/metrics"
	"github.com/ajitpratap0/csvbulk/pkg/tracing"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp()
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what the persistent pre-run sets up for a command.
type app struct {
	v         *viper.Viper
	cfg       *config.Config
	collector *metrics.Collector
	server    *http.Server
	tracer    *tracing.Provider
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix("CSVBULK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{v: v}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "csvbulk",
		Short: "csvbulk - lenient delimited text reader and bulk loader",
		Long: `csvbulk reads delimited text files the way spreadsheet exports really look:
quoted cells spanning lines, stray quotes, ragged rows and blank lines.
It can print headers, convert between dialects, export JSON lines, and bulk
load rows into PostgreSQL or MySQL.

Locations are local paths, "-" for stdin/stdout, s3://bucket/key or
gs://bucket/object. Compression is detected from the file extension.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML configuration file")
	pf.String("delimiter", "", "Field delimiter: a single character or tab, comma, semicolon, pipe, space")
	pf.String("quote", "", "Quote character: a single character, double or single")
	pf.String("empty-lines", "", "Empty line handling: ignore, no_cells, empty_cell or end_of_file")
	pf.String("encoding", "", "Input text encoding, e.g. utf-8, windows-1252, utf-16le")
	pf.String("compression", "", "Input compression: auto, none, gzip, zstd, snappy, s2, lz4")
	pf.String("empty-value", "", "Value that empty fields take instead of NULL")
	pf.StringArray("constant", nil, "Constant column as name=value (repeatable)")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	pf.Bool("trace", false, "Write OpenTelemetry spans to stderr")
	pf.String("s3-region", "", "AWS region for s3:// locations")
	pf.String("gcs-credentials", "", "Service account file for gs:// locations")

	root.AddCommand(
		newVersionCmd(),
		newHeadersCmd(a),
		newCatCmd(a),
		newConvertCmd(a),
		newImportCmd(a),
	)
	return root
}

// setup loads the configuration, applies flag and environment overrides,
// and starts logging, metrics and tracing.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.LoadFile(a.v.GetString("config"))
	if err != nil {
		return err
	}
	if err := a.applyOverrides(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.startMetrics(cfg.Metrics)
	}

	tp, err := tracing.Init(cmd.Context(), cfg.Tracing, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tp
	return nil
}

// applyOverrides copies every flag or CSVBULK_* variable that was set onto cfg.
func (a *app) applyOverrides(cfg *config.Config) error {
	setString := func(key string, dst *string) {
		if a.v.IsSet(key) {
			*dst = a.v.GetString(key)
		}
	}

	setString("delimiter", &cfg.Dialect.Delimiter)
	setString("quote", &cfg.Dialect.Quote)
	setString("empty-lines", &cfg.Dialect.EmptyLines)
	setString("encoding", &cfg.Input.Encoding)
	setString("compression", &cfg.Input.Compression)
	setString("log-level", &cfg.Logging.Level)

	if a.v.IsSet("empty-value") {
		v := a.v.GetString("empty-value")
		cfg.Bulk.EmptyValue = &v
	}
	if a.v.IsSet("constant") {
		for _, kv := range a.v.GetStringSlice("constant") {
			name, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("constant %q must be name=value", kv)
			}
			cfg.Bulk.ConstantColumns = append(cfg.Bulk.ConstantColumns,
				config.ConstantColumn{Name: name, Value: value})
		}
	}
	if addr := a.v.GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = addr
	}
	if a.v.GetBool("trace") {
		cfg.Tracing.Enabled = true
	}
	return nil
}

func (a *app) startMetrics(cfg config.MetricsConfig) {
	reg := metrics.NewRegistry()
	a.collector = metrics.NewCollector(reg, cfg.Namespace)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	a.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("address", cfg.Address))
}

// close stops what setup started. It is safe to call when setup never ran.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			logger.Warn("failed to stop metrics server", zap.Error(err))
		}
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		logger.Warn("failed to flush traces", zap.Error(err))
	}
	_ = logger.Sync()
}

// runner builds a pipeline runner wired to the command's streams.
func (a *app) runner(cmd *cobra.Command) (*pipeline.Runner, error) {
	opts := []pipeline.Option{
		pipeline.WithLogger(logger.Get()),
		pipeline.WithStreams(cmd.InOrStdin(), cmd.OutOrStdout()),
		pipeline.WithCloudOptions(a.v.GetString("s3-region"), a.v.GetString("gcs-credentials")),
	}
	if a.collector != nil {
		opts = append(opts, pipeline.WithMetrics(a.collector))
	}
	return pipeline.NewRunner(a.cfg, opts...)
}

func printStats(cmd *cobra.Command, stats *pipeline.Stats) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d rows from %d lines in %s (%.0f rows/s)\n",
		stats.Operation, stats.Rows, stats.Lines,
		stats.Duration.Round(time.Millisecond), stats.RowsPerSecond())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// Skip configuration loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "csvbulk v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
