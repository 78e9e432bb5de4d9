// Package pipeline runs csvbulk jobs: it opens a location, tokenizes it with
// csvfile, views it through bulkreader and hands the rows to a sink.
//
// # Overview
//
// A Runner is built once from a config.Config and runs any number of jobs:
//   - Headers: the column names of a file
//   - Convert: rewrite a file in another dialect, compression or encoding
//   - Export: write rows as JSON lines
//   - ImportPostgres: COPY rows into a PostgreSQL table
//   - ImportMySQL: LOAD DATA rows into a MySQL table
//
// # Basic Usage
//
//	runner, err := pipeline.NewRunner(cfg,
//	    pipeline.WithLogger(log),
//	    pipeline.WithMetrics(collector),
//	)
//	stats, err := runner.Convert(ctx, "in.csv.gz", "out.csv")
//
// Every job runs on the calling goroutine, checks ctx between rows, records
// one span, and logs progress every Bulk.BatchSize rows.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/csvbulk/pkg/bulkreader"
	"github.com/ajitpratap0/csvbulk/pkg/config"
	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
	"github.com/ajitpratap0/csvbulk/pkg/csvfile"
	"github.com/ajitpratap0/csvbulk/pkg/logger"
	"github.com/ajitpratap0/csvbulk/pkg/metrics"
	"github.com/ajitpratap0/csvbulk/pkg/stream"
	"github.com/ajitpratap0/csvbulk/pkg/tracing"
)

// Stats summarizes a finished job.
type Stats struct {
	JobID     string        `json:"job_id"`
	Operation string        `json:"operation"`
	Columns   []string      `json:"columns,omitempty"`
	Rows      int64         `json:"rows"`
	Lines     int           `json:"lines"`
	Duration  time.Duration `json:"duration"`
}

// RowsPerSecond returns the job throughput.
func (s *Stats) RowsPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Rows) / s.Duration.Seconds()
}

// Runner executes jobs with one configuration.
type Runner struct {
	cfg         *config.Config
	inDialect   csvfile.Dialect
	outDialect  csvfile.Dialect
	inOpts      stream.Options
	outOpts     stream.Options
	logger      *zap.Logger
	metrics     *metrics.Collector
	pgConnect   PostgresConnector
	mysqlOpener MySQLOpener
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Defaults to logger.Get().
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics attaches a collector to every reader and writer the Runner
// creates.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithStreams replaces the stdin and stdout used for the "-" location.
func WithStreams(stdin io.Reader, stdout io.Writer) Option {
	return func(r *Runner) {
		r.inOpts.Stdin, r.outOpts.Stdin = stdin, stdin
		r.inOpts.Stdout, r.outOpts.Stdout = stdout, stdout
	}
}

// WithObjectStores replaces the object store used for a scheme.
func WithObjectStores(stores map[string]stream.ObjectStore) Option {
	return func(r *Runner) {
		r.inOpts.Stores = stores
		r.outOpts.Stores = stores
	}
}

// WithCloudOptions sets the S3 region and the GCS credentials file.
func WithCloudOptions(s3Region, gcsCredentialsFile string) Option {
	return func(r *Runner) {
		r.inOpts.S3Region, r.outOpts.S3Region = s3Region, s3Region
		r.inOpts.GCSCredentialsFile, r.outOpts.GCSCredentialsFile = gcsCredentialsFile, gcsCredentialsFile
	}
}

// WithPostgresConnector replaces the function that connects to PostgreSQL.
func WithPostgresConnector(c PostgresConnector) Option {
	return func(r *Runner) { r.pgConnect = c }
}

// WithMySQLOpener replaces the function that opens MySQL connections.
func WithMySQLOpener(o MySQLOpener) Option {
	return func(r *Runner) { r.mysqlOpener = o }
}

// NewRunner validates cfg and returns a Runner for it.
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, csverrors.New(csverrors.ErrorTypeValidation, "configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:         cfg,
		logger:      logger.Get(),
		pgConnect:   connectPostgres,
		mysqlOpener: openMySQL,
	}

	var err error
	if r.inDialect, err = cfg.InputDialect(); err != nil {
		return nil, err
	}
	if r.outDialect, err = cfg.OutputDialect(); err != nil {
		return nil, err
	}
	if r.inOpts, err = cfg.InputStreamOptions(); err != nil {
		return nil, err
	}
	if r.outOpts, err = cfg.OutputStreamOptions(); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(r)
	}
	r.inOpts.Logger = r.logger
	r.outOpts.Logger = r.logger
	return r, nil
}

// job carries the per-run state shared by every operation.
type job struct {
	ctx     context.Context
	span    trace.Span
	log     *zap.Logger
	stats   *Stats
	timer   *metrics.Timer
	tracker *metrics.ThroughputTracker
	batch   int
}

func (r *Runner) startJob(ctx context.Context, operation, location string) *job {
	id := uuid.NewString()
	ctx = logger.ContextWith(ctx, logger.JobIDKey, id)
	ctx = logger.ContextWith(ctx, logger.LocationKey, location)

	ctx, span := tracing.Start(ctx, "csvbulk."+operation,
		tracing.Attr("job.id", id),
		tracing.Attr("location", location))

	log := r.logger.With(logger.ContextFields(ctx)...).With(zap.String("operation", operation))
	log.Info("job started")

	batch := r.cfg.Bulk.BatchSize
	if batch <= 0 {
		batch = 10000
	}

	return &job{
		ctx:     ctx,
		span:    span,
		log:     log,
		stats:   &Stats{JobID: id, Operation: operation},
		timer:   metrics.NewTimer(operation),
		tracker: r.metrics.NewThroughputTracker(operation),
		batch:   batch,
	}
}

// row is called after each row. It reports progress and returns the context
// error once the job is cancelled.
func (j *job) row() error {
	j.stats.Rows++
	j.tracker.Increment(1)
	if j.stats.Rows%int64(j.batch) == 0 {
		j.log.Info("progress",
			zap.Int64("rows", j.stats.Rows),
			zap.Float64("rows_per_second", j.tracker.GetAndReset()))
	}
	if err := j.ctx.Err(); err != nil {
		return csverrors.Wrap(err, csverrors.ErrorTypeIO, "job cancelled").
			WithDetail(csverrors.DetailRow, j.stats.Rows)
	}
	return nil
}

func (r *Runner) finishJob(j *job, err error) (*Stats, error) {
	j.stats.Duration = j.timer.Stop()
	j.span.SetAttributes(
		tracing.Attr("rows", j.stats.Rows),
		tracing.Attr("lines", j.stats.Lines))
	tracing.End(j.span, err)
	if r.metrics != nil {
		r.metrics.ObserveOperation(j.stats.Operation, j.stats.Duration, err)
	}

	if err != nil {
		j.log.Error("job failed",
			zap.Int64("rows", j.stats.Rows),
			zap.Duration("duration", j.stats.Duration),
			zap.Error(err))
		return j.stats, err
	}
	j.log.Info("job completed",
		zap.Int64("rows", j.stats.Rows),
		zap.Int("lines", j.stats.Lines),
		zap.Duration("duration", j.stats.Duration),
		zap.Float64("rows_per_second", j.stats.RowsPerSecond()))
	return j.stats, nil
}

func (r *Runner) observer() csvfile.Observer {
	if r.metrics == nil {
		return nil
	}
	return r.metrics
}

// openReader opens location and returns a row reader over it.
func (r *Runner) openReader(ctx context.Context, location string) (*csvfile.Reader, error) {
	rc, err := stream.Open(ctx, location, r.inOpts)
	if err != nil {
		return nil, err
	}
	reader, err := csvfile.NewReader(rc, r.inDialect)
	if err != nil {
		return nil, err
	}
	reader.SetLogger(r.logger)
	reader.SetObserver(r.observer())
	return reader, nil
}

// openCursor opens location as a tabular cursor with the configured empty
// value and constant columns.
func (r *Runner) openCursor(ctx context.Context, location string) (*bulkreader.Reader, *csvfile.Reader, error) {
	reader, err := r.openReader(ctx, location)
	if err != nil {
		return nil, nil, err
	}
	cursor, err := bulkreader.New(reader, bulkreader.Options{
		EmptyValue: r.cfg.Bulk.EmptyValue,
		Logger:     r.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, col := range r.cfg.Bulk.ConstantColumns {
		cursor.AddConstantColumn(col.Name, col.Value)
	}
	return cursor, reader, nil
}

// createWriter creates location and returns a row writer over it.
func (r *Runner) createWriter(ctx context.Context, location string) (*csvfile.Writer, error) {
	wc, err := stream.Create(ctx, location, r.outOpts)
	if err != nil {
		return nil, err
	}
	w, err := csvfile.NewWriter(wc, r.outDialect)
	if err != nil {
		_ = wc.Close()
		return nil, err
	}
	w.UseCRLF = r.cfg.Output.CRLF
	w.AlwaysQuote = r.cfg.Output.AlwaysQuote
	w.SetLogger(r.logger)
	w.SetObserver(r.observer())
	return w, nil
}

// closeAll closes every closer and returns err, or the first close error when
// err is nil.
func closeAll(err error, closers ...io.Closer) error {
	for _, c := range closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
