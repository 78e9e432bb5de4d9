package pipeline

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ajitpratap0/csvbulk/pkg/bulkreader"
	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
	"github.com/ajitpratap0/csvbulk/pkg/logger"
	"github.com/ajitpratap0/csvbulk/pkg/tracing"
)

// PostgresConn is the part of *pgx.Conn an import uses.
type PostgresConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// PostgresConnector opens a connection for dsn.
type PostgresConnector func(ctx context.Context, dsn string) (PostgresConn, error)

func connectPostgres(ctx context.Context, dsn string) (PostgresConn, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, csverrors.Wrap(err, csverrors.ErrorTypeConfig, "invalid postgres dsn")
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// copySource feeds cursor rows to COPY while counting them against the job.
type copySource struct {
	cursor *bulkreader.Reader
	job    *job
	err    error
}

func (s *copySource) Next() bool {
	if s.err != nil || !s.cursor.Next() {
		return false
	}
	if err := s.job.row(); err != nil {
		s.err = err
		return false
	}
	return true
}

func (s *copySource) Values() ([]any, error) {
	values, err := s.cursor.Values()
	if err != nil {
		s.err = err
	}
	return values, err
}

func (s *copySource) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.cursor.Err()
}

// ImportPostgres copies the data rows of location into the configured table
// with COPY FROM STDIN, inside one transaction. With Truncate set the table
// is emptied in the same transaction first. Columns are matched by header
// name; constant columns are loaded like any other column.
func (r *Runner) ImportPostgres(ctx context.Context, location string) (_ *Stats, err error) {
	if err := r.cfg.ValidatePostgres(); err != nil {
		return nil, err
	}
	pg := r.cfg.Postgres
	table := pgx.Identifier{pg.Table}
	if pg.Schema != "" {
		table = pgx.Identifier{pg.Schema, pg.Table}
	}

	ctx = logger.ContextWith(ctx, logger.TableKey, table.Sanitize())
	if pg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pg.Timeout)
		defer cancel()
	}

	j := r.startJob(ctx, "import_postgres", location)
	j.span.SetAttributes(tracing.Attr("db.system", "postgresql"), tracing.Attr("db.sql.table", table.Sanitize()))
	defer func() { _, err = r.finishJob(j, err) }()

	cursor, reader, err := r.openCursor(j.ctx, location)
	if err != nil {
		return j.stats, err
	}
	defer func() { err = closeAll(err, cursor) }()

	if cursor.ParsedCount() == 0 {
		return j.stats, csverrors.New(csverrors.ErrorTypeValidation, "input has no header row").
			WithDetail("location", location)
	}
	columns := cursor.Headers()
	j.stats.Columns = columns

	conn, err := withRetry(j.ctx, pg.Retry, j.log, "postgres connect", func() (PostgresConn, error) {
		return r.pgConnect(j.ctx, pg.DSN)
	})
	if csverrors.IsType(err, csverrors.ErrorTypeConfig) {
		return j.stats, err
	}
	if err != nil {
		return j.stats, csverrors.Wrap(err, csverrors.ErrorTypeDatabase, "failed to connect to postgres")
	}
	cleanup := context.WithoutCancel(j.ctx)
	defer func() {
		if cerr := conn.Close(cleanup); cerr != nil {
			j.log.Warn("failed to close postgres connection", zap.Error(cerr))
		}
	}()

	tx, err := conn.Begin(j.ctx)
	if err != nil {
		return j.stats, csverrors.Wrap(err, csverrors.ErrorTypeDatabase, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(cleanup) }()

	if pg.Truncate {
		if _, err := tx.Exec(j.ctx, "TRUNCATE TABLE "+table.Sanitize()); err != nil {
			return j.stats, csverrors.Wrap(err, csverrors.ErrorTypeDatabase, "failed to truncate table").
				WithDetail("table", table.Sanitize())
		}
		j.log.Info("table truncated")
	}

	src := &copySource{cursor: cursor, job: j}
	n, err := tx.CopyFrom(j.ctx, table, columns, src)
	if src.err != nil {
		return j.stats, src.err
	}
	if err != nil {
		return j.stats, csverrors.Wrap(err, csverrors.ErrorTypeDatabase, "copy failed").
			WithDetail("table", table.Sanitize()).
			WithDetail(csverrors.DetailRow, cursor.RowNumber())
	}

	if err := tx.Commit(j.ctx); err != nil {
		return j.stats, csverrors.Wrap(err, csverrors.ErrorTypeDatabase, "failed to commit").
			WithDetail("table", table.Sanitize())
	}

	j.stats.Rows = n
	j.stats.Lines = reader.Line()
	if r.metrics != nil {
		r.metrics.ObserveLoad("postgres", n)
	}
	return j.stats, nil
}
