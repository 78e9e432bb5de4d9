package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/csvbulk/pkg/bulkreader"
	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
	"github.com/ajitpratap0/csvbulk/pkg/csvfile"
	"github.com/ajitpratap0/csvbulk/pkg/logger"
	"github.com/ajitpratap0/csvbulk/pkg/tracing"
)

// MySQLDB is the part of *sql.DB an import uses.
type MySQLDB interface {
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// MySQLOpener opens a database handle for dsn.
type MySQLOpener func(dsn string) (MySQLDB, error)

var (
	registerReaderHandler   = mysql.RegisterReaderHandler
	deregisterReaderHandler = mysql.DeregisterReaderHandler
)

// loadDataDialect is the format LOAD DATA is told to expect. Every field is
// quoted so that no value can be mistaken for the NULL keyword.
var loadDataDialect = csvfile.Dialect{Delimiter: ',', Quote: '"', EmptyLines: csvfile.EmptyCell}

func openMySQL(dsn string) (MySQLDB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, csverrors.Wrap(err, csverrors.ErrorTypeConfig, "invalid mysql dsn")
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// ImportMySQL streams the data rows of location into the configured table
// with LOAD DATA LOCAL INFILE. Rows are re-encoded on a helper goroutine
// and read by the driver through a registered reader handler, so the server
// must allow local_infile. With no empty value configured, empty fields load
// as NULL. Truncate runs TRUNCATE TABLE first, which MySQL commits on its own.
func (r *Runner) ImportMySQL(ctx context.Context, location string) (_ *Stats, err error) {
	if err := r.cfg.ValidateMySQL(); err != nil {
		return nil, err
	}
	my := r.cfg.MySQL
	table := quoteTable(my.Table)

	ctx = logger.ContextWith(ctx, logger.TableKey, my.Table)
	if my.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, my.Timeout)
		defer cancel()
	}

	j := r.startJob(ctx, "import_mysql", location)
	j.span.SetAttributes(tracing.Attr("db.system", "mysql"), tracing.Attr("db.sql.table", my.Table))
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

	db, err := r.mysqlOpener(my.DSN)
	if err != nil {
		return j.stats, csverrors.Wrap(err, csverrors.ErrorTypeDatabase, "failed to open mysql")
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			j.log.Warn("failed to close mysql handle", zap.Error(cerr))
		}
	}()

	// sql.OpenDB does not dial; ping so that an unreachable server is retried
	// before any rows are read.
	if _, err := withRetry(j.ctx, my.Retry, j.log, "mysql ping", func() (struct{}, error) {
		return struct{}{}, db.PingContext(j.ctx)
	}); err != nil {
		return j.stats, csverrors.Wrap(err, csverrors.ErrorTypeDatabase, "failed to reach mysql")
	}

	if my.Truncate {
		if _, err := db.ExecContext(j.ctx, "TRUNCATE TABLE "+table); err != nil {
			return j.stats, csverrors.Wrap(err, csverrors.ErrorTypeDatabase, "failed to truncate table").
				WithDetail("table", my.Table)
		}
		j.log.Info("table truncated")
	}

	handler := "csvbulk-" + j.stats.JobID
	pr, pw := io.Pipe()
	registerReaderHandler(handler, func() io.Reader { return pr })
	defer deregisterReaderHandler(handler)

	stmt := loadDataStatement(handler, table, columns, r.cfg.Bulk.EmptyValue == nil)
	j.log.Debug("load data statement", zap.String("sql", stmt))

	var (
		g       errgroup.Group
		result  sql.Result
		feedErr error
		loadErr error
	)
	g.Go(func() error {
		feedErr = writeLoadData(j, cursor, pw)
		pw.CloseWithError(feedErr)
		return feedErr
	})
	g.Go(func() error {
		result, loadErr = db.ExecContext(j.ctx, stmt)
		// Unblocks the feeder when the server stops reading early.
		pr.CloseWithError(io.ErrClosedPipe)
		return loadErr
	})
	_ = g.Wait()

	if feedErr != nil && !errors.Is(feedErr, io.ErrClosedPipe) {
		return j.stats, feedErr
	}
	if loadErr != nil {
		return j.stats, csverrors.Wrap(loadErr, csverrors.ErrorTypeDatabase, "load data failed").
			WithDetail("table", my.Table).
			WithDetail(csverrors.DetailRow, cursor.RowNumber())
	}
	if feedErr != nil {
		return j.stats, feedErr
	}

	loaded, err := result.RowsAffected()
	if err != nil {
		return j.stats, csverrors.Wrap(err, csverrors.ErrorTypeDatabase, "failed to read affected rows")
	}
	if loaded != j.stats.Rows {
		j.log.Warn("server loaded a different number of rows than were sent",
			zap.Int64("sent", j.stats.Rows),
			zap.Int64("loaded", loaded))
	}
	j.stats.Lines = reader.Line()
	if r.metrics != nil {
		r.metrics.ObserveLoad("mysql", loaded)
	}
	return j.stats, nil
}

// writeLoadData writes every data row of cursor to w in loadDataDialect.
// nil values are written as empty fields.
func writeLoadData(j *job, cursor *bulkreader.Reader, w io.Writer) error {
	cw, err := csvfile.NewWriter(w, loadDataDialect)
	if err != nil {
		return err
	}
	cw.AlwaysQuote = true

	fields := make([]string, cursor.FieldCount())
	for {
		ok, err := cursor.Read()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		for i := range fields {
			v, err := cursor.Value(i)
			if err != nil {
				return err
			}
			s, _ := v.(string)
			fields[i] = s
		}
		if err := cw.WriteRow(fields); err != nil {
			return err
		}
		if err := j.row(); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// loadDataStatement builds the LOAD DATA statement for handler. With
// emptyIsNull every column is read into a variable and empty strings are
// stored as NULL.
func loadDataStatement(handler, table string, columns []string, emptyIsNull bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE %s", handler, table)
	b.WriteString(" CHARACTER SET utf8mb4")
	b.WriteString(` FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '"' ESCAPED BY ''`)
	b.WriteString(` LINES TERMINATED BY '\n'`)

	b.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		if emptyIsNull {
			fmt.Fprintf(&b, "@c%d", i)
		} else {
			b.WriteString(quoteIdent(col))
		}
	}
	b.WriteString(")")

	if emptyIsNull {
		b.WriteString(" SET ")
		for i, col := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s = NULLIF(@c%d, '')", quoteIdent(col), i)
		}
	}
	return b.String()
}

// quoteTable quotes a table name, optionally qualified as schema.table.
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}
