package pipeline

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/csvbulk/pkg/config"
	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
	"github.com/ajitpratap0/csvbulk/pkg/testutil"
)

var readerHandlerPattern = regexp.MustCompile(`'Reader::([^']+)'`)

// fakeMySQL reads the registered reader handler the way the driver does.
type fakeMySQL struct {
	mu       sync.Mutex
	handlers map[string]func() io.Reader
	execs    []string
	loaded   string
	execErr  error
	pingErrs []error
	pings    int
	closed   bool
}

func newFakeMySQL(t *testing.T) *fakeMySQL {
	f := &fakeMySQL{handlers: map[string]func() io.Reader{}}

	oldRegister, oldDeregister := registerReaderHandler, deregisterReaderHandler
	registerReaderHandler = func(name string, handler func() io.Reader) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[name] = handler
	}
	deregisterReaderHandler = func(name string) {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, name)
	}
	t.Cleanup(func() {
		registerReaderHandler, deregisterReaderHandler = oldRegister, oldDeregister
	})
	return f
}

func (f *fakeMySQL) open(string) (MySQLDB, error) {
	return f, nil
}

func (f *fakeMySQL) PingContext(context.Context) error {
	f.pings++
	if len(f.pingErrs) > 0 {
		err := f.pingErrs[0]
		f.pingErrs = f.pingErrs[1:]
		return err
	}
	return nil
}

func (f *fakeMySQL) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.mu.Lock()
	f.execs = append(f.execs, query)
	m := readerHandlerPattern.FindStringSubmatch(query)
	var handler func() io.Reader
	if m != nil {
		handler = f.handlers[m[1]]
	}
	f.mu.Unlock()

	if f.execErr != nil {
		return nil, f.execErr
	}
	if handler == nil {
		return driver.RowsAffected(0), nil
	}

	data, err := io.ReadAll(handler())
	if err != nil {
		return nil, err
	}
	f.loaded = string(data)
	return driver.RowsAffected(strings.Count(f.loaded, "\"\n")), nil
}

func (f *fakeMySQL) Close() error {
	f.closed = true
	return nil
}

func mysqlConfig(truncate bool) func(*config.Config) {
	return func(c *config.Config) {
		c.MySQL.DSN = "user:pass@tcp(localhost:3306)/test"
		c.MySQL.Table = "test.imports"
		c.MySQL.Truncate = truncate
		c.Bulk.ConstantColumns = []config.ConstantColumn{{Name: "Source", Value: "x"}}
	}
}

func TestImportMySQL(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	in := testutil.WriteTempFile(t, "in.csv", "id;name;note\n1;;a\"b\n2;beta;\"x\ny\"\n")
	db := newFakeMySQL(t)
	r := newTestRunner(t, mysqlConfig(true), WithMySQLOpener(db.open))

	stats, err := r.ImportMySQL(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, "\"1\",\"\",\"a\"\"b\",\"x\"\n\"2\",\"beta\",\"x\ny\",\"x\"\n", db.loaded)
	require.Len(t, db.execs, 2)
	assert.Equal(t, "TRUNCATE TABLE `test`.`imports`", db.execs[0])
	assert.Contains(t, db.execs[1], "INTO TABLE `test`.`imports`")
	assert.Contains(t, db.execs[1], "SET `id` = NULLIF(@c0, ''), `name` = NULLIF(@c1, '')")
	assert.True(t, db.closed)
	assert.Empty(t, db.handlers)
	assert.Equal(t, int64(2), stats.Rows)
	assert.Equal(t, []string{"id", "name", "note", "Source"}, stats.Columns)
}

func TestImportMySQL_NoHeader(t *testing.T) {
	in := testutil.WriteTempFile(t, "in.csv", "")
	db := newFakeMySQL(t)
	r := newTestRunner(t, mysqlConfig(true), WithMySQLOpener(db.open))

	_, err := r.ImportMySQL(context.Background(), in)
	require.Error(t, err)
	assert.True(t, csverrors.IsType(err, csverrors.ErrorTypeValidation), "got %v", err)
	assert.Empty(t, db.execs)
	assert.Zero(t, db.pings)
}

func TestImportMySQL_ExecError(t *testing.T) {
	in := testutil.WriteTempFile(t, "in.csv", testutil.CreateTestData(100))
	db := newFakeMySQL(t)
	db.execErr = errors.New("local_infile is disabled")
	r := newTestRunner(t, mysqlConfig(false), WithMySQLOpener(db.open))

	done := make(chan error, 1)
	go func() {
		_, err := r.ImportMySQL(context.Background(), in)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, csverrors.IsType(err, csverrors.ErrorTypeDatabase))
		assert.Contains(t, err.Error(), "local_infile is disabled")
	case <-time.After(10 * time.Second):
		t.Fatal("import did not return after the load failed")
	}
}

func TestImportMySQL_RetriesPing(t *testing.T) {
	in := testutil.WriteTempFile(t, "in.csv", "a\n1\n")

	db := newFakeMySQL(t)
	db.pingErrs = []error{errors.New("connection refused")}
	r := newTestRunner(t, func(c *config.Config) {
		mysqlConfig(false)(c)
		c.MySQL.Retry = config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}
	}, WithMySQLOpener(db.open))

	_, err := r.ImportMySQL(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, db.pings)

	db = newFakeMySQL(t)
	db.pingErrs = []error{errors.New("refused"), errors.New("still refused")}
	r = newTestRunner(t, func(c *config.Config) {
		mysqlConfig(false)(c)
		c.MySQL.Retry = config.RetryConfig{MaxAttempts: 2}
	}, WithMySQLOpener(db.open))

	_, err = r.ImportMySQL(context.Background(), in)
	require.Error(t, err)
	assert.True(t, csverrors.IsType(err, csverrors.ErrorTypeDatabase))
	assert.Contains(t, err.Error(), "still refused")
	assert.Empty(t, db.execs)
}

func TestImportMySQL_ShortRow(t *testing.T) {
	in := testutil.WriteTempFile(t, "in.csv", "a;b\n1;2\n3\n")
	db := newFakeMySQL(t)
	r := newTestRunner(t, mysqlConfig(false), WithMySQLOpener(db.open))

	_, err := r.ImportMySQL(context.Background(), in)
	require.Error(t, err)
	assert.True(t, csverrors.IsType(err, csverrors.ErrorTypeOutOfRange), "got %v", err)
}

func TestImportMySQL_RequiresDSN(t *testing.T) {
	r := newTestRunner(t, func(c *config.Config) { c.MySQL.Table = "t" })
	_, err := r.ImportMySQL(context.Background(), "unused.csv")
	assert.True(t, csverrors.IsType(err, csverrors.ErrorTypeConfig))
}

func TestLoadDataStatement(t *testing.T) {
	got := loadDataStatement("h1", "`t`", []string{"a", "b`c"}, false)
	assert.Equal(t, "LOAD DATA LOCAL INFILE 'Reader::h1' INTO TABLE `t` CHARACTER SET utf8mb4"+
		` FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '"' ESCAPED BY ''`+
		` LINES TERMINATED BY '\n' (`+"`a`, `b``c`)", got)

	got = loadDataStatement("h1", "`t`", []string{"a"}, true)
	assert.True(t, strings.HasSuffix(got, "(@c0) SET `a` = NULLIF(@c0, '')"), got)
}

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, "`imports`", quoteTable("imports"))
	assert.Equal(t, "`db`.`imports`", quoteTable("db.imports"))
	assert.Equal(t, "`we``ird`", quoteTable("we`ird"))
}

func TestImportMySQL_Integration(t *testing.T) {
	testutil.IntegrationTest(t)
	dsn := testutil.RequireEnv(t, "CSVBULK_TEST_MYSQL_DSN")

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	db, err := openMySQL(dsn)
	require.NoError(t, err)
	defer db.Close()

	table := fmt.Sprintf("csvbulk_test_%d", time.Now().UnixNano())
	_, err = db.ExecContext(ctx, "CREATE TABLE "+table+" (id text, name text, source text)")
	require.NoError(t, err)
	defer func() { _, _ = db.ExecContext(ctx, "DROP TABLE "+table) }()

	in := testutil.WriteTempFile(t, "in.csv", "id;name\n1;\n2;\"multi\nline, \"\"quoted\"\"\"\n")
	r := newTestRunner(t, func(c *config.Config) {
		c.MySQL.DSN = dsn
		c.MySQL.Table = table
		c.Bulk.ConstantColumns = []config.ConstantColumn{{Name: "source", Value: "integration"}}
	})
	stats, err := r.ImportMySQL(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Rows)

	sqlDB := db.(*sql.DB)
	var name sql.NullString
	require.NoError(t, sqlDB.QueryRowContext(ctx, "SELECT name FROM "+table+" WHERE id = '1'").Scan(&name))
	assert.False(t, name.Valid)
	require.NoError(t, sqlDB.QueryRowContext(ctx, "SELECT name FROM "+table+" WHERE id = '2'").Scan(&name))
	assert.Equal(t, "multi\nline, \"quoted\"", name.String)
}
