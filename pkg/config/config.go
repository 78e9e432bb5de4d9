package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/csvbulk/pkg/compression"
	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
	"github.com/ajitpratap0/csvbulk/pkg/csvfile"
	"github.com/ajitpratap0/csvbulk/pkg/logger"
	"github.com/ajitpratap0/csvbulk/pkg/stream"
	"github.com/ajitpratap0/csvbulk/pkg/tracing"
)

// Config is the complete csvbulk configuration. Every section has usable
// defaults, so an empty file is a valid configuration.
type Config struct {
	// Dialect of the input, and of the output unless Output.Dialect is set
	Dialect DialectConfig `yaml:"dialect" json:"dialect"`
	// Input source location and decoding
	Input InputConfig `yaml:"input" json:"input"`
	// Output destination for convert and cat
	Output OutputConfig `yaml:"output" json:"output"`
	// Bulk controls how rows are handed to loaders
	Bulk BulkConfig `yaml:"bulk" json:"bulk"`
	// Postgres import target
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	// MySQL import target
	MySQL MySQLConfig `yaml:"mysql" json:"mysql"`

	Logging logger.Config  `yaml:"logging" json:"logging"`
	Metrics MetricsConfig  `yaml:"metrics" json:"metrics"`
	Tracing tracing.Config `yaml:"tracing" json:"tracing"`
}

// DialectConfig is the textual form of csvfile.Dialect.
type DialectConfig struct {
	// Delimiter is a single character or one of tab, comma, semicolon, pipe
	Delimiter string `yaml:"delimiter" json:"delimiter"`
	// Quote is a single character, double or single
	Quote string `yaml:"quote" json:"quote"`
	// EmptyLines is no_cells, empty_cell, ignore or end_of_file
	EmptyLines string `yaml:"empty_lines" json:"empty_lines"`
}

// InputConfig describes where rows are read from.
type InputConfig struct {
	Location    string `yaml:"location" json:"location"`
	Compression string `yaml:"compression" json:"compression"`
	Encoding    string `yaml:"encoding" json:"encoding"`
}

// OutputConfig describes where converted rows are written.
type OutputConfig struct {
	Location         string         `yaml:"location" json:"location"`
	Compression      string         `yaml:"compression" json:"compression"`
	CompressionLevel string         `yaml:"compression_level" json:"compression_level"`
	Encoding         string         `yaml:"encoding" json:"encoding"`
	CRLF             bool           `yaml:"crlf" json:"crlf"`
	AlwaysQuote      bool           `yaml:"always_quote" json:"always_quote"`
	Dialect          *DialectConfig `yaml:"dialect,omitempty" json:"dialect,omitempty"`
}

// BulkConfig controls the tabular view handed to loaders.
type BulkConfig struct {
	// EmptyValue replaces empty fields; null (the default) loads SQL NULL.
	EmptyValue      *string          `yaml:"empty_value" json:"empty_value"`
	ConstantColumns []ConstantColumn `yaml:"constant_columns" json:"constant_columns"`
	// BatchSize is the number of rows between progress logs and context checks.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ConstantColumn is appended to every row.
type ConstantColumn struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// PostgresConfig is the target of "import postgres".
type PostgresConfig struct {
	DSN      string        `yaml:"dsn" json:"dsn"`
	Schema   string        `yaml:"schema" json:"schema"`
	Table    string        `yaml:"table" json:"table"`
	Truncate bool          `yaml:"truncate" json:"truncate"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Retry    RetryConfig   `yaml:"retry" json:"retry"`
}

// RetryConfig bounds how often a failed connection attempt is repeated.
// Delays grow exponentially from BaseDelay up to MaxDelay.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// MySQLConfig is the target of "import mysql".
type MySQLConfig struct {
	DSN      string        `yaml:"dsn" json:"dsn"`
	Table    string        `yaml:"table" json:"table"`
	Truncate bool          `yaml:"truncate" json:"truncate"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Retry    RetryConfig   `yaml:"retry" json:"retry"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Address   string `yaml:"address" json:"address"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Dialect: DialectConfig{
			Delimiter:  string(csvfile.DefaultDelimiter),
			Quote:      string(csvfile.DefaultQuote),
			EmptyLines: csvfile.NoCells.String(),
		},
		Input: InputConfig{
			Location:    "-",
			Compression: string(compression.Auto),
			Encoding:    "utf-8",
		},
		Output: OutputConfig{
			Location:         "-",
			Compression:      string(compression.Auto),
			CompressionLevel: "default",
			Encoding:         "utf-8",
		},
		Bulk: BulkConfig{
			BatchSize: 10000,
		},
		Postgres: PostgresConfig{
			Schema:  "public",
			Timeout: 30 * time.Minute,
			Retry:   DefaultRetry(),
		},
		MySQL: MySQLConfig{
			Timeout: 30 * time.Minute,
			Retry:   DefaultRetry(),
		},
		Logging: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Address:   ":9090",
			Namespace: "csvbulk",
		},
		Tracing: tracing.DefaultConfig(),
	}
}

var delimiterAliases = map[string]rune{
	"tab":       '\t',
	`\t`:        '\t',
	"comma":     ',',
	"semicolon": ';',
	"pipe":      '|',
	"space":     ' ',
}

var quoteAliases = map[string]rune{
	"double": '"',
	"single": '\'',
}

// ParseDelimiter converts a delimiter setting into a rune. The empty string
// yields 0, which selects csvfile.DefaultDelimiter.
func ParseDelimiter(s string) (rune, error) {
	return parseChar("delimiter", s, delimiterAliases)
}

// ParseQuote converts a quote setting into a rune. The empty string yields 0,
// which selects csvfile.DefaultQuote.
func ParseQuote(s string) (rune, error) {
	return parseChar("quote", s, quoteAliases)
}

func parseChar(role, s string, aliases map[string]rune) (rune, error) {
	if s == "" {
		return 0, nil
	}
	if r, ok := aliases[strings.ToLower(s)]; ok {
		return r, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, csverrors.New(csverrors.ErrorTypeConfig, role+" must be a single character").
			WithDetail(role, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// ToDialect converts and validates the textual dialect.
func (d DialectConfig) ToDialect() (csvfile.Dialect, error) {
	delim, err := ParseDelimiter(d.Delimiter)
	if err != nil {
		return csvfile.Dialect{}, err
	}
	quote, err := ParseQuote(d.Quote)
	if err != nil {
		return csvfile.Dialect{}, err
	}
	empty, err := csvfile.ParseEmptyLineBehavior(d.EmptyLines)
	if err != nil {
		return csvfile.Dialect{}, err
	}

	dialect := csvfile.Dialect{Delimiter: delim, Quote: quote, EmptyLines: empty}
	if err := dialect.Validate(); err != nil {
		return csvfile.Dialect{}, err
	}
	return dialect, nil
}

// InputDialect returns the dialect used to read input.
func (c *Config) InputDialect() (csvfile.Dialect, error) {
	return c.Dialect.ToDialect()
}

// OutputDialect returns the dialect used to write output: Output.Dialect
// where set, the input dialect otherwise. Fields left empty in Output.Dialect
// are taken from the input dialect.
func (c *Config) OutputDialect() (csvfile.Dialect, error) {
	if c.Output.Dialect == nil {
		return c.InputDialect()
	}
	merged := *c.Output.Dialect
	if merged.Delimiter == "" {
		merged.Delimiter = c.Dialect.Delimiter
	}
	if merged.Quote == "" {
		merged.Quote = c.Dialect.Quote
	}
	if merged.EmptyLines == "" {
		merged.EmptyLines = c.Dialect.EmptyLines
	}
	return merged.ToDialect()
}

// InputStreamOptions returns the stream options for reading input.
func (c *Config) InputStreamOptions() (stream.Options, error) {
	alg, err := compression.ParseAlgorithm(c.Input.Compression)
	if err != nil {
		return stream.Options{}, err
	}
	return stream.Options{Compression: alg, Encoding: c.Input.Encoding}, nil
}

// OutputStreamOptions returns the stream options for writing output.
func (c *Config) OutputStreamOptions() (stream.Options, error) {
	alg, err := compression.ParseAlgorithm(c.Output.Compression)
	if err != nil {
		return stream.Options{}, err
	}
	level, err := compression.ParseLevel(c.Output.CompressionLevel)
	if err != nil {
		return stream.Options{}, err
	}
	return stream.Options{Compression: alg, Level: level, Encoding: c.Output.Encoding}, nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := c.InputDialect(); err != nil {
		return wrapSection("dialect", err)
	}
	if _, err := c.OutputDialect(); err != nil {
		return wrapSection("output.dialect", err)
	}
	if _, err := c.InputStreamOptions(); err != nil {
		return wrapSection("input", err)
	}
	if _, err := c.OutputStreamOptions(); err != nil {
		return wrapSection("output", err)
	}
	if _, err := stream.LookupEncoding(c.Input.Encoding); err != nil {
		return wrapSection("input", err)
	}
	if _, err := stream.LookupEncoding(c.Output.Encoding); err != nil {
		return wrapSection("output", err)
	}

	seen := make(map[string]bool, len(c.Bulk.ConstantColumns))
	for _, col := range c.Bulk.ConstantColumns {
		if col.Name == "" {
			return newConfigError("bulk", "constant column needs a name")
		}
		key := strings.ToLower(col.Name)
		if seen[key] {
			return newConfigError("bulk", fmt.Sprintf("constant column %q defined twice", col.Name))
		}
		seen[key] = true
	}
	if c.Bulk.BatchSize < 0 {
		return newConfigError("bulk", "batch_size cannot be negative")
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil && c.Logging.Level != "" {
		return wrapSection("logging", err)
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return newConfigError("logging", fmt.Sprintf("unknown encoding %q", c.Logging.Encoding))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return newConfigError("metrics", "address is required when metrics are enabled")
	}
	if err := c.Postgres.Retry.validate("postgres"); err != nil {
		return err
	}
	if err := c.MySQL.Retry.validate("mysql"); err != nil {
		return err
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return newConfigError("tracing", "sample_rate must be between 0 and 1")
	}
	return nil
}

// DefaultRetry tries a connection three times, starting at half a second.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

func (r RetryConfig) validate(section string) error {
	if r.MaxAttempts < 0 {
		return newConfigError(section, "retry.max_attempts cannot be negative")
	}
	if r.BaseDelay < 0 || r.MaxDelay < 0 {
		return newConfigError(section, "retry delays cannot be negative")
	}
	return nil
}

// ValidatePostgres checks the settings needed by "import postgres".
func (c *Config) ValidatePostgres() error {
	if c.Postgres.DSN == "" {
		return newConfigError("postgres", "dsn is required")
	}
	if c.Postgres.Table == "" {
		return newConfigError("postgres", "table is required")
	}
	return nil
}

// ValidateMySQL checks the settings needed by "import mysql".
func (c *Config) ValidateMySQL() error {
	if c.MySQL.DSN == "" {
		return newConfigError("mysql", "dsn is required")
	}
	if c.MySQL.Table == "" {
		return newConfigError("mysql", "table is required")
	}
	return nil
}

func newConfigError(section, msg string) error {
	return csverrors.New(csverrors.ErrorTypeConfig, msg).WithDetail("section", section)
}

func wrapSection(section string, err error) error {
	return csverrors.Wrap(err, csverrors.ErrorTypeConfig, "invalid "+section+" configuration").
		WithDetail("section", section)
}
