// Package config loads csvbulk configuration from YAML.
//
// A single Config holds every section: the input dialect, input and output
// locations, bulk loading options, database targets, logging, metrics and
// tracing. Default returns a complete configuration, so a file only needs the
// settings that differ:
//
//	dialect:
//	  delimiter: tab
//	  empty_lines: ignore
//	input:
//	  location: s3://exports/2024/orders.csv.gz
//	postgres:
//	  dsn: ${PG_DSN}
//	  table: orders
//	  retry:
//	    max_attempts: 5
//	    base_delay: 1s
//	bulk:
//	  constant_columns:
//	    - name: Source
//	      value: ${SOURCE_NAME:-manual}
//
// # Environment Variable Substitution
//
// ${VAR} is replaced with the value of VAR before parsing; ${VAR:-fallback}
// uses fallback when VAR is unset or empty.
//
// # Validation
//
// LoadFile validates the result. Dialect characters must be single
// characters (or one of the aliases tab, comma, semicolon, pipe, space) and
// the delimiter must differ from the quote. Compression, encoding and log
// level names are checked against the supported sets. Database sections are
// checked by ValidatePostgres and ValidateMySQL only when an import runs.
package config
