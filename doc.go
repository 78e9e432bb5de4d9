// Package csvbulk reads delimited text the way real exports look and loads it
// in bulk.
//
// Spreadsheet and database exports rarely follow RFC 4180 to the letter.
// csvbulk tokenizes them leniently:
//   - quoted cells may span several physical lines
//   - a doubled quote inside a quoted cell is one literal quote
//   - stray quotes are kept as text instead of failing the row
//   - rows may have any number of fields
//   - empty lines are ignored, read as zero cells, or read as one empty cell
//
// There is no parse error: every input yields rows.
//
// # Architecture
//
// The tokenizer sits at the bottom and everything else feeds or drains it:
//
//	pkg/stream       - open and create local, stdin/stdout, s3:// and gs:// locations
//	pkg/compression  - gzip, zstd, snappy, s2, lz4 and deflate streams
//	pkg/csvfile      - the row reader and writer for one Dialect
//	pkg/bulkreader   - a named-column cursor with constant columns and empty values
//	pkg/jsonl        - JSON lines encoding of cursor rows
//	internal/pipeline - jobs: headers, convert, export, PostgreSQL COPY, MySQL LOAD DATA
//
// # Quick Start
//
// Read rows with a semicolon dialect:
//
//	import (
//	    "github.com/ajitpratap0/csvbulk/pkg/csvfile"
//	)
//
//	r, err := csvfile.NewReader(f, csvfile.DefaultDialect())
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    row, ok, err := r.ReadRow()
//	    if err != nil {
//	        return err
//	    }
//	    if !ok {
//	        break
//	    }
//	    fmt.Println(row)
//	}
//
// Or use the command line:
//
//	csvbulk headers export.csv.gz
//	csvbulk convert --out-delimiter comma --crlf in.csv out.csv
//	csvbulk import postgres --dsn "$PG_DSN" --table events events.csv
//
// # Configuration
//
// Jobs are configured with YAML (see pkg/config); every setting can be
// overridden by a flag or a CSVBULK_ environment variable. ${VAR} and
// ${VAR:-default} are substituted in configuration files.
//
// # Observability
//
// Logs are structured JSON from zap on stderr. --metrics-addr serves
// Prometheus metrics and --trace writes one OpenTelemetry span per job.
package csvbulk
