package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ajitpratap0/csvbulk/pkg/config"
)

func newHeadersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "headers <location>",
		Short: "Print the column names of a file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd)
			if err != nil {
				return err
			}
			headers, err := r.Headers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, h := range headers {
				fmt.Fprintln(cmd.OutOrStdout(), h)
			}
			return nil
		},
	}
}

func newCatCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "cat <location>",
		Short: "Write the rows of a file as JSON lines",
		Long: `Write every data row as one JSON object keyed by the header.
Empty fields are null unless --empty-value is given.

Example:
  csvbulk cat --delimiter tab export.tsv.gz --output rows.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd)
			if err != nil {
				return err
			}
			stats, err := r.Export(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}
			if output != "-" {
				printStats(cmd, stats)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output location")
	return cmd
}

func newConvertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Rewrite a file in another dialect, encoding or compression",
		Long: `Rewrite every row of input to output unchanged apart from the format.
Output settings default to the input ones; compression follows the output
extension.

Example:
  csvbulk convert --delimiter ';' --out-delimiter comma in.csv out.csv.zst`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyOutputFlags(a, a.cfg)
			r, err := a.runner(cmd)
			if err != nil {
				return err
			}
			stats, err := r.Convert(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printStats(cmd, stats)
			return nil
		},
	}

	f := cmd.Flags()
	f.String("out-delimiter", "", "Output field delimiter")
	f.String("out-quote", "", "Output quote character")
	f.String("out-encoding", "", "Output text encoding; utf-8-bom writes a byte order mark")
	f.String("out-compression", "", "Output compression")
	f.String("out-level", "", "Output compression level: fastest, default, better, best")
	f.Bool("crlf", false, "End output lines with CRLF")
	f.Bool("always-quote", false, "Quote every output field")
	return cmd
}

func applyOutputFlags(a *app, cfg *config.Config) {
	v := a.v
	if v.IsSet("out-delimiter") || v.IsSet("out-quote") {
		if cfg.Output.Dialect == nil {
			cfg.Output.Dialect = &config.DialectConfig{}
		}
		if v.IsSet("out-delimiter") {
			cfg.Output.Dialect.Delimiter = v.GetString("out-delimiter")
		}
		if v.IsSet("out-quote") {
			cfg.Output.Dialect.Quote = v.GetString("out-quote")
		}
	}
	if v.IsSet("out-encoding") {
		cfg.Output.Encoding = v.GetString("out-encoding")
	}
	if v.IsSet("out-compression") {
		cfg.Output.Compression = v.GetString("out-compression")
	}
	if v.IsSet("out-level") {
		cfg.Output.CompressionLevel = v.GetString("out-level")
	}
	if v.IsSet("crlf") {
		cfg.Output.CRLF = v.GetBool("crlf")
	}
	if v.IsSet("always-quote") {
		cfg.Output.AlwaysQuote = v.GetBool("always-quote")
	}
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk load a file into a database table",
	}
	cmd.AddCommand(newImportPostgresCmd(a), newImportMySQLCmd(a))
	return cmd
}

func addTargetFlags(f *pflag.FlagSet) {
	f.String("dsn", "", "Database connection string")
	f.String("table", "", "Target table")
	f.Bool("truncate", false, "Empty the table before loading")
	f.Duration("timeout", 0, "Abort the import after this long")
}

func newImportPostgresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postgres <location>",
		Short: "COPY rows into a PostgreSQL table",
		Long: `Load every data row into a PostgreSQL table with COPY, in one transaction.
Columns are matched by header name. Empty fields load as NULL unless
--empty-value is given.

Example:
  csvbulk import postgres --dsn "$PG_DSN" --table events --constant source=manual events.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pg := &a.cfg.Postgres
			if a.v.IsSet("dsn") {
				pg.DSN = a.v.GetString("dsn")
			}
			if a.v.IsSet("table") {
				pg.Table = a.v.GetString("table")
			}
			if a.v.IsSet("schema") {
				pg.Schema = a.v.GetString("schema")
			}
			if a.v.IsSet("truncate") {
				pg.Truncate = a.v.GetBool("truncate")
			}
			if a.v.IsSet("timeout") {
				pg.Timeout = a.v.GetDuration("timeout")
			}

			r, err := a.runner(cmd)
			if err != nil {
				return err
			}
			stats, err := r.ImportPostgres(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStats(cmd, stats)
			return nil
		},
	}
	addTargetFlags(cmd.Flags())
	cmd.Flags().String("schema", "", "Target schema")
	return cmd
}

func newImportMySQLCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mysql <location>",
		Short: "LOAD DATA rows into a MySQL table",
		Long: `Load every data row into a MySQL table with LOAD DATA LOCAL INFILE.
The server must allow local_infile. Columns are matched by header name.

Example:
  csvbulk import mysql --dsn "user:pass@tcp(db:3306)/app" --table events events.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			my := &a.cfg.MySQL
			if a.v.IsSet("dsn") {
				my.DSN = a.v.GetString("dsn")
			}
			if a.v.IsSet("table") {
				my.Table = a.v.GetString("table")
			}
			if a.v.IsSet("truncate") {
				my.Truncate = a.v.GetBool("truncate")
			}
			if a.v.IsSet("timeout") {
				my.Timeout = a.v.GetDuration("timeout")
			}

			r, err := a.runner(cmd)
			if err != nil {
				return err
			}
			stats, err := r.ImportMySQL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStats(cmd, stats)
			return nil
		},
	}
	addTargetFlags(cmd.Flags())
	return cmd
}
