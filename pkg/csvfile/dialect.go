package csvfile

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

const (
	// DefaultDelimiter separates fields when a Dialect leaves Delimiter unset.
	DefaultDelimiter = ';'
	// DefaultQuote encloses fields when a Dialect leaves Quote unset.
	DefaultQuote = '"'
	// NewLine is appended to a quoted field for every physical line break it
	// spans, whatever terminator the input used.
	NewLine = "\n"
)

// Row is one logical record: field values in column order.
type Row []string

// EmptyLineBehavior decides what a zero-length input line turns into.
type EmptyLineBehavior int

const (
	// NoCells reports an empty line as a row without fields.
	NoCells EmptyLineBehavior = iota
	// EmptyCell reports an empty line as a row with a single empty field.
	EmptyCell
	// Ignore skips empty lines.
	Ignore
	// EndOfFile treats the first empty line as the end of the input.
	EndOfFile
)

var emptyLineNames = map[EmptyLineBehavior]string{
	NoCells:   "no_cells",
	EmptyCell: "empty_cell",
	Ignore:    "ignore",
	EndOfFile: "end_of_file",
}

// String returns the configuration name of the behavior.
func (b EmptyLineBehavior) String() string {
	if name, ok := emptyLineNames[b]; ok {
		return name
	}
	return fmt.Sprintf("EmptyLineBehavior(%d)", int(b))
}

// ParseEmptyLineBehavior accepts the names produced by String, case-insensitive,
// with '-' allowed in place of '_'. An empty string yields NoCells.
func ParseEmptyLineBehavior(s string) (EmptyLineBehavior, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if name == "" {
		return NoCells, nil
	}
	for b, n := range emptyLineNames {
		if n == name {
			return b, nil
		}
	}
	return NoCells, csverrors.New(csverrors.ErrorTypeConfig, "unknown empty line behavior").
		WithDetail("value", s)
}

// Dialect fixes the delimiter, quote and empty-line policy of a Reader or
// Writer. Zero values select DefaultDelimiter, DefaultQuote and NoCells.
type Dialect struct {
	Delimiter  rune
	Quote      rune
	EmptyLines EmptyLineBehavior
}

// DefaultDialect returns the semicolon separated, double quoted dialect.
func DefaultDialect() Dialect {
	return Dialect{
		Delimiter:  DefaultDelimiter,
		Quote:      DefaultQuote,
		EmptyLines: NoCells,
	}
}

func (d Dialect) withDefaults() Dialect {
	if d.Delimiter == 0 {
		d.Delimiter = DefaultDelimiter
	}
	if d.Quote == 0 {
		d.Quote = DefaultQuote
	}
	return d
}

// Validate reports whether the dialect can be scanned unambiguously.
func (d Dialect) Validate() error {
	d = d.withDefaults()
	if err := validRune("delimiter", d.Delimiter); err != nil {
		return err
	}
	if err := validRune("quote", d.Quote); err != nil {
		return err
	}
	if d.Delimiter == d.Quote {
		return csverrors.New(csverrors.ErrorTypeConfig, "delimiter and quote must differ").
			WithDetail("delimiter", string(d.Delimiter))
	}
	if _, ok := emptyLineNames[d.EmptyLines]; !ok {
		return csverrors.New(csverrors.ErrorTypeConfig, "unknown empty line behavior").
			WithDetail("value", int(d.EmptyLines))
	}
	return nil
}

func validRune(role string, r rune) error {
	if r == '\r' || r == '\n' || r == utf8.RuneError || !utf8.ValidRune(r) {
		return csverrors.New(csverrors.ErrorTypeConfig, "invalid "+role+" character").
			WithDetail(role, r)
	}
	return nil
}
