// Package csvfile reads and writes delimited text one row at a time.
//
// # Format
//
// Fields are separated by a single delimiter character (';' by default) and
// may be enclosed in a quote character ('"' by default). Inside quotes the
// delimiter and line breaks are ordinary text, and a quote is written twice.
// A quoted field may therefore continue over several physical lines; the
// Reader joins them with NewLine ("\n") regardless of whether the input used
// "\n" or "\r\n".
//
// The Reader is lenient. It never reports a parse error:
//   - a quote inside a quoted field that is neither doubled nor followed by
//     the delimiter or the end of the line is kept as a literal quote
//   - quotes inside unquoted fields are literal
//   - input that ends inside an open quote yields the text collected so far
//
// Row length is not checked; ragged rows are returned as they are.
//
// # Empty lines
//
// A zero-length line outside quotes is translated according to the dialect's
// EmptyLineBehavior: a row without fields (NoCells), a row with one empty
// field (EmptyCell), skipped (Ignore) or the end of the input (EndOfFile).
//
// # Usage
//
//	r, err := csvfile.NewReader(f, csvfile.Dialect{Delimiter: ','})
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
//	    process(row)
//	}
//
// Readers and Writers own the stream they wrap and are not safe for
// concurrent use.
package csvfile
