package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/csvbulk/pkg/jsonl"
	"github.com/ajitpratap0/csvbulk/pkg/stream"
)

// Headers returns the column names of location, constant columns included.
// A file without rows has no columns.
func (r *Runner) Headers(ctx context.Context, location string) (_ []string, err error) {
	j := r.startJob(ctx, "headers", location)
	defer func() { _, err = r.finishJob(j, err) }()

	cursor, reader, err := r.openCursor(j.ctx, location)
	if err != nil {
		return nil, err
	}
	defer func() { err = closeAll(err, cursor) }()

	j.stats.Columns = cursor.Headers()
	j.stats.Lines = reader.Line()
	return j.stats.Columns, nil
}

// Convert copies every row of in to out, rewriting the dialect, compression
// and text encoding. Rows are copied as read: ragged rows stay ragged and
// empty lines follow the input's empty-line behavior.
func (r *Runner) Convert(ctx context.Context, in, out string) (_ *Stats, err error) {
	j := r.startJob(ctx, "convert", in)
	j.log = j.log.With(zap.String("output", out))
	defer func() { _, err = r.finishJob(j, err) }()

	reader, err := r.openReader(j.ctx, in)
	if err != nil {
		return j.stats, err
	}
	defer func() { err = closeAll(err, reader) }()

	writer, err := r.createWriter(j.ctx, out)
	if err != nil {
		return j.stats, err
	}
	defer func() { err = closeAll(err, writer) }()

	for {
		row, ok, rerr := reader.ReadRow()
		if rerr != nil {
			return j.stats, rerr
		}
		if !ok {
			break
		}
		if err := writer.WriteRow(row); err != nil {
			return j.stats, err
		}
		if err := j.row(); err != nil {
			return j.stats, err
		}
	}

	j.stats.Lines = reader.Line()
	return j.stats, writer.Flush()
}

// Export writes the data rows of in to out as JSON lines keyed by header.
// Empty fields become null unless an empty value is configured.
func (r *Runner) Export(ctx context.Context, in, out string) (_ *Stats, err error) {
	j := r.startJob(ctx, "export", in)
	j.log = j.log.With(zap.String("output", out))
	defer func() { _, err = r.finishJob(j, err) }()

	cursor, reader, err := r.openCursor(j.ctx, in)
	if err != nil {
		return j.stats, err
	}
	defer func() { err = closeAll(err, cursor) }()

	// JSON lines are always UTF-8 and never take the CSV output dialect.
	opts := r.outOpts
	opts.Encoding = ""
	wc, err := stream.Create(j.ctx, out, opts)
	if err != nil {
		return j.stats, err
	}
	enc, err := jsonl.NewEncoder(wc, cursor.Headers())
	if err != nil {
		_ = wc.Close()
		return j.stats, err
	}
	defer func() { err = closeAll(err, enc) }()

	j.stats.Columns = cursor.Headers()
	for {
		ok, rerr := cursor.Read()
		if rerr != nil {
			return j.stats, rerr
		}
		if !ok {
			break
		}
		values, verr := cursor.Values()
		if verr != nil {
			return j.stats, verr
		}
		if err := enc.Encode(values); err != nil {
			return j.stats, err
		}
		if err := j.row(); err != nil {
			return j.stats, err
		}
	}

	j.stats.Lines = reader.Line()
	return j.stats, enc.Flush()
}
