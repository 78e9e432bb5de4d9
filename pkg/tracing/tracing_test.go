package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInit_Disabled(t *testing.T) {
	var out bytes.Buffer
	p, err := Init(context.Background(), Config{}, &out)
	require.NoError(t, err)

	_, span := Start(context.Background(), "ignored")
	End(span, nil)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Empty(t, out.String())
}

func TestInit_ExportsSpans(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.BatchTimeout = time.Millisecond

	p, err := Init(context.Background(), cfg, &out)
	require.NoError(t, err)

	ctx, parent := Start(context.Background(), "convert", Attr("input", "in.csv"))
	_, child := Start(ctx, "read_rows")
	End(child, errors.New("boom"))
	parent.SetAttributes(Attr("rows", 3))
	End(parent, nil)

	require.NoError(t, p.Shutdown(context.Background()))

	exported := out.String()
	assert.Contains(t, exported, `"Name":"convert"`)
	assert.Contains(t, exported, `"Name":"read_rows"`)
	assert.Contains(t, exported, "boom")
	assert.Contains(t, exported, "in.csv")
	assert.Contains(t, exported, "csvbulk")
}

func TestShutdown_NilProvider(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), sampler(0.25).Description())
}

type stringer struct{}

func (stringer) String() string { return "stringer" }

func TestAttr(t *testing.T) {
	tests := []struct {
		value interface{}
		want  attribute.KeyValue
	}{
		{"s", attribute.String("k", "s")},
		{7, attribute.Int("k", 7)},
		{int64(8), attribute.Int64("k", 8)},
		{0.5, attribute.Float64("k", 0.5)},
		{true, attribute.Bool("k", true)},
		{stringer{}, attribute.String("k", "stringer")},
		{[]int{1}, attribute.String("k", "[1]")},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Attr("k", tt.value))
	}
}
