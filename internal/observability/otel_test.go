package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/luvia-backend/internal/config"
)

func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop, exp := otel.GetTracerProvider(), otel.GetTextMapPropagator(), newExporter
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
		newExporter = exp
	})
}

func memoryExporter(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	mem := tracetest.NewInMemoryExporter()
	newExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		return mem, nil
	}
	return mem
}

func enabled(ratio float64) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: "luvia-backend",
		SampleRatio: ratio,
	}
}

func TestSetupOTel_DisabledLeavesGlobals(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()
	called := false
	newExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		called = true
		return nil, nil
	}

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Endpoint: "ignored:4317"}, "dev")
	if err != nil || shutdown == nil {
		t.Fatalf("shutdown=%v err=%v", shutdown, err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
	if called || otel.GetTracerProvider() != before {
		t.Fatal("disabled tracing touched the exporter or globals")
	}
}

func TestSetupOTel_ExportsSpansWithServiceResource(t *testing.T) {
	keepGlobals(t)
	mem := memoryExporter(t)

	shutdown, err := SetupOTel(context.Background(), enabled(1), "1.4.0")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	_, span := otel.Tracer("ledger").Start(context.Background(), "ledger.find_booking")
	span.End()

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	if !ok {
		t.Fatalf("global provider = %T", otel.GetTracerProvider())
	}
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	spans := mem.GetSpans()
	if len(spans) != 1 || spans[0].Name != "ledger.find_booking" {
		t.Fatalf("spans = %+v", spans)
	}
	attrs := spans[0].Resource.String()
	if !strings.Contains(attrs, "service.name=luvia-backend") || !strings.Contains(attrs, "service.version=1.4.0") {
		t.Fatalf("resource = %s", attrs)
	}
}

func TestSetupOTel_PropagatesTraceContext(t *testing.T) {
	keepGlobals(t)
	memoryExporter(t)

	shutdown, err := SetupOTel(context.Background(), enabled(1), "dev")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := otel.Tracer("test").Start(context.Background(), "check-booking")
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if !strings.Contains(carrier.Get("traceparent"), span.SpanContext().TraceID().String()) {
		t.Fatalf("traceparent = %q", carrier.Get("traceparent"))
	}
	got := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), carrier))
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Fatal("extracted trace id differs")
	}
}

func TestSetupOTel_ExporterError(t *testing.T) {
	keepGlobals(t)
	newExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		return nil, errors.New("bad endpoint")
	}
	if _, err := SetupOTel(context.Background(), enabled(1), "dev"); err == nil || !strings.Contains(err.Error(), "bad endpoint") {
		t.Fatalf("err = %v", err)
	}
}

func TestSampler(t *testing.T) {
	for ratio, want := range map[float64]string{
		1.5:  "AlwaysOnSampler",
		1:    "AlwaysOnSampler",
		0:    "AlwaysOffSampler",
		-1:   "AlwaysOffSampler",
		0.25: "TraceIDRatioBased{0.25}",
	} {
		if got := sampler(ratio).Description(); !strings.Contains(got, want) {
			t.Errorf("sampler(%v) = %s; want %s", ratio, got, want)
		}
	}
}
