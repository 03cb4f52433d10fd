// Package telemetry provides OpenTelemetry instrumentation and logging.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "stealthgrid"
	serviceVersion = "0.1.0"
)

// SetupOption configures Setup.
type SetupOption func(*setupConfig)

type setupConfig struct {
	sampleRatio float64
}

// WithSampleRatio exports the given fraction of root traces. Child spans
// follow their parent's decision.
func WithSampleRatio(r float64) SetupOption {
	return func(c *setupConfig) { c.sampleRatio = r }
}

// Setup installs a global tracer provider exporting over OTLP HTTP.
// The exporter reads OTEL_EXPORTER_OTLP_ENDPOINT and OTEL_EXPORTER_OTLP_HEADERS.
// The returned function flushes and stops the provider.
func Setup(ctx context.Context, opts ...SetupOption) (shutdown func(context.Context) error, err error) {
	cfg := setupConfig{sampleRatio: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(serviceAttributes(serviceVersion)...))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.sampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// serviceAttributes describes this process. The resource is built without
// resource.Default() to keep a single schema URL.
func serviceAttributes(version string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
		attribute.String("telemetry.sdk.language", "go"),
		attribute.String("telemetry.sdk.name", "opentelemetry"),
		attribute.String("host.name", getHostname()),
		attribute.String("os.type", runtime.GOOS),
		attribute.String("process.runtime.name", "go"),
		attribute.String("process.runtime.version", runtime.Version()),
	}
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Tracer returns a named tracer for the given component.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer("stealthgrid/" + name)
}

// Meter returns a named meter for the given component. Instruments are
// no-ops until a meter provider is registered globally.
func Meter(name string) metric.Meter {
	return otel.Meter("stealthgrid/" + name)
}

// Logger returns a logr.Logger writing through the standard log package
// at the given verbosity, and installs it as the OpenTelemetry error logger.
func Logger(verbosity int) logr.Logger {
	stdr.SetVerbosity(verbosity)
	l := stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	otel.SetLogger(l)
	return l
}

// getHostname returns the system hostname, or "unknown" if it cannot be determined.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
