package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	DefaultServiceName    = "tracksearch"
	DefaultServiceVersion = "unknown"

	scopePrefix = "github.com/desertthunder/tracksearch/"
)

// Config holds instrumentation configuration
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Enabled installs an SDK tracer provider. When false, no-op providers are used.
	Enabled bool

	// MeterProvider and TracerProvider override the providers chosen from Enabled.
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Instrumentation provides OpenTelemetry instrumentation components
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics

	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	inst := &Instrumentation{config: config, resource: res}

	switch {
	case config.TracerProvider != nil:
		inst.tracerProvider = config.TracerProvider
	case config.Enabled:
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		inst.tracerProvider = tp
		inst.shutdownFuncs = append(inst.shutdownFuncs, tp.Shutdown)
	default:
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	if config.MeterProvider != nil {
		inst.meterProvider = config.MeterProvider
	} else {
		// TODO: wire a Prometheus or OTLP exporter once a collector is deployed alongside the proxy.
		inst.meterProvider = noop.NewMeterProvider()
	}

	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// Noop returns instrumentation backed entirely by no-op providers.
func Noop() *Instrumentation {
	inst, err := New(Config{})
	if err != nil {
		panic(fmt.Sprintf("noop instrumentation: %v", err))
	}
	return inst
}

// Shutdown flushes and stops the providers this instance created.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	if i == nil {
		return nil
	}
	var shutdownErr error
	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}

// Meter returns a named meter for the given scope ("upstream", "auth", "http").
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(scopePrefix + scope)
}

// Tracer returns a named tracer for the given scope.
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	if i == nil {
		return tracenoop.NewTracerProvider().Tracer(scopePrefix + scope)
	}
	return i.tracerProvider.Tracer(scopePrefix + scope)
}

// Metrics returns the metrics holder; nil when i is nil.
func (i *Instrumentation) Metrics() *Metrics {
	if i == nil {
		return nil
	}
	return i.metrics
}

func (i *Instrumentation) Resource() *resource.Resource { return i.resource }
