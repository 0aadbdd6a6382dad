// Package telemetry provides the telemetry.otel module. It installs an OTLP
// HTTP trace exporter as the global tracer provider, so command invocation
// spans are exported once the module is loaded.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgram/internal/core"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

const defaultServiceName = "tgram"

// Config configures trace export.
type Config struct {
	// Endpoint is the OTLP/HTTP collector URL, e.g. http://localhost:4318.
	// Empty uses the exporter defaults and OTEL_EXPORTER_OTLP_* variables.
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Module is the telemetry.otel module.
type Module struct {
	config   Config
	logger   *slog.Logger
	provider *sdktrace.TracerProvider
}

func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.otel",
		New: func() core.Module { return &Module{} },
	}
}

func (m *Module) Configure(node *yaml.Node) error {
	m.config = Config{SampleRatio: 1}
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("telemetry: decode config: %w", err)
	}
	if m.config.ServiceName == "" {
		m.config.ServiceName = defaultServiceName
	}
	return nil
}

func (m *Module) Validate() error {
	if m.config.SampleRatio < 0 || m.config.SampleRatio > 1 {
		return errors.New("telemetry: sample_ratio must be between 0 and 1")
	}
	return nil
}

// Provision creates the exporter and makes the provider global. Tracers
// handed out earlier by otel.GetTracerProvider follow the switch.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger

	exporter, err := otlptracehttp.New(context.Background(), m.exporterOptions()...)
	if err != nil {
		return fmt.Errorf("telemetry: create exporter: %w", err)
	}

	m.provider = NewTracerProvider(exporter, m.config)
	otel.SetTracerProvider(m.provider)
	ctx.RegisterService("telemetry.tracer_provider", trace.TracerProvider(m.provider))

	m.logger.Info("tracing enabled",
		"endpoint", m.config.Endpoint,
		"service", m.config.ServiceName,
		"sample_ratio", m.config.SampleRatio,
	)
	return nil
}

func (m *Module) exporterOptions() []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	if m.config.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(m.config.Endpoint))
	}
	if m.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// Stop flushes pending spans and shuts the exporter down.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	if err := m.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}

// NewTracerProvider builds a batching provider for exporter, sampling root
// spans at cfg.SampleRatio and following the parent decision otherwise.
func NewTracerProvider(exporter sdktrace.SpanExporter, cfg Config) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
}
