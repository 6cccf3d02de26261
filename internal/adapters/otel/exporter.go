package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/emiliopalmerini/promptreg/internal/infrastructure/config"
)

const (
	serviceName    = "promptreg"
	serviceVersion = "1.0.0"
)

// Exporter exports variant selection and outcome metrics to an OTEL Collector.
type Exporter struct {
	provider        *sdkmetric.MeterProvider
	meter           metric.Meter
	selectionsTotal metric.Int64Counter
	outcomesTotal   metric.Int64Counter
}

// NewExporter creates a new OTEL metrics exporter.
func NewExporter(ctx context.Context, cfg config.Telemetry) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	selectionsTotal, err := meter.Int64Counter(
		"promptreg_variant_selections_total",
		metric.WithDescription("Total variant selections served"),
		metric.WithUnit("{selection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating selections counter: %w", err)
	}

	outcomesTotal, err := meter.Int64Counter(
		"promptreg_outcomes_total",
		metric.WithDescription("Total experiment outcomes recorded"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating outcomes counter: %w", err)
	}

	return &Exporter{
		provider:        provider,
		meter:           meter,
		selectionsTotal: selectionsTotal,
		outcomesTotal:   outcomesTotal,
	}, nil
}

// ExportSelection records that a variant was served for a prompt.
func (e *Exporter) ExportSelection(ctx context.Context, promptName, variant string) {
	e.selectionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("prompt", promptName),
		attribute.String("variant", variant),
	))
}

// ExportOutcome records one trial result for an experiment variant.
func (e *Exporter) ExportOutcome(ctx context.Context, experimentName, variant string, success bool) {
	e.outcomesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("experiment", experimentName),
		attribute.String("variant", variant),
		attribute.Bool("success", success),
	))
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
