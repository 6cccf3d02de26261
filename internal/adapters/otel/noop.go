package otel

import "context"

// NoOpExporter is a metrics exporter that does nothing.
type NoOpExporter struct{}

// NewNoOpExporter creates a new no-op exporter for graceful degradation.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (e *NoOpExporter) ExportSelection(ctx context.Context, promptName, variant string) {}

func (e *NoOpExporter) ExportOutcome(ctx context.Context, experimentName, variant string, success bool) {
}

func (e *NoOpExporter) Close(ctx context.Context) error {
	return nil
}
