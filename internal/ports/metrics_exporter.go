package ports

import "context"

// MetricsExporter exports allocation and outcome metrics to an external
// observability system.
type MetricsExporter interface {
	// ExportSelection records that a variant was served for a prompt.
	ExportSelection(ctx context.Context, promptName, variant string)
	// ExportOutcome records one trial result for an experiment variant.
	ExportOutcome(ctx context.Context, experimentName, variant string, success bool)
	// Close shuts down the exporter and flushes any pending metrics.
	Close(ctx context.Context) error
}
