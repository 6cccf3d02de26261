package ports

import (
	"context"

	"github.com/emiliopalmerini/promptreg/internal/domain"
)

// VariantTotals is the aggregate of recorded outcomes for one variant.
type VariantTotals struct {
	Variant   string
	Trials    int64
	Successes int64
}

type OutcomeRepository interface {
	// Record stores one outcome and bumps the variant's materialized
	// trial/success counters in a single atomic write, so the outcome log
	// and the counters cannot diverge when one side fails. Outcomes are
	// append-only.
	Record(ctx context.Context, outcome *domain.Outcome) error
	// ListByExperiment returns all outcomes for an experiment, oldest first.
	ListByExperiment(ctx context.Context, experimentName string) ([]*domain.Outcome, error)
	// Totals recomputes per-variant trial/success counts by scanning the
	// recorded outcomes. Must agree with the incrementally maintained variant
	// counters.
	Totals(ctx context.Context, experimentName string) ([]VariantTotals, error)
}
