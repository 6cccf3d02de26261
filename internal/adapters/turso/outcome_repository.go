package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emiliopalmerini/promptreg/internal/domain"
	"github.com/emiliopalmerini/promptreg/internal/ports"
	"github.com/emiliopalmerini/promptreg/internal/util"
)

type OutcomeRepository struct {
	db *sql.DB
}

func NewOutcomeRepository(db *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Record appends the outcome and bumps the variant's counters in one
// transaction. A failure on either side rolls back both, so the scanned log
// and the materialized counters always agree.
func (r *OutcomeRepository) Record(ctx context.Context, outcome *domain.Outcome) error {
	var metricsJSON sql.NullString
	if len(outcome.Metrics) > 0 {
		data, err := json.Marshal(outcome.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
		metricsJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO experiment_outcomes (id, experiment_name, variant, success, metrics, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		outcome.ID,
		outcome.ExperimentName,
		outcome.Variant,
		util.BoolToInt64(outcome.Success),
		metricsJSON,
		outcome.CreatedAt.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE experiment_variants SET trials = trials + 1, successes = successes + ?
		WHERE experiment_name = ? AND name = ?
	`, util.BoolToInt64(outcome.Success), outcome.ExperimentName, outcome.Variant)
	if err != nil {
		return fmt.Errorf("failed to increment variant counters: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check increment result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: variant %q in experiment %q", domain.ErrNotFound, outcome.Variant, outcome.ExperimentName)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcome: %w", err)
	}
	return nil
}

func (r *OutcomeRepository) ListByExperiment(ctx context.Context, experimentName string) ([]*domain.Outcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, experiment_name, variant, success, metrics, created_at
		FROM experiment_outcomes WHERE experiment_name = ? ORDER BY created_at, id
	`, experimentName)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var success int64
		var metricsJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&o.ID, &o.ExperimentName, &o.Variant, &success, &metricsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Success = success == 1
		o.CreatedAt = util.ParseTimeRFC3339(createdAt)
		if metricsJSON.Valid && metricsJSON.String != "" {
			if err := json.Unmarshal([]byte(metricsJSON.String), &o.Metrics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
			}
		}
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

// Totals recomputes per-variant counts by scanning outcomes. Ordering follows
// the variant positions so results line up with the experiment's variant order.
func (r *OutcomeRepository) Totals(ctx context.Context, experimentName string) ([]ports.VariantTotals, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.variant, COUNT(*), COALESCE(SUM(o.success), 0)
		FROM experiment_outcomes o
		LEFT JOIN experiment_variants v ON v.experiment_name = o.experiment_name AND v.name = o.variant
		WHERE o.experiment_name = ?
		GROUP BY o.variant
		ORDER BY v.position
	`, experimentName)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate outcomes: %w", err)
	}
	defer rows.Close()

	var totals []ports.VariantTotals
	for rows.Next() {
		var t ports.VariantTotals
		if err := rows.Scan(&t.Variant, &t.Trials, &t.Successes); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
