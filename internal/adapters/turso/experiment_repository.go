package turso

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/emiliopalmerini/promptreg/internal/database"
	"github.com/emiliopalmerini/promptreg/internal/domain"
	"github.com/emiliopalmerini/promptreg/internal/util"
)

type ExperimentRepository struct {
	db *sql.DB
}

func NewExperimentRepository(db *sql.DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

func (r *ExperimentRepository) Create(ctx context.Context, experiment *domain.Experiment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var completedAt sql.NullString
	if experiment.CompletedAt != nil {
		completedAt = sql.NullString{String: experiment.CompletedAt.Format(time.RFC3339), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO experiments (name, prompt_name, success_metric, status, created_at, completed_at, winner, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		experiment.Name,
		experiment.PromptName,
		experiment.SuccessMetric,
		string(experiment.Status),
		experiment.CreatedAt.Format(time.RFC3339),
		completedAt,
		util.NullStringPtr(experiment.Winner),
		util.NullFloat64(experiment.Confidence),
	); err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}

	for position, name := range experiment.VariantOrder {
		v := experiment.Variants[name]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO experiment_variants (experiment_name, name, content, weight, trials, successes, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, experiment.Name, v.Name, v.Content, v.Weight, v.Trials, v.Successes, position); err != nil {
			return fmt.Errorf("failed to create variant %q: %w", v.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (r *ExperimentRepository) GetByName(ctx context.Context, name string) (*domain.Experiment, error) {
	return r.getOne(ctx, `
		SELECT name, prompt_name, success_metric, status, created_at, completed_at, winner, confidence
		FROM experiments WHERE name = ?
	`, name)
}

func (r *ExperimentRepository) GetRunningByPrompt(ctx context.Context, promptName string) (*domain.Experiment, error) {
	return r.getOne(ctx, `
		SELECT name, prompt_name, success_metric, status, created_at, completed_at, winner, confidence
		FROM experiments WHERE prompt_name = ? AND status = 'running'
	`, promptName)
}

func (r *ExperimentRepository) GetByPrompt(ctx context.Context, promptName string) (*domain.Experiment, error) {
	return r.getOne(ctx, `
		SELECT name, prompt_name, success_metric, status, created_at, completed_at, winner, confidence
		FROM experiments WHERE prompt_name = ? ORDER BY created_at DESC LIMIT 1
	`, promptName)
}

// getOne is the hot path behind variant selection and outcome recording, so
// it retries the stale-stream errors remote Turso produces on idle
// connections.
func (r *ExperimentRepository) getOne(ctx context.Context, query string, arg any) (*domain.Experiment, error) {
	return database.WithRetry(ctx, 2, func() (*domain.Experiment, error) {
		row := r.db.QueryRowContext(ctx, query, arg)

		exp, err := scanExperiment(row)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get experiment: %w", err)
		}

		if err := r.loadVariants(ctx, exp); err != nil {
			return nil, err
		}
		return exp, nil
	})
}

func (r *ExperimentRepository) List(ctx context.Context) ([]*domain.Experiment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, prompt_name, success_metric, status, created_at, completed_at, winner, confidence
		FROM experiments ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*domain.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, exp := range experiments {
		if err := r.loadVariants(ctx, exp); err != nil {
			return nil, err
		}
	}
	return experiments, nil
}

func (r *ExperimentRepository) UpdateStatus(ctx context.Context, experiment *domain.Experiment) error {
	var completedAt sql.NullString
	if experiment.CompletedAt != nil {
		completedAt = sql.NullString{String: experiment.CompletedAt.Format(time.RFC3339), Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, `
		UPDATE experiments SET status = ?, completed_at = ?, winner = ?, confidence = ?
		WHERE name = ?
	`,
		string(experiment.Status),
		completedAt,
		util.NullStringPtr(experiment.Winner),
		util.NullFloat64(experiment.Confidence),
		experiment.Name,
	); err != nil {
		return fmt.Errorf("failed to update experiment status: %w", err)
	}
	return nil
}

func (r *ExperimentRepository) loadVariants(ctx context.Context, exp *domain.Experiment) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, content, weight, trials, successes
		FROM experiment_variants WHERE experiment_name = ? ORDER BY position
	`, exp.Name)
	if err != nil {
		return fmt.Errorf("failed to load variants: %w", err)
	}
	defer rows.Close()

	exp.Variants = make(map[string]*domain.Variant)
	exp.VariantOrder = nil
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.Name, &v.Content, &v.Weight, &v.Trials, &v.Successes); err != nil {
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		exp.Variants[v.Name] = &v
		exp.VariantOrder = append(exp.VariantOrder, v.Name)
	}
	return rows.Err()
}

func scanExperiment(row rowScanner) (*domain.Experiment, error) {
	var exp domain.Experiment
	var status, createdAt string
	var completedAt, winner sql.NullString
	var confidence sql.NullFloat64

	if err := row.Scan(&exp.Name, &exp.PromptName, &exp.SuccessMetric, &status, &createdAt, &completedAt, &winner, &confidence); err != nil {
		return nil, err
	}

	exp.Status = domain.ExperimentStatus(status)
	exp.CreatedAt = util.ParseTimeRFC3339(createdAt)
	if completedAt.Valid {
		t := util.ParseTimeRFC3339(completedAt.String)
		exp.CompletedAt = &t
	}
	exp.Winner = util.NullStringToPtr(winner)
	if confidence.Valid {
		exp.Confidence = &confidence.Float64
	}
	return &exp, nil
}
