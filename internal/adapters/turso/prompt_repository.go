package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emiliopalmerini/promptreg/internal/domain"
	"github.com/emiliopalmerini/promptreg/internal/util"
)

type PromptRepository struct {
	db *sql.DB
}

func NewPromptRepository(db *sql.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

func (r *PromptRepository) GetByName(ctx context.Context, name string) (*domain.Prompt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, current_version, active_experiment, tags, created_at
		FROM prompts WHERE name = ?
	`, name)

	prompt, err := scanPrompt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return prompt, nil
}

func (r *PromptRepository) List(ctx context.Context) ([]*domain.Prompt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, current_version, active_experiment, tags, created_at
		FROM prompts ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*domain.Prompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, prompt)
	}
	return prompts, rows.Err()
}

// Register appends a new version inside a transaction so the current-version
// increment and the version insert are atomic.
func (r *PromptRepository) Register(ctx context.Context, name, content string, author, message *string, tags []string) (*domain.PromptVersion, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	createdAt := now.Format(time.RFC3339)

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT current_version FROM prompts WHERE name = ?`, name).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tags: %w", err)
		}
		current = 0
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prompts (name, current_version, tags, created_at) VALUES (?, 1, ?, ?)
		`, name, string(tagsJSON), createdAt); err != nil {
			return nil, fmt.Errorf("failed to create prompt: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read current version: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE prompts SET current_version = ? WHERE name = ?
		`, current+1, name); err != nil {
			return nil, fmt.Errorf("failed to bump current version: %w", err)
		}
	}

	newVersion := current + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO prompt_versions (prompt_name, version, content, author, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, name, newVersion, content, util.NullStringPtr(author), util.NullStringPtr(message), createdAt); err != nil {
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return &domain.PromptVersion{
		PromptName: name,
		Version:    newVersion,
		Content:    content,
		Author:     author,
		Message:    message,
		CreatedAt:  now,
	}, nil
}

func (r *PromptRepository) GetVersion(ctx context.Context, name string, version int64) (*domain.PromptVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT prompt_name, version, content, author, message, created_at
		FROM prompt_versions WHERE prompt_name = ? AND version = ?
	`, name, version)

	pv, err := scanPromptVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return pv, nil
}

func (r *PromptRepository) GetCurrentVersion(ctx context.Context, name string) (*domain.PromptVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT pv.prompt_name, pv.version, pv.content, pv.author, pv.message, pv.created_at
		FROM prompt_versions pv
		JOIN prompts p ON pv.prompt_name = p.name AND pv.version = p.current_version
		WHERE p.name = ?
	`, name)

	pv, err := scanPromptVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}
	return pv, nil
}

func (r *PromptRepository) History(ctx context.Context, name string) ([]*domain.PromptVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT prompt_name, version, content, author, message, created_at
		FROM prompt_versions WHERE prompt_name = ? ORDER BY version DESC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var versions []*domain.PromptVersion
	for rows.Next() {
		pv, err := scanPromptVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, pv)
	}
	return versions, rows.Err()
}

func (r *PromptRepository) SetCurrentVersion(ctx context.Context, name string, version int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE prompts SET current_version = ?
		WHERE name = ? AND EXISTS (
			SELECT 1 FROM prompt_versions WHERE prompt_name = ? AND version = ?
		)
	`, version, name, name, version)
	if err != nil {
		return fmt.Errorf("failed to set current version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rollback result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: version %d of prompt %q", domain.ErrNotFound, version, name)
	}
	return nil
}

func (r *PromptRepository) SetActiveExperiment(ctx context.Context, name string, experiment *string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE prompts SET active_experiment = ? WHERE name = ?
	`, util.NullStringPtr(experiment), name); err != nil {
		return fmt.Errorf("failed to set active experiment: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (*domain.Prompt, error) {
	var p domain.Prompt
	var activeExperiment sql.NullString
	var tagsJSON sql.NullString
	var createdAt string

	if err := row.Scan(&p.Name, &p.CurrentVersion, &activeExperiment, &tagsJSON, &createdAt); err != nil {
		return nil, err
	}

	p.ActiveExperiment = util.NullStringToPtr(activeExperiment)
	p.CreatedAt = util.ParseTimeRFC3339(createdAt)
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &p.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &p, nil
}

func scanPromptVersion(row rowScanner) (*domain.PromptVersion, error) {
	var pv domain.PromptVersion
	var author, message sql.NullString
	var createdAt string

	if err := row.Scan(&pv.PromptName, &pv.Version, &pv.Content, &author, &message, &createdAt); err != nil {
		return nil, err
	}

	pv.Author = util.NullStringToPtr(author)
	pv.Message = util.NullStringToPtr(message)
	pv.CreatedAt = util.ParseTimeRFC3339(createdAt)
	return &pv, nil
}
