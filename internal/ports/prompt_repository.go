package ports

import (
	"context"

	"github.com/emiliopalmerini/promptreg/internal/domain"
)

type PromptRepository interface {
	// GetByName returns the prompt, or nil when it does not exist.
	GetByName(ctx context.Context, name string) (*domain.Prompt, error)
	List(ctx context.Context) ([]*domain.Prompt, error)

	// Register appends a new version and bumps the current version pointer,
	// creating the prompt on first registration. The read-then-increment is
	// atomic with the version insert.
	Register(ctx context.Context, name, content string, author, message *string, tags []string) (*domain.PromptVersion, error)

	GetVersion(ctx context.Context, name string, version int64) (*domain.PromptVersion, error)
	GetCurrentVersion(ctx context.Context, name string) (*domain.PromptVersion, error)
	// History returns all versions, newest first.
	History(ctx context.Context, name string) ([]*domain.PromptVersion, error)

	// SetCurrentVersion points the prompt at an existing version (rollback).
	SetCurrentVersion(ctx context.Context, name string, version int64) error
	// SetActiveExperiment records which experiment owns the prompt's traffic.
	// A nil experiment name clears it.
	SetActiveExperiment(ctx context.Context, name string, experiment *string) error
}
