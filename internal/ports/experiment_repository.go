package ports

import (
	"context"

	"github.com/emiliopalmerini/promptreg/internal/domain"
)

type ExperimentRepository interface {
	// Create persists the experiment and its variants. Fails when an
	// experiment with the same name already exists.
	Create(ctx context.Context, experiment *domain.Experiment) error
	// GetByName returns the experiment with variants loaded in their stored
	// order, or nil when it does not exist.
	GetByName(ctx context.Context, name string) (*domain.Experiment, error)
	// GetRunningByPrompt returns the prompt's running experiment, or nil.
	GetRunningByPrompt(ctx context.Context, promptName string) (*domain.Experiment, error)
	// GetByPrompt returns the prompt's experiment in any status, or nil.
	GetByPrompt(ctx context.Context, promptName string) (*domain.Experiment, error)
	List(ctx context.Context) ([]*domain.Experiment, error)

	// UpdateStatus persists a lifecycle transition, including the completion
	// timestamp, winner, and confidence when the experiment is finalized.
	UpdateStatus(ctx context.Context, experiment *domain.Experiment) error
}
