package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/emiliopalmerini/promptreg/internal/domain"
	"github.com/emiliopalmerini/promptreg/internal/ports"
)

// In-memory fakes for the storage ports. They mirror the turso adapters'
// contracts (nil for missing rows, append-only outcomes) without a database.

type memPromptRepo struct {
	mu       sync.Mutex
	prompts  map[string]*domain.Prompt
	versions map[string][]*domain.PromptVersion
}

func newMemPromptRepo() *memPromptRepo {
	return &memPromptRepo{
		prompts:  make(map[string]*domain.Prompt),
		versions: make(map[string][]*domain.PromptVersion),
	}
}

func (r *memPromptRepo) GetByName(ctx context.Context, name string) (*domain.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompts[name], nil
}

func (r *memPromptRepo) List(ctx context.Context) ([]*domain.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.prompts))
	for name := range r.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*domain.Prompt, 0, len(names))
	for _, name := range names {
		out = append(out, r.prompts[name])
	}
	return out, nil
}

func (r *memPromptRepo) Register(ctx context.Context, name, content string, author, message *string, tags []string) (*domain.PromptVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prompts[name]
	if !ok {
		p = &domain.Prompt{Name: name, Tags: tags, CreatedAt: time.Now().UTC()}
		r.prompts[name] = p
	}
	p.CurrentVersion++
	pv := &domain.PromptVersion{
		PromptName: name,
		Version:    p.CurrentVersion,
		Content:    content,
		Author:     author,
		Message:    message,
		CreatedAt:  time.Now().UTC(),
	}
	r.versions[name] = append(r.versions[name], pv)
	return pv, nil
}

func (r *memPromptRepo) GetVersion(ctx context.Context, name string, version int64) (*domain.PromptVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pv := range r.versions[name] {
		if pv.Version == version {
			return pv, nil
		}
	}
	return nil, nil
}

func (r *memPromptRepo) GetCurrentVersion(ctx context.Context, name string) (*domain.PromptVersion, error) {
	r.mu.Lock()
	p := r.prompts[name]
	r.mu.Unlock()
	if p == nil {
		return nil, nil
	}
	return r.GetVersion(ctx, name, p.CurrentVersion)
}

func (r *memPromptRepo) History(ctx context.Context, name string) ([]*domain.PromptVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.versions[name]
	out := make([]*domain.PromptVersion, len(versions))
	for i, pv := range versions {
		out[len(versions)-1-i] = pv
	}
	return out, nil
}

func (r *memPromptRepo) SetCurrentVersion(ctx context.Context, name string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.prompts[name]
	if p == nil {
		return fmt.Errorf("%w: prompt %q", domain.ErrNotFound, name)
	}
	for _, pv := range r.versions[name] {
		if pv.Version == version {
			p.CurrentVersion = version
			return nil
		}
	}
	return fmt.Errorf("%w: version %d of prompt %q", domain.ErrNotFound, version, name)
}

func (r *memPromptRepo) SetActiveExperiment(ctx context.Context, name string, experiment *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.prompts[name]; p != nil {
		p.ActiveExperiment = experiment
	}
	return nil
}

type memExperimentRepo struct {
	mu          sync.Mutex
	experiments map[string]*domain.Experiment
}

func newMemExperimentRepo() *memExperimentRepo {
	return &memExperimentRepo{experiments: make(map[string]*domain.Experiment)}
}

func (r *memExperimentRepo) Create(ctx context.Context, experiment *domain.Experiment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.experiments[experiment.Name]; exists {
		return fmt.Errorf("experiment %q already exists", experiment.Name)
	}
	r.experiments[experiment.Name] = experiment
	return nil
}

func (r *memExperimentRepo) GetByName(ctx context.Context, name string) (*domain.Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.experiments[name], nil
}

func (r *memExperimentRepo) GetRunningByPrompt(ctx context.Context, promptName string) (*domain.Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, exp := range r.experiments {
		if exp.PromptName == promptName && exp.Status == domain.StatusRunning {
			return exp, nil
		}
	}
	return nil, nil
}

func (r *memExperimentRepo) GetByPrompt(ctx context.Context, promptName string) (*domain.Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, exp := range r.experiments {
		if exp.PromptName == promptName {
			return exp, nil
		}
	}
	return nil, nil
}

func (r *memExperimentRepo) List(ctx context.Context) ([]*domain.Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Experiment, 0, len(r.experiments))
	for _, exp := range r.experiments {
		out = append(out, exp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memExperimentRepo) UpdateStatus(ctx context.Context, experiment *domain.Experiment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.experiments[experiment.Name] = experiment
	return nil
}

type memOutcomeRepo struct {
	mu          sync.Mutex
	experiments *memExperimentRepo
	outcomes    map[string][]*domain.Outcome
}

func newMemOutcomeRepo(experiments *memExperimentRepo) *memOutcomeRepo {
	return &memOutcomeRepo{
		experiments: experiments,
		outcomes:    make(map[string][]*domain.Outcome),
	}
}

// Record validates the variant before touching any state, so a failure leaves
// both the log and the counters untouched, like the transactional adapter.
func (r *memOutcomeRepo) Record(ctx context.Context, outcome *domain.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, _ := r.experiments.GetByName(ctx, outcome.ExperimentName)
	if exp == nil {
		return fmt.Errorf("%w: experiment %q", domain.ErrNotFound, outcome.ExperimentName)
	}
	v := exp.Variants[outcome.Variant]
	if v == nil {
		return fmt.Errorf("%w: variant %q in experiment %q", domain.ErrNotFound, outcome.Variant, outcome.ExperimentName)
	}
	r.outcomes[outcome.ExperimentName] = append(r.outcomes[outcome.ExperimentName], outcome)
	v.Trials++
	if outcome.Success {
		v.Successes++
	}
	return nil
}

func (r *memOutcomeRepo) ListByExperiment(ctx context.Context, experimentName string) ([]*domain.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Outcome(nil), r.outcomes[experimentName]...), nil
}

func (r *memOutcomeRepo) Totals(ctx context.Context, experimentName string) ([]ports.VariantTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byVariant := make(map[string]*ports.VariantTotals)
	var order []string
	for _, o := range r.outcomes[experimentName] {
		t, ok := byVariant[o.Variant]
		if !ok {
			t = &ports.VariantTotals{Variant: o.Variant}
			byVariant[o.Variant] = t
			order = append(order, o.Variant)
		}
		t.Trials++
		if o.Success {
			t.Successes++
		}
	}
	out := make([]ports.VariantTotals, 0, len(order))
	for _, name := range order {
		out = append(out, *byVariant[name])
	}
	return out, nil
}

type passthroughRenderer struct{}

func (passthroughRenderer) Render(content string, variables map[string]any) (string, error) {
	return content, nil
}
