// Package registry orchestrates prompt versioning and A/B experimentation:
// weighted variant allocation, outcome aggregation, and significance-based
// experiment finalization.
package registry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/promptreg/internal/domain"
	"github.com/emiliopalmerini/promptreg/internal/ports"
)

// DefaultConfidenceLevel is used when the caller does not specify one.
const DefaultConfidenceLevel = 0.95

// Service is the core API over the storage and rendering collaborators.
type Service struct {
	prompts     ports.PromptRepository
	experiments ports.ExperimentRepository
	outcomes    ports.OutcomeRepository
	renderer    ports.Renderer
	allocator   *domain.Allocator
	metrics     ports.MetricsExporter

	// Outcome recording is serialized per experiment; operations on
	// different experiments proceed in parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithRandomSource replaces the allocator's random source, making variant
// selection deterministic under test.
func WithRandomSource(src rand.Source) Option {
	return func(s *Service) {
		s.allocator = domain.NewAllocator(src)
	}
}

// WithMetricsExporter attaches a metrics exporter for selections and outcomes.
func WithMetricsExporter(m ports.MetricsExporter) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a registry service over the given collaborators.
func New(prompts ports.PromptRepository, experiments ports.ExperimentRepository, outcomes ports.OutcomeRepository, renderer ports.Renderer, opts ...Option) *Service {
	s := &Service{
		prompts:     prompts,
		experiments: experiments,
		outcomes:    outcomes,
		renderer:    renderer,
		allocator:   domain.NewAllocator(rand.NewSource(time.Now().UnixNano())),
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) experimentLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

// Register stores a new version of a prompt, creating it on first use.
func (s *Service) Register(ctx context.Context, name, content string, author, message *string, tags []string) (*domain.PromptVersion, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: prompt name is required", domain.ErrInvalidParameter)
	}
	return s.prompts.Register(ctx, name, content, author, message, tags)
}

// Get returns a prompt's content, rendered with the given variables.
// Version 0 means the current version.
func (s *Service) Get(ctx context.Context, name string, version int64, variables map[string]any) (string, error) {
	var pv *domain.PromptVersion
	var err error
	if version > 0 {
		pv, err = s.prompts.GetVersion(ctx, name, version)
	} else {
		pv, err = s.prompts.GetCurrentVersion(ctx, name)
	}
	if err != nil {
		return "", err
	}
	if pv == nil {
		if version > 0 {
			return "", fmt.Errorf("%w: prompt %q version %d", domain.ErrNotFound, name, version)
		}
		return "", fmt.Errorf("%w: prompt %q", domain.ErrNotFound, name)
	}
	return s.renderer.Render(pv.Content, variables)
}

// ListPrompts returns all registered prompts.
func (s *Service) ListPrompts(ctx context.Context) ([]*domain.Prompt, error) {
	return s.prompts.List(ctx)
}

// History returns a prompt's versions, newest first.
func (s *Service) History(ctx context.Context, name string) ([]*domain.PromptVersion, error) {
	versions, err := s.prompts.History(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: prompt %q", domain.ErrNotFound, name)
	}
	return versions, nil
}

// Rollback points the prompt back at an earlier version.
func (s *Service) Rollback(ctx context.Context, name string, version int64) error {
	return s.prompts.SetCurrentVersion(ctx, name, version)
}

// SelectVariant picks a variant for the prompt's running experiment and
// returns its rendered content. When no experiment is running it falls back
// to the prompt's current version under the sentinel "default" variant; that
// is a plain fetch, not a one-variant experiment.
func (s *Service) SelectVariant(ctx context.Context, promptName string, variables map[string]any) (string, string, error) {
	exp, err := s.experiments.GetRunningByPrompt(ctx, promptName)
	if err != nil {
		return "", "", err
	}

	if exp == nil {
		content, err := s.Get(ctx, promptName, 0, variables)
		if err != nil {
			return "", "", err
		}
		if s.metrics != nil {
			s.metrics.ExportSelection(ctx, promptName, domain.DefaultVariant)
		}
		return content, domain.DefaultVariant, nil
	}

	name, err := s.allocator.Select(exp)
	if err != nil {
		return "", "", err
	}

	content, err := s.renderer.Render(exp.Variants[name].Content, variables)
	if err != nil {
		return "", "", err
	}
	if s.metrics != nil {
		s.metrics.ExportSelection(ctx, promptName, name)
	}
	return content, name, nil
}

// CreateExperiment starts a weighted A/B experiment over a prompt. The
// experiment name is derived from the prompt name and at most one experiment
// per prompt may be running; creation is rejected, never implicitly replaced.
func (s *Service) CreateExperiment(ctx context.Context, promptName string, specs []domain.VariantSpec, successMetric string) (*domain.Experiment, error) {
	prompt, err := s.prompts.GetByName(ctx, promptName)
	if err != nil {
		return nil, err
	}
	if prompt == nil {
		return nil, fmt.Errorf("%w: prompt %q", domain.ErrNotFound, promptName)
	}

	existing, err := s.experiments.GetByPrompt(ctx, promptName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == domain.StatusCompleted {
			return nil, fmt.Errorf("%w: prompt %q already has completed experiment %q", domain.ErrConfiguration, promptName, existing.Name)
		}
		return nil, fmt.Errorf("%w: prompt %q already has %s experiment %q", domain.ErrInvalidState, promptName, existing.Status, existing.Name)
	}

	exp, err := domain.NewExperiment(promptName, specs, successMetric)
	if err != nil {
		return nil, err
	}

	if err := s.experiments.Create(ctx, exp); err != nil {
		return nil, err
	}
	if err := s.prompts.SetActiveExperiment(ctx, promptName, &exp.Name); err != nil {
		return nil, err
	}
	return exp, nil
}

// ListExperiments returns all experiments, newest first.
func (s *Service) ListExperiments(ctx context.Context) ([]*domain.Experiment, error) {
	return s.experiments.List(ctx)
}

// RecordOutcome appends one observation for a variant of the prompt's running
// experiment. The outcome log entry and the variant's materialized counters
// are written atomically by the repository.
func (s *Service) RecordOutcome(ctx context.Context, promptName, variant string, success bool, metrics map[string]float64) error {
	exp, err := s.experiments.GetRunningByPrompt(ctx, promptName)
	if err != nil {
		return err
	}
	if exp == nil {
		return fmt.Errorf("%w: no running experiment for prompt %q", domain.ErrInvalidState, promptName)
	}
	if _, ok := exp.Variants[variant]; !ok {
		return fmt.Errorf("%w: variant %q in experiment %q", domain.ErrNotFound, variant, exp.Name)
	}

	lock := s.experimentLock(exp.Name)
	lock.Lock()
	defer lock.Unlock()

	outcome := &domain.Outcome{
		ID:             uuid.New().String(),
		ExperimentName: exp.Name,
		Variant:        variant,
		Success:        success,
		Metrics:        metrics,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.outcomes.Record(ctx, outcome); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ExportOutcome(ctx, exp.Name, variant, success)
	}
	return nil
}

// VariantResult summarizes recorded outcomes for one variant.
type VariantResult struct {
	Name        string
	Trials      int64
	Successes   int64
	SuccessRate float64
	// MetricAverages holds the mean of each recorded metric series.
	MetricAverages map[string]float64
}

// Results is an on-demand summary of an experiment. Leader is the variant
// with the highest raw success rate and is provisional: the authoritative
// Winner is fixed only when the experiment completes and significance holds.
type Results struct {
	ExperimentName string
	PromptName     string
	Status         domain.ExperimentStatus
	SuccessMetric  string
	Variants       []VariantResult
	Leader         string
	TotalTrials    int64
	Winner         *string
	Confidence     *float64
}

// Results computes the experiment summary by scanning recorded outcomes, so
// it agrees with the incrementally maintained counters by construction and is
// idempotent between recordings.
func (s *Service) Results(ctx context.Context, promptName string) (*Results, error) {
	exp, err := s.experiments.GetByPrompt(ctx, promptName)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: no experiment for prompt %q", domain.ErrNotFound, promptName)
	}

	totals, err := s.outcomes.Totals(ctx, exp.Name)
	if err != nil {
		return nil, err
	}
	totalsByVariant := make(map[string]ports.VariantTotals, len(totals))
	for _, t := range totals {
		totalsByVariant[t.Variant] = t
	}

	outcomes, err := s.outcomes.ListByExperiment(ctx, exp.Name)
	if err != nil {
		return nil, err
	}
	series := metricSeriesByVariant(outcomes)

	results := &Results{
		ExperimentName: exp.Name,
		PromptName:     exp.PromptName,
		Status:         exp.Status,
		SuccessMetric:  exp.SuccessMetric,
		Winner:         exp.Winner,
		Confidence:     exp.Confidence,
	}

	bestRate := -1.0
	for _, name := range exp.VariantOrder {
		t := totalsByVariant[name]
		vr := VariantResult{
			Name:      name,
			Trials:    t.Trials,
			Successes: t.Successes,
		}
		if t.Trials > 0 {
			vr.SuccessRate = float64(t.Successes) / float64(t.Trials)
		}
		if perMetric := series[name]; len(perMetric) > 0 {
			vr.MetricAverages = make(map[string]float64, len(perMetric))
			for metricName, values := range perMetric {
				var sum float64
				for _, x := range values {
					sum += x
				}
				vr.MetricAverages[metricName] = sum / float64(len(values))
			}
		}
		results.Variants = append(results.Variants, vr)
		results.TotalTrials += t.Trials

		// Ties keep the first-seen variant.
		if vr.SuccessRate > bestRate {
			bestRate = vr.SuccessRate
			results.Leader = name
		}
	}
	return results, nil
}

func metricSeriesByVariant(outcomes []*domain.Outcome) map[string]map[string][]float64 {
	series := make(map[string]map[string][]float64)
	for _, o := range outcomes {
		if len(o.Metrics) == 0 {
			continue
		}
		perMetric, ok := series[o.Variant]
		if !ok {
			perMetric = make(map[string][]float64)
			series[o.Variant] = perMetric
		}
		for name, value := range o.Metrics {
			perMetric[name] = append(perMetric[name], value)
		}
	}
	return series
}

// EvaluateSignificance runs the two-variant z-test over the prompt's
// experiment at the given confidence level. A zero confidence level means
// the default, same as CompleteExperiment.
func (s *Service) EvaluateSignificance(ctx context.Context, promptName string, confidenceLevel float64) (*domain.ExperimentResult, error) {
	if confidenceLevel == 0 {
		confidenceLevel = DefaultConfidenceLevel
	}
	exp, err := s.experiments.GetByPrompt(ctx, promptName)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: no experiment for prompt %q", domain.ErrNotFound, promptName)
	}
	return domain.AnalyzeExperiment(exp, confidenceLevel)
}

// PauseExperiment suspends outcome recording for the prompt's experiment.
func (s *Service) PauseExperiment(ctx context.Context, promptName string) (*domain.Experiment, error) {
	return s.transition(ctx, promptName, (*domain.Experiment).Pause)
}

// ResumeExperiment restarts a paused experiment.
func (s *Service) ResumeExperiment(ctx context.Context, promptName string) (*domain.Experiment, error) {
	return s.transition(ctx, promptName, (*domain.Experiment).Resume)
}

func (s *Service) transition(ctx context.Context, promptName string, step func(*domain.Experiment) error) (*domain.Experiment, error) {
	exp, err := s.experiments.GetByPrompt(ctx, promptName)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: no experiment for prompt %q", domain.ErrNotFound, promptName)
	}
	if err := step(exp); err != nil {
		return nil, err
	}
	if err := s.experiments.UpdateStatus(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

// CompleteExperiment finalizes the prompt's experiment. Winner and confidence
// are computed once via the significance calculator and never recomputed.
//
// With two variants this is a single z-test. With more, the empirical leader
// is tested pairwise against every rival: the winner is fixed only when the
// leader is significant against all of them, and the recorded confidence is
// the weakest pairwise confidence. Otherwise the experiment completes with no
// winner and callers fall back to raw rates.
func (s *Service) CompleteExperiment(ctx context.Context, promptName string, confidenceLevel float64) (*domain.Experiment, error) {
	if confidenceLevel == 0 {
		confidenceLevel = DefaultConfidenceLevel
	}

	exp, err := s.experiments.GetByPrompt(ctx, promptName)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: no experiment for prompt %q", domain.ErrNotFound, promptName)
	}
	if exp.Status == domain.StatusCompleted {
		return nil, fmt.Errorf("%w: experiment %q is already completed", domain.ErrInvalidState, exp.Name)
	}

	winner, confidence, err := s.decideWinner(exp, confidenceLevel)
	if err != nil {
		return nil, err
	}

	if err := exp.Complete(winner, confidence, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.experiments.UpdateStatus(ctx, exp); err != nil {
		return nil, err
	}
	if err := s.prompts.SetActiveExperiment(ctx, promptName, nil); err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *Service) decideWinner(exp *domain.Experiment, confidenceLevel float64) (*string, *float64, error) {
	if len(exp.VariantOrder) == 2 {
		result, err := domain.AnalyzeExperiment(exp, confidenceLevel)
		if err != nil {
			return nil, nil, err
		}
		if !result.Significant {
			return nil, nil, nil
		}
		winner := result.Winner
		confidence := result.Confidence
		return &winner, &confidence, nil
	}

	variants := exp.OrderedVariants()
	leader := variants[0]
	for _, v := range variants[1:] {
		if v.SuccessRate() > leader.SuccessRate() {
			leader = v
		}
	}

	minConfidence := 1.0
	for _, rival := range variants {
		if rival.Name == leader.Name {
			continue
		}
		result, err := domain.CompareVariants(leader, rival, confidenceLevel)
		if err != nil {
			return nil, nil, err
		}
		if !result.Significant || result.Winner != leader.Name {
			return nil, nil, nil
		}
		if result.Confidence < minConfidence {
			minConfidence = result.Confidence
		}
	}

	name := leader.Name
	return &name, &minConfidence, nil
}
