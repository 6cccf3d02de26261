package domain

import (
	"fmt"
	"time"
)

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	StatusRunning   ExperimentStatus = "running"
	StatusPaused    ExperimentStatus = "paused"
	StatusCompleted ExperimentStatus = "completed"
)

// DefaultSuccessMetric is the metric used for significance when none is given.
const DefaultSuccessMetric = "success"

// DefaultVariant is the sentinel selection returned when a prompt has no
// running experiment. It resolves to the prompt's current version, not to a
// weighted variant.
const DefaultVariant = "default"

// Variant is one candidate version of a prompt under experiment.
type Variant struct {
	Name      string
	Content   string
	Weight    int
	Trials    int64
	Successes int64
	// Metrics holds append-only series of observed values per metric name.
	Metrics map[string][]float64
}

// SuccessRate returns the empirical success rate, zero when no trials exist.
func (v *Variant) SuccessRate() float64 {
	if v.Trials == 0 {
		return 0
	}
	return float64(v.Successes) / float64(v.Trials)
}

// AvgMetric returns the mean of the named metric series. The second return is
// false when no observations exist for that metric.
func (v *Variant) AvgMetric(name string) (float64, bool) {
	series := v.Metrics[name]
	if len(series) == 0 {
		return 0, false
	}
	var sum float64
	for _, x := range series {
		sum += x
	}
	return sum / float64(len(series)), true
}

// AddObservation appends one trial to the variant's counters and metric series.
func (v *Variant) AddObservation(success bool, metrics map[string]float64) {
	v.Trials++
	if success {
		v.Successes++
	}
	if len(metrics) == 0 {
		return
	}
	if v.Metrics == nil {
		v.Metrics = make(map[string][]float64, len(metrics))
	}
	for name, value := range metrics {
		v.Metrics[name] = append(v.Metrics[name], value)
	}
}

// VariantSpec describes a variant at experiment creation time. Order of specs
// is significant: it fixes the allocator walk order and the even-split
// remainder distribution.
type VariantSpec struct {
	Name    string
	Content string
	Weight  int
}

// Experiment is a weighted A/B experiment over a prompt's variants.
type Experiment struct {
	Name          string
	PromptName    string
	Variants      map[string]*Variant
	VariantOrder  []string
	SuccessMetric string
	Status        ExperimentStatus
	CreatedAt     time.Time
	CompletedAt   *time.Time
	Winner        *string
	Confidence    *float64
}

// ExperimentName derives the experiment identity from the prompt name. At most
// one experiment per prompt can be running, so the mapping is one-to-one.
func ExperimentName(promptName string) string {
	return promptName + "-experiment"
}

// NewExperiment builds a running experiment over the given variant specs.
// Weights must be non-negative and sum to exactly 100. Callers with no
// traffic split of their own build one with EvenSplit; a split that is
// supplied but does not add up is rejected, not repaired. Fewer than two
// variants or a duplicate name is a configuration error.
func NewExperiment(promptName string, specs []VariantSpec, successMetric string) (*Experiment, error) {
	if len(specs) < 2 {
		return nil, fmt.Errorf("%w: experiment requires at least 2 variants, got %d", ErrConfiguration, len(specs))
	}
	if successMetric == "" {
		successMetric = DefaultSuccessMetric
	}

	if err := ValidateWeights(specs); err != nil {
		return nil, err
	}

	exp := &Experiment{
		Name:          ExperimentName(promptName),
		PromptName:    promptName,
		Variants:      make(map[string]*Variant, len(specs)),
		VariantOrder:  make([]string, 0, len(specs)),
		SuccessMetric: successMetric,
		Status:        StatusRunning,
		CreatedAt:     time.Now().UTC(),
	}
	for _, s := range specs {
		if _, exists := exp.Variants[s.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate variant %q", ErrConfiguration, s.Name)
		}
		exp.Variants[s.Name] = &Variant{Name: s.Name, Content: s.Content, Weight: s.Weight}
		exp.VariantOrder = append(exp.VariantOrder, s.Name)
	}
	return exp, nil
}

// EvenSplit assigns 100/n to every spec and distributes the remainder,
// one point each, to the first (100 mod n) variants in input order so the
// total is exactly 100. It is the split for callers that did not supply one.
func EvenSplit(specs []VariantSpec) []VariantSpec {
	if len(specs) == 0 {
		return specs
	}
	base := 100 / len(specs)
	remainder := 100 % len(specs)
	for i := range specs {
		specs[i].Weight = base
		if i < remainder {
			specs[i].Weight++
		}
	}
	return specs
}

// ValidateWeights checks that every weight is non-negative and the total is
// exactly 100.
func ValidateWeights(specs []VariantSpec) error {
	total := 0
	for _, s := range specs {
		if s.Weight < 0 {
			return fmt.Errorf("%w: variant %q has negative weight %d", ErrConfiguration, s.Name, s.Weight)
		}
		total += s.Weight
	}
	if total != 100 {
		return fmt.Errorf("%w: traffic split must sum to 100, got %d", ErrConfiguration, total)
	}
	return nil
}

// OrderedVariants returns the variants in insertion order.
func (e *Experiment) OrderedVariants() []*Variant {
	out := make([]*Variant, 0, len(e.VariantOrder))
	for _, name := range e.VariantOrder {
		out = append(out, e.Variants[name])
	}
	return out
}

// Pause transitions a running experiment to paused.
func (e *Experiment) Pause() error {
	if e.Status != StatusRunning {
		return fmt.Errorf("%w: cannot pause experiment %q in status %s", ErrInvalidState, e.Name, e.Status)
	}
	e.Status = StatusPaused
	return nil
}

// Resume transitions a paused experiment back to running.
func (e *Experiment) Resume() error {
	if e.Status != StatusPaused {
		return fmt.Errorf("%w: cannot resume experiment %q in status %s", ErrInvalidState, e.Name, e.Status)
	}
	e.Status = StatusRunning
	return nil
}

// Complete finalizes the experiment. Winner and confidence are fixed once and
// never recomputed; completed is terminal.
func (e *Experiment) Complete(winner *string, confidence *float64, at time.Time) error {
	if e.Status == StatusCompleted {
		return fmt.Errorf("%w: experiment %q is already completed", ErrInvalidState, e.Name)
	}
	e.Status = StatusCompleted
	e.CompletedAt = &at
	e.Winner = winner
	e.Confidence = confidence
	return nil
}

// Outcome is a single append-only observation of a variant's performance.
type Outcome struct {
	ID             string
	ExperimentName string
	Variant        string
	Success        bool
	Metrics        map[string]float64
	CreatedAt      time.Time
}
