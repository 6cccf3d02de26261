package domain

import (
	"fmt"
	"math/rand"
)

// Allocator performs weighted random variant selection. The random source is
// injectable so selection is deterministic under test while staying uniform in
// production.
type Allocator struct {
	rng *rand.Rand
}

// NewAllocator creates an allocator drawing from the given source.
func NewAllocator(src rand.Source) *Allocator {
	return &Allocator{rng: rand.New(src)}
}

// Select picks one variant proportionally to weight. It draws an integer in
// [1, totalWeight] and walks the variants in insertion order accumulating
// weight; the first variant whose cumulative weight reaches the draw wins.
// A variant with weight 0 can never be selected.
//
// Weight validity (sum == 100) is enforced at experiment creation, not here.
func (a *Allocator) Select(e *Experiment) (string, error) {
	total := 0
	for _, v := range e.OrderedVariants() {
		total += v.Weight
	}
	if total <= 0 {
		return "", fmt.Errorf("%w: experiment %q has no positive variant weights", ErrConfiguration, e.Name)
	}

	draw := a.rng.Intn(total) + 1
	cumulative := 0
	for _, name := range e.VariantOrder {
		cumulative += e.Variants[name].Weight
		if draw <= cumulative {
			return name, nil
		}
	}
	// Unreachable: cumulative equals total after the last variant.
	return e.VariantOrder[len(e.VariantOrder)-1], nil
}
