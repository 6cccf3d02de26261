package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emiliopalmerini/promptreg/internal/domain"
)

// parseAssignments turns repeated "key=value" flags into a map. The value may
// itself contain '=' characters; only the first one splits.
func parseAssignments(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

func parseVariables(pairs []string) (map[string]any, error) {
	assignments, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	if assignments == nil {
		return nil, nil
	}
	vars := make(map[string]any, len(assignments))
	for k, v := range assignments {
		vars[k] = v
	}
	return vars, nil
}

func parseMetrics(pairs []string) (map[string]float64, error) {
	assignments, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	if assignments == nil {
		return nil, nil
	}
	metrics := make(map[string]float64, len(assignments))
	for k, v := range assignments {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid metric value %q for %q: must be a number", v, k)
		}
		metrics[k] = f
	}
	return metrics, nil
}

// parseVariantSpecs builds variant specs from repeated "name=content" flags
// and an optional comma-separated weight list. Weights are positional against
// the variant flags. An omitted list gets an even split here; a supplied list
// is passed through as-is so invalid splits are rejected downstream.
func parseVariantSpecs(variants []string, weights string) ([]domain.VariantSpec, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("at least two --variant flags are required")
	}

	specs := make([]domain.VariantSpec, 0, len(variants))
	for _, v := range variants {
		name, content, found := strings.Cut(v, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid variant %q, expected name=content", v)
		}
		specs = append(specs, domain.VariantSpec{Name: name, Content: content})
	}

	if weights == "" {
		return domain.EvenSplit(specs), nil
	}

	parts := strings.Split(weights, ",")
	if len(parts) != len(specs) {
		return nil, fmt.Errorf("got %d weights for %d variants", len(parts), len(specs))
	}
	for i, part := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: must be an integer", part)
		}
		specs[i].Weight = w
	}
	return specs, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
