package domain

import (
	"fmt"
	"math"
)

// minTrialsForInference is the floor below which the z-test is considered
// underpowered. Below it Evaluate reports "not significant" rather than an
// error: an inconclusive test is a valid outcome.
const minTrialsForInference = 30

// Winner codes returned by EvaluateSignificance.
const (
	WinnerA    = "a"
	WinnerB    = "b"
	WinnerNone = ""
)

// Significance is the outcome of a two-proportion z-test.
type Significance struct {
	Significant bool
	Confidence  float64
	// Winner is "a" or "b", set only when Significant is true.
	Winner string
}

// EvaluateSignificance runs a two-tailed two-proportion z-test over two
// variants' trial/success counts. It is side-effect free.
//
// Counts must be non-negative with successes <= trials, and confidenceLevel
// must lie in (0, 1); violations return ErrInvalidParameter. When either side
// has fewer than 30 trials, or the pooled standard error is zero (both rates
// 0% or 100%), the test short-circuits to not significant.
func EvaluateSignificance(aTrials, aSuccesses, bTrials, bSuccesses int64, confidenceLevel float64) (Significance, error) {
	if aTrials < 0 || aSuccesses < 0 || bTrials < 0 || bSuccesses < 0 {
		return Significance{}, fmt.Errorf("%w: trial and success counts must be non-negative", ErrInvalidParameter)
	}
	if aSuccesses > aTrials || bSuccesses > bTrials {
		return Significance{}, fmt.Errorf("%w: successes cannot exceed trials", ErrInvalidParameter)
	}
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return Significance{}, fmt.Errorf("%w: confidence level must be in (0, 1), got %g", ErrInvalidParameter, confidenceLevel)
	}

	if aTrials < minTrialsForInference || bTrials < minTrialsForInference {
		return Significance{}, nil
	}

	pA := float64(aSuccesses) / float64(aTrials)
	pB := float64(bSuccesses) / float64(bTrials)

	pPool := float64(aSuccesses+bSuccesses) / float64(aTrials+bTrials)
	se := math.Sqrt(pPool * (1 - pPool) * (1/float64(aTrials) + 1/float64(bTrials)))
	if se == 0 {
		return Significance{}, nil
	}

	z := (pA - pB) / se
	pValue := 2 * (1 - normalCDF(math.Abs(z)))

	confidence := 1 - pValue
	result := Significance{
		Significant: confidence >= confidenceLevel,
		Confidence:  confidence,
	}
	if result.Significant {
		if pA > pB {
			result.Winner = WinnerA
		} else {
			result.Winner = WinnerB
		}
	}
	return result, nil
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// RequiredSampleSize returns the minimum trials per variant needed to detect a
// relative lift of minimumDetectableEffect over baselineRate at the given
// confidence level and power.
func RequiredSampleSize(baselineRate, minimumDetectableEffect, confidenceLevel, power float64) (int64, error) {
	if baselineRate <= 0 || baselineRate >= 1 {
		return 0, fmt.Errorf("%w: baseline rate must be in (0, 1), got %g", ErrInvalidParameter, baselineRate)
	}
	if minimumDetectableEffect == 0 {
		return 0, fmt.Errorf("%w: minimum detectable effect must be non-zero", ErrInvalidParameter)
	}
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return 0, fmt.Errorf("%w: confidence level must be in (0, 1), got %g", ErrInvalidParameter, confidenceLevel)
	}
	if power <= 0 || power >= 1 {
		return 0, fmt.Errorf("%w: power must be in (0, 1), got %g", ErrInvalidParameter, power)
	}

	zAlpha := probit(1 - (1-confidenceLevel)/2)
	zBeta := probit(power)

	p1 := baselineRate
	p2 := baselineRate * (1 + minimumDetectableEffect)
	pAvg := (p1 + p2) / 2

	numerator := math.Pow(zAlpha*math.Sqrt(2*pAvg*(1-pAvg))+zBeta*math.Sqrt(p1*(1-p1)+p2*(1-p2)), 2)
	denominator := (p2 - p1) * (p2 - p1)

	return int64(math.Ceil(numerator / denominator)), nil
}

// probit approximates the inverse standard normal CDF using the
// Abramowitz-Stegun rational approximation, mirrored for p < 0.5.
func probit(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}
	if p < 0.5 {
		return -probit(1 - p)
	}

	t := math.Sqrt(-2 * math.Log(1-p))

	const (
		c0, c1, c2 = 2.515517, 0.802853, 0.010328
		d1, d2, d3 = 1.432788, 0.189269, 0.001308
	)

	return t - (c0+c1*t+c2*t*t)/(1+d1*t+d2*t*t+d3*t*t*t)
}

// ExperimentResult is a derived two-variant comparison. It is computed on
// demand and never stored.
type ExperimentResult struct {
	VariantA   string
	VariantB   string
	ATrials    int64
	ASuccesses int64
	BTrials    int64
	BSuccesses int64

	Significant bool
	Confidence  float64
	// Winner is the variant name, empty when not significant.
	Winner string
	// Lift is the percentage change of B's success rate relative to A's.
	Lift float64
}

// ARate returns variant A's empirical success rate.
func (r *ExperimentResult) ARate() float64 {
	if r.ATrials == 0 {
		return 0
	}
	return float64(r.ASuccesses) / float64(r.ATrials)
}

// BRate returns variant B's empirical success rate.
func (r *ExperimentResult) BRate() float64 {
	if r.BTrials == 0 {
		return 0
	}
	return float64(r.BSuccesses) / float64(r.BTrials)
}

// CompareVariants evaluates significance between two variants and maps the
// a/b winner code back to variant names.
func CompareVariants(a, b *Variant, confidenceLevel float64) (*ExperimentResult, error) {
	sig, err := EvaluateSignificance(a.Trials, a.Successes, b.Trials, b.Successes, confidenceLevel)
	if err != nil {
		return nil, err
	}

	result := &ExperimentResult{
		VariantA:    a.Name,
		VariantB:    b.Name,
		ATrials:     a.Trials,
		ASuccesses:  a.Successes,
		BTrials:     b.Trials,
		BSuccesses:  b.Successes,
		Significant: sig.Significant,
		Confidence:  sig.Confidence,
	}
	switch sig.Winner {
	case WinnerA:
		result.Winner = a.Name
	case WinnerB:
		result.Winner = b.Name
	}

	if aRate := result.ARate(); aRate > 0 {
		result.Lift = (result.BRate() - aRate) / aRate * 100
	}
	return result, nil
}

// AnalyzeExperiment compares an experiment's variants pairwise. Exactly two
// variants are required; larger experiments go through the leader-vs-rivals
// path at completion time.
func AnalyzeExperiment(e *Experiment, confidenceLevel float64) (*ExperimentResult, error) {
	if len(e.VariantOrder) != 2 {
		return nil, fmt.Errorf("%w: significance analysis requires exactly 2 variants, experiment %q has %d",
			ErrConfiguration, e.Name, len(e.VariantOrder))
	}
	return CompareVariants(e.Variants[e.VariantOrder[0]], e.Variants[e.VariantOrder[1]], confidenceLevel)
}
