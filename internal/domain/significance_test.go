package domain

import (
	"errors"
	"math"
	"testing"
)

func TestEvaluateSignificance(t *testing.T) {
	tests := []struct {
		name            string
		aTrials         int64
		aSuccesses      int64
		bTrials         int64
		bSuccesses      int64
		confidenceLevel float64
		wantSignificant bool
		wantWinner      string
	}{
		{
			name:    "clear difference is significant",
			aTrials: 1000, aSuccesses: 100,
			bTrials: 1000, bSuccesses: 200,
			confidenceLevel: 0.95,
			wantSignificant: true,
			wantWinner:      WinnerB,
		},
		{
			name:    "identical rates are not significant",
			aTrials: 1000, aSuccesses: 500,
			bTrials: 1000, bSuccesses: 500,
			confidenceLevel: 0.95,
			wantSignificant: false,
			wantWinner:      WinnerNone,
		},
		{
			name:    "underpowered a side short-circuits",
			aTrials: 29, aSuccesses: 0,
			bTrials: 1000, bSuccesses: 900,
			confidenceLevel: 0.95,
			wantSignificant: false,
			wantWinner:      WinnerNone,
		},
		{
			name:    "underpowered b side short-circuits",
			aTrials: 1000, aSuccesses: 900,
			bTrials: 29, bSuccesses: 29,
			confidenceLevel: 0.95,
			wantSignificant: false,
			wantWinner:      WinnerNone,
		},
		{
			name:    "degenerate zero standard error",
			aTrials: 100, aSuccesses: 0,
			bTrials: 100, bSuccesses: 0,
			confidenceLevel: 0.95,
			wantSignificant: false,
			wantWinner:      WinnerNone,
		},
		{
			name:    "degenerate all successes",
			aTrials: 100, aSuccesses: 100,
			bTrials: 100, bSuccesses: 100,
			confidenceLevel: 0.95,
			wantSignificant: false,
			wantWinner:      WinnerNone,
		},
		{
			name:    "a wins when its rate is higher",
			aTrials: 1000, aSuccesses: 300,
			bTrials: 1000, bSuccesses: 150,
			confidenceLevel: 0.95,
			wantSignificant: true,
			wantWinner:      WinnerA,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateSignificance(tt.aTrials, tt.aSuccesses, tt.bTrials, tt.bSuccesses, tt.confidenceLevel)
			if err != nil {
				t.Fatalf("EvaluateSignificance returned error: %v", err)
			}
			if got.Significant != tt.wantSignificant {
				t.Errorf("Significant = %v, want %v", got.Significant, tt.wantSignificant)
			}
			if got.Winner != tt.wantWinner {
				t.Errorf("Winner = %q, want %q", got.Winner, tt.wantWinner)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("Confidence = %v, want value in [0, 1]", got.Confidence)
			}
			if !got.Significant && got.Winner != WinnerNone {
				t.Errorf("Winner set to %q on a non-significant result", got.Winner)
			}
		})
	}
}

func TestEvaluateSignificance_InvalidInputs(t *testing.T) {
	tests := []struct {
		name            string
		aTrials         int64
		aSuccesses      int64
		bTrials         int64
		bSuccesses      int64
		confidenceLevel float64
	}{
		{"negative trials", -1, 0, 100, 50, 0.95},
		{"negative successes", 100, -5, 100, 50, 0.95},
		{"successes exceed trials", 100, 101, 100, 50, 0.95},
		{"confidence level zero", 100, 50, 100, 50, 0},
		{"confidence level one", 100, 50, 100, 50, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluateSignificance(tt.aTrials, tt.aSuccesses, tt.bTrials, tt.bSuccesses, tt.confidenceLevel)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

// Swapping argument order must give the same significance and confidence,
// with the winner code mirrored.
func TestEvaluateSignificance_Symmetry(t *testing.T) {
	ab, err := EvaluateSignificance(400, 120, 400, 180, 0.95)
	if err != nil {
		t.Fatalf("EvaluateSignificance(a, b) returned error: %v", err)
	}
	ba, err := EvaluateSignificance(400, 180, 400, 120, 0.95)
	if err != nil {
		t.Fatalf("EvaluateSignificance(b, a) returned error: %v", err)
	}

	if ab.Significant != ba.Significant {
		t.Errorf("significance differs under swap: %v vs %v", ab.Significant, ba.Significant)
	}
	if math.Abs(ab.Confidence-ba.Confidence) > 1e-12 {
		t.Errorf("confidence differs under swap: %v vs %v", ab.Confidence, ba.Confidence)
	}
	if ab.Winner == WinnerB && ba.Winner != WinnerA {
		t.Errorf("winner not mirrored: %q vs %q", ab.Winner, ba.Winner)
	}
}

// The hand-computed case from a 50/50 experiment: control 20/40, treatment
// 30/40. Pooled p = 0.625, se = sqrt(0.625*0.375*(2/40)) ~= 0.10825,
// z ~= -2.309, two-tailed p ~= 0.0209, confidence ~= 0.979.
func TestEvaluateSignificance_HandComputedZTest(t *testing.T) {
	got, err := EvaluateSignificance(40, 20, 40, 30, 0.95)
	if err != nil {
		t.Fatalf("EvaluateSignificance returned error: %v", err)
	}
	if !got.Significant {
		t.Fatalf("expected significance at 0.95, got confidence %v", got.Confidence)
	}
	if got.Winner != WinnerB {
		t.Errorf("Winner = %q, want %q", got.Winner, WinnerB)
	}
	if math.Abs(got.Confidence-0.979) > 0.002 {
		t.Errorf("Confidence = %v, want ~0.979", got.Confidence)
	}
}

func TestRequiredSampleSize(t *testing.T) {
	// Regression baseline: 10% baseline, 20% relative lift, 95% confidence,
	// 80% power.
	n, err := RequiredSampleSize(0.10, 0.20, 0.95, 0.80)
	if err != nil {
		t.Fatalf("RequiredSampleSize returned error: %v", err)
	}
	if n != 3842 {
		t.Errorf("RequiredSampleSize(0.10, 0.20, 0.95, 0.80) = %d, want 3842", n)
	}

	// Larger effects need fewer samples.
	bigger, err := RequiredSampleSize(0.10, 0.50, 0.95, 0.80)
	if err != nil {
		t.Fatalf("RequiredSampleSize returned error: %v", err)
	}
	if bigger >= n {
		t.Errorf("sample size for larger effect = %d, want < %d", bigger, n)
	}
	if bigger < 1 {
		t.Errorf("sample size = %d, want >= 1", bigger)
	}
}

func TestRequiredSampleSize_InvalidInputs(t *testing.T) {
	tests := []struct {
		name       string
		baseline   float64
		mde        float64
		confidence float64
		power      float64
	}{
		{"zero detectable effect", 0.10, 0, 0.95, 0.80},
		{"zero baseline", 0, 0.20, 0.95, 0.80},
		{"baseline at one", 1, 0.20, 0.95, 0.80},
		{"invalid confidence", 0.10, 0.20, 1.5, 0.80},
		{"invalid power", 0.10, 0.20, 0.95, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RequiredSampleSize(tt.baseline, tt.mde, tt.confidence, tt.power)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestProbit(t *testing.T) {
	tests := []struct {
		p    float64
		want float64
		tol  float64
	}{
		{0.975, 1.9600, 0.001},
		{0.80, 0.8416, 0.001},
		{0.50, 0, 0.001},
		{0.025, -1.9600, 0.001},
	}

	for _, tt := range tests {
		got := probit(tt.p)
		if math.Abs(got-tt.want) > tt.tol {
			t.Errorf("probit(%v) = %v, want %v +/- %v", tt.p, got, tt.want, tt.tol)
		}
	}

	if !math.IsInf(probit(0), -1) {
		t.Errorf("probit(0) = %v, want -Inf", probit(0))
	}
	if !math.IsInf(probit(1), 1) {
		t.Errorf("probit(1) = %v, want +Inf", probit(1))
	}
}

func TestCompareVariants_Lift(t *testing.T) {
	a := &Variant{Name: "control", Trials: 200, Successes: 100}
	b := &Variant{Name: "treatment", Trials: 200, Successes: 150}

	result, err := CompareVariants(a, b, 0.95)
	if err != nil {
		t.Fatalf("CompareVariants returned error: %v", err)
	}
	// B converts at 75% vs A's 50%: a +50% lift.
	if math.Abs(result.Lift-50) > 1e-9 {
		t.Errorf("Lift = %v, want 50", result.Lift)
	}
	if result.Winner != "treatment" {
		t.Errorf("Winner = %q, want treatment", result.Winner)
	}
}

func TestAnalyzeExperiment_RequiresTwoVariants(t *testing.T) {
	exp, err := NewExperiment("summarize", EvenSplit([]VariantSpec{
		{Name: "a", Content: "a"},
		{Name: "b", Content: "b"},
		{Name: "c", Content: "c"},
	}), "")
	if err != nil {
		t.Fatalf("NewExperiment returned error: %v", err)
	}

	if _, err := AnalyzeExperiment(exp, 0.95); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for 3-variant analysis, got %v", err)
	}
}
