package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/promptreg/internal/domain"
	"github.com/emiliopalmerini/promptreg/internal/util"
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Manage A/B experiments",
	Long:  `Create, inspect, pause, and complete weighted A/B experiments over prompts.`,
}

var experimentCreateCmd = &cobra.Command{
	Use:   "create <prompt>",
	Short: "Start an experiment over a prompt",
	Long: `Start a weighted A/B experiment over a prompt. At most one experiment
per prompt can be running; creating a second one is rejected.

Weights are integer traffic percentages and must sum to 100. Omitting
--weights splits traffic evenly.

Examples:
  promptreg experiment create summarize \
    --variant "control=Summarize the document." \
    --variant "treatment=Summarize the document in 3 bullets." \
    --weights 70,30
  promptreg experiment create summarize --variant "a=..." --variant "b=..." --metric task_completed`,
	Args: cobra.ExactArgs(1),
	RunE: runExperimentCreate,
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all experiments",
	RunE:  runExperimentList,
}

var experimentResultsCmd = &cobra.Command{
	Use:   "results <prompt>",
	Short: "Show recorded results for a prompt's experiment",
	Long: `Show per-variant trials, successes, success rates, and metric
averages. The leader shown for a running experiment is provisional; the
authoritative winner is fixed when the experiment completes.`,
	Args: cobra.ExactArgs(1),
	RunE: runExperimentResults,
}

var experimentSignificanceCmd = &cobra.Command{
	Use:   "significance <prompt>",
	Short: "Run the significance test for a two-variant experiment",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentSignificance,
}

var experimentPauseCmd = &cobra.Command{
	Use:   "pause <prompt>",
	Short: "Pause a running experiment",
	Long:  `Pause a running experiment. Paused experiments accept no new recordings; "select" serves the prompt's current version meanwhile.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentPause,
}

var experimentResumeCmd = &cobra.Command{
	Use:   "resume <prompt>",
	Short: "Resume a paused experiment",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentResume,
}

var experimentCompleteCmd = &cobra.Command{
	Use:   "complete <prompt>",
	Short: "Complete an experiment and fix its winner",
	Long: `Complete an experiment. The winner and confidence are computed once,
from a two-proportion z-test at the given confidence level, and recorded on
the experiment permanently. An inconclusive test completes with no winner.`,
	Args: cobra.ExactArgs(1),
	RunE: runExperimentComplete,
}

var experimentSampleSizeCmd = &cobra.Command{
	Use:   "sample-size",
	Short: "Plan the trials per variant needed to detect an effect",
	Long: `Estimate how many trials each variant needs before a relative lift
of the given size over the baseline rate becomes detectable.

Example:
  promptreg experiment sample-size --baseline 0.10 --effect 0.20 --confidence 0.95 --power 0.80`,
	RunE: runExperimentSampleSize,
}

var (
	expVariants   []string
	expWeights    string
	expMetric     string
	expConfidence float64

	planBaseline   float64
	planEffect     float64
	planConfidence float64
	planPower      float64
)

func init() {
	rootCmd.AddCommand(experimentCmd)

	experimentCmd.AddCommand(experimentCreateCmd)
	experimentCmd.AddCommand(experimentListCmd)
	experimentCmd.AddCommand(experimentResultsCmd)
	experimentCmd.AddCommand(experimentSignificanceCmd)
	experimentCmd.AddCommand(experimentPauseCmd)
	experimentCmd.AddCommand(experimentResumeCmd)
	experimentCmd.AddCommand(experimentCompleteCmd)
	experimentCmd.AddCommand(experimentSampleSizeCmd)

	experimentCreateCmd.Flags().StringArrayVar(&expVariants, "variant", nil, "Variant as name=content (repeatable, at least two)")
	experimentCreateCmd.Flags().StringVarP(&expWeights, "weights", "w", "", "Comma-separated traffic percentages, positional against --variant")
	experimentCreateCmd.Flags().StringVarP(&expMetric, "metric", "m", "", "Success metric name (default: success)")

	experimentSignificanceCmd.Flags().Float64VarP(&expConfidence, "confidence", "c", 0.95, "Confidence level for the z-test")
	experimentCompleteCmd.Flags().Float64VarP(&expConfidence, "confidence", "c", 0.95, "Confidence level for the z-test")

	experimentSampleSizeCmd.Flags().Float64Var(&planBaseline, "baseline", 0, "Baseline success rate, in (0, 1)")
	experimentSampleSizeCmd.Flags().Float64Var(&planEffect, "effect", 0, "Minimum detectable relative lift, e.g. 0.20 for +20%")
	experimentSampleSizeCmd.Flags().Float64Var(&planConfidence, "confidence", 0.95, "Confidence level")
	experimentSampleSizeCmd.Flags().Float64Var(&planPower, "power", 0.80, "Statistical power")
	_ = experimentSampleSizeCmd.MarkFlagRequired("baseline")
	_ = experimentSampleSizeCmd.MarkFlagRequired("effect")
}

func runExperimentCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	specs, err := parseVariantSpecs(expVariants, expWeights)
	if err != nil {
		return err
	}

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	exp, err := app.Service.CreateExperiment(ctx, args[0], specs, expMetric)
	if err != nil {
		return err
	}

	fmt.Printf("Started experiment %s over prompt %s\n", exp.Name, exp.PromptName)
	for _, v := range exp.OrderedVariants() {
		fmt.Printf("  %s: %d%%\n", v.Name, v.Weight)
	}
	return nil
}

func runExperimentList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	experiments, err := app.Service.ListExperiments(ctx)
	if err != nil {
		return err
	}
	if len(experiments) == 0 {
		fmt.Println("No experiments found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXPERIMENT\tPROMPT\tSTATUS\tVARIANTS\tTRIALS\tWINNER\tCREATED")
	fmt.Fprintln(w, "----------\t------\t------\t--------\t------\t------\t-------")

	for _, exp := range experiments {
		var trials int64
		for _, v := range exp.Variants {
			trials += v.Trials
		}
		winner := "-"
		if exp.Winner != nil {
			winner = *exp.Winner
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			exp.Name, exp.PromptName, exp.Status, len(exp.Variants),
			util.FormatNumber(trials), winner, util.FormatTime(exp.CreatedAt))
	}

	w.Flush()
	return nil
}

func runExperimentResults(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	results, err := app.Service.Results(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Experiment: %s (%s)\n", results.ExperimentName, results.Status)
	fmt.Printf("Success metric: %s\n\n", results.SuccessMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tTRIALS\tSUCCESSES\tRATE")
	fmt.Fprintln(w, "-------\t------\t---------\t----")
	for _, v := range results.Variants {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n", v.Name, v.Trials, v.Successes, v.SuccessRate*100)
	}
	w.Flush()

	for _, v := range results.Variants {
		if len(v.MetricAverages) == 0 {
			continue
		}
		names := make([]string, 0, len(v.MetricAverages))
		for name := range v.MetricAverages {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("\n%s metric averages:\n", v.Name)
		for _, name := range names {
			fmt.Printf("  %s: %.2f\n", name, v.MetricAverages[name])
		}
	}

	fmt.Printf("\nTotal trials: %d\n", results.TotalTrials)
	if results.Winner != nil {
		fmt.Printf("Winner: %s", *results.Winner)
		if results.Confidence != nil {
			fmt.Printf(" (%.1f%% confidence)", *results.Confidence*100)
		}
		fmt.Println()
	} else if results.Status == domain.StatusCompleted {
		fmt.Println("Completed without a significant winner")
	} else if results.Leader != "" {
		fmt.Printf("Provisional leader: %s\n", results.Leader)
	}
	return nil
}

func runExperimentSignificance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	result, err := app.Service.EvaluateSignificance(ctx, args[0], expConfidence)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d/%d (%.1f%%)\n", result.VariantA, result.ASuccesses, result.ATrials, result.ARate()*100)
	fmt.Printf("%s: %d/%d (%.1f%%)\n", result.VariantB, result.BSuccesses, result.BTrials, result.BRate()*100)

	if !result.Significant {
		fmt.Printf("Not significant at %.0f%% (confidence %.1f%%)\n", expConfidence*100, result.Confidence*100)
		return nil
	}
	fmt.Printf("Significant: %s wins with %.1f%% confidence (lift %+.1f%%)\n",
		result.Winner, result.Confidence*100, result.Lift)
	return nil
}

func runExperimentPause(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	exp, err := app.Service.PauseExperiment(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Paused experiment %s\n", exp.Name)
	return nil
}

func runExperimentResume(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	exp, err := app.Service.ResumeExperiment(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Resumed experiment %s\n", exp.Name)
	return nil
}

func runExperimentComplete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	exp, err := app.Service.CompleteExperiment(ctx, args[0], expConfidence)
	if err != nil {
		return err
	}

	if exp.Winner == nil {
		fmt.Printf("Completed %s without a significant winner\n", exp.Name)
		return nil
	}
	fmt.Printf("Completed %s: winner %s with %.1f%% confidence\n",
		exp.Name, *exp.Winner, *exp.Confidence*100)
	return nil
}

func runExperimentSampleSize(cmd *cobra.Command, args []string) error {
	n, err := domain.RequiredSampleSize(planBaseline, planEffect, planConfidence, planPower)
	if err != nil {
		return err
	}

	fmt.Printf("%d trials per variant to detect a %+.0f%% lift over a %.0f%% baseline\n",
		n, planEffect*100, planBaseline*100)
	fmt.Printf("(confidence %.0f%%, power %.0f%%)\n", planConfidence*100, planPower*100)
	return nil
}
