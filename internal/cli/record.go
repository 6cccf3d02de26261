package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record <prompt> <variant>",
	Short: "Record an outcome for an experiment variant",
	Long: `Record one trial result for a variant of the prompt's running
experiment. Outcomes are append-only; optional metrics ride along with the
success flag.

Examples:
  promptreg record summarize treatment --success
  promptreg record summarize control --failure --metric latency_ms=840 --metric tokens=1200`,
	Args: cobra.ExactArgs(2),
	RunE: runRecord,
}

var (
	recordSuccess bool
	recordFailure bool
	recordMetrics []string
)

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().BoolVar(&recordSuccess, "success", false, "Record the trial as a success")
	recordCmd.Flags().BoolVar(&recordFailure, "failure", false, "Record the trial as a failure")
	recordCmd.Flags().StringArrayVar(&recordMetrics, "metric", nil, "Metric as name=value (repeatable)")
	recordCmd.MarkFlagsOneRequired("success", "failure")
	recordCmd.MarkFlagsMutuallyExclusive("success", "failure")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	metrics, err := parseMetrics(recordMetrics)
	if err != nil {
		return err
	}

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if err := app.Service.RecordOutcome(ctx, args[0], args[1], recordSuccess, metrics); err != nil {
		return err
	}

	result := "success"
	if !recordSuccess {
		result = "failure"
	}
	fmt.Printf("Recorded %s for %s/%s\n", result, args[0], args[1])
	return nil
}
