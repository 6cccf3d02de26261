package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/promptreg/internal/util"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered prompts",
	RunE:  runList,
}

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show the version history of a prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <name> <version>",
	Short: "Make an earlier version of a prompt current",
	Long: `Point a prompt back at an earlier version. The version history is
append-only: rollback moves the current pointer, it never deletes versions.`,
	Args: cobra.ExactArgs(2),
	RunE: runRollback,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	prompts, err := app.Service.ListPrompts(ctx)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		fmt.Println("No prompts registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tEXPERIMENT\tTAGS\tCREATED")
	fmt.Fprintln(w, "----\t-------\t----------\t----\t-------")

	for _, p := range prompts {
		experiment := "-"
		if p.ActiveExperiment != nil {
			experiment = *p.ActiveExperiment
		}
		tags := "-"
		if len(p.Tags) > 0 {
			tags = strings.Join(p.Tags, ",")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			p.Name, p.CurrentVersion, experiment, tags, util.FormatTime(p.CreatedAt))
	}

	w.Flush()
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	versions, err := app.Service.History(ctx, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAUTHOR\tMESSAGE\tCREATED")
	fmt.Fprintln(w, "-------\t------\t-------\t-------")

	for _, v := range versions {
		author := "-"
		if v.Author != nil {
			author = *v.Author
		}
		message := "-"
		if v.Message != nil {
			message = *v.Message
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.Version, author, message, util.FormatTime(v.CreatedAt))
	}

	w.Flush()
	return nil
}

func runRollback(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	version, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q", args[1])
	}

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if err := app.Service.Rollback(ctx, args[0], version); err != nil {
		return err
	}

	fmt.Printf("Rolled back %s to version %d\n", args[0], version)
	return nil
}
