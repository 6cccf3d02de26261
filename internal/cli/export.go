package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all prompts to a YAML file",
	Long: `Export the current version of every prompt as YAML, suitable for
checking into version control or seeding another registry.

Examples:
  promptreg export                      # to stdout
  promptreg export --output prompts.yaml`,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import prompts from a YAML file",
	Long: `Import prompts from a YAML export. Each imported prompt is
registered as a new version; existing history is never overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportOutput string

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOutput, err)
		}
		defer f.Close()
		out = f
	}

	if err := app.Service.Export(ctx, out); err != nil {
		return err
	}
	if exportOutput != "" {
		fmt.Printf("Exported prompts to %s\n", exportOutput)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	count, err := app.Service.Import(ctx, f)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d prompts\n", count)
	return nil
}
