package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Fetch and render a prompt",
	Long: `Fetch a prompt's current (or a specific) version and render it with
the given variables. Rendering fails if the content references a variable
that was not provided.

Examples:
  promptreg get summarize
  promptreg get summarize --version 2
  promptreg get summarize --var document="quarterly report" --var style=terse`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var selectCmd = &cobra.Command{
	Use:   "select <name>",
	Short: "Fetch a prompt through its running experiment",
	Long: `Fetch a prompt, letting the running experiment's traffic allocator
pick which variant to serve. Without a running experiment this behaves like
"get" and reports the sentinel variant "default".

The rendered content goes to stdout; the chosen variant name goes to stderr
so output can be piped.`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

var (
	getVersion int64
	getVars    []string
	selectVars []string
)

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(selectCmd)

	getCmd.Flags().Int64VarP(&getVersion, "version", "v", 0, "Version to fetch (0 = current)")
	getCmd.Flags().StringArrayVar(&getVars, "var", nil, "Template variable as key=value (repeatable)")
	selectCmd.Flags().StringArrayVar(&selectVars, "var", nil, "Template variable as key=value (repeatable)")
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	variables, err := parseVariables(getVars)
	if err != nil {
		return err
	}

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	content, err := app.Service.Get(ctx, args[0], getVersion, variables)
	if err != nil {
		return err
	}

	fmt.Println(content)
	return nil
}

func runSelect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	variables, err := parseVariables(selectVars)
	if err != nil {
		return err
	}

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	content, variant, err := app.Service.SelectVariant(ctx, args[0], variables)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "variant: %s\n", variant)
	fmt.Println(content)
	return nil
}
